package recommend

import (
	"fmt"

	"github.com/spf13/viper"
)

// LoadWeights reads a weight-table override file (YAML, JSON, or TOML,
// detected by extension) and returns DefaultWeights with the file's
// keys applied on top. Keys use the snake_case names from the Weights
// struct tags; unknown keys are an error so typos don't silently fall
// back to defaults.
func LoadWeights(path string) (Weights, error) {
	w := DefaultWeights()
	if path == "" {
		return w, nil
	}

	v := viper.New()
	v.SetConfigFile(path)
	if err := v.ReadInConfig(); err != nil {
		return w, fmt.Errorf("read weights file %s: %w", path, err)
	}
	if err := v.UnmarshalExact(&w); err != nil {
		return w, fmt.Errorf("parse weights file %s: %w", path, err)
	}
	return w, nil
}
