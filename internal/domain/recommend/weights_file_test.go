package recommend

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadWeightsEmptyPathReturnsDefaults(t *testing.T) {
	w, err := LoadWeights("")
	if err != nil {
		t.Fatalf("LoadWeights: %v", err)
	}
	if w != DefaultWeights() {
		t.Error("expected defaults when no file is given")
	}
}

func TestLoadWeightsAppliesOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weights.yaml")
	data := "rating_excellent: 30\npreferred_doctor: 40\n"
	if err := os.WriteFile(path, []byte(data), 0o600); err != nil {
		t.Fatal(err)
	}

	w, err := LoadWeights(path)
	if err != nil {
		t.Fatalf("LoadWeights: %v", err)
	}
	if w.RatingExcellent != 30 {
		t.Errorf("rating_excellent = %v, want 30", w.RatingExcellent)
	}
	if w.PreferredDoctor != 40 {
		t.Errorf("preferred_doctor = %v, want 40", w.PreferredDoctor)
	}
	if w.VideoSupport != DefaultWeights().VideoSupport {
		t.Errorf("untouched key changed: video_support = %v", w.VideoSupport)
	}
}

func TestLoadWeightsRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "weights.yaml")
	if err := os.WriteFile(path, []byte("rating_excelent: 30\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadWeights(path); err == nil {
		t.Error("expected error for misspelled key")
	}
}

func TestLoadWeightsMissingFile(t *testing.T) {
	if _, err := LoadWeights("/nonexistent/weights.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}
