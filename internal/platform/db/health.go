package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// PoolStats is a JSON-friendly snapshot of the connection pool.
type PoolStats struct {
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	MaxConns        int32  `json:"max_conns"`
	AcquireCount    int64  `json:"acquire_count"`
	AcquireDuration string `json:"acquire_duration"`
	Healthy         bool   `json:"healthy"`
}

// GetPoolStats reads the current pool counters.
func GetPoolStats(pool *pgxpool.Pool) *PoolStats {
	s := pool.Stat()
	return &PoolStats{
		TotalConns:      s.TotalConns(),
		IdleConns:       s.IdleConns(),
		AcquiredConns:   s.AcquiredConns(),
		MaxConns:        s.MaxConns(),
		AcquireCount:    s.AcquireCount(),
		AcquireDuration: s.AcquireDuration().String(),
		Healthy:         s.TotalConns() > 0,
	}
}

// HealthHandler serves the database readiness endpoint: a bounded ping
// plus the pool snapshot.
func HealthHandler(pool *pgxpool.Pool) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		err := pool.Ping(ctx)
		stats := GetPoolStats(pool)

		if err != nil {
			stats.Healthy = false
			return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
				"status": "unhealthy",
				"error":  err.Error(),
				"pool":   stats,
			})
		}

		return c.JSON(http.StatusOK, map[string]interface{}{
			"status": "healthy",
			"pool":   stats,
		})
	}
}
