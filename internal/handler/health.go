package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// Pinger is satisfied by *sql.DB.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// HealthHandler serves liveness and readiness probes.  Redis is optional:
// a nil client is reported as disabled and never fails readiness.
type HealthHandler struct {
	DB      Pinger
	Redis   *redis.Client
	Version string
	started time.Time
}

func NewHealthHandler(db Pinger, rdb *redis.Client, version string) *HealthHandler {
	return &HealthHandler{DB: db, Redis: rdb, Version: version, started: time.Now()}
}

// Health reports that the process is up.
func (h *HealthHandler) Health(c echo.Context) error {
	return c.JSON(http.StatusOK, echo.Map{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.started).Seconds(),
		"version":   h.Version,
	})
}

// Ready checks the database (and redis, when configured).
func (h *HealthHandler) Ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	checks := echo.Map{"database": "ok", "redis": "disabled"}
	status := http.StatusOK
	if err := h.DB.PingContext(ctx); err != nil {
		checks["database"] = "unavailable"
		status = http.StatusServiceUnavailable
	}
	if h.Redis != nil {
		checks["redis"] = "ok"
		if err := h.Redis.Ping(ctx).Err(); err != nil {
			checks["redis"] = "unavailable"
		}
	}

	state := "ready"
	if status != http.StatusOK {
		state = "not ready"
	}
	return c.JSON(status, echo.Map{"status": state, "checks": checks})
}
