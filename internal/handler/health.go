package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Check probes one backend.
type Check func(ctx context.Context) error

// HealthHandler reports liveness and backend readiness.
type HealthHandler struct {
	Checks map[string]Check
}

// Health is the liveness probe used by load balancers.  It only says the
// process is serving.
func Health(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

// Ready runs every check with a short timeout and answers 503 when any
// backend is down.  The cache counts too, although the service still
// answers without it.
func (h *HealthHandler) Ready(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	res := make(map[string]string, len(h.Checks))
	for name, check := range h.Checks {
		if err := check(ctx); err != nil {
			res[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		res[name] = "ok"
	}
	return c.JSON(status, res)
}
