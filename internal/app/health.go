package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
)

// pingTimeout bounds the whole check; a hung backend must not hold
// the endpoint open.
const pingTimeout = 2 * time.Second

// HealthChecker reports whether the session backends (Postgres and
// Redis) are reachable. Identity issuance depends on both, so either
// one failing marks the service unhealthy.
type HealthChecker struct {
	infra Infrastructure
}

func NewHealthChecker(infra Infrastructure) *HealthChecker {
	return &HealthChecker{infra: infra}
}

func (h *HealthChecker) ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	errs := make(chan error, 2)
	go func() {
		if err := h.infra.Postgres().Ping(ctx); err != nil {
			errs <- fmt.Errorf("postgres: %w", err)
			return
		}
		errs <- nil
	}()
	go func() {
		if err := h.infra.Redis().Ping(ctx); err != nil {
			errs <- fmt.Errorf("redis: %w", err)
			return
		}
		errs <- nil
	}()

	return errors.Join(<-errs, <-errs)
}

func (h *HealthChecker) Handler(c *gin.Context) {
	if err := h.ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "fail",
			"error":  err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": "pass"})
}
