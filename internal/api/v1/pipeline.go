package v1

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/tphakala/pokerwatch/internal/errors"
	"github.com/tphakala/pokerwatch/internal/logger"
	"github.com/tphakala/pokerwatch/internal/orchestrator"
)

// CollectResponse is the reply to POST /collect.
type CollectResponse struct {
	Status  string `json:"status"` // "accepted" or the final cycle status
	CycleID string `json:"cycle_id,omitempty"`
	Error   string `json:"error,omitempty"`
}

// HealthCheck replies 200 with the health report when the pipeline is
// healthy and 503 otherwise. It has no side effects.
func (c *Controller) HealthCheck(ctx echo.Context) error {
	report := c.pipeline.Health(ctx.Request().Context())
	code := http.StatusOK
	if !report.Healthy {
		code = http.StatusServiceUnavailable
	}
	return ctx.JSON(code, report)
}

// GetStatus reports recent cycles and collections.
func (c *Controller) GetStatus(ctx echo.Context) error {
	limit := orchestrator.DefaultStatusLimit
	if v := ctx.QueryParam("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 || n > 1000 {
			return c.HandleError(ctx, badRequest("limit must be between 1 and 1000"), "Invalid limit", http.StatusBadRequest)
		}
		limit = n
	}

	report, err := c.pipeline.Status(limit)
	if err != nil {
		return c.HandleError(ctx, err, "Failed to read pipeline status", statusFor(err))
	}
	return ctx.JSON(http.StatusOK, report)
}

// TriggerCollection starts a collection cycle. By default the cycle runs in
// the background and the reply is 202; with wait=true the request blocks
// until the cycle finishes. A cycle already in progress yields 409.
func (c *Controller) TriggerCollection(ctx echo.Context) error {
	if c.pipeline.Running() {
		return c.HandleError(ctx, orchestrator.ErrCycleRunning, "A collection cycle is already running", http.StatusConflict)
	}

	wait, _ := strconv.ParseBool(ctx.QueryParam("wait"))
	if !wait {
		c.wg.Add(1)
		go func() {
			defer c.wg.Done()
			if _, err := c.pipeline.RunCycle(c.ctx, orchestrator.TriggerAPI); err != nil &&
				!errors.Is(err, orchestrator.ErrCycleRunning) {
				c.log.Warn("API triggered collection failed", logger.Error(err))
			}
		}()
		return ctx.JSON(http.StatusAccepted, CollectResponse{Status: "accepted"})
	}

	run, err := c.pipeline.RunCycle(ctx.Request().Context(), orchestrator.TriggerAPI)
	if errors.Is(err, orchestrator.ErrCycleRunning) {
		return c.HandleError(ctx, err, "A collection cycle is already running", http.StatusConflict)
	}
	if run == nil {
		return c.HandleError(ctx, err, "Collection cycle failed", statusFor(err))
	}

	resp := CollectResponse{Status: run.Status, CycleID: run.ID, Error: run.Error}
	if err != nil {
		return ctx.JSON(http.StatusBadGateway, resp)
	}
	return ctx.JSON(http.StatusOK, resp)
}
