// Package v1 implements the pokerwatch JSON API: pipeline status, manual
// collection triggers, health and read access to stored series.
package v1

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"
	"github.com/tphakala/pokerwatch/internal/conf"
	"github.com/tphakala/pokerwatch/internal/datastore"
	"github.com/tphakala/pokerwatch/internal/errors"
	"github.com/tphakala/pokerwatch/internal/logger"
	"github.com/tphakala/pokerwatch/internal/orchestrator"
)

// Prefix is the route prefix of every v1 endpoint.
const Prefix = "/api/v1"

// Pipeline is the part of the orchestrator the API drives.
type Pipeline interface {
	RunCycle(ctx context.Context, trigger string) (*datastore.CycleRun, error)
	Status(limit int) (*orchestrator.StatusReport, error)
	Health(ctx context.Context) orchestrator.HealthReport
	Running() bool
}

// Controller manages the v1 routes and their dependencies.
type Controller struct {
	Echo     *echo.Echo
	Group    *echo.Group
	DS       datastore.Interface
	Settings *conf.Settings

	pipeline Pipeline
	log      logger.Logger
	now      func() time.Time

	// background collections started by POST /collect
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// GetLogger returns the v1 API logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("api").Module("v1")
}

// New creates a controller and registers its routes on e.
func New(e *echo.Echo, ds datastore.Interface, settings *conf.Settings, pipeline Pipeline) *Controller {
	ctx, cancel := context.WithCancel(context.Background())
	c := &Controller{
		Echo:     e,
		Group:    e.Group(Prefix),
		DS:       ds,
		Settings: settings,
		pipeline: pipeline,
		log:      GetLogger(),
		now:      time.Now,
		ctx:      ctx,
		cancel:   cancel,
	}
	c.initRoutes()
	return c
}

func (c *Controller) initRoutes() {
	c.Group.GET("/health", c.HealthCheck)
	c.Group.GET("/status", c.GetStatus)
	c.Group.POST("/collect", c.TriggerCollection)

	c.Group.GET("/events", c.GetEvents)
	c.Group.GET("/correlations", c.GetCorrelations)
	c.Group.GET("/snapshots", c.GetSnapshots)
	c.Group.GET("/sites", c.GetSites)
}

// Shutdown cancels collections started through the API and waits for them.
func (c *Controller) Shutdown() {
	c.cancel()
	c.wg.Wait()
}

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error         string `json:"error"`
	Message       string `json:"message"`
	Code          int    `json:"code"`
	CorrelationID string `json:"correlation_id"`
}

// NewErrorResponse creates an error body with a fresh correlation id.
func NewErrorResponse(err error, message string, code int) *ErrorResponse {
	errorStr := message
	if err != nil {
		errorStr = err.Error()
	}
	return &ErrorResponse{
		Error:         errorStr,
		Message:       message,
		Code:          code,
		CorrelationID: uuid.NewString()[:8],
	}
}

// HandleError logs err and replies with an ErrorResponse.
func (c *Controller) HandleError(ctx echo.Context, err error, message string, code int) error {
	resp := NewErrorResponse(err, message, code)

	fields := []logger.Field{
		logger.String("correlation_id", resp.CorrelationID),
		logger.String("message", message),
		logger.Int("code", code),
		logger.String("path", ctx.Request().URL.Path),
		logger.String("method", ctx.Request().Method),
		logger.String("ip", ctx.RealIP()),
	}
	if err != nil {
		fields = append(fields, logger.Error(err))
	}
	if code >= http.StatusInternalServerError {
		c.log.Error("API error", fields...)
	} else {
		c.log.Warn("API error", fields...)
	}

	return ctx.JSON(code, resp)
}

// statusFor maps an error category to an HTTP status code.
func statusFor(err error) int {
	switch errors.CategoryOf(err) {
	case errors.CategoryValidation, errors.CategoryConfiguration:
		return http.StatusBadRequest
	case errors.CategoryNotFound:
		return http.StatusNotFound
	case errors.CategoryCancellation, errors.CategoryTimeout:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func badRequest(format string, args ...any) error {
	return errors.Newf(format, args...).
		Component("api").
		Category(errors.CategoryValidation).
		Build()
}

// parseDate validates a YYYY-MM-DD query value. An empty value yields
// fallback.
func parseDate(value, fallback string) (string, error) {
	if value == "" {
		return fallback, nil
	}
	if _, err := time.Parse(datastore.DateLayout, value); err != nil {
		return "", badRequest("invalid date %q, expected YYYY-MM-DD", value)
	}
	return value, nil
}

// today returns the current date in the schedule timezone.
func (c *Controller) today() string {
	return c.now().In(c.Settings.Location()).Format(datastore.DateLayout)
}
