package logger

import (
	"context"
	"errors"
	"log/slog"
	"slices"
)

// multiWriterHandler fans a record out to console and file handlers
type multiWriterHandler struct {
	handlers []slog.Handler
}

// newMultiWriterHandler creates a handler that writes to multiple handlers
func newMultiWriterHandler(handlers ...slog.Handler) slog.Handler {
	return &multiWriterHandler{handlers: slices.DeleteFunc(handlers, func(h slog.Handler) bool { return h == nil })}
}

// Enabled returns true if any handler is enabled for the level
func (h *multiWriterHandler) Enabled(ctx context.Context, level slog.Level) bool {
	if h == nil {
		return false
	}
	for _, handler := range h.handlers {
		if handler.Enabled(ctx, level) {
			return true
		}
	}
	return false
}

// Handle sends the record to every handler enabled for its level
func (h *multiWriterHandler) Handle(ctx context.Context, record slog.Record) error {
	if h == nil {
		return nil
	}
	var errs []error
	for _, handler := range h.handlers {
		if !handler.Enabled(ctx, record.Level) {
			continue
		}
		if err := handler.Handle(ctx, record.Clone()); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// WithAttrs returns a new handler with the attributes applied to all handlers
func (h *multiWriterHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	if h == nil {
		return nil
	}
	newHandlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		newHandlers[i] = handler.WithAttrs(attrs)
	}
	return &multiWriterHandler{handlers: newHandlers}
}

// WithGroup returns a new handler with the group applied to all handlers
func (h *multiWriterHandler) WithGroup(name string) slog.Handler {
	if h == nil {
		return nil
	}
	newHandlers := make([]slog.Handler, len(h.handlers))
	for i, handler := range h.handlers {
		newHandlers[i] = handler.WithGroup(name)
	}
	return &multiWriterHandler{handlers: newHandlers}
}
