// Package saga runs a sequence of reversible steps. When a step fails, the
// undo actions of the steps that already completed run in reverse order.
package saga

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// Step is one reversible action. Undo may be nil for steps with nothing to
// roll back.
type Step struct {
	Name string
	Do   func(ctx context.Context) error
	Undo func(ctx context.Context) error
}

// CompensationError records a failed undo.
type CompensationError struct {
	Step string
	Err  error
}

func (e CompensationError) Error() string {
	return fmt.Sprintf("undo %s: %v", e.Step, e.Err)
}

// Error is returned by Run when a step fails.
type Error struct {
	// Step is the name of the step whose Do failed.
	Step string

	// Cause is the error returned by that step.
	Cause error

	// Compensated lists the undone steps in the order they were undone.
	Compensated []string

	// CompensationErrors holds undo failures. They never replace Cause.
	CompensationErrors []CompensationError
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("step %s failed: %v", e.Step, e.Cause)
	if len(e.CompensationErrors) > 0 {
		parts := make([]string, len(e.CompensationErrors))
		for i, ce := range e.CompensationErrors {
			parts[i] = ce.Error()
		}
		msg += " (compensation errors: " + strings.Join(parts, "; ") + ")"
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Run executes steps in order. On the first failure it undoes every completed
// step in reverse order and returns an *Error. Undo failures are logged and
// collected; compensation always continues to the first step.
func Run(ctx context.Context, logger *slog.Logger, steps ...Step) error {
	if logger == nil {
		logger = slog.Default()
	}

	completed := make([]Step, 0, len(steps))
	for _, step := range steps {
		if err := step.Do(ctx); err != nil {
			sagaErr := &Error{Step: step.Name, Cause: err}
			compensate(ctx, logger, completed, sagaErr)
			return sagaErr
		}
		completed = append(completed, step)
	}
	return nil
}

func compensate(ctx context.Context, logger *slog.Logger, completed []Step, sagaErr *Error) {
	for i := len(completed) - 1; i >= 0; i-- {
		step := completed[i]
		if step.Undo == nil {
			continue
		}
		logger.Info("compensating step", "step", step.Name, "failed_step", sagaErr.Step)
		if err := step.Undo(ctx); err != nil {
			logger.Warn("compensation failed", "step", step.Name, "error", err)
			sagaErr.CompensationErrors = append(sagaErr.CompensationErrors, CompensationError{Step: step.Name, Err: err})
			continue
		}
		sagaErr.Compensated = append(sagaErr.Compensated, step.Name)
	}
}

// AsError reports whether err is or wraps a *Error.
func AsError(err error) (*Error, bool) {
	var sagaErr *Error
	if errors.As(err, &sagaErr) {
		return sagaErr, true
	}
	return nil, false
}
