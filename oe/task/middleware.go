package task

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/97woo/oraclevm/common/logging"
	"github.com/97woo/oraclevm/oe"
	"github.com/97woo/oraclevm/oe/knobs"
	"go.uber.org/zap"
)

var errTaskTimeout = errors.New("task timed out")

// TaskMiddleware wraps a task's execution with cross-cutting behavior.
type TaskMiddleware func(ctx context.Context, config *oe.Config, task *BaseTaskSpec, knobsService knobs.Knobs) error

// LogMiddleware attaches a task-scoped logger and logs the run's outcome and
// duration.
func LogMiddleware() TaskMiddleware {
	return func(ctx context.Context, config *oe.Config, task *BaseTaskSpec, knobsService knobs.Knobs) error {
		logger := logging.GetLoggerFromContext(ctx).With(zap.String("task.name", task.Name))
		ctx = logging.InjectLogger(ctx, logger)

		start := time.Now()
		err := task.Task(ctx, config, knobsService)
		if err != nil {
			logger.With(zap.Error(err)).Sugar().Warnf("Task failed after %s", time.Since(start))
			return err
		}
		logger.Sugar().Debugf("Task completed in %s", time.Since(start))
		return nil
	}
}

// TimeoutMiddleware bounds the task's run time with the task's configured
// timeout.
func TimeoutMiddleware() TaskMiddleware {
	return func(ctx context.Context, config *oe.Config, task *BaseTaskSpec, knobsService knobs.Knobs) error {
		timeout := knobsService.GetDuration(knobs.KnobSettlementTaskTimeout, task.getTimeout())
		ctx, cancel := context.WithTimeout(ctx, timeout)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			done <- task.Task(ctx, config, knobsService)
		}()

		select {
		case err := <-done:
			return err
		case <-ctx.Done():
			return fmt.Errorf("%w: %s after %s", errTaskTimeout, task.Name, timeout)
		}
	}
}

// PanicRecoveryMiddleware converts a task panic into an error so one bad run
// cannot take down the scheduler.
func PanicRecoveryMiddleware() TaskMiddleware {
	return func(ctx context.Context, config *oe.Config, task *BaseTaskSpec, knobsService knobs.Knobs) (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("task %s panicked: %v", task.Name, r)
			}
		}()
		return task.Task(ctx, config, knobsService)
	}
}
