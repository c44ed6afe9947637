package task

import (
	"context"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/97woo/oraclevm/oe"
	"github.com/97woo/oraclevm/oe/knobs"
)

var defaultTaskTimeout = 1 * time.Minute

// BaseTaskSpec is a task that is scheduled to run.
type BaseTaskSpec struct { //nolint:revive
	// Name is the human-readable name of the task.
	Name string
	// Timeout is the maximum time the task is allowed to run before it will be cancelled.
	Timeout *time.Duration
	// If true, the task will not run
	Disabled bool
	// Task is the function that is run when the task is scheduled.
	Task func(context.Context, *oe.Config, knobs.Knobs) error
}

// ScheduledTaskSpec is a task that runs on a schedule.
type ScheduledTaskSpec struct {
	BaseTaskSpec
	// ExecutionInterval is the interval between each run of the task.
	ExecutionInterval time.Duration
}

// AllScheduledTasks returns all the tasks that are scheduled to run.
func AllScheduledTasks(sweeper *Sweeper) []ScheduledTaskSpec {
	return []ScheduledTaskSpec{
		{
			ExecutionInterval: 1 * time.Minute,
			BaseTaskSpec: BaseTaskSpec{
				Name: "settle_expired",
				Task: func(ctx context.Context, config *oe.Config, knobsService knobs.Knobs) error {
					if knobsService.GetValue(knobs.KnobSettlementTaskEnabled, 1) == 0 {
						return nil
					}
					return sweeper.SettleExpired(ctx)
				},
			},
		},
		{
			ExecutionInterval: 5 * time.Minute,
			BaseTaskSpec: BaseTaskSpec{
				Name: "sweep_refunds",
				Task: func(ctx context.Context, config *oe.Config, knobsService knobs.Knobs) error {
					return sweeper.SweepRefunds(ctx)
				},
			},
		},
	}
}

func (t *BaseTaskSpec) getTimeout() time.Duration {
	if t.Timeout != nil {
		return *t.Timeout
	}
	return defaultTaskTimeout
}

// RunOnce runs the task immediately with the standard middleware chain.
func (t *BaseTaskSpec) RunOnce(ctx context.Context, config *oe.Config, knobsService knobs.Knobs) error {
	wrappedTask := t.chainMiddleware(
		LogMiddleware(),
		TimeoutMiddleware(),
		PanicRecoveryMiddleware(),
	)

	return wrappedTask.Task(ctx, config, knobsService)
}

// Schedule registers the task with the scheduler.
func (t *ScheduledTaskSpec) Schedule(scheduler gocron.Scheduler, config *oe.Config, knobsService knobs.Knobs) error {
	if t.Disabled {
		return nil
	}

	wrappedTask := t.chainMiddleware(
		LogMiddleware(),
		TimeoutMiddleware(),
		PanicRecoveryMiddleware(),
	)

	interval := knobsService.GetDuration(knobs.KnobSettlementTaskInterval, t.ExecutionInterval)
	_, err := scheduler.NewJob(
		gocron.DurationJob(interval),
		gocron.NewTask(wrappedTask.Task, config, knobsService),
		gocron.WithName(t.Name),
	)
	return err
}

// Wrap the task with the given middleware. This returns a new BaseTaskSpec whose Task function
// is wrapped with the provided middleware. The original task's fields are preserved.
func (t *BaseTaskSpec) wrapMiddleware(middleware TaskMiddleware) *BaseTaskSpec {
	return &BaseTaskSpec{
		Name:    t.Name,
		Timeout: t.Timeout,
		Task: func(ctx context.Context, config *oe.Config, knobsService knobs.Knobs) error {
			return middleware(ctx, config, t, knobsService)
		},
	}
}

// Wrap the task with the given middlewares chained together. The middlewares
// have their ordering preserved, so the first middleware in the slice will be
// the outermost, and the last middleware will be the innermost.
func (t *BaseTaskSpec) chainMiddleware(
	middlewares ...TaskMiddleware,
) *BaseTaskSpec {
	currTask := t

	for i := len(middlewares) - 1; i >= 0; i-- {
		innerTask := currTask
		currTask = innerTask.wrapMiddleware(middlewares[i])
	}

	return currTask
}

// StartScheduler schedules every task and starts the scheduler.
func StartScheduler(config *oe.Config, sweeper *Sweeper, knobsService knobs.Knobs) (gocron.Scheduler, error) {
	scheduler, err := gocron.NewScheduler()
	if err != nil {
		return nil, err
	}
	for _, spec := range AllScheduledTasks(sweeper) {
		if err := spec.Schedule(scheduler, config, knobsService); err != nil {
			return nil, err
		}
	}
	scheduler.Start()
	return scheduler, nil
}
