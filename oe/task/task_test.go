package task

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/97woo/oraclevm/oe"
	"github.com/97woo/oraclevm/oe/knobs"
)

func TestRunOnce(t *testing.T) {
	ran := false
	spec := &BaseTaskSpec{
		Name: "test",
		Task: func(ctx context.Context, config *oe.Config, knobsService knobs.Knobs) error {
			ran = true
			return nil
		},
	}

	err := spec.RunOnce(context.Background(), &oe.Config{}, knobs.New(nil))
	require.NoError(t, err)
	assert.True(t, ran)
}

func TestRunOnce_PropagatesError(t *testing.T) {
	wantErr := errors.New("sweep failed")
	spec := &BaseTaskSpec{
		Name: "test",
		Task: func(ctx context.Context, config *oe.Config, knobsService knobs.Knobs) error {
			return wantErr
		},
	}

	err := spec.RunOnce(context.Background(), &oe.Config{}, knobs.New(nil))
	assert.ErrorIs(t, err, wantErr)
}

func TestRunOnce_RecoversPanic(t *testing.T) {
	spec := &BaseTaskSpec{
		Name: "test",
		Task: func(ctx context.Context, config *oe.Config, knobsService knobs.Knobs) error {
			panic("unexpected")
		},
	}

	err := spec.RunOnce(context.Background(), &oe.Config{}, knobs.New(nil))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "panicked")
}

func TestRunOnce_Timeout(t *testing.T) {
	timeout := 10 * time.Millisecond
	spec := &BaseTaskSpec{
		Name:    "test",
		Timeout: &timeout,
		Task: func(ctx context.Context, config *oe.Config, knobsService knobs.Knobs) error {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(5 * time.Second):
				return nil
			}
		},
	}

	err := spec.RunOnce(context.Background(), &oe.Config{}, knobs.New(nil))
	assert.ErrorIs(t, err, errTaskTimeout)
}

func TestAllScheduledTasks(t *testing.T) {
	specs := AllScheduledTasks(&Sweeper{})
	require.Len(t, specs, 2)

	names := []string{specs[0].Name, specs[1].Name}
	assert.Contains(t, names, "settle_expired")
	assert.Contains(t, names, "sweep_refunds")
	for _, spec := range specs {
		assert.Positive(t, spec.ExecutionInterval)
		assert.NotNil(t, spec.Task)
	}
}

func TestSettleExpiredTask_DisabledByKnob(t *testing.T) {
	specs := AllScheduledTasks(&Sweeper{})
	var settleSpec *ScheduledTaskSpec
	for i := range specs {
		if specs[i].Name == "settle_expired" {
			settleSpec = &specs[i]
		}
	}
	require.NotNil(t, settleSpec)

	// With the knob off, the task returns without touching the (nil-wired)
	// sweeper dependencies.
	disabled := knobs.NewFixedKnobs(map[string]float64{knobs.KnobSettlementTaskEnabled: 0})
	err := settleSpec.Task(context.Background(), &oe.Config{}, disabled)
	assert.NoError(t, err)
}
