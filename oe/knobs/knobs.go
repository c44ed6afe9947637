package knobs

import (
	"context"
	"fmt"
	"time"
)

const (
	// Settlement task knobs.
	KnobSettlementTaskEnabled  = "oe.settlement.task.enabled"
	KnobSettlementTaskInterval = "oe.settlement.task.interval"
	KnobSettlementTaskTimeout  = "oe.settlement.task.timeout"

	// Pool knobs.
	KnobPoolMinDepositSats    = "oe.pool.min_deposit_sats"
	KnobPoolMaxUtilizationPct = "oe.pool.max_utilization_pct"

	// Contract validation knobs.
	KnobOptionMaxExpiryHorizonBlocks = "oe.option.max_expiry_horizon_blocks"
)

// Knobs is a collection of runtime-tunable operational values.
type Knobs interface {
	GetValue(knob string, defaultValue float64) float64
	GetDuration(knob string, defaultValue time.Duration) time.Duration
}

type knobsContextKey struct{}

// InjectKnobsService returns a new context with the given Knobs service attached.
func InjectKnobsService(ctx context.Context, k Knobs) context.Context {
	return context.WithValue(ctx, knobsContextKey{}, k)
}

// GetKnobsService retrieves the Knobs service from context if present;
// otherwise returns an empty Knobs service that always yields defaults.
func GetKnobsService(ctx context.Context) Knobs {
	if ctx != nil {
		if v, ok := ctx.Value(knobsContextKey{}).(Knobs); ok && v != nil {
			return v
		}
	}
	return New(nil)
}

// ValuesProvider supplies raw knob values, typically from a remote
// configuration service.
type ValuesProvider interface {
	GetValue(key string, defaultValue float64) float64
}

type knobsImpl struct {
	provider ValuesProvider
}

// New creates a Knobs service backed by the given provider. A nil provider
// yields defaults for every knob.
func New(provider ValuesProvider) Knobs {
	return &knobsImpl{provider: provider}
}

func (k knobsImpl) GetValue(knob string, defaultValue float64) float64 {
	if k.provider == nil {
		return defaultValue
	}
	return k.provider.GetValue(knob, defaultValue)
}

// GetDuration returns a duration interpreted from a knob value in seconds.
// Non-positive values fall back to the default.
func (k knobsImpl) GetDuration(knob string, defaultDuration time.Duration) time.Duration {
	seconds := k.GetValue(knob, defaultDuration.Seconds())
	if seconds > 0 {
		return time.Duration(seconds * float64(time.Second))
	}
	return defaultDuration
}

type fixedKnobs struct {
	values map[string]float64
}

// NewFixedKnobs creates a Knobs service that maps fixed strings to values.
// Useful for testing and development; not meant for production.
func NewFixedKnobs(values map[string]float64) Knobs {
	return &fixedKnobs{values: values}
}

func (m fixedKnobs) GetValue(knob string, defaultValue float64) float64 {
	if value, ok := m.values[knob]; ok {
		return value
	}
	return defaultValue
}

func (m fixedKnobs) GetDuration(knob string, defaultDuration time.Duration) time.Duration {
	seconds := m.GetValue(knob, defaultDuration.Seconds())
	if seconds > 0 {
		return time.Duration(seconds * float64(time.Second))
	}
	return defaultDuration
}

func (m fixedKnobs) String() string {
	return fmt.Sprintf("fixedKnobs(%v)", m.values)
}
