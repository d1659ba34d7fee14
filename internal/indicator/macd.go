package indicator

import (
	"github.com/rxtech-lab/argo-macd/internal/types"
	"github.com/rxtech-lab/argo-macd/pkg/errors"
)

const (
	DefaultFastPeriod   = 12
	DefaultSlowPeriod   = 26
	DefaultSignalPeriod = 9
)

// MACD represents the Moving Average Convergence Divergence indicator.
type MACD struct {
	fast   *EMAIndicator
	slow   *EMAIndicator
	signal *EMAIndicator
}

// NewMACD creates a new MACD indicator with default configuration (12, 26, 9).
func NewMACD() *MACD {
	return &MACD{
		fast:   &EMAIndicator{period: DefaultFastPeriod},
		slow:   &EMAIndicator{period: DefaultSlowPeriod},
		signal: &EMAIndicator{period: DefaultSignalPeriod},
	}
}

// Name returns the name of the indicator.
func (m *MACD) Name() types.IndicatorType {
	return types.IndicatorTypeMACD
}

// Config configures the MACD indicator. Expected parameters: fastPeriod (int), slowPeriod (int), signalPeriod (int).
// The fast period must be shorter than the slow period.
func (m *MACD) Config(params ...any) error {
	if len(params) != 3 {
		return errors.New(errors.ErrCodeMissingParameter, "Config expects 3 parameters: fastPeriod (int), slowPeriod (int), signalPeriod (int)")
	}

	names := []string{"fastPeriod", "slowPeriod", "signalPeriod"}
	periods := make([]int, len(params))

	for i, param := range params {
		period, ok := param.(int)
		if !ok {
			return errors.Newf(errors.ErrCodeInvalidType, "invalid type for %s parameter, expected int", names[i])
		}

		if period <= 0 {
			return errors.Newf(errors.ErrCodeInvalidPeriod, "%s must be a positive integer, got %d", names[i], period)
		}

		periods[i] = period
	}

	if periods[0] >= periods[1] {
		return errors.Newf(errors.ErrCodeInvalidPeriod, "fastPeriod (%d) must be less than slowPeriod (%d)", periods[0], periods[1])
	}

	fast, slow, signal := NewEMA(), NewEMA(), NewEMA()
	for i, ema := range []*EMAIndicator{fast, slow, signal} {
		if err := ema.Config(periods[i]); err != nil {
			return err
		}
	}

	m.fast = fast
	m.slow = slow
	m.signal = signal

	return nil
}

// Periods returns the fast, slow and signal spans.
func (m *MACD) Periods() (fast, slow, signal int) {
	return m.fast.Period(), m.slow.Period(), m.signal.Period()
}

// Derive computes the fast and slow EMAs, the MACD line and the signal line for values.
// Every output is aligned 1:1 with values and only uses values[0..i] at position i.
func (m *MACD) Derive(values []float64) types.DerivedSeries {
	emaFast := m.fast.Compute(values)
	emaSlow := m.slow.Compute(values)

	macd := make([]float64, len(values))
	for i := range values {
		macd[i] = emaFast[i] - emaSlow[i]
	}

	return types.DerivedSeries{
		EMAFast: emaFast,
		EMASlow: emaSlow,
		MACD:    macd,
		Signal:  m.signal.Compute(macd),
	}
}

// DeriveIndicator computes the default MACD(12, 26, 9) pipeline for values.
func DeriveIndicator(values []float64) types.DerivedSeries {
	return NewMACD().Derive(values)
}
