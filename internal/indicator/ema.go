package indicator

import (
	"math"

	"github.com/rxtech-lab/argo-macd/internal/types"
	"github.com/rxtech-lab/argo-macd/pkg/errors"
)

// ExponentialSmoother is a streaming exponentially weighted mean using the
// adjusted (bias-corrected) weighting.
//
// After observations x[0..i] the value is
//
//	sum_k (1-alpha)^k * x[i-k] / sum_k (1-alpha)^k,  alpha = 2/(span+1)
//
// which is the default convention of pandas' ewm(span=...).mean(). The early values
// are normalized by the partial weight sum instead of being seeded with x[0], so the
// first ~span outputs differ from the raw recurrence ema = alpha*x + (1-alpha)*ema.
//
// The update is carried as value += (x - value) / weight, which keeps a constant
// input exactly constant.
//
// NaN is a missing observation: the weights of earlier observations still decay
// and the average carries forward, matching ewm(ignore_na=False).
type ExponentialSmoother struct {
	decay  float64
	weight float64
	value  float64
	count  int
}

// NewExponentialSmoother creates a smoother for the given span. span must be >= 1.
func NewExponentialSmoother(span int) *ExponentialSmoother {
	alpha := 2.0 / float64(span+1)

	return &ExponentialSmoother{
		decay:  1 - alpha,
		weight: 0,
		value:  0,
		count:  0,
	}
}

// Update folds x into the average and returns the new value.
// Before the first non-NaN observation the result is NaN.
func (s *ExponentialSmoother) Update(x float64) float64 {
	if math.IsNaN(x) {
		if s.count == 0 {
			return math.NaN()
		}

		s.weight *= s.decay

		return s.value
	}

	s.weight = 1 + s.decay*s.weight

	if s.count == 0 {
		s.value = x
	} else {
		s.value += (x - s.value) / s.weight
	}

	s.count++

	return s.value
}

// Value returns the current average. Zero before the first observation.
func (s *ExponentialSmoother) Value() float64 {
	return s.value
}

// Count returns the number of non-NaN observations folded so far.
func (s *ExponentialSmoother) Count() int {
	return s.count
}

// EMA returns the adjusted exponential moving average of values with the given span.
// The result has the same length as values and ema[0] == values[0].
// NaN inputs are skipped as missing observations; leading NaNs stay NaN.
// span must be >= 1; this is not checked.
func EMA(values []float64, span int) []float64 {
	smoother := NewExponentialSmoother(span)

	result := make([]float64, len(values))
	for i, v := range values {
		result[i] = smoother.Update(v)
	}

	return result
}

// EMAIndicator implements Exponential Moving Average calculation over a whole series.
type EMAIndicator struct {
	period int
}

// NewEMA creates a new EMA indicator with default configuration.
func NewEMA() *EMAIndicator {
	return &EMAIndicator{
		period: 12, // Default period
	}
}

// Name returns the name of the indicator.
func (e *EMAIndicator) Name() types.IndicatorType {
	return types.IndicatorTypeEMA
}

// Config configures the EMA indicator. Expected parameters: period (int).
func (e *EMAIndicator) Config(params ...any) error {
	if len(params) != 1 {
		return errors.New(errors.ErrCodeMissingParameter, "Config expects 1 parameter: period (int)")
	}

	period, ok := params[0].(int)
	if !ok {
		return errors.New(errors.ErrCodeInvalidType, "invalid type for period parameter, expected int")
	}

	if period <= 0 {
		return errors.Newf(errors.ErrCodeInvalidPeriod, "period must be a positive integer, got %d", period)
	}

	e.period = period

	return nil
}

// Period returns the configured span.
func (e *EMAIndicator) Period() int {
	return e.period
}

// Compute returns the EMA of values using the configured period.
func (e *EMAIndicator) Compute(values []float64) []float64 {
	return EMA(values, e.period)
}
