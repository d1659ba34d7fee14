package types

type IndicatorType string

const (
	IndicatorTypeEMA  IndicatorType = "ema"
	IndicatorTypeMACD IndicatorType = "macd"
)

// DerivedSeries holds the MACD pipeline outputs, aligned 1:1 by position with the input series.
type DerivedSeries struct {
	// EMAFast is the fast exponential moving average (span 12 by default).
	EMAFast []float64
	// EMASlow is the slow exponential moving average (span 26 by default).
	EMASlow []float64
	// MACD is EMAFast - EMASlow.
	MACD []float64
	// Signal is the exponential moving average of MACD (span 9 by default).
	Signal []float64
}

// Len returns the number of positions in the derived series.
func (d DerivedSeries) Len() int {
	return len(d.MACD)
}

// Histogram returns MACD - Signal at every position.
func (d DerivedSeries) Histogram() []float64 {
	n := min(len(d.MACD), len(d.Signal))

	histogram := make([]float64, n)
	for i := 0; i < n; i++ {
		histogram[i] = d.MACD[i] - d.Signal[i]
	}

	return histogram
}

// Clone returns a deep copy of the derived series.
func (d DerivedSeries) Clone() DerivedSeries {
	return DerivedSeries{
		EMAFast: cloneFloats(d.EMAFast),
		EMASlow: cloneFloats(d.EMASlow),
		MACD:    cloneFloats(d.MACD),
		Signal:  cloneFloats(d.Signal),
	}
}

func cloneFloats(values []float64) []float64 {
	if values == nil {
		return nil
	}

	clone := make([]float64, len(values))
	copy(clone, values)

	return clone
}
