package types

import "time"

// Point is a single observation of a univariate price series.
type Point struct {
	Time  time.Time `csv:"date" yaml:"date"`
	Value float64   `csv:"value" yaml:"value"`
}

// TimeSeries is an ordered sequence of points indexed 0..N-1 by position.
// Timestamps are expected to be strictly increasing; this is not checked.
type TimeSeries []Point

// NewTimeSeries builds a series from parallel time and value slices.
// The shorter slice determines the length.
func NewTimeSeries(times []time.Time, values []float64) TimeSeries {
	n := min(len(times), len(values))

	series := make(TimeSeries, n)
	for i := 0; i < n; i++ {
		series[i] = Point{Time: times[i], Value: values[i]}
	}

	return series
}

// Len returns the number of points.
func (s TimeSeries) Len() int {
	return len(s)
}

// Values returns the values of the series as a new slice.
func (s TimeSeries) Values() []float64 {
	values := make([]float64, len(s))
	for i, p := range s {
		values[i] = p.Value
	}

	return values
}

// Times returns the timestamps of the series as a new slice.
func (s TimeSeries) Times() []time.Time {
	times := make([]time.Time, len(s))
	for i, p := range s {
		times[i] = p.Time
	}

	return times
}

// Clone returns a deep copy of the series.
func (s TimeSeries) Clone() TimeSeries {
	if s == nil {
		return nil
	}

	clone := make(TimeSeries, len(s))
	copy(clone, s)

	return clone
}
