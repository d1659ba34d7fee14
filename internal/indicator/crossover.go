package indicator

import (
	"time"

	"github.com/rxtech-lab/argo-macd/internal/types"
)

// DetectCrossovers scans macd against signal and returns the ascending positions where
// macd crosses above signal (buys) and below signal (sells).
//
// A buy fires at i when macd[i] > signal[i] and macd[i-1] < signal[i-1]; a sell is the
// mirror image. Equality (or NaN) at i or i-1 suppresses the event. Position 0 has no
// predecessor and never fires. Only the common prefix of the two slices is scanned.
func DetectCrossovers(macd, signal []float64) (buys []int, sells []int) {
	n := min(len(macd), len(signal))

	buys = []int{}
	sells = []int{}

	for i := 1; i < n; i++ {
		prev := relation(macd[i-1], signal[i-1])
		curr := relation(macd[i], signal[i])

		switch {
		case prev < 0 && curr > 0:
			buys = append(buys, i)
		case prev > 0 && curr < 0:
			sells = append(sells, i)
		}
	}

	return buys, sells
}

// relation returns -1, 0 or 1. Unordered comparisons (NaN) report 0.
func relation(a, b float64) int {
	switch {
	case a > b:
		return 1
	case a < b:
		return -1
	default:
		return 0
	}
}

// MergeEvents combines ascending buy and sell positions into one ascending event list.
// Times are attached when the position is within times.
func MergeEvents(buys, sells []int, times []time.Time) []types.CrossoverEvent {
	events := make([]types.CrossoverEvent, 0, len(buys)+len(sells))

	at := func(position int) time.Time {
		if position >= 0 && position < len(times) {
			return times[position]
		}

		return time.Time{}
	}

	i, j := 0, 0
	for i < len(buys) || j < len(sells) {
		if j >= len(sells) || (i < len(buys) && buys[i] < sells[j]) {
			events = append(events, types.CrossoverEvent{Position: buys[i], Type: types.EventTypeBuy, Time: at(buys[i])})
			i++

			continue
		}

		events = append(events, types.CrossoverEvent{Position: sells[j], Type: types.EventTypeSell, Time: at(sells[j])})
		j++
	}

	return events
}
