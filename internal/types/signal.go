package types

import "time"

type EventType string

const (
	// EventTypeBuy fires when MACD crosses above the signal line
	EventTypeBuy EventType = "buy"
	// EventTypeSell fires when MACD crosses below the signal line
	EventTypeSell EventType = "sell"
)

// CrossoverEvent is a position where the sign of MACD - Signal changed.
type CrossoverEvent struct {
	// Position is the index into the series where the crossover was detected
	Position int `csv:"position" yaml:"position"`
	// Type is either buy or sell
	Type EventType `csv:"type" yaml:"type"`
	// Time is the timestamp at Position
	Time time.Time `csv:"time" yaml:"time"`
}
