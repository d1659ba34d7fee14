package types

import "time"

// Trade is a buy execution paired with a sell execution.
// Both positions are execution positions, one period after the originating crossover.
type Trade struct {
	BuyPosition  int       `csv:"buy_position" yaml:"buy_position"`
	SellPosition int       `csv:"sell_position" yaml:"sell_position"`
	BuyTime      time.Time `csv:"buy_time" yaml:"buy_time"`
	SellTime     time.Time `csv:"sell_time" yaml:"sell_time"`
	BuyPrice     float64   `csv:"buy_price" yaml:"buy_price"`
	SellPrice    float64   `csv:"sell_price" yaml:"sell_price"`
}

// Return is the fractional return of the trade: (sell - buy) / buy.
func (t Trade) Return() float64 {
	return (t.SellPrice - t.BuyPrice) / t.BuyPrice
}

// IsInverted reports whether the sell executes at or before the buy.
// Positional pairing can produce such trades when events do not alternate.
func (t Trade) IsInverted() bool {
	return t.SellPosition <= t.BuyPosition
}
