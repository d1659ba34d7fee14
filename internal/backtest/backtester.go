package backtest

import (
	"math"
	"sort"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-macd/internal/logger"
	"github.com/rxtech-lab/argo-macd/internal/types"
	"github.com/rxtech-lab/argo-macd/pkg/errors"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// PairingMode decides how buy and sell execution positions become trades.
type PairingMode string

const (
	// PairingPositional zips the trimmed buy and sell lists index-wise, truncating to
	// the shorter list. Runs of consecutive buys (or sells) are not detected and can
	// pair a buy with an earlier sell.
	PairingPositional PairingMode = "positional"
	// PairingAlternating walks events in time order: a buy opens a position only when
	// flat, a sell closes it only when open. Surplus events are dropped.
	PairingAlternating PairingMode = "alternating"
)

// AllPairingModes lists the supported pairing modes.
var AllPairingModes = []any{
	string(PairingPositional),
	string(PairingAlternating),
}

// ParsePairingMode converts a string into a PairingMode. Empty means positional.
func ParsePairingMode(mode string) (PairingMode, error) {
	switch PairingMode(mode) {
	case "", PairingPositional:
		return PairingPositional, nil
	case PairingAlternating:
		return PairingAlternating, nil
	default:
		return "", errors.Newf(errors.ErrCodeInvalidPairingMode, "unknown pairing mode %q", mode)
	}
}

// ExecutionPositions shifts every event position forward by one period.
// Shifted positions outside [0, n) are dropped.
func ExecutionPositions(positions []int, n int) []int {
	execution := make([]int, 0, len(positions))

	for _, p := range positions {
		shifted := p + 1
		if shifted < 0 || shifted >= n {
			continue
		}

		execution = append(execution, shifted)
	}

	return execution
}

// TrimBoundaries drops a leading sell that precedes the first buy and a trailing buy
// that follows the last sell. At most one entry is removed from each end.
// The inputs are not modified.
func TrimBoundaries(buys, sells []int) ([]int, []int) {
	if len(buys) > 0 && len(sells) > 0 && sells[0] < buys[0] {
		sells = sells[1:]
	}

	if len(buys) > 0 && len(sells) > 0 && buys[len(buys)-1] > sells[len(sells)-1] {
		buys = buys[:len(buys)-1]
	}

	return buys, sells
}

type pair struct {
	buy  int
	sell int
}

func pairPositional(buys, sells []int) []pair {
	n := min(len(buys), len(sells))

	pairs := make([]pair, n)
	for i := 0; i < n; i++ {
		pairs[i] = pair{buy: buys[i], sell: sells[i]}
	}

	return pairs
}

func pairAlternating(buys, sells []int) []pair {
	pairs := []pair{}
	holding := false
	open := 0

	i, j := 0, 0
	for i < len(buys) || j < len(sells) {
		if j >= len(sells) || (i < len(buys) && buys[i] < sells[j]) {
			if !holding {
				holding = true
				open = buys[i]
			}

			i++

			continue
		}

		if holding {
			pairs = append(pairs, pair{buy: open, sell: sells[j]})
			holding = false
		}

		j++
	}

	return pairs
}

// Backtester pairs crossover events into trades and evaluates their returns.
type Backtester struct {
	log  *logger.Logger
	mode PairingMode
}

// NewBacktester creates a Backtester using the given pairing mode.
func NewBacktester(log *logger.Logger, mode PairingMode) *Backtester {
	if log == nil {
		log = logger.NewNopLogger()
	}

	if mode == "" {
		mode = PairingPositional
	}

	return &Backtester{
		log:  log,
		mode: mode,
	}
}

// Mode returns the pairing mode.
func (b *Backtester) Mode() PairingMode {
	return b.mode
}

// Run simulates buying one period after every buy event and selling one period after
// every sell event.
//
// It returns an InsufficientDataError when no trade survives trimming and pairing,
// and an ErrCodeInvalidParameter error when a traded price is zero (buy), NaN or infinite.
// EndingCapital is set only when initialCapital is present; capital is compounded
// through the trades in order as capital / buyPrice * sellPrice.
func (b *Backtester) Run(series types.TimeSeries, buys, sells []int, initialCapital optional.Option[float64]) (types.BacktestResult, error) {
	n := series.Len()

	execBuys := ExecutionPositions(buys, n)
	execSells := ExecutionPositions(sells, n)

	if dropped := len(buys) + len(sells) - len(execBuys) - len(execSells); dropped > 0 {
		b.log.Debug("Dropped events whose execution falls outside the series",
			zap.Int("dropped", dropped),
			zap.Int("length", n),
		)
	}

	execBuys, execSells = TrimBoundaries(execBuys, execSells)

	var pairs []pair

	switch b.mode {
	case PairingAlternating:
		pairs = pairAlternating(execBuys, execSells)
	case PairingPositional:
		if len(execBuys) != len(execSells) {
			b.log.Warn("Buy and sell executions differ in count after trimming; pairing positionally",
				zap.Int("buys", len(execBuys)),
				zap.Int("sells", len(execSells)),
			)
		}

		pairs = pairPositional(execBuys, execSells)
	default:
		return types.BacktestResult{}, errors.Newf(errors.ErrCodeInvalidPairingMode, "unknown pairing mode %q", b.mode)
	}

	if len(pairs) == 0 {
		return types.BacktestResult{}, errors.NewInsufficientDataError(1, 0, "", "no trades to backtest")
	}

	trades := make([]types.Trade, len(pairs))
	for i, p := range pairs {
		buy := series[p.buy]
		sell := series[p.sell]

		if !isFinite(buy.Value) {
			return types.BacktestResult{}, errors.Newf(errors.ErrCodeInvalidParameter, "buy price at position %d is %v", p.buy, buy.Value)
		}

		if !isFinite(sell.Value) {
			return types.BacktestResult{}, errors.Newf(errors.ErrCodeInvalidParameter, "sell price at position %d is %v", p.sell, sell.Value)
		}

		if buy.Value == 0 {
			return types.BacktestResult{}, errors.Newf(errors.ErrCodeInvalidParameter, "buy price at position %d is zero", p.buy)
		}

		trades[i] = types.Trade{
			BuyPosition:  p.buy,
			SellPosition: p.sell,
			BuyTime:      buy.Time,
			SellTime:     sell.Time,
			BuyPrice:     buy.Value,
			SellPrice:    sell.Value,
		}
	}

	result := types.BacktestResult{
		AverageReturn: averageReturn(trades),
		EndingCapital: optional.None[float64](),
		Trades:        trades,
		TradeResult:   summarize(trades),
	}

	if result.TradeResult.NumberOfInvertedTrades > 0 {
		b.log.Warn("Positional pairing produced trades that sell before they buy",
			zap.Int("inverted", result.TradeResult.NumberOfInvertedTrades),
		)
	}

	if initialCapital.IsSome() {
		result.EndingCapital = optional.Some(compound(initialCapital.Unwrap(), trades))
	}

	b.log.Debug("Backtest completed",
		zap.String("pairing", string(b.mode)),
		zap.Int("trades", len(trades)),
		zap.Float64("average_return", result.AverageReturn),
	)

	return result, nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

func averageReturn(trades []types.Trade) float64 {
	sum := 0.0
	for _, t := range trades {
		sum += t.Return()
	}

	return sum / float64(len(trades))
}

func compound(initialCapital float64, trades []types.Trade) float64 {
	capital := decimal.NewFromFloat(initialCapital)
	for _, t := range trades {
		capital = capital.Div(decimal.NewFromFloat(t.BuyPrice)).Mul(decimal.NewFromFloat(t.SellPrice))
	}

	ending, _ := capital.Float64()

	return ending
}

func summarize(trades []types.Trade) types.TradeResult {
	returns := make([]float64, len(trades))
	result := types.TradeResult{NumberOfTrades: len(trades)}

	for i, t := range trades {
		r := t.Return()
		returns[i] = r

		switch {
		case r > 0:
			result.NumberOfWinningTrades++
		case r < 0:
			result.NumberOfLosingTrades++
		}

		if t.IsInverted() {
			result.NumberOfInvertedTrades++
		}
	}

	sort.Float64s(returns)

	result.WorstReturn = returns[0]
	result.BestReturn = returns[len(returns)-1]
	result.WinRate = float64(result.NumberOfWinningTrades) / float64(len(trades))

	return result
}
