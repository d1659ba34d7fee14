package types

import (
	"fmt"
	"os"
	"time"

	"github.com/moznion/go-optional"
	"gopkg.in/yaml.v3"
)

type TradeResult struct {
	// Count of all trades.
	NumberOfTrades int `yaml:"number_of_trades"`
	// Count of winning trades that has positive return.
	NumberOfWinningTrades int `yaml:"number_of_winning_trades"`
	// Count of losing trades that has negative return.
	NumberOfLosingTrades int `yaml:"number_of_losing_trades"`
	// Count of trades whose sell executes at or before the buy.
	NumberOfInvertedTrades int `yaml:"number_of_inverted_trades"`
	// Win rate.
	WinRate float64 `yaml:"win_rate"`
	// Best single trade return.
	BestReturn float64 `yaml:"best_return"`
	// Worst single trade return.
	WorstReturn float64 `yaml:"worst_return"`
}

// BacktestResult is the outcome of pairing crossover events into trades.
type BacktestResult struct {
	// AverageReturn is the arithmetic mean of per-trade fractional returns.
	AverageReturn float64
	// EndingCapital is set only when an initial capital was supplied.
	EndingCapital optional.Option[float64]
	// Trades in execution order.
	Trades []Trade
	// TradeResult summarizes the trades.
	TradeResult TradeResult
}

// RunStats describes one processed input file.
type RunStats struct {
	// ID is the unique identifier for this run.
	ID string `yaml:"id" json:"id"`
	// Timestamp is when this run was executed.
	Timestamp time.Time `yaml:"timestamp" json:"timestamp"`
	// Symbol is derived from the data file name.
	Symbol string `yaml:"symbol" json:"symbol"`
	// DataPath is the input file used for this run.
	DataPath string `yaml:"data_path" json:"data_path"`
	// NumberOfPoints in the input series.
	NumberOfPoints int `yaml:"number_of_points" json:"number_of_points"`
	// NumberOfBuyEvents detected by the crossover scan.
	NumberOfBuyEvents int `yaml:"number_of_buy_events" json:"number_of_buy_events"`
	// NumberOfSellEvents detected by the crossover scan.
	NumberOfSellEvents int `yaml:"number_of_sell_events" json:"number_of_sell_events"`
	// Pairing is the trade pairing mode used.
	Pairing string `yaml:"pairing" json:"pairing"`
	// NoTrades is true when the events produced no trade to backtest.
	NoTrades bool `yaml:"no_trades" json:"no_trades"`
	// AverageReturn across trades. Zero when NoTrades is set.
	AverageReturn float64 `yaml:"average_return" json:"average_return"`
	// InitialCapital used for compounding, if any.
	InitialCapital *float64 `yaml:"initial_capital,omitempty" json:"initial_capital,omitempty"`
	// EndingCapital after compounding through every trade, if any.
	EndingCapital *float64 `yaml:"ending_capital,omitempty" json:"ending_capital,omitempty"`
	// TradeResult summarizes the trades.
	TradeResult TradeResult `yaml:"trade_result" json:"trade_result"`
	// DerivedFilePath is the path to the derived series CSV file.
	DerivedFilePath string `yaml:"derived_file_path,omitempty" json:"derived_file_path,omitempty"`
	// ChartFilePath is the path to the rendered chart, if any.
	ChartFilePath string `yaml:"chart_file_path,omitempty" json:"chart_file_path,omitempty"`
}

// OptionToPointer converts an optional value into a pointer, nil when absent.
func OptionToPointer[T any](o optional.Option[T]) *T {
	if o.IsNone() {
		return nil
	}

	v := o.Unwrap()

	return &v
}

func WriteRunStats(path string, stats []RunStats) error {
	data, err := yaml.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to marshal run stats to YAML: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write run stats to file: %w", err)
	}

	return nil
}

// ReadRunStats reads run statistics previously written by WriteRunStats.
func ReadRunStats(path string) ([]RunStats, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read run stats file: %w", err)
	}

	var stats []RunStats
	if err := yaml.Unmarshal(data, &stats); err != nil {
		return nil, fmt.Errorf("failed to unmarshal run stats: %w", err)
	}

	return stats, nil
}
