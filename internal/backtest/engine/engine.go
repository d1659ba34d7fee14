package engine

import (
	"context"

	"github.com/rxtech-lab/argo-macd/internal/backtest/engine/engine_v1/datasource"
	"github.com/rxtech-lab/argo-macd/internal/types"
)

// Lifecycle callback types for backtest phases
// All callbacks with error return can abort execution if they return an error

// OnBacktestStartCallback is called when the entire backtest begins.
type OnBacktestStartCallback func(totalDataFiles int) error

// OnBacktestEndCallback is called when the entire backtest completes (always called via defer).
type OnBacktestEndCallback func(err error)

// OnRunStartCallback is called when processing of a data file begins.
// runID is a unique identifier for this run, generated before processing starts.
type OnRunStartCallback func(runID string, dataFileIndex int, dataFilePath string, totalDataPoints int) error

// OnRunEndCallback is called when processing of a data file ends.
type OnRunEndCallback func(dataFileIndex int, dataFilePath string, resultFolderPath string)

// LifecycleCallbacks holds all lifecycle callback functions for the backtest engine.
// All fields are pointers - nil means no callback will be invoked.
// Callbacks are never invoked concurrently, even when data files are processed in parallel.
type LifecycleCallbacks struct {
	OnBacktestStart *OnBacktestStartCallback
	OnBacktestEnd   *OnBacktestEndCallback
	OnRunStart      *OnRunStartCallback
	OnRunEnd        *OnRunEndCallback
}

//nolint:interfacebloat // Engine is a core interface that naturally requires multiple methods
type Engine interface {
	// Initialize the engine with the given YAML configuration.
	Initialize(config string) error
	// SetDataPath sets the path to the price data files.
	// Accepts glob patterns for batch loading (e.g., "data/*.parquet").
	// Every matching file is backtested independently.
	SetDataPath(path string) error
	// SetResultsFolder sets the output directory for saving backtest results.
	// Each data file gets a folder named after the file without its extension.
	SetResultsFolder(folder string) error
	// SetDataSourceFactory sets how a data source is created for each data file.
	SetDataSourceFactory(factory datasource.Factory) error
	// Run derives MACD, detects crossovers and backtests every data file.
	// The context can be used to cancel the backtest operation.
	// Use LifecycleCallbacks to receive notifications at different phases of the backtest.
	Run(ctx context.Context, callbacks LifecycleCallbacks) error
	// Results returns the statistics of the last run in data path order.
	Results() []types.RunStats
	// GetConfigSchema returns the schema of the engine configuration
	GetConfigSchema() (string, error)
}
