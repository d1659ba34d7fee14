package datasource

import (
	"context"

	"github.com/rxtech-lab/argo-macd/internal/types"
)

// Format is the on-disk format of an input file.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

type DataSource interface {
	// Initialize loads the file at path. The format is taken from the file extension.
	Initialize(path string) error
	// Columns returns the column names of the loaded file in file order.
	Columns() ([]string, error)
	// ReadSeries reads timeField and valueField as a time series in file order.
	// It returns a MissingFieldError when either field is absent.
	ReadSeries(ctx context.Context, timeField string, valueField string) (types.TimeSeries, error)
	// Count returns the number of rows in the data source
	Count() (int, error)
	// Close closes the data source and releases any resources
	Close() error
}

// Factory creates an uninitialized DataSource. The engine creates one per data file.
type Factory func() (DataSource, error)
