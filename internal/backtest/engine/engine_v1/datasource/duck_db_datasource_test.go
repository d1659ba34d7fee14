package datasource

import (
	"context"
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rxtech-lab/argo-macd/internal/logger"
	"github.com/rxtech-lab/argo-macd/pkg/errors"
	"github.com/stretchr/testify/suite"
)

// DuckDBTestSuite is a test suite for DuckDBDataSource
type DuckDBTestSuite struct {
	suite.Suite
	ds     DataSource
	logger *logger.Logger
	dir    string
}

func TestDuckDBDataSourceSuite(t *testing.T) {
	suite.Run(t, new(DuckDBTestSuite))
}

func (suite *DuckDBTestSuite) SetupSuite() {
	suite.logger = logger.NewNopLogger()
}

func (suite *DuckDBTestSuite) SetupTest() {
	ds, err := NewDataSource("", suite.logger)
	suite.Require().NoError(err)

	suite.ds = ds
	suite.dir = suite.T().TempDir()
}

func (suite *DuckDBTestSuite) TearDownTest() {
	if suite.ds != nil {
		suite.NoError(suite.ds.Close())
		suite.ds = nil
	}
}

func (suite *DuckDBTestSuite) writeFile(name, content string) string {
	path := filepath.Join(suite.dir, name)
	suite.Require().NoError(os.WriteFile(path, []byte(content), 0o600))

	return path
}

func (suite *DuckDBTestSuite) TestFormatOf() {
	tests := []struct {
		path        string
		expected    Format
		expectError bool
	}{
		{path: "data/AAPL.csv", expected: FormatCSV},
		{path: "data/AAPL.CSV", expected: FormatCSV},
		{path: "data/AAPL.parquet", expected: FormatParquet},
		{path: "data/AAPL.json", expectError: true},
		{path: "data/AAPL", expectError: true},
	}

	for _, tc := range tests {
		suite.Run(tc.path, func() {
			format, err := FormatOf(tc.path)
			if tc.expectError {
				suite.Error(err)
				suite.True(errors.HasCode(err, errors.ErrCodeUnsupportedFormat))

				return
			}

			suite.NoError(err)
			suite.Equal(tc.expected, format)
		})
	}
}

func (suite *DuckDBTestSuite) TestReadSeriesFromCSV() {
	path := suite.writeFile("prices.csv", "date,value,volume\n"+
		"2024-01-01,10.5,100\n"+
		"2024-01-02,11,200\n"+
		"2024-01-03,9.25,300\n")

	suite.Require().NoError(suite.ds.Initialize(path))

	count, err := suite.ds.Count()
	suite.NoError(err)
	suite.Equal(3, count)

	columns, err := suite.ds.Columns()
	suite.NoError(err)
	suite.Equal([]string{"date", "value", "volume"}, columns)

	series, err := suite.ds.ReadSeries(context.Background(), "date", "value")
	suite.NoError(err)
	suite.Require().Len(series, 3)
	suite.Equal([]float64{10.5, 11, 9.25}, series.Values())
	suite.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), series[0].Time)
	suite.Equal(time.Date(2024, 1, 3, 0, 0, 0, 0, time.UTC), series[2].Time)
}

func (suite *DuckDBTestSuite) TestReadSeriesKeepsFileOrder() {
	path := suite.writeFile("unsorted.csv", "date,value\n"+
		"2024-01-03,3\n"+
		"2024-01-01,1\n"+
		"2024-01-02,2\n")

	suite.Require().NoError(suite.ds.Initialize(path))

	series, err := suite.ds.ReadSeries(context.Background(), "date", "value")
	suite.NoError(err)
	suite.Equal([]float64{3, 1, 2}, series.Values())
}

func (suite *DuckDBTestSuite) TestReadSeriesCustomFields() {
	path := suite.writeFile("custom.csv", "timestamp,close\n"+
		"2024-01-01 09:30:00,100\n"+
		"2024-01-01 09:31:00,101\n")

	suite.Require().NoError(suite.ds.Initialize(path))

	series, err := suite.ds.ReadSeries(context.Background(), "timestamp", "close")
	suite.NoError(err)
	suite.Equal([]float64{100, 101}, series.Values())
	suite.Equal(time.Date(2024, 1, 1, 9, 31, 0, 0, time.UTC), series[1].Time)
}

func (suite *DuckDBTestSuite) TestReadSeriesMissingField() {
	path := suite.writeFile("prices.csv", "date,close\n2024-01-01,1\n")
	suite.Require().NoError(suite.ds.Initialize(path))

	_, err := suite.ds.ReadSeries(context.Background(), "date", "value")
	suite.Error(err)
	suite.True(errors.IsMissingFieldError(err))

	var missing *errors.MissingFieldError
	suite.Require().True(errors.As(err, &missing))
	suite.Equal("value", missing.Field)
	suite.ElementsMatch([]string{"date", "close"}, missing.Available)

	_, err = suite.ds.ReadSeries(context.Background(), "time", "close")
	suite.True(errors.IsMissingFieldError(err))
	suite.Contains(err.Error(), "'time'")
}

func (suite *DuckDBTestSuite) TestReadSeriesNullValueIsNaN() {
	path := suite.writeFile("gaps.csv", "date,value\n"+
		"2024-01-01,1\n"+
		"2024-01-02,\n"+
		"2024-01-03,3\n")

	suite.Require().NoError(suite.ds.Initialize(path))

	series, err := suite.ds.ReadSeries(context.Background(), "date", "value")
	suite.NoError(err)
	suite.Require().Len(series, 3)
	suite.True(math.IsNaN(series[1].Value))
	suite.Equal(3.0, series[2].Value)
}

func (suite *DuckDBTestSuite) TestReadSeriesFromParquet() {
	csvPath := suite.writeFile("source.csv", "date,value\n"+
		"2024-01-01,1.5\n"+
		"2024-01-02,2.5\n")
	parquetPath := filepath.Join(suite.dir, "prices.parquet")

	// round-trip through a second source to produce the parquet file
	writer, err := NewDataSource("", suite.logger)
	suite.Require().NoError(err)

	defer writer.Close()

	suite.Require().NoError(writer.Initialize(csvPath))

	duck, ok := writer.(*DuckDBDataSource)
	suite.Require().True(ok)

	_, err = duck.db.Exec("COPY " + tableName + " TO '" + parquetPath + "' (FORMAT PARQUET)")
	suite.Require().NoError(err)

	suite.Require().NoError(suite.ds.Initialize(parquetPath))

	series, err := suite.ds.ReadSeries(context.Background(), "date", "value")
	suite.NoError(err)
	suite.Equal([]float64{1.5, 2.5}, series.Values())
}

func (suite *DuckDBTestSuite) TestInitializeReplacesPreviousFile() {
	first := suite.writeFile("first.csv", "date,value\n2024-01-01,1\n2024-01-02,2\n")
	second := suite.writeFile("second.csv", "date,value\n2024-01-01,5\n")

	suite.Require().NoError(suite.ds.Initialize(first))
	suite.Require().NoError(suite.ds.Initialize(second))

	count, err := suite.ds.Count()
	suite.NoError(err)
	suite.Equal(1, count)
}

func (suite *DuckDBTestSuite) TestInitializeErrors() {
	err := suite.ds.Initialize(filepath.Join(suite.dir, "prices.txt"))
	suite.True(errors.HasCode(err, errors.ErrCodeUnsupportedFormat))

	err = suite.ds.Initialize(filepath.Join(suite.dir, "missing.csv"))
	suite.True(errors.HasCode(err, errors.ErrCodeDataNotFound))
}

func (suite *DuckDBTestSuite) TestReadSeriesCancelledContext() {
	path := suite.writeFile("prices.csv", "date,value\n2024-01-01,1\n")
	suite.Require().NoError(suite.ds.Initialize(path))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := suite.ds.ReadSeries(ctx, "date", "value")
	suite.Error(err)
}
