package datasource

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	_ "github.com/marcboeker/go-duckdb"
	"github.com/rxtech-lab/argo-macd/internal/logger"
	"github.com/rxtech-lab/argo-macd/internal/types"
	"github.com/rxtech-lab/argo-macd/pkg/errors"
	"go.uber.org/zap"
)

const tableName = "source_data"

type DuckDBDataSource struct {
	db     *sql.DB
	logger *logger.Logger
	sq     squirrel.StatementBuilderType
}

// NewDataSource creates a new DuckDB data source backed by the database at path.
// An empty path opens an in-memory database.
// This is distinct from Initialize() which loads an input file into the database.
func NewDataSource(path string, logger *logger.Logger) (DataSource, error) {
	db, err := sql.Open("duckdb", path)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeDataSourceUnavailable, "failed to open duckdb", err)
	}

	return &DuckDBDataSource{
		db:     db,
		logger: logger,
		sq:     squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar),
	}, nil
}

// FormatOf returns the format of path based on its extension.
func FormatOf(path string) (Format, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".csv":
		return FormatCSV, nil
	case ".parquet":
		return FormatParquet, nil
	default:
		return "", errors.Newf(errors.ErrCodeUnsupportedFormat, "unsupported file format: %s", path)
	}
}

// Initialize implements DataSource.
func (d *DuckDBDataSource) Initialize(path string) error {
	d.logger.Debug("Initializing DuckDB data source", zap.String("path", path))

	format, err := FormatOf(path)
	if err != nil {
		return err
	}

	_, err = d.db.Exec(`DROP TABLE IF EXISTS ` + tableName)
	if err != nil {
		return errors.Wrap(errors.ErrCodeQueryFailed, "failed to drop existing table", err)
	}

	reader := "read_csv_auto"
	if format == FormatParquet {
		reader = "read_parquet"
	}

	// Squirrel has no CREATE TABLE AS support and table functions do not accept placeholders
	query := fmt.Sprintf(`CREATE TABLE %s AS SELECT * FROM %s('%s')`,
		tableName, reader, strings.ReplaceAll(path, "'", "''"))

	_, err = d.db.Exec(query)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeDataNotFound, err, "failed to load %s", path)
	}

	return nil
}

// Columns implements DataSource.
func (d *DuckDBDataSource) Columns() ([]string, error) {
	query, args, err := d.sq.
		Select("column_name").
		From("information_schema.columns").
		Where(squirrel.Eq{"table_name": tableName}).
		OrderBy("ordinal_position").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build column query", err)
	}

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query columns", err)
	}
	defer rows.Close()

	columns := []string{}

	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan column name", err)
		}

		columns = append(columns, name)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "error iterating columns", err)
	}

	return columns, nil
}

// ReadSeries implements DataSource.
// Rows keep file order. NULL values are read as NaN; a NULL time is an error.
func (d *DuckDBDataSource) ReadSeries(ctx context.Context, timeField string, valueField string) (types.TimeSeries, error) {
	columns, err := d.Columns()
	if err != nil {
		return nil, err
	}

	for _, field := range []string{timeField, valueField} {
		if !containsColumn(columns, field) {
			return nil, errors.NewMissingFieldError(field, columns)
		}
	}

	query, args, err := d.sq.
		Select(
			fmt.Sprintf("CAST(%s AS TIMESTAMP)", quoteIdentifier(timeField)),
			fmt.Sprintf("CAST(%s AS DOUBLE)", quoteIdentifier(valueField)),
		).
		From(tableName).
		OrderBy("rowid").
		ToSql()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build series query", err)
	}

	d.logger.Debug("Reading series",
		zap.String("time_field", timeField),
		zap.String("value_field", valueField),
		zap.String("query", query),
	)

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to query series", err)
	}
	defer rows.Close()

	series := types.TimeSeries{}

	for rows.Next() {
		var (
			timestamp sql.NullTime
			value     sql.NullFloat64
		)

		if err := rows.Scan(&timestamp, &value); err != nil {
			return nil, errors.Wrap(errors.ErrCodeQueryFailed, "failed to scan row", err)
		}

		if !timestamp.Valid {
			return nil, errors.Newf(errors.ErrCodeInvalidParameter, "row %d has no %s", len(series), timeField)
		}

		v := math.NaN()
		if value.Valid {
			v = value.Float64
		}

		series = append(series, types.Point{Time: timestamp.Time.In(time.UTC), Value: v})
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeQueryFailed, "error iterating rows", err)
	}

	return series, nil
}

// Count implements DataSource.
func (d *DuckDBDataSource) Count() (int, error) {
	query, args, err := d.sq.Select("COUNT(*)").From(tableName).ToSql()
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "failed to build count query", err)
	}

	var count int
	if err := d.db.QueryRow(query, args...).Scan(&count); err != nil {
		return 0, errors.Wrap(errors.ErrCodeQueryFailed, "failed to count rows", err)
	}

	return count, nil
}

// Close implements DataSource.
func (d *DuckDBDataSource) Close() error {
	if d.db != nil {
		return d.db.Close()
	}

	return nil
}

func containsColumn(columns []string, name string) bool {
	for _, c := range columns {
		if c == name {
			return true
		}
	}

	return false
}

func quoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
