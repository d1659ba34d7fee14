package writer

import (
	"os"
	"path/filepath"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/rxtech-lab/argo-macd/internal/macd"
	"github.com/rxtech-lab/argo-macd/internal/types"
	"github.com/rxtech-lab/argo-macd/pkg/errors"
)

// DerivedRow is one line of the derived series file.
type DerivedRow struct {
	Date    time.Time       `csv:"date"`
	Value   float64         `csv:"value"`
	EMAFast float64         `csv:"ema_fast"`
	EMASlow float64         `csv:"ema_slow"`
	MACD    float64         `csv:"macd"`
	Signal  float64         `csv:"signal"`
	Event   types.EventType `csv:"event"`
}

// DerivedRows aligns the input series, the derived series and the detected events by position.
func DerivedRows(index *macd.Index) []DerivedRow {
	series := index.Series()
	derived := index.Derived()

	events := make(map[int]types.EventType)
	for _, e := range index.Events() {
		events[e.Position] = e.Type
	}

	rows := make([]DerivedRow, series.Len())
	for i, p := range series {
		rows[i] = DerivedRow{
			Date:    p.Time,
			Value:   p.Value,
			EMAFast: derived.EMAFast[i],
			EMASlow: derived.EMASlow[i],
			MACD:    derived.MACD[i],
			Signal:  derived.Signal[i],
			Event:   events[i],
		}
	}

	return rows
}

// WriteDerivedCSV writes one row per input point to path, creating parent directories.
func WriteDerivedCSV(path string, index *macd.Index) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Wrap(errors.ErrCodeResultWriteFailed, "failed to create output directory", err)
	}

	file, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(errors.ErrCodeResultWriteFailed, err, "failed to create %s", path)
	}
	defer file.Close()

	rows := DerivedRows(index)
	if err := gocsv.MarshalFile(&rows, file); err != nil {
		return errors.Wrapf(errors.ErrCodeResultWriteFailed, err, "failed to write %s", path)
	}

	return nil
}
