package sheets

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/KaramelBytes/padi-analytics/internal/observability"
	"github.com/KaramelBytes/padi-analytics/internal/survey"
)

// Loader fetches both tables and normalizes them into a dataset. Every call
// re-reads the source; nothing is cached.
type Loader struct {
	Source     Source
	Normalizer *survey.Normalizer
	Logger     *slog.Logger
}

// Load returns a fresh dataset. A fetch failure of either table aborts the
// load with a *FetchError.
func (l *Loader) Load(ctx context.Context) (*survey.Dataset, error) {
	logger := l.Logger
	if logger == nil {
		logger = slog.Default()
	}
	students, err := l.fetch(ctx, Students, l.Source.StudentRows)
	if err != nil {
		logger.Error("row fetch failed", "table", Students, "err", err)
		return nil, err
	}
	teachers, err := l.fetch(ctx, Teachers, l.Source.TeacherRows)
	if err != nil {
		logger.Error("row fetch failed", "table", Teachers, "err", err)
		return nil, err
	}
	ds, sst, tst := l.Normalizer.Dataset(students, teachers)
	observability.RecordNormalize(string(Students), sst.Kept, sst.Dropped, sst.Untimed)
	observability.RecordNormalize(string(Teachers), tst.Kept, tst.Dropped, tst.Untimed)
	logger.Debug("dataset loaded",
		"students", sst.Kept, "students_dropped", sst.Dropped, "students_untimed", sst.Untimed,
		"reflections", tst.Kept, "reflections_dropped", tst.Dropped)
	return ds, nil
}

func (l *Loader) fetch(ctx context.Context, table Table, fn func(context.Context) ([][]string, error)) ([][]string, error) {
	start := time.Now()
	rows, err := fn(ctx)
	observability.RecordFetch(string(table), time.Since(start).Seconds(), err == nil)
	if err != nil {
		var fe *FetchError
		if !errors.As(err, &fe) {
			err = &FetchError{Table: table, Err: err}
		}
		return nil, err
	}
	return rows, nil
}
