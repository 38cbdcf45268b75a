package pipeline

import (
	"context"
	"fmt"
	"iter"
	"time"

	"github.com/rs/zerolog"

	"crptrix-feature-lab/internal/domain"
	"crptrix-feature-lab/internal/observability"
	"crptrix-feature-lab/internal/storage"
)

// WriteResult counts what happened to the candidates of one write.
type WriteResult struct {
	Candidates int // rows yielded by the candidate sequence
	Skipped    int // rows dropped because the snapshot already had their timestamp
	Staged     int // rows sent to the store
	Inserted   int // rows the store actually inserted
	Conflicts  int // staged rows a concurrent writer committed first
}

// Writer persists newly computed feature rows. Existing rows are never
// updated; the store's insert-or-ignore resolves races with other writers.
type Writer struct {
	store   storage.FeatureStore
	logger  zerolog.Logger
	metrics *observability.Metrics
}

// NewWriter creates a new Writer.
func NewWriter(store storage.FeatureStore, logger zerolog.Logger) *Writer {
	return &Writer{
		store:  store,
		logger: logger.With().Str("component", "feature_writer").Logger(),
	}
}

// WithMetrics records store call timings on m.
func (w *Writer) WithMetrics(m *observability.Metrics) *Writer {
	w.metrics = m
	return w
}

// Write stages every candidate whose timestamp is not in existing and
// inserts them in a single store call (one transaction). An empty stage
// makes no store call.
func (w *Writer) Write(
	ctx context.Context,
	symbol string,
	candidates iter.Seq[*domain.FeatureRow],
	existing map[int64]struct{},
) (*WriteResult, error) {
	result := &WriteResult{}

	var staged []*domain.FeatureRow
	for row := range candidates {
		result.Candidates++
		if _, ok := existing[row.TimestampMs]; ok {
			result.Skipped++
			continue
		}
		staged = append(staged, row)
	}
	result.Staged = len(staged)

	if len(staged) == 0 {
		w.logger.Debug().Str("symbol", symbol).Int("candidates", result.Candidates).Msg("nothing to write")
		return result, nil
	}

	start := time.Now()
	inserted, err := w.store.InsertIfAbsent(ctx, staged)
	w.metrics.RecordDBQuery("features", "insert_if_absent", time.Since(start).Seconds(), err)
	if err != nil {
		return nil, fmt.Errorf("insert %d feature rows: %w", len(staged), err)
	}

	result.Inserted = inserted
	result.Conflicts = len(staged) - inserted

	if result.Conflicts > 0 {
		w.logger.Warn().
			Str("symbol", symbol).
			Int("staged", result.Staged).
			Int("conflicts", result.Conflicts).
			Msg("rows already inserted by a concurrent run; kept existing values")
	}

	return result, nil
}
