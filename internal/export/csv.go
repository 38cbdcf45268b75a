// Package export writes feature rows as a training set in model column order.
package export

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"

	"crptrix-feature-lab/internal/domain"
)

// Header returns the CSV header: symbol, timestamp_ms, then domain.Columns.
func Header() []string {
	return append([]string{"symbol", "timestamp_ms"}, domain.Columns...)
}

// WriteCSV writes rows ordered by (symbol, timestamp) with the header first.
// The input slice is not reordered.
func WriteCSV(w io.Writer, rows []*domain.FeatureRow) error {
	sorted := make([]*domain.FeatureRow, len(rows))
	copy(sorted, rows)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Symbol != sorted[j].Symbol {
			return sorted[i].Symbol < sorted[j].Symbol
		}
		return sorted[i].TimestampMs < sorted[j].TimestampMs
	})

	cw := csv.NewWriter(w)
	if err := cw.Write(Header()); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	record := make([]string, 0, len(domain.Columns)+2)
	for _, r := range sorted {
		record = record[:0]
		record = append(record, r.Symbol, strconv.FormatInt(r.TimestampMs, 10))
		for _, v := range r.Vector() {
			record = append(record, strconv.FormatFloat(v, 'g', -1, 64))
		}
		record = append(record, strconv.Itoa(r.Label))

		if err := cw.Write(record); err != nil {
			return fmt.Errorf("write row %s@%d: %w", r.Symbol, r.TimestampMs, err)
		}
	}

	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
