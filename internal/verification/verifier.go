// Package verification recomputes feature rows from raw data and compares
// them with what the feature store holds. It never writes.
package verification

import (
	"context"
	"math"

	"crptrix-feature-lab/internal/domain"
)

// FloatTolerance is the tolerance for float64 comparisons.
const FloatTolerance = 1e-9

// FieldDivergence represents a mismatch between stored and recomputed values.
type FieldDivergence struct {
	Field    string // column name
	Expected any    // stored value
	Actual   any    // recomputed value
}

// RowResult contains the comparison of a single stored row.
type RowResult struct {
	TimestampMs int64
	Divergences []FieldDivergence
}

// Report contains the verification results for one symbol.
type Report struct {
	Symbol     string
	Stored     int         // rows in the feature store
	Recomputed int         // rows a fresh computation yields
	Matched    int         // stored rows equal to their recomputation
	Divergent  int         // stored rows that differ from their recomputation
	Missing    int         // recomputed rows with no stored counterpart
	Orphaned   int         // stored rows the current raw data no longer yields
	Results    []RowResult // divergent rows only
}

// OK reports whether every stored row matches and nothing is missing.
func (r *Report) OK() bool {
	return r.Divergent == 0 && r.Missing == 0 && r.Orphaned == 0
}

// Verifier verifies stored feature rows.
type Verifier interface {
	// VerifySymbol recomputes every candidate row for symbol and compares.
	VerifySymbol(ctx context.Context, symbol string) (*Report, error)
}

// CompareFeatureRows compares two rows with the same key and returns divergences.
// Floats use FloatTolerance; the label must match exactly.
func CompareFeatureRows(stored, recomputed *domain.FeatureRow) []FieldDivergence {
	var divergences []FieldDivergence

	if stored.Symbol != recomputed.Symbol {
		divergences = append(divergences, FieldDivergence{
			Field:    "symbol",
			Expected: stored.Symbol,
			Actual:   recomputed.Symbol,
		})
	}

	storedVector := stored.Vector()
	recomputedVector := recomputed.Vector()
	for i, col := range domain.FeatureColumns {
		if !floatEquals(storedVector[i], recomputedVector[i]) {
			divergences = append(divergences, FieldDivergence{
				Field:    col,
				Expected: storedVector[i],
				Actual:   recomputedVector[i],
			})
		}
	}

	if stored.Label != recomputed.Label {
		divergences = append(divergences, FieldDivergence{
			Field:    domain.ColLabel,
			Expected: stored.Label,
			Actual:   recomputed.Label,
		})
	}

	return divergences
}

// floatEquals compares two float64 values within FloatTolerance.
// NaN never equals anything.
func floatEquals(a, b float64) bool {
	return math.Abs(a-b) <= FloatTolerance
}
