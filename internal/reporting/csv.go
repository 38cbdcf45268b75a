package reporting

import (
	"fmt"
	"strings"
)

// RenderRunsCSV renders the per-symbol run rows as CSV string.
func RenderRunsCSV(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("symbol,ticks,observations,existing,candidates,inserted,conflicts,cadence_gaps,duration_ms\n")

	// Rows
	for _, row := range r.Runs {
		sb.WriteString(fmt.Sprintf("%s,%d,%d,%d,%d,%d,%d,%d,%d\n",
			row.Symbol,
			row.Ticks,
			row.Observations,
			row.Existing,
			row.Candidates,
			row.Inserted,
			row.Conflicts,
			row.CadenceGaps,
			row.DurationMs,
		))
	}

	return sb.String()
}
