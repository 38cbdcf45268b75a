package reporting

import (
	"fmt"
	"strings"
	"time"
)

// RenderMarkdown renders report as Markdown string.
func RenderMarkdown(r *Report) string {
	var sb strings.Builder

	// Header
	sb.WriteString("# Feature Pipeline Report\n\n")
	sb.WriteString(fmt.Sprintf("Generated: %s\n\n", r.GeneratedAt.Format(time.RFC3339)))
	sb.WriteString(fmt.Sprintf("Symbols: %d | Rows inserted: %d\n\n", len(r.Runs), r.TotalInserted()))

	// Runs
	sb.WriteString("## Runs\n\n")
	if len(r.Runs) > 0 {
		sb.WriteString("| Symbol | Ticks | Sentiment | Existing | Candidates | Inserted | Conflicts | Cadence Gaps | Duration (ms) |\n")
		sb.WriteString("|--------|-------|-----------|----------|------------|----------|-----------|--------------|---------------|\n")
		for _, row := range r.Runs {
			sb.WriteString(fmt.Sprintf("| %s | %d | %d | %d | %d | %d | %d | %d | %d |\n",
				row.Symbol, row.Ticks, row.Observations, row.Existing,
				row.Candidates, row.Inserted, row.Conflicts, row.CadenceGaps, row.DurationMs))
		}
	} else {
		sb.WriteString("No runs recorded.\n")
	}
	sb.WriteString("\n")

	// Data Quality
	sb.WriteString("## Data Quality\n\n")
	if len(r.DataQuality) == 0 {
		sb.WriteString("No data quality checks performed.\n\n")
	}
	for _, section := range r.DataQuality {
		sb.WriteString(fmt.Sprintf("### %s\n\n", section.Symbol))
		sb.WriteString("| Check | Threshold | Actual | Status |\n")
		sb.WriteString("|-------|-----------|--------|--------|\n")
		for _, check := range section.Checks {
			status := "FAIL"
			if check.Pass {
				status = "PASS"
			}
			sb.WriteString(fmt.Sprintf("| %s | %s | %s | %s |\n",
				check.Name, check.Threshold, check.Actual, status))
		}
		sb.WriteString("\n")

		if section.AllChecksPassed {
			sb.WriteString("**All checks passed.**\n\n")
		} else {
			sb.WriteString("**Some checks failed.**\n\n")
		}

		if len(section.IntegrityErrors) > 0 {
			sb.WriteString("Integrity errors:\n\n")
			for _, err := range section.IntegrityErrors {
				sb.WriteString(fmt.Sprintf("- %s\n", err))
			}
			sb.WriteString("\n")
		}
	}

	// Verification
	sb.WriteString("## Verification\n\n")
	if len(r.Verification) > 0 {
		sb.WriteString("| Symbol | Stored | Matched | Divergent | Missing | Orphaned |\n")
		sb.WriteString("|--------|--------|---------|-----------|---------|----------|\n")
		for _, v := range r.Verification {
			sb.WriteString(fmt.Sprintf("| %s | %d | %d | %d | %d | %d |\n",
				v.Symbol, v.Stored, v.Matched, v.Divergent, v.Missing, v.Orphaned))
		}
	} else {
		sb.WriteString("Verification not run.\n")
	}
	sb.WriteString("\n")

	return sb.String()
}
