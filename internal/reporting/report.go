// Package reporting renders run, data quality and verification summaries
// of the feature pipeline as Markdown and CSV.
package reporting

import (
	"sort"
	"time"

	"crptrix-feature-lab/internal/pipeline"
	"crptrix-feature-lab/internal/verification"
)

// Report is the summary of one featurize invocation.
type Report struct {
	GeneratedAt time.Time

	// Runs (sorted by symbol)
	Runs []RunRow

	// Data Quality (sufficiency checks per symbol, sorted by symbol)
	DataQuality []DataQualitySection

	// Verification (sorted by symbol)
	Verification []VerificationRow
}

// RunRow is one per-symbol run.
type RunRow struct {
	Symbol       string
	Ticks        int
	Observations int
	Existing     int
	Candidates   int
	Inserted     int
	Conflicts    int
	CadenceGaps  int
	DurationMs   int64
}

// DataQualitySection contains the sufficiency checks for one symbol.
type DataQualitySection struct {
	Symbol          string
	Checks          []SufficiencyCheckRow
	IntegrityErrors []string
	AllChecksPassed bool
}

// SufficiencyCheckRow represents one sufficiency criterion.
type SufficiencyCheckRow struct {
	Name      string
	Threshold string
	Actual    string
	Pass      bool
}

// VerificationRow summarizes one symbol's verification.
type VerificationRow struct {
	Symbol    string
	Stored    int
	Matched   int
	Divergent int
	Missing   int
	Orphaned  int
}

// Build assembles a report. Any of the inputs may be empty.
func Build(
	generatedAt time.Time,
	runs []*pipeline.RunResult,
	quality []*pipeline.SufficiencyResult,
	verifications []*verification.Report,
) *Report {
	r := &Report{GeneratedAt: generatedAt}

	for _, res := range runs {
		if res == nil {
			continue
		}
		row := RunRow{
			Symbol:       res.Symbol,
			Ticks:        res.Ticks,
			Observations: res.Observations,
			Existing:     res.Existing,
			CadenceGaps:  res.Cadence.Gaps,
			DurationMs:   res.Duration.Milliseconds(),
		}
		if res.Write != nil {
			row.Candidates = res.Write.Candidates
			row.Inserted = res.Write.Inserted
			row.Conflicts = res.Write.Conflicts
		}
		r.Runs = append(r.Runs, row)
	}
	sort.Slice(r.Runs, func(i, j int) bool { return r.Runs[i].Symbol < r.Runs[j].Symbol })

	for _, q := range quality {
		if q == nil {
			continue
		}
		section := DataQualitySection{
			Symbol:          q.Symbol,
			IntegrityErrors: q.Errors,
			AllChecksPassed: q.AllPass,
		}
		for _, c := range q.Checks {
			section.Checks = append(section.Checks, SufficiencyCheckRow(c))
		}
		r.DataQuality = append(r.DataQuality, section)
	}
	sort.Slice(r.DataQuality, func(i, j int) bool { return r.DataQuality[i].Symbol < r.DataQuality[j].Symbol })

	for _, v := range verifications {
		if v == nil {
			continue
		}
		r.Verification = append(r.Verification, VerificationRow{
			Symbol:    v.Symbol,
			Stored:    v.Stored,
			Matched:   v.Matched,
			Divergent: v.Divergent,
			Missing:   v.Missing,
			Orphaned:  v.Orphaned,
		})
	}
	sort.Slice(r.Verification, func(i, j int) bool { return r.Verification[i].Symbol < r.Verification[j].Symbol })

	return r
}

// TotalInserted sums inserted rows over all runs.
func (r *Report) TotalInserted() int {
	n := 0
	for _, row := range r.Runs {
		n += row.Inserted
	}
	return n
}
