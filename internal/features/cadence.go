package features

import "crptrix-feature-lab/internal/domain"

// CadenceReport describes how far a price sequence deviates from the
// one-tick-per-hour cadence the index-based windows assume.
type CadenceReport struct {
	Ticks      int   // number of ticks inspected
	Gaps       int   // consecutive pairs whose spacing != domain.TickIntervalMs
	MaxSpacing int64 // largest spacing seen (ms)
	MinSpacing int64 // smallest spacing seen (ms)
}

// Aligned reports whether every spacing equals domain.TickIntervalMs.
func (r CadenceReport) Aligned() bool {
	return r.Gaps == 0
}

// CheckCadence inspects a timestamp-ordered price sequence. It does not change
// how windows are computed; callers use it to surface misalignment between the
// index-based price window and the wall-clock sentiment window.
func CheckCadence(prices []*domain.PriceTick) CadenceReport {
	report := CadenceReport{Ticks: len(prices)}

	for i := 1; i < len(prices); i++ {
		spacing := prices[i].TimestampMs - prices[i-1].TimestampMs
		if spacing != domain.TickIntervalMs {
			report.Gaps++
		}
		if i == 1 || spacing > report.MaxSpacing {
			report.MaxSpacing = spacing
		}
		if i == 1 || spacing < report.MinSpacing {
			report.MinSpacing = spacing
		}
	}

	return report
}
