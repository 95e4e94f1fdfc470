package store

import (
	"github.com/montanaflynn/stats"

	"github.com/JonMunkholm/RosterImport/internal/roster"
)

// Summary aggregates a window of recorded submissions.
type Summary struct {
	Batches   int `json:"batches"`
	Errors    int `json:"errors"`
	Attempted int `json:"attempted"`
	Created   int `json:"created"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`

	// AcceptanceRate is the mean per-batch share of attempted rows the
	// backend created. Batches with nothing attempted are left out.
	AcceptanceRate float64 `json:"acceptanceRate"`

	DurationMs DurationStats `json:"durationMs"`
}

// DurationStats describes submission round-trip times in milliseconds.
type DurationStats struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	P95    float64 `json:"p95"`
	Max    float64 `json:"max"`
}

// Summarize aggregates batches. An empty slice yields a zero Summary.
func Summarize(batches []Batch) (Summary, error) {
	var (
		sum       Summary
		durations stats.Float64Data
		rates     stats.Float64Data
	)

	for _, b := range batches {
		sum.Batches++
		if b.Status == roster.StatusError {
			sum.Errors++
		}
		sum.Attempted += b.Attempted
		sum.Created += b.Created
		sum.Skipped += b.Skipped
		sum.Failed += b.Failed

		durations = append(durations, float64(b.Duration.Milliseconds()))
		if b.Attempted > 0 {
			rates = append(rates, float64(b.Created)/float64(b.Attempted))
		}
	}

	if len(durations) > 0 {
		var err error
		if sum.DurationMs.Mean, err = durations.Mean(); err != nil {
			return Summary{}, err
		}
		if sum.DurationMs.Median, err = durations.Median(); err != nil {
			return Summary{}, err
		}
		if sum.DurationMs.P95, err = durations.PercentileNearestRank(95); err != nil {
			return Summary{}, err
		}
		if sum.DurationMs.Max, err = durations.Max(); err != nil {
			return Summary{}, err
		}
	}

	if len(rates) > 0 {
		rate, err := rates.Mean()
		if err != nil {
			return Summary{}, err
		}
		sum.AcceptanceRate, err = stats.Round(rate, 4)
		if err != nil {
			return Summary{}, err
		}
	}
	return sum, nil
}
