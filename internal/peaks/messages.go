package peaks

import (
	"fmt"

	"CovidSentinel/internal/model"
)

// NoPeaks is sent when a check raised nothing.
const NoPeaks = "No peaks today."

// Letter abbreviates a metric in event messages.
func Letter(m model.Metric) string {
	if m == "" {
		return "?"
	}
	return string(m[0])
}

// Messages renders the events in r. Creation precedes the matching peak line,
// global precedes local, and expiries come last.
func Messages(r Result) []string {
	var lines, expired []string
	for _, m := range r.Metrics {
		f := r.Flags[m]
		tag := fmt.Sprintf("RA(7, '%s')", Letter(m))
		if f.CreatedGlobal {
			lines = append(lines, fmt.Sprintf("New global %s record created.", tag))
		}
		if f.NewGlobal {
			lines = append(lines, fmt.Sprintf("New global %s peak.", tag))
		}
		if f.CreatedLocal {
			lines = append(lines, fmt.Sprintf("New local %s record created.", tag))
		}
		if f.NewLocal {
			lines = append(lines, fmt.Sprintf("New local %s peak.", tag))
		}
		if f.ExpiredLocal {
			expired = append(expired, fmt.Sprintf("Local %s peak expired.", tag))
		}
	}
	lines = append(lines, expired...)
	if len(lines) == 0 {
		return []string{NoPeaks}
	}
	return lines
}
