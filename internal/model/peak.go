package model

import (
	"encoding/json"
)

// PeakKind tells local and global peaks apart.
type PeakKind string

const (
	PeakLocal  PeakKind = "LOCAL"
	PeakGlobal PeakKind = "GLOBAL"
)

// Peak is a dated 7-day rolling average value. The zero value is unset.
type Peak struct {
	Date  string
	Value Float
}

// IsSet reports whether the peak has been established.
func (p Peak) IsSet() bool { return p.Date != "" && p.Value.Valid }

type peakJSON struct {
	Date  *string `json:"Date"`
	Value Float   `json:"Value"`
}

func (p Peak) MarshalJSON() ([]byte, error) {
	out := peakJSON{Value: p.Value}
	if p.IsSet() {
		out.Date = &p.Date
	} else {
		out.Value = Float{}
	}
	return json.Marshal(out)
}

func (p *Peak) UnmarshalJSON(data []byte) error {
	var in peakJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}
	*p = Peak{}
	if in.Date != nil && in.Value.Valid {
		p.Date = *in.Date
		p.Value = in.Value
	}
	return nil
}

// MetricPeaks is the peak pair kept for one metric.
type MetricPeaks struct {
	Local  Peak `json:"Local"`
	Global Peak `json:"Global"`
}

// Get returns the peak of the given kind.
func (m MetricPeaks) Get(kind PeakKind) Peak {
	if kind == PeakGlobal {
		return m.Global
	}
	return m.Local
}

// PeakState holds the persisted peaks keyed by metric.
type PeakState map[Metric]MetricPeaks

// NewPeakState returns a state with every tracked metric unset.
func NewPeakState() PeakState {
	s := make(PeakState, len(TrackedMetrics))
	for _, m := range TrackedMetrics {
		s[m] = MetricPeaks{}
	}
	return s
}

// Clone returns an independent copy.
func (s PeakState) Clone() PeakState {
	out := make(PeakState, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}
