package probe

import (
	"encoding/json"
	"math"
)

// Result is the verdict of a probe run together with the aggregates it was
// computed from. AvgMs is +Inf when no attempt succeeded.
type Result struct {
	Passes bool    `json:"passes"`
	OK     int     `json:"ok"`
	AvgMs  float64 `json:"avgMs"`
	Kbps   float64 `json:"kbps"`
}

// resultJSON mirrors Result with a nullable average, since JSON cannot
// represent infinity.
type resultJSON struct {
	Passes bool     `json:"passes"`
	OK     int      `json:"ok"`
	AvgMs  *float64 `json:"avgMs"`
	Kbps   float64  `json:"kbps"`
}

// HasLatency reports whether AvgMs holds a measured value.
func (r Result) HasLatency() bool {
	return !math.IsInf(r.AvgMs, 1)
}

// MarshalJSON encodes an undefined average as null.
func (r Result) MarshalJSON() ([]byte, error) {
	out := resultJSON{Passes: r.Passes, OK: r.OK, Kbps: r.Kbps}
	if r.HasLatency() {
		avg := r.AvgMs
		out.AvgMs = &avg
	}
	return json.Marshal(out)
}

// UnmarshalJSON decodes a null average as +Inf.
func (r *Result) UnmarshalJSON(b []byte) error {
	var in resultJSON
	if err := json.Unmarshal(b, &in); err != nil {
		return err
	}
	*r = Result{Passes: in.Passes, OK: in.OK, AvgMs: math.Inf(1), Kbps: in.Kbps}
	if in.AvgMs != nil {
		r.AvgMs = *in.AvgMs
	}
	return nil
}
