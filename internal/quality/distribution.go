package quality

import (
	"encoding/json"

	"github.com/DataDog/sketches-go/ddsketch"
)

// quantileAccuracy is the relative accuracy of reported quantiles.
const quantileAccuracy = 0.01

// Distribution tracks approximate quantiles of one measured value across
// every hour a run checks. The zero value is ready to use.
type Distribution struct {
	count  int
	sketch *ddsketch.DDSketch
}

// Add records one value.
func (d *Distribution) Add(v float64) {
	if d.sketch == nil {
		s, err := ddsketch.NewDefaultDDSketch(quantileAccuracy)
		if err != nil {
			return
		}
		d.sketch = s
	}
	if err := d.sketch.Add(v); err == nil {
		d.count++
	}
}

// Count is the number of recorded values.
func (d Distribution) Count() int {
	return d.count
}

// Quantile returns the approximate value at q in [0, 1]. ok is false when
// nothing was recorded.
func (d Distribution) Quantile(q float64) (v float64, ok bool) {
	if d.sketch == nil || d.count == 0 {
		return 0, false
	}
	v, err := d.sketch.GetValueAtQuantile(q)
	if err != nil {
		return 0, false
	}
	return v, true
}

type distributionJSON struct {
	Count int      `json:"count"`
	P05   *float64 `json:"p05,omitempty"`
	P50   *float64 `json:"p50,omitempty"`
	P95   *float64 `json:"p95,omitempty"`
}

// MarshalJSON renders the count and the 5th, 50th and 95th percentiles.
func (d Distribution) MarshalJSON() ([]byte, error) {
	out := distributionJSON{Count: d.count}
	at := func(q float64) *float64 {
		if v, ok := d.Quantile(q); ok {
			return &v
		}
		return nil
	}
	out.P05, out.P50, out.P95 = at(0.05), at(0.50), at(0.95)
	return json.Marshal(out)
}
