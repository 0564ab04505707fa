package domain

import (
	"time"
)

// CategoryShare is one line of a CategoryBreakdown.
type CategoryShare struct {
	Label      string  `json:"label"`
	Count      float64 `json:"count"`
	Percentage float64 `json:"percentage"`
}

// CategoryBreakdown ranks rejection categories against a single grand total.
// Items are sorted by descending percentage, ties in declaration order.
type CategoryBreakdown struct {
	Sheet             string          `json:"sheet"`
	GrandTotal        float64         `json:"grand_total"`
	SubtotalSum       float64         `json:"subtotal_sum"`
	OverallPercentage float64         `json:"overall_percentage"`
	Items             []CategoryShare `json:"items"`
}

// Top returns the n leading items, or all of them when n exceeds the length.
func (b *CategoryBreakdown) Top(n int) []CategoryShare {
	if n < 0 {
		n = 0
	}
	if n > len(b.Items) {
		n = len(b.Items)
	}
	out := make([]CategoryShare, n)
	copy(out, b.Items[:n])
	return out
}

// TrendPoint is one entry of a TrendSeries. Filled marks a rate synthesized
// by gap filling rather than read from the sheet.
type TrendPoint struct {
	Date   time.Time `json:"date"`
	Rate   *float64  `json:"rate"`
	Row    int       `json:"row"`
	Filled bool      `json:"filled,omitempty"`
}

// TrendSeries is ordered by non-decreasing date; duplicate dates are kept.
type TrendSeries struct {
	Sheet  string       `json:"sheet"`
	Points []TrendPoint `json:"points"`
}

// Present returns how many points carry a rate.
func (s *TrendSeries) Present() int {
	n := 0
	for _, p := range s.Points {
		if p.Rate != nil {
			n++
		}
	}
	return n
}

// ColumnRoleMapping names the source header for each semantic role.
type ColumnRoleMapping struct {
	Date     *string `json:"date"`
	Category *string `json:"category"`
	Rate     *string `json:"rate"`
}

// Complete reports whether all three roles are named.
func (m ColumnRoleMapping) Complete() bool {
	return m.Date != nil && m.Category != nil && m.Rate != nil
}

// CleanRecord is a fully coerced row of the detail sheet.
type CleanRecord struct {
	Date     time.Time `json:"date"`
	Category float64   `json:"category"`
	Rate     float64   `json:"rate"`
	Row      int       `json:"row"`
}

// CleanTable is the output of the guided column mapper.
type CleanTable struct {
	Sheet   string        `json:"sheet"`
	Records []CleanRecord `json:"records"`
}

// GroupStats are the descriptive statistics of one category group.
// StdDev is nil for groups with fewer than two members.
type GroupStats struct {
	Category float64  `json:"category"`
	Count    int      `json:"count"`
	Mean     float64  `json:"mean"`
	Min      float64  `json:"min"`
	Max      float64  `json:"max"`
	StdDev   *float64 `json:"std_dev"`
}

// MultiSeries is the (date x category) pivot of average rates.
type MultiSeries struct {
	Dates  []time.Time    `json:"dates"`
	Series []CategoryLine `json:"series"`
}

// CategoryLine holds one category's value per pivot date; nil means no data.
type CategoryLine struct {
	Category float64    `json:"category"`
	Values   []*float64 `json:"values"`
}

// Float returns a pointer to v.
func Float(v float64) *float64 {
	return &v
}

// String returns a pointer to s.
func String(s string) *string {
	return &s
}
