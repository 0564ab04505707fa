package dataprocessing

import (
	"math"
	"sort"
	"time"

	"rejectcli/pkg/contracts/domain"
)

// CategoryStats groups the clean table by category and describes the rates
// of each group. Groups are ordered by ascending category value. The sample
// standard deviation is nil for groups with a single member.
func CategoryStats(t *domain.CleanTable) []domain.GroupStats {
	if t == nil || len(t.Records) == 0 {
		return nil
	}

	groups := make(map[float64][]float64)
	for _, r := range t.Records {
		groups[r.Category] = append(groups[r.Category], r.Rate)
	}

	categories := make([]float64, 0, len(groups))
	for c := range groups {
		categories = append(categories, c)
	}
	sort.Float64s(categories)

	stats := make([]domain.GroupStats, 0, len(categories))
	for _, c := range categories {
		rates := groups[c]
		if len(rates) == 0 {
			// NaN keys never match on lookup
			continue
		}
		s := domain.GroupStats{
			Category: c,
			Count:    len(rates),
			Min:      rates[0],
			Max:      rates[0],
		}

		sum := 0.0
		for _, v := range rates {
			sum += v
			s.Min = math.Min(s.Min, v)
			s.Max = math.Max(s.Max, v)
		}
		s.Mean = sum / float64(len(rates))

		if len(rates) > 1 {
			ss := 0.0
			for _, v := range rates {
				d := v - s.Mean
				ss += d * d
			}
			s.StdDev = domain.Float(math.Sqrt(ss / float64(len(rates)-1)))
		}

		stats = append(stats, s)
	}
	return stats
}

// PivotByDate averages rates per (date, category) and lays them out as one
// line per category, in order of first appearance, over ascending dates.
func PivotByDate(t *domain.CleanTable) *domain.MultiSeries {
	out := &domain.MultiSeries{Dates: []time.Time{}, Series: []domain.CategoryLine{}}
	if t == nil || len(t.Records) == 0 {
		return out
	}

	type cellKey struct {
		date     time.Time
		category float64
	}
	type acc struct {
		sum float64
		n   int
	}

	var (
		cells      = make(map[cellKey]*acc)
		seenDates  = make(map[time.Time]bool)
		categories []float64
		seenCats   = make(map[float64]bool)
	)

	for _, r := range t.Records {
		k := cellKey{date: r.Date, category: r.Category}
		a := cells[k]
		if a == nil {
			a = &acc{}
			cells[k] = a
		}
		a.sum += r.Rate
		a.n++

		if !seenDates[r.Date] {
			seenDates[r.Date] = true
			out.Dates = append(out.Dates, r.Date)
		}
		if !seenCats[r.Category] {
			seenCats[r.Category] = true
			categories = append(categories, r.Category)
		}
	}

	sort.Slice(out.Dates, func(i, j int) bool { return out.Dates[i].Before(out.Dates[j]) })

	for _, c := range categories {
		line := domain.CategoryLine{Category: c, Values: make([]*float64, len(out.Dates))}
		for i, d := range out.Dates {
			if a := cells[cellKey{date: d, category: c}]; a != nil {
				line.Values[i] = domain.Float(a.sum / float64(a.n))
			}
		}
		out.Series = append(out.Series, line)
	}
	return out
}
