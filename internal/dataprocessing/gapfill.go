package dataprocessing

import (
	"fmt"

	"rejectcli/pkg/contracts/domain"
)

// GapFillStrategy chooses how missing trend rates are filled for display.
type GapFillStrategy string

const (
	GapFillNone      GapFillStrategy = "none"
	GapFillMean      GapFillStrategy = "mean"
	GapFillNeighbors GapFillStrategy = "neighbors"
)

// ParseGapFillStrategy validates a strategy name; empty selects none.
func ParseGapFillStrategy(s string) (GapFillStrategy, error) {
	switch GapFillStrategy(s) {
	case "", GapFillNone:
		return GapFillNone, nil
	case GapFillMean, GapFillNeighbors:
		return GapFillStrategy(s), nil
	}
	return "", fmt.Errorf("unknown gap fill strategy %q (want none, mean or neighbors)", s)
}

// GapFiller synthesizes rates for points whose rate is missing. Filled
// points are flagged so they are never mistaken for measurements.
type GapFiller struct {
	strategy GapFillStrategy
}

// NewGapFiller creates a gap filler.
func NewGapFiller(strategy GapFillStrategy) *GapFiller {
	return &GapFiller{strategy: strategy}
}

// GapFillStatistics summarizes one fill pass.
type GapFillStatistics struct {
	TotalPoints   int
	MissingPoints int
	FilledPoints  int
}

// Fill returns a new series; the input is never modified.
func (g *GapFiller) Fill(series *domain.TrendSeries) *domain.TrendSeries {
	filled, _ := g.FillWithStats(series)
	return filled
}

// FillWithStats is Fill plus counts of missing and filled points.
func (g *GapFiller) FillWithStats(series *domain.TrendSeries) (*domain.TrendSeries, GapFillStatistics) {
	if series == nil {
		return nil, GapFillStatistics{}
	}

	out := &domain.TrendSeries{
		Sheet:  series.Sheet,
		Points: make([]domain.TrendPoint, len(series.Points)),
	}
	copy(out.Points, series.Points)

	stats := GapFillStatistics{TotalPoints: len(out.Points)}
	for _, p := range out.Points {
		if p.Rate == nil {
			stats.MissingPoints++
		}
	}
	if stats.MissingPoints == 0 || stats.MissingPoints == stats.TotalPoints {
		return out, stats
	}

	switch g.strategy {
	case GapFillMean:
		mean := domain.Float(meanRate(series.Points))
		for i := range out.Points {
			if out.Points[i].Rate == nil {
				out.Points[i].Rate = mean
				out.Points[i].Filled = true
				stats.FilledPoints++
			}
		}

	case GapFillNeighbors:
		for i := range out.Points {
			if out.Points[i].Rate != nil {
				continue
			}
			prev, next := neighborRates(series.Points, i)
			var v float64
			switch {
			case prev != nil && next != nil:
				v = (*prev + *next) / 2
			case prev != nil:
				v = *prev
			default:
				v = *next
			}
			out.Points[i].Rate = domain.Float(v)
			out.Points[i].Filled = true
			stats.FilledPoints++
		}
	}

	return out, stats
}

func meanRate(points []domain.TrendPoint) float64 {
	sum, n := 0.0, 0
	for _, p := range points {
		if p.Rate != nil {
			sum += *p.Rate
			n++
		}
	}
	return sum / float64(n)
}

// neighborRates returns the nearest measured rates before and after i.
func neighborRates(points []domain.TrendPoint, i int) (prev, next *float64) {
	for j := i - 1; j >= 0; j-- {
		if points[j].Rate != nil {
			prev = points[j].Rate
			break
		}
	}
	for j := i + 1; j < len(points); j++ {
		if points[j].Rate != nil {
			next = points[j].Rate
			break
		}
	}
	return prev, next
}
