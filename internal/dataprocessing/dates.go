package dataprocessing

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrDateParse is matched by every DateParseError.
var ErrDateParse = errors.New("date parse failure")

// TrendDateLayouts are tried, in order, for the aggregate sheet's date column.
// Day-first wins for ambiguous input such as 03/04/2024.
var TrendDateLayouts = []string{
	"2/1/2006",
	"2006-1-2",
	"1/2/2006",
}

// DetailDateLayouts are tried, in order, for the row-oriented detail sheet.
var DetailDateLayouts = []string{
	"2-1-2006",
	"1-2-2006",
	"2006-1-2",
	"2/1/2006",
	"1/2/2006",
	"2006/1/2",
	"January 2, 2006",
	"2 January 2006",
	"Jan 2, 2006",
	"2 Jan 2006",
}

// DateParseError reports an input no layout accepted.
type DateParseError struct {
	Input   string
	Layouts []string
}

func (e *DateParseError) Error() string {
	if strings.TrimSpace(e.Input) == "" {
		return "date parse failure: empty input"
	}
	return fmt.Sprintf("date parse failure: %q matches none of %d formats", e.Input, len(e.Layouts))
}

func (e *DateParseError) Unwrap() error {
	return ErrDateParse
}

// DateParser parses calendar dates against a fixed, ordered list of layouts.
type DateParser struct {
	layouts []string
}

// NewDateParser returns a parser trying layouts in the given order.
func NewDateParser(layouts ...string) *DateParser {
	return &DateParser{layouts: append([]string(nil), layouts...)}
}

// Parse returns the first successful parse, as a UTC calendar date. Empty or
// unparsable input yields false; it never substitutes the current date.
func (p *DateParser) Parse(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}

	for _, layout := range p.layouts {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return time.Date(y, m, d, 0, 0, 0, 0, time.UTC), true
		}
	}
	return time.Time{}, false
}

// ParseStrict is Parse returning a *DateParseError instead of false.
func (p *DateParser) ParseStrict(s string) (time.Time, error) {
	if t, ok := p.Parse(s); ok {
		return t, nil
	}
	return time.Time{}, &DateParseError{Input: s, Layouts: p.layouts}
}

// Layouts returns a copy of the layouts in try order.
func (p *DateParser) Layouts() []string {
	return append([]string(nil), p.layouts...)
}
