package domain

import (
	"time"
)

// WarningKind classifies a row-level problem that caused a row to be skipped
// or a value to be read as missing.
type WarningKind string

const (
	WarningMissingDate      WarningKind = "missing_date"
	WarningDateParse        WarningKind = "date_parse_failure"
	WarningMissingRate      WarningKind = "missing_rate"
	WarningMissingCategory  WarningKind = "missing_category"
	WarningNumericCoercion  WarningKind = "numeric_coercion_failure"
	WarningZeroExcluded     WarningKind = "zero_excluded"
	WarningInvalidCellValue WarningKind = "invalid_cell_value"
)

// RowWarning records a non-fatal problem. Row is 1-based as shown by
// spreadsheet applications; 0 means the warning is not tied to a row.
type RowWarning struct {
	Row     int         `json:"row"`
	Column  string      `json:"column,omitempty"`
	Kind    WarningKind `json:"kind"`
	Message string      `json:"message"`
}

// SectionStatus is the outcome of one report section.
type SectionStatus string

const (
	SectionOK     SectionStatus = "ok"
	SectionFailed SectionStatus = "failed"
)

// SectionErrorKind tells a user which class of problem stopped a section.
type SectionErrorKind string

const (
	ErrKindSheetNotFound       SectionErrorKind = "sheet_not_found"
	ErrKindCellOutOfRange      SectionErrorKind = "cell_out_of_range"
	ErrKindEmptyResultSet      SectionErrorKind = "empty_result_set"
	ErrKindMappingUnresolved   SectionErrorKind = "column_mapping_unresolved"
	ErrKindAdvisoryUnavailable SectionErrorKind = "advisory_service_unavailable"
	ErrKindInternal            SectionErrorKind = "internal"
)

// SectionError is the serializable failure of one section.
type SectionError struct {
	Kind    SectionErrorKind `json:"kind"`
	Message string           `json:"message"`
	// Attempted lists the candidate sheet names for sheet_not_found.
	Attempted []string `json:"attempted,omitempty"`
	// Unmatched lists the roles the guidance did not name.
	Unmatched []string `json:"unmatched,omitempty"`
}

// BreakdownSection wraps the fixed-layout breakdown result.
type BreakdownSection struct {
	Status    SectionStatus      `json:"status"`
	Error     *SectionError      `json:"error,omitempty"`
	Breakdown *CategoryBreakdown `json:"breakdown,omitempty"`
	Top       []CategoryShare    `json:"top,omitempty"`
	Warnings  []RowWarning       `json:"warnings,omitempty"`
}

// TrendSection wraps the trend series result.
type TrendSection struct {
	Status   SectionStatus `json:"status"`
	Error    *SectionError `json:"error,omitempty"`
	Series   *TrendSeries  `json:"series,omitempty"`
	GapFill  string        `json:"gap_fill,omitempty"`
	Warnings []RowWarning  `json:"warnings,omitempty"`
}

// DetailSection wraps the guided mapping and its aggregates.
type DetailSection struct {
	Status     SectionStatus     `json:"status"`
	Error      *SectionError     `json:"error,omitempty"`
	MappingVia string            `json:"mapping_via,omitempty"`
	Guidance   string            `json:"guidance,omitempty"`
	Mapping    ColumnRoleMapping `json:"mapping"`
	Table      *CleanTable       `json:"table,omitempty"`
	Stats      []GroupStats      `json:"stats,omitempty"`
	Pivot      *MultiSeries      `json:"pivot,omitempty"`
	Warnings   []RowWarning      `json:"warnings,omitempty"`
}

// AnalysisReport is everything one run derives from one document.
type AnalysisReport struct {
	RunID       string           `json:"run_id"`
	Source      string           `json:"source"`
	Sheets      []string         `json:"sheets"`
	StartedAt   time.Time        `json:"started_at"`
	CompletedAt time.Time        `json:"completed_at"`
	Breakdown   BreakdownSection `json:"breakdown"`
	Trend       TrendSection     `json:"trend"`
	Detail      DetailSection    `json:"detail"`
}

// Failed reports whether every section failed.
func (r *AnalysisReport) Failed() bool {
	return r.Breakdown.Status == SectionFailed &&
		r.Trend.Status == SectionFailed &&
		r.Detail.Status == SectionFailed
}

// Status summarizes the report as ok, partial or failed.
func (r *AnalysisReport) Status() string {
	failed := 0
	for _, s := range []SectionStatus{r.Breakdown.Status, r.Trend.Status, r.Detail.Status} {
		if s == SectionFailed {
			failed++
		}
	}
	switch failed {
	case 0:
		return "ok"
	case 3:
		return "failed"
	default:
		return "partial"
	}
}
