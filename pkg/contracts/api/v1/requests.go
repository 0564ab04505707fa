// Package api contains the HTTP request and response contracts of the
// rejection analysis API. Version v1 is the current stable version.
package api

import (
	"rejectcli/pkg/contracts/domain"
)

// UploadMeta describes the workbook part of POST /api/analyses.
type UploadMeta struct {
	Filename string `json:"filename" validate:"required,filename,workbook"`
	Size     int64  `json:"size" validate:"gte=0"`
}

// AnalysisOptions are the optional form fields of POST /api/analyses.
// Naming all three columns bypasses the advisory service.
type AnalysisOptions struct {
	DateColumn     string `json:"date_column,omitempty" validate:"omitempty,max=256,header"`
	CategoryColumn string `json:"category_column,omitempty" validate:"omitempty,max=256,header"`
	RateColumn     string `json:"rate_column,omitempty" validate:"omitempty,max=256,header"`
	GapFill        string `json:"gap_fill,omitempty" validate:"omitempty,oneof=none mean neighbors"`
}

// ManualMapping reports whether every column role was supplied.
func (o AnalysisOptions) ManualMapping() bool {
	return o.DateColumn != "" && o.CategoryColumn != "" && o.RateColumn != ""
}

// PartialMapping reports whether some, but not all, roles were supplied.
func (o AnalysisOptions) PartialMapping() bool {
	n := 0
	for _, c := range []string{o.DateColumn, o.CategoryColumn, o.RateColumn} {
		if c != "" {
			n++
		}
	}
	return n > 0 && n < 3
}

// GuidanceExtractRequest asks the API to extract column roles from a piece of
// guidance text without running an analysis.
type GuidanceExtractRequest struct {
	Guidance string   `json:"guidance" validate:"required,max=65536"`
	Headers  []string `json:"headers" validate:"required,min=1,dive,required,header"`
}

// GuidanceExtractResponse is the result of a guidance extraction.
type GuidanceExtractResponse struct {
	Status    string                   `json:"status"`
	Mapping   domain.ColumnRoleMapping `json:"mapping"`
	Unmatched []string                 `json:"unmatched,omitempty"`
	Reason    string                   `json:"reason,omitempty"`
}
