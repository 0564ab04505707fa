package dataprocessing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"

	"rejectcli/internal/advisory"
	"rejectcli/internal/config"
	"rejectcli/pkg/contracts/domain"
)

var (
	// ErrAdvisoryUnavailable marks a run where no guidance could be obtained.
	ErrAdvisoryUnavailable = errors.New("advisory service unavailable")
	// ErrColumnMappingUnresolved marks guidance or a manual mapping that did
	// not name three distinct existing columns.
	ErrColumnMappingUnresolved = errors.New("column mapping unresolved")
	// ErrManualMappingRequired is matched whenever the guided path stopped
	// and the user has to name the columns.
	ErrManualMappingRequired = errors.New("manual column mapping required")
)

// Role names used in unmatched-role lists.
const (
	RoleDate     = "date"
	RoleCategory = "category"
	RoleRate     = "rate"
)

// Advisor returns free-form guidance for a prompt.
type Advisor interface {
	Advise(ctx context.Context, prompt string) (string, error)
}

// AdvisorFunc adapts a function to Advisor.
type AdvisorFunc func(ctx context.Context, prompt string) (string, error)

// Advise calls f.
func (f AdvisorFunc) Advise(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// MappingStatus is the outcome of the guided path.
type MappingStatus string

const (
	StatusResolved            MappingStatus = "resolved"
	StatusGuidanceUnavailable MappingStatus = "guidance_unavailable"
	StatusUnresolved          MappingStatus = "unresolved"
)

// Mapping sources recorded on a result.
const (
	ViaGuidance = "guidance"
	ViaManual   = "manual"
)

// MappingError stops the guided path. It matches ErrManualMappingRequired and
// either ErrAdvisoryUnavailable or ErrColumnMappingUnresolved.
type MappingError struct {
	Status    MappingStatus
	Unmatched []string
	Reason    string
	Err       error
}

func (e *MappingError) Error() string {
	msg := "manual column mapping required: " + e.Reason
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *MappingError) Unwrap() []error {
	errs := []error{ErrManualMappingRequired}
	switch e.Status {
	case StatusGuidanceUnavailable:
		errs = append(errs, ErrAdvisoryUnavailable)
	case StatusUnresolved:
		errs = append(errs, ErrColumnMappingUnresolved)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// RoleKeywords are the words the guidance uses to introduce each role.
type RoleKeywords struct {
	Date     string
	Category string
	Rate     string
}

// DefaultRoleKeywords match guidance for the thickness-wise rejection sheet.
var DefaultRoleKeywords = RoleKeywords{Date: "date", Category: "thickness", Rate: "rejection"}

// RoleExtraction is what the guidance text named. Unmatched lists roles in
// date, category, rate order.
type RoleExtraction struct {
	Mapping   domain.ColumnRoleMapping
	Unmatched []string
}

// Complete reports whether every role was named.
func (x RoleExtraction) Complete() bool {
	return len(x.Unmatched) == 0 && x.Mapping.Complete()
}

// ExtractRoles finds phrases like `thickness column: "Thk (mm)"` in free text,
// case-insensitively, taking the first non-empty name per role.
func ExtractRoles(guidance string, kw RoleKeywords) RoleExtraction {
	var x RoleExtraction
	for _, role := range []struct {
		name    string
		keyword string
		dst     **string
	}{
		{RoleDate, kw.Date, &x.Mapping.Date},
		{RoleCategory, kw.Category, &x.Mapping.Category},
		{RoleRate, kw.Rate, &x.Mapping.Rate},
	} {
		if name, ok := findRole(guidance, role.keyword); ok {
			*role.dst = domain.String(name)
		} else {
			x.Unmatched = append(x.Unmatched, role.name)
		}
	}
	return x
}

func findRole(guidance, keyword string) (string, bool) {
	if strings.TrimSpace(keyword) == "" {
		return "", false
	}
	re := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(keyword) + `\s*column\s*:?\s*["'](.*?)["']`)
	for _, m := range re.FindAllStringSubmatch(guidance, -1) {
		if name := strings.TrimSpace(m[1]); name != "" {
			return name, true
		}
	}
	return "", false
}

// ColumnIndexes are the resolved positions of the three roles.
type ColumnIndexes struct {
	Date     int
	Category int
	Rate     int
}

// ResolveMapping checks a mapping against the table headers.
func ResolveMapping(m domain.ColumnRoleMapping, t *RowTable) (ColumnIndexes, error) {
	var (
		idx       ColumnIndexes
		unmatched []string
		missing   []string
	)
	for _, role := range []struct {
		name string
		col  *string
		dst  *int
	}{
		{RoleDate, m.Date, &idx.Date},
		{RoleCategory, m.Category, &idx.Category},
		{RoleRate, m.Rate, &idx.Rate},
	} {
		if role.col == nil || strings.TrimSpace(*role.col) == "" {
			unmatched = append(unmatched, role.name)
			continue
		}
		i, ok := t.Column(*role.col)
		if !ok {
			unmatched = append(unmatched, role.name)
			missing = append(missing, fmt.Sprintf("%s=%q", role.name, *role.col))
			continue
		}
		*role.dst = i
	}

	switch {
	case len(missing) > 0:
		return idx, &MappingError{
			Status:    StatusUnresolved,
			Unmatched: unmatched,
			Reason:    fmt.Sprintf("no such column (%s) in sheet %q", strings.Join(missing, ", "), t.Sheet),
		}
	case len(unmatched) > 0:
		return idx, &MappingError{
			Status:    StatusUnresolved,
			Unmatched: unmatched,
			Reason:    "no column named for " + strings.Join(unmatched, ", "),
		}
	case idx.Date == idx.Category || idx.Date == idx.Rate || idx.Category == idx.Rate:
		return idx, &MappingError{
			Status: StatusUnresolved,
			Reason: fmt.Sprintf("roles must name distinct columns, got %q, %q, %q", *m.Date, *m.Category, *m.Rate),
		}
	}
	return idx, nil
}

// ZeroAction decides what happens to a row whose coerced value is exactly 0.
type ZeroAction string

const (
	ZeroKeep ZeroAction = "keep"
	ZeroDrop ZeroAction = "drop"
)

// ZeroPolicy holds one ZeroAction per numeric role.
type ZeroPolicy struct {
	Category ZeroAction
	Rate     ZeroAction
}

// DefaultZeroPolicy keeps 0% rejection rows and drops a zero thickness.
var DefaultZeroPolicy = ZeroPolicy{Category: ZeroDrop, Rate: ZeroKeep}

// GuidedResult is everything the detail path produced, including partial
// state when it stopped early.
type GuidedResult struct {
	Status     MappingStatus
	Via        string
	Guidance   string
	Extraction RoleExtraction
	Mapping    domain.ColumnRoleMapping
	Table      *domain.CleanTable
	Warnings   []domain.RowWarning
}

// GuidedColumnMapper turns a row-oriented sheet into a CleanTable using
// advisory guidance or an explicit mapping.
type GuidedColumnMapper struct {
	cfg        config.DetailSheetConfig
	advisor    Advisor
	timeout    time.Duration
	keywords   RoleKeywords
	zero       ZeroPolicy
	dates      *DateParser
	categories NumericCoercer
	rates      NumericCoercer
	logger     *slog.Logger
}

// NewGuidedColumnMapper creates a mapper. A nil advisor makes every guided
// run report guidance as unavailable.
func NewGuidedColumnMapper(cfg config.DetailSheetConfig, advisor Advisor, timeout time.Duration, sentinels []string, logger *slog.Logger) *GuidedColumnMapper {
	if logger == nil {
		logger = slog.Default()
	}
	return &GuidedColumnMapper{
		cfg:        cfg,
		advisor:    advisor,
		timeout:    timeout,
		keywords:   RoleKeywords{Date: cfg.DateKeyword, Category: cfg.CategoryKeyword, Rate: cfg.RateKeyword},
		zero:       ZeroPolicy{Category: ZeroAction(cfg.ZeroCategory), Rate: ZeroAction(cfg.ZeroRate)},
		dates:      NewDateParser(DetailDateLayouts...),
		categories: NewNumericCoercer(sentinels, false),
		rates:      NewNumericCoercer(sentinels, true),
		logger:     logger.With(slog.String("component", "mapper")),
	}
}

// Map asks the advisor for guidance, extracts the roles and applies them.
// The result is non-nil even when an error is returned.
func (m *GuidedColumnMapper) Map(ctx context.Context, t *RowTable) (*GuidedResult, error) {
	res := &GuidedResult{Via: ViaGuidance}

	guidance, err := m.guidance(ctx, t)
	if err != nil {
		res.Status = StatusGuidanceUnavailable
		m.logger.Warn("guidance unavailable, manual mapping required",
			slog.String("sheet", t.Sheet),
			slog.String("error", err.Error()))
		return res, &MappingError{Status: StatusGuidanceUnavailable, Reason: "guidance unavailable", Err: err}
	}
	res.Guidance = guidance

	res.Extraction = ExtractRoles(guidance, m.keywords)
	res.Mapping = res.Extraction.Mapping
	if !res.Extraction.Complete() {
		res.Status = StatusUnresolved
		m.logger.Warn("guidance did not name every column, manual mapping required",
			slog.String("sheet", t.Sheet),
			slog.Any("unmatched", res.Extraction.Unmatched))
		return res, &MappingError{
			Status:    StatusUnresolved,
			Unmatched: res.Extraction.Unmatched,
			Reason:    "guidance does not name a column for " + strings.Join(res.Extraction.Unmatched, ", "),
		}
	}

	return m.apply(res, t)
}

// MapManual skips the advisor and uses the given column names.
func (m *GuidedColumnMapper) MapManual(t *RowTable, mapping domain.ColumnRoleMapping) (*GuidedResult, error) {
	res := &GuidedResult{Via: ViaManual, Mapping: mapping}
	return m.apply(res, t)
}

func (m *GuidedColumnMapper) apply(res *GuidedResult, t *RowTable) (*GuidedResult, error) {
	cols, err := ResolveMapping(res.Mapping, t)
	if err != nil {
		res.Status = StatusUnresolved
		m.logger.Warn("column mapping unresolved", slog.String("sheet", t.Sheet), slog.String("error", err.Error()))
		return res, err
	}

	res.Status = StatusResolved
	res.Table, res.Warnings = m.ApplyMapping(t, cols)
	if len(res.Table.Records) == 0 {
		return res, fmt.Errorf("sheet %q: no row survived cleaning: %w", t.Sheet, ErrEmptyResultSet)
	}
	return res, nil
}

func (m *GuidedColumnMapper) guidance(ctx context.Context, t *RowTable) (string, error) {
	if m.advisor == nil {
		return "", errors.New("no advisory service configured")
	}

	prompt := advisory.BuildPrompt(
		Summarize(t, m.cfg.SampleRows, m.cfg.SummaryBytes),
		m.keywords.Date, m.keywords.Category, m.keywords.Rate)

	if m.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.timeout)
		defer cancel()
	}

	// The advisor may ignore ctx; a reply after the deadline is discarded.
	type reply struct {
		guidance string
		err      error
	}
	done := make(chan reply, 1)
	go func() {
		guidance, err := m.advisor.Advise(ctx, prompt)
		done <- reply{guidance, err}
	}()

	select {
	case r := <-done:
		if r.err == nil && ctx.Err() != nil {
			return "", ctx.Err()
		}
		return r.guidance, r.err
	case <-ctx.Done():
		return "", fmt.Errorf("advisory call abandoned: %w", ctx.Err())
	}
}

// ApplyMapping cleans every data row. A row is kept only when its date parses
// and both numbers are present; zeros follow the zero policy. Every dropped
// row that held data produces a warning.
func (m *GuidedColumnMapper) ApplyMapping(t *RowTable, cols ColumnIndexes) (*domain.CleanTable, []domain.RowWarning) {
	table := &domain.CleanTable{Sheet: t.Sheet, Records: []domain.CleanRecord{}}
	var warnings []domain.RowWarning

	skip := func(i, col int, kind domain.WarningKind, msg string) {
		w := domain.RowWarning{Row: t.SheetRow(i), Column: t.Headers[col], Kind: kind, Message: msg}
		m.logger.Warn(msg, slog.Int("row", w.Row), slog.String("column", w.Column), slog.String("kind", string(kind)))
		warnings = append(warnings, w)
	}

	for i := range t.Rows {
		if t.blank(i) {
			continue
		}

		rawDate := t.Cell(i, cols.Date).Value()
		if rawDate == "" {
			skip(i, cols.Date, domain.WarningMissingDate, "date is empty; row skipped")
			continue
		}
		date, err := m.dates.ParseStrict(rawDate)
		if err != nil {
			skip(i, cols.Date, domain.WarningDateParse, err.Error()+"; row skipped")
			continue
		}

		category, ok := m.number(t, i, cols.Category, m.categories, domain.WarningMissingCategory, m.zero.Category, skip)
		if !ok {
			continue
		}
		rate, ok := m.number(t, i, cols.Rate, m.rates, domain.WarningMissingRate, m.zero.Rate, skip)
		if !ok {
			continue
		}

		table.Records = append(table.Records, domain.CleanRecord{
			Date:     date,
			Category: category,
			Rate:     rate,
			Row:      t.SheetRow(i),
		})
	}

	m.logger.Debug("detail rows cleaned",
		slog.String("sheet", t.Sheet),
		slog.Int("rows", len(t.Rows)),
		slog.Int("kept", len(table.Records)),
		slog.Int("warnings", len(warnings)))

	return table, warnings
}

func (m *GuidedColumnMapper) number(t *RowTable, i, col int, c NumericCoercer, missingKind domain.WarningKind, zero ZeroAction,
	skip func(int, int, domain.WarningKind, string)) (float64, bool) {
	header := t.Headers[col]
	coerced, err := c.CoerceCell(t.Cell(i, col))
	switch {
	case err != nil:
		skip(i, col, domain.WarningNumericCoercion, err.Error()+"; row skipped")
		return 0, false
	case coerced.Sentinel != "":
		skip(i, col, missingKind, fmt.Sprintf("%s holds %s; row skipped", header, coerced.Sentinel))
		return 0, false
	case coerced.Missing:
		skip(i, col, missingKind, header+" is empty; row skipped")
		return 0, false
	case coerced.Value == 0 && zero == ZeroDrop:
		skip(i, col, domain.WarningZeroExcluded, header+" is 0; row skipped")
		return 0, false
	}
	return coerced.Value, true
}
