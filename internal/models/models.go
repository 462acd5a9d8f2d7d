// Package models defines the data types flowing through the
// reconciliation pipeline: raw grids, canonical act records, system
// records, matched rows and the reconciliation summary.
//
// All cell values are strings; numeric and date interpretation always
// starts from string form and never relies on a native cell type.
package models

import (
	"fmt"
	"strings"

	"act-reconciliation-service/internal/normalize"

	"github.com/shopspring/decimal"
)

// Grid is an ordered sequence of rows of string cells. Rows are not
// guaranteed rectangular; use Cell for bounds-safe access.
type Grid [][]string

// Cell returns the trimmed cell at (row, col), or "" when the
// coordinates fall outside the grid.
func (g Grid) Cell(row, col int) string {
	if row < 0 || row >= len(g) {
		return ""
	}
	r := g[row]
	if col < 0 || col >= len(r) {
		return ""
	}
	return strings.TrimSpace(r[col])
}

// RowCell returns the trimmed cell at col of a single row.
func RowCell(row []string, col int) string {
	if col < 0 || col >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[col])
}

// IsBlankRow reports whether every cell of the row is empty after
// trimming.
func IsBlankRow(row []string) bool {
	for _, c := range row {
		if strings.TrimSpace(c) != "" {
			return false
		}
	}
	return true
}

// Sheet is a named grid, as returned by the spreadsheet reader.
type Sheet struct {
	Name string
	Grid Grid
}

// CanonicalRecord is one extracted act line. DocNumber starts empty
// and is filled in place by the number-extraction stage; the matcher
// consumes the record read-only.
type CanonicalRecord struct {
	Date      string `json:"date"`
	Text      string `json:"text"`
	DocNumber string `json:"docNumber"`
	Amount    string `json:"amount"`
}

// NewCanonicalRecord creates a canonical record with a normalized
// amount string and an empty document number.
func NewCanonicalRecord(date, text, amount string) *CanonicalRecord {
	return &CanonicalRecord{
		Date:   date,
		Text:   text,
		Amount: normalize.Amount(amount),
	}
}

// AmountDecimal parses the record's amount. A blank or malformed
// amount parses as zero.
func (r *CanonicalRecord) AmountDecimal() decimal.Decimal {
	d, err := ParseAmount(r.Amount)
	if err != nil {
		return decimal.Zero
	}
	return d
}

// String returns a compact representation for logs.
func (r *CanonicalRecord) String() string {
	return fmt.Sprintf("CanonicalRecord{Date: %s, Doc: %s, Amount: %s}", r.Date, r.DocNumber, r.Amount)
}

// SystemRecord is one row from an external system export that passed
// partner matching, holding the raw field map plus the derived view
// used by indexing and matching.
type SystemRecord struct {
	// Fields maps logical field keys (date, docNumber, partner, sum,
	// warehouse, ...) to the raw cell values of the source row.
	Fields map[string]string

	PartnerName         string
	NormalizedDocNumber string
	Amount              decimal.Decimal
	IsCorrection        bool
}

// Field returns the raw value of a logical field, or "".
func (r *SystemRecord) Field(key string) string {
	return r.Fields[key]
}

// SystemMatch is the per-system side of one matched row: either a
// matched record projection with a computed delta, or an unmatched
// marker whose delta equals the full act amount.
type SystemMatch struct {
	Matched bool              `json:"matched"`
	Fields  map[string]string `json:"fields,omitempty"`
	Amount  decimal.Decimal   `json:"amount"`
	Delta   decimal.Decimal   `json:"delta"`
	// OrgUnit carries the organizational-unit label resolved through
	// the location directory, when available.
	OrgUnit string `json:"orgUnit,omitempty"`
}

// MatchedRow is one output unit per act record.
type MatchedRow struct {
	Date      string          `json:"date"`
	Text      string          `json:"text"`
	DocNumber string          `json:"docNumber"`
	Amount    decimal.Decimal `json:"amount"`
	// Systems maps system name to its match outcome. A system absent
	// from the map was not configured for this run.
	Systems map[string]*SystemMatch `json:"systems"`
	// ManagerComment is a free-text annotation preserved across
	// report updates, keyed by document number.
	ManagerComment string `json:"managerComment,omitempty"`
}

// Summary aggregates per-system turnover, act totals, deltas, counts
// and the exception lists of one reconciliation run.
type Summary struct {
	SystemTotals map[string]decimal.Decimal `json:"systemTotals"`
	SystemCounts map[string]int             `json:"systemCounts"`
	ActTotal     decimal.Decimal            `json:"actTotal"`
	ActCount     int                        `json:"actCount"`
	// Deltas holds act total minus (or plus, for sign-inverted
	// systems) the system total, per system.
	Deltas     map[string]decimal.Decimal `json:"deltas"`
	CountDelta int                        `json:"countDelta"`

	// Duplicates lists original document numbers that collapsed onto
	// the same normalized key in the primary system.
	Duplicates []string `json:"duplicates,omitempty"`
	// SystemOnly lists primary-system documents absent from the act.
	SystemOnly []string `json:"systemOnly,omitempty"`
	// ActOnly lists act documents absent from the primary system.
	ActOnly []string `json:"actOnly,omitempty"`
}

// NewSummary creates an empty summary with allocated maps.
func NewSummary() *Summary {
	return &Summary{
		SystemTotals: make(map[string]decimal.Decimal),
		SystemCounts: make(map[string]int),
		Deltas:       make(map[string]decimal.Decimal),
	}
}

// ParseAmount parses a monetary string in act or system form into a
// decimal. Spaces, non-breaking spaces and decimal commas are
// tolerated; an empty string is an error.
func ParseAmount(s string) (decimal.Decimal, error) {
	cleaned := normalize.Amount(s)
	if cleaned == "" {
		return decimal.Zero, fmt.Errorf("amount string cannot be empty")
	}

	d, err := decimal.NewFromString(cleaned)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return d, nil
}

// ParseAmountOrZero parses like ParseAmount but maps blank or
// malformed values to zero, mirroring how system exports are summed.
func ParseAmountOrZero(s string) decimal.Decimal {
	d, err := ParseAmount(s)
	if err != nil {
		return decimal.Zero
	}
	return d
}
