// Package reconciler matches canonical act records against per-system
// document indices and assembles the reconciliation report.
package reconciler

import (
	"strings"
	"unicode"

	"github.com/shopspring/decimal"

	"act-reconciliation-service/internal/models"
	"act-reconciliation-service/internal/normalize"
	"act-reconciliation-service/internal/sysindex"
	"act-reconciliation-service/pkg/errors"
	"act-reconciliation-service/pkg/logger"
)

// actCorrectionKeywords mark act lines excluded from act turnover.
// Act amounts are always positive, so only the text is consulted.
var actCorrectionKeywords = []string{"корректировка", "возврат"}

// Result is the full reconciliation outcome for one supplier.
type Result struct {
	Rows    []models.MatchedRow
	Summary *models.Summary
}

// Reconciler runs the document-level match between an act and the
// external system indices.
type Reconciler struct {
	registry  *sysindex.Registry
	builder   *sysindex.Builder
	directory *Directory
	log       logger.Logger
}

// New creates a Reconciler. The directory may be nil when no point
// mapping is available; org units are then left empty.
func New(registry *sysindex.Registry, directory *Directory, log logger.Logger) *Reconciler {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	if directory == nil {
		directory = NewDirectory(nil, nil)
	}
	return &Reconciler{
		registry:  registry,
		builder:   sysindex.NewBuilder(registry, log),
		directory: directory,
		log:       log.WithComponent("reconciler"),
	}
}

// FindDoc looks a normalized act document number up in an index.
// Exact match wins; otherwise the first indexed key (in insertion
// order) that extends the number with a suffix starting with a letter
// is taken, so act `20` finds system `20dp` but never `205`. The
// second return value is the consumed index key.
func FindDoc(target string, ix *sysindex.Index) ([]*models.SystemRecord, string) {
	if target == "" || ix == nil {
		return nil, ""
	}
	if recs, ok := ix.ByDocNumber[target]; ok {
		return recs, target
	}
	for _, key := range ix.Keys() {
		if len(key) > len(target) && strings.HasPrefix(key, target) {
			suffix := []rune(key[len(target):])
			if len(suffix) > 0 && unicode.IsLetter(suffix[0]) {
				return ix.ByDocNumber[key], key
			}
		}
	}
	return nil, ""
}

func isActCorrection(text string) bool {
	t := strings.ToLower(text)
	for _, kw := range actCorrectionKeywords {
		if strings.Contains(t, kw) {
			return true
		}
	}
	return false
}

// Reconcile runs the three passes: build the per-system indices,
// match every act row, then derive the exception lists and totals.
func (r *Reconciler) Reconcile(act []*models.CanonicalRecord, sheets []models.Sheet, supplier string) (*Result, error) {
	if len(act) == 0 {
		return nil, errors.ReconciliationError(errors.CodeMatchingFailed, "no act records to reconcile", nil).
			WithSuggestion("Check that the act file contains a recognizable table")
	}

	// Pass 1: indices.
	indices := r.builder.BuildAll(sheets, supplier)
	r.log.WithFields(logger.Fields{
		"supplier": supplier,
		"systems":  len(indices),
		"actRows":  len(act),
	}).Info("starting reconciliation")

	primary := r.registry.Primary()
	var primaryIndex *sysindex.Index
	if primary != nil {
		primaryIndex = indices[primary.Name]
	}

	// Pass 2: act rows. matchedKeys collects consumed primary index
	// keys; a prefix hit also consumes every key extending the act
	// number, since those entries describe the same document.
	summary := models.NewSummary()
	matchedKeys := make(map[string]bool)
	rows := make([]models.MatchedRow, 0, len(act))

	for _, rec := range act {
		amount := models.ParseAmountOrZero(rec.Amount)
		if !isActCorrection(rec.Text) {
			summary.ActTotal = summary.ActTotal.Add(amount)
			summary.ActCount++
		}

		row := models.MatchedRow{
			Date:      rec.Date,
			Text:      rec.Text,
			DocNumber: rec.DocNumber,
			Amount:    amount,
			Systems:   make(map[string]*models.SystemMatch),
		}
		target := normalize.DocNumber(rec.DocNumber)

		var primaryWarehouse string
		for _, name := range r.registry.Names() {
			ix, ok := indices[name]
			if !ok {
				continue
			}
			cfg := ix.System
			recs, consumed := FindDoc(target, ix)
			if len(recs) == 0 {
				row.Systems[name] = &models.SystemMatch{Delta: amount}
				if cfg.Primary && strings.TrimSpace(rec.DocNumber) != "" {
					summary.ActOnly = append(summary.ActOnly, strings.TrimSpace(rec.DocNumber))
				}
				continue
			}
			found := recs[0]
			delta := amount.Sub(found.Amount)
			if cfg.NegativeAmounts {
				delta = amount.Add(found.Amount)
			}
			match := &models.SystemMatch{
				Matched: true,
				Fields:  found.Fields,
				Amount:  found.Amount,
				Delta:   delta,
			}
			row.Systems[name] = match
			if cfg.Primary {
				primaryWarehouse = found.Fields[cfg.WarehouseField]
				if consumed == target {
					matchedKeys[consumed] = true
				} else {
					for _, key := range ix.Keys() {
						if len(key) > len(target) && strings.HasPrefix(key, target) {
							matchedKeys[key] = true
						}
					}
				}
			}
		}

		// Org unit for the doc-portal match: resolve by the primary
		// system's warehouse, fall back to the portal buyer name.
		for _, name := range r.registry.Names() {
			cfg, _ := r.registry.Get(name)
			if cfg.BuyerField == "" {
				continue
			}
			match, ok := row.Systems[name]
			if !ok || !match.Matched {
				continue
			}
			if primaryWarehouse != "" {
				match.OrgUnit = r.directory.ForWarehouse(primaryWarehouse)
			}
			if match.OrgUnit == "" {
				match.OrgUnit = r.directory.ForBuyer(match.Fields[cfg.BuyerField])
			}
		}

		rows = append(rows, row)
	}

	// Pass 3: totals, deltas, exception lists.
	for name, ix := range indices {
		summary.SystemTotals[name] = ix.Stats.Total
		summary.SystemCounts[name] = ix.Stats.Count
		if ix.System.NegativeAmounts {
			summary.Deltas[name] = summary.ActTotal.Add(ix.Stats.Total)
		} else {
			summary.Deltas[name] = summary.ActTotal.Sub(ix.Stats.Total)
		}
	}
	if primaryIndex != nil {
		summary.CountDelta = summary.ActCount - primaryIndex.Stats.Count
		summary.Duplicates = append(summary.Duplicates, primaryIndex.Duplicates...)
		for _, key := range primaryIndex.Keys() {
			if matchedKeys[key] {
				continue
			}
			recs := primaryIndex.ByDocNumber[key]
			original := key
			if len(recs) > 0 {
				if doc := recs[0].Field(primaryIndex.System.DocField); doc != "" {
					original = doc
				}
			}
			summary.SystemOnly = append(summary.SystemOnly, original)
		}
	}

	r.log.WithFields(logger.Fields{
		"rows":       len(rows),
		"actOnly":    len(summary.ActOnly),
		"systemOnly": len(summary.SystemOnly),
		"duplicates": len(summary.Duplicates),
	}).Info("reconciliation complete")

	return &Result{Rows: rows, Summary: summary}, nil
}

// ActTurnover returns the act total and row count excluding
// correction lines, without running a full reconciliation.
func ActTurnover(act []*models.CanonicalRecord) (decimal.Decimal, int) {
	total := decimal.Zero
	count := 0
	for _, rec := range act {
		if isActCorrection(rec.Text) {
			continue
		}
		total = total.Add(models.ParseAmountOrZero(rec.Amount))
		count++
	}
	return total, count
}
