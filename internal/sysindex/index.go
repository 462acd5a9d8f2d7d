package sysindex

import (
	"strings"

	"github.com/shopspring/decimal"

	"act-reconciliation-service/internal/fuzzy"
	"act-reconciliation-service/internal/models"
	"act-reconciliation-service/internal/normalize"
	"act-reconciliation-service/pkg/logger"
)

// partnerCutoff is the minimum partial-ratio score for a system record
// to be attributed to the requested supplier.
const partnerCutoff = 85

// correctionKeywords mark a record as a correction or return document
// when they appear in any of the system's correction text fields.
var correctionKeywords = []string{"корректировка", "возврат"}

// Stats accumulates turnover over a system's attributed,
// non-correction records.
type Stats struct {
	Total decimal.Decimal
	Count int
}

// Index is the per-system lookup structure the reconciler matches
// against. Insertion is append-only: records never move between keys
// once added.
type Index struct {
	System *SystemConfig

	// ByDocNumber groups records by normalized document number.
	ByDocNumber map[string][]*models.SystemRecord

	// keyOrder preserves insertion order for deterministic reporting.
	keyOrder []string

	Stats      Stats
	Duplicates []string
}

// Keys returns normalized document numbers in insertion order.
func (ix *Index) Keys() []string {
	return append([]string(nil), ix.keyOrder...)
}

func (ix *Index) add(rec *models.SystemRecord) {
	key := rec.NormalizedDocNumber
	if _, seen := ix.ByDocNumber[key]; !seen {
		ix.keyOrder = append(ix.keyOrder, key)
	}
	ix.ByDocNumber[key] = append(ix.ByDocNumber[key], rec)
}

// Builder turns raw system rows into indices for one supplier.
type Builder struct {
	registry *Registry
	log      logger.Logger
}

// NewBuilder creates a Builder over the given registry.
func NewBuilder(registry *Registry, log logger.Logger) *Builder {
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Builder{registry: registry, log: log.WithComponent("sysindex")}
}

// CleanSupplierName strips a trailing parenthesized qualifier from a
// supplier name, e.g. `ООО Ромашка (основной)` becomes `ООО Ромашка`.
func CleanSupplierName(name string) string {
	if i := strings.Index(name, "("); i >= 0 {
		name = name[:i]
	}
	return strings.TrimSpace(name)
}

// ResolvePartners returns the distinct partner values from the records
// that fuzzily match the supplier name at the partner cutoff.
func ResolvePartners(records []map[string]string, cfg *SystemConfig, supplier string) map[string]bool {
	supplier = CleanSupplierName(supplier)
	seen := make(map[string]bool)
	var candidates []string
	for _, rec := range records {
		partner := rec[cfg.PartnerField]
		if partner == "" || seen[partner] {
			continue
		}
		seen[partner] = true
		candidates = append(candidates, partner)
	}
	accepted := make(map[string]bool)
	for _, m := range fuzzy.Extract(supplier, candidates, fuzzy.PartialRatio, partnerCutoff) {
		accepted[m.Value] = true
	}
	return accepted
}

// IsCorrection reports whether a record is a correction or return.
// Text in the system's correction fields takes precedence; a negative
// amount also marks a correction unless the system conventionally
// posts negative amounts.
func IsCorrection(rec map[string]string, amount decimal.Decimal, cfg *SystemConfig) bool {
	for _, field := range cfg.CorrectionTextFields {
		text := strings.ToLower(rec[field])
		for _, kw := range correctionKeywords {
			if strings.Contains(text, kw) {
				return true
			}
		}
	}
	if !cfg.NegativeAmounts && amount.IsNegative() {
		return true
	}
	return false
}

// Build filters the raw rows down to the supplier's records and
// indexes them by normalized document number. Turnover stats exclude
// corrections; duplicate document numbers are reported once each, by
// the original number of the first occurrence.
func (b *Builder) Build(records []map[string]string, cfg *SystemConfig, supplier string) *Index {
	ix := &Index{
		System:      cfg,
		ByDocNumber: make(map[string][]*models.SystemRecord),
	}
	accepted := ResolvePartners(records, cfg, supplier)
	firstOriginal := make(map[string]string)
	reported := make(map[string]bool)

	for _, raw := range records {
		partner := raw[cfg.PartnerField]
		if !accepted[partner] {
			continue
		}
		original := raw[cfg.DocField]
		key := normalize.DocNumber(original)
		if key == "" {
			continue
		}
		amount := models.ParseAmountOrZero(raw[cfg.SumField])
		rec := &models.SystemRecord{
			Fields:              raw,
			PartnerName:         partner,
			NormalizedDocNumber: key,
			Amount:              amount,
			IsCorrection:        IsCorrection(raw, amount, cfg),
		}
		if len(ix.ByDocNumber[key]) == 1 && !reported[key] {
			reported[key] = true
			ix.Duplicates = append(ix.Duplicates, firstOriginal[key])
		}
		if _, seen := firstOriginal[key]; !seen {
			firstOriginal[key] = original
		}
		ix.add(rec)
		if !rec.IsCorrection {
			ix.Stats.Total = ix.Stats.Total.Add(amount)
			ix.Stats.Count++
		}
	}

	b.log.WithFields(logger.Fields{
		"system":     cfg.Name,
		"records":    ix.Stats.Count,
		"keys":       len(ix.keyOrder),
		"duplicates": len(ix.Duplicates),
	}).Debug("built system index")
	return ix
}

// BuildAll detects and indexes every sheet the registry recognizes.
// Sheets matching the same system are merged into one record set
// before indexing. The result maps system name to its index.
func (b *Builder) BuildAll(sheets []models.Sheet, supplier string) map[string]*Index {
	bySystem := make(map[string][]map[string]string)
	for _, sheet := range sheets {
		cfg, headerRow := DetectSystem(sheet.Grid, b.registry)
		if cfg == nil {
			b.log.WithField("sheet", sheet.Name).Debug("sheet matched no known system")
			continue
		}
		rows := ExtractRows(sheet.Grid, headerRow, cfg)
		b.log.WithFields(logger.Fields{
			"sheet":  sheet.Name,
			"system": cfg.Name,
			"rows":   len(rows),
		}).Debug("detected system sheet")
		bySystem[cfg.Name] = append(bySystem[cfg.Name], rows...)
	}
	indices := make(map[string]*Index, len(bySystem))
	for _, name := range b.registry.Names() {
		rows, ok := bySystem[name]
		if !ok {
			continue
		}
		cfg, _ := b.registry.Get(name)
		indices[name] = b.Build(rows, cfg, supplier)
	}
	return indices
}
