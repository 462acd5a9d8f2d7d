// Package semantic removes non-expense act lines (payments, transfers)
// using keyword heuristics followed by an external classifier.
package semantic

import (
	"context"
	"encoding/json"
	"strings"

	"act-reconciliation-service/internal/completion"
	"act-reconciliation-service/internal/models"
	apperrors "act-reconciliation-service/pkg/errors"
	"act-reconciliation-service/pkg/logger"
)

// Options configures the filter pass.
type Options struct {
	// IncomeKeywords mark payment-like lines dropped by the
	// pre-filter unless an expense keyword also fires.
	IncomeKeywords []string
	// ExpenseKeywords mark document lines that must survive even
	// when an income keyword matches.
	ExpenseKeywords []string
	// BatchSize bounds one classifier request.
	BatchSize int
}

// DefaultOptions mirrors the production keyword lists.
func DefaultOptions() *Options {
	return &Options{
		IncomeKeywords:  []string{"платежное", "поступление", "оплата", "списание", "перечислено", "приход"},
		ExpenseKeywords: []string{"реализация", "упд", "продажа", "корректировка", "акт"},
		BatchSize:       200,
	}
}

// Filter is the semantic line filter.
type Filter struct {
	client completion.Client
	ccfg   *completion.Config
	log    logger.Logger
}

// NewFilter builds a filter around a completion client.
func NewFilter(client completion.Client, ccfg *completion.Config) *Filter {
	if ccfg == nil {
		ccfg = completion.DefaultConfig()
	}
	return &Filter{
		client: client,
		ccfg:   ccfg,
		log:    logger.GetGlobalLogger().WithComponent("semantic"),
	}
}

// PreFilter drops records whose text matches an income keyword without
// also matching an expense keyword. Pure keyword heuristic, no network.
func PreFilter(records []*models.CanonicalRecord, opts *Options) []*models.CanonicalRecord {
	if opts == nil {
		opts = DefaultOptions()
	}

	kept := make([]*models.CanonicalRecord, 0, len(records))
	for _, r := range records {
		text := strings.ToLower(r.Text)
		if containsAny(text, opts.IncomeKeywords) && !containsAny(text, opts.ExpenseKeywords) {
			continue
		}
		kept = append(kept, r)
	}
	return kept
}

func containsAny(text string, keywords []string) bool {
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw != "" && strings.Contains(text, kw) {
			return true
		}
	}
	return false
}

const classifySystemPrompt = "Классифицируй строки сверки. " +
	"Оставь только расходы клиента и корректировки. " +
	"Исключи оплаты/платежи/поручения. " +
	"Верни JSON массив {id:number, include:boolean}."

type classifyItem struct {
	ID   int    `json:"id"`
	Text string `json:"text"`
}

type classifyAnswer struct {
	ID      *int `json:"id"`
	Include bool `json:"include"`
}

// Apply runs the keyword pre-filter and then classifies the survivors
// in sequential batches. An unparseable or failed batch aborts the
// whole filtering step; it is not retried and rows are never silently
// passed through.
func (f *Filter) Apply(ctx context.Context, records []*models.CanonicalRecord, opts *Options) ([]*models.CanonicalRecord, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if f.client == nil {
		return nil, apperrors.ConfigurationError(apperrors.CodeMissingCredentials, "completion client", nil)
	}

	records = PreFilter(records, opts)
	if len(records) == 0 {
		return records, nil
	}

	batchSize := opts.BatchSize
	if batchSize <= 0 {
		batchSize = DefaultOptions().BatchSize
	}

	var filtered []*models.CanonicalRecord
	for start := 0; start < len(records); start += batchSize {
		end := start + batchSize
		if end > len(records) {
			end = len(records)
		}
		batch := records[start:end]

		items := make([]classifyItem, 0, len(batch))
		for i, r := range batch {
			items = append(items, classifyItem{ID: i, Text: r.Text})
		}
		payload, err := json.Marshal(items)
		if err != nil {
			return nil, apperrors.InternalError("classifier batch encoding", err)
		}

		f.log.WithField("rows", len(batch)).Debug("classifying batch")
		text, err := f.client.Complete(ctx, classifySystemPrompt, string(payload))
		if err != nil {
			return nil, err
		}
		result, err := completion.ParseArray(text)
		if err != nil {
			return nil, err
		}

		allowed := make(map[int]bool)
		for _, answer := range completion.Decode[classifyAnswer](result) {
			if answer.ID != nil && answer.Include {
				allowed[*answer.ID] = true
			}
		}
		for i, r := range batch {
			if allowed[i] {
				filtered = append(filtered, r)
			}
		}

		if end < len(records) {
			f.ccfg.Pace(ctx)
		}
	}
	return filtered, nil
}
