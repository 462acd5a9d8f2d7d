// Package extract turns detected table structure into canonical act
// records and derives document numbers through a layered
// regex-then-fallback pipeline.
package extract

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"unicode"

	"act-reconciliation-service/internal/completion"
	"act-reconciliation-service/internal/models"
	"act-reconciliation-service/internal/normalize"
	"act-reconciliation-service/internal/tabledetect"
	apperrors "act-reconciliation-service/pkg/errors"
	"act-reconciliation-service/pkg/logger"
)

// NumberMode selects how document numbers are derived from row text.
type NumberMode string

const (
	// NumberModeRegexOnly applies only the regex cascade.
	NumberModeRegexOnly NumberMode = "regex_only"
	// NumberModeLLMOnly sends all texts to the completion service.
	NumberModeLLMOnly NumberMode = "llm_only"
	// NumberModeRegexFirst runs the cascade and batches only the
	// rows it could not resolve. This is the default.
	NumberModeRegexFirst NumberMode = "regex_first"
)

// ParseNumberMode validates a mode string.
func ParseNumberMode(s string) (NumberMode, error) {
	switch NumberMode(s) {
	case NumberModeRegexOnly, NumberModeLLMOnly, NumberModeRegexFirst:
		return NumberMode(s), nil
	case "":
		return NumberModeRegexFirst, nil
	default:
		return "", apperrors.ConfigurationError(apperrors.CodeInvalidOption, "numberMode", fmt.Errorf("unknown mode %q", s)).
			WithSuggestion("valid modes: regex_first, regex_only, llm_only")
	}
}

// Options configures one extraction run.
type Options struct {
	NumberMode NumberMode
	// BatchSize bounds one completion request during number
	// extraction.
	BatchSize int
}

// DefaultOptions returns the production defaults.
func DefaultOptions() *Options {
	return &Options{
		NumberMode: NumberModeRegexFirst,
		BatchSize:  200,
	}
}

// Extractor runs structure detection, row extraction and the number
// derivation stage. The completion client may be nil when no LLM mode
// is used.
type Extractor struct {
	client completion.Client
	ccfg   *completion.Config
	log    logger.Logger
}

// NewExtractor builds an extractor around an optional completion
// client.
func NewExtractor(client completion.Client, ccfg *completion.Config) *Extractor {
	if ccfg == nil {
		ccfg = completion.DefaultConfig()
	}
	return &Extractor{
		client: client,
		ccfg:   ccfg,
		log:    logger.GetGlobalLogger().WithComponent("extract"),
	}
}

// ExtractRecords infers structure for one grid and extracts canonical
// records, then applies the configured number derivation stage.
func (e *Extractor) ExtractRecords(ctx context.Context, grid models.Grid, opts *Options) ([]*models.CanonicalRecord, error) {
	if opts == nil {
		opts = DefaultOptions()
	}

	var records []*models.CanonicalRecord
	if blocks := tabledetect.DetectBlocks(grid, nil); len(blocks) > 0 {
		records = FromBlocks(grid, blocks)
	} else {
		records = FromColumns(grid, tabledetect.DetectColumns(grid, nil))
	}

	if err := e.ApplyNumberExtraction(ctx, records, opts); err != nil {
		return nil, err
	}
	return records, nil
}

// FromBlocks extracts one record per row/block combination where the
// date is date-shaped and both amount (debit or credit, whichever is
// non-empty) and document text are present.
func FromBlocks(grid models.Grid, blocks []tabledetect.Block) []*models.CanonicalRecord {
	if len(blocks) == 0 {
		return nil
	}

	var records []*models.CanonicalRecord
	for i := blocks[0].HeaderRow + 1; i < len(grid); i++ {
		if models.IsBlankRow(grid[i]) {
			continue
		}
		for _, block := range blocks {
			date := grid.Cell(i, block.DateCol)
			docText := grid.Cell(i, block.DocCol)
			debit := normalize.Amount(grid.Cell(i, block.DebitCol))
			credit := normalize.Amount(grid.Cell(i, block.CreditCol))

			amount := debit
			if amount == "" {
				amount = credit
			}
			if !normalize.IsDate(date) || amount == "" || docText == "" {
				continue
			}
			records = append(records, models.NewCanonicalRecord(date, docText, amount))
		}
	}
	return records
}

// FromColumns extracts one record per row where all three role
// predicates pass: date-shaped date, numeric amount, non-empty text.
func FromColumns(grid models.Grid, roles tabledetect.ColumnRoles) []*models.CanonicalRecord {
	var records []*models.CanonicalRecord
	for i := range grid {
		date := grid.Cell(i, roles.Date)
		amount := normalize.Amount(grid.Cell(i, roles.Amount))
		text := grid.Cell(i, roles.Text)

		if !normalize.IsDate(date) || !normalize.IsNumeric(amount) || text == "" {
			continue
		}
		records = append(records, models.NewCanonicalRecord(date, text, amount))
	}
	return records
}

var (
	markedNumberRe = regexp.MustCompile(`№\s*([A-Za-zА-Яа-я0-9/-]+)`)
	digitRunRe     = regexp.MustCompile(`\d{2,}`)
	alnumRunRe     = regexp.MustCompile(`[A-Za-zА-Яа-я0-9/-]{3,}`)
)

// NumberFromText applies the three-tier regex cascade. Precedence is
// fixed: a "№"-prefixed number wins over a bare digit run, which wins
// over the first alphanumeric run of three or more characters. Returns
// "" when nothing matches.
func NumberFromText(text string) string {
	if text == "" {
		return ""
	}
	if m := markedNumberRe.FindStringSubmatch(text); m != nil {
		return m[1]
	}
	if m := standaloneDigitRun(text); m != "" {
		return m
	}
	if m := alnumRunRe.FindString(text); m != "" {
		return m
	}
	return ""
}

// standaloneDigitRun finds the first run of two or more digits not
// attached to a letter on either side. RE2 word boundaries are
// ASCII-only, so Cyrillic neighbors are checked explicitly.
func standaloneDigitRun(text string) string {
	runes := []rune(text)
	for _, loc := range digitRunRe.FindAllStringIndex(text, -1) {
		start := len([]rune(text[:loc[0]]))
		end := start + len([]rune(text[loc[0]:loc[1]]))
		if start > 0 && isWordRune(runes[start-1]) {
			continue
		}
		if end < len(runes) && isWordRune(runes[end]) {
			continue
		}
		return string(runes[start:end])
	}
	return ""
}

func isWordRune(r rune) bool {
	return unicode.IsLetter(r) || unicode.IsDigit(r)
}

// ApplyNumberExtraction fills DocNumber on every record according to
// the mode. Records are mutated in place.
func (e *Extractor) ApplyNumberExtraction(ctx context.Context, records []*models.CanonicalRecord, opts *Options) error {
	if opts == nil {
		opts = DefaultOptions()
	}

	switch opts.NumberMode {
	case NumberModeRegexOnly, "":
		for _, r := range records {
			r.DocNumber = NumberFromText(r.Text)
		}
		return nil

	case NumberModeLLMOnly:
		indexes := make([]int, len(records))
		for i := range records {
			indexes[i] = i
		}
		return e.fillNumbersFromService(ctx, records, indexes, opts.BatchSize)

	case NumberModeRegexFirst:
		var missing []int
		for i, r := range records {
			r.DocNumber = NumberFromText(r.Text)
			if r.DocNumber == "" {
				missing = append(missing, i)
			}
		}
		if len(missing) == 0 {
			return nil
		}
		return e.fillNumbersFromService(ctx, records, missing, opts.BatchSize)

	default:
		return apperrors.ConfigurationError(apperrors.CodeInvalidOption, "numberMode",
			fmt.Errorf("unknown mode %q", opts.NumberMode))
	}
}

const numberSystemPrompt = "Извлеки номер документа из текста. " +
	"Верни JSON массив объектов {id:number, number:string}. Только JSON."

type numberItem struct {
	ID   int    `json:"id"`
	Text string `json:"text,omitempty"`
}

type numberAnswer struct {
	ID     *int   `json:"id"`
	Number string `json:"number"`
}

// fillNumbersFromService batches the texts at the given record indexes
// to the completion service. Returned indices are authoritative
// position keys; any index the service omits stays empty. Chunks run
// sequentially with optional pacing.
func (e *Extractor) fillNumbersFromService(ctx context.Context, records []*models.CanonicalRecord, indexes []int, batchSize int) error {
	if len(indexes) == 0 {
		return nil
	}
	if e.client == nil {
		return apperrors.ConfigurationError(apperrors.CodeMissingCredentials, "completion client", nil)
	}
	if batchSize <= 0 {
		batchSize = DefaultOptions().BatchSize
	}

	for start := 0; start < len(indexes); start += batchSize {
		end := start + batchSize
		if end > len(indexes) {
			end = len(indexes)
		}
		chunk := indexes[start:end]

		items := make([]numberItem, 0, len(chunk))
		for _, idx := range chunk {
			items = append(items, numberItem{ID: idx, Text: records[idx].Text})
		}
		payload, err := json.Marshal(items)
		if err != nil {
			return apperrors.InternalError("number batch encoding", err)
		}

		e.log.WithFields(logger.Fields{
			"rows":  len(chunk),
			"chars": len(payload),
		}).Debug("sending number-extraction batch")

		text, err := e.client.Complete(ctx, numberSystemPrompt, string(payload))
		if err != nil {
			return err
		}
		result, err := completion.ParseArray(text)
		if err != nil {
			return err
		}

		for _, answer := range completion.Decode[numberAnswer](result) {
			if answer.ID == nil {
				continue
			}
			idx := *answer.ID
			if idx < 0 || idx >= len(records) {
				continue
			}
			records[idx].DocNumber = answer.Number
		}

		if end < len(indexes) {
			e.ccfg.Pace(ctx)
		}
	}
	return nil
}
