package extract

import (
	"context"
	"encoding/json"
	"sort"
	"strings"

	"act-reconciliation-service/internal/completion"
	"act-reconciliation-service/internal/models"
	"act-reconciliation-service/internal/normalize"
	apperrors "act-reconciliation-service/pkg/errors"
	"act-reconciliation-service/pkg/logger"
)

// RowExtractOptions configures the fully LLM-driven extraction path
// used for noisy or irregular tables that defeat structure detection.
type RowExtractOptions struct {
	// MaxChars is the serialized payload ceiling. Exceeding it after
	// compression is a hard failure, never a silent truncation.
	MaxChars int
	// MaxRows is how many highest-signal rows compression keeps.
	MaxRows int
	// HeaderRows are always retained verbatim as assumed
	// header/context.
	HeaderRows int
	// CellMax truncates each cell before rows are flattened.
	CellMax int
}

// DefaultRowExtractOptions returns the production defaults.
func DefaultRowExtractOptions() *RowExtractOptions {
	return &RowExtractOptions{
		MaxChars:   16000,
		MaxRows:    120,
		HeaderRows: 3,
		CellMax:    60,
	}
}

// accountingKeywords mark rows carrying document semantics; each hit
// adds signal during compression.
var accountingKeywords = []string{
	"реализация", "упд", "продажа", "корректировка", "акт",
	"накладная", "счет-фактура", "возврат", "поставка", "услуг",
}

const rowExtractSystemPrompt = "Ты разбираешь строки таблицы акта сверки. " +
	"Для каждой строки верни объект {id:number, date:string, text:string, number:string, amount:string, include:boolean}. " +
	"include=true только для строк документов с датой и суммой. " +
	"Верни JSON массив. Только JSON."

type flatRow struct {
	ID  int    `json:"id"`
	Row string `json:"row"`
}

type extractedRow struct {
	ID      *int   `json:"id"`
	Date    string `json:"date"`
	Text    string `json:"text"`
	Number  string `json:"number"`
	Amount  string `json:"amount"`
	Include bool   `json:"include"`
}

// ExtractRecordsLLM flattens the grid to delimited row strings,
// compresses to the highest-signal rows when the payload exceeds the
// ceiling, and asks the completion service to return structured
// records with a per-row inclusion judgment.
func (e *Extractor) ExtractRecordsLLM(ctx context.Context, grid models.Grid, opts *RowExtractOptions) ([]*models.CanonicalRecord, error) {
	if e.client == nil {
		return nil, apperrors.ConfigurationError(apperrors.CodeMissingCredentials, "completion client", nil)
	}
	if opts == nil {
		opts = DefaultRowExtractOptions()
	}
	if len(grid) == 0 {
		return nil, nil
	}

	rows := flattenGrid(grid, opts.CellMax)

	payload, err := json.Marshal(rows)
	if err != nil {
		return nil, apperrors.InternalError("row payload encoding", err)
	}

	if len(payload) > opts.MaxChars {
		rows = compressRows(grid, rows, opts)
		payload, err = json.Marshal(rows)
		if err != nil {
			return nil, apperrors.InternalError("row payload encoding", err)
		}
		if len(payload) > opts.MaxChars {
			return nil, apperrors.PayloadError(len(payload), opts.MaxChars)
		}
		e.log.WithFields(logger.Fields{
			"kept":  len(rows),
			"total": len(grid),
		}).Debug("compressed row payload")
	}

	text, err := e.client.Complete(ctx, rowExtractSystemPrompt, string(payload))
	if err != nil {
		return nil, err
	}
	result, err := completion.ParseArray(text)
	if err != nil {
		return nil, err
	}

	var records []*models.CanonicalRecord
	for _, row := range completion.Decode[extractedRow](result) {
		if row.ID == nil || !row.Include {
			continue
		}
		if row.Date == "" || row.Amount == "" {
			continue
		}
		rec := models.NewCanonicalRecord(row.Date, row.Text, row.Amount)
		rec.DocNumber = row.Number
		records = append(records, rec)
	}
	return records, nil
}

// flattenGrid joins each row's cells with " | ", truncating long
// cells, and attaches positional ids.
func flattenGrid(grid models.Grid, cellMax int) []flatRow {
	rows := make([]flatRow, 0, len(grid))
	for i, row := range grid {
		cells := make([]string, 0, len(row))
		for _, cell := range row {
			cell = strings.TrimSpace(cell)
			if cellMax > 0 {
				if r := []rune(cell); len(r) > cellMax {
					cell = string(r[:cellMax])
				}
			}
			cells = append(cells, cell)
		}
		rows = append(rows, flatRow{ID: i, Row: strings.Join(cells, " | ")})
	}
	return rows
}

// compressRows keeps the first HeaderRows rows verbatim plus the
// MaxRows highest-signal data rows, restored to original order.
func compressRows(grid models.Grid, rows []flatRow, opts *RowExtractOptions) []flatRow {
	headerRows := opts.HeaderRows
	if headerRows > len(rows) {
		headerRows = len(rows)
	}

	type scored struct {
		row   flatRow
		score int
	}
	var candidates []scored
	for i := headerRows; i < len(rows); i++ {
		candidates = append(candidates, scored{row: rows[i], score: rowSignal(grid[i])})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].score > candidates[j].score
	})

	keep := opts.MaxRows
	if keep > len(candidates) {
		keep = len(candidates)
	}

	selected := make([]flatRow, 0, headerRows+keep)
	selected = append(selected, rows[:headerRows]...)
	for _, c := range candidates[:keep] {
		selected = append(selected, c.row)
	}
	sort.Slice(selected, func(i, j int) bool { return selected[i].ID < selected[j].ID })
	return selected
}

// rowSignal scores a row's likelihood of carrying a document line:
// date-shaped and numeric-shaped cells, the document marker glyph,
// accounting keywords anywhere in the row, and cell density.
func rowSignal(row []string) int {
	score := 0
	nonEmpty := 0
	var hasDate, hasNumeric, hasMarker bool

	joined := strings.ToLower(strings.Join(row, " "))
	for _, cell := range row {
		cell = strings.TrimSpace(cell)
		if cell == "" {
			continue
		}
		nonEmpty++
		if normalize.IsDate(cell) {
			hasDate = true
		}
		if normalize.IsNumeric(cell) {
			hasNumeric = true
		}
		if strings.Contains(cell, "№") {
			hasMarker = true
		}
	}

	if hasDate {
		score += 3
	}
	if hasNumeric {
		score += 2
	}
	if hasMarker {
		score++
	}
	for _, kw := range accountingKeywords {
		if strings.Contains(joined, kw) {
			score += 2
		}
	}

	density := nonEmpty
	if density > 5 {
		density = 5
	}
	score += density

	return score
}
