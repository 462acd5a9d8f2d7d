// Package tabledetect infers tabular structure from raw, unlabeled
// grids.
//
// Two independent strategies run in order and the first success wins:
// block detection for ledger-style sheets with a recognizable
// date/document/debit/credit header, and column-role scoring for
// everything else. Column scoring never fails outright; with no signal
// it picks zero-score columns and extraction downstream produces no
// rows.
package tabledetect

import (
	"strings"

	"act-reconciliation-service/internal/models"
	"act-reconciliation-service/internal/normalize"
)

// Header tokens that anchor block detection, in normalized form.
const (
	tokenDate     = "дата"
	tokenDocument = "документ"
	tokenDebit    = "дебет"
	tokenCredit   = "кредит"
)

// Config bounds the detection scans.
type Config struct {
	// HeaderScanRows limits how deep block detection looks for a
	// header row.
	HeaderScanRows int
	// SampleRows limits how many rows column scoring samples.
	SampleRows int
}

// DefaultConfig returns the detection bounds used in production.
func DefaultConfig() *Config {
	return &Config{
		HeaderScanRows: 20,
		SampleRows:     200,
	}
}

// Block is a self-contained date/document/debit/credit column group.
// Several blocks can sit side by side under one header row.
// Column indices are zero-based; -1 marks an absent column.
type Block struct {
	DateCol   int
	DocCol    int
	DebitCol  int
	CreditCol int
	// HeaderRow is the index of the header row; data starts on the
	// following row.
	HeaderRow int
}

// ColumnRoles holds the columns picked by role scoring. -1 marks a
// role with no column, which only happens on an empty grid.
type ColumnRoles struct {
	Date   int
	Amount int
	Text   int
}

// DetectBlocks scans the top of the grid for a ledger header row and
// returns every valid block it defines. A block is valid only if it
// has a document column and at least one of debit/credit.
func DetectBlocks(grid models.Grid, cfg *Config) []Block {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	headerRow := -1
	limit := len(grid)
	if limit > cfg.HeaderScanRows {
		limit = cfg.HeaderScanRows
	}
	for i := 0; i < limit; i++ {
		if isBlockHeader(grid[i]) {
			headerRow = i
			break
		}
	}
	if headerRow < 0 {
		return nil
	}

	header := grid[headerRow]
	var blocks []Block
	for col, cell := range header {
		if normalize.Header(cell) != tokenDate {
			continue
		}
		doc := findHeaderOffset(header, col+1, tokenDocument)
		debit := findHeaderOffset(header, col+1, tokenDebit)
		credit := findHeaderOffset(header, col+1, tokenCredit)
		if doc >= 0 && (debit >= 0 || credit >= 0) {
			blocks = append(blocks, Block{
				DateCol:   col,
				DocCol:    doc,
				DebitCol:  debit,
				CreditCol: credit,
				HeaderRow: headerRow,
			})
		}
	}
	return blocks
}

func isBlockHeader(row []string) bool {
	var hasDate, hasDoc, hasAmount bool
	for _, cell := range row {
		switch normalize.Header(cell) {
		case tokenDate:
			hasDate = true
		case tokenDocument:
			hasDoc = true
		case tokenDebit, tokenCredit:
			hasAmount = true
		}
	}
	return hasDate && hasDoc && hasAmount
}

func findHeaderOffset(header []string, start int, token string) int {
	for i := start; i < len(header); i++ {
		if normalize.Header(header[i]) == token {
			return i
		}
	}
	return -1
}

// DetectColumns scores every column for date-likeness, numeric-likeness
// and text-likeness over a bounded sample and assigns the three roles.
// Ties resolve to the lowest column index because scores are compared
// with strict greater-than.
func DetectColumns(grid models.Grid, cfg *Config) ColumnRoles {
	if cfg == nil {
		cfg = DefaultConfig()
	}

	roles := ColumnRoles{Date: -1, Amount: -1, Text: -1}
	if len(grid) == 0 {
		return roles
	}

	columnCount := len(grid[0])
	type score struct{ date, numeric, text int }
	scores := make([]score, columnCount)

	limit := len(grid)
	if limit > cfg.SampleRows {
		limit = cfg.SampleRows
	}
	// Row 0 is skipped as a presumed header.
	for rowIdx := 1; rowIdx < limit; rowIdx++ {
		for col := 0; col < columnCount; col++ {
			val := grid.Cell(rowIdx, col)
			if val == "" {
				continue
			}
			if normalize.IsDate(val) {
				scores[col].date++
			}
			if normalize.IsNumeric(val) {
				scores[col].numeric++
			}
			if hasTextSignal(val) {
				scores[col].text++
			}
		}
	}

	roles.Date = pickBest(columnCount, func(c int) int { return scores[c].date }, roles)
	roles.Amount = pickBest(columnCount, func(c int) int { return scores[c].numeric }, roles)
	roles.Text = pickBest(columnCount, func(c int) int { return scores[c].text }, roles)
	return roles
}

func hasTextSignal(val string) bool {
	if strings.Contains(val, "№") {
		return true
	}
	for _, r := range val {
		if (r >= 'A' && r <= 'Z') || (r >= 'a' && r <= 'z') ||
			(r >= 'А' && r <= 'я') || r == 'Ё' || r == 'ё' {
			return true
		}
	}
	return false
}

func pickBest(columnCount int, score func(int) int, taken ColumnRoles) int {
	best := -1
	bestScore := -1
	for col := 0; col < columnCount; col++ {
		if col == taken.Date || col == taken.Amount || col == taken.Text {
			continue
		}
		if s := score(col); s > bestScore {
			bestScore = s
			best = col
		}
	}
	return best
}
