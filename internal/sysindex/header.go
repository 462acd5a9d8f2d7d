package sysindex

import (
	"strings"

	"act-reconciliation-service/internal/models"
	"act-reconciliation-service/internal/normalize"
)

const (
	// headerScanRows bounds the header search in noisy exports that
	// start with titles, filters and legends.
	headerScanRows = 100

	// detectMinScore is the minimum label-match score for a sheet to
	// be attributed to a system.
	detectMinScore = 3
)

// headerScore counts how many of the system's fields have at least one
// label present in the row. A label matches a cell when the normalized
// cell contains the normalized label.
func headerScore(row []string, cfg *SystemConfig) int {
	cells := make([]string, 0, len(row))
	for _, c := range row {
		cells = append(cells, normalize.Header(c))
	}
	score := 0
	for _, field := range cfg.Fields {
		if labelColumn(cells, field.Labels) >= 0 {
			score++
		}
	}
	return score
}

func labelColumn(cells []string, labels []string) int {
	for _, label := range labels {
		want := normalize.Header(label)
		if want == "" {
			continue
		}
		for i, cell := range cells {
			if cell != "" && strings.Contains(cell, want) {
				return i
			}
		}
	}
	return -1
}

// FindHeaderRow scans the first rows of the grid and returns the index
// of the row best matching the system's field labels, with its score.
// The earliest row wins a tie. Returns -1 when no row matches at all.
func FindHeaderRow(grid models.Grid, cfg *SystemConfig) (int, int) {
	best, bestScore := -1, 0
	limit := len(grid)
	if limit > headerScanRows {
		limit = headerScanRows
	}
	for i := 0; i < limit; i++ {
		if score := headerScore(grid[i], cfg); score > bestScore {
			best, bestScore = i, score
		}
	}
	return best, bestScore
}

// BuildColumnMap maps the system's logical field keys to column
// indexes in the header row. Fields whose labels are absent are
// omitted; the first label in preference order that matches wins.
func BuildColumnMap(header []string, cfg *SystemConfig) map[string]int {
	cells := make([]string, 0, len(header))
	for _, c := range header {
		cells = append(cells, normalize.Header(c))
	}
	cols := make(map[string]int)
	for _, field := range cfg.Fields {
		if col := labelColumn(cells, field.Labels); col >= 0 {
			cols[field.Key] = col
		}
	}
	return cols
}

// DetectSystem attributes a grid to one of the registered systems by
// header label overlap. It returns the winning configuration together
// with the header row index, or (nil, -1) when no system reaches the
// minimum score.
func DetectSystem(grid models.Grid, reg *Registry) (*SystemConfig, int) {
	var winner *SystemConfig
	winnerRow, winnerScore := -1, 0
	for _, name := range reg.Names() {
		cfg, _ := reg.Get(name)
		row, score := FindHeaderRow(grid, cfg)
		if score > winnerScore {
			winner, winnerRow, winnerScore = cfg, row, score
		}
	}
	if winnerScore < detectMinScore {
		return nil, -1
	}
	return winner, winnerRow
}

// ExtractRows converts the data rows below the header into raw records
// keyed by the system's logical field names. Rows with no mapped
// non-empty cell are skipped.
func ExtractRows(grid models.Grid, headerRow int, cfg *SystemConfig) []map[string]string {
	if headerRow < 0 || headerRow >= len(grid) {
		return nil
	}
	cols := BuildColumnMap(grid[headerRow], cfg)
	if len(cols) == 0 {
		return nil
	}
	var records []map[string]string
	for i := headerRow + 1; i < len(grid); i++ {
		record := make(map[string]string, len(cols))
		empty := true
		for key, col := range cols {
			value := models.RowCell(grid[i], col)
			record[key] = value
			if value != "" {
				empty = false
			}
		}
		if !empty {
			records = append(records, record)
		}
	}
	return records
}
