package spreadsheet

import (
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"

	"act-reconciliation-service/internal/models"
	"act-reconciliation-service/pkg/errors"
)

// Report template geometry. The layout is fixed: managers work in a
// shared template and formulas reference these positions.
const (
	reportWidth         = 37
	reportHeaderRows    = 2
	reportDocColumn     = 5
	reportCommentColumn = 36
	summaryLabelColumn  = 1
	summaryValueColumn  = 2
)

type columnKind int

const (
	kindActDate columnKind = iota
	kindActText
	kindActAmount
	kindField
	kindAmount
	kindDelta
	kindOrgUnit
	kindComment
)

type reportColumn struct {
	index  int
	kind   columnKind
	system string
	field  string
}

// reportColumns mirrors the shared report template column for column.
var reportColumns = []reportColumn{
	{index: 4, kind: kindActDate},
	{index: 5, kind: kindActText},
	{index: 6, kind: kindActAmount},

	{index: 8, kind: kindField, system: "IIKO", field: "date"},
	{index: 9, kind: kindField, system: "IIKO", field: "docNumber"},
	{index: 10, kind: kindField, system: "IIKO", field: "partner"},
	{index: 11, kind: kindField, system: "IIKO", field: "warehouse"},
	{index: 12, kind: kindAmount, system: "IIKO"},
	{index: 13, kind: kindField, system: "IIKO", field: "comment"},
	{index: 14, kind: kindDelta, system: "IIKO"},

	{index: 16, kind: kindField, system: "FB", field: "docNumber"},
	{index: 17, kind: kindField, system: "FB", field: "type"},
	{index: 18, kind: kindField, system: "FB", field: "linked"},
	{index: 19, kind: kindField, system: "FB", field: "partner"},
	{index: 20, kind: kindField, system: "FB", field: "point"},
	{index: 21, kind: kindField, system: "FB", field: "date"},
	{index: 22, kind: kindField, system: "FB", field: "status"},
	{index: 23, kind: kindField, system: "FB", field: "deliveryStatus"},
	{index: 24, kind: kindAmount, system: "FB"},
	{index: 25, kind: kindDelta, system: "FB"},

	{index: 26, kind: kindField, system: "DOCSINBOX", field: "buyer"},
	{index: 27, kind: kindField, system: "DOCSINBOX", field: "status"},
	{index: 28, kind: kindOrgUnit, system: "DOCSINBOX"},

	{index: 31, kind: kindDelta, system: "SBIS"},
	{index: 32, kind: kindField, system: "SBIS", field: "status"},

	{index: 34, kind: kindDelta, system: "SAP"},
	{index: 35, kind: kindField, system: "SAP", field: "docType"},

	{index: reportCommentColumn, kind: kindComment},
}

func renderReportRow(row *models.MatchedRow) []string {
	out := make([]string, reportWidth)
	for _, col := range reportColumns {
		switch col.kind {
		case kindActDate:
			out[col.index] = row.Date
		case kindActText:
			out[col.index] = row.Text
		case kindActAmount:
			out[col.index] = row.Amount.String()
		case kindComment:
			out[col.index] = row.ManagerComment
		default:
			match, ok := row.Systems[col.system]
			if !ok {
				continue
			}
			switch col.kind {
			case kindDelta:
				out[col.index] = match.Delta.String()
			case kindAmount:
				if match.Matched {
					out[col.index] = match.Amount.String()
				}
			case kindOrgUnit:
				if match.Matched {
					out[col.index] = match.OrgUnit
				}
			case kindField:
				if match.Matched {
					out[col.index] = match.Fields[col.field]
				}
			}
		}
	}
	return out
}

func joinOrNone(items []string) string {
	if len(items) == 0 {
		return "Нет"
	}
	return strings.Join(items, ", ")
}

// summaryLines renders the totals block written into the leading
// columns of the report, one label/value pair per data row.
func summaryLines(summary *models.Summary, systems []string, primary string) [][2]string {
	var lines [][2]string
	for _, name := range systems {
		lines = append(lines, [2]string{"Оборот " + name, summary.SystemTotals[name].String()})
	}
	lines = append(lines, [2]string{"Оборот Акт", summary.ActTotal.String()})
	for _, name := range systems {
		lines = append(lines, [2]string{"Дельта (Акт - " + name + ")", summary.Deltas[name].String()})
	}
	lines = append(lines,
		[2]string{"Кол-во док. Акт", strconv.Itoa(summary.ActCount)},
		[2]string{"Кол-во док. " + primary, strconv.Itoa(summary.SystemCounts[primary])},
		[2]string{"Дельта кол-ва", strconv.Itoa(summary.CountDelta)},
		[2]string{"Дубли " + primary, joinOrNone(summary.Duplicates)},
		[2]string{"Лишние в " + primary, joinOrNone(summary.SystemOnly)},
		[2]string{"Лишние в Акте", joinOrNone(summary.ActOnly)},
	)
	return lines
}

// UpdateReport rewrites the data region of a report sheet in place,
// preserving manager comments keyed by act document text. The sheet
// is created when absent. systems lists the systems shown in the
// summary block; primary names the system whose counts and exception
// lists the block reports.
func UpdateReport(f *excelize.File, sheetName string, rows []models.MatchedRow, summary *models.Summary, systems []string, primary string) error {
	idx, err := f.GetSheetIndex(sheetName)
	if err != nil {
		return errors.TableError(errors.CodeEmptySheet, sheetName, err)
	}
	if idx < 0 {
		if _, err := f.NewSheet(sheetName); err != nil {
			return errors.TableError(errors.CodeEmptySheet, sheetName, err)
		}
	}

	old, err := f.GetRows(sheetName)
	if err != nil {
		return errors.TableError(errors.CodeEmptySheet, sheetName, err)
	}
	comments := harvestComments(old)

	var lines [][2]string
	if summary != nil {
		lines = summaryLines(summary, systems, primary)
	}

	var out [][]string
	for _, row := range rows {
		rendered := renderReportRow(&row)
		doc := strings.TrimSpace(row.Text)
		if rendered[reportCommentColumn] == "" && doc != "" {
			rendered[reportCommentColumn] = comments[doc]
		}
		out = append(out, rendered)
	}
	// Pad so the whole summary block is visible even for short acts.
	for len(out) < len(lines) {
		out = append(out, make([]string, reportWidth))
	}
	for i, line := range lines {
		out[i][summaryLabelColumn] = line[0]
		out[i][summaryValueColumn] = line[1]
	}
	// Blank out leftover rows from the previous run.
	for len(out) < len(old)-reportHeaderRows {
		out = append(out, make([]string, reportWidth))
	}

	for i, row := range out {
		cell, err := excelize.CoordinatesToCellName(1, reportHeaderRows+1+i)
		if err != nil {
			return errors.InternalError("report cell address", err)
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return errors.InternalError("write report row", err)
		}
	}
	return nil
}

// harvestComments collects non-empty manager comments from a previous
// report, keyed by the act document cell.
func harvestComments(old [][]string) map[string]string {
	comments := make(map[string]string)
	for i := reportHeaderRows; i < len(old); i++ {
		doc := models.RowCell(old[i], reportDocColumn)
		comment := models.RowCell(old[i], reportCommentColumn)
		if doc != "" && comment != "" {
			comments[doc] = comment
		}
	}
	return comments
}

// WriteSheet replaces a sheet's contents with a header row and data
// rows, creating the sheet when absent.
func WriteSheet(f *excelize.File, sheetName string, headers []string, rows [][]string) error {
	idx, err := f.GetSheetIndex(sheetName)
	if err != nil {
		return errors.TableError(errors.CodeEmptySheet, sheetName, err)
	}
	if idx >= 0 {
		if err := f.DeleteSheet(sheetName); err != nil {
			return errors.TableError(errors.CodeEmptySheet, sheetName, err)
		}
	}
	if _, err := f.NewSheet(sheetName); err != nil {
		return errors.TableError(errors.CodeEmptySheet, sheetName, err)
	}
	if err := f.SetSheetRow(sheetName, "A1", &headers); err != nil {
		return errors.InternalError("write header row", err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return errors.InternalError("sheet cell address", err)
		}
		if err := f.SetSheetRow(sheetName, cell, &row); err != nil {
			return errors.InternalError("write data row", err)
		}
	}
	return nil
}
