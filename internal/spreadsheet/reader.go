// Package spreadsheet reads heterogeneous act and system exports into
// string grids and writes reconciliation reports back out.
package spreadsheet

import (
	"bytes"
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/shakinm/xlsReader/xls"
	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"act-reconciliation-service/internal/models"
	"act-reconciliation-service/pkg/errors"
)

// ReadFile parses file contents into sheets, dispatching on the file
// extension. Supported formats: xlsx/xlsm, legacy xls, csv.
func ReadFile(fileName string, data []byte) ([]models.Sheet, error) {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".xlsx", ".xlsm":
		return readXLSX(fileName, data)
	case ".xls":
		return readXLS(fileName, data)
	case ".csv":
		return readCSV(fileName, data)
	default:
		return nil, errors.InputError(errors.CodeUnreadableFile, fileName, nil).
			WithSuggestion("Supported formats: .xlsx, .xlsm, .xls, .csv")
	}
}

func readXLSX(fileName string, data []byte) ([]models.Sheet, error) {
	f, err := excelize.OpenReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.InputError(errors.CodeUnreadableFile, fileName, err)
	}
	defer f.Close()

	var sheets []models.Sheet
	for _, name := range f.GetSheetList() {
		// Raw values keep dates and amounts as entered instead of
		// excelize's locale-formatted rendering.
		rows, err := f.GetRows(name, excelize.Options{RawCellValue: true})
		if err != nil {
			return nil, errors.TableError(errors.CodeEmptySheet, name, err)
		}
		sheets = append(sheets, models.Sheet{Name: name, Grid: rows})
	}
	return sheets, nil
}

// readXLS goes through a temp file: the legacy-format reader only
// opens paths.
func readXLS(fileName string, data []byte) ([]models.Sheet, error) {
	tmp, err := os.CreateTemp("", "recon-*.xls")
	if err != nil {
		return nil, errors.InternalError("create temp file", err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return nil, errors.InternalError("write temp file", err)
	}
	tmp.Close()

	workbook, err := xls.OpenFile(tmp.Name())
	if err != nil {
		return nil, errors.InputError(errors.CodeUnreadableFile, fileName, err)
	}

	var sheets []models.Sheet
	for i := 0; i < workbook.GetNumberSheets(); i++ {
		sheet, err := workbook.GetSheet(i)
		if err != nil || sheet == nil {
			continue
		}
		var grid models.Grid
		for r := 0; r <= sheet.GetNumberRows(); r++ {
			row, err := sheet.GetRow(r)
			if err != nil || row == nil {
				continue
			}
			var cells []string
			for _, col := range row.GetCols() {
				if col != nil {
					cells = append(cells, col.GetString())
				} else {
					cells = append(cells, "")
				}
			}
			grid = append(grid, cells)
		}
		sheets = append(sheets, models.Sheet{Name: sheet.GetName(), Grid: grid})
	}
	return sheets, nil
}

func readCSV(fileName string, data []byte) ([]models.Sheet, error) {
	if !utf8.Valid(data) {
		decoded, err := io.ReadAll(transform.NewReader(bytes.NewReader(data), charmap.Windows1251.NewDecoder()))
		if err != nil {
			return nil, errors.InputError(errors.CodeBadEncoding, fileName, err)
		}
		data = decoded
	}

	reader := csv.NewReader(bytes.NewReader(data))
	reader.Comma = sniffSeparator(data)
	reader.FieldsPerRecord = -1
	reader.LazyQuotes = true

	var grid models.Grid
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.InputError(errors.CodeUnreadableFile, fileName, err)
		}
		grid = append(grid, record)
	}
	name := strings.TrimSuffix(filepath.Base(fileName), filepath.Ext(fileName))
	return []models.Sheet{{Name: name, Grid: grid}}, nil
}

// sniffSeparator picks the delimiter most frequent in the first line.
// Russian-locale exports commonly use semicolons or tabs.
func sniffSeparator(data []byte) rune {
	line := data
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		line = data[:i]
	}
	best, bestCount := ',', bytes.Count(line, []byte(","))
	for _, sep := range []rune{';', '\t'} {
		if n := bytes.Count(line, []byte(string(sep))); n > bestCount {
			best, bestCount = sep, n
		}
	}
	return best
}
