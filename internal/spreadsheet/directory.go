package spreadsheet

import (
	"act-reconciliation-service/internal/models"
)

// Point directory sheet names and fixed column positions, matching
// the shared mapping workbook.
const (
	rawMaterialsSheet   = "Точка-ТУ СП"
	rawMaterialsKeyCol  = 3
	rawMaterialsUnitCol = 18

	regularSheet   = "Точка-ТУ"
	regularKeyCol  = 2
	regularUnitCol = 12

	directoryHeaderRows = 2
)

// LoadUnitMaps extracts the two point-to-unit directories from the
// mapping workbook's sheets. Missing sheets yield empty maps.
func LoadUnitMaps(sheets []models.Sheet) (rawMaterials, regular map[string]string) {
	rawMaterials = make(map[string]string)
	regular = make(map[string]string)
	for _, sheet := range sheets {
		switch sheet.Name {
		case rawMaterialsSheet:
			fillUnitMap(rawMaterials, sheet.Grid, rawMaterialsKeyCol, rawMaterialsUnitCol)
		case regularSheet:
			fillUnitMap(regular, sheet.Grid, regularKeyCol, regularUnitCol)
		}
	}
	return rawMaterials, regular
}

func fillUnitMap(m map[string]string, grid models.Grid, keyCol, unitCol int) {
	for i := directoryHeaderRows; i < len(grid); i++ {
		key := models.RowCell(grid[i], keyCol)
		unit := models.RowCell(grid[i], unitCol)
		if key != "" && unit != "" {
			m[key] = unit
		}
	}
}
