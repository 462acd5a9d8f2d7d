package reconciler

import "testing"

func createTestDirectory() *Directory {
	return NewDirectory(
		map[string]string{
			"КРД Красная ул., 176":  "Иванов И.И.",
			"КРД Северная ул., 320": "Сидоров С.С.",
		},
		map[string]string{
			"Кафе Центральное": "Петров П.П.",
			"Бар Набережная":   "Кузнецов К.К.",
		},
	)
}

func TestForWarehouseRawMaterials(t *testing.T) {
	d := createTestDirectory()

	unit := d.ForWarehouse("Сырье / КРД Красная ул 176")
	if unit != "Иванов И.И." {
		t.Errorf("unit = %q, want raw-materials directory hit", unit)
	}
}

func TestForWarehouseRegular(t *testing.T) {
	d := createTestDirectory()

	unit := d.ForWarehouse("Кафе Центральное")
	if unit != "Петров П.П." {
		t.Errorf("unit = %q, want regular directory hit", unit)
	}
}

func TestForWarehouseNoMatch(t *testing.T) {
	d := createTestDirectory()

	if unit := d.ForWarehouse("Совсем неизвестный склад"); unit != "" {
		t.Errorf("unit = %q, want empty", unit)
	}
	if unit := d.ForWarehouse(""); unit != "" {
		t.Errorf("unit = %q, want empty for blank name", unit)
	}
}

func TestForBuyerRelaxedCutoff(t *testing.T) {
	d := createTestDirectory()

	// Parenthesized qualifier is stripped before matching.
	unit := d.ForBuyer(`ООО "Кафе Центральное" (юрлицо)`)
	if unit != "Петров П.П." {
		t.Errorf("unit = %q, want buyer fallback hit", unit)
	}
}

func TestForBuyerNoMatch(t *testing.T) {
	d := createTestDirectory()

	if unit := d.ForBuyer("Иное предприятие"); unit != "" {
		t.Errorf("unit = %q, want empty", unit)
	}
}

func TestEmptyDirectory(t *testing.T) {
	d := NewDirectory(nil, nil)

	if unit := d.ForWarehouse("Кафе Центральное"); unit != "" {
		t.Errorf("unit = %q, want empty for empty directory", unit)
	}
	if unit := d.ForBuyer("Кафе Центральное"); unit != "" {
		t.Errorf("unit = %q, want empty for empty directory", unit)
	}
}
