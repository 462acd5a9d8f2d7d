package reconciler

import (
	"testing"

	"github.com/shopspring/decimal"

	"act-reconciliation-service/internal/models"
	"act-reconciliation-service/internal/sysindex"
)

func createIndex(t *testing.T, docs map[string]string) *sysindex.Index {
	t.Helper()
	reg := sysindex.DefaultRegistry()
	cfg, _ := reg.Get("IIKO")
	var rows []map[string]string
	for doc, sum := range docs {
		rows = append(rows, map[string]string{"docNumber": doc, "partner": "ООО Ромашка", "sum": sum})
	}
	return sysindex.NewBuilder(reg, nil).Build(rows, cfg, "ООО Ромашка")
}

func TestFindDocExact(t *testing.T) {
	ix := createIndex(t, map[string]string{"20": "100"})

	recs, key := FindDoc("20", ix)
	if len(recs) != 1 || key != "20" {
		t.Errorf("expected exact match on key 20, got %d records key %q", len(recs), key)
	}
}

func TestFindDocPrefixWithAlphaSuffix(t *testing.T) {
	ix := createIndex(t, map[string]string{"20dp": "100"})

	recs, key := FindDoc("20", ix)
	if len(recs) != 1 || key != "20dp" {
		t.Errorf("expected prefix match on 20dp, got %d records key %q", len(recs), key)
	}
}

func TestFindDocRejectsDigitSuffix(t *testing.T) {
	// "20" must not match "205": the suffix starts with a digit.
	ix := createIndex(t, map[string]string{"205": "100"})

	if recs, _ := FindDoc("20", ix); recs != nil {
		t.Errorf("expected no match against digit-extended key, got %d records", len(recs))
	}
}

func TestFindDocEmptyTarget(t *testing.T) {
	ix := createIndex(t, map[string]string{"20": "100"})
	if recs, _ := FindDoc("", ix); recs != nil {
		t.Error("empty target must not match")
	}
}

func createReconcileSheets() []models.Sheet {
	iiko := models.Grid{
		{"Дата", "Входящий номер", "Поставщик/Покупатель", "Склад", "Сумма, р.", "Комментарий"},
		{"01.02.2024", "20", "ООО Ромашка", "Основной склад", "1 000,50", ""},
		{"02.02.2024", "21dp", "ООО Ромашка", "Основной склад", "400", ""},
		{"03.02.2024", "55", "ООО Ромашка", "Основной склад", "300", ""},
	}
	sap := models.Grid{
		{"Дата документа", "Дата платежа", "Ссылка", "Наименование контрагента", "Сумма в ВВ", "Вид документа"},
		{"01.02.2024", "05.02.2024", "20", "ООО Ромашка", "-1000,50", "Счет-фактура"},
	}
	return []models.Sheet{
		{Name: "iiko", Grid: iiko},
		{Name: "sap", Grid: sap},
	}
}

func createActRecords() []*models.CanonicalRecord {
	return []*models.CanonicalRecord{
		{Date: "01.02.2024", Text: "Реализация №20", DocNumber: "20", Amount: "1000.50"},
		{Date: "02.02.2024", Text: "Реализация №21", DocNumber: "21", Amount: "400"},
		{Date: "03.02.2024", Text: "Возврат №9", DocNumber: "9", Amount: "200"},
	}
}

func TestReconcile(t *testing.T) {
	r := New(sysindex.DefaultRegistry(), nil, nil)

	result, err := r.Reconcile(createActRecords(), createReconcileSheets(), "ООО Ромашка")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(result.Rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(result.Rows))
	}

	// Row 1: exact match in both systems.
	row := result.Rows[0]
	iiko := row.Systems["IIKO"]
	if iiko == nil || !iiko.Matched {
		t.Fatal("expected IIKO match for row 1")
	}
	if !iiko.Delta.IsZero() {
		t.Errorf("IIKO delta = %s, want 0", iiko.Delta)
	}
	sap := row.Systems["SAP"]
	if sap == nil || !sap.Matched {
		t.Fatal("expected SAP match for row 1")
	}
	// SAP posts negatives: delta is act + sap.
	if !sap.Delta.IsZero() {
		t.Errorf("SAP delta = %s, want 0", sap.Delta)
	}

	// Row 2: prefix match 21 -> 21dp.
	row = result.Rows[1]
	iiko = row.Systems["IIKO"]
	if iiko == nil || !iiko.Matched {
		t.Fatal("expected IIKO prefix match for row 2")
	}
	if iiko.Fields["docNumber"] != "21dp" {
		t.Errorf("matched document = %q, want 21dp", iiko.Fields["docNumber"])
	}

	// Row 3: unmatched correction, delta carries the act amount.
	row = result.Rows[2]
	iiko = row.Systems["IIKO"]
	if iiko == nil || iiko.Matched {
		t.Fatal("expected no IIKO match for row 3")
	}
	if !iiko.Delta.Equal(decimal.NewFromInt(200)) {
		t.Errorf("unmatched delta = %s, want 200", iiko.Delta)
	}
}

func TestReconcileSummary(t *testing.T) {
	r := New(sysindex.DefaultRegistry(), nil, nil)

	result, err := r.Reconcile(createActRecords(), createReconcileSheets(), "ООО Ромашка")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s := result.Summary

	// The correction line is excluded from act turnover.
	if !s.ActTotal.Equal(decimal.RequireFromString("1400.50")) {
		t.Errorf("act total = %s, want 1400.50", s.ActTotal)
	}
	if s.ActCount != 2 {
		t.Errorf("act count = %d, want 2", s.ActCount)
	}

	if !s.SystemTotals["IIKO"].Equal(decimal.RequireFromString("1700.50")) {
		t.Errorf("IIKO total = %s, want 1700.50", s.SystemTotals["IIKO"])
	}
	if !s.Deltas["IIKO"].Equal(decimal.NewFromInt(-300)) {
		t.Errorf("IIKO delta = %s, want -300", s.Deltas["IIKO"])
	}
	// SAP turnover is negative by convention, summary delta adds it.
	if !s.Deltas["SAP"].Equal(decimal.NewFromInt(400)) {
		t.Errorf("SAP delta = %s, want 400", s.Deltas["SAP"])
	}

	if s.CountDelta != -1 {
		t.Errorf("count delta = %d, want -1", s.CountDelta)
	}
	if len(s.SystemOnly) != 1 || s.SystemOnly[0] != "55" {
		t.Errorf("system-only = %v, want [55]", s.SystemOnly)
	}
	if len(s.ActOnly) != 1 || s.ActOnly[0] != "9" {
		t.Errorf("act-only = %v, want [9]", s.ActOnly)
	}
	if len(s.Duplicates) != 0 {
		t.Errorf("duplicates = %v, want none", s.Duplicates)
	}
}

func TestReconcileEmptyAct(t *testing.T) {
	r := New(sysindex.DefaultRegistry(), nil, nil)
	if _, err := r.Reconcile(nil, createReconcileSheets(), "ООО Ромашка"); err == nil {
		t.Fatal("expected error for empty act")
	}
}

func TestActTurnover(t *testing.T) {
	total, count := ActTurnover(createActRecords())
	if !total.Equal(decimal.RequireFromString("1400.50")) {
		t.Errorf("total = %s, want 1400.50", total)
	}
	if count != 2 {
		t.Errorf("count = %d, want 2", count)
	}
}
