package extract

import (
	"context"
	"testing"

	"act-reconciliation-service/internal/models"
	"act-reconciliation-service/internal/tabledetect"
)

func TestNumberFromText(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
	}{
		{"marked number wins", "Реализация №20 (сф 20/DP)", "20"},
		{"marked with space", "Акт № 77-А от 01.02.2024", "77-А"},
		{"digit run fallback", "Поступление 4512 от поставщика", "4512"},
		{"digits glued to letters skipped", "Накладная ТН45 присвоена позже 778", "778"},
		{"alnum run fallback", "в/н-ab7", "в/н-ab7"},
		{"nothing", "от", ""},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NumberFromText(tt.text); got != tt.want {
				t.Errorf("NumberFromText(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestStandaloneDigitRunCyrillicBoundary(t *testing.T) {
	// A digit run glued to a Cyrillic letter is not standalone even
	// though ASCII word boundaries would accept it.
	if got := standaloneDigitRun("ТН45"); got != "" {
		t.Errorf("standaloneDigitRun(%q) = %q, want empty", "ТН45", got)
	}
	if got := standaloneDigitRun("акт 45 шт"); got != "45" {
		t.Errorf("standaloneDigitRun = %q, want 45", got)
	}
}

func TestFromBlocks(t *testing.T) {
	grid := models.Grid{
		{"Дата", "Документ", "Дебет", "Кредит"},
		{"01.02.2024", "Реализация №20", "1 234,56", ""},
		{"", "", "", ""},
		{"02.02.2024", "Возврат №7", "", "100"},
		{"итого", "", "9999", ""},
	}
	blocks := tabledetect.DetectBlocks(grid, nil)
	if len(blocks) != 1 {
		t.Fatalf("expected 1 block, got %d", len(blocks))
	}

	records := FromBlocks(grid, blocks)
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Amount != "1234.56" {
		t.Errorf("debit amount = %q, want 1234.56", records[0].Amount)
	}
	if records[1].Amount != "100" {
		t.Errorf("credit fallback amount = %q, want 100", records[1].Amount)
	}
	if records[1].Text != "Возврат №7" {
		t.Errorf("text = %q", records[1].Text)
	}
}

func TestFromColumns(t *testing.T) {
	grid := models.Grid{
		{"заголовок", "", ""},
		{"01.02.2024", "Реализация №20", "500"},
		{"не дата", "мусор", "500"},
		{"02.02.2024", "", "600"},
		{"03.02.2024", "УПД №3", "700,10"},
	}
	roles := tabledetect.ColumnRoles{Date: 0, Text: 1, Amount: 2}

	records := FromColumns(grid, roles)
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].Text != "Реализация №20" || records[1].Amount != "700.10" {
		t.Errorf("unexpected records: %v, %v", records[0], records[1])
	}
}

func TestApplyNumberExtractionRegexOnly(t *testing.T) {
	e := NewExtractor(nil, nil)
	records := []*models.CanonicalRecord{
		{Text: "Реализация №20 (сф 20/DP)"},
		{Text: "без номера вовсе"},
	}

	err := e.ApplyNumberExtraction(context.Background(), records, &Options{NumberMode: NumberModeRegexOnly})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if records[0].DocNumber != "20" {
		t.Errorf("DocNumber = %q, want 20", records[0].DocNumber)
	}
	if records[1].DocNumber != "без" {
		t.Errorf("DocNumber = %q, want alnum fallback", records[1].DocNumber)
	}
}

func TestApplyNumberExtractionUnknownMode(t *testing.T) {
	e := NewExtractor(nil, nil)
	err := e.ApplyNumberExtraction(context.Background(), nil, &Options{NumberMode: "magic"})
	if err == nil {
		t.Fatal("expected error for unknown mode")
	}
}

func TestApplyNumberExtractionLLMWithoutClient(t *testing.T) {
	e := NewExtractor(nil, nil)
	records := []*models.CanonicalRecord{{Text: "без номера"}}
	err := e.ApplyNumberExtraction(context.Background(), records, &Options{NumberMode: NumberModeLLMOnly})
	if err == nil {
		t.Fatal("expected configuration error without a client")
	}
}
