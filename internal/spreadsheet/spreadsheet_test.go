package spreadsheet

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"github.com/xuri/excelize/v2"
	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/transform"

	"act-reconciliation-service/internal/models"
)

func TestReadFileUnsupportedExtension(t *testing.T) {
	if _, err := ReadFile("data.pdf", []byte("x")); err == nil {
		t.Fatal("expected error for unsupported extension")
	}
}

func TestReadCSVSemicolon(t *testing.T) {
	data := []byte("Дата;Номер;Сумма\n01.02.2024;20;1000,50\n")

	sheets, err := ReadFile("export.csv", data)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sheets) != 1 || sheets[0].Name != "export" {
		t.Fatalf("unexpected sheets: %+v", sheets)
	}
	grid := sheets[0].Grid
	if len(grid) != 2 || grid[1][1] != "20" {
		t.Errorf("unexpected grid: %v", grid)
	}
}

func TestReadCSVWindows1251(t *testing.T) {
	utf8Data := "Дата;Сумма\n01.02.2024;500\n"
	encoded, err := io.ReadAll(transform.NewReader(strings.NewReader(utf8Data), charmap.Windows1251.NewEncoder()))
	if err != nil {
		t.Fatalf("encoding fixture: %v", err)
	}

	sheets, err := ReadFile("export.csv", encoded)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if sheets[0].Grid[0][0] != "Дата" {
		t.Errorf("expected decoded header, got %q", sheets[0].Grid[0][0])
	}
}

func TestReadXLSXRoundTrip(t *testing.T) {
	f := excelize.NewFile()
	f.SetSheetRow("Sheet1", "A1", &[]string{"Дата", "Номер"})
	f.SetSheetRow("Sheet1", "A2", &[]string{"01.02.2024", "20"})
	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		t.Fatalf("fixture write: %v", err)
	}

	sheets, err := ReadFile("act.xlsx", buf.Bytes())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sheets) != 1 || len(sheets[0].Grid) != 2 {
		t.Fatalf("unexpected sheets: %+v", sheets)
	}
	if sheets[0].Grid[1][1] != "20" {
		t.Errorf("cell = %q, want 20", sheets[0].Grid[1][1])
	}
}

func TestSniffSeparator(t *testing.T) {
	tests := []struct {
		name string
		data string
		want rune
	}{
		{"semicolon", "a;b;c\n1;2;3", ';'},
		{"comma", "a,b,c\n", ','},
		{"tab", "a\tb\tc\n", '\t'},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sniffSeparator([]byte(tt.data)); got != tt.want {
				t.Errorf("sniffSeparator = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestLoadUnitMaps(t *testing.T) {
	rawGrid := make(models.Grid, 4)
	rawGrid[0] = []string{"шапка"}
	rawGrid[1] = []string{"шапка"}
	rawGrid[2] = make([]string, 19)
	rawGrid[2][3] = "КРД Красная ул., 176"
	rawGrid[2][18] = "Иванов И.И."
	rawGrid[3] = make([]string, 19)

	regGrid := make(models.Grid, 3)
	regGrid[0] = []string{"шапка"}
	regGrid[1] = []string{"шапка"}
	regGrid[2] = make([]string, 13)
	regGrid[2][2] = "Кафе Центральное"
	regGrid[2][12] = "Петров П.П."

	rawMaterials, regular := LoadUnitMaps([]models.Sheet{
		{Name: "Точка-ТУ СП", Grid: rawGrid},
		{Name: "Точка-ТУ", Grid: regGrid},
		{Name: "прочее", Grid: models.Grid{{"x"}}},
	})

	if rawMaterials["КРД Красная ул., 176"] != "Иванов И.И." {
		t.Errorf("raw-materials map = %v", rawMaterials)
	}
	if regular["Кафе Центральное"] != "Петров П.П." {
		t.Errorf("regular map = %v", regular)
	}
}

func TestLoadUnitMapsMissingSheets(t *testing.T) {
	rawMaterials, regular := LoadUnitMaps(nil)
	if len(rawMaterials) != 0 || len(regular) != 0 {
		t.Error("expected empty maps for missing sheets")
	}
}
