package normalize

import "testing"

func TestHeader(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"lowercases", "Дата Документа", "дата документа"},
		{"strips quotes", `«Номер» "накладной"`, "номер накладной"},
		{"collapses whitespace", "  Сумма,   р.  ", "сумма, р."},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Header(tt.input); got != tt.want {
				t.Errorf("Header(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestAmount(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"thousands space", "1 234,56", "1234.56"},
		{"non-breaking space", "-1 000", "-1000"},
		{"dot kept", "99.90", "99.90"},
		{"plain", "500", "500"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Amount(tt.input); got != tt.want {
				t.Errorf("Amount(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestDocNumber(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"strips separators", "20/DP-1", "20dp1"},
		{"leading zeros", "000123", "123"},
		{"cyrillic kept", "А-45", "а45"},
		{"spaces dropped", " 77 88 ", "7788"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := DocNumber(tt.input); got != tt.want {
				t.Errorf("DocNumber(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// Normalizing an already normalized number must not change it.
func TestDocNumberIdempotent(t *testing.T) {
	inputs := []string{"20/DP", "000123", "УПД-77", "abc", ""}
	for _, input := range inputs {
		once := DocNumber(input)
		twice := DocNumber(once)
		if once != twice {
			t.Errorf("DocNumber not idempotent for %q: %q != %q", input, once, twice)
		}
	}
}

func TestIsDate(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"01.02.2024", true},
		{"1/2/24", true},
		{"31.12.2023", true},
		{"2024-01-02", false},
		{"не дата", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsDate(tt.input); got != tt.want {
			t.Errorf("IsDate(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestIsNumeric(t *testing.T) {
	tests := []struct {
		input string
		want  bool
	}{
		{"1234,56", true},
		{"1 234,56", true},
		{"-500", true},
		{"1 000.00", true},
		{"20/DP", false},
		{"текст", false},
		{"", false},
	}

	for _, tt := range tests {
		if got := IsNumeric(tt.input); got != tt.want {
			t.Errorf("IsNumeric(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}
