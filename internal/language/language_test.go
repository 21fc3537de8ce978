package language

import (
	"reflect"
	"testing"
)

func TestToISO2CuratedCodes(t *testing.T) {
	cases := map[string]string{
		"en":         "en",
		"EN":         "en",
		"eng":        "en",
		"english":    "en",
		"French":     "fr",
		"fra":        "fr",
		"fre":        "fr",
		"ger":        "de",
		"deu":        "de",
		"chi":        "zh",
		"zho":        "zh",
		"dut":        "nl",
		"tur":        "tr",
		"vie":        "vi",
		"ind":        "id",
		"ukr":        "uk",
		"portuguese": "pt",
	}
	for input, want := range cases {
		if got := ToISO2(input); got != want {
			t.Errorf("ToISO2(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestToISO2FallsBackToTags(t *testing.T) {
	// Codes outside the curated table resolve through BCP-47 parsing.
	cases := map[string]string{
		"en-US":   "en",
		"pt-BR":   "pt",
		"zh-Hans": "zh",
		"dan":     "da",
		"nor":     "no",
	}
	for input, want := range cases {
		if got := ToISO2(input); got != want {
			t.Errorf("ToISO2(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestToISO2Unrecognized(t *testing.T) {
	if got := ToISO2("xy"); got != "xy" {
		t.Errorf("unknown two-letter code should pass through, got %q", got)
	}
	if got := ToISO2("qqqq"); got != "" {
		t.Errorf("unknown long code should clear, got %q", got)
	}
	if got := ToISO2("  "); got != "" {
		t.Errorf("blank input should clear, got %q", got)
	}
}

func TestDisplayName(t *testing.T) {
	cases := map[string]string{
		"en":      "English",
		"eng":     "English",
		"fre":     "French",
		"chi":     "Chinese",
		"vi":      "Vietnamese",
		"uk":      "Ukrainian",
		"english": "English",
		"da":      "Danish",
		"":        "Unknown",
		"xyzzy":   "XYZZY",
	}
	for input, want := range cases {
		if got := DisplayName(input); got != want {
			t.Errorf("DisplayName(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestNormalizeList(t *testing.T) {
	cases := []struct {
		name  string
		input []string
		want  []string
	}{
		{"nil", nil, nil},
		{"keeps order", []string{"fr", "en"}, []string{"fr", "en"}},
		{"dedupes across forms", []string{"en", "eng", "english"}, []string{"en"}},
		{"maps long codes", []string{"spa", "ger"}, []string{"es", "de"}},
		{"collapses regioned tags", []string{"en-US", "en"}, []string{"en"}},
		{"drops blanks", []string{" en ", "", "  "}, []string{"en"}},
		{"unknown short codes survive", []string{"xx", "en"}, []string{"xx", "en"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := NormalizeList(tc.input)
			if !reflect.DeepEqual(got, tc.want) {
				t.Errorf("NormalizeList(%v) = %v, want %v", tc.input, got, tc.want)
			}
		})
	}
}
