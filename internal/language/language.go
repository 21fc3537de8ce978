package language

import (
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// row is one curated language: the ISO 639-1 code yt-dlp expects for
// subtitle selection, the display name, and every alias that should
// resolve to it (ISO 639-2/T and /B codes plus spelled-out forms).
type row struct {
	iso2    string
	name    string
	aliases []string
}

var table = []row{
	{"en", "English", []string{"eng", "english"}},
	{"es", "Spanish", []string{"spa", "spanish"}},
	{"fr", "French", []string{"fra", "fre", "french"}},
	{"de", "German", []string{"deu", "ger", "german"}},
	{"it", "Italian", []string{"ita", "italian"}},
	{"pt", "Portuguese", []string{"por", "portuguese"}},
	{"ja", "Japanese", []string{"jpn", "japanese"}},
	{"ko", "Korean", []string{"kor", "korean"}},
	{"zh", "Chinese", []string{"zho", "chi", "chinese"}},
	{"ru", "Russian", []string{"rus", "russian"}},
	{"ar", "Arabic", []string{"ara", "arabic"}},
	{"hi", "Hindi", []string{"hin", "hindi"}},
	{"nl", "Dutch", []string{"nld", "dut", "dutch"}},
	{"pl", "Polish", []string{"pol", "polish"}},
	{"tr", "Turkish", []string{"tur", "turkish"}},
	{"vi", "Vietnamese", []string{"vie", "vietnamese"}},
	{"id", "Indonesian", []string{"ind", "indonesian"}},
	{"sv", "Swedish", []string{"swe", "swedish"}},
	{"uk", "Ukrainian", []string{"ukr", "ukrainian"}},
	{"fi", "Finnish", []string{"fin", "finnish"}},
}

// index maps every code, alias, and lowercased name to its row.
var index = func() map[string]*row {
	m := make(map[string]*row, len(table)*4)
	for i := range table {
		r := &table[i]
		m[r.iso2] = r
		m[strings.ToLower(r.name)] = r
		for _, alias := range r.aliases {
			m[alias] = r
		}
	}
	return m
}()

var englishNames = display.English.Languages()

func lookup(code string) *row {
	return index[strings.ToLower(strings.TrimSpace(code))]
}

// parseTag resolves codes outside the curated table, which covers regioned
// tags like "en-US" and the long tail of BCP-47 subtags.
func parseTag(code string) (language.Tag, bool) {
	tag, err := language.Parse(code)
	if err != nil {
		return language.Und, false
	}
	return tag, true
}

// ToISO2 reduces any recognized language code or word to ISO 639-1.
// Unrecognized two-letter codes pass through unchanged; anything else
// unrecognized returns the empty string.
func ToISO2(code string) string {
	code = strings.ToLower(strings.TrimSpace(code))
	if code == "" {
		return ""
	}
	if r := lookup(code); r != nil {
		return r.iso2
	}
	if tag, ok := parseTag(code); ok {
		if base, conf := tag.Base(); conf >= language.High {
			if s := base.String(); len(s) == 2 {
				return s
			}
		}
	}
	if len(code) == 2 {
		return code
	}
	return ""
}

// DisplayName names a language code for humans. Codes outside the curated
// table resolve through x/text; anything unrecognized comes back
// uppercased, and empty input reads "Unknown".
func DisplayName(code string) string {
	trimmed := strings.TrimSpace(code)
	if trimmed == "" {
		return "Unknown"
	}
	if r := lookup(trimmed); r != nil {
		return r.name
	}
	if tag, ok := parseTag(strings.ToLower(trimmed)); ok {
		if name := englishNames.Name(tag); name != "" {
			return name
		}
	}
	return strings.ToUpper(trimmed)
}

// NormalizeList reduces subtitle language codes to deduplicated ISO 639-1
// form, the shape yt-dlp's sub-langs flag expects. Blank entries drop out.
func NormalizeList(languages []string) []string {
	if len(languages) == 0 {
		return nil
	}
	seen := make(map[string]struct{}, len(languages))
	out := make([]string, 0, len(languages))
	for _, lang := range languages {
		code := strings.ToLower(strings.TrimSpace(lang))
		if code == "" {
			continue
		}
		if len(code) > 2 {
			if mapped := ToISO2(code); mapped != "" {
				code = mapped
			}
		}
		if _, dup := seen[code]; dup {
			continue
		}
		seen[code] = struct{}{}
		out = append(out, code)
	}
	return out
}
