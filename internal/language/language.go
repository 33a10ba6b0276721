// Package language exposes the catalog of translation language codes accepted
// by NLLB-style engines together with lookup and display helpers.
//
// Codes use the FLORES-200 shape "<iso639-3>_<iso15924>" (for example
// "eng_Latn"). Resolve also accepts BCP 47 tags and English names so CLI users
// can type "fr" or "French".
package language

import (
	"sort"
	"strings"

	xlanguage "golang.org/x/text/language"
	"golang.org/x/text/language/display"
)

// Language is a single catalog entry.
type Language struct {
	Code string
	Name string
}

// Base returns the ISO 639-3 part of the code.
func (l Language) Base() string {
	base, _, _ := strings.Cut(l.Code, "_")
	return base
}

// Script returns the ISO 15924 part of the code.
func (l Language) Script() string {
	_, script, _ := strings.Cut(l.Code, "_")
	return script
}

// Tag converts the entry to a BCP 47 tag. The second result is false when the
// base language is unknown to x/text.
func (l Language) Tag() (xlanguage.Tag, bool) {
	tag, err := xlanguage.Parse(l.Base() + "-" + l.Script())
	if err != nil {
		return xlanguage.Und, false
	}
	return tag, true
}

// NativeName returns the autonym of the base language, or "" when x/text has
// no display data for it.
func (l Language) NativeName() string {
	tag, ok := l.Tag()
	if !ok {
		return ""
	}
	base, _ := tag.Base()
	return display.Self.Name(xlanguage.Make(base.String()))
}

var byCode = func() map[string]Language {
	m := make(map[string]Language, len(catalog))
	for _, l := range catalog {
		m[l.Code] = l
	}
	return m
}()

// All returns the catalog sorted by English name.
func All() []Language {
	out := make([]Language, len(catalog))
	copy(out, catalog)
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// Count reports the catalog size.
func Count() int { return len(catalog) }

// Lookup returns the entry for an exact catalog code.
func Lookup(code string) (Language, bool) {
	l, ok := byCode[code]
	return l, ok
}

// Supported reports whether code is an exact catalog code.
func Supported(code string) bool {
	_, ok := byCode[code]
	return ok
}

// Filter returns entries whose code, English name, or native name contains
// query (case-insensitive). An empty query returns All.
func Filter(query string) []Language {
	query = strings.ToLower(strings.TrimSpace(query))
	all := All()
	if query == "" {
		return all
	}
	out := all[:0]
	for _, l := range all {
		if strings.Contains(strings.ToLower(l.Code), query) ||
			strings.Contains(strings.ToLower(l.Name), query) ||
			strings.Contains(strings.ToLower(l.NativeName()), query) {
			out = append(out, l)
		}
	}
	return out
}

// Resolve maps user input to a catalog entry. It accepts catalog codes in any
// case, English names, and BCP 47 tags such as "fr" or "zh-Hant".
func Resolve(input string) (Language, bool) {
	input = strings.TrimSpace(input)
	if input == "" {
		return Language{}, false
	}
	if l, ok := byCode[input]; ok {
		return l, true
	}
	for _, l := range catalog {
		if strings.EqualFold(l.Code, input) || strings.EqualFold(l.Name, input) {
			return l, true
		}
	}
	return resolveTag(input)
}

func resolveTag(input string) (Language, bool) {
	tag, err := xlanguage.Parse(strings.ReplaceAll(input, "_", "-"))
	if err != nil {
		return Language{}, false
	}
	base, _ := tag.Base()
	iso3 := base.ISO3()
	script, conf := tag.Script()

	var fallback *Language
	for i := range catalog {
		l := catalog[i]
		if l.Base() != iso3 {
			continue
		}
		if conf != xlanguage.No && l.Script() == script.String() {
			return l, true
		}
		if fallback == nil {
			fallback = &catalog[i]
		}
	}
	if fallback != nil {
		return *fallback, true
	}
	return Language{}, false
}
