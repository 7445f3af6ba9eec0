package classifier

import (
	"context"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/evcraddock/mela/internal/brand"
)

// CatalogDetector finds catalog brands in the text without calling out.
// The longest brand appearing as a whole phrase wins, so "Zara Kids"
// beats "Zara".
type CatalogDetector struct {
	brands [][]string
	names  []string
}

// NewCatalogDetector builds a detector over the brand catalog.
func NewCatalogDetector() *CatalogDetector {
	names := brand.Catalog()
	d := &CatalogDetector{names: names, brands: make([][]string, len(names))}
	for i, n := range names {
		d.brands[i] = tokenize(n)
	}
	return d
}

// DetectBrand never fails.
func (d *CatalogDetector) DetectBrand(_ context.Context, c Content) (string, error) {
	words := tokenize(c.Title + " " + c.Description)

	best, bestLen := brand.Unknown, 0
	for i, phrase := range d.brands {
		if !containsPhrase(words, phrase) {
			continue
		}
		if n := utf8.RuneCountInString(d.names[i]); n > bestLen {
			best, bestLen = d.names[i], n
		}
	}
	return best, nil
}

// tokenize lowercases s and splits it into words. Letters, digits, '&'
// and apostrophes are word characters so "H&M" and "Levi's" stay whole.
func tokenize(s string) []string {
	s = strings.ReplaceAll(strings.ToLower(s), "’", "'")
	return strings.FieldsFunc(s, func(r rune) bool {
		return !(unicode.IsLetter(r) || unicode.IsDigit(r) || r == '&' || r == '\'')
	})
}

func containsPhrase(words, phrase []string) bool {
	if len(phrase) == 0 {
		return false
	}
outer:
	for i := 0; i+len(phrase) <= len(words); i++ {
		for j, p := range phrase {
			if words[i+j] != p {
				continue outer
			}
		}
		return true
	}
	return false
}
