// Package brand holds the fashion brand catalog and users' brand
// preference sets.
package brand

import (
	"sort"
	"strings"
)

// Unknown is returned by detectors when no brand is recognizable.
const Unknown = "UNKNOWN"

var catalog = func() []string {
	brands := []string{
		// Luxury
		"Gucci", "Louis Vuitton", "Prada", "Chanel", "Dior",
		"Hermès", "Versace", "Burberry", "Fendi", "Bottega Veneta",
		// Premium
		"Michael Kors", "Coach", "Kate Spade", "Tory Burch",
		"Ted Baker", "AllSaints", "Reiss", "Maje", "Sandro",
		// High street
		"Zara", "H&M", "Mango", "Massimo Dutti", "COS",
		"& Other Stories", "Uniqlo", "Gap", "Banana Republic",
		// Sportswear
		"Nike", "Adidas", "Puma", "Under Armour", "New Balance",
		"Lululemon", "Gymshark", "Reebok",
		// British
		"Next", "Marks & Spencer", "Topshop", "River Island",
		"ASOS", "Superdry", "French Connection",
		// Italian
		"Armani", "Dolce & Gabbana", "Max Mara", "Diesel",
		"Liu Jo", "Pinko", "Patrizia Pepe",
		// Kids
		"Gap Kids", "Zara Kids", "H&M Kids", "Next Kids",
		"Petit Bateau", "Jacadi", "Bonpoint",
		// Others
		"Tommy Hilfiger", "Calvin Klein", "Levi's", "Ralph Lauren",
		"Lacoste", "Hugo Boss", "Guess", "Desigual",
	}
	sort.Strings(brands)
	return brands
}()

var catalogIndex = func() map[string]string {
	m := make(map[string]string, len(catalog))
	for _, b := range catalog {
		m[Key(b)] = b
	}
	return m
}()

// Catalog returns a sorted copy of the known brands.
func Catalog() []string {
	out := make([]string, len(catalog))
	copy(out, catalog)
	return out
}

// Key normalizes a brand name for matching: trimmed, lowercased, with
// inner whitespace collapsed.
func Key(name string) string {
	return strings.ToLower(strings.Join(strings.Fields(name), " "))
}

// Canonical returns the catalog spelling of name. Names outside the
// catalog come back trimmed with ok false.
func Canonical(name string) (string, bool) {
	if b, ok := catalogIndex[Key(name)]; ok {
		return b, true
	}
	return strings.Join(strings.Fields(name), " "), false
}

// Known reports whether name is in the catalog.
func Known(name string) bool {
	_, ok := catalogIndex[Key(name)]
	return ok
}
