// Package market holds the shared marketplace vocabulary: categories,
// conditions, record statuses and the Malta localities list.
package market

import (
	"sort"
	"strings"
)

// Category classifies listings and wanted ads.
type Category string

const (
	CategoryClothing Category = "Clothing"
	CategoryUniform  Category = "Uniform"
	CategoryKids     Category = "Kids"
	CategoryHome     Category = "Home"
	CategoryOther    Category = "Other"
)

// Categories is the set of allowed categories, in display order.
var Categories = []Category{CategoryClothing, CategoryUniform, CategoryKids, CategoryHome, CategoryOther}

// IsValid checks if a category is recognized.
func (c Category) IsValid() bool {
	for _, v := range Categories {
		if c == v {
			return true
		}
	}
	return false
}

// Label returns a human-readable label for the category.
func (c Category) Label() string {
	switch c {
	case CategoryUniform:
		return "School Uniform"
	case CategoryKids:
		return "Kids & Toys"
	case CategoryHome:
		return "Home & Garden"
	default:
		return string(c)
	}
}

// Condition describes the state of a listed item.
type Condition string

const (
	ConditionNew     Condition = "New"
	ConditionLikeNew Condition = "Like New"
	ConditionGood    Condition = "Good"
	ConditionFair    Condition = "Fair"
)

// Conditions is the set of allowed item conditions.
var Conditions = []Condition{ConditionNew, ConditionLikeNew, ConditionGood, ConditionFair}

// IsValid checks if a condition is recognized.
func (c Condition) IsValid() bool {
	for _, v := range Conditions {
		if c == v {
			return true
		}
	}
	return false
}

// ListingStatus is the lifecycle state of a listing.
type ListingStatus string

const (
	ListingActive   ListingStatus = "Active"
	ListingReserved ListingStatus = "Reserved"
	ListingSold     ListingStatus = "Sold"
	ListingHidden   ListingStatus = "Hidden"
	ListingDeleted  ListingStatus = "Deleted"
)

// IsValid checks if a listing status is recognized.
func (s ListingStatus) IsValid() bool {
	switch s {
	case ListingActive, ListingReserved, ListingSold, ListingHidden, ListingDeleted:
		return true
	}
	return false
}

// WantedStatus is the lifecycle state of a wanted ad.
type WantedStatus string

const (
	WantedActive    WantedStatus = "Active"
	WantedFulfilled WantedStatus = "Fulfilled"
	WantedHidden    WantedStatus = "Hidden"
	WantedDeleted   WantedStatus = "Deleted"
)

// IsValid checks if a wanted status is recognized.
func (s WantedStatus) IsValid() bool {
	switch s {
	case WantedActive, WantedFulfilled, WantedHidden, WantedDeleted:
		return true
	}
	return false
}

// EventStatus is the lifecycle state of an event.
type EventStatus string

const (
	EventUpcoming  EventStatus = "Upcoming"
	EventPast      EventStatus = "Past"
	EventCancelled EventStatus = "Cancelled"
)

// ServiceStatus is the visibility of a service listing.
type ServiceStatus string

const (
	ServiceActive   ServiceStatus = "Active"
	ServiceInactive ServiceStatus = "Inactive"
)

// IsValid checks if a service status is recognized.
func (s ServiceStatus) IsValid() bool {
	return s == ServiceActive || s == ServiceInactive
}

var localities = []string{
	"Attard", "Balzan", "Birgu", "Birkirkara", "Birżebbuġa", "Cospicua", "Dingli",
	"Fgura", "Floriana", "Fontana", "Għajnsielem", "Għarb", "Għargħur", "Għasri",
	"Għaxaq", "Gudja", "Gżira", "Ħamrun", "Iklin", "Kalkara", "Kerċem", "Kirkop",
	"Lija", "Luqa", "Marsa", "Marsaskala", "Marsaxlokk", "Mdina", "Mellieħa",
	"Mġarr", "Mosta", "Mqabba", "Msida", "Mtarfa", "Munxar", "Nadur", "Naxxar",
	"Paola", "Pembroke", "Pietà", "Qala", "Qormi", "Qrendi", "Rabat (Gozo)",
	"Rabat (Malta)", "Safi", "San Ġwann", "San Lawrenz", "San Pawl il-Baħar",
	"Sannat", "Santa Luċija", "Santa Venera", "Siġġiewi", "Sliema",
	"St. Julian's", "Swieqi", "Ta' Xbiex", "Tarxien", "Valletta", "Victoria",
	"Xagħra", "Xewkija", "Xgħajra", "Żabbar", "Żebbuġ (Gozo)", "Żebbuġ (Malta)",
	"Żejtun", "Żurrieq",
}

var localityIndex = func() map[string]string {
	m := make(map[string]string, len(localities))
	for _, l := range localities {
		m[strings.ToLower(l)] = l
	}
	return m
}()

// Localities returns a sorted copy of the known localities.
func Localities() []string {
	out := make([]string, len(localities))
	copy(out, localities)
	sort.Strings(out)
	return out
}

// CanonicalLocality returns the canonical spelling of a locality,
// matching case-insensitively. ok is false for unknown names.
func CanonicalLocality(name string) (string, bool) {
	l, ok := localityIndex[strings.ToLower(strings.TrimSpace(name))]
	return l, ok
}

// IsLocality reports whether name is a known locality.
func IsLocality(name string) bool {
	_, ok := CanonicalLocality(name)
	return ok
}
