// Package catalog serves the read-only destination catalog: filtering,
// wishlist badges, cached listing and the detail page aggregate.
package catalog

import (
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/neexbeast/destinasi/internal/destination"
)

// Query narrows a catalog listing. Zero values match everything.
type Query struct {
	Search   string
	Category destination.Category
}

// Filter keeps destinations whose name, location or description contains
// Search (case-insensitive) and whose category equals Category.
func Filter(list []destination.Destination, q Query) []destination.Destination {
	needle := strings.ToLower(strings.TrimSpace(q.Search))

	out := make([]destination.Destination, 0, len(list))
	for _, d := range list {
		if q.Category != "" && d.Category != q.Category {
			continue
		}
		if needle != "" &&
			!strings.Contains(strings.ToLower(d.Name), needle) &&
			!strings.Contains(strings.ToLower(d.Location), needle) &&
			!strings.Contains(strings.ToLower(d.Description), needle) {
			continue
		}
		out = append(out, d)
	}
	return out
}

// Card is a destination as rendered in a listing, with its wishlist badge.
type Card struct {
	destination.Destination
	Image      string   `json:"image"`
	Tags       []string `json:"tags"`
	PriceLabel string   `json:"price_label"`
	Wishlisted bool     `json:"wishlisted"`
}

// Badges pairs each destination with whether it is in membership.
func Badges(list []destination.Destination, membership []string) []Card {
	set := make(map[string]struct{}, len(membership))
	for _, id := range membership {
		set[id] = struct{}{}
	}

	cards := make([]Card, 0, len(list))
	for _, d := range list {
		_, ok := set[d.ID]
		cards = append(cards, Card{
			Destination: d,
			Image:       d.Image(),
			Tags:        Tags(d.Category),
			PriceLabel:  FormatPrice(d.Price),
			Wishlisted:  ok,
		})
	}
	return cards
}

var categoryTags = map[destination.Category][]string{
	destination.CategoryMountain:     {"Pendakian", "Alam", "Petualangan", "Pemandangan"},
	destination.CategoryBeach:        {"Watersport", "Snorkeling", "Sunset", "Relaksasi"},
	destination.CategoryHistory:      {"Budaya", "Arsitektur", "Edukasi", "Fotografi"},
	destination.CategoryNationalPark: {"Wildlife", "Konservasi", "Tracking", "Flora Fauna"},
}

// Tags returns the display tags for a category.
func Tags(c destination.Category) []string {
	if tags, ok := categoryTags[c]; ok {
		return slices.Clone(tags)
	}
	return []string{"Wisata", "Alam", "Budaya"}
}

// FormatPrice renders a rupiah price: "Gratis" for zero, "Rp 1.5 juta"
// above one million, otherwise "Rp 54.000".
func FormatPrice(price int64) string {
	switch {
	case price == 0:
		return "Gratis"
	case price > 1_000_000:
		return fmt.Sprintf("Rp %.1f juta", float64(price)/1_000_000)
	}

	// Prices are non-negative; the schema enforces it.
	digits := strconv.FormatInt(price, 10)
	var b strings.Builder
	b.WriteString("Rp ")
	for i := 0; i < len(digits); i++ {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteByte(digits[i])
	}
	return b.String()
}
