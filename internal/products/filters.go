package products

import (
	"math"
	"net/url"
	"strconv"
	"strings"
)

// Sort options for product listings.
const (
	SortCurated   = "curated"
	SortTrending  = "trending"
	SortHotAndNew = "hot_and_new"
)

// Filters is the recognized product filter state. Zero values are the
// defaults and are omitted when encoding back to a URL (clear-on-default).
type Filters struct {
	Search        string
	Sort          string
	MinPriceCents int64
	MaxPriceCents int64
	Tags          []string
}

// ParseFilters reads the filter state from URL query values. Unknown sort
// values fall back to curated; malformed prices are ignored.
func ParseFilters(values url.Values) Filters {
	f := Filters{
		Search: strings.TrimSpace(values.Get("search")),
		Sort:   parseSort(values.Get("sort")),
	}
	f.MinPriceCents = parsePriceCents(values.Get("minPrice"))
	f.MaxPriceCents = parsePriceCents(values.Get("maxPrice"))
	for _, tag := range values["tags"] {
		for _, part := range strings.Split(tag, ",") {
			if trimmed := strings.TrimSpace(part); trimmed != "" {
				f.Tags = append(f.Tags, trimmed)
			}
		}
	}
	return f
}

// Values encodes the filters with clear-on-default semantics: defaults
// disappear from the URL entirely.
func (f Filters) Values() url.Values {
	values := url.Values{}
	if f.Search != "" {
		values.Set("search", f.Search)
	}
	if f.Sort != "" && f.Sort != SortCurated {
		values.Set("sort", f.Sort)
	}
	if f.MinPriceCents > 0 {
		values.Set("minPrice", formatPrice(f.MinPriceCents))
	}
	if f.MaxPriceCents > 0 {
		values.Set("maxPrice", formatPrice(f.MaxPriceCents))
	}
	if len(f.Tags) > 0 {
		values.Set("tags", strings.Join(f.Tags, ","))
	}
	return values
}

func parseSort(raw string) string {
	switch strings.TrimSpace(raw) {
	case SortTrending:
		return SortTrending
	case SortHotAndNew:
		return SortHotAndNew
	default:
		return SortCurated
	}
}

// parsePriceCents accepts whole or decimal dollar amounts ("10", "10.99")
// and converts them to cents. Invalid input is treated as unset.
func parsePriceCents(raw string) int64 {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return 0
	}
	f, err := strconv.ParseFloat(trimmed, 64)
	if err != nil || f <= 0 || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0
	}
	return int64(math.Round(f * 100))
}

func formatPrice(cents int64) string {
	if cents%100 == 0 {
		return strconv.FormatInt(cents/100, 10)
	}
	return strconv.FormatFloat(float64(cents)/100, 'f', 2, 64)
}
