package products

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseFiltersDefaults(t *testing.T) {
	f := ParseFilters(url.Values{})
	require.Equal(t, SortCurated, f.Sort)
	require.Empty(t, f.Search)
	require.Zero(t, f.MinPriceCents)
	require.Zero(t, f.MaxPriceCents)
	require.Empty(t, f.Tags)
}

func TestParseFilters(t *testing.T) {
	f := ParseFilters(url.Values{
		"search":   {"icons"},
		"sort":     {"hot_and_new"},
		"minPrice": {"10"},
		"maxPrice": {"49.99"},
		"tags":     {"design,fonts"},
	})
	require.Equal(t, "icons", f.Search)
	require.Equal(t, SortHotAndNew, f.Sort)
	require.Equal(t, int64(1000), f.MinPriceCents)
	require.Equal(t, int64(4999), f.MaxPriceCents)
	require.Equal(t, []string{"design", "fonts"}, f.Tags)
}

func TestParseFiltersUnknownSortFallsBack(t *testing.T) {
	f := ParseFilters(url.Values{"sort": {"cheapest"}})
	require.Equal(t, SortCurated, f.Sort)
}

func TestParseFiltersIgnoresBadPrices(t *testing.T) {
	f := ParseFilters(url.Values{"minPrice": {"abc"}, "maxPrice": {"-5"}})
	require.Zero(t, f.MinPriceCents)
	require.Zero(t, f.MaxPriceCents)
}

func TestFiltersClearOnDefault(t *testing.T) {
	require.Equal(t, "", Filters{Sort: SortCurated}.Values().Encode(),
		"default state encodes to an empty query")

	f := Filters{Search: "icons", Sort: SortTrending, MinPriceCents: 1000, MaxPriceCents: 4999, Tags: []string{"design"}}
	values := f.Values()
	require.Equal(t, "icons", values.Get("search"))
	require.Equal(t, SortTrending, values.Get("sort"))
	require.Equal(t, "10", values.Get("minPrice"))
	require.Equal(t, "49.99", values.Get("maxPrice"))
	require.Equal(t, "design", values.Get("tags"))
}

func TestFiltersRoundTrip(t *testing.T) {
	f := Filters{Search: "icons", Sort: SortHotAndNew, MinPriceCents: 500, Tags: []string{"design", "fonts"}}
	require.Equal(t, f, ParseFilters(f.Values()))
}
