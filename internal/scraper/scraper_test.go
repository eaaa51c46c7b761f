package scraper_test

import (
	"net/url"
	"strings"
	"testing"

	"dealscout/internal/scraper"
)

// ── Region mapping ─────────────────────────────────────────────────────────

func TestRegionForPostal_SamePrefixGroup(t *testing.T) {
	if got, want := scraper.RegionForPostal("94103"), scraper.RegionForPostal("94010"); got != want {
		t.Errorf("RegionForPostal(94103) = %q, RegionForPostal(94010) = %q; want same region", got, want)
	}
	if got := scraper.RegionForPostal("94103"); got != "sfbay" {
		t.Errorf("RegionForPostal(94103) = %q, want sfbay", got)
	}
}

func TestRegionForPostal_UnmappedFallsBack(t *testing.T) {
	for _, postal := range []string{"99999", "00000", "12"} {
		if got := scraper.RegionForPostal(postal); got != "sfbay" {
			t.Errorf("RegionForPostal(%q) = %q, want default sfbay", postal, got)
		}
	}
}

// ── Category mapping ───────────────────────────────────────────────────────

func TestCategoryForQuery(t *testing.T) {
	cases := []struct {
		query string
		want  string
	}{
		{"mountain bike rental", "bia"},
		{"vintage road bicycle", "bia"},
		{"MacBook laptop 2021", "sya"},
		{"leather sofa sectional", "fua"},
		{"fender guitar amp", "msa"},
		{"antique lamp", "sss"}, // no keyword → generic for-sale
		{"", "sss"},
	}
	for _, c := range cases {
		if got := scraper.CategoryForQuery(c.query); got != c.want {
			t.Errorf("CategoryForQuery(%q) = %q, want %q", c.query, got, c.want)
		}
	}
}

// ── Price normalization ────────────────────────────────────────────────────

func TestParsePrice(t *testing.T) {
	cases := []struct {
		display string
		want    int
	}{
		{"$1,250", 125000},
		{"$40", 4000},
		{"$0", 0},
		{"1,999", 199900},
	}
	for _, c := range cases {
		got := scraper.ParsePrice(c.display)
		if got == nil {
			t.Errorf("ParsePrice(%q) = nil, want %d", c.display, c.want)
			continue
		}
		if *got != c.want {
			t.Errorf("ParsePrice(%q) = %d, want %d", c.display, *got, c.want)
		}
	}
}

func TestParsePrice_Unlisted(t *testing.T) {
	for _, display := range []string{"", "   ", "free", "$12.50.00x"} {
		if got := scraper.ParsePrice(display); got != nil {
			t.Errorf("ParsePrice(%q) = %d, want nil", display, *got)
		}
	}
}

// ── External id derivation ─────────────────────────────────────────────────

func TestExternalIDFromURL(t *testing.T) {
	got := scraper.ExternalIDFromURL("https://sfbay.craigslist.org/sfc/bia/d/san-francisco-trek-fuel/7712345678.html")
	if got != "7712345678" {
		t.Errorf("ExternalIDFromURL = %q, want 7712345678", got)
	}
}

func TestExternalIDFromURL_FallsBackToRawURL(t *testing.T) {
	raw := "https://sfbay.craigslist.org/some/odd/path"
	if got := scraper.ExternalIDFromURL(raw); got != raw {
		t.Errorf("ExternalIDFromURL(%q) = %q, want the raw URL", raw, got)
	}
}

// ── Search URL construction ────────────────────────────────────────────────

func TestBuildSearchURL(t *testing.T) {
	minPrice := 10000  // $100
	maxPrice := 150000 // $1500
	radius := 10

	raw := scraper.BuildSearchURL(scraper.SearchParams{
		Query:       "mountain bike",
		PostalCode:  "94103",
		MinPrice:    &minPrice,
		MaxPrice:    &maxPrice,
		RadiusMiles: &radius,
	})

	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("BuildSearchURL returned unparsable URL %q: %v", raw, err)
	}
	if u.Host != "sfbay.craigslist.org" {
		t.Errorf("host = %q, want sfbay.craigslist.org", u.Host)
	}
	if !strings.HasSuffix(u.Path, "/search/bia") {
		t.Errorf("path = %q, want /search/bia", u.Path)
	}

	q := u.Query()
	checks := map[string]string{
		"query":           "mountain bike",
		"postal":          "94103",
		"search_distance": "10",
		"sort":            "date",
		"postedToday":     "1",
		"min_price":       "100",
		"max_price":       "1500",
	}
	for key, want := range checks {
		if got := q.Get(key); got != want {
			t.Errorf("query param %s = %q, want %q", key, got, want)
		}
	}
}

func TestBuildSearchURL_Defaults(t *testing.T) {
	raw := scraper.BuildSearchURL(scraper.SearchParams{Query: "antique lamp", PostalCode: "99999"})

	u, err := url.Parse(raw)
	if err != nil {
		t.Fatalf("BuildSearchURL returned unparsable URL %q: %v", raw, err)
	}
	if u.Host != "sfbay.craigslist.org" {
		t.Errorf("host = %q, want default region host", u.Host)
	}
	if !strings.HasSuffix(u.Path, "/search/sss") {
		t.Errorf("path = %q, want generic for-sale category", u.Path)
	}
	q := u.Query()
	if got := q.Get("search_distance"); got != "25" {
		t.Errorf("search_distance = %q, want default 25", got)
	}
	if q.Has("min_price") || q.Has("max_price") {
		t.Error("price bounds should be omitted when unset")
	}
}
