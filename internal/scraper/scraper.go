package scraper

import (
	"context"
	"fmt"
	"log"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/chromedp/chromedp"
	"golang.org/x/time/rate"

	"dealscout/internal/model"
)

const (
	navTimeout       = 30 * time.Second
	detailTimeout    = 20 * time.Second
	maxDetailFetches = 10 // detail pages visited per search, bounds latency and blocking risk
	detailDelay      = 2 * time.Second
	defaultRadius    = 25 // miles
)

// resultsSelector is the container the search page renders result rows into.
const resultsSelector = "ul.rows, ol.cl-static-search-results"

// SearchParams describes one marketplace search.
type SearchParams struct {
	Query       string
	PostalCode  string
	MinPrice    *int // cents
	MaxPrice    *int // cents
	RadiusMiles *int
	Limit       int // max result rows to extract
}

// Scraper acquires candidate listings by driving the shared Browser.
type Scraper struct {
	browser *Browser
	limiter *rate.Limiter // paces detail-page visits
}

// New constructs a Scraper over a shared browser session.
func New(browser *Browser) *Scraper {
	return &Scraper{
		browser: browser,
		limiter: rate.NewLimiter(rate.Every(detailDelay), 1),
	}
}

// Close releases the underlying browser session. Safe when none exists.
func (s *Scraper) Close() {
	s.browser.Close()
}

// Search loads the marketplace results page for params and returns up to
// params.Limit candidates. The first maxDetailFetches candidates also get
// their detail page visited for the full description and gallery images;
// a failed detail fetch degrades that one candidate to empty detail
// fields. Total failure to reach the search page returns an empty slice
// and no error — zero new listings is a normal scan outcome.
func (s *Scraper) Search(ctx context.Context, params SearchParams) ([]model.Candidate, error) {
	searchURL := BuildSearchURL(params)
	log.Printf("[scraper] Searching %s", searchURL)

	rows, err := s.searchPage(ctx, searchURL, params.Limit)
	if err != nil {
		log.Printf("[scraper] Search page failed url=%s err=%v — returning no candidates", searchURL, err)
		return nil, nil
	}

	candidates := make([]model.Candidate, 0, len(rows))
	for i, row := range rows {
		cand := candidateFromRow(row)
		if cand.ExternalID == "" {
			continue
		}

		if i < maxDetailFetches {
			if err := s.limiter.Wait(ctx); err != nil {
				return candidates, nil
			}
			desc, images := s.detailPage(ctx, cand.URL)
			cand.Description = desc
			cand.Images = images
			if cand.ImageURL == "" && len(images) > 0 {
				cand.ImageURL = images[0]
			}
		}
		candidates = append(candidates, cand)
	}

	log.Printf("[scraper] Extracted %d candidate(s) for %q", len(candidates), params.Query)
	return candidates, nil
}

// searchPage navigates to searchURL in a fresh tab, waits for the results
// container, and extracts raw result rows via an in-page script.
func (s *Scraper) searchPage(ctx context.Context, searchURL string, limit int) ([]map[string]string, error) {
	tab, cancelTab := chromedp.NewContext(s.browser.ctx())
	defer cancelTab()
	tabCtx, cancel := context.WithTimeout(tab, navTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 25
	}

	script := `((maxItems) => {
		const clean = (s) => (s || '').replace(/\s+/g, ' ').trim();
		const out = [];
		const rows = Array.from(document.querySelectorAll('li.result-row, li.cl-search-result'));
		for (const row of rows) {
			if (out.length >= maxItems) break;
			const a = row.querySelector('a.result-title, a.cl-app-anchor, a[href*=".html"]');
			const href = a ? (a.href || '') : '';
			if (!href) continue;
			const priceNode = row.querySelector('.result-price, .priceinfo');
			const hoodNode = row.querySelector('.result-hood, .meta .location, .supertitle');
			const timeNode = row.querySelector('time[datetime]');
			const img = row.querySelector('img');
			out.push({
				url: clean(href),
				title: clean(a.textContent),
				price: clean(priceNode ? priceNode.textContent : ''),
				hood: clean(hoodNode ? hoodNode.textContent : '').replace(/^\(|\)$/g, ''),
				posted: timeNode ? (timeNode.getAttribute('datetime') || '') : '',
				thumb: img ? (img.src || '') : ''
			});
		}
		return out;
	})(%d);`

	var raw []map[string]string
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(searchURL),
		chromedp.WaitReady(resultsSelector, chromedp.ByQuery),
		chromedp.Evaluate(fmt.Sprintf(script, limit), &raw),
	)
	if err != nil {
		return nil, err
	}
	return raw, nil
}

// detailPage fetches the posting body text and gallery image URLs for one
// listing. Any navigation or extraction failure degrades to empty values.
func (s *Scraper) detailPage(ctx context.Context, postingURL string) (string, []string) {
	tab, cancelTab := chromedp.NewContext(s.browser.ctx())
	defer cancelTab()
	tabCtx, cancel := context.WithTimeout(tab, detailTimeout)
	defer cancel()

	script := `(() => {
		const clean = (s) => (s || '').replace(/\s+/g, ' ').trim();
		const body = document.querySelector('#postingbody');
		let description = body ? body.textContent : '';
		description = description.replace('QR Code Link to This Post', '');
		const imgs = Array.from(document.querySelectorAll('.gallery img, .swipe img, .iw img'))
			.map(img => img.src || '')
			.filter(Boolean);
		return { description: clean(description), images: [...new Set(imgs)] };
	})();`

	var payload struct {
		Description string   `json:"description"`
		Images      []string `json:"images"`
	}
	err := chromedp.Run(tabCtx,
		chromedp.Navigate(postingURL),
		chromedp.Evaluate(script, &payload),
	)
	if err != nil {
		log.Printf("[scraper] Detail fetch failed url=%s err=%v — keeping listing without details", postingURL, err)
		return "", nil
	}
	return payload.Description, payload.Images
}

// BuildSearchURL encodes a search into the marketplace URL scheme:
// recency-sorted, posted-today, with optional price bounds.
func BuildSearchURL(params SearchParams) string {
	u := url.URL{
		Scheme: "https",
		Host:   RegionForPostal(params.PostalCode) + ".craigslist.org",
		Path:   "/search/" + CategoryForQuery(params.Query),
	}

	radius := defaultRadius
	if params.RadiusMiles != nil && *params.RadiusMiles > 0 {
		radius = *params.RadiusMiles
	}

	q := url.Values{}
	q.Set("query", params.Query)
	q.Set("postal", params.PostalCode)
	q.Set("search_distance", strconv.Itoa(radius))
	q.Set("sort", "date")
	q.Set("postedToday", "1")
	if params.MinPrice != nil {
		q.Set("min_price", strconv.Itoa(*params.MinPrice/100))
	}
	if params.MaxPrice != nil {
		q.Set("max_price", strconv.Itoa(*params.MaxPrice/100))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func candidateFromRow(row map[string]string) model.Candidate {
	cand := model.Candidate{
		Title:      strings.TrimSpace(row["title"]),
		URL:        strings.TrimSpace(row["url"]),
		Location:   strings.TrimSpace(row["hood"]),
		ImageURL:   strings.TrimSpace(row["thumb"]),
		Price:      ParsePrice(row["price"]),
		ExternalID: ExternalIDFromURL(strings.TrimSpace(row["url"])),
	}
	if ts := strings.TrimSpace(row["posted"]); ts != "" {
		if t, err := parsePostedTime(ts); err == nil {
			cand.PostedAt = &t
		}
	}
	return cand
}

// parsePostedTime handles both "2006-01-02 15:04" (result row datetime
// attribute) and RFC 3339 timestamps.
func parsePostedTime(s string) (time.Time, error) {
	if t, err := time.Parse("2006-01-02 15:04", s); err == nil {
		return t, nil
	}
	return time.Parse(time.RFC3339, s)
}

// ParsePrice converts a scraped price display like "$1,250" into cents.
// Returns nil when the display is empty or unparsable (no listed price).
func ParsePrice(display string) *int {
	s := strings.TrimSpace(display)
	s = strings.ReplaceAll(s, "$", "")
	s = strings.ReplaceAll(s, ",", "")
	if s == "" {
		return nil
	}
	dollars, err := strconv.Atoi(s)
	if err != nil || dollars < 0 {
		return nil
	}
	cents := dollars * 100
	return &cents
}

var postingIDRe = regexp.MustCompile(`/(\d+)\.html`)

// ExternalIDFromURL derives the marketplace's posting id from a posting
// URL (the numeric segment before the file extension). When no numeric
// segment exists, the raw URL serves as the identifier so dedup still
// holds.
func ExternalIDFromURL(postingURL string) string {
	if m := postingIDRe.FindStringSubmatch(postingURL); len(m) == 2 {
		return m[1]
	}
	return postingURL
}
