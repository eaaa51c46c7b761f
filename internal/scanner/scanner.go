// Package scanner implements the scan pipeline for saved searches:
// acquire candidates, dedupe against stored listings, evaluate each new
// one, persist, and send a single digest for the scan's good deals.
// It is transport-agnostic: driven by the cron scheduler or the HTTP
// trigger surface.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"dealscout/internal/evaluator"
	"dealscout/internal/model"
	"dealscout/internal/notifier"
	"dealscout/internal/scraper"
)

const (
	scanCap     = 15 // candidates considered per scan
	evalDelay   = 3 * time.Second
	searchDelay = 10 * time.Second
)

// ErrEvaluatorUnavailable is returned when no AI credential was
// configured. A scan without evaluation would store meaningless rows, so
// it refuses to run instead.
var ErrEvaluatorUnavailable = errors.New("scanner: evaluator not configured")

// Store is the persistence surface the pipeline needs.
type Store interface {
	SearchWithOwner(ctx context.Context, searchID string) (*model.Search, *model.User, error)
	ActiveSearches(ctx context.Context) ([]model.Search, error)
	ListingExists(ctx context.Context, searchID, externalID string) (bool, error)
	InsertListing(ctx context.Context, l *model.Listing) error
	TouchLastChecked(ctx context.Context, searchID string) error
	MarkAlertsSent(ctx context.Context, searchID string) (int64, error)
}

// Acquirer produces candidate listings for a search. Close releases the
// shared browser session and must be safe to call when none exists.
type Acquirer interface {
	Search(ctx context.Context, params scraper.SearchParams) ([]model.Candidate, error)
	Close()
}

// Evaluator scores one listing; implementations never fail, degrading to
// a neutral assessment instead.
type Evaluator interface {
	Evaluate(ctx context.Context, in evaluator.Input) evaluator.Assessment
}

// Notifier dispatches one digest per scan-with-results and reports
// success as a boolean.
type Notifier interface {
	Send(ctx context.Context, to, name, query, location string, deals []notifier.Deal) bool
}

// Result holds one scan's counts.
type Result struct {
	SearchID    string `json:"searchId"`
	NewListings int    `json:"newListings"`
	GoodDeals   int    `json:"goodDeals"`
	AlertsSent  int    `json:"alertsSent"`
}

// Summary aggregates a batch sweep.
type Summary struct {
	Searches    int `json:"searches"`
	Failed      int `json:"failed"`
	NewListings int `json:"newListings"`
	GoodDeals   int `json:"goodDeals"`
	AlertsSent  int `json:"alertsSent"`
}

// Scanner orchestrates scans. All external calls run sequentially with
// fixed pacing delays between evaluations and between searches.
type Scanner struct {
	store    Store
	acquirer Acquirer
	eval     Evaluator
	mailer   Notifier

	evalDelay   time.Duration
	searchDelay time.Duration
	sleep       func(time.Duration) // pacing hook, swapped out in tests
}

// New constructs a Scanner. eval may be nil when no AI credential is
// configured; scans then refuse to run.
func New(store Store, acquirer Acquirer, eval Evaluator, mailer Notifier) *Scanner {
	return &Scanner{
		store:       store,
		acquirer:    acquirer,
		eval:        eval,
		mailer:      mailer,
		evalDelay:   evalDelay,
		searchDelay: searchDelay,
		sleep:       time.Sleep,
	}
}

// ScanSearch runs one scan for one search: acquire → dedupe → evaluate →
// persist → notify → checkpoint. Missing or inactive searches terminate
// early with zero counts and no error. Persistence failures are fatal for
// the scan and propagate to the caller.
func (s *Scanner) ScanSearch(ctx context.Context, searchID string) (Result, error) {
	res := Result{SearchID: searchID}
	if s.eval == nil {
		return res, ErrEvaluatorUnavailable
	}

	search, owner, err := s.store.SearchWithOwner(ctx, searchID)
	if err != nil {
		return res, fmt.Errorf("load search %s: %w", searchID, err)
	}
	if search == nil || !search.Active {
		slog.Info("scan skipped", "search", searchID, "reason", "missing or inactive")
		return res, nil
	}

	slog.Info("scan started", "search", searchID, "query", search.Query, "postal", search.PostalCode)

	candidates, err := s.acquirer.Search(ctx, scraper.SearchParams{
		Query:       search.Query,
		PostalCode:  search.PostalCode,
		MinPrice:    search.MinPrice,
		MaxPrice:    search.MaxPrice,
		RadiusMiles: search.RadiusMiles,
		Limit:       scanCap,
	})
	if err != nil {
		// The acquirer degrades internally; an error here still just means
		// zero candidates for this scan.
		slog.Warn("acquisition failed", "search", searchID, "err", err)
		candidates = nil
	}
	if len(candidates) > scanCap {
		candidates = candidates[:scanCap]
	}

	var deals []notifier.Deal
	evaluated := false
	for _, cand := range candidates {
		exists, err := s.store.ListingExists(ctx, search.ID, cand.ExternalID)
		if err != nil {
			return res, fmt.Errorf("dedup check %s: %w", cand.ExternalID, err)
		}
		if exists {
			continue
		}

		if evaluated {
			s.sleep(s.evalDelay)
		}
		evaluated = true

		assessment := s.eval.Evaluate(ctx, evaluator.Input{
			Title:       cand.Title,
			Price:       cand.Price,
			Description: cand.Description,
			ImageURLs:   cand.Images,
			Query:       search.Query,
			Preferences: search.Preferences,
		})

		listing := newListing(search.ID, cand, assessment)
		if err := s.store.InsertListing(ctx, listing); err != nil {
			return res, fmt.Errorf("insert listing %s: %w", cand.ExternalID, err)
		}
		res.NewListings++

		if assessment.GoodDeal {
			res.GoodDeals++
			deals = append(deals, dealFromListing(listing, assessment))
		}
	}

	if err := s.store.TouchLastChecked(ctx, search.ID); err != nil {
		slog.Warn("last-checked update failed", "search", searchID, "err", err)
	}

	if len(deals) > 0 {
		if s.mailer.Send(ctx, owner.Email, owner.Name, search.Query, search.PostalCode, deals) {
			marked, err := s.store.MarkAlertsSent(ctx, search.ID)
			if err != nil {
				slog.Warn("alert flag update failed", "search", searchID, "err", err)
			} else {
				res.AlertsSent = int(marked)
			}
		}
	}

	slog.Info("scan finished", "search", searchID,
		"new", res.NewListings, "goodDeals", res.GoodDeals, "alertsSent", res.AlertsSent)
	return res, nil
}

// ScanAll sweeps every active search sequentially, isolating per-search
// failures, and releases the browser session exactly once at the end
// regardless of per-search outcomes.
func (s *Scanner) ScanAll(ctx context.Context) (Summary, error) {
	defer s.acquirer.Close()

	searches, err := s.store.ActiveSearches(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("load active searches: %w", err)
	}

	var sum Summary
	for i, search := range searches {
		if i > 0 {
			s.sleep(s.searchDelay)
		}
		sum.Searches++

		res, err := s.ScanSearch(ctx, search.ID)
		if err != nil {
			slog.Error("scan failed", "search", search.ID, "err", err)
			sum.Failed++
			continue
		}
		sum.NewListings += res.NewListings
		sum.GoodDeals += res.GoodDeals
		sum.AlertsSent += res.AlertsSent
	}

	slog.Info("sweep finished", "searches", sum.Searches, "failed", sum.Failed,
		"new", sum.NewListings, "goodDeals", sum.GoodDeals, "alertsSent", sum.AlertsSent)
	return sum, nil
}

func newListing(searchID string, cand model.Candidate, a evaluator.Assessment) *model.Listing {
	return &model.Listing{
		ID:          uuid.NewString(),
		SearchID:    searchID,
		ExternalID:  cand.ExternalID,
		Title:       cand.Title,
		Price:       cand.Price,
		URL:         cand.URL,
		Description: cand.Description,
		ImageURL:    cand.ImageURL,
		Location:    cand.Location,
		PostedAt:    cand.PostedAt,
		Score:       a.Score,
		GoodDeal:    a.GoodDeal,
		Reasoning:   a.Reasoning,
		Product:     a.Product,
		RetailLow:   a.RetailLow,
		RetailHigh:  a.RetailHigh,
		Condition:   a.Condition,
	}
}

func dealFromListing(l *model.Listing, a evaluator.Assessment) notifier.Deal {
	return notifier.Deal{
		Title:      l.Title,
		Price:      l.Price,
		URL:        l.URL,
		Score:      l.Score,
		Reasoning:  l.Reasoning,
		ImageURL:   l.ImageURL,
		Product:    l.Product,
		RetailLow:  l.RetailLow,
		RetailHigh: l.RetailHigh,
		Condition:  l.Condition,
		Comparison: a.Comparison,
	}
}
