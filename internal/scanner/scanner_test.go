package scanner

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"dealscout/internal/evaluator"
	"dealscout/internal/model"
	"dealscout/internal/notifier"
	"dealscout/internal/scraper"
)

// ── Fakes ──────────────────────────────────────────────────────────────────

type fakeStore struct {
	searches  map[string]model.Search
	users     map[string]model.User
	listings  map[string]*model.Listing // "searchID|externalID"
	inserts   int
	touched   map[string]int
	failDedup map[string]bool // search IDs whose dedup check errors
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		searches:  map[string]model.Search{},
		users:     map[string]model.User{},
		listings:  map[string]*model.Listing{},
		touched:   map[string]int{},
		failDedup: map[string]bool{},
	}
}

func (f *fakeStore) addSearch(s model.Search, owner model.User) {
	f.searches[s.ID] = s
	f.users[s.UserID] = owner
}

func key(searchID, externalID string) string { return searchID + "|" + externalID }

func (f *fakeStore) SearchWithOwner(_ context.Context, id string) (*model.Search, *model.User, error) {
	s, ok := f.searches[id]
	if !ok {
		return nil, nil, nil
	}
	u := f.users[s.UserID]
	return &s, &u, nil
}

func (f *fakeStore) ActiveSearches(context.Context) ([]model.Search, error) {
	var out []model.Search
	for _, s := range f.searches {
		if s.Active {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) ListingExists(_ context.Context, searchID, externalID string) (bool, error) {
	if f.failDedup[searchID] {
		return false, errors.New("connection reset")
	}
	_, ok := f.listings[key(searchID, externalID)]
	return ok, nil
}

func (f *fakeStore) InsertListing(_ context.Context, l *model.Listing) error {
	k := key(l.SearchID, l.ExternalID)
	if _, ok := f.listings[k]; ok {
		return nil // ON CONFLICT DO NOTHING
	}
	f.listings[k] = l
	f.inserts++
	return nil
}

func (f *fakeStore) TouchLastChecked(_ context.Context, searchID string) error {
	f.touched[searchID]++
	return nil
}

func (f *fakeStore) MarkAlertsSent(_ context.Context, searchID string) (int64, error) {
	var n int64
	for _, l := range f.listings {
		if l.SearchID == searchID && l.GoodDeal && !l.AlertSent {
			l.AlertSent = true
			n++
		}
	}
	return n, nil
}

type fakeAcquirer struct {
	byQuery map[string][]model.Candidate
	closed  int
}

func (f *fakeAcquirer) Search(_ context.Context, p scraper.SearchParams) ([]model.Candidate, error) {
	return f.byQuery[p.Query], nil
}

func (f *fakeAcquirer) Close() { f.closed++ }

// fakeEval scores by external-id lookup via candidate title (tests name
// candidates after their ids); unknown listings score 50.
type fakeEval struct {
	scores map[string]int
	calls  int
}

func (f *fakeEval) Evaluate(_ context.Context, in evaluator.Input) evaluator.Assessment {
	f.calls++
	score, ok := f.scores[in.Title]
	if !ok {
		score = 50
	}
	return evaluator.Assessment{
		Score:     score,
		GoodDeal:  score >= evaluator.GoodDealThreshold,
		Condition: "good",
		Reasoning: "scripted",
	}
}

type fakeMailer struct {
	ok    bool
	sends [][]notifier.Deal
}

func (f *fakeMailer) Send(_ context.Context, _, _, _, _ string, deals []notifier.Deal) bool {
	f.sends = append(f.sends, deals)
	return f.ok
}

// ── Helpers ────────────────────────────────────────────────────────────────

func candidates(ids ...string) []model.Candidate {
	out := make([]model.Candidate, 0, len(ids))
	for _, id := range ids {
		out = append(out, model.Candidate{
			ExternalID: id,
			Title:      id,
			URL:        fmt.Sprintf("https://sfbay.craigslist.org/d/%s.html", id),
		})
	}
	return out
}

func newTestScanner(st Store, acq Acquirer, ev Evaluator, m Notifier) *Scanner {
	s := New(st, acq, ev, m)
	s.sleep = func(time.Duration) {} // no pacing in tests
	return s
}

func testSearch(id string) (model.Search, model.User) {
	return model.Search{
			ID:         id,
			UserID:     "u1",
			Query:      "mountain bike",
			PostalCode: "94103",
			Active:     true,
		}, model.User{
			ID: "u1", Email: "ada@example.com", Name: "Ada",
		}
}

// ── Dedup ──────────────────────────────────────────────────────────────────

func TestScanSearch_DedupAcrossRuns(t *testing.T) {
	st := newFakeStore()
	search, owner := testSearch("s1")
	st.addSearch(search, owner)

	acq := &fakeAcquirer{byQuery: map[string][]model.Candidate{
		"mountain bike": candidates("101", "102", "103"),
	}}
	ev := &fakeEval{}
	s := newTestScanner(st, acq, ev, &fakeMailer{ok: true})

	first, err := s.ScanSearch(context.Background(), "s1")
	if err != nil {
		t.Fatalf("first scan error: %v", err)
	}
	second, err := s.ScanSearch(context.Background(), "s1")
	if err != nil {
		t.Fatalf("second scan error: %v", err)
	}

	if first.NewListings != 3 {
		t.Errorf("first scan NewListings = %d, want 3", first.NewListings)
	}
	if second.NewListings != 0 {
		t.Errorf("second scan NewListings = %d, want 0 (all deduped)", second.NewListings)
	}
	if st.inserts != 3 {
		t.Errorf("total inserts = %d, want 3 — each external id stored at most once", st.inserts)
	}
	if ev.calls != 3 {
		t.Errorf("evaluator called %d times, want 3 (never re-evaluates seen listings)", ev.calls)
	}
}

// ── Alert flag scoping ─────────────────────────────────────────────────────

func TestScanSearch_AlertScopingLeavesPriorAlertsAlone(t *testing.T) {
	st := newFakeStore()
	search, owner := testSearch("s1")
	st.addSearch(search, owner)

	// A good deal from a previous scan, already alerted.
	st.listings[key("s1", "old")] = &model.Listing{
		SearchID: "s1", ExternalID: "old", GoodDeal: true, AlertSent: true,
	}

	acq := &fakeAcquirer{byQuery: map[string][]model.Candidate{
		"mountain bike": candidates("201", "202", "203"),
	}}
	ev := &fakeEval{scores: map[string]int{"201": 85, "202": 92, "203": 40}}
	mail := &fakeMailer{ok: true}
	s := newTestScanner(st, acq, ev, mail)

	res, err := s.ScanSearch(context.Background(), "s1")
	if err != nil {
		t.Fatalf("scan error: %v", err)
	}

	if res.GoodDeals != 2 {
		t.Errorf("GoodDeals = %d, want 2", res.GoodDeals)
	}
	if res.AlertsSent != 2 {
		t.Errorf("AlertsSent = %d, want exactly the 2 new good deals", res.AlertsSent)
	}
	if len(mail.sends) != 1 || len(mail.sends[0]) != 2 {
		t.Fatalf("expected one digest with 2 deals, got %v", mail.sends)
	}
	for _, id := range []string{"201", "202"} {
		if !st.listings[key("s1", id)].AlertSent {
			t.Errorf("listing %s should be marked alert_sent", id)
		}
	}
	if st.listings[key("s1", "203")].AlertSent {
		t.Error("non-deal listing 203 must not be marked alert_sent")
	}
	if !st.listings[key("s1", "old")].AlertSent {
		t.Error("previously alerted listing must stay alert_sent")
	}
}

func TestScanSearch_NotifyFailureLeavesAlertsUnsent(t *testing.T) {
	st := newFakeStore()
	search, owner := testSearch("s1")
	st.addSearch(search, owner)

	acq := &fakeAcquirer{byQuery: map[string][]model.Candidate{
		"mountain bike": candidates("301"),
	}}
	ev := &fakeEval{scores: map[string]int{"301": 90}}
	s := newTestScanner(st, acq, ev, &fakeMailer{ok: false})

	res, err := s.ScanSearch(context.Background(), "s1")
	if err != nil {
		t.Fatalf("scan error: %v", err)
	}
	if res.GoodDeals != 1 {
		t.Errorf("GoodDeals = %d, want 1", res.GoodDeals)
	}
	if res.AlertsSent != 0 {
		t.Errorf("AlertsSent = %d, want 0 after failed notify", res.AlertsSent)
	}
	if st.listings[key("s1", "301")].AlertSent {
		t.Error("listing must keep alert_sent=false when the digest send failed")
	}
}

// ── Early exits ────────────────────────────────────────────────────────────

func TestScanSearch_InactiveOrMissing(t *testing.T) {
	st := newFakeStore()
	search, owner := testSearch("s1")
	search.Active = false
	st.addSearch(search, owner)

	s := newTestScanner(st, &fakeAcquirer{}, &fakeEval{}, &fakeMailer{ok: true})

	for _, id := range []string{"s1", "nope"} {
		res, err := s.ScanSearch(context.Background(), id)
		if err != nil {
			t.Fatalf("ScanSearch(%s) error: %v", id, err)
		}
		if res.NewListings != 0 || res.GoodDeals != 0 || res.AlertsSent != 0 {
			t.Errorf("ScanSearch(%s) = %+v, want zero counts", id, res)
		}
	}
}

func TestScanSearch_NoEvaluatorConfigured(t *testing.T) {
	st := newFakeStore()
	search, owner := testSearch("s1")
	st.addSearch(search, owner)

	s := newTestScanner(st, &fakeAcquirer{}, nil, &fakeMailer{ok: true})
	_, err := s.ScanSearch(context.Background(), "s1")
	if !errors.Is(err, ErrEvaluatorUnavailable) {
		t.Errorf("err = %v, want ErrEvaluatorUnavailable", err)
	}
}

// ── Per-scan cap ───────────────────────────────────────────────────────────

func TestScanSearch_CandidateCap(t *testing.T) {
	st := newFakeStore()
	search, owner := testSearch("s1")
	st.addSearch(search, owner)

	var many []string
	for i := 0; i < 25; i++ {
		many = append(many, fmt.Sprintf("id%02d", i))
	}
	acq := &fakeAcquirer{byQuery: map[string][]model.Candidate{
		"mountain bike": candidates(many...),
	}}
	ev := &fakeEval{}
	s := newTestScanner(st, acq, ev, &fakeMailer{ok: true})

	res, err := s.ScanSearch(context.Background(), "s1")
	if err != nil {
		t.Fatalf("scan error: %v", err)
	}
	if res.NewListings != scanCap {
		t.Errorf("NewListings = %d, want capped at %d", res.NewListings, scanCap)
	}
}

// ── Checkpoint ─────────────────────────────────────────────────────────────

func TestScanSearch_AlwaysTouchesLastChecked(t *testing.T) {
	st := newFakeStore()
	search, owner := testSearch("s1")
	st.addSearch(search, owner)

	// No candidates at all — checkpoint still moves.
	s := newTestScanner(st, &fakeAcquirer{}, &fakeEval{}, &fakeMailer{ok: true})
	if _, err := s.ScanSearch(context.Background(), "s1"); err != nil {
		t.Fatalf("scan error: %v", err)
	}
	if st.touched["s1"] != 1 {
		t.Errorf("last_checked touched %d times, want 1", st.touched["s1"])
	}
}

// ── Batch sweep ────────────────────────────────────────────────────────────

func TestScanAll_IsolatesPerSearchFailure(t *testing.T) {
	st := newFakeStore()
	for i := 1; i <= 3; i++ {
		id := fmt.Sprintf("s%d", i)
		search, owner := testSearch(id)
		search.Query = "query " + id
		st.addSearch(search, owner)
	}
	st.failDedup["s2"] = true // persistence blows up mid-scan for s2

	acq := &fakeAcquirer{byQuery: map[string][]model.Candidate{
		"query s1": candidates("a1"),
		"query s2": candidates("b1"),
		"query s3": candidates("c1"),
	}}
	s := newTestScanner(st, acq, &fakeEval{}, &fakeMailer{ok: true})

	sum, err := s.ScanAll(context.Background())
	if err != nil {
		t.Fatalf("ScanAll error: %v", err)
	}
	if sum.Searches != 3 {
		t.Errorf("Searches = %d, want 3 (all attempted)", sum.Searches)
	}
	if sum.Failed != 1 {
		t.Errorf("Failed = %d, want 1", sum.Failed)
	}
	if sum.NewListings != 2 {
		t.Errorf("NewListings = %d, want 2 (1st and 3rd searches contribute)", sum.NewListings)
	}
	if acq.closed != 1 {
		t.Errorf("acquirer closed %d times, want exactly once per sweep", acq.closed)
	}
}

func TestScanAll_ClosesAcquirerWithNoSearches(t *testing.T) {
	acq := &fakeAcquirer{}
	s := newTestScanner(newFakeStore(), acq, &fakeEval{}, &fakeMailer{ok: true})
	if _, err := s.ScanAll(context.Background()); err != nil {
		t.Fatalf("ScanAll error: %v", err)
	}
	if acq.closed != 1 {
		t.Errorf("acquirer closed %d times, want 1", acq.closed)
	}
}
