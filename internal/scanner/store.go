package scanner

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"dealscout/internal/model"
)

// PGStore implements Store on a pgx connection pool. Each write is its
// own atomic statement; no transaction spans scan steps.
type PGStore struct {
	pool *pgxpool.Pool
}

// NewPGStore returns a Store backed by PostgreSQL.
func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

// SearchWithOwner loads a search and its owning user. A missing search
// returns (nil, nil, nil) — the scan treats it as a zero-count early exit.
func (st *PGStore) SearchWithOwner(ctx context.Context, searchID string) (*model.Search, *model.User, error) {
	var (
		s model.Search
		u model.User
	)
	err := st.pool.QueryRow(ctx,
		`SELECT s.id, s.user_id, s.query, s.postal_code, s.min_price, s.max_price,
		        s.radius_miles, s.active, s.preferences, s.last_checked,
		        u.id, u.email, u.name
		 FROM searches s
		 JOIN users u ON u.id = s.user_id
		 WHERE s.id = $1`,
		searchID,
	).Scan(
		&s.ID, &s.UserID, &s.Query, &s.PostalCode, &s.MinPrice, &s.MaxPrice,
		&s.RadiusMiles, &s.Active, &s.Preferences, &s.LastChecked,
		&u.ID, &u.Email, &u.Name,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("searchWithOwner query: %w", err)
	}
	return &s, &u, nil
}

// ActiveSearches returns every active search, oldest-checked first so
// starved searches get swept before recently-checked ones.
func (st *PGStore) ActiveSearches(ctx context.Context) ([]model.Search, error) {
	rows, err := st.pool.Query(ctx,
		`SELECT id, user_id, query, postal_code, min_price, max_price,
		        radius_miles, active, preferences, last_checked
		 FROM searches
		 WHERE active = true
		 ORDER BY last_checked ASC NULLS FIRST`,
	)
	if err != nil {
		return nil, fmt.Errorf("activeSearches query: %w", err)
	}
	defer rows.Close()

	var searches []model.Search
	for rows.Next() {
		var s model.Search
		if err := rows.Scan(
			&s.ID, &s.UserID, &s.Query, &s.PostalCode, &s.MinPrice, &s.MaxPrice,
			&s.RadiusMiles, &s.Active, &s.Preferences, &s.LastChecked,
		); err != nil {
			return nil, fmt.Errorf("activeSearches scan: %w", err)
		}
		searches = append(searches, s)
	}
	return searches, rows.Err()
}

// ListingExists reports whether a listing already exists for the dedup
// key (searchID, externalID).
func (st *PGStore) ListingExists(ctx context.Context, searchID, externalID string) (bool, error) {
	var exists bool
	err := st.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM listings WHERE search_id = $1 AND external_id = $2)`,
		searchID, externalID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("listingExists query: %w", err)
	}
	return exists, nil
}

// InsertListing stores one evaluated listing. The unique constraint on
// (search_id, external_id) backstops the dedup check; a concurrent
// duplicate is dropped silently.
func (st *PGStore) InsertListing(ctx context.Context, l *model.Listing) error {
	_, err := st.pool.Exec(ctx,
		`INSERT INTO listings
		   (id, search_id, external_id, title, price, url, description, image_url,
		    location, posted_at, score, good_deal, reasoning, product,
		    retail_low, retail_high, condition, alert_sent)
		 VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,false)
		 ON CONFLICT (search_id, external_id) DO NOTHING`,
		l.ID, l.SearchID, l.ExternalID, l.Title, l.Price, l.URL, l.Description,
		l.ImageURL, l.Location, l.PostedAt, l.Score, l.GoodDeal, l.Reasoning,
		l.Product, l.RetailLow, l.RetailHigh, l.Condition,
	)
	if err != nil {
		return fmt.Errorf("insertListing: %w", err)
	}
	return nil
}

// TouchLastChecked stamps the search's checkpoint, whatever the scan's
// outcome was.
func (st *PGStore) TouchLastChecked(ctx context.Context, searchID string) error {
	_, err := st.pool.Exec(ctx,
		`UPDATE searches SET last_checked = now() WHERE id = $1`, searchID)
	if err != nil {
		return fmt.Errorf("touchLastChecked: %w", err)
	}
	return nil
}

// MarkAlertsSent flips alert_sent for this search's good deals that have
// not been alerted yet. Scoping on alert_sent = false keeps listings
// covered by a previous scan's digest untouched.
func (st *PGStore) MarkAlertsSent(ctx context.Context, searchID string) (int64, error) {
	tag, err := st.pool.Exec(ctx,
		`UPDATE listings
		 SET alert_sent = true
		 WHERE search_id = $1 AND good_deal = true AND alert_sent = false`,
		searchID)
	if err != nil {
		return 0, fmt.Errorf("markAlertsSent: %w", err)
	}
	return tag.RowsAffected(), nil
}
