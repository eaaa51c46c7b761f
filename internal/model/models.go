// Package model defines shared data structures for the scan pipeline.
package model

import "time"

// User owns zero or more Searches. Email is unique.
type User struct {
	ID    string
	Email string
	Name  string
}

// Search mirrors the searches table row relevant to scanning. It is a
// standing monitoring request: "tell me when a good deal on X shows up
// near Y". The scan pipeline only ever mutates LastChecked.
type Search struct {
	ID          string
	UserID      string
	Query       string
	PostalCode  string
	MinPrice    *int // currency subunits (cents)
	MaxPrice    *int // currency subunits (cents)
	RadiusMiles *int
	Active      bool
	Preferences string // opaque user preference text, forwarded to evaluation
	LastChecked *time.Time
}

// Candidate is a raw marketplace posting scraped from a search results
// page, before evaluation. ExternalID is the marketplace's own posting id.
type Candidate struct {
	ExternalID  string
	Title       string
	Price       *int // cents, nil when the posting lists no price
	URL         string
	Description string
	ImageURL    string
	Images      []string
	Location    string
	PostedAt    *time.Time
}

// Listing is one evaluated posting tied to exactly one Search.
// (SearchID, ExternalID) is unique — the dedup key. Rows are immutable
// once written except for AlertSent, which flips false→true exactly once
// after a successful digest send that covered this listing.
type Listing struct {
	ID          string
	SearchID    string
	ExternalID  string
	Title       string
	Price       *int
	URL         string
	Description string
	ImageURL    string
	Location    string
	PostedAt    *time.Time

	Score      int // 1–100
	GoodDeal   bool
	Reasoning  string
	Product    string // identified product, "" when unidentified
	RetailLow  *int   // cents
	RetailHigh *int   // cents
	Condition  string // excellent | good | fair | poor | unknown

	AlertSent bool
	CreatedAt time.Time
}
