// Package scraper defines core types shared across subsystems.
package scraper

import (
	"time"
)

// TransactionType classifies the commercial terms of a listing.
type TransactionType string

// Transaction types persisted with every property row.
const (
	TransactionSale TransactionType = "sale"
	TransactionRent TransactionType = "rent"
)

// PropertyType is the closed set of physical property categories.
type PropertyType string

// Property types; free-form source strings are mapped onto this set and
// unmapped values fall back to PropertyHouse.
const (
	PropertyHouse      PropertyType = "house"
	PropertyApartment  PropertyType = "apartment"
	PropertyCondo      PropertyType = "condo"
	PropertyCommercial PropertyType = "commercial"
	PropertyLand       PropertyType = "land"
)

// Coordinates holds a WGS84 point. Zero values mean "unknown"; they are
// never null so numeric storage stays uniform.
type Coordinates struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Price is the asking price in a 3-letter currency, defaulting to MXN.
type Price struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency"`
}

// NormalizedProperty is the canonical record produced by every source,
// independent of where it was scraped from. (Source, ExternalID) is the
// natural dedup key.
type NormalizedProperty struct {
	Source     string `json:"source"`
	ExternalID string `json:"external_id"`

	Country       string      `json:"country"`
	StateProvince string      `json:"state_province"`
	City          string      `json:"city"`
	Neighborhood  string      `json:"neighborhood"`
	PostalCode    string      `json:"postal_code"`
	Address       string      `json:"address"`
	Coordinates   Coordinates `json:"coordinates"`

	TransactionType TransactionType `json:"transaction_type"`
	Price           Price           `json:"price"`

	PropertyType PropertyType `json:"property_type"`
	Bedrooms     int          `json:"bedrooms"`
	Bathrooms    float64      `json:"bathrooms"`
	AreaSqm      float64      `json:"area_sqm"`
	LotSizeSqm   *float64     `json:"lot_size_sqm,omitempty"`

	Amenities   []string `json:"amenities"`
	Images      []string `json:"images"`
	Description string   `json:"description"`
	ContactInfo string   `json:"contact_info"`

	ListingDate time.Time `json:"listing_date"`
	LastUpdated time.Time `json:"last_updated"`
}

// RunState represents the lifecycle state of one source's scrape runs.
type RunState string

// Run states persisted in the status store.
const (
	RunStateIdle    RunState = "idle"
	RunStateRunning RunState = "running"
	RunStateFailed  RunState = "failed"
)

// RunStatus is the per-source bookkeeping row the orchestrator maintains:
// cumulative totals plus the error messages from the most recent run.
type RunStatus struct {
	Name         string     `json:"name"`
	LastRun      *time.Time `json:"last_run,omitempty"`
	State        RunState   `json:"status"`
	TotalScraped int64      `json:"total_scraped"`
	Errors       []string   `json:"errors"`
}

// Result is returned by one Engine.Scrape call.
type Result struct {
	Source       string    `json:"source"`
	Success      bool      `json:"success"`
	TotalScraped int       `json:"total_scraped"`
	Errors       []string  `json:"errors"`
	StartTime    time.Time `json:"start_time"`
	EndTime      time.Time `json:"end_time"`
}
