package domain

import "time"

// ListingStatus is the sale status of a listing.
type ListingStatus string

// Listing statuses.
const (
	ListingStatusActive  ListingStatus = "active"
	ListingStatusSold    ListingStatus = "sold"
	ListingStatusDeleted ListingStatus = "deleted"
)

// Property categories known to the estimator.
const (
	CategoryResidential = "residential"
	CategoryCommercial  = "commercial"
	CategoryIndustrial  = "industrial"
	CategoryLand        = "land"

	// CategoryAll marks a trend computed across every category.
	CategoryAll = "all"
)

// Listing represents a property listing as read from the listings table.
// Listings are read-only input for the analytics engines.
type Listing struct {
	ID          int64         `json:"id" msgpack:"id"`
	City        string        `json:"city" msgpack:"city"`
	State       string        `json:"state" msgpack:"state"`
	Category    string        `json:"property_type" msgpack:"property_type"`
	Price       float64       `json:"price" msgpack:"price"`
	Area        *float64      `json:"square_feet,omitempty" msgpack:"square_feet,omitempty"` // nullable
	ListingDate time.Time     `json:"listing_date" msgpack:"listing_date"`
	UpdatedAt   time.Time     `json:"updated_at" msgpack:"updated_at"`
	Status      ListingStatus `json:"status" msgpack:"status"`
}

// AreaOrZero returns the area, or 0 when unknown.
func (l *Listing) AreaOrZero() float64 {
	if l.Area == nil {
		return 0
	}
	return *l.Area
}

// HasArea reports whether the listing carries a usable (non-zero) area.
func (l *Listing) HasArea() bool {
	return l.Area != nil && *l.Area > 0
}

// DaysOnMarket returns the fractional number of days between listing and last update.
func (l *Listing) DaysOnMarket() float64 {
	return l.UpdatedAt.Sub(l.ListingDate).Hours() / 24
}

// Region identifies a market.
type Region struct {
	City  string `json:"city" yaml:"city"`
	State string `json:"state" yaml:"state"`
}
