package storage

import (
	"context"
	"time"

	"estate-analytics/internal/domain"
)

// SoldFilter selects sold listings of a market slice within a listing-date window.
type SoldFilter struct {
	State    string
	City     string
	Category string    // empty means every category
	From     time.Time // inclusive
	To       time.Time // exclusive
}

// ComparableQuery selects sold listings comparable to a subject listing.
// Listings with unknown area never satisfy the area range.
type ComparableQuery struct {
	State       string
	City        string
	Category    string
	PriceMin    float64
	PriceMax    float64
	AreaMin     float64
	AreaMax     float64
	ExcludeID   int64
	TargetPrice float64 // results ordered by |price - TargetPrice| ASC, id ASC
	Limit       int
}

// ListingStore provides read access to the listings table.
type ListingStore interface {
	// Insert adds a listing. Returns ErrDuplicateKey if the id exists.
	// When ID is zero the store assigns one and writes it back.
	Insert(ctx context.Context, l *domain.Listing) error

	// GetByID retrieves a listing by id. Returns ErrNotFound if not exists.
	GetByID(ctx context.Context, id int64) (*domain.Listing, error)

	// FindSold retrieves sold listings matching the filter, ordered by listing_date ASC, id ASC.
	FindSold(ctx context.Context, f SoldFilter) ([]*domain.Listing, error)

	// FindComparables retrieves sold listings matching the query, closest price first.
	FindComparables(ctx context.Context, q ComparableQuery) ([]*domain.Listing, error)
}

// TrendStore owns writes to the market_trends table.
type TrendStore interface {
	// Upsert inserts the report or overwrites every derived field of the row
	// sharing its natural key. Last writer wins.
	Upsert(ctx context.Context, r *domain.TrendReport) error

	// GetByKey retrieves a report by its natural key. Returns ErrNotFound if not exists.
	GetByKey(ctx context.Context, key domain.TrendKey) (*domain.TrendReport, error)

	// ListByCity retrieves all reports for a city, newest period first.
	ListByCity(ctx context.Context, city string) ([]*domain.TrendReport, error)
}

// TrendHistoryStore is an append-only archive of every computed trend report.
type TrendHistoryStore interface {
	// Append records a computed report together with its weekly buckets.
	Append(ctx context.Context, r *domain.TrendReport) error

	// GetHistory retrieves up to limit snapshots for (city, category), newest first.
	GetHistory(ctx context.Context, city, category string, limit int) ([]*domain.TrendReport, error)
}
