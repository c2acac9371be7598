package postgres

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"estate-analytics/internal/domain"
	"estate-analytics/internal/storage"
)

const listingColumns = "id, city, state, property_type, price, square_feet, listing_date, updated_at, status"

// ListingStore implements storage.ListingStore using PostgreSQL.
type ListingStore struct {
	conn *Connector
}

// NewListingStore creates a new ListingStore.
func NewListingStore(conn *Connector) *ListingStore {
	return &ListingStore{conn: conn}
}

// Insert adds a listing. Returns ErrDuplicateKey if the id exists.
func (s *ListingStore) Insert(ctx context.Context, l *domain.Listing) error {
	if l == nil || l.City == "" {
		return storage.ErrInvalidInput
	}

	status := l.Status
	if status == "" {
		status = domain.ListingStatusActive
	}

	q := psql.Insert("listings")
	if l.ID != 0 {
		q = q.Columns("id", "city", "state", "property_type", "price", "square_feet", "listing_date", "updated_at", "status").
			Values(l.ID, l.City, l.State, l.Category, l.Price, l.Area, l.ListingDate, l.UpdatedAt, string(status))
	} else {
		q = q.Columns("city", "state", "property_type", "price", "square_feet", "listing_date", "updated_at", "status").
			Values(l.City, l.State, l.Category, l.Price, l.Area, l.ListingDate, l.UpdatedAt, string(status))
	}
	query, args, err := q.Suffix("RETURNING id").ToSql()
	if err != nil {
		return fmt.Errorf("build insert listing: %w", err)
	}

	return s.conn.WithConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		var id int64
		if err := conn.QueryRow(ctx, query, args...).Scan(&id); err != nil {
			if isDuplicateKeyError(err) {
				return storage.ErrDuplicateKey
			}
			return fmt.Errorf("insert listing: %w", err)
		}
		l.ID = id
		l.Status = status
		return nil
	})
}

// GetByID retrieves a listing by id. Returns ErrNotFound if not exists.
func (s *ListingStore) GetByID(ctx context.Context, id int64) (*domain.Listing, error) {
	query, args, err := psql.Select(listingColumns).
		From("listings").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("build get listing: %w", err)
	}

	var l *domain.Listing
	err = s.conn.WithConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		var err error
		l, err = scanListing(conn.QueryRow(ctx, query, args...))
		return err
	})
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, err
	}
	return l, nil
}

// FindSold retrieves sold listings matching the filter, ordered by listing_date ASC, id ASC.
func (s *ListingStore) FindSold(ctx context.Context, f storage.SoldFilter) ([]*domain.Listing, error) {
	q := psql.Select(listingColumns).
		From("listings").
		Where(sq.Eq{"status": string(domain.ListingStatusSold), "city": f.City}).
		Where(sq.GtOrEq{"listing_date": f.From}).
		Where(sq.Lt{"listing_date": f.To})
	if f.State != "" {
		q = q.Where(sq.Eq{"state": f.State})
	}
	if f.Category != "" {
		q = q.Where(sq.Eq{"property_type": f.Category})
	}

	query, args, err := q.OrderBy("listing_date ASC", "id ASC").ToSql()
	if err != nil {
		return nil, fmt.Errorf("build find sold: %w", err)
	}
	return s.queryListings(ctx, query, args)
}

// FindComparables retrieves sold listings matching the query, closest price first.
func (s *ListingStore) FindComparables(ctx context.Context, cq storage.ComparableQuery) ([]*domain.Listing, error) {
	q := psql.Select(listingColumns).
		From("listings").
		Where(sq.Eq{
			"status":        string(domain.ListingStatusSold),
			"city":          cq.City,
			"property_type": cq.Category,
		}).
		Where(sq.NotEq{"id": cq.ExcludeID}).
		Where("price BETWEEN ? AND ?", cq.PriceMin, cq.PriceMax).
		Where("square_feet BETWEEN ? AND ?", cq.AreaMin, cq.AreaMax)
	if cq.State != "" {
		q = q.Where(sq.Eq{"state": cq.State})
	}
	q = q.OrderByClause("ABS(price - ?) ASC, id ASC", cq.TargetPrice)
	if cq.Limit > 0 {
		q = q.Limit(uint64(cq.Limit))
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("build find comparables: %w", err)
	}
	return s.queryListings(ctx, query, args)
}

func (s *ListingStore) queryListings(ctx context.Context, query string, args []any) ([]*domain.Listing, error) {
	var result []*domain.Listing
	err := s.conn.WithConn(ctx, func(ctx context.Context, conn *pgxpool.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("query listings: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			l, err := scanListing(rows)
			if err != nil {
				return err
			}
			result = append(result, l)
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func scanListing(row pgx.Row) (*domain.Listing, error) {
	var l domain.Listing
	var status string
	err := row.Scan(
		&l.ID,
		&l.City,
		&l.State,
		&l.Category,
		&l.Price,
		&l.Area,
		&l.ListingDate,
		&l.UpdatedAt,
		&status,
	)
	if err != nil {
		return nil, err
	}
	l.Status = domain.ListingStatus(status)
	return &l, nil
}

var _ storage.ListingStore = (*ListingStore)(nil)
