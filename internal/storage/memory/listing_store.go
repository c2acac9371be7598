package memory

import (
	"context"
	"math"
	"sort"
	"sync"

	"estate-analytics/internal/domain"
	"estate-analytics/internal/storage"
)

// ListingStore is an in-memory implementation of storage.ListingStore.
type ListingStore struct {
	mu     sync.RWMutex
	byID   map[int64]*domain.Listing
	nextID int64
}

// NewListingStore creates a new in-memory listing store.
func NewListingStore() *ListingStore {
	return &ListingStore{
		byID:   make(map[int64]*domain.Listing),
		nextID: 1,
	}
}

// Insert adds a listing. Returns ErrDuplicateKey if the id already exists.
func (s *ListingStore) Insert(_ context.Context, l *domain.Listing) error {
	if l == nil || l.City == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if l.ID == 0 {
		for {
			if _, taken := s.byID[s.nextID]; !taken {
				break
			}
			s.nextID++
		}
		l.ID = s.nextID
		s.nextID++
	}

	if _, exists := s.byID[l.ID]; exists {
		return storage.ErrDuplicateKey
	}

	s.byID[l.ID] = copyListing(l)
	return nil
}

// GetByID retrieves a listing by id. Returns ErrNotFound if not exists.
func (s *ListingStore) GetByID(_ context.Context, id int64) (*domain.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	l, exists := s.byID[id]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyListing(l), nil
}

// FindSold retrieves sold listings matching the filter, ordered by listing_date ASC, id ASC.
func (s *ListingStore) FindSold(_ context.Context, f storage.SoldFilter) ([]*domain.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Listing
	for _, l := range s.byID {
		if l.Status != domain.ListingStatusSold || l.City != f.City {
			continue
		}
		if f.State != "" && l.State != f.State {
			continue
		}
		if f.Category != "" && l.Category != f.Category {
			continue
		}
		if l.ListingDate.Before(f.From) || !l.ListingDate.Before(f.To) {
			continue
		}
		result = append(result, copyListing(l))
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].ListingDate.Equal(result[j].ListingDate) {
			return result[i].ListingDate.Before(result[j].ListingDate)
		}
		return result[i].ID < result[j].ID
	})
	return result, nil
}

// FindComparables retrieves sold listings matching the query, closest price first.
func (s *ListingStore) FindComparables(_ context.Context, q storage.ComparableQuery) ([]*domain.Listing, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.Listing
	for _, l := range s.byID {
		if l.ID == q.ExcludeID || l.Status != domain.ListingStatusSold {
			continue
		}
		if l.City != q.City || l.Category != q.Category {
			continue
		}
		if q.State != "" && l.State != q.State {
			continue
		}
		if l.Price < q.PriceMin || l.Price > q.PriceMax {
			continue
		}
		// NULL area never matches a BETWEEN range.
		if l.Area == nil || *l.Area < q.AreaMin || *l.Area > q.AreaMax {
			continue
		}
		result = append(result, copyListing(l))
	}

	sort.Slice(result, func(i, j int) bool {
		di := math.Abs(result[i].Price - q.TargetPrice)
		dj := math.Abs(result[j].Price - q.TargetPrice)
		if di != dj {
			return di < dj
		}
		return result[i].ID < result[j].ID
	})

	if q.Limit > 0 && len(result) > q.Limit {
		result = result[:q.Limit]
	}
	return result, nil
}

func copyListing(l *domain.Listing) *domain.Listing {
	c := *l
	if l.Area != nil {
		area := *l.Area
		c.Area = &area
	}
	return &c
}

var _ storage.ListingStore = (*ListingStore)(nil)
