package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"estate-analytics/internal/domain"
	"estate-analytics/internal/storage"
)

// TrendStore is an in-memory implementation of storage.TrendStore.
type TrendStore struct {
	mu   sync.RWMutex
	rows map[domain.TrendKey]*domain.TrendReport

	// now is overridable in tests.
	now func() time.Time
}

// NewTrendStore creates a new in-memory trend store.
func NewTrendStore() *TrendStore {
	return &TrendStore{
		rows: make(map[domain.TrendKey]*domain.TrendReport),
		now:  time.Now,
	}
}

// Upsert inserts the report or overwrites the row sharing its natural key.
func (s *TrendStore) Upsert(_ context.Context, r *domain.TrendReport) error {
	if r == nil || r.City == "" || r.Category == "" {
		return storage.ErrInvalidInput
	}

	key := normalizeKey(r.TrendKey)

	s.mu.Lock()
	defer s.mu.Unlock()

	row := copyTrend(r)
	row.TrendKey = key
	row.UpdatedAt = s.now().UTC()
	s.rows[key] = row
	return nil
}

// GetByKey retrieves a report by its natural key. Returns ErrNotFound if not exists.
func (s *TrendStore) GetByKey(_ context.Context, key domain.TrendKey) (*domain.TrendReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row, exists := s.rows[normalizeKey(key)]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyTrend(row), nil
}

// ListByCity retrieves all reports for a city, newest period first.
func (s *TrendStore) ListByCity(_ context.Context, city string) ([]*domain.TrendReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TrendReport
	for key, row := range s.rows {
		if key.City == city {
			result = append(result, copyTrend(row))
		}
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].PeriodEnd.Equal(result[j].PeriodEnd) {
			return result[i].PeriodEnd.After(result[j].PeriodEnd)
		}
		return result[i].Category < result[j].Category
	})
	return result, nil
}

// Len returns the number of stored rows.
func (s *TrendStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.rows)
}

// normalizeKey truncates period bounds to dates so keys compare like DATE columns.
func normalizeKey(k domain.TrendKey) domain.TrendKey {
	k.PeriodStart = truncateDate(k.PeriodStart)
	k.PeriodEnd = truncateDate(k.PeriodEnd)
	return k
}

func truncateDate(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func copyTrend(r *domain.TrendReport) *domain.TrendReport {
	c := *r
	if r.Weekly != nil {
		c.Weekly = make([]domain.WeeklyBucket, len(r.Weekly))
		copy(c.Weekly, r.Weekly)
	}
	return &c
}

var _ storage.TrendStore = (*TrendStore)(nil)
