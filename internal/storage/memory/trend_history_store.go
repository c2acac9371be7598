package memory

import (
	"context"
	"sync"

	"estate-analytics/internal/domain"
	"estate-analytics/internal/storage"
)

// TrendHistoryStore is an in-memory implementation of storage.TrendHistoryStore.
type TrendHistoryStore struct {
	mu        sync.RWMutex
	snapshots []*domain.TrendReport // append order
}

// NewTrendHistoryStore creates a new in-memory trend history store.
func NewTrendHistoryStore() *TrendHistoryStore {
	return &TrendHistoryStore{}
}

// Append records a computed report.
func (s *TrendHistoryStore) Append(_ context.Context, r *domain.TrendReport) error {
	if r == nil || r.City == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshots = append(s.snapshots, copyTrend(r))
	return nil
}

// GetHistory retrieves up to limit snapshots for (city, category), newest first.
func (s *TrendHistoryStore) GetHistory(_ context.Context, city, category string, limit int) ([]*domain.TrendReport, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []*domain.TrendReport
	for i := len(s.snapshots) - 1; i >= 0; i-- {
		r := s.snapshots[i]
		if r.City != city || r.Category != category {
			continue
		}
		result = append(result, copyTrend(r))
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

var _ storage.TrendHistoryStore = (*TrendHistoryStore)(nil)
