package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"estate-analytics/internal/domain"
	"estate-analytics/internal/storage"
)

func TestListingStore_InsertAndGetByID(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewListingStore(newTestConnector(pool))
	ctx := context.Background()

	listed := time.Date(2025, 3, 3, 0, 0, 0, 0, time.UTC)
	l := &domain.Listing{
		ID:          101,
		City:        "Austin",
		State:       "TX",
		Category:    domain.CategoryResidential,
		Price:       425000,
		Area:        ptr(2100.0),
		ListingDate: listed,
		UpdatedAt:   listed.Add(20 * 24 * time.Hour),
		Status:      domain.ListingStatusSold,
	}
	require.NoError(t, store.Insert(ctx, l))

	got, err := store.GetByID(ctx, 101)
	require.NoError(t, err)
	assert.Equal(t, "Austin", got.City)
	assert.Equal(t, 425000.0, got.Price)
	require.NotNil(t, got.Area)
	assert.Equal(t, 2100.0, *got.Area)
	assert.True(t, listed.Equal(got.ListingDate))
	assert.Equal(t, domain.ListingStatusSold, got.Status)

	err = store.Insert(ctx, l)
	assert.ErrorIs(t, err, storage.ErrDuplicateKey)

	_, err = store.GetByID(ctx, 999)
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestListingStore_FindSoldAndComparables(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := NewListingStore(newTestConnector(pool))
	ctx := context.Background()
	base := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)

	add := func(id int64, price float64, area *float64, category string, status domain.ListingStatus, day int) {
		t.Helper()
		require.NoError(t, store.Insert(ctx, &domain.Listing{
			ID:          id,
			City:        "Austin",
			State:       "TX",
			Category:    category,
			Price:       price,
			Area:        area,
			ListingDate: base.AddDate(0, 0, day),
			UpdatedAt:   base.AddDate(0, 0, day+30),
			Status:      status,
		}))
	}

	add(1, 400000, ptr(2000.0), domain.CategoryResidential, domain.ListingStatusActive, 0) // subject
	add(2, 410000, ptr(2100.0), domain.CategoryResidential, domain.ListingStatusSold, 5)
	add(3, 385000, ptr(1900.0), domain.CategoryResidential, domain.ListingStatusSold, 2)
	add(4, 470000, ptr(2300.0), domain.CategoryResidential, domain.ListingStatusSold, 9)
	add(5, 401000, nil, domain.CategoryResidential, domain.ListingStatusSold, 3)
	add(6, 399000, ptr(2000.0), domain.CategoryCommercial, domain.ListingStatusSold, 4)
	add(7, 600000, ptr(2000.0), domain.CategoryResidential, domain.ListingStatusSold, 6)

	sold, err := store.FindSold(ctx, storage.SoldFilter{
		State:    "TX",
		City:     "Austin",
		Category: domain.CategoryResidential,
		From:     base,
		To:       base.AddDate(0, 0, 7),
	})
	require.NoError(t, err)
	ids := make([]int64, 0, len(sold))
	for _, l := range sold {
		ids = append(ids, l.ID)
	}
	assert.Equal(t, []int64{3, 5, 2, 7}, ids)

	all, err := store.FindSold(ctx, storage.SoldFilter{
		City: "Austin",
		From: base,
		To:   base.AddDate(0, 0, 30),
	})
	require.NoError(t, err)
	assert.Len(t, all, 6)

	comps, err := store.FindComparables(ctx, storage.ComparableQuery{
		State:       "TX",
		City:        "Austin",
		Category:    domain.CategoryResidential,
		PriceMin:    320000,
		PriceMax:    480000,
		AreaMin:     1600,
		AreaMax:     2400,
		ExcludeID:   1,
		TargetPrice: 400000,
		Limit:       10,
	})
	require.NoError(t, err)
	ids = ids[:0]
	for _, l := range comps {
		ids = append(ids, l.ID)
	}
	assert.Equal(t, []int64{2, 3, 4}, ids)
}
