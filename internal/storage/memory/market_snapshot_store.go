package memory

import (
	"context"
	"sync"

	"github.com/konstantinos193/stacksdotfun/internal/domain"
	"github.com/konstantinos193/stacksdotfun/internal/storage"
)

// MarketSnapshotStore is an in-memory implementation of storage.MarketSnapshotStore.
type MarketSnapshotStore struct {
	mu         sync.RWMutex
	data       map[string]*domain.MarketSnapshot // keyed by token id
	historyCap int
}

// NewMarketSnapshotStore creates a new in-memory snapshot store.
func NewMarketSnapshotStore() *MarketSnapshotStore {
	return &MarketSnapshotStore{
		data:       make(map[string]*domain.MarketSnapshot),
		historyCap: domain.DefaultHistoryCap,
	}
}

// Upsert replaces the token's snapshot and appends its point to the bounded
// price history. Upserting an unchanged timestamp does not grow the history.
func (s *MarketSnapshotStore) Upsert(_ context.Context, snap *domain.MarketSnapshot) error {
	if snap == nil || snap.TokenID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var history []domain.PricePoint
	if prev, exists := s.data[snap.TokenID]; exists {
		history = prev.PriceHistory
	}

	copy := *snap
	copy.PriceHistory = domain.AppendPoint(history, snap.Point(), s.historyCap)
	s.data[snap.TokenID] = &copy
	return nil
}

// GetByTokenID retrieves the latest snapshot, history included.
func (s *MarketSnapshotStore) GetByTokenID(_ context.Context, tokenID string) (*domain.MarketSnapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap, exists := s.data[tokenID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	copy := *snap
	copy.PriceHistory = append([]domain.PricePoint(nil), snap.PriceHistory...)
	return &copy, nil
}

var _ storage.MarketSnapshotStore = (*MarketSnapshotStore)(nil)
