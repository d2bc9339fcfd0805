package memory

import (
	"context"
	"sort"
	"sync"

	"github.com/konstantinos193/stacksdotfun/internal/domain"
	"github.com/konstantinos193/stacksdotfun/internal/storage"
)

// PriceTimeseriesStore is an in-memory implementation of storage.PriceTimeseriesStore.
type PriceTimeseriesStore struct {
	mu   sync.RWMutex
	data map[string][]domain.PricePoint // keyed by token id, sorted by timestamp ASC
}

// NewPriceTimeseriesStore creates a new in-memory price timeseries store.
func NewPriceTimeseriesStore() *PriceTimeseriesStore {
	return &PriceTimeseriesStore{
		data: make(map[string][]domain.PricePoint),
	}
}

// Append adds price points for a token. Duplicate (token, timestamp) pairs
// are absorbed.
func (s *PriceTimeseriesStore) Append(_ context.Context, tokenID string, points []domain.PricePoint) error {
	if tokenID == "" {
		return storage.ErrInvalidInput
	}
	if len(points) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing := s.data[tokenID]
	seen := make(map[int64]struct{}, len(existing))
	for _, p := range existing {
		seen[p.Timestamp.UnixNano()] = struct{}{}
	}

	for _, p := range points {
		key := p.Timestamp.UnixNano()
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		existing = append(existing, p)
	}

	sort.Slice(existing, func(i, j int) bool {
		return existing[i].Timestamp.Before(existing[j].Timestamp)
	})
	s.data[tokenID] = existing
	return nil
}

// GetBlockRange retrieves points with block heights in [startBlock, endBlock]
// inclusive, ordered by timestamp ASC. endBlock 0 means no upper bound.
func (s *PriceTimeseriesStore) GetBlockRange(_ context.Context, tokenID string, startBlock, endBlock int64) ([]domain.PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []domain.PricePoint
	for _, p := range s.data[tokenID] {
		if p.BlockHeight < startBlock {
			continue
		}
		if endBlock > 0 && p.BlockHeight > endBlock {
			continue
		}
		result = append(result, p)
	}
	return result, nil
}

// Latest retrieves up to limit most recent points, ordered by timestamp ASC.
func (s *PriceTimeseriesStore) Latest(_ context.Context, tokenID string, limit int) ([]domain.PricePoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	points := s.data[tokenID]
	if limit > 0 && len(points) > limit {
		points = points[len(points)-limit:]
	}
	return append([]domain.PricePoint(nil), points...), nil
}

var _ storage.PriceTimeseriesStore = (*PriceTimeseriesStore)(nil)
