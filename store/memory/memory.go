// Package memory provides an in-memory certificate inventory, used by
// tests and as a fallback when no inventory path is configured.
package memory

import (
	"fmt"
	"sort"
	"sync"

	"github.com/jmcleod/certflux/store"
)

// Store implements store.Repository in memory. Safe for concurrent use.
type Store struct {
	mu   sync.RWMutex
	recs map[string]*store.Record
}

var _ store.Repository = (*Store)(nil)

// NewRepository returns an empty in-memory repository.
func NewRepository() *Store {
	return &Store{recs: make(map[string]*store.Record)}
}

func (s *Store) Put(rec *store.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rec
	s.recs[rec.SerialNumber] = &cp
	return nil
}

func (s *Store) Get(serial string) (*store.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.recs[serial]
	if !ok {
		return nil, fmt.Errorf("%s: %w", serial, store.ErrNotFound)
	}
	cp := *rec
	return &cp, nil
}

func (s *Store) List() ([]*store.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	recs := make([]*store.Record, 0, len(s.recs))
	for _, rec := range s.recs {
		cp := *rec
		recs = append(recs, &cp)
	}
	sort.Slice(recs, func(i, j int) bool {
		return recs[i].CreatedAt.After(recs[j].CreatedAt)
	})
	return recs, nil
}

// Close is a no-op.
func (s *Store) Close() error {
	return nil
}
