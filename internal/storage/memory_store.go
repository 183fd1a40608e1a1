package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"lexisense/internal/models"
)

// MemoryStore keeps contracts in process. It backs local runs without
// Postgres and the HTTP tests. maxContracts bounds memory; 0 is unlimited.
type MemoryStore struct {
	mu           sync.RWMutex
	contracts    map[string]*models.Contract
	maxContracts int
	now          func() time.Time
}

func NewMemoryStore(maxContracts int) *MemoryStore {
	if maxContracts < 0 {
		maxContracts = 0
	}
	return &MemoryStore{
		contracts:    map[string]*models.Contract{},
		maxContracts: maxContracts,
		now:          time.Now,
	}
}

func (s *MemoryStore) CreateContract(_ context.Context, c models.Contract) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().UTC()
	if c.CreatedAt.IsZero() {
		c.CreatedAt = now
	}
	c.UpdatedAt = now
	c.Analysis = nil
	s.contracts[c.ContractID] = &c
	s.evictLocked()
	return nil
}

func (s *MemoryStore) GetContract(_ context.Context, contractID string) (models.Contract, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.contracts[contractID]
	if !ok {
		return models.Contract{}, ErrNotFound
	}
	out := *c
	if c.Analysis != nil {
		a := cloneResult(*c.Analysis)
		out.Analysis = &a
	}
	return out, nil
}

func (s *MemoryStore) GetDocumentText(_ context.Context, contractID string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.contracts[contractID]
	if !ok {
		return "", ErrNotFound
	}
	return c.Text, nil
}

func (s *MemoryStore) SaveAnalysisResult(_ context.Context, contractID string, result models.AnalysisResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contracts[contractID]
	if !ok {
		return ErrNotFound
	}
	r := cloneResult(result)
	c.Analysis = &r
	c.Status = models.StatusAnalyzed
	c.FailReason = ""
	c.UpdatedAt = s.now().UTC()
	return nil
}

func (s *MemoryStore) SetDocumentStatus(_ context.Context, contractID string, status models.ContractStatus, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.contracts[contractID]
	if !ok {
		return ErrNotFound
	}
	c.Status = status
	c.FailReason = reason
	c.UpdatedAt = s.now().UTC()
	return nil
}

// evictLocked drops the oldest finished contracts once the store is over
// capacity. Contracts still processing are never evicted.
func (s *MemoryStore) evictLocked() {
	if s.maxContracts <= 0 || len(s.contracts) <= s.maxContracts {
		return
	}
	finished := make([]*models.Contract, 0, len(s.contracts))
	for _, c := range s.contracts {
		if c.Status != models.StatusProcessing {
			finished = append(finished, c)
		}
	}
	sort.Slice(finished, func(i, j int) bool { return finished[i].CreatedAt.Before(finished[j].CreatedAt) })
	for _, c := range finished {
		if len(s.contracts) <= s.maxContracts {
			return
		}
		delete(s.contracts, c.ContractID)
	}
}

func cloneResult(r models.AnalysisResult) models.AnalysisResult {
	r.Parties = append([]models.Party{}, r.Parties...)
	r.Dates = append([]models.KeyDate{}, r.Dates...)
	r.Risks = append([]models.Risk{}, r.Risks...)
	return r
}
