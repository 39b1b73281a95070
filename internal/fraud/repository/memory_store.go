package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/sand/fraud-detector/backend/internal/fraud/entities"
)

type pairKey struct {
	transactionID int64
	reason        string
}

// MemoryStore is an in-memory suspicion store for demo and test use.
type MemoryStore struct {
	mu      sync.RWMutex
	nextID  int64
	records map[pairKey]entities.SuspiciousRecord
}

// NewMemoryStore creates an empty in-memory suspicion store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		records: make(map[pairKey]entities.SuspiciousRecord),
	}
}

func (s *MemoryStore) Exists(_ context.Context, transactionID int64, reason string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	_, ok := s.records[pairKey{transactionID, reason}]
	return ok, nil
}

func (s *MemoryStore) Insert(_ context.Context, record *entities.SuspiciousRecord) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey{record.TransactionID, record.Reason}
	if _, ok := s.records[key]; ok {
		return false, nil
	}

	s.nextID++
	record.ID = s.nextID
	s.records[key] = *record
	return true, nil
}

func (s *MemoryStore) FindByUser(_ context.Context, userID int64) ([]entities.SuspiciousRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []entities.SuspiciousRecord
	for _, rec := range s.records {
		if rec.UserID == userID {
			result = append(result, rec)
		}
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID < result[j].ID })
	return result, nil
}

// Count returns the number of stored records.
func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
