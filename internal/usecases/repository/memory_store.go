package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/sand/fraud-detector/backend/internal/entities"
	fraudentities "github.com/sand/fraud-detector/backend/internal/fraud/entities"
	"github.com/sand/fraud-detector/backend/internal/shared"
)

// MemoryStore keeps transactions and users in memory. It backs the service
// when no database is configured and is used throughout the tests.
type MemoryStore struct {
	mu           sync.RWMutex
	transactions map[int64]entities.Transaction
	users        map[int64]entities.User

	// serializes the reason read-modify-write per transaction
	rowLocks shared.KeyedMutex
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		transactions: make(map[int64]entities.Transaction),
		users:        make(map[int64]entities.User),
	}
}

func (s *MemoryStore) AllOrderedByUserThenTime(_ context.Context) ([]entities.Transaction, error) {
	s.mu.RLock()
	txs := make([]entities.Transaction, 0, len(s.transactions))
	for _, t := range s.transactions {
		txs = append(txs, t)
	}
	s.mu.RUnlock()

	sort.Slice(txs, func(i, j int) bool {
		a, b := txs[i], txs[j]
		if a.UserID != b.UserID {
			return a.UserID < b.UserID
		}
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		return a.ID < b.ID
	})
	return txs, nil
}

func (s *MemoryStore) FindByUser(_ context.Context, userID int64) ([]entities.Transaction, error) {
	s.mu.RLock()
	var txs []entities.Transaction
	for _, t := range s.transactions {
		if t.UserID == userID {
			txs = append(txs, t)
		}
	}
	s.mu.RUnlock()

	sort.Slice(txs, func(i, j int) bool {
		if !txs[i].Timestamp.Equal(txs[j].Timestamp) {
			return txs[i].Timestamp.After(txs[j].Timestamp)
		}
		return txs[i].ID > txs[j].ID
	})
	return txs, nil
}

// InsertTransactions stores the batch, skipping ids that already exist.
func (s *MemoryStore) InsertTransactions(_ context.Context, txs []entities.Transaction) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	inserted := 0
	for _, t := range txs {
		if _, ok := s.transactions[t.ID]; ok {
			continue
		}
		t.Timestamp = t.Timestamp.UTC()
		s.transactions[t.ID] = t
		inserted++
	}
	return inserted, nil
}

// UpdateSuspicion merges reason into the transaction under its row lock.
func (s *MemoryStore) UpdateSuspicion(_ context.Context, transactionID int64, isSuspicious bool, reason string) error {
	unlock := s.rowLocks.LockID(transactionID)
	defer unlock()

	s.mu.RLock()
	t, ok := s.transactions[transactionID]
	s.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %d", fraudentities.ErrTransactionNotFound, transactionID)
	}

	t.IsSuspicious = isSuspicious
	t.Reason = entities.MergeReason(t.Reason, reason)

	s.mu.Lock()
	s.transactions[transactionID] = t
	s.mu.Unlock()

	return nil
}

// EnsureUser creates a placeholder user unless id is known.
func (s *MemoryStore) EnsureUser(_ context.Context, id int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[id]; ok {
		return false, nil
	}
	user := entities.NewPlaceholderUser(id)
	user.CreatedAt = time.Now().UTC()
	s.users[id] = user
	return true, nil
}

// Transaction returns a copy of the stored transaction.
func (s *MemoryStore) Transaction(id int64) (entities.Transaction, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.transactions[id]
	return t, ok
}

// UserCount returns how many users are known.
func (s *MemoryStore) UserCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}
