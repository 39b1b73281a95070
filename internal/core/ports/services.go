package ports

import (
	"context"

	"github.com/sand/fraud-detector/backend/internal/entities"
	fraudentities "github.com/sand/fraud-detector/backend/internal/fraud/entities"
)

// TransactionStore is the ordered repository of transactions.
type TransactionStore interface {
	// AllOrderedByUserThenTime returns every transaction sorted by (user_id, timestamp, id).
	AllOrderedByUserThenTime(ctx context.Context) ([]entities.Transaction, error)
	// UpdateSuspicion merges reason into the transaction's reason list and sets
	// is_suspicious. The read-modify-write is serialized per transaction.
	UpdateSuspicion(ctx context.Context, transactionID int64, isSuspicious bool, reason string) error
	InsertTransactions(ctx context.Context, txs []entities.Transaction) (int, error)
	FindByUser(ctx context.Context, userID int64) ([]entities.Transaction, error)
}

// UserStore creates users on first sight.
type UserStore interface {
	EnsureUser(ctx context.Context, userID int64) (bool, error)
}

// SuspicionStore is the durable table of accepted flags keyed by (transaction, reason).
type SuspicionStore interface {
	Exists(ctx context.Context, transactionID int64, reason string) (bool, error)
	// Insert stores the record unless the pair already exists; inserted reports which happened.
	Insert(ctx context.Context, record *fraudentities.SuspiciousRecord) (inserted bool, err error)
	FindByUser(ctx context.Context, userID int64) ([]fraudentities.SuspiciousRecord, error)
}

// FlagPublisher hands flags to the asynchronous dispatch stage.
type FlagPublisher interface {
	Enqueue(ctx context.Context, ev fraudentities.FlagEvent) error
}

// FlagForwarder transmits a flag to the processing entry point.
type FlagForwarder interface {
	Forward(ctx context.Context, ev fraudentities.FlagEvent) error
}

// FlagNotifier is told about every accepted record.
type FlagNotifier interface {
	NotifyAccepted(record fraudentities.SuspiciousRecord)
}

// Transactor runs fn inside one storage transaction.
type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
