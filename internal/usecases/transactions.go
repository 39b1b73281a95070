package usecases

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/sand/fraud-detector/backend/internal/core/ports"
	"github.com/sand/fraud-detector/backend/internal/entities"
)

// ImportResult reports the outcome of one CSV import.
type ImportResult struct {
	Imported     int        `json:"imported"`
	Skipped      int        `json:"skipped"`
	UsersCreated int        `json:"users_created"`
	Errors       []RowError `json:"errors"`
}

// TransactionService handles transaction import and lookup
type TransactionService struct {
	logger       *slog.Logger
	transactions ports.TransactionStore
	users        ports.UserStore
	transactor   ports.Transactor
}

// NewTransactionService creates a new transaction service. A nil transactor
// runs the import without a surrounding transaction.
func NewTransactionService(
	logger *slog.Logger,
	transactions ports.TransactionStore,
	users ports.UserStore,
	transactor ports.Transactor,
) *TransactionService {
	if transactor == nil {
		transactor = directTransactor{}
	}
	return &TransactionService{
		logger:       logger,
		transactions: transactions,
		users:        users,
		transactor:   transactor,
	}
}

// ImportCSV validates and stores every row of r. Invalid rows are reported in
// the result and do not stop the import; a storage failure aborts it.
func (ts *TransactionService) ImportCSV(ctx context.Context, r io.Reader) (*ImportResult, error) {
	txs, rowErrors, err := parseTransactionsCSV(r)
	if err != nil {
		return nil, err
	}

	for _, rowErr := range rowErrors {
		ts.logger.WarnContext(ctx, "Skipped invalid csv row",
			"row", rowErr.Row,
			"error", rowErr.Message,
			"data", rowErr.Data)
	}

	result := &ImportResult{Errors: rowErrors}

	err = ts.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		known := make(map[int64]bool)
		for _, t := range txs {
			if known[t.UserID] {
				continue
			}
			created, err := ts.users.EnsureUser(ctx, t.UserID)
			if err != nil {
				return err
			}
			if created {
				result.UsersCreated++
			}
			known[t.UserID] = true
		}

		inserted, err := ts.transactions.InsertTransactions(ctx, txs)
		if err != nil {
			return err
		}
		result.Imported = inserted
		result.Skipped = len(txs) - inserted
		return nil
	})
	if err != nil {
		ts.logger.ErrorContext(ctx, "Transaction import failed", "error", err)
		return nil, fmt.Errorf("database commit failed: %w", err)
	}

	ts.logger.InfoContext(ctx, "Transactions imported",
		"imported", result.Imported,
		"skipped", result.Skipped,
		"failed_rows", len(result.Errors),
		"users_created", result.UsersCreated)

	return result, nil
}

// TransactionsByUser retrieves all transactions for a specific user.
func (ts *TransactionService) TransactionsByUser(ctx context.Context, userID int64) ([]entities.Transaction, error) {
	txs, err := ts.transactions.FindByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to get user transactions: %w", err)
	}
	return txs, nil
}

type directTransactor struct{}

func (directTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}
