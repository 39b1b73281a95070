package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	tx "github.com/Thiht/transactor/pgx"
	"github.com/jackc/pgx/v5"

	"github.com/sand/fraud-detector/backend/internal/entities"
	fraudentities "github.com/sand/fraud-detector/backend/internal/fraud/entities"
	"github.com/sand/fraud-detector/backend/pkg/database"
)

const transactionsTable = "transactions"

var (
	psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

	transactionColumns = []string{"id", "user_id", "amount", "currency", "country", "date", "is_suspicious", "reason"}
)

// TransactionsRepository handles transaction storage.
type TransactionsRepository struct {
	logger *slog.Logger

	db         tx.DBGetter
	transactor *tx.Transactor
}

// NewTransactionsRepository creates a new transactions repository.
func NewTransactionsRepository(logger *slog.Logger, pg *database.Postgres) *TransactionsRepository {
	return &TransactionsRepository{
		logger:     logger,
		db:         pg.DBGetter,
		transactor: pg.Transactor,
	}
}

// AllOrderedByUserThenTime returns every transaction in sweep order.
func (r *TransactionsRepository) AllOrderedByUserThenTime(ctx context.Context) ([]entities.Transaction, error) {
	query, args, err := psql.
		Select(transactionColumns...).
		From(transactionsTable).
		OrderBy("user_id", "date", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build sweep query: %w", err)
	}

	return r.collect(ctx, query, args...)
}

// FindByUser retrieves all transactions for a specific user, newest first.
func (r *TransactionsRepository) FindByUser(ctx context.Context, userID int64) ([]entities.Transaction, error) {
	query, args, err := psql.
		Select(transactionColumns...).
		From(transactionsTable).
		Where(sq.Eq{"user_id": userID}).
		OrderBy("date DESC", "id DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build user query: %w", err)
	}

	return r.collect(ctx, query, args...)
}

func (r *TransactionsRepository) collect(ctx context.Context, query string, args ...any) ([]entities.Transaction, error) {
	rows, err := r.db(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query transactions: %w", err)
	}

	transactions, err := pgx.CollectRows(rows, pgx.RowToStructByName[entities.Transaction])
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to collect transactions rows", "error", err)
		return nil, err
	}

	for i := range transactions {
		transactions[i].Timestamp = transactions[i].Timestamp.UTC()
	}

	return transactions, nil
}

// InsertTransactions stores the batch in a single transaction. Rows whose id
// already exists are skipped; the number of new rows is returned.
func (r *TransactionsRepository) InsertTransactions(ctx context.Context, txs []entities.Transaction) (int, error) {
	if len(txs) == 0 {
		return 0, nil
	}

	inserted := 0
	err := r.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		for _, t := range txs {
			query, args, err := psql.
				Insert(transactionsTable).
				Columns(transactionColumns...).
				Values(t.ID, t.UserID, t.Amount, t.Currency, t.Country, t.Timestamp.UTC(), t.IsSuspicious, t.Reason).
				Suffix("ON CONFLICT (id) DO NOTHING").
				ToSql()
			if err != nil {
				return fmt.Errorf("failed to build insert query: %w", err)
			}

			tag, err := r.db(ctx).Exec(ctx, query, args...)
			if err != nil {
				return fmt.Errorf("failed to insert transaction %d: %w", t.ID, err)
			}
			inserted += int(tag.RowsAffected())
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	r.logger.InfoContext(ctx, "Transactions recorded", "received", len(txs), "inserted", inserted)
	return inserted, nil
}

// UpdateSuspicion locks the transaction row, merges reason into the stored
// reason list and writes it back within one database transaction.
func (r *TransactionsRepository) UpdateSuspicion(ctx context.Context, transactionID int64, isSuspicious bool, reason string) error {
	return r.transactor.WithinTransaction(ctx, func(ctx context.Context) error {
		query, args, err := psql.
			Select("reason").
			From(transactionsTable).
			Where(sq.Eq{"id": transactionID}).
			Suffix("FOR UPDATE").
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build lock query: %w", err)
		}

		var current string
		err = r.db(ctx).QueryRow(ctx, query, args...).Scan(&current)
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("%w: %d", fraudentities.ErrTransactionNotFound, transactionID)
		}
		if err != nil {
			return fmt.Errorf("failed to lock transaction %d: %w", transactionID, err)
		}

		merged := entities.MergeReason(current, reason)

		query, args, err = psql.
			Update(transactionsTable).
			Set("is_suspicious", isSuspicious).
			Set("reason", merged).
			Set("updated_at", sq.Expr("NOW()")).
			Where(sq.Eq{"id": transactionID}).
			ToSql()
		if err != nil {
			return fmt.Errorf("failed to build update query: %w", err)
		}

		if _, err = r.db(ctx).Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("failed to update transaction %d: %w", transactionID, err)
		}

		r.logger.DebugContext(ctx, "Transaction suspicion updated",
			"transaction_id", transactionID,
			"reason", merged)
		return nil
	})
}
