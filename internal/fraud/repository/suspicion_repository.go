package repository

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	sq "github.com/Masterminds/squirrel"
	tx "github.com/Thiht/transactor/pgx"
	"github.com/jackc/pgx/v5"

	"github.com/sand/fraud-detector/backend/internal/fraud/entities"
	"github.com/sand/fraud-detector/backend/pkg/database"
)

const suspiciousTable = "suspicious_transactions"

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// SuspicionRepository stores accepted flags in suspicious_transactions.
type SuspicionRepository struct {
	logger *slog.Logger
	db     tx.DBGetter
}

// NewSuspicionRepository creates the Postgres suspicion store.
func NewSuspicionRepository(logger *slog.Logger, pg *database.Postgres) *SuspicionRepository {
	return &SuspicionRepository{
		logger: logger,
		db:     pg.DBGetter,
	}
}

// Exists reports whether a record for (transactionID, reason) is stored.
func (r *SuspicionRepository) Exists(ctx context.Context, transactionID int64, reason string) (bool, error) {
	query, args, err := psql.
		Select("1").
		Prefix("SELECT EXISTS (").
		From(suspiciousTable).
		Where(sq.Eq{"transaction_id": transactionID, "reason": reason}).
		Suffix(")").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build exists query: %w", err)
	}

	var exists bool
	if err = r.db(ctx).QueryRow(ctx, query, args...).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check suspicious transaction: %w", err)
	}

	return exists, nil
}

// Insert stores the record. A concurrent insert of the same pair loses on the
// unique key and reports inserted=false instead of an error.
func (r *SuspicionRepository) Insert(ctx context.Context, record *entities.SuspiciousRecord) (bool, error) {
	query, args, err := psql.
		Insert(suspiciousTable).
		Columns("transaction_id", "user_id", "reason", "recorded_at").
		Values(record.TransactionID, record.UserID, record.Reason, record.RecordedAt).
		Suffix("ON CONFLICT (transaction_id, reason) DO NOTHING RETURNING id").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build insert query: %w", err)
	}

	err = r.db(ctx).QueryRow(ctx, query, args...).Scan(&record.ID)
	if errors.Is(err, pgx.ErrNoRows) {
		r.logger.DebugContext(ctx, "Suspicious transaction already stored",
			"transaction_id", record.TransactionID,
			"reason", record.Reason)
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to save suspicious transaction: %w", err)
	}

	return true, nil
}

// FindByUser returns every record of the user, oldest first.
func (r *SuspicionRepository) FindByUser(ctx context.Context, userID int64) ([]entities.SuspiciousRecord, error) {
	query, args, err := psql.
		Select("id", "transaction_id", "user_id", "reason", "recorded_at").
		From(suspiciousTable).
		Where(sq.Eq{"user_id": userID}).
		OrderBy("recorded_at", "id").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build user query: %w", err)
	}

	rows, err := r.db(ctx).Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query suspicious transactions: %w", err)
	}

	records, err := pgx.CollectRows(rows, pgx.RowToStructByName[entities.SuspiciousRecord])
	if err != nil {
		r.logger.ErrorContext(ctx, "failed to collect suspicious transaction rows", "error", err)
		return nil, err
	}

	return records, nil
}
