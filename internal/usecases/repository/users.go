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
	"github.com/sand/fraud-detector/backend/pkg/database"
)

// UsersRepository handles user bookkeeping.
type UsersRepository struct {
	logger *slog.Logger
	db     tx.DBGetter
}

// NewUsersRepository creates a new users repository.
func NewUsersRepository(logger *slog.Logger, pg *database.Postgres) *UsersRepository {
	return &UsersRepository{
		logger: logger,
		db:     pg.DBGetter,
	}
}

// FindUserByID retrieves a user by id, or nil when absent.
func (r *UsersRepository) FindUserByID(ctx context.Context, id int64) (*entities.User, error) {
	query, args, err := psql.
		Select("id", "username", "email", "created_at").
		From("users").
		Where(sq.Eq{"id": id}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build user query: %w", err)
	}

	var user entities.User
	err = r.db(ctx).QueryRow(ctx, query, args...).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query user by id: %w", err)
	}

	return &user, nil
}

// EnsureUser creates a placeholder user for id unless it exists already.
func (r *UsersRepository) EnsureUser(ctx context.Context, id int64) (bool, error) {
	user := entities.NewPlaceholderUser(id)

	query, args, err := psql.
		Insert("users").
		Columns("id", "username", "email").
		Values(user.ID, user.Username, user.Email).
		Suffix("ON CONFLICT (id) DO NOTHING").
		ToSql()
	if err != nil {
		return false, fmt.Errorf("failed to build user insert: %w", err)
	}

	tag, err := r.db(ctx).Exec(ctx, query, args...)
	if err != nil {
		return false, fmt.Errorf("failed to create user %d: %w", id, err)
	}

	created := tag.RowsAffected() > 0
	if created {
		r.logger.InfoContext(ctx, "Created new user", "user_id", id)
	}
	return created, nil
}
