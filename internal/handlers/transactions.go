package handlers

import (
	"context"
	"io"

	"github.com/sand/fraud-detector/backend/internal/entities"
	"github.com/sand/fraud-detector/backend/internal/usecases"
)

var _ TransactionService = (*usecases.TransactionService)(nil)

type TransactionService interface {
	ImportCSV(ctx context.Context, r io.Reader) (*usecases.ImportResult, error)
	TransactionsByUser(ctx context.Context, userID int64) ([]entities.Transaction, error)
}
