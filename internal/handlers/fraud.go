package handlers

import (
	"context"

	"github.com/sand/fraud-detector/backend/internal/fraud"
	"github.com/sand/fraud-detector/backend/internal/fraud/entities"
)

var _ FraudService = (*fraud.FraudService)(nil)

type FraudService interface {
	RunDetectionSweep(ctx context.Context) (int, error)
	Enqueue(ctx context.Context, ev entities.FlagEvent) error
	AcceptFlag(ctx context.Context, ev entities.FlagEvent) (entities.Outcome, error)
	SuspiciousByUser(ctx context.Context, userID int64) ([]entities.SuspiciousRecord, error)
}
