package services

import (
	"io"
	"log/slog"
	"time"

	txentities "github.com/sand/fraud-detector/backend/internal/entities"
	"go.openly.dev/pointy"
)

var base = time.Date(2025, 4, 11, 10, 0, 0, 0, time.UTC)

var defaultRules = RuleConfig{
	BurstWindow:     time.Minute,
	BurstThreshold:  3,
	AmountThreshold: 5000,
	GeoWindow:       5 * time.Minute,
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newEngine() *RuleEngine {
	return NewRuleEngine(discardLogger(), RuleConfig{}, defaultRules)
}

func tx(id, user int64, amount float64, country string, offset time.Duration) txentities.Transaction {
	t := txentities.Transaction{
		ID:        id,
		UserID:    user,
		Amount:    amount,
		Currency:  txentities.DefaultCurrency,
		Timestamp: base.Add(offset),
	}
	if country != "" {
		t.Country = pointy.String(country)
	}
	return t
}
