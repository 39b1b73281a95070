package services

import (
	"fmt"
	"log/slog"
	"sort"
	"time"

	txentities "github.com/sand/fraud-detector/backend/internal/entities"
	"github.com/sand/fraud-detector/backend/internal/fraud/entities"
)

// RuleConfig holds the thresholds and windows of the three rules.
type RuleConfig struct {
	BurstWindow     time.Duration
	BurstThreshold  int
	AmountThreshold float64
	GeoWindow       time.Duration
}

// RuleEngine evaluates the fraud rules over an ordered transaction stream.
type RuleEngine struct {
	logger *slog.Logger
	cfg    RuleConfig
}

// NewRuleEngine creates a rule engine. Zero config fields fall back to the
// given defaults.
func NewRuleEngine(logger *slog.Logger, cfg RuleConfig, defaults RuleConfig) *RuleEngine {
	if cfg.BurstWindow <= 0 {
		cfg.BurstWindow = defaults.BurstWindow
	}
	if cfg.BurstThreshold <= 0 {
		cfg.BurstThreshold = defaults.BurstThreshold
	}
	if cfg.AmountThreshold <= 0 {
		cfg.AmountThreshold = defaults.AmountThreshold
	}
	if cfg.GeoWindow <= 0 {
		cfg.GeoWindow = defaults.GeoWindow
	}

	return &RuleEngine{logger: logger, cfg: cfg}
}

// Config returns the effective rule configuration, defaults applied.
func (e *RuleEngine) Config() RuleConfig {
	return e.cfg
}

// retention is the largest window any rule looks back over.
func (e *RuleEngine) retention() time.Duration {
	if e.cfg.BurstWindow > e.cfg.GeoWindow {
		return e.cfg.BurstWindow
	}
	return e.cfg.GeoWindow
}

// SortForSweep orders transactions by (user_id, timestamp, id), the order
// Evaluate requires.
func SortForSweep(txs []txentities.Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		a, b := txs[i], txs[j]
		if a.UserID != b.UserID {
			return a.UserID < b.UserID
		}
		if !a.Timestamp.Equal(b.Timestamp) {
			return a.Timestamp.Before(b.Timestamp)
		}
		return a.ID < b.ID
	})
}

// Evaluate walks txs once and returns every flag raised. txs must already be
// sorted by (user_id, timestamp); see SortForSweep. Rows that cannot be
// evaluated are reported as validation errors and skipped.
func (e *RuleEngine) Evaluate(txs []txentities.Transaction) ([]entities.FlagEvent, []error) {
	tracker := NewWindowTracker(e.retention())

	var (
		flags   []entities.FlagEvent
		invalid []error
	)

	for _, tx := range txs {
		if tx.Timestamp.IsZero() {
			invalid = append(invalid, fmt.Errorf("%w: transaction %d has no timestamp", entities.ErrValidation, tx.ID))
			continue
		}

		country := tx.CountryOrUnknown()
		if err := tracker.Observe(tx.UserID, tx.Timestamp, country, tx.ID); err != nil {
			invalid = append(invalid, err)
			continue
		}

		for _, reason := range e.check(tracker, tx, country) {
			flags = append(flags, entities.FlagEvent{
				TransactionID: tx.ID,
				UserID:        tx.UserID,
				Reason:        reason,
				Timestamp:     tx.Timestamp,
				Amount:        tx.Amount,
				Country:       country,
			})
		}
	}

	for _, err := range invalid {
		e.logger.Warn("Skipped transaction during evaluation", "error", err)
	}
	e.logger.Debug("Evaluated transactions",
		"transactions", len(txs),
		"users", len(tracker.Users()),
		"flags", len(flags),
		"invalid", len(invalid))

	return flags, invalid
}

// check runs the three rules independently against an already observed transaction.
func (e *RuleEngine) check(tracker *WindowTracker, tx txentities.Transaction, country string) []entities.Reason {
	var reasons []entities.Reason

	if e.burst(tracker, tx) {
		reasons = append(reasons, entities.ReasonBurst)
	}
	if tx.Amount > e.cfg.AmountThreshold {
		reasons = append(reasons, entities.ReasonAmount)
	}
	if e.geoVelocity(tracker, tx, country) {
		reasons = append(reasons, entities.ReasonGeo)
	}

	return reasons
}

// burst counts transactions in [t-BurstWindow, t], the current one included.
func (e *RuleEngine) burst(tracker *WindowTracker, tx txentities.Transaction) bool {
	recent := tracker.RecentWithin(tx.UserID, tx.Timestamp, e.cfg.BurstWindow)
	return len(recent) >= e.cfg.BurstThreshold
}

// geoVelocity reports whether any prior transaction within GeoWindow came from
// another country. Unknown compares like any other country.
func (e *RuleEngine) geoVelocity(tracker *WindowTracker, tx txentities.Transaction, country string) bool {
	for _, prior := range tracker.Priors(tx.UserID) {
		if prior.Country == country {
			continue
		}
		if absDuration(tx.Timestamp.Sub(prior.Timestamp)) <= e.cfg.GeoWindow {
			return true
		}
	}
	return false
}

func absDuration(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}
