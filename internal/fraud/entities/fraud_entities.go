package entities

import "time"

// Reason is the human readable rule verdict stored on a flag.
type Reason = string

const (
	ReasonBurst  Reason = "More than 3 transactions in under 1 minute"
	ReasonAmount Reason = "Transaction amount exceeds $5000"
	ReasonGeo    Reason = "Transactions from different countries within 5 minutes"
)

// Outcome is the result of accepting a flag into the suspicion store.
type Outcome string

const (
	OutcomeAccepted  Outcome = "accepted"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeError     Outcome = "error"
)

// FlagEvent is a candidate fraud signal produced by the rule engine.
// It is never persisted as is: it travels through the dispatch queue and
// becomes a SuspiciousRecord once accepted.
type FlagEvent struct {
	TransactionID int64     `json:"transaction_id"`
	UserID        int64     `json:"user_id"`
	Reason        Reason    `json:"reason"`
	Timestamp     time.Time `json:"timestamp"`
	Amount        float64   `json:"amount"`
	Country       string    `json:"country"`
}

// SuspiciousRecord is an accepted flag. At most one exists per
// (TransactionID, Reason).
type SuspiciousRecord struct {
	ID            int64     `json:"id"             db:"id"`
	TransactionID int64     `json:"transaction_id" db:"transaction_id"`
	UserID        int64     `json:"user_id"        db:"user_id"`
	Reason        Reason    `json:"reason"         db:"reason"`
	RecordedAt    time.Time `json:"recorded_at"    db:"recorded_at"`
}

// SweepResult summarizes one detection pass.
type SweepResult struct {
	Detected   int           `json:"detected"`
	Enqueued   int           `json:"enqueued"`
	Duplicates int           `json:"duplicates"`
	Invalid    int           `json:"invalid"`
	Dropped    int           `json:"dropped"`
	Users      int           `json:"users"`
	Duration   time.Duration `json:"duration"`
}
