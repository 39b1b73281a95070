package entities

import (
	"strings"
	"time"
)

const (
	// UnknownCountry stands in for a missing country in every comparison.
	UnknownCountry = "Unknown"

	// ReasonSeparator joins the distinct reasons accumulated on a transaction.
	ReasonSeparator = " // "

	// DateLayout is the wire and CSV layout of transaction timestamps (UTC).
	DateLayout = "2006-01-02 15:04:05"

	DefaultCurrency = "USD"
)

// Transaction represents an imported financial transaction.
// Everything except IsSuspicious and Reason is immutable once stored.
type Transaction struct {
	ID           int64     `json:"id"            db:"id"`
	UserID       int64     `json:"user_id"       db:"user_id"`
	Amount       float64   `json:"amount"        db:"amount"`
	Currency     string    `json:"currency"      db:"currency"`
	Country      *string   `json:"country"       db:"country"`
	Timestamp    time.Time `json:"timestamp"     db:"date"`
	IsSuspicious bool      `json:"is_suspicious" db:"is_suspicious"`
	Reason       string    `json:"reason"        db:"reason"`
}

// CountryOrUnknown returns the transaction country, or UnknownCountry when absent.
func (t Transaction) CountryOrUnknown() string {
	if t.Country == nil || strings.TrimSpace(*t.Country) == "" {
		return UnknownCountry
	}
	return *t.Country
}

// MergeReason appends reason to current unless it is already present.
func MergeReason(current, reason string) string {
	switch {
	case reason == "":
		return current
	case current == "":
		return reason
	case strings.Contains(current, reason):
		return current
	default:
		return current + ReasonSeparator + reason
	}
}
