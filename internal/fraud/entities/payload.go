package entities

import (
	"fmt"
	"strings"
	"time"

	txentities "github.com/sand/fraud-detector/backend/internal/entities"
)

// FlagPayload is the JSON body exchanged with the processing entry point.
// Required fields are pointers so that absence can be told apart from zero.
type FlagPayload struct {
	TransactionID *int64  `json:"transaction_id"`
	UserID        *int64  `json:"user_id"`
	Reason        *string `json:"reason"`
	Date          *string `json:"date"`
	Amount        float64 `json:"amount"`
	Country       string  `json:"country,omitempty"`
}

// NewFlagPayload converts an event to its wire form.
func NewFlagPayload(ev FlagEvent) FlagPayload {
	date := ev.Timestamp.UTC().Format(txentities.DateLayout)
	reason := ev.Reason
	txID, userID := ev.TransactionID, ev.UserID

	return FlagPayload{
		TransactionID: &txID,
		UserID:        &userID,
		Reason:        &reason,
		Date:          &date,
		Amount:        ev.Amount,
		Country:       ev.Country,
	}
}

// Event validates the payload and converts it back to a FlagEvent.
func (p FlagPayload) Event() (FlagEvent, error) {
	var missing []string
	if p.TransactionID == nil {
		missing = append(missing, "transaction_id")
	}
	if p.UserID == nil {
		missing = append(missing, "user_id")
	}
	if p.Reason == nil || strings.TrimSpace(*p.Reason) == "" {
		missing = append(missing, "reason")
	}
	if p.Date == nil || strings.TrimSpace(*p.Date) == "" {
		missing = append(missing, "date")
	}
	if len(missing) > 0 {
		return FlagEvent{}, fmt.Errorf("%w: missing required fields: %s", ErrValidation, strings.Join(missing, ", "))
	}

	ts, err := time.ParseInLocation(txentities.DateLayout, *p.Date, time.UTC)
	if err != nil {
		return FlagEvent{}, fmt.Errorf("%w: invalid date %q (expected YYYY-MM-DD HH:MM:SS)", ErrValidation, *p.Date)
	}

	country := p.Country
	if country == "" {
		country = txentities.UnknownCountry
	}

	return FlagEvent{
		TransactionID: *p.TransactionID,
		UserID:        *p.UserID,
		Reason:        *p.Reason,
		Timestamp:     ts,
		Amount:        p.Amount,
		Country:       country,
	}, nil
}
