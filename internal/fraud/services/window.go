package services

import (
	"fmt"
	"sort"
	"time"

	"golang.org/x/exp/maps"

	"github.com/sand/fraud-detector/backend/internal/fraud/entities"
)

// Observation is one transaction as seen by the window tracker.
type Observation struct {
	Timestamp     time.Time
	Country       string
	TransactionID int64
}

// WindowTracker keeps, per user, the in-order history of transactions seen
// during a single sweep. It is not safe for concurrent use: a sweep owns it.
type WindowTracker struct {
	retention time.Duration
	history   map[int64][]Observation
}

// NewWindowTracker creates a tracker that keeps observations no older than
// retention relative to the newest observation of the same user.
func NewWindowTracker(retention time.Duration) *WindowTracker {
	return &WindowTracker{
		retention: retention,
		history:   make(map[int64][]Observation),
	}
}

// Observe appends an observation to the user's history. Timestamps must be
// non-decreasing per user.
func (w *WindowTracker) Observe(userID int64, ts time.Time, country string, transactionID int64) error {
	entries := w.history[userID]
	if n := len(entries); n > 0 && ts.Before(entries[n-1].Timestamp) {
		return fmt.Errorf("%w: transaction %d at %s precedes %s for user %d",
			entities.ErrValidation, transactionID, ts.Format(time.RFC3339), entries[n-1].Timestamp.Format(time.RFC3339), userID)
	}

	entries = append(entries, Observation{
		Timestamp:     ts,
		Country:       country,
		TransactionID: transactionID,
	})
	w.history[userID] = w.prune(entries, ts)

	return nil
}

// prune drops entries strictly older than latest-retention. Entries exactly
// on the boundary are kept since the rules use inclusive windows.
func (w *WindowTracker) prune(entries []Observation, latest time.Time) []Observation {
	if w.retention <= 0 {
		return entries
	}

	cutoff := latest.Add(-w.retention)
	start := 0
	for start < len(entries) && entries[start].Timestamp.Before(cutoff) {
		start++
	}
	if start == 0 {
		return entries
	}

	kept := make([]Observation, len(entries)-start)
	copy(kept, entries[start:])
	return kept
}

// RecentWithin returns the user's observations with now-d <= ts <= now,
// including the one just observed.
func (w *WindowTracker) RecentWithin(userID int64, now time.Time, d time.Duration) []Observation {
	entries := w.history[userID]
	from := now.Add(-d)

	var recent []Observation
	for _, entry := range entries {
		if entry.Timestamp.Before(from) || entry.Timestamp.After(now) {
			continue
		}
		recent = append(recent, entry)
	}

	return recent
}

// Priors returns the retained observations of the user except the newest one.
func (w *WindowTracker) Priors(userID int64) []Observation {
	entries := w.history[userID]
	if len(entries) == 0 {
		return nil
	}
	return entries[:len(entries)-1]
}

// Len returns how many observations are retained for the user.
func (w *WindowTracker) Len(userID int64) int {
	return len(w.history[userID])
}

// Users returns the ids of every user observed so far, ascending.
func (w *WindowTracker) Users() []int64 {
	users := maps.Keys(w.history)
	sort.Slice(users, func(i, j int) bool { return users[i] < users[j] })
	return users
}
