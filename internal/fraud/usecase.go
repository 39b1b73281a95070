package fraud

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sand/fraud-detector/backend/internal/core/ports"
	"github.com/sand/fraud-detector/backend/internal/fraud/clients"
	"github.com/sand/fraud-detector/backend/internal/fraud/entities"
	"github.com/sand/fraud-detector/backend/internal/fraud/services"
	"github.com/sand/fraud-detector/backend/internal/metrics"
)

// FraudService runs detection sweeps and owns both ends of the dispatch
// pipeline: the background task and the acceptance entry point.
type FraudService struct {
	logger       *slog.Logger
	transactions ports.TransactionStore
	suspicions   ports.SuspicionStore
	engine       *services.RuleEngine
	dedup        *services.Deduplicator
	publisher    ports.FlagPublisher
	forwarder    ports.FlagForwarder
	notifier     ports.FlagNotifier

	now func() time.Time
}

// NewFraudService creates the fraud service. A nil forwarder hands flags
// straight to AcceptFlag in process; a nil notifier disables notifications.
func NewFraudService(
	logger *slog.Logger,
	transactions ports.TransactionStore,
	suspicions ports.SuspicionStore,
	engine *services.RuleEngine,
	publisher ports.FlagPublisher,
	forwarder ports.FlagForwarder,
	notifier ports.FlagNotifier,
) *FraudService {
	s := &FraudService{
		logger:       logger,
		transactions: transactions,
		suspicions:   suspicions,
		engine:       engine,
		dedup:        services.NewDeduplicator(logger, suspicions),
		publisher:    publisher,
		forwarder:    forwarder,
		notifier:     notifier,
		now:          func() time.Time { return time.Now().UTC() },
	}
	if s.forwarder == nil {
		s.forwarder = clients.LocalForwarder(s.AcceptFlag)
	}
	return s
}

// RunDetectionSweep evaluates every stored transaction and returns how many
// flags were detected. The count reflects detection, not persistence.
func (s *FraudService) RunDetectionSweep(ctx context.Context) (int, error) {
	result, err := s.Sweep(ctx)
	if err != nil {
		return 0, err
	}
	return result.Detected, nil
}

// Sweep loads the ordered history, evaluates the rules and enqueues every
// flag whose (transaction, reason) pair is not recorded yet.
func (s *FraudService) Sweep(ctx context.Context) (*entities.SweepResult, error) {
	start := time.Now()

	txs, err := s.transactions.AllOrderedByUserThenTime(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load transactions: %w", err)
	}
	services.SortForSweep(txs)

	flags, invalid := s.engine.Evaluate(txs)

	result := &entities.SweepResult{
		Detected: len(flags),
		Invalid:  len(invalid),
	}
	metrics.InvalidRows.Add(float64(len(invalid)))

	users := make(map[int64]struct{})
	for _, t := range txs {
		users[t.UserID] = struct{}{}
	}
	result.Users = len(users)

	for _, ev := range flags {
		metrics.FlagsDetected.WithLabelValues(ev.Reason).Inc()

		accept, err := s.dedup.ShouldAccept(ctx, ev.TransactionID, ev.Reason)
		if err != nil {
			// Acceptance dedups again, so an unreadable store only costs a redundant task.
			s.logger.WarnContext(ctx, "Dedup lookup failed, dispatching anyway",
				"transaction_id", ev.TransactionID,
				"reason", ev.Reason,
				"error", err)
			accept = true
		}
		if !accept {
			result.Duplicates++
			continue
		}

		if err = s.publisher.Enqueue(ctx, ev); err != nil {
			result.Dropped++
			s.logger.ErrorContext(ctx, "Failed to enqueue flag",
				"transaction_id", ev.TransactionID,
				"reason", ev.Reason,
				"error", err)
			continue
		}
		result.Enqueued++
	}

	result.Duration = time.Since(start)
	metrics.SweepDuration.Observe(result.Duration.Seconds())

	s.logger.InfoContext(ctx, "Detection sweep completed",
		"transactions", len(txs),
		"users", result.Users,
		"detected", result.Detected,
		"enqueued", result.Enqueued,
		"duplicates", result.Duplicates,
		"invalid", result.Invalid,
		"dropped", result.Dropped,
		"duration", result.Duration.String())

	return result, nil
}

// ProcessFlag is the background dispatch task: it marks the source
// transaction and forwards the flag to the acceptance entry point. A failed
// forward is logged and dropped without retry.
func (s *FraudService) ProcessFlag(ctx context.Context, ev entities.FlagEvent) error {
	var errs []error

	if err := s.transactions.UpdateSuspicion(ctx, ev.TransactionID, true, ev.Reason); err != nil {
		metrics.DispatchDropped.WithLabelValues(dropCause(ctx, metrics.DropUpdate)).Inc()
		s.logger.ErrorContext(ctx, "Failed to mark transaction suspicious",
			"transaction_id", ev.TransactionID,
			"reason", ev.Reason,
			"error", err)
		errs = append(errs, fmt.Errorf("update transaction %d: %w", ev.TransactionID, err))
	}

	if err := s.forwarder.Forward(ctx, ev); err != nil {
		metrics.DispatchDropped.WithLabelValues(dropCause(ctx, metrics.DropTransport)).Inc()
		s.logger.WarnContext(ctx, "Flag forward failed, dropping",
			"transaction_id", ev.TransactionID,
			"reason", ev.Reason,
			"error", err)
		errs = append(errs, err)
	}

	return errors.Join(errs...)
}

func dropCause(ctx context.Context, cause string) string {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return metrics.DropTimeout
	}
	return cause
}

// AcceptFlag persists ev unless its (transaction, reason) pair is already
// recorded. Concurrent calls for the same pair yield exactly one record.
func (s *FraudService) AcceptFlag(ctx context.Context, ev entities.FlagEvent) (entities.Outcome, error) {
	accept, err := s.dedup.ShouldAccept(ctx, ev.TransactionID, ev.Reason)
	if err != nil {
		metrics.AcceptOutcomes.WithLabelValues(string(entities.OutcomeError)).Inc()
		return entities.OutcomeError, err
	}
	if !accept {
		metrics.AcceptOutcomes.WithLabelValues(string(entities.OutcomeDuplicate)).Inc()
		return entities.OutcomeDuplicate, nil
	}

	record := &entities.SuspiciousRecord{
		TransactionID: ev.TransactionID,
		UserID:        ev.UserID,
		Reason:        ev.Reason,
		RecordedAt:    s.now(),
	}

	inserted, err := s.suspicions.Insert(ctx, record)
	if err != nil {
		metrics.AcceptOutcomes.WithLabelValues(string(entities.OutcomeError)).Inc()
		s.logger.ErrorContext(ctx, "Failed to save suspicious transaction",
			"transaction_id", ev.TransactionID,
			"reason", ev.Reason,
			"error", err)
		return entities.OutcomeError, fmt.Errorf("%w: failed to save flag: %v", entities.ErrPersistence, err)
	}
	if !inserted {
		metrics.AcceptOutcomes.WithLabelValues(string(entities.OutcomeDuplicate)).Inc()
		return entities.OutcomeDuplicate, nil
	}

	metrics.AcceptOutcomes.WithLabelValues(string(entities.OutcomeAccepted)).Inc()
	s.logger.InfoContext(ctx, "Suspicious transaction recorded",
		"id", record.ID,
		"transaction_id", record.TransactionID,
		"user_id", record.UserID,
		"reason", record.Reason)

	if s.notifier != nil {
		s.notifier.NotifyAccepted(*record)
	}

	return entities.OutcomeAccepted, nil
}

// SuspiciousByUser lists the recorded flags of a user.
func (s *FraudService) SuspiciousByUser(ctx context.Context, userID int64) ([]entities.SuspiciousRecord, error) {
	records, err := s.suspicions.FindByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", entities.ErrPersistence, err)
	}
	return records, nil
}

// Enqueue hands ev to the dispatch queue.
func (s *FraudService) Enqueue(ctx context.Context, ev entities.FlagEvent) error {
	return s.publisher.Enqueue(ctx, ev)
}
