package workers

import (
	"context"
	"log/slog"
	"time"

	"github.com/sand/fraud-detector/backend/internal/fraud/entities"
)

// SweepRunner runs one detection sweep.
type SweepRunner interface {
	Sweep(ctx context.Context) (*entities.SweepResult, error)
}

// FraudSweeper worker periodically runs detection over the stored transactions
type FraudSweeper struct {
	logger *slog.Logger
	runner SweepRunner

	// How often to run the sweep
	interval time.Duration
}

// NewFraudSweeper creates a new fraud sweeper worker
func NewFraudSweeper(logger *slog.Logger, runner SweepRunner, interval time.Duration) *FraudSweeper {
	return &FraudSweeper{
		logger:   logger,
		runner:   runner,
		interval: interval,
	}
}

// Start begins the periodic sweeps and returns when ctx is done.
func (fs *FraudSweeper) Start(ctx context.Context) {
	if fs.interval <= 0 {
		fs.logger.Info("Fraud sweeper disabled")
		return
	}

	fs.logger.Info("Starting fraud sweeper worker", "interval", fs.interval.String())

	ticker := time.NewTicker(fs.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			fs.logger.Info("Fraud sweeper worker stopped")
			return
		case <-ticker.C:
			fs.sweep(ctx)
		}
	}
}

func (fs *FraudSweeper) sweep(ctx context.Context) {
	result, err := fs.runner.Sweep(ctx)
	if err != nil {
		fs.logger.Error("Scheduled fraud sweep failed", "error", err)
		return
	}

	if result.Enqueued > 0 {
		fs.logger.Info("Scheduled fraud sweep dispatched flags",
			"detected", result.Detected,
			"enqueued", result.Enqueued)
	} else {
		fs.logger.Debug("Scheduled fraud sweep found nothing new", "detected", result.Detected)
	}
}
