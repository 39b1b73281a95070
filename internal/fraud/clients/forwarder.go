package clients

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/sand/fraud-detector/backend/internal/core/ports"
	"github.com/sand/fraud-detector/backend/internal/fraud/entities"
)

// HTTPForwarder posts flags to the processing entry point as JSON.
type HTTPForwarder struct {
	logger *slog.Logger
	url    string
	client *http.Client
}

// NewHTTPForwarder creates a forwarder targeting url.
func NewHTTPForwarder(logger *slog.Logger, url string, timeout time.Duration) *HTTPForwarder {
	if timeout <= 0 {
		timeout = ports.DefaultForwardTimeout
	}

	logger.Info("Flag forwarder initialized", "url", url, "timeout", timeout.String())

	return &HTTPForwarder{
		logger: logger,
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Forward sends ev and treats any non-2xx response as a transport failure.
func (f *HTTPForwarder) Forward(ctx context.Context, ev entities.FlagEvent) error {
	body, err := json.Marshal(entities.NewFlagPayload(ev))
	if err != nil {
		return fmt.Errorf("%w: failed to encode flag: %v", entities.ErrTransport, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: failed to create request: %v", entities.ErrTransport, err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: failed to send flag: %v", entities.ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%w: processing endpoint returned %d: %s",
			entities.ErrTransport, resp.StatusCode, bytes.TrimSpace(bodyBytes))
	}

	f.logger.DebugContext(ctx, "Flag forwarded",
		"transaction_id", ev.TransactionID,
		"reason", ev.Reason,
		"status", resp.StatusCode)

	return nil
}

// LocalForwarder hands flags to an in-process acceptor, skipping HTTP.
type LocalForwarder func(ctx context.Context, ev entities.FlagEvent) (entities.Outcome, error)

// Forward calls the acceptor. Duplicates are not failures.
func (f LocalForwarder) Forward(ctx context.Context, ev entities.FlagEvent) error {
	if _, err := f(ctx, ev); err != nil {
		return fmt.Errorf("%w: %v", entities.ErrTransport, err)
	}
	return nil
}
