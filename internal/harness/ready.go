package harness

import (
	"context"
	"fmt"
	"time"

	"github.com/fruitsalade/renterprobe/internal/logging"
	"github.com/fruitsalade/renterprobe/pkg/client"
	"github.com/fruitsalade/renterprobe/pkg/models"
	"github.com/fruitsalade/renterprobe/pkg/retry"
)

// WaitReady polls GET /info until the renter answers, for at most
// Options.WaitReady. Transport errors are retried; any answer other than
// success ends the wait at once, since a running renter rejecting /info
// will not get better by waiting. With no WaitReady set it checks once.
func (h *Harness) WaitReady(ctx context.Context) (*models.RenterInfo, error) {
	cfg := h.readyRetry
	if h.opts.WaitReady > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.opts.WaitReady)
		defer cancel()
		cfg.MaxAttempts = 0
	} else {
		cfg.MaxAttempts = 1
	}
	cfg.Notify = func(attempt int, err error, wait time.Duration) {
		h.logger.Debug("renter not ready",
			logging.Int("attempt", attempt),
			logging.Duration("wait", wait),
			logging.Err(err),
		)
	}

	start := time.Now()
	info, err := retry.DoWithResult(ctx, cfg, func() (*models.RenterInfo, error) {
		info, err := h.client.GetInfo(ctx)
		if err == nil {
			return info, nil
		}
		if _, ok := client.AsAPIError(err); ok {
			return nil, err
		}
		return nil, retry.Retryable(err)
	})
	if err != nil {
		return nil, fmt.Errorf("wait for renter at %s: %w", h.client.BaseURL(), err)
	}

	h.logger.Info("renter ready",
		logging.String("renter", h.client.BaseURL()),
		logging.String("alias", info.Alias),
		logging.Int64("free_storage", info.FreeStorage),
		logging.Duration("waited", time.Since(start)),
	)
	return info, nil
}
