package worker

// expiry_cron.go
// Background goroutine that periodically looks for stock batches close to
// their expiration date and enqueues an alert email for staff. A Redis lock
// makes sure only one replica runs each check.

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"pharmapos/internal/dto"

	"github.com/bsm/redislock"
	"github.com/rs/zerolog/log"
)

const expiryLockKey = "locks:expiry-check"

// ExpiringLister is the slice of service.ReportService the cron needs.
type ExpiringLister interface {
	ExpiringBatches(ctx context.Context, days int) ([]dto.StockBatchResponse, error)
}

// AlertQueue is satisfied by *Dispatcher.
type AlertQueue interface {
	EnqueueExpiryAlert(ctx context.Context, alert AlertPayload) error
}

// ExpiryCronConfig holds all dependencies for the expiry-check goroutine.
type ExpiryCronConfig struct {
	Reports    ExpiringLister
	Queue      AlertQueue
	Locker     *redislock.Client
	AlertEmail string
	Days       int
	Interval   time.Duration
}

// StartExpiryCron runs a check immediately and then every Interval until ctx
// is cancelled. Without an AlertEmail there is nobody to notify and the cron
// does not start; neither does it with a non-positive Interval.
func StartExpiryCron(ctx context.Context, cfg ExpiryCronConfig) {
	if cfg.AlertEmail == "" {
		log.Info().Msg("expiry_cron: ALERT_EMAIL not set, disabled")
		return
	}
	if cfg.Interval <= 0 {
		log.Error().Dur("interval", cfg.Interval).Msg("expiry_cron: interval must be positive, disabled")
		return
	}
	go func() {
		ticker := time.NewTicker(cfg.Interval)
		defer ticker.Stop()

		log.Info().Dur("interval", cfg.Interval).Int("days", cfg.Days).Msg("expiry_cron: started")
		runExpiryCheck(ctx, cfg)

		for {
			select {
			case <-ctx.Done():
				log.Info().Msg("expiry_cron: shutting down")
				return
			case <-ticker.C:
				runExpiryCheck(ctx, cfg)
			}
		}
	}()
}

// runExpiryCheck reports whether an alert was enqueued.
func runExpiryCheck(ctx context.Context, cfg ExpiryCronConfig) bool {
	// Held for most of the interval and never released, so a replica that
	// ticks slightly later skips the same run.
	_, err := cfg.Locker.Obtain(ctx, expiryLockKey, cfg.Interval*9/10, nil)
	if errors.Is(err, redislock.ErrNotObtained) {
		log.Debug().Msg("expiry_cron: another replica holds the lock, skipping")
		return false
	}
	if err != nil {
		log.Error().Err(err).Msg("expiry_cron: failed to obtain lock")
		return false
	}

	batches, err := cfg.Reports.ExpiringBatches(ctx, cfg.Days)
	if err != nil {
		log.Error().Err(err).Msg("expiry_cron: failed to list expiring batches")
		return false
	}
	if len(batches) == 0 {
		return false
	}

	alert := AlertPayload{
		To:      cfg.AlertEmail,
		Subject: fmt.Sprintf("%d stock batches expire within %d days", len(batches), cfg.Days),
		Body:    expiryReport(batches, cfg.Days),
	}
	if err := cfg.Queue.EnqueueExpiryAlert(ctx, alert); err != nil {
		log.Error().Err(err).Msg("expiry_cron: failed to enqueue alert")
		return false
	}
	log.Info().Int("batches", len(batches)).Msg("expiry_cron: alert enqueued")
	return true
}

func expiryReport(batches []dto.StockBatchResponse, days int) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The following batches expire within %d days:\n\n", days)
	for _, s := range batches {
		fmt.Fprintf(&b, "- %s (batch %s): %d units, expires %s (%d days), markdown %d%%\n",
			s.ProductName, s.BatchNumber, s.Quantity, s.ExpirationDate, s.DaysUntilExpiration, s.DiscountPercentage)
	}
	return b.String()
}
