package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"realestate-token-hub/internal/governance"
	"realestate-token-hub/internal/marketplace"
	"realestate-token-hub/internal/property"
)

// refreshJob reloads one cache from the chain.
type refreshJob struct {
	name string
	run  func(ctx context.Context) error
}

func refreshJobs(props *property.Service, market *marketplace.Service, gov *governance.Service) []refreshJob {
	return []refreshJob{
		{name: "properties", run: func(ctx context.Context) error {
			_, err := props.Refresh(ctx)
			return err
		}},
		{name: "listings", run: func(ctx context.Context) error {
			_, err := market.Refresh(ctx)
			return err
		}},
		{name: "proposals", run: func(ctx context.Context) error {
			_, err := gov.RefreshProposals(ctx)
			if errors.Is(err, governance.ErrIssueDAOUnavailable) {
				return nil
			}
			return err
		}},
	}
}

// refresher reloads the chain caches on a fixed interval. Rounds never
// overlap: a slow round delays the next tick.
type refresher struct {
	interval time.Duration
	jobs     []refreshJob
	record   func(at time.Time, err error)
	logger   *zap.SugaredLogger
}

// Run refreshes once immediately, then on every tick until ctx is done.
func (r *refresher) Run(ctx context.Context) {
	if r.interval <= 0 {
		r.logger.Info("Periodic refresh disabled")
		return
	}
	r.logger.Infof("Starting refresher (interval: %v)...", r.interval)

	r.round(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			r.round(ctx)
		}
	}
}

func (r *refresher) round(ctx context.Context) error {
	start := time.Now()

	var errs []error
	for _, job := range r.jobs {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := job.run(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", job.name, err))
		}
	}

	err := errors.Join(errs...)
	if r.record != nil {
		r.record(time.Now(), err)
	}
	if err != nil {
		r.logger.Warnf("Refresh failed after %v: %v", time.Since(start), err)
		return err
	}
	r.logger.Debugf("Refresh completed in %v", time.Since(start))
	return nil
}
