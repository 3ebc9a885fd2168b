package jobs

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"cleanzone-api/clock"
	"cleanzone-api/metrics"
	"cleanzone-api/repositories"
	"cleanzone-api/services"
)

// LifecycleJob persists the time-driven transitions: started events move to
// IN_PROGRESS and transfer offers past their TTL are cleared.
type LifecycleJob struct {
	store        *repositories.Store
	eventService *services.EventService
	clock        clock.Clock
	interval     time.Duration
	log          *logrus.Logger

	ticker *time.Ticker
	done   chan struct{}
	wg     sync.WaitGroup
}

func NewLifecycleJob(
	store *repositories.Store,
	eventService *services.EventService,
	clk clock.Clock,
	interval time.Duration,
	log *logrus.Logger,
) *LifecycleJob {
	return &LifecycleJob{
		store:        store,
		eventService: eventService,
		clock:        clk,
		interval:     interval,
		log:          log,
		done:         make(chan struct{}),
	}
}

// Start runs one pass immediately and then one per interval until Stop or ctx ends.
func (j *LifecycleJob) Start(ctx context.Context) {
	j.ticker = time.NewTicker(j.interval)
	j.log.WithField("interval", j.interval.String()).Info("Lifecycle job started")

	j.wg.Add(1)
	go func() {
		defer j.wg.Done()
		j.RunOnce(ctx)

		for {
			select {
			case <-j.ticker.C:
				j.RunOnce(ctx)
			case <-ctx.Done():
				j.log.Info("Lifecycle job stopped")
				return
			case <-j.done:
				j.log.Info("Lifecycle job stopped")
				return
			}
		}
	}()
}

// Stop halts the ticker and waits for an in-flight pass to finish.
func (j *LifecycleJob) Stop() {
	if j.ticker == nil {
		return
	}
	j.ticker.Stop()
	close(j.done)
	j.wg.Wait()
}

// RunOnce performs a single pass. Failures on one event never block the others.
func (j *LifecycleJob) RunOnce(ctx context.Context) {
	now := j.clock.Now()
	started, expired := 0, 0

	events, err := j.store.Events.ListStarted(ctx, now)
	if err != nil {
		j.log.WithError(err).Error("Failed to list started events")
	}
	for i := range events {
		if err := j.eventService.MarkStarted(ctx, events[i].ID); err != nil {
			j.log.WithError(err).WithField("event_id", events[i].ID).Warn("Failed to mark event as started")
			continue
		}
		started++
	}

	stale, err := j.store.Events.ListStaleTransfers(ctx, now.Add(-j.eventService.TransferTTL()))
	if err != nil {
		j.log.WithError(err).Error("Failed to list stale transfers")
	}
	for i := range stale {
		if err := j.eventService.ExpireTransfer(ctx, stale[i].ID); err != nil {
			j.log.WithError(err).WithField("event_id", stale[i].ID).Warn("Failed to expire transfer")
			continue
		}
		expired++
	}

	if err := metrics.UpdateDatabaseConnections(j.store.DB()); err != nil {
		j.log.WithError(err).Debug("Failed to read database pool stats")
	}

	if started > 0 || expired > 0 {
		j.log.WithFields(logrus.Fields{
			"started":           started,
			"expired_transfers": expired,
		}).Info("Lifecycle pass completed")
	}
}
