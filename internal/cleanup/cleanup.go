package cleanup

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/imyashkale/authbroker/internal/logger"
	"github.com/imyashkale/authbroker/internal/models"
	"github.com/imyashkale/authbroker/internal/repository"
)

// Sweeper periodically expires authorization journeys that stalled before
// reaching a terminal status, then deletes denied, failed and expired
// journeys once they age past the retention window. A journey the resource
// owner abandoned at the consent screen would otherwise sit in the table
// forever with a live code challenge; without the purge the table would
// grow without bound. Exchanged journeys are never purged because token
// exchange still reads their downstream tokens.
type Sweeper struct {
	journeys   repository.JourneyRepository
	journeyTTL time.Duration
	retention  time.Duration
	interval   time.Duration

	done chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// NewSweeper creates a new Sweeper instance
func NewSweeper(journeys repository.JourneyRepository, journeyTTL, retention, interval time.Duration) *Sweeper {
	return &Sweeper{
		journeys:   journeys,
		journeyTTL: journeyTTL,
		retention:  retention,
		interval:   interval,
		done:       make(chan struct{}),
	}
}

// Start launches the background sweep loop
func (s *Sweeper) Start() {
	s.wg.Add(1)
	go s.run()

	logger.WithFields(map[string]interface{}{
		"journey_ttl": s.journeyTTL.String(),
		"retention":   s.retention.String(),
		"interval":    s.interval.String(),
	}).Info("Journey cleanup sweeper started")
}

// Stop signals the loop to exit and waits for the in-flight sweep to finish
func (s *Sweeper) Stop() {
	s.once.Do(func() {
		close(s.done)
	})
	s.wg.Wait()
	logger.Info("Journey cleanup sweeper stopped")
}

func (s *Sweeper) run() {
	defer s.wg.Done()

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			s.Sweep(context.Background())
		case <-s.done:
			return
		}
	}
}

// Sweep expires every non-terminal journey that has not advanced within the
// TTL window, then deletes denied, failed and expired journeys older than
// the retention window. It returns the number of journeys expired and the
// number purged.
func (s *Sweeper) Sweep(ctx context.Context) (expired, purged int) {
	expired = s.expireStale(ctx)
	purged = s.purgeTerminal(ctx)
	return expired, purged
}

func (s *Sweeper) expireStale(ctx context.Context) int {
	cutoff := time.Now().UTC().Add(-s.journeyTTL)

	stale, err := s.journeys.ListStaleJourneys(ctx, cutoff)
	if err != nil {
		logger.Errorf("Cleanup sweep failed to list stale journeys: %v", err)
		return 0
	}

	expired := 0
	for i := range stale {
		journey := &stale[i]
		journey.Status = models.JourneyExpired

		if err := s.journeys.UpdateJourney(ctx, journey); err != nil {
			// A conflict means the journey advanced after we listed it,
			// so it is no longer stale. Skip it.
			if errors.Is(err, repository.ErrVersionConflict) {
				continue
			}
			logger.WithFields(map[string]interface{}{
				"journey_id": journey.Id,
				"error":      err.Error(),
			}).Warn("Failed to expire stale journey")
			continue
		}
		expired++
	}

	if expired > 0 {
		logger.WithField("expired", expired).Info("Expired stale authorization journeys")
	}
	return expired
}

func (s *Sweeper) purgeTerminal(ctx context.Context) int {
	cutoff := time.Now().UTC().Add(-s.retention)

	purgeable, err := s.journeys.ListPurgeableJourneys(ctx, cutoff)
	if err != nil {
		logger.Errorf("Cleanup sweep failed to list purgeable journeys: %v", err)
		return 0
	}

	purged := 0
	for i := range purgeable {
		// Deletes are idempotent, so a row removed by a concurrent sweep
		// is not an error.
		if err := s.journeys.DeleteJourney(ctx, purgeable[i].Id); err != nil {
			logger.WithFields(map[string]interface{}{
				"journey_id": purgeable[i].Id,
				"error":      err.Error(),
			}).Warn("Failed to purge terminal journey")
			continue
		}
		purged++
	}

	if purged > 0 {
		logger.WithField("purged", purged).Info("Purged terminal authorization journeys")
	}
	return purged
}
