package thumbnails

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/sync/errgroup"

	"media-catalog/internal/database"
	"media-catalog/internal/logging"
	"media-catalog/internal/media"
	"media-catalog/internal/metrics"
)

// Start launches the background worker pool. Workers observe Stop between
// jobs only; a generation in flight runs to completion.
func (s *Service) Start(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	g, ctx := errgroup.WithContext(ctx)
	for i := range s.config.Workers {
		g.Go(func() error {
			s.worker(ctx, i)
			return nil
		})
	}
	s.group = g
	logging.Info("Thumbnail workers started: %d", s.config.Workers)
}

// Stop signals the workers and waits for them to exit.
func (s *Service) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	_ = s.group.Wait()
	logging.Info("Thumbnail workers stopped")
}

func (s *Service) worker(ctx context.Context, id int) {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = max(s.config.Pause, 100*time.Millisecond)
	b.MaxInterval = s.config.MaxBackoff
	b.MaxElapsedTime = 0

	for ctx.Err() == nil {
		job, err := s.claim(ctx)
		if err != nil {
			if !errors.Is(err, database.ErrNotFound) && ctx.Err() == nil {
				logging.Error("Worker %d: failed to query thumbnail queue: %v", id, err)
			}
			sleep(ctx, s.config.IdleInterval)
			continue
		}

		if !s.memory.WaitIfPaused(ctx) {
			s.release(job.ID)
			return
		}

		ok := s.process(context.WithoutCancel(ctx), job)
		s.release(job.ID)

		if ok {
			b.Reset()
			sleep(ctx, s.config.Pause)
			continue
		}
		wait := b.NextBackOff()
		logging.Debug("Worker %d: backing off %v after failure", id, wait)
		sleep(ctx, wait)
	}
}

// claim selects the most urgent job not already held by another worker.
func (s *Service) claim(ctx context.Context) (*database.ThumbnailJob, error) {
	s.claimMu.Lock()
	defer s.claimMu.Unlock()

	skip := make([]int64, 0, len(s.claimed))
	for id := range s.claimed {
		skip = append(skip, id)
	}
	job, err := s.db.NextThumbnailJob(ctx, skip)
	if err != nil {
		return nil, err
	}
	s.claimed[job.ID] = struct{}{}
	return job, nil
}

func (s *Service) release(id int64) {
	s.claimMu.Lock()
	delete(s.claimed, id)
	s.claimMu.Unlock()
}

// process generates one claimed job. It returns false only for transient
// failures, which are the ones worth backing off from.
func (s *Service) process(ctx context.Context, job *database.ThumbnailJob) bool {
	metrics.ThumbnailWorkersBusy.Inc()
	defer metrics.ThumbnailWorkersBusy.Dec()

	_, err := s.generate(ctx, job)
	return err == nil || media.IsPermanent(err)
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
