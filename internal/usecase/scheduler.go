package usecase

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"HotspotLite/internal/domain"
	"HotspotLite/internal/ports"
)

const (
	runFlightKey       = "run"
	reclusterFlightKey = "recluster"
)

// Scheduler wires the ticker driver with the pipeline use case. Overlapping triggers
// join the run already in flight instead of starting another one, and every
// operation that writes events waits for the one holding runMu.
type Scheduler struct {
	driver   ports.Scheduler
	pipeline *Pipeline
	board    *StatusBoard
	logger   *slog.Logger
	flight   singleflight.Group
	runMu    sync.Mutex
}

// NewScheduler returns a helper to start/stop recurring jobs.
func NewScheduler(driver ports.Scheduler, pipeline *Pipeline, board *StatusBoard, logger *slog.Logger) *Scheduler {
	if board == nil {
		board = NewStatusBoard()
	}
	return &Scheduler{driver: driver, pipeline: pipeline, board: board, logger: logger}
}

// Board exposes the status snapshot read by the API.
func (s *Scheduler) Board() *StatusBoard {
	return s.board
}

// Start registers the pipeline with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.pipeline == nil {
		return nil
	}

	job := func(trigger time.Time) {
		if _, err := s.Trigger(ctx); err != nil && s.logger != nil {
			s.logger.Error("scheduled run failed", "trigger", trigger, "error", err)
		}
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}

// Trigger runs the pipeline once, sharing the result with concurrent callers.
func (s *Scheduler) Trigger(ctx context.Context) (RunResult, error) {
	v, err, shared := s.flight.Do(runFlightKey, func() (any, error) {
		s.runMu.Lock()
		defer s.runMu.Unlock()
		res, err := s.pipeline.Run(ctx)
		s.board.Apply(res)
		return res, err
	})
	if shared && s.logger != nil {
		s.logger.Debug("joined in-flight run")
	}
	res, _ := v.(RunResult)
	return res, err
}

// Ingest processes an externally loaded batch once no run is in flight.
func (s *Scheduler) Ingest(ctx context.Context, batch domain.Batch) (RunResult, error) {
	s.runMu.Lock()
	defer s.runMu.Unlock()
	return s.pipeline.Process(ctx, []domain.Batch{batch})
}

// Recluster rebuilds events after any in-flight run, collapsing concurrent requests.
func (s *Scheduler) Recluster(ctx context.Context) (int, error) {
	v, err, _ := s.flight.Do(reclusterFlightKey, func() (any, error) {
		s.runMu.Lock()
		defer s.runMu.Unlock()
		return s.pipeline.Recluster(ctx)
	})
	n, _ := v.(int)
	return n, err
}
