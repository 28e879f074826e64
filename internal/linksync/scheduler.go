package linksync

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/dukerupert/annex/internal/model"
	"github.com/dukerupert/annex/internal/paperless"
)

// UserSource lists the users whose Paperless credentials the scheduler
// scans with.
type UserSource interface {
	ListWithTokens(ctx context.Context) ([]model.User, error)
}

// ClientFactory builds a Paperless client for one user's token.
type ClientFactory func(token string) (*paperless.Client, error)

// Scheduler drives link reconciliation on a fixed interval. One scan
// cycle walks every user's corpus sequentially, composing the skip set
// across users so a document reachable through several tokens is written
// at most once per cycle. A failed cycle is logged and the next tick runs
// normally; only cancellation of the Start context (or Stop) ends the
// loop.
type Scheduler struct {
	syncer    *Syncer
	users     UserSource
	newClient ClientFactory
	interval  time.Duration
	logger    *slog.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

func NewScheduler(syncer *Syncer, users UserSource, newClient ClientFactory, interval time.Duration, logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		syncer:    syncer,
		users:     users,
		newClient: newClient,
		interval:  interval,
		logger:    logger,
	}
}

// Start begins the scan loop: one scan immediately, then one per tick.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	ctx, s.cancel = context.WithCancel(ctx)
	s.done = make(chan struct{})
	s.mu.Unlock()

	go func() {
		defer close(s.done)
		s.runCycle(ctx)

		ticker := time.NewTicker(s.interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.runCycle(ctx)
			}
		}
	}()
}

// Stop cancels the loop and waits for the current cycle to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	done := s.done
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if done != nil {
		<-done
	}
}

func (s *Scheduler) runCycle(ctx context.Context) {
	s.logger.Info("link sync: starting scan")
	touched, err := s.Scan(ctx)
	if err != nil {
		// One bad cycle must not kill the loop.
		s.logger.Error("link sync: scan failed", "error", err)
		return
	}
	s.logger.Info("link sync: scan completed", "documents_touched", len(touched))
}

// Scan performs one full reconciliation across all users and returns the
// ids of the documents touched.
func (s *Scheduler) Scan(ctx context.Context) (map[int64]struct{}, error) {
	users, err := s.users.ListWithTokens(ctx)
	if err != nil {
		return nil, err
	}

	touched := make(map[int64]struct{})
	for _, user := range users {
		client, err := s.newClient(user.PaperlessToken)
		if err != nil {
			return touched, err
		}
		updated, err := s.syncer.UpdateLinks(ctx, client, touched)
		for id := range updated {
			touched[id] = struct{}{}
		}
		if err != nil {
			return touched, err
		}
	}
	return touched, nil
}
