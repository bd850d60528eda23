// Package schedule fires graph runs on cron expressions. Schedules share
// the dispatcher with the webhook gateway, so a scheduled run behaves
// exactly like a triggered one.
package schedule

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/nodeloom/loom/pkg/protocol"
	"github.com/robfig/cron/v3"
)

// Scheduler owns the cron runtime and the registered schedules.
type Scheduler struct {
	cron       *cron.Cron
	dispatcher protocol.Dispatcher
	logger     *slog.Logger

	mu      sync.Mutex
	entries map[string]cron.EntryID
}

func NewScheduler(dispatcher protocol.Dispatcher, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:       cron.New(),
		dispatcher: dispatcher,
		logger:     logger.With("module", "scheduler"),
		entries:    make(map[string]cron.EntryID),
	}
}

// Add registers a cron expression for a graph. One schedule per graph; a
// second Add replaces the first.
func (s *Scheduler) Add(graphID, spec string, input map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if existing, ok := s.entries[graphID]; ok {
		s.cron.Remove(existing)
	}

	entryID, err := s.cron.AddFunc(spec, func() {
		executionID, err := s.dispatcher.Dispatch(context.Background(), graphID, input)
		if err != nil {
			s.logger.Error("Failed to dispatch scheduled run", "graph_id", graphID, "error", err)

			return
		}

		s.logger.Info("Scheduled run dispatched", "graph_id", graphID, "execution_id", executionID)
	})
	if err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", spec, err)
	}

	s.entries[graphID] = entryID
	s.logger.Info("Schedule registered", "graph_id", graphID, "cron", spec)

	return nil
}

// Remove drops a graph's schedule if one exists.
func (s *Scheduler) Remove(graphID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entryID, ok := s.entries[graphID]; ok {
		s.cron.Remove(entryID)
		delete(s.entries, graphID)
	}
}

// Start begins firing schedules.
func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the cron runtime and waits for running dispatch callbacks.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
}
