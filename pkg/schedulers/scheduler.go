// Package schedulers provides periodic background maintenance for the
// memory engine.
package schedulers

import (
	"context"
	"sync"
	"time"

	"github.com/cortexkit/neuromem/pkg/config"
	"github.com/cortexkit/neuromem/pkg/core"
	"github.com/cortexkit/neuromem/pkg/errors"
	"github.com/cortexkit/neuromem/pkg/interfaces"
	"github.com/cortexkit/neuromem/pkg/topology"
)

const (
	statusStopped = "stopped"
	statusRunning = "running"
)

// MaintenanceScheduler runs the dream-state maintenance loop on a fixed
// interval: topology optimization followed by a lattice dream pass. A
// pass that has started always runs to completion; Stop waits for it.
type MaintenanceScheduler struct {
	config   *config.SchedulerConfig
	core     *core.NeuroSymbolicCore
	topology *topology.TopologicalMemory
	logger   interfaces.Logger

	mu      sync.Mutex
	status  string
	cancel  context.CancelFunc
	done    chan struct{}
	started bool
}

// NewMaintenanceScheduler creates a stopped scheduler
func NewMaintenanceScheduler(cfg *config.SchedulerConfig, c *core.NeuroSymbolicCore, tm *topology.TopologicalMemory, logger interfaces.Logger) *MaintenanceScheduler {
	if cfg == nil {
		cfg = config.NewSchedulerConfig()
	}
	return &MaintenanceScheduler{
		config:   cfg,
		core:     c,
		topology: tm,
		logger:   logger,
		status:   statusStopped,
	}
}

// Start launches the maintenance loop
func (s *MaintenanceScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return errors.NewInternalError("scheduler already started")
	}

	loopCtx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.started = true
	s.status = statusRunning

	go s.loop(loopCtx)

	s.logger.Info("Maintenance scheduler started", map[string]interface{}{
		"interval": s.config.DreamInterval.String(),
	})
	return nil
}

// Stop halts the loop and waits for any in-flight pass to finish
func (s *MaintenanceScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.started {
		s.mu.Unlock()
		return nil
	}
	cancel, done := s.cancel, s.done
	s.started = false
	s.status = statusStopped
	s.mu.Unlock()

	cancel()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}

	s.logger.Info("Maintenance scheduler stopped", nil)
	return nil
}

// GetStatus reports whether the loop is running
func (s *MaintenanceScheduler) GetStatus() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *MaintenanceScheduler) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.config.DreamInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// The pass itself is not cancellable, it runs to completion
			s.runPass()
		}
	}
}

func (s *MaintenanceScheduler) runPass() {
	ctx := context.Background()

	report, err := s.topology.Optimize(ctx)
	if err != nil {
		s.logger.Error("Scheduled optimize failed", err, nil)
	} else {
		s.logger.Debug("Scheduled optimize complete", map[string]interface{}{
			"consolidated": report.Consolidated,
			"pruned":       report.Pruned,
		})
	}

	dream, err := s.core.Dream(ctx)
	if err != nil {
		s.logger.Error("Scheduled dream failed", err, nil)
		return
	}
	s.logger.Debug("Scheduled dream complete", map[string]interface{}{
		"thematic_links":     dream.ThematicLinks,
		"hypothetical_links": dream.HypotheticalLinks,
	})
}

var _ interfaces.Scheduler = (*MaintenanceScheduler)(nil)
