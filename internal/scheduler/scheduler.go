// Package scheduler runs recurring scans on cron expressions. Schedules
// live in memory only; the process owns them for its lifetime.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/RyanH-sudo/NewToolKit-sub004/internal/deepscan"
	"github.com/RyanH-sudo/NewToolKit-sub004/internal/logging"
	"github.com/RyanH-sudo/NewToolKit-sub004/internal/scanning"
)

// ScanRunner is the orchestrator surface the scheduler drives.
type ScanRunner interface {
	StartQuickScan(ctx context.Context, target scanning.ScanTarget) *scanning.ScanResult
	StartDeepScan(ctx context.Context, target scanning.ScanTarget, opts deepscan.DepthOptions) *scanning.DeepScanResult
}

// ScheduledScan is one registered recurring scan.
type ScheduledScan struct {
	ID       uuid.UUID           `json:"id"`
	Name     string              `json:"name"`
	CronExpr string              `json:"cron_expr"`
	Target   scanning.ScanTarget `json:"target"`
	ScanType scanning.ScanType   `json:"scan_type"`
	LastRun  time.Time           `json:"last_run,omitempty"`
	NextRun  time.Time           `json:"next_run,omitempty"`

	cronID cron.EntryID
}

// Scheduler manages recurring scans.
type Scheduler struct {
	runner ScanRunner
	cron   *cron.Cron
	logger *logging.Logger

	mu      sync.RWMutex
	scans   map[uuid.UUID]*ScheduledScan
	running bool

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates a scheduler driving the given runner.
func New(runner ScanRunner) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		runner: runner,
		cron:   cron.New(),
		logger: logging.Default().WithComponent("scheduler"),
		scans:  make(map[uuid.UUID]*ScheduledScan),
		ctx:    ctx,
		cancel: cancel,
	}
}

// Start begins executing registered schedules.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return fmt.Errorf("scheduler is already running")
	}
	s.cron.Start()
	s.running = true

	s.logger.Info("Scheduler started", "schedules", len(s.scans))
	return nil
}

// Stop halts schedule execution. In-flight scans run to completion.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}
	s.cron.Stop()
	s.cancel()
	s.running = false

	s.logger.Info("Scheduler stopped")
}

// Add registers a recurring scan under a standard 5-field cron expression
// and returns its id.
func (s *Scheduler) Add(name, cronExpr string, target scanning.ScanTarget, scanType scanning.ScanType) (uuid.UUID, error) {
	if _, err := cron.ParseStandard(cronExpr); err != nil {
		return uuid.Nil, fmt.Errorf("invalid cron expression %q: %w", cronExpr, err)
	}

	scheduled := &ScheduledScan{
		ID:       uuid.New(),
		Name:     name,
		CronExpr: cronExpr,
		Target:   target,
		ScanType: scanType,
	}

	cronID, err := s.cron.AddFunc(cronExpr, func() {
		s.execute(scheduled)
	})
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to schedule scan: %w", err)
	}
	scheduled.cronID = cronID

	s.mu.Lock()
	s.scans[scheduled.ID] = scheduled
	s.mu.Unlock()

	s.logger.Info("Scan scheduled",
		"schedule_id", scheduled.ID,
		"name", name,
		"cron", cronExpr,
		"target", target.Address(),
		"type", scanType)
	return scheduled.ID, nil
}

// Remove unregisters a schedule. Returns false when the id is unknown.
func (s *Scheduler) Remove(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	scheduled, ok := s.scans[id]
	if !ok {
		return false
	}
	s.cron.Remove(scheduled.cronID)
	delete(s.scans, id)

	s.logger.Info("Schedule removed", "schedule_id", id, "name", scheduled.Name)
	return true
}

// List returns copies of every registered schedule with refreshed next-run
// times.
func (s *Scheduler) List() []ScheduledScan {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]ScheduledScan, 0, len(s.scans))
	for _, scheduled := range s.scans {
		snapshot := *scheduled
		if entry := s.cron.Entry(scheduled.cronID); entry.ID != 0 {
			snapshot.NextRun = entry.Next
		}
		out = append(out, snapshot)
	}
	return out
}

// execute runs one tick of a schedule.
func (s *Scheduler) execute(scheduled *ScheduledScan) {
	s.mu.Lock()
	scheduled.LastRun = time.Now()
	s.mu.Unlock()

	s.logger.Info("Scheduled scan starting",
		"schedule_id", scheduled.ID,
		"name", scheduled.Name,
		"target", scheduled.Target.Address())

	switch scheduled.ScanType {
	case scanning.TypeDeep:
		result := s.runner.StartDeepScan(s.ctx, scheduled.Target, deepscan.DepthOptions{})
		s.logScanOutcome(scheduled, &result.ScanResult)
	default:
		result := s.runner.StartQuickScan(s.ctx, scheduled.Target)
		s.logScanOutcome(scheduled, result)
	}
}

func (s *Scheduler) logScanOutcome(scheduled *ScheduledScan, result *scanning.ScanResult) {
	s.logger.Info("Scheduled scan finished",
		"schedule_id", scheduled.ID,
		"scan_id", result.ScanID,
		"status", result.Status,
		"vulnerabilities", len(result.Vulnerabilities),
		"duration", result.Duration)
}
