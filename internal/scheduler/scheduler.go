// Package scheduler drives sync cycles from a cron schedule and manual
// triggers, making sure only one cycle runs at a time.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/mrlokans/highlightsync/internal/engine"
	"github.com/mrlokans/highlightsync/internal/entities"
	"github.com/mrlokans/highlightsync/internal/settingsstore"
)

var (
	// ErrCycleInProgress is returned when a trigger arrives while a cycle runs.
	ErrCycleInProgress = errors.New("a sync cycle is already in progress")

	// ErrStopped is returned for triggers after Stop.
	ErrStopped = errors.New("scheduler is stopped")
)

// Runner executes one sync cycle.
type Runner interface {
	Run(ctx context.Context, trigger entities.SyncTrigger) entities.SyncResult
	State() engine.State
	Destination() string
}

// SyncSettings supplies the runtime-changeable schedule.
type SyncSettings interface {
	GetSyncConfig() settingsstore.SyncConfig
}

// CycleRecorder persists finished cycles, e.g. audit.Service.
type CycleRecorder interface {
	LogCycle(result entities.SyncResult, destination string)
}

// ReportWriter stores full cycle reports, e.g. audit.Auditor.
type ReportWriter interface {
	SaveCycleReport(result entities.SyncResult) (string, error)
}

// ProcessLock excludes cycles run by other processes sharing the same
// cursor store, e.g. *flock.Flock.
type ProcessLock interface {
	TryLock() (bool, error)
	Unlock() error
}

// RetryState counts consecutive cycles that did not fully succeed. It is
// informational: the schedule does not back off.
type RetryState struct {
	ConsecutiveFailures int        `json:"consecutive_failures"`
	LastFailureAt       *time.Time `json:"last_failure_at,omitempty"`
}

// Status is the read-only snapshot exposed to the API and CLI.
type Status struct {
	Enabled    bool                 `json:"enabled"`
	Schedule   string               `json:"schedule"`
	IsRunning  bool                 `json:"is_running"`
	IsSyncing  bool                 `json:"is_syncing"`
	State      engine.State         `json:"state"`
	LastRunAt  *time.Time           `json:"last_run_at,omitempty"`
	LastResult *entities.SyncResult `json:"last_result,omitempty"`
	NextRunAt  *time.Time           `json:"next_run_at,omitempty"`
	Retry      RetryState           `json:"retry"`
}

type Scheduler struct {
	runner       Runner
	settings     SyncSettings
	recorder     CycleRecorder
	reports      ReportWriter
	processLock  ProcessLock
	cycleTimeout time.Duration

	cron    *cron.Cron
	entryID cron.EntryID

	// ctx is cancelled by Stop and parents every cycle.
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	cycleLock sync.Mutex

	mu         sync.RWMutex
	isRunning  bool
	isSyncing  bool
	stopped    bool
	enabled    bool
	schedule   string
	lastRunAt  *time.Time
	lastResult *entities.SyncResult
	retry      RetryState
}

// New creates a scheduler. cycleTimeout bounds a single cycle; zero means
// no limit.
func New(runner Runner, settings SyncSettings, cycleTimeout time.Duration) *Scheduler {
	ctx, cancel := context.WithCancel(context.Background())
	return &Scheduler{
		runner:       runner,
		settings:     settings,
		cycleTimeout: cycleTimeout,
		cron:         cron.New(cron.WithParser(settingsstore.CronParser)),
		ctx:          ctx,
		cancel:       cancel,
	}
}

// SetRecorder enables audit logging of finished cycles.
func (s *Scheduler) SetRecorder(recorder CycleRecorder) {
	s.recorder = recorder
}

// SetReportWriter enables JSON reports of finished cycles.
func (s *Scheduler) SetReportWriter(reports ReportWriter) {
	s.reports = reports
}

// SetProcessLock makes every cycle also hold lock, so a second process
// sharing the cursor store cannot run a cycle at the same time.
func (s *Scheduler) SetProcessLock(lock ProcessLock) {
	s.processLock = lock
}

// Start registers the cron job (when sync is enabled) and starts the cron
// loop. Cancelling ctx stops the scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrStopped
	}
	if s.isRunning {
		return nil
	}

	if err := s.scheduleLocked(); err != nil {
		return err
	}

	s.cron.Start()
	s.isRunning = true

	go func() {
		select {
		case <-ctx.Done():
			s.Stop()
		case <-s.ctx.Done():
		}
	}()

	return nil
}

// Reschedule re-reads the settings and replaces the cron entry. A cycle in
// flight is not affected.
func (s *Scheduler) Reschedule() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrStopped
	}
	if !s.isRunning {
		return nil
	}
	return s.scheduleLocked()
}

func (s *Scheduler) scheduleLocked() error {
	config := s.settings.GetSyncConfig()

	if err := settingsstore.ValidateCronSchedule(config.Schedule); err != nil {
		return fmt.Errorf("invalid cron schedule '%s': %w", config.Schedule, err)
	}

	if s.entryID != 0 {
		s.cron.Remove(s.entryID)
		s.entryID = 0
	}
	s.enabled = config.Enabled
	s.schedule = config.Schedule

	if !config.Enabled {
		log.Printf("Sync scheduler: disabled, manual triggers only")
		return nil
	}

	entryID, err := s.cron.AddFunc(config.Schedule, s.runScheduled)
	if err != nil {
		return fmt.Errorf("failed to schedule sync job: %w", err)
	}
	s.entryID = entryID

	nextRun, _ := settingsstore.GetNextRunTime(config.Schedule, time.Now())
	log.Printf("Sync scheduler: schedule '%s' (%s). Next run: %v",
		config.Schedule,
		settingsstore.GetCronDescription(config.Schedule),
		nextRun)

	return nil
}

// Stop signals the running cycle to stop starting deliveries, stops the cron
// loop and waits for every cycle to finish.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	wasRunning := s.isRunning
	s.isRunning = false
	s.mu.Unlock()

	s.cancel()

	if wasRunning {
		// Stop accepting new jobs and wait for running jobs to complete
		<-s.cron.Stop().Done()
	}
	s.wg.Wait()

	log.Printf("Sync scheduler: stopped")
}

// RunNow starts a cycle in the background and returns immediately.
func (s *Scheduler) RunNow(trigger entities.SyncTrigger) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return ErrStopped
	}
	if err := s.acquire(); err != nil {
		return err
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.release()
		s.execute(context.Background(), trigger)
	}()
	return nil
}

// TriggerNow runs a cycle synchronously. Cancelling ctx interrupts it.
func (s *Scheduler) TriggerNow(ctx context.Context, trigger entities.SyncTrigger) (entities.SyncResult, error) {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return entities.SyncResult{}, ErrStopped
	}
	if err := s.acquire(); err != nil {
		s.mu.Unlock()
		return entities.SyncResult{}, err
	}
	s.wg.Add(1)
	s.mu.Unlock()

	defer s.wg.Done()
	defer s.release()
	return s.execute(ctx, trigger), nil
}

func (s *Scheduler) runScheduled() {
	if err := s.acquire(); err != nil {
		log.Printf("Sync scheduler: skipped scheduled run (%v)", err)
		return
	}
	defer s.release()

	s.mu.RLock()
	enabled := s.enabled
	s.mu.RUnlock()
	if !enabled {
		log.Printf("Sync scheduler: skipped scheduled run (disabled)")
		return
	}

	s.execute(context.Background(), entities.SyncTriggerScheduled)
}

// acquire takes the in-process cycle lock and then the process lock.
func (s *Scheduler) acquire() error {
	if !s.cycleLock.TryLock() {
		return ErrCycleInProgress
	}
	if s.processLock == nil {
		return nil
	}

	locked, err := s.processLock.TryLock()
	if err != nil {
		s.cycleLock.Unlock()
		return fmt.Errorf("failed to acquire cycle lock: %w", err)
	}
	if !locked {
		s.cycleLock.Unlock()
		return fmt.Errorf("%w in another process", ErrCycleInProgress)
	}
	return nil
}

func (s *Scheduler) release() {
	if s.processLock != nil {
		if err := s.processLock.Unlock(); err != nil {
			log.Printf("Sync scheduler: failed to release cycle lock: %v", err)
		}
	}
	s.cycleLock.Unlock()
}

// execute runs one cycle. The caller holds the cycle locks.
func (s *Scheduler) execute(ctx context.Context, trigger entities.SyncTrigger) entities.SyncResult {
	s.setSyncing(true)
	defer s.setSyncing(false)

	cycleCtx, cancel := context.WithCancel(s.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	if s.cycleTimeout > 0 {
		var cancelTimeout context.CancelFunc
		cycleCtx, cancelTimeout = context.WithTimeout(cycleCtx, s.cycleTimeout)
		defer cancelTimeout()
	}

	result := s.runner.Run(cycleCtx, trigger)
	s.record(result)
	return result
}

func (s *Scheduler) record(result entities.SyncResult) {
	s.mu.Lock()
	startedAt := result.StartedAt
	s.lastRunAt = &startedAt
	s.lastResult = &result
	if result.Succeeded() {
		s.retry = RetryState{}
	} else {
		finishedAt := result.FinishedAt
		s.retry.ConsecutiveFailures++
		s.retry.LastFailureAt = &finishedAt
	}
	failures := s.retry.ConsecutiveFailures
	s.mu.Unlock()

	if !result.Succeeded() {
		log.Printf("Sync scheduler: cycle %s finished %s (%d consecutive)", result.CycleID, result.Status, failures)
	}

	if s.recorder != nil {
		s.recorder.LogCycle(result, s.runner.Destination())
	}
	if s.reports != nil {
		if _, err := s.reports.SaveCycleReport(result); err != nil {
			log.Printf("Sync scheduler: failed to save cycle report: %v", err)
		}
	}
}

func (s *Scheduler) setSyncing(syncing bool) {
	s.mu.Lock()
	s.isSyncing = syncing
	s.mu.Unlock()
}

// IsRunning returns whether the cron loop is active
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// IsSyncing returns whether a cycle is currently in progress
func (s *Scheduler) IsSyncing() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isSyncing
}

// NextRunAt returns when the next scheduled cycle will occur
func (s *Scheduler) NextRunAt() *time.Time {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.nextRunLocked()
}

func (s *Scheduler) nextRunLocked() *time.Time {
	if !s.isRunning || s.entryID == 0 {
		return nil
	}
	entry := s.cron.Entry(s.entryID)
	if !entry.Valid() {
		return nil
	}
	if entry.Next.IsZero() {
		// The cron loop has not computed it yet.
		next, err := settingsstore.GetNextRunTime(s.schedule, time.Now())
		if err != nil {
			return nil
		}
		return next
	}
	next := entry.Next
	return &next
}

// LastResult returns the result of the most recent cycle, if any.
func (s *Scheduler) LastResult() *entities.SyncResult {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.lastResult == nil {
		return nil
	}
	result := *s.lastResult
	return &result
}

func (s *Scheduler) RetryState() RetryState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.retry
}

func (s *Scheduler) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()

	status := Status{
		Enabled:   s.enabled,
		Schedule:  s.schedule,
		IsRunning: s.isRunning,
		IsSyncing: s.isSyncing,
		State:     s.runner.State(),
		NextRunAt: s.nextRunLocked(),
		Retry:     s.retry,
	}
	if s.lastRunAt != nil {
		t := *s.lastRunAt
		status.LastRunAt = &t
	}
	if s.lastResult != nil {
		result := *s.lastResult
		status.LastResult = &result
	}
	return status
}
