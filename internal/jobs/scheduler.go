// Package jobs runs the production API's background work on cron schedules.
package jobs

import (
	"context"
	"fmt"
	"runtime/debug"
	"sort"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

// JobFunc is one run of a scheduled job. The context carries the job timeout.
type JobFunc func(ctx context.Context) error

type registeredJob struct {
	entry    cron.EntryID
	schedule string
}

// Scheduler runs named jobs on six-field cron expressions (seconds first).
// Overlapping runs of the same job are skipped.
type Scheduler struct {
	cron   *cron.Cron
	logger *zap.Logger

	mu   sync.Mutex
	jobs map[string]registeredJob
}

// NewScheduler creates a scheduler whose cron diagnostics go to logger
func NewScheduler(logger *zap.Logger) *Scheduler {
	cronLog := cron.PrintfLogger(zap.NewStdLog(logger.Named("cron")))
	return &Scheduler{
		cron:   cron.New(cron.WithSeconds(), cron.WithChain(cron.SkipIfStillRunning(cronLog))),
		logger: logger,
		jobs:   make(map[string]registeredJob),
	}
}

// Start begins firing registered jobs
func (s *Scheduler) Start() {
	s.logger.Info("starting job scheduler", zap.Int("jobs", len(s.GetJobNames())))
	s.cron.Start()
}

// Stop halts scheduling. The returned context is done once running jobs finish.
func (s *Scheduler) Stop() context.Context {
	s.logger.Info("stopping job scheduler")
	return s.cron.Stop()
}

// AddJob registers job under name. Each run gets a context cancelled after timeout.
// Examples of cronExpr: "0 15 0 * * *" (00:15:00 daily), "@every 1h".
func (s *Scheduler) AddJob(name, cronExpr string, timeout time.Duration, job JobFunc) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.jobs[name]; exists {
		return fmt.Errorf("job %s already exists", name)
	}

	id, err := s.cron.AddFunc(cronExpr, func() { s.runJob(name, timeout, job) })
	if err != nil {
		return fmt.Errorf("failed to add job %s: %w", name, err)
	}
	s.jobs[name] = registeredJob{entry: id, schedule: cronExpr}

	s.logger.Info("added scheduled job", zap.String("job_name", name), zap.String("cron_expr", cronExpr))
	return nil
}

// RunNow runs a registered job immediately in the calling goroutine
func (s *Scheduler) RunNow(name string) error {
	s.mu.Lock()
	job, exists := s.jobs[name]
	s.mu.Unlock()
	if !exists {
		return fmt.Errorf("job %s not found", name)
	}
	s.cron.Entry(job.entry).WrappedJob.Run()
	return nil
}

// RemoveJob unregisters a job. A run already in progress is not interrupted.
func (s *Scheduler) RemoveJob(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	job, exists := s.jobs[name]
	if !exists {
		return fmt.Errorf("job %s not found", name)
	}
	s.cron.Remove(job.entry)
	delete(s.jobs, name)

	s.logger.Info("removed scheduled job", zap.String("job_name", name), zap.String("cron_expr", job.schedule))
	return nil
}

// GetJobNames returns the registered job names in sorted order
func (s *Scheduler) GetJobNames() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.jobs))
	for name := range s.jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// runJob executes one run; errors and panics are logged and never escape
func (s *Scheduler) runJob(name string, timeout time.Duration, job JobFunc) {
	log := s.logger.With(zap.String("job_name", name))
	start := time.Now()

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("scheduled job panicked",
				zap.Any("panic", rec),
				zap.ByteString("stack", debug.Stack()),
			)
		}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := job(ctx); err != nil {
		log.Error("scheduled job failed", zap.Error(err), zap.Duration("duration", time.Since(start)))
		return
	}
	log.Info("completed scheduled job", zap.Duration("duration", time.Since(start)))
}
