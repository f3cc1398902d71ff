// Package scheduler runs recurring maintenance tasks on cron
// schedules.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
)

// TaskFunc is a runnable maintenance task.
type TaskFunc func(ctx context.Context) error

// TaskConfig describes a scheduled task.
type TaskConfig struct {
	ID         string
	Name       string
	Cron       string // e.g. "0 4 * * *" for 04:00 daily
	Func       TaskFunc
	RunOnStart bool
}

// TaskInfo describes a task's schedule and last run for API responses.
type TaskInfo struct {
	ID      string     `json:"id"`
	Name    string     `json:"name"`
	Cron    string     `json:"cron"`
	LastRun *time.Time `json:"last_run,omitempty"`
	NextRun *time.Time `json:"next_run,omitempty"`
	Running bool       `json:"running"`
}

type taskEntry struct {
	config  TaskConfig
	job     gocron.Job
	lastRun *time.Time
	running bool
}

// Scheduler manages background maintenance tasks.
type Scheduler struct {
	gocron gocron.Scheduler
	logger zerolog.Logger
	mu     sync.RWMutex
	tasks  map[string]*taskEntry
}

// New creates a scheduler.
func New(logger zerolog.Logger) (*Scheduler, error) {
	gs, err := gocron.NewScheduler()
	if err != nil {
		return nil, fmt.Errorf("failed to create gocron scheduler: %w", err)
	}

	return &Scheduler{
		gocron: gs,
		logger: logger.With().Str("component", "scheduler").Logger(),
		tasks:  make(map[string]*taskEntry),
	}, nil
}

// Register adds a task to the schedule.
func (s *Scheduler) Register(config TaskConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[config.ID]; exists {
		return fmt.Errorf("task %q already registered", config.ID)
	}

	job, err := s.gocron.NewJob(
		gocron.CronJob(config.Cron, false),
		gocron.NewTask(func() { s.execute(config.ID) }),
		gocron.WithName(config.Name),
		gocron.WithTags(config.ID),
	)
	if err != nil {
		return fmt.Errorf("failed to schedule task %q: %w", config.ID, err)
	}

	s.tasks[config.ID] = &taskEntry{config: config, job: job}
	s.logger.Info().Str("id", config.ID).Str("cron", config.Cron).Msg("registered task")
	return nil
}

func (s *Scheduler) execute(taskID string) {
	s.mu.Lock()
	entry, exists := s.tasks[taskID]
	if !exists || entry.running {
		s.mu.Unlock()
		return
	}
	entry.running = true
	s.mu.Unlock()

	start := time.Now()
	err := entry.config.Func(context.Background())

	s.mu.Lock()
	entry.running = false
	entry.lastRun = &start
	s.mu.Unlock()

	if err != nil {
		s.logger.Error().Err(err).Str("id", taskID).Dur("duration", time.Since(start)).Msg("task failed")
		return
	}
	s.logger.Info().Str("id", taskID).Dur("duration", time.Since(start)).Msg("task completed")
}

// Start begins the schedule and kicks off any run-on-start tasks.
func (s *Scheduler) Start() {
	s.gocron.Start()

	s.mu.RLock()
	var startup []string
	for id, entry := range s.tasks {
		if entry.config.RunOnStart {
			startup = append(startup, id)
		}
	}
	s.mu.RUnlock()

	for _, id := range startup {
		go s.execute(id)
	}
}

// Stop shuts the scheduler down.
func (s *Scheduler) Stop() error {
	return s.gocron.Shutdown()
}

// RunNow triggers a task outside its schedule.
func (s *Scheduler) RunNow(taskID string) error {
	s.mu.RLock()
	entry, exists := s.tasks[taskID]
	s.mu.RUnlock()

	if !exists {
		return fmt.Errorf("task %q not found", taskID)
	}
	if entry.running {
		return fmt.Errorf("task %q is already running", taskID)
	}

	go s.execute(taskID)
	return nil
}

// ListTasks returns all registered tasks.
func (s *Scheduler) ListTasks() []TaskInfo {
	s.mu.RLock()
	defer s.mu.RUnlock()

	infos := make([]TaskInfo, 0, len(s.tasks))
	for _, entry := range s.tasks {
		info := TaskInfo{
			ID:      entry.config.ID,
			Name:    entry.config.Name,
			Cron:    entry.config.Cron,
			LastRun: entry.lastRun,
			Running: entry.running,
		}
		if next, err := entry.job.NextRun(); err == nil {
			info.NextRun = &next
		}
		infos = append(infos, info)
	}
	return infos
}
