package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func newTestScheduler(t *testing.T) *Scheduler {
	t.Helper()
	s, err := New(zerolog.Nop())
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	t.Cleanup(func() { _ = s.Stop() })
	return s
}

func TestRegisterRejectsDuplicateID(t *testing.T) {
	s := newTestScheduler(t)

	config := TaskConfig{
		ID:   "sweep",
		Name: "Sweep",
		Cron: "0 4 * * *",
		Func: func(ctx context.Context) error { return nil },
	}
	if err := s.Register(config); err != nil {
		t.Fatalf("Register() error = %v", err)
	}
	if err := s.Register(config); err == nil {
		t.Error("Register() accepted duplicate ID")
	}
}

func TestRegisterRejectsBadCron(t *testing.T) {
	s := newTestScheduler(t)

	err := s.Register(TaskConfig{
		ID:   "bad",
		Name: "Bad",
		Cron: "not a cron",
		Func: func(ctx context.Context) error { return nil },
	})
	if err == nil {
		t.Error("Register() accepted invalid cron expression")
	}
}

func TestRunNow(t *testing.T) {
	s := newTestScheduler(t)

	var runs atomic.Int32
	err := s.Register(TaskConfig{
		ID:   "sweep",
		Name: "Sweep",
		Cron: "0 4 * * *",
		Func: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if err := s.RunNow("sweep"); err != nil {
		t.Fatalf("RunNow() error = %v", err)
	}
	waitFor(t, func() bool { return runs.Load() == 1 })

	if err := s.RunNow("missing"); err == nil {
		t.Error("RunNow() found unregistered task")
	}
}

func TestRunOnStart(t *testing.T) {
	s := newTestScheduler(t)

	var runs atomic.Int32
	err := s.Register(TaskConfig{
		ID:         "startup",
		Name:       "Startup",
		Cron:       "0 4 * * *",
		RunOnStart: true,
		Func: func(ctx context.Context) error {
			runs.Add(1)
			return nil
		},
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	s.Start()
	waitFor(t, func() bool { return runs.Load() == 1 })
}

func TestListTasksRecordsLastRun(t *testing.T) {
	s := newTestScheduler(t)

	err := s.Register(TaskConfig{
		ID:   "failing",
		Name: "Failing",
		Cron: "0 4 * * *",
		Func: func(ctx context.Context) error { return errors.New("boom") },
	})
	if err != nil {
		t.Fatalf("Register() error = %v", err)
	}

	if err := s.RunNow("failing"); err != nil {
		t.Fatalf("RunNow() error = %v", err)
	}
	waitFor(t, func() bool {
		tasks := s.ListTasks()
		return len(tasks) == 1 && tasks[0].LastRun != nil
	})

	tasks := s.ListTasks()
	if tasks[0].ID != "failing" || tasks[0].Running {
		t.Errorf("ListTasks() = %+v", tasks[0])
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not reached within deadline")
}
