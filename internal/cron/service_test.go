package cron

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/bazaarhub/bazaar-backend/pkg/logger"
)

type fakeLock struct {
	held     bool
	acquires int
}

func (f *fakeLock) Acquire(context.Context) (bool, error) {
	if f.held {
		return false, nil
	}
	f.held = true
	f.acquires++
	return true, nil
}

func (f *fakeLock) Release(context.Context) error { f.held = false; return nil }

type countingJob struct {
	name string
	err  error
	runs int
}

func (j *countingJob) Name() string { return j.name }

func (j *countingJob) Run(context.Context) error {
	j.runs++
	return j.err
}

func newTestService(t *testing.T, lock Lock, schedules ...Schedule) *Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Logger:    logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard}),
		Schedules: schedules,
		Lock:      lock,
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return svc
}

func TestRunCycleRunsEveryJobAndCombinesFailures(t *testing.T) {
	ok := &countingJob{name: "payment-reconcile"}
	failing := &countingJob{name: "outbox-retention", err: errors.New("boom")}
	svc := newTestService(t, &fakeLock{}, Schedule{Job: ok}, Schedule{Job: failing})

	err := svc.runCycle(context.Background())
	if err == nil {
		t.Fatal("expected failing job to surface")
	}
	if ok.runs != 1 || failing.runs != 1 {
		t.Fatalf("expected both jobs to run once, got %d and %d", ok.runs, failing.runs)
	}
}

func TestRunCycleSkipsWhenLockHeld(t *testing.T) {
	job := &countingJob{name: "payment-reconcile"}
	svc := newTestService(t, &fakeLock{held: true}, Schedule{Job: job})

	if err := svc.runCycle(context.Background()); err != nil {
		t.Fatalf("runCycle: %v", err)
	}
	if job.runs != 0 {
		t.Fatalf("expected job to be skipped, ran %d", job.runs)
	}
	if svc.tick != defaultTick {
		t.Fatalf("expected default tick, got %s", svc.tick)
	}
}

func TestRunCycleHonoursScheduleCadence(t *testing.T) {
	reconcile := &countingJob{name: "payment-reconcile"}
	retention := &countingJob{name: "outbox-retention"}
	lock := &fakeLock{}
	svc := newTestService(t, lock,
		Schedule{Job: reconcile},
		Schedule{Job: retention, Every: 6 * time.Hour},
	)
	clock := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return clock }

	for i := 0; i < 3; i++ {
		if err := svc.runCycle(context.Background()); err != nil {
			t.Fatalf("runCycle %d: %v", i, err)
		}
		clock = clock.Add(time.Hour)
	}
	if reconcile.runs != 3 {
		t.Fatalf("expected reconcile every tick, ran %d", reconcile.runs)
	}
	if retention.runs != 1 {
		t.Fatalf("expected retention once inside its window, ran %d", retention.runs)
	}

	clock = clock.Add(4 * time.Hour)
	if err := svc.runCycle(context.Background()); err != nil {
		t.Fatalf("runCycle: %v", err)
	}
	if retention.runs != 2 {
		t.Fatalf("expected retention to run after its window, ran %d", retention.runs)
	}
}

func TestRunCycleDoesNotLockWhenNothingIsDue(t *testing.T) {
	retention := &countingJob{name: "outbox-retention"}
	lock := &fakeLock{}
	svc := newTestService(t, lock, Schedule{Job: retention, Every: time.Hour})
	clock := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)
	svc.now = func() time.Time { return clock }

	_ = svc.runCycle(context.Background())
	clock = clock.Add(10 * time.Minute)
	_ = svc.runCycle(context.Background())

	if lock.acquires != 1 {
		t.Fatalf("expected a single lock acquisition, got %d", lock.acquires)
	}
}

func TestNewServiceRejectsDuplicateJobs(t *testing.T) {
	_, err := NewService(ServiceParams{
		Logger: logger.New(logger.Options{ServiceName: "cron-test", Output: io.Discard}),
		Lock:   &fakeLock{},
		Schedules: []Schedule{
			{Job: &countingJob{name: "payment-reconcile"}},
			{Job: &countingJob{name: "payment-reconcile"}},
		},
	})
	if err == nil {
		t.Fatal("expected duplicate job names to be rejected")
	}
}
