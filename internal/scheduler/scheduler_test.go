package scheduler

import (
	"context"
	"testing"

	"loan-intake-go/internal/config"
)

// dummyRunner implements IngestRunner but does nothing
type dummyRunner struct {
	calls int
}

func (d *dummyRunner) IngestBatch(ctx context.Context, rescan bool) (int, error) {
	d.calls++
	return 0, nil
}

func TestSchedulerRestart(t *testing.T) {
	cfg := &config.SchedulerConfig{IntervalMinutes: 60}
	sched := New(cfg, &dummyRunner{})

	if err := sched.Start(); err != nil {
		t.Fatalf("first start failed: %v", err)
	}
	if !sched.IsRunning() {
		t.Fatalf("scheduler should be running after Start")
	}
	if err := sched.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}
	if sched.IsRunning() {
		t.Fatalf("scheduler should not be running after Stop")
	}
	if err := sched.Start(); err != nil {
		t.Fatalf("second start failed: %v", err)
	}
	if !sched.IsRunning() {
		t.Fatalf("scheduler should be running after second Start")
	}
	// context should be active
	if sched.ctx == nil || sched.ctx.Err() != nil {
		t.Fatalf("scheduler context should be active after restart")
	}
	sched.Stop()
}

func TestSchedulerDoubleStart(t *testing.T) {
	cfg := &config.SchedulerConfig{IntervalMinutes: 60}
	sched := New(cfg, &dummyRunner{})

	if err := sched.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := sched.Start(); err == nil {
		t.Fatalf("second Start on a running scheduler should fail")
	}
	sched.Stop()
}

func TestSchedulerRunOnce(t *testing.T) {
	cfg := &config.SchedulerConfig{IntervalMinutes: 60}
	runner := &dummyRunner{}
	sched := New(cfg, runner)

	if err := sched.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	sched.RunOnce()
	sched.Wait()
	if runner.calls != 1 {
		t.Fatalf("expected 1 ingestion call, got %d", runner.calls)
	}
	sched.Stop()
}

func TestSchedulerNextRunWhenStopped(t *testing.T) {
	cfg := &config.SchedulerConfig{IntervalMinutes: 60}
	sched := New(cfg, &dummyRunner{})

	if !sched.GetNextRun().IsZero() {
		t.Fatalf("next run should be zero for a stopped scheduler")
	}
	if !sched.GetLastRun().IsZero() {
		t.Fatalf("last run should be zero for a stopped scheduler")
	}
}
