package main

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"csreply-backend/internal/shared/telemetry"
	"csreply-backend/internal/workflow"
)

type fakeRunner struct {
	mu     sync.Mutex
	limits []int
	err    error
}

func (f *fakeRunner) RunBatch(ctx context.Context, limit int) (workflow.BatchReport, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.limits = append(f.limits, limit)
	if f.err != nil {
		return workflow.BatchReport{}, f.err
	}
	return workflow.BatchReport{RunID: "run-1", Counters: workflow.BatchCounters{Collected: 1}}, nil
}

func (f *fakeRunner) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.limits)
}

func TestSweepSkipsCancelledContext(t *testing.T) {
	runner := &fakeRunner{}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	sweep(ctx, runner, 10)

	if runner.calls() != 0 {
		t.Fatalf("expected no batch after cancel, got %d", runner.calls())
	}
}

func TestSweepSurvivesBatchError(t *testing.T) {
	restore := telemetry.SetOutput(io.Discard)
	defer restore()
	runner := &fakeRunner{err: errors.New("db down")}

	sweep(context.Background(), runner, 25)

	if runner.calls() != 1 || runner.limits[0] != 25 {
		t.Fatalf("expected one batch with limit 25, got %v", runner.limits)
	}
}

func TestSweepLoopRunsImmediatelyAndStops(t *testing.T) {
	restore := telemetry.SetOutput(io.Discard)
	defer restore()
	runner := &fakeRunner{}
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		sweepLoop(ctx, runner, time.Hour, 5)
		close(done)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for runner.calls() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	cancel()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatalf("sweep loop did not stop")
	}
	if runner.calls() != 1 {
		t.Fatalf("expected exactly one sweep, got %d", runner.calls())
	}
}
