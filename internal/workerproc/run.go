package workerproc

import (
	"context"
	"errors"
	"sync"
	"time"

	"csreply-backend/internal/queue"
	"csreply-backend/internal/shared/metrics"
	"csreply-backend/internal/shared/telemetry"
)

const (
	defaultReceiveWait     = 5 * time.Second
	defaultShutdownTimeout = 30 * time.Second
	receiveErrorBackoff    = time.Second
)

// Options tune the consumer loop.
type Options struct {
	Concurrency     int
	ReceiveWait     time.Duration
	ShutdownTimeout time.Duration
}

// Run pulls messages until ctx is cancelled, handling up to Concurrency at a
// time. In-flight messages get ShutdownTimeout to finish after cancellation;
// they run on a context that is not cancelled with ctx.
func Run(ctx context.Context, consumer queue.Consumer, processor Processor, opts Options) {
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	if opts.ReceiveWait <= 0 {
		opts.ReceiveWait = defaultReceiveWait
	}
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = defaultShutdownTimeout
	}

	sem := make(chan struct{}, opts.Concurrency)
	work := context.WithoutCancel(ctx)
	var wg sync.WaitGroup

	telemetry.Info("worker.started", map[string]any{"concurrency": opts.Concurrency})

pollLoop:
	for {
		select {
		case <-ctx.Done():
			break pollLoop
		case sem <- struct{}{}:
		}

		msg, ok, err := consumer.Receive(ctx, opts.ReceiveWait)
		if err != nil {
			<-sem
			if errors.Is(err, queue.ErrClosed) || ctx.Err() != nil {
				break pollLoop
			}
			telemetry.Error("worker.receive_failed", map[string]any{"error": err.Error()})
			select {
			case <-ctx.Done():
				break pollLoop
			case <-time.After(receiveErrorBackoff):
			}
			continue
		}
		if !ok {
			<-sem
			continue
		}

		metrics.IncJobsReceived()
		wg.Add(1)
		go func(m queue.Message) {
			defer wg.Done()
			defer func() { <-sem }()
			handle(work, processor, m)
		}(msg)
	}

	telemetry.Info("worker.draining", map[string]any{"timeout": opts.ShutdownTimeout.String()})
	waitDone := make(chan struct{})
	go func() {
		wg.Wait()
		close(waitDone)
	}()
	select {
	case <-waitDone:
	case <-time.After(opts.ShutdownTimeout):
		telemetry.Warn("worker.shutdown_timeout", map[string]any{"timeout": opts.ShutdownTimeout.String()})
	}
}

func handle(ctx context.Context, processor Processor, msg queue.Message) {
	fields := Fields(msg)
	telemetry.Info("worker.inquiry.received", fields)

	out, err := HandleMessage(ctx, processor, msg)
	if err != nil {
		fields["error"] = err.Error()
		var missing ErrMissingInquiryID
		if errors.As(err, &missing) {
			metrics.IncJobsDropped()
			telemetry.Error("worker.inquiry.missing_id", fields)
			return
		}
		var procErr ErrProcess
		if errors.As(err, &procErr) {
			fields["retryable"] = procErr.Retryable
		}
		metrics.IncJobsFailed()
		telemetry.Error("worker.inquiry.failed", fields)
		return
	}

	fields["stage"] = out.Stage
	fields["inquiry_status"] = out.InquiryStatus
	if out.ResponseStatus != "" {
		fields["response_status"] = out.ResponseStatus
	}
	if out.Failed() {
		fields["error_code"] = out.ErrorCode
	}
	metrics.IncJobsCompleted()
	telemetry.Info("worker.inquiry.completed", fields)
}
