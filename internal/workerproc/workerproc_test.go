package workerproc

import (
	"context"
	"errors"
	"testing"

	"csreply-backend/internal/queue"
	"csreply-backend/internal/workflow"
)

type fakeProcessor struct {
	out   workflow.Outcome
	err   error
	gotID string
}

func (f *fakeProcessor) ProcessInquiry(ctx context.Context, inquiryID string) (workflow.Outcome, error) {
	f.gotID = inquiryID
	return f.out, f.err
}

func TestHandleMessageRunsPipeline(t *testing.T) {
	proc := &fakeProcessor{out: workflow.Outcome{InquiryID: "inq-1", AutoApproved: true}}
	out, err := HandleMessage(context.Background(), proc, queue.Message{InquiryID: " inq-1 ", RequestID: "req-1"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if proc.gotID != "inq-1" || !out.AutoApproved {
		t.Fatalf("unexpected call: id=%q out=%+v", proc.gotID, out)
	}
}

func TestHandleMessageMissingID(t *testing.T) {
	proc := &fakeProcessor{}
	_, err := HandleMessage(context.Background(), proc, queue.Message{RequestID: "req-2"})
	var missing ErrMissingInquiryID
	if !errors.As(err, &missing) || missing.RequestID != "req-2" {
		t.Fatalf("expected ErrMissingInquiryID, got %v", err)
	}
	if proc.gotID != "" {
		t.Fatalf("processor must not run")
	}
}

func TestHandleMessageWrapsProcessError(t *testing.T) {
	boom := errors.New("db down")
	proc := &fakeProcessor{out: workflow.Outcome{Retryable: true}, err: boom}
	_, err := HandleMessage(context.Background(), proc, queue.Message{InquiryID: "inq-3"})
	var procErr ErrProcess
	if !errors.As(err, &procErr) {
		t.Fatalf("expected ErrProcess, got %v", err)
	}
	if !procErr.Retryable || procErr.InquiryID != "inq-3" || !errors.Is(err, boom) {
		t.Fatalf("unexpected error: %+v", procErr)
	}
}

func TestFieldsOmitsEmptyRequestID(t *testing.T) {
	fields := Fields(queue.Message{InquiryID: "inq-1"})
	if _, ok := fields["request_id"]; ok {
		t.Fatalf("request_id should be omitted: %+v", fields)
	}
	if fields["inquiry_id"] != "inq-1" {
		t.Fatalf("unexpected fields: %+v", fields)
	}
}
