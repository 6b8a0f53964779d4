package workflow

import (
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"csreply-backend/internal/generator"
	"csreply-backend/internal/inquiries"
	"csreply-backend/internal/responses"
	"csreply-backend/internal/rules"
	"csreply-backend/internal/shared/lock"
	"csreply-backend/internal/shared/telemetry"
	"csreply-backend/internal/submitter"
)

const passingReply = "안녕하세요 고객님, 문의해 주셔서 감사합니다. 주문하신 상품의 배송 현황을 확인해 보니 현재 순차적으로 출고 및 배송이 진행되고 있습니다. 추가로 궁금하신 점은 언제든 문의 주시면 안내드리겠습니다. 감사합니다."

const (
	shippingText  = "배송 언제 도착하나요"
	highRiskText  = "변호사 통해서 소송 진행하겠습니다"
	emptyText     = "   "
	shortReply    = "네 알겠어요"
	testOperator  = "dev:operator-1"
	rejectionNote = "tone is off"
)

type fakeGenerator struct {
	mu     sync.Mutex
	result generator.GenerationResult
	calls  int
	onCall func()
}

func (g *fakeGenerator) Generate(ctx context.Context, inquiry inquiries.Inquiry) generator.GenerationResult {
	g.mu.Lock()
	g.calls++
	hook := g.onCall
	g.mu.Unlock()
	if hook != nil {
		hook()
	}
	return g.result
}

func replyWith(text string, confidence float64) *fakeGenerator {
	return &fakeGenerator{result: generator.GenerationResult{OK: true, Text: text, Confidence: confidence, Method: generator.MethodLLM}}
}

type fakeSubmitter struct {
	mu      sync.Mutex
	results []submitter.Result
	calls   int
}

func (s *fakeSubmitter) Submit(ctx context.Context, resp responses.Response, inquiry inquiries.Inquiry) submitter.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	i := s.calls
	s.calls++
	if i < len(s.results) {
		return s.results[i]
	}
	return submitter.Result{Success: true}
}

type testEnv struct {
	svc       *Service
	inquiries *inquiries.MemoryRepo
	responses *responses.MemoryRepo
	submitter *fakeSubmitter
	clock     time.Time
}

func newTestEnv(t *testing.T, gen generator.Generator) *testEnv {
	t.Helper()
	restore := telemetry.SetOutput(io.Discard)
	t.Cleanup(restore)

	if gen == nil {
		tmpl, err := generator.NewTemplateGenerator()
		if err != nil {
			t.Fatalf("template generator: %v", err)
		}
		gen = tmpl
	}
	env := &testEnv{
		inquiries: inquiries.NewMemoryRepo(),
		responses: responses.NewMemoryRepo(),
		submitter: &fakeSubmitter{},
		clock:     time.Now().UTC().Add(-time.Hour),
	}
	env.svc = &Service{
		Inquiries: env.inquiries,
		Responses: env.responses,
		Rules:     rules.NewStore(rules.Default()),
		Generator: gen,
		Submitter: env.submitter,
		Locker:    lock.NewMemoryLocker(),
	}
	return env
}

// addInquiry stores a pending inquiry. Each call is received one second after
// the previous one so ListPending order is deterministic.
func (e *testEnv) addInquiry(t *testing.T, id, text string) inquiries.Inquiry {
	t.Helper()
	e.clock = e.clock.Add(time.Second)
	inq := inquiries.Inquiry{
		ID:         id,
		Source:     "manual",
		Text:       text,
		Keywords:   []string{},
		Status:     inquiries.StatusPending,
		ReceivedAt: e.clock,
		Version:    1,
		CreatedAt:  e.clock,
		UpdatedAt:  e.clock,
	}
	if err := e.inquiries.Create(context.Background(), inq); err != nil {
		t.Fatalf("create inquiry: %v", err)
	}
	return inq
}

// draft analyzes and generates, returning the new draft response.
func (e *testEnv) draft(t *testing.T, id, text string) responses.Response {
	t.Helper()
	e.addInquiry(t, id, text)
	if _, err := e.svc.AnalyzeInquiry(context.Background(), id); err != nil {
		t.Fatalf("analyze: %v", err)
	}
	resp, created, err := e.svc.GenerateResponse(context.Background(), id)
	if err != nil || !created {
		t.Fatalf("generate: created=%v err=%v", created, err)
	}
	return resp
}

func (e *testEnv) statuses(t *testing.T, responseID string) []string {
	t.Helper()
	events, err := e.svc.ListEvents(context.Background(), responseID)
	if err != nil {
		t.Fatalf("list events: %v", err)
	}
	out := make([]string, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.FromStatus+"->"+ev.ToStatus)
	}
	return out
}
