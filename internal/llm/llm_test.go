package llm

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/salonflow/alexis-engine/internal/catalog"
)

type stubClient struct {
	resp  Response
	err   error
	calls int
	last  Request
}

func (s *stubClient) Complete(_ context.Context, req Request) (Response, error) {
	s.calls++
	s.last = req
	return s.resp, s.err
}

func TestFallbackClientUsesSecondaryOnPrimaryFailure(t *testing.T) {
	primary := &stubClient{err: errors.New("rate limited")}
	secondary := &stubClient{resp: Response{Text: "ok"}}
	c := NewFallbackClient(primary, secondary, nil)

	resp, err := c.Complete(context.Background(), Request{})
	if err != nil {
		t.Fatalf("expected fallback success, got %v", err)
	}
	if resp.Text != "ok" {
		t.Fatalf("resp = %q", resp.Text)
	}
	if primary.calls != 1 || secondary.calls != 1 {
		t.Fatalf("calls = %d/%d", primary.calls, secondary.calls)
	}
}

func TestFallbackClientSkipsSecondaryOnSuccess(t *testing.T) {
	primary := &stubClient{resp: Response{Text: "primary"}}
	secondary := &stubClient{resp: Response{Text: "secondary"}}
	c := NewFallbackClient(primary, secondary, nil)

	resp, _ := c.Complete(context.Background(), Request{})
	if resp.Text != "primary" || secondary.calls != 0 {
		t.Fatalf("resp = %q, secondary calls = %d", resp.Text, secondary.calls)
	}
}

func TestFallbackClientWithoutSecondaryReturnsError(t *testing.T) {
	primary := &stubClient{err: errors.New("down")}
	c := NewFallbackClient(primary, nil, nil)

	if _, err := c.Complete(context.Background(), Request{}); err == nil {
		t.Fatalf("expected primary error to surface")
	}
}

func testSnapshot() catalog.Snapshot {
	return catalog.Snapshot{
		Salon: catalog.Salon{ID: "salon-1", Name: "Studio Bella"},
		Services: []catalog.Service{
			{ID: "svc-corte", Name: "Corte", DurationMin: 45, PriceCents: 8000},
		},
		Professionals: []catalog.Professional{{ID: "pro-1", Name: "Ana"}},
	}
}

func TestGeneratorGroundsPromptOnCatalog(t *testing.T) {
	stub := &stubClient{resp: Response{Text: "Oi! Como posso ajudar?"}}
	g := NewGenerator(stub, nil)

	got, err := g.Generate(context.Background(), testSnapshot(), nil, "oi")
	if err != nil {
		t.Fatalf("Generate errored: %v", err)
	}
	if got != "Oi! Como posso ajudar?" {
		t.Fatalf("reply = %q", got)
	}

	sys := stub.last.System
	for _, want := range []string{"Studio Bella", "Corte", "R$ 80,00", "Ana"} {
		if !strings.Contains(sys, want) {
			t.Fatalf("system prompt missing %q:\n%s", want, sys)
		}
	}
	if len(stub.last.Messages) != 1 || stub.last.Messages[0].Content != "oi" {
		t.Fatalf("messages = %+v", stub.last.Messages)
	}
}

func TestGeneratorFallsBackOnError(t *testing.T) {
	stub := &stubClient{err: errors.New("boom")}
	g := NewGenerator(stub, nil)

	got, err := g.Generate(context.Background(), testSnapshot(), nil, "oi")
	if err == nil {
		t.Fatalf("expected error to surface alongside fallback text")
	}
	if got != FallbackReply {
		t.Fatalf("reply = %q", got)
	}
}

func TestGeneratorFallsBackOnEmptyReply(t *testing.T) {
	stub := &stubClient{resp: Response{Text: "   "}}
	g := NewGenerator(stub, nil)

	got, err := g.Generate(context.Background(), testSnapshot(), nil, "oi")
	if err != nil {
		t.Fatalf("empty reply is not an error: %v", err)
	}
	if got != FallbackReply {
		t.Fatalf("reply = %q", got)
	}
}

func TestGeneratorTrimsHistory(t *testing.T) {
	stub := &stubClient{resp: Response{Text: "ok"}}
	g := NewGenerator(stub, nil)

	history := make([]ChatMessage, 30)
	for i := range history {
		history[i] = ChatMessage{Role: ChatRoleUser, Content: "msg"}
	}
	if _, err := g.Generate(context.Background(), testSnapshot(), history, "oi"); err != nil {
		t.Fatalf("Generate errored: %v", err)
	}
	if got := len(stub.last.Messages); got != maxHistoryMessages+1 {
		t.Fatalf("messages sent = %d, want %d", got, maxHistoryMessages+1)
	}
}
