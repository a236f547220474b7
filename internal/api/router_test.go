package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/salonflow/alexis-engine/internal/engine"
)

type stubEngine struct {
	res engine.TurnResult
	err error

	gotSalonID string
	gotPhone   string
	gotText    string
	gotSender  engine.SenderType
}

func (s *stubEngine) ProcessMessage(_ context.Context, salonID, clientPhone, text string, sender engine.SenderType) (engine.TurnResult, error) {
	s.gotSalonID = salonID
	s.gotPhone = clientPhone
	s.gotText = text
	s.gotSender = sender
	return s.res, s.err
}

func postWebhook(t *testing.T, h http.Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/webhook/whatsapp", strings.NewReader(body))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestWebhookProcessesTurn(t *testing.T) {
	eng := &stubEngine{res: engine.TurnResult{Reply: "Oi! Como posso ajudar?", Replied: true}}
	h := New(&Config{Engine: eng})

	rec := postWebhook(t, h, `{"salonId":"salon-1","clientPhone":"5511988887777","text":"oi","sender":"client"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		Reply   string `json:"reply"`
		Replied bool   `json:"replied"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if !resp.Replied || resp.Reply != "Oi! Como posso ajudar?" {
		t.Fatalf("response = %+v", resp)
	}
	if eng.gotSalonID != "salon-1" || eng.gotSender != engine.SenderClient {
		t.Fatalf("engine call = %+v", eng)
	}
}

func TestWebhookPassesAgentSender(t *testing.T) {
	eng := &stubEngine{res: engine.TurnResult{Replied: true, Reply: "ok"}}
	h := New(&Config{Engine: eng})

	rec := postWebhook(t, h, `{"salonId":"salon-1","clientPhone":"5511","text":"#eu","sender":"agent"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if eng.gotSender != engine.SenderAgent {
		t.Fatalf("sender = %q", eng.gotSender)
	}
}

func TestWebhookRejectsIncompletePayload(t *testing.T) {
	h := New(&Config{Engine: &stubEngine{}})

	rec := postWebhook(t, h, `{"salonId":"salon-1"}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}

	rec = postWebhook(t, h, `not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestWebhookReportsSuppressedTurns(t *testing.T) {
	eng := &stubEngine{res: engine.TurnResult{Suppressed: engine.SuppressDeferred}}
	h := New(&Config{Engine: eng})

	rec := postWebhook(t, h, `{"salonId":"salon-1","clientPhone":"5511","text":"quero"}`)
	var resp struct {
		Replied    bool   `json:"replied"`
		Suppressed string `json:"suppressed"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp.Replied || resp.Suppressed != engine.SuppressDeferred {
		t.Fatalf("response = %+v", resp)
	}
}

func TestHealthz(t *testing.T) {
	h := New(&Config{Engine: &stubEngine{}})
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
}
