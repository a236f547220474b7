package state

import (
	"context"
	"sync"
	"testing"
	"time"

	miniredis "github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
)

func newTestStore(t *testing.T) *RedisStore {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewRedisStore(client)
}

func TestGetStateFreshConversation(t *testing.T) {
	s := newTestStore(t)

	st, err := s.GetState(context.Background(), "conv-1")
	if err != nil {
		t.Fatalf("GetState errored: %v", err)
	}
	if st.Status != StatusAIActive || st.ActiveSkill != SkillNone || st.Step != StepNone {
		t.Fatalf("unexpected fresh state: %+v", st)
	}
}

func TestUpdateStateRoundTrip(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.UpdateState(ctx, "conv-1", Patch{
		ActiveSkill: SkillPtr(SkillScheduling),
		Step:        StepPtr(StepAwaitingService),
		Slots:       &Slots{ServiceID: "svc-1"},
	})
	if err != nil {
		t.Fatalf("UpdateState errored: %v", err)
	}

	st, err := s.GetState(ctx, "conv-1")
	if err != nil {
		t.Fatalf("GetState errored: %v", err)
	}
	if st.ActiveSkill != SkillScheduling || st.Step != StepAwaitingService || st.Slots.ServiceID != "svc-1" {
		t.Fatalf("state did not round-trip: %+v", st)
	}
}

func TestTryRegisterReplyDedup(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	ok, err := s.TryRegisterReply(ctx, "conv-1", "Olá! Como posso ajudar?")
	if err != nil || !ok {
		t.Fatalf("first registration = %v, %v", ok, err)
	}

	ok, err = s.TryRegisterReply(ctx, "conv-1", "Olá! Como posso ajudar?")
	if err != nil {
		t.Fatalf("second registration errored: %v", err)
	}
	if ok {
		t.Fatalf("identical reply must be rejected")
	}

	// A different reply is accepted again.
	ok, err = s.TryRegisterReply(ctx, "conv-1", "Seu horário está confirmado.")
	if err != nil || !ok {
		t.Fatalf("different reply = %v, %v", ok, err)
	}

	// Other conversations are unaffected.
	ok, err = s.TryRegisterReply(ctx, "conv-2", "Olá! Como posso ajudar?")
	if err != nil || !ok {
		t.Fatalf("other conversation = %v, %v", ok, err)
	}
}

func TestTryRegisterReplyConcurrent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	const callers = 16
	var wg sync.WaitGroup
	accepted := make(chan bool, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := s.TryRegisterReply(ctx, "conv-1", "mesma resposta")
			if err != nil {
				t.Errorf("concurrent registration errored: %v", err)
				return
			}
			accepted <- ok
		}()
	}
	wg.Wait()
	close(accepted)

	wins := 0
	for ok := range accepted {
		if ok {
			wins++
		}
	}
	if wins != 1 {
		t.Fatalf("exactly one caller must win the dedup gate, got %d", wins)
	}
}

func TestTryMarkCommittedIdempotent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	now := time.Now().UTC()

	won, id, err := s.TryMarkCommitted(ctx, "conv-1", "apt-1", now)
	if err != nil || !won || id != "apt-1" {
		t.Fatalf("first commit = %v, %q, %v", won, id, err)
	}

	st, err := s.GetState(ctx, "conv-1")
	if err != nil || !st.Committed() || st.SchedulingAppointmentID != "apt-1" {
		t.Fatalf("commit markers not folded into state: %+v, %v", st, err)
	}

	// A retry with a different candidate id must return the original winner.
	won, id, err = s.TryMarkCommitted(ctx, "conv-1", "apt-2", now)
	if err != nil {
		t.Fatalf("second commit errored: %v", err)
	}
	if won || id != "apt-1" {
		t.Fatalf("retry should lose and return apt-1, got won=%v id=%q", won, id)
	}
}

func TestClearCommitAllowsNewFlow(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if _, _, err := s.TryMarkCommitted(ctx, "conv-1", "apt-1", time.Now()); err != nil {
		t.Fatalf("first commit errored: %v", err)
	}
	if err := s.ClearCommit(ctx, "conv-1"); err != nil {
		t.Fatalf("ClearCommit errored: %v", err)
	}

	st, err := s.GetState(ctx, "conv-1")
	if err != nil || st.Committed() {
		t.Fatalf("state still committed after clear: %+v, %v", st, err)
	}

	// The CAS key is gone too, so a second flow can win with a new id.
	won, id, err := s.TryMarkCommitted(ctx, "conv-1", "apt-2", time.Now())
	if err != nil || !won || id != "apt-2" {
		t.Fatalf("new flow commit = %v, %q, %v", won, id, err)
	}
}
