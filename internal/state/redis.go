package state

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultStateTTL = 7 * 24 * time.Hour

// Store abstracts conversation-state persistence for the router.
type Store interface {
	GetState(ctx context.Context, conversationID string) (ConversationState, error)
	UpdateState(ctx context.Context, conversationID string, patch Patch) (ConversationState, error)
	// TryRegisterReply is the dedup gate: it atomically accepts the reply only
	// when it differs from the last registered reply for the conversation.
	TryRegisterReply(ctx context.Context, conversationID, replyText string) (bool, error)
	// TryMarkCommitted atomically sets the commit markers, or reports the
	// already-committed appointment id when a previous turn won the race.
	TryMarkCommitted(ctx context.Context, conversationID, appointmentID string, at time.Time) (committed bool, existingID string, err error)
	// ClearCommit removes the commit markers so a brand-new scheduling flow is
	// not short-circuited to a previous appointment.
	ClearCommit(ctx context.Context, conversationID string) error
}

// RedisStore keeps ConversationState documents in Redis. The dedup gate and
// the commit marker are small Lua scripts so concurrent turns for the same
// conversation cannot both succeed.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

var _ Store = (*RedisStore)(nil)

// NewRedisStore builds a store over the given client.
func NewRedisStore(client *redis.Client) *RedisStore {
	if client == nil {
		panic("state: redis client cannot be nil")
	}
	return &RedisStore{client: client, ttl: defaultStateTTL}
}

func stateKey(conversationID string) string {
	return fmt.Sprintf("conv_state:%s", conversationID)
}

func replyKey(conversationID string) string {
	return fmt.Sprintf("conv_reply:%s", conversationID)
}

func commitKey(conversationID string) string {
	return fmt.Sprintf("conv_commit:%s", conversationID)
}

// GetState loads the state document, returning the fresh-conversation state
// when none exists yet.
func (s *RedisStore) GetState(ctx context.Context, conversationID string) (ConversationState, error) {
	data, err := s.client.Get(ctx, stateKey(conversationID)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return New(), nil
		}
		return ConversationState{}, fmt.Errorf("state: failed to load: %w", err)
	}

	var st ConversationState
	if err := json.Unmarshal(data, &st); err != nil {
		return ConversationState{}, fmt.Errorf("state: failed to decode: %w", err)
	}
	if st.Status == "" {
		st.Status = StatusAIActive
	}
	return st, nil
}

// UpdateState applies the patch through the transition function and persists
// the result.
func (s *RedisStore) UpdateState(ctx context.Context, conversationID string, patch Patch) (ConversationState, error) {
	old, err := s.GetState(ctx, conversationID)
	if err != nil {
		return ConversationState{}, err
	}

	next := Apply(old, patch)
	data, err := json.Marshal(next)
	if err != nil {
		return ConversationState{}, fmt.Errorf("state: failed to encode: %w", err)
	}
	if err := s.client.Set(ctx, stateKey(conversationID), data, s.ttl).Err(); err != nil {
		return ConversationState{}, fmt.Errorf("state: failed to persist: %w", err)
	}
	return next, nil
}

// registerReplyScript compares the stored reply hash and stores the new one
// only when it differs. Returns 1 on accept, 0 on duplicate.
var registerReplyScript = redis.NewScript(`
local current = redis.call('GET', KEYS[1])
if current == ARGV[1] then
	return 0
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
return 1
`)

// TryRegisterReply accepts the reply text iff it differs from the last one
// registered for the conversation. The compare-and-set runs server-side, so
// overlapping turns (webhook retries, duplicate timers) cannot both win.
func (s *RedisStore) TryRegisterReply(ctx context.Context, conversationID, replyText string) (bool, error) {
	sum := sha256.Sum256([]byte(replyText))
	hash := hex.EncodeToString(sum[:])

	res, err := registerReplyScript.Run(ctx, s.client,
		[]string{replyKey(conversationID)},
		hash, s.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("state: dedup gate failed: %w", err)
	}
	return res == 1, nil
}

// markCommittedScript writes the appointment id once; later calls get the
// winner's id back.
var markCommittedScript = redis.NewScript(`
local existing = redis.call('GET', KEYS[1])
if existing then
	return {0, existing}
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
return {1, ARGV[1]}
`)

// TryMarkCommitted sets the commit markers exactly once per conversation flow.
// On success it also folds the markers into the state document; on a lost race
// it returns the existing appointment id.
func (s *RedisStore) TryMarkCommitted(ctx context.Context, conversationID, appointmentID string, at time.Time) (bool, string, error) {
	res, err := markCommittedScript.Run(ctx, s.client,
		[]string{commitKey(conversationID)},
		appointmentID, s.ttl.Milliseconds(),
	).Slice()
	if err != nil {
		return false, "", fmt.Errorf("state: commit marker failed: %w", err)
	}
	if len(res) != 2 {
		return false, "", fmt.Errorf("state: commit marker returned %d values", len(res))
	}

	won, _ := res[0].(int64)
	winnerID, _ := res[1].(string)

	if won == 1 {
		if _, err := s.UpdateState(ctx, conversationID, Patch{
			Commit: &CommitMark{At: at, AppointmentID: appointmentID},
		}); err != nil {
			return true, appointmentID, err
		}
		return true, appointmentID, nil
	}
	return false, winnerID, nil
}

// ClearCommit deletes the commit CAS key, then wipes the markers from the
// state document.
func (s *RedisStore) ClearCommit(ctx context.Context, conversationID string) error {
	if err := s.client.Del(ctx, commitKey(conversationID)).Err(); err != nil {
		return fmt.Errorf("state: failed to clear commit marker: %w", err)
	}
	if _, err := s.UpdateState(ctx, conversationID, Patch{ClearCommit: true}); err != nil {
		return err
	}
	return nil
}
