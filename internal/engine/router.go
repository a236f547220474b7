// Package engine orchestrates one message turn: it loads conversation state,
// walks the priority tiers in strict order, calls the collaborators and
// decides the final action, guaranteeing no duplicate replies and no
// double-booked appointments.
package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/salonflow/alexis-engine/internal/booking"
	"github.com/salonflow/alexis-engine/internal/catalog"
	"github.com/salonflow/alexis-engine/internal/dates"
	"github.com/salonflow/alexis-engine/internal/debounce"
	"github.com/salonflow/alexis-engine/internal/guard"
	"github.com/salonflow/alexis-engine/internal/intent"
	"github.com/salonflow/alexis-engine/internal/lexicon"
	"github.com/salonflow/alexis-engine/internal/llm"
	"github.com/salonflow/alexis-engine/internal/observability/metrics"
	"github.com/salonflow/alexis-engine/internal/scheduling"
	"github.com/salonflow/alexis-engine/internal/state"
	"github.com/salonflow/alexis-engine/internal/textmatch"
	"github.com/salonflow/alexis-engine/internal/transcript"
	"github.com/salonflow/alexis-engine/pkg/logging"
)

// SenderType says which side of the conversation a message came from.
type SenderType string

const (
	SenderClient SenderType = "client"
	// SenderAgent is salon staff typing from the business number; their
	// messages carry control commands and are never answered by the assistant.
	SenderAgent SenderType = "agent"
)

// Suppression reasons for turns that produce no outbound message.
const (
	SuppressDeferred    = "deferred"
	SuppressHumanActive = "human_active"
	SuppressDedup       = "dedup"
	SuppressHumanNote   = "human_note"
)

// TurnResult is the outcome of one processed message.
type TurnResult struct {
	ConversationID string
	Reply          string
	Replied        bool
	// Suppressed names why no reply was sent; empty when Replied is true.
	Suppressed    string
	Path          string
	Intent        intent.Label
	AppointmentID string
}

// conversationLog is the transcript surface the router needs.
type conversationLog interface {
	EnsureConversation(ctx context.Context, salonID, clientPhone string) (transcript.Conversation, error)
	SetStatus(ctx context.Context, conversationID string, status state.Status) error
	Append(ctx context.Context, msg transcript.Message) error
	History(ctx context.Context, conversationID string, limit int) ([]transcript.Message, error)
}

// replyGenerator is the LLM surface the router needs.
type replyGenerator interface {
	Generate(ctx context.Context, snap catalog.Snapshot, history []llm.ChatMessage, userText string) (string, error)
}

// committer runs the idempotent booking commit.
type committer interface {
	Commit(ctx context.Context, conversationID, salonID, clientPhone string, st state.ConversationState, snap catalog.Snapshot) (booking.Outcome, error)
}

// Deps wires the router's collaborators. Store, Transcripts, Catalog, Skill,
// Aggregator, Committer and Generator are required.
type Deps struct {
	Store       state.Store
	Transcripts conversationLog
	Catalog     catalog.Collector
	Aggregator  *debounce.Aggregator
	Skill       *scheduling.Skill
	Dates       *dates.Resolver
	Lexicon     *lexicon.Resolver
	Intents     *intent.Classifier
	Generator   replyGenerator
	Committer   committer
	Metrics     *metrics.TurnMetrics
	Logger      *logging.Logger

	// GreetingCooldown is how long a greeting suppresses the next one.
	GreetingCooldown time.Duration
}

// Router is the single entry point for inbound messages.
type Router struct {
	store       state.Store
	transcripts conversationLog
	catalog     catalog.Collector
	agg         *debounce.Aggregator
	skill       *scheduling.Skill
	dates       *dates.Resolver
	lex         *lexicon.Resolver
	intents     *intent.Classifier
	gen         replyGenerator
	committer   committer
	metrics     *metrics.TurnMetrics
	logger      *logging.Logger

	greetingCooldown time.Duration
}

// NewRouter builds the router, panicking on missing required collaborators.
func NewRouter(d Deps) *Router {
	if d.Store == nil {
		panic("engine: state store cannot be nil")
	}
	if d.Transcripts == nil {
		panic("engine: transcript log cannot be nil")
	}
	if d.Catalog == nil {
		panic("engine: catalog collector cannot be nil")
	}
	if d.Aggregator == nil {
		panic("engine: debounce aggregator cannot be nil")
	}
	if d.Skill == nil {
		panic("engine: scheduling skill cannot be nil")
	}
	if d.Generator == nil {
		panic("engine: reply generator cannot be nil")
	}
	if d.Committer == nil {
		panic("engine: booking committer cannot be nil")
	}
	if d.Dates == nil {
		d.Dates = dates.NewResolver()
	}
	if d.Lexicon == nil {
		d.Lexicon = lexicon.NewResolver(lexicon.DefaultEntries())
	}
	if d.Intents == nil {
		d.Intents = intent.NewClassifier()
	}
	if d.Logger == nil {
		d.Logger = logging.Default()
	}
	if d.GreetingCooldown <= 0 {
		d.GreetingCooldown = 12 * time.Hour
	}
	return &Router{
		store:            d.Store,
		transcripts:      d.Transcripts,
		catalog:          d.Catalog,
		agg:              d.Aggregator,
		skill:            d.Skill,
		dates:            d.Dates,
		lex:              d.Lexicon,
		intents:          d.Intents,
		gen:              d.Generator,
		committer:        d.Committer,
		metrics:          d.Metrics,
		logger:           d.Logger,
		greetingCooldown: d.GreetingCooldown,
	}
}

// ProcessMessage handles one inbound message end to end. The priority tiers
// run in a fixed order and the first one that claims the turn wins; every
// user-visible reply passes the dedup gate before it counts as sent.
func (r *Router) ProcessMessage(ctx context.Context, salonID, clientPhone, text string, sender SenderType) (TurnResult, error) {
	started := time.Now()

	conv, err := r.transcripts.EnsureConversation(ctx, salonID, clientPhone)
	if err != nil {
		return TurnResult{}, fmt.Errorf("engine: ensure conversation: %w", err)
	}
	convID := conv.ConversationID
	res := TurnResult{ConversationID: convID}

	// Tier 1: agent control commands flip conversation ownership and are
	// never forwarded to the client.
	if sender == SenderAgent {
		return r.handleAgentMessage(ctx, convID, text, started)
	}

	// The inbound fragment is persisted before anything that can fail, so no
	// message is ever lost even when a reply cannot be produced.
	msgIntent := r.intents.Classify(text)
	if err := r.transcripts.Append(ctx, transcript.Message{
		ConversationID: convID,
		Role:           transcript.RoleClient,
		Content:        text,
		Intent:         msgIntent.String(),
	}); err != nil {
		r.logger.Error("inbound message log failed", "conversation_id", convID, "error", err.Error())
	}
	res.Intent = msgIntent

	// Tier 2: a human agent owns the conversation; the assistant stays silent.
	if conv.Status == state.StatusHumanActive {
		r.logger.Info("human-active conversation, assistant muted", "conversation_id", convID)
		return r.finish(res, "", "human_active", SuppressHumanActive, started)
	}

	// Tier 3: debounce. Deferred callers short-circuit to a no-reply outcome;
	// the owner blocks until the burst closes and continues with the merge.
	burst, err := r.agg.Submit(ctx, convID, text)
	if err != nil {
		return res, fmt.Errorf("engine: debounce: %w", err)
	}
	if burst.Deferred {
		return r.finish(res, "", "deferred", SuppressDeferred, started)
	}
	merged := burst.MergedText

	st, err := r.store.GetState(ctx, convID)
	if err != nil {
		return res, fmt.Errorf("engine: load state: %w", err)
	}

	snap, err := r.catalog.Collect(ctx, salonID)
	if err != nil {
		// The turn still completes; matching and grounding degrade to empty.
		r.logger.Error("catalog collect failed", "salon_id", salonID, "error", err.Error())
		snap = catalog.Snapshot{Salon: catalog.Salon{ID: salonID}}
	}

	// Tier 4: an active scheduling flow owns the turn unconditionally. A user
	// mid-booking is never re-routed into general chat by a keyword collision.
	if st.ActiveSkill == state.SkillScheduling && st.Step != state.StepNone {
		reply, apptID := r.runScheduling(ctx, convID, salonID, clientPhone, st, merged, snap, false)
		res.AppointmentID = apptID
		return r.deliver(ctx, res, reply, "fsm", "fsm", started)
	}

	// Tier 5: state was lost (restart, TTL) but the previous assistant message
	// was a service prompt; try to read the reply as a service selection.
	if r.looksLikeServiceSelection(ctx, convID, merged, snap) {
		reply, apptID := r.runScheduling(ctx, convID, salonID, clientPhone, st, merged, snap, true)
		res.AppointmentID = apptID
		return r.deliver(ctx, res, reply, "fsm_resume", "fsm", started)
	}

	// Tier 6: deterministic responders.
	if answer, path := r.answerDeterministic(merged, snap); answer != "" {
		return r.deliver(ctx, res, answer, path, "responder", started)
	}

	// Tier 7: intent branches.
	label := r.intents.Classify(merged)
	res.Intent = label
	switch label {
	case intent.Schedule:
		reply, apptID := r.runScheduling(ctx, convID, salonID, clientPhone, st, merged, snap, true)
		res.AppointmentID = apptID
		return r.deliver(ctx, res, reply, "fsm_start", "fsm", started)
	case intent.AppointmentConfirm:
		return r.deliver(ctx, res, confirmReply(st), "confirm", "responder", started)
	case intent.AppointmentDecline:
		return r.deliver(ctx, res, declineReply(), "decline", "responder", started)
	case intent.ListServices:
		return r.deliver(ctx, res, listServicesReply(snap), "list_services", "responder", started)
	}

	// Tier 8: general free-text path through the content filters and the LLM.
	reply, source := r.generalReply(ctx, convID, st, merged, snap)
	return r.deliver(ctx, res, reply, "general", source, started)
}

func (r *Router) handleAgentMessage(ctx context.Context, convID, text string, started time.Time) (TurnResult, error) {
	res := TurnResult{ConversationID: convID}

	switch guard.ParseCommand(text) {
	case guard.CommandHuman:
		if err := r.transcripts.SetStatus(ctx, convID, state.StatusHumanActive); err != nil {
			return res, fmt.Errorf("engine: human takeover: %w", err)
		}
		r.appendSystem(ctx, convID, "atendimento assumido pela equipe do salão")
		return r.deliver(ctx, res, "Atendimento transferido para você. A assistente ficará em silêncio até o #ia.", "command", "responder", started)
	case guard.CommandAI:
		if err := r.transcripts.SetStatus(ctx, convID, state.StatusAIActive); err != nil {
			return res, fmt.Errorf("engine: ai resume: %w", err)
		}
		r.appendSystem(ctx, convID, "atendimento devolvido para a assistente")
		return r.deliver(ctx, res, "Assistente reativada. Pode deixar que eu sigo daqui!", "command", "responder", started)
	}

	// A plain human reply: log it so the transcript stays complete, no answer.
	if err := r.transcripts.Append(ctx, transcript.Message{
		ConversationID: convID,
		Role:           transcript.RoleHuman,
		Content:        text,
	}); err != nil {
		r.logger.Error("human message log failed", "conversation_id", convID, "error", err.Error())
	}
	return r.finish(res, "", "human_note", SuppressHumanNote, started)
}

// runScheduling advances the FSM by one turn, persists the resulting state and
// commits the booking when the skill signals handover.
func (r *Router) runScheduling(ctx context.Context, convID, salonID, clientPhone string, st state.ConversationState, text string, snap catalog.Snapshot, fresh bool) (reply, appointmentID string) {
	if fresh && st.Committed() {
		// A repeat client starting a brand-new flow; the previous appointment's
		// markers would short-circuit the next commit to the old id.
		if err := r.store.ClearCommit(ctx, convID); err != nil {
			r.logger.Error("commit marker clear failed", "conversation_id", convID, "error", err.Error())
		} else {
			st.SchedulingCommittedAt = nil
			st.SchedulingAppointmentID = ""
		}
	}

	var result scheduling.Result
	if fresh {
		result = r.skill.Start(text, snap)
	} else {
		result = r.skill.HandleTurn(st, text, snap)
	}
	reply = result.Reply

	if result.InterruptionQuery {
		// The skill only produced the resume prompt; the information pipeline
		// answers the actual question and the two are sent together. The
		// deterministic responders go first, then the general filtered LLM path.
		answer, _ := r.answerDeterministic(text, snap)
		if answer == "" {
			answer, _ = r.generalReply(ctx, convID, st, text, snap)
		}
		if answer != "" {
			reply = answer + "\n\n" + result.Reply
		}
	}

	next, err := r.store.UpdateState(ctx, convID, state.Patch{
		ActiveSkill: state.SkillPtr(result.NextSkill),
		Step:        state.StepPtr(result.NextStep),
		Slots:       &result.Slots,
	})
	if err != nil {
		r.logger.Error("state update failed", "conversation_id", convID, "error", err.Error())
		next = state.Apply(st, state.Patch{
			ActiveSkill: state.SkillPtr(result.NextSkill),
			Step:        state.StepPtr(result.NextStep),
			Slots:       &result.Slots,
		})
	}

	if !result.Handover {
		return reply, ""
	}

	outcome, err := r.committer.Commit(ctx, convID, salonID, clientPhone, next, snap)
	switch {
	case err != nil && outcome.Failed:
		// Booking failure degrades to the committer's apology; the flow stays
		// open so a later turn can retry.
		r.metrics.ObserveCommit("failed")
		return outcome.Reply, ""
	case err != nil:
		r.metrics.ObserveCommit("error")
		r.logger.Error("commit failed", "conversation_id", convID, "error", err.Error())
		return reply, ""
	}

	if outcome.AlreadyCommitted {
		r.metrics.ObserveCommit("reused")
	} else {
		r.metrics.ObserveCommit("created")
	}

	// The flow is done; clear the skill so the next turn routes normally.
	if _, err := r.store.UpdateState(ctx, convID, state.Patch{
		ActiveSkill: state.SkillPtr(state.SkillNone),
		Step:        state.StepPtr(state.StepNone),
	}); err != nil {
		r.logger.Error("skill clear failed", "conversation_id", convID, "error", err.Error())
	}
	return outcome.Reply, outcome.AppointmentID
}

// looksLikeServiceSelection is the stale-FSM guard: the previous assistant
// message was a service prompt and the current text names a known service.
// Any internal failure here is "no opinion", never fatal.
func (r *Router) looksLikeServiceSelection(ctx context.Context, convID, text string, snap catalog.Snapshot) bool {
	history, err := r.transcripts.History(ctx, convID, 6)
	if err != nil {
		r.logger.Warn("history lookup for schedule continuation failed", "conversation_id", convID, "error", err.Error())
		return false
	}
	var lastAI string
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == transcript.RoleAI {
			lastAI = history[i].Content
			break
		}
	}
	if lastAI == "" || !strings.Contains(textmatch.Normalize(lastAI), "qual servico voce gostaria de agendar") {
		return false
	}

	candidates := make([]textmatch.Candidate, len(snap.Services))
	for i, svc := range snap.Services {
		candidates[i] = textmatch.Candidate{ID: svc.ID, Name: svc.Name}
	}
	return textmatch.FuzzyMatch(text, candidates) != nil
}

// answerDeterministic runs the tier-6 responders in order: relative-date
// question, lexicon price question, product info. Empty answer means no
// responder claimed the text.
func (r *Router) answerDeterministic(text string, snap catalog.Snapshot) (answer, path string) {
	if da := r.dates.ResolveQuestion(text); da.Matched {
		return da.Response, "date_question"
	}

	match := r.lex.Resolve(text)
	if match == nil || match.NeedsConfirmation {
		return "", ""
	}
	svc := r.serviceForEntry(match.Entry, snap)
	if svc == nil {
		return "", ""
	}

	if asksPrice(text) {
		return fmt.Sprintf("O valor de %s é %s e leva cerca de %d minutos. Quer agendar?",
			svc.Name, catalog.FormatBRL(svc.PriceCents), svc.DurationMin), "price_question"
	}
	if asksProductInfo(text) {
		return fmt.Sprintf("%s dura cerca de %d minutos e custa %s aqui no salão. Posso agendar para você?",
			svc.Name, svc.DurationMin, catalog.FormatBRL(svc.PriceCents)), "product_info"
	}
	return "", ""
}

func (r *Router) serviceForEntry(entry *lexicon.Entry, snap catalog.Snapshot) *catalog.Service {
	candidates := make([]textmatch.Candidate, len(snap.Services))
	for i, svc := range snap.Services {
		candidates[i] = textmatch.Candidate{ID: svc.ID, Name: svc.Name}
	}
	m := textmatch.FuzzyMatch(entry.Canonical, candidates)
	if m == nil {
		return nil
	}
	return snap.ServiceByID(m.ID)
}

// generalReply is tier 8: input filter, context, LLM with fallback, output
// filter, greeting suppression. It always produces some reply text.
func (r *Router) generalReply(ctx context.Context, convID string, st state.ConversationState, text string, snap catalog.Snapshot) (reply, source string) {
	in := guard.FilterInput(text)
	if !in.Allowed {
		r.logger.Warn("inbound message blocked", "conversation_id", convID, "terms", strings.Join(in.BlockedTerms, ","))
		r.appendSystem(ctx, convID, "mensagem bloqueada pelo filtro de entrada: "+strings.Join(in.BlockedTerms, ","))
		return guard.BlockedResponse(), "blocked"
	}

	history, err := r.transcripts.History(ctx, convID, 20)
	if err != nil {
		r.logger.Warn("history load failed", "conversation_id", convID, "error", err.Error())
	}

	reply, err = r.gen.Generate(ctx, snap, toChatHistory(history), text)
	source = "llm"
	if err != nil {
		// Generate already degraded to the curated fallback text.
		source = "fallback"
	}

	out := guard.FilterOutput(reply)
	if !out.Safe {
		r.logger.Warn("outbound reply scrubbed", "conversation_id", convID, "terms", strings.Join(out.BlockedTerms, ","))
		reply = out.Filtered
		if strings.TrimSpace(reply) == "" {
			reply = llm.FallbackReply
			source = "fallback"
		}
	}

	return r.composeGreeting(ctx, convID, st, reply), source
}

var greetingOpeners = []string{"ola!", "ola,", "ola ", "oi!", "oi,", "oi ", "bom dia", "boa tarde", "boa noite"}

// composeGreeting drops a leading greeting when the conversation has already
// been greeted recently, and records the greeting otherwise.
func (r *Router) composeGreeting(ctx context.Context, convID string, st state.ConversationState, reply string) string {
	greeted := st.UserAlreadyGreeted && st.LastGreetingAt != nil && time.Since(*st.LastGreetingAt) < r.greetingCooldown

	if !startsWithGreeting(reply) {
		return reply
	}
	if greeted {
		return stripLeadingGreeting(reply)
	}

	now := time.Now()
	if _, err := r.store.UpdateState(ctx, convID, state.Patch{
		UserAlreadyGreeted: state.BoolPtr(true),
		LastGreetingAt:     &now,
	}); err != nil {
		r.logger.Warn("greeting marker update failed", "conversation_id", convID, "error", err.Error())
	}
	return reply
}

func startsWithGreeting(reply string) bool {
	normalized := textmatch.Normalize(reply)
	for _, opener := range greetingOpeners {
		if strings.HasPrefix(normalized, opener) {
			return true
		}
	}
	return false
}

// stripLeadingGreeting removes the first sentence when it is only a greeting.
func stripLeadingGreeting(reply string) string {
	trimmed := strings.TrimSpace(reply)
	for _, sep := range []string{"! ", ". ", ", "} {
		if idx := strings.Index(trimmed, sep); idx >= 0 && idx < 25 {
			rest := strings.TrimSpace(trimmed[idx+len(sep):])
			if rest != "" {
				return strings.ToUpper(rest[:1]) + rest[1:]
			}
		}
	}
	return trimmed
}

// deliver runs the dedup gate, persists the assistant message and closes the
// turn. A rejected reply means another execution already sent this text; the
// turn ends silently.
func (r *Router) deliver(ctx context.Context, res TurnResult, reply, path, source string, started time.Time) (TurnResult, error) {
	if strings.TrimSpace(reply) == "" {
		return r.finish(res, "", path, "empty", started)
	}

	accepted, err := r.store.TryRegisterReply(ctx, res.ConversationID, reply)
	if err != nil {
		return res, fmt.Errorf("engine: dedup gate: %w", err)
	}
	if !accepted {
		r.logger.Info("duplicate reply suppressed", "conversation_id", res.ConversationID, "path", path)
		return r.finish(res, "", path, SuppressDedup, started)
	}

	if err := r.transcripts.Append(ctx, transcript.Message{
		ConversationID: res.ConversationID,
		Role:           transcript.RoleAI,
		Content:        reply,
		Intent:         res.Intent.String(),
	}); err != nil {
		r.logger.Error("assistant message log failed", "conversation_id", res.ConversationID, "error", err.Error())
	}

	r.metrics.ObserveReply(source)
	res.Reply = reply
	res.Replied = true
	res.Path = path
	r.metrics.ObserveTurn(path, time.Since(started).Seconds())
	return res, nil
}

func (r *Router) finish(res TurnResult, reply, path, reason string, started time.Time) (TurnResult, error) {
	res.Reply = reply
	res.Replied = false
	res.Suppressed = reason
	res.Path = path
	r.metrics.ObserveSuppressed(reason)
	r.metrics.ObserveTurn(path, time.Since(started).Seconds())
	return res, nil
}

func (r *Router) appendSystem(ctx context.Context, convID, content string) {
	if err := r.transcripts.Append(ctx, transcript.Message{
		ConversationID: convID,
		Role:           transcript.RoleSystem,
		Content:        content,
	}); err != nil {
		r.logger.Error("system message log failed", "conversation_id", convID, "error", err.Error())
	}
}

func toChatHistory(history []transcript.Message) []llm.ChatMessage {
	out := make([]llm.ChatMessage, 0, len(history))
	for _, m := range history {
		role := llm.ChatRoleUser
		if m.Role == transcript.RoleAI || m.Role == transcript.RoleHuman {
			role = llm.ChatRoleAssistant
		}
		out = append(out, llm.ChatMessage{Role: role, Content: m.Content})
	}
	return out
}

func asksPrice(text string) bool {
	normalized := textmatch.Normalize(text)
	for _, kw := range []string{"quanto custa", "quanto fica", "quanto e", "preco", "valor"} {
		if strings.Contains(normalized, kw) {
			return true
		}
	}
	return false
}

func asksProductInfo(text string) bool {
	normalized := textmatch.Normalize(text)
	for _, kw := range []string{"quanto tempo", "demora", "duracao", "como funciona", "o que e", "serve para"} {
		if strings.Contains(normalized, kw) {
			return true
		}
	}
	return false
}

func confirmReply(st state.ConversationState) string {
	if st.Committed() {
		return "Perfeito, presença confirmada! Até lá."
	}
	return "Perfeito, confirmado! Qualquer coisa é só me chamar."
}

func declineReply() string {
	return "Tudo bem, sem problemas! Quer remarcar para outro dia? É só me dizer quando fica bom para você."
}

func listServicesReply(snap catalog.Snapshot) string {
	if len(snap.Services) == 0 {
		return "Vou verificar com a equipe a lista completa de serviços e já te passo!"
	}
	var b strings.Builder
	b.WriteString("Esses são os nossos serviços:\n")
	for _, svc := range snap.Services {
		fmt.Fprintf(&b, "• %s — %s\n", svc.Name, catalog.FormatBRL(svc.PriceCents))
	}
	b.WriteString("Quer agendar algum deles?")
	return b.String()
}
