// Package scheduling advances a booking conversation through its slot-filling
// steps. The skill is a pure function of (state, text, catalog snapshot): it
// performs no I/O and persists nothing; the router owns all side effects.
package scheduling

import (
	"fmt"
	"strings"
	"time"

	"github.com/salonflow/alexis-engine/internal/catalog"
	"github.com/salonflow/alexis-engine/internal/dates"
	"github.com/salonflow/alexis-engine/internal/lexicon"
	"github.com/salonflow/alexis-engine/internal/state"
	"github.com/salonflow/alexis-engine/internal/textmatch"
)

// Result is the skill's verdict for one turn.
type Result struct {
	NextSkill state.Skill
	NextStep  state.Step
	Slots     state.Slots
	Reply     string

	// Handover signals that service, date and time are filled and the caller
	// may attempt to commit the booking.
	Handover bool
	// InterruptionQuery signals the text reads as an unrelated question; Reply
	// carries only the resume prompt and the caller answers the question
	// through the information pipeline.
	InterruptionQuery bool
}

// Skill evaluates scheduling turns.
type Skill struct {
	dates *dates.Resolver
	lex   *lexicon.Resolver
}

// NewSkill builds the scheduling skill on the given resolvers.
func NewSkill(dateResolver *dates.Resolver, lex *lexicon.Resolver) *Skill {
	if dateResolver == nil {
		dateResolver = dates.NewResolver()
	}
	return &Skill{dates: dateResolver, lex: lex}
}

var cancelPhrases = []string{
	"cancelar", "deixa pra la", "nao quero mais", "desisti", "desistir", "esquece", "depois eu vejo",
}

var anyProfessionalPhrases = []string{
	"tanto faz", "qualquer", "qualquer um", "qualquer uma", "nao tenho preferencia", "pode ser qualquer",
}

// HandleTurn advances the flow by at most one slot. Steps it cannot advance
// produce either a clarification re-prompt or an interruption signal.
func (s *Skill) HandleTurn(cur state.ConversationState, text string, snap catalog.Snapshot) Result {
	normalized := textmatch.Normalize(text)

	if wantsCancel(normalized) {
		return Result{
			NextSkill: state.SkillNone,
			NextStep:  state.StepNone,
			Reply:     "Tudo bem, cancelei o agendamento por aqui. Quando quiser marcar, é só me chamar!",
		}
	}

	slots := cur.Slots
	step := cur.Step
	if step == state.StepNone {
		step = state.StepAwaitingService
	}

	switch step {
	case state.StepAwaitingService:
		return s.fillService(slots, text, normalized, snap)
	case state.StepAwaitingDate:
		return s.fillDate(slots, text, normalized, snap)
	case state.StepAwaitingTime:
		return s.fillTime(slots, text, normalized, snap)
	case state.StepAwaitingProfessional:
		return s.fillProfessional(slots, text, normalized, snap)
	case state.StepReadyToCommit:
		// A turn landing here means the previous commit did not happen (e.g.
		// booking failure). Keep the handover signal up so the caller retries.
		return readyResult(slots)
	default:
		return s.fillService(slots, text, normalized, snap)
	}
}

// Start opens the flow from an intent hit, consuming the triggering message as
// the first slot-filling attempt.
func (s *Skill) Start(text string, snap catalog.Snapshot) Result {
	return s.HandleTurn(state.ConversationState{Step: state.StepAwaitingService}, text, snap)
}

func (s *Skill) fillService(slots state.Slots, text, normalized string, snap catalog.Snapshot) Result {
	candidates := make([]textmatch.Candidate, len(snap.Services))
	for i, svc := range snap.Services {
		candidates[i] = textmatch.Candidate{ID: svc.ID, Name: svc.Name}
	}

	match := textmatch.FuzzyMatch(text, candidates)
	if match == nil && s.lex != nil {
		// The client may have used a colloquial name the catalog does not
		// carry verbatim; an authoritative lexicon hit maps it back.
		if lm := s.lex.Resolve(text); lm != nil && !lm.NeedsConfirmation {
			match = textmatch.FuzzyMatch(lm.Entry.Canonical, candidates)
		}
	}

	if match == nil {
		if isQuestion(normalized) {
			return interruption(state.StepAwaitingService, slots, servicePrompt(snap))
		}
		return stay(state.StepAwaitingService, slots,
			"Não encontrei esse serviço por aqui. "+servicePrompt(snap))
	}

	slots.ServiceID = match.ID
	slots.ServiceName = match.Name
	return stay(state.StepAwaitingDate, slots,
		fmt.Sprintf("%s, ótima escolha! Para qual dia você quer agendar?", match.Name))
}

func (s *Skill) fillDate(slots state.Slots, text, normalized string, snap catalog.Snapshot) Result {
	parsed := s.dates.ParseDate(text)
	if parsed == nil {
		if isQuestion(normalized) {
			return interruption(state.StepAwaitingDate, slots, "Para qual dia você quer agendar?")
		}
		return stay(state.StepAwaitingDate, slots,
			"Não consegui entender a data. Pode me dizer o dia? Por exemplo: amanhã, sexta, ou 15/09.")
	}

	slots.DateISO = parsed.Date.Format("2006-01-02")
	slots.DateLabel = parsed.Label
	return stay(state.StepAwaitingTime, slots,
		fmt.Sprintf("Perfeito, %s. Qual horário fica melhor para você?", parsed.Label))
}

func (s *Skill) fillTime(slots state.Slots, text, normalized string, snap catalog.Snapshot) Result {
	parsed := s.dates.ParseTime(text)
	if parsed == nil {
		if isQuestion(normalized) {
			return interruption(state.StepAwaitingTime, slots, "Qual horário fica melhor para você?")
		}
		return stay(state.StepAwaitingTime, slots,
			"Não consegui entender o horário. Pode me dizer a hora? Por exemplo: 15h ou 15h30.")
	}

	slots.Time = fmt.Sprintf("%02d:%02d", parsed.Hour, parsed.Minute)
	slots.TimeLabel = parsed.Label

	// A lone professional is never worth a question.
	if len(snap.Professionals) == 1 {
		slots.ProfessionalID = snap.Professionals[0].ID
		slots.ProfessionalName = snap.Professionals[0].Name
	}
	if slots.ProfessionalID == "" && len(snap.Professionals) > 1 {
		return stay(state.StepAwaitingProfessional, slots, professionalPrompt(snap))
	}
	return readyResult(slots)
}

func (s *Skill) fillProfessional(slots state.Slots, text, normalized string, snap catalog.Snapshot) Result {
	if wantsAnyProfessional(normalized) {
		// Left empty on purpose; the commit step auto-selects.
		return readyResult(slots)
	}

	candidates := make([]textmatch.Candidate, len(snap.Professionals))
	for i, p := range snap.Professionals {
		candidates[i] = textmatch.Candidate{ID: p.ID, Name: p.Name}
	}
	if match := textmatch.FuzzyMatch(text, candidates); match != nil {
		slots.ProfessionalID = match.ID
		slots.ProfessionalName = match.Name
		return readyResult(slots)
	}

	if isQuestion(normalized) {
		return interruption(state.StepAwaitingProfessional, slots, professionalPrompt(snap))
	}
	return stay(state.StepAwaitingProfessional, slots,
		"Não encontrei esse profissional. "+professionalPrompt(snap))
}

func readyResult(slots state.Slots) Result {
	reply := fmt.Sprintf("Perfeito! Vou confirmar seu agendamento de %s para %s às %s.",
		slots.ServiceName, slots.DateLabel, slots.TimeLabel)
	if slots.ProfessionalName != "" {
		reply = fmt.Sprintf("Perfeito! Vou confirmar seu agendamento de %s com %s para %s às %s.",
			slots.ServiceName, slots.ProfessionalName, slots.DateLabel, slots.TimeLabel)
	}
	return Result{
		NextSkill: state.SkillScheduling,
		NextStep:  state.StepReadyToCommit,
		Slots:     slots,
		Reply:     reply,
		Handover:  slots.Required(),
	}
}

func stay(step state.Step, slots state.Slots, reply string) Result {
	return Result{
		NextSkill: state.SkillScheduling,
		NextStep:  step,
		Slots:     slots,
		Reply:     reply,
	}
}

func interruption(step state.Step, slots state.Slots, resumePrompt string) Result {
	return Result{
		NextSkill:         state.SkillScheduling,
		NextStep:          step,
		Slots:             slots,
		Reply:             "Voltando ao seu agendamento: " + resumePrompt,
		InterruptionQuery: true,
	}
}

func servicePrompt(snap catalog.Snapshot) string {
	if len(snap.Services) == 0 {
		return "Qual serviço você gostaria de agendar?"
	}
	names := make([]string, len(snap.Services))
	for i, svc := range snap.Services {
		names[i] = svc.Name
	}
	return "Qual serviço você gostaria de agendar? Temos: " + strings.Join(names, ", ") + "."
}

func professionalPrompt(snap catalog.Snapshot) string {
	names := make([]string, len(snap.Professionals))
	for i, p := range snap.Professionals {
		names[i] = p.Name
	}
	return "Você tem preferência de profissional? Temos: " + strings.Join(names, ", ") + ". Se tanto faz, é só dizer."
}

func wantsCancel(normalized string) bool {
	for _, phrase := range cancelPhrases {
		if strings.Contains(normalized, phrase) {
			return true
		}
	}
	return false
}

func wantsAnyProfessional(normalized string) bool {
	for _, phrase := range anyProfessionalPhrases {
		if strings.Contains(normalized, phrase) {
			return true
		}
	}
	return false
}

var questionWords = []string{"quanto", "qual", "quais", "como", "quando", "onde", "que dia", "vcs tem", "voces tem"}

// isQuestion is a cheap heuristic: mid-flow text that does not answer the
// pending slot but carries interrogative shape is an interruption, not noise.
func isQuestion(normalized string) bool {
	if strings.Contains(normalized, "?") {
		return true
	}
	for _, w := range questionWords {
		if strings.Contains(normalized, w) {
			return true
		}
	}
	return false
}

// CommitTime derives the appointment's start instant from the filled slots.
func CommitTime(slots state.Slots, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.Local
	}
	return time.ParseInLocation("2006-01-02 15:04", slots.DateISO+" "+slots.Time, loc)
}
