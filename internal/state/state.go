// Package state holds the conversation's working memory: who owns the
// conversation, where the scheduling skill stands, and the idempotency markers
// the dedup gate and booking commit read before acting.
package state

import "time"

// Status says who is answering the conversation.
type Status string

const (
	StatusAIActive    Status = "AI_ACTIVE"
	StatusHumanActive Status = "HUMAN_ACTIVE"
	StatusEnded       Status = "ENDED"
	StatusClosed      Status = "CLOSED"
)

// Skill identifies an active multi-turn flow.
type Skill string

const (
	SkillNone       Skill = ""
	SkillScheduling Skill = "scheduling"
)

// Step is the scheduling skill's position in its slot-filling flow.
type Step string

const (
	StepNone                 Step = ""
	StepAwaitingService      Step = "awaiting_service"
	StepAwaitingDate         Step = "awaiting_date"
	StepAwaitingTime         Step = "awaiting_time"
	StepAwaitingProfessional Step = "awaiting_professional"
	StepReadyToCommit        Step = "ready_to_commit"
)

// Slots carries the booking information collected so far, ids plus the
// human-readable labels used in replies.
type Slots struct {
	ServiceID         string `json:"serviceId,omitempty"`
	ServiceName       string `json:"serviceName,omitempty"`
	ProfessionalID    string `json:"professionalId,omitempty"`
	ProfessionalName  string `json:"professionalName,omitempty"`
	DateISO           string `json:"dateISO,omitempty"`
	DateLabel         string `json:"dateLabel,omitempty"`
	Time              string `json:"time,omitempty"`
	TimeLabel         string `json:"timeLabel,omitempty"`
}

// Required reports whether the slots a booking cannot exist without are filled.
// Professional is optional; it is auto-filled at commit time.
func (s Slots) Required() bool {
	return s.ServiceID != "" && s.DateISO != "" && s.Time != ""
}

// ConversationState is the document attached 1:1 to a conversation.
type ConversationState struct {
	Status             Status     `json:"status"`
	ActiveSkill        Skill      `json:"activeSkill,omitempty"`
	Step               Step       `json:"step,omitempty"`
	Slots              Slots      `json:"slots"`
	UserAlreadyGreeted bool       `json:"userAlreadyGreeted,omitempty"`
	LastGreetingAt     *time.Time `json:"lastGreetingAt,omitempty"`

	// SchedulingCommittedAt and SchedulingAppointmentID are only ever set
	// together, through Patch.Commit. Once set, re-running the booking commit
	// must be a no-op returning the same appointment id.
	SchedulingCommittedAt   *time.Time `json:"schedulingCommittedAt,omitempty"`
	SchedulingAppointmentID string     `json:"schedulingAppointmentId,omitempty"`
}

// Committed reports whether the scheduling flow already produced an appointment.
func (s ConversationState) Committed() bool {
	return s.SchedulingCommittedAt != nil && s.SchedulingAppointmentID != ""
}

// New returns the state of a conversation that has never spoken to the bot.
func New() ConversationState {
	return ConversationState{Status: StatusAIActive}
}

// CommitMark carries the two commit markers that must be written together.
type CommitMark struct {
	At            time.Time
	AppointmentID string
}

// Patch is a typed partial update. Nil fields leave the old value untouched.
type Patch struct {
	Status             *Status
	ActiveSkill        *Skill
	Step               *Step
	Slots              *Slots
	UserAlreadyGreeted *bool
	LastGreetingAt     *time.Time
	Commit             *CommitMark
	// ClearCommit wipes both commit markers together so a new scheduling flow
	// can produce a fresh appointment.
	ClearCommit bool
}

// Apply produces the next state from old plus the patch. It is the only state
// transition path; in particular the commit markers cannot be set separately.
func Apply(old ConversationState, p Patch) ConversationState {
	next := old
	if p.Status != nil {
		next.Status = *p.Status
	}
	if p.ActiveSkill != nil {
		next.ActiveSkill = *p.ActiveSkill
	}
	if p.Step != nil {
		next.Step = *p.Step
	}
	if p.Slots != nil {
		next.Slots = *p.Slots
	}
	if p.UserAlreadyGreeted != nil {
		next.UserAlreadyGreeted = *p.UserAlreadyGreeted
	}
	if p.LastGreetingAt != nil {
		t := *p.LastGreetingAt
		next.LastGreetingAt = &t
	}
	if p.ClearCommit {
		next.SchedulingCommittedAt = nil
		next.SchedulingAppointmentID = ""
	}
	if p.Commit != nil && p.Commit.AppointmentID != "" {
		at := p.Commit.At
		next.SchedulingCommittedAt = &at
		next.SchedulingAppointmentID = p.Commit.AppointmentID
	}
	return next
}

// Helper constructors for pointer fields in patches.

func StatusPtr(s Status) *Status { return &s }
func SkillPtr(s Skill) *Skill    { return &s }
func StepPtr(s Step) *Step       { return &s }
func BoolPtr(b bool) *bool       { return &b }
