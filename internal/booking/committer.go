package booking

import (
	"context"
	"fmt"
	"time"

	"github.com/salonflow/alexis-engine/internal/catalog"
	"github.com/salonflow/alexis-engine/internal/state"
	"github.com/salonflow/alexis-engine/pkg/logging"
)

// Outcome is the committer's verdict for one commit attempt.
type Outcome struct {
	Reply            string
	AppointmentID    string
	AlreadyCommitted bool
	// Failed means the booking backend rejected the create; the conversation
	// stays uncommitted and the reply degrades gracefully.
	Failed bool
}

// Committer runs the idempotent booking commit: at most one appointment per
// confirmed conversation, no matter how many turns retry it.
type Committer struct {
	store  state.Store
	booker Booker
	logger *logging.Logger
	loc    *time.Location
}

// NewCommitter builds a committer. loc defaults to the local timezone.
func NewCommitter(store state.Store, booker Booker, logger *logging.Logger, loc *time.Location) *Committer {
	if store == nil {
		panic("booking: state store cannot be nil")
	}
	if booker == nil {
		panic("booking: booker cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if loc == nil {
		loc = time.Local
	}
	return &Committer{store: store, booker: booker, logger: logger, loc: loc}
}

// Commit creates the appointment for a fully-filled conversation. Calling it
// again for an already-committed conversation returns the original appointment
// id and never touches the booking backend.
func (c *Committer) Commit(ctx context.Context, conversationID, salonID, clientPhone string, st state.ConversationState, snap catalog.Snapshot) (Outcome, error) {
	if st.Committed() {
		return Outcome{
			Reply:            alreadyConfirmedReply(st.Slots),
			AppointmentID:    st.SchedulingAppointmentID,
			AlreadyCommitted: true,
		}, nil
	}
	if !st.Slots.Required() {
		return Outcome{}, fmt.Errorf("booking: commit requires service, date and time; got %+v", st.Slots)
	}

	startsAt, err := time.ParseInLocation("2006-01-02 15:04", st.Slots.DateISO+" "+st.Slots.Time, c.loc)
	if err != nil {
		return Outcome{}, fmt.Errorf("booking: bad slot timestamp: %w", err)
	}

	slots := st.Slots
	if slots.ProfessionalID == "" && len(snap.Professionals) > 0 {
		slots.ProfessionalID = snap.Professionals[0].ID
		slots.ProfessionalName = snap.Professionals[0].Name
	}

	// The key is scoped to the slot instant: retries of this commit reuse it,
	// while a later booking in the same conversation gets a fresh one.
	appt, err := c.booker.CreateAppointment(ctx, AppointmentRequest{
		SalonID:        salonID,
		ClientPhone:    clientPhone,
		ServiceID:      slots.ServiceID,
		ProfessionalID: slots.ProfessionalID,
		StartsAt:       startsAt,
		IdempotencyKey: fmt.Sprintf("%s|%s %s", conversationID, slots.DateISO, slots.Time),
	})
	if err != nil {
		c.logger.Error("booking create failed", "conversation_id", conversationID, "error", err.Error())
		return Outcome{
			Reply:  "Não consegui confirmar seu agendamento no sistema agora. A equipe do salão vai confirmar com você em breve, tudo bem?",
			Failed: true,
		}, err
	}

	committed, existingID, err := c.store.TryMarkCommitted(ctx, conversationID, appt.ID, time.Now())
	if err != nil {
		// The appointment exists; the backend's idempotency key keeps retries
		// safe, so surface success and let the marker heal on the next turn.
		c.logger.Error("commit marker write failed", "conversation_id", conversationID, "appointment_id", appt.ID, "error", err.Error())
		return Outcome{Reply: confirmedReply(slots), AppointmentID: appt.ID}, nil
	}
	if !committed {
		c.logger.Info("commit lost race, reusing existing appointment",
			"conversation_id", conversationID, "appointment_id", existingID)
		return Outcome{
			Reply:            alreadyConfirmedReply(slots),
			AppointmentID:    existingID,
			AlreadyCommitted: true,
		}, nil
	}

	c.logger.Info("appointment committed",
		"conversation_id", conversationID, "appointment_id", appt.ID, "service_id", slots.ServiceID)
	return Outcome{Reply: confirmedReply(slots), AppointmentID: appt.ID}, nil
}

func confirmedReply(slots state.Slots) string {
	if slots.ProfessionalName != "" {
		return fmt.Sprintf("Prontinho! Seu agendamento de %s com %s está confirmado para %s às %s. Até lá!",
			slots.ServiceName, slots.ProfessionalName, slots.DateLabel, slots.TimeLabel)
	}
	return fmt.Sprintf("Prontinho! Seu agendamento de %s está confirmado para %s às %s. Até lá!",
		slots.ServiceName, slots.DateLabel, slots.TimeLabel)
}

func alreadyConfirmedReply(slots state.Slots) string {
	return fmt.Sprintf("Seu agendamento de %s já está confirmado para %s às %s. Se precisar mudar, é só me avisar!",
		slots.ServiceName, slots.DateLabel, slots.TimeLabel)
}
