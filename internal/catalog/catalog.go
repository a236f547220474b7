// Package catalog exposes the read-only snapshot of a salon used for fuzzy
// matching and LLM grounding: the salon itself, its services and its
// professionals.
package catalog

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Salon is the tenant a conversation belongs to.
type Salon struct {
	ID   string
	Name string
}

// Service is a bookable service with the data the commit step derives from.
type Service struct {
	ID          string
	Name        string
	DurationMin int
	PriceCents  int
}

// Professional is a staff member appointments can be booked with.
type Professional struct {
	ID   string
	Name string
}

// Snapshot is the per-turn read-only view of a salon's catalog.
type Snapshot struct {
	Salon         Salon
	Services      []Service
	Professionals []Professional
}

// ServiceByID returns the service with the given id, or nil.
func (s Snapshot) ServiceByID(id string) *Service {
	for i := range s.Services {
		if s.Services[i].ID == id {
			return &s.Services[i]
		}
	}
	return nil
}

// Collector loads the snapshot for a salon. Implementations must be safe for
// concurrent use across conversations.
type Collector interface {
	Collect(ctx context.Context, salonID string) (Snapshot, error)
}

// FormatBRL renders a price in cents the way Brazilian clients read it:
// comma decimal, dot as the thousands separator ("R$ 1.250,00").
func FormatBRL(cents int) string {
	digits := strconv.Itoa(cents / 100)
	var b strings.Builder
	for i, d := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte('.')
		}
		b.WriteRune(d)
	}
	return fmt.Sprintf("R$ %s,%02d", b.String(), cents%100)
}
