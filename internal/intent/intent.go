// Package intent classifies a client message into a closed label set. The
// labels are a typed enumeration so the router's priority chain is checked at
// compile time instead of comparing bare strings.
package intent

import (
	"strings"

	"github.com/salonflow/alexis-engine/internal/textmatch"
)

// Label is one of the closed set of intents the router branches on.
type Label int

const (
	General Label = iota
	Schedule
	ProductInfo
	PriceInfo
	ListServices
	AppointmentConfirm
	AppointmentDecline
)

// String names the label for logs and metrics.
func (l Label) String() string {
	switch l {
	case Schedule:
		return "schedule"
	case ProductInfo:
		return "product_info"
	case PriceInfo:
		return "price_info"
	case ListServices:
		return "list_services"
	case AppointmentConfirm:
		return "appointment_confirm"
	case AppointmentDecline:
		return "appointment_decline"
	default:
		return "general"
	}
}

// Classifier is a deterministic keyword classifier. It intentionally errs on
// the side of General: the router's earlier tiers already caught the
// high-precision cases, and General falls through to the LLM.
type Classifier struct{}

// NewClassifier returns the keyword classifier.
func NewClassifier() *Classifier {
	return &Classifier{}
}

type rule struct {
	label    Label
	keywords []string
}

// Order matters: the first rule with a hit wins.
var rules = []rule{
	{AppointmentConfirm, []string{"confirmo", "confirmar presenca", "pode confirmar", "estarei ai", "vou sim"}},
	{AppointmentDecline, []string{"nao vou poder", "preciso desmarcar", "quero cancelar", "desmarcar", "remarcar"}},
	{Schedule, []string{"agendar", "marcar", "agendamento", "horario para", "quero marcar", "tem vaga"}},
	{ListServices, []string{"quais servicos", "que servicos", "lista de servicos", "o que voces fazem", "cardapio"}},
	{PriceInfo, []string{"quanto custa", "qual o preco", "qual o valor", "quanto fica", "quanto e"}},
	{ProductInfo, []string{"que produto", "qual produto", "marca", "vende"}},
}

// Classify maps text to a Label. Empty or unmatched text is General.
func (c *Classifier) Classify(text string) Label {
	normalized := textmatch.Normalize(text)
	if normalized == "" {
		return General
	}
	for _, r := range rules {
		for _, kw := range r.keywords {
			if strings.Contains(normalized, kw) {
				return r.label
			}
		}
	}
	return General
}
