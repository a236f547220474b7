package lexicon

// DefaultEntries returns the built-in pt-BR salon lexicon. The table is static
// reference data; thresholds were tuned by hand against real conversations.
func DefaultEntries() []Entry {
	return []Entry{
		{
			Canonical:     "Progressiva",
			Kind:          KindService,
			Triggers:      []string{"progressiva", "fazer progressiva", "escova progressiva", "alisamento"},
			MinConfidence: 0.7,
			Risk:          RiskMedium,
		},
		{
			Canonical:     "Corte de Cabelo",
			Kind:          KindService,
			Triggers:      []string{"corte", "cortar o cabelo", "aparar", "aparar as pontas"},
			MinConfidence: 0.65,
			Risk:          RiskLow,
		},
		{
			Canonical:     "Coloração",
			Kind:          KindService,
			Triggers:      []string{"coloracao", "pintar o cabelo", "tingir", "tintura"},
			MinConfidence: 0.7,
			Risk:          RiskMedium,
		},
		{
			Canonical: "Luzes",
			Kind:      KindService,
			// "mechas" also names balayage/ombré requests, so confirm before assuming.
			Triggers:      []string{"luzes", "mechas", "fazer luzes"},
			Ambiguous:     true,
			MinConfidence: 0.8,
			Risk:          RiskMedium,
		},
		{
			Canonical:     "Manicure",
			Kind:          KindService,
			Triggers:      []string{"manicure", "fazer as unhas", "unhas"},
			MinConfidence: 0.65,
			Risk:          RiskLow,
		},
		{
			Canonical:     "Pedicure",
			Kind:          KindService,
			Triggers:      []string{"pedicure", "unhas do pe"},
			MinConfidence: 0.65,
			Risk:          RiskLow,
		},
		{
			Canonical:     "Escova",
			Kind:          KindService,
			Triggers:      []string{"escova", "escovar o cabelo"},
			Ambiguous:     true,
			MinConfidence: 0.75,
			Risk:          RiskLow,
		},
		{
			Canonical:     "Hidratação",
			Kind:          KindTechnique,
			Triggers:      []string{"hidratacao", "hidratar o cabelo", "tratamento capilar"},
			MinConfidence: 0.7,
			Risk:          RiskLow,
		},
		{
			Canonical:     "Botox Capilar",
			Kind:          KindTechnique,
			Triggers:      []string{"botox capilar", "botox no cabelo"},
			MinConfidence: 0.7,
			Risk:          RiskMedium,
		},
		{
			Canonical:     "Queda de Cabelo",
			Kind:          KindCondition,
			Triggers:      []string{"queda de cabelo", "cabelo caindo", "calvicie"},
			MinConfidence: 0.75,
			Risk:          RiskHigh,
		},
	}
}
