// Package guard filters conversation content at the LLM boundary: agent
// control commands, disallowed inbound text, and outbound replies that leak
// things a salon assistant should never say.
package guard

import (
	"regexp"
	"strings"

	"github.com/salonflow/alexis-engine/internal/textmatch"
)

// Agent commands typed by salon staff into the client thread. They are
// consumed by the router and never forwarded to the client.
const (
	CommandHumanTakeover = "#eu"
	CommandAIResume      = "#ia"
)

// Command identifies an agent-originated control token.
type Command int

const (
	CommandNone Command = iota
	CommandHuman
	CommandAI
)

// ParseCommand detects an agent control token at the start of the text.
func ParseCommand(text string) Command {
	trimmed := strings.ToLower(strings.TrimSpace(text))
	switch {
	case strings.HasPrefix(trimmed, CommandHumanTakeover):
		return CommandHuman
	case strings.HasPrefix(trimmed, CommandAIResume):
		return CommandAI
	default:
		return CommandNone
	}
}

// IsCommand reports whether the text is an agent control token.
func IsCommand(text string) bool {
	return ParseCommand(text) != CommandNone
}

// InputResult is the outcome of scanning an inbound client message.
type InputResult struct {
	Allowed      bool
	BlockedTerms []string
}

// OutputResult is the outcome of scanning an outbound AI reply.
type OutputResult struct {
	// Safe is false when disallowed terms were found. The reply is never
	// suppressed for this; Filtered carries the scrubbed text.
	Safe         bool
	Filtered     string
	BlockedTerms []string
}

// inputBlockPattern flags inbound text the assistant must refuse outright.
type inputBlockPattern struct {
	re   *regexp.Regexp
	term string
}

var inputBlockPatterns = []inputBlockPattern{
	{regexp.MustCompile(`(?i)ignore\s+(todas?\s+)?(as\s+)?(suas\s+)?instrucoes`), "prompt_injection:ignore_instructions"},
	{regexp.MustCompile(`(?i)(esqueca|desconsidere)\s+(tudo|as\s+regras|suas\s+instrucoes)`), "prompt_injection:forget_instructions"},
	{regexp.MustCompile(`(?i)voce\s+agora\s+e\s+(um|uma|o|a)\s+`), "prompt_injection:role_reassignment"},
	{regexp.MustCompile(`(?i)jailbreak|modo\s+desenvolvedor|sem\s+restricoes`), "prompt_injection:jailbreak"},
	{regexp.MustCompile(`(?i)(qual|me\s+(diga|mostre|passe))\s+(e\s+)?(o\s+|a\s+)?(seu\s+|sua\s+)?(prompt|senha|token|chave\s+de\s+api|api\s*key)`), "exfiltration:secrets"},
	{regexp.MustCompile(`(?i)(dados|telefone|endereco)\s+d[aeo]s?\s+outr[ao]s?\s+client`), "exfiltration:other_clients"},
}

// FilterInput scans an inbound client message. Blocked messages get the fixed
// BlockedResponse and never reach the LLM.
func FilterInput(text string) InputResult {
	normalized := textmatch.Normalize(text)
	if normalized == "" {
		return InputResult{Allowed: true}
	}

	var terms []string
	for _, p := range inputBlockPatterns {
		if p.re.MatchString(normalized) {
			terms = append(terms, p.term)
		}
	}
	return InputResult{Allowed: len(terms) == 0, BlockedTerms: terms}
}

// outputLeakPattern marks fragments that must be scrubbed from replies.
type outputLeakPattern struct {
	re   *regexp.Regexp
	term string
}

var outputLeakPatterns = []outputLeakPattern{
	{regexp.MustCompile(`(?i)[^.!?]*\b(sou|eu sou)\s+(um|uma)\s+(ia|intelig[eê]ncia artificial|modelo de linguagem|assistente virtual|rob[oô]|chatbot)\b[^.!?]*[.!?]?\s*`), "leak:ai_identity"},
	{regexp.MustCompile(`(?i)[^.!?]*\bminhas?\s+instru[cç][oõ]es\b[^.!?]*[.!?]?\s*`), "leak:instructions_disclosure"},
	{regexp.MustCompile(`(?i)(api[_\s]?key|secret|bearer\s+token)\s*[:=]\s*\S+`), "leak:credential"},
	{regexp.MustCompile(`(?i)(postgres|redis|mysql)://\S+`), "leak:database_url"},
}

// FilterOutput scans an outbound reply and scrubs disallowed fragments. The
// turn is never suppressed here: the worst case is a trimmed reply plus a log
// entry upstream.
func FilterOutput(text string) OutputResult {
	if strings.TrimSpace(text) == "" {
		return OutputResult{Safe: true, Filtered: text}
	}

	var terms []string
	filtered := text
	for _, p := range outputLeakPatterns {
		if p.re.MatchString(filtered) {
			terms = append(terms, p.term)
			filtered = p.re.ReplaceAllString(filtered, "")
		}
	}
	filtered = strings.TrimSpace(filtered)
	if len(terms) == 0 {
		return OutputResult{Safe: true, Filtered: text}
	}
	return OutputResult{Safe: false, Filtered: filtered, BlockedTerms: terms}
}

// BlockedResponse is the fixed reply for blocked inbound messages.
func BlockedResponse() string {
	return "Posso te ajudar com agendamentos e dúvidas sobre os serviços do salão. Como posso ajudar?"
}
