// Package lexicon maps colloquial client phrases to canonical salon entities.
// It is static reference data with per-entry confidence metadata; nothing here
// touches a datastore.
package lexicon

import (
	"strings"

	"github.com/salonflow/alexis-engine/internal/textmatch"
)

// EntityKind distinguishes what a lexicon entry canonically names.
type EntityKind string

const (
	KindService   EntityKind = "service"
	KindTechnique EntityKind = "technique"
	KindCondition EntityKind = "condition"
)

// RiskLevel flags entries whose misinterpretation is costly (e.g. chemical
// treatments that need a professional assessment first).
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Entry is one canonical entity plus the colloquial triggers that reach it.
type Entry struct {
	Canonical string
	Kind      EntityKind
	Triggers  []string
	// Ambiguous marks phrases that commonly mean more than one thing; matches
	// on ambiguous entries always require confirmation downstream.
	Ambiguous bool
	// MinConfidence is the score below which a match is a hint, not an answer.
	MinConfidence float64
	Risk          RiskLevel
}

// Match is the outcome of resolving free text against the lexicon.
type Match struct {
	Entry          *Entry
	Confidence     float64
	MatchedTrigger string
	// NeedsConfirmation gates whether downstream logic may treat the match as
	// authoritative or must ask the client first.
	NeedsConfirmation bool
}

const minTextLen = 3

// Resolver matches normalized text against a fixed table of entries.
type Resolver struct {
	entries []Entry
}

// NewResolver builds a resolver over the given entries. Pass DefaultEntries()
// for the built-in pt-BR salon lexicon.
func NewResolver(entries []Entry) *Resolver {
	return &Resolver{entries: entries}
}

// Resolve returns the best lexicon match for text, or nil when nothing fires.
// Among competing matches the longer normalized trigger wins outright; ties on
// trigger length fall to the higher confidence.
func (r *Resolver) Resolve(text string) *Match {
	if r == nil {
		return nil
	}
	normalized := textmatch.Normalize(text)
	if len(normalized) < minTextLen {
		return nil
	}

	var best *Match
	bestTriggerLen := 0
	for i := range r.entries {
		entry := &r.entries[i]
		for _, trigger := range entry.Triggers {
			normTrigger := textmatch.Normalize(trigger)
			if normTrigger == "" || !triggerHits(normalized, normTrigger) {
				continue
			}
			m := &Match{
				Entry:          entry,
				Confidence:     scoreMatch(normalized, normTrigger, entry.Ambiguous),
				MatchedTrigger: trigger,
			}
			m.NeedsConfirmation = entry.Ambiguous || m.Confidence < entry.MinConfidence
			switch {
			case best == nil,
				len(normTrigger) > bestTriggerLen,
				len(normTrigger) == bestTriggerLen && m.Confidence > best.Confidence:
				best = m
				bestTriggerLen = len(normTrigger)
			}
		}
	}
	return best
}

// triggerHits applies the containment rule: multi-word triggers match as plain
// substrings, single-word triggers only match on word boundaries so "gel" does
// not fire inside "congelado".
func triggerHits(text, trigger string) bool {
	if strings.Contains(trigger, " ") {
		return strings.Contains(text, trigger)
	}
	return containsWord(text, trigger)
}

func containsWord(text, word string) bool {
	start := 0
	for {
		idx := strings.Index(text[start:], word)
		if idx < 0 {
			return false
		}
		idx += start
		end := idx + len(word)
		beforeOK := idx == 0 || !isWordByte(text[idx-1])
		afterOK := end == len(text) || !isWordByte(text[end])
		if beforeOK && afterOK {
			return true
		}
		start = idx + 1
	}
}

func isWordByte(b byte) bool {
	return b >= 'a' && b <= 'z' || b >= '0' && b <= '9'
}

// scoreMatch computes confidence: base 0.6, up to +0.3 scaled by trigger/text
// length ratio, +0.15 for multi-word triggers, +0.2 for an exact match, -0.2
// for ambiguous entries, capped at 1.0.
func scoreMatch(text, trigger string, ambiguous bool) float64 {
	score := 0.6
	if len(text) > 0 {
		ratio := float64(len(trigger)) / float64(len(text))
		if ratio > 1 {
			ratio = 1
		}
		score += 0.3 * ratio
	}
	if strings.Contains(trigger, " ") {
		score += 0.15
	}
	if text == trigger {
		score += 0.2
	}
	if ambiguous {
		score -= 0.2
	}
	if score > 1.0 {
		score = 1.0
	}
	return score
}
