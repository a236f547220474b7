package lexicon

import "testing"

func testResolver() *Resolver {
	return NewResolver(DefaultEntries())
}

func TestResolveLongerTriggerWins(t *testing.T) {
	entries := []Entry{
		{Canonical: "A", Triggers: []string{"progressiva"}, MinConfidence: 0.5},
		{Canonical: "B", Triggers: []string{"fazer progressiva"}, MinConfidence: 0.5},
	}

	// Both triggers fire; the longer one must win regardless of entry order.
	for _, ordered := range [][]Entry{entries, {entries[1], entries[0]}} {
		r := NewResolver(ordered)
		m := r.Resolve("quero fazer progressiva amanha")
		if m == nil || m.Entry.Canonical != "B" {
			t.Fatalf("expected longer trigger to win, got %+v", m)
		}
	}
}

func TestResolveWordBoundaryForSingleWord(t *testing.T) {
	r := NewResolver([]Entry{
		{Canonical: "Gel", Triggers: []string{"gel"}, MinConfidence: 0.5},
	})
	if m := r.Resolve("quero unha de gel"); m == nil {
		t.Fatalf("word-boundary match should fire")
	}
	if m := r.Resolve("suco congelado por favor"); m != nil {
		t.Fatalf("single-word trigger matched inside another word: %+v", m)
	}
}

func TestResolveConfidenceFormula(t *testing.T) {
	r := NewResolver([]Entry{
		{Canonical: "Progressiva", Triggers: []string{"progressiva"}, MinConfidence: 0.7},
	})

	// Exact text: 0.6 + 0.3*1.0 + 0.2 capped at 1.0.
	m := r.Resolve("progressiva")
	if m == nil {
		t.Fatal("expected match")
	}
	if m.Confidence != 1.0 {
		t.Fatalf("exact match confidence = %v, want 1.0", m.Confidence)
	}
	if m.NeedsConfirmation {
		t.Fatalf("exact high-confidence match should not need confirmation")
	}

	// Long text dilutes the length ratio and drops confidence.
	long := r.Resolve("oi tudo bem, queria saber se voces fazem progressiva ai no salao de voces")
	if long == nil {
		t.Fatal("expected match in long text")
	}
	if long.Confidence >= m.Confidence {
		t.Fatalf("diluted confidence %v should be below exact %v", long.Confidence, m.Confidence)
	}
}

func TestResolveAmbiguousNeedsConfirmation(t *testing.T) {
	m := testResolver().Resolve("quero fazer mechas")
	if m == nil || m.Entry.Canonical != "Luzes" {
		t.Fatalf("expected Luzes match, got %+v", m)
	}
	if !m.NeedsConfirmation {
		t.Fatalf("ambiguous entry must need confirmation")
	}
}

func TestResolveRejectsShortText(t *testing.T) {
	if m := testResolver().Resolve("oi"); m != nil {
		t.Fatalf("short text should not resolve, got %+v", m)
	}
	if m := testResolver().Resolve(""); m != nil {
		t.Fatalf("empty text should not resolve, got %+v", m)
	}
}

func TestResolveDeterministic(t *testing.T) {
	r := testResolver()
	a := r.Resolve("quanto custa a progressiva")
	b := r.Resolve("quanto custa a progressiva")
	if a == nil || b == nil || a.Entry.Canonical != b.Entry.Canonical || a.Confidence != b.Confidence {
		t.Fatalf("resolution not deterministic: %+v vs %+v", a, b)
	}
}

func TestNilResolver(t *testing.T) {
	var r *Resolver
	if m := r.Resolve("progressiva"); m != nil {
		t.Fatalf("nil resolver should return nil")
	}
}
