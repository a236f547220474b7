package textmatch

import "testing"

func TestNormalize(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Coloração", "coloracao"},
		{"  PROGRESSIVA  ", "progressiva"},
		{"Manicure e Pedicure", "manicure e pedicure"},
		{"ça-va São João", "ca-va sao joao"},
		{"", ""},
		{"   ", ""},
	}
	for _, tc := range cases {
		if got := Normalize(tc.in); got != tc.want {
			t.Fatalf("Normalize(%q)=%q want %q", tc.in, got, tc.want)
		}
	}
}

func TestFuzzyMatchPriorityOrder(t *testing.T) {
	candidates := []Candidate{
		{ID: "1", Name: "Corte"},
		{ID: "2", Name: "Corte Masculino"},
		{ID: "3", Name: "Coloração"},
	}

	// Exact normalized equality wins even when a containment hit exists earlier.
	if m := FuzzyMatch("corte masculino", candidates); m == nil || m.ID != "2" {
		t.Fatalf("expected exact match on corte masculino, got %+v", m)
	}

	// Candidate name contained in user text.
	if m := FuzzyMatch("quero fazer uma coloracao hoje", candidates); m == nil || m.ID != "3" {
		t.Fatalf("expected containment match on coloracao, got %+v", m)
	}

	// User text contained in candidate name, length >= 4.
	if m := FuzzyMatch("colo", candidates); m == nil || m.ID != "3" {
		t.Fatalf("expected reverse containment match, got %+v", m)
	}
}

func TestFuzzyMatchAccentInsensitive(t *testing.T) {
	candidates := []Candidate{{ID: "1", Name: "Coloração"}}
	if m := FuzzyMatch("coloracao", candidates); m == nil || m.ID != "1" {
		t.Fatalf("expected accent-insensitive match, got %+v", m)
	}
}

func TestFuzzyMatchRejections(t *testing.T) {
	candidates := []Candidate{{ID: "1", Name: "Corte"}, {ID: "2", Name: "Unha"}}

	if m := FuzzyMatch("", candidates); m != nil {
		t.Fatalf("empty input should not match, got %+v", m)
	}
	if m := FuzzyMatch("test", nil); m != nil {
		t.Fatalf("empty catalog should not match, got %+v", m)
	}
	if m := FuzzyMatch("ab", candidates); m != nil {
		t.Fatalf("short input should not match, got %+v", m)
	}
	// Reverse containment requires >= 4 chars: "unh" is inside "unha" but too short.
	if m := FuzzyMatch("unh", candidates); m != nil {
		t.Fatalf("3-char reverse containment should not match, got %+v", m)
	}
	long := make([]byte, 130)
	for i := range long {
		long[i] = 'a'
	}
	if m := FuzzyMatch(string(long), candidates); m != nil {
		t.Fatalf("overlong input should not match, got %+v", m)
	}
}

func TestFuzzyMatchIdempotent(t *testing.T) {
	candidates := []Candidate{{ID: "1", Name: "Corte"}}
	first := FuzzyMatch("quero um corte", candidates)
	second := FuzzyMatch("quero um corte", candidates)
	if first == nil || second == nil || first.ID != second.ID {
		t.Fatalf("FuzzyMatch not deterministic: %+v vs %+v", first, second)
	}
}
