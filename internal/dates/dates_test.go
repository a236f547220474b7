package dates

import (
	"strings"
	"testing"
	"time"
)

// Wednesday, 2026-09-02 10:00 local.
func fixedClock() func() time.Time {
	return func() time.Time {
		return time.Date(2026, time.September, 2, 10, 0, 0, 0, time.Local)
	}
}

func TestResolveQuestionNextWeekday(t *testing.T) {
	r := NewResolverAt(fixedClock())

	ans := r.ResolveQuestion("Que dia cai a próxima terça?")
	if !ans.Matched {
		t.Fatal("expected question to match")
	}
	// Next Tuesday after Wednesday 2026-09-02 is 2026-09-08.
	if !strings.Contains(ans.Response, "dia 8 de setembro") {
		t.Fatalf("unexpected response: %s", ans.Response)
	}
}

func TestResolveQuestionTodayAndTomorrow(t *testing.T) {
	r := NewResolverAt(fixedClock())

	today := r.ResolveQuestion("que dia é hoje?")
	if !today.Matched || !strings.Contains(today.Response, "dia 2 de setembro") {
		t.Fatalf("unexpected today answer: %+v", today)
	}

	tomorrow := r.ResolveQuestion("que dia é amanhã")
	if !tomorrow.Matched || !strings.Contains(tomorrow.Response, "dia 3 de setembro") {
		t.Fatalf("unexpected tomorrow answer: %+v", tomorrow)
	}
}

func TestResolveQuestionNoMatch(t *testing.T) {
	r := NewResolverAt(fixedClock())
	for _, text := range []string{"quanto custa o corte?", "oi", ""} {
		if ans := r.ResolveQuestion(text); ans.Matched {
			t.Fatalf("text %q should not match, got %+v", text, ans)
		}
	}
}

func TestParseDateRelatives(t *testing.T) {
	r := NewResolverAt(fixedClock())

	cases := []struct {
		in      string
		wantDay int
	}{
		{"pode ser hoje", 2},
		{"amanhã de manhã", 3},
		{"depois de amanhã", 4},
		{"na sexta", 4},                // Friday 2026-09-04
		{"proxima quarta", 9},          // skips today (Wednesday)
		{"quarta", 2},                  // today counts without "proxima"
		{"dia 15/09", 15},              // explicit
		{"pode ser dia 01/01", 1},      // past date rolls to next year
		{"dia 20/09/2026 está bom", 20}, // explicit with year
	}
	for _, tc := range cases {
		got := r.ParseDate(tc.in)
		if got == nil {
			t.Fatalf("ParseDate(%q) = nil", tc.in)
		}
		if got.Date.Day() != tc.wantDay {
			t.Fatalf("ParseDate(%q) day = %d want %d", tc.in, got.Date.Day(), tc.wantDay)
		}
	}

	if d := r.ParseDate("pode ser dia 01/01"); d.Date.Year() != 2027 {
		t.Fatalf("past explicit date should roll forward, got %v", d.Date)
	}
}

func TestParseDateNoDate(t *testing.T) {
	r := NewResolverAt(fixedClock())
	for _, text := range []string{"quero um corte", "", "31/02"} {
		if d := r.ParseDate(text); d != nil {
			t.Fatalf("ParseDate(%q) = %+v, want nil", text, d)
		}
	}
}

func TestParseTime(t *testing.T) {
	r := NewResolverAt(fixedClock())

	cases := []struct {
		in       string
		wantHour int
		wantMin  int
	}{
		{"15h", 15, 0},
		{"15h30", 15, 30},
		{"09:45", 9, 45},
		{"as 3 da tarde", 15, 0},
		{"8 da noite", 20, 0},
		{"as 10 horas", 10, 0},
	}
	for _, tc := range cases {
		got := r.ParseTime(tc.in)
		if got == nil {
			t.Fatalf("ParseTime(%q) = nil", tc.in)
		}
		if got.Hour != tc.wantHour || got.Minute != tc.wantMin {
			t.Fatalf("ParseTime(%q) = %02d:%02d want %02d:%02d", tc.in, got.Hour, got.Minute, tc.wantHour, tc.wantMin)
		}
	}
}

func TestParseTimeRejectsBareNumbersAndGarbage(t *testing.T) {
	r := NewResolverAt(fixedClock())
	for _, text := range []string{"dia 15", "quero um corte", "", "99h"} {
		if got := r.ParseTime(text); got != nil {
			t.Fatalf("ParseTime(%q) = %+v, want nil", text, got)
		}
	}
}
