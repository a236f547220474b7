// Package dates answers calendar phrases deterministically, without an LLM.
// It backs both the relative-date responder ("que dia cai a proxima terca?")
// and the scheduling skill's date/time slot filling.
package dates

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/salonflow/alexis-engine/internal/textmatch"
)

// Resolver resolves relative calendar phrases against an injected clock so
// behavior is reproducible in tests.
type Resolver struct {
	now func() time.Time
}

// NewResolver builds a resolver on the real clock.
func NewResolver() *Resolver {
	return &Resolver{now: time.Now}
}

// NewResolverAt builds a resolver pinned to a fixed clock. Test helper.
func NewResolverAt(now func() time.Time) *Resolver {
	if now == nil {
		now = time.Now
	}
	return &Resolver{now: now}
}

var weekdayNames = map[string]time.Weekday{
	"domingo": time.Sunday,
	"segunda": time.Monday,
	"terca":   time.Tuesday,
	"quarta":  time.Wednesday,
	"quinta":  time.Thursday,
	"sexta":   time.Friday,
	"sabado":  time.Saturday,
}

// weekdayOrder keeps ParseDate deterministic when a text names two weekdays.
var weekdayOrder = []string{"domingo", "segunda", "terca", "quarta", "quinta", "sexta", "sabado"}

var weekdayLabels = map[time.Weekday]string{
	time.Sunday:    "domingo",
	time.Monday:    "segunda-feira",
	time.Tuesday:   "terça-feira",
	time.Wednesday: "quarta-feira",
	time.Thursday:  "quinta-feira",
	time.Friday:    "sexta-feira",
	time.Saturday:  "sábado",
}

var monthLabels = [...]string{"janeiro", "fevereiro", "março", "abril", "maio", "junho", "julho", "agosto", "setembro", "outubro", "novembro", "dezembro"}

// DateAnswer is the outcome of a relative-date question.
type DateAnswer struct {
	Matched  bool
	Response string
}

var dateQuestionRe = regexp.MustCompile(`que dia (e|eh|cai|vai ser|sera)( a| o)?( proxima| proximo)? ?(hoje|amanha|domingo|segunda|terca|quarta|quinta|sexta|sabado)`)

// ResolveQuestion answers "what day is X" style questions. Unmatched text
// returns {Matched: false}; it is a "no opinion" outcome, never an error.
func (r *Resolver) ResolveQuestion(text string) DateAnswer {
	if r == nil {
		return DateAnswer{}
	}
	normalized := textmatch.Normalize(text)
	m := dateQuestionRe.FindStringSubmatch(normalized)
	if m == nil {
		return DateAnswer{}
	}

	now := r.now()
	subject := m[4]
	var target time.Time
	switch subject {
	case "hoje":
		target = now
	case "amanha":
		target = now.AddDate(0, 0, 1)
	default:
		wd, ok := weekdayNames[subject]
		if !ok {
			return DateAnswer{}
		}
		target = nextWeekday(now, wd, strings.Contains(normalized, "proxim"))
	}

	return DateAnswer{
		Matched:  true,
		Response: fmt.Sprintf("%s cai em %s, dia %d de %s.", subjectLabel(subject), weekdayLabels[target.Weekday()], target.Day(), monthLabels[target.Month()-1]),
	}
}

func subjectLabel(subject string) string {
	switch subject {
	case "hoje":
		return "Hoje"
	case "amanha":
		return "Amanhã"
	default:
		return "A próxima " + strings.TrimSuffix(weekdayLabels[weekdayNames[subject]], "-feira")
	}
}

// nextWeekday finds the upcoming occurrence of wd strictly after today when
// skipToday is set, otherwise today counts.
func nextWeekday(now time.Time, wd time.Weekday, skipToday bool) time.Time {
	delta := (int(wd) - int(now.Weekday()) + 7) % 7
	if delta == 0 && skipToday {
		delta = 7
	}
	return now.AddDate(0, 0, delta)
}

// ParsedDate is a resolved calendar date plus its human-readable label.
type ParsedDate struct {
	Date  time.Time
	Label string
}

var explicitDateRe = regexp.MustCompile(`\b(\d{1,2})/(\d{1,2})(?:/(\d{2,4}))?\b`)

// ParseDate extracts a concrete date from slot-filling text. It understands
// hoje, amanha, depois de amanha, weekday names (with optional "proxima") and
// dd/mm[/yyyy]. Returns nil when the text names no date.
func (r *Resolver) ParseDate(text string) *ParsedDate {
	if r == nil {
		return nil
	}
	normalized := textmatch.Normalize(text)
	if normalized == "" {
		return nil
	}
	now := r.now()

	if strings.Contains(normalized, "depois de amanha") {
		d := now.AddDate(0, 0, 2)
		return &ParsedDate{Date: midnight(d), Label: "depois de amanhã"}
	}
	if containsToken(normalized, "amanha") {
		d := now.AddDate(0, 0, 1)
		return &ParsedDate{Date: midnight(d), Label: "amanhã"}
	}
	if containsToken(normalized, "hoje") {
		return &ParsedDate{Date: midnight(now), Label: "hoje"}
	}

	for _, name := range weekdayOrder {
		wd := weekdayNames[name]
		if containsToken(normalized, name) {
			d := nextWeekday(now, wd, strings.Contains(normalized, "proxim"))
			return &ParsedDate{Date: midnight(d), Label: weekdayLabels[wd]}
		}
	}

	if m := explicitDateRe.FindStringSubmatch(normalized); m != nil {
		day := atoi(m[1])
		month := atoi(m[2])
		year := now.Year()
		if m[3] != "" {
			year = atoi(m[3])
			if year < 100 {
				year += 2000
			}
		}
		if month >= 1 && month <= 12 && day >= 1 && day <= 31 {
			d := time.Date(year, time.Month(month), day, 0, 0, 0, 0, now.Location())
			if d.Day() != day {
				return nil // e.g. 31/02 rolled over
			}
			if m[3] == "" && d.Before(midnight(now)) {
				d = d.AddDate(1, 0, 0)
			}
			return &ParsedDate{Date: d, Label: fmt.Sprintf("dia %d de %s", day, monthLabels[month-1])}
		}
	}

	return nil
}

// ParsedTime is a resolved time of day plus its human-readable label.
type ParsedTime struct {
	Hour   int
	Minute int
	Label  string
}

var clockTimeRe = regexp.MustCompile(`\b(\d{1,2})(?::(\d{2})|h(\d{2})?)?\b`)

// ParseTime extracts a time of day from slot-filling text: "15h", "15h30",
// "15:30", bare hours, and the period words manha/tarde/noite shift ambiguous
// small hours. Returns nil when no plausible time is present.
func (r *Resolver) ParseTime(text string) *ParsedTime {
	normalized := textmatch.Normalize(text)
	if normalized == "" {
		return nil
	}

	m := clockTimeRe.FindStringSubmatch(normalized)
	if m == nil {
		return nil
	}
	// A bare number with no clock marker ("dia 15") is a date, not a time.
	bare := m[2] == "" && m[3] == "" && !strings.Contains(m[0], "h")
	if bare && !strings.Contains(normalized, "hora") && !hasPeriodWord(normalized) {
		return nil
	}

	hour := atoi(m[1])
	minute := 0
	if m[2] != "" {
		minute = atoi(m[2])
	} else if m[3] != "" {
		minute = atoi(m[3])
	}
	if hour > 23 || minute > 59 {
		return nil
	}

	// "3 da tarde" / "8 da noite" mean 15h / 20h.
	if hour <= 11 {
		if strings.Contains(normalized, "tarde") && hour != 0 {
			hour += 12
		} else if strings.Contains(normalized, "noite") && hour >= 6 {
			hour += 12
		}
	}

	label := fmt.Sprintf("%02dh", hour)
	if minute != 0 {
		label = fmt.Sprintf("%02dh%02d", hour, minute)
	}
	return &ParsedTime{Hour: hour, Minute: minute, Label: label}
}

func hasPeriodWord(text string) bool {
	return strings.Contains(text, "manha") || strings.Contains(text, "tarde") || strings.Contains(text, "noite")
}

func containsToken(text, token string) bool {
	for _, field := range strings.FieldsFunc(text, func(r rune) bool {
		return r == ' ' || r == ',' || r == '.' || r == '?' || r == '!'
	}) {
		if field == token {
			return true
		}
	}
	return false
}

func midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

func atoi(s string) int {
	n := 0
	for _, r := range s {
		n = n*10 + int(r-'0')
	}
	return n
}
