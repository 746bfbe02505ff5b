package assistant

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dailysync/keeper/internal/domain"
)

const dateLayout = "2006-01-02"

// Batch command templates. Italian is the single supported input language;
// matching runs on the lowercased text.
var (
	taskCmdRe    = regexp.MustCompile(`crea(?: una)? task chiamata (.+?)(?:\s+(domani))?(?:\s+alle\s+(\d{1,2})(?:[:.](\d{2}))?)?$`)
	eventCmdRe   = regexp.MustCompile(`crea(?: un)? evento (.+?) il (\d{4}-\d{2}-\d{2}) alle (\d{2}):(\d{2})`)
	expenseCmdRe = regexp.MustCompile(`(?:aggiungi|crea) (?:una )?spesa di ([0-9]+(?:[.,][0-9]+)?) ?€? per (.+)`)
)

// Conversational templates for the multi-turn event flow.
var (
	eventMarkerRe  = regexp.MustCompile(`(?:aggiungi|crea|imposta)\s+(?:un|una)?\s*(?:task|evento|appuntamento|promemoria)`)
	explicitDateRe = regexp.MustCompile(`\bil\s+(\d{1,2})[/\-](\d{1,2})(?:[/\-](\d{2,4}))?`)
	timeMarkerRe   = regexp.MustCompile(`\b(?:alle|ore|h)\s+(\d{1,2})(?::(\d{2})|\.?(\d{2}))?`)
	durationRe     = regexp.MustCompile(`\b(?:per|durata|di)\s+(\d{1,3})\s*(min|minuti|ora|ore)?`)
	quotedRe       = regexp.MustCompile(`["“”](.+?)["“”]`)
	titleMarkerRe  = regexp.MustCompile(`(?i)\btitolo\s+(.+)$`)
	perPhraseRe    = regexp.MustCompile(`(?i)\bper\s+(.+)$`)
	perDurationRe  = regexp.MustCompile(`(?i)\b\d{1,3}\s*(min|minuti|ora|ore)\b`)
	agendaTodayRe  = regexp.MustCompile(`(?:cosa|che)\s+ho\s+oggi|eventi\s+(?:di|per)\s+oggi`)
	agendaTomrwRe  = regexp.MustCompile(`(?:cosa|che)\s+ho\s+domani|eventi\s+(?:di|per)\s+domani`)
	bareTimeRe     = regexp.MustCompile(`\b(\d{1,2})(?:[:.](\d{2}))?\b`)
	leadFillerRe   = regexp.MustCompile(`(?i)^(?:ok|va bene|perfetto|bene|allora|e\s+)?\s*`)
	tailFillerRe   = regexp.MustCompile(`(?i)\b(per favore|grazie)\.?$`)
)

// EventDraft is a partially extracted create-event command. Empty fields are
// slots still to fill.
type EventDraft struct {
	Title    string
	Date     string
	Time     string
	Duration int
}

// Extractor converts free-form Italian text into typed intents. The clock is
// injected so "oggi"/"domani" resolve deterministically in tests.
type Extractor struct {
	now func() time.Time
}

// NewExtractor creates an extractor. now may be nil, defaulting to time.Now.
func NewExtractor(now func() time.Time) *Extractor {
	if now == nil {
		now = time.Now
	}
	return &Extractor{now: now}
}

// Extract runs every batch template against text and returns the raw intents,
// zero or more. Validation happens separately, never here.
func (e *Extractor) Extract(text string) []domain.Intent {
	lower := strings.ToLower(strings.TrimSpace(text))
	var intents []domain.Intent

	if m := taskCmdRe.FindStringSubmatch(lower); m != nil {
		intents = append(intents, domain.Intent{
			Type: domain.IntentCreateTask,
			Task: &domain.TaskIntent{
				Title:    strings.TrimSpace(m[1]),
				Priority: domain.PriorityMedium,
			},
		})
	}

	if m := eventCmdRe.FindStringSubmatch(lower); m != nil {
		intents = append(intents, domain.Intent{
			Type: domain.IntentCreateEvent,
			Event: &domain.EventIntent{
				Title:    strings.TrimSpace(m[1]),
				Date:     m[2],
				Time:     m[3] + ":" + m[4],
				Duration: 60,
				Color:    "#005f99",
			},
		})
	}

	if m := expenseCmdRe.FindStringSubmatch(lower); m != nil {
		amount, err := strconv.ParseFloat(strings.ReplaceAll(m[1], ",", "."), 64)
		if err == nil {
			intents = append(intents, domain.Intent{
				Type: domain.IntentCreateExpense,
				Expense: &domain.ExpenseIntent{
					Amount:      amount,
					Description: strings.TrimSpace(m[2]),
					Category:    "other",
					Icon:        "💸",
					Date:        e.today(),
				},
			})
		}
	}

	return intents
}

// IsEventCommand reports whether text looks like a conversational create
// command ("aggiungi un appuntamento...") worth slot-filling.
func (e *Extractor) IsEventCommand(text string) bool {
	return eventMarkerRe.MatchString(strings.ToLower(text))
}

// ParseEventCommand pulls whatever slots are present out of a conversational
// create command. The date defaults to today when absent.
func (e *Extractor) ParseEventCommand(text string) EventDraft {
	lower := strings.ToLower(text)
	var d EventDraft

	switch {
	case strings.Contains(lower, "domani"):
		d.Date = e.dayOffset(1)
	case strings.Contains(lower, "oggi"):
		d.Date = e.today()
	default:
		if m := explicitDateRe.FindStringSubmatch(lower); m != nil {
			day, _ := strconv.Atoi(m[1])
			month, _ := strconv.Atoi(m[2])
			year := e.now().Year()
			if m[3] != "" {
				if y, err := strconv.Atoi(m[3]); err == nil {
					if y < 100 {
						y += 2000
					}
					year = y
				}
			}
			d.Date = time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC).Format(dateLayout)
		}
	}
	if d.Date == "" {
		d.Date = e.today()
	}

	if m := timeMarkerRe.FindStringSubmatch(lower); m != nil {
		minutes := m[2]
		if minutes == "" {
			minutes = m[3]
		}
		if minutes == "" {
			minutes = "00"
		}
		d.Time = pad2(m[1]) + ":" + pad2(minutes)
	}

	if m := durationRe.FindStringSubmatch(lower); m != nil {
		n, _ := strconv.Atoi(m[1])
		if strings.HasPrefix(m[2], "or") {
			n *= 60
		}
		d.Duration = n
	}

	if m := quotedRe.FindStringSubmatch(text); m != nil {
		d.Title = strings.TrimSpace(m[1])
	} else if m := titleMarkerRe.FindStringSubmatch(text); m != nil {
		d.Title = strings.TrimSpace(m[1])
	} else if m := perPhraseRe.FindStringSubmatch(text); m != nil {
		// "per chiamare Luca" is a title, "per 30 min" is a duration.
		if !perDurationRe.MatchString(m[1]) {
			d.Title = strings.TrimSpace(m[1])
		}
	}

	return d
}

// ParseTime extracts a clock time from a slot-filling answer like "alle 15",
// "15:30" or "9". ok is false when no usable time is present.
func (e *Extractor) ParseTime(text string) (string, bool) {
	lower := strings.ToLower(strings.TrimSpace(text))
	if m := timeMarkerRe.FindStringSubmatch(lower); m != nil {
		minutes := m[2]
		if minutes == "" {
			minutes = m[3]
		}
		if minutes == "" {
			minutes = "00"
		}
		return pad2(m[1]) + ":" + pad2(minutes), true
	}
	if m := bareTimeRe.FindStringSubmatch(lower); m != nil {
		hour, _ := strconv.Atoi(m[1])
		if hour > 23 {
			return "", false
		}
		minutes := m[2]
		if minutes == "" {
			minutes = "00"
		}
		return fmt.Sprintf("%02d:%s", hour, pad2(minutes)), true
	}
	return "", false
}

// ExtractTitle cleans a slot-filling answer into an event title: leading
// acknowledgments and trailing courtesy words go, quoted text wins.
func (e *Extractor) ExtractTitle(text string) string {
	cleaned := leadFillerRe.ReplaceAllString(strings.TrimSpace(text), "")
	if m := quotedRe.FindStringSubmatch(cleaned); m != nil {
		return strings.TrimSpace(m[1])
	}
	cleaned = strings.TrimSpace(tailFillerRe.ReplaceAllString(cleaned, ""))
	if r := []rune(cleaned); len(r) > 120 {
		cleaned = strings.TrimRight(string(r[:117]), " ") + "…"
	}
	return cleaned
}

// AgendaQuery reports whether text asks for the day's agenda and for which
// day offset (0 today, 1 tomorrow).
func (e *Extractor) AgendaQuery(text string) (offset int, ok bool) {
	lower := strings.ToLower(text)
	if agendaTodayRe.MatchString(lower) {
		return 0, true
	}
	if agendaTomrwRe.MatchString(lower) {
		return 1, true
	}
	return 0, false
}

// Today returns the extractor's current date.
func (e *Extractor) Today() string { return e.today() }

// DayOffset returns the date offset days from now.
func (e *Extractor) DayOffset(offset int) string { return e.dayOffset(offset) }

func (e *Extractor) today() string { return e.now().Format(dateLayout) }

func pad2(s string) string {
	if len(s) == 1 {
		return "0" + s
	}
	return s
}

func (e *Extractor) dayOffset(offset int) string {
	return e.now().AddDate(0, 0, offset).Format(dateLayout)
}
