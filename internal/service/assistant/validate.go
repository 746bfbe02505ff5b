package assistant

import (
	"fmt"
	"math"
	"regexp"
	"time"

	"github.com/dailysync/keeper/internal/domain"
)

// Payload bounds applied before anything reaches the remote gateway.
const (
	maxTaskTitleLen   = 120
	maxEventTitleLen  = 140
	maxDescriptionLen = 140
	maxCategoryLen    = 40
	maxIconLen        = 8

	defaultEventDuration = 60
	defaultEventColor    = "#005f99"
	defaultCategory      = "other"
	defaultIcon          = "💸"
)

var eventColorRe = regexp.MustCompile(`^#?[0-9a-fA-F]{6}$`)

// validateIntent sanitizes a raw intent into an executable one. Coercible
// fields (priority, duration, color, dates) are repaired in place; a missing
// title, date, or non-positive amount rejects the whole intent. Rejected
// intents never reach the gateway.
func validateIntent(in domain.Intent, today string) (domain.Intent, error) {
	switch in.Type {
	case domain.IntentCreateTask:
		if in.Task == nil || in.Task.Title == "" {
			return domain.Intent{}, fmt.Errorf("task title is required: %w", domain.ErrValidation)
		}
		out := *in.Task
		out.Title = truncate(out.Title, maxTaskTitleLen)
		if !out.Priority.IsValid() {
			out.Priority = domain.PriorityMedium
		}
		return domain.Intent{Type: in.Type, Task: &out}, nil

	case domain.IntentCreateEvent:
		if in.Event == nil || in.Event.Title == "" {
			return domain.Intent{}, fmt.Errorf("event title is required: %w", domain.ErrValidation)
		}
		out := *in.Event
		out.Title = truncate(out.Title, maxEventTitleLen)
		if _, err := time.Parse(dateLayout, out.Date); err != nil {
			return domain.Intent{}, fmt.Errorf("event date %q: %w", out.Date, domain.ErrValidation)
		}
		if _, err := time.Parse("15:04", out.Time); err != nil {
			return domain.Intent{}, fmt.Errorf("event time %q: %w", out.Time, domain.ErrValidation)
		}
		if out.Duration <= 0 {
			out.Duration = defaultEventDuration
		}
		if !eventColorRe.MatchString(out.Color) {
			out.Color = defaultEventColor
		}
		return domain.Intent{Type: in.Type, Event: &out}, nil

	case domain.IntentCreateExpense:
		if in.Expense == nil || math.IsNaN(in.Expense.Amount) || in.Expense.Amount <= 0 {
			return domain.Intent{}, fmt.Errorf("expense amount must be positive: %w", domain.ErrValidation)
		}
		out := *in.Expense
		out.Description = truncate(out.Description, maxDescriptionLen)
		out.Category = truncate(out.Category, maxCategoryLen)
		if out.Category == "" {
			out.Category = defaultCategory
		}
		out.Icon = truncate(out.Icon, maxIconLen)
		if out.Icon == "" {
			out.Icon = defaultIcon
		}
		if _, err := time.Parse(dateLayout, out.Date); err != nil {
			out.Date = today
		}
		return domain.Intent{Type: in.Type, Expense: &out}, nil

	default:
		return domain.Intent{}, fmt.Errorf("unknown intent type %q: %w", in.Type, domain.ErrValidation)
	}
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max])
}
