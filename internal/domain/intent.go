package domain

// IntentType discriminates the structured commands the assistant can extract
// from free-form text.
type IntentType string

const (
	IntentCreateTask    IntentType = "create_task"
	IntentCreateEvent   IntentType = "create_event"
	IntentCreateExpense IntentType = "create_expense"
)

func (t IntentType) String() string { return string(t) }

func (t IntentType) IsValid() bool {
	switch t {
	case IntentCreateTask, IntentCreateEvent, IntentCreateExpense:
		return true
	}
	return false
}

// TaskIntent is the payload of a create_task command.
type TaskIntent struct {
	Title    string
	Priority Priority
}

// EventIntent is the payload of a create_event command.
type EventIntent struct {
	Title    string
	Date     string
	Time     string
	Duration int
	Color    string
}

// ExpenseIntent is the payload of a create_expense command.
type ExpenseIntent struct {
	Amount      float64
	Description string
	Category    string
	Icon        string
	Date        string
}

// Intent is a tagged union of the extractable commands. Exactly one payload
// field matching Type is set.
type Intent struct {
	Type    IntentType
	Task    *TaskIntent
	Event   *EventIntent
	Expense *ExpenseIntent
}

// ActionStatus reports the outcome of executing one intent.
type ActionStatus string

const (
	ActionOK    ActionStatus = "ok"
	ActionError ActionStatus = "error"
)

// ActionResult is the per-intent execution outcome. One intent failing never
// affects the results of its siblings in the same batch.
type ActionResult struct {
	Type    IntentType   `json:"type"`
	Status  ActionStatus `json:"status"`
	Message string       `json:"message,omitempty"`
}
