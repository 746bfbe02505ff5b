// Package assistant implements the rule-based command assistant: it turns
// free-form Italian text into validated intents, executes them against the
// remote gateway with independent per-intent outcomes, answers agenda
// questions, and carries a single pending event draft across turns.
package assistant

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/dailysync/keeper/internal/domain"
	"github.com/dailysync/keeper/pkg/ctxutil"
)

const historyLimit = 10

type taskGateway interface {
	Insert(ctx context.Context, t domain.Task) (domain.Task, error)
}

type eventGateway interface {
	Insert(ctx context.Context, e domain.CalendarEvent) (domain.CalendarEvent, error)
}

type expenseGateway interface {
	Insert(ctx context.Context, e domain.Expense) (domain.Expense, error)
}

type messageRepo interface {
	Insert(ctx context.Context, m domain.AssistantMessage) (domain.AssistantMessage, error)
	ListRecent(ctx context.Context, userID uuid.UUID, limit int) ([]domain.AssistantMessage, error)
}

type txManager interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

type agendaSource interface {
	EventsForDate(date string) []domain.CalendarEvent
}

type llmClient interface {
	Chat(ctx context.Context, input string, history []ChatTurn) (string, error)
}

// Gateways bundles the privileged write paths the assistant executes against.
// A nil Gateways (or nil fields) means no gateway is configured: intents are
// still extracted and validated, but every execution reports an error.
type Gateways struct {
	Tasks    taskGateway
	Events   eventGateway
	Expenses expenseGateway
	Messages messageRepo
	Tx       txManager
}

// ChatMessage is one reply message returned to the caller.
type ChatMessage struct {
	Role    string `json:"role"`
	Message string `json:"message"`
}

// Reply is the full outcome of one user utterance.
type Reply struct {
	Messages []ChatMessage         `json:"messages"`
	Actions  []domain.ActionResult `json:"actions"`
}

// Service implements the assistant business logic.
type Service struct {
	log       *slog.Logger
	extractor *Extractor
	gw        Gateways
	agenda    agendaSource
	llm       llmClient
	now       func() time.Time

	mu      sync.Mutex
	pending *pendingIntent
}

// NewService creates a new assistant service. agenda and llm may be nil;
// now may be nil, defaulting to time.Now.
func NewService(
	logger *slog.Logger,
	extractor *Extractor,
	gw Gateways,
	agenda agendaSource,
	llm llmClient,
	now func() time.Time,
) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		log:       logger.With("service", "assistant"),
		extractor: extractor,
		gw:        gw,
		agenda:    agenda,
		llm:       llm,
		now:       now,
	}
}

// HandleMessage processes one user utterance: fills a pending slot if one is
// awaited, answers agenda questions, or extracts, validates, and executes
// intents. It always returns a usable Reply; only an empty input is an error.
func (s *Service) HandleMessage(ctx context.Context, input string) (Reply, error) {
	input = strings.TrimSpace(input)
	if input == "" {
		return Reply{}, fmt.Errorf("empty input: %w", domain.ErrValidation)
	}

	s.saveMessage(ctx, domain.RoleUser, input)

	if reply, handled := s.continuePending(ctx, input); handled {
		s.saveMessage(ctx, domain.RoleAssistant, reply.Messages[0].Message)
		return reply, nil
	}

	if offset, ok := s.extractor.AgendaQuery(input); ok {
		text := s.describeAgenda(offset)
		s.saveMessage(ctx, domain.RoleAssistant, text)
		return assistantReply(text, nil), nil
	}

	content, intents := s.extractIntents(ctx, input)

	if len(intents) == 0 && s.extractor.IsEventCommand(input) {
		reply := s.startPending(ctx, input)
		s.saveMessage(ctx, domain.RoleAssistant, reply.Messages[0].Message)
		return reply, nil
	}

	results := s.execute(ctx, intents)
	text := content
	if text == "" {
		text = s.genericAnswer(input)
	}
	if summary := summarize(results); summary != "" {
		text += summary
	}

	s.saveMessage(ctx, domain.RoleAssistant, text)
	return assistantReply(text, results), nil
}

// extractIntents runs the rule-based templates, augmented by the language
// model when one is configured. A model failure silently falls back to the
// rule-based result; extraction never errors.
func (s *Service) extractIntents(ctx context.Context, input string) (string, []domain.Intent) {
	intents := s.extractor.Extract(input)
	if s.llm == nil {
		return "", intents
	}

	content, err := s.llm.Chat(ctx, input, s.history(ctx))
	if err != nil {
		s.log.WarnContext(ctx, "language model unavailable, rule-based only", slog.Any("error", err))
		return "Non riesco a contattare il modello. Modalità fallback.", intents
	}
	return content, append(intents, s.extractor.Extract(content)...)
}

// execute runs every intent independently: validation failures and gateway
// errors mark that one intent, never its siblings. With no gateway configured
// every intent reports an error instead of panicking or throwing.
func (s *Service) execute(ctx context.Context, intents []domain.Intent) []domain.ActionResult {
	if len(intents) == 0 {
		return nil
	}

	userID, authed := ctxutil.UserIDFromCtx(ctx)
	results := make([]domain.ActionResult, 0, len(intents))
	for _, raw := range intents {
		if !s.gatewayFor(raw.Type) {
			results = append(results, domain.ActionResult{
				Type: raw.Type, Status: domain.ActionError, Message: "no remote gateway configured",
			})
			continue
		}
		if !authed {
			results = append(results, domain.ActionResult{
				Type: raw.Type, Status: domain.ActionError, Message: "no authenticated user",
			})
			continue
		}

		intent, err := validateIntent(raw, s.extractor.Today())
		if err != nil {
			results = append(results, domain.ActionResult{
				Type: raw.Type, Status: domain.ActionError, Message: err.Error(),
			})
			continue
		}

		if err := s.insert(ctx, userID, intent); err != nil {
			s.log.WarnContext(ctx, "intent execution failed",
				slog.String("type", intent.Type.String()), slog.Any("error", err))
			results = append(results, domain.ActionResult{
				Type: intent.Type, Status: domain.ActionError, Message: err.Error(),
			})
			continue
		}
		results = append(results, domain.ActionResult{Type: intent.Type, Status: domain.ActionOK})
	}
	return results
}

func (s *Service) gatewayFor(t domain.IntentType) bool {
	switch t {
	case domain.IntentCreateTask:
		return s.gw.Tasks != nil
	case domain.IntentCreateEvent:
		return s.gw.Events != nil
	case domain.IntentCreateExpense:
		return s.gw.Expenses != nil
	}
	return false
}

func (s *Service) insert(ctx context.Context, userID uuid.UUID, intent domain.Intent) error {
	switch intent.Type {
	case domain.IntentCreateTask:
		_, err := s.gw.Tasks.Insert(ctx, domain.Task{
			ID:       uuid.New(),
			UserID:   &userID,
			Title:    intent.Task.Title,
			Priority: intent.Task.Priority,
		})
		return err
	case domain.IntentCreateEvent:
		_, err := s.gw.Events.Insert(ctx, domain.CalendarEvent{
			ID:       uuid.New(),
			UserID:   &userID,
			Title:    intent.Event.Title,
			Date:     intent.Event.Date,
			Time:     intent.Event.Time,
			Duration: intent.Event.Duration,
			Color:    intent.Event.Color,
		})
		return err
	case domain.IntentCreateExpense:
		_, err := s.gw.Expenses.Insert(ctx, domain.Expense{
			ID:          uuid.New(),
			UserID:      &userID,
			Amount:      intent.Expense.Amount,
			Category:    intent.Expense.Category,
			Description: intent.Expense.Description,
			Icon:        intent.Expense.Icon,
			Date:        intent.Expense.Date,
		})
		return err
	}
	return fmt.Errorf("unknown intent type %q: %w", intent.Type, domain.ErrValidation)
}

// continuePending interprets input as the answer to the awaited slot, not as
// a new command. Expired drafts are dropped first.
func (s *Service) continuePending(ctx context.Context, input string) (Reply, bool) {
	s.mu.Lock()
	p := s.pending
	if p != nil && p.expired(s.now()) {
		s.pending = nil
		p = nil
	}
	s.mu.Unlock()
	if p == nil {
		return Reply{}, false
	}

	switch p.await {
	case awaitTitle:
		title := s.extractor.ExtractTitle(input)
		if len([]rune(title)) < 2 {
			return assistantReply("Ok! Come vuoi chiamarlo?", nil), true
		}
		p.draft.Title = title
	case awaitTime:
		t, ok := s.extractor.ParseTime(input)
		if !ok {
			return assistantReply("A che ora vuoi fissarlo? (es. 15:00)", nil), true
		}
		p.draft.Time = t
	default:
		return Reply{}, false
	}

	s.mu.Lock()
	s.pending = nil
	s.mu.Unlock()
	return s.finishDraft(ctx, p.draft), true
}

// startPending stashes a recognized but incomplete event command and asks for
// the missing slot.
func (s *Service) startPending(ctx context.Context, input string) Reply {
	draft := s.extractor.ParseEventCommand(input)

	if draft.Time != "" && draft.Title != "" {
		return s.finishDraft(ctx, draft)
	}

	p := &pendingIntent{draft: draft, setAt: s.now()}
	var question string
	if draft.Time == "" {
		p.await = awaitTime
		question = "A che ora vuoi fissarlo? (es. 15:00)"
		if draft.Title == "" {
			question = "Perfetto! A che ora lo fissiamo?"
		}
	} else {
		p.await = awaitTitle
		when := "in quella data"
		if draft.Date == s.extractor.Today() {
			when = "oggi"
		}
		question = fmt.Sprintf("Ok, %s alle %s. Come vuoi chiamarlo?", when, draft.Time)
	}

	s.mu.Lock()
	s.pending = p
	s.mu.Unlock()
	return assistantReply(question, nil)
}

// finishDraft turns a complete draft into a create_event intent and executes
// it.
func (s *Service) finishDraft(ctx context.Context, draft EventDraft) Reply {
	intent := domain.Intent{
		Type: domain.IntentCreateEvent,
		Event: &domain.EventIntent{
			Title:    draft.Title,
			Date:     draft.Date,
			Time:     draft.Time,
			Duration: draft.Duration,
		},
	}
	results := s.execute(ctx, []domain.Intent{intent})

	if len(results) == 1 && results[0].Status == domain.ActionOK {
		when := "il " + draft.Date
		if draft.Date == s.extractor.Today() {
			when = "oggi"
		}
		duration := draft.Duration
		if duration <= 0 {
			duration = defaultEventDuration
		}
		text := fmt.Sprintf("Fatto! Ho aggiunto %q %s alle %s (%d min).",
			draft.Title, when, draft.Time, duration)
		return assistantReply(text, results)
	}
	return assistantReply("Non riesco ad aggiungere eventi ora.", results)
}

func (s *Service) describeAgenda(offset int) string {
	date := s.extractor.DayOffset(offset)
	dayWord := "Oggi"
	if offset == 1 {
		dayWord = "Domani"
	}

	var events []domain.CalendarEvent
	if s.agenda != nil {
		events = s.agenda.EventsForDate(date)
	}
	if len(events) == 0 {
		return dayWord + " non hai eventi in agenda."
	}

	sorted := make([]domain.CalendarEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].SortKey() < sorted[j].SortKey()
	})

	var b strings.Builder
	b.WriteString(dayWord + " hai:")
	for _, e := range sorted {
		fmt.Fprintf(&b, "\n• %s — %s (%d min)", e.Time, e.Title, e.Duration)
	}
	return b.String()
}

func (s *Service) genericAnswer(input string) string {
	lower := strings.ToLower(input)
	switch {
	case strings.Contains(lower, "aiuto") || strings.Contains(lower, "help") ||
		strings.Contains(lower, "cosa sai fare"):
		return "Posso aiutarti a pianificare: chiedimi di aggiungere un evento, una task o una spesa, oppure chiedimi cosa hai oggi o domani."
	case strings.Contains(lower, "grazie") || strings.Contains(lower, "thanks"):
		return "Prego!"
	default:
		return "Ok! Posso aggiungere eventi, ricordarti gli impegni o dirti cosa hai in agenda."
	}
}

// history fetches recent conversation turns for model context, best effort.
func (s *Service) history(ctx context.Context) []ChatTurn {
	userID, ok := ctxutil.UserIDFromCtx(ctx)
	if !ok || s.gw.Messages == nil {
		return nil
	}
	stored, err := s.gw.Messages.ListRecent(ctx, userID, historyLimit)
	if err != nil {
		s.log.WarnContext(ctx, "load conversation history failed", slog.Any("error", err))
		return nil
	}
	turns := make([]ChatTurn, 0, len(stored))
	for _, m := range stored {
		turns = append(turns, ChatTurn{Role: string(m.Role), Content: m.Message})
	}
	return turns
}

// saveMessage persists one conversation turn, best effort. When a transaction
// manager is available the write is wrapped so a partial conversation never
// commits alongside a failed sibling write.
func (s *Service) saveMessage(ctx context.Context, role domain.ChatRole, text string) {
	userID, ok := ctxutil.UserIDFromCtx(ctx)
	if !ok || s.gw.Messages == nil {
		return
	}

	write := func(ctx context.Context) error {
		_, err := s.gw.Messages.Insert(ctx, domain.AssistantMessage{
			UserID:  userID,
			Role:    role,
			Message: text,
		})
		return err
	}

	var err error
	if s.gw.Tx != nil {
		err = s.gw.Tx.RunInTx(ctx, write)
	} else {
		err = write(ctx)
	}
	if err != nil {
		s.log.WarnContext(ctx, "save assistant message failed",
			slog.String("role", string(role)), slog.Any("error", err))
	}
}

func summarize(results []domain.ActionResult) string {
	var ok []string
	for _, r := range results {
		if r.Status == domain.ActionOK {
			ok = append(ok, r.Type.String())
		}
	}
	if len(ok) == 0 {
		return ""
	}
	return "\n\nAzioni eseguite: " + strings.Join(ok, ", ")
}

func assistantReply(text string, actions []domain.ActionResult) Reply {
	return Reply{
		Messages: []ChatMessage{{Role: "assistant", Message: text}},
		Actions:  actions,
	}
}
