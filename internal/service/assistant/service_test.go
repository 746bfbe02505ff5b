package assistant_test

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dailysync/keeper/internal/domain"
	"github.com/dailysync/keeper/internal/service/assistant"
	"github.com/dailysync/keeper/pkg/ctxutil"
)

type taskGatewayMock struct {
	insertFn func(ctx context.Context, t domain.Task) (domain.Task, error)
}

func (m *taskGatewayMock) Insert(ctx context.Context, t domain.Task) (domain.Task, error) {
	return m.insertFn(ctx, t)
}

type eventGatewayMock struct {
	insertFn func(ctx context.Context, e domain.CalendarEvent) (domain.CalendarEvent, error)
}

func (m *eventGatewayMock) Insert(ctx context.Context, e domain.CalendarEvent) (domain.CalendarEvent, error) {
	return m.insertFn(ctx, e)
}

type expenseGatewayMock struct {
	insertFn func(ctx context.Context, e domain.Expense) (domain.Expense, error)
}

func (m *expenseGatewayMock) Insert(ctx context.Context, e domain.Expense) (domain.Expense, error) {
	return m.insertFn(ctx, e)
}

type agendaMock struct {
	events map[string][]domain.CalendarEvent
}

func (m *agendaMock) EventsForDate(date string) []domain.CalendarEvent {
	return m.events[date]
}

func testNow() time.Time {
	return time.Date(2024, 7, 15, 14, 30, 0, 0, time.UTC)
}

func authedCtx() context.Context {
	return ctxutil.WithUserID(context.Background(), uuid.New())
}

func newService(gw assistant.Gateways, agenda *agendaMock) *assistant.Service {
	logger := slog.New(slog.DiscardHandler)
	var src interface {
		EventsForDate(string) []domain.CalendarEvent
	}
	if agenda != nil {
		src = agenda
	}
	return assistant.NewService(logger, assistant.NewExtractor(testNow), gw, src, nil, testNow)
}

func TestService_TaskCommandExecutes(t *testing.T) {
	t.Parallel()
	var inserted domain.Task
	gw := assistant.Gateways{
		Tasks: &taskGatewayMock{insertFn: func(_ context.Context, task domain.Task) (domain.Task, error) {
			inserted = task
			return task, nil
		}},
	}
	svc := newService(gw, nil)

	reply, err := svc.HandleMessage(authedCtx(), "Crea task chiamata Test domani alle 10")
	require.NoError(t, err)

	require.Len(t, reply.Actions, 1)
	assert.Equal(t, domain.IntentCreateTask, reply.Actions[0].Type)
	assert.Equal(t, domain.ActionOK, reply.Actions[0].Status)
	assert.Equal(t, "test", inserted.Title)
	assert.Equal(t, domain.PriorityMedium, inserted.Priority)

	require.Len(t, reply.Messages, 1)
	assert.Contains(t, reply.Messages[0].Message, "create_task")
}

func TestService_NoGatewayReportsErrorsInsteadOfThrowing(t *testing.T) {
	t.Parallel()
	svc := newService(assistant.Gateways{}, nil)

	reply, err := svc.HandleMessage(authedCtx(), "crea evento pranzo il 2024-08-01 alle 12:30")
	require.NoError(t, err)

	require.Len(t, reply.Actions, 1)
	assert.Equal(t, domain.ActionError, reply.Actions[0].Status)
	assert.Contains(t, reply.Actions[0].Message, "no remote gateway")
}

func TestService_SiblingFailureDoesNotBlockOthers(t *testing.T) {
	t.Parallel()
	gw := assistant.Gateways{
		Tasks: &taskGatewayMock{insertFn: func(_ context.Context, task domain.Task) (domain.Task, error) {
			return domain.Task{}, errors.New("insert blew up")
		}},
		Expenses: &expenseGatewayMock{insertFn: func(_ context.Context, e domain.Expense) (domain.Expense, error) {
			return e, nil
		}},
	}
	svc := newService(gw, nil)

	// One utterance carrying both a task and an expense command.
	reply, err := svc.HandleMessage(authedCtx(),
		"crea task chiamata revisione e aggiungi spesa di 20 per benzina")
	require.NoError(t, err)

	require.Len(t, reply.Actions, 2)
	byType := map[domain.IntentType]domain.ActionStatus{}
	for _, a := range reply.Actions {
		byType[a.Type] = a.Status
	}
	assert.Equal(t, domain.ActionError, byType[domain.IntentCreateTask])
	assert.Equal(t, domain.ActionOK, byType[domain.IntentCreateExpense])
}

func TestService_EmptyInputIsRejected(t *testing.T) {
	t.Parallel()
	svc := newService(assistant.Gateways{}, nil)

	_, err := svc.HandleMessage(authedCtx(), "   ")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestService_AgendaQuery(t *testing.T) {
	t.Parallel()
	agenda := &agendaMock{events: map[string][]domain.CalendarEvent{
		"2024-07-15": {
			{Title: "standup", Time: "09:00", Duration: 15},
			{Title: "review", Time: "16:00", Duration: 45},
		},
	}}
	svc := newService(assistant.Gateways{}, agenda)

	reply, err := svc.HandleMessage(authedCtx(), "cosa ho oggi?")
	require.NoError(t, err)
	require.Len(t, reply.Messages, 1)
	assert.Contains(t, reply.Messages[0].Message, "standup")
	assert.Contains(t, reply.Messages[0].Message, "review")
	assert.Empty(t, reply.Actions)

	reply, err = svc.HandleMessage(authedCtx(), "cosa ho domani?")
	require.NoError(t, err)
	assert.Contains(t, reply.Messages[0].Message, "non hai eventi")
}

func TestService_PendingEventFlow_AwaitingTime(t *testing.T) {
	t.Parallel()
	var inserted domain.CalendarEvent
	gw := assistant.Gateways{
		Events: &eventGatewayMock{insertFn: func(_ context.Context, e domain.CalendarEvent) (domain.CalendarEvent, error) {
			inserted = e
			return e, nil
		}},
	}
	svc := newService(gw, nil)
	ctx := authedCtx()

	// Recognized command, but no time: the assistant asks for it.
	reply, err := svc.HandleMessage(ctx, "aggiungi un appuntamento domani per chiamare Luca")
	require.NoError(t, err)
	assert.Contains(t, reply.Messages[0].Message, "che ora")
	assert.Empty(t, reply.Actions)

	// The next utterance fills exactly the awaited slot.
	reply, err = svc.HandleMessage(ctx, "alle 15")
	require.NoError(t, err)
	require.Len(t, reply.Actions, 1)
	assert.Equal(t, domain.ActionOK, reply.Actions[0].Status)
	assert.Equal(t, "chiamare Luca", inserted.Title)
	assert.Equal(t, "2024-07-16", inserted.Date)
	assert.Equal(t, "15:00", inserted.Time)
	assert.Contains(t, reply.Messages[0].Message, "Fatto")
}

func TestService_PendingEventFlow_AwaitingTitle(t *testing.T) {
	t.Parallel()
	var inserted domain.CalendarEvent
	gw := assistant.Gateways{
		Events: &eventGatewayMock{insertFn: func(_ context.Context, e domain.CalendarEvent) (domain.CalendarEvent, error) {
			inserted = e
			return e, nil
		}},
	}
	svc := newService(gw, nil)
	ctx := authedCtx()

	reply, err := svc.HandleMessage(ctx, "crea un evento oggi alle 18")
	require.NoError(t, err)
	assert.Contains(t, reply.Messages[0].Message, "chiamarlo")

	reply, err = svc.HandleMessage(ctx, "ok cena con Marta")
	require.NoError(t, err)
	require.Len(t, reply.Actions, 1)
	assert.Equal(t, domain.ActionOK, reply.Actions[0].Status)
	assert.Equal(t, "cena con Marta", inserted.Title)
	assert.Equal(t, "18:00", inserted.Time)
	assert.Equal(t, "2024-07-15", inserted.Date)
}

func TestService_PendingSlotRetriesOnUnusableAnswer(t *testing.T) {
	t.Parallel()
	gw := assistant.Gateways{
		Events: &eventGatewayMock{insertFn: func(_ context.Context, e domain.CalendarEvent) (domain.CalendarEvent, error) {
			return e, nil
		}},
	}
	svc := newService(gw, nil)
	ctx := authedCtx()

	_, err := svc.HandleMessage(ctx, "aggiungi un appuntamento domani per il dentista")
	require.NoError(t, err)

	// Not a time: the assistant keeps waiting for the same slot.
	reply, err := svc.HandleMessage(ctx, "boh")
	require.NoError(t, err)
	assert.Contains(t, reply.Messages[0].Message, "che ora")
	assert.Empty(t, reply.Actions)

	reply, err = svc.HandleMessage(ctx, "alle 11")
	require.NoError(t, err)
	require.Len(t, reply.Actions, 1)
	assert.Equal(t, domain.ActionOK, reply.Actions[0].Status)
}

func TestService_UnauthenticatedIntentsError(t *testing.T) {
	t.Parallel()
	gw := assistant.Gateways{
		Tasks: &taskGatewayMock{insertFn: func(_ context.Context, task domain.Task) (domain.Task, error) {
			return task, nil
		}},
	}
	svc := newService(gw, nil)

	reply, err := svc.HandleMessage(context.Background(), "crea task chiamata orfana")
	require.NoError(t, err)
	require.Len(t, reply.Actions, 1)
	assert.Equal(t, domain.ActionError, reply.Actions[0].Status)
	assert.Contains(t, reply.Actions[0].Message, "no authenticated user")
}

func TestService_GenericFallback(t *testing.T) {
	t.Parallel()
	svc := newService(assistant.Gateways{}, nil)

	reply, err := svc.HandleMessage(authedCtx(), "che tempo fa?")
	require.NoError(t, err)
	require.Len(t, reply.Messages, 1)
	assert.NotEmpty(t, reply.Messages[0].Message)
	assert.Empty(t, reply.Actions)
}
