package rest

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/dailysync/keeper/internal/domain"
)

type syncManagerMock struct {
	state     domain.SyncState
	backoff   time.Duration
	triggerFn func(ctx context.Context) error
}

func (m *syncManagerMock) State() domain.SyncState { return m.state }
func (m *syncManagerMock) Backoff() time.Duration  { return m.backoff }
func (m *syncManagerMock) ScheduleSync(string)     {}
func (m *syncManagerMock) TriggerNow(ctx context.Context) error {
	if m.triggerFn != nil {
		return m.triggerFn(ctx)
	}
	return nil
}

func TestSync_Status(t *testing.T) {
	t.Parallel()

	mgr := &syncManagerMock{
		state:   domain.SyncState{Phase: domain.SyncError},
		backoff: 4 * time.Second,
	}
	h := NewSyncHandler(mgr, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/sync", nil)
	rec := httptest.NewRecorder()

	h.Status(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"state":"error","backoff":"4s"}`, rec.Body.String())
}

func TestSync_StatusLocalOnly(t *testing.T) {
	t.Parallel()

	h := NewSyncHandler(nil, discardLogger())

	req := httptest.NewRequest(http.MethodGet, "/api/sync", nil)
	rec := httptest.NewRecorder()

	h.Status(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"state":"idle"}`, rec.Body.String())
}

func TestSync_Trigger(t *testing.T) {
	t.Parallel()

	triggered := false
	mgr := &syncManagerMock{
		state: domain.SyncState{Phase: domain.SyncIdle},
		triggerFn: func(_ context.Context) error {
			triggered = true
			return nil
		},
	}
	h := NewSyncHandler(mgr, discardLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/sync", nil)
	rec := httptest.NewRecorder()

	h.Trigger(rec, req)

	assert.True(t, triggered)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"state":"idle"}`, rec.Body.String())
}

func TestSync_TriggerFailure(t *testing.T) {
	t.Parallel()

	mgr := &syncManagerMock{
		state: domain.SyncState{Phase: domain.SyncError},
		triggerFn: func(_ context.Context) error {
			return errors.New("refetch tasks: connection refused")
		},
	}
	h := NewSyncHandler(mgr, discardLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/sync", nil)
	rec := httptest.NewRecorder()

	h.Trigger(rec, req)

	assert.Equal(t, http.StatusBadGateway, rec.Code)
}
