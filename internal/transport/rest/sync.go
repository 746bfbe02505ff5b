package rest

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/dailysync/keeper/internal/domain"
)

type syncManager interface {
	State() domain.SyncState
	Backoff() time.Duration
	ScheduleSync(reason string)
	TriggerNow(ctx context.Context) error
}

// SyncHandler exposes the sync manager over HTTP: reading its phase and
// forcing an immediate pass.
type SyncHandler struct {
	mgr syncManager
	log *slog.Logger
}

// NewSyncHandler creates a SyncHandler. mgr may be nil in local-only mode;
// the handler then reports a permanently idle state.
func NewSyncHandler(mgr syncManager, logger *slog.Logger) *SyncHandler {
	return &SyncHandler{mgr: mgr, log: logger.With("handler", "sync")}
}

type syncStatusResponse struct {
	State   domain.SyncPhase `json:"state"`
	Backoff string           `json:"backoff,omitempty"`
}

// Status handles GET /api/sync.
func (h *SyncHandler) Status(w http.ResponseWriter, r *http.Request) {
	if h.mgr == nil {
		writeJSON(w, http.StatusOK, syncStatusResponse{State: domain.SyncIdle})
		return
	}

	resp := syncStatusResponse{State: h.mgr.State().Phase}
	if b := h.mgr.Backoff(); b > 0 {
		resp.Backoff = b.String()
	}
	writeJSON(w, http.StatusOK, resp)
}

// Trigger handles POST /api/sync: runs a full sync pass immediately,
// bypassing the debounce window.
func (h *SyncHandler) Trigger(w http.ResponseWriter, r *http.Request) {
	if h.mgr == nil {
		writeJSON(w, http.StatusOK, syncStatusResponse{State: domain.SyncIdle})
		return
	}

	if err := h.mgr.TriggerNow(r.Context()); err != nil {
		h.log.Warn("manual sync failed", "error", err)
		writeError(w, h.log, domain.ErrRemoteFailed)
		return
	}
	writeJSON(w, http.StatusOK, syncStatusResponse{State: h.mgr.State().Phase})
}
