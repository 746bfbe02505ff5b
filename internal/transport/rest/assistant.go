package rest

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"

	"github.com/dailysync/keeper/internal/domain"
	"github.com/dailysync/keeper/internal/service/assistant"
	"github.com/dailysync/keeper/pkg/ctxutil"
)

type chatService interface {
	HandleMessage(ctx context.Context, input string) (assistant.Reply, error)
}

// AssistantHandler serves the conversational assistant endpoint.
type AssistantHandler struct {
	svc chatService
	log *slog.Logger
}

// NewAssistantHandler creates an AssistantHandler.
func NewAssistantHandler(svc chatService, logger *slog.Logger) *AssistantHandler {
	return &AssistantHandler{svc: svc, log: logger.With("handler", "assistant")}
}

type assistantRequest struct {
	Input string `json:"input"`
	// UserID is an optional explicit owner, honored only when the request
	// carries no authenticated user. Clients running against a local
	// deployment use it instead of a bearer token.
	UserID string `json:"userId,omitempty"`
}

// Chat handles POST /api/assistant.
func (h *AssistantHandler) Chat(w http.ResponseWriter, r *http.Request) {
	var req assistantRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, h.log, err)
		return
	}

	ctx := r.Context()
	if _, ok := ctxutil.UserIDFromCtx(ctx); !ok && req.UserID != "" {
		id, err := uuid.Parse(req.UserID)
		if err != nil {
			writeError(w, h.log, domain.NewValidationError("userId", "must be a UUID"))
			return
		}
		ctx = ctxutil.WithUserID(ctx, id)
	}

	reply, err := h.svc.HandleMessage(ctx, req.Input)
	if err != nil {
		writeError(w, h.log, err)
		return
	}

	writeJSON(w, http.StatusOK, reply)
}
