package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"hallpass-backend/internal/middleware"
	"hallpass-backend/internal/services"

	"github.com/rs/zerolog/log"
)

// PassHandler handles pass lifecycle HTTP requests. Rule violations come
// back from the engine as results, not errors, and are returned to the
// client as a plain message so it can branch on the outcome; only storage
// failures become a server error.
type PassHandler struct {
	passService *services.PassService
}

// NewPassHandler creates a new pass handler.
func NewPassHandler(passService *services.PassService) *PassHandler {
	return &PassHandler{passService: passService}
}

// CreatePassRequest is the request body for creating a pass.
type CreatePassRequest struct {
	Destination string `json:"destination"`
	FromTeacher string `json:"fromTeacher"`
	Purpose     string `json:"purpose"`
}

// PassIDRequest optionally targets another user's pass by id.
type PassIDRequest struct {
	PassID string `json:"passID"`
}

// CreatePass handles POST /api/v1/passes.
func (h *PassHandler) CreatePass(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	actor := middleware.GetActor(ctx)

	var req CreatePassRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	result, err := h.passService.Create(ctx, actor, req.Destination, req.FromTeacher, req.Purpose)
	if err != nil {
		log.Error().Err(err).Str("actor_id", actor.ID).Msg("Failed to create pass")
		respondError(w, "Server error", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, result)
}

// StartPass handles POST /api/v1/passes/start.
func (h *PassHandler) StartPass(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.passService.Start, "Failed to start pass")
}

// EndPass handles POST /api/v1/passes/end.
func (h *PassHandler) EndPass(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.passService.End, "Failed to end pass")
}

// CancelPass handles POST /api/v1/passes/cancel.
func (h *PassHandler) CancelPass(w http.ResponseWriter, r *http.Request) {
	h.lifecycle(w, r, h.passService.Cancel, "Failed to cancel pass")
}

func (h *PassHandler) lifecycle(
	w http.ResponseWriter,
	r *http.Request,
	op func(context.Context, services.Actor, string) (*services.PassResult, error),
	logMsg string,
) {
	ctx := r.Context()
	actor := middleware.GetActor(ctx)

	// The body is optional: students omit it to act on their own pass.
	var req PassIDRequest
	if r.Body != nil {
		_ = json.NewDecoder(r.Body).Decode(&req)
	}

	result, err := op(ctx, actor, req.PassID)
	if err != nil {
		log.Error().Err(err).Str("actor_id", actor.ID).Msg(logMsg)
		respondError(w, "Server error", http.StatusInternalServerError)
		return
	}
	respondJSON(w, http.StatusOK, result)
}
