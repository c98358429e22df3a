package api

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/purplemerit/leadmesh/internal/models"
	"github.com/purplemerit/leadmesh/internal/orchestrator"
)

type OrchestratorHandler struct {
	orch *orchestrator.Orchestrator
}

func NewOrchestratorHandler(orch *orchestrator.Orchestrator) *OrchestratorHandler {
	return &OrchestratorHandler{orch: orch}
}

// Route handles POST /orchestrator/route
func (h *OrchestratorHandler) Route(w http.ResponseWriter, r *http.Request) {
	var req models.RouteRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Type == "" {
		writeError(w, http.StatusBadRequest, "type is required")
		return
	}

	result, err := h.orch.Route(r.Context(), &req)
	if err != nil {
		if errors.Is(err, orchestrator.ErrNoAgentAvailable) {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Handoff handles POST /orchestrator/handoff
func (h *OrchestratorHandler) Handoff(w http.ResponseWriter, r *http.Request) {
	var req models.HandoffRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Context == nil {
		writeError(w, http.StatusBadRequest, "context is required")
		return
	}
	if !req.DestAgentType.IsValid() {
		writeError(w, http.StatusBadRequest, "invalid destAgentType")
		return
	}

	result, err := h.orch.ExecuteHandoff(r.Context(), req.SourceRoleID, req.DestAgentType, req.Context)
	if err != nil {
		if errors.Is(err, orchestrator.ErrNoAgentAvailable) {
			writeError(w, http.StatusServiceUnavailable, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// Roles handles GET /orchestrator/roles
func (h *OrchestratorHandler) Roles(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.orch.Roles())
}

// ConversationState handles GET /orchestrator/conversations/{conversationId}/state
func (h *OrchestratorHandler) ConversationState(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationId")

	state, err := h.orch.ConversationState(conversationID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"conversationId": conversationID,
		"state":          state,
	})
}
