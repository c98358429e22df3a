package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/purplemerit/leadmesh/internal/memory"
	"github.com/purplemerit/leadmesh/internal/models"
)

type MemoryHandler struct {
	svc          *memory.Service
	consolidator *memory.Consolidator
}

func NewMemoryHandler(svc *memory.Service, consolidator *memory.Consolidator) *MemoryHandler {
	return &MemoryHandler{svc: svc, consolidator: consolidator}
}

// PutContext handles POST /memory/context
func (h *MemoryHandler) PutContext(w http.ResponseWriter, r *http.Request) {
	var req models.PutContextRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.ConversationID == "" {
		writeError(w, http.StatusBadRequest, "conversationId is required")
		return
	}

	h.svc.PutContext(req.ConversationID, req.Context, time.Duration(req.TTLHours)*time.Hour)
	writeJSON(w, http.StatusCreated, map[string]any{"stored": true})
}

// GetContext handles GET /memory/context/{conversationId}
func (h *MemoryHandler) GetContext(w http.ResponseWriter, r *http.Request) {
	conversationID := chi.URLParam(r, "conversationId")

	ctx, found := h.svc.GetContext(conversationID)
	writeJSON(w, http.StatusOK, models.GetContextResponse{
		ConversationID: conversationID,
		Context:        ctx,
		Found:          found,
	})
}

// UpdateProfile handles POST /memory/profiles
func (h *MemoryHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.LeadID == "" {
		writeError(w, http.StatusBadRequest, "leadId is required")
		return
	}

	if err := h.svc.UpdateProfile(req.LeadID, req.Preferences, req.RFMScore); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"updated": true})
}

// GetProfile handles GET /memory/profiles/{leadId}
func (h *MemoryHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	leadID := chi.URLParam(r, "leadId")

	profile, err := h.svc.GetProfile(leadID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if profile == nil {
		writeError(w, http.StatusNotFound, "profile not found")
		return
	}
	writeJSON(w, http.StatusOK, profile)
}

// AppendEpisode handles POST /memory/episodes
func (h *MemoryHandler) AppendEpisode(w http.ResponseWriter, r *http.Request) {
	var req models.AppendEpisodeRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Scenario == "" {
		writeError(w, http.StatusBadRequest, "scenario is required")
		return
	}

	id, err := h.svc.AppendEpisode(r.Context(), req.Scenario, req.Actions, req.OutcomeScore, req.Notes)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, models.AppendEpisodeResponse{EpisodeID: id})
}

// QueryEpisodes handles POST /memory/episodes/query
func (h *MemoryHandler) QueryEpisodes(w http.ResponseWriter, r *http.Request) {
	var req models.QueryEpisodesRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}

	episodes, err := h.svc.QueryEpisodes(r.Context(), req.Scenario, req.TopK)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"episodes": episodes, "count": len(episodes)})
}

// UpsertTriple handles POST /memory/graph
func (h *MemoryHandler) UpsertTriple(w http.ResponseWriter, r *http.Request) {
	var req models.UpsertTripleRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.Subject == "" || req.Predicate == "" || req.Object == "" {
		writeError(w, http.StatusBadRequest, "subject, predicate and object are required")
		return
	}

	if err := h.svc.UpsertTriple(req.Subject, req.Predicate, req.Object, req.Weight); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"stored": true})
}

// QueryTriples handles GET /memory/graph
func (h *MemoryHandler) QueryTriples(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	triples, err := h.svc.QueryTriples(q.Get("subject"), q.Get("predicate"), q.Get("object"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"triples": triples, "count": len(triples)})
}

// Consolidate handles POST /memory/consolidate
func (h *MemoryHandler) Consolidate(w http.ResponseWriter, r *http.Request) {
	report, err := h.consolidator.Run(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, models.ConsolidateResponse{
		Scanned:  report.Scanned,
		Promoted: report.Promoted,
		Failures: report.Failures,
	})
}

// Actions handles GET /memory/actions?conversationId=...&limit=...
func (h *MemoryHandler) Actions(w http.ResponseWriter, r *http.Request) {
	conversationID := r.URL.Query().Get("conversationId")
	if conversationID == "" {
		writeError(w, http.StatusBadRequest, "conversationId is required")
		return
	}

	actions, err := h.svc.ConversationActions(conversationID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if limitStr := r.URL.Query().Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil && limit >= 0 && limit < len(actions) {
			actions = actions[len(actions)-limit:]
		}
	}
	writeJSON(w, http.StatusOK, map[string]any{"actions": actions, "count": len(actions)})
}
