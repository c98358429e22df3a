package api

import (
	"net/http"

	"github.com/purplemerit/leadmesh/internal/embedding"
	"github.com/purplemerit/leadmesh/internal/store"
)

type serviceCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type healthResponse struct {
	Status       string        `json:"status"`
	DB           serviceCheck  `json:"db"`
	Embedder     *serviceCheck `json:"embedder,omitempty"`
	EpisodeCount int           `json:"episodeCount,omitempty"`
	ProfileCount int           `json:"profileCount,omitempty"`
	ShortTermLen int           `json:"shortTermLen"`
}

type HealthHandler struct {
	db       *store.DB
	short    *store.ShortTermStore
	profiles *store.ProfileStore
	episodes *store.EpisodeStore
	embedder *embedding.Client
}

func NewHealthHandler(db *store.DB, short *store.ShortTermStore, profiles *store.ProfileStore, episodes *store.EpisodeStore, embedder *embedding.Client) *HealthHandler {
	return &HealthHandler{db: db, short: short, profiles: profiles, episodes: episodes, embedder: embedder}
}

func (h *HealthHandler) Health(w http.ResponseWriter, r *http.Request) {
	resp := healthResponse{
		Status:       "ok",
		ShortTermLen: h.short.Len(),
	}

	if err := h.db.Ping(); err != nil {
		resp.DB = serviceCheck{Status: "error", Message: err.Error()}
		resp.Status = "degraded"
	} else {
		resp.DB = serviceCheck{Status: "ok"}
		if n, err := h.episodes.Count(); err == nil {
			resp.EpisodeCount = n
		}
		if n, err := h.profiles.Count(); err == nil {
			resp.ProfileCount = n
		}
	}

	// The embedder is optional; only vector similarity needs it.
	if h.embedder != nil {
		if err := h.embedder.HealthCheck(r.Context()); err != nil {
			resp.Embedder = &serviceCheck{Status: "error", Message: err.Error()}
			resp.Status = "degraded"
		} else {
			resp.Embedder = &serviceCheck{Status: "ok"}
		}
	}

	status := http.StatusOK
	if resp.Status != "ok" {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
