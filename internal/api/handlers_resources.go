package api

import (
	"errors"
	"net/http"

	"github.com/purplemerit/leadmesh/internal/resource"
)

type ResourceHandler struct {
	res *resource.Manager
}

func NewResourceHandler(res *resource.Manager) *ResourceHandler {
	return &ResourceHandler{res: res}
}

type accessRequest struct {
	URI       string `json:"uri"`
	Scope     string `json:"scope"`
	Operation string `json:"operation"`
	Actor     string `json:"actor"`
}

// Access handles POST /resources/access
func (h *ResourceHandler) Access(w http.ResponseWriter, r *http.Request) {
	var req accessRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.URI == "" || req.Actor == "" {
		writeError(w, http.StatusBadRequest, "uri and actor are required")
		return
	}

	data, err := h.res.Access(r.Context(), req.URI, resource.Scope(req.Scope), req.Operation, req.Actor)
	if err != nil {
		switch {
		case errors.Is(err, resource.ErrPermissionDenied):
			writeError(w, http.StatusForbidden, err.Error())
		case errors.Is(err, resource.ErrNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		default:
			writeError(w, http.StatusInternalServerError, err.Error())
		}
		return
	}
	writeJSON(w, http.StatusOK, data)
}

// AccessLog handles GET /resources/access-log
func (h *ResourceHandler) AccessLog(w http.ResponseWriter, r *http.Request) {
	records := h.res.AccessLog()
	writeJSON(w, http.StatusOK, map[string]any{"records": records, "count": len(records)})
}
