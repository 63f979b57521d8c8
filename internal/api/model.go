package api

import (
	"encoding/json"
	"net/http"

	"github.com/koopa0/quill/internal/log"
	"github.com/koopa0/quill/internal/model"
)

type modelHandler struct {
	logger log.Logger
}

// list handles GET /api/models.
func (h *modelHandler) list(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"models":  model.All(),
		"default": model.DefaultID,
	}, h.logger)
}

type saveModelRequest struct {
	ModelID string `json:"modelId"`
}

// save handles POST /api/model: store the model preference in a cookie so
// later chat requests without an explicit modelId fall back to it.
func (h *modelHandler) save(w http.ResponseWriter, r *http.Request) {
	var req saveModelRequest
	r.Body = http.MaxBytesReader(w, r.Body, 4096)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid_request", "malformed JSON body", h.logger)
		return
	}

	m, err := model.Lookup(req.ModelID)
	if err != nil {
		writeError(w, http.StatusNotFound, "model_not_found", "unknown model: "+req.ModelID, h.logger)
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     model.CookieName,
		Value:    m.ID,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	writeJSON(w, http.StatusOK, map[string]string{"modelId": m.ID}, h.logger)
}
