package api

import (
	"encoding/json"
	"net/http"

	"github.com/breathescope/breathescope/pkg/score"
)

type registerUserRequest struct {
	ID            string               `json:"id"`
	DisplayName   string               `json:"display_name"`
	HomeLatitude  float64              `json:"home_latitude"`
	HomeLongitude float64              `json:"home_longitude"`
	Profile       *score.HealthProfile `json:"profile"`
}

func (h *Handler) handleRegisterUser(w http.ResponseWriter, r *http.Request) {
	var req registerUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if req.ID == "" {
		writeError(w, http.StatusBadRequest, "id is required")
		return
	}
	if req.Profile == nil {
		writeError(w, http.StatusBadRequest, "profile is required")
		return
	}

	user := &score.User{
		ID:            req.ID,
		DisplayName:   req.DisplayName,
		HomeLatitude:  req.HomeLatitude,
		HomeLongitude: req.HomeLongitude,
	}
	if err := h.storeSvc.UpsertUser(r.Context(), user, req.Profile); err != nil {
		writeError(w, http.StatusInternalServerError, "failed to save user: "+err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"status": "registered", "id": req.ID})
}
