package api

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/breathescope/breathescope/pkg/surface"
	"github.com/breathescope/breathescope/pkg/trend"
)

type computeScoreRequest struct {
	IncludeHistorical bool               `json:"include_historical"`
	LocationPatterns  map[string]float64 `json:"location_patterns,omitempty"`
}

func (h *Handler) handleComputeScore(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")

	var req computeScoreRequest
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
			return
		}
	}

	user, profile, err := h.storeSvc.GetUser(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusNotFound, "unknown user: "+err.Error())
		return
	}

	eng, ok := h.engineFor(w, userID)
	if !ok {
		return
	}
	snap, err := eng.RequestScore(r.Context(), user, profile, req.IncludeHistorical, req.LocationPatterns)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) handleRefresh(w http.ResponseWriter, r *http.Request) {
	eng, ok := h.engineFor(w, r.PathValue("userID"))
	if !ok {
		return
	}
	snap, err := eng.Refresh(r.Context())
	if err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (h *Handler) handleCurrentScore(w http.ResponseWriter, r *http.Request) {
	eng, ok := h.engineFor(w, r.PathValue("userID"))
	if !ok {
		return
	}
	st := eng.State()
	if st.Snapshot == nil {
		writeError(w, http.StatusNotFound, "no score computed yet")
		return
	}
	writeJSON(w, http.StatusOK, surface.View{Snapshot: st.Snapshot, Stale: st.Stale})
}

func (h *Handler) handleState(w http.ResponseWriter, r *http.Request) {
	eng, ok := h.engineFor(w, r.PathValue("userID"))
	if !ok {
		return
	}
	st := eng.State()
	resp := map[string]any{
		"phase": st.Phase.String(),
		"stale": st.Stale,
	}
	if st.Err != nil {
		resp["error"] = st.Err.Error()
	}
	if st.Snapshot != nil {
		resp["score"] = st.Snapshot.Overall
		resp["computed_at"] = st.Snapshot.Timestamp
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *Handler) handleHistory(w http.ResponseWriter, r *http.Request) {
	eng, ok := h.engineFor(w, r.PathValue("userID"))
	if !ok {
		return
	}
	start, end := historyWindow(r)
	history, err := eng.LoadHistory(r.Context(), start, end)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load history: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"history": history,
		"count":   len(history),
	})
}

func (h *Handler) handleTrend(w http.ResponseWriter, r *http.Request) {
	eng, ok := h.engineFor(w, r.PathValue("userID"))
	if !ok {
		return
	}
	start, end := historyWindow(r)
	history, err := eng.LoadHistory(r.Context(), start, end)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load history: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, trend.Analyze(history))
}

func (h *Handler) handleAttention(w http.ResponseWriter, r *http.Request) {
	eng, ok := h.engineFor(w, r.PathValue("userID"))
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{
		"needs_immediate_attention": eng.NeedsImmediateAttention(),
	})
}

type mergeRequest struct {
	Factors map[string]float64 `json:"factors"`
}

func (h *Handler) handleMerge(w http.ResponseWriter, r *http.Request) {
	var req mergeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return
	}
	if len(req.Factors) == 0 {
		writeError(w, http.StatusBadRequest, "factors is required")
		return
	}

	eng, ok := h.engineFor(w, r.PathValue("userID"))
	if !ok {
		return
	}
	if err := eng.MergeExternalData(r.Context(), req.Factors); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "merged"})
}

// historyWindow parses the optional hours query parameter, defaulting to
// the last 7 days.
func historyWindow(r *http.Request) (time.Time, time.Time) {
	hours := 7 * 24
	if v := r.URL.Query().Get("hours"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil && parsed > 0 {
			hours = parsed
		}
	}
	end := time.Now().UTC()
	return end.Add(-time.Duration(hours) * time.Hour), end
}
