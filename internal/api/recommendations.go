package api

import (
	"net/http"
	"strconv"

	"github.com/breathescope/breathescope/pkg/recommend"
	"github.com/breathescope/breathescope/pkg/score"
)

func (h *Handler) handleDismiss(w http.ResponseWriter, r *http.Request) {
	eng, ok := h.engineFor(w, r.PathValue("userID"))
	if !ok {
		return
	}
	if err := eng.DismissRecommendation(r.Context(), r.PathValue("recID")); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "dismissed"})
}

func (h *Handler) handleComplete(w http.ResponseWriter, r *http.Request) {
	recalculate := false
	if v := r.URL.Query().Get("recalculate"); v != "" {
		recalculate, _ = strconv.ParseBool(v)
	}

	eng, ok := h.engineFor(w, r.PathValue("userID"))
	if !ok {
		return
	}
	if err := eng.CompleteRecommendation(r.Context(), r.PathValue("recID"), recalculate); err != nil {
		writeEngineError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "completed"})
}

func (h *Handler) handleListRecommendations(w http.ResponseWriter, r *http.Request) {
	eng, ok := h.engineFor(w, r.PathValue("userID"))
	if !ok {
		return
	}
	snap := eng.CurrentSnapshot()
	if snap == nil {
		writeError(w, http.StatusNotFound, "no score computed yet")
		return
	}

	recs := snap.Recommendations
	q := r.URL.Query()
	if urgent, _ := strconv.ParseBool(q.Get("urgent")); urgent {
		recs = recommend.Urgent(snap)
	} else if recType := q.Get("type"); recType != "" {
		recs = recommend.ByType(snap, recType)
	} else if priority := q.Get("priority"); priority != "" {
		recs = recommend.ByPriority(snap, priority)
	}
	if recs == nil {
		recs = []score.Recommendation{}
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"recommendations": recs,
		"count":           len(recs),
	})
}
