package api

import (
	"net/http"
	"strconv"

	"github.com/breathescope/breathescope/pkg/surface"
	"github.com/breathescope/breathescope/pkg/trend"
)

func (h *Handler) handleCreateExport(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")

	eng, ok := h.engineFor(w, userID)
	if !ok {
		return
	}
	start, end := historyWindow(r)
	history, err := eng.LoadHistory(r.Context(), start, end)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load history: "+err.Error())
		return
	}
	if len(history) == 0 {
		writeError(w, http.StatusNotFound, "no history in window")
		return
	}

	exp, err := h.exporter.ExportHistory(r.Context(), userID, history)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to export history: "+err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, exp)
}

func (h *Handler) handleCreateReport(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")

	eng, ok := h.engineFor(w, userID)
	if !ok {
		return
	}
	snap := eng.CurrentSnapshot()
	if snap == nil {
		writeError(w, http.StatusNotFound, "no score computed yet")
		return
	}

	view := &surface.View{Snapshot: snap, Stale: eng.State().Stale}
	start, end := historyWindow(r)
	if history, err := eng.LoadHistory(r.Context(), start, end); err == nil && len(history) > 0 {
		rep := trend.Analyze(history)
		view.Trend = &rep
	}

	reportID, err := h.exporter.ExportReport(r.Context(), userID, view)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to export report: "+err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]string{"report_id": reportID})
}

func (h *Handler) handleGetExport(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")
	exportID := r.PathValue("exportID")

	history, report := h.cache.Get(exportID)
	if history == nil {
		var err error
		history, report, err = h.exporter.LoadExport(r.Context(), userID, exportID)
		if err != nil {
			writeError(w, http.StatusNotFound, "export not found: "+err.Error())
			return
		}
		h.cache.Put(exportID, history, report)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"history": history,
		"trend":   report,
	})
}

func (h *Handler) handleAlerts(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}

	events, err := h.storeSvc.ListTriggerEvents(r.Context(), r.PathValue("userID"), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to load alerts: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"alerts": events,
		"count":  len(events),
	})
}
