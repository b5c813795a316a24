package httpadapter

import (
	"bytes"
	"net/http"
	"strconv"
	"strings"

	"github.com/kirillkom/cottonlog/internal/core/domain"
	"github.com/kirillkom/cottonlog/internal/infrastructure/tabular/xlsx"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (rt *Router) frequencies(w http.ResponseWriter, r *http.Request) {
	field := strings.TrimSpace(r.URL.Query().Get("field"))
	if field == "" {
		writeBadRequest(w, "query parameter 'field' is required")
		return
	}
	entries, err := rt.reports.Frequencies(r.Context(), r.PathValue("id"), field)
	if err != nil {
		writeError(w, err)
		return
	}
	if entries == nil {
		entries = []domain.FrequencyEntry{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"field": field, "entries": entries})
}

func (rt *Router) summary(w http.ResponseWriter, r *http.Request) {
	summary, err := rt.reports.Summary(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}

func (rt *Router) completedBales(w http.ResponseWriter, r *http.Request) {
	bales, err := rt.reports.CompletedBales(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	if bales == nil {
		bales = []domain.Bale{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"bales": bales})
}

func (rt *Router) export(w http.ResponseWriter, r *http.Request) {
	session, err := rt.loadSession(r)
	if err != nil {
		writeError(w, err)
		return
	}

	var buf bytes.Buffer
	err = rt.exporter.Export(r.Context(), &buf, session)
	if rt.metrics != nil {
		rt.metrics.RecordExport(serviceName, err)
	}
	if err != nil {
		writeError(w, err)
		return
	}

	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="`+xlsx.FileName(session.Name)+`"`)
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(buf.Bytes())
}
