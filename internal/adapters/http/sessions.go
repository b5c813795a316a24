package httpadapter

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/cottonlog/internal/core/domain"
	"github.com/kirillkom/cottonlog/internal/core/ports"
)

type numberingRequest struct {
	Lot       string `json:"lot"`
	StartBale int    `json:"start_bale"`
}

type sessionResponse struct {
	Session   *domain.Session `json:"session"`
	Candidate *domain.Bale    `json:"candidate,omitempty"`
}

type sessionListItem struct {
	ID        string               `json:"id"`
	Name      string               `json:"name"`
	Mode      domain.SessionMode   `json:"mode"`
	Status    domain.SessionStatus `json:"status"`
	CreatedAt string               `json:"created_at"`
	Bales     int                  `json:"bales"`
}

func (rt *Router) listSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := rt.workflow.ListSessions(r.Context())
	if err != nil {
		writeError(w, err)
		return
	}
	items := make([]sessionListItem, 0, len(sessions))
	for _, s := range sessions {
		items = append(items, sessionListItem{
			ID:        s.ID,
			Name:      s.Name,
			Mode:      s.Mode,
			Status:    s.Status,
			CreatedAt: s.CreatedAt.UTC().Format(time.RFC3339),
			Bales:     len(s.Bales),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": items})
}

func (rt *Router) createManualSession(w http.ResponseWriter, r *http.Request) {
	var req numberingRequest
	if !decodeJSON(r, &req) {
		writeBadRequest(w, "invalid json")
		return
	}
	session, candidate, err := rt.workflow.CreateManualSession(r.Context(), ports.ManualSetup{
		Lot:         req.Lot,
		StartNumber: req.StartBale,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{Session: session, Candidate: &candidate})
}

// createInventorySession accepts multipart form fields: file, id_column,
// quality_columns (repeated or comma separated), lot and start_bale.
func (rt *Router) createInventorySession(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxImportBytes); err != nil {
		writeBadRequest(w, "multipart form is required")
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		writeBadRequest(w, "multipart field 'file' is required")
		return
	}
	defer file.Close()

	start, err := strconv.Atoi(strings.TrimSpace(r.FormValue("start_bale")))
	if err != nil {
		writeBadRequest(w, "start_bale must be an integer")
		return
	}

	table, err := rt.importer.Import(r.Context(), file)
	if err != nil {
		writeError(w, err)
		return
	}

	session, err := rt.workflow.CreateInventorySession(r.Context(), ports.InventorySetup{
		Table:          table,
		IDColumn:       r.FormValue("id_column"),
		QualityColumns: qualityColumns(r.MultipartForm.Value["quality_columns"]),
		Lot:            r.FormValue("lot"),
		StartNumber:    start,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, sessionResponse{Session: session})
}

func qualityColumns(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func (rt *Router) resumeSession(w http.ResponseWriter, r *http.Request) {
	session, candidate, err := rt.workflow.ResumeSession(r.Context(), r.PathValue("id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Session: session, Candidate: candidate})
}

func (rt *Router) deleteSession(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	unlock := rt.locks.lock(id)
	defer unlock()

	if err := rt.workflow.DeleteSession(r.Context(), id); err != nil {
		writeError(w, err)
		return
	}
	rt.locks.forget(id)
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) updateNumbering(w http.ResponseWriter, r *http.Request) {
	var req numberingRequest
	if !decodeJSON(r, &req) {
		writeBadRequest(w, "invalid json")
		return
	}

	id := r.PathValue("id")
	unlock := rt.locks.lock(id)
	defer unlock()

	session, _, err := rt.workflow.ResumeSession(r.Context(), id)
	if err != nil {
		writeError(w, err)
		return
	}
	updated, err := rt.workflow.UpdateNumbering(r.Context(), session, req.Lot, req.StartBale)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sessionResponse{Session: updated})
}
