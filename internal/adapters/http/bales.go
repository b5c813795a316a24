package httpadapter

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/kirillkom/cottonlog/internal/core/domain"
)

type scanRequest struct {
	Code string `json:"code"`
}

type scanFailedRequest struct {
	Reason string `json:"reason"`
}

type selectRequest struct {
	BaleID string `json:"bale_id"`
}

// weightRequest accepts the weight as typed by the operator ("123.4") or as a
// JSON number.
type weightRequest struct {
	Weight     json.RawMessage `json:"weight"`
	Assessment *string         `json:"assessment,omitempty"`
}

func (req weightRequest) text() string {
	raw := strings.TrimSpace(string(req.Weight))
	if raw == "" || raw == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(req.Weight, &s); err == nil {
		return s
	}
	return raw
}

func (rt *Router) loadSession(r *http.Request) (*domain.Session, error) {
	session, _, err := rt.workflow.ResumeSession(r.Context(), r.PathValue("id"))
	return session, err
}

func (rt *Router) nextCandidate(w http.ResponseWriter, r *http.Request) {
	session, err := rt.loadSession(r)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, rt.workflow.ResumeSequential(session))
}

func (rt *Router) search(w http.ResponseWriter, r *http.Request) {
	session, err := rt.loadSession(r)
	if err != nil {
		writeError(w, err)
		return
	}
	limit := rt.cfg.MatchLimit
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			writeBadRequest(w, "limit must be a positive integer")
			return
		}
		limit = n
	}

	results := rt.workflow.Search(session, r.URL.Query().Get("q"))
	total := len(results)
	if limit > 0 && total > limit {
		results = results[:limit]
	}
	if results == nil {
		results = []domain.Bale{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"results": results, "total": total})
}

func (rt *Router) scan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if !decodeJSON(r, &req) {
		writeBadRequest(w, "invalid json")
		return
	}
	session, err := rt.loadSession(r)
	if err != nil {
		writeError(w, err)
		return
	}
	result, err := rt.workflow.Scan(session, req.Code)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (rt *Router) scanFailed(w http.ResponseWriter, r *http.Request) {
	var req scanFailedRequest
	if !decodeJSON(r, &req) {
		writeBadRequest(w, "invalid json")
		return
	}
	writeError(w, rt.workflow.ScanFailed(domain.ParseDecoderReason(req.Reason)))
}

func (rt *Router) selectBale(w http.ResponseWriter, r *http.Request) {
	var req selectRequest
	if !decodeJSON(r, &req) {
		writeBadRequest(w, "invalid json")
		return
	}
	session, err := rt.loadSession(r)
	if err != nil {
		writeError(w, err)
		return
	}
	bale, err := rt.workflow.SelectBale(session, strings.TrimSpace(req.BaleID))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, bale)
}

func (rt *Router) recordWeight(w http.ResponseWriter, r *http.Request) {
	var req weightRequest
	if !decodeJSON(r, &req) {
		writeBadRequest(w, "invalid json")
		return
	}
	session, err := rt.loadSession(r)
	if err != nil {
		writeError(w, err)
		return
	}
	bale, err := rt.workflow.SelectBale(session, r.PathValue("bale"))
	if err != nil {
		writeError(w, err)
		return
	}
	weight, err := rt.workflow.RecordWeight(bale, req.text())
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"bale_id": bale.ID, "weight": weight})
}

func (rt *Router) assessQuality(w http.ResponseWriter, r *http.Request) {
	session, err := rt.loadSession(r)
	if err != nil {
		writeError(w, err)
		return
	}
	bale, err := rt.workflow.SelectBale(session, r.PathValue("bale"))
	if err != nil {
		writeError(w, err)
		return
	}
	text, err := rt.workflow.AssessQuality(r.Context(), session, bale)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"bale_id": bale.ID, "assessment": text})
}

func (rt *Router) completeBale(w http.ResponseWriter, r *http.Request) {
	var req weightRequest
	if !decodeJSON(r, &req) {
		writeBadRequest(w, "invalid json")
		return
	}

	unlock := rt.locks.lock(r.PathValue("id"))
	defer unlock()

	session, err := rt.loadSession(r)
	if err != nil {
		writeError(w, err)
		return
	}
	bale, err := rt.workflow.SelectBale(session, r.PathValue("bale"))
	if err != nil {
		writeError(w, err)
		return
	}
	weight, err := rt.workflow.RecordWeight(bale, req.text())
	if err != nil {
		writeError(w, err)
		return
	}
	completion, err := rt.workflow.CompleteBale(r.Context(), session, bale, weight, req.Assessment)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, completion)
}
