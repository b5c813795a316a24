package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/kirillkom/cottonlog/internal/config"
	"github.com/kirillkom/cottonlog/internal/core/ports"
	"github.com/kirillkom/cottonlog/internal/observability/metrics"
)

const (
	serviceName = "api"

	maxImportBytes = 32 << 20
)

type Dependencies struct {
	Workflow ports.SessionWorkflow
	Reports  ports.SessionReporter
	Importer ports.TableImporter
	Exporter ports.TableExporter
	// Metrics is optional; without it /metrics is not served.
	Metrics *metrics.HTTPServerMetrics
	Logger  *slog.Logger
}

type Router struct {
	cfg      config.Config
	workflow ports.SessionWorkflow
	reports  ports.SessionReporter
	importer ports.TableImporter
	exporter ports.TableExporter
	metrics  *metrics.HTTPServerMetrics
	logger   *slog.Logger
	locks    *sessionLocks
}

func NewRouter(cfg config.Config, deps Dependencies) *Router {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		cfg:      cfg,
		workflow: deps.Workflow,
		reports:  deps.Reports,
		importer: deps.Importer,
		exporter: deps.Exporter,
		metrics:  deps.Metrics,
		logger:   logger,
		locks:    newSessionLocks(),
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	if rt.metrics != nil {
		mux.Handle("GET /metrics", rt.metrics.Handler())
	}

	mux.HandleFunc("GET /v1/sessions", rt.listSessions)
	mux.HandleFunc("POST /v1/sessions/manual", rt.createManualSession)
	mux.HandleFunc("POST /v1/sessions/inventory", rt.createInventorySession)
	mux.HandleFunc("GET /v1/sessions/{id}", rt.resumeSession)
	mux.HandleFunc("DELETE /v1/sessions/{id}", rt.deleteSession)
	mux.HandleFunc("PUT /v1/sessions/{id}/numbering", rt.updateNumbering)

	mux.HandleFunc("GET /v1/sessions/{id}/next", rt.nextCandidate)
	mux.HandleFunc("GET /v1/sessions/{id}/search", rt.search)
	mux.HandleFunc("POST /v1/sessions/{id}/scan", rt.scan)
	mux.HandleFunc("POST /v1/sessions/{id}/scan-failed", rt.scanFailed)
	mux.HandleFunc("POST /v1/sessions/{id}/select", rt.selectBale)
	mux.HandleFunc("POST /v1/sessions/{id}/bales/{bale}/weight", rt.recordWeight)
	mux.HandleFunc("POST /v1/sessions/{id}/bales/{bale}/assess", rt.assessQuality)
	mux.HandleFunc("POST /v1/sessions/{id}/bales/{bale}/complete", rt.completeBale)

	mux.HandleFunc("GET /v1/sessions/{id}/frequencies", rt.frequencies)
	mux.HandleFunc("GET /v1/sessions/{id}/summary", rt.summary)
	mux.HandleFunc("GET /v1/sessions/{id}/completed", rt.completedBales)
	mux.HandleFunc("GET /v1/sessions/{id}/export", rt.export)

	var handler http.Handler = recoverMiddleware(rt.logger, mux)
	handler = rateLimitMiddleware(handler, rt.cfg.APIRateLimitRPS, rt.cfg.APIRateLimitBurst, rt.onRateLimited)
	if rt.metrics != nil {
		handler = rt.metrics.Middleware(serviceName, handler)
	}
	handler = accessLogMiddleware(rt.logger, handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) onRateLimited() {
	if rt.metrics != nil {
		rt.metrics.RecordRateLimited(serviceName)
	}
}

func decodeJSON(r *http.Request, dst any) bool {
	if r.Body == nil {
		return false
	}
	return json.NewDecoder(r.Body).Decode(dst) == nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
