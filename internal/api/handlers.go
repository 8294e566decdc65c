// Package api exposes preflight scans over HTTP: jobs are started and
// cancelled through JSON endpoints and their progress is streamed over a
// websocket.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"spo-preflight/internal/config"
	"spo-preflight/internal/history"
	"spo-preflight/internal/logger"
	"spo-preflight/internal/runner"
	"spo-preflight/internal/scanner"
)

const (
	defaultProgressInterval = time.Second
	defaultHistoryLimit     = 20
	writeWait               = 10 * time.Second
)

// Handler serves the scan API. Every request-supplied config is applied on
// top of a copy of the server config.
type Handler struct {
	config *config.Config
	logger logger.Logger
	jobs   *registry

	ctx    context.Context
	cancel context.CancelFunc

	// ProgressInterval is how often websocket clients receive a status
	ProgressInterval time.Duration
}

// NewHandler creates a Handler for cfg
func NewHandler(cfg *config.Config, log logger.Logger) *Handler {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if log == nil {
		log = logger.Nop()
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Handler{
		config:           cfg,
		logger:           log,
		jobs:             newRegistry(),
		ctx:              ctx,
		cancel:           cancel,
		ProgressInterval: defaultProgressInterval,
	}
}

type scanRequest struct {
	Path   string          `json:"path"`
	Config json.RawMessage `json:"config,omitempty"`
}

// StartScan starts a scan job and answers 202 with its status
func (h *Handler) StartScan(w http.ResponseWriter, r *http.Request) {
	var req scanRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "path cannot be empty")
		return
	}

	root, err := scanner.ValidateRoot(req.Path)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	id := uuid.NewString()
	cfg, err := h.jobConfig(req.Config, id)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	ctx, cancel := context.WithCancel(h.ctx)
	job := newJob(id, root, cfg.ReportPath, cancel)
	h.jobs.add(job)

	log := &jobLogger{prefix: fmt.Sprintf("[scan %s] ", id[:8]), base: h.logger}
	go func() {
		defer cancel()
		out, err := runner.Run(ctx, runner.Options{
			Config:  cfg,
			Root:    root,
			Logger:  log,
			Started: job.setScanner,
		})
		job.finish(out, err)
	}()

	writeJSON(w, http.StatusAccepted, job.Status())
}

// jobConfig decodes the request config over a copy of the server config.
// Output locations always stay under the server's report directory.
func (h *Handler) jobConfig(raw json.RawMessage, id string) (*config.Config, error) {
	cfg := h.config.Clone()
	if len(bytes.TrimSpace(raw)) > 0 {
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(cfg); err != nil {
			return nil, fmt.Errorf("invalid config: %w", err)
		}
	}

	cfg.ReportPath = filepath.Join(h.config.Server.ReportDir, id+".csv")
	cfg.SummaryJSON = ""
	cfg.LogFile = ""
	cfg.History = h.config.History
	cfg.Server = h.config.Server

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ListScans returns every job in start order
func (h *Handler) ListScans(w http.ResponseWriter, r *http.Request) {
	jobs := h.jobs.list()
	statuses := make([]Status, 0, len(jobs))
	for _, job := range jobs {
		statuses = append(statuses, job.Status())
	}
	writeJSON(w, http.StatusOK, statuses)
}

// GetStatus returns one job
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	job, ok := h.lookup(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, job.Status())
}

// CancelScan cancels a running job. The job keeps its partial report.
func (h *Handler) CancelScan(w http.ResponseWriter, r *http.Request) {
	job, ok := h.lookup(w, r)
	if !ok {
		return
	}
	if !job.Cancel() {
		writeError(w, http.StatusConflict, "scan already finished")
		return
	}
	writeJSON(w, http.StatusAccepted, job.Status())
}

// GetReport downloads the CSV report of a finished job
func (h *Handler) GetReport(w http.ResponseWriter, r *http.Request) {
	job, ok := h.lookup(w, r)
	if !ok {
		return
	}
	st := job.Status()
	if st.State == StateRunning {
		writeError(w, http.StatusConflict, "scan is still running")
		return
	}
	if _, err := os.Stat(job.ReportPath); err != nil {
		writeError(w, http.StatusNotFound, "report not available")
		return
	}

	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="SPOMigrationReport-%s.csv"`, job.ID))
	http.ServeFile(w, r, job.ReportPath)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
}

// WebSocketHandler streams job status snapshots until the job finishes,
// then sends the final status and closes the connection
func (h *Handler) WebSocketHandler(w http.ResponseWriter, r *http.Request) {
	job, ok := h.lookup(w, r)
	if !ok {
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.LogWarn(fmt.Sprintf("websocket upgrade failed: %v", err))
		return
	}
	defer conn.Close()

	// drain client frames so close messages are noticed
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	send := func() error {
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(job.Status())
	}

	interval := h.ProgressInterval
	if interval <= 0 {
		interval = defaultProgressInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	if err := send(); err != nil {
		return
	}
	for {
		select {
		case <-job.Done():
			if err := send(); err != nil {
				return
			}
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(job.Status().State))
			conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			return
		case <-ticker.C:
			if err := send(); err != nil {
				return
			}
		case <-closed:
			return
		}
	}
}

// GetHistory lists recorded runs, most recent first
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	limit := defaultHistoryLimit
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	if !h.config.History.Enabled {
		writeJSON(w, http.StatusOK, []*history.Run{})
		return
	}

	store, err := history.NewStore(h.config.History.DBPath)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	defer store.Close()

	runs, err := store.List(r.Context(), r.URL.Query().Get("root"), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if runs == nil {
		runs = []*history.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

// Shutdown cancels every running job and waits for them to finish or for
// ctx to expire
func (h *Handler) Shutdown(ctx context.Context) error {
	h.cancel()
	for _, job := range h.jobs.list() {
		select {
		case <-job.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Job returns the job with id
func (h *Handler) Job(id string) (*Job, bool) {
	return h.jobs.get(id)
}

func (h *Handler) lookup(w http.ResponseWriter, r *http.Request) (*Job, bool) {
	id := mux.Vars(r)["id"]
	job, ok := h.jobs.get(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("scan %s not found", id))
	}
	return job, ok
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}

// jobLogger tags every line with the job it belongs to
type jobLogger struct {
	prefix string
	base   logger.Logger
}

func (l *jobLogger) LogDebug(message string) { l.base.LogDebug(l.prefix + message) }
func (l *jobLogger) LogInfo(message string)  { l.base.LogInfo(l.prefix + message) }
func (l *jobLogger) LogWarn(message string)  { l.base.LogWarn(l.prefix + message) }
func (l *jobLogger) LogError(message string) { l.base.LogError(l.prefix + message) }
