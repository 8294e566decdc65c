package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"spo-preflight/web/handlers"
)

// NewRouter wires the API and the browser pages
func NewRouter(h *Handler) *mux.Router {
	router := mux.NewRouter()

	// API routes
	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/scans", h.StartScan).Methods(http.MethodPost)
	api.HandleFunc("/scans", h.ListScans).Methods(http.MethodGet)
	api.HandleFunc("/scans/{id}", h.GetStatus).Methods(http.MethodGet)
	api.HandleFunc("/scans/{id}", h.CancelScan).Methods(http.MethodDelete)
	api.HandleFunc("/scans/{id}/report", h.GetReport).Methods(http.MethodGet)
	api.HandleFunc("/scans/{id}/ws", h.WebSocketHandler)
	api.HandleFunc("/history", h.GetHistory).Methods(http.MethodGet)

	// Web routes
	pages := handlers.NewPages(h)
	router.HandleFunc("/", pages.HomePage).Methods(http.MethodGet)
	router.HandleFunc("/scans/{id}", pages.ScanPage).Methods(http.MethodGet)

	return router
}

// Scans lists jobs for the browser pages
func (h *Handler) Scans() []handlers.ScanSummary {
	jobs := h.jobs.list()
	out := make([]handlers.ScanSummary, 0, len(jobs))
	// newest first
	for i := len(jobs) - 1; i >= 0; i-- {
		out = append(out, summarize(jobs[i].Status()))
	}
	return out
}

// Scan returns one job for the browser pages
func (h *Handler) Scan(id string) (handlers.ScanSummary, bool) {
	job, ok := h.jobs.get(id)
	if !ok {
		return handlers.ScanSummary{}, false
	}
	return summarize(job.Status()), true
}

func summarize(st Status) handlers.ScanSummary {
	sum := handlers.ScanSummary{
		ID:        st.ID,
		Root:      st.Root,
		State:     string(st.State),
		StartedAt: st.StartedAt,
	}
	if st.Progress != nil {
		sum.ItemsScanned = st.Progress.ItemsScanned
		sum.IssuesFound = st.Progress.IssuesFound
		sum.CurrentDirectory = st.Progress.CurrentDirectory
	}
	return sum
}
