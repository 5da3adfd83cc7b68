// Package api serves the history over HTTP.
package api

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"jch-go/internal/history"
	"jch-go/internal/linediff"
)

// Handler serves the history API.
type Handler struct {
	service *history.Service
	maxAge  func() int
	logger  history.Logger
}

// NewHandler creates a Handler. maxAge supplies the retention used by
// POST /api/v1/purge.
func NewHandler(service *history.Service, maxAge func() int, logger history.Logger) *Handler {
	return &Handler{service: service, maxAge: maxAge, logger: logger}
}

// SetupRoutes configures API routes. metrics may be nil.
func SetupRoutes(router *mux.Router, h *Handler, metrics http.Handler) {
	router.Use(withRequestContext(h.logger))

	router.HandleFunc("/api/v1/configs", h.ListConfigs).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/history", h.GetHistory).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/raw", h.GetRaw).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/jobs/raw", h.GetJobRaw).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/diff", h.GetDiff).Methods(http.MethodGet)
	router.HandleFunc("/api/v1/restore", h.Restore).Methods(http.MethodPost)
	router.HandleFunc("/api/v1/purge", h.Purge).Methods(http.MethodPost)
	router.MethodNotAllowedHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		respondErrorWithCode(w, r, http.StatusMethodNotAllowed, ErrCodeMethodNotAllowed, r.Method+" not allowed on "+r.URL.Path)
	})

	router.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"status": "healthy"})
	}).Methods(http.MethodGet)
	if metrics != nil {
		router.Handle("/metrics", metrics).Methods(http.MethodGet)
	}
}

type configEntry struct {
	Name       string `json:"name"`
	Timestamp  string `json:"timestamp"`
	Operation  string `json:"operation"`
	User       string `json:"user"`
	UserID     string `json:"userId"`
	Job        bool   `json:"job"`
	HasContent bool   `json:"hasContent"`
	Link       string `json:"link,omitempty"`
}

func toEntries(configs []*history.ConfigInfo) []configEntry {
	out := make([]configEntry, 0, len(configs))
	for _, c := range configs {
		out = append(out, configEntry{
			Name:       c.ObjectName,
			Timestamp:  c.Timestamp,
			Operation:  string(c.Operation),
			User:       c.User,
			UserID:     c.UserID,
			Job:        c.IsJob(),
			HasContent: c.HasContent,
			Link:       c.Link,
		})
	}
	return out
}

// ListConfigs handles GET /api/v1/configs?filter=.
func (h *Handler) ListConfigs(w http.ResponseWriter, r *http.Request) {
	auth := h.service.Authorize(subject(r.Context()))
	configs, err := h.service.Query().Configs(auth, r.URL.Query().Get("filter"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toEntries(configs))
}

// GetHistory handles GET /api/v1/history?name=, the records of one system
// setting or deleted job.
func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	name := r.URL.Query().Get("name")
	auth := h.service.Authorize(subject(r.Context()))
	if !auth.CanReadObject(name) {
		respondErrorWithCode(w, r, http.StatusForbidden, ErrCodeForbidden, history.NoPermissionMessage)
		return
	}

	configs, err := h.service.Query().SingleConfigs(name)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, toEntries(configs))
}

// GetRaw handles GET /api/v1/raw?name=&timestamp= for system settings and
// deleted jobs.
func (h *Handler) GetRaw(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	auth := h.service.Authorize(subject(r.Context()))
	if !auth.CanReadObject(q.Get("name")) {
		respondErrorWithCode(w, r, http.StatusForbidden, ErrCodeForbidden, history.NoPermissionMessage)
		return
	}
	content, err := h.service.Query().RawContent(auth, q.Get("name"), q.Get("timestamp"))
	respondRaw(w, r, content, err)
}

// GetJobRaw handles GET /api/v1/jobs/raw?name=&timestamp=.
func (h *Handler) GetJobRaw(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	auth := h.service.Authorize(subject(r.Context()))
	if !auth.ConfigureJobs {
		respondErrorWithCode(w, r, http.StatusForbidden, ErrCodeForbidden, history.NoPermissionMessage)
		return
	}
	content, err := h.service.Query().JobRawContent(auth, q.Get("name"), q.Get("timestamp"))
	respondRaw(w, r, content, err)
}

func respondRaw(w http.ResponseWriter, r *http.Request, content string, err error) {
	if err != nil {
		respondError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/xml; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(content))
}

type diffLine struct {
	Kind string `json:"kind"`
	Text string `json:"text"`
}

type diffResponse struct {
	Name       string     `json:"name"`
	Timestamp1 string     `json:"timestamp1"`
	Timestamp2 string     `json:"timestamp2"`
	Added      int        `json:"added"`
	Removed    int        `json:"removed"`
	Lines      []diffLine `json:"lines"`
}

// GetDiff handles GET /api/v1/diff?name=&timestamp1=&timestamp2=. With
// job=true the job's own history is compared; with format=unified the
// response is a unified diff.
func (h *Handler) GetDiff(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	name, ts1, ts2 := q.Get("name"), q.Get("timestamp1"), q.Get("timestamp2")
	job := q.Get("job") == "true"
	auth := h.service.Authorize(subject(r.Context()))

	if q.Get("format") == "unified" {
		root := history.RootSystem
		if job || history.IsDeletedName(name) {
			root = history.RootJobs
		}
		out, err := h.service.Diff().Unified(auth, root, name, ts1, ts2)
		if err != nil {
			respondError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", "text/x-diff; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		w.Write(out)
		return
	}

	var (
		lines []linediff.Line
		err   error
	)
	if job {
		lines, err = h.service.Diff().JobLines(auth, name, ts1, ts2)
	} else {
		lines, err = h.service.Diff().Lines(auth, name, ts1, ts2)
	}
	if err != nil {
		respondError(w, r, err)
		return
	}

	resp := diffResponse{Name: name, Timestamp1: ts1, Timestamp2: ts2, Lines: make([]diffLine, 0, len(lines))}
	resp.Added, resp.Removed = linediff.Stats(lines)
	for _, l := range lines {
		resp.Lines = append(resp.Lines, diffLine{Kind: l.Kind.String(), Text: l.Text})
	}
	respondJSON(w, http.StatusOK, resp)
}

type restoreResponse struct {
	Name         string `json:"name"`
	ID           string `json:"id,omitempty"`
	URL          string `json:"url,omitempty"`
	Source       string `json:"source"`
	HistoryMoved bool   `json:"historyMoved"`
}

// Restore handles POST /api/v1/restore?name=.
func (h *Handler) Restore(w http.ResponseWriter, r *http.Request) {
	auth := h.service.Authorize(subject(r.Context()))
	result, err := h.service.Restore(auth, r.URL.Query().Get("name"))
	if err != nil {
		respondError(w, r, err)
		return
	}

	resp := restoreResponse{Name: result.Name, Source: result.Source, HistoryMoved: result.HistoryMoved}
	if result.Handle != nil {
		resp.ID = result.Handle.ID
		resp.URL = result.Handle.URL
		w.Header().Set("Location", result.Handle.URL)
	}
	respondJSON(w, http.StatusCreated, resp)
}

// Purge handles POST /api/v1/purge. It needs the configure-system
// capability.
func (h *Handler) Purge(w http.ResponseWriter, r *http.Request) {
	auth := h.service.Authorize(subject(r.Context()))
	if !auth.ConfigureSystem {
		respondErrorWithCode(w, r, http.StatusForbidden, ErrCodeForbidden, "purging needs the configure_system capability")
		return
	}

	result, err := h.service.Purge(h.maxAge())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, result)
}
