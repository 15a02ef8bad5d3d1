// Package mockapi serves an in-memory engagement backend for demos and tests.
package mockapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"pkt.systems/pslog"

	"github.com/five82/scout/internal/engagement"
	"github.com/five82/scout/internal/observe"
)

// ErrNotFound is returned for unknown engagement ids.
var ErrNotFound = errors.New("engagement not found")

// Server holds engagements and their observation logs in memory. Every read
// returns a copy.
type Server struct {
	mu          sync.RWMutex
	engagements map[string]*record
	log         pslog.Logger
	now         func() time.Time
	router      chi.Router
}

type record struct {
	info  engagement.Engagement
	pages []observe.Page
}

// New builds an empty backend.
func New(logger pslog.Logger) *Server {
	if logger == nil {
		logger = pslog.Ctx(context.Background())
	}
	s := &Server{
		engagements: make(map[string]*record),
		log:         logger,
		now:         time.Now,
	}
	s.router = s.routes()
	return s
}

// Handler returns the HTTP surface.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.requestLog)

	r.Get("/health", s.handleHealth)
	r.Post("/engagement/", s.handleCreate)
	r.Get("/engagement/{id}", s.handleGet)
	r.Get("/engagement/{id}/page-data", s.handlePageData)
	r.Post("/engagement/{id}/page-data", s.handleMerge)
	return r
}

// Create registers a new engagement under a generated id.
func (s *Server) Create(req engagement.CreateRequest) engagement.Engagement {
	return s.create(uuid.NewString(), req)
}

// Ensure creates an engagement with a fixed id unless it already exists.
func (s *Server) Ensure(id string, req engagement.CreateRequest) engagement.Engagement {
	s.mu.RLock()
	rec, ok := s.engagements[id]
	s.mu.RUnlock()
	if ok {
		return s.view(rec)
	}
	return s.create(id, req)
}

func (s *Server) create(id string, req engagement.CreateRequest) engagement.Engagement {
	scopes := req.ScopesData
	if scopes == nil {
		scopes = []string{}
	}
	rec := &record{info: engagement.Engagement{
		ID:                      id,
		Name:                    req.Name,
		BaseURL:                 req.BaseURL,
		ScopesData:              append([]string(nil), scopes...),
		Description:             req.Description,
		CreatedAt:               s.now().UTC(),
		Findings:                []json.RawMessage{},
		DomainOwnershipVerified: true,
	}}

	s.mu.Lock()
	if existing, ok := s.engagements[id]; ok {
		s.mu.Unlock()
		return s.view(existing)
	}
	s.engagements[id] = rec
	out := s.viewLocked(rec)
	s.mu.Unlock()

	s.log.Info("engagement created", "engagement", id, "name", req.Name)
	return out
}

// Get returns the engagement record.
func (s *Server) Get(id string) (engagement.Engagement, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.engagements[id]
	if !ok {
		return engagement.Engagement{}, ErrNotFound
	}
	return s.viewLocked(rec), nil
}

// IDs lists engagement ids in sorted order.
func (s *Server) IDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.engagements))
	for id := range s.engagements {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// PageData returns the engagement's observation log.
func (s *Server) PageData(id string) (observe.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.engagements[id]
	if !ok {
		return observe.Empty(), ErrNotFound
	}
	return observe.New(rec.pages), nil
}

// Merge appends delta to the engagement's log. Exchanges for a page the log
// already holds are appended to that page; other pages are appended in
// order. The merged log is returned.
func (s *Server) Merge(id string, delta []observe.Page) (observe.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.engagements[id]
	if !ok {
		return observe.Empty(), ErrNotFound
	}
	rec.pages = mergePages(rec.pages, delta)
	return observe.New(rec.pages), nil
}

// Feed merges whatever snap adds over the stored log and returns that delta.
// It lets a replayed sequence of full snapshots drive the backend the way a
// discovery agent posting deltas would.
func (s *Server) Feed(id string, snap observe.Snapshot) (observe.Delta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.engagements[id]
	if !ok {
		return nil, ErrNotFound
	}
	delta := observe.Diff(observe.New(rec.pages), snap)
	if delta.IsEmpty() {
		return nil, nil
	}
	rec.pages = mergePages(rec.pages, engagement.DeltaPages(delta))
	return delta, nil
}

func mergePages(current, delta []observe.Page) []observe.Page {
	out := observe.New(current).Pages()
	index := make(map[string]int, len(out))
	for i, page := range out {
		if _, seen := index[page.URL]; !seen {
			index[page.URL] = i
		}
	}
	for _, page := range delta {
		if i, ok := index[page.URL]; ok {
			out[i].Exchanges = append(out[i].Exchanges, page.Exchanges...)
			continue
		}
		index[page.URL] = len(out)
		out = append(out, observe.Page{
			URL:       page.URL,
			Exchanges: append([]observe.Exchange(nil), page.Exchanges...),
		})
	}
	return out
}

func (s *Server) view(rec *record) engagement.Engagement {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.viewLocked(rec)
}

func (s *Server) viewLocked(rec *record) engagement.Engagement {
	out := rec.info
	out.ScopesData = append([]string{}, rec.info.ScopesData...)
	out.Findings = append([]json.RawMessage{}, rec.info.Findings...)
	out.PageData = make([]json.RawMessage, 0, len(rec.pages))
	for _, page := range observe.New(rec.pages).Pages() {
		data, err := json.Marshal(page)
		if err != nil {
			continue
		}
		out.PageData = append(out.PageData, data)
	}
	return out
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, engagement.HealthResponse{Status: "healthy"})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req engagement.CreateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid engagement payload")
		return
	}
	if strings.TrimSpace(req.Name) == "" || strings.TrimSpace(req.BaseURL) == "" {
		writeDetail(w, http.StatusUnprocessableEntity, "name and base_url are required")
		return
	}
	writeJSON(w, http.StatusOK, s.Create(req))
}

func (s *Server) handleGet(w http.ResponseWriter, r *http.Request) {
	eng, err := s.Get(chi.URLParam(r, "id"))
	if err != nil {
		writeDetail(w, http.StatusNotFound, "Engagement not found")
		return
	}
	writeJSON(w, http.StatusOK, eng)
}

func (s *Server) handlePageData(w http.ResponseWriter, r *http.Request) {
	snap, err := s.PageData(chi.URLParam(r, "id"))
	if err != nil {
		writeDetail(w, http.StatusNotFound, "Engagement not found")
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) handleMerge(w http.ResponseWriter, r *http.Request) {
	var req engagement.MergeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid page-data payload")
		return
	}
	id := chi.URLParam(r, "id")
	snap, err := s.Merge(id, req.Delta)
	if err != nil {
		writeDetail(w, http.StatusNotFound, "Engagement not found")
		return
	}
	s.log.Debug("page data merged", "engagement", id, "agent", req.AgentID, "pages", len(req.Delta))
	writeJSON(w, http.StatusOK, snap)
}

func (s *Server) requestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.log.Debug("mock api request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, code int, detail string) {
	writeJSON(w, code, map[string]string{"detail": detail})
}
