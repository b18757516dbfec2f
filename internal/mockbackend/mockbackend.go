// Package mockbackend serves an in-memory copy of the playlist backend API.
// It backs the client tests and `zplay mock` for working without a real
// backend.
package mockbackend

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/zarlcorp/zplay/internal/playlist"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Rejector decides whether an identifier is refused. A non-empty return is
// sent back as the error message with status 400.
type Rejector func(urlOrID string) string

// Server holds the in-memory playlist set.
type Server struct {
	mu        sync.Mutex
	playlists map[int]playlist.Playlist
	nextID    int
	reject    Rejector
	log       *zap.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithRejector installs a rejector for incoming create requests.
func WithRejector(r Rejector) Option {
	return func(s *Server) { s.reject = r }
}

// WithLogger sets the request logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.log = l
		}
	}
}

// New creates an empty mock backend.
func New(opts ...Option) *Server {
	s := &Server{
		playlists: make(map[int]playlist.Playlist),
		nextID:    1,
		log:       zap.NewNop(),
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Router returns the HTTP handler for the backend API.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "service": "zplay-mock"})
	})

	r.Route("/api", func(r chi.Router) {
		r.Get("/playlists", s.handleList)
		r.Post("/playlists", s.handleCreate)
		r.Delete("/playlists", s.handleDelete)
		r.Post("/playlists/sync", s.handleSync)
		r.Post("/playlists/toggle", s.handleToggle)
		r.Delete("/download/{id}/cancel", s.handleCancel)
	})

	return r
}

// Serve listens on addr until ctx is done, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		s.log.Info("mock backend listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// Playlists returns all playlists ordered by id.
func (s *Server) Playlists() []playlist.Playlist {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.allLocked()
}

func (s *Server) allLocked() []playlist.Playlist {
	out := make([]playlist.Playlist, 0, len(s.playlists))
	for _, p := range s.playlists {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.Playlists())
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		URLOrID string `json:"url_or_id"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	if req.URLOrID == "" {
		writeError(w, http.StatusBadRequest, "No URL or ID provided")
		return
	}

	if s.reject != nil {
		if msg := s.reject(req.URLOrID); msg != "" {
			writeError(w, http.StatusBadRequest, msg)
			return
		}
	}

	s.mu.Lock()
	for _, p := range s.playlists {
		if p.URL == req.URLOrID {
			s.mu.Unlock()
			writeError(w, http.StatusBadRequest, "Playlist already exists")
			return
		}
	}

	p := playlist.Playlist{
		ID:             s.nextID,
		Name:           nameFor(req.URLOrID),
		URL:            req.URLOrID,
		DownloadStatus: playlist.StatusReady,
	}
	s.playlists[p.ID] = p
	s.nextID++
	all := s.allLocked()
	s.mu.Unlock()

	s.log.Info("playlist created", zap.Int("id", p.ID), zap.String("url_or_id", req.URLOrID))
	writeJSON(w, http.StatusCreated, all)
}

func (s *Server) handleSync(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []int `json:"playlist_ids"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	s.mu.Lock()
	defer s.mu.Unlock()

	selected := s.allLocked()
	if len(req.IDs) > 0 {
		selected = selected[:0]
		for _, id := range req.IDs {
			if p, ok := s.playlists[id]; ok {
				selected = append(selected, p)
			}
		}
	}

	synced := make([]playlist.Playlist, 0, len(selected))
	for _, p := range selected {
		if p.Disabled {
			continue
		}
		p.DownloadStatus = playlist.StatusQueued
		s.playlists[p.ID] = p
		synced = append(synced, p)
	}

	writeJSON(w, http.StatusOK, synced)
}

func (s *Server) handleDelete(w http.ResponseWriter, r *http.Request) {
	var req struct {
		IDs []int `json:"playlist_ids"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	if len(req.IDs) == 0 {
		writeError(w, http.StatusBadRequest, "No playlist IDs provided")
		return
	}

	s.mu.Lock()
	for _, id := range req.IDs {
		delete(s.playlists, id)
	}
	all := s.allLocked()
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, all)
}

func (s *Server) handleToggle(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ID       *int `json:"playlist_id"`
		Disabled any  `json:"disabled"`
	}
	_ = json.NewDecoder(r.Body).Decode(&req)

	if req.ID == nil || req.Disabled == nil {
		writeError(w, http.StatusBadRequest, "Missing parameters")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.playlists[*req.ID]
	if !ok {
		writeError(w, http.StatusNotFound, "Playlist not found")
		return
	}

	// clients send both true and "true"
	p.Disabled = strings.EqualFold(fmt.Sprint(req.Disabled), "true")
	s.playlists[p.ID] = p

	writeJSON(w, http.StatusOK, p)
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusNotFound, "Playlist not found")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.playlists[id]
	if !ok {
		writeError(w, http.StatusNotFound, "Playlist not found")
		return
	}

	p.DownloadStatus = playlist.StatusReady
	s.playlists[id] = p

	writeJSON(w, http.StatusOK, p)
}

// nameFor derives a display name from the last path segment of a URL, or
// returns the identifier itself.
func nameFor(urlOrID string) string {
	trimmed := strings.TrimRight(urlOrID, "/")
	if i := strings.IndexAny(trimmed, "?#"); i >= 0 {
		trimmed = trimmed[:i]
	}
	base := path.Base(trimmed)
	if base == "." || base == "/" || base == "" {
		return urlOrID
	}
	return base
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
