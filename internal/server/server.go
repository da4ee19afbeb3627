// Package server is the HTTP/WebSocket gateway. It owns the session
// registry: each WebSocket connection gets its own scene store, avatar and
// tick loop, and the project endpoints address those sessions by id.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/OCharnyshevich/jrblx-server/internal/server/config"
	"github.com/OCharnyshevich/jrblx-server/internal/server/gen"
	"github.com/OCharnyshevich/jrblx-server/internal/server/scene"
	"github.com/OCharnyshevich/jrblx-server/internal/server/session"
	"github.com/OCharnyshevich/jrblx-server/internal/server/storage"
)

// Server accepts play connections and serves the project endpoints.
type Server struct {
	cfg      *config.Config
	log      *logrus.Logger
	genr     gen.Generator
	projects *storage.Storage

	// base is the project every new session starts from; nil means the
	// built-in starter island.
	base *scene.Project

	mu       sync.Mutex
	sessions map[string]*session.Session
}

// New creates a Server from the given config. The default project file, if
// configured, is read once at startup; a broken file is an error rather than
// a silently empty world.
func New(cfg *config.Config, log *logrus.Logger) (*Server, error) {
	s := &Server{
		cfg:      cfg,
		log:      log,
		sessions: make(map[string]*session.Session),
	}
	if cfg.GeneratorEndpoint != "" {
		s.genr = gen.NewHTTPGenerator(cfg.GeneratorEndpoint, cfg.GeneratorAPIKey)
	}
	projects, err := storage.New(cfg.DataDir, logrus.NewEntry(log))
	if err != nil {
		return nil, err
	}
	s.projects = projects
	if cfg.DefaultProject != "" {
		f, err := os.Open(cfg.DefaultProject)
		if err != nil {
			return nil, fmt.Errorf("default project: %w", err)
		}
		defer f.Close()
		doc, err := scene.Decode(f)
		if err != nil {
			return nil, fmt.Errorf("default project %s: %w", cfg.DefaultProject, err)
		}
		s.base = &doc
	}
	return s, nil
}

// Run serves until ctx is cancelled, then closes every live session and
// shuts the listener down.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", s.cfg.Port),
		Handler: s.routes(),
	}

	go func() {
		<-ctx.Done()
		s.closeAll()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutCtx); err != nil {
			s.log.WithError(err).Warn("shutdown")
		}
	}()

	s.log.WithFields(logrus.Fields{
		"port":         s.cfg.Port,
		"max_sessions": s.cfg.MaxSessions,
		"generation":   s.genr != nil,
	}).Info("server started")

	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen on :%d: %w", s.cfg.Port, err)
	}
	return nil
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/project/export", s.handleExport)
	mux.HandleFunc("/project/import", s.handleImport)
	mux.HandleFunc("/project/save", s.handleSave)
	mux.HandleFunc("/project/load", s.handleLoad)
	mux.HandleFunc("/project/list", s.handleList)
	return mux
}

// newStore builds the starting scene for one session.
func (s *Server) newStore() (*scene.Store, error) {
	store := scene.NewStore()
	if s.base != nil {
		entities, dropped, err := scene.FromDocument(*s.base)
		if err != nil {
			return nil, err
		}
		if dropped > 0 {
			s.log.WithField("dropped", dropped).Warn("default project contained invalid entities")
		}
		if err := store.ReplaceAll(entities); err != nil {
			return nil, err
		}
		return store, nil
	}
	for _, e := range scene.StarterScene() {
		if err := store.Add(e); err != nil {
			return nil, err
		}
	}
	return store, nil
}

func (s *Server) register(sess *session.Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.sessions) >= s.cfg.MaxSessions {
		return false
	}
	s.sessions[sess.ID] = sess
	return true
}

func (s *Server) unregister(id string) {
	s.mu.Lock()
	delete(s.sessions, id)
	s.mu.Unlock()
}

func (s *Server) lookup(id string) (*session.Session, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[id]
	return sess, ok
}

func (s *Server) closeAll() {
	s.mu.Lock()
	sessions := make([]*session.Session, 0, len(s.sessions))
	for _, sess := range s.sessions {
		sessions = append(sessions, sess)
	}
	s.mu.Unlock()
	for _, sess := range sessions {
		sess.Close()
		<-sess.Done()
	}
}

// handleWS upgrades the connection and starts a fresh session for it.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	player := r.URL.Query().Get("player")

	store, err := s.newStore()
	if err != nil {
		s.log.WithError(err).Error("build starting scene")
		http.Error(w, "scene unavailable", http.StatusInternalServerError)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Warn("upgrade")
		return
	}

	client := newClient(conn, s.log)
	sess := session.New(session.Config{
		Player:    player,
		Store:     store,
		Renderer:  client,
		Generator: s.genr,
		Log:       logrus.NewEntry(s.log),
	})
	client.sess = sess

	if !s.register(sess) {
		s.log.WithField("max_sessions", s.cfg.MaxSessions).Warn("session limit reached")
		client.refuse("server full")
		return
	}

	// The welcome names the session so the client can address the project
	// endpoints.
	client.send <- serverMessage{Type: "welcome", Session: sess.ID}

	go func() {
		sess.Run(context.Background())
		s.unregister(sess.ID)
	}()
	go client.writePump()
	go client.forwardChat()
	go client.readPump()
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// handleExport streams one session's scene as a .jrblx document.
func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	sess, ok := s.lookup(r.URL.Query().Get("session"))
	if !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		name = "My Project"
	}
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", `attachment; filename="project.jrblx"`)
	if err := scene.Encode(w, scene.ToDocument(name, sess.Store())); err != nil {
		s.log.WithError(err).Warn("export project")
	}
}

// handleImport replaces one session's scene from an uploaded document. A
// malformed document is rejected and the running scene stays as it was.
func (s *Server) handleImport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}
	sess, ok := s.lookup(r.URL.Query().Get("session"))
	if !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	doc, err := scene.Decode(http.MaxBytesReader(w, r.Body, 8<<20))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := sess.LoadProject(doc); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleSave persists one session's scene server-side.
func (s *Server) handleSave(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}
	sess, ok := s.lookup(r.URL.Query().Get("session"))
	if !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	name := r.URL.Query().Get("name")
	if name == "" {
		http.Error(w, "name required", http.StatusBadRequest)
		return
	}
	if err := s.projects.SaveProject(scene.ToDocument(name, sess.Store())); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleLoad replaces one session's scene from a saved project.
func (s *Server) handleLoad(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST required", http.StatusMethodNotAllowed)
		return
	}
	sess, ok := s.lookup(r.URL.Query().Get("session"))
	if !ok {
		http.Error(w, "unknown session", http.StatusNotFound)
		return
	}
	doc, err := s.projects.LoadProject(r.URL.Query().Get("name"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	if err := sess.LoadProject(doc); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	names, err := s.projects.ListProjects()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if names == nil {
		names = []string{}
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(names); err != nil {
		s.log.WithError(err).Warn("list projects")
	}
}
