// Package web provides the HTTP surface of the kiosk daemon: a status page,
// an input endpoint for the browser shell, and the unlock-gated settings form.
package web

import (
	"context"
	"log"
	"net"
	"net/http"

	"github.com/sweeney/kioskd/internal/input"
	"github.com/sweeney/kioskd/internal/settings"
	"github.com/sweeney/kioskd/internal/status"
)

// Kiosk is the part of the session the HTTP handlers drive.
type Kiosk interface {
	// Input routes an interaction onto the event loop. It does not block.
	Input(src input.Source)
	Unlocked() bool
	Settings(ctx context.Context) (settings.Values, error)
	UpdateSettings(ctx context.Context, v settings.Values) error
}

// Server serves the status page and settings surface over HTTP.
type Server struct {
	httpServer *http.Server
	tracker    *status.Tracker
	kiosk      Kiosk
}

// New creates a Server that reads state from the given tracker.
func New(addr string, tracker *status.Tracker, kiosk Kiosk) *Server {
	s := &Server{tracker: tracker, kiosk: kiosk}

	mux := http.NewServeMux()
	mux.HandleFunc("/", s.handleIndex)
	mux.HandleFunc("/index.html", s.handleIndex)
	mux.HandleFunc("/index.json", s.handleJSON)
	mux.HandleFunc("/api/input", s.handleInput)
	mux.HandleFunc("/settings", s.handleSettings)

	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: mux,
	}
	return s
}

// Handler returns the server's request router.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// ListenAndServe starts listening. It blocks until the server is shut down.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Serve accepts connections on the given listener. Useful for tests.
func (s *Server) Serve(ln net.Listener) error {
	return s.httpServer.Serve(ln)
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" && r.URL.Path != "/index.html" {
		http.NotFound(w, r)
		return
	}
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderHTML(w, snap); err != nil {
		log.Printf("web: render index: %v", err)
	}
}

func (s *Server) handleJSON(w http.ResponseWriter, r *http.Request) {
	snap := s.tracker.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	w.Write(status.FormatJSON(snap))
}

// handleInput accepts interactions from the local browser shell only. The
// center key counts toward the settings unlock, so LAN hosts are refused.
func (s *Server) handleInput(w http.ResponseWriter, r *http.Request) {
	if !fromLoopback(r) {
		log.Printf("web: refused input from %s", r.RemoteAddr)
		http.Error(w, "input is accepted from localhost only", http.StatusForbidden)
		return
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	name := r.URL.Query().Get("source")
	if name == "" {
		name = input.Touch.String()
	}
	src, err := input.ParseSource(name)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	s.kiosk.Input(src)
	w.WriteHeader(http.StatusAccepted)
}

func fromLoopback(r *http.Request) bool {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return false
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}
