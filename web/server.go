// Package web serves the browser map and the websocket feed of decoded
// records.
package web

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	"github.com/gorilla/websocket"

	"aprsbridge/broadcast"
	"aprsbridge/config"
)

const (
	feedPath        = "/ws"
	shutdownTimeout = 5 * time.Second
)

// Server upgrades /ws requests into broadcaster subscribers and serves
// static files from the configured directory.
type Server struct {
	conf     config.WebConfig
	hub      *broadcast.Broadcaster
	logger   *log.Logger
	upgrader websocket.Upgrader
}

func NewServer(conf config.WebConfig, hub *broadcast.Broadcaster, logger *log.Logger) *Server {
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		conf:   conf,
		hub:    hub,
		logger: logger.WithPrefix("web"),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			// The map page may be opened from another host name.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET "+feedPath, s.handleFeed)
	if s.conf.StaticDir != "" {
		mux.HandleFunc("GET /{$}", s.handleIndex)
		mux.Handle("GET /", http.FileServer(http.Dir(s.conf.StaticDir)))
	}
	return mux
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	path := filepath.Join(s.conf.StaticDir, "index.html")
	if _, err := os.Stat(path); err != nil {
		http.Error(w, "index.html not found", http.StatusNotFound)
		return
	}
	http.ServeFile(w, r, path)
}

func (s *Server) handleFeed(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("websocket upgrade failed", "remote", r.RemoteAddr, "err", err)
		return
	}

	sess := newSession(conn, r.RemoteAddr)
	total := s.hub.Add(sess)
	s.logger.Info("client connected", "remote", sess.remote, "id", sess.id, "clients", total)

	defer func() {
		_, remaining := s.hub.Remove(sess.id)
		_ = sess.Close()
		s.logger.Info("client disconnected", "remote", sess.remote, "id", sess.id, "clients", remaining)
	}()

	for {
		mt, data, err := conn.ReadMessage()
		if err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) &&
				!errors.Is(err, net.ErrClosed) {
				s.logger.Debug("websocket read ended", "remote", sess.remote, "err", err)
			}
			return
		}
		if mt == websocket.TextMessage {
			s.logger.Info("ignoring client message", "remote", sess.remote, "data", string(data))
		}
	}
}

// ListenAndServe binds addr and serves until ctx is done, then shuts the
// HTTP server down. Open websocket sessions are closed by the
// broadcaster's owner.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.conf.Addr)
	if err != nil {
		return fmt.Errorf("bind http %s: %w", s.conf.Addr, err)
	}
	return s.Serve(ctx, ln)
}

func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP/websocket server started", "addr", ln.Addr().String(), "feed", feedPath)
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	// Hijacked websocket connections are not tracked by Shutdown.
	s.hub.Close()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http shutdown: %w", err)
	}
	return nil
}
