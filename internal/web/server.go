// Package web serves the read-only status page and its JSON and websocket
// feeds.
package web

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"regexp"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
	"github.com/tdewolff/minify/v2"
	"github.com/tdewolff/minify/v2/css"
	"github.com/tdewolff/minify/v2/html"
	"github.com/tdewolff/minify/v2/js"

	"relay-service/internal/logger"
	"relay-service/internal/types"
)

const httpTimeout = 10 * time.Second

// StatusSource is the read accessor the server is given. It never gets
// anything that could change engine state.
type StatusSource interface {
	Status() types.Status
}

type Server struct {
	source  StatusSource
	version string
	logger  *logger.Logger

	router     *httprouter.Router
	httpServer *http.Server
	upgrader   websocket.Upgrader

	// how often websocket clients are checked for a changed status
	pollInterval time.Duration

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewServer(addr, version string, source StatusSource, l *logger.Logger) *Server {
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{
		source:       source,
		version:      version,
		logger:       l,
		pollInterval: time.Second,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // status page is read-only and local
			},
		},
		ctx:    ctx,
		cancel: cancel,
	}

	m := minify.New()
	m.AddFunc("text/html", html.Minify)
	m.AddFunc("text/css", css.Minify)
	m.AddFuncRegexp(regexp.MustCompile("^(application|text)/(x-)?(java|ecma)script$"), js.Minify)

	s.router = httprouter.New()
	s.router.Handler(http.MethodGet, "/", m.Middleware(http.HandlerFunc(s.handleIndex)))
	s.router.GET("/api/status", s.handleStatus)
	s.router.GET("/api/ws", s.handleWebSocket)

	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: httpTimeout,
		IdleTimeout:       2 * httpTimeout,
	}
	return s
}

func (s *Server) Handler() http.Handler { return s.router }

// Start serves in the background. A listener error is logged, never fatal.
func (s *Server) Start() {
	s.logger.Infof("HTTP server listening on %s", s.httpServer.Addr)
	go func() {
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Errorf("HTTP server failed: %v", err)
		}
	}()
}

// Shutdown stops the listener and closes websocket streams.
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Infof("Shutting down HTTP server")
	s.cancel()
	err := s.httpServer.Shutdown(ctx)
	s.wg.Wait()
	return err
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := renderPage(w, s.version, s.source.Status()); err != nil {
		s.logger.Errorf("Rendering status page: %v", err)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	if err := json.NewEncoder(w).Encode(s.source.Status()); err != nil {
		s.logger.Warnf("Writing status: %v", err)
	}
}

// handleWebSocket sends the current status, then every change to it.
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warnf("WebSocket upgrade failed: %v", err)
		return
	}
	s.wg.Add(1)
	defer s.wg.Done()
	defer conn.Close()

	// The reader only notices the client going away.
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(s.pollInterval)
	defer ticker.Stop()

	var last []byte
	for {
		payload, err := json.Marshal(s.source.Status())
		if err != nil {
			s.logger.Errorf("Encoding status: %v", err)
			return
		}
		if string(payload) != string(last) {
			conn.SetWriteDeadline(time.Now().Add(httpTimeout))
			if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				s.logger.Debugf("WebSocket client dropped: %v", err)
				return
			}
			last = payload
		}

		select {
		case <-ticker.C:
		case <-gone:
			return
		case <-s.ctx.Done():
			conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseGoingAway, "shutting down"),
				time.Now().Add(time.Second))
			return
		}
	}
}
