// Package live pushes dashboard views to browser clients over websockets.
package live

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"rillscope/internal/core/domain"
	"rillscope/internal/core/services"
	rlog "rillscope/pkg/logger"
	"rillscope/pkg/validation"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// Dashboard is the part of services.DashboardController the live server
// drives.
type Dashboard interface {
	View(admin bool) services.DashboardView
	OnUpdate(fn func(services.DashboardView)) func()
	SetActiveTab(tab domain.Tab) error
	SetTimeRange(rng domain.RangeToken) error
	SetAutoRefresh(enabled bool) error
	SetSearchFilter(q string) error
	SetStatusFilter(f domain.StatusFilter) error
	DismissAlert(id string) error
}

const (
	MessageView  = "view"
	MessageError = "error"

	CommandSetTab         = "set_tab"
	CommandSetRange       = "set_range"
	CommandSetAutoRefresh = "set_auto_refresh"
	CommandSetFilters     = "set_filters"
	CommandDismissAlert   = "dismiss_alert"
)

// ClientMessage is a command sent by a browser.
type ClientMessage struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// ServerMessage is pushed to browsers.
type ServerMessage struct {
	Type  string                  `json:"type"`
	View  *services.DashboardView `json:"view,omitempty"`
	Error string                  `json:"error,omitempty"`
}

type tabPayload struct {
	Tab domain.Tab `json:"tab"`
}

type rangePayload struct {
	Range domain.RangeToken `json:"range"`
}

type autoRefreshPayload struct {
	Enabled bool `json:"enabled"`
}

type filtersPayload struct {
	Search *string              `json:"search,omitempty"`
	Status *domain.StatusFilter `json:"status,omitempty"`
}

type alertPayload struct {
	ID string `json:"id"`
}

// WebSocketServer pushes dashboard views to browsers and applies their commands.
type WebSocketServer struct {
	dashboard Dashboard
	upgrader  websocket.Upgrader

	connections    map[*websocket.Conn]struct{}
	mu             sync.Mutex
	active         atomic.Int32
	maxConnections int

	pingInterval time.Duration
	readTimeout  time.Duration
	writeTimeout time.Duration

	logger *zap.SugaredLogger
}

// ServerOption configures a WebSocketServer.
type ServerOption func(*WebSocketServer)

// WithAllowedOrigins restricts upgrades to the listed origins. "*" or an
// empty list allows any origin.
func WithAllowedOrigins(origins []string) ServerOption {
	return func(s *WebSocketServer) {
		allowed := make(map[string]bool, len(origins))
		for _, o := range origins {
			if o == "*" {
				return
			}
			allowed[strings.TrimRight(o, "/")] = true
		}
		if len(allowed) == 0 {
			return
		}
		s.upgrader.CheckOrigin = func(r *http.Request) bool {
			origin := r.Header.Get("Origin")
			return origin == "" || allowed[origin]
		}
	}
}

// WithMaxConnections caps concurrent clients; 0 means unlimited.
func WithMaxConnections(n int) ServerOption {
	return func(s *WebSocketServer) { s.maxConnections = n }
}

// WithTimeouts sets the ping period and the read and write deadlines.
func WithTimeouts(ping, read, write time.Duration) ServerOption {
	return func(s *WebSocketServer) {
		if ping > 0 {
			s.pingInterval = ping
		}
		if read > 0 {
			s.readTimeout = read
		}
		if write > 0 {
			s.writeTimeout = write
		}
	}
}

// NewWebSocketServer creates a server for dashboard.
func NewWebSocketServer(dashboard Dashboard, logger *zap.SugaredLogger, opts ...ServerOption) *WebSocketServer {
	s := &WebSocketServer{
		dashboard: dashboard,
		upgrader: websocket.Upgrader{
			CheckOrigin:     func(r *http.Request) bool { return true },
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
		},
		connections:  make(map[*websocket.Conn]struct{}),
		pingInterval: 30 * time.Second,
		readTimeout:  60 * time.Second,
		writeTimeout: 10 * time.Second,
		logger:       rlog.OrNop(logger),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// HandleWebSocket upgrades the request and streams views until the client
// goes away. admin controls the IsAdmin flag of pushed views.
func (s *WebSocketServer) HandleWebSocket(w http.ResponseWriter, r *http.Request, admin bool) {
	if s.maxConnections > 0 && int(s.active.Load()) >= s.maxConnections {
		http.Error(w, "too many websocket connections", http.StatusServiceUnavailable)
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Errorw("websocket upgrade failed", "error", err)
		return
	}
	s.register(conn)
	defer s.unregister(conn)

	s.logger.Infow("dashboard client connected", "remote_addr", r.RemoteAddr, "admin", admin)

	// latest holds at most one pending view; a slow client skips
	// intermediate updates.
	latest := make(chan services.DashboardView, 1)
	push := func(v services.DashboardView) {
		v.IsAdmin = admin
		select {
		case <-latest:
		default:
		}
		select {
		case latest <- v:
		default:
		}
	}
	unsubscribe := s.dashboard.OnUpdate(push)
	defer unsubscribe()

	initial := s.dashboard.View(admin)
	if err := s.write(conn, ServerMessage{Type: MessageView, View: &initial}); err != nil {
		s.logger.Infow("error sending initial view", "error", err)
		return
	}

	_ = conn.SetReadDeadline(time.Now().Add(s.readTimeout))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(s.readTimeout))
	})

	pingTicker := time.NewTicker(s.pingInterval)
	defer pingTicker.Stop()

	messages := make(chan ClientMessage, 10)
	readErr := make(chan error, 1)
	done := make(chan struct{})
	defer close(done)
	go func() {
		for {
			var msg ClientMessage
			if err := conn.ReadJSON(&msg); err != nil {
				readErr <- err
				return
			}
			_ = conn.SetReadDeadline(time.Now().Add(s.readTimeout))
			select {
			case messages <- msg:
			case <-done:
				return
			}
		}
	}()

	for {
		select {
		case view := <-latest:
			if err := s.write(conn, ServerMessage{Type: MessageView, View: &view}); err != nil {
				s.logger.Infow("error pushing view", "error", err)
				return
			}

		case msg := <-messages:
			if err := s.handleMessage(msg); err != nil {
				if werr := s.write(conn, ServerMessage{Type: MessageError, Error: err.Error()}); werr != nil {
					return
				}
			}

		case <-pingTicker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				s.logger.Infow("error sending ping", "error", err)
				return
			}

		case err := <-readErr:
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				s.logger.Infow("error reading message from client", "error", err)
			}
			return
		}
	}
}

func (s *WebSocketServer) handleMessage(msg ClientMessage) error {
	switch msg.Type {
	case CommandSetTab:
		var p tabPayload
		if err := decode(msg, &p); err != nil {
			return err
		}
		return s.dashboard.SetActiveTab(p.Tab)

	case CommandSetRange:
		var p rangePayload
		if err := decode(msg, &p); err != nil {
			return err
		}
		return s.dashboard.SetTimeRange(p.Range)

	case CommandSetAutoRefresh:
		var p autoRefreshPayload
		if err := decode(msg, &p); err != nil {
			return err
		}
		return s.dashboard.SetAutoRefresh(p.Enabled)

	case CommandSetFilters:
		var p filtersPayload
		if err := decode(msg, &p); err != nil {
			return err
		}
		if p.Status != nil {
			if _, err := domain.ParseStatusFilter(string(*p.Status)); err != nil {
				return err
			}
		}
		if p.Search != nil {
			if err := validation.ValidateSearchQuery(*p.Search); err != nil {
				return err
			}
		}
		if p.Search != nil {
			if err := s.dashboard.SetSearchFilter(*p.Search); err != nil {
				return err
			}
		}
		if p.Status != nil {
			return s.dashboard.SetStatusFilter(*p.Status)
		}
		return nil

	case CommandDismissAlert:
		var p alertPayload
		if err := decode(msg, &p); err != nil {
			return err
		}
		return s.dashboard.DismissAlert(p.ID)

	case "":
		return fmt.Errorf("message type is required")
	default:
		return fmt.Errorf("unknown message type: %s", msg.Type)
	}
}

func decode(msg ClientMessage, into interface{}) error {
	if len(msg.Payload) == 0 {
		return fmt.Errorf("%s: payload is required", msg.Type)
	}
	if err := json.Unmarshal(msg.Payload, into); err != nil {
		return fmt.Errorf("%s: invalid payload: %w", msg.Type, err)
	}
	return nil
}

func (s *WebSocketServer) write(conn *websocket.Conn, msg ServerMessage) error {
	_ = conn.SetWriteDeadline(time.Now().Add(s.writeTimeout))
	return conn.WriteJSON(msg)
}

func (s *WebSocketServer) register(conn *websocket.Conn) {
	s.mu.Lock()
	s.connections[conn] = struct{}{}
	s.mu.Unlock()
	s.active.Add(1)
}

func (s *WebSocketServer) unregister(conn *websocket.Conn) {
	s.mu.Lock()
	_, ok := s.connections[conn]
	delete(s.connections, conn)
	s.mu.Unlock()
	if ok {
		s.active.Add(-1)
	}
	_ = conn.Close()
	s.logger.Infow("dashboard client disconnected")
}

// ConnectionCount returns the number of connected clients.
func (s *WebSocketServer) ConnectionCount() int {
	return int(s.active.Load())
}

// Shutdown closes every client connection.
func (s *WebSocketServer) Shutdown() {
	s.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(s.connections))
	for c := range s.connections {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		_ = c.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseGoingAway, "server shutting down"),
			time.Now().Add(time.Second))
		_ = c.Close()
	}
}
