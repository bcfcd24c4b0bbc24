// internal/websocket/server.go
package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"codepad/internal/logging"
	"codepad/internal/metrics"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // local use only
	},
}

// Options configures a Server.
type Options struct {
	// AuthKey, when set, must match the X-Auth-Key header.
	AuthKey string
	// CallTimeout bounds one RPC call. Zero means no limit.
	CallTimeout time.Duration
	Logger      *zap.Logger
}

// Server exposes an App over websocket RPC and pushes events to every
// connected client.
type Server struct {
	addr        string
	authKey     string
	callTimeout time.Duration
	router      *Router
	log         *zap.Logger
	clients     map[string]*Client
	clientsMu   sync.RWMutex
	httpServer  *http.Server
}

func NewServer(app interface{}, opts Options) *Server {
	log := opts.Logger
	if log == nil {
		log = logging.Named("websocket")
	}
	return &Server{
		authKey:     opts.AuthKey,
		callTimeout: opts.CallTimeout,
		router:      NewRouter(app),
		log:         log,
		clients:     make(map[string]*Client),
	}
}

// Start listens on addr ("127.0.0.1:0" picks a free port) and serves /ws,
// /health and, for every other path, fallback. It returns the bound address.
func (s *Server) Start(ctx context.Context, addr string, fallback http.Handler) (string, error) {
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return "", fmt.Errorf("listen %s: %w", addr, err)
	}
	s.addr = listener.Addr().String()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.HandleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)
	if fallback != nil {
		mux.Handle("/", fallback)
	}

	s.httpServer = &http.Server{
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	go func() {
		if err := s.httpServer.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("websocket server stopped", zap.Error(err))
		}
	}()

	s.log.Info("server listening", zap.String("addr", s.addr))
	return s.addr, nil
}

// Stop closes every client and shuts the HTTP server down.
func (s *Server) Stop(ctx context.Context) error {
	s.clientsMu.Lock()
	for _, client := range s.clients {
		client.Close()
	}
	s.clientsMu.Unlock()

	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// HandleWebSocket upgrades the request and serves RPC on it until the
// client disconnects.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.authKey != "" && r.Header.Get("X-Auth-Key") != s.authKey {
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warn("websocket upgrade failed", zap.Error(err))
		return
	}

	client := NewClient(uuid.New().String(), conn)

	s.clientsMu.Lock()
	s.clients[client.ID] = client
	metrics.SetWebsocketClients(len(s.clients))
	s.clientsMu.Unlock()
	s.log.Debug("client connected", zap.String("client", client.ID))

	go client.WritePump()

	s.readPump(r.Context(), client)
}

func (s *Server) readPump(ctx context.Context, client *Client) {
	defer func() {
		s.clientsMu.Lock()
		delete(s.clients, client.ID)
		metrics.SetWebsocketClients(len(s.clients))
		s.clientsMu.Unlock()
		client.Close()
		s.log.Debug("client disconnected", zap.String("client", client.ID))
	}()

	for {
		_, message, err := client.Conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				s.log.Warn("websocket read failed", zap.String("client", client.ID), zap.Error(err))
			}
			return
		}

		s.handleMessage(ctx, client, message)
	}
}

func (s *Server) handleMessage(ctx context.Context, client *Client, message []byte) {
	var msg WSMessage
	if err := json.Unmarshal(message, &msg); err != nil {
		s.log.Warn("invalid message", zap.String("client", client.ID), zap.Error(err))
		return
	}

	if msg.Kind == "rpc_request" && msg.Request != nil {
		s.handleRPCRequest(ctx, client, msg.Request)
	}
}

func (s *Server) handleRPCRequest(ctx context.Context, client *Client, req *RPCRequest) {
	if s.callTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.callTimeout)
		defer cancel()
	}

	result, err := s.router.Call(ctx, req.Method, req.Params)

	var errMsg string
	if err != nil {
		errMsg = err.Error()
		s.log.Debug("rpc failed", zap.String("method", req.Method), zap.Error(err))
	}

	if err := client.SendResponse(req.ID, result, errMsg); err != nil {
		s.log.Warn("send response failed", zap.String("client", client.ID), zap.Error(err))
	}
}

// BroadcastEvent implements eventhub.Broadcaster.
func (s *Server) BroadcastEvent(eventType string, payload interface{}) {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()

	for _, client := range s.clients {
		if err := client.SendEvent(eventType, payload); err != nil {
			s.log.Debug("drop event", zap.String("client", client.ID), zap.String("event", eventType), zap.Error(err))
		}
	}
}

// Addr returns the bound address after Start.
func (s *Server) Addr() string {
	return s.addr
}

// ClientCount returns the number of connected clients.
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}
