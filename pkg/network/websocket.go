package network

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/cbodonnell/minegrid/pkg/log"
	"github.com/cbodonnell/minegrid/pkg/messages"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"
)

const (
	// WSPath is the path the WebSocket endpoint is served on
	WSPath = "/ws"
	// WSWriteTimeout bounds a single frame write
	WSWriteTimeout = 10 * time.Second
)

// WSServer represents a WebSocket server.
type WSServer struct {
	port      int
	tls       *TLSConfig
	rateLimit rate.Limit
	rateBurst int
}

type TLSConfig struct {
	CertFile string
	KeyFile  string
}

type NewWSServerOptions struct {
	Port int
	TLS  *TLSConfig
	// RateLimit is the sustained number of inbound frames per second allowed per
	// connection. Zero disables limiting.
	RateLimit float64
	// RateBurst is the number of frames a connection may send at once
	RateBurst int
}

// NewWSServer creates a new WebSocket server.
func NewWSServer(opts NewWSServerOptions) *WSServer {
	limit := rate.Inf
	if opts.RateLimit > 0 {
		limit = rate.Limit(opts.RateLimit)
	}
	burst := opts.RateBurst
	if burst < 1 {
		burst = 1
	}
	return &WSServer{
		port:      opts.Port,
		tls:       opts.TLS,
		rateLimit: limit,
		rateBurst: burst,
	}
}

// AuthenticateHandler resolves the identity of an upgrade request. An error rejects the request.
type AuthenticateHandler func(ctx context.Context, r *http.Request) (string, error)

// ConnectHandler registers an upgraded connection and returns its client ID.
type ConnectHandler func(conn *websocket.Conn, userID string) (uint32, error)

// DisconnectHandler is called once a connection's read loop ends.
type DisconnectHandler func(clientID uint32)

// MessageHandler receives every decoded inbound frame in arrival order.
type MessageHandler func(ctx context.Context, message *messages.Message)

type WSHandlers struct {
	Authenticate AuthenticateHandler
	Connect      ConnectHandler
	Disconnect   DisconnectHandler
	Message      MessageHandler
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Handler returns the http.Handler serving the WebSocket endpoint.
func (s *WSServer) Handler(ctx context.Context, handlers WSHandlers) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(WSPath, func(w http.ResponseWriter, r *http.Request) {
		userID := ""
		if handlers.Authenticate != nil {
			id, err := handlers.Authenticate(r.Context(), r)
			if err != nil {
				log.Warn("Rejected WebSocket connection from %s: %v", r.RemoteAddr, err)
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			userID = id
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			log.Error("Failed to upgrade to WebSocket: %v", err)
			return
		}
		log.Debug("New WebSocket connection from %s", conn.RemoteAddr().String())

		clientID, err := handlers.Connect(conn, userID)
		if err != nil {
			log.Error("Failed to connect client: %v", err)
			conn.Close()
			return
		}
		go s.handleWSConnection(ctx, conn, clientID, handlers)
	})
	return mux
}

// Start starts the WebSocket server.
func (s *WSServer) Start(ctx context.Context, handlers WSHandlers) {
	addr := fmt.Sprintf(":%d", s.port)
	server := &http.Server{Addr: addr, Handler: s.Handler(ctx, handlers)}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		server.Shutdown(shutdownCtx)
	}()

	var listenAndServe func() error
	if s.tls != nil {
		log.Info("WebSocket server listening on %s with TLS", addr)
		listenAndServe = func() error {
			return server.ListenAndServeTLS(s.tls.CertFile, s.tls.KeyFile)
		}
	} else {
		log.Info("WebSocket server listening on %s", addr)
		listenAndServe = server.ListenAndServe
	}
	if err := listenAndServe(); err != nil {
		if errors.Is(err, http.ErrServerClosed) {
			log.Info("WebSocket server closed")
			return
		}
		log.Error("WebSocket server error: %v", err)
	}
}

// handleWSConnection reads frames until the connection closes. Frames are handed to the
// message handler on this goroutine so their order is preserved.
func (s *WSServer) handleWSConnection(ctx context.Context, conn *websocket.Conn, clientID uint32, handlers WSHandlers) {
	defer func() {
		handlers.Disconnect(clientID)
		conn.Close()
	}()

	conn.SetReadLimit(messages.MessageBufferSize)
	limiter := rate.NewLimiter(s.rateLimit, s.rateBurst)

	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseNoStatusReceived) {
				log.Error("Error reading WebSocket message from client %d: %v", clientID, err)
			}
			log.Trace("Connection closed for client %d", clientID)
			return
		}

		if !limiter.Allow() {
			log.Warn("Dropping message from client %d: rate limit exceeded", clientID)
			continue
		}

		message, err := messages.DeserializeMessage(data)
		if err != nil {
			log.Warn("Dropping malformed message from client %d: %v", clientID, err)
			continue
		}
		message.ClientID = clientID

		handlers.Message(ctx, message)
	}
}

// WriteMessageToWS writes a Message to a WebSocket connection as a text frame.
// Only one goroutine may write to a connection at a time.
func WriteMessageToWS(conn *websocket.Conn, msg *messages.Message) error {
	b, err := messages.SerializeMessage(msg)
	if err != nil {
		return fmt.Errorf("failed to serialize message: %v", err)
	}

	if err := conn.SetWriteDeadline(time.Now().Add(WSWriteTimeout)); err != nil {
		return fmt.Errorf("failed to set write deadline: %v", err)
	}
	if err := conn.WriteMessage(websocket.TextMessage, b); err != nil {
		return fmt.Errorf("failed to write message to WebSocket connection: %v", err)
	}

	return nil
}
