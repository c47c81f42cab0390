package network

import (
	"context"
	"fmt"
	"net/http"

	authproviders "github.com/cbodonnell/minegrid/pkg/auth/providers"
	"github.com/cbodonnell/minegrid/pkg/log"
	"github.com/cbodonnell/minegrid/pkg/messages"
	"github.com/cbodonnell/minegrid/pkg/queue"
	"github.com/gorilla/websocket"
)

// TokenQueryParam is the query parameter carrying the identity token on upgrade requests
const TokenQueryParam = "token"

type NetworkManager struct {
	// AuthProvider verifies identity tokens. When nil connections are not verified.
	AuthProvider  authproviders.AuthProvider
	ClientManager *ClientManager
	MessageQueue  queue.Queue
	WSServer      *WSServer
}

type NewNetworkManagerOptions struct {
	AuthProvider  authproviders.AuthProvider
	ClientManager *ClientManager
	MessageQueue  queue.Queue
	WSPort        int
	WSServerTLS   *TLSConfig
	RateLimit     float64
	RateBurst     int
}

func NewNetworkManager(options NewNetworkManagerOptions) *NetworkManager {
	return &NetworkManager{
		AuthProvider:  options.AuthProvider,
		ClientManager: options.ClientManager,
		MessageQueue:  options.MessageQueue,
		WSServer: NewWSServer(NewWSServerOptions{
			Port:      options.WSPort,
			TLS:       options.WSServerTLS,
			RateLimit: options.RateLimit,
			RateBurst: options.RateBurst,
		}),
	}
}

func (n *NetworkManager) Start(ctx context.Context) {
	go n.WSServer.Start(ctx, n.handlers())
}

// Handler returns the WebSocket endpoint without starting a listener.
func (n *NetworkManager) Handler(ctx context.Context) http.Handler {
	return n.WSServer.Handler(ctx, n.handlers())
}

func (n *NetworkManager) handlers() WSHandlers {
	h := WSHandlers{
		Connect:    n.handleConnect,
		Disconnect: n.handleDisconnect,
		Message:    n.handleMessage,
	}
	if n.AuthProvider != nil {
		h.Authenticate = n.handleAuthenticate
	}
	return h
}

func (n *NetworkManager) handleAuthenticate(ctx context.Context, r *http.Request) (string, error) {
	token := r.URL.Query().Get(TokenQueryParam)
	if token == "" {
		return "", fmt.Errorf("missing %s query parameter", TokenQueryParam)
	}

	claims, err := n.AuthProvider.VerifyToken(ctx, token)
	if err != nil {
		return "", fmt.Errorf("failed to verify token: %v", err)
	}

	return claims.UID, nil
}

func (n *NetworkManager) handleConnect(conn *websocket.Conn, userID string) (uint32, error) {
	clientID, err := n.ClientManager.ConnectClient(conn, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to connect client: %v", err)
	}
	log.Info("Client %d connected", clientID)
	return clientID, nil
}

func (n *NetworkManager) handleDisconnect(clientID uint32) {
	n.ClientManager.DisconnectClient(clientID)
	log.Info("Client %d disconnected", clientID)
}

func (n *NetworkManager) handleMessage(ctx context.Context, message *messages.Message) {
	if err := n.MessageQueue.Enqueue(message); err != nil {
		log.Error("Failed to enqueue message from client %d: %v", message.ClientID, err)
	}
}

// SendMessageToClient writes a message to a connected client.
func (n *NetworkManager) SendMessageToClient(clientID uint32, msg *messages.Message) error {
	client, err := n.ClientManager.GetClient(clientID)
	if err != nil {
		return fmt.Errorf("failed to get client %d: %v", clientID, err)
	}
	if client.WSConn == nil {
		return fmt.Errorf("client %d has no connection", clientID)
	}

	if err := WriteMessageToWS(client.WSConn, msg); err != nil {
		return fmt.Errorf("failed to write message to client %d: %v", clientID, err)
	}

	return nil
}
