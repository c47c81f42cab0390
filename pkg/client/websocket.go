package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"

	"github.com/cbodonnell/minegrid/pkg/log"
	"github.com/cbodonnell/minegrid/pkg/messages"
	"github.com/cbodonnell/minegrid/pkg/network"
	"github.com/cbodonnell/minegrid/pkg/queue"
	"nhooyr.io/websocket"
)

// WSClient is a game server connection. Server messages are enqueued for the
// caller to consume from its own loop.
type WSClient struct {
	serverURL    string
	token        string
	messageQueue queue.Queue
	conn         *websocket.Conn
}

type NewWSClientOptions struct {
	// ServerURL is the full WebSocket URL, e.g. ws://localhost:8080/ws
	ServerURL string
	// Token is sent as the identity token query parameter when set
	Token        string
	MessageQueue queue.Queue
}

func NewWSClient(opts NewWSClientOptions) *WSClient {
	return &WSClient{
		serverURL:    opts.ServerURL,
		token:        opts.Token,
		messageQueue: opts.MessageQueue,
	}
}

// Connect establishes a connection to the WebSocket server.
func (c *WSClient) Connect(ctx context.Context) error {
	u, err := url.Parse(c.serverURL)
	if err != nil {
		return fmt.Errorf("failed to parse server url: %v", err)
	}
	if c.token != "" {
		q := u.Query()
		q.Set(network.TokenQueryParam, c.token)
		u.RawQuery = q.Encode()
	}

	log.Info("Connecting to WebSocket server at %s", c.serverURL)
	conn, _, err := websocket.Dial(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to connect to server: %v", err)
	}
	conn.SetReadLimit(messages.MessageBufferSize)
	c.conn = conn
	return nil
}

// HandleMessages reads server messages until the connection or ctx closes.
func (c *WSClient) HandleMessages(ctx context.Context) error {
	for {
		_, b, err := c.conn.Read(ctx)
		if err != nil {
			if ctx.Err() != nil || websocket.CloseStatus(err) == websocket.StatusNormalClosure {
				return nil
			}
			return fmt.Errorf("failed to read message: %v", err)
		}

		msg, err := messages.DeserializeMessage(b)
		if err != nil {
			log.Error("Failed to deserialize server message: %v", err)
			continue
		}
		log.Trace("Received message of type %s", msg.Type)
		if err := c.messageQueue.Enqueue(msg); err != nil {
			log.Error("Failed to enqueue %s message: %v", msg.Type, err)
		}
	}
}

// Send writes a client message. It is safe for concurrent use.
func (c *WSClient) Send(ctx context.Context, t messages.MessageType, requestID string, payload interface{}) error {
	if c.conn == nil {
		return errors.New("not connected")
	}
	msg, err := messages.NewMessage(t, requestID, payload)
	if err != nil {
		return err
	}
	b, err := messages.SerializeMessage(msg)
	if err != nil {
		return err
	}
	if err := c.conn.Write(ctx, websocket.MessageText, b); err != nil {
		return fmt.Errorf("failed to write %s message: %v", t, err)
	}
	return nil
}

// Close closes the WebSocket connection.
func (c *WSClient) Close() error {
	if c.conn == nil {
		log.Warn("WebSocket connection is already closed")
		return nil
	}
	return c.conn.Close(websocket.StatusNormalClosure, "")
}
