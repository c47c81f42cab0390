package workers

import (
	"context"

	"github.com/cbodonnell/minegrid/pkg/log"
	"github.com/cbodonnell/minegrid/pkg/messages"
)

// MessageSender writes a message to a single connected client.
type MessageSender interface {
	SendMessageToClient(clientID uint32, msg *messages.Message) error
}

// ServerMessageWorker is the only goroutine writing to client connections.
type ServerMessageWorker struct {
	sender            MessageSender
	serverMessageChan <-chan ServerMessage
}

// ServerMessage is a payload addressed to a set of clients.
type ServerMessage struct {
	ClientIDs []uint32
	Type      messages.MessageType
	// RequestID is echoed on replies to client requests
	RequestID string
	Message   interface{}
}

type NewServerMessageWorkerOptions struct {
	Sender            MessageSender
	ServerMessageChan <-chan ServerMessage
}

func NewServerMessageWorker(opts NewServerMessageWorkerOptions) *ServerMessageWorker {
	return &ServerMessageWorker{
		sender:            opts.Sender,
		serverMessageChan: opts.ServerMessageChan,
	}
}

func (w *ServerMessageWorker) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case msg := <-w.serverMessageChan:
			w.send(msg)
		}
	}
}

func (w *ServerMessageWorker) send(msg ServerMessage) {
	if len(msg.ClientIDs) == 0 {
		return
	}

	m, err := messages.NewMessage(msg.Type, msg.RequestID, msg.Message)
	if err != nil {
		log.Error("Failed to build %s message: %v", msg.Type, err)
		return
	}

	for _, clientID := range msg.ClientIDs {
		if err := w.sender.SendMessageToClient(clientID, m); err != nil {
			log.Error("Failed to send %s message to client %d: %v", msg.Type, clientID, err)
			continue
		}
		log.Trace("Sent %s message to client %d", msg.Type, clientID)
	}
}
