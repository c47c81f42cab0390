package workers

import (
	"context"

	gametypes "github.com/cbodonnell/minegrid/pkg/game/types"
	"github.com/cbodonnell/minegrid/pkg/log"
	"github.com/cbodonnell/minegrid/pkg/network"
	"github.com/cbodonnell/minegrid/pkg/queue"
)

type ConnectionEventWorker struct {
	clientEventChan      <-chan network.ClientEvent
	connectionEventQueue queue.Queue
}

type NewConnectionEventWorkerOptions struct {
	ClientEventChan      <-chan network.ClientEvent
	ConnectionEventQueue queue.Queue
}

// NewConnectionEventWorker creates a new ConnectionEventWorker.
// The worker processes client events like connect and disconnect
// and writes connection events to a queue for the game loop to process.
func NewConnectionEventWorker(opts NewConnectionEventWorkerOptions) *ConnectionEventWorker {
	return &ConnectionEventWorker{
		clientEventChan:      opts.ClientEventChan,
		connectionEventQueue: opts.ConnectionEventQueue,
	}
}

func (w *ConnectionEventWorker) Start(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case event := <-w.clientEventChan:
			switch event.Type {
			case network.ClientEventTypeConnect:
				w.handleClientConnect(event)
			case network.ClientEventTypeDisconnect:
				w.handleClientDisconnect(event)
			default:
				log.Error("Unknown client event type: %v", event.Type)
			}
		}
	}
}

func (w *ConnectionEventWorker) handleClientConnect(event network.ClientEvent) {
	data, ok := event.Data.(network.ClientConnectData)
	if !ok {
		log.Error("Failed to cast client connect data")
		return
	}

	if err := w.connectionEventQueue.Enqueue(&gametypes.ConnectClientEvent{
		ClientID: event.ClientID,
		UserID:   data.UserID,
	}); err != nil {
		log.Error("Failed to enqueue connect client event: %v", err)
	}
}

func (w *ConnectionEventWorker) handleClientDisconnect(event network.ClientEvent) {
	if err := w.connectionEventQueue.Enqueue(&gametypes.DisconnectClientEvent{
		ClientID: event.ClientID,
	}); err != nil {
		log.Error("Failed to enqueue disconnect client event: %v", err)
	}
}
