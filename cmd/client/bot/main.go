package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cbodonnell/minegrid/pkg/client"
	"github.com/cbodonnell/minegrid/pkg/game/types"
	"github.com/cbodonnell/minegrid/pkg/geometry"
	"github.com/cbodonnell/minegrid/pkg/log"
	"github.com/cbodonnell/minegrid/pkg/messages"
	"github.com/cbodonnell/minegrid/pkg/queue"
	"github.com/cbodonnell/minegrid/pkg/version"
	"github.com/google/uuid"
)

// bot creates a room and plays the host, or joins one and plays the guest by filling
// the first free cell with every shape it is given.
type bot struct {
	client        *client.WSClient
	participantID string
	roomID        string
	host          bool
	started       bool
	lastMines     []types.Mine
	grid          geometry.Grid
}

func main() {
	serverURL := flag.String("server", "ws://localhost:8080/ws", "Game server WebSocket URL")
	roomID := flag.String("room", "", "Room to join as the guest; a new room is created when empty")
	participantID := flag.String("participant", "", "Participant id (random when empty)")
	token := flag.String("token", "", "Identity token")
	logLevel := flag.String("log-level", "info", "Log level")
	flag.Parse()

	parsedLogLevel, err := log.ParseLogLevel(*logLevel)
	if err != nil {
		panic(fmt.Sprintf("Failed to parse log level: %v", err))
	}
	logger := log.New(os.Stdout, parsedLogLevel)
	log.SetDefaultLogger(logger)
	defer logger.Sync()

	log.Info("Starting bot version %s", version.Get())
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *participantID == "" {
		*participantID = "bot-" + uuid.NewString()
	}

	messageQueue := queue.NewInMemoryQueue(1000)
	wsClient := client.NewWSClient(client.NewWSClientOptions{
		ServerURL:    *serverURL,
		Token:        *token,
		MessageQueue: messageQueue,
	})
	if err := wsClient.Connect(ctx); err != nil {
		panic(fmt.Sprintf("Failed to connect: %v", err))
	}
	defer wsClient.Close()

	go func() {
		if err := wsClient.HandleMessages(ctx); err != nil {
			log.Error("Connection lost: %v", err)
		}
		stop()
	}()

	b := &bot{
		client:        wsClient,
		participantID: *participantID,
		roomID:        *roomID,
		host:          *roomID == "",
	}
	if err := b.open(ctx); err != nil {
		panic(err)
	}

	ticker := time.NewTicker(50 * time.Millisecond)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			items, err := messageQueue.ReadAllMessages()
			if err != nil {
				log.Error("Failed to read messages: %v", err)
				continue
			}
			for _, item := range items {
				done, err := b.handle(ctx, item.(*messages.Message))
				if err != nil {
					log.Error("Failed to handle message: %v", err)
				}
				if done {
					return
				}
			}
		}
	}
}

func (b *bot) open(ctx context.Context) error {
	if b.host {
		return b.client.Send(ctx, messages.MessageTypeClientCreateRoom, uuid.NewString(), &messages.ClientCreateRoom{
			ParticipantID: b.participantID,
		})
	}
	return b.client.Send(ctx, messages.MessageTypeClientJoinRoom, uuid.NewString(), &messages.ClientJoinRoom{
		RoomID:        b.roomID,
		ParticipantID: b.participantID,
	})
}

// handle reacts to one server message and reports whether the game is over.
func (b *bot) handle(ctx context.Context, msg *messages.Message) (bool, error) {
	switch msg.Type {
	case messages.MessageTypeServerRoomCreated:
		created := &messages.ServerRoomCreated{}
		if err := messages.DecodePayload(msg, created); err != nil {
			return false, err
		}
		b.roomID = created.RoomID
		log.Info("Created room %s, waiting for a guest", b.roomID)
		if len(created.Session.AttackerInventory) == 0 {
			return false, nil
		}
		shape := created.Session.AttackerInventory[0]
		return false, b.client.Send(ctx, messages.MessageTypeClientPlaceMine, "", &messages.ClientPlaceMine{
			RoomID:     b.roomID,
			Shape:      shape.Footprint,
			InstanceID: shape.InstanceID,
		})
	case messages.MessageTypeServerJoinResult:
		result := &messages.ServerJoinResult{}
		if err := messages.DecodePayload(msg, result); err != nil {
			return false, err
		}
		if !result.Success {
			return true, fmt.Errorf("failed to join room %s: %s", b.roomID, result.Error)
		}
		log.Info("Joined room %s as %s", b.roomID, b.participantID)
	case messages.MessageTypeServerPlayerJoined:
		if !b.host || b.started {
			return false, nil
		}
		b.started = true
		return false, b.client.Send(ctx, messages.MessageTypeClientStartGame, "", &messages.ClientStartGame{
			RoomID:      b.roomID,
			PlacedMines: b.lastMines,
		})
	case messages.MessageTypeServerMinesUpdated:
		updated := &messages.ServerMinesUpdated{}
		if err := messages.DecodePayload(msg, updated); err != nil {
			return false, err
		}
		b.lastMines = updated.PlacedMines
	case messages.MessageTypeServerGameStarted:
		log.Info("Game started in room %s", b.roomID)
		if b.host {
			return false, b.give(ctx)
		}
	case messages.MessageTypeServerShapesUpdated:
		if b.host {
			return false, nil
		}
		updated := &messages.ServerShapesUpdated{}
		if err := messages.DecodePayload(msg, updated); err != nil {
			return false, err
		}
		return false, b.placeFirst(ctx, updated.DefenderInventory)
	case messages.MessageTypeServerBoardUpdated:
		updated := &messages.ServerBoardUpdated{}
		if err := messages.DecodePayload(msg, updated); err != nil {
			return false, err
		}
		b.grid = updated.Grid
		log.Info("Placement was %s, phase %s", updated.Outcome, updated.Phase)
		if updated.Phase == types.PhaseGameOver {
			log.Info("Game over, winner %s", updated.Winner)
			return true, nil
		}
		if b.host {
			return false, b.give(ctx)
		}
	case messages.MessageTypeServerGameStateSync:
		session := &types.Session{}
		if err := messages.DecodePayload(msg, session); err != nil {
			return false, err
		}
		b.grid = session.Grid
	case messages.MessageTypeServerActionFailed:
		failed := &messages.ServerActionFailed{}
		if err := messages.DecodePayload(msg, failed); err != nil {
			return false, err
		}
		log.Warn("Action failed: %s", failed.Message)
	default:
		log.Debug("Ignoring %s message", msg.Type)
	}
	return false, nil
}

// give hands the guest a single cell.
func (b *bot) give(ctx context.Context) error {
	return b.client.Send(ctx, messages.MessageTypeClientGiveShape, "", &messages.ClientGiveShape{
		RoomID: b.roomID,
		Shape:  types.Shape{Footprint: geometry.Footprint{{1}}},
	})
}

func (b *bot) placeFirst(ctx context.Context, inventory []types.Shape) error {
	if len(inventory) == 0 {
		return nil
	}
	for r := range b.grid {
		for c := range b.grid[r] {
			if b.grid[r][c] == geometry.CellFilled || b.grid[r][c] == geometry.CellExploded {
				continue
			}
			// mark the cell so the next shape does not target it before the update arrives
			b.grid[r][c] = geometry.CellFilled
			return b.client.Send(ctx, messages.MessageTypeClientPlaceShape, "", &messages.ClientPlaceShape{
				RoomID: b.roomID,
				Shape:  inventory[0],
				Row:    r,
				Col:    c,
			})
		}
	}
	return nil
}
