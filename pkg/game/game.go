package game

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/cbodonnell/minegrid/pkg/catalog"
	"github.com/cbodonnell/minegrid/pkg/game/types"
	"github.com/cbodonnell/minegrid/pkg/log"
	"github.com/cbodonnell/minegrid/pkg/messages"
	"github.com/cbodonnell/minegrid/pkg/network"
	"github.com/cbodonnell/minegrid/pkg/queue"
	"github.com/cbodonnell/minegrid/pkg/workers"
)

const (
	// DefaultGameLoopInterval is how often queued messages are drained
	DefaultGameLoopInterval = 10 * time.Millisecond
	// DefaultEvictionInterval is how often idle rooms are looked for
	DefaultEvictionInterval = time.Minute
)

// membership binds a connection to a room under a participant identity.
type membership struct {
	roomID        string
	participantID string
}

// GameManager owns the registry and every resident session. All of its state is
// touched only from the goroutine running Start.
type GameManager struct {
	clientManager        *network.ClientManager
	clientMessageQueue   queue.Queue
	connectionEventQueue queue.Queue
	registry             *Registry
	catalog              catalog.Catalog
	serverMessageChan    chan<- workers.ServerMessage
	saveSessionChan      chan<- workers.SaveSessionRequest
	gameLoopInterval     time.Duration
	roomTTL              time.Duration
	evictionInterval     time.Duration
	legacySilentFailures bool
	now                  func() time.Time

	rooms        map[string]map[uint32]struct{}
	memberships  map[uint32]membership
	lastEviction time.Time
}

// NewGameManagerOptions contains options for creating a new GameManager.
type NewGameManagerOptions struct {
	ClientManager        *network.ClientManager
	ClientMessageQueue   queue.Queue
	ConnectionEventQueue queue.Queue
	Registry             *Registry
	Catalog              catalog.Catalog
	ServerMessageChan    chan<- workers.ServerMessage
	SaveSessionChan      chan<- workers.SaveSessionRequest
	GameLoopInterval     time.Duration
	// RoomTTL is how long a room without connected members stays resident. Zero disables eviction.
	RoomTTL          time.Duration
	EvictionInterval time.Duration
	// LegacySilentFailures only reports rejected shape placements to the actor and
	// drops every other rejection silently.
	LegacySilentFailures bool
	// Now returns the current time. Defaults to time.Now.
	Now func() time.Time
}

func NewGameManager(opts NewGameManagerOptions) *GameManager {
	loopInterval := opts.GameLoopInterval
	if loopInterval <= 0 {
		loopInterval = DefaultGameLoopInterval
	}
	evictionInterval := opts.EvictionInterval
	if evictionInterval <= 0 {
		evictionInterval = DefaultEvictionInterval
	}
	now := opts.Now
	if now == nil {
		now = time.Now
	}
	return &GameManager{
		clientManager:        opts.ClientManager,
		clientMessageQueue:   opts.ClientMessageQueue,
		connectionEventQueue: opts.ConnectionEventQueue,
		registry:             opts.Registry,
		catalog:              opts.Catalog,
		serverMessageChan:    opts.ServerMessageChan,
		saveSessionChan:      opts.SaveSessionChan,
		gameLoopInterval:     loopInterval,
		roomTTL:              opts.RoomTTL,
		evictionInterval:     evictionInterval,
		legacySilentFailures: opts.LegacySilentFailures,
		now:                  now,
		rooms:                make(map[string]map[uint32]struct{}),
		memberships:          make(map[uint32]membership),
		lastEviction:         now(),
	}
}

// Start starts the game loop.
func (gm *GameManager) Start(ctx context.Context) error {
	ticker := time.NewTicker(gm.gameLoopInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case t := <-ticker.C:
			if err := gm.gameTick(ctx, t); err != nil {
				log.Error("Failed to run game tick: %v", err)
			}
		}
	}
}

// gameTick runs one iteration of the game loop.
func (gm *GameManager) gameTick(ctx context.Context, t time.Time) error {
	gm.processConnectionEvents()
	gm.processClientMessages(ctx)
	gm.evictIdleRooms(t)

	return nil
}

// processConnectionEvents processes all pending connection events in the queue.
func (gm *GameManager) processConnectionEvents() {
	pendingEvents, err := gm.connectionEventQueue.ReadAllMessages()
	if err != nil {
		log.Error("Failed to read connection events: %v", err)
		return
	}
	for _, item := range pendingEvents {
		switch event := item.(type) {
		case *types.ConnectClientEvent:
			log.Debug("Client %d joined the game loop (user %q)", event.ClientID, event.UserID)
		case *types.DisconnectClientEvent:
			gm.leaveRoom(event.ClientID)
		default:
			log.Error("Unhandled connection event type: %T", event)
		}
	}
}

// processClientMessages processes all pending client messages in the queue in
// arrival order.
func (gm *GameManager) processClientMessages(ctx context.Context) {
	pendingMessages, err := gm.clientMessageQueue.ReadAllMessages()
	if err != nil {
		log.Error("Failed to read client messages: %v", err)
		return
	}
	for _, item := range pendingMessages {
		message, ok := item.(*messages.Message)
		if !ok {
			log.Error("Failed to cast message to messages.Message")
			continue
		}

		client, err := gm.clientManager.GetClient(message.ClientID)
		if err != nil {
			log.Debug("Dropping %s message from disconnected client %d", message.Type, message.ClientID)
			continue
		}

		switch message.Type {
		case messages.MessageTypeClientCreateRoom:
			gm.handleCreateRoom(ctx, client, message)
		case messages.MessageTypeClientJoinRoom:
			gm.handleJoinRoom(ctx, client, message)
		case messages.MessageTypeClientResizeBoard:
			gm.handleResizeBoard(ctx, message)
		case messages.MessageTypeClientStartGame:
			gm.handleStartGame(ctx, message)
		case messages.MessageTypeClientPlaceMine:
			gm.handlePlaceMine(ctx, message)
		case messages.MessageTypeClientPlaceShape:
			gm.handlePlaceShape(ctx, message)
		case messages.MessageTypeClientGiveShape:
			gm.handleGiveShape(ctx, message)
		case messages.MessageTypeClientPreviewShape:
			gm.handlePreviewShape(ctx, message)
		default:
			log.Warn("Unhandled message type %q from client %d", message.Type, message.ClientID)
			gm.fail(ctx, message, &types.ErrValidation{Reason: fmt.Sprintf("unknown message type %q", message.Type)}, false)
		}
	}
}

// roomLogger scopes log entries to a room.
func roomLogger(roomID string) *log.Logger {
	return log.With("room", roomID)
}

// participantFor prefers the verified identity of the connection over the one it claims.
func participantFor(client *network.Client, claimed string) string {
	if client.UserID != "" {
		return client.UserID
	}
	return claimed
}

func (gm *GameManager) handleCreateRoom(ctx context.Context, client *network.Client, message *messages.Message) {
	payload := &messages.ClientCreateRoom{}
	if err := messages.DecodePayload(message, payload); err != nil {
		gm.fail(ctx, message, &types.ErrValidation{Reason: err.Error()}, false)
		return
	}

	participantID := participantFor(client, payload.ParticipantID)
	session, err := gm.registry.Create(ctx, participantID, payload.Rows, payload.Cols)
	if err != nil {
		gm.fail(ctx, message, err, false)
		return
	}

	gm.joinRoom(client.ID, session.RoomID, participantID)
	gm.send(ctx, []uint32{client.ID}, messages.MessageTypeServerRoomCreated, message.RequestID, &messages.ServerRoomCreated{
		RoomID:  session.RoomID,
		Session: session.Copy(),
	})
	gm.snapshot(session)
}

func (gm *GameManager) handleJoinRoom(ctx context.Context, client *network.Client, message *messages.Message) {
	payload := &messages.ClientJoinRoom{}
	if err := messages.DecodePayload(message, payload); err != nil {
		gm.send(ctx, []uint32{client.ID}, messages.MessageTypeServerJoinResult, message.RequestID, &messages.ServerJoinResult{
			Success: false,
			Error:   err.Error(),
		})
		return
	}

	participantID := participantFor(client, payload.ParticipantID)
	session, bound, err := gm.registry.Join(ctx, payload.RoomID, participantID)
	if err != nil {
		gm.send(ctx, []uint32{client.ID}, messages.MessageTypeServerJoinResult, message.RequestID, &messages.ServerJoinResult{
			Success: false,
			Error:   failureMessage(err),
		})
		return
	}

	others := gm.members(session.RoomID, client.ID)
	gm.joinRoom(client.ID, session.RoomID, participantID)
	roomLogger(session.RoomID).Info("Participant %s joined", participantID)

	gm.send(ctx, []uint32{client.ID}, messages.MessageTypeServerJoinResult, message.RequestID, &messages.ServerJoinResult{Success: true})
	gm.send(ctx, others, messages.MessageTypeServerPlayerJoined, "", &messages.ServerPlayerJoined{ParticipantID: participantID})
	gm.send(ctx, []uint32{client.ID}, messages.MessageTypeServerGameStateSync, "", session.Copy())

	if bound {
		gm.touch(session)
		gm.snapshot(session)
	}
}

func (gm *GameManager) handleResizeBoard(ctx context.Context, message *messages.Message) {
	payload := &messages.ClientResizeBoard{}
	if err := messages.DecodePayload(message, payload); err != nil {
		gm.fail(ctx, message, &types.ErrValidation{Reason: err.Error()}, false)
		return
	}

	session, actorID, err := gm.sessionFor(ctx, message.ClientID, payload.RoomID)
	if err != nil {
		gm.fail(ctx, message, err, false)
		return
	}
	if actorID != session.HostID {
		gm.fail(ctx, message, &types.ErrAuthorization{ParticipantID: actorID, Action: "resize the board"}, false)
		return
	}
	if session.Phase != types.PhaseSetup {
		gm.fail(ctx, message, &types.ErrPhase{Phase: session.Phase, Action: "resize the board"}, false)
		return
	}

	attackerShapes, err := catalog.AttackerInventory(ctx, gm.catalog)
	if err != nil {
		roomLogger(session.RoomID).Error("Failed to reload attacker shapes, keeping current ones: %v", err)
		attackerShapes = session.AttackerInventory
	}
	if err := session.ResizeBoard(payload.Rows, payload.Cols, attackerShapes); err != nil {
		gm.fail(ctx, message, err, false)
		return
	}

	gm.touch(session)
	c := session.Copy()
	gm.broadcast(ctx, session.RoomID, messages.MessageTypeServerBoardResized, &messages.ServerBoardResized{
		Grid:              c.Grid,
		PlacedMines:       c.Mines,
		AttackerInventory: c.AttackerInventory,
	})
	gm.snapshot(session)
}

func (gm *GameManager) handleStartGame(ctx context.Context, message *messages.Message) {
	payload := &messages.ClientStartGame{}
	if err := messages.DecodePayload(message, payload); err != nil {
		gm.fail(ctx, message, &types.ErrValidation{Reason: err.Error()}, false)
		return
	}

	session, actorID, err := gm.sessionFor(ctx, message.ClientID, payload.RoomID)
	if err != nil {
		gm.fail(ctx, message, err, false)
		return
	}
	if payload.HostID != "" && payload.HostID != actorID {
		gm.fail(ctx, message, &types.ErrAuthorization{ParticipantID: actorID, Action: "start the game as " + payload.HostID}, false)
		return
	}
	if err := session.StartGame(payload.PlacedMines, actorID); err != nil {
		gm.fail(ctx, message, err, false)
		return
	}

	gm.touch(session)
	c := session.Copy()
	gm.broadcast(ctx, session.RoomID, messages.MessageTypeServerGameStarted, &messages.ServerGameStarted{
		PlacedMines:       c.Mines,
		DefenderInventory: c.DefenderInventory,
		HostID:            c.HostID,
	})
	gm.snapshot(session)
}

func (gm *GameManager) handlePlaceMine(ctx context.Context, message *messages.Message) {
	payload := &messages.ClientPlaceMine{}
	if err := messages.DecodePayload(message, payload); err != nil {
		gm.fail(ctx, message, &types.ErrValidation{Reason: err.Error()}, false)
		return
	}

	session, actorID, err := gm.sessionFor(ctx, message.ClientID, payload.RoomID)
	if err != nil {
		gm.fail(ctx, message, err, false)
		return
	}
	mine, err := session.PlaceMine(types.PlaceMineRequest{
		ActorID:    actorID,
		Footprint:  payload.Shape,
		Row:        payload.Row,
		Col:        payload.Col,
		InstanceID: payload.InstanceID,
		IsMove:     payload.IsMove,
		MineID:     payload.MineID,
	})
	if err != nil {
		gm.fail(ctx, message, err, false)
		return
	}
	roomLogger(session.RoomID).Debug("Mine %d placed at (%d, %d)", mine.ID, mine.Row, mine.Col)

	gm.touch(session)
	c := session.Copy()
	gm.broadcast(ctx, session.RoomID, messages.MessageTypeServerMinesUpdated, &messages.ServerMinesUpdated{
		PlacedMines:       c.Mines,
		Grid:              c.Grid,
		AttackerInventory: c.AttackerInventory,
	})
	gm.snapshot(session)
}

func (gm *GameManager) handlePlaceShape(ctx context.Context, message *messages.Message) {
	payload := &messages.ClientPlaceShape{}
	if err := messages.DecodePayload(message, payload); err != nil {
		gm.fail(ctx, message, &types.ErrValidation{Reason: err.Error()}, true)
		return
	}

	session, actorID, err := gm.sessionFor(ctx, message.ClientID, payload.RoomID)
	if err != nil {
		gm.fail(ctx, message, err, false)
		return
	}
	result, err := session.PlaceShape(payload.Shape, payload.Row, payload.Col, actorID)
	if err != nil {
		gm.fail(ctx, message, err, types.IsValidation(err))
		return
	}
	if result.Outcome == types.OutcomeHit {
		roomLogger(session.RoomID).Debug("Shape placed at (%d, %d) hit mine %d", payload.Row, payload.Col, *result.MineID)
	}
	if session.Phase == types.PhaseGameOver {
		roomLogger(session.RoomID).Info("Game over, winner %s", session.Winner)
	}

	gm.touch(session)
	c := session.Copy()
	gm.broadcast(ctx, session.RoomID, messages.MessageTypeServerBoardUpdated, &messages.ServerBoardUpdated{
		Grid:              c.Grid,
		DefenderInventory: c.DefenderInventory,
		Decorations:       c.Decorations,
		Outcome:           result.Outcome,
		Phase:             c.Phase,
		Winner:            c.Winner,
	})
	gm.snapshot(session)
}

func (gm *GameManager) handleGiveShape(ctx context.Context, message *messages.Message) {
	payload := &messages.ClientGiveShape{}
	if err := messages.DecodePayload(message, payload); err != nil {
		gm.fail(ctx, message, &types.ErrValidation{Reason: err.Error()}, false)
		return
	}

	session, actorID, err := gm.sessionFor(ctx, message.ClientID, payload.RoomID)
	if err != nil {
		gm.fail(ctx, message, err, false)
		return
	}
	if _, err := session.GiveShape(payload.Shape, actorID); err != nil {
		gm.fail(ctx, message, err, false)
		return
	}

	gm.touch(session)
	gm.broadcast(ctx, session.RoomID, messages.MessageTypeServerShapesUpdated, &messages.ServerShapesUpdated{
		DefenderInventory: session.Copy().DefenderInventory,
	})
	gm.snapshot(session)
}

// handlePreviewShape relays hover cells to the rest of the room. Nothing is validated or stored.
func (gm *GameManager) handlePreviewShape(ctx context.Context, message *messages.Message) {
	payload := &messages.ClientPreviewShape{}
	if err := messages.DecodePayload(message, payload); err != nil {
		log.Trace("Dropping malformed preview from client %d: %v", message.ClientID, err)
		return
	}

	m, ok := gm.memberships[message.ClientID]
	if !ok || m.roomID != payload.RoomID {
		log.Trace("Dropping preview from client %d outside room %s", message.ClientID, payload.RoomID)
		return
	}

	gm.send(ctx, gm.members(payload.RoomID, message.ClientID), messages.MessageTypeServerOpponentPreview, "", &messages.ServerOpponentPreview{
		PreviewCells: payload.PreviewCells,
	})
}

// sessionFor resolves the session of a room and the participant the connection acts as in it.
func (gm *GameManager) sessionFor(ctx context.Context, clientID uint32, roomID string) (*types.Session, string, error) {
	session, err := gm.registry.Get(ctx, roomID)
	if err != nil {
		return nil, "", err
	}
	m, ok := gm.memberships[clientID]
	if !ok || m.roomID != roomID {
		return nil, "", &types.ErrAuthorization{ParticipantID: fmt.Sprintf("client %d", clientID), Action: "act in room " + roomID}
	}
	return session, m.participantID, nil
}

// fail reports a rejected action to the connection that sent it. In legacy mode only
// failures flagged as reported are sent.
func (gm *GameManager) fail(ctx context.Context, message *messages.Message, err error, reported bool) {
	log.Debug("Rejected %s from client %d: %v", message.Type, message.ClientID, err)
	if gm.legacySilentFailures && !reported {
		return
	}
	gm.send(ctx, []uint32{message.ClientID}, messages.MessageTypeServerActionFailed, message.RequestID, &messages.ServerActionFailed{
		Message: failureMessage(err),
	})
}

// failureMessage exposes typed errors verbatim and hides everything else.
func failureMessage(err error) string {
	switch {
	case types.IsValidation(err), types.IsAuthorization(err), types.IsPhase(err), types.IsNotFound(err), types.IsCapacity(err):
		return err.Error()
	default:
		log.Error("Action failed: %v", err)
		return "internal server error"
	}
}

func (gm *GameManager) joinRoom(clientID uint32, roomID string, participantID string) {
	if m, ok := gm.memberships[clientID]; ok && m.roomID != roomID {
		gm.leaveRoom(clientID)
	}
	gm.memberships[clientID] = membership{
		roomID:        roomID,
		participantID: participantID,
	}
	if _, ok := gm.rooms[roomID]; !ok {
		gm.rooms[roomID] = make(map[uint32]struct{})
	}
	gm.rooms[roomID][clientID] = struct{}{}
}

func (gm *GameManager) leaveRoom(clientID uint32) {
	m, ok := gm.memberships[clientID]
	if !ok {
		return
	}
	delete(gm.memberships, clientID)
	delete(gm.rooms[m.roomID], clientID)
	if len(gm.rooms[m.roomID]) == 0 {
		delete(gm.rooms, m.roomID)
	}
	gm.registry.Touch(m.roomID, gm.now())
	roomLogger(m.roomID).Debug("Client %d left", clientID)
}

// members returns the connections in a room in ascending order, without exclude.
func (gm *GameManager) members(roomID string, exclude uint32) []uint32 {
	ids := make([]uint32, 0, len(gm.rooms[roomID]))
	for id := range gm.rooms[roomID] {
		if id != exclude {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

func (gm *GameManager) isOccupied(roomID string) bool {
	return len(gm.rooms[roomID]) > 0
}

func (gm *GameManager) touch(session *types.Session) {
	now := gm.now()
	session.UpdatedAt = now.UnixMilli()
	gm.registry.Touch(session.RoomID, now)
}

func (gm *GameManager) broadcast(ctx context.Context, roomID string, t messages.MessageType, payload interface{}) {
	gm.send(ctx, gm.members(roomID, 0), t, "", payload)
}

func (gm *GameManager) send(ctx context.Context, clientIDs []uint32, t messages.MessageType, requestID string, payload interface{}) {
	if len(clientIDs) == 0 {
		return
	}
	select {
	case gm.serverMessageChan <- workers.ServerMessage{
		ClientIDs: clientIDs,
		Type:      t,
		RequestID: requestID,
		Message:   payload,
	}:
	case <-ctx.Done():
	default:
		log.Warn("Server message queue is full, dropping %s for %d client(s)", t, len(clientIDs))
	}
}

// snapshot hands a copy of the session to the save worker without waiting. A full
// channel drops the snapshot; the next mutation writes the whole session again.
func (gm *GameManager) snapshot(session *types.Session) {
	select {
	case gm.saveSessionChan <- workers.SaveSessionRequest{Session: session.Copy()}:
	default:
		roomLogger(session.RoomID).Warn("Save queue is full, dropping snapshot")
	}
}

func (gm *GameManager) evictIdleRooms(t time.Time) {
	if gm.roomTTL <= 0 || t.Sub(gm.lastEviction) < gm.evictionInterval {
		return
	}
	gm.lastEviction = t
	for _, roomID := range gm.registry.EvictIdle(t, gm.roomTTL, gm.isOccupied) {
		roomLogger(roomID).Info("Evicted idle room")
	}
}
