package game

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	mocks "github.com/cbodonnell/minegrid/mocks/github.com/cbodonnell/minegrid/pkg/queue"
	"github.com/cbodonnell/minegrid/pkg/catalog"
	"github.com/cbodonnell/minegrid/pkg/game/types"
	"github.com/cbodonnell/minegrid/pkg/geometry"
	"github.com/cbodonnell/minegrid/pkg/messages"
	"github.com/cbodonnell/minegrid/pkg/network"
	"github.com/cbodonnell/minegrid/pkg/queue"
	"github.com/cbodonnell/minegrid/pkg/repositories"
	"github.com/cbodonnell/minegrid/pkg/workers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type harness struct {
	t        *testing.T
	gm       *GameManager
	registry *Registry
	clients  *network.ClientManager
	messages *queue.InMemoryQueue
	events   *queue.InMemoryQueue
	out      chan workers.ServerMessage
	saves    chan workers.SaveSessionRequest
	repo     *repositories.MemoryRepository
	clock    *fakeClock
}

func newHarness(t *testing.T, configure func(opts *NewGameManagerOptions)) *harness {
	t.Helper()
	h := &harness{
		t:        t,
		clients:  network.NewClientManager(),
		messages: queue.NewInMemoryQueue(1024),
		events:   queue.NewInMemoryQueue(1024),
		out:      make(chan workers.ServerMessage, 1024),
		saves:    make(chan workers.SaveSessionRequest, 1024),
		repo:     repositories.NewMemoryRepository(),
		clock:    &fakeClock{t: time.Unix(1700000000, 0)},
	}
	cat := catalog.NewCatalog(catalog.NewCatalogOptions{})
	h.registry = NewRegistry(NewRegistryOptions{
		Repository: h.repo,
		Catalog:    cat,
		Now:        h.clock.Now,
	})
	opts := NewGameManagerOptions{
		ClientManager:        h.clients,
		ClientMessageQueue:   h.messages,
		ConnectionEventQueue: h.events,
		Registry:             h.registry,
		Catalog:              cat,
		ServerMessageChan:    h.out,
		SaveSessionChan:      h.saves,
		Now:                  h.clock.Now,
	}
	if configure != nil {
		configure(&opts)
	}
	h.gm = NewGameManager(opts)
	return h
}

func (h *harness) connect() uint32 {
	h.t.Helper()
	clientID, err := h.clients.ConnectClient(nil, "")
	require.NoError(h.t, err)
	require.NoError(h.t, h.events.Enqueue(&types.ConnectClientEvent{ClientID: clientID}))
	return clientID
}

func (h *harness) disconnect(clientID uint32) {
	h.t.Helper()
	h.clients.DisconnectClient(clientID)
	require.NoError(h.t, h.events.Enqueue(&types.DisconnectClientEvent{ClientID: clientID}))
}

func (h *harness) send(clientID uint32, t messages.MessageType, requestID string, payload interface{}) {
	h.t.Helper()
	b, err := json.Marshal(payload)
	require.NoError(h.t, err)
	require.NoError(h.t, h.messages.Enqueue(&messages.Message{
		ClientID:  clientID,
		Type:      t,
		RequestID: requestID,
		Payload:   b,
	}))
}

// tick runs one loop iteration and returns everything it sent.
func (h *harness) tick() []workers.ServerMessage {
	h.t.Helper()
	require.NoError(h.t, h.gm.gameTick(context.Background(), h.clock.Now()))
	sent := []workers.ServerMessage{}
	for {
		select {
		case msg := <-h.out:
			sent = append(sent, msg)
		default:
			return sent
		}
	}
}

// persist writes every pending snapshot and returns the last one.
func (h *harness) persist() *types.Session {
	h.t.Helper()
	var last *types.Session
	for {
		select {
		case req := <-h.saves:
			require.NoError(h.t, h.repo.SaveSession(context.Background(), req.Session))
			last = req.Session
		default:
			return last
		}
	}
}

func requireOne(t *testing.T, sent []workers.ServerMessage, typ messages.MessageType) workers.ServerMessage {
	t.Helper()
	var found []workers.ServerMessage
	for _, msg := range sent {
		if msg.Type == typ {
			found = append(found, msg)
		}
	}
	require.Len(t, found, 1, "expected exactly one %s message in %v", typ, sent)
	return found[0]
}

// setupRoom creates a room hosted by host-1 and joined by guest-1.
func (h *harness) setupRoom() (host uint32, guest uint32, roomID string) {
	h.t.Helper()
	host = h.connect()
	guest = h.connect()

	h.send(host, messages.MessageTypeClientCreateRoom, "r1", &messages.ClientCreateRoom{ParticipantID: "host-1"})
	created := requireOne(h.t, h.tick(), messages.MessageTypeServerRoomCreated)
	roomID = created.Message.(*messages.ServerRoomCreated).RoomID

	h.send(guest, messages.MessageTypeClientJoinRoom, "r2", &messages.ClientJoinRoom{RoomID: roomID, ParticipantID: "guest-1"})
	joined := requireOne(h.t, h.tick(), messages.MessageTypeServerJoinResult)
	require.True(h.t, joined.Message.(*messages.ServerJoinResult).Success)
	return host, guest, roomID
}

func TestGameManager_processClientMessages(t *testing.T) {
	mockQueue := mocks.NewQueue(t)
	clients := network.NewClientManager()
	clientID, err := clients.ConnectClient(nil, "uid-1")
	require.NoError(t, err)

	tests := []struct {
		name  string
		setup func()
		want  []messages.MessageType
	}{
		{
			name: "no messages",
			setup: func() {
				mockQueue.EXPECT().ReadAllMessages().Return([]interface{}{}, nil).Once()
			},
			want: []messages.MessageType{},
		},
		{
			name: "create room with verified identity",
			setup: func() {
				payload, err := json.Marshal(&messages.ClientCreateRoom{ParticipantID: "spoofed", Rows: 8, Cols: 9})
				if err != nil {
					t.Fatalf("failed to marshal payload: %v", err)
				}
				mockQueue.EXPECT().ReadAllMessages().Return([]interface{}{
					&messages.Message{ClientID: clientID, Type: messages.MessageTypeClientCreateRoom, RequestID: "r1", Payload: payload},
				}, nil).Once()
			},
			want: []messages.MessageType{messages.MessageTypeServerRoomCreated},
		},
		{
			name: "unknown client is ignored",
			setup: func() {
				mockQueue.EXPECT().ReadAllMessages().Return([]interface{}{
					&messages.Message{ClientID: clientID + 1, Type: messages.MessageTypeClientCreateRoom, Payload: []byte(`{}`)},
				}, nil).Once()
			},
			want: []messages.MessageType{},
		},
		{
			name: "unknown message type",
			setup: func() {
				mockQueue.EXPECT().ReadAllMessages().Return([]interface{}{
					&messages.Message{ClientID: clientID, Type: "dance"},
				}, nil).Once()
			},
			want: []messages.MessageType{messages.MessageTypeServerActionFailed},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := make(chan workers.ServerMessage, 16)
			cat := catalog.NewCatalog(catalog.NewCatalogOptions{})
			gm := NewGameManager(NewGameManagerOptions{
				ClientManager:      clients,
				ClientMessageQueue: mockQueue,
				Registry:           NewRegistry(NewRegistryOptions{Repository: repositories.NewMemoryRepository(), Catalog: cat}),
				Catalog:            cat,
				ServerMessageChan:  out,
				SaveSessionChan:    make(chan workers.SaveSessionRequest, 16),
			})
			tt.setup()
			gm.processClientMessages(context.Background())
			close(out)

			got := []messages.MessageType{}
			for msg := range out {
				got = append(got, msg.Type)
				if msg.Type == messages.MessageTypeServerRoomCreated {
					created := msg.Message.(*messages.ServerRoomCreated)
					assert.Equal(t, "uid-1", created.Session.HostID)
					assert.Equal(t, 8, created.Session.Rows())
					assert.Equal(t, 9, created.Session.Cols())
					assert.Equal(t, "r1", msg.RequestID)
				}
			}
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestGameManager_JoinRoom(t *testing.T) {
	h := newHarness(t, nil)
	host, guest, roomID := h.setupRoom()
	h.persist()

	// the join itself was checked by setupRoom; a third participant is refused
	intruder := h.connect()
	h.send(intruder, messages.MessageTypeClientJoinRoom, "r3", &messages.ClientJoinRoom{RoomID: roomID, ParticipantID: "intruder"})
	sent := h.tick()
	require.Len(t, sent, 1)
	assert.Equal(t, []uint32{intruder}, sent[0].ClientIDs)
	assert.Equal(t, "r3", sent[0].RequestID)
	assert.Equal(t, &messages.ServerJoinResult{Success: false, Error: "room is full"}, sent[0].Message)

	h.send(intruder, messages.MessageTypeClientJoinRoom, "r4", &messages.ClientJoinRoom{RoomID: "NOPE00", ParticipantID: "intruder"})
	sent = h.tick()
	require.Len(t, sent, 1)
	assert.Equal(t, &messages.ServerJoinResult{Success: false, Error: "room not found"}, sent[0].Message)

	// a second connection of the host re-joins without binding anything
	hostTab := h.connect()
	h.send(hostTab, messages.MessageTypeClientJoinRoom, "r5", &messages.ClientJoinRoom{RoomID: roomID, ParticipantID: "host-1"})
	sent = h.tick()
	result := requireOne(t, sent, messages.MessageTypeServerJoinResult)
	assert.True(t, result.Message.(*messages.ServerJoinResult).Success)
	joined := requireOne(t, sent, messages.MessageTypeServerPlayerJoined)
	assert.ElementsMatch(t, []uint32{host, guest}, joined.ClientIDs)
	assert.Equal(t, "host-1", joined.Message.(*messages.ServerPlayerJoined).ParticipantID)
	sync := requireOne(t, sent, messages.MessageTypeServerGameStateSync)
	assert.Equal(t, []uint32{hostTab}, sync.ClientIDs)
	session := sync.Message.(*types.Session)
	assert.Equal(t, "host-1", session.HostID)
	assert.Equal(t, "guest-1", session.GuestID)
	assert.Nil(t, h.persist(), "re-join does not snapshot")
}

func TestGameManager_EndToEnd(t *testing.T) {
	h := newHarness(t, nil)
	host, guest, roomID := h.setupRoom()

	h.send(host, messages.MessageTypeClientPlaceMine, "", &messages.ClientPlaceMine{RoomID: roomID, Shape: geometry.Footprint{{1, 1}, {1, 1}}, Row: 0, Col: 0})
	h.send(host, messages.MessageTypeClientPlaceMine, "", &messages.ClientPlaceMine{RoomID: roomID, Shape: geometry.Footprint{{1, 1, 1, 1}}, Row: 3, Col: 3})
	sent := h.tick()
	require.Len(t, sent, 2)
	for _, msg := range sent {
		assert.Equal(t, messages.MessageTypeServerMinesUpdated, msg.Type)
		assert.ElementsMatch(t, []uint32{host, guest}, msg.ClientIDs)
	}
	updated := sent[1].Message.(*messages.ServerMinesUpdated)
	require.Len(t, updated.PlacedMines, 2)
	assert.Equal(t, 8, updated.Grid.Count(geometry.CellMine))
	assert.Len(t, updated.AttackerInventory, len(catalog.DefaultAttackerShapes)-2)

	h.send(host, messages.MessageTypeClientStartGame, "", &messages.ClientStartGame{RoomID: roomID, PlacedMines: updated.PlacedMines, HostID: "host-1"})
	started := requireOne(t, h.tick(), messages.MessageTypeServerGameStarted)
	assert.Len(t, started.Message.(*messages.ServerGameStarted).PlacedMines, 2)
	assert.Empty(t, started.Message.(*messages.ServerGameStarted).DefenderInventory)

	h.send(host, messages.MessageTypeClientGiveShape, "", &messages.ClientGiveShape{RoomID: roomID, Shape: types.Shape{Footprint: geometry.Footprint{{1}}}})
	given := requireOne(t, h.tick(), messages.MessageTypeServerShapesUpdated)
	inventory := given.Message.(*messages.ServerShapesUpdated).DefenderInventory
	require.Len(t, inventory, 1)
	require.NotEmpty(t, inventory[0].InstanceID)

	mineCells := geometry.NewCellSet(
		geometry.Occupied(geometry.Footprint{{1, 1}, {1, 1}}, 0, 0)...,
	)
	mineCells.Add(geometry.Occupied(geometry.Footprint{{1, 1, 1, 1}}, 3, 3)...)
	placements := 0
	for r := 0; r < DefaultBoardSize; r++ {
		for c := 0; c < DefaultBoardSize; c++ {
			if mineCells.Contains(geometry.Cell{Row: r, Col: c}) {
				continue
			}
			shape := types.Shape{Footprint: geometry.Footprint{{1}}}
			if placements == 0 {
				shape = inventory[0]
			}
			h.send(guest, messages.MessageTypeClientPlaceShape, "", &messages.ClientPlaceShape{RoomID: roomID, Shape: shape, Row: r, Col: c})
			placements++
		}
	}
	require.Equal(t, 188, placements)

	sent = h.tick()
	require.Len(t, sent, 188)
	first := sent[0].Message.(*messages.ServerBoardUpdated)
	assert.Equal(t, types.OutcomeSafe, first.Outcome)
	assert.Empty(t, first.DefenderInventory)
	assert.Equal(t, types.PhasePlay, first.Phase)

	last := sent[187].Message.(*messages.ServerBoardUpdated)
	assert.Equal(t, types.OutcomeSafe, last.Outcome)
	assert.Equal(t, types.PhaseGameOver, last.Phase)
	assert.Equal(t, "guest-1", last.Winner)
	assert.Equal(t, 188, last.Grid.Count(geometry.CellFilled))

	saved := h.persist()
	require.NotNil(t, saved)
	assert.Equal(t, types.PhaseGameOver, saved.Phase)
	assert.Equal(t, "guest-1", saved.Winner)

	stored, err := h.repo.LoadSession(context.Background(), roomID)
	require.NoError(t, err)
	assert.Equal(t, types.PhaseGameOver, stored.Phase)
}

func TestGameManager_PlaceShapeHit(t *testing.T) {
	h := newHarness(t, nil)
	host, guest, roomID := h.setupRoom()

	mines := []types.Mine{{ID: 0, Footprint: geometry.Footprint{{1, 1}}, Row: 2, Col: 2}}
	h.send(host, messages.MessageTypeClientStartGame, "", &messages.ClientStartGame{RoomID: roomID, PlacedMines: mines, HostID: "host-1"})
	requireOne(t, h.tick(), messages.MessageTypeServerGameStarted)

	shape := types.Shape{Footprint: geometry.Footprint{{1}, {1}}, Src: "/image/post_1x2.png", Width: 1, Height: 2}
	h.send(guest, messages.MessageTypeClientPlaceShape, "", &messages.ClientPlaceShape{RoomID: roomID, Shape: shape, Row: 1, Col: 3})
	updated := requireOne(t, h.tick(), messages.MessageTypeServerBoardUpdated)
	assert.ElementsMatch(t, []uint32{host, guest}, updated.ClientIDs)
	board := updated.Message.(*messages.ServerBoardUpdated)
	assert.Equal(t, types.OutcomeHit, board.Outcome)
	assert.Empty(t, board.Decorations)
	assert.Equal(t, geometry.CellExploded, board.Grid[2][2])
	assert.Equal(t, geometry.CellExploded, board.Grid[2][3])
	assert.Equal(t, geometry.CellEmpty, board.Grid[1][3])
	assert.Equal(t, types.PhasePlay, board.Phase)
}

func TestGameManager_FailurePolicy(t *testing.T) {
	t.Run("always notify", func(t *testing.T) {
		h := newHarness(t, nil)
		host, guest, roomID := h.setupRoom()
		h.persist()

		h.send(guest, messages.MessageTypeClientPlaceMine, "r9", &messages.ClientPlaceMine{RoomID: roomID, Shape: geometry.Footprint{{1}}, Row: 0, Col: 0})
		sent := h.tick()
		require.Len(t, sent, 1)
		assert.Equal(t, messages.MessageTypeServerActionFailed, sent[0].Type)
		assert.Equal(t, []uint32{guest}, sent[0].ClientIDs)
		assert.Equal(t, "r9", sent[0].RequestID)

		h.send(host, messages.MessageTypeClientPlaceMine, "", &messages.ClientPlaceMine{RoomID: roomID, Shape: geometry.Footprint{{1, 1}}, Row: 0, Col: 13})
		sent = h.tick()
		require.Len(t, sent, 1)
		assert.Equal(t, messages.MessageTypeServerActionFailed, sent[0].Type)
		assert.Equal(t, []uint32{host}, sent[0].ClientIDs)

		h.send(host, messages.MessageTypeClientResizeBoard, "", &messages.ClientResizeBoard{RoomID: "NOPE00", Rows: 10, Cols: 10})
		sent = h.tick()
		require.Len(t, sent, 1)
		assert.Equal(t, &messages.ServerActionFailed{Message: "room not found"}, sent[0].Message)

		h.send(host, messages.MessageTypeClientGiveShape, "", map[string]interface{}{"roomId": roomID, "shape": "square"})
		sent = h.tick()
		require.Len(t, sent, 1)
		assert.Equal(t, messages.MessageTypeServerActionFailed, sent[0].Type)

		stranger := h.connect()
		h.send(stranger, messages.MessageTypeClientPlaceMine, "", &messages.ClientPlaceMine{RoomID: roomID, Shape: geometry.Footprint{{1}}, Row: 0, Col: 0})
		sent = h.tick()
		require.Len(t, sent, 1)
		assert.Equal(t, []uint32{stranger}, sent[0].ClientIDs)
		assert.Nil(t, h.persist(), "rejected actions do not snapshot")
	})

	t.Run("legacy silent failures", func(t *testing.T) {
		h := newHarness(t, func(opts *NewGameManagerOptions) {
			opts.LegacySilentFailures = true
		})
		host, guest, roomID := h.setupRoom()

		h.send(guest, messages.MessageTypeClientPlaceMine, "", &messages.ClientPlaceMine{RoomID: roomID, Shape: geometry.Footprint{{1}}, Row: 0, Col: 0})
		h.send(host, messages.MessageTypeClientResizeBoard, "", &messages.ClientResizeBoard{RoomID: "NOPE00", Rows: 10, Cols: 10})
		assert.Empty(t, h.tick())

		h.send(host, messages.MessageTypeClientStartGame, "", &messages.ClientStartGame{RoomID: roomID, PlacedMines: []types.Mine{}, HostID: "host-1"})
		requireOne(t, h.tick(), messages.MessageTypeServerGameStarted)

		h.send(guest, messages.MessageTypeClientPlaceShape, "", &messages.ClientPlaceShape{RoomID: roomID, Shape: types.Shape{Footprint: geometry.Footprint{{1}}}, Row: 20, Col: 0})
		failed := requireOne(t, h.tick(), messages.MessageTypeServerActionFailed)
		assert.Equal(t, []uint32{guest}, failed.ClientIDs)

		h.send(host, messages.MessageTypeClientPlaceShape, "", &messages.ClientPlaceShape{RoomID: roomID, Shape: types.Shape{Footprint: geometry.Footprint{{1}}}, Row: 0, Col: 0})
		assert.Empty(t, h.tick(), "authorization failures stay silent")
	})
}

func TestGameManager_ResizeBoard(t *testing.T) {
	h := newHarness(t, nil)
	host, guest, roomID := h.setupRoom()

	h.send(host, messages.MessageTypeClientPlaceMine, "", &messages.ClientPlaceMine{RoomID: roomID, Shape: geometry.Footprint{{1}}, Row: 0, Col: 0})
	h.tick()

	h.send(guest, messages.MessageTypeClientResizeBoard, "", &messages.ClientResizeBoard{RoomID: roomID, Rows: 8, Cols: 8})
	failed := requireOne(t, h.tick(), messages.MessageTypeServerActionFailed)
	assert.Equal(t, []uint32{guest}, failed.ClientIDs)

	h.send(host, messages.MessageTypeClientResizeBoard, "", &messages.ClientResizeBoard{RoomID: roomID, Rows: 40, Cols: 3})
	resized := requireOne(t, h.tick(), messages.MessageTypeServerBoardResized)
	assert.ElementsMatch(t, []uint32{host, guest}, resized.ClientIDs)
	board := resized.Message.(*messages.ServerBoardResized)
	assert.Equal(t, 30, board.Grid.Rows())
	assert.Equal(t, 5, board.Grid.Cols())
	assert.Empty(t, board.PlacedMines)
	assert.Len(t, board.AttackerInventory, len(catalog.DefaultAttackerShapes))

	saved := h.persist()
	require.NotNil(t, saved)
	assert.Equal(t, 30, saved.Rows())
}

func TestGameManager_PreviewShape(t *testing.T) {
	h := newHarness(t, nil)
	host, guest, roomID := h.setupRoom()
	h.persist()

	cells := []geometry.Cell{{Row: 1, Col: 1}, {Row: 1, Col: 2}}
	h.send(guest, messages.MessageTypeClientPreviewShape, "", &messages.ClientPreviewShape{RoomID: roomID, PreviewCells: cells})
	preview := requireOne(t, h.tick(), messages.MessageTypeServerOpponentPreview)
	assert.Equal(t, []uint32{host}, preview.ClientIDs)
	assert.Equal(t, cells, preview.Message.(*messages.ServerOpponentPreview).PreviewCells)

	h.send(guest, messages.MessageTypeClientPreviewShape, "", &messages.ClientPreviewShape{RoomID: "OTHER1", PreviewCells: cells})
	assert.Empty(t, h.tick())
	assert.Nil(t, h.persist(), "previews are never stored")
}

func TestGameManager_MembershipMoves(t *testing.T) {
	h := newHarness(t, nil)
	host, guest, firstRoom := h.setupRoom()

	h.send(guest, messages.MessageTypeClientCreateRoom, "", &messages.ClientCreateRoom{ParticipantID: "guest-1"})
	requireOne(t, h.tick(), messages.MessageTypeServerRoomCreated)

	h.send(host, messages.MessageTypeClientPlaceMine, "", &messages.ClientPlaceMine{RoomID: firstRoom, Shape: geometry.Footprint{{1}}, Row: 0, Col: 0})
	updated := requireOne(t, h.tick(), messages.MessageTypeServerMinesUpdated)
	assert.Equal(t, []uint32{host}, updated.ClientIDs)
}

func TestGameManager_DisconnectEvictRehydrate(t *testing.T) {
	h := newHarness(t, func(opts *NewGameManagerOptions) {
		opts.RoomTTL = 30 * time.Minute
		opts.EvictionInterval = time.Minute
	})
	host := h.connect()
	h.send(host, messages.MessageTypeClientCreateRoom, "", &messages.ClientCreateRoom{ParticipantID: "host-1"})
	roomID := requireOne(t, h.tick(), messages.MessageTypeServerRoomCreated).Message.(*messages.ServerRoomCreated).RoomID

	h.send(host, messages.MessageTypeClientPlaceMine, "", &messages.ClientPlaceMine{RoomID: roomID, Shape: geometry.Footprint{{1}}, Row: 0, Col: 0})
	h.send(host, messages.MessageTypeClientPlaceMine, "", &messages.ClientPlaceMine{RoomID: roomID, Shape: geometry.Footprint{{1}}, Row: 4, Col: 4})
	h.tick()
	h.persist()

	h.clock.t = h.clock.t.Add(time.Hour)
	h.tick()
	assert.True(t, h.registry.Resident(roomID), "occupied rooms stay resident")

	h.disconnect(host)
	h.tick()
	assert.True(t, h.registry.Resident(roomID), "the ttl starts when the last member leaves")

	h.clock.t = h.clock.t.Add(31 * time.Minute)
	h.tick()
	assert.False(t, h.registry.Resident(roomID))

	again := h.connect()
	h.send(again, messages.MessageTypeClientJoinRoom, "", &messages.ClientJoinRoom{RoomID: roomID, ParticipantID: "host-1"})
	sync := requireOne(t, h.tick(), messages.MessageTypeServerGameStateSync)
	session := sync.Message.(*types.Session)
	assert.Equal(t, 2, session.MineIDCounter)
	assert.Len(t, session.Mines, 2)

	h.send(again, messages.MessageTypeClientPlaceMine, "", &messages.ClientPlaceMine{RoomID: roomID, Shape: geometry.Footprint{{1}}, Row: 2, Col: 2})
	updated := requireOne(t, h.tick(), messages.MessageTypeServerMinesUpdated)
	mines := updated.Message.(*messages.ServerMinesUpdated).PlacedMines
	assert.Equal(t, 2, mines[len(mines)-1].ID)
}

func TestGameManager_SnapshotNeverBlocks(t *testing.T) {
	h := newHarness(t, func(opts *NewGameManagerOptions) {
		opts.SaveSessionChan = make(chan workers.SaveSessionRequest)
	})
	host := h.connect()
	h.send(host, messages.MessageTypeClientCreateRoom, "", &messages.ClientCreateRoom{ParticipantID: "host-1"})

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.gm.gameTick(context.Background(), h.clock.Now())
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("game tick blocked on a full save queue")
	}
	requireOne(t, []workers.ServerMessage{<-h.out}, messages.MessageTypeServerRoomCreated)
}

func TestGameManager_SendNeverBlocks(t *testing.T) {
	h := newHarness(t, func(opts *NewGameManagerOptions) {
		opts.ServerMessageChan = make(chan workers.ServerMessage)
	})
	host := h.connect()
	h.send(host, messages.MessageTypeClientCreateRoom, "", &messages.ClientCreateRoom{ParticipantID: "host-1"})

	done := make(chan struct{})
	go func() {
		defer close(done)
		h.gm.gameTick(context.Background(), h.clock.Now())
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("game tick blocked on a stalled server message queue")
	}
	assert.Equal(t, 1, h.registry.Len())
}
