package messages

import (
	"encoding/json"

	"github.com/cbodonnell/minegrid/pkg/game/types"
	"github.com/cbodonnell/minegrid/pkg/geometry"
)

const (
	// MessageBufferSize represents the maximum size of an inbound frame
	MessageBufferSize = 64 * 1024
)

// MessageType is the event name carried in the envelope
type MessageType string

// Client message types
const (
	MessageTypeClientCreateRoom   MessageType = "create-room"
	MessageTypeClientJoinRoom     MessageType = "join-room"
	MessageTypeClientResizeBoard  MessageType = "resize-board"
	MessageTypeClientStartGame    MessageType = "start-game"
	MessageTypeClientPlaceMine    MessageType = "place-mine"
	MessageTypeClientPlaceShape   MessageType = "place-shape"
	MessageTypeClientGiveShape    MessageType = "give-shape"
	MessageTypeClientPreviewShape MessageType = "preview-shape"
)

// Server message types
const (
	MessageTypeServerRoomCreated     MessageType = "room-created"
	MessageTypeServerJoinResult      MessageType = "join-result"
	MessageTypeServerPlayerJoined    MessageType = "player-joined"
	MessageTypeServerGameStateSync   MessageType = "game-state-sync"
	MessageTypeServerGameStarted     MessageType = "game-started"
	MessageTypeServerMinesUpdated    MessageType = "mines-updated"
	MessageTypeServerBoardUpdated    MessageType = "board-updated"
	MessageTypeServerShapesUpdated   MessageType = "shapes-updated"
	MessageTypeServerBoardResized    MessageType = "board-resized"
	MessageTypeServerActionFailed    MessageType = "action-failed"
	MessageTypeServerOpponentPreview MessageType = "opponent-preview"
)

// Message is the envelope of every frame.
type Message struct {
	// ClientID is set by the server from the connection the frame arrived on
	ClientID  uint32          `json:"-"`
	Type      MessageType     `json:"type"`
	RequestID string          `json:"requestId,omitempty"`
	Payload   json.RawMessage `json:"payload,omitempty"`
}

type ClientCreateRoom struct {
	ParticipantID string `json:"participantId"`
	Rows          int    `json:"rows,omitempty"`
	Cols          int    `json:"cols,omitempty"`
}

type ClientJoinRoom struct {
	RoomID        string `json:"roomId"`
	ParticipantID string `json:"participantId"`
}

type ClientResizeBoard struct {
	RoomID string `json:"roomId"`
	Rows   int    `json:"rows"`
	Cols   int    `json:"cols"`
}

type ClientStartGame struct {
	RoomID      string       `json:"roomId"`
	PlacedMines []types.Mine `json:"placedMines"`
	HostID      string       `json:"hostId"`
}

type ClientPlaceMine struct {
	RoomID     string             `json:"roomId"`
	Shape      geometry.Footprint `json:"shape"`
	Row        int                `json:"row"`
	Col        int                `json:"col"`
	IsMove     bool               `json:"isMove,omitempty"`
	MineID     *int               `json:"mineId,omitempty"`
	InstanceID string             `json:"instanceId,omitempty"`
}

type ClientPlaceShape struct {
	RoomID string      `json:"roomId"`
	Shape  types.Shape `json:"shape"`
	Row    int         `json:"row"`
	Col    int         `json:"col"`
}

type ClientGiveShape struct {
	RoomID string      `json:"roomId"`
	Shape  types.Shape `json:"shape"`
}

type ClientPreviewShape struct {
	RoomID       string          `json:"roomId"`
	PreviewCells []geometry.Cell `json:"previewCells"`
}

type ServerRoomCreated struct {
	RoomID  string         `json:"roomId"`
	Session *types.Session `json:"session"`
}

type ServerJoinResult struct {
	Success bool   `json:"success"`
	Error   string `json:"error,omitempty"`
}

type ServerPlayerJoined struct {
	ParticipantID string `json:"participantId"`
}

type ServerGameStarted struct {
	PlacedMines       []types.Mine  `json:"placedMines"`
	DefenderInventory []types.Shape `json:"defenderInventory"`
	HostID            string        `json:"hostId"`
}

type ServerMinesUpdated struct {
	PlacedMines       []types.Mine  `json:"placedMines"`
	Grid              geometry.Grid `json:"grid"`
	AttackerInventory []types.Shape `json:"attackerInventory"`
}

type ServerBoardUpdated struct {
	Grid              geometry.Grid      `json:"grid"`
	DefenderInventory []types.Shape      `json:"defenderInventory"`
	Decorations       []types.Decoration `json:"decorations"`
	Outcome           types.Outcome      `json:"outcome"`
	Phase             types.Phase        `json:"phase"`
	Winner            string             `json:"winner,omitempty"`
}

type ServerShapesUpdated struct {
	DefenderInventory []types.Shape `json:"defenderInventory"`
}

type ServerBoardResized struct {
	Grid              geometry.Grid `json:"grid"`
	PlacedMines       []types.Mine  `json:"placedMines"`
	AttackerInventory []types.Shape `json:"attackerInventory"`
}

type ServerActionFailed struct {
	Message string `json:"message"`
}

type ServerOpponentPreview struct {
	PreviewCells []geometry.Cell `json:"previewCells"`
}
