package types

import (
	"bytes"
	"encoding/json"

	"github.com/cbodonnell/minegrid/pkg/geometry"
)

// Phase is the phase of a game session.
type Phase string

const (
	PhaseSetup    Phase = "SETUP"
	PhasePlay     Phase = "PLAY"
	PhaseGameOver Phase = "GAMEOVER"
)

// Outcome is the result of a defender placement.
type Outcome string

const (
	OutcomeHit  Outcome = "HIT"
	OutcomeSafe Outcome = "SAFE"
)

// Shape is an inventory piece. Attacker pieces are bare footprints; defender pieces
// may carry an image asset with its intrinsic size.
type Shape struct {
	InstanceID string             `json:"instanceId,omitempty"`
	Footprint  geometry.Footprint `json:"shape"`
	Src        string             `json:"src,omitempty"`
	Width      int                `json:"width,omitempty"`
	Height     int                `json:"height,omitempty"`
	Rotation   int                `json:"rotation,omitempty"`
}

// UnmarshalJSON also accepts a bare footprint matrix in place of a shape object.
func (s *Shape) UnmarshalJSON(data []byte) error {
	if trimmed := bytes.TrimSpace(data); len(trimmed) > 0 && trimmed[0] == '[' {
		var fp geometry.Footprint
		if err := json.Unmarshal(trimmed, &fp); err != nil {
			return err
		}
		*s = Shape{Footprint: fp}
		return nil
	}
	type shape Shape
	var decoded shape
	if err := json.Unmarshal(data, &decoded); err != nil {
		return err
	}
	*s = Shape(decoded)
	return nil
}

func (s Shape) Copy() Shape {
	s.Footprint = s.Footprint.Copy()
	return s
}

// structurallyEqual compares everything but the instance id.
func (s Shape) structurallyEqual(other Shape) bool {
	return s.Src == other.Src &&
		s.Width == other.Width &&
		s.Height == other.Height &&
		s.Rotation == other.Rotation &&
		s.Footprint.Equal(other.Footprint)
}

// Mine is a placed attacker shape.
type Mine struct {
	ID        int                `json:"id"`
	Footprint geometry.Footprint `json:"shape"`
	Row       int                `json:"row"`
	Col       int                `json:"col"`
}

// Cells returns the absolute cells covered by the mine.
func (m Mine) Cells() []geometry.Cell {
	return geometry.Occupied(m.Footprint, m.Row, m.Col)
}

func (m Mine) Copy() Mine {
	m.Footprint = m.Footprint.Copy()
	return m
}

// Decoration is a safely placed, image-backed defender shape.
type Decoration struct {
	ID       string `json:"id"`
	Src      string `json:"src"`
	Row      int    `json:"row"`
	Col      int    `json:"col"`
	Width    int    `json:"width,omitempty"`
	Height   int    `json:"height,omitempty"`
	Rotation int    `json:"rotation"`
}

// Session is the canonical state of one room.
type Session struct {
	RoomID            string        `json:"roomId"`
	HostID            string        `json:"hostId"`
	GuestID           string        `json:"guestId,omitempty"`
	Phase             Phase         `json:"phase"`
	Grid              geometry.Grid `json:"grid"`
	AttackerInventory []Shape       `json:"attackerInventory"`
	DefenderInventory []Shape       `json:"defenderInventory"`
	Mines             []Mine        `json:"placedMines"`
	Decorations       []Decoration  `json:"decorations"`
	MineIDCounter     int           `json:"mineIdCounter"`
	Winner            string        `json:"winner,omitempty"`
	// CreatedAt and UpdatedAt are unix milliseconds
	CreatedAt int64 `json:"createdAt"`
	UpdatedAt int64 `json:"updatedAt"`
}

// NewSession creates a session in SETUP with an empty grid.
func NewSession(roomID string, hostID string, rows, cols int, attackerShapes []Shape) *Session {
	return &Session{
		RoomID:            roomID,
		HostID:            hostID,
		Phase:             PhaseSetup,
		Grid:              geometry.NewGrid(rows, cols),
		AttackerInventory: attackerShapes,
		DefenderInventory: []Shape{},
		Mines:             []Mine{},
		Decorations:       []Decoration{},
	}
}

func (s *Session) Rows() int {
	return s.Grid.Rows()
}

func (s *Session) Cols() int {
	return s.Grid.Cols()
}

// Copy returns a deep copy of the session, safe to hand to another goroutine.
func (s *Session) Copy() *Session {
	c := *s
	c.Grid = s.Grid.Copy()
	c.AttackerInventory = copyShapes(s.AttackerInventory)
	c.DefenderInventory = copyShapes(s.DefenderInventory)
	c.Mines = make([]Mine, len(s.Mines))
	for i, m := range s.Mines {
		c.Mines[i] = m.Copy()
	}
	c.Decorations = append([]Decoration{}, s.Decorations...)
	return &c
}

func copyShapes(shapes []Shape) []Shape {
	out := make([]Shape, len(shapes))
	for i, s := range shapes {
		out[i] = s.Copy()
	}
	return out
}

// NextMineID returns max(existing mine ids) + 1, or 0 without mines.
func NextMineID(mines []Mine) int {
	next := 0
	for _, m := range mines {
		if m.ID+1 > next {
			next = m.ID + 1
		}
	}
	return next
}

// MineCells returns the distinct cells covered by any mine.
func (s *Session) MineCells() geometry.CellSet {
	set := geometry.NewCellSet()
	for _, m := range s.Mines {
		set.Add(m.Cells()...)
	}
	return set
}

// rebuildGrid resets the grid and stamps every mine cell as MINE.
func (s *Session) rebuildGrid() {
	s.Grid = geometry.NewGrid(s.Rows(), s.Cols())
	for _, m := range s.Mines {
		s.Grid.Set(m.Cells(), geometry.CellMine)
	}
}

// HasParticipant reports whether the id is bound to the host or guest slot.
func (s *Session) HasParticipant(participantID string) bool {
	return participantID != "" && (s.HostID == participantID || s.GuestID == participantID)
}
