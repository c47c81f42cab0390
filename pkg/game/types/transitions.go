package types

import (
	"fmt"

	"github.com/cbodonnell/minegrid/pkg/geometry"
	"github.com/google/uuid"
)

// ResizeBoard resets the board to the clamped dimensions and restores the attacker
// inventory. Only legal during SETUP. The mine-id counter is kept so ids are never reused.
func (s *Session) ResizeBoard(rows, cols int, attackerShapes []Shape) error {
	if s.Phase != PhaseSetup {
		return &ErrPhase{Phase: s.Phase, Action: "resize the board"}
	}

	s.Grid = geometry.NewGrid(geometry.ClampBoardSize(rows), geometry.ClampBoardSize(cols))
	s.Mines = []Mine{}
	s.Decorations = []Decoration{}
	s.AttackerInventory = attackerShapes
	return nil
}

// PlaceMineRequest describes a new mine placement or a move of an existing mine.
type PlaceMineRequest struct {
	ActorID   string
	Footprint geometry.Footprint
	Row       int
	Col       int
	// InstanceID selects the attacker inventory entry to consume; when empty the first
	// structurally equal entry is used.
	InstanceID string
	IsMove     bool
	MineID     *int
}

// PlaceMine validates and applies a mine placement, returning the placed mine.
func (s *Session) PlaceMine(req PlaceMineRequest) (Mine, error) {
	if s.Phase != PhaseSetup {
		return Mine{}, &ErrPhase{Phase: s.Phase, Action: "place a mine"}
	}
	if req.ActorID != s.HostID {
		return Mine{}, &ErrAuthorization{ParticipantID: req.ActorID, Action: "place a mine"}
	}
	isMove := req.IsMove && req.MineID != nil

	occupied := geometry.NewCellSet()
	for _, m := range s.Mines {
		if isMove && m.ID == *req.MineID {
			continue
		}
		occupied.Add(m.Cells()...)
	}
	cells := geometry.Occupied(req.Footprint, req.Row, req.Col)
	if err := geometry.ValidateMinePlacement(cells, s.Rows(), s.Cols(), occupied); err != nil {
		return Mine{}, &ErrValidation{Reason: err.Error()}
	}

	var id int
	if isMove {
		id = *req.MineID
		s.removeMine(id)
		if id >= s.MineIDCounter {
			s.MineIDCounter = id + 1
		}
	} else {
		s.consumeAttackerShape(req.InstanceID, req.Footprint)
		id = s.MineIDCounter
		s.MineIDCounter++
	}

	mine := Mine{ID: id, Footprint: req.Footprint.Copy(), Row: req.Row, Col: req.Col}
	s.Mines = append(s.Mines, mine)
	s.rebuildGrid()
	return mine, nil
}

func (s *Session) removeMine(id int) {
	kept := s.Mines[:0]
	for _, m := range s.Mines {
		if m.ID != id {
			kept = append(kept, m)
		}
	}
	s.Mines = kept
}

func (s *Session) consumeAttackerShape(instanceID string, footprint geometry.Footprint) {
	index := -1
	for i, shape := range s.AttackerInventory {
		if instanceID != "" {
			if shape.InstanceID == instanceID {
				index = i
				break
			}
			continue
		}
		if shape.Footprint.Equal(footprint) {
			index = i
			break
		}
	}
	if index == -1 {
		return
	}
	s.AttackerInventory = append(s.AttackerInventory[:index], s.AttackerInventory[index+1:]...)
}

// StartGame stores the final mine list and moves the session to PLAY.
func (s *Session) StartGame(mines []Mine, initiatorID string) error {
	if initiatorID != s.HostID {
		return &ErrAuthorization{ParticipantID: initiatorID, Action: "start the game"}
	}
	if s.Phase != PhaseSetup {
		return &ErrPhase{Phase: s.Phase, Action: "start the game"}
	}

	occupied := geometry.NewCellSet()
	ids := make(map[int]struct{}, len(mines))
	for _, m := range mines {
		if _, ok := ids[m.ID]; ok {
			return &ErrValidation{Reason: fmt.Sprintf("duplicate mine id %d", m.ID)}
		}
		ids[m.ID] = struct{}{}
		cells := m.Cells()
		if err := geometry.ValidateMinePlacement(cells, s.Rows(), s.Cols(), occupied); err != nil {
			return &ErrValidation{Reason: fmt.Sprintf("mine %d: %v", m.ID, err)}
		}
		occupied.Add(cells...)
	}

	s.Mines = make([]Mine, len(mines))
	for i, m := range mines {
		s.Mines[i] = m.Copy()
	}
	s.MineIDCounter = max(s.MineIDCounter, NextMineID(s.Mines))
	s.rebuildGrid()
	s.DefenderInventory = []Shape{}
	s.Phase = PhasePlay
	return nil
}

// GiveShape appends a copy of shape to the defender inventory under a fresh instance id.
func (s *Session) GiveShape(shape Shape, initiatorID string) (Shape, error) {
	if initiatorID != s.HostID {
		return Shape{}, &ErrAuthorization{ParticipantID: initiatorID, Action: "give a shape"}
	}
	if s.Phase != PhasePlay {
		return Shape{}, &ErrPhase{Phase: s.Phase, Action: "give a shape"}
	}
	if shape.Footprint.Area() == 0 {
		return Shape{}, &ErrValidation{Reason: "shape has no cells"}
	}

	given := shape.Copy()
	given.InstanceID = uuid.NewString()
	s.DefenderInventory = append(s.DefenderInventory, given)
	return given, nil
}

// PlaceShapeResult is the outcome of a defender placement.
type PlaceShapeResult struct {
	Outcome Outcome
	// MineID is set when the outcome is a hit
	MineID *int
	// Decoration is set when a safe placement carried an asset
	Decoration *Decoration
}

// PlaceShape validates and applies a defender placement.
func (s *Session) PlaceShape(shape Shape, row, col int, actorID string) (PlaceShapeResult, error) {
	if s.Phase != PhasePlay {
		return PlaceShapeResult{}, &ErrPhase{Phase: s.Phase, Action: "place a shape"}
	}
	if s.GuestID == "" || actorID != s.GuestID {
		return PlaceShapeResult{}, &ErrAuthorization{ParticipantID: actorID, Action: "place a shape"}
	}

	cells := geometry.Occupied(shape.Footprint, row, col)
	if err := geometry.ValidateShapePlacement(cells, s.Grid); err != nil {
		return PlaceShapeResult{}, &ErrValidation{Reason: err.Error()}
	}

	s.consumeDefenderShape(shape)

	result := PlaceShapeResult{Outcome: OutcomeSafe}
	if mine, ok := s.firstMineHit(cells); ok {
		id := mine.ID
		result.Outcome = OutcomeHit
		result.MineID = &id
		s.Grid.Set(mine.Cells(), geometry.CellExploded)
	} else {
		s.Grid.Set(cells, geometry.CellFilled)
		if shape.Src != "" {
			decoration := Decoration{
				ID:       uuid.NewString(),
				Src:      shape.Src,
				Row:      row,
				Col:      col,
				Width:    shape.Width,
				Height:   shape.Height,
				Rotation: shape.Rotation,
			}
			s.Decorations = append(s.Decorations, decoration)
			result.Decoration = &decoration
		}
	}

	if s.Grid.Count(geometry.CellFilled) >= s.Grid.Total()-len(s.MineCells()) {
		s.Phase = PhaseGameOver
		s.Winner = s.GuestID
	}

	return result, nil
}

// firstMineHit scans the placement cells in order and returns the first mine covering one.
func (s *Session) firstMineHit(cells []geometry.Cell) (Mine, bool) {
	mineCells := make([]geometry.CellSet, len(s.Mines))
	for i, m := range s.Mines {
		mineCells[i] = geometry.NewCellSet(m.Cells()...)
	}
	for _, c := range cells {
		for i, m := range s.Mines {
			if mineCells[i].Contains(c) {
				return m, true
			}
		}
	}
	return Mine{}, false
}

func (s *Session) consumeDefenderShape(shape Shape) {
	index := -1
	for i, candidate := range s.DefenderInventory {
		if shape.InstanceID != "" && candidate.InstanceID != "" {
			if candidate.InstanceID == shape.InstanceID {
				index = i
				break
			}
			continue
		}
		if candidate.structurallyEqual(shape) {
			index = i
			break
		}
	}
	if index == -1 {
		return
	}
	s.DefenderInventory = append(s.DefenderInventory[:index], s.DefenderInventory[index+1:]...)
}
