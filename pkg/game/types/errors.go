package types

import (
	"errors"
	"fmt"
)

// ErrValidation is returned for out-of-bounds, colliding or malformed actions.
type ErrValidation struct {
	Reason string
}

func (e *ErrValidation) Error() string {
	return fmt.Sprintf("invalid action: %s", e.Reason)
}

// ErrAuthorization is returned when a participant invokes an action of the other role.
type ErrAuthorization struct {
	ParticipantID string
	Action        string
}

func (e *ErrAuthorization) Error() string {
	return fmt.Sprintf("participant %q is not allowed to %s", e.ParticipantID, e.Action)
}

// ErrPhase is returned when an action is not legal in the current phase.
type ErrPhase struct {
	Phase  Phase
	Action string
}

func (e *ErrPhase) Error() string {
	return fmt.Sprintf("cannot %s during %s", e.Action, e.Phase)
}

// ErrNotFound is returned when a room is neither resident nor recoverable.
type ErrNotFound struct {
	RoomID string
}

func (e *ErrNotFound) Error() string {
	return "room not found"
}

// ErrCapacity is returned when a room is bound to two other participants.
type ErrCapacity struct {
	RoomID string
}

func (e *ErrCapacity) Error() string {
	return "room is full"
}

func IsValidation(err error) bool {
	var target *ErrValidation
	return errors.As(err, &target)
}

func IsAuthorization(err error) bool {
	var target *ErrAuthorization
	return errors.As(err, &target)
}

func IsPhase(err error) bool {
	var target *ErrPhase
	return errors.As(err, &target)
}

func IsNotFound(err error) bool {
	var target *ErrNotFound
	return errors.As(err, &target)
}

func IsCapacity(err error) bool {
	var target *ErrCapacity
	return errors.As(err, &target)
}
