package engine

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrInvalidActor  = errors.New("invalid actor")
	ErrInvalidCard   = errors.New("invalid card")
	ErrInvalidTarget = errors.New("invalid target")
	ErrGameOver      = errors.New("game over")
	ErrInvalidSetup  = errors.New("invalid setup")

	// ErrInteractionPending is returned when someone acts while another interaction is open.
	ErrInteractionPending = fmt.Errorf("%w: interaction pending", ErrInvalidActor)
	ErrNoInteraction      = fmt.Errorf("%w: no matching interaction pending", ErrInvalidActor)
)
