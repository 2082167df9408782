package game

import "errors"

var (
	// ErrIntegrity means the tracked round state no longer matches the
	// server, e.g. a tile the server says we discarded is not in our hand.
	ErrIntegrity = errors.New("round state out of sync")

	// ErrDecode is returned for melds and kans whose tile groups cannot be
	// classified.
	ErrDecode = errors.New("cannot decode game message")

	// ErrModeDetection is returned when the player list is neither three nor
	// four players long.
	ErrModeDetection = errors.New("cannot detect game mode")
)
