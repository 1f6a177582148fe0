package types

import "errors"

var (
	// ErrConnectivity marks transport failures talking to a venue.
	ErrConnectivity = errors.New("exchange connectivity")
	// ErrRejected marks an API-level rejection from a venue.
	ErrRejected = errors.New("exchange rejected request")

	ErrInsufficientData = errors.New("insufficient market data")
	ErrOrderFailed      = errors.New("order failed")
	// ErrProtectionFailed means the position is open but TP/SL could not be attached.
	ErrProtectionFailed = errors.New("protective orders failed")
)
