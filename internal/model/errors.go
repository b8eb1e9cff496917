package model

import "errors"

var (
	// ErrNetwork wraps failures talking to the RPC node or the swap service.
	ErrNetwork = errors.New("network error")

	// ErrPositionNotFound is returned for burnt or unknown position ids.
	ErrPositionNotFound = errors.New("position not found")

	// ErrTxRejected is returned when a transaction is refused or reverts.
	ErrTxRejected = errors.New("transaction rejected")
)
