package game

import "errors"

var (
	// ErrEntropy means no seed could be drawn; the round falls back to the
	// minimum crash multiplier.
	ErrEntropy = errors.New("crash point entropy unavailable")
	// ErrInvalidSettings means the settings snapshot could not drive the
	// generator; the round falls back to the minimum crash multiplier.
	ErrInvalidSettings = errors.New("invalid engine settings")
	ErrMalformedSeed   = errors.New("malformed server seed")

	// ErrAlreadySettled is returned by a ledger when the ticket was already
	// cashed out or lost. It is never fatal for the caller.
	ErrAlreadySettled    = errors.New("ticket already settled")
	ErrTicketNotFound    = errors.New("ticket not found")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrWalletNotFound    = errors.New("wallet not found")
)
