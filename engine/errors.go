package engine

import "errors"

var (
	ErrBettingClosed = errors.New("betting window closed")
	ErrNotFlying     = errors.New("round is not flying")
	ErrRoundMismatch = errors.New("round id does not match the live round")
	ErrUnknownAction = errors.New("unknown admin action")
	ErrInvalidValue  = errors.New("invalid command value")
	ErrInvalidBet    = errors.New("invalid bet")
)
