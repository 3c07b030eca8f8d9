package apperror

import "errors"

var (
	ErrGameNotInProgress = errors.New("game is not in progress")
	ErrNotYourTurn       = errors.New("it's not your turn")
	ErrInvalidCell       = errors.New("invalid cell coordinates")
	ErrCellOccupied      = errors.New("cell is already occupied")
	ErrSessionFull       = errors.New("session is already full")
)
