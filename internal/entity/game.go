package entity

import (
	"github.com/morpiondev/morpion-backend/internal/apperror"
)

const (
	StatusWaitingForPlayers = "waiting_for_players"
	StatusInProgress        = "in_progress"
	StatusPlayer1Won        = "player1_won"
	StatusPlayer2Won        = "player2_won"
	StatusDraw              = "draw"
)

const (
	EmptyCell = 0
	PlayerOne = 1
	PlayerTwo = 2
)

const boardSize = 3

// Game is the authoritative state of one morpion session: the board,
// whose turn it is and which connection owns which player slot.
// It performs no I/O; the session broker is its single owner.
type Game struct {
	Board         [3][3]int `json:"board"`
	CurrentPlayer int       `json:"current_player"`
	Status        string    `json:"status"`
	Player1ID     string    `json:"player1_id,omitempty"`
	Player2ID     string    `json:"player2_id,omitempty"`
}

func NewGame() *Game {
	return &Game{
		CurrentPlayer: PlayerOne,
		Status:        StatusWaitingForPlayers,
	}
}

// MakeMove places the current player's mark at (row, col). The move is
// rejected without mutation when the game is not in progress, when the
// requester does not own the current turn, when the coordinates are out of
// range or when the cell is occupied. After an accepted move the turn flips
// unless the move ended the game.
func (that *Game) MakeMove(row, col int, playerID string) error {
	if that.Status != StatusInProgress {
		return apperror.ErrGameNotInProgress
	}

	if (that.CurrentPlayer == PlayerOne && playerID != that.Player1ID) ||
		(that.CurrentPlayer == PlayerTwo && playerID != that.Player2ID) {
		return apperror.ErrNotYourTurn
	}

	if row < 0 || row >= boardSize || col < 0 || col >= boardSize {
		return apperror.ErrInvalidCell
	}

	if that.Board[row][col] != EmptyCell {
		return apperror.ErrCellOccupied
	}

	that.Board[row][col] = that.CurrentPlayer

	that.updateStatus()

	if that.Status == StatusInProgress {
		that.CurrentPlayer = that.nextPlayer()
	}

	return nil
}

// updateStatus runs win/draw detection. The check order is fixed: rows,
// columns, main diagonal, anti-diagonal, then the full-board draw check.
func (that *Game) updateStatus() {
	for i := 0; i < boardSize; i++ {
		if that.Board[i][0] != EmptyCell && that.Board[i][0] == that.Board[i][1] && that.Board[i][1] == that.Board[i][2] {
			that.Status = winStatus(that.Board[i][0])
			return
		}
	}

	for i := 0; i < boardSize; i++ {
		if that.Board[0][i] != EmptyCell && that.Board[0][i] == that.Board[1][i] && that.Board[1][i] == that.Board[2][i] {
			that.Status = winStatus(that.Board[0][i])
			return
		}
	}

	if that.Board[0][0] != EmptyCell && that.Board[0][0] == that.Board[1][1] && that.Board[1][1] == that.Board[2][2] {
		that.Status = winStatus(that.Board[0][0])
		return
	}

	if that.Board[0][2] != EmptyCell && that.Board[0][2] == that.Board[1][1] && that.Board[1][1] == that.Board[2][0] {
		that.Status = winStatus(that.Board[0][2])
		return
	}

	for i := 0; i < boardSize; i++ {
		for j := 0; j < boardSize; j++ {
			if that.Board[i][j] == EmptyCell {
				return
			}
		}
	}

	that.Status = StatusDraw
}

func winStatus(mark int) string {
	if mark == PlayerOne {
		return StatusPlayer1Won
	}
	return StatusPlayer2Won
}

func (that *Game) nextPlayer() int {
	if that.CurrentPlayer == PlayerOne {
		return PlayerTwo
	}
	return PlayerOne
}

// ResetGame clears the board and restarts from player one. The status is
// re-derived from slot occupancy alone.
func (that *Game) ResetGame() {
	that.Board = [3][3]int{}
	that.CurrentPlayer = PlayerOne

	if that.Player1ID != "" && that.Player2ID != "" {
		that.Status = StatusInProgress
	} else {
		that.Status = StatusWaitingForPlayers
	}
}

// BindPlayer assigns the first free slot to the given connection, slot 1
// first. Binding the second slot starts the game.
func (that *Game) BindPlayer(id, name string) (*Player, error) {
	var number int

	switch {
	case that.Player1ID == "":
		that.Player1ID = id
		number = PlayerOne
	case that.Player2ID == "":
		that.Player2ID = id
		number = PlayerTwo
	default:
		return nil, apperror.ErrSessionFull
	}

	if that.Player1ID != "" && that.Player2ID != "" && that.Status == StatusWaitingForPlayers {
		that.Status = StatusInProgress
	}

	return &Player{ID: id, Name: name, Number: number}, nil
}

// PlayerDisconnected frees the slot bound to id. A game in progress drops
// back to waiting; the board is kept so a reconnect resumes the same game.
func (that *Game) PlayerDisconnected(id string) {
	switch id {
	case that.Player1ID:
		that.Player1ID = ""
	case that.Player2ID:
		that.Player2ID = ""
	}

	if that.Status == StatusInProgress {
		that.Status = StatusWaitingForPlayers
	}
}

// Snapshot returns a value copy safe to hand to other goroutines.
func (that *Game) Snapshot() Game {
	return *that
}

func (that *Game) IsInProgress() bool {
	return that.Status == StatusInProgress
}

func (that *Game) IsWaiting() bool {
	return that.Status == StatusWaitingForPlayers
}

func (that *Game) IsFinished() bool {
	return that.Status == StatusPlayer1Won || that.Status == StatusPlayer2Won || that.Status == StatusDraw
}

// Winner reports the winning player number, or 0 for a draw or an
// unfinished game.
func (that *Game) Winner() int {
	switch that.Status {
	case StatusPlayer1Won:
		return PlayerOne
	case StatusPlayer2Won:
		return PlayerTwo
	default:
		return 0
	}
}
