package service

import (
	"errors"
	"math/rand"

	"github.com/morpiondev/morpion-backend/internal/entity"
)

var ErrNoAvailableMoves = errors.New("no available moves")

// lines are the 8 winning lines: 3 rows, 3 columns, 2 diagonals.
var lines = [8][3][2]int{
	{{0, 0}, {0, 1}, {0, 2}},
	{{1, 0}, {1, 1}, {1, 2}},
	{{2, 0}, {2, 1}, {2, 2}},
	{{0, 0}, {1, 0}, {2, 0}},
	{{0, 1}, {1, 1}, {2, 1}},
	{{0, 2}, {1, 2}, {2, 2}},
	{{0, 0}, {1, 1}, {2, 2}},
	{{0, 2}, {1, 1}, {2, 0}},
}

var (
	corners = [4][2]int{{0, 0}, {0, 2}, {2, 0}, {2, 2}}
	sides   = [4][2]int{{0, 1}, {1, 0}, {1, 2}, {2, 1}}
)

// BotService picks moves for the local single-player mode. It consumes a
// read-only board snapshot and never touches the networked protocol.
type BotService interface {
	ChooseMove(game entity.Game, player int) (row, col int, err error)
}

type botService struct{}

func NewBotService() BotService {
	return &botService{}
}

// ChooseMove applies the heuristic in fixed priority order: win in one,
// block the opponent's win in one, take the center, take a random free
// corner, take a random free side.
func (that *botService) ChooseMove(game entity.Game, player int) (int, int, error) {
	opponent := entity.PlayerOne
	if player == entity.PlayerOne {
		opponent = entity.PlayerTwo
	}

	if cell, ok := findWinningCell(game.Board, player); ok {
		return cell[0], cell[1], nil
	}

	if cell, ok := findWinningCell(game.Board, opponent); ok {
		return cell[0], cell[1], nil
	}

	if game.Board[1][1] == entity.EmptyCell {
		return 1, 1, nil
	}

	if cell, ok := pickFreeCell(game.Board, corners[:]); ok {
		return cell[0], cell[1], nil
	}

	if cell, ok := pickFreeCell(game.Board, sides[:]); ok {
		return cell[0], cell[1], nil
	}

	return 0, 0, ErrNoAvailableMoves
}

// findWinningCell returns the empty cell completing a line where player
// already holds the other two, if one exists.
func findWinningCell(board [3][3]int, player int) ([2]int, bool) {
	for _, line := range lines {
		count := 0
		empty := [2]int{-1, -1}

		for _, cell := range line {
			switch board[cell[0]][cell[1]] {
			case player:
				count++
			case entity.EmptyCell:
				empty = cell
			}
		}

		if count == 2 && empty[0] != -1 {
			return empty, true
		}
	}

	return [2]int{}, false
}

func pickFreeCell(board [3][3]int, candidates [][2]int) ([2]int, bool) {
	free := make([][2]int, 0, len(candidates))
	for _, cell := range candidates {
		if board[cell[0]][cell[1]] == entity.EmptyCell {
			free = append(free, cell)
		}
	}

	if len(free) == 0 {
		return [2]int{}, false
	}

	return free[rand.Intn(len(free))], true //nolint: gosec // it's ok
}
