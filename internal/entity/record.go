package entity

import "time"

// GameRecord is an archived finished game. Records are raw outcomes; no
// aggregate statistics are derived from them.
type GameRecord struct {
	ID         string    `json:"id"`
	Board      [3][3]int `json:"board"`
	Status     string    `json:"status"`
	Winner     int       `json:"winner"`
	Player1    Player    `json:"player1"`
	Player2    Player    `json:"player2"`
	FinishedAt time.Time `json:"finished_at"`
}
