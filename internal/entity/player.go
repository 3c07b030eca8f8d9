package entity

// Player identifies one connected participant and the slot the server
// assigned to it.
type Player struct {
	ID     string `json:"id"`
	Name   string `json:"name,omitempty"`
	Number int    `json:"number,omitempty"`
}
