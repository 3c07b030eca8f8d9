package pkg

import "github.com/google/uuid"

// NewClientID generates the opaque identifier assigned to an accepted
// connection.
func NewClientID() string {
	return uuid.NewString()
}

// NewSessionID generates a unique identifier for a game session.
func NewSessionID() string {
	return uuid.NewString()
}
