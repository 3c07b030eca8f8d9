package rest

import (
	"encoding/json"
	"net/http"

	"github.com/morpiondev/morpion-backend/internal/entity"
)

// SessionMonitor exposes a read-only view of the running session.
type SessionMonitor interface {
	Snapshot() entity.Game
}

func pingHandler(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write([]byte("pong")); err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
}

// sessionHandler reports the current game state as JSON.
func sessionHandler(monitor SessionMonitor) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		snapshot := monitor.Snapshot()

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(snapshot); err != nil {
			http.Error(w, "Internal Server Error", http.StatusInternalServerError)
			return
		}
	}
}
