package websocket

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/morpiondev/morpion-backend/internal/protocol"
	"github.com/morpiondev/morpion-backend/internal/session"
)

const shutdownTimeout = 5 * time.Second

// Server bridges browser clients into the same session broker the TCP
// clients use. Commands travel as JSON websocket messages; the websocket
// layer already frames them, so the length prefix of the TCP protocol is
// not repeated here.
type Server struct {
	logger   *slog.Logger
	broker   *session.Broker
	upgrader websocket.Upgrader
}

func New(logger *slog.Logger, broker *session.Broker) *Server {
	return &Server{
		logger: logger.With("component", "ws-server"),
		broker: broker,
		upgrader: websocket.Upgrader{
			// Demo-grade single-room server, any origin may join.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// Start serves the websocket endpoint until ctx is canceled.
func (that *Server) Start(ctx context.Context, port string) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", that.handleUpgrade)

	srv := &http.Server{
		Addr:        ":" + port,
		Handler:     mux,
		IdleTimeout: 30 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			that.logger.Warn("failed to shut down websocket server", "error", err)
		}
	}()

	that.logger.Info("listening for websocket clients", "port", port)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("failed to start websocket server: %w", err)
	}

	return nil
}

func (that *Server) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	wsConn, err := that.upgrader.Upgrade(w, r, nil)
	if err != nil {
		that.logger.Error("failed to upgrade connection", "error", err)
		return
	}

	client := newConn(wsConn)
	clientID := that.broker.Register(client)

	log := that.logger.With("client_id", clientID, "remote_addr", r.RemoteAddr)
	log.Info("websocket connection established")

	defer that.broker.Disconnect(clientID)

	for {
		var cmd protocol.Command
		if err = wsConn.ReadJSON(&cmd); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Info("client closed the connection")
			} else {
				log.Warn("read failed, dropping connection", "error", err)
			}
			return
		}

		if err = cmd.Validate(); err != nil {
			log.Warn("undecodable message, dropping connection", "error", err)
			return
		}

		that.broker.ProcessCommand(clientID, &cmd)
	}
}
