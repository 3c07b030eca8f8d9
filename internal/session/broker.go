package session

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/morpiondev/morpion-backend/internal/entity"
	"github.com/morpiondev/morpion-backend/internal/pkg"
	"github.com/morpiondev/morpion-backend/internal/protocol"
)

const archiveTimeout = 5 * time.Second

// Wire-level error messages surfaced to clients. Validation details stay in
// the server log; the client only needs to know the request was refused.
const (
	msgSessionFull   = "session full"
	msgInvalidMove   = "invalid move"
	msgInternalError = "internal server error"
)

// Conn is the broker's view of one connected client. Implementations own a
// per-connection write lock so frames never interleave on one socket.
type Conn interface {
	SendCommand(cmd *protocol.Command) error
	Close() error
}

type recordRepo interface {
	CreateOrUpdate(ctx context.Context, record *entity.GameRecord) error
}

// Broker is the single room of the server: it owns the game state and the
// registry of connected clients, and applies the command-processing rules.
// One mutex serializes every state mutation together with the decision of
// what to send, so a validate-mutate-broadcast sequence is atomic with
// respect to commands arriving on other connections.
type Broker struct {
	logger    *slog.Logger
	sessionID string

	mu      sync.Mutex
	game    *entity.Game
	clients map[string]Conn
	names   map[string]string

	archive recordRepo
}

// NewBroker creates an empty session. archive may be nil, which disables
// the finished-game archive.
func NewBroker(logger *slog.Logger, archive recordRepo) *Broker {
	sessionID := pkg.NewSessionID()

	logger = logger.With("component", "session", "session_id", sessionID)
	logger.Info("new game session created")

	return &Broker{
		logger:    logger,
		sessionID: sessionID,
		game:      entity.NewGame(),
		clients:   make(map[string]Conn),
		names:     make(map[string]string),
		archive:   archive,
	}
}

// Register adds an accepted connection to the session and returns the
// opaque client id its commands will be attributed to.
func (that *Broker) Register(conn Conn) string {
	clientID := pkg.NewClientID()

	that.mu.Lock()
	that.clients[clientID] = conn
	that.mu.Unlock()

	that.logger.Info("client registered", "client_id", clientID)

	return clientID
}

// ProcessCommand applies one inbound command. It is safe to call from any
// connection handler goroutine. Panics during processing are converted to
// an error response so one bad command cannot kill a handler.
func (that *Broker) ProcessCommand(clientID string, cmd *protocol.Command) {
	log := that.logger.With("client_id", clientID, "type", cmd.Type)

	defer func() {
		if r := recover(); r != nil {
			log.Error("panic while processing command", "panic", r)
			that.unicast(clientID, protocol.NewError(msgInternalError))
		}
	}()

	that.mu.Lock()
	defer that.mu.Unlock()

	switch cmd.Type {
	case protocol.TypeConnect:
		that.handleConnect(clientID, cmd)
	case protocol.TypeMove:
		that.handleMove(clientID, cmd)
	case protocol.TypeResetGame:
		that.handleReset(clientID)
	case protocol.TypeChatMessage:
		that.handleChat(clientID, cmd)
	case protocol.TypeDisconnect:
		that.disconnectLocked(clientID)
	default:
		log.Warn("unhandled command")
	}
}

// Disconnect tears a connection down as if it had sent an explicit
// disconnect. The transport calls it when a read fails. Calling it twice
// for the same client is a no-op.
func (that *Broker) Disconnect(clientID string) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.disconnectLocked(clientID)
}

// Snapshot returns a copy of the current game state.
func (that *Broker) Snapshot() entity.Game {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.game.Snapshot()
}

// Close disconnects every client and clears the registry.
func (that *Broker) Close() {
	that.mu.Lock()
	defer that.mu.Unlock()

	for clientID, conn := range that.clients {
		if err := conn.Close(); err != nil {
			that.logger.Warn("failed to close client connection", "client_id", clientID, "error", err)
		}
		delete(that.clients, clientID)
		delete(that.names, clientID)
	}

	that.logger.Info("session closed")
}

func (that *Broker) handleConnect(clientID string, cmd *protocol.Command) {
	log := that.logger.With("method", "handleConnect", "client_id", clientID)

	payload, err := cmd.ConnectPayload()
	if err != nil {
		log.Error("malformed connect payload", "error", err)
		that.unicastLocked(clientID, protocol.NewError(msgInternalError))
		return
	}

	player, err := that.game.BindPlayer(clientID, payload.PlayerName)
	if err != nil {
		log.Info("connect rejected, session full")
		that.unicastLocked(clientID, protocol.NewError(msgSessionFull))
		return
	}

	that.names[clientID] = payload.PlayerName

	that.unicastLocked(clientID, protocol.NewConnectAck(*player))
	that.broadcastLocked(protocol.NewGameState(that.game.Snapshot()))

	log.Info("player connected", "name", player.Name, "slot", player.Number)
}

func (that *Broker) handleMove(clientID string, cmd *protocol.Command) {
	log := that.logger.With("method", "handleMove", "client_id", clientID)

	payload, err := cmd.MovePayload()
	if err != nil {
		log.Error("malformed move payload", "error", err)
		that.unicastLocked(clientID, protocol.NewError(msgInvalidMove))
		return
	}

	if err = that.game.MakeMove(payload.Row, payload.Col, clientID); err != nil {
		log.Info("move rejected", "row", payload.Row, "col", payload.Col, "reason", err)
		that.unicastLocked(clientID, protocol.NewError(msgInvalidMove))
		return
	}

	that.broadcastLocked(protocol.NewGameState(that.game.Snapshot()))

	log.Info("move accepted", "row", payload.Row, "col", payload.Col)

	if that.game.IsFinished() {
		that.archiveGameLocked()
	}
}

func (that *Broker) handleReset(clientID string) {
	that.game.ResetGame()
	that.broadcastLocked(protocol.NewGameState(that.game.Snapshot()))

	that.logger.Info("game reset", "requested_by", clientID)
}

// handleChat re-broadcasts the message verbatim, sender included, so every
// client renders the same transcript. The message is re-stamped with the
// registered client id; the envelope's sender_id is never trusted.
func (that *Broker) handleChat(clientID string, cmd *protocol.Command) {
	payload, err := cmd.ChatPayload()
	if err != nil {
		that.logger.Error("malformed chat payload", "client_id", clientID, "error", err)
		return
	}

	that.broadcastLocked(protocol.NewChatMessage(clientID, payload.Text))

	that.logger.Info("chat message relayed", "sender_id", clientID)
}

func (that *Broker) disconnectLocked(clientID string) {
	conn, ok := that.clients[clientID]
	if !ok {
		return
	}

	delete(that.clients, clientID)
	delete(that.names, clientID)

	if err := conn.Close(); err != nil {
		that.logger.Warn("failed to close client connection", "client_id", clientID, "error", err)
	}

	that.game.PlayerDisconnected(clientID)
	that.broadcastLocked(protocol.NewGameState(that.game.Snapshot()))

	that.logger.Info("client disconnected", "client_id", clientID)
}

// broadcastLocked sends cmd to every registered connection. A failed send
// never aborts delivery to the others; the failing connection is torn down
// afterwards, which re-broadcasts the resulting state to the survivors.
func (that *Broker) broadcastLocked(cmd *protocol.Command) {
	var failed []string

	for clientID, conn := range that.clients {
		if err := conn.SendCommand(cmd); err != nil {
			that.logger.Warn("failed to send to client", "client_id", clientID, "error", err)
			failed = append(failed, clientID)
		}
	}

	// The registry shrinks on every pass, so this terminates.
	for _, clientID := range failed {
		that.disconnectLocked(clientID)
	}
}

func (that *Broker) unicastLocked(clientID string, cmd *protocol.Command) {
	conn, ok := that.clients[clientID]
	if !ok {
		that.logger.Warn("unicast to unknown client", "client_id", clientID)
		return
	}

	if err := conn.SendCommand(cmd); err != nil {
		that.logger.Warn("failed to send to client", "client_id", clientID, "error", err)
		that.disconnectLocked(clientID)
	}
}

func (that *Broker) unicast(clientID string, cmd *protocol.Command) {
	that.mu.Lock()
	defer that.mu.Unlock()

	that.unicastLocked(clientID, cmd)
}

// archiveGameLocked stores the finished game off the processing path.
func (that *Broker) archiveGameLocked() {
	if that.archive == nil {
		return
	}

	snapshot := that.game.Snapshot()
	record := &entity.GameRecord{
		ID:         pkg.NewSessionID(),
		Board:      snapshot.Board,
		Status:     snapshot.Status,
		Winner:     snapshot.Winner(),
		Player1:    entity.Player{ID: snapshot.Player1ID, Name: that.names[snapshot.Player1ID], Number: entity.PlayerOne},
		Player2:    entity.Player{ID: snapshot.Player2ID, Name: that.names[snapshot.Player2ID], Number: entity.PlayerTwo},
		FinishedAt: time.Now().UTC(),
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), archiveTimeout)
		defer cancel()

		if err := that.archive.CreateOrUpdate(ctx, record); err != nil {
			that.logger.Error("failed to archive finished game", "record_id", record.ID, "error", err)
			return
		}

		that.logger.Info("finished game archived", "record_id", record.ID, "status", record.Status)
	}()
}
