package client

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/morpiondev/morpion-backend/internal/apperror"
	"github.com/morpiondev/morpion-backend/internal/entity"
	"github.com/morpiondev/morpion-backend/internal/pkg"
	"github.com/morpiondev/morpion-backend/internal/protocol"
)

var (
	ErrNotConnected     = errors.New("not connected to a server")
	ErrAlreadyConnected = errors.New("already connected to a server")
	ErrInvalidPort      = errors.New("port outside the valid range 1024-65535")
)

// GameEvent is a notification derived from a status change in a received
// game state. Events are observational; the state itself is authoritative.
type GameEvent string

const (
	EventGameStarted  GameEvent = "game_started"
	EventGameWon      GameEvent = "game_won"
	EventGameLost     GameEvent = "game_lost"
	EventGameDraw     GameEvent = "game_draw"
	EventOpponentLeft GameEvent = "opponent_left"
)

// Callbacks is the contract between the session and its UI consumer. Nil
// members are skipped. Callbacks run on the client's receive goroutine, so
// they must not block.
type Callbacks struct {
	OnConnected    func(player entity.Player)
	OnStateChanged func(state entity.Game)
	OnChatReceived func(senderID, text string)
	OnError        func(message string)
	OnGameEvent    func(event GameEvent)
	OnDisconnected func(err error)
}

// Client is the thin client side of a game session: one connection, one
// background receive loop, and a local mirror of the server's game state
// replaced wholesale on every game_state push.
type Client struct {
	logger    *slog.Logger
	callbacks Callbacks

	writeMu sync.Mutex

	mu        sync.Mutex
	conn      net.Conn
	connected bool
	senderID  string
	player    *entity.Player
	state     entity.Game
}

func New(logger *slog.Logger, callbacks Callbacks) *Client {
	return &Client{
		logger:    logger.With("component", "game-client"),
		callbacks: callbacks,
		state:     *entity.NewGame(),
	}
}

// Connect dials the server, sends the connect handshake and starts the
// receive loop. The port is checked before dialing; the server confirms
// the slot assignment asynchronously through OnConnected.
func (that *Client) Connect(host string, port int, name string) error {
	if !pkg.IsValidPort(port) {
		return fmt.Errorf("%w: %d", ErrInvalidPort, port)
	}

	that.mu.Lock()
	if that.connected {
		that.mu.Unlock()
		return ErrAlreadyConnected
	}
	that.mu.Unlock()

	conn, err := net.Dial("tcp", pkg.JoinHostPort(host, port))
	if err != nil {
		return fmt.Errorf("failed to connect to server: %w", err)
	}

	senderID := pkg.NewClientID()

	if err = that.send(conn, protocol.NewConnect(senderID, name)); err != nil {
		_ = conn.Close()
		return fmt.Errorf("failed to send connect command: %w", err)
	}

	that.mu.Lock()
	that.conn = conn
	that.connected = true
	that.senderID = senderID
	that.player = nil
	that.state = *entity.NewGame()
	that.mu.Unlock()

	go that.receiveLoop(conn)

	that.logger.Info("connected to server", "host", host, "port", port, "name", name)

	return nil
}

// Disconnect announces the departure, closes the socket and resets the
// local mirror. Reconnecting afterwards is a fresh Connect call.
func (that *Client) Disconnect() {
	that.mu.Lock()
	if !that.connected {
		that.mu.Unlock()
		return
	}

	conn := that.conn
	senderID := that.senderID
	that.connected = false
	that.conn = nil
	that.player = nil
	that.state = *entity.NewGame()
	that.mu.Unlock()

	// best effort; the server also treats the socket closing as a disconnect
	if err := that.send(conn, protocol.NewDisconnect(senderID)); err != nil {
		that.logger.Warn("failed to send disconnect command", "error", err)
	}

	if err := conn.Close(); err != nil {
		that.logger.Warn("failed to close connection", "error", err)
	}

	that.logger.Info("disconnected from server")
}

// SendMove validates the move against the local mirror before sending.
// The check is advisory, for responsive UI feedback; the server remains
// authoritative and re-validates.
func (that *Client) SendMove(row, col int) error {
	that.mu.Lock()

	switch {
	case !that.connected:
		that.mu.Unlock()
		return ErrNotConnected
	case !that.state.IsInProgress():
		that.mu.Unlock()
		return apperror.ErrGameNotInProgress
	case that.player == nil || that.state.CurrentPlayer != that.player.Number:
		that.mu.Unlock()
		return apperror.ErrNotYourTurn
	case row < 0 || row > 2 || col < 0 || col > 2:
		that.mu.Unlock()
		return apperror.ErrInvalidCell
	case that.state.Board[row][col] != entity.EmptyCell:
		that.mu.Unlock()
		return apperror.ErrCellOccupied
	}

	conn := that.conn
	senderID := that.senderID
	that.mu.Unlock()

	return that.send(conn, protocol.NewMove(senderID, row, col))
}

func (that *Client) SendChat(text string) error {
	conn, senderID, err := that.activeConn()
	if err != nil {
		return err
	}

	return that.send(conn, protocol.NewChatMessage(senderID, text))
}

func (that *Client) SendReset() error {
	conn, senderID, err := that.activeConn()
	if err != nil {
		return err
	}

	return that.send(conn, protocol.NewResetGame(senderID))
}

// State returns a copy of the local game state mirror.
func (that *Client) State() entity.Game {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.state
}

// Player returns the local player assignment, or nil before the server
// acknowledged the connection.
func (that *Client) Player() *entity.Player {
	that.mu.Lock()
	defer that.mu.Unlock()

	if that.player == nil {
		return nil
	}

	player := *that.player
	return &player
}

func (that *Client) IsConnected() bool {
	that.mu.Lock()
	defer that.mu.Unlock()

	return that.connected
}

func (that *Client) activeConn() (net.Conn, string, error) {
	that.mu.Lock()
	defer that.mu.Unlock()

	if !that.connected {
		return nil, "", ErrNotConnected
	}

	return that.conn, that.senderID, nil
}

func (that *Client) send(conn net.Conn, cmd *protocol.Command) error {
	that.writeMu.Lock()
	defer that.writeMu.Unlock()

	return protocol.Write(conn, cmd)
}

func (that *Client) receiveLoop(conn net.Conn) {
	for {
		cmd, err := protocol.Read(conn)
		if err != nil {
			that.handleConnectionLost(err)
			return
		}

		switch cmd.Type {
		case protocol.TypeConnectAck:
			that.handleConnectAck(cmd)
		case protocol.TypeGameState:
			that.handleGameState(cmd)
		case protocol.TypeChatMessage:
			that.handleChat(cmd)
		case protocol.TypeError:
			that.handleError(cmd)
		default:
			that.logger.Warn("unhandled command from server", "type", cmd.Type)
		}
	}
}

func (that *Client) handleConnectAck(cmd *protocol.Command) {
	payload, err := cmd.ConnectAckPayload()
	if err != nil {
		that.logger.Error("malformed connect_ack", "error", err)
		return
	}

	that.mu.Lock()
	player := payload.Player
	that.player = &player
	that.mu.Unlock()

	that.logger.Info("server confirmed connection", "slot", player.Number)

	if that.callbacks.OnConnected != nil {
		that.callbacks.OnConnected(player)
	}
}

// handleGameState replaces the mirror wholesale and derives notifications
// from the status transition.
func (that *Client) handleGameState(cmd *protocol.Command) {
	payload, err := cmd.GameStatePayload()
	if err != nil {
		that.logger.Error("malformed game_state", "error", err)
		return
	}

	that.mu.Lock()
	previous := that.state.Status
	that.state = payload.Game
	player := that.player
	that.mu.Unlock()

	if that.callbacks.OnStateChanged != nil {
		that.callbacks.OnStateChanged(payload.Game)
	}

	if previous == payload.Game.Status {
		return
	}

	if event, ok := deriveEvent(previous, payload.Game.Status, player); ok && that.callbacks.OnGameEvent != nil {
		that.callbacks.OnGameEvent(event)
	}
}

func deriveEvent(previous, current string, player *entity.Player) (GameEvent, bool) {
	switch current {
	case entity.StatusInProgress:
		return EventGameStarted, true
	case entity.StatusDraw:
		return EventGameDraw, true
	case entity.StatusPlayer1Won, entity.StatusPlayer2Won:
		winner := entity.PlayerOne
		if current == entity.StatusPlayer2Won {
			winner = entity.PlayerTwo
		}
		if player != nil && player.Number == winner {
			return EventGameWon, true
		}
		return EventGameLost, true
	case entity.StatusWaitingForPlayers:
		if previous == entity.StatusInProgress {
			return EventOpponentLeft, true
		}
	}

	return "", false
}

func (that *Client) handleChat(cmd *protocol.Command) {
	payload, err := cmd.ChatPayload()
	if err != nil {
		that.logger.Error("malformed chat_message", "error", err)
		return
	}

	if that.callbacks.OnChatReceived != nil {
		that.callbacks.OnChatReceived(cmd.SenderID, payload.Text)
	}
}

func (that *Client) handleError(cmd *protocol.Command) {
	payload, err := cmd.ErrorPayload()
	if err != nil {
		that.logger.Error("malformed error command", "error", err)
		return
	}

	that.logger.Warn("server reported an error", "message", payload.Message)

	if that.callbacks.OnError != nil {
		that.callbacks.OnError(payload.Message)
	}
}

// handleConnectionLost runs when the receive loop's read fails. A loss
// after a user-initiated Disconnect is expected and stays silent.
func (that *Client) handleConnectionLost(err error) {
	that.mu.Lock()
	wasConnected := that.connected
	that.connected = false
	that.conn = nil
	that.player = nil
	that.state = *entity.NewGame()
	that.mu.Unlock()

	if !wasConnected {
		return
	}

	that.logger.Warn("connection to server lost", "error", err)

	if that.callbacks.OnDisconnected != nil {
		that.callbacks.OnDisconnected(err)
	}
}
