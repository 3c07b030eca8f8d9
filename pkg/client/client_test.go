package client

import (
	"context"
	"log/slog"
	"net"
	"os"
	"testing"
	"time"

	"github.com/morpiondev/morpion-backend/internal/apperror"
	"github.com/morpiondev/morpion-backend/internal/entity"
	"github.com/morpiondev/morpion-backend/internal/session"
	"github.com/morpiondev/morpion-backend/transport/tcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waitTimeout = 5 * time.Second

func testLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

// startTestServer runs a broker and TCP server on an ephemeral port and
// returns the port to dial.
func startTestServer(t *testing.T) int {
	t.Helper()

	logger := testLogger()
	broker := session.NewBroker(logger, nil)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = tcp.New(logger, broker).Serve(ctx, listener)
	}()

	t.Cleanup(func() {
		cancel()
		<-done
	})

	return listener.Addr().(*net.TCPAddr).Port
}

// recorder turns callbacks into channels so tests can wait on them.
type recorder struct {
	connected    chan entity.Player
	states       chan entity.Game
	chats        chan [2]string
	errs         chan string
	events       chan GameEvent
	disconnected chan error
}

func newRecorder() *recorder {
	return &recorder{
		connected:    make(chan entity.Player, 8),
		states:       make(chan entity.Game, 32),
		chats:        make(chan [2]string, 8),
		errs:         make(chan string, 8),
		events:       make(chan GameEvent, 8),
		disconnected: make(chan error, 8),
	}
}

func (that *recorder) callbacks() Callbacks {
	return Callbacks{
		OnConnected:    func(player entity.Player) { that.connected <- player },
		OnStateChanged: func(state entity.Game) { that.states <- state },
		OnChatReceived: func(senderID, text string) { that.chats <- [2]string{senderID, text} },
		OnError:        func(message string) { that.errs <- message },
		OnGameEvent:    func(event GameEvent) { that.events <- event },
		OnDisconnected: func(err error) { that.disconnected <- err },
	}
}

func (that *recorder) waitConnected(t *testing.T) entity.Player {
	t.Helper()

	select {
	case player := <-that.connected:
		return player
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for connect ack")
		return entity.Player{}
	}
}

// waitStatus consumes states until one carries the wanted status.
func (that *recorder) waitStatus(t *testing.T, status string) entity.Game {
	t.Helper()

	deadline := time.After(waitTimeout)
	for {
		select {
		case state := <-that.states:
			if state.Status == status {
				return state
			}
		case <-deadline:
			t.Fatalf("timed out waiting for status %q", status)
		}
	}
}

// waitBoardCell consumes states until the cell holds the wanted mark.
func (that *recorder) waitBoardCell(t *testing.T, row, col, mark int) entity.Game {
	t.Helper()

	deadline := time.After(waitTimeout)
	for {
		select {
		case state := <-that.states:
			if state.Board[row][col] == mark {
				return state
			}
		case <-deadline:
			t.Fatalf("timed out waiting for cell (%d,%d) = %d", row, col, mark)
		}
	}
}

func (that *recorder) waitEvent(t *testing.T) GameEvent {
	t.Helper()

	select {
	case event := <-that.events:
		return event
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for game event")
		return ""
	}
}

func (that *recorder) waitError(t *testing.T) string {
	t.Helper()

	select {
	case message := <-that.errs:
		return message
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for error message")
		return ""
	}
}

func connect(t *testing.T, port int, name string) (*Client, *recorder) {
	t.Helper()

	rec := newRecorder()
	cli := New(testLogger(), rec.callbacks())

	require.NoError(t, cli.Connect("127.0.0.1", port, name))
	t.Cleanup(cli.Disconnect)

	return cli, rec
}

func TestClient_ConnectRejectsInvalidPort(t *testing.T) {
	cli := New(testLogger(), Callbacks{})

	// When: connecting with a port below the valid range
	err := cli.Connect("127.0.0.1", 80, "Alice")

	// Then: the dial is refused up front
	require.ErrorIs(t, err, ErrInvalidPort)
	assert.False(t, cli.IsConnected())
}

func TestClient_ConnectHandshake(t *testing.T) {
	port := startTestServer(t)

	// When: the first client connects
	cli, rec := connect(t, port, "Alice")

	// Then: the server assigns slot 1 and pushes the waiting state
	player := rec.waitConnected(t)
	assert.Equal(t, entity.PlayerOne, player.Number)
	assert.Equal(t, "Alice", player.Name)

	state := rec.waitStatus(t, entity.StatusWaitingForPlayers)
	assert.Equal(t, player.ID, state.Player1ID)

	require.NotNil(t, cli.Player())
	assert.Equal(t, player, *cli.Player())
}

func TestClient_FullGameOverTheWire(t *testing.T) {
	port := startTestServer(t)

	alice, aliceRec := connect(t, port, "Alice")
	aliceRec.waitConnected(t)

	bob, bobRec := connect(t, port, "Bob")
	bobRec.waitConnected(t)

	// Then: both sides observe the game starting
	aliceRec.waitStatus(t, entity.StatusInProgress)
	bobRec.waitStatus(t, entity.StatusInProgress)
	assert.Equal(t, EventGameStarted, aliceRec.waitEvent(t))
	assert.Equal(t, EventGameStarted, bobRec.waitEvent(t))

	// When: the players alternate until player one wins the top row
	require.NoError(t, alice.SendMove(0, 0))
	bobRec.waitBoardCell(t, 0, 0, entity.PlayerOne)
	require.NoError(t, bob.SendMove(1, 0))
	aliceRec.waitBoardCell(t, 1, 0, entity.PlayerTwo)

	require.NoError(t, alice.SendMove(0, 1))
	bobRec.waitBoardCell(t, 0, 1, entity.PlayerOne)
	require.NoError(t, bob.SendMove(1, 1))
	aliceRec.waitBoardCell(t, 1, 1, entity.PlayerTwo)

	require.NoError(t, alice.SendMove(0, 2))

	// Then: both mirrors report the win and the derived events disagree
	// about who won from each side's perspective
	aliceRec.waitStatus(t, entity.StatusPlayer1Won)
	bobRec.waitStatus(t, entity.StatusPlayer1Won)
	assert.Equal(t, EventGameWon, aliceRec.waitEvent(t))
	assert.Equal(t, EventGameLost, bobRec.waitEvent(t))
}

func TestClient_SendMoveAdvisoryValidation(t *testing.T) {
	port := startTestServer(t)

	t.Run("Before the game starts", func(t *testing.T) {
		alice, rec := connect(t, port, "Alice")
		rec.waitConnected(t)
		rec.waitStatus(t, entity.StatusWaitingForPlayers)

		// When: moving with only one player bound
		err := alice.SendMove(0, 0)

		// Then: the move is refused locally, nothing reaches the server
		require.ErrorIs(t, err, apperror.ErrGameNotInProgress)
	})

	t.Run("Out of turn", func(t *testing.T) {
		_, aliceRec := connect(t, port, "Alice2")
		aliceRec.waitConnected(t)

		bob, bobRec := connect(t, port, "Bob2")
		bobRec.waitConnected(t)
		bobRec.waitStatus(t, entity.StatusInProgress)

		// When: player two moves first
		err := bob.SendMove(0, 0)

		require.ErrorIs(t, err, apperror.ErrNotYourTurn)
	})
}

func TestClient_NotConnectedSends(t *testing.T) {
	cli := New(testLogger(), Callbacks{})

	assert.ErrorIs(t, cli.SendMove(0, 0), ErrNotConnected)
	assert.ErrorIs(t, cli.SendChat("hi"), ErrNotConnected)
	assert.ErrorIs(t, cli.SendReset(), ErrNotConnected)
}

func TestClient_ChatRoundTrip(t *testing.T) {
	port := startTestServer(t)

	alice, aliceRec := connect(t, port, "Alice")
	alicePlayer := aliceRec.waitConnected(t)

	_, bobRec := connect(t, port, "Bob")
	bobRec.waitConnected(t)

	// When: Alice sends a chat message
	require.NoError(t, alice.SendChat("gg, bien joué !"))

	// Then: both clients receive it verbatim, the sender included
	for _, rec := range []*recorder{aliceRec, bobRec} {
		select {
		case msg := <-rec.chats:
			assert.Equal(t, alicePlayer.ID, msg[0])
			assert.Equal(t, "gg, bien joué !", msg[1])
		case <-time.After(waitTimeout):
			t.Fatal("timed out waiting for chat message")
		}
	}
}

func TestClient_SessionFull(t *testing.T) {
	port := startTestServer(t)

	_, aliceRec := connect(t, port, "Alice")
	aliceRec.waitConnected(t)
	_, bobRec := connect(t, port, "Bob")
	bobRec.waitConnected(t)

	// When: a third client tries to join
	_, carolRec := connect(t, port, "Carol")

	// Then: it gets the refusal and never a slot
	assert.Equal(t, "session full", carolRec.waitError(t))
	assert.Empty(t, carolRec.connected)
}

func TestClient_OpponentLeaving(t *testing.T) {
	port := startTestServer(t)

	_, aliceRec := connect(t, port, "Alice")
	aliceRec.waitConnected(t)

	bob, bobRec := connect(t, port, "Bob")
	bobRec.waitConnected(t)
	aliceRec.waitStatus(t, entity.StatusInProgress)
	assert.Equal(t, EventGameStarted, aliceRec.waitEvent(t))

	// When: Bob leaves mid-game
	bob.Disconnect()

	// Then: Alice drops back to waiting and learns the opponent left
	state := aliceRec.waitStatus(t, entity.StatusWaitingForPlayers)
	assert.Empty(t, state.Player2ID)
	assert.Equal(t, EventOpponentLeft, aliceRec.waitEvent(t))

	// and Bob's own side stays silent: no OnDisconnected for a
	// user-initiated disconnect
	assert.Empty(t, bobRec.disconnected)
	assert.False(t, bob.IsConnected())
}

func TestClient_ServerGoingAway(t *testing.T) {
	logger := testLogger()
	broker := session.NewBroker(logger, nil)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = tcp.New(logger, broker).Serve(ctx, listener)
	}()

	rec := newRecorder()
	cli := New(logger, rec.callbacks())
	require.NoError(t, cli.Connect("127.0.0.1", listener.Addr().(*net.TCPAddr).Port, "Alice"))
	rec.waitConnected(t)

	// When: the server shuts down under the client
	cancel()
	<-done

	// Then: the client reports the lost connection
	select {
	case err := <-rec.disconnected:
		require.Error(t, err)
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for disconnect notification")
	}

	assert.False(t, cli.IsConnected())
}
