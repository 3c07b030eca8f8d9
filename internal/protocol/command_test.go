package protocol

import (
	"testing"

	"github.com/morpiondev/morpion-backend/internal/entity"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommand_Constructors(t *testing.T) {
	t.Run("Connect", func(t *testing.T) {
		// When: building a connect command
		cmd := NewConnect("alice", "Alice")

		// Then: envelope and payload carry the expected fields
		require.NoError(t, cmd.Validate())
		assert.Equal(t, Version, cmd.Version)
		assert.Equal(t, TypeConnect, cmd.Type)
		assert.Equal(t, "alice", cmd.SenderID)

		payload, err := cmd.ConnectPayload()
		require.NoError(t, err)
		assert.Equal(t, "Alice", payload.PlayerName)
	})

	t.Run("Move", func(t *testing.T) {
		cmd := NewMove("bob", 2, 1)

		payload, err := cmd.MovePayload()
		require.NoError(t, err)
		assert.Equal(t, 2, payload.Row)
		assert.Equal(t, 1, payload.Col)
	})

	t.Run("GameState", func(t *testing.T) {
		// Given: a game with some progress
		game := entity.NewGame()
		_, err := game.BindPlayer("alice", "Alice")
		require.NoError(t, err)

		// When: wrapping its snapshot in a command
		cmd := NewGameState(game.Snapshot())

		// Then: the payload reproduces the snapshot and the server sender id
		require.Equal(t, SenderServer, cmd.SenderID)

		payload, err := cmd.GameStatePayload()
		require.NoError(t, err)
		assert.Equal(t, game.Snapshot(), payload.Game)
	})

	t.Run("Error", func(t *testing.T) {
		cmd := NewError("invalid move")

		payload, err := cmd.ErrorPayload()
		require.NoError(t, err)
		assert.Equal(t, "invalid move", payload.Message)
	})

	t.Run("Disconnect and reset carry no payload", func(t *testing.T) {
		assert.Empty(t, NewDisconnect("alice").Payload)
		assert.Empty(t, NewResetGame("alice").Payload)
	})
}

func TestCommand_PayloadTypeMismatch(t *testing.T) {
	// Given: a chat command
	cmd := NewChatMessage("alice", "hello")

	// When: reading it as a move
	_, err := cmd.MovePayload()

	// Then: the accessor refuses
	require.ErrorIs(t, err, ErrWrongCommandType)
}

func TestCommand_Validate(t *testing.T) {
	t.Run("Unknown type", func(t *testing.T) {
		cmd := &Command{Version: Version, Type: "teleport"}

		require.ErrorIs(t, cmd.Validate(), ErrUnknownCommandType)
	})

	t.Run("Unsupported version", func(t *testing.T) {
		cmd := &Command{Version: 99, Type: TypeConnect}

		require.ErrorIs(t, cmd.Validate(), ErrUnsupportedVersion)
	})
}
