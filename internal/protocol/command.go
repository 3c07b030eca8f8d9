package protocol

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/morpiondev/morpion-backend/internal/entity"
)

// Version is the current wire protocol version. Decoding rejects frames
// carrying any other value.
const Version = 1

// SenderServer is the sender id used for server-originated commands.
const SenderServer = "SERVER"

// Command kinds. Each kind carries exactly one payload shape; disconnect
// and reset_game carry none.
const (
	TypeConnect     = "connect"
	TypeConnectAck  = "connect_ack"
	TypeDisconnect  = "disconnect"
	TypeMove        = "move"
	TypeGameState   = "game_state"
	TypeResetGame   = "reset_game"
	TypeChatMessage = "chat_message"
	TypeError       = "error"
)

var (
	ErrUnknownCommandType = errors.New("unknown command type")
	ErrWrongCommandType   = errors.New("wrong command type for payload")
	ErrUnsupportedVersion = errors.New("unsupported protocol version")
)

// Command is the tagged envelope exchanged between client and server. The
// Type field selects which payload struct the raw payload decodes into.
type Command struct {
	Version  int             `json:"v"`
	Type     string          `json:"type"`
	SenderID string          `json:"sender_id,omitempty"`
	Payload  json.RawMessage `json:"payload,omitempty"`
}

type ConnectPayload struct {
	PlayerName string `json:"player_name"`
}

type ConnectAckPayload struct {
	Player entity.Player `json:"player"`
}

type MovePayload struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

type GameStatePayload struct {
	Game entity.Game `json:"game"`
}

type ChatPayload struct {
	Text string `json:"text"`
}

type ErrorPayload struct {
	Message string `json:"message"`
}

func newCommand(kind, senderID string, payload any) *Command {
	cmd := &Command{
		Version:  Version,
		Type:     kind,
		SenderID: senderID,
	}

	if payload != nil {
		raw, err := json.Marshal(payload)
		if err != nil {
			// payload structs contain only marshalable fields
			panic(fmt.Errorf("marshal %s payload: %w", kind, err))
		}
		cmd.Payload = raw
	}

	return cmd
}

func NewConnect(senderID, playerName string) *Command {
	return newCommand(TypeConnect, senderID, ConnectPayload{PlayerName: playerName})
}

func NewConnectAck(player entity.Player) *Command {
	return newCommand(TypeConnectAck, SenderServer, ConnectAckPayload{Player: player})
}

func NewDisconnect(senderID string) *Command {
	return newCommand(TypeDisconnect, senderID, nil)
}

func NewMove(senderID string, row, col int) *Command {
	return newCommand(TypeMove, senderID, MovePayload{Row: row, Col: col})
}

func NewGameState(snapshot entity.Game) *Command {
	return newCommand(TypeGameState, SenderServer, GameStatePayload{Game: snapshot})
}

func NewResetGame(senderID string) *Command {
	return newCommand(TypeResetGame, senderID, nil)
}

func NewChatMessage(senderID, text string) *Command {
	return newCommand(TypeChatMessage, senderID, ChatPayload{Text: text})
}

func NewError(message string) *Command {
	return newCommand(TypeError, SenderServer, ErrorPayload{Message: message})
}

// Validate checks the envelope against the known kinds and version.
func (that *Command) Validate() error {
	if that.Version != Version {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, that.Version)
	}

	switch that.Type {
	case TypeConnect, TypeConnectAck, TypeDisconnect, TypeMove,
		TypeGameState, TypeResetGame, TypeChatMessage, TypeError:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrUnknownCommandType, that.Type)
	}
}

func decodePayload(cmd *Command, kind string, dst any) error {
	if cmd.Type != kind {
		return fmt.Errorf("%w: have %q, want %q", ErrWrongCommandType, cmd.Type, kind)
	}

	if err := json.Unmarshal(cmd.Payload, dst); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", kind, err)
	}

	return nil
}

func (that *Command) ConnectPayload() (*ConnectPayload, error) {
	var payload ConnectPayload
	if err := decodePayload(that, TypeConnect, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (that *Command) ConnectAckPayload() (*ConnectAckPayload, error) {
	var payload ConnectAckPayload
	if err := decodePayload(that, TypeConnectAck, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (that *Command) MovePayload() (*MovePayload, error) {
	var payload MovePayload
	if err := decodePayload(that, TypeMove, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (that *Command) GameStatePayload() (*GameStatePayload, error) {
	var payload GameStatePayload
	if err := decodePayload(that, TypeGameState, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (that *Command) ChatPayload() (*ChatPayload, error) {
	var payload ChatPayload
	if err := decodePayload(that, TypeChatMessage, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}

func (that *Command) ErrorPayload() (*ErrorPayload, error) {
	var payload ErrorPayload
	if err := decodePayload(that, TypeError, &payload); err != nil {
		return nil, err
	}
	return &payload, nil
}
