package protocol

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// MaxFrameSize caps a single frame payload. Anything above it is treated
// as a protocol error rather than an allocation request.
const MaxFrameSize = 1 << 20

const headerSize = 4

var (
	ErrTruncatedStream = errors.New("stream closed mid-frame")
	ErrDecode          = errors.New("failed to decode command")
	ErrFrameTooLarge   = errors.New("frame exceeds maximum size")
)

// Write serializes cmd and writes it as one frame: a 4-byte big-endian
// payload length followed by the payload. Header and payload go out in a
// single Write call so concurrent writers holding the connection's write
// lock never interleave partial frames.
func Write(w io.Writer, cmd *Command) error {
	payload, err := json.Marshal(cmd)
	if err != nil {
		return fmt.Errorf("failed to marshal command: %w", err)
	}

	if len(payload) > MaxFrameSize {
		return fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(payload))
	}

	frame := make([]byte, headerSize+len(payload))
	binary.BigEndian.PutUint32(frame, uint32(len(payload)))
	copy(frame[headerSize:], payload)

	if _, err = w.Write(frame); err != nil {
		return fmt.Errorf("failed to write frame: %w", err)
	}

	return nil
}

// Read blocks until one full frame is available and decodes it. A stream
// that ends cleanly before the first header byte yields io.EOF; one that
// ends inside a frame yields ErrTruncatedStream. An unparseable payload or
// unknown command kind yields ErrDecode.
func Read(r io.Reader) (*Command, error) {
	header := make([]byte, headerSize)
	if _, err := io.ReadFull(r, header); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, io.EOF
		}
		return nil, fmt.Errorf("%w: %w", ErrTruncatedStream, err)
	}

	length := binary.BigEndian.Uint32(header)
	if length > MaxFrameSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, length)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTruncatedStream, err)
	}

	var cmd Command
	if err := json.Unmarshal(payload, &cmd); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	if err := cmd.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDecode, err)
	}

	return &cmd, nil
}
