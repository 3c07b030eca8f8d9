package websocket

import (
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/morpiondev/morpion-backend/internal/protocol"
)

const writeTimeout = 10 * time.Second

// conn adapts a websocket connection to the broker's client view, with the
// same per-connection write lock contract as the TCP transport.
type conn struct {
	mu        sync.Mutex
	wsConn    *websocket.Conn
	closeOnce sync.Once
}

func newConn(wsConn *websocket.Conn) *conn {
	return &conn{wsConn: wsConn}
}

func (that *conn) SendCommand(cmd *protocol.Command) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if err := that.wsConn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}

	return that.wsConn.WriteJSON(cmd)
}

func (that *conn) Close() error {
	var err error
	that.closeOnce.Do(func() {
		err = that.wsConn.Close()
	})
	return err
}
