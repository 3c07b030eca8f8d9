package tcp

import (
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/morpiondev/morpion-backend/internal/protocol"
)

// writeTimeout bounds a single outbound frame so one stalled client cannot
// wedge a broadcast to the others.
const writeTimeout = 10 * time.Second

// conn adapts a net.Conn to the broker's view of a client. The mutex keeps
// concurrent broadcast and unicast writes from interleaving frames on the
// socket.
type conn struct {
	mu        sync.Mutex
	netConn   net.Conn
	closeOnce sync.Once
}

func newConn(netConn net.Conn) *conn {
	return &conn{netConn: netConn}
}

func (that *conn) SendCommand(cmd *protocol.Command) error {
	that.mu.Lock()
	defer that.mu.Unlock()

	if err := that.netConn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}

	return protocol.Write(that.netConn, cmd)
}

func (that *conn) Close() error {
	var err error
	that.closeOnce.Do(func() {
		err = that.netConn.Close()
	})
	return err
}
