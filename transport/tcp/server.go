package tcp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"sync"

	"github.com/morpiondev/morpion-backend/internal/protocol"
	"github.com/morpiondev/morpion-backend/internal/session"
)

// Server accepts raw TCP connections speaking the length-prefixed command
// protocol and runs one receive loop per connection.
type Server struct {
	logger *slog.Logger
	broker *session.Broker
}

func New(logger *slog.Logger, broker *session.Broker) *Server {
	return &Server{
		logger: logger.With("component", "tcp-server"),
		broker: broker,
	}
}

// Start listens on the given port and serves until ctx is canceled.
func (that *Server) Start(ctx context.Context, port string) error {
	var lc net.ListenConfig

	listener, err := lc.Listen(ctx, "tcp", ":"+port)
	if err != nil {
		return fmt.Errorf("failed to listen on port %s: %w", port, err)
	}

	return that.Serve(ctx, listener)
}

// Serve accepts connections from the listener until ctx is canceled.
// Cancellation closes the listener and every live connection, then waits
// for all connection handlers to drain before returning.
func (that *Server) Serve(ctx context.Context, listener net.Listener) error {
	go func() {
		<-ctx.Done()
		if err := listener.Close(); err != nil {
			that.logger.Warn("failed to close listener", "error", err)
		}
	}()

	that.logger.Info("listening for game clients", "addr", listener.Addr().String())

	var wg sync.WaitGroup

	for {
		conn, acceptErr := listener.Accept()
		if acceptErr != nil {
			if ctx.Err() != nil {
				break
			}
			return fmt.Errorf("failed to accept connection: %w", acceptErr)
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			that.handleConnection(conn)
		}()
	}

	// Closing the sockets is what unblocks the handlers' pending reads.
	that.broker.Close()
	wg.Wait()

	that.logger.Info("server stopped")

	return nil
}

// handleConnection owns the read path of one socket: it registers the
// connection with the broker, then decodes and forwards frames until the
// stream ends. Any read failure is treated as a disconnect of that client.
func (that *Server) handleConnection(conn net.Conn) {
	client := newConn(conn)
	clientID := that.broker.Register(client)

	log := that.logger.With("client_id", clientID, "remote_addr", conn.RemoteAddr().String())
	log.Info("connection accepted")

	defer that.broker.Disconnect(clientID)

	for {
		cmd, err := protocol.Read(conn)
		if err != nil {
			switch {
			case errors.Is(err, io.EOF):
				log.Info("client closed the connection")
			case errors.Is(err, protocol.ErrDecode):
				// Protocol errors are fatal to this connection only.
				log.Warn("undecodable frame, dropping connection", "error", err)
			default:
				log.Warn("read failed, dropping connection", "error", err)
			}
			return
		}

		// The connection's registered id is authoritative; the sender_id
		// field inside the envelope is never trusted for attribution.
		that.broker.ProcessCommand(clientID, cmd)
	}
}
