package application

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/morpiondev/morpion-backend/internal/config"
	"github.com/morpiondev/morpion-backend/internal/repository"
	"github.com/morpiondev/morpion-backend/internal/repository/storage"
	"github.com/morpiondev/morpion-backend/internal/session"
	"github.com/morpiondev/morpion-backend/transport/rest"
	"github.com/morpiondev/morpion-backend/transport/tcp"
	"github.com/morpiondev/morpion-backend/transport/websocket"
)

// RunApp - runs the application.
func RunApp(logger *slog.Logger, conf *config.Config) error {
	log := logger.With("component", "app")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigs
		log.Info("Received signal, shutting down", "signal", sig)
		cancel()
	}()

	var archive repository.GameRecordRepository

	if redisAddr := conf.Redis.GetRedisAddr(); redisAddr != "" {
		redisStorage, err := storage.New(ctx, redisAddr)
		if err != nil {
			return fmt.Errorf("could not connect to redis storage: %w", err)
		}

		defer func() {
			if err = redisStorage.Close(); err != nil {
				log.Error("could not close redis storage", "error", err)
			}
		}()

		archive = repository.NewGameRecordRepository(redisStorage)
	} else {
		log.Info("No redis host configured, finished games will not be archived")
	}

	broker := session.NewBroker(logger, archive)

	// run TCP game server
	tcpErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting TCP server", "port", conf.TCPPort)
		tcpServer := tcp.New(logger, broker)
		if tcpErr := tcpServer.Start(ctx, conf.TCPPort); tcpErr != nil {
			log.Error("TCP server error", "error", tcpErr)
			tcpErrCh <- tcpErr
		}
	}()

	// run Websocket server
	wsErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting WebSocket server", "port", conf.WSPort)
		wsServer := websocket.New(logger, broker)
		if wsErr := wsServer.Start(ctx, conf.WSPort); wsErr != nil {
			log.Error("WebSocket server error", "error", wsErr)
			wsErrCh <- wsErr
		}
	}()

	// run HTTP server
	httpErrCh := make(chan error, 1)
	go func() {
		log.Info("Starting HTTP server", "port", conf.HTTPPort)
		if httpErr := rest.Start(ctx, conf.HTTPPort, broker); httpErr != nil {
			log.Error("HTTP server error", "error", httpErr)
			httpErrCh <- httpErr
		}
	}()

	select {
	case err := <-tcpErrCh:
		return fmt.Errorf("TCP server error: %w", err)
	case err := <-wsErrCh:
		return fmt.Errorf("WebSocket server error: %w", err)
	case err := <-httpErrCh:
		return fmt.Errorf("HTTP server error: %w", err)
	case <-ctx.Done():
		log.Info("Application context canceled, shutting down")
		return nil
	}
}
