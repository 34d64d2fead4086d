// cmd/server/main.go
package main

import (
	"net"
	"net/http"
	"os"
	"os/signal"
	"time"

	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"

	"github.com/cardtable/uno/internal/auth"
	"github.com/cardtable/uno/internal/cache"
	"github.com/cardtable/uno/internal/config"
	"github.com/cardtable/uno/internal/game"
	"github.com/cardtable/uno/internal/handlers"
	"github.com/cardtable/uno/internal/middleware"
	"github.com/cardtable/uno/internal/room"
)

func main() {
	logger := logrus.New()
	if os.Getenv("LOG_LEVEL") == "debug" {
		logger.SetLevel(logrus.DebugLevel)
	}

	cfg := config.Load()

	sinks := []game.Sink{&game.LogSink{Logger: logger}}
	if cfg.RedisAddr != "" {
		historian, err := cache.ConnectHistorian(cfg.RedisAddr, cfg.RedisDB, cfg.HistorianQueue, logger)
		if err != nil {
			logger.Warnf("historian disabled: %v", err)
		} else {
			defer historian.Close()
			sinks = append(sinks, historian)
			logger.Infof("historian enabled on %s", cfg.RedisAddr)
		}
	}

	sessions := auth.NewSessions(cfg.SessionSecret)
	registry := room.NewRegistry(room.Options{
		Logger:       logger,
		Sinks:        sinks,
		IdleTimeout:  cfg.RoomIdleTimeout,
		ReapInterval: cfg.RoomReapInterval,
		SessionFn:    sessions.CreateToken,
	})

	mux := http.NewServeMux()
	mux.Handle("/ws", middleware.LogMiddleware(logger)(http.HandlerFunc(
		handlers.GameWSHandler(logger, registry, sessions),
	)))

	server := &http.Server{
		Handler:     mux,
		ReadTimeout: 10 * time.Second,
	}

	l, err := net.Listen("tcp", cfg.Addr)
	if err != nil {
		logger.Fatalf("failed to listen: %v", err)
	}
	logger.Infof("multi-room UNO server listening on %s", l.Addr())

	errc := make(chan error, 1)
	go func() {
		errc <- server.Serve(l)
	}()

	sigs := make(chan os.Signal, 1)
	signal.Notify(sigs, os.Interrupt)
	select {
	case err := <-errc:
		logger.Errorf("failed to serve: %v", err)
	case sig := <-sigs:
		logger.Infof("terminating: %v", sig)
	}
}
