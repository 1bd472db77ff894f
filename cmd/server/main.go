package main

import (
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/driftchat/drift/internal/server"
)

func main() {
	_ = godotenv.Load()

	cfg, err := server.NewConfigFromEnv()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}
	server.SetConfig(cfg)
	active := server.ActiveConfig()

	hub := server.NewHub()
	go hub.Run()

	httpServer := server.CreateServer(active.Port, server.NewRouter(hub))

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.StartServer(httpServer)
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Server error: %v", err)
		}
	case sig := <-stop:
		log.Printf("Received signal %s, shutting down", sig)
	}

	if err := server.ShutdownServer(httpServer, active.ShutdownTimeout); err != nil {
		log.Printf("HTTP shutdown incomplete: %v", err)
	}
	if err := hub.Shutdown(active.ShutdownTimeout); err != nil {
		log.Printf("Hub shutdown incomplete: %v", err)
	}
}
