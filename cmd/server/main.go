package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/Tyrowin/roomchat/internal/server"
)

const shutdownTimeout = 10 * time.Second

func main() {
	fmt.Println("Starting RoomChat server...")

	config := loadConfig()
	server.SetConfig(config)

	// Build the presence engine and start the connection hub.
	server.StartHub()

	mux := server.SetupRoutes()
	httpServer := server.CreateServer(config.Port, mux)

	errChan := make(chan error, 1)
	go func() {
		if err := server.StartServer(httpServer); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		log.Fatalf("Server failed to start: %v", err)
	case sig := <-sigChan:
		log.Printf("%s received, shutting down gracefully...", sig)
	}

	if err := server.ShutdownServer(httpServer, shutdownTimeout); err != nil {
		log.Printf("HTTP shutdown incomplete: %v", err)
	}
	if err := server.GetHub().Shutdown(shutdownTimeout); err != nil {
		log.Printf("Hub shutdown incomplete: %v", err)
	}

	log.Println("Server stopped")
}

// loadConfig reads configuration from the optional CONFIG_FILE YAML file
// with environment variables layered on top of defaults otherwise.
func loadConfig() *server.Config {
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		cfg, err := server.LoadConfigFile(path)
		if err != nil {
			log.Fatalf("Failed to load config file %s: %v", path, err)
		}
		return cfg
	}
	return server.NewConfigFromEnv()
}
