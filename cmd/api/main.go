package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/joho/godotenv/autoload"

	"crash/internal/server"
)

func gracefulShutdown(fiberServer *server.FiberServer, done chan bool) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	log.Println("[SERVER] Shutting down gracefully, press Ctrl+C again to force")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := fiberServer.ShutdownWithContext(shutdownCtx); err != nil {
		log.Printf("[SERVER] Forced to shutdown with error: %v", err)
	}
	fiberServer.Shutdown()

	log.Println("[SERVER] Shutdown complete")
	done <- true
}

func main() {
	fiberServer := server.New()
	fiberServer.RegisterFiberRoutes()

	done := make(chan bool, 1)
	go gracefulShutdown(fiberServer, done)

	port, _ := strconv.Atoi(os.Getenv("PORT"))
	if port == 0 {
		port = 8080
	}
	if err := fiberServer.Listen(fmt.Sprintf(":%d", port)); err != nil {
		log.Fatalf("[SERVER] Listen error: %v", err)
	}

	<-done
}
