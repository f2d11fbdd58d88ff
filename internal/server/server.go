package server

import (
	"log"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/redis/go-redis/v9"

	"crash/internal/cache"
	"crash/internal/database"
	"crash/internal/game"
	"crash/internal/price"
)

type FiberServer struct {
	*fiber.App

	db     database.Service
	cache  cache.Service
	engine *game.Engine
	hub    *game.Hub
	oracle *price.Service
}

func New() *FiberServer {
	db := database.New()

	// Redis is optional: price caching degrades to in-process, round
	// snapshots are skipped.
	cacheService := cache.New()
	var redisClient *redis.Client
	var rounds game.RoundCache
	if cacheService != nil {
		redisClient = cacheService.GetClient()
		rounds = cacheService
	}

	oracle := price.New(redisClient)
	hub := game.NewHub()
	engine := game.NewEngine(db, oracle, hub, rounds, game.Config{})

	server := &FiberServer{
		App: fiber.New(fiber.Config{
			ServerHeader:  "crash",
			AppName:       "crash",
			ReadTimeout:   10 * time.Second,
			WriteTimeout:  10 * time.Second,
			IdleTimeout:   120 * time.Second,
			StrictRouting: false,
		}),

		db:     db,
		cache:  cacheService,
		engine: engine,
		hub:    hub,
		oracle: oracle,
	}

	server.App.Use(recover.New())
	server.App.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
	}))

	go hub.Run()
	engine.Start()

	log.Println("[SERVER] Round engine started")

	return server
}

// Shutdown stops the round engine and closes connections.
func (s *FiberServer) Shutdown() error {
	log.Println("[SERVER] Shutting down...")

	if s.engine != nil {
		s.engine.Stop()
	}
	if s.cache != nil {
		s.cache.Close()
	}
	if s.db != nil {
		s.db.Close()
	}

	return nil
}
