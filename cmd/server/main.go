package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"

	"foodline/internal/auth"
	"foodline/internal/chat"
	"foodline/internal/config"
	"foodline/internal/db"
	myMiddleware "foodline/internal/middleware"
	"foodline/internal/realtime"
	"foodline/internal/user"
)

const shutdownTimeout = 30 * time.Second

func main() {
	// 1. Config
	godotenv.Load()
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	// 2. Platform: Postgres
	database, err := db.NewDatabase(cfg.DatabaseDSN)
	if err != nil {
		log.Fatalf("failed to connect to DB: %v", err)
	}
	log.Println("connected to PostgreSQL")

	if err := database.AutoMigrate(); err != nil {
		log.Fatalf("migration failed: %v", err)
	}

	// 3. User feature (token issuance surface)
	tokens := auth.NewTokens(cfg.JWTSecret)
	userRepo := user.NewRepository(database.Conn)
	userService := user.NewService(userRepo, tokens)
	userHandler := user.NewHandler(userService)

	// 4. Realtime core
	registry := realtime.NewRegistry()
	chatRepo := chat.NewRepository(database.Conn)
	router := realtime.NewRouter(registry, chatRepo, cfg.MaxContentBytes, cfg.StoreTimeout)
	publisher := realtime.NewPublisher(registry)
	wsHandler := realtime.NewHandler(registry, router)
	chatHandler := chat.NewHandler(chatRepo)

	// 5. Broadcast trigger bridge (optional)
	bridgeCtx, stopBridge := context.WithCancel(context.Background())
	defer stopBridge()
	var redisClient *redis.Client
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if _, err := redisClient.Ping(context.Background()).Result(); err != nil {
			log.Fatalf("failed to connect to Redis: %v", err)
		}
		log.Println("connected to Redis, broadcast bridge on", cfg.RedisBroadcastChannel)

		bridge := realtime.NewRedisBridge(redisClient, cfg.RedisBroadcastChannel, publisher)
		go bridge.Run(bridgeCtx)
	}

	authMiddleware := myMiddleware.NewAuth(tokens)

	// 6. Routes
	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	// Public
	r.Post("/register", userHandler.Register)
	r.Post("/login", userHandler.Login)

	// Internal trigger path: fronted by network policy, not user auth.
	r.Post("/internal/broadcast", publisher.HandleTrigger)

	// Protected (require JWT)
	r.Group(func(r chi.Router) {
		r.Use(authMiddleware.Handle)
		r.Get("/api/users/search", userHandler.SearchUsers)
		r.Get("/api/messages", chatHandler.GetChatHistory)

		// WebSocket (real-time)
		r.Get("/ws", wsHandler.ServeWs)
	})

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Printf("server starting on %s", cfg.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	// 7. Graceful shutdown
	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		shutdownTimeout,
		map[string]gfshutdown.Operation{
			"http": func(ctx context.Context) error {
				return server.Shutdown(ctx)
			},
			"realtime": func(ctx context.Context) error {
				stopBridge()
				registry.CloseAll()
				if redisClient != nil {
					return redisClient.Close()
				}
				return nil
			},
			"database": func(ctx context.Context) error {
				return database.Conn.Close()
			},
		},
	)
	exitCode := <-wait
	log.Printf("exited with code: %d", exitCode)
	os.Exit(exitCode)
}
