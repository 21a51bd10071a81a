package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"match-chat-backend/internal/config"
	"match-chat-backend/internal/handlers"
	"match-chat-backend/internal/identity"
	"match-chat-backend/internal/messaging"
	"match-chat-backend/internal/middleware"
	"match-chat-backend/internal/push"
	"match-chat-backend/internal/repository"
	"match-chat-backend/internal/services"
	"match-chat-backend/internal/store"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func Run() {
	_ = godotenv.Load()

	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "config.yaml"
	}

	// Load configuration
	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logger
	setupLogger(cfg.Log.Level)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Open the keyed tree
	tree, err := openTree(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to open store")
	}
	defer func() {
		if err := tree.Close(); err != nil {
			log.Error().Err(err).Msg("Failed to close store")
		}
	}()

	// Initialize repositories
	userRepo := repository.NewUserRepository(tree)
	matchRepo := repository.NewMatchRepository(tree)
	messageRepo := repository.NewMessageRepository(tree)
	credentialRepo := repository.NewCredentialRepository(tree)

	// Identity
	var google *identity.GoogleVerifier
	if cfg.Google.ClientID != "" {
		google = identity.NewGoogleVerifier(cfg.Google.ClientID, cfg.Google.JWKSURL)
	}
	provider := identity.NewLocalProvider(credentialRepo, google)

	// Photo storage
	s3cfg := services.S3Config{
		Region:    cfg.AWS.Region,
		Bucket:    cfg.AWS.S3Bucket,
		AccessKey: cfg.AWS.AccessKey,
		SecretKey: cfg.AWS.SecretKey,
		Endpoint:  cfg.AWS.Endpoint,
	}
	var uploader services.ObjectUploader
	if s3cfg.Bucket != "" {
		client, err := services.NewS3Client(ctx, s3cfg)
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create S3 client")
		}
		uploader = client
	} else {
		log.Warn().Msg("No S3 bucket configured, blob photo uploads disabled")
	}

	// Message channels
	platform, err := messaging.ParsePlatform(cfg.Messaging.Platform)
	if err != nil {
		log.Fatal().Err(err).Msg("Invalid messaging platform")
	}
	var primary messaging.Primary
	if cfg.Messaging.RelayURL != "" {
		relay := messaging.NewRelayChannel(messaging.RelayConfig{
			URL:   cfg.Messaging.RelayURL,
			Token: cfg.Messaging.RelayToken,
		})
		defer relay.Close()
		primary = relay
	}
	selector := messaging.NewSelector(messaging.NewDirect(messageRepo), primary, messaging.Config{
		Platform:      platform,
		FallbackDelay: cfg.Messaging.FallbackDelay,
		HistoryLimit:  cfg.Messaging.HistoryLimit,
	})

	// Initialize services
	userService := services.NewUserService(userRepo, provider, cfg.JWT.Secret, cfg.JWT.TokenTTL)
	matchService := services.NewMatchService(matchRepo, userRepo)
	photoService := services.NewPhotoService(userRepo, uploader, s3cfg)
	chatService := services.NewChatService(selector, userService)
	wsHub := services.NewWSHub()

	// Push delivery
	var pusher push.Pusher = push.LogPusher{}
	if cfg.APNS.KeyFile != "" {
		apns, err := push.NewAPNSPusher(push.APNSConfig{
			KeyFile:    cfg.APNS.KeyFile,
			KeyID:      cfg.APNS.KeyID,
			TeamID:     cfg.APNS.TeamID,
			Topic:      cfg.APNS.Topic,
			Production: cfg.APNS.Production,
		})
		if err != nil {
			log.Fatal().Err(err).Msg("Failed to create APNs client")
		}
		pusher = apns
	}
	dispatcher := push.NewDispatcher(userRepo, pusher, cfg.Push.QueueSize)
	dispatcher.Attach(tree)
	go func() {
		if err := dispatcher.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("Push dispatcher stopped")
		}
	}()

	// Initialize handlers
	router := NewRouter(Handlers{
		User:      handlers.NewUserHandler(userService),
		Match:     handlers.NewMatchHandler(matchService, userService, wsHub),
		Photo:     handlers.NewPhotoHandler(photoService),
		Chat:      handlers.NewChatHandler(chatService),
		WebSocket: handlers.NewWebSocketHandler(wsHub, userService, chatService),
	}, userService)

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
			Str("store", cfg.Store.Driver).
			Msg("Starting server")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	// Wait for interrupt signal for graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// Websocket connections are hijacked, so Shutdown does not wait for them.
	// Their read loops end when the process exits and close their sessions.
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}
	stop()

	log.Info().Msg("Server exited")
}

// Handlers groups the HTTP handlers mounted by NewRouter
type Handlers struct {
	User      *handlers.UserHandler
	Match     *handlers.MatchHandler
	Photo     *handlers.PhotoHandler
	Chat      *handlers.ChatHandler
	WebSocket *handlers.WebSocketHandler
}

// NewRouter mounts the API routes
func NewRouter(h Handlers, userService *services.UserService) http.Handler {
	r := chi.NewRouter()

	// Middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(corsMiddleware)

	// Routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Post("/auth/register", h.User.Register)
		r.Post("/auth/login", h.User.Login)
		r.Post("/auth/google", h.User.GoogleSignIn)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(userService))
			r.Post("/auth/logout", h.User.Logout)
			r.Get("/me", h.User.GetMe)
			r.Patch("/me", h.User.UpdateMe)
			r.Put("/me/push-token", h.User.SetPushToken)
			r.Post("/me/photo", h.Photo.UploadProfilePhoto)

			r.Get("/candidates", h.Match.Candidates)
			r.Post("/likes/{target_id}", h.Match.Like)
			r.Post("/passes/{target_id}", h.Match.Pass)
			r.Get("/matches", h.Match.Matches)

			r.Get("/conversations/{peer_id}/messages", h.Chat.ListMessages)
			r.Post("/conversations/{peer_id}/messages", h.Chat.SendMessage)
			r.Post("/deeplink", h.Chat.DeepLink)
		})
	})

	// WebSocket route
	r.Get("/ws", h.WebSocket.HandleWebSocket)

	return r
}

// openTree opens the configured backend and wraps it in a keyed tree
func openTree(ctx context.Context, cfg *config.Config) (*store.KVTree, error) {
	switch cfg.Store.Driver {
	case "badger":
		kv, err := store.OpenBadger(cfg.Store.BadgerPath)
		if err != nil {
			return nil, err
		}
		log.Info().Str("path", cfg.Store.BadgerPath).Msg("Badger store opened")
		return store.NewKVTree(kv), nil
	case "postgres":
		db, err := pgxpool.New(ctx, cfg.Database.DSN())
		if err != nil {
			return nil, fmt.Errorf("failed to connect to database: %w", err)
		}
		if err := db.Ping(ctx); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to ping database: %w", err)
		}
		kv := store.NewPostgresKV(db)
		if err := kv.Migrate(ctx); err != nil {
			db.Close()
			return nil, err
		}
		log.Info().Msg("Database connection established")
		return store.NewKVTree(kv), nil
	default:
		log.Warn().Msg("Using in-memory store, data is lost on restart")
		return store.NewMemoryTree(), nil
	}
}

// setupLogger configures zerolog logger
func setupLogger(level string) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	switch level {
	case "debug":
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	case "info":
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	case "warn":
		zerolog.SetGlobalLevel(zerolog.WarnLevel)
	case "error":
		zerolog.SetGlobalLevel(zerolog.ErrorLevel)
	default:
		zerolog.SetGlobalLevel(zerolog.InfoLevel)
	}
}

// corsMiddleware handles CORS
func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, PATCH, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
