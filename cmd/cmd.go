package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"hallpass-backend/internal/config"
	"hallpass-backend/internal/handlers"
	"hallpass-backend/internal/jobs"
	"hallpass-backend/internal/middleware"
	"hallpass-backend/internal/models"
	"hallpass-backend/internal/queue"
	"hallpass-backend/internal/repository"
	"hallpass-backend/internal/services"
	"hallpass-backend/internal/store"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func Run() {
	// Load configuration
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	// Setup logger
	setupLogger(cfg.Log.Level)

	// Run database migrations
	if err := runMigrations(cfg.Database.DSN()); err != nil {
		log.Fatal().Err(err).Msg("Failed to run migrations")
	}

	// Connect to database
	db, err := pgxpool.New(context.Background(), cfg.Database.DSN())
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to connect to database")
	}
	defer db.Close()

	// Test database connection
	if err := db.Ping(context.Background()); err != nil {
		log.Fatal().Err(err).Msg("Failed to ping database")
	}
	log.Info().Msg("Database connection established")

	// Initialize repositories
	userRepo := repository.NewUserRepository(db)
	schoolRepo := repository.NewSchoolRepository(db)
	locks := store.NewUserLocks()

	// Initialize notification publishers
	wsHub := services.NewWSHub()
	publishers := services.MultiPublisher{wsHub}
	if cfg.AMQP.Enabled {
		publishers = append(publishers, queue.NewPublisher(cfg.AMQP.URL))
		log.Info().Msg("AMQP event publishing enabled")
	}

	// Initialize services
	userService := services.NewUserService(userRepo, schoolRepo, cfg.JWT.Secret)
	schoolService := services.NewSchoolService(schoolRepo, userRepo)
	passService := services.NewPassService(userRepo, schoolRepo, locks, publishers)

	// Initialize handlers
	authHandler := handlers.NewAuthHandler(userService)
	passHandler := handlers.NewPassHandler(passService)
	schoolHandler := handlers.NewSchoolHandler(schoolService)
	studentHandler := handlers.NewStudentHandler(userService)
	teacherHandler := handlers.NewTeacherHandler(userService)
	wsHandler := handlers.NewWebSocketHandler(wsHub, userService)

	// Start background sweepers
	sweepCtx, stopSweepers := context.WithCancel(context.Background())
	defer stopSweepers()
	expireJob := jobs.NewExpireJob(userRepo, locks, publishers, cfg.Passes.MaxActive(), cfg.Passes.SweepInterval())
	cleanupJob := jobs.NewCleanupJob(userRepo, locks, publishers, cfg.Passes.Grace(), cfg.Passes.SweepInterval())
	expireJob.Start(sweepCtx)
	cleanupJob.Start(sweepCtx)

	// Optional Redis client for rate limiting
	var rdb *redis.Client
	if cfg.Redis.Enabled {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Fatal().Err(err).Msg("Failed to ping redis")
		}
		log.Info().Msg("Redis connection established")
	}

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(corsMiddleware)
	r.Use(middleware.RateLimit(rdb, cfg.RateLimit.Limit, cfg.RateLimit.Window()))

	// Routes
	r.Route("/api/v1", func(r chi.Router) {
		// Public routes
		r.Post("/auth/login", authHandler.Login)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(middleware.AuthMiddleware(userService))

			r.Get("/auth/me", authHandler.Me)

			r.Post("/passes", passHandler.CreatePass)
			r.Post("/passes/start", passHandler.StartPass)
			r.Post("/passes/end", passHandler.EndPass)
			r.Post("/passes/cancel", passHandler.CancelPass)

			r.Get("/school", schoolHandler.GetSchool)
			r.Get("/school/destinations", schoolHandler.GetDestinations)
			r.Get("/school/teachers", schoolHandler.GetTeachers)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(models.RoleTeacher))
				r.Get("/teachers/passes", teacherHandler.ListPasses)
				r.Post("/teachers/autopass-locations", teacherHandler.AddAutoPassLocation)
				r.Delete("/teachers/autopass-locations/{location}", teacherHandler.RemoveAutoPassLocation)
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(models.RoleAdmin))
				r.Get("/students", studentHandler.ListStudents)
				r.Post("/students", studentHandler.CreateStudent)
				r.Delete("/students/{id}", studentHandler.DeleteStudent)
				r.Post("/teachers", teacherHandler.CreateTeacher)
				r.Post("/school/locations", schoolHandler.AddLocation)
				r.Post("/school/max-passes", schoolHandler.SetMaxPasses)
			})
		})
	})

	// WebSocket route
	r.Get("/ws", wsHandler.HandleWebSocket)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	// Prometheus metrics
	if cfg.Metrics.Enabled {
		r.Handle("/metrics", promhttp.Handler())
	}

	// Create HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("host", cfg.Server.Host).
			Int("port", cfg.Server.Port).
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

	// Stop the sweepers before the server drains
	stopSweepers()

	// Graceful shutdown with timeout
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	// Shutdown HTTP server
	if err := srv.Shutdown(ctx); err != nil {
		log.Error().Err(err).Msg("Server forced to shutdown")
	}

	log.Info().Msg("Server exited")
}

// runMigrations applies pending goose migrations from ./migrations.
func runMigrations(dsn string) error {
	db, err := goose.OpenDBWithDriver("pgx", dsn)
	if err != nil {
		return fmt.Errorf("failed to open migration connection: %w", err)
	}
	defer db.Close()

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
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
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Authorization, Content-Type")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
