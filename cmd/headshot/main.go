package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/fortuna/headshot/internal/api/rest"
	"github.com/fortuna/headshot/internal/api/websocket"
	"github.com/fortuna/headshot/internal/browser"
	"github.com/fortuna/headshot/internal/cache"
	"github.com/fortuna/headshot/internal/ingest/reference"
	"github.com/fortuna/headshot/internal/patch"
	"github.com/fortuna/headshot/internal/publisher"
	"github.com/fortuna/headshot/internal/reconciliation"
	"github.com/fortuna/headshot/internal/scheduler"
	"github.com/fortuna/headshot/internal/store"
	"github.com/fortuna/headshot/internal/store/repository"
)

const (
	serviceName    = "headshot"
	serviceVersion = "1.0.0"
)

// Config is read from the environment
type Config struct {
	HostURL       string        `env:"HOST_URL" envDefault:"https://fantasy.premierleague.com/my-team"`
	ReferenceURL  string        `env:"REFERENCE_URL"`
	PhotoBaseURL  string        `env:"PHOTO_BASE_URL"`
	RedisURL      string        `env:"REDIS_URL" envDefault:"redis://localhost:6379"`
	AtlasDSN      string        `env:"ATLAS_DSN"`
	RESTPort      string        `env:"REST_PORT" envDefault:"8080"`
	WSPort        string        `env:"WS_PORT" envDefault:"8081"`
	ChromeURL     string        `env:"CHROME_URL"`
	Debounce      time.Duration `env:"DEBOUNCE" envDefault:"0s"`
	ProbeTimeout  time.Duration `env:"PROBE_TIMEOUT" envDefault:"5s"`
	CacheCapacity int           `env:"CACHE_CAPACITY" envDefault:"4096"`
	ExactNames    bool          `env:"EXACT_NAMES" envDefault:"false"`
	Headless      bool          `env:"HEADLESS" envDefault:"true"`
}

func main() {
	log.Printf("Starting %s v%s - FPL player headshots", serviceName, serviceVersion)

	config, err := env.ParseAs[Config]()
	if err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize Redis client with retry logic
	var redisCache *cache.RedisCache
	maxRetries := 30
	retryDelay := 2 * time.Second

	log.Println("Connecting to Redis...")
	for i := 0; i < maxRetries; i++ {
		redisCache, err = cache.NewRedisCache(config.RedisURL)
		if err == nil {
			break
		}

		if i < maxRetries-1 {
			log.Printf("Redis connection attempt %d/%d failed: %v (retrying in %v)", i+1, maxRetries, err, retryDelay)
			time.Sleep(retryDelay)
		} else {
			log.Fatalf("Failed to connect to Redis after %d attempts: %v", maxRetries, err)
		}
	}
	defer redisCache.Close()

	log.Println("✓ Connected to Redis")

	streamPublisher := publisher.NewRedisStreamPublisher(redisCache.Client())
	hub := websocket.NewHub()
	recorders := patch.MultiRecorder{streamPublisher, hub}

	// The audit log is optional
	var patchRepo *repository.PatchRepository
	var passRepo *repository.PassRepository
	var db *store.Database
	if config.AtlasDSN != "" {
		db, err = store.NewDatabase(config.AtlasDSN)
		if err != nil {
			log.Fatalf("Failed to connect to Atlas database: %v", err)
		}
		defer db.Close()
		log.Println("✓ Connected to Atlas database")

		if err := db.RunMigrations(); err != nil {
			log.Fatalf("Failed to run database migrations: %v", err)
		}
		patchRepo = repository.NewPatchRepository(db)
		passRepo = repository.NewPassRepository(db)
		recorders = append(recorders, patchRepo)
	} else {
		log.Println("⚠️  ATLAS_DSN not set; patch audit log disabled")
	}

	availability, err := cache.NewAvailability(ctx,
		cache.NewRedisStore(redisCache),
		cache.NewHTTPProber(config.ProbeTimeout),
		config.CacheCapacity,
		log.New(log.Writer(), "[cache] ", log.LstdFlags),
	)
	if err != nil {
		log.Fatalf("Failed to initialize availability cache: %v", err)
	}

	matcher := reconciliation.NewMatcher(reconciliation.WithExactNames(config.ExactNames))
	engine := patch.NewEngine(matcher, availability,
		patch.WithPhotoBaseURL(config.PhotoBaseURL),
		patch.WithRecorder(recorders),
	)

	// Open the host page
	session, err := browser.NewSession(ctx, browser.Config{
		RemoteURL: config.ChromeURL,
		Headless:  config.Headless,
	}, nil)
	if err != nil {
		log.Fatalf("Failed to start browser: %v", err)
	}
	defer session.Close()

	if err := session.Navigate(ctx, config.HostURL); err != nil {
		log.Fatalf("Failed to open %s: %v", config.HostURL, err)
	}
	log.Printf("✓ Opened %s", config.HostURL)

	orchestrator := scheduler.NewOrchestrator(
		reference.New(config.ReferenceURL, nil),
		engine,
		session,
		availability,
		&scheduler.Config{Debounce: config.Debounce, PassTimeout: 60 * time.Second},
		nil,
	)
	orchestrator.OnPass(streamPublisher.PublishPass)
	orchestrator.OnPass(hub.RecordPass)
	if passRepo != nil {
		orchestrator.OnPass(passRepo.Save)
	}

	go func() {
		err := orchestrator.Start(ctx)
		switch {
		case errors.Is(err, scheduler.ErrNoReferenceData):
			log.Println("⚠️  Headshots disabled: no reference data (status API stays up)")
		case err != nil:
			log.Printf("❌ Orchestrator error: %v", err)
		}
	}()

	log.Println("✓ Orchestrator started")

	// Initialize REST API server
	var patchLog rest.PatchLog
	if patchRepo != nil {
		patchLog = patchRepo
	}
	handler := rest.NewHandler(orchestrator, matcher, availability, patchLog, config.PhotoBaseURL)
	handler.AddHealthCheck("redis", redisCache.HealthCheck)
	handler.AddHealthCheck("chrome", func(ctx context.Context) error {
		_, err := session.Slots(ctx)
		return err
	})
	if db != nil {
		handler.AddHealthCheck("atlas", func(ctx context.Context) error { return db.HealthCheck() })
	}

	restServer := rest.NewServer(config.RESTPort, handler)
	go func() {
		log.Printf("Starting REST API server on port %s", config.RESTPort)
		if err := restServer.Start(); err != nil {
			log.Printf("REST server error: %v", err)
		}
	}()

	log.Printf("✓ REST API server listening on :%s", config.RESTPort)

	// Initialize WebSocket server
	wsServer := websocket.NewServer(hub)
	go func() {
		log.Printf("Starting WebSocket server on port %s", config.WSPort)
		if err := wsServer.Start(config.WSPort); err != nil {
			log.Printf("WebSocket server error: %v", err)
		}
	}()

	log.Printf("✓ WebSocket server listening on :%s", config.WSPort)
	log.Printf("✓ Headshot v%s started successfully", serviceVersion)
	log.Printf("  REST API: http://0.0.0.0:%s", config.RESTPort)
	log.Printf("  WebSocket: ws://0.0.0.0:%s", config.WSPort)

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	log.Println("Shutting down Headshot gracefully...")

	// Graceful shutdown
	orchestrator.Stop()
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := restServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("REST API server shutdown error: %v", err)
	}
	if err := wsServer.Shutdown(shutdownCtx); err != nil {
		log.Printf("WebSocket server shutdown error: %v", err)
	}

	log.Println("Headshot stopped")
}
