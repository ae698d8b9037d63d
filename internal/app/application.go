package app

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"sync"

	"classboard/internal/api"
	"classboard/internal/auth"
	"classboard/internal/broadcast"
	"classboard/internal/config"
	"classboard/internal/database"
	"classboard/internal/liveclass"
	"classboard/internal/websocket"
	pkgdatabase "classboard/pkg/database"
)

// Application owns every long-lived component and wires them together in
// dependency order: storage first, then the connection registry and
// broadcaster, then the state machine, then the HTTP surface on top.
type Application struct {
	config *config.Config

	dbManager   *database.Manager
	registry    *websocket.Registry
	broadcaster *broadcast.Broadcaster
	liveClass   *liveclass.Manager
	tokens      *auth.TokenIssuer
	apiServer   *api.Server
	wsHandler   *websocket.Handler
	httpServer  *http.Server

	mu      sync.Mutex
	started bool
}

// NewApplication builds the full component graph from configuration. Nothing
// starts listening until Start is called.
func NewApplication(cfg *config.Config) (*Application, error) {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	app := &Application{config: cfg}

	log.Printf("Initializing database: path=%s", cfg.Database.Path)
	dbConfig := pkgdatabase.DefaultConfig()
	dbConfig.DatabasePath = cfg.Database.Path
	dbConfig.MigrationsPath = cfg.Database.MigrationsPath
	dbManager, err := database.NewManager(dbConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	app.dbManager = dbManager

	log.Printf("Applying migrations: path=%s", cfg.Database.MigrationsPath)
	migrationManager := pkgdatabase.NewMigrationManager(dbManager.GetDB(), cfg.Database.MigrationsPath)
	if err := migrationManager.ApplyMigrations(); err != nil {
		_ = dbManager.Close()
		return nil, fmt.Errorf("failed to apply migrations: %w", err)
	}
	if err := migrationManager.ValidateSchema(); err != nil {
		_ = dbManager.Close()
		return nil, fmt.Errorf("schema validation failed: %w", err)
	}

	// Migrations guarantee tables and indexes; the structural check catches a
	// database whose columns drifted from what the Go structs expect.
	schemaValidator := pkgdatabase.NewSchemaValidator(dbManager.GetDB())
	if err := schemaValidator.ValidateTableStructure(); err != nil {
		_ = dbManager.Close()
		return nil, fmt.Errorf("schema structure validation failed: %w", err)
	}

	app.registry = websocket.NewRegistry()
	app.broadcaster = broadcast.NewBroadcaster(app.registry)
	app.liveClass = liveclass.NewManager(dbManager, app.broadcaster)
	app.tokens = auth.NewTokenIssuer(cfg.Auth.JWTSecret)
	app.apiServer = api.NewServer(app.liveClass, dbManager, app.registry, app.tokens, nil)
	app.wsHandler = websocket.NewHandler(app.registry, dbManager,
		cfg.WebSocket.PingInterval, cfg.WebSocket.ReadTimeout)

	mux := http.NewServeMux()
	mux.Handle("/api/", app.apiServer)
	mux.Handle("/health", app.apiServer)
	mux.HandleFunc("/ws", app.wsHandler.HandleWebSocket)

	app.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      mux,
		ReadTimeout:  cfg.HTTP.ReadTimeout,
		WriteTimeout: cfg.HTTP.WriteTimeout,
	}

	return app, nil
}

// Start begins serving. It returns when the listener fails or Stop shuts the
// server down; a clean shutdown returns nil.
func (a *Application) Start() error {
	a.mu.Lock()
	if a.started {
		a.mu.Unlock()
		return fmt.Errorf("application already started")
	}
	a.started = true
	a.mu.Unlock()

	log.Printf("Server listening: addr=%s", a.httpServer.Addr)

	if err := a.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("HTTP server failed: %w", err)
	}
	return nil
}

// Stop shuts the application down in reverse dependency order: stop accepting
// requests, then close storage. In-flight requests get the context's grace
// period.
func (a *Application) Stop(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if !a.started {
		return nil
	}
	a.started = false

	log.Printf("Shutting down HTTP server")
	var firstErr error
	if err := a.httpServer.Shutdown(ctx); err != nil {
		firstErr = fmt.Errorf("HTTP shutdown failed: %w", err)
	}

	log.Printf("Closing database")
	if err := a.dbManager.Close(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("database close failed: %w", err)
	}

	return firstErr
}

// LiveClass exposes the state machine for embedding callers.
func (a *Application) LiveClass() *liveclass.Manager {
	return a.liveClass
}

// Registry exposes connection statistics for diagnostics.
func (a *Application) Registry() *websocket.Registry {
	return a.registry
}
