package app

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"readingflow/internal/api"
	"readingflow/internal/bot"
	"readingflow/internal/config"
	"readingflow/internal/offline"
	"readingflow/internal/storage"
	"readingflow/internal/storage/badgerkv"
	"readingflow/internal/storage/ch"
	"readingflow/internal/storage/sqlite"
	"readingflow/internal/storage/stubs"
	"readingflow/internal/tracker"
	"readingflow/web"
)

// App represents the application
type App struct {
	config  *config.Config
	logger  *zap.Logger
	db      storage.Storage
	badger  *badgerkv.BadgerDB // set only for the badger backend
	tracker *tracker.Tracker
	worker  *offline.Worker
	bot     *bot.Bot
	mux     *http.ServeMux
	server  *http.Server

	ctx    context.Context
	cancel context.CancelFunc
}

// New creates and initializes a new application instance from the environment
func New() (*App, error) {
	// Load .env file if it exists
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using system environment variables")
	}

	cfg, err := config.LoadFromEnv()
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	logger, err := newLogger(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}

	return NewWithConfig(cfg, logger)
}

// NewWithConfig wires the application from an already loaded configuration
func NewWithConfig(cfg *config.Config, logger *zap.Logger) (*App, error) {
	ctx, cancel := context.WithCancel(context.Background())
	app := &App{
		config: cfg,
		logger: logger,
		ctx:    ctx,
		cancel: cancel,
	}

	logger.Info("Starting ReadingFlow...", zap.String("storage_backend", cfg.StorageBackend))

	if err := app.initStorage(); err != nil {
		cancel()
		return nil, err
	}

	if err := app.initTracker(); err != nil {
		app.closeStorage()
		cancel()
		return nil, err
	}

	app.initOffline()

	if err := app.initBot(); err != nil {
		app.closeStorage()
		cancel()
		return nil, err
	}

	app.initHTTPServer()

	return app, nil
}

func newLogger(level string) (*zap.Logger, error) {
	if level == "debug" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// initStorage opens the configured blob store
func (a *App) initStorage() error {
	var db storage.Storage

	switch a.config.StorageBackend {
	case config.BackendMemory:
		a.logger.Info("Using in-memory storage; data is lost on exit")
		db = stubs.NewMockDB()

	case config.BackendSQLite:
		a.logger.Info("Opening SQLite database", zap.String("path", a.config.SQLitePath))
		sqliteDB, err := sqlite.NewSQLiteDB(a.config.SQLitePath)
		if err != nil {
			return fmt.Errorf("failed to open SQLite: %w", err)
		}
		db = sqliteDB

	case config.BackendClickHouse:
		chCfg := a.config.ClickHouse
		a.logger.Info("Connecting to ClickHouse",
			zap.String("host", chCfg.Host),
			zap.Int("port", chCfg.Port),
			zap.String("database", chCfg.Database),
			zap.String("user", chCfg.User),
			zap.Bool("tls", chCfg.UseTLS),
		)
		clickhouseDB, err := ch.NewClickHouseDB(chCfg.Host, chCfg.Port, chCfg.Database, chCfg.User, chCfg.Password, chCfg.UseTLS)
		if err != nil {
			return fmt.Errorf("failed to connect to ClickHouse: %w", err)
		}
		db = clickhouseDB

	default:
		a.logger.Info("Opening BadgerDB", zap.String("path", a.config.BadgerPath))
		badgerCfg := badgerkv.DefaultConfig(a.config.BadgerPath)
		badgerCfg.Logger = a.logger
		badgerDB, err := badgerkv.Open(badgerCfg)
		if err != nil {
			return fmt.Errorf("failed to open BadgerDB: %w", err)
		}
		a.badger = badgerDB
		db = badgerDB
	}

	if err := db.Initialize(a.ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	a.logger.Info("Database initialized successfully")

	a.db = db
	return nil
}

// initTracker loads persisted state into the tracker
func (a *App) initTracker() error {
	a.tracker = tracker.New(tracker.NewStore(a.db, a.logger), a.logger)
	if err := a.tracker.Load(a.ctx); err != nil {
		return fmt.Errorf("failed to load state: %w", err)
	}

	snapshot := a.tracker.Snapshot()
	a.logger.Info("Tracker ready",
		zap.Int("books", len(snapshot.Books)),
		zap.Int("readings", len(snapshot.Readings)),
		zap.Strings("achievements", snapshot.Achievements),
	)
	return nil
}

// initOffline installs the asset cache in front of the web shell
func (a *App) initOffline() {
	var cache offline.CacheProvider = offline.NewMemoryCache()
	if a.badger != nil {
		cache = offline.NewBadgerCache(a.badger.DB(), a.config.CacheVersion)
	}

	var fetcher offline.Fetcher = &offline.FSFetcher{FS: web.Content}
	if a.config.AssetOrigin != "" {
		a.logger.Info("Serving assets from origin", zap.String("origin", a.config.AssetOrigin))
		fetcher = offline.NewHTTPFetcher(a.config.AssetOrigin)
	}

	a.worker = offline.NewWorker(a.config.CacheVersion, cache, fetcher, a.logger)
	a.worker.Install(a.ctx)
}

// initBot initializes the Telegram bot when a token is configured
func (a *App) initBot() error {
	if a.config.TelegramToken == "" {
		a.logger.Info("TELEGRAM_BOT_TOKEN not set, bot disabled")
		return nil
	}

	telegramBot, err := bot.NewBot(a.config.TelegramToken, a.tracker, a.config.AllowedUserIDs, a.logger)
	if err != nil {
		return fmt.Errorf("failed to create Telegram bot: %w", err)
	}
	a.logger.Info("Bot created successfully", zap.Int64s("allowed_users", a.config.AllowedUserIDs))

	a.bot = telegramBot
	return nil
}

// initHTTPServer builds the mux: health, metrics, JSON API and the offline shell
func (a *App) initHTTPServer() {
	mux := http.NewServeMux()

	// Health check endpoint
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "OK")
	})

	mux.Handle("/metrics", promhttp.Handler())

	api.NewHTTPServer(a.tracker, a.logger).RegisterRoutes(mux)

	// Webhook endpoint (only used in webhook mode)
	if a.bot != nil && a.config.WebhookMode {
		mux.HandleFunc("/telegram-webhook", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				w.WriteHeader(http.StatusMethodNotAllowed)
				return
			}

			var update tgbotapi.Update
			if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
				a.logger.Warn("Error decoding webhook update", zap.Error(err))
				w.WriteHeader(http.StatusBadRequest)
				return
			}

			// Process update in background to respond quickly to Telegram
			go a.bot.HandleUpdate(a.ctx, update)

			w.WriteHeader(http.StatusOK)
		})
	}

	mux.Handle("/", a.worker)

	a.mux = mux
	a.server = &http.Server{
		Addr:         ":" + a.config.Port,
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
}

// Handler returns the application's HTTP handler
func (a *App) Handler() http.Handler {
	return a.mux
}

// Run starts the application and blocks until shutdown
func (a *App) Run() error {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		a.logger.Info("Starting HTTP server", zap.String("port", a.config.Port))
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.logger.Error("HTTP server error", zap.Error(err))
		}
	}()

	go a.tracker.RunTimer(a.ctx, a.config.AchievementInterval)

	if a.bot != nil {
		if a.config.WebhookMode {
			if err := a.bot.StartWebhook(a.config.WebhookURL); err != nil {
				a.Shutdown()
				return fmt.Errorf("failed to setup webhook: %w", err)
			}
			a.logger.Info("Webhook configured. Bot will receive updates via HTTP endpoint /telegram-webhook")
		} else {
			go func() {
				if err := a.bot.Start(a.ctx); err != nil {
					a.logger.Error("Bot stopped with error", zap.Error(err))
				}
			}()
		}
	}

	select {
	case <-sigChan:
	case <-a.ctx.Done():
	}

	a.logger.Info("Shutting down...")
	return a.Shutdown()
}

// Shutdown gracefully shuts down the application
func (a *App) Shutdown() error {
	a.cancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("HTTP server shutdown error", zap.Error(err))
	}

	if err := a.closeStorage(); err != nil {
		return err
	}

	a.logger.Info("Shutdown complete")
	a.logger.Sync()
	return nil
}

func (a *App) closeStorage() error {
	if a.db == nil {
		return nil
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("Error closing database", zap.Error(err))
		return err
	}
	a.db = nil
	return nil
}
