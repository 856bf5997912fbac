package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"smartdate"
	"smartdate/internal/bus"
	"smartdate/internal/cache"
	"smartdate/internal/handlers"
	"smartdate/internal/logger"
	"smartdate/internal/normalize"
	"smartdate/internal/reconciler"
	"smartdate/internal/repository"
	"smartdate/internal/server"
	"smartdate/internal/service"
	"smartdate/internal/subscriber"

	"github.com/spf13/viper"
)

const reconcilerQueueSize = 64

func main() {
	// load config.yml
	if err := loadConfig(); err != nil {
		logger.Get(logger.InfoLevel).Fatalw("error reading config", "err", err)
	}

	// init logger with configured level
	log := logger.Get(viper.GetString("log.level"))

	// open DB
	db, err := openDB(log)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := db.Close(); cerr != nil {
			log.Errorw("failed to close sqlite", "err", cerr)
		}
	}()

	// ensure uploads directory exists
	uploadsDir := viper.GetString("uploads.dir")
	if uploadsDir == "" {
		uploadsDir = "uploads"
	}
	if err := os.MkdirAll(uploadsDir, 0o755); err != nil {
		log.Fatalw("failed to create uploads dir", "dir", uploadsDir, "err", err)
	}

	// wire dependencies
	repos := repository.NewRepository(db)
	latest := cache.NewLatest()
	events := bus.New()
	defer events.Close()

	sub := subscriber.New(subscriberConfig(), normalize.New(), latest, events, repos.Detections, log)
	services := service.NewService(repos, latest, sub, log)

	rec := reconciler.New(reconcilerConfig(), services.History, services.Stats, log)
	apiHandler := handlers.NewHandler(services, events, rec, uploadsDir, log)

	// context for background goroutines
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// start ingestion and reconciliation loops
	go sub.Run(ctx)

	push := make(chan smartdate.Detection, reconcilerQueueSize)
	if err := events.Subscribe("reconciler", push); err != nil {
		log.Fatalw("failed to subscribe reconciler", "err", err)
	}
	go rec.Run(ctx, push)

	// start HTTP server
	srv := &server.Server{}
	runHTTPServer(srv, viper.GetString("port"), apiHandler, log)

	// graceful shutdown
	waitForShutdown(cancel, srv, log)
}

func loadConfig() error {
	viper.AddConfigPath("configs") // configs/config.yml
	viper.SetConfigName("config")
	return viper.ReadInConfig()
}

// openDB initializes the SQLite database using configuration.
func openDB(log *logger.Logger) (*sql.DB, error) {
	dbPath := viper.GetString("db.path")
	if dbPath == "" {
		log.Infow("db.path not set in config; using default file", "default", "smartdate.db")
		dbPath = "smartdate.db"
	}
	return repository.InitDB(dbPath)
}

func subscriberConfig() subscriber.Config {
	return subscriber.Config{
		Broker:         viper.GetString("mqtt.broker"),
		ClientID:       viper.GetString("mqtt.client_id"),
		Topic:          viper.GetString("mqtt.topic"),
		Username:       viper.GetString("mqtt.username"),
		Password:       viper.GetString("mqtt.password"),
		ReconnectDelay: viper.GetDuration("mqtt.reconnect_delay"),
	}
}

func reconcilerConfig() reconciler.Config {
	return reconciler.Config{
		HistoryLimit:     viper.GetInt("reconciler.history_limit"),
		MinConfidence:    viper.GetInt("reconciler.min_confidence"),
		RollWindow:       viper.GetBool("reconciler.roll_window"),
		SnapshotInterval: viper.GetDuration("reconciler.snapshot_interval"),
		StatsInterval:    viper.GetDuration("reconciler.stats_interval"),
	}
}

// runHTTPServer runs the HTTP server in a separate goroutine.
func runHTTPServer(srv *server.Server, port string, handler *handlers.Handler, log *logger.Logger) {
	go func() {
		if port == "" {
			port = "8080"
		}
		if err := srv.Run(port, handler.InitRoutes()); err != nil {
			log.Fatalw("error starting server", "err", err)
		}
	}()
}

// waitForShutdown listens for termination signals and performs graceful shutdown.
func waitForShutdown(cancel context.CancelFunc, srv *server.Server, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// stop background goroutines (subscriber connection, retry timers,
	// reconciler tickers)
	cancel()

	// allow in-flight requests to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalw("server forced to shutdown", "err", err)
	}
}
