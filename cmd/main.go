package main

import (
	"context"
	"database/sql"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/viper"

	"obd_diagnostics/internal/decode"
	"obd_diagnostics/internal/dispatcher"
	"obd_diagnostics/internal/ecu"
	"obd_diagnostics/internal/handlers"
	"obd_diagnostics/internal/logger"
	"obd_diagnostics/internal/manufacturers"
	"obd_diagnostics/internal/repository"
	"obd_diagnostics/internal/repository/db"
	"obd_diagnostics/internal/server"
	"obd_diagnostics/internal/service"
	"obd_diagnostics/internal/session"
)

func main() {
	// init logger
	log := logger.Get(logger.InfoLevel)

	// load config.yml
	if err := loadConfig(); err != nil {
		log.Fatalw("error reading config", "err", err)
	}

	// open DB
	sqlDB, err := openDB(log)
	if err != nil {
		log.Fatalw("failed to init sqlite", "err", err)
	}
	defer func() {
		if cerr := sqlDB.Close(); cerr != nil {
			log.Fatalw("failed to close sqlite", "err", cerr)
		}
	}()

	// wire dependencies
	registry := decode.NewRegistry()
	manufacturers.RegisterAll(registry)

	disp := dispatcher.New(decode.NewDecoder(registry), viper.GetDuration("obd.command_timeout"), log)
	scanner := ecu.NewScanner(disp, log)

	repos := repository.NewRepository(sqlDB, backupDir())
	engine := session.NewEngine(disp, scanner, repos.BackupRepo, repos.EventRepo, log)

	services := service.NewService(service.Deps{
		Dispatcher: disp,
		Scanner:    scanner,
		Engine:     engine,
		Registry:   registry,
		Repos:      repos,
		Log:        log,
		SigningKey: viper.GetString("auth.signing_key"),
		LiveTTL:    viper.GetDuration("obd.live_ttl"),
	})
	apiHandler := handlers.NewHandler(services, log)

	// start HTTP server
	srv := &server.Server{}
	runHTTPServer(srv, viper.GetString("port"), apiHandler, log)

	// graceful shutdown
	waitForShutdown(srv, disp, engine, log)
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
		log.Infow("db.path not set in config; using default file", "default", "obd.db")
		dbPath = "obd.db"
	}
	return db.InitDB(dbPath)
}

func backupDir() string {
	dir := viper.GetString("backups.dir")
	if dir == "" {
		dir = "backups"
	}
	return dir
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
func waitForShutdown(srv *server.Server, disp *dispatcher.Dispatcher, engine *session.Engine, log *logger.Logger) {
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Infow("shutting down server...")

	// close the adapter link; pending commands fail fast
	disp.Disconnect()
	engine.Close()

	// allow in-flight requests to complete
	ctx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalw("server forced to shutdown", "err", err)
	}
}
