package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"github.com/mohsenfayyazi/billder/cmd"
	"github.com/mohsenfayyazi/billder/config"
	"github.com/mohsenfayyazi/billder/database"
	"github.com/mohsenfayyazi/billder/handlers"
	"github.com/mohsenfayyazi/billder/logger"
	"github.com/mohsenfayyazi/billder/processor"
	"github.com/mohsenfayyazi/billder/session"
	"github.com/mohsenfayyazi/billder/telemetry"
)

func main() {
	// .env is optional; real environment variables win
	envErr := godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	if err := logger.Setup(cfg.GetLoggerConfig()); err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to set up logging: %v\n", err)
		os.Exit(1)
	}
	if envErr != nil {
		log.Debug().Err(envErr).Msg("no .env file loaded")
	}

	tracer := telemetry.Noop()
	if cfg.TracingEnabled() {
		tracer = telemetry.NewAeonis("billder", cfg.AeonisEndpoint, cfg.AeonisAPIKey)
	}
	handlers.SetTracer(tracer)

	if err := database.ConnectDatabase(database.Options{
		Driver:   cfg.DBDriver,
		DSN:      cfg.DatabaseURL,
		LogLevel: cfg.GormLogLevel,
	}); err != nil {
		tracer.Shutdown()
		log.Fatal().Err(err).Msg("failed to open session store")
	}

	app := &cmd.App{
		Config: cfg,
		Store:  session.NewGormStore(database.DB),
		Hub:    session.NewHub(),
	}
	if cfg.StripeEnabled() {
		app.Tokenizer = processor.NewStripeTokenizer(cfg.StripeSecretKey, nil)
	}
	err = cmd.Execute(app)
	tracer.Shutdown()
	if err != nil {
		os.Exit(1)
	}
}
