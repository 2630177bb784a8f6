package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/contentjet/contentjet/internal/app"
	"github.com/contentjet/contentjet/internal/config"
	"github.com/contentjet/contentjet/internal/logging"

	log "github.com/sirupsen/logrus"
)

// main runs the CLI entrypoint and exits on unrecoverable command errors.
func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if errRun := run(ctx, os.Args[1:]); errRun != nil {
		log.WithError(errRun).Error("command failed")
		stop()
		os.Exit(1)
	}
}

// run parses flags, loads config, and starts the API server or runs migrations.
func run(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("contentjet", flag.ContinueOnError)
	cfgPath := fs.String("config", "", "config file path (or env CONFIG_PATH)")
	port := fs.Int("port", 0, "server port (overrides config and PORT)")
	envFile := fs.String("env-file", ".env", "dotenv file loaded before config")
	migrateOnly := fs.Bool("migrate", false, "run database migrations and exit")
	if errParse := fs.Parse(args); errParse != nil {
		return errParse
	}

	if errEnv := config.LoadDotEnv(*envFile); errEnv != nil {
		return errEnv
	}

	path := os.Getenv(config.EnvConfigPath)
	if strings.TrimSpace(*cfgPath) != "" {
		path = *cfgPath
	}
	appCfg, err := config.Load(path)
	if err != nil {
		return err
	}
	if *port != 0 {
		if errValidate := validatePort(*port); errValidate != nil {
			return errValidate
		}
		appCfg.Port = *port
	}

	logging.Setup(appCfg.Log.Level, appCfg.Log.Format, os.Stdout)

	if *migrateOnly {
		if errMigrate := app.Migrate(ctx, appCfg); errMigrate != nil {
			return errMigrate
		}
		log.Info("migrations applied")
		return nil
	}
	return app.RunServer(ctx, appCfg)
}

func validatePort(port int) error {
	if port <= 0 || port > 65535 {
		return fmt.Errorf("invalid port: %d", port)
	}
	return nil
}
