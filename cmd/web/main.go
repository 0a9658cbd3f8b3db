// cmd/web/main.go
//
// Mailroom – HTTP entry point and operator commands.
//
// Start-up sequence
// -----------------
//
//  1. Parse the command line (serve is the default command).
//
//  2. Load `<config dir>/.env` when present.  Real environment variables
//     always win over the file.
//
//  3. Resolve settings for APP_ENVIRONMENT.  `vault:` references are
//     resolved through Vault when VAULT_ADDR is set.  Any failure here is
//     fatal, and no listener is bound.
//
//  4. Start the daily rotating logger (tees to console in a TTY) and install
//     it globally.
//
//  5. Run the chosen command:
//
//     • serve     – lazy pool, bind listener, serve until SIGINT/SIGTERM
//     • createdb  – connect without a database name, CREATE DATABASE
//     • migrate   – apply embedded schema migrations
//
// Large comment blocks are framed by blank “//” lines; inline comments use
// a single “//”.
package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/yanizio/mailroom/internal/config"
	"github.com/yanizio/mailroom/internal/logger"
	"github.com/yanizio/mailroom/internal/vault"
)

func main() {
	app := kingpin.New("mailroom", "Newsletter subscription service.")
	configDir := app.Flag("config-dir", "Directory holding config.<environment>.yml files.").
		Default("configuration").Envar("MAILROOM_CONFIG_DIR").String()
	wait := app.Flag("wait", "How long createdb and migrate wait for the server to accept connections.").
		Default("30s").Duration()

	serveCmd := app.Command("serve", "Run the HTTP server.").Default()
	createCmd := app.Command("createdb", "Create the configured database if it does not exist.")
	migrateCmd := app.Command("migrate", "Apply pending schema migrations.")

	cmd := kingpin.MustParse(app.Parse(os.Args[1:]))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	boot, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "start bootstrap logger: %v\n", err)
		os.Exit(1)
	}

	cfg, err := loadSettings(ctx, *configDir, boot)
	if err != nil {
		boot.Error("configuration failed", zap.Error(err))
		_ = boot.Sync()
		os.Exit(1)
	}

	log, err := logger.New(cfg.Log, runningInTTY())
	if err != nil {
		boot.Error("start logger", zap.Error(err))
		_ = boot.Sync()
		os.Exit(1)
	}
	undo := zap.ReplaceGlobals(log)

	switch cmd {
	case serveCmd.FullCommand():
		err = serve(ctx, cfg, log)
	case createCmd.FullCommand():
		err = createDB(ctx, cfg, *wait, log)
	case migrateCmd.FullCommand():
		err = migrate(ctx, cfg, *wait, log)
	}

	if err != nil {
		log.Error("command failed", zap.String("command", cmd), zap.Error(err))
	}
	undo()
	_ = log.Sync()
	if err != nil {
		os.Exit(1)
	}
}

// loadSettings reads the optional .env file and resolves configuration.
func loadSettings(ctx context.Context, dir string, log *zap.Logger) (*config.Settings, error) {
	envFile := filepath.Join(dir, ".env")
	if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load %s: %w", envFile, err)
	}

	opts := []config.Option{config.WithLogger(log)}
	if os.Getenv("VAULT_ADDR") != "" {
		cli, err := vault.New(ctx, log)
		if err != nil {
			return nil, err
		}
		opts = append(opts, config.WithSecrets(cli))
	}
	return config.ResolveFromEnv(ctx, dir, opts...)
}

// runningInTTY returns true when stdout is a character device.
func runningInTTY() bool {
	fi, err := os.Stdout.Stat()
	if err != nil {
		return false
	}
	return fi.Mode()&os.ModeCharDevice != 0
}

// shutdownGrace bounds how long in-flight requests may run after a signal.
const shutdownGrace = 10 * time.Second
