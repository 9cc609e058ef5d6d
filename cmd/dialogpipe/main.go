// DialogPipe is a turn-based conversational bug report service. It drives a
// dialog stack over a messaging channel (HTTP API, Twilio SMS or WhatsApp),
// persisting conversation state between turns.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/dialogpipe/dialogpipe/internal/api"
	"github.com/dialogpipe/dialogpipe/internal/bot"
	"github.com/dialogpipe/dialogpipe/internal/dialog"
	"github.com/dialogpipe/dialogpipe/internal/dialogs"
	"github.com/dialogpipe/dialogpipe/internal/lockfile"
	"github.com/dialogpipe/dialogpipe/internal/messaging"
	"github.com/dialogpipe/dialogpipe/internal/recognizer"
	"github.com/dialogpipe/dialogpipe/internal/scheduler"
	"github.com/dialogpipe/dialogpipe/internal/store"
	"github.com/dialogpipe/dialogpipe/internal/twiliosms"
	"github.com/dialogpipe/dialogpipe/internal/util"
	"github.com/dialogpipe/dialogpipe/internal/whatsapp"
)

// Channel names accepted by -channel.
const (
	channelHTTP     = "http"
	channelTwilio   = "twilio"
	channelWhatsApp = "whatsapp"
)

// Config holds all configuration values loaded from environment variables.
type Config struct {
	DatabaseDSN   string
	StateDir      string
	APIAddr       string
	Channel       string
	OpenAIKey     string
	WhatsAppDBDSN string
	QROutput      string
	Debug         bool
}

// Flags holds all command-line flag values.
type Flags struct {
	DBDSN         *string
	StateDir      *string
	APIAddr       *string
	Channel       *string
	WhatsAppDBDSN *string
	QROutput      *string
	NumericCode   *bool
	Debug         *bool
}

func main() {
	cfg := loadEnvironmentConfig()
	flags := parseCommandLineFlags(cfg)
	initializeLogger(*flags.Debug)

	slog.Info("DialogPipe starting", "channel", *flags.Channel, "api_addr", *flags.APIAddr)

	if err := run(cfg, flags); err != nil {
		slog.Error("DialogPipe failed", "error", err)
		os.Exit(1)
	}
}

// initializeLogger sets up structured logging on stderr.
func initializeLogger(debug bool) {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads .env if present and reads configuration from
// environment variables.
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("main: no .env file loaded", "error", err)
	}

	cfg := Config{
		DatabaseDSN:   os.Getenv("DATABASE_URL"),
		StateDir:      os.Getenv("DIALOGPIPE_STATE_DIR"),
		APIAddr:       os.Getenv("API_ADDR"),
		Channel:       os.Getenv("DIALOGPIPE_CHANNEL"),
		OpenAIKey:     os.Getenv("OPENAI_API_KEY"),
		WhatsAppDBDSN: os.Getenv("WHATSAPP_DB_DSN"),
		QROutput:      os.Getenv("WHATSAPP_QR_OUTPUT"),
		Debug:         util.ParseBoolEnv("DIALOGPIPE_DEBUG", false),
	}

	if cfg.StateDir == "" {
		cfg.StateDir = "/var/lib/dialogpipe"
	}
	if cfg.DatabaseDSN == "" {
		cfg.DatabaseDSN = filepath.Join(cfg.StateDir, "dialogpipe.db")
	}
	if cfg.APIAddr == "" {
		cfg.APIAddr = api.DefaultAddr
	}
	if cfg.Channel == "" {
		cfg.Channel = channelHTTP
	}
	return cfg
}

// parseCommandLineFlags defines and parses flags, using environment values as
// defaults.
func parseCommandLineFlags(cfg Config) Flags {
	flags := Flags{
		DBDSN:         flag.String("db-dsn", cfg.DatabaseDSN, "Database DSN (SQLite path or postgres:// URL)"),
		StateDir:      flag.String("state-dir", cfg.StateDir, "Directory for state files"),
		APIAddr:       flag.String("api-addr", cfg.APIAddr, "API server listen address"),
		Channel:       flag.String("channel", cfg.Channel, "Messaging channel: http, twilio or whatsapp"),
		WhatsAppDBDSN: flag.String("wa-db-dsn", cfg.WhatsAppDBDSN, "WhatsApp session database DSN"),
		QROutput:      flag.String("qr-output", cfg.QROutput, "File to write the WhatsApp QR code to (default stdout)"),
		NumericCode:   flag.Bool("numeric-code", false, "Print a numeric WhatsApp login code instead of a QR code"),
		Debug:         flag.Bool("debug", cfg.Debug, "Enable debug logging"),
	}
	flag.Parse()
	return flags
}

// ensureDirectoriesExist creates the state directory when the store is
// file-backed.
func ensureDirectoriesExist(flags Flags) error {
	if store.DetectDSNType(*flags.DBDSN) == "postgres" {
		return nil
	}
	if err := os.MkdirAll(*flags.StateDir, 0755); err != nil {
		return fmt.Errorf("failed to create state directory %s: %w", *flags.StateDir, err)
	}
	return nil
}

// buildStore opens the persistence backend matching the DSN type.
func buildStore(flags Flags) (store.Store, error) {
	dsn := *flags.DBDSN
	if store.DetectDSNType(dsn) == "postgres" {
		slog.Info("main: using PostgreSQL store")
		return store.NewPostgresStore(store.WithPostgresDSN(dsn))
	}
	slog.Info("main: using SQLite store", "path", dsn)
	return store.NewSQLiteStore(store.WithSQLiteDSN(dsn))
}

// buildMessagingService constructs the channel adapter named by -channel.
func buildMessagingService(flags Flags) (messaging.Service, error) {
	switch *flags.Channel {
	case channelWhatsApp:
		waOpts := []whatsapp.Option{}
		if *flags.WhatsAppDBDSN != "" {
			waOpts = append(waOpts, whatsapp.WithDBDSN(*flags.WhatsAppDBDSN))
		} else {
			waOpts = append(waOpts, whatsapp.WithDBDSN(filepath.Join(*flags.StateDir, "whatsmeow.db")))
		}
		if *flags.QROutput != "" {
			waOpts = append(waOpts, whatsapp.WithQRCodeOutput(*flags.QROutput))
		}
		if *flags.NumericCode {
			waOpts = append(waOpts, whatsapp.WithNumericCode())
		}
		waClient, err := whatsapp.NewClient(waOpts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create WhatsApp client: %w", err)
		}
		return messaging.NewWhatsAppService(waClient), nil
	case channelTwilio:
		twClient, err := twiliosms.NewClient()
		if err != nil {
			return nil, fmt.Errorf("failed to create Twilio client: %w", err)
		}
		return messaging.NewTwilioService(twClient), nil
	case channelHTTP:
		return messaging.NewInMemoryService(), nil
	default:
		return nil, fmt.Errorf("unknown channel %q", *flags.Channel)
	}
}

// buildRecognizer creates the intent recognizer when an API key is available.
// Without one the bot falls back to routing every message to the greeting.
func buildRecognizer(cfg Config) recognizer.Recognizer {
	if cfg.OpenAIKey == "" {
		slog.Warn("main: OPENAI_API_KEY not set, intent recognition disabled")
		return nil
	}
	client, err := recognizer.NewClient(recognizer.WithAPIKey(cfg.OpenAIKey))
	if err != nil {
		slog.Warn("main: recognizer unavailable, intent recognition disabled", "error", err)
		return nil
	}
	return client
}

func run(cfg Config, flags Flags) error {
	if err := ensureDirectoriesExist(flags); err != nil {
		return err
	}

	lock, err := lockfile.AcquireLock(*flags.StateDir)
	if err != nil {
		return err
	}
	defer lock.Release()

	st, err := buildStore(flags)
	if err != nil {
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer st.Close()

	msgService, err := buildMessagingService(flags)
	if err != nil {
		return err
	}
	defer func() {
		if err := msgService.Stop(); err != nil {
			slog.Error("main: messaging service stop failed", "error", err)
		}
	}()

	set := dialog.NewDialogSet()
	if err := dialogs.Register(set); err != nil {
		return fmt.Errorf("failed to register dialogs: %w", err)
	}
	stateManager := dialog.NewStoreBasedStateManager(st)

	timer := dialog.NewSimpleTimer()
	defer timer.Stop()

	botOpts := []bot.Option{
		bot.WithMessagingService(msgService),
		bot.WithStore(st),
		bot.WithTimer(timer),
	}
	if rec := buildRecognizer(cfg); rec != nil {
		botOpts = append(botOpts, bot.WithRecognizer(rec))
	}
	b := bot.New(set, stateManager, botOpts...)

	sched := scheduler.NewScheduler()
	defer sched.Stop()

	apiOpts := []api.Option{
		api.WithAddr(*flags.APIAddr),
		api.WithBot(b),
		api.WithStateManager(stateManager),
		api.WithStore(st),
		api.WithMessagingService(msgService),
		api.WithScheduler(sched),
	}
	if twSvc, ok := msgService.(*messaging.TwilioService); ok {
		apiOpts = append(apiOpts, api.WithTwilioWebhook(twSvc))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The server's bot loop starts the messaging service itself.
	return api.NewServer(apiOpts...).Run(ctx)
}
