package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/whatscommerce/whatscommerce/internal/api"
	"github.com/whatscommerce/whatscommerce/internal/catalog"
	"github.com/whatscommerce/whatscommerce/internal/commerce"
	"github.com/whatscommerce/whatscommerce/internal/conversation"
	"github.com/whatscommerce/whatscommerce/internal/events"
	"github.com/whatscommerce/whatscommerce/internal/lockfile"
	"github.com/whatscommerce/whatscommerce/internal/messages"
	"github.com/whatscommerce/whatscommerce/internal/messaging"
	"github.com/whatscommerce/whatscommerce/internal/metrics"
	"github.com/whatscommerce/whatscommerce/internal/models"
	"github.com/whatscommerce/whatscommerce/internal/orders"
	"github.com/whatscommerce/whatscommerce/internal/store"
	"github.com/whatscommerce/whatscommerce/internal/twiliowhatsapp"
	"github.com/whatscommerce/whatscommerce/internal/users"
	"github.com/whatscommerce/whatscommerce/internal/util"
	"github.com/whatscommerce/whatscommerce/internal/whatsapp"
)

// Default configuration constants
const (
	// DefaultStateDir is the default directory for WhatsCommerce state data
	DefaultStateDir = "/var/lib/whatscommerce"
	// DefaultDBFileName is the default SQLite database filename
	DefaultDBFileName = "whatscommerce.db"
)

func main() {
	initializeLogger()

	config := loadEnvironmentConfig()
	flags := parseCommandLineFlags(config)

	if err := ensureDirectoriesExist(flags); err != nil {
		slog.Error("Failed to create required directories", "error", err)
		os.Exit(1)
	}

	lock, err := lockfile.AcquireLock(*flags.stateDir)
	if err != nil {
		slog.Error("Failed to acquire state directory lock", "error", err)
		os.Exit(1)
	}
	defer lock.Release()

	if err := run(config, flags); err != nil {
		slog.Error("WhatsCommerce failed to run", "error", err)
		lock.Release()
		os.Exit(1)
	}
	slog.Info("WhatsCommerce exited successfully")
}

// run wires the modules together and serves until interrupted.
func run(config Config, flags Flags) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := buildStore(flags)
	if err != nil {
		return err
	}
	defer st.Close()

	gateway, err := buildCatalogGateway(config, flags)
	if err != nil {
		return err
	}

	backend, err := commerce.NewWooClient(
		commerce.WithBaseURL(*flags.wooURL),
		commerce.WithCredentials(*flags.wooKey, *flags.wooSecret),
	)
	if err != nil {
		return err
	}

	directory, err := users.NewWooClient(
		users.WithBaseURL(*flags.wooURL),
		users.WithCredentials(*flags.wooKey, *flags.wooSecret),
	)
	if err != nil {
		return err
	}

	var publisher orders.Publisher
	if *flags.kafkaBrokers != "" {
		kp, err := events.NewKafkaPublisher(events.WithBrokers(strings.Split(*flags.kafkaBrokers, ",")))
		if err != nil {
			// Order events are best-effort; run without them rather than refuse to start.
			slog.Error("Kafka publisher unavailable, order events disabled", "error", err)
		} else {
			defer kp.Close()
			publisher = kp
		}
	}
	assembly := orders.NewAssembly(backend, gateway, publisher)

	templates := messages.NewCatalog()
	engine := conversation.NewEngine(
		conversation.NewManager(st), directory, gateway, assembly, templates,
		conversation.WithSessionTimeout(time.Duration(*flags.sessionTimeoutMinutes)*time.Minute),
		conversation.WithMaxSearchResults(*flags.maxSearchResults),
		conversation.WithTransitionHook(func(from, to models.StateType) {
			metrics.RecordTransition(from, to)
			if to == models.StatePayment {
				metrics.RecordOrderCreated()
			}
		}),
	)

	msgService, err := buildMessagingService(config, flags)
	if err != nil {
		return err
	}

	apiOpts := buildAPIOptions(config, flags)
	server := api.NewServer(engine, msgService, st, templates, apiOpts...)
	return server.Run(ctx)
}

// Config holds environment configuration
type Config struct {
	DatabaseURL           string
	StateDir              string
	APIAddr               string
	PublicURL             string
	Transport             string
	WhatsAppDSN           string
	TwilioAuthToken       string
	WooURL                string
	WooKey                string
	WooSecret             string
	RedisAddr             string
	RedisPassword         string
	KafkaBrokers          string
	SessionTimeoutMinutes int
	MaxSearchResults      int
}

// Flags holds command line flag values
type Flags struct {
	stateDir              *string
	dbDSN                 *string
	apiAddr               *string
	publicURL             *string
	transport             *string
	whatsappDSN           *string
	qrOutput              *string
	numeric               *bool
	wooURL                *string
	wooKey                *string
	wooSecret             *string
	redisAddr             *string
	kafkaBrokers          *string
	sessionTimeoutMinutes *int
	maxSearchResults      *int
}

// initializeLogger sets up structured logging with debug level
func initializeLogger() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	slog.SetDefault(logger)
}

// loadEnvironmentConfig loads configuration from environment variables and .env file
func loadEnvironmentConfig() Config {
	if err := godotenv.Load(); err != nil {
		slog.Debug("failed to load .env file", "error", err)
	} else {
		slog.Debug("successfully loaded .env file")
	}

	config := Config{
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		StateDir:              os.Getenv("WHATSCOMMERCE_STATE_DIR"),
		APIAddr:               os.Getenv("API_ADDR"),
		PublicURL:             os.Getenv("PUBLIC_URL"),
		Transport:             os.Getenv("TRANSPORT"),
		WhatsAppDSN:           os.Getenv("WHATSAPP_DB_DSN"),
		TwilioAuthToken:       os.Getenv("TWILIO_AUTH_TOKEN"),
		WooURL:                os.Getenv("WOOCOMMERCE_URL"),
		WooKey:                os.Getenv("WOOCOMMERCE_KEY"),
		WooSecret:             os.Getenv("WOOCOMMERCE_SECRET"),
		RedisAddr:             os.Getenv("REDIS_ADDR"),
		RedisPassword:         os.Getenv("REDIS_PASSWORD"),
		KafkaBrokers:          os.Getenv("KAFKA_BROKERS"),
		SessionTimeoutMinutes: util.ParseIntEnv("SESSION_TIMEOUT_MINUTES", 30),
		MaxSearchResults:      util.ParseIntEnv("MAX_SEARCH_RESULTS", conversation.DefaultMaxSearchResults),
	}

	if config.StateDir == "" {
		config.StateDir = DefaultStateDir
		slog.Debug("No WHATSCOMMERCE_STATE_DIR set, using default", "default_state_dir", config.StateDir)
	}
	if config.Transport == "" {
		config.Transport = "twilio"
	}
	if config.DatabaseURL == "" {
		config.DatabaseURL = filepath.Join(config.StateDir, DefaultDBFileName)
		slog.Debug("No database DSN provided, defaulting to SQLite", "sqlite_path", config.DatabaseURL)
	}

	slog.Debug("environment variables loaded",
		"DATABASE_URL_SET", config.DatabaseURL != "",
		"WHATSCOMMERCE_STATE_DIR", config.StateDir,
		"API_ADDR", config.APIAddr,
		"TRANSPORT", config.Transport,
		"WOOCOMMERCE_URL_SET", config.WooURL != "",
		"REDIS_ADDR_SET", config.RedisAddr != "",
		"KAFKA_BROKERS_SET", config.KafkaBrokers != "")

	return config
}

// parseCommandLineFlags parses command line arguments with environment defaults
func parseCommandLineFlags(config Config) Flags {
	flags := Flags{
		stateDir:              flag.String("state-dir", config.StateDir, "state directory for WhatsCommerce data (overrides $WHATSCOMMERCE_STATE_DIR)"),
		dbDSN:                 flag.String("db-dsn", config.DatabaseURL, "conversation store DSN, SQLite path or postgres:// URL (overrides $DATABASE_URL)"),
		apiAddr:               flag.String("api-addr", config.APIAddr, "API server address (overrides $API_ADDR)"),
		publicURL:             flag.String("public-url", config.PublicURL, "externally visible base URL for webhook signature checks (overrides $PUBLIC_URL)"),
		transport:             flag.String("transport", config.Transport, "message transport: twilio or whatsmeow (overrides $TRANSPORT)"),
		whatsappDSN:           flag.String("whatsapp-db-dsn", config.WhatsAppDSN, "whatsmeow database DSN (overrides $WHATSAPP_DB_DSN)"),
		qrOutput:              flag.String("qr-output", "", "path to write whatsmeow login QR code"),
		numeric:               flag.Bool("numeric-code", false, "use numeric whatsmeow login code instead of QR code"),
		wooURL:                flag.String("woocommerce-url", config.WooURL, "WooCommerce store base URL (overrides $WOOCOMMERCE_URL)"),
		wooKey:                flag.String("woocommerce-key", config.WooKey, "WooCommerce consumer key (overrides $WOOCOMMERCE_KEY)"),
		wooSecret:             flag.String("woocommerce-secret", config.WooSecret, "WooCommerce consumer secret (overrides $WOOCOMMERCE_SECRET)"),
		redisAddr:             flag.String("redis-addr", config.RedisAddr, "Redis address for catalog caching, empty disables (overrides $REDIS_ADDR)"),
		kafkaBrokers:          flag.String("kafka-brokers", config.KafkaBrokers, "comma-separated Kafka brokers for order events, empty disables (overrides $KAFKA_BROKERS)"),
		sessionTimeoutMinutes: flag.Int("session-timeout-minutes", config.SessionTimeoutMinutes, "idle minutes before a conversation resets (overrides $SESSION_TIMEOUT_MINUTES)"),
		maxSearchResults:      flag.Int("max-search-results", config.MaxSearchResults, "maximum products in a search result list (overrides $MAX_SEARCH_RESULTS)"),
	}

	flag.Parse()

	slog.Debug("flags parsed",
		"stateDir", *flags.stateDir,
		"dbDSN_set", *flags.dbDSN != "",
		"apiAddr", *flags.apiAddr,
		"transport", *flags.transport,
		"sessionTimeoutMinutes", *flags.sessionTimeoutMinutes,
		"maxSearchResults", *flags.maxSearchResults)

	// Follow a relocated state directory when the DSN was derived from it.
	if *flags.dbDSN == config.DatabaseURL && config.DatabaseURL == filepath.Join(config.StateDir, DefaultDBFileName) && *flags.stateDir != config.StateDir {
		*flags.dbDSN = filepath.Join(*flags.stateDir, DefaultDBFileName)
		slog.Debug("Updated dbDSN based on state directory", "new_state_dir", *flags.stateDir)
	}

	return flags
}

// ensureDirectoriesExist creates necessary directories for file-based storage
func ensureDirectoriesExist(flags Flags) error {
	if !strings.Contains(*flags.dbDSN, "postgres://") && !strings.Contains(*flags.dbDSN, "host=") {
		stateDir := filepath.Dir(*flags.dbDSN)
		if err := os.MkdirAll(stateDir, 0755); err != nil {
			slog.Error("Failed to create state directory", "error", err, "state_dir", stateDir)
			return err
		}
	}
	return nil
}

// buildStore opens the conversation store matching the DSN type.
func buildStore(flags Flags) (store.Store, error) {
	if *flags.dbDSN == "" {
		slog.Debug("No database DSN provided, using in-memory store")
		return store.NewInMemoryStore(), nil
	}
	if store.DetectDSNType(*flags.dbDSN) == "postgres" {
		slog.Debug("Detected PostgreSQL DSN, configuring PostgreSQL store")
		return store.NewPostgresStore(store.WithPostgresDSN(*flags.dbDSN))
	}
	slog.Debug("Detected SQLite DSN, configuring SQLite store", "db_path", *flags.dbDSN)
	return store.NewSQLiteStore(store.WithSQLiteDSN(*flags.dbDSN))
}

// buildCatalogGateway builds the WooCommerce product gateway, wrapped in a
// Redis read-through cache when Redis is configured.
func buildCatalogGateway(config Config, flags Flags) (catalog.Gateway, error) {
	woo, err := catalog.NewWooClient(
		catalog.WithBaseURL(*flags.wooURL),
		catalog.WithCredentials(*flags.wooKey, *flags.wooSecret),
	)
	if err != nil {
		return nil, err
	}
	if *flags.redisAddr == "" {
		return woo, nil
	}
	rdb, err := catalog.InitRedis(*flags.redisAddr, config.RedisPassword)
	if err != nil {
		// The catalog works without the cache; degrade instead of failing startup.
		slog.Error("Redis unavailable, catalog cache disabled", "error", err)
		return woo, nil
	}
	return catalog.NewCachedGateway(woo, rdb, catalog.DefaultCacheTTL), nil
}

// buildMessagingService selects the WhatsApp transport.
func buildMessagingService(config Config, flags Flags) (messaging.Service, error) {
	if *flags.transport == "whatsmeow" {
		var waOpts []whatsapp.Option
		if *flags.whatsappDSN != "" {
			waOpts = append(waOpts, whatsapp.WithDBDSN(*flags.whatsappDSN))
		}
		if *flags.qrOutput != "" {
			waOpts = append(waOpts, whatsapp.WithQRCodeOutput(*flags.qrOutput))
		}
		if *flags.numeric {
			waOpts = append(waOpts, whatsapp.WithNumericCode())
		}
		waClient, err := whatsapp.NewClient(waOpts...)
		if err != nil {
			return nil, err
		}
		return messaging.NewWhatsAppService(waClient), nil
	}

	twilioClient, err := twiliowhatsapp.NewClient()
	if err != nil {
		return nil, err
	}
	return messaging.NewTwilioService(twilioClient), nil
}

// buildAPIOptions constructs API server configuration options
func buildAPIOptions(config Config, flags Flags) []api.Option {
	var apiOpts []api.Option
	if *flags.apiAddr != "" {
		apiOpts = append(apiOpts, api.WithAddr(*flags.apiAddr))
	}
	if *flags.publicURL != "" {
		apiOpts = append(apiOpts, api.WithPublicURL(*flags.publicURL))
	}
	// The webhook only authenticates Twilio traffic; the whatsmeow transport
	// receives messages over its own connection.
	if *flags.transport == "twilio" && config.TwilioAuthToken != "" {
		apiOpts = append(apiOpts, api.WithValidator(twiliowhatsapp.NewValidator(config.TwilioAuthToken)))
	}
	return apiOpts
}
