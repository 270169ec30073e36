package config

import (
	"flag"
	"log"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

type (
	// Config represents an application configuration.
	Config struct {
		// The data source name (DSN) for connecting to the database.
		// When empty the in-memory order store is used.
		DSN string `yaml:"dsn" env:"DATABASE_URI"`
		// Directory for uploaded artifacts awaiting fulfillment.
		ArtifactDir string `yaml:"artifact_dir" env:"ARTIFACT_DIR" env-default:"./artifacts"`
		// Subconfigs.
		HTTPServer HTTPServer `yaml:"http_server"`
		Logger     Logger     `yaml:"logger"`
		SMTP       SMTP       `yaml:"smtp"`
		Payment    Payment    `yaml:"payment"`
		Orders     Orders     `yaml:"orders"`
		Dispatch   Dispatch   `yaml:"dispatch"`
		JWT        JWT        `yaml:"jwt"`
		Auth       Auth       `yaml:"auth"`
	}
	// Config for HTTP server.
	HTTPServer struct {
		// The server startup address.
		Address string `yaml:"run_address" env:"RUN_ADDRESS" env-default:"127.0.0.1:8080"`
		// Read Header Timeout in seconds.
		Timeout time.Duration `yaml:"timeout" env-default:"5s"`
		// Idle timeout in seconds.
		IdleTimeout time.Duration `yaml:"idle_timeout" env-default:"60s"`
		// Shutdown timeout in seconds.
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT" env-default:"30s"`
	}
	// Config for application's logger.
	Logger struct {
		// Path to store log files.
		Path string `yaml:"path" env:"LOG_PATH"`
		// Application logging level.
		Level string `yaml:"level" env:"LOG_LEVEL" env-default:"info"`
		// Log files details.
		MaxSizeMB  int `yaml:"max_size_mb" env-default:"100"`
		MaxBackups int `yaml:"max_backups" env-default:"3"`
		MaxAgeDays int `yaml:"max_age_days" env-default:"28"`
	}
	// Config for the outbound print-by-email channel.
	SMTP struct {
		Host string `yaml:"host" env:"SMTP_HOST"`
		From string `yaml:"from" env:"SMTP_EMAIL"`
		// SMTP account password.
		Password string `yaml:"password" env:"SMTP_PASSWORD"`
		// Destination mailbox of the print service.
		PrinterTo string `yaml:"printer_to" env:"PRINTER_EMAIL"`
		Port      int    `yaml:"port" env:"SMTP_PORT" env-default:"465"`
		SSL       bool   `yaml:"ssl" env-default:"true"`
	}
	// Config for pricing and payment requests.
	Payment struct {
		// ISO 4217 currency code, fixed per deployment.
		Currency string `yaml:"currency" env:"PAYMENT_CURRENCY" env-default:"EUR"`
		// Price per unit (page) in minor currency units.
		UnitPrice int64 `yaml:"unit_price" env:"PAYMENT_UNIT_PRICE" env-default:"100"`
	}
	// Config for the order lifecycle.
	Orders struct {
		// How long an order may sit awaiting payment before it is abandoned.
		PaymentTimeout time.Duration `yaml:"payment_timeout" env-default:"30m"`
		// How long a paid order may sit without a recorded dispatch
		// outcome before the sweeper abandons it with an alert.
		FulfillTimeout time.Duration `yaml:"fulfill_timeout" env-default:"1h"`
		// Retention window for terminal orders before eviction.
		Retention time.Duration `yaml:"retention" env-default:"24h"`
		// Abandon sweeper period.
		SweepInterval time.Duration `yaml:"sweep_interval" env-default:"1m"`
	}
	// Config for the fulfillment dispatcher.
	Dispatch struct {
		// Bounded retry policy for retryable dispatch failures.
		MaxAttempts int           `yaml:"max_attempts" env-default:"3"`
		Backoff     time.Duration `yaml:"backoff" env-default:"2s"`
		// Upper bound on a single send.
		SendTimeout time.Duration `yaml:"send_timeout" env-default:"30s"`
		// Outbound send pacing.
		RateInterval time.Duration `yaml:"rate_interval" env-default:"1s"`
		RateBurst    int           `yaml:"rate_burst" env-default:"1"`
	}
	// Config for JWT.
	JWT struct {
		// JWT signing key.
		SigningKey string `yaml:"signing_key" env:"JWT_SIGNING_KEY"`
		// JWT expiration in hours.
		Expiration time.Duration `yaml:"expiration" env:"JWT_EXPIRATION" env-default:"24h"`
	}
	// Config for operator authentication.
	Auth struct {
		OperatorLogin string `yaml:"operator_login" env:"OPERATOR_LOGIN" env-default:"operator"`
		// Bcrypt hash of the operator password.
		OperatorPasswordHash string `yaml:"operator_password_hash" env:"OPERATOR_PASSWORD_HASH"`
	}
)

// MustLoad returns an application configuration which is populated
// from the given configuration file, environment variables and flags.
func MustLoad() *Config {
	// Configuration yaml file path.
	configPath := flag.String("config", "./config/local.yml", "path to the config file")
	flag.Parse()

	var cfg Config

	// Check if file exists.
	if _, err := os.Stat(*configPath); err == nil {
		// Load from YAML cfg file.
		bytes, err := os.Open(*configPath)
		if err != nil {
			log.Fatalf("failed to open config file: %s", *configPath)
		}
		if err = cleanenv.ParseYAML(bytes, &cfg); err != nil {
			log.Fatalf("failed to parse config file: %s", *configPath)
		}
	}

	// Read given flags.
	flag.StringVar(&cfg.HTTPServer.Address, "a", cfg.HTTPServer.Address, "server startup address")
	flag.StringVar(&cfg.DSN, "d", cfg.DSN, "server data source name")
	flag.Parse()

	// Read environment variables.
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		log.Fatalf("failed to read environment variables: %v", err)
	}

	return &cfg
}
