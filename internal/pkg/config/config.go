package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// -----------------------------------------------------------------------------
// Environment variable configuration guidelines:
// - required: Values that differ between environments (port, DB connection,
//   provider credentials, secrets)
// - default: Values common across all environments (windows, cadence, timeouts)
// -----------------------------------------------------------------------------

type Config struct {
	Server   ServerConfig
	DB       DBConfig
	Redis    RedisConfig
	AMQP     AMQPConfig
	Provider ProviderConfig
	Booking  BookingConfig
	Reaper   ReaperConfig
	CORS     CORSConfig
	Log      LogConfig
	JWT      JWTConfig
}

type ServerConfig struct {
	Port string `envconfig:"PORT" required:"true"`
}

type DBConfig struct {
	Host     string `envconfig:"DB_HOST" default:"localhost"`
	Port     string `envconfig:"DB_PORT" default:"5432"`
	User     string `envconfig:"DB_USER" required:"true"`
	Password string `envconfig:"DB_PASSWORD" required:"true"`
	DBName   string `envconfig:"DB_NAME" required:"true"`
	SSLMode  string `envconfig:"DB_SSL_MODE" default:"disable"`
}

type RedisConfig struct {
	Addr     string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	Password string `envconfig:"REDIS_PASSWORD" default:""`
	DB       int    `envconfig:"REDIS_DB" default:"0"`
}

type AMQPConfig struct {
	URL   string `envconfig:"AMQP_URL" required:"true"`
	Queue string `envconfig:"AMQP_NOTIFICATION_QUEUE" default:"booking_notifications"`
}

// ProviderConfig holds the payment provider connection and the settlement
// window limits the provider imposes on delayed methods.
type ProviderConfig struct {
	Name             string        `envconfig:"PAYMENT_PROVIDER_NAME" default:"payflow"`
	BaseURL          string        `envconfig:"PAYMENT_PROVIDER_BASE_URL" required:"true"`
	APIKey           string        `envconfig:"PAYMENT_PROVIDER_API_KEY" required:"true"`
	WebhookSecret    string        `envconfig:"PAYMENT_PROVIDER_WEBHOOK_SECRET" required:"true"`
	MinDelayedWindow time.Duration `envconfig:"PAYMENT_PROVIDER_MIN_DELAYED_WINDOW" default:"24h"`
	MaxDelayedWindow time.Duration `envconfig:"PAYMENT_PROVIDER_MAX_DELAYED_WINDOW" default:"168h"`
	Timeout          time.Duration `envconfig:"PAYMENT_PROVIDER_TIMEOUT" default:"10s"`
}

type BookingConfig struct {
	InstantThreshold     time.Duration `envconfig:"BOOKING_INSTANT_THRESHOLD" default:"72h"`
	InstantPaymentWindow time.Duration `envconfig:"BOOKING_INSTANT_PAYMENT_WINDOW" default:"30m"`
	ReservationWindow    time.Duration `envconfig:"BOOKING_RESERVATION_WINDOW" default:"24h"`
	AppointmentLength    time.Duration `envconfig:"BOOKING_APPOINTMENT_LENGTH" default:"1h"`
	IdempotencyTTL       time.Duration `envconfig:"BOOKING_IDEMPOTENCY_TTL" default:"15m"`
	AvailabilityCacheTTL time.Duration `envconfig:"BOOKING_AVAILABILITY_CACHE_TTL" default:"30s"`
}

type ReaperConfig struct {
	Interval time.Duration `envconfig:"REAPER_INTERVAL" default:"10m"`
}

type CORSConfig struct {
	AllowOrigins     []string      `envconfig:"CORS_ALLOW_ORIGINS" default:"http://localhost:3000,http://localhost:8080"`
	AllowMethods     []string      `envconfig:"CORS_ALLOW_METHODS" default:"GET,POST,PUT,PATCH,DELETE,OPTIONS"`
	AllowHeaders     []string      `envconfig:"CORS_ALLOW_HEADERS" default:"Origin,Content-Type,Accept,Authorization,Idempotency-Key"`
	ExposeHeaders    []string      `envconfig:"CORS_EXPOSE_HEADERS" default:"Content-Length"`
	AllowCredentials bool          `envconfig:"CORS_ALLOW_CREDENTIALS" default:"true"`
	MaxAge           time.Duration `envconfig:"CORS_MAX_AGE" default:"12h"`
}

type LogConfig struct {
	Level      string `envconfig:"LOG_LEVEL" default:"info"`
	TimeFormat string `envconfig:"LOG_TIME_FORMAT" default:"2006-01-02 15:04:05.000"`
}

type JWTConfig struct {
	Secret string `envconfig:"JWT_SECRET" required:"true"`
}

func (c *DBConfig) BuildDSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode,
	)
}

func LoadConfig() (Config, error) {
	// Optional .env for local development; real environments set vars directly.
	_ = godotenv.Load()

	var cfg Config
	err := envconfig.Process("", &cfg)
	if err != nil {
		return Config{}, fmt.Errorf("failed to process env config: %w", err)
	}
	return cfg, nil
}

func NewTestConfig() Config {
	return Config{
		Server: ServerConfig{
			Port: "8889",
		},
		DB: DBConfig{
			Host:     "localhost",
			Port:     "15433",
			User:     "test",
			Password: "test",
			DBName:   "test_db",
			SSLMode:  "disable",
		},
		Redis: RedisConfig{
			Addr: "localhost:16380",
		},
		Provider: ProviderConfig{
			Name:             "payflow",
			BaseURL:          "http://localhost:18080",
			APIKey:           "test-key",
			WebhookSecret:    "test-webhook-secret",
			MinDelayedWindow: 24 * time.Hour,
			MaxDelayedWindow: 168 * time.Hour,
			Timeout:          2 * time.Second,
		},
		Booking: BookingConfig{
			InstantThreshold:     72 * time.Hour,
			InstantPaymentWindow: 30 * time.Minute,
			ReservationWindow:    24 * time.Hour,
			AppointmentLength:    time.Hour,
			IdempotencyTTL:       15 * time.Minute,
			AvailabilityCacheTTL: 30 * time.Second,
		},
		Reaper: ReaperConfig{
			Interval: 10 * time.Minute,
		},
		Log: LogConfig{
			Level:      "error",
			TimeFormat: "2006-01-02 15:04:05.000",
		},
		JWT: JWTConfig{
			Secret: "test-secret",
		},
	}
}
