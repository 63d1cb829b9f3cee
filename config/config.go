package config

import (
	"time"

	"github.com/apex/log"
	"github.com/bwise1/waste_patrol/util"
	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/pkg/errors"
)

const (
	StorageLocal      = "local"
	StorageCloudinary = "cloudinary"
)

type Config struct {
	Port        int    `env:"PORT" envDefault:"8080"`
	Dsn         string `env:"DSN"`
	Environment string `env:"ENVIRONMENT" envDefault:"development"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat   string `env:"LOG_FORMAT" envDefault:"text"`

	JwtSecret     string `env:"JWT_SECRET"`
	JwtExpires    string `env:"JWT_EXPIRES" envDefault:"24h"`
	RefreshSecret string `env:"REFRESH_SECRET"`
	RefreshExpiry string `env:"REFRESH_EXPIRY" envDefault:"168h"`

	CorsAllowedOrigins   []string      `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
	RateLimitWindow      time.Duration `env:"RATE_LIMIT_WINDOW" envDefault:"15m"`
	RateLimitMaxRequests int           `env:"RATE_LIMIT_MAX_REQUESTS" envDefault:"100"`

	MaxUploadSize int64  `env:"MAX_UPLOAD_SIZE" envDefault:"10485760"`
	UploadDir     string `env:"UPLOAD_DIR" envDefault:"uploads"`
	PublicBaseURL string `env:"PUBLIC_BASE_URL" envDefault:"http://localhost:8080"`

	StorageDriver       string `env:"STORAGE_DRIVER" envDefault:"local"`
	CloudinaryCloudName string `env:"CLOUDINARY_CLOUD_NAME"`
	CloudinaryAPIKey    string `env:"CLOUDINARY_API_KEY"`
	CloudinaryAPISecret string `env:"CLOUDINARY_API_SECRET"`

	AIServiceURL     string        `env:"AI_SERVICE_URL" envDefault:"http://localhost:8000"`
	AIServiceTimeout time.Duration `env:"AI_SERVICE_TIMEOUT" envDefault:"30s"`
	AIMockFallback   bool          `env:"AI_MOCK_FALLBACK" envDefault:"true"`

	StadiaAPIKey string `env:"STADIA_API_KEY"`

	AMQPURL      string `env:"AMQP_URL"`
	AMQPExchange string `env:"AMQP_EXCHANGE" envDefault:"waste-reports"`

	SendgridAPIKey string `env:"SENDGRID_API_KEY"`
	MailFromEmail  string `env:"MAIL_FROM_EMAIL" envDefault:"no-reply@wastepatrol.app"`
	MailFromName   string `env:"MAIL_FROM_NAME" envDefault:"Waste Patrol"`

	GoogleClientID     string `env:"GOOGLE_CLIENT_ID"`
	GoogleClientSecret string `env:"GOOGLE_CLIENT_SECRET"`

	StatsCacheTTL time.Duration `env:"STATS_CACHE_TTL" envDefault:"1m"`
}

func New() *Config {
	if loadErr := godotenv.Load(".env"); loadErr != nil {
		log.WithError(loadErr).Debug("[Env]: unable to load .env file")
	}

	var cfg Config

	if parseErr := env.Parse(&cfg); parseErr != nil {
		log.WithError(parseErr).Error("[Env]: failed to parse environment variables")
	}

	return &cfg
}

// Validate reports the first setting the server cannot start without.
func (c *Config) Validate() error {
	if c.Dsn == "" {
		return errors.New("DSN is required")
	}
	if c.JwtSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if c.RefreshSecret == "" {
		return errors.New("REFRESH_SECRET is required")
	}
	if _, err := time.ParseDuration(c.JwtExpires); err != nil {
		return errors.Wrap(err, "JWT_EXPIRES")
	}
	if _, err := time.ParseDuration(c.RefreshExpiry); err != nil {
		return errors.Wrap(err, "REFRESH_EXPIRY")
	}
	switch c.StorageDriver {
	case StorageLocal:
	case StorageCloudinary:
		if c.CloudinaryCloudName == "" || c.CloudinaryAPIKey == "" || c.CloudinaryAPISecret == "" {
			return errors.New("cloudinary storage needs CLOUDINARY_CLOUD_NAME, CLOUDINARY_API_KEY and CLOUDINARY_API_SECRET")
		}
	default:
		return errors.Errorf("unknown STORAGE_DRIVER %q", c.StorageDriver)
	}
	if c.RateLimitMaxRequests <= 0 || c.RateLimitWindow <= 0 {
		return errors.New("rate limit window and max requests must be positive")
	}
	if c.AIServiceURL != "" && !util.IsURL(c.AIServiceURL) {
		return errors.Errorf("AI_SERVICE_URL %q is not a valid url", c.AIServiceURL)
	}
	if c.PublicBaseURL != "" && !util.IsURL(c.PublicBaseURL) {
		return errors.Errorf("PUBLIC_BASE_URL %q is not a valid url", c.PublicBaseURL)
	}
	return nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
