package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// envConfig mirrors Config for deployments configured entirely through the
// environment.
type envConfig struct {
	Port    string `env:"PORT"     envDefault:"8000"`
	BaseURL string `env:"BASE_URL" envDefault:"http://localhost:8000"`

	LoginSecret     Secret        `env:"LOGIN_JWT_SECRET"`
	SessionSecret   Secret        `env:"SESSION_JWT_SECRET"`
	LoginTokenTTL   time.Duration `env:"LOGIN_TOKEN_TTL"   envDefault:"10m"`
	SessionTokenTTL time.Duration `env:"SESSION_TOKEN_TTL" envDefault:"24h"`
	ProviderTimeout time.Duration `env:"PROVIDER_TIMEOUT"  envDefault:"30s"`

	FitbitClientID     string `env:"FITBIT_OAUTH_CLIENT_ID"`
	FitbitClientSecret Secret `env:"FITBIT_OAUTH_CLIENT_SECRET"`
	DriveClientID      string `env:"DRIVE_OAUTH_CLIENT_ID"`
	DriveClientSecret  Secret `env:"DRIVE_OAUTH_CLIENT_SECRET"`

	Storage             StorageKind   `env:"STORAGE"              envDefault:"memory"`
	DatabaseURL         Secret        `env:"DATABASE_URL"`
	SQLitePath          string        `env:"SQLITE_PATH"`
	GCPProject          string        `env:"GCP_PROJECT"`
	FirestoreDatabase   string        `env:"FIRESTORE_DATABASE"`
	FirestoreCollection string        `env:"FIRESTORE_COLLECTION" envDefault:"fit_drive_users"`
	EncryptionKey       Secret        `env:"ENCRYPTION_KEY"`
	CleanupInterval     time.Duration `env:"CLEANUP_INTERVAL"     envDefault:"1h"`

	EmailMode      EmailKind `env:"EMAIL_MODE" envDefault:"log"`
	MailgunDomain  string    `env:"MAILGUN_DOMAIN"`
	MailgunAPIKey  Secret    `env:"MAILGUN_API_KEY"`
	MailgunFrom    string    `env:"MAILGUN_FROM"`
	MailgunAPIBase string    `env:"MAILGUN_API_BASE"`

	LogLevel  string `env:"LOG_LEVEL"  envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
}

// LoadFromEnv builds the configuration from environment variables only
func LoadFromEnv() (Config, error) {
	return loadEnv(env.Options{})
}

func loadEnv(opts env.Options) (Config, error) {
	var ec envConfig
	if err := env.ParseWithOptions(&ec, opts); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	cfg := Config{
		Version:         SupportedVersion,
		Addr:            ":" + ec.Port,
		BaseURL:         ec.BaseURL,
		LoginSecret:     ec.LoginSecret,
		SessionSecret:   ec.SessionSecret,
		LoginTokenTTL:   ec.LoginTokenTTL,
		SessionTokenTTL: ec.SessionTokenTTL,
		ProviderTimeout: ec.ProviderTimeout,
		Providers: ProvidersConfig{
			Fitbit: ProviderConfig{ClientID: ec.FitbitClientID, ClientSecret: ec.FitbitClientSecret},
			Drive:  ProviderConfig{ClientID: ec.DriveClientID, ClientSecret: ec.DriveClientSecret},
		},
		Storage: StorageConfig{
			Kind:            ec.Storage,
			DatabaseURL:     ec.DatabaseURL,
			SQLitePath:      ec.SQLitePath,
			GCPProject:      ec.GCPProject,
			Database:        ec.FirestoreDatabase,
			Collection:      ec.FirestoreCollection,
			EncryptionKey:   ec.EncryptionKey,
			CleanupInterval: ec.CleanupInterval,
		},
		Email: EmailConfig{
			Kind: ec.EmailMode,
			Mailgun: MailgunConfig{
				Domain:  ec.MailgunDomain,
				APIKey:  ec.MailgunAPIKey,
				From:    ec.MailgunFrom,
				APIBase: ec.MailgunAPIBase,
			},
		},
		LogLevel:  ec.LogLevel,
		LogFormat: ec.LogFormat,
	}
	cfg.applyDefaults()

	if err := ValidateConfig(&cfg); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}
