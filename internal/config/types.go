package config

import (
	"encoding/json"
	"time"
)

// Secret is a string type that redacts itself when printed
type Secret string

// String implements fmt.Stringer to redact the secret
func (s Secret) String() string {
	if s == "" {
		return ""
	}
	return "***"
}

// MarshalJSON implements json.Marshaler to prevent secrets in JSON logs
func (s Secret) MarshalJSON() ([]byte, error) {
	if s == "" {
		return json.Marshal("")
	}
	return json.Marshal("***")
}

// StorageKind selects the user store implementation
type StorageKind string

const (
	StorageMemory    StorageKind = "memory"
	StoragePostgres  StorageKind = "postgres"
	StorageSQLite    StorageKind = "sqlite"
	StorageFirestore StorageKind = "firestore"
)

// EmailKind selects the email transport
type EmailKind string

const (
	// EmailLog writes the login message to the structured log.
	EmailLog EmailKind = "log"
	// EmailStdout prints the full message to stdout.
	EmailStdout EmailKind = "stdout"
	EmailMailgun EmailKind = "mailgun"
)

const (
	DefaultAddr            = ":8000"
	DefaultBaseURL         = "http://localhost:8000"
	DefaultProviderTimeout = 30 * time.Second
	DefaultLoginTokenTTL   = 10 * time.Minute
	DefaultSessionTokenTTL = 24 * time.Hour
	DefaultCleanupInterval = time.Hour
	DefaultCollection      = "fit_drive_users"
)

// Config is the complete service configuration
type Config struct {
	Version string `json:"version"`
	Addr    string `json:"addr"`
	BaseURL string `json:"baseURL"`

	LoginSecret     Secret        `json:"loginSecret"`
	SessionSecret   Secret        `json:"sessionSecret"`
	LoginTokenTTL   time.Duration `json:"loginTokenTTL"`
	SessionTokenTTL time.Duration `json:"sessionTokenTTL"`
	ProviderTimeout time.Duration `json:"providerTimeout"`

	Providers ProvidersConfig `json:"providers"`
	Storage   StorageConfig   `json:"storage"`
	Email     EmailConfig     `json:"email"`

	LogLevel  string `json:"logLevel,omitempty"`
	LogFormat string `json:"logFormat,omitempty"`
}

// ProvidersConfig holds the client credentials of each OAuth2 provider
type ProvidersConfig struct {
	Fitbit ProviderConfig `json:"fitbit"`
	Drive  ProviderConfig `json:"drive"`
}

// ProviderConfig holds one provider's client credentials. The URLs are
// optional overrides of the provider's published endpoints.
type ProviderConfig struct {
	ClientID     string   `json:"clientId"`
	ClientSecret Secret   `json:"clientSecret"`
	AuthURL      string   `json:"authUrl,omitempty"`
	TokenURL     string   `json:"tokenUrl,omitempty"`
	Scopes       []string `json:"scopes,omitempty"`
}

// StorageConfig selects and configures the user store
type StorageConfig struct {
	Kind            StorageKind   `json:"kind"`
	DatabaseURL     Secret        `json:"databaseUrl,omitempty"`
	SQLitePath      string        `json:"sqlitePath,omitempty"`
	GCPProject      string        `json:"gcpProject,omitempty"`
	Database        string        `json:"firestoreDatabase,omitempty"`
	Collection      string        `json:"firestoreCollection,omitempty"`
	EncryptionKey   Secret        `json:"encryptionKey,omitempty"`
	CleanupInterval time.Duration `json:"cleanupInterval,omitempty"`
}

// EmailConfig selects and configures the email transport
type EmailConfig struct {
	Kind    EmailKind     `json:"kind"`
	Mailgun MailgunConfig `json:"mailgun,omitempty"`
}

// MailgunConfig configures the Mailgun transport
type MailgunConfig struct {
	Domain  string `json:"domain"`
	APIKey  Secret `json:"apiKey"`
	From    string `json:"from"`
	APIBase string `json:"apiBase,omitempty"`
}

// applyDefaults fills unset fields
func (c *Config) applyDefaults() {
	if c.Addr == "" {
		c.Addr = DefaultAddr
	}
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.LoginTokenTTL == 0 {
		c.LoginTokenTTL = DefaultLoginTokenTTL
	}
	if c.SessionTokenTTL == 0 {
		c.SessionTokenTTL = DefaultSessionTokenTTL
	}
	if c.ProviderTimeout == 0 {
		c.ProviderTimeout = DefaultProviderTimeout
	}
	if c.Storage.Kind == "" {
		c.Storage.Kind = StorageMemory
	}
	if c.Storage.Collection == "" {
		c.Storage.Collection = DefaultCollection
	}
	if c.Storage.CleanupInterval == 0 {
		c.Storage.CleanupInterval = DefaultCleanupInterval
	}
	if c.Email.Kind == "" {
		c.Email.Kind = EmailLog
	}
}
