package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/tphummel/fit-drive/internal/log"
)

// SupportedVersion is the config file version prefix this build reads
const SupportedVersion = "v1"

// secretPaths lists the fields that must be env references in config files
var secretPaths = []string{
	"loginSecret",
	"sessionSecret",
	"providers.fitbit.clientSecret",
	"providers.drive.clientSecret",
	"storage.databaseUrl",
	"storage.encryptionKey",
	"email.mailgun.apiKey",
}

// Load loads a JSON config file, resolving env references immediately
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	var rawConfig map[string]any
	if err := json.Unmarshal(data, &rawConfig); err != nil {
		return Config{}, fmt.Errorf("parsing config JSON: %w", err)
	}

	version, ok := rawConfig["version"].(string)
	if !ok {
		return Config{}, fmt.Errorf("config version is required")
	}
	if !strings.HasPrefix(version, SupportedVersion) {
		return Config{}, fmt.Errorf("unsupported config version: %s", version)
	}

	if err := validateRawConfig(rawConfig); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}

	resolved, err := resolveEnvRefs(rawConfig, "")
	if err != nil {
		return Config{}, fmt.Errorf("resolving config: %w", err)
	}
	data, err = json.Marshal(resolved)
	if err != nil {
		return Config{}, fmt.Errorf("re-encoding config: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parsing config: %w", err)
	}
	config.applyDefaults()

	if err := ValidateConfig(&config); err != nil {
		return Config{}, fmt.Errorf("config validation failed: %w", err)
	}

	return config, nil
}

// lookupPath walks a dotted path through the raw config tree
func lookupPath(raw map[string]any, path string) (any, bool) {
	var current any = raw
	for _, part := range strings.Split(path, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		current, ok = m[part]
		if !ok {
			return nil, false
		}
	}
	return current, true
}

// validateRawConfig checks that secrets are env references before resolution
func validateRawConfig(rawConfig map[string]any) error {
	for _, path := range secretPaths {
		value, exists := lookupPath(rawConfig, path)
		if !exists {
			continue
		}
		if _, isString := value.(string); isString {
			return fmt.Errorf("%s must use environment variable reference for security", path)
		}
		if _, ok := envRef(value); !ok {
			return fmt.Errorf("%s must use {\"$env\": \"VAR_NAME\"} format", path)
		}
	}
	return nil
}

// ValidateConfig validates the resolved configuration
func ValidateConfig(config *Config) error {
	if config.Addr == "" {
		return fmt.Errorf("addr is required")
	}
	u, err := url.Parse(config.BaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("baseURL must be an absolute URL (got %q)", config.BaseURL)
	}
	if u.Scheme == "http" && u.Hostname() != "localhost" && u.Hostname() != "127.0.0.1" {
		log.LogWarn("baseURL %s is not https; session cookies will not be protected in transit", config.BaseURL)
	}

	if err := validateSecrets(config); err != nil {
		return err
	}

	if config.LoginTokenTTL <= 0 {
		return fmt.Errorf("loginTokenTTL must be positive")
	}
	if config.SessionTokenTTL <= 0 {
		return fmt.Errorf("sessionTokenTTL must be positive")
	}
	if config.ProviderTimeout <= 0 {
		return fmt.Errorf("providerTimeout must be positive")
	}

	if err := validateProvider("fitbit", config.Providers.Fitbit); err != nil {
		return err
	}
	if err := validateProvider("drive", config.Providers.Drive); err != nil {
		return err
	}

	if err := validateStorage(&config.Storage); err != nil {
		return fmt.Errorf("storage config: %w", err)
	}
	if err := validateEmail(&config.Email); err != nil {
		return fmt.Errorf("email config: %w", err)
	}

	switch strings.ToLower(config.LogFormat) {
	case "", "text", "json":
	default:
		return fmt.Errorf("logFormat must be text or json (got %q)", config.LogFormat)
	}

	return nil
}

func validateSecrets(config *Config) error {
	if len(config.LoginSecret) < 32 {
		return fmt.Errorf("loginSecret must be at least 32 characters (got %d). Generate with: openssl rand -base64 32", len(config.LoginSecret))
	}
	if len(config.SessionSecret) < 32 {
		return fmt.Errorf("sessionSecret must be at least 32 characters (got %d). Generate with: openssl rand -base64 32", len(config.SessionSecret))
	}
	if config.LoginSecret == config.SessionSecret {
		return fmt.Errorf("loginSecret and sessionSecret must differ")
	}
	return nil
}

func validateProvider(name string, p ProviderConfig) error {
	if p.ClientID == "" {
		return fmt.Errorf("providers.%s.clientId is required", name)
	}
	if p.ClientSecret == "" {
		return fmt.Errorf("providers.%s.clientSecret is required", name)
	}
	for _, raw := range []string{p.AuthURL, p.TokenURL} {
		if raw == "" {
			continue
		}
		if u, err := url.Parse(raw); err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("providers.%s: invalid endpoint URL %q", name, raw)
		}
	}
	return nil
}

func validateStorage(s *StorageConfig) error {
	switch s.Kind {
	case StorageMemory:
	case StoragePostgres:
		if s.DatabaseURL == "" {
			return fmt.Errorf("databaseUrl is required when using postgres storage")
		}
	case StorageSQLite:
		if s.SQLitePath == "" {
			return fmt.Errorf("sqlitePath is required when using sqlite storage")
		}
	case StorageFirestore:
		if s.GCPProject == "" {
			return fmt.Errorf("gcpProject is required when using firestore storage")
		}
		if len(s.EncryptionKey) < 32 {
			return fmt.Errorf("encryptionKey must be at least 32 characters when using firestore storage (got %d)", len(s.EncryptionKey))
		}
	default:
		return fmt.Errorf("unknown storage kind %q (memory, postgres, sqlite or firestore)", s.Kind)
	}
	if s.CleanupInterval < 0 {
		return fmt.Errorf("cleanupInterval cannot be negative")
	}
	return nil
}

func validateEmail(e *EmailConfig) error {
	switch e.Kind {
	case EmailLog, EmailStdout:
	case EmailMailgun:
		if e.Mailgun.Domain == "" {
			return fmt.Errorf("mailgun.domain is required")
		}
		if e.Mailgun.APIKey == "" {
			return fmt.Errorf("mailgun.apiKey is required")
		}
		if e.Mailgun.From == "" {
			return fmt.Errorf("mailgun.from is required")
		}
	default:
		return fmt.Errorf("unknown email kind %q (log, stdout or mailgun)", e.Kind)
	}
	return nil
}
