package internal

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tphummel/fit-drive/internal/config"
	"github.com/tphummel/fit-drive/internal/email"
	"github.com/tphummel/fit-drive/internal/storage"
)

func testConfig() config.Config {
	return config.Config{
		Version:         config.SupportedVersion,
		Addr:            ":0",
		BaseURL:         "http://localhost:8000",
		LoginSecret:     "login-secret-that-is-at-least-32-bytes",
		SessionSecret:   "session-secret-that-is-at-least-32-bytes",
		LoginTokenTTL:   config.DefaultLoginTokenTTL,
		SessionTokenTTL: config.DefaultSessionTokenTTL,
		ProviderTimeout: config.DefaultProviderTimeout,
		Providers: config.ProvidersConfig{
			Fitbit: config.ProviderConfig{ClientID: "f", ClientSecret: "fs"},
			Drive:  config.ProviderConfig{ClientID: "d", ClientSecret: "ds"},
		},
		Storage: config.StorageConfig{Kind: config.StorageMemory, CleanupInterval: config.DefaultCleanupInterval},
		Email:   config.EmailConfig{Kind: config.EmailLog},
	}
}

func TestNewFitDrive(t *testing.T) {
	app, err := NewFitDrive(context.Background(), testConfig())
	require.NoError(t, err)
	assert.NotNil(t, app.httpServer)
	assert.IsType(t, &storage.MemoryStorage{}, app.storage)
	require.NoError(t, app.storage.Close())
}

func TestSetupStorage(t *testing.T) {
	cfg := testConfig()
	cfg.Storage.Kind = config.StorageSQLite
	cfg.Storage.SQLitePath = filepath.Join(t.TempDir(), "fit-drive.db")

	store, err := setupStorage(context.Background(), cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	assert.IsType(t, &storage.SQLStorage{}, store)

	cfg.Storage.Kind = "redis"
	_, err = setupStorage(context.Background(), cfg)
	assert.Error(t, err)
}

func TestSetupEmail(t *testing.T) {
	tests := []struct {
		name     string
		email    config.EmailConfig
		wantType any
	}{
		{"log", config.EmailConfig{Kind: config.EmailLog}, email.LogSender{}},
		{"stdout", config.EmailConfig{Kind: config.EmailStdout}, &email.WriterSender{}},
		{"mailgun", config.EmailConfig{Kind: config.EmailMailgun, Mailgun: config.MailgunConfig{
			Domain: "mg.example.com",
			APIKey: "key-123",
			From:   "login@mg.example.com",
		}}, &email.MailgunSender{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig()
			cfg.Email = tt.email
			sender, err := setupEmail(cfg)
			require.NoError(t, err)
			assert.IsType(t, tt.wantType, sender)
		})
	}
}

func TestSetupProvidersAppliesOverrides(t *testing.T) {
	cfg := testConfig()
	cfg.Providers.Fitbit.TokenURL = "http://127.0.0.1:9999/token"
	cfg.Providers.Drive.Scopes = []string{"https://www.googleapis.com/auth/drive.readonly"}

	registry, err := setupProviders(cfg)
	require.NoError(t, err)

	fitbit, ok := registry.Get("fitbit")
	require.True(t, ok)
	assert.Equal(t, "http://127.0.0.1:9999/token", fitbit.TokenURL)
	assert.Equal(t, "https://www.fitbit.com/oauth2/authorize", fitbit.AuthURL)

	drive, ok := registry.Get("drive")
	require.True(t, ok)
	assert.Equal(t, []string{"https://www.googleapis.com/auth/drive.readonly"}, drive.Scopes)
	assert.Equal(t, "offline", drive.AuthURLParams["access_type"])
}
