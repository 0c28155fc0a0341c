package internal

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/tphummel/fit-drive/internal/auth"
	"github.com/tphummel/fit-drive/internal/config"
	"github.com/tphummel/fit-drive/internal/crypto"
	"github.com/tphummel/fit-drive/internal/email"
	"github.com/tphummel/fit-drive/internal/log"
	"github.com/tphummel/fit-drive/internal/login"
	"github.com/tphummel/fit-drive/internal/server"
	"github.com/tphummel/fit-drive/internal/storage"
	"github.com/tphummel/fit-drive/internal/token"
)

const shutdownTimeout = 30 * time.Second

// FitDrive is the complete application with all dependencies built
type FitDrive struct {
	config     config.Config
	httpServer *server.HTTPServer
	storage    storage.Storage
	cleanup    *storage.CleanupManager
}

// NewFitDrive builds every component from the configuration
func NewFitDrive(ctx context.Context, cfg config.Config) (*FitDrive, error) {
	log.LogInfoWithFields("fitdrive", "Building application", map[string]any{
		"baseURL": cfg.BaseURL,
		"storage": cfg.Storage.Kind,
		"email":   cfg.Email.Kind,
	})

	store, err := setupStorage(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to setup storage: %w", err)
	}

	sender, err := setupEmail(cfg)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to setup email: %w", err)
	}

	issuer, err := token.NewIssuer(
		[]byte(cfg.LoginSecret),
		[]byte(cfg.SessionSecret),
		token.WithTTLs(cfg.LoginTokenTTL, cfg.SessionTokenTTL),
	)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to create token issuer: %w", err)
	}

	registry, err := setupProviders(cfg)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to setup providers: %w", err)
	}

	stateKey, err := crypto.DeriveKey([]byte(cfg.SessionSecret), "fit-drive oauth state")
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("failed to derive state key: %w", err)
	}

	oauthClient := auth.NewClient(registry, store, cfg.BaseURL, stateKey, cfg.ProviderTimeout)
	loginService := login.NewService(store, store, issuer, sender, cfg.BaseURL, cfg.LoginTokenTTL)

	handlers := server.NewHandlers(
		loginService,
		store,
		registry,
		oauthClient,
		auth.NewRefresher(oauthClient),
		cfg.LoginTokenTTL,
		cfg.SessionTokenTTL,
	)

	return &FitDrive{
		config:     cfg,
		httpServer: server.NewHTTPServer(server.NewMux(handlers, issuer), cfg.Addr),
		storage:    store,
		cleanup:    storage.NewCleanupManager(store, cfg.Storage.CleanupInterval),
	}, nil
}

// Run starts the application and blocks until a shutdown signal or a
// server error
func (f *FitDrive) Run() error {
	log.LogInfoWithFields("fitdrive", "Starting application", map[string]any{
		"addr": f.config.Addr,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errChan := make(chan error, 1)
	go func() {
		if err := f.httpServer.Start(); err != nil {
			errChan <- fmt.Errorf("HTTP server error: %w", err)
		}
	}()

	f.cleanup.Start(ctx)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	var shutdownReason string
	select {
	case sig := <-sigChan:
		shutdownReason = fmt.Sprintf("signal %v", sig)
		log.LogInfoWithFields("fitdrive", "Received shutdown signal", map[string]any{
			"signal": sig.String(),
		})
	case err := <-errChan:
		shutdownReason = fmt.Sprintf("error: %v", err)
		log.LogErrorWithFields("fitdrive", "Shutting down due to error", map[string]any{
			"error": err.Error(),
		})
	}

	log.LogInfoWithFields("fitdrive", "Starting graceful shutdown", map[string]any{
		"reason":  shutdownReason,
		"timeout": shutdownTimeout.String(),
	})
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()

	stopErr := f.httpServer.Stop(shutdownCtx)
	if stopErr != nil {
		log.LogErrorWithFields("fitdrive", "HTTP server shutdown error", map[string]any{
			"error": stopErr.Error(),
		})
	}

	f.cleanup.Stop()

	if err := f.storage.Close(); err != nil {
		log.LogErrorWithFields("fitdrive", "Storage close error", map[string]any{
			"error": err.Error(),
		})
	}

	log.LogInfoWithFields("fitdrive", "Application shutdown complete", map[string]any{
		"reason": shutdownReason,
	})
	return stopErr
}

// setupStorage opens the configured user store
func setupStorage(ctx context.Context, cfg config.Config) (storage.Storage, error) {
	sc := cfg.Storage
	switch sc.Kind {
	case config.StorageFirestore:
		log.LogInfoWithFields("storage", "Using Firestore storage", map[string]any{
			"project":    sc.GCPProject,
			"database":   sc.Database,
			"collection": sc.Collection,
		})
		key, err := crypto.DeriveKey([]byte(sc.EncryptionKey), "fit-drive storage")
		if err != nil {
			return nil, fmt.Errorf("failed to derive encryption key: %w", err)
		}
		encryptor, err := crypto.NewEncryptor(key)
		if err != nil {
			return nil, fmt.Errorf("failed to create encryptor: %w", err)
		}
		store, err := storage.NewFirestoreStorage(ctx, sc.GCPProject, sc.Database, sc.Collection, encryptor)
		if err != nil {
			return nil, err
		}
		return store, nil

	case config.StoragePostgres:
		log.LogInfoWithFields("storage", "Using Postgres storage", nil)
		store, err := storage.OpenPostgres(ctx, string(sc.DatabaseURL))
		if err != nil {
			return nil, err
		}
		return store, nil

	case config.StorageSQLite:
		log.LogInfoWithFields("storage", "Using SQLite storage", map[string]any{
			"path": sc.SQLitePath,
		})
		store, err := storage.OpenSQLite(ctx, sc.SQLitePath)
		if err != nil {
			return nil, err
		}
		return store, nil

	case config.StorageMemory, "":
		log.LogInfoWithFields("storage", "Using in-memory storage", nil)
		return storage.NewMemoryStorage(), nil

	default:
		return nil, fmt.Errorf("unknown storage kind %q", sc.Kind)
	}
}

// setupEmail creates the configured email transport
func setupEmail(cfg config.Config) (email.Sender, error) {
	switch cfg.Email.Kind {
	case config.EmailMailgun:
		mg := cfg.Email.Mailgun
		sender, err := email.NewMailgunSender(mg.Domain, string(mg.APIKey), mg.From, mg.APIBase)
		if err != nil {
			return nil, err
		}
		return sender, nil
	case config.EmailStdout:
		return email.NewWriterSender(os.Stdout), nil
	case config.EmailLog, "":
		return email.LogSender{}, nil
	default:
		return nil, fmt.Errorf("unknown email kind %q", cfg.Email.Kind)
	}
}

// setupProviders builds the provider registry, applying endpoint and scope
// overrides from the configuration
func setupProviders(cfg config.Config) (*auth.Registry, error) {
	fitbit := auth.Fitbit(cfg.Providers.Fitbit.ClientID, string(cfg.Providers.Fitbit.ClientSecret))
	applyOverrides(&fitbit, cfg.Providers.Fitbit)

	drive := auth.Drive(cfg.Providers.Drive.ClientID, string(cfg.Providers.Drive.ClientSecret))
	applyOverrides(&drive, cfg.Providers.Drive)

	return auth.NewRegistry(fitbit, drive)
}

func applyOverrides(p *auth.Provider, pc config.ProviderConfig) {
	if pc.AuthURL != "" {
		p.AuthURL = pc.AuthURL
	}
	if pc.TokenURL != "" {
		p.TokenURL = pc.TokenURL
	}
	if len(pc.Scopes) > 0 {
		p.Scopes = pc.Scopes
	}
}
