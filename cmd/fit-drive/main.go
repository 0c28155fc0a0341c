package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"

	"github.com/tphummel/fit-drive/internal"
	"github.com/tphummel/fit-drive/internal/config"
	"github.com/tphummel/fit-drive/internal/log"
)

var BuildVersion = "dev"

func generateDefaultConfig(path string) error {
	defaultConfig := map[string]any{
		"version":         config.SupportedVersion,
		"addr":            config.DefaultAddr,
		"baseURL":         "https://fit-drive.example.com",
		"loginSecret":     map[string]string{"$env": "LOGIN_JWT_SECRET"},
		"sessionSecret":   map[string]string{"$env": "SESSION_JWT_SECRET"},
		"loginTokenTTL":   "10m",
		"sessionTokenTTL": "24h",
		"providerTimeout": "30s",
		"providers": map[string]any{
			"fitbit": map[string]any{
				"clientId":     map[string]string{"$env": "FITBIT_OAUTH_CLIENT_ID"},
				"clientSecret": map[string]string{"$env": "FITBIT_OAUTH_CLIENT_SECRET"},
			},
			"drive": map[string]any{
				"clientId":     map[string]string{"$env": "DRIVE_OAUTH_CLIENT_ID"},
				"clientSecret": map[string]string{"$env": "DRIVE_OAUTH_CLIENT_SECRET"},
			},
		},
		"storage": map[string]any{
			"kind":       "sqlite",
			"sqlitePath": "fit-drive.db",
		},
		"email": map[string]any{
			"kind": "log",
		},
		"logLevel":  "info",
		"logFormat": "text",
	}

	data, err := json.MarshalIndent(defaultConfig, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

func printIssues(title string, issues []config.ValidationError) {
	if len(issues) == 0 {
		return
	}
	fmt.Printf("\n%s (%d):\n", title, len(issues))
	for _, issue := range issues {
		if issue.Path != "" {
			fmt.Printf("  - %s: %s\n", issue.Path, issue.Message)
		} else {
			fmt.Printf("  - %s\n", issue.Message)
		}
	}
}

func validateConfig(path string) error {
	result, err := config.ValidateFile(path)
	if err != nil {
		return fmt.Errorf("error during validation: %w", err)
	}

	fmt.Printf("Validating: %s\n", path)
	printIssues("Errors", result.Errors)
	printIssues("Warnings", result.Warnings)

	fmt.Println()
	switch {
	case len(result.Errors) == 0 && len(result.Warnings) == 0:
		fmt.Println("Result: PASS")
	case len(result.Errors) == 0:
		fmt.Println("Result: FAIL (warnings present)")
	default:
		fmt.Println("Result: FAIL")
	}

	if len(result.Errors) > 0 || len(result.Warnings) > 0 {
		return fmt.Errorf("validation failed: %d error(s), %d warning(s)", len(result.Errors), len(result.Warnings))
	}
	return nil
}

func loadConfig(path string) (config.Config, error) {
	if path == "" {
		return config.LoadFromEnv()
	}
	return config.Load(path)
}

func main() {
	conf := flag.String("config", "", "path to config file (environment variables are used when omitted)")
	version := flag.Bool("version", false, "print version and exit")
	help := flag.Bool("help", false, "print help and exit")
	configInit := flag.String("config-init", "", "generate default config file at specified path")
	validate := flag.Bool("validate", false, "validate config file and exit")
	flag.Parse()
	if *help {
		flag.Usage()
		return
	}
	if *version {
		fmt.Println(BuildVersion)
		return
	}
	if *configInit != "" {
		if err := generateDefaultConfig(*configInit); err != nil {
			log.LogError("Failed to generate config: %v", err)
			os.Exit(1)
		}
		fmt.Printf("Generated default config at: %s\n", *configInit)
		return
	}

	if *validate {
		if *conf == "" {
			fmt.Fprintf(os.Stderr, "Error: -config flag is required for validation\n")
			os.Exit(1)
		}
		if err := validateConfig(*conf); err != nil {
			os.Exit(1)
		}
		return
	}

	cfg, err := loadConfig(*conf)
	if err != nil {
		log.LogError("Failed to load config: %v", err)
		os.Exit(1)
	}

	if err := log.Configure(cfg.LogLevel, cfg.LogFormat); err != nil {
		log.LogError("Invalid logging configuration: %v", err)
		os.Exit(1)
	}

	log.LogInfoWithFields("main", "Starting fit-drive", map[string]any{
		"version": BuildVersion,
		"config":  *conf,
	})

	app, err := internal.NewFitDrive(context.Background(), cfg)
	if err != nil {
		log.LogError("Failed to build application: %v", err)
		os.Exit(1)
	}

	if err := app.Run(); err != nil {
		log.LogError("Failed to run server: %v", err)
		os.Exit(1)
	}
}
