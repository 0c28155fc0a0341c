package config

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"strings"
)

// ValidationResult holds validation errors and warnings
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
}

// ValidationError represents a validation issue
type ValidationError struct {
	Path    string
	Message string
}

// IsValid returns true if there are no errors
func (v *ValidationResult) IsValid() bool {
	return len(v.Errors) == 0
}

func (v *ValidationResult) addError(path, format string, args ...any) {
	v.Errors = append(v.Errors, ValidationError{Path: path, Message: fmt.Sprintf(format, args...)})
}

// ValidateFile validates a config file structure without requiring env vars
func ValidateFile(path string) (*ValidationResult, error) {
	result := &ValidationResult{}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var rawConfig map[string]any
	if err := json.Unmarshal(data, &rawConfig); err != nil {
		result.addError("", "invalid JSON: %v", err)
		return result, nil
	}

	checkBashStyleSyntax(rawConfig, "", result)

	version, ok := rawConfig["version"].(string)
	if !ok {
		result.addError("version", "version field is required. Hint: Add \"version\": %q", SupportedVersion)
	} else if !strings.HasPrefix(version, SupportedVersion) {
		result.addError("version", "unsupported version '%s' - use '%s'", version, SupportedVersion)
	}

	for _, secretPath := range secretPaths {
		value, exists := lookupPath(rawConfig, secretPath)
		if !exists {
			continue
		}
		if err := validateEnvVarReference(value, secretPath); err != nil {
			result.Errors = append(result.Errors, *err)
		}
	}

	for _, required := range []string{"loginSecret", "sessionSecret"} {
		if _, ok := lookupPath(rawConfig, required); !ok {
			result.addError(required, "%s is required. Example: {\"$env\": \"%s\"}", required, envHint(required))
		}
	}

	validateProvidersStructure(rawConfig, result)
	validateKind(rawConfig, "storage.kind", []string{"memory", "postgres", "sqlite", "firestore"}, result)
	validateKind(rawConfig, "email.kind", []string{"log", "stdout", "mailgun"}, result)

	for _, durationPath := range []string{"loginTokenTTL", "sessionTokenTTL", "providerTimeout", "storage.cleanupInterval"} {
		value, exists := lookupPath(rawConfig, durationPath)
		if !exists {
			continue
		}
		s, ok := value.(string)
		if !ok {
			result.addError(durationPath, "must be a duration string such as \"30s\"")
			continue
		}
		if _, err := parseDuration(durationPath, s); err != nil {
			result.addError(durationPath, "%v", err)
		}
	}

	return result, nil
}

func envHint(path string) string {
	switch path {
	case "loginSecret":
		return "LOGIN_JWT_SECRET"
	case "sessionSecret":
		return "SESSION_JWT_SECRET"
	default:
		return "VAR_NAME"
	}
}

func validateProvidersStructure(rawConfig map[string]any, result *ValidationResult) {
	providers, ok := rawConfig["providers"].(map[string]any)
	if !ok {
		result.addError("providers", "providers field is required and must contain fitbit and drive")
		return
	}
	for _, name := range []string{"fitbit", "drive"} {
		p, ok := providers[name].(map[string]any)
		if !ok {
			result.addError("providers."+name, "%s provider configuration is required", name)
			continue
		}
		for _, field := range []string{"clientId", "clientSecret"} {
			if _, ok := p[field]; !ok {
				result.addError("providers."+name+"."+field, "%s is required", field)
			}
		}
	}
}

func validateKind(rawConfig map[string]any, path string, allowed []string, result *ValidationResult) {
	value, exists := lookupPath(rawConfig, path)
	if !exists {
		return
	}
	kind, ok := value.(string)
	if !ok {
		result.addError(path, "must be a string")
		return
	}
	for _, a := range allowed {
		if kind == a {
			return
		}
	}
	result.addError(path, "unknown value '%s' - use one of %s", kind, strings.Join(allowed, ", "))
}

func validateEnvVarReference(value any, path string) *ValidationError {
	if _, isString := value.(string); isString {
		return &ValidationError{
			Path:    path,
			Message: "must use environment variable reference for security. Example: {\"$env\": \"VAR_NAME\"}",
		}
	}
	if _, ok := envRef(value); !ok {
		return &ValidationError{
			Path:    path,
			Message: "must use {\"$env\": \"VAR_NAME\"} format",
		}
	}
	return nil
}

var bashStyleRegex = regexp.MustCompile(`\$\{?[A-Z_][A-Z0-9_]*\}?`)

func checkBashStyleSyntax(value any, path string, result *ValidationResult) {
	switch v := value.(type) {
	case string:
		for _, match := range bashStyleRegex.FindAllString(v, -1) {
			varName := strings.Trim(match, "${}")
			result.Warnings = append(result.Warnings, ValidationError{
				Path:    path,
				Message: fmt.Sprintf("found bash-style syntax '%s' - use {\"$env\": \"%s\"} instead", match, varName),
			})
		}
	case map[string]any:
		if _, ok := envRef(v); ok {
			return
		}
		for key, val := range v {
			checkBashStyleSyntax(val, joinPath(path, key), result)
		}
	case []any:
		for i, item := range v {
			checkBashStyleSyntax(item, fmt.Sprintf("%s[%d]", path, i), result)
		}
	}
}
