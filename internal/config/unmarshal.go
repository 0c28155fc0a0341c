package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// UnmarshalJSON implements custom unmarshaling for Config so that durations
// can be written as Go duration strings ("30s", "24h")
func (c *Config) UnmarshalJSON(data []byte) error {
	type plain Config
	raw := struct {
		*plain
		LoginTokenTTL   string `json:"loginTokenTTL"`
		SessionTokenTTL string `json:"sessionTokenTTL"`
		ProviderTimeout string `json:"providerTimeout"`
	}{plain: (*plain)(c)}

	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var err error
	if c.LoginTokenTTL, err = parseDuration("loginTokenTTL", raw.LoginTokenTTL); err != nil {
		return err
	}
	if c.SessionTokenTTL, err = parseDuration("sessionTokenTTL", raw.SessionTokenTTL); err != nil {
		return err
	}
	if c.ProviderTimeout, err = parseDuration("providerTimeout", raw.ProviderTimeout); err != nil {
		return err
	}
	return nil
}

// UnmarshalJSON implements custom unmarshaling for StorageConfig
func (s *StorageConfig) UnmarshalJSON(data []byte) error {
	type plain StorageConfig
	raw := struct {
		*plain
		CleanupInterval string `json:"cleanupInterval"`
	}{plain: (*plain)(s)}

	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	interval, err := parseDuration("storage.cleanupInterval", raw.CleanupInterval)
	if err != nil {
		return err
	}
	s.CleanupInterval = interval
	return nil
}

func parseDuration(field, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("parsing %s: %w", field, err)
	}
	return d, nil
}

// envRef returns the variable name if value is a {"$env": "VAR"} reference
func envRef(value any) (string, bool) {
	m, ok := value.(map[string]any)
	if !ok || len(m) != 1 {
		return "", false
	}
	name, ok := m["$env"].(string)
	return name, ok
}

// resolveEnvRefs replaces every {"$env": "VAR"} reference in the raw config
// tree with the value of VAR. An unset variable is an error.
func resolveEnvRefs(value any, path string) (any, error) {
	if name, ok := envRef(value); ok {
		resolved, set := os.LookupEnv(name)
		if !set {
			return nil, fmt.Errorf("%s: environment variable %s not set", path, name)
		}
		return resolved, nil
	}

	switch v := value.(type) {
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			resolved, err := resolveEnvRefs(item, joinPath(path, key))
			if err != nil {
				return nil, err
			}
			out[key] = resolved
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			resolved, err := resolveEnvRefs(item, fmt.Sprintf("%s[%d]", path, i))
			if err != nil {
				return nil, err
			}
			out[i] = resolved
		}
		return out, nil
	default:
		return value, nil
	}
}

func joinPath(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}
