package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/tidwall/jsonc"

	"github.com/gamma-programme/rospitch/errors"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "ROSPITCH"

// durationKeys are the config keys whose string values are parsed as durations.
var durationKeys = map[string]struct{}{
	"connect_timeout":   {},
	"call_timeout":      {},
	"drain_timeout":     {},
	"initial_delay":     {},
	"max_delay":         {},
	"lookahead":         {},
	"reconnect_wait":    {},
	"timeout":           {},
	"handshake_timeout": {},
}

// Loader handles configuration loading with layers and overrides
type Loader struct {
	layers     []string
	validation bool
	envPrefix  string
	newID      func() string
}

// NewLoader creates a new configuration loader
func NewLoader() *Loader {
	return &Loader{
		layers:     []string{},
		validation: false,
		envPrefix:  EnvPrefix,
		newID:      shortID,
	}
}

// shortID mirrors the short random suffix of an anonymous ROS node name.
func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}

// AddLayer adds a configuration file layer
func (l *Loader) AddLayer(path string) {
	l.layers = append(l.layers, path)
}

// EnableValidation enables or disables configuration validation
func (l *Loader) EnableValidation(enable bool) {
	l.validation = enable
}

// LoadFile loads configuration from a single file
func (l *Loader) LoadFile(path string) (*Config, error) {
	l.layers = []string{path}
	return l.Load()
}

// Load loads and merges all configuration layers
func (l *Loader) Load() (*Config, error) {
	// Start with defaults
	cfg := Default()

	for _, path := range l.layers {
		raw, err := l.loadRaw(path)
		if err != nil {
			return nil, errors.WrapInvalid(err, "Loader", "Load", fmt.Sprintf("load %s", path))
		}
		cfg, err = l.mergeFromMap(cfg, raw)
		if err != nil {
			return nil, errors.WrapInvalid(err, "Loader", "Load", fmt.Sprintf("merge %s", path))
		}
	}

	if err := l.applyEnvOverrides(cfg); err != nil {
		return nil, err
	}
	cfg.anonymize(l.newID())

	if l.validation {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

// Parse decodes a single JSONC document over the defaults without touching
// the filesystem or the environment.
func Parse(data []byte) (*Config, error) {
	l := NewLoader()
	raw, err := l.decode(data)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Loader", "Parse", "decode config")
	}
	cfg, err := l.mergeFromMap(Default(), raw)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Loader", "Parse", "merge config")
	}
	cfg.anonymize(l.newID())
	return cfg, nil
}

// loadRaw loads a JSONC file as a map
func (l *Loader) loadRaw(path string) (map[string]any, error) {
	data, err := safeReadFile(path)
	if err != nil {
		return nil, err
	}
	return l.decode(data)
}

func (l *Loader) decode(data []byte) (map[string]any, error) {
	stripped := jsonc.ToJSON(data)

	// Validate JSON depth to prevent DoS
	if err := validateJSONDepth(stripped); err != nil {
		return nil, fmt.Errorf("invalid JSON structure: %w", err)
	}

	var raw map[string]any
	if err := json.Unmarshal(stripped, &raw); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrParsingFailed, err)
	}

	if err := parseDurations(raw); err != nil {
		return nil, err
	}
	return raw, nil
}

// mergeFromMap merges configuration from a raw map, only overriding fields present in the map
func (l *Loader) mergeFromMap(base *Config, override map[string]any) (*Config, error) {
	if override == nil {
		return base, nil
	}

	baseJSON, err := json.Marshal(base)
	if err != nil {
		return nil, err
	}
	var baseMap map[string]any
	if err := json.Unmarshal(baseJSON, &baseMap); err != nil {
		return nil, err
	}

	mergedJSON, err := json.Marshal(deepMergeMaps(baseMap, override))
	if err != nil {
		return nil, err
	}

	dec := json.NewDecoder(strings.NewReader(string(mergedJSON)))
	dec.DisallowUnknownFields()
	var merged Config
	if err := dec.Decode(&merged); err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrInvalidConfig, err)
	}
	return &merged, nil
}

// deepMergeMaps recursively merges two maps, with override taking precedence
func deepMergeMaps(base, override map[string]any) map[string]any {
	result := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		result[k] = v
	}

	for k, v := range override {
		if v == nil {
			continue
		}
		if baseMap, ok := base[k].(map[string]any); ok {
			if overrideMap, ok := v.(map[string]any); ok {
				result[k] = deepMergeMaps(baseMap, overrideMap)
				continue
			}
		}
		result[k] = v
	}
	return result
}

// parseDurations converts duration strings to nanoseconds for json unmarshaling
func parseDurations(data map[string]any) error {
	for k, v := range data {
		switch val := v.(type) {
		case map[string]any:
			if err := parseDurations(val); err != nil {
				return err
			}
		case string:
			if _, ok := durationKeys[k]; !ok {
				continue
			}
			d, err := parseDurationWithDays(val)
			if err != nil {
				return fmt.Errorf("%w: %s: %v", errors.ErrInvalidConfig, k, err)
			}
			data[k] = d.Nanoseconds()
		}
	}
	return nil
}

// parseDurationWithDays parses durations that may include days (e.g., "14d")
func parseDurationWithDays(s string) (time.Duration, error) {
	if strings.HasSuffix(s, "d") {
		days := strings.TrimSuffix(s, "d")
		n, err := strconv.Atoi(days)
		if err != nil {
			return 0, err
		}
		return time.Duration(n) * 24 * time.Hour, nil
	}
	return time.ParseDuration(s)
}

// applyEnvOverrides applies environment variable overrides
func (l *Loader) applyEnvOverrides(cfg *Config) error {
	str := func(suffix string, dst *string) error {
		key := l.envPrefix + "_" + suffix
		val := os.Getenv(key)
		if err := validateEnvVar(key, val); err != nil {
			return errors.WrapInvalid(err, "Loader", "applyEnvOverrides", "read "+key)
		}
		if val != "" {
			*dst = val
		}
		return nil
	}

	overrides := []struct {
		suffix string
		dst    *string
	}{
		{"PITCH_URI", &cfg.Pitch.URI},
		{"PITCH_USERNAME", &cfg.Pitch.Username},
		{"PITCH_PASSWORD", &cfg.Pitch.Password},
		{"FEDERATION", &cfg.Pitch.FederationName},
		{"FEDERATE", &cfg.Pitch.FederateName},
		{"AMBASSADOR", &cfg.Pitch.Ambassador},
		{"TIME_MODE", &cfg.Time.Mode},
		{"NATS_USERNAME", &cfg.NATS.Username},
		{"NATS_PASSWORD", &cfg.NATS.Password},
		{"NATS_TOKEN", &cfg.NATS.Token},
		{"ROSBRIDGE_URL", &cfg.Sources.Rosbridge.URL},
		{"BINDINGS", &cfg.Bindings},
	}
	for _, o := range overrides {
		if err := str(o.suffix, o.dst); err != nil {
			return err
		}
	}

	var urls string
	if err := str("NATS_URLS", &urls); err != nil {
		return err
	}
	if urls != "" {
		cfg.NATS.URLs = strings.Split(urls, ",")
	}

	var anonymous string
	if err := str("ANONYMOUS", &anonymous); err != nil {
		return err
	}
	if anonymous != "" {
		b, err := strconv.ParseBool(anonymous)
		if err != nil {
			return errors.WrapInvalid(fmt.Errorf("%w: %s_ANONYMOUS: %v", errors.ErrInvalidConfig, l.envPrefix, err),
				"Loader", "applyEnvOverrides", "parse bool")
		}
		cfg.Pitch.Anonymous = b
	}
	return nil
}
