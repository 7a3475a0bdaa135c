package core

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
)

const EnvPrefix = "WHATSAPP_"

type envConfig struct {
	ServiceName       string            `env:"SERVICE_NAME"`
	APIVersion        string            `env:"API_VERSION"`
	GraphBaseURL      string            `env:"GRAPH_BASE_URL"`
	VerifyToken       string            `env:"VERIFY_TOKEN"`
	AppSecret         string            `env:"APP_SECRET"`
	Numbers           map[string]string `env:"NUMBERS"`
	QueueName         string            `env:"QUEUE_NAME"`
	MaxDeliveries     int               `env:"QUEUE_MAX_DELIVERIES"`
	VisibilityTimeout time.Duration     `env:"QUEUE_VISIBILITY_TIMEOUT"`
	PollInterval      time.Duration     `env:"QUEUE_POLL_INTERVAL"`
	ClaimLease        time.Duration     `env:"QUEUE_CLAIM_LEASE"`
	DatabaseDriver    string            `env:"DATABASE_DRIVER"`
	DatabaseDSN       string            `env:"DATABASE_DSN"`
	DatabaseDebug     bool              `env:"DATABASE_DEBUG"`
	HTTPAddress       string            `env:"HTTP_ADDRESS"`
	HTTPPath          string            `env:"HTTP_PATH"`
}

// EnvConfigLoader reads WHATSAPP_* variables. Numbers use the
// "id:token,id:token" form.
type EnvConfigLoader struct {
	Prefix string
	// Environment replaces the process environment when set.
	Environment map[string]string
}

func (l EnvConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	prefix := l.Prefix
	if prefix == "" {
		prefix = EnvPrefix
	}
	var parsed envConfig
	options := env.Options{Prefix: prefix}
	if l.Environment != nil {
		options.Environment = l.Environment
	}
	if err := env.ParseWithOptions(&parsed, options); err != nil {
		return nil, fmt.Errorf("core: parse environment: %w", err)
	}

	cfg := Config{
		ServiceName:  parsed.ServiceName,
		APIVersion:   parsed.APIVersion,
		GraphBaseURL: parsed.GraphBaseURL,
		VerifyToken:  parsed.VerifyToken,
		AppSecret:    parsed.AppSecret,
		Numbers:      parsed.Numbers,
		Queue: QueueConfig{
			Name:              parsed.QueueName,
			MaxDeliveries:     parsed.MaxDeliveries,
			VisibilityTimeout: parsed.VisibilityTimeout,
			PollInterval:      parsed.PollInterval,
			ClaimLease:        parsed.ClaimLease,
		},
		Database: DatabaseConfig{
			Driver: parsed.DatabaseDriver,
			DSN:    parsed.DatabaseDSN,
			Debug:  parsed.DatabaseDebug,
		},
		HTTP: HTTPConfig{
			Address: parsed.HTTPAddress,
			Path:    parsed.HTTPPath,
		},
	}
	return configToLayerMap(cfg, false), nil
}

// FileConfigLoader reads a TOML file. A missing file yields an empty map
// unless Required is set.
type FileConfigLoader struct {
	Path     string
	Required bool
}

func (l FileConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	path := strings.TrimSpace(l.Path)
	if path == "" {
		return map[string]any{}, nil
	}
	if _, err := os.Stat(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) && !l.Required {
			return map[string]any{}, nil
		}
		return nil, fmt.Errorf("core: config file %q: %w", path, err)
	}
	raw := map[string]any{}
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return nil, fmt.Errorf("core: decode config file %q: %w", path, err)
	}
	if err := parseDurations(raw, "queue", "visibility_timeout", "poll_interval", "claim_lease"); err != nil {
		return nil, err
	}
	return raw, nil
}

// ChainConfigLoader merges loaders in order; later loaders win.
type ChainConfigLoader []RawConfigLoader

func (c ChainConfigLoader) LoadRaw(ctx context.Context) (map[string]any, error) {
	out := map[string]any{}
	for _, loader := range c {
		if loader == nil {
			continue
		}
		raw, err := loader.LoadRaw(ctx)
		if err != nil {
			return nil, err
		}
		mergeRaw(out, raw)
	}
	return out, nil
}

func mergeRaw(dst map[string]any, src map[string]any) {
	for key, value := range src {
		nested, ok := value.(map[string]any)
		if !ok {
			dst[key] = value
			continue
		}
		existing, ok := dst[key].(map[string]any)
		if !ok {
			existing = map[string]any{}
			dst[key] = existing
		}
		mergeRaw(existing, nested)
	}
}

func parseDurations(raw map[string]any, section string, keys ...string) error {
	table, ok := raw[section].(map[string]any)
	if !ok {
		return nil
	}
	for _, key := range keys {
		value, ok := table[key].(string)
		if !ok {
			continue
		}
		parsed, err := time.ParseDuration(strings.TrimSpace(value))
		if err != nil {
			return fmt.Errorf("core: %s.%s is invalid: %w", section, key, err)
		}
		table[key] = parsed
	}
	return nil
}
