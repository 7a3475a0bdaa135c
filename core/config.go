package core

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	DefaultAPIVersion        = "v22.0"
	DefaultGraphBaseURL      = "https://graph.facebook.com"
	DefaultQueueName         = "whatsapp"
	DefaultMaxDeliveries     = 5
	DefaultVisibilityTimeout = 30 * time.Second
	DefaultPollInterval      = time.Second
	DefaultClaimLease        = 5 * time.Minute
	DefaultWebhookPath       = "/webhooks/whatsapp"

	PoisonQueueSuffix = "-poison"
)

type QueueConfig struct {
	Name              string        `koanf:"name" mapstructure:"name"`
	MaxDeliveries     int           `koanf:"max_deliveries" mapstructure:"max_deliveries"`
	VisibilityTimeout time.Duration `koanf:"visibility_timeout" mapstructure:"visibility_timeout"`
	PollInterval      time.Duration `koanf:"poll_interval" mapstructure:"poll_interval"`
	ClaimLease        time.Duration `koanf:"claim_lease" mapstructure:"claim_lease"`
}

// PoisonName is where deliveries land after MaxDeliveries attempts.
func (q QueueConfig) PoisonName() string {
	return strings.TrimSpace(q.Name) + PoisonQueueSuffix
}

type DatabaseConfig struct {
	Driver string `koanf:"driver" mapstructure:"driver"`
	DSN    string `koanf:"dsn" mapstructure:"dsn"`
	Debug  bool   `koanf:"debug" mapstructure:"debug"`
}

type HTTPConfig struct {
	Address string `koanf:"address" mapstructure:"address"`
	Path    string `koanf:"path" mapstructure:"path"`
}

type Config struct {
	ServiceName  string            `koanf:"service_name" mapstructure:"service_name"`
	APIVersion   string            `koanf:"api_version" mapstructure:"api_version"`
	GraphBaseURL string            `koanf:"graph_base_url" mapstructure:"graph_base_url"`
	VerifyToken  string            `koanf:"verify_token" mapstructure:"verify_token"`
	AppSecret    string            `koanf:"app_secret" mapstructure:"app_secret"`
	Numbers      map[string]string `koanf:"numbers" mapstructure:"numbers"`
	Queue        QueueConfig       `koanf:"queue" mapstructure:"queue"`
	Database     DatabaseConfig    `koanf:"database" mapstructure:"database"`
	HTTP         HTTPConfig        `koanf:"http" mapstructure:"http"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName:  "whatsapp",
		APIVersion:   DefaultAPIVersion,
		GraphBaseURL: DefaultGraphBaseURL,
		Numbers:      map[string]string{},
		Queue: QueueConfig{
			Name:              DefaultQueueName,
			MaxDeliveries:     DefaultMaxDeliveries,
			VisibilityTimeout: DefaultVisibilityTimeout,
			PollInterval:      DefaultPollInterval,
			ClaimLease:        DefaultClaimLease,
		},
		Database: DatabaseConfig{
			Driver: "sqlite3",
			DSN:    "file:whatsapp.db?cache=shared&_foreign_keys=on",
		},
		HTTP: HTTPConfig{
			Address: ":8080",
			Path:    DefaultWebhookPath,
		},
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if strings.TrimSpace(c.APIVersion) == "" {
		return fmt.Errorf("core: api_version is required")
	}
	if strings.TrimSpace(c.VerifyToken) == "" {
		return fmt.Errorf("core: verify_token is required")
	}
	if len(c.Numbers) == 0 {
		return fmt.Errorf("core: at least one number is required")
	}
	for id, token := range c.Numbers {
		if strings.TrimSpace(id) == "" {
			return fmt.Errorf("core: number id is required")
		}
		if strings.TrimSpace(token) == "" {
			return fmt.Errorf("core: access token is required for number %q", id)
		}
	}
	if c.Queue.MaxDeliveries < 0 {
		return fmt.Errorf("core: queue max_deliveries is invalid")
	}
	return nil
}

// Token returns the access token configured for a business number.
func (c Config) Token(endpointID string) (string, bool) {
	token, ok := c.Numbers[strings.TrimSpace(endpointID)]
	if !ok || strings.TrimSpace(token) == "" {
		return "", false
	}
	return strings.TrimSpace(token), true
}

func (c Config) EndpointIDs() []string {
	ids := make([]string, 0, len(c.Numbers))
	for id := range c.Numbers {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
