package core

import (
	"context"
	"fmt"
	"strings"

	"github.com/goliatone/go-config/cfgx"
	opts "github.com/goliatone/go-options"
)

type ConfigProvider interface {
	Load(ctx context.Context, defaults Config) (Config, error)
}

type RawConfigLoader interface {
	LoadRaw(ctx context.Context) (map[string]any, error)
}

type OptionsResolver interface {
	Resolve(defaults Config, loaded Config, runtime Config) (Config, error)
}

type configBuilder struct {
	defaults        Config
	configProvider  ConfigProvider
	optionsResolver OptionsResolver
}

type ConfigOption func(*configBuilder)

func WithDefaults(defaults Config) ConfigOption {
	return func(b *configBuilder) {
		b.defaults = defaults
	}
}

func WithConfigProvider(provider ConfigProvider) ConfigOption {
	return func(b *configBuilder) {
		b.configProvider = provider
	}
}

func WithRawConfigLoader(loader RawConfigLoader) ConfigOption {
	return func(b *configBuilder) {
		b.configProvider = NewCfgxConfigProvider(loader)
	}
}

func WithOptionsResolver(resolver OptionsResolver) ConfigOption {
	return func(b *configBuilder) {
		b.optionsResolver = resolver
	}
}

// ResolveConfig merges defaults, loaded configuration and runtime overrides,
// in that order of precedence, and validates the result.
func ResolveConfig(ctx context.Context, runtime Config, options ...ConfigOption) (Config, error) {
	builder := configBuilder{
		defaults:        DefaultConfig(),
		configProvider:  NewCfgxConfigProvider(nil),
		optionsResolver: GoOptionsResolver{},
	}
	for _, option := range options {
		if option == nil {
			continue
		}
		option(&builder)
	}

	loaded := Config{}
	if builder.configProvider != nil {
		var err error
		loaded, err = builder.configProvider.Load(ctx, builder.defaults)
		if err != nil {
			return Config{}, ConfigError(fmt.Sprintf("core: load config: %v", err), nil)
		}
	}
	resolver := builder.optionsResolver
	if resolver == nil {
		resolver = GoOptionsResolver{}
	}
	resolved, err := resolver.Resolve(builder.defaults, loaded, runtime)
	if err != nil {
		return Config{}, ConfigError(fmt.Sprintf("core: resolve config: %v", err), nil)
	}
	return resolved, nil
}

type staticRawConfigLoader struct {
	Values map[string]any
}

func (l staticRawConfigLoader) LoadRaw(context.Context) (map[string]any, error) {
	if len(l.Values) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(l.Values))
	for key, value := range l.Values {
		out[key] = value
	}
	return out, nil
}

// StaticConfigLoader serves a fixed raw map, mostly for tests and embedding.
func StaticConfigLoader(values map[string]any) RawConfigLoader {
	return staticRawConfigLoader{Values: values}
}

type CfgxConfigProvider struct {
	Loader RawConfigLoader
}

func NewCfgxConfigProvider(loader RawConfigLoader) *CfgxConfigProvider {
	return &CfgxConfigProvider{Loader: loader}
}

// Load builds a Config from the raw map. Validation is deferred to the
// resolver, since runtime overrides may still supply required values.
func (p *CfgxConfigProvider) Load(ctx context.Context, defaults Config) (Config, error) {
	if p == nil {
		return defaults, nil
	}
	loader := p.Loader
	if loader == nil {
		loader = staticRawConfigLoader{}
	}
	raw, err := loader.LoadRaw(ctx)
	if err != nil {
		return Config{}, err
	}
	cfg, err := cfgx.Build[Config](raw, cfgx.WithDefaults(defaults))
	if err != nil {
		return Config{}, err
	}
	return cfg, nil
}

type GoOptionsResolver struct{}

func (GoOptionsResolver) Resolve(defaults Config, loaded Config, runtime Config) (Config, error) {
	defaultLayer := configToLayerMap(defaults, true)
	loadedLayer := configToLayerMap(loaded, false)
	runtimeLayer := configToLayerMap(runtime, false)

	stack, err := opts.NewStack(
		opts.NewLayer(
			opts.NewScope("defaults", 0),
			defaultLayer,
			opts.WithSnapshotID[map[string]any]("defaults"),
		),
		opts.NewLayer(
			opts.NewScope("config", 10),
			loadedLayer,
			opts.WithSnapshotID[map[string]any]("config"),
		),
		opts.NewLayer(
			opts.NewScope("runtime", 20),
			runtimeLayer,
			opts.WithSnapshotID[map[string]any]("runtime"),
		),
	)
	if err != nil {
		return Config{}, fmt.Errorf("core: options stack build failed: %w", err)
	}
	merged, err := stack.Merge()
	if err != nil {
		return Config{}, fmt.Errorf("core: options merge failed: %w", err)
	}
	resolved, err := cfgx.Build[Config](merged.Value,
		cfgx.WithDefaults(defaults),
		cfgx.WithValidator[Config]((*Config).Validate),
	)
	if err != nil {
		return Config{}, err
	}
	if err := resolved.Validate(); err != nil {
		return Config{}, err
	}
	return resolved, nil
}

func configToLayerMap(cfg Config, includeZero bool) map[string]any {
	layer := map[string]any{}
	setString := func(target map[string]any, key string, value string) {
		if includeZero || strings.TrimSpace(value) != "" {
			target[key] = value
		}
	}
	setString(layer, "service_name", cfg.ServiceName)
	setString(layer, "api_version", cfg.APIVersion)
	setString(layer, "graph_base_url", cfg.GraphBaseURL)
	setString(layer, "verify_token", cfg.VerifyToken)
	setString(layer, "app_secret", cfg.AppSecret)

	if includeZero || len(cfg.Numbers) > 0 {
		numbers := make(map[string]any, len(cfg.Numbers))
		for id, token := range cfg.Numbers {
			numbers[id] = token
		}
		layer["numbers"] = numbers
	}

	queue := map[string]any{}
	setString(queue, "name", cfg.Queue.Name)
	if includeZero || cfg.Queue.MaxDeliveries > 0 {
		queue["max_deliveries"] = cfg.Queue.MaxDeliveries
	}
	if includeZero || cfg.Queue.VisibilityTimeout > 0 {
		queue["visibility_timeout"] = cfg.Queue.VisibilityTimeout
	}
	if includeZero || cfg.Queue.PollInterval > 0 {
		queue["poll_interval"] = cfg.Queue.PollInterval
	}
	if includeZero || cfg.Queue.ClaimLease > 0 {
		queue["claim_lease"] = cfg.Queue.ClaimLease
	}
	if len(queue) > 0 {
		layer["queue"] = queue
	}

	database := map[string]any{}
	setString(database, "driver", cfg.Database.Driver)
	setString(database, "dsn", cfg.Database.DSN)
	if includeZero || cfg.Database.Debug {
		database["debug"] = cfg.Database.Debug
	}
	if len(database) > 0 {
		layer["database"] = database
	}

	httpLayer := map[string]any{}
	setString(httpLayer, "address", cfg.HTTP.Address)
	setString(httpLayer, "path", cfg.HTTP.Path)
	if len(httpLayer) > 0 {
		layer["http"] = httpLayer
	}
	return layer
}
