package internal

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"io/fs"
	"os"
	"time"

	persistence "github.com/goliatone/go-persistence-bun"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
	whatsapp "github.com/goliatone/go-whatsapp"
	"github.com/goliatone/go-whatsapp/adapters/gologger"
	"github.com/goliatone/go-whatsapp/adapters/otelmetrics"
	"github.com/goliatone/go-whatsapp/core"
	whatsappmigrations "github.com/goliatone/go-whatsapp/migrations"
	"github.com/goliatone/go-whatsapp/outbound"
	"github.com/goliatone/go-whatsapp/pipeline"
	sqlstore "github.com/goliatone/go-whatsapp/store/sql"
	_ "github.com/lib/pq"
	_ "github.com/mattn/go-sqlite3"
	"github.com/spf13/cobra"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/schema"
)

const (
	DefaultConfigPath = "whatsapp.toml"

	dedupeCacheTTL = 10 * time.Minute
)

var version = "dev"

func GetVersion() string {
	return version
}

// Options are the persistent flags shared by every subcommand.
type Options struct {
	ConfigPath string
	LogLevel   string
	LogFormat  string
	// Output receives log records. Defaults to stderr.
	Output io.Writer
	// Environment replaces the process environment when set.
	Environment map[string]string
}

func BindFlags(cmd *cobra.Command, opts *Options) {
	cmd.PersistentFlags().StringVarP(&opts.ConfigPath, "config", "c", DefaultConfigPath, "Path to the TOML config file")
	cmd.PersistentFlags().StringVar(&opts.LogLevel, "log-level", "info", "Log level (trace, debug, info, warn, error)")
	cmd.PersistentFlags().StringVar(&opts.LogFormat, "log-format", "json", "Log format (json, text)")
}

func (o *Options) output() io.Writer {
	if o == nil || o.Output == nil {
		return os.Stderr
	}
	return o.Output
}

// LoadConfig layers the config file under WHATSAPP_* environment variables.
func LoadConfig(ctx context.Context, opts *Options) (core.Config, error) {
	path := DefaultConfigPath
	var environment map[string]string
	if opts != nil {
		path, environment = opts.ConfigPath, opts.Environment
	}
	return whatsapp.LoadConfig(ctx, whatsapp.Config{}, core.WithRawConfigLoader(core.ChainConfigLoader{
		core.FileConfigLoader{Path: path, Required: path != DefaultConfigPath},
		core.EnvConfigLoader{Environment: environment},
	}))
}

// Runtime holds the process-wide collaborators a subcommand needs.
type Runtime struct {
	Config         core.Config
	LoggerProvider core.LoggerProvider
	Logger         core.Logger
	Metrics        core.MetricsRecorder

	client  *persistence.Client
	factory *sqlstore.RepositoryFactory
}

// Open loads config, connects to the database and applies migrations.
func Open(ctx context.Context, opts *Options) (*Runtime, error) {
	cfg, err := LoadConfig(ctx, opts)
	if err != nil {
		return nil, err
	}
	level, format := "info", "json"
	if opts != nil {
		level, format = opts.LogLevel, opts.LogFormat
	}
	provider := gologger.NewSlogProvider(opts.output(), level, format)
	rt := &Runtime{
		Config:         cfg,
		LoggerProvider: provider,
		Logger:         provider.GetLogger(cfg.ServiceName),
		Metrics:        otelmetrics.New(nil),
	}

	client, err := openPersistence(cfg.Database)
	if err != nil {
		return nil, err
	}
	rt.client = client
	if err := Migrate(ctx, client); err != nil {
		_ = client.Close()
		return nil, err
	}

	cacheConfig := repositorycache.DefaultConfig()
	cacheConfig.TTL = dedupeCacheTTL
	cacheService, err := repositorycache.NewCacheService(cacheConfig)
	if err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("whatsapp-webhook: dedupe cache: %w", err)
	}
	factory, err := sqlstore.NewRepositoryFactoryFromPersistence(client,
		sqlstore.WithQueueConfig(cfg.Queue),
		sqlstore.WithDedupeCache(cacheService),
	)
	if err != nil {
		_ = client.Close()
		return nil, err
	}
	rt.factory = factory
	return rt, nil
}

func (r *Runtime) Close() error {
	if r == nil || r.client == nil {
		return nil
	}
	return r.client.Close()
}

func (r *Runtime) QueueStore() *sqlstore.QueueStore {
	return r.factory.QueueStore()
}

// NewOutboundClient builds a Graph client for handlers that send messages.
func (r *Runtime) NewOutboundClient() (*outbound.Client, error) {
	return outbound.NewClient(r.Config,
		outbound.WithLogger(r.LoggerProvider, r.Logger),
		outbound.WithMetrics(r.Metrics),
	)
}

// NewService builds the delivery service on the SQL dedupe store and queue.
func (r *Runtime) NewService(handler pipeline.Handler, opts ...whatsapp.Option) (*whatsapp.Service, error) {
	dedupe, err := r.factory.Dedupe()
	if err != nil {
		return nil, err
	}
	base := []whatsapp.Option{
		whatsapp.WithLoggerProvider(r.LoggerProvider),
		whatsapp.WithLogger(r.Logger),
		whatsapp.WithMetrics(r.Metrics),
		whatsapp.WithDedupeStore(dedupe),
		whatsapp.WithQueue(r.factory.QueueStore()),
		whatsapp.WithHandler(handler),
	}
	return whatsapp.NewService(r.Config, append(base, opts...)...)
}

// Migrate registers the dialect migrations matching the client's driver and
// applies them.
func Migrate(ctx context.Context, client *persistence.Client) error {
	dialect, err := whatsappmigrations.DialectForDriver(client.DB().Dialect().Name().String())
	if err != nil {
		return err
	}
	_, err = whatsappmigrations.Register(ctx, func(_ context.Context, _ string, _ string, fsys fs.FS) error {
		client.RegisterSQLMigrations(fsys)
		return nil
	}, whatsappmigrations.WithValidationTargets(dialect))
	if err != nil {
		return err
	}
	if err := client.Migrate(ctx); err != nil {
		return fmt.Errorf("whatsapp-webhook: migrate: %w", err)
	}
	return nil
}

func openPersistence(cfg core.DatabaseConfig) (*persistence.Client, error) {
	migrationDialect, err := whatsappmigrations.DialectForDriver(cfg.Driver)
	if err != nil {
		return nil, core.ConfigError(fmt.Sprintf("whatsapp-webhook: unsupported database driver %q", cfg.Driver), nil)
	}
	driver, dialect := "postgres", schema.Dialect(pgdialect.New())
	if migrationDialect == whatsappmigrations.DialectSQLite {
		driver, dialect = "sqlite3", sqlitedialect.New()
	}

	sqlDB, err := sql.Open(driver, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("whatsapp-webhook: open database: %w", err)
	}
	if driver == "sqlite3" {
		sqlDB.SetMaxOpenConns(1)
	}
	client, err := persistence.New(persistenceConfig{driver: driver, dsn: cfg.DSN, debug: cfg.Debug}, sqlDB, dialect)
	if err != nil {
		_ = sqlDB.Close()
		return nil, fmt.Errorf("whatsapp-webhook: persistence client: %w", err)
	}
	return client, nil
}

type persistenceConfig struct {
	driver string
	dsn    string
	debug  bool
}

func (c persistenceConfig) GetDebug() bool { return c.debug }

func (c persistenceConfig) GetDriver() string { return c.driver }

func (c persistenceConfig) GetServer() string { return c.dsn }

func (c persistenceConfig) GetPingTimeout() time.Duration { return 5 * time.Second }

func (c persistenceConfig) GetOtelIdentifier() string { return "go-whatsapp" }

// SampleHandler logs each event and, for content events, acknowledges it
// with a reaction and an optional text reply.
func SampleHandler(client *outbound.Client, logger core.Logger, reaction string, reply string) pipeline.Handler {
	return pipeline.HandlerFunc(func(ctx context.Context, ev core.Event) error {
		header := core.EventHeader(ev)
		logger.Info("whatsapp: event received",
			"kind", string(ev.Kind()),
			"id", header.ID,
			"from", header.From.PhoneNumber,
		)
		if _, ok := ev.(core.ContentEvent); !ok || client == nil {
			return nil
		}
		if reaction != "" {
			if _, err := client.React(ctx, ev, reaction); err != nil {
				return err
			}
		}
		if reply != "" {
			if _, err := client.SendText(ctx, header.To.EndpointID, header.From.PhoneNumber, reply); err != nil {
				return err
			}
		}
		return nil
	})
}
