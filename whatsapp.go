// Package whatsapp wires the webhook normalizer, the idempotent delivery
// coordinator, the Graph API client and the command bus into one service.
package whatsapp

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/goliatone/go-job/queue"
	glog "github.com/goliatone/go-logger/glog"
	"github.com/goliatone/go-whatsapp/adapters/gocommand"
	"github.com/goliatone/go-whatsapp/adapters/gojob"
	"github.com/goliatone/go-whatsapp/core"
	"github.com/goliatone/go-whatsapp/delivery"
	"github.com/goliatone/go-whatsapp/normalizer"
	"github.com/goliatone/go-whatsapp/outbound"
	"github.com/goliatone/go-whatsapp/pipeline"
	"github.com/goliatone/go-whatsapp/webhooks"
)

type (
	Config = core.Config

	Event            = core.Event
	ContentEvent     = core.ContentEvent
	InteractiveEvent = core.InteractiveEvent
	ReactionEvent    = core.ReactionEvent
	StatusEvent      = core.StatusEvent
	ErrorEvent       = core.ErrorEvent
	UnsupportedEvent = core.UnsupportedEvent

	Handler     = pipeline.Handler
	HandlerFunc = pipeline.HandlerFunc
)

const DefaultMaxRetryDelay = 5 * time.Minute

func DefaultConfig() Config {
	return core.DefaultConfig()
}

// LoadConfig layers defaults, the loaded sources and runtime overrides.
func LoadConfig(ctx context.Context, runtime Config, opts ...core.ConfigOption) (Config, error) {
	return core.ResolveConfig(ctx, runtime, opts...)
}

// QueueBackend is any go-job queue that can both accept and hand out work.
// delivery.MemoryQueue and sqlstore.QueueStore implement it.
type QueueBackend interface {
	queue.Enqueuer
	queue.Dequeuer
}

type Option func(*serviceBuilder)

type serviceBuilder struct {
	logger         core.Logger
	loggerProvider core.LoggerProvider
	metrics        core.MetricsRecorder
	store          core.DedupeStore
	queue          QueueBackend
	handler        pipeline.Handler
	middleware     []pipeline.Factory
	hooks          *ExtensionHooks
	telemetry      pipeline.TelemetryOptions
	httpClient     *http.Client
	workerHook     core.JobWorkerHook
	concurrency    int
	maxRetryDelay  time.Duration
}

func WithLogger(logger core.Logger) Option {
	return func(b *serviceBuilder) { b.logger = logger }
}

func WithLoggerProvider(provider core.LoggerProvider) Option {
	return func(b *serviceBuilder) { b.loggerProvider = provider }
}

func WithMetrics(metrics core.MetricsRecorder) Option {
	return func(b *serviceBuilder) { b.metrics = metrics }
}

// WithDedupeStore replaces the in-process claim store. Stores that also
// implement core.DedupeClaimer get atomic claims.
func WithDedupeStore(store core.DedupeStore) Option {
	return func(b *serviceBuilder) { b.store = store }
}

func WithQueue(backend QueueBackend) Option {
	return func(b *serviceBuilder) { b.queue = backend }
}

// WithHandler sets the terminal handler every accepted event reaches.
func WithHandler(handler pipeline.Handler) Option {
	return func(b *serviceBuilder) { b.handler = handler }
}

// WithMiddleware appends decorators inside the built-in ones, outermost first.
func WithMiddleware(factories ...pipeline.Factory) Option {
	return func(b *serviceBuilder) { b.middleware = append(b.middleware, factories...) }
}

func WithExtensionHooks(hooks *ExtensionHooks) Option {
	return func(b *serviceBuilder) { b.hooks = hooks }
}

func WithTelemetry(opts pipeline.TelemetryOptions) Option {
	return func(b *serviceBuilder) { b.telemetry = opts }
}

func WithHTTPClient(client *http.Client) Option {
	return func(b *serviceBuilder) { b.httpClient = client }
}

func WithWorkerHook(hook core.JobWorkerHook) Option {
	return func(b *serviceBuilder) { b.workerHook = hook }
}

func WithWorkerConcurrency(concurrency int) Option {
	return func(b *serviceBuilder) { b.concurrency = concurrency }
}

func WithMaxRetryDelay(delay time.Duration) Option {
	return func(b *serviceBuilder) { b.maxRetryDelay = delay }
}

type Service struct {
	config      Config
	logger      core.Logger
	store       core.DedupeStore
	queue       QueueBackend
	client      *outbound.Client
	coordinator *delivery.Coordinator
	worker      *delivery.Worker
	webhook     *webhooks.Handler
	facade      *Facade
	bundles     map[string]any
}

func NewService(cfg Config, opts ...Option) (*Service, error) {
	builder := serviceBuilder{maxRetryDelay: DefaultMaxRetryDelay}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&builder)
	}
	if err := cfg.Validate(); err != nil {
		return nil, core.ConfigError(err.Error(), nil)
	}

	provider, logger := glog.Resolve("whatsapp", builder.loggerProvider, builder.logger)
	logger = glog.Ensure(logger)
	if builder.metrics == nil {
		builder.metrics = core.NopMetricsRecorder{}
	}
	if builder.store == nil {
		builder.store = delivery.NewInMemoryClaimStore()
	}
	if builder.queue == nil {
		builder.queue = delivery.NewMemoryQueue(delivery.MemoryQueueConfig{
			Name:              cfg.Queue.Name,
			MaxDeliveries:     cfg.Queue.MaxDeliveries,
			VisibilityTimeout: cfg.Queue.VisibilityTimeout,
		})
	}
	if builder.telemetry.Metrics == nil {
		builder.telemetry.Metrics = builder.metrics
	}

	clientOpts := []outbound.Option{
		outbound.WithLogger(provider, logger),
		outbound.WithMetrics(builder.metrics),
	}
	if builder.httpClient != nil {
		clientOpts = append(clientOpts, outbound.WithHTTPClient(builder.httpClient))
	}
	client, err := outbound.NewClient(cfg, clientOpts...)
	if err != nil {
		return nil, err
	}

	handler, err := builder.pipeline(cfg, client, provider, logger)
	if err != nil {
		return nil, err
	}

	coordinator, err := delivery.NewCoordinator(delivery.Dependencies{
		Normalizer:     normalizer.New(normalizer.Options{Logger: logger}),
		Queue:          gojob.NewEnqueuerAdapter(builder.queue),
		Store:          builder.store,
		Pipeline:       handler,
		Reader:         client,
		LoggerProvider: provider,
		Logger:         logger,
		Metrics:        builder.metrics,
	}, delivery.WithClaimLease(cfg.Queue.ClaimLease))
	if err != nil {
		return nil, err
	}

	retry := delivery.DefaultWorkerConfig().Retry
	if exponential, ok := retry.(delivery.ExponentialRetryPolicy); ok && builder.maxRetryDelay > 0 {
		exponential.Max = builder.maxRetryDelay
		retry = exponential
	}
	workerOpts := []delivery.WorkerOption{
		delivery.WithWorkerLogger(provider, logger),
		delivery.WithWorkerMetrics(builder.metrics),
	}
	if builder.workerHook != nil {
		workerOpts = append(workerOpts, delivery.WithWorkerHook(builder.workerHook))
	}
	worker, err := delivery.NewWorker(
		coordinator,
		gojob.NewDequeuerAdapter(builder.queue, gojob.RetryPolicyFromQueue(cfg.Queue, builder.maxRetryDelay)),
		delivery.WorkerConfig{
			MaxDeliveries: cfg.Queue.MaxDeliveries,
			PollInterval:  cfg.Queue.PollInterval,
			Concurrency:   builder.concurrency,
			Retry:         retry,
		},
		workerOpts...,
	)
	if err != nil {
		return nil, err
	}

	webhook, err := webhooks.NewHandler(coordinator, webhooks.Config{
		VerifyToken: cfg.VerifyToken,
		AppSecret:   cfg.AppSecret,
	}, webhooks.WithLogger(provider, logger), webhooks.WithMetrics(builder.metrics))
	if err != nil {
		return nil, err
	}

	facadeOpts := []FacadeOption{}
	if reader, ok := builder.store.(core.DedupeReader); ok {
		facadeOpts = append(facadeOpts, WithDedupeReader(reader))
	}
	facade, err := NewFacade(client, facadeOpts...)
	if err != nil {
		return nil, err
	}
	bundles, err := builder.hooks.BuildCommandQueryBundles(facade)
	if err != nil {
		return nil, err
	}

	return &Service{
		config:      cfg,
		logger:      logger,
		store:       builder.store,
		queue:       builder.queue,
		client:      client,
		coordinator: coordinator,
		worker:      worker,
		webhook:     webhook,
		facade:      facade,
		bundles:     bundles,
	}, nil
}

// Setup is NewService under the name downstream bootstraps use.
func Setup(cfg Config, opts ...Option) (*Service, error) {
	return NewService(cfg, opts...)
}

// pipeline orders decorators outermost first: logging, telemetry, extension
// packs, then WithMiddleware factories around the terminal handler.
func (b serviceBuilder) pipeline(
	cfg Config,
	client *outbound.Client,
	provider core.LoggerProvider,
	logger core.Logger,
) (pipeline.Handler, error) {
	builder := pipeline.NewBuilder(b.handler, pipeline.WithResolver(pipeline.MapResolver{
		"config":   cfg,
		"outbound": client,
		"logger":   logger,
		"metrics":  b.metrics,
	}))
	builder.Use(pipeline.Logging(provider, logger))
	builder.Use(pipeline.Telemetry(b.telemetry))
	if err := b.hooks.ApplyMiddlewarePacks(builder); err != nil {
		return nil, err
	}
	for _, factory := range b.middleware {
		builder.Use(factory)
	}
	return builder.Build()
}

func (s *Service) Config() Config {
	if s == nil {
		return Config{}
	}
	return s.config
}

func (s *Service) Client() *outbound.Client {
	if s == nil {
		return nil
	}
	return s.client
}

func (s *Service) Coordinator() *delivery.Coordinator {
	if s == nil {
		return nil
	}
	return s.coordinator
}

func (s *Service) Worker() *delivery.Worker {
	if s == nil {
		return nil
	}
	return s.worker
}

// WebhookHandler serves GET verification and POST ingress.
func (s *Service) WebhookHandler() http.Handler {
	if s == nil {
		return nil
	}
	return s.webhook
}

func (s *Service) Facade() *Facade {
	if s == nil {
		return nil
	}
	return s.facade
}

func (s *Service) Bundles() map[string]any {
	if s == nil {
		return nil
	}
	return s.bundles
}

func (s *Service) Queue() QueueBackend {
	if s == nil {
		return nil
	}
	return s.queue
}

func (s *Service) DedupeStore() core.DedupeStore {
	if s == nil {
		return nil
	}
	return s.store
}

// RegisterCommands exposes the facade on the go-command dispatcher.
func (s *Service) RegisterCommands(adapter *gocommand.RegistryAdapter) error {
	if s == nil {
		return fmt.Errorf("whatsapp: service is nil")
	}
	return s.facade.Register(adapter)
}

// Run drives the worker until ctx is canceled.
func (s *Service) Run(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("whatsapp: service is nil")
	}
	s.logger.Info("whatsapp: worker started", "queue", s.config.Queue.Name)
	return s.worker.Run(ctx)
}
