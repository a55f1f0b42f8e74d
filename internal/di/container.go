package di

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"cloud.google.com/go/pubsub"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"

	domain "github.com/hometech/api/internal/domain"
	"github.com/hometech/api/internal/handlers"
	"github.com/hometech/api/internal/payments"
	"github.com/hometech/api/internal/platform/config"
	pfirestore "github.com/hometech/api/internal/platform/firestore"
	"github.com/hometech/api/internal/platform/idempotency"
	"github.com/hometech/api/internal/platform/notify"
	"github.com/hometech/api/internal/platform/observability"
	ppostgres "github.com/hometech/api/internal/platform/postgres"
	"github.com/hometech/api/internal/repositories"
	firestoreRepo "github.com/hometech/api/internal/repositories/firestore"
	"github.com/hometech/api/internal/repositories/memory"
	postgresRepo "github.com/hometech/api/internal/repositories/postgres"
	"github.com/hometech/api/internal/services"
)

const meterName = "github.com/hometech/api"

// Services bundles the service-layer contracts that handlers rely upon.
type Services struct {
	Cart     services.CartService
	Vouchers services.VoucherService
	Orders   services.OrderService
	Payments services.PaymentService
}

// Container wires repositories, services and transport for runtime use.
type Container struct {
	Config       config.Config
	Repositories repositories.Registry
	Services     Services
	Idempotency  idempotency.Store
	Readiness    *repositories.ReadinessMonitor

	logger  *zap.Logger
	closers []func(context.Context) error
}

// Option customises NewContainer.
type Option func(*options)

type options struct {
	registry repositories.Registry
	clock    func() time.Time
}

// WithRegistry supplies a prebuilt repository registry instead of the configured storage driver.
func WithRegistry(reg repositories.Registry) Option {
	return func(o *options) { o.registry = reg }
}

// WithClock overrides the time source shared by the services.
func WithClock(clock func() time.Time) Option {
	return func(o *options) { o.clock = clock }
}

// NewContainer constructs the runtime dependencies. On error every resource opened so far is closed.
func NewContainer(ctx context.Context, cfg config.Config, logger *zap.Logger, opts ...Option) (_ *Container, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	o := options{clock: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&o)
		}
	}

	c := &Container{Config: cfg, logger: logger}
	defer func() {
		if err != nil {
			_ = c.Close(context.Background())
		}
	}()

	reg := o.registry
	if reg == nil {
		if reg, err = c.openRegistry(ctx); err != nil {
			return nil, err
		}
	}
	c.Repositories = reg
	c.closers = append(c.closers, reg.Close)

	notifier, notifierCheck, err := c.openNotifier(ctx)
	if err != nil {
		return nil, err
	}

	gateway, err := buildPaymentGateway(cfg, logger.Named("payments"))
	if err != nil {
		return nil, err
	}

	checks := []repositories.DependencyCheck{{Name: "store", Check: reg.Ping}}
	if notifierCheck != nil {
		checks = append(checks, *notifierCheck)
	}
	store, storeCheck, err := c.openIdempotencyStore()
	if err != nil {
		return nil, err
	}
	c.Idempotency = store
	if storeCheck != nil {
		checks = append(checks, *storeCheck)
	}
	if c.Readiness, err = repositories.NewReadinessMonitor(checks); err != nil {
		return nil, err
	}

	if c.Services, err = buildServices(reg, cfg, notifier, gateway, o.clock, logger); err != nil {
		return nil, err
	}
	return c, nil
}

// Router assembles the HTTP router. middlewares run in front of every route.
func (c *Container) Router(build handlers.BuildInfo, middlewares ...func(http.Handler) http.Handler) http.Handler {
	cfg := c.Config
	guard := []func(http.Handler) http.Handler{
		handlers.RateLimit(cfg.Server.MutationRateLimit, time.Minute, nil),
		idempotency.Middleware(c.Idempotency,
			idempotency.WithHeader(cfg.Idempotency.Header),
			idempotency.WithTTL(cfg.Idempotency.TTL),
			idempotency.WithMethods(http.MethodPost, http.MethodGet),
			idempotency.WithLogger(c.logger),
			idempotency.WithRequester(handlers.Requester),
		),
	}

	return handlers.NewRouter(
		handlers.WithMiddlewares(middlewares...),
		handlers.WithHealthHandlers(handlers.NewHealthHandlers(
			handlers.WithHealthBuildInfo(build),
			handlers.WithReadiness(c.Readiness),
		)),
		handlers.WithCartRoutes(handlers.NewCartHandlers(c.Services.Cart).Routes),
		handlers.WithOrderRoutes(handlers.NewOrderHandlers(c.Services.Orders, handlers.WithCreateMiddlewares(guard...)).Routes),
		handlers.WithVoucherRoutes(handlers.NewVoucherHandlers(c.Services.Vouchers, handlers.WithApplyMiddlewares(guard...)).Routes),
		handlers.WithPaymentRoutes(handlers.NewPaymentHandlers(c.Services.Payments).Routes),
	)
}

// Close releases clients in reverse order of creation.
func (c *Container) Close(ctx context.Context) error {
	if c == nil {
		return nil
	}
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](ctx); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}

func (c *Container) openRegistry(ctx context.Context) (repositories.Registry, error) {
	cfg := c.Config
	switch cfg.Storage.Driver {
	case config.StorageDriverFirestore:
		reg, err := firestoreRepo.NewRegistry(pfirestore.NewProvider(cfg.Firestore))
		if err != nil {
			return nil, fmt.Errorf("build firestore registry: %w", err)
		}
		return reg, nil
	case config.StorageDriverPostgres:
		provider, err := ppostgres.NewProvider(ctx, cfg.Postgres)
		if err != nil {
			return nil, fmt.Errorf("connect postgres: %w", err)
		}
		if cfg.Postgres.MigrateOnStart {
			if err := provider.Migrate(ctx, observability.NewPrintfLogger(c.logger.Named("migrate"))); err != nil {
				_ = provider.Close(ctx)
				return nil, fmt.Errorf("migrate postgres: %w", err)
			}
		}
		reg, err := postgresRepo.NewRegistry(provider)
		if err != nil {
			_ = provider.Close(ctx)
			return nil, fmt.Errorf("build postgres registry: %w", err)
		}
		return reg, nil
	default:
		c.logger.Warn("using in-memory storage; data is lost on restart")
		return memory.NewStore(), nil
	}
}

func (c *Container) openNotifier(ctx context.Context) (services.Notifier, *repositories.DependencyCheck, error) {
	cfg := c.Config.Notifications
	var (
		next  services.Notifier
		check *repositories.DependencyCheck
	)
	switch cfg.Driver {
	case config.NotifyDriverPubSub:
		client, err := pubsub.NewClient(ctx, cfg.ProjectID)
		if err != nil {
			return nil, nil, fmt.Errorf("connect pubsub: %w", err)
		}
		topic := client.Topic(cfg.Topic)
		c.closers = append(c.closers, func(context.Context) error {
			topic.Stop()
			return client.Close()
		})
		notifier, err := notify.NewPubSubNotifier(topic)
		if err != nil {
			return nil, nil, err
		}
		next = notifier
	case config.NotifyDriverNATS:
		conn, err := nats.Connect(cfg.NATSURL, nats.Name("hometech-api"), nats.MaxReconnects(-1))
		if err != nil {
			return nil, nil, fmt.Errorf("connect nats: %w", err)
		}
		c.closers = append(c.closers, func(context.Context) error { return conn.Drain() })
		notifier, err := notify.NewNATSNotifier(conn, cfg.Subject)
		if err != nil {
			return nil, nil, err
		}
		next = notifier
		check = &repositories.DependencyCheck{Name: "nats", Check: func(context.Context) error {
			if !conn.IsConnected() {
				return fmt.Errorf("nats connection is %s", conn.Status())
			}
			return nil
		}}
	default:
		next = notify.NewLogNotifier(c.logger.Named("notifications"))
	}

	instrumented, err := notify.NewInstrumented(next, cfg.Driver, otel.GetMeterProvider().Meter(meterName))
	if err != nil {
		return nil, nil, err
	}
	return instrumented, check, nil
}

func (c *Container) openIdempotencyStore() (idempotency.Store, *repositories.DependencyCheck, error) {
	cfg := c.Config.Redis
	if cfg.Addr == "" {
		return idempotency.NewMemoryStore(), nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	c.closers = append(c.closers, func(context.Context) error { return client.Close() })
	store, err := idempotency.NewRedisStore(client)
	if err != nil {
		return nil, nil, err
	}
	return store, &repositories.DependencyCheck{Name: "redis", Check: store.Ping}, nil
}

// buildPaymentGateway registers the gateways that have credentials. It returns nil when none do, in
// which case only cash on delivery is accepted.
func buildPaymentGateway(cfg config.Config, logger *zap.Logger) (services.PaymentGateway, error) {
	providers := make(map[string]payments.Provider)
	events := observability.EventLogger(logger)

	if vn := cfg.Payments.VNPay; vn.TmnCode != "" && vn.HashSecret != "" {
		provider, err := payments.NewVNPayProvider(payments.VNPayConfig{
			TmnCode:    vn.TmnCode,
			HashSecret: vn.HashSecret,
			PayURL:     vn.PayURL,
			ReturnURL:  vn.ReturnURL,
			Logger:     events,
		})
		if err != nil {
			return nil, fmt.Errorf("build vnpay provider: %w", err)
		}
		providers[string(domain.PaymentMethodVNPay)] = provider
	}
	if st := cfg.Payments.Stripe; st.APIKey != "" {
		provider, err := payments.NewStripeProvider(payments.StripeConfig{
			APIKey:     st.APIKey,
			SuccessURL: st.SuccessURL,
			CancelURL:  st.CancelURL,
			Logger:     events,
		})
		if err != nil {
			return nil, fmt.Errorf("build stripe provider: %w", err)
		}
		providers[string(domain.PaymentMethodStripe)] = provider
	}
	if len(providers) == 0 {
		logger.Info("no payment gateway configured; only cash on delivery is available")
		return nil, nil
	}
	manager, err := payments.NewManager(providers)
	if err != nil {
		return nil, err
	}
	return manager, nil
}

func buildServices(reg repositories.Registry, cfg config.Config, notifier services.Notifier, gateway services.PaymentGateway, clock func() time.Time, logger *zap.Logger) (Services, error) {
	var svc Services
	var err error

	svc.Cart, err = services.NewCartService(services.CartServiceDeps{
		Carts:      reg.Carts(),
		Catalog:    reg.Catalog(),
		Users:      reg.Users(),
		UnitOfWork: reg,
		Clock:      clock,
		Logger:     observability.EventLogger(logger.Named("cart")),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build cart service: %w", err)
	}

	svc.Vouchers, err = services.NewVoucherService(services.VoucherServiceDeps{
		Vouchers:   reg.Vouchers(),
		UnitOfWork: reg,
		Clock:      clock,
		Logger:     observability.EventLogger(logger.Named("vouchers")),
	})
	if err != nil {
		return Services{}, fmt.Errorf("build voucher service: %w", err)
	}

	svc.Orders, err = services.NewOrderService(services.OrderServiceDeps{
		Orders:       reg.Orders(),
		Payments:     reg.Payments(),
		Carts:        reg.Carts(),
		Catalog:      reg.Catalog(),
		Users:        reg.Users(),
		Addresses:    reg.Addresses(),
		Counters:     reg.Counters(),
		Vouchers:     svc.Vouchers,
		Notifier:     notifier,
		UnitOfWork:   reg,
		Clock:        clock,
		Logger:       observability.EventLogger(logger.Named("orders")),
		CancelWindow: cfg.Orders.CancelWindow,
		NumberPrefix: cfg.Orders.NumberPrefix,
		Currency:     cfg.Orders.Currency,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build order service: %w", err)
	}

	svc.Payments, err = services.NewPaymentService(services.PaymentServiceDeps{
		Orders:     reg.Orders(),
		Payments:   reg.Payments(),
		Gateway:    gateway,
		UnitOfWork: reg,
		Clock:      clock,
		Logger:     observability.EventLogger(logger.Named("payments")),
		Currency:   cfg.Orders.Currency,
	})
	if err != nil {
		return Services{}, fmt.Errorf("build payment service: %w", err)
	}
	return svc, nil
}
