// Package app wires configuration, stores, messaging and servers into the
// processes started by cmd/printshop.
package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/egannguyen/instaprint/internal/cache"
	"github.com/egannguyen/instaprint/internal/changefeed"
	"github.com/egannguyen/instaprint/internal/config"
	"github.com/egannguyen/instaprint/internal/console"
	deliveryhttp "github.com/egannguyen/instaprint/internal/delivery/http"
	"github.com/egannguyen/instaprint/internal/entity"
	"github.com/egannguyen/instaprint/internal/location"
	"github.com/egannguyen/instaprint/internal/mailer"
	"github.com/egannguyen/instaprint/internal/messaging"
	"github.com/egannguyen/instaprint/internal/messaging/kafka"
	"github.com/egannguyen/instaprint/internal/messaging/memory"
	"github.com/egannguyen/instaprint/internal/notify"
	"github.com/egannguyen/instaprint/internal/repository"
	repomemory "github.com/egannguyen/instaprint/internal/repository/memory"
	"github.com/egannguyen/instaprint/internal/repository/postgres"
	"github.com/egannguyen/instaprint/internal/retry"
	"github.com/egannguyen/instaprint/internal/service"
	"github.com/egannguyen/instaprint/internal/shoporders"
	"github.com/egannguyen/instaprint/internal/storage"
	"github.com/egannguyen/instaprint/internal/storage/s3"
	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

const feedBuffer = 256

// Runtime holds the resolved dependencies shared by every command.
type Runtime struct {
	cfg    config.Config
	logger *slog.Logger

	orders  repository.OrderRepository
	shops   repository.ShopRepository
	pricing repository.PricingRepository
	events  repository.EventStore
	source  changefeed.Source

	publisher  messaging.Publisher
	subscriber messaging.Subscriber
	// inProcess is set when publisher and subscriber are the memory broker.
	inProcess bool

	dedup  mailer.DedupStore
	signer storage.Signer
	client *http.Client

	closers []func() error
}

// NewLogger returns the JSON logger used by every command and installs it
// as the slog default.
func NewLogger(cfg config.Config) *slog.Logger {
	var level slog.Level
	switch cfg.LogLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})).
		With("service", cfg.ServiceID)
	slog.SetDefault(logger)
	return logger
}

// NewRuntime connects to everything cfg names. Unset dependencies fall back
// to in-process implementations so a bare checkout runs without infrastructure.
func NewRuntime(ctx context.Context, cfg config.Config, logger *slog.Logger) (*Runtime, error) {
	r := &Runtime{cfg: cfg, logger: logger, client: &http.Client{Timeout: 10 * time.Second}}

	if err := r.initStore(ctx); err != nil {
		r.Close()
		return nil, err
	}
	if err := r.initMessaging(); err != nil {
		r.Close()
		return nil, err
	}
	if err := r.initCache(ctx); err != nil {
		r.Close()
		return nil, err
	}

	signer, err := s3.NewSigner(ctx, s3.Config{Bucket: cfg.S3Bucket, Region: cfg.S3Region, Endpoint: cfg.S3Endpoint})
	if err != nil {
		r.Close()
		return nil, fmt.Errorf("init document signer: %w", err)
	}
	r.signer = signer
	return r, nil
}

func (r *Runtime) initStore(ctx context.Context) error {
	if r.cfg.DatabaseURL == "" {
		r.logger.Warn("DATABASE_URL not set, using the in-memory store with demo data")
		store := repomemory.NewStore()
		seedDemo(ctx, store)
		feed := changefeed.NewFeed(feedBuffer)
		store.OnChange = feed.Push
		r.orders, r.shops, r.pricing, r.events, r.source = store.Orders(), store.Shops(), store.Pricing(), store.Events(), feed
		return nil
	}

	db, err := postgres.InitDB(ctx, r.cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("init database: %w", err)
	}
	r.closers = append(r.closers, db.Close)
	r.orders = postgres.NewOrderRepository(db)
	r.shops = postgres.NewShopRepository(db)
	r.pricing = postgres.NewPricingRepository(db)
	r.events = postgres.NewEventStore(db)

	listener, err := postgres.NewChangeListener(r.cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("init change listener: %w", err)
	}
	r.closers = append(r.closers, listener.Close)
	r.source = listener
	return nil
}

func (r *Runtime) initMessaging() error {
	if len(r.cfg.KafkaBrokers) == 0 {
		r.logger.Warn("KAFKA_BROKERS not set, using the in-process broker")
		broker := memory.NewBroker()
		r.publisher, r.subscriber, r.inProcess = broker, broker, true
		r.closers = append(r.closers, broker.Close)
		return nil
	}

	pub, sub, err := kafka.NewKafkaBroker(r.cfg.KafkaBrokers)
	if err != nil {
		return fmt.Errorf("init kafka: %w", err)
	}
	r.publisher, r.subscriber = pub, sub
	r.closers = append(r.closers, pub.Close)
	return nil
}

func (r *Runtime) initCache(ctx context.Context) error {
	if r.cfg.RedisURL == "" {
		r.logger.Warn("REDIS_URL not set, completion emails are not deduplicated")
		return nil
	}
	client, err := cache.Connect(ctx, r.cfg.RedisURL)
	if err != nil {
		return fmt.Errorf("connect redis: %w", err)
	}
	r.closers = append(r.closers, client.Close)
	r.dedup = cache.NewRedisDedupStore(client, "instaprint:completed-email:", r.cfg.DedupTTL)
	return nil
}

// Close releases connections in reverse order of acquisition.
func (r *Runtime) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

func (r *Runtime) syncDeps() shoporders.Deps {
	dispatchURL := r.cfg.EmailFunctionURL
	if dispatchURL == "" {
		dispatchURL = r.cfg.LocalEmailFunctionURL()
	}
	return shoporders.Deps{
		Orders:     r.orders,
		Shops:      r.shops,
		Subscriber: r.subscriber,
		Dispatcher: notify.NewHTTPDispatcher(dispatchURL, r.client),
		Signer:     r.signer,
	}
}

func (r *Runtime) syncConfig() shoporders.Config {
	return shoporders.Config{
		Throttle:    r.cfg.RefreshThrottle,
		Retry:       retry.Policy{MaxRetries: r.cfg.MaxRetries, Step: r.cfg.RetryStep},
		SessionIdle: r.cfg.SessionIdle,
		OnCompleted: func(o entity.Order) {
			event := entity.OrderCompleted{OrderID: o.ID, ShopID: o.ShopID, CompletedAt: o.UpdatedAt}
			if err := r.publisher.PublishEvent(context.Background(), messaging.OrdersCompletedTopic, o.ID, event); err != nil {
				r.logger.Error("Failed to publish OrderCompleted", "order_id", o.ID, "err", err)
			}
		},
	}
}

func (r *Runtime) newMailer() *mailer.Service {
	if r.cfg.PostmarkToken == "" {
		r.logger.Warn("POSTMARK_SERVER_TOKEN not set, completion emails are disabled")
		return nil
	}
	sender := mailer.NewPostmarkClient(r.cfg.PostmarkURL, r.cfg.PostmarkToken, r.client)
	return mailer.NewService(r.orders, r.shops, sender, r.dedup, r.cfg.MailFrom)
}

func (r *Runtime) geocoder() location.Geocoder {
	if r.cfg.GoogleMapsAPIKey == "" {
		return nil
	}
	return location.NewGoogleGeocoder(r.cfg.GeocodeURL, r.cfg.GoogleMapsAPIKey, r.client)
}

// Router builds the HTTP handler and the session registry behind it.
func (r *Runtime) Router() (http.Handler, *shoporders.Registry) {
	sessions := shoporders.NewRegistry(r.syncDeps(), r.syncConfig())
	h := deliveryhttp.NewHandler(
		service.NewCheckoutService(r.orders, r.shops, r.pricing, r.events, r.publisher),
		service.NewPricingService(r.pricing),
		location.NewService(r.shops, r.geocoder()),
		sessions,
		r.newMailer(),
	)
	return deliveryhttp.NewRouter(h), sessions
}

// RunAPI serves HTTP and the gRPC health endpoint until ctx is cancelled.
// The change relay runs alongside when it is embedded or the broker is
// in-process.
func (r *Runtime) RunAPI(ctx context.Context) error {
	router, sessions := r.Router()
	defer sessions.Close()

	httpServer := &http.Server{
		Addr:              r.cfg.HTTPAddr(),
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	var (
		grpcServer *grpc.Server
		grpcLis    net.Listener
	)
	if r.cfg.GRPCPort > 0 {
		lis, err := net.Listen("tcp", fmt.Sprintf(":%d", r.cfg.GRPCPort))
		if err != nil {
			return fmt.Errorf("listen gRPC: %w", err)
		}
		grpcServer, grpcLis = grpc.NewServer(), lis
		healthSrv := health.NewServer()
		healthpb.RegisterHealthServer(grpcServer, healthSrv)
		healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		r.logger.Info("HTTP server starting", "addr", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	if grpcServer != nil {
		g.Go(func() error {
			r.logger.Info("gRPC health server starting", "addr", grpcLis.Addr().String())
			if err := grpcServer.Serve(grpcLis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				return fmt.Errorf("grpc server: %w", err)
			}
			return nil
		})
	}

	if r.cfg.EmbeddedRelay || r.inProcess {
		g.Go(func() error { return r.relay().Run(ctx) })
	}

	g.Go(func() error {
		<-ctx.Done()
		r.logger.Info("Shutting down...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), r.cfg.ShutdownTimeout)
		defer cancel()
		if grpcServer != nil {
			grpcServer.GracefulStop()
		}
		return httpServer.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

func (r *Runtime) relay() *changefeed.Relay {
	return changefeed.NewRelay(r.source, r.publisher)
}

// RunRelay forwards store changes to the broker until ctx is cancelled.
func (r *Runtime) RunRelay(ctx context.Context) error {
	if r.inProcess {
		return errors.New("relay needs KAFKA_BROKERS: the in-process broker has no other readers")
	}
	return r.relay().Run(ctx)
}

// Watch runs one operator session as a live terminal console until the
// operator quits or ctx is cancelled. A nil in reads the terminal.
func (r *Runtime) Watch(ctx context.Context, in io.Reader, out io.Writer, operatorID, shopID string, filter entity.OrderFilter) error {
	syncer := shoporders.New(r.syncDeps(), r.syncConfig(), operatorID)
	defer syncer.Close()

	if err := syncer.Start(ctx, shopID); err != nil {
		if errors.Is(err, entity.ErrSelectionRequired) {
			fmt.Fprint(out, console.Shops(syncer.Status().Shops))
		}
		return err
	}

	opts := []tea.ProgramOption{tea.WithContext(ctx), tea.WithOutput(out)}
	if in != nil {
		opts = append(opts, tea.WithInput(in), tea.WithoutSignals())
	}
	_, err := tea.NewProgram(console.New(ctx, syncer, filter), opts...).Run()
	if ctx.Err() != nil && (errors.Is(err, tea.ErrProgramKilled) || errors.Is(err, ctx.Err())) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to run console: %w", err)
	}
	return nil
}

// OpenDB connects to DATABASE_URL and applies the schema.
func OpenDB(ctx context.Context, cfg config.Config) (*sql.DB, error) {
	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	return postgres.InitDB(ctx, cfg.DatabaseURL)
}
