package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/jackc/pgx/v5/pgxpool"
	resendgo "github.com/resend/resend-go/v2"

	insightbox "gitlab.com/insightbox/insightbox-backend"
	"gitlab.com/insightbox/insightbox-backend/internal/adapters/repos/mongo"
	"gitlab.com/insightbox/insightbox-backend/internal/adapters/repos/postgres"
	"gitlab.com/insightbox/insightbox-backend/internal/adapters/services/maillog"
	"gitlab.com/insightbox/insightbox-backend/internal/adapters/services/resend"
	authapp "gitlab.com/insightbox/insightbox-backend/internal/application/auth"
	"gitlab.com/insightbox/insightbox-backend/internal/application/mail"
	mailevent "gitlab.com/insightbox/insightbox-backend/internal/application/mail/event"
	"gitlab.com/insightbox/insightbox-backend/internal/application/onboarding"
	"gitlab.com/insightbox/insightbox-backend/internal/application/onboarding/cmd"
	"gitlab.com/insightbox/insightbox-backend/internal/domain/account"
	httpport "gitlab.com/insightbox/insightbox-backend/internal/ports/http"
	watermillport "gitlab.com/insightbox/insightbox-backend/internal/ports/watermill"
	"gitlab.com/insightbox/insightbox-backend/pkg/gateway"
	"gitlab.com/insightbox/insightbox-backend/pkg/httpx"
	"gitlab.com/insightbox/insightbox-backend/pkg/logging"
	"gitlab.com/insightbox/insightbox-backend/pkg/mongox"
	pgpkg "gitlab.com/insightbox/insightbox-backend/pkg/postgres"
	"gitlab.com/insightbox/insightbox-backend/pkg/watermillx"
)

const (
	shutdownTimeout    = 30 * time.Second
	storeRetryInterval = 5 * time.Second
)

// Store is the selected persistence backend together with the event source that
// belongs to it.
type Store struct {
	Repo   cmd.Repo
	Health httpport.HealthReporter
	// Connect dials the store if it has no live handle yet.
	Connect     func(ctx context.Context) error
	Close       func(ctx context.Context) error
	Subscribers watermillx.SubscriberFactory
}

func main() {
	if err := run(); err != nil {
		slog.Error("insightbox api stopped", "error", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	handler, closeLog, err := logging.Setup(cfg.Mode, cfg.LogPath)
	if err != nil {
		return err
	}
	defer func() { _ = closeLog() }()
	slog.SetDefault(slog.New(handler))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownOTel, err := setupOTelSDK(ctx, handler, cfg.OTLPEndpoint != "")
	if err != nil {
		return fmt.Errorf("failed to set up OpenTelemetry SDK: %w", err)
	}
	defer func() {
		if err := shutdownOTel(context.Background()); err != nil {
			slog.Error("failed to shutdown OpenTelemetry SDK", "error", err)
		}
	}()

	slog.InfoContext(ctx, "starting insightbox api",
		"mode", cfg.Mode,
		"port", cfg.Port,
		"store", cfg.StoreDriver,
		"failure_policy", cfg.FailurePolicy,
	)

	wlogger := watermillx.NewSlogAdapter(slog.Default(), slog.LevelDebug)

	store, err := setupStore(cfg, wlogger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := store.Close(closeCtx); err != nil {
			slog.Error("failed to close store", "error", err)
		}
	}()

	if err := store.Connect(ctx); err != nil {
		if cfg.FailurePolicy == gateway.PolicyExit {
			return fmt.Errorf("store unreachable at startup: %w", err)
		}
		slog.WarnContext(ctx, "store unreachable at startup, serving degraded", "error", err)
	}

	errhandler, err := httpx.NewErrorHandler(insightbox.Locales)
	if err != nil {
		return fmt.Errorf("failed to load locales: %w", err)
	}

	mailApp := mail.NewApp(mail.Args{
		Sender: setupMailSender(cfg),
		Config: mail.Config{
			From:    cfg.MailFrom,
			Company: cfg.MailCompany,
			Address: cfg.MailAddress,
		},
	})

	onboardingApp := onboarding.NewApp(onboarding.Args{
		Mode:       cfg.Mode,
		Repo:       store.Repo,
		Dispatcher: mailApp.Dispatcher,
	})

	authApp := authapp.NewApp(authapp.Args{
		AccountGetter:         store.Repo,
		AccessTokenSecretKey:  cfg.AccessTokenSecret,
		RefreshTokenSecretKey: cfg.RefreshTokenSecret,
	})

	router, err := message.NewRouter(message.RouterConfig{CloseTimeout: shutdownTimeout}, wlogger)
	if err != nil {
		return fmt.Errorf("failed to create watermill router: %w", err)
	}
	go runEvents(ctx, store, router, wlogger, mailevent.NewMailEventHandler(mailevent.MailEventHandlerArgs{
		Dispatcher: mailApp.Dispatcher,
	}))

	port := httpport.NewPort(httpport.Args{
		OnboardingApp:      onboardingApp,
		AuthApp:            authApp,
		Errhandler:         errhandler,
		Mode:               cfg.Mode,
		AccessTokenSecret:  cfg.AccessTokenSecret,
		CookieDomain:       cfg.CookieDomain,
		CORSOrigin:         cfg.CORSOrigin,
		RateLimitPerMinute: cfg.RateLimitPerMinute,
		Health:             []httpport.HealthReporter{store.Health},
	})

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      port.Route(nil),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 35 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serverErr := make(chan error, 1)
	go func() {
		slog.InfoContext(ctx, "starting http server", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	select {
	case err := <-serverErr:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.ErrorContext(shutdownCtx, "server forced to shutdown", "error", err)
	}
	if err := router.Close(); err != nil {
		slog.ErrorContext(shutdownCtx, "failed to close event router", "error", err)
	}

	slog.Info("server exited")
	return nil
}

func setupStore(cfg *Config, wlogger watermill.LoggerAdapter) (*Store, error) {
	switch cfg.StoreDriver {
	case StoreDriverPostgres:
		gw := pgpkg.NewGateway(cfg.PgDSN, cfg.Mode, func(ctx context.Context, pool *pgxpool.Pool) error {
			if err := pgpkg.Migrate(cfg.PgDSN, insightbox.Migrations, "migrations"); err != nil {
				return err
			}
			return watermillx.InitializeEventSchema(pool, wlogger, account.EventStreamName)
		})

		return &Store{
			Repo:    postgres.NewAccountRepo(gw, nil, nil),
			Health:  gw,
			Connect: func(ctx context.Context) error { _, err := gw.Connect(ctx); return err },
			Close:   gw.Close,
			Subscribers: func(consumerGroup string) (message.Subscriber, error) {
				pool, err := gw.Connect(context.Background())
				if err != nil {
					return nil, err
				}
				return watermillx.SQLSubscribers(pool, wlogger, 0)(consumerGroup)
			},
		}, nil

	case StoreDriverMongo:
		gw := mongox.NewGateway(cfg.MongoURI, cfg.MongoDatabase)
		pubsub := watermillx.NewGoChannel(wlogger)
		bus, err := watermillx.NewEventBus(pubsub, wlogger)
		if err != nil {
			return nil, err
		}

		return &Store{
			Repo: mongo.NewAccountRepo(mongo.AccountRepoArgs{
				Gateway:  gw,
				EventBus: bus,
			}),
			Health:  gw,
			Connect: func(ctx context.Context) error { _, err := gw.Connect(ctx); return err },
			Close: func(ctx context.Context) error {
				return errors.Join(gw.Close(ctx), pubsub.Close())
			},
			Subscribers: watermillx.GoChannelSubscribers(pubsub),
		}, nil

	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.StoreDriver)
	}
}

func setupMailSender(cfg *Config) mail.MailSender {
	if cfg.ResendAPIKey == "" {
		slog.Warn("RESEND_API_KEY is not set, mails are only logged")
		return maillog.NewSender(cfg.Mode, nil)
	}
	return resend.NewSender(resendgo.NewClient(cfg.ResendAPIKey), resend.NewLimiter(cfg.ResendPerSecond))
}

// runEvents starts the event router once the store is reachable. Until then it
// retries every storeRetryInterval.
func runEvents(
	ctx context.Context,
	store *Store,
	router *message.Router,
	wlogger watermill.LoggerAdapter,
	mailHandler *mailevent.MailEventHandler,
) {
	for {
		err := store.Connect(ctx)
		if err == nil {
			break
		}
		slog.WarnContext(ctx, "event router waits for the store", "error", err)
		select {
		case <-ctx.Done():
			return
		case <-time.After(storeRetryInterval):
		}
	}

	wmport, err := watermillport.NewPort(router, store.Subscribers, wlogger)
	if err != nil {
		slog.ErrorContext(ctx, "failed to create watermill port", "error", err)
		return
	}
	if err := wmport.Register(watermillport.AppEventHandlers{Mail: mailHandler}); err != nil {
		slog.ErrorContext(ctx, "failed to register event handlers", "error", err)
		return
	}

	if err := router.Run(ctx); err != nil {
		slog.ErrorContext(ctx, "event router stopped", "error", err)
	}
}
