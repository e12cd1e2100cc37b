package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"

	"github.com/fjod/go_cart/storefront/internal/apiclient"
	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/catalog"
	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/config"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/events"
	h "github.com/fjod/go_cart/storefront/internal/http"
	"github.com/fjod/go_cart/storefront/internal/logging"
	"github.com/fjod/go_cart/storefront/internal/metrics"
	"github.com/fjod/go_cart/storefront/internal/publisher"
	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/fjod/go_cart/storefront/internal/store"
	"github.com/fjod/go_cart/storefront/internal/tokenwatch"
)

// sessionTTL bounds how long a persisted session survives in redis.
const sessionTTL = 30 * 24 * time.Hour

func main() {
	cfg, err := config.Load()
	if err != nil {
		logrus.Fatalf("failed to load config: %v", err)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogFormat)

	st, err := openStore(cfg)
	if err != nil {
		logger.Fatalf("failed to open %s store: %v", cfg.StoreDriver, err)
	}
	defer st.Close()

	cat, err := catalog.Load(cfg.CatalogPath)
	if err != nil {
		logger.Fatalf("failed to load catalog: %v", err)
	}

	m := metrics.New()
	signals := events.NewBus[domain.LogoutSignal](logger)

	api, err := apiclient.New(apiclient.Config{
		BaseURL:        cfg.APIBaseURL,
		Timeout:        cfg.APITimeout,
		CaptureTimeout: cfg.CaptureTimeout,
		MaxRetries:     cfg.APIMaxRetries,
		Signals:        signals,
		Logger:         logger,
	})
	if err != nil {
		logger.Fatalf("failed to create api client: %v", err)
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	var wg sync.WaitGroup

	pub := newPublisher(ctx, &wg, cfg, m, logger)
	defer pub.Close()

	sess := session.New(api, st, signals, logger)
	defer sess.Close()
	if err := sess.Restore(ctx); err != nil {
		logger.WithError(err).Warn("could not restore session")
	}

	unsubscribe := signals.Subscribe(func(sig domain.LogoutSignal) {
		m.LogoutSignal(string(sig.Reason))
		if err := pub.Publish(context.Background(), publisher.Event{
			Type:       publisher.EventSessionEnded,
			OccurredAt: sig.At,
			Data:       map[string]any{"reason": string(sig.Reason)},
		}); err != nil {
			logger.WithError(err).Debug("analytics event dropped")
		}
	})
	defer unsubscribe()

	notice, unsubscribeNotice := h.NewSessionNotice(signals)
	defer unsubscribeNotice()

	watcher := tokenwatch.NewWatcher(sess.Token, signals, logger, tokenwatch.Config{
		Interval:      cfg.TokenCheckInterval,
		WarningWindow: cfg.TokenWarningWindow,
	})
	wg.Add(1)
	go func() {
		defer wg.Done()
		watcher.Run(ctx)
	}()

	shoppingCart := cart.New()
	flow := checkout.New(checkout.Deps{
		Cart:      shoppingCart,
		Session:   sess,
		Payments:  api,
		Store:     st,
		Publisher: pub,
		Recorder:  m,
		Logger:    logger,
	})

	router := h.NewRouter(h.RouterConfig{
		RequestTimeout:     cfg.RequestTimeout,
		MaxRequestBodySize: cfg.MaxRequestBodySize,
		RateLimitRPS:       cfg.RateLimitRPS,
		RateLimitBurst:     cfg.RateLimitBurst,
	}, h.Handlers{
		Products: h.NewProductHandler(cat),
		Cart:     h.NewCartHandler(shoppingCart, cat, pub, m, logger),
		Session:  h.NewSessionHandler(sess, watcher, notice, cfg.APITimeout+config.HandlerHeadroom, logger),
		Checkout: h.NewCheckoutHandler(flow, cfg.APITimeout+config.HandlerHeadroom, cfg.CaptureTimeout, logger),
	}, m, logger)

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Infof("storefront gateway starting on :%s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server error: %v", err)
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("server forced to shutdown: %v", err)
	}
	stop()
	wg.Wait()

	logger.Info("server exited")
}

func openStore(cfg *config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.StoreMemory:
		return store.NewMemoryStore(cfg.StorePrefix), nil
	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := client.Ping(ctx).Err(); err != nil {
			client.Close()
			return nil, err
		}
		return store.NewRedisStore(client, cfg.StorePrefix, sessionTTL), nil
	default:
		return store.NewSQLiteStore(cfg.SQLitePath, cfg.StorePrefix)
	}
}

func newPublisher(ctx context.Context, wg *sync.WaitGroup, cfg *config.Config, m *metrics.Metrics, logger *logrus.Logger) publisher.Publisher {
	brokers := cfg.Brokers()
	if len(brokers) == 0 {
		logger.Info("KAFKA_BROKERS not set, analytics disabled")
		return publisher.NopPublisher{}
	}

	p := publisher.NewKafkaPublisher(brokers, cfg.KafkaTopic, logger)
	p.OnDrop(m.AnalyticsDropped)
	wg.Add(1)
	go func() {
		defer wg.Done()
		p.Run(ctx)
	}()
	return p
}
