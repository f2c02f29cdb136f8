// Package app wires the service desk components into a fiber application.
package app

import (
	"context"
	"fmt"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/servicedesk/internal/api/http"
	"github.com/spec-kit/servicedesk/internal/api/http/handlers"
	"github.com/spec-kit/servicedesk/internal/auth"
	"github.com/spec-kit/servicedesk/internal/bridge"
	"github.com/spec-kit/servicedesk/internal/chat"
	"github.com/spec-kit/servicedesk/internal/clock"
	"github.com/spec-kit/servicedesk/internal/config"
	"github.com/spec-kit/servicedesk/internal/domain"
	"github.com/spec-kit/servicedesk/internal/events"
	"github.com/spec-kit/servicedesk/internal/observability"
	"github.com/spec-kit/servicedesk/internal/persistence"
	"github.com/spec-kit/servicedesk/internal/repository"
	"github.com/spec-kit/servicedesk/internal/service"
	"github.com/spec-kit/servicedesk/internal/worker"
)

// Options overrides pieces of the default wiring.
type Options struct {
	Clock clock.Clock
	KV    persistence.KV
	// Publisher replaces the MQTT connection for the event bridge.
	Publisher bridge.Publisher
}

// App holds the running components.
type App struct {
	Fiber         *fiber.App
	Store         *repository.Store
	Events        events.Dispatcher
	Chat          *chat.Dispatcher
	Notifications *service.NotificationService
	Support       *service.SupportService
	Auth          *service.AuthService
	Metrics       *observability.Metrics

	kv     persistence.KV
	mqtt   *bridge.MQTTPublisher
	logger *zap.Logger
}

// New builds every component from cfg and registers the HTTP routes.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger, opts Options) (*App, error) {
	clk := opts.Clock
	if clk == nil {
		clk = clock.Real()
	}

	kv := opts.KV
	if kv == nil {
		opened, err := persistence.Open(ctx, cfg, logger)
		if err != nil {
			return nil, fmt.Errorf("open %s storage: %w", cfg.Storage.Backend, err)
		}
		kv = opened
	}

	metrics := observability.NewMetrics()
	store := repository.NewStore(repository.WithClock(clk))
	if cfg.App.SeedHistory {
		if err := repository.SeedHistory(store, domain.BusinessIdentity); err != nil {
			_ = kv.Close()
			return nil, fmt.Errorf("seed history: %w", err)
		}
	}

	bus := events.NewInMemoryDispatcher(logger)

	script := chat.DefaultScript()
	if cfg.Chat.ScriptPath != "" {
		loaded, err := chat.LoadScript(cfg.Chat.ScriptPath)
		if err != nil {
			_ = kv.Close()
			return nil, fmt.Errorf("load chat script: %w", err)
		}
		script = loaded
	}

	chatDispatcher := chat.NewDispatcher(chat.Dependencies{
		Store:      store,
		Events:     bus,
		Clock:      clk,
		Logger:     logger.Named("chat"),
		Metrics:    metrics,
		Script:     script,
		DelayScale: cfg.Chat.DelayScale,
	})
	notifications := service.NewNotificationService(service.NotificationDependencies{
		Dispatcher: bus,
		Store:      store,
		KV:         kv,
		Clock:      clk,
		Logger:     logger.Named("notifications"),
		Metrics:    metrics,
		Config:     cfg.Notification,
	})
	support := service.NewSupportService(service.SupportDependencies{
		Store:      store,
		Dispatcher: bus,
		Clock:      clk,
		Logger:     logger.Named("support"),
		Config:     cfg.Support,
	})
	tickets := service.NewTicketService(store)

	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes)
	authService, err := service.NewAuthService(cfg, tokens)
	if err != nil {
		_ = kv.Close()
		return nil, fmt.Errorf("init auth: %w", err)
	}

	worker.StartNotificationWorker(notifications, chatDispatcher)

	a := &App{
		Store:         store,
		Events:        bus,
		Chat:          chatDispatcher,
		Notifications: notifications,
		Support:       support,
		Auth:          authService,
		Metrics:       metrics,
		kv:            kv,
		logger:        logger,
	}

	publisher := opts.Publisher
	if publisher == nil && cfg.MQTT.Broker != "" {
		mq, err := bridge.Connect(cfg.MQTT, logger)
		if err != nil {
			logger.Warn("mqtt bridge disabled", zap.Error(err))
		} else {
			a.mqtt = mq
			publisher = mq
		}
	}
	if publisher != nil {
		bridge.NewEventBridge(publisher, cfg.MQTT.TopicPrefix, logger.Named("bridge")).Attach(bus)
	}

	a.Fiber = fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		DisableStartupMessage: true,
	})
	httptransport.RegisterMiddlewares(a.Fiber, logger, metrics, cfg.App.RequestTimeout())
	httptransport.RegisterRoutes(a.Fiber, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, cfg.Storage.Backend, kv),
		Auth:           handlers.NewAuthHandler(authService),
		Chat:           handlers.NewChatHandler(chatDispatcher, bus),
		Tickets:        handlers.NewTicketsHandler(tickets, store),
		Support:        handlers.NewSupportHandler(tickets, support),
		Notifications:  handlers.NewNotificationsHandler(notifications),
		AuthMiddleware: auth.NewAuthMiddleware(tokens),
		Metrics:        metrics,
	})

	return a, nil
}

// Close stops scheduled work and releases storage. Pending chat steps
// are revoked.
func (a *App) Close() error {
	a.Chat.Close()
	a.Support.Shutdown()
	if a.mqtt != nil {
		a.mqtt.Close()
	}
	if err := a.kv.Close(); err != nil {
		a.logger.Warn("close storage", zap.Error(err))
		return err
	}
	return nil
}
