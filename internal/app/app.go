// Package app wires configuration, storage and transport into a runnable
// HTTP server.
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"propertybook/internal/config"
	"propertybook/internal/database"
	"propertybook/internal/domain/availability"
	"propertybook/internal/domain/booking"
	"propertybook/internal/domain/feed"
	"propertybook/internal/domain/payment"
	"propertybook/internal/domain/property"
	"propertybook/internal/domain/rate"
	"propertybook/internal/middleware"
	"propertybook/internal/pkg/jwt"
	"propertybook/internal/pkg/metrics"
	"propertybook/internal/pkg/response"
	"propertybook/internal/pkg/txmanager"
	"propertybook/internal/queue"
)

type App struct {
	cfg     *config.Config
	log     *zap.Logger
	db      *gorm.DB
	router  *gin.Engine
	limiter *middleware.RateLimiter
	Service *booking.Service
	closers []func() error
}

// New connects to every configured backend. Redis and RabbitMQ are optional:
// an unreachable one is logged and skipped.
func New(ctx context.Context, cfg *config.Config, log *zap.Logger) (*App, error) {
	a := &App{cfg: cfg, log: log}

	db, err := database.Connect(cfg.DatabaseURL, database.Options{
		MaxOpenConns:    cfg.DBMaxOpenConns,
		MaxIdleConns:    cfg.DBMaxIdleConns,
		ConnMaxLifetime: cfg.ConnMaxLifetime(),
		Debug:           cfg.LogLevel == "debug",
	}, log)
	if err != nil {
		return nil, err
	}
	a.db = db
	a.closers = append(a.closers, func() error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.Close()
	})
	if cfg.DBAutoMigrate {
		if err := database.Migrate(db); err != nil {
			a.Close()
			return nil, err
		}
	}

	weekend, err := cfg.WeekendWeekdays()
	if err != nil {
		a.Close()
		return nil, err
	}
	dpOptions, err := cfg.DownPaymentPercentages()
	if err != nil {
		a.Close()
		return nil, err
	}

	var m *metrics.Metrics
	if cfg.MetricsEnabled {
		m = metrics.New()
	}

	hub := feed.NewHub(cfg.AllowedOrigins(), log.Named("feed"))
	sinks := []booking.EventSink{hub}
	if cfg.AMQPURL != "" {
		pub, err := queue.NewPublisher(cfg.AMQPURL, cfg.AMQPExchange, log.Named("amqp"))
		if err != nil {
			log.Warn("rabbitmq unavailable, events stay local", zap.Error(err))
		} else {
			sinks = append(sinks, pub)
			a.closers = append(a.closers, pub.Close)
		}
	}

	deps := booking.Deps{
		Tx:           txmanager.New(db),
		Bookings:     booking.NewRepository(db),
		Workflow:     booking.NewWorkflowRepository(db),
		Payments:     payment.NewRepository(db),
		Properties:   property.NewRepository(db),
		Availability: availability.NewChecker(availability.NewRepository(db)),
		Nights:       availability.NewClaimStore(db),
		Calculator:   rate.NewCalculator(rate.NewCalendar(cfg.Location(), weekend), cfg.TaxRateBps, cfg.ChildWeightPercent),
		Sinks:        sinks,
		Metrics:      m,
		Logger:       log.Named("booking"),
		Config: booking.Config{
			DownPaymentOptions:            dpOptions,
			RequireFullPaymentForCheckout: cfg.RequireFullPaymentCheckout,
		},
	}
	if cfg.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
		err := client.Ping(pingCtx).Err()
		cancel()
		if err != nil {
			log.Warn("redis unavailable, quotes are not cached", zap.String("addr", cfg.RedisAddr), zap.Error(err))
			_ = client.Close()
		} else {
			deps.Quotes = rate.NewRedisQuoteCache(client, cfg.QuoteCacheTTLDuration())
			a.closers = append(a.closers, client.Close)
		}
	}
	a.Service = booking.NewService(deps)

	a.limiter = middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst, log.Named("ratelimit"))
	a.router = a.buildRouter(jwt.New(cfg.JWTSecret, cfg.JWTTTLDuration()), m, hub)
	return a, nil
}

func (a *App) buildRouter(jwtService *jwt.Service, m *metrics.Metrics, hub *feed.Hub) *gin.Engine {
	if a.cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(
		middleware.RequestID(),
		middleware.ErrorLogger(a.log.Named("http")),
		middleware.CORS(a.cfg.AllowedOrigins()),
		middleware.Timeout(a.cfg.RequestTimeoutDuration()),
	)
	if m != nil {
		r.Use(m.Middleware())
		r.GET(a.cfg.MetricsPath, m.Handler())
	}

	r.GET("/health", a.health)

	h := booking.NewHandler(a.Service)
	v1 := r.Group("/api/v1")
	booking.RegisterGuestRoutes(v1, h, a.limiter.Middleware())

	admin := v1.Group("/admin", middleware.JWTAuth(jwtService), middleware.AdminOnly())
	booking.RegisterAdminRoutes(admin, h)
	hub.RegisterRoutes(admin)
	return r
}

func (a *App) health(c *gin.Context) {
	sqlDB, err := a.db.DB()
	if err == nil {
		err = sqlDB.PingContext(c.Request.Context())
	}
	if err != nil {
		response.Error(c, http.StatusServiceUnavailable, "DB_UNAVAILABLE", "Database is not reachable")
		return
	}
	response.Success(c, http.StatusOK, gin.H{"status": "ok"})
}

func (a *App) Router() *gin.Engine {
	return a.router
}

// Run serves until ctx is cancelled, then drains in-flight requests.
func (a *App) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              ":" + a.cfg.AppPort,
		Handler:           a.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go a.sweepLimiter(ctx)

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("http server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err, ok := <-errCh:
		if ok {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.ShutdownTimeoutDuration())
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

func (a *App) sweepLimiter(ctx context.Context) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := a.limiter.Sweep(now); n > 0 {
				a.log.Debug("rate limiter swept", zap.Int("removed", n))
			}
		}
	}
}

// Close releases backends in reverse order of acquisition.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.log.Warn("close failed", zap.Error(err))
		}
	}
	a.closers = nil
}
