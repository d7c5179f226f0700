package main

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/chairtime/internal/booking"
	"github.com/md-rashed-zaman/chairtime/internal/clock"
	"github.com/md-rashed-zaman/chairtime/internal/handlers"
	"github.com/md-rashed-zaman/chairtime/internal/notify"
	"github.com/md-rashed-zaman/chairtime/internal/outbox"
	"github.com/md-rashed-zaman/chairtime/internal/reminder"
	"github.com/md-rashed-zaman/chairtime/internal/schedule"
	"github.com/md-rashed-zaman/chairtime/internal/stats"
	"github.com/md-rashed-zaman/chairtime/libs/config"
	"github.com/md-rashed-zaman/chairtime/libs/db"
	"github.com/md-rashed-zaman/chairtime/libs/httpx"
	"github.com/md-rashed-zaman/chairtime/libs/kafkax"
	otelx "github.com/md-rashed-zaman/chairtime/libs/otel"
	"github.com/md-rashed-zaman/chairtime/libs/runtime"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	service := config.String("SERVICE_NAME", "chairtime")
	port, err := config.Port("PORT", "8080")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelShutdown, err := otelx.Setup(ctx, otelx.ConfigFromEnv(service))
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	dbURL, err := config.RequiredString("DATABASE_URL")
	if err != nil {
		panic(err)
	}
	pool, err := db.Open(ctx, dbURL, db.Options{
		MaxConns: int32(config.Int("DB_MAX_CONNS", 8)),
		MinConns: int32(config.Int("DB_MIN_CONNS", 1)),
	})
	if err != nil {
		logger.Error("db connection failed", "err", err)
		panic(err)
	}
	defer pool.Close()

	biz := clock.NewBusiness(clock.SystemClock{}, config.Int("BUSINESS_UTC_OFFSET_HOURS", 3))

	bookingRepo := booking.NewRepository(pool)
	scheduleRepo := schedule.NewRepository(pool)
	reminderRepo := reminder.NewRepository(pool)
	outboxRepo := outbox.NewRepository(pool)
	statsRepo := stats.NewRepository(pool)

	var dispatcher notify.Dispatcher
	if token := strings.TrimSpace(config.String("TELEGRAM_BOT_TOKEN", "")); token != "" {
		dispatcher = notify.NewTelegramDispatcher(token)
	} else {
		logger.Warn("telegram token not configured, reminders will not be delivered")
		dispatcher = notify.NoopDispatcher{}
	}

	scheduler := reminder.NewScheduler(reminderRepo, bookingRepo, dispatcher, biz, logger, reminder.Config{
		DeliverTimeout: config.Duration("REMINDER_DELIVER_TIMEOUT", 10*time.Second),
	})
	defer scheduler.Stop()
	if err := scheduler.RestoreAll(ctx); err != nil {
		logger.Error("reminder restore failed", "err", err)
		panic(err)
	}

	outboxPublisher := outbox.NewPublisher(pool, outboxRepo, logger, outbox.PublisherConfig{
		Brokers:   config.String("KAFKA_BROKERS", ""),
		PollEvery: config.Duration("OUTBOX_POLL_EVERY", 2*time.Second),
		BatchSize: config.Int("OUTBOX_BATCH_SIZE", 50),
	})
	go outboxPublisher.Run(ctx)

	go runSweeps(ctx, logger, biz, bookingRepo, scheduleRepo,
		config.Duration("SWEEP_EVERY", time.Hour))

	staffChatID, _ := strconv.ParseInt(config.String("STAFF_CHAT_ID", "0"), 10, 64)
	bookingHandler := handlers.NewBookingHandler(
		bookingRepo, scheduleRepo, reminderRepo, outboxRepo,
		scheduler, dispatcher, biz, logger, staffChatID,
	)
	adminHandler := handlers.NewAdminHandler(
		bookingHandler, statsRepo, logger,
		config.String("ADMIN_PASSWORD_HASH", ""),
		config.String("JWT_SECRET", ""),
		config.Duration("ADMIN_TOKEN_TTL", 12*time.Hour),
	)

	checks := []runtime.ReadyCheck{{Name: "db", Check: db.ReadyCheck(pool)}}
	if brokers := strings.TrimSpace(config.String("KAFKA_BROKERS", "")); brokers != "" {
		checks = append(checks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	}
	mux := runtime.NewBaseMux(checks...)
	mux.HandleFunc("/api/dates", bookingHandler.Dates)
	mux.HandleFunc("/api/slots", bookingHandler.Slots)
	mux.HandleFunc("/api/bookings", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			bookingHandler.Create(w, r)
			return
		}
		bookingHandler.List(w, r)
	})
	mux.HandleFunc("/api/bookings/cancel", bookingHandler.Cancel)

	mux.HandleFunc("/admin/login", adminHandler.Login)
	mux.Handle("/admin/schedule", adminHandler.RequireAdmin(http.HandlerFunc(adminHandler.Schedule)))
	mux.Handle("/admin/bookings", adminHandler.RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPost {
			adminHandler.CreateWalkIn(w, r)
			return
		}
		adminHandler.Bookings(w, r)
	})))
	mux.Handle("/admin/bookings/cancel", adminHandler.RequireAdmin(http.HandlerFunc(adminHandler.Cancel)))
	mux.Handle("/admin/stats", adminHandler.RequireAdmin(http.HandlerFunc(adminHandler.Stats)))

	limitPerMinute := config.Int("RATE_LIMIT_PER_MINUTE", 60)
	var rateLimitMW httpx.Middleware
	if addr := strings.TrimSpace(config.String("REDIS_ADDR", "")); addr != "" {
		rdb := redis.NewClient(&redis.Options{
			Addr:     addr,
			Password: config.String("REDIS_PASSWORD", ""),
			DB:       config.Int("REDIS_DB", 0),
		})
		defer func() { _ = rdb.Close() }()

		rl := httpx.NewRedisRateLimiter(rdb, limitPerMinute, time.Minute, config.String("RATE_LIMIT_PREFIX", "rl"))
		rateLimitMW = rl.Middleware(logger, isTruthy(config.String("RATE_LIMIT_FAIL_OPEN", "true")))
		logger.Info("rate limiting enabled (redis)", "per_minute", limitPerMinute, "redis_addr", addr)
	} else {
		rl := httpx.NewRateLimiter(limitPerMinute, time.Minute)
		rateLimitMW = rl.Middleware()
		logger.Info("rate limiting enabled (in-memory)", "per_minute", limitPerMinute)
	}

	handler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithBodyLimit(int64(config.Int("REQUEST_BODY_LIMIT_BYTES", 1<<20))),
		httpx.WithTimeout(config.Duration("REQUEST_TIMEOUT", 10*time.Second)),
		rateLimitMW,
	)
	handler = otelhttp.NewHandler(handler, service)
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		logger.Info("http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server error", "err", err)
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown error", "err", err)
	}
	logger.Info("http server stopped")
}

// runSweeps periodically deletes elapsed appointments and compacts stale
// schedule rows.
func runSweeps(ctx context.Context, logger *slog.Logger, biz *clock.Business, bookings *booking.Repository, schedules *schedule.Repository, every time.Duration) {
	if every <= 0 {
		every = time.Hour
	}
	ticker := time.NewTicker(every)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			purged, err := bookings.PurgeElapsed(ctx, biz.Today(), biz.NowClock())
			if err != nil {
				logger.Error("retention sweep failed", "err", err)
			} else if purged > 0 {
				logger.Info("elapsed appointments purged", "count", purged)
			}

			compacted, err := schedules.Compact(ctx)
			if err != nil {
				logger.Error("schedule compaction failed", "err", err)
			} else if compacted > 0 {
				logger.Info("schedule rows compacted", "count", compacted)
			}
		}
	}
}

func isTruthy(s string) bool {
	switch strings.TrimSpace(strings.ToLower(s)) {
	case "1", "true", "t", "yes", "y", "on":
		return true
	default:
		return false
	}
}
