package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/md-rashed-zaman/clinicbook/libs/config"
	"github.com/md-rashed-zaman/clinicbook/libs/db"
	"github.com/md-rashed-zaman/clinicbook/libs/httpx"
	"github.com/md-rashed-zaman/clinicbook/libs/kafkax"
	"github.com/md-rashed-zaman/clinicbook/libs/redisx"
	"github.com/md-rashed-zaman/clinicbook/libs/runtime"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/lock"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/notify"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/scheduling"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/storage"
	"github.com/redis/go-redis/v9"
)

// dependencies holds the collaborators chosen from the environment. Every
// external system is optional; without it the service falls back to an
// in-process implementation suitable for a single instance.
type dependencies struct {
	store       booking.Store
	locker      lock.Locker
	notifier    notify.Notifier
	schedules   scheduling.Provider
	rdb         *redis.Client
	readyChecks []runtime.ReadyCheck
	closers     []func()
}

func (d *dependencies) Close() {
	for i := len(d.closers) - 1; i >= 0; i-- {
		d.closers[i]()
	}
}

func openDependencies(ctx context.Context, logger *slog.Logger) (*dependencies, error) {
	d := &dependencies{}
	if err := d.openStore(ctx, logger); err != nil {
		d.Close()
		return nil, err
	}
	if err := d.openRedis(ctx, logger); err != nil {
		d.Close()
		return nil, err
	}
	if err := d.openNotifier(logger); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

func (d *dependencies) openStore(ctx context.Context, logger *slog.Logger) error {
	dbURL := config.String("DATABASE_URL", "")
	if dbURL == "" {
		logger.Warn("DATABASE_URL not set; using in-memory appointment store")
		d.store = storage.NewMemoryStore()
		return nil
	}

	maxConns, err := config.Int("DB_MAX_CONNS", 10)
	if err != nil {
		return err
	}
	pool, err := db.Open(ctx, dbURL, db.Options{MaxConns: int32(maxConns)})
	if err != nil {
		return err
	}
	d.closers = append(d.closers, pool.Close)

	store := storage.NewPostgresStore(pool)
	if config.Bool("MIGRATE_ON_START", false) {
		if err := store.Migrate(ctx); err != nil {
			return err
		}
		logger.Info("appointment schema applied")
	}
	d.store = store
	d.readyChecks = append(d.readyChecks, runtime.ReadyCheck{Name: "db", Check: db.ReadyCheck(pool)})
	return nil
}

func (d *dependencies) openRedis(ctx context.Context, logger *slog.Logger) error {
	redisDB, err := config.Int("REDIS_DB", 0)
	if err != nil {
		return err
	}
	rdb, err := redisx.Open(ctx, redisx.Options{
		Addr:     config.String("REDIS_ADDR", ""),
		Password: config.String("REDIS_PASSWORD", ""),
		DB:       redisDB,
	})
	if err != nil {
		return err
	}

	schedule, err := scheduleFromEnv()
	if err != nil {
		return err
	}
	static := scheduling.NewStaticProvider(schedule)

	if rdb == nil {
		logger.Info("REDIS_ADDR not set; using in-process doctor locks")
		d.locker = lock.NewKeyedMutex()
		d.schedules = static
		return nil
	}
	d.rdb = rdb
	d.closers = append(d.closers, func() { _ = rdb.Close() })
	d.readyChecks = append(d.readyChecks, runtime.ReadyCheck{Name: "redis", Check: redisx.ReadyCheck(rdb)})

	lockTTL, err := config.Duration("LOCK_TTL", 10*time.Second)
	if err != nil {
		return err
	}
	d.locker = lock.NewRedisLocker(rdb, lock.RedisLockerConfig{
		Prefix: config.String("LOCK_PREFIX", "clinicbook:lock"),
		TTL:    lockTTL,
	})
	d.schedules = scheduling.NewRedisProvider(rdb, config.String("SCHEDULE_KEY_PREFIX", ""), static, logger)
	logger.Info("redis enabled for doctor locks and schedules", "redis_addr", rdb.Options().Addr)
	return nil
}

func (d *dependencies) openNotifier(logger *slog.Logger) error {
	brokers := config.String("KAFKA_BROKERS", "")
	if brokers == "" {
		d.notifier = notify.NewLogNotifier(logger)
		return nil
	}
	writeTimeout, err := config.Duration("KAFKA_WRITE_TIMEOUT", 3*time.Second)
	if err != nil {
		return err
	}
	writer, err := notify.NewKafkaWriter(notify.KafkaConfig{Brokers: brokers, WriteTimeout: writeTimeout})
	if err != nil {
		return err
	}
	d.closers = append(d.closers, func() { _ = writer.Close() })
	d.notifier = notify.NewKafkaNotifier(writer, config.String("NOTIFY_TOPIC", notify.EventNotificationRequested))
	d.readyChecks = append(d.readyChecks, runtime.ReadyCheck{Name: "kafka", Check: kafkax.ReadyCheck(brokers)})
	return nil
}

func (d *dependencies) rateLimiter(perMinute int, logger *slog.Logger) httpx.Middleware {
	if perMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	if d.rdb != nil {
		rl := httpx.NewRedisRateLimiter(d.rdb, perMinute, time.Minute, config.String("RATE_LIMIT_PREFIX", "clinicbook:rl"))
		return rl.Middleware(logger, config.Bool("RATE_LIMIT_FAIL_OPEN", true))
	}
	return httpx.NewRateLimiter(perMinute, time.Minute).Middleware()
}

func scheduleFromEnv() (availability.Schedule, error) {
	start, err := config.ClockOffset("WORKDAY_START", "09:00")
	if err != nil {
		return availability.Schedule{}, err
	}
	end, err := config.ClockOffset("WORKDAY_END", "17:00")
	if err != nil {
		return availability.Schedule{}, err
	}
	stepMinutes, err := config.Int("SLOT_STEP_MINUTES", 30)
	if err != nil {
		return availability.Schedule{}, err
	}
	loc, err := time.LoadLocation(config.String("SCHEDULE_TIMEZONE", "UTC"))
	if err != nil {
		return availability.Schedule{}, err
	}
	return availability.Schedule{
		WorkStart: start,
		WorkEnd:   end,
		Step:      time.Duration(stepMinutes) * time.Minute,
		Location:  loc,
	}, nil
}
