package main

import (
	"context"
	"net/http"
	"time"

	"github.com/md-rashed-zaman/clinicbook/libs/auth"
	"github.com/md-rashed-zaman/clinicbook/libs/config"
	"github.com/md-rashed-zaman/clinicbook/libs/httpx"
	otelx "github.com/md-rashed-zaman/clinicbook/libs/otel"
	"github.com/md-rashed-zaman/clinicbook/libs/runtime"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/booking"
	"github.com/md-rashed-zaman/clinicbook/services/booking-service/internal/handlers"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

func main() {
	if err := config.LoadDotEnv(); err != nil {
		panic(err)
	}
	service := config.String("SERVICE_NAME", "booking-service")
	port, err := config.Port("PORT", "8083")
	if err != nil {
		panic(err)
	}
	logger := runtime.NewLogger(service)

	ctx, stop := runtime.SignalContext()
	defer stop()

	otelCfg, err := otelx.ConfigFromEnv(service)
	if err != nil {
		panic(err)
	}
	otelShutdown, err := otelx.Setup(ctx, otelCfg)
	if err != nil {
		logger.Error("otel setup failed", "err", err)
	} else {
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = otelShutdown(shutdownCtx)
		}()
	}

	deps, err := openDependencies(ctx, logger)
	if err != nil {
		logger.Error("dependency setup failed", "err", err)
		panic(err)
	}
	defer deps.Close()

	coordinatorCfg, err := coordinatorConfigFromEnv()
	if err != nil {
		panic(err)
	}
	coordinator := booking.NewCoordinator(deps.store, deps.locker, deps.notifier, deps.schedules, logger, coordinatorCfg)
	bookingHandler := handlers.NewBookingHandler(coordinator, logger)

	mux := runtime.NewBaseMuxWithReady(deps.readyChecks...)
	bookingHandler.Register(mux)

	rateLimit, err := config.Int("RATE_LIMIT_PER_MINUTE", 120)
	if err != nil {
		panic(err)
	}
	requestTimeout, err := config.Duration("REQUEST_TIMEOUT", 10*time.Second)
	if err != nil {
		panic(err)
	}
	httpHandler := httpx.Chain(mux,
		httpx.WithRequestID,
		httpx.WithAccessLog(logger),
		httpx.WithCORS(corsPolicyFromEnv()),
		auth.Middleware(verifierFromEnv()),
		deps.rateLimiter(rateLimit, logger),
		httpx.WithBodyLimit(1<<20),
		httpx.WithJSONBody,
		httpx.WithTimeout(requestTimeout),
	)
	httpHandler = otelhttp.NewHandler(httpHandler, "booking")
	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           httpHandler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	if err := startHealthServer(ctx, logger, deps.readyChecks); err != nil {
		logger.Error("grpc health server failed to start", "err", err)
	}

	if err := runtime.Serve(ctx, logger, srv, 10*time.Second); err != nil {
		logger.Error("http server failed", "err", err)
	}
}

// verifierFromEnv returns nil when JWT_SECRET is unset, in which case the
// gateway-forwarded identity headers are trusted.
func verifierFromEnv() *auth.Verifier {
	secret := config.String("JWT_SECRET", "")
	if secret == "" {
		return nil
	}
	return auth.NewVerifier(secret, config.String("JWT_AUDIENCE", ""))
}

func coordinatorConfigFromEnv() (booking.Config, error) {
	attempts, err := config.Int("BOOKING_MAX_WRITE_ATTEMPTS", 3)
	if err != nil {
		return booking.Config{}, err
	}
	notifyTimeout, err := config.Duration("NOTIFY_TIMEOUT", 3*time.Second)
	if err != nil {
		return booking.Config{}, err
	}
	return booking.Config{MaxWriteAttempts: attempts, NotifyTimeout: notifyTimeout}, nil
}

func corsPolicyFromEnv() httpx.CORSPolicy {
	maxAge, err := config.Duration("CORS_MAX_AGE", 10*time.Minute)
	if err != nil {
		maxAge = 10 * time.Minute
	}
	methods := config.List("CORS_ALLOWED_METHODS")
	if len(methods) == 0 {
		methods = []string{"GET", "POST", "OPTIONS"}
	}
	headers := config.List("CORS_ALLOWED_HEADERS")
	if len(headers) == 0 {
		headers = []string{"Authorization", "Content-Type", httpx.RequestIDHeader, auth.UserIDHeader}
	}
	return httpx.CORSPolicy{
		AllowedOrigins:   config.List("CORS_ALLOWED_ORIGINS"),
		AllowedMethods:   methods,
		AllowedHeaders:   headers,
		AllowCredentials: config.Bool("CORS_ALLOW_CREDENTIALS", false),
		MaxAge:           maxAge,
	}
}
