package main

import (
	"context"
	"errors"
	"expvar"
	"fmt"
	"io/fs"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"eventreg/internal/db"
	"eventreg/internal/domain/paymentlogs"
	"eventreg/internal/domain/registrations"
	"eventreg/internal/mailer"
	"eventreg/internal/metrics"
	"eventreg/internal/payments"
	"eventreg/internal/ratelimiter"
	"eventreg/internal/registration"

	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// LoadRateLimiterConfig retrieves rate limiter settings from environment variables
func LoadRateLimiterConfig() ratelimiter.Config {
	defaultRequests := 20
	defaultEnabled := true

	requestsPerTimeFrame := defaultRequests
	if val, exists := os.LookupEnv("RATELIMITER_REQUESTS_COUNT"); exists {
		if parsedVal, err := strconv.Atoi(val); err == nil {
			requestsPerTimeFrame = parsedVal
		} else {
			fmt.Println("Invalid RATELIMITER_REQUESTS_COUNT, defaulting to", defaultRequests)
		}
	}

	enabled := defaultEnabled
	if val, exists := os.LookupEnv("RATE_LIMITER_ENABLED"); exists {
		if parsedVal, err := strconv.ParseBool(val); err == nil {
			enabled = parsedVal
		} else {
			fmt.Println("Invalid RATE_LIMITER_ENABLED, defaulting to", defaultEnabled)
		}
	}

	return ratelimiter.Config{
		RequestsPerTimeFrame: requestsPerTimeFrame,
		TimeFrame:            time.Minute,
		Enabled:              enabled,
	}
}

// NewLogger creates a new zap logger with color.
func NewLogger() (*zap.SugaredLogger, error) {
	encoderCfg := zap.NewProductionEncoderConfig()
	encoderCfg.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderCfg.EncodeLevel = zapcore.CapitalColorLevelEncoder

	consoleEncoder := zapcore.NewConsoleEncoder(encoderCfg)

	core := zapcore.NewCore(consoleEncoder, zapcore.AddSync(os.Stdout), zapcore.InfoLevel)

	return zap.New(core).Sugar(), nil
}

var version = "1.0.0"

func envOr(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	v, err := strconv.ParseBool(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func envInt(key string, fallback int) int {
	v, err := strconv.Atoi(os.Getenv(key))
	if err != nil {
		return fallback
	}
	return v
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func loadConfig() config {
	amount, err := strconv.ParseFloat(os.Getenv("EVENT_AMOUNT"), 64)
	if err != nil {
		amount = registration.DefaultAmount
	}

	return config{
		addr: envOr("ADDR", ":5000"),
		env:  envOr("ENV", "development"),
		cors: corsConfig{
			allowedOrigins: splitList(envOr("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),
		},
		payment: paymentConfig{
			gateway: envOr("PAYMENT_GATEWAY", payments.ProviderCashfree),
			cashfree: cashfreeConfig{
				appID:         os.Getenv("CASHFREE_APP_ID"),
				secretKey:     os.Getenv("CASHFREE_SECRET_KEY"),
				env:           envOr("CASHFREE_ENV", "sandbox"),
				returnURL:     os.Getenv("CASHFREE_RETURN_URL"),
				verifyWebhook: envBool("CASHFREE_WEBHOOK_VERIFY", true),
			},
			razorpay: razorpayConfig{
				keyID:         os.Getenv("RAZORPAY_KEY_ID"),
				keySecret:     os.Getenv("RAZORPAY_KEY_SECRET"),
				webhookSecret: os.Getenv("RAZORPAY_WEBHOOK_SECRET"),
				verifyWebhook: envBool("RAZORPAY_WEBHOOK_VERIFY", true),
			},
		},
		mail: mailConfig{
			fromEmail: os.Getenv("MAIL_FROM"),
			smtp: smtpConfig{
				host:     os.Getenv("SMTP_HOST"),
				port:     envInt("SMTP_PORT", 587),
				username: os.Getenv("SMTP_USERNAME"),
				password: os.Getenv("SMTP_PASSWORD"),
			},
		},
		event: registration.Event{
			Name:       envOr("EVENT_NAME", "Online Workshop"),
			Date:       os.Getenv("EVENT_DATE"),
			Time:       os.Getenv("EVENT_TIME"),
			Amount:     amount,
			Currency:   envOr("EVENT_CURRENCY", registration.DefaultCurrency),
			AdminEmail: os.Getenv("ADMIN_EMAIL"),
		},
		db: dbConfig{
			addr:        os.Getenv("DB_ADDR"),
			maxConns:    int32(envInt("DB_MAX_CONNS", 10)),
			maxIdleTime: envOr("DB_MAX_IDLE_TIME", "15m"),
		},
		auth: authConfig{
			basic: basicConfig{
				user: os.Getenv("AUTH_BASIC_USER"),
				pass: os.Getenv("AUTH_BASIC_PASS"),
			},
		},
		referenceSalt: os.Getenv("REFERENCE_SALT"),
		rateLimiter:   LoadRateLimiterConfig(),
	}
}

func newGatewayManager(cfg paymentConfig) (*payments.PaymentManager, error) {
	manager := payments.NewPaymentManager()

	manager.RegisterGateway(payments.ProviderCashfree, payments.NewCashfreeAdapter(
		cfg.cashfree.appID,
		cfg.cashfree.secretKey,
		cfg.cashfree.returnURL,
		strings.EqualFold(cfg.cashfree.env, "production"),
		payments.WithWebhookVerification(cfg.cashfree.verifyWebhook),
	))
	manager.RegisterGateway(payments.ProviderRazorpay, payments.NewRazorpayAdapter(
		cfg.razorpay.keyID,
		cfg.razorpay.keySecret,
		cfg.razorpay.webhookSecret,
		payments.WithWebhookVerification(cfg.razorpay.verifyWebhook),
	))

	if err := manager.SetDefault(strings.ToLower(cfg.gateway)); err != nil {
		return nil, err
	}
	return manager, nil
}

func newMailer(cfg config, logger *zap.SugaredLogger) (mailer.Client, error) {
	if cfg.mail.smtp.host == "" || cfg.env == "local" {
		logger.Infow("smtp is not configured, emails will be logged")
		return mailer.NewLogMailer(logger), nil
	}
	return mailer.NewSMTPMailer(
		cfg.mail.smtp.host,
		cfg.mail.smtp.port,
		cfg.mail.smtp.username,
		cfg.mail.smtp.password,
		cfg.mail.fromEmail,
	)
}

func main() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		fmt.Println("Error loading .env file:", err)
		os.Exit(1)
	}

	cfg := loadConfig()

	logger, err := NewLogger()
	if err != nil {
		fmt.Println("Error creating logger:", err)
		return
	}
	defer logger.Sync()

	// Storage: Postgres when DB_ADDR is set, otherwise process memory.
	var (
		store registrations.Store
		logs  paymentlogs.LogsStore
	)
	if cfg.db.addr != "" {
		pool, err := db.New(cfg.db.addr, cfg.db.maxConns, cfg.db.maxIdleTime)
		if err != nil {
			logger.Fatal(err)
		}
		defer pool.Close()
		logger.Info("database connection pool established")

		repo := registrations.NewPostgresStore(pool)
		if err := repo.Migrate(context.Background()); err != nil {
			logger.Fatal(err)
		}
		store = repo

		logsRepo := paymentlogs.NewLogsRepository(pool)
		if err := logsRepo.Migrate(context.Background()); err != nil {
			logger.Fatal(err)
		}
		logs = logsRepo

		expvar.Publish("database", expvar.Func(func() any {
			stat := pool.Stat()
			return map[string]int32{
				"total":    stat.TotalConns(),
				"idle":     stat.IdleConns(),
				"acquired": stat.AcquiredConns(),
			}
		}))
	} else {
		logger.Warn("DB_ADDR is not set, registrations are kept in memory")
		store = registrations.NewMemoryStore()
		logs = paymentlogs.NewMemoryLogs()
	}

	gateways, err := newGatewayManager(cfg.payment)
	if err != nil {
		logger.Fatal(err)
	}
	logger.Infow("payment gateways registered", "gateways", gateways.Names(), "default", gateways.Default())

	mail, err := newMailer(cfg, logger)
	if err != nil {
		logger.Fatal(err)
	}

	refs, err := registration.NewReferenceGenerator(cfg.referenceSalt)
	if err != nil {
		logger.Fatal(err)
	}

	notifier := registration.NewNotifier(mail, cfg.event, logger)
	service := registration.NewService(store, gateways, notifier, refs, cfg.event, logger)
	service.SetPaymentLogs(logs)

	m := metrics.New()
	service.SetRecorder(m)

	rateLimiter := ratelimiter.NewFixedWindowLimiter(
		cfg.rateLimiter.RequestsPerTimeFrame,
		cfg.rateLimiter.TimeFrame,
	)

	app := &application{
		config:       cfg,
		logger:       logger,
		registration: service,
		rateLimiter:  rateLimiter,
		metrics:      m,
	}

	// Metrics collected at /debug/vars
	expvar.NewString("version").Set(version)
	expvar.Publish("goroutines", expvar.Func(func() any {
		return runtime.NumGoroutine()
	}))

	mux := app.mount()

	logger.Fatal(app.run(mux))
}
