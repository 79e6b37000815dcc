package main

import (
	"context"
	"errors"
	"expvar"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"eventreg/internal/metrics"
	"eventreg/internal/ratelimiter"
	"eventreg/internal/registration"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

type application struct {
	config       config
	logger       *zap.SugaredLogger
	registration *registration.Service
	rateLimiter  ratelimiter.Limiter
	metrics      *metrics.Metrics
}

type config struct {
	addr          string
	env           string
	cors          corsConfig
	payment       paymentConfig
	mail          mailConfig
	event         registration.Event
	db            dbConfig
	auth          authConfig
	referenceSalt string
	rateLimiter   ratelimiter.Config
}

type corsConfig struct {
	allowedOrigins []string
}

type paymentConfig struct {
	gateway  string
	cashfree cashfreeConfig
	razorpay razorpayConfig
}

type cashfreeConfig struct {
	appID         string
	secretKey     string
	env           string
	returnURL     string
	verifyWebhook bool
}

type razorpayConfig struct {
	keyID         string
	keySecret     string
	webhookSecret string
	verifyWebhook bool
}

type mailConfig struct {
	fromEmail string
	smtp      smtpConfig
}

type smtpConfig struct {
	host     string
	port     int
	username string
	password string
}

type authConfig struct {
	basic basicConfig
}

type basicConfig struct {
	user string
	pass string
}

type dbConfig struct {
	addr        string
	maxConns    int32
	maxIdleTime string
}

func (app *application) mount() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if app.metrics != nil {
		r.Use(app.metrics.Middleware)
	}

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   app.config.cors.allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: false,
		MaxAge:           300, // Maximum value not ignored by any of major browsers
	}))

	r.Use(middleware.Timeout(30 * time.Second))

	r.Get("/", app.rootHandler)
	r.Get("/status", app.statusHandler)
	r.With(app.BasicAuthMiddleware()).Get("/debug/vars", expvar.Handler().ServeHTTP)
	if app.metrics != nil {
		r.With(app.BasicAuthMiddleware()).Handle("/metrics", app.metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/", app.apiInfoHandler)

		r.Group(func(r chi.Router) {
			r.Use(app.RateLimiterMiddleware)
			r.Post("/register", app.registerHandler)
			r.Post("/create-payment-order", app.createPaymentOrderHandler)
		})

		r.Get("/check-payment-status", app.checkPaymentStatusHandler)
		r.Post("/verify-payment", app.verifyPaymentHandler)
		r.Post("/confirm-payment", app.confirmPaymentHandler)
		r.Get("/check-payment", app.checkPaymentHandler)

		// Providers retry on anything but 2xx, so these always acknowledge.
		r.Post("/cashfree-webhook", app.paymentWebhookHandler("cashfree"))
		r.Post("/razorpay-webhook", app.paymentWebhookHandler("razorpay"))
		r.Post("/payment-webhook", app.paymentWebhookHandler(""))

		r.Route("/admin", func(r chi.Router) {
			r.Use(app.BasicAuthMiddleware())
			r.Get("/registrations", app.adminListRegistrationsHandler)
			r.Get("/payment-logs", app.adminPaymentLogsHandler)
		})
	})

	return r
}

func (app *application) run(mux http.Handler) error {
	srv := &http.Server{
		Addr:         app.config.addr,
		Handler:      mux,
		WriteTimeout: time.Second * 30,
		ReadTimeout:  time.Second * 10,
		IdleTimeout:  time.Minute,
	}

	// Implementing graceful shutdown
	shutdown := make(chan error)

	go func() {
		quit := make(chan os.Signal, 1)

		signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
		s := <-quit

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		app.logger.Infow("signal caught", "signal", s.String())

		err := srv.Shutdown(ctx)
		if werr := app.registration.Wait(ctx); werr != nil {
			app.logger.Warnw("confirmation emails still pending at shutdown", "error", werr.Error())
		}
		shutdown <- err
	}()

	app.logger.Infow("server has started", "addr", app.config.addr, "env", app.config.env)

	err := srv.ListenAndServe()
	if !errors.Is(err, http.ErrServerClosed) {
		return err
	}

	err = <-shutdown
	if err != nil {
		return err
	}

	app.logger.Infow("server has stopped", "addr", app.config.addr, "env", app.config.env)

	return nil
}
