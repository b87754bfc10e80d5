package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"
)

func main() {
	// Initialize logger with level from environment variable
	logLevel := slog.LevelInfo
	if lvl := os.Getenv("LOG_LEVEL"); lvl != "" {
		switch strings.ToLower(lvl) {
		case "debug":
			logLevel = slog.LevelDebug
		case "info":
			logLevel = slog.LevelInfo
		case "warn", "warning":
			logLevel = slog.LevelWarn
		case "error":
			logLevel = slog.LevelError
		}
	}

	opts := &slog.HandlerOptions{
		Level: logLevel,
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stdout, opts)))

	configFile := ""
	if len(os.Args) > 1 {
		configFile = os.Args[1]
	}

	config, err := LoadConfig(configFile)
	if err != nil {
		slog.Error("Invalid configuration", "error", err)
		os.Exit(1)
	}

	if config.Logging.Format == "json" {
		slog.SetDefault(slog.New(slog.NewJSONHandler(os.Stdout, opts)))
	}

	var auth *BasicAuth
	if config.AuthFile != "" {
		auth, err = LoadAuthFile(config.AuthFile, config.AuthRealm, config.AuthExclude)
		if err != nil {
			slog.Error("Failed to load auth file", "file", config.AuthFile, "error", err)
			os.Exit(1)
		}
		slog.Info("Loaded authentication", "file", config.AuthFile)
	}

	handler := CreateHandler(config, auth)

	upstream := ""
	if config.Upstream != nil {
		upstream = config.Upstream.String()
	}
	slog.Info("Starting edge gateway",
		"port", config.ListenPort,
		"staticRoot", config.StaticRoot,
		"upstream", upstream,
		"routes", len(config.Rules))

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", config.ListenPort),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errChan := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-errChan:
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	case sig := <-sigChan:
		slog.Info("Received termination signal, shutting down", "signal", sig.String())
	}

	// Stop accepting connections and let in-flight streams drain for
	// the configured grace period before forcing the remainder closed.
	ctx, cancel := context.WithTimeout(context.Background(), config.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		slog.Warn("Grace period elapsed, closing remaining connections", "error", err)
		server.Close()
	}

	slog.Info("Server stopped")
}

// CreateHandler creates the main HTTP handler. Forwarding rules are
// consulted ahead of the static fallback, so every request is handled
// by exactly one of: a forwarding rule or the static asset server.
func CreateHandler(config *Config, auth *BasicAuth) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(chimw.Recoverer)
	r.Use(RequestLogger)

	if config.RateLimit > 0 {
		limiter := NewRateLimiter(rate.Limit(config.RateLimit), config.RateBurst)
		r.Use(limiter.Middleware)
	}
	if auth != nil {
		r.Use(auth.Middleware)
	}

	// Health check
	r.Get("/up", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})

	type boundRule struct {
		ForwardRule
		handler http.Handler
	}
	rules := make([]boundRule, 0, len(config.Rules))
	for _, rule := range config.Rules {
		rules = append(rules, boundRule{rule, NewForwarder(config.Upstream, rule)})
		slog.Info("Registered forwarding rule",
			"prefix", rule.Prefix,
			"upgrade", rule.Upgrade)
	}

	static := NewSPAHandler(config)

	r.Handle("/*", http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		for _, rule := range rules {
			if strings.HasPrefix(req.URL.Path, rule.Prefix) {
				rule.handler.ServeHTTP(w, req)
				return
			}
		}
		static.ServeHTTP(w, req)
	}))

	return r
}
