package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/spf13/cobra"

	"github.com/nightlifeflyers/flyerstudio/internal/backdrop"
	"github.com/nightlifeflyers/flyerstudio/internal/mood"
	"github.com/nightlifeflyers/flyerstudio/internal/server"
	"github.com/nightlifeflyers/flyerstudio/internal/store"
)

var (
	serveAddr       string
	sentryDSN       string
	sentryEnv       string
	serveCacheMB    int64
	serveCacheTTL   time.Duration
	serveNoTraces   bool
	shutdownTimeout = 10 * time.Second
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	Long: `Starts the HTTP API: synchronous cleanup, chroma key, mood, blend and backdrop
endpoints, asynchronous cleanup jobs with SSE progress, and brand kit storage.
Backdrop generation is enabled when GEMINI_API_KEY (or --api-key) is set; errors
are reported to Sentry when SENTRY_DSN (or --sentry-dsn) is set.`,
	RunE: runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveAddr, "addr", getEnv("FLYER_ADDR", ":8080"), "Listen address")
	f.StringVar(&sentryDSN, "sentry-dsn", getEnv("SENTRY_DSN", ""), "Sentry DSN for error reporting")
	f.StringVar(&sentryEnv, "sentry-env", getEnv("SENTRY_ENVIRONMENT", "development"), "Sentry environment name")
	f.StringVar(&geminiAPIKey, "api-key", "", "Gemini API key (default $GEMINI_API_KEY)")
	f.StringVar(&backdropModel, "model", backdrop.DefaultModel, "Gemini image model")
	f.Int64Var(&serveCacheMB, "mood-cache-mb", 128, "Mood signal cache budget in MiB")
	f.DurationVar(&serveCacheTTL, "mood-cache-ttl", 6*time.Hour, "Mood signal cache TTL (0 = no expiry)")
	f.BoolVar(&serveNoTraces, "no-traces", false, "Do not write per-stage traces for jobs")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	if sentryDSN != "" {
		err := sentry.Init(sentry.ClientOptions{
			Dsn:         sentryDSN,
			Environment: sentryEnv,
			Release:     "flyerstudio@" + version,
		})
		if err != nil {
			return fmt.Errorf("failed to initialise sentry: %w", err)
		}
		defer sentry.Flush(2 * time.Second)
		slog.Info("Sentry error reporting enabled", "environment", sentryEnv)
	}

	fsStore, err := store.NewFSStore(dataDir)
	if err != nil {
		return fmt.Errorf("failed to create store: %w", err)
	}

	loader := newLoader(false)
	cache, err := mood.NewMemoryCache(serveCacheMB<<20, serveCacheTTL)
	if err != nil {
		return err
	}
	defer cache.Close()
	extractor := mood.NewExtractor(loader, cache)

	opts := server.Options{
		Store:  fsStore,
		Loader: loader,
		Mood:   extractor,
	}
	if !serveNoTraces {
		opts.TraceDir = fsStore.BaseDir()
	}

	apiKey := geminiAPIKey
	if apiKey == "" {
		apiKey = getEnv("GEMINI_API_KEY", "")
	}
	if apiKey != "" {
		gen, err := backdrop.NewGeminiGenerator(ctx, apiKey, backdropModel, extractor)
		if err != nil {
			return err
		}
		opts.Backdrops = gen
	} else {
		slog.Warn("GEMINI_API_KEY not set, backdrop generation disabled")
	}

	srv := server.NewServer(serveAddr, opts)

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("failed to shut down server: %w", err)
	}
	return <-errCh
}
