// Package main implements the TransitGuard knowledge graph API server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/spf13/cobra"
	"github.com/transitguard/transitguard-kg/engine/cypherqa"
	"github.com/transitguard/transitguard-kg/engine/domain"
	"github.com/transitguard/transitguard-kg/engine/graph"
	"github.com/transitguard/transitguard-kg/engine/service"
	"github.com/transitguard/transitguard-kg/pkg/metrics"
	"github.com/transitguard/transitguard-kg/pkg/natsutil"
	"github.com/transitguard/transitguard-kg/pkg/ollama"
	"github.com/transitguard/transitguard-kg/pkg/telemetry"
	"golang.org/x/time/rate"
)

const serviceName = "transitguard-api"

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		slog.Error("exited with error", "kind", domain.KindOf(err).String(), "err", err)
		os.Exit(1)
	}
}

type flags struct {
	csv  string
	port string
}

func newRootCmd() *cobra.Command {
	var f flags

	serve := func(cmd *cobra.Command, _ []string) error {
		cfg, logger, err := setup(f)
		if err != nil {
			return err
		}
		return run(cmd.Context(), cfg, logger)
	}

	root := &cobra.Command{
		Use:           "api",
		Short:         "Answer natural-language questions over the safety index graph",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          serve,
	}
	root.PersistentFlags().StringVar(&f.csv, "csv", "", "safety index CSV path (overrides SAFETY_INDEX_CSV)")
	root.PersistentFlags().StringVar(&f.port, "port", "", "HTTP port (overrides PORT)")

	root.AddCommand(&cobra.Command{
		Use:   "serve",
		Short: "Load the CSV, then serve HTTP",
		RunE:  serve,
	})
	root.AddCommand(&cobra.Command{
		Use:   "load",
		Short: "Load the CSV into Neo4j and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := setup(f)
			if err != nil {
				return err
			}
			return load(cmd.Context(), cfg, logger)
		},
	})
	return root
}

// setup reads .env and the environment, applies flag overrides and
// installs the default logger.
func setup(f flags) (Config, *slog.Logger, error) {
	_ = godotenv.Load()

	cfg, err := loadConfig()
	if err != nil {
		return cfg, nil, err
	}
	if f.csv != "" {
		cfg.CSVPath = f.csv
	}
	if f.port != "" {
		cfg.Port = f.port
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: cfg.LogLevel}))
	slog.SetDefault(logger)
	return cfg, logger, nil
}

func connectNeo4j(ctx context.Context, cfg Config) (neo4j.DriverWithContext, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.Neo4jURI, neo4j.BasicAuth(cfg.Neo4jUser, cfg.Neo4jPass, ""))
	if err != nil {
		return nil, domain.E(domain.KindConfig, "neo4j driver", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, domain.E(domain.KindConnection, "neo4j connect", err)
	}
	return driver, nil
}

func load(ctx context.Context, cfg Config, logger *slog.Logger) error {
	driver, err := connectNeo4j(ctx, cfg)
	if err != nil {
		return err
	}
	defer driver.Close(ctx)

	svc := service.New(graph.New(driver), nil, cfg.CSVPath,
		service.WithLogger(logger),
	)
	if err := svc.Init(ctx); err != nil {
		return err
	}
	rep := svc.Report()
	fmt.Printf("loaded %s: %d rows, %d nodes, %d edges in %s\n", rep.Path, rep.Rows, rep.Nodes, rep.Edges, rep.Elapsed)
	return nil
}

func run(parent context.Context, cfg Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// --- Tracing ---
	tp, err := telemetry.InitTracing(ctx, serviceName, cfg.OTLPEndpoint)
	if err != nil {
		return domain.E(domain.KindConfig, "tracing", err)
	}
	defer tp.Shutdown(context.Background())

	// --- Connect to Neo4j ---
	driver, err := connectNeo4j(ctx, cfg)
	if err != nil {
		return err
	}
	defer driver.Close(context.Background())
	store := graph.New(driver)

	// --- LLM and query chain ---
	llm, err := ollama.NewLLM(cfg.OllamaURL, cfg.OllamaModel)
	if err != nil {
		return err
	}
	opts := cypherqa.DefaultOptions()
	opts.TopK = cfg.TopK
	opts.ReadOnly = cfg.ReadOnly
	opts.ReturnIntermediateSteps = cfg.IntermediateSteps
	chain := cypherqa.New(llm, store, opts, logger)

	// --- Service ---
	collector := metrics.New("transitguard")
	svcOpts := []service.Option{service.WithMetrics(collector), service.WithLogger(logger)}
	if cfg.NATSURL != "" {
		pub, err := natsutil.Connect(cfg.NATSURL, cfg.NATSPrefix, logger)
		if err != nil {
			return domain.E(domain.KindConnection, "nats connect", err)
		}
		defer pub.Close()
		svcOpts = append(svcOpts, service.WithEvents(pub))
	}
	svc := service.New(store, chain, cfg.CSVPath, svcOpts...)

	// --- Build HTTP server ---
	var limiter *rate.Limiter
	if cfg.RateLimitRPS > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), max(1, int(cfg.RateLimitRPS)))
	}
	srv := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      newHandler(svc, collector, limiter, cfg.CORSOrigin, logger),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 120 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	return startServer(ctx, svc, srv, logger)
}

// startServer loads the graph, then listens until ctx is done. The listener is
// never opened when Init fails.
func startServer(ctx context.Context, svc interface{ Init(context.Context) error }, srv *http.Server, logger *slog.Logger) error {
	if err := svc.Init(ctx); err != nil {
		return err
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		logger.Info("api server starting", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutCtx)
}
