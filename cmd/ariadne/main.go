package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/spf13/cobra"
	"github.com/wehubfusion/Ariadne/internal/config"
	"github.com/wehubfusion/Ariadne/internal/tracing"
	"github.com/wehubfusion/Ariadne/pkg/concurrency"
	"github.com/wehubfusion/Ariadne/pkg/content"
	"github.com/wehubfusion/Ariadne/pkg/extract"
	"github.com/wehubfusion/Ariadne/pkg/notion"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	// Global flags
	configPath string
	workspace  string
	debug      bool

	logger   *zap.Logger
	cfg      *config.Config
	cleanups []func()
)

var rootCmd = &cobra.Command{
	Use:   "ariadne",
	Short: "Ariadne - flattens Notion content into plain text",
	Long: `Ariadne reads pages, databases and search results from Notion and
flattens them into plain text for downstream indexing.

It runs as an HTTP service (serve), as a NATS request/reply worker
(worker), or as a one-shot command (page, database, search).`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		zapConfig := zap.NewProductionConfig()
		if debug {
			zapConfig.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		var err error
		logger, err = zapConfig.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		cfg, err = config.Load(configPath)
		if err != nil {
			return err
		}

		cleanups = append(cleanups, concurrency.InitializeForKubernetes(logger))

		if cfg.SentryDSN != "" {
			if err := sentry.Init(sentry.ClientOptions{
				Dsn:         cfg.SentryDSN,
				Environment: cfg.Environment,
			}); err != nil {
				logger.Warn("Failed to initialize Sentry", zap.Error(err))
			} else {
				cleanups = append(cleanups, func() { sentry.Flush(2 * time.Second) })
			}
		}

		tracingConfig := tracing.DefaultConfig(cfg.Tracing.ServiceName)
		tracingConfig.OTLPEndpoint = cfg.Tracing.Endpoint
		tracingConfig.SampleRatio = cfg.Tracing.SampleRatio
		tracingConfig.Environment = cfg.Environment
		shutdown, err := tracing.SetupTracing(cmd.Context(), tracingConfig, logger)
		if err != nil {
			return err
		}
		cleanups = append(cleanups, func() {
			if err := tracing.ShutdownTracing(shutdown, logger); err != nil {
				logger.Warn("Failed to shut down tracing", zap.Error(err))
			}
		})
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		for i := len(cleanups) - 1; i >= 0; i-- {
			cleanups[i]()
		}
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	rootCmd.PersistentFlags().StringVarP(&workspace, "workspace", "w", "", "workspace name (default: first configured)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug logging")

	rootCmd.AddCommand(serveCmd, workerCmd, pageCmd, databaseCmd, searchCmd)
}

// newService wires the Notion client factory and the shared gateway
func newService() *extract.Service {
	gateway := concurrency.NewGateway(cfg.Gateway, logger)
	logger.Info("Gateway configured",
		zap.Int("max_concurrent", gateway.MaxConcurrent()),
		zap.String("source", string(cfg.Gateway.Source)))

	return extract.NewService(extract.Options{
		Keys: cfg,
		NewSource: func(apiKey string) (content.Source, error) {
			client, err := notion.NewClient(cfg.NotionClientConfig(apiKey), logger)
			if err != nil {
				return nil, err
			}
			return client, nil
		},
		Gateway:  gateway,
		PageSize: cfg.Gateway.PageSize,
		Password: cfg.Notion.Password,
		Logger:   logger,
	})
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		os.Exit(1)
	}
}
