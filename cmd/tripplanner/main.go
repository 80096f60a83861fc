// tripplanner is the CLI front end of the multi-agent trip planning engine.
//
// Run "tripplanner plan" to start a session, answer the approval gates with
// "resume", explore budgets with "what-if", and publish with "share".
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/yashagarwalkdu25/Insufficient-Tokens-sub000/internal/config"
)

var (
	configPath string
	dbPath     string
	verbose    bool

	logger   *zap.Logger
	settings *config.Settings
	tracerSD func(context.Context) error
)

var rootCmd = &cobra.Command{
	Use:   "tripplanner",
	Short: "Multi-agent travel itinerary planner for India trips",
	Long: `tripplanner orchestrates a graph of research, negotiation, and
itinerary agents over live travel data. Sessions checkpoint after every
agent, so a run can pause at an approval gate and resume days later.`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A missing .env is fine; explicit env vars still apply.
		_ = godotenv.Load()

		var err error
		settings, err = config.Load(configPath)
		if err != nil {
			return err
		}
		if dbPath != "" {
			settings.DatabasePath = dbPath
		}
		if verbose {
			settings.Debug = true
		}

		zcfg := zap.NewProductionConfig()
		zcfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
		if settings.Debug {
			zcfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
		}
		logger, err = zcfg.Build()
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}

		if !settings.DisableTracing && settings.Debug {
			exp, err := stdouttrace.New(stdouttrace.WithPrettyPrint())
			if err != nil {
				return fmt.Errorf("failed to initialize tracing: %w", err)
			}
			tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp))
			otel.SetTracerProvider(tp)
			tracerSD = tp.Shutdown
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if tracerSD != nil {
			_ = tracerSD(context.Background())
		}
		if logger != nil {
			_ = logger.Sync()
		}
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "path to the SQLite session database")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "debug logging and tracing")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
