package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"

	"github.com/lingoloop/notifier/internal/config"
	apperrors "github.com/lingoloop/notifier/internal/errors"
	"github.com/lingoloop/notifier/internal/logger"
	"github.com/lingoloop/notifier/internal/output"
	"github.com/lingoloop/notifier/internal/telemetry"
)

var (
	verbose     bool
	configPath  string
	outputFmt   string
	accessToken string

	tracerProvider *sdktrace.TracerProvider
)

var rootCmd = &cobra.Command{
	Use:   "notifier",
	Short: "LingoLoop notifications in the terminal",
	Long: `notifier streams LingoLoop notifications and direct messages as they
arrive, shows them as toasts, and lets you open, mark read, delete and clear
them from the terminal.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := config.Init(configPath); err != nil {
			return fmt.Errorf("initializing config: %w", err)
		}

		if outputFmt != "" {
			if !output.ValidFormat(outputFmt) {
				return apperrors.ValidationError("output", "must be one of text, table, json")
			}
			config.Set("output.format", outputFmt)
		}

		level := config.GetString("log.level")
		if verbose {
			level = "debug"
		}
		// toasts own the terminal while watching
		var console io.Writer = os.Stderr
		if cmd.Name() == watchCmd.Name() {
			console = io.Discard
		}
		if err := logger.InitializeWithConsole(level, config.GetString("log.file"), console); err != nil {
			return fmt.Errorf("initializing logger: %w", err)
		}

		tp, err := telemetry.InitTracer(telemetry.Config{
			ServiceName:  telemetry.ServiceName,
			Environment:  config.GetString("environment"),
			OTLPEndpoint: config.GetString("telemetry.endpoint"),
			Enabled:      config.GetBool("telemetry.enabled"),
			SamplingRate: config.GetFloat("telemetry.sampling_rate"),
		})
		if err != nil {
			logger.WarnWithErr("Tracing disabled", err)
		}
		tracerProvider = tp
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		shutdown()
	},
}

func shutdown() {
	if tracerProvider != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := telemetry.Shutdown(ctx, tracerProvider); err != nil {
			logger.WarnWithErr("Tracer shutdown failed", err)
		}
		tracerProvider = nil
	}
	_ = logger.Close()
}

// Execute runs the root command and exits non-zero on failure
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		output.New(os.Stderr, output.FormatText).Error("%s", apperrors.UserMessage(err))
		shutdown()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: ~/.config/lingoloop/notifier/config.toml)")
	rootCmd.PersistentFlags().StringVarP(&outputFmt, "output", "o", "", "Output format: text, table, json")
	rootCmd.PersistentFlags().StringVar(&accessToken, "token", "", "Access token (default: auth.access_token from config)")

	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(countCmd)
	rootCmd.AddCommand(openCmd)
	rootCmd.AddCommand(readCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(versionCmd)
}
