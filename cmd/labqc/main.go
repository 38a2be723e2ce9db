package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/labqc-mcp-server/internal/app"
	"github.com/labqc-mcp-server/internal/config"
	"github.com/labqc-mcp-server/internal/domain"
	"github.com/labqc-mcp-server/internal/logging"
	"github.com/labqc-mcp-server/internal/setup"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	configDir string
	logLevel  string
}

var rootCmd = &cobra.Command{
	Use:   "labqc",
	Short: "Quality control for OCR'd laboratory reports",
	Long: `labqc detects the issuing laboratory of a recognized lab report, scores
the OCR and parse quality, decides on a corrective OCR rerun and gates the
LLM interpretation call. It runs as a CLI, an HTTP API or an MCP server.`,
	SilenceUsage: true,
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&rootFlags.configDir, "config-dir", "", "directory holding config.yaml (default: ., ./config, /etc/labqc)")
	pf.StringVar(&rootFlags.logLevel, "log-level", "", "override the configured log level")

	rootCmd.AddCommand(
		serveCmd,
		mcpCmd,
		detectCmd,
		metricsCmd,
		analyzeCmd,
		exportCmd,
		importCmd,
		setup.NewCommand(),
	)
	rootCmd.Version = version
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig reads config.yaml and LABQC_* overrides and validates them.
func loadConfig() (*config.Manager, error) {
	var (
		m   *config.Manager
		err error
	)
	if rootFlags.configDir != "" {
		m, err = config.NewManagerWithPaths(rootFlags.configDir)
	} else {
		m, err = config.NewManager()
	}
	if err != nil {
		return nil, err
	}

	if rootFlags.logLevel != "" {
		m.GetConfig().Logging.Level = rootFlags.logLevel
	}
	if err := m.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return m, nil
}

// buildApp assembles the pipeline for cfg with a logger built from its
// logging section.
func buildApp(ctx context.Context, cfg *domain.Config) (*app.App, error) {
	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("failed to create logger: %w", err)
	}
	return app.New(ctx, cfg, logger, app.Options{})
}

// quietLogger keeps one-shot commands from mixing logs into their output.
func quietLogger(cfg *domain.Config) {
	if rootFlags.logLevel == "" {
		cfg.Logging.Level = logrus.WarnLevel.String()
	}
	if cfg.Logging.Output == "" || cfg.Logging.Output == "stdout" {
		cfg.Logging.Output = "stderr"
	}
}
