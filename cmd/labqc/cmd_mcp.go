package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/labqc-mcp-server/internal/config"
	"github.com/labqc-mcp-server/internal/mcp"
)

var mcpFlags struct {
	transport string
	port      int
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server",
	Long: `Starts the MCP server. It needs no external services: diagnostics are
kept in SQLite under LABQC_DATA_DIR (default ~/.labqc) and cached in memory.
Settings come from LABQC_* environment variables.`,
	RunE: runMCP,
}

func init() {
	f := mcpCmd.Flags()
	f.StringVar(&mcpFlags.transport, "transport", "", "stdio or http (default from LABQC_TRANSPORT)")
	f.IntVar(&mcpFlags.port, "port", 0, "HTTP port for the http transport (default from LABQC_HTTP_PORT)")
}

func runMCP(cmd *cobra.Command, _ []string) error {
	lite := config.LoadLiteConfig()
	if mcpFlags.transport != "" {
		lite.Transport = mcpFlags.transport
	}
	if mcpFlags.port > 0 {
		lite.HTTPPort = mcpFlags.port
	}
	if rootFlags.logLevel != "" {
		lite.LogLevel = rootFlags.logLevel
	}
	if err := lite.EnsureDataDir(); err != nil {
		return err
	}

	cfg := lite.ToConfig()
	a, err := buildApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	a.Logger.WithFields(logrus.Fields{
		"transport": lite.Transport,
		"data_dir":  lite.DataDir,
	}).Info("Starting labqc MCP server")

	return mcp.NewServer(cfg.MCP, a).Serve(cmd.Context(), lite.Transport, lite.HTTPPort)
}
