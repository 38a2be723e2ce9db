package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/labqc-mcp-server/internal/api"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API",
	RunE:  runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	m, err := loadConfig()
	if err != nil {
		return err
	}
	cfg := m.GetConfig()

	a, err := buildApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	server := api.NewServer(m, api.Dependencies{
		Logger:   a.Logger,
		Matcher:  a.Matcher,
		Pipeline: a.Pipeline,
		Rerun:    a.Rerun,
		Gate:     a.Gate,
		Store:    a.Store,
		Cache:    a.Cache,
	})

	a.Logger.WithFields(logrus.Fields{
		"host":    cfg.Server.Host,
		"port":    cfg.Server.Port,
		"storage": cfg.Storage.Driver,
	}).Info("Starting labqc HTTP API")

	if err := server.Start(cmd.Context()); err != nil {
		return err
	}
	a.Logger.Info("Server stopped")
	return nil
}
