package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var exportFlags struct {
	output string
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export stored diagnostics as JSON",
	Args:  cobra.NoArgs,
	RunE:  runExport,
}

var importCmd = &cobra.Command{
	Use:   "import <file|->",
	Short: "Import diagnostics from a JSON export, skipping known documents",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

func init() {
	exportCmd.Flags().StringVarP(&exportFlags.output, "output", "o", "", "write to file instead of stdout")
}

func runExport(cmd *cobra.Command, _ []string) error {
	m, err := loadConfig()
	if err != nil {
		return err
	}
	cfg := m.GetConfig()
	quietLogger(cfg)

	a, err := buildApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	if a.Store == nil {
		return fmt.Errorf("diagnostics storage is disabled")
	}

	var w io.Writer = cmd.OutOrStdout()
	if exportFlags.output != "" {
		f, err := os.Create(exportFlags.output)
		if err != nil {
			return err
		}
		defer f.Close()
		w = f
	}

	return a.Store.ExportJSON(cmd.Context(), w)
}

func runImport(cmd *cobra.Command, args []string) error {
	m, err := loadConfig()
	if err != nil {
		return err
	}
	cfg := m.GetConfig()
	quietLogger(cfg)

	a, err := buildApp(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer a.Close()
	if a.Store == nil {
		return fmt.Errorf("diagnostics storage is disabled")
	}

	var r io.Reader = cmd.InOrStdin()
	if args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return err
		}
		defer f.Close()
		r = f
	}

	imported, skipped, err := a.Store.ImportJSON(cmd.Context(), r)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Imported %d diagnostics, skipped %d already stored\n", imported, skipped)
	return nil
}
