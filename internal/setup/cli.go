package setup

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// NewCommand returns the "setup" command tree.
func NewCommand() *cobra.Command {
	var configPath string

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Register labqc with a desktop MCP client",
	}
	cmd.PersistentFlags().StringVar(&configPath, "client-config", "", "MCP client config file (detected when empty)")

	cmd.AddCommand(
		newDesktopCommand(&configPath),
		newRemoveCommand(&configPath),
		newStatusCommand(&configPath),
		newValidateCommand(&configPath),
		newWizardCommand(&configPath),
	)
	return cmd
}

func newDesktopCommand(configPath *string) *cobra.Command {
	opts := Options{}

	cmd := &cobra.Command{
		Use:   "desktop",
		Short: "Add labqc to the MCP client configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			opts.ConfigPath = *configPath
			if opts.BinaryPath == "" {
				if exe, err := os.Executable(); err == nil {
					opts.BinaryPath = exe
				}
			}

			out := cmd.OutOrStdout()
			shown := opts.ConfigPath
			if shown == "" {
				shown, _ = DefaultConfigPath()
			}
			fmt.Fprintf(out, "Config file:   %s\n", shown)
			fmt.Fprintf(out, "Server binary: %s\n", opts.BinaryPath)
			if opts.DataDir != "" {
				fmt.Fprintf(out, "Data dir:      %s\n", opts.DataDir)
			}

			if !opts.AutoConfirm && !confirm(cmd.InOrStdin(), out, "Proceed with configuration? [Y/n]: ", true) {
				fmt.Fprintln(out, "Configuration cancelled.")
				return nil
			}

			path, err := Configure(opts)
			if err != nil {
				return fmt.Errorf("failed to configure MCP client: %w", err)
			}
			fmt.Fprintf(out, "✓ labqc registered in %s\n", path)
			fmt.Fprintln(out, "Restart the MCP client to load the new configuration.")
			return nil
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.BinaryPath, "binary", "b", "", "path to the labqc binary (this executable when empty)")
	f.StringVarP(&opts.DataDir, "data-dir", "d", "", "data directory exported as "+DataDirEnv)
	f.StringVar(&opts.Transport, "transport", "stdio", "MCP transport the client starts the server with")
	f.BoolVarP(&opts.AutoConfirm, "yes", "y", false, "skip the confirmation prompt")
	return cmd
}

func newRemoveCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "remove",
		Short: "Remove labqc from the MCP client configuration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			removed, err := Remove(*configPath)
			if err != nil {
				return err
			}
			if removed {
				fmt.Fprintln(cmd.OutOrStdout(), "✓ labqc removed")
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), "labqc was not registered")
			}
			return nil
		},
	}
}

func newStatusCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show the current registration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			status, err := GetStatus(*configPath)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Client config: %s\n", status.ConfigPath)
			if status.Configured {
				fmt.Fprintln(out, "Registered:    ✓")
				fmt.Fprintf(out, "Binary:        %s\n", status.BinaryPath)
			} else {
				fmt.Fprintln(out, "Registered:    ✗")
			}
			fmt.Fprintf(out, "Data dir:      %s\n", status.DataDir)
			for _, issue := range status.Issues {
				fmt.Fprintf(out, "  ⚠ %s\n", issue)
			}
			return nil
		},
	}
}

func newValidateCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Check that the registration is usable",
		RunE: func(cmd *cobra.Command, _ []string) error {
			valid, issues := Validate(*configPath)
			out := cmd.OutOrStdout()
			for _, issue := range issues {
				fmt.Fprintf(out, "  - %s\n", issue)
			}
			if !valid {
				return fmt.Errorf("configuration has %d issue(s)", len(issues))
			}
			fmt.Fprintln(out, "✓ Configuration is valid")
			return nil
		},
	}
}

func newWizardCommand(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "wizard",
		Short: "Interactive registration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runWizard(cmd.InOrStdin(), cmd.OutOrStdout(), *configPath)
		},
	}
}

func runWizard(in io.Reader, out io.Writer, configPath string) error {
	reader := bufio.NewReader(in)

	status, _ := GetStatus(configPath)
	if status.Configured {
		fmt.Fprintln(out, "✓ labqc is already registered.")
		if !confirmWith(reader, out, "Reconfigure? [y/N]: ", false) {
			return nil
		}
	}

	execPath, _ := os.Executable()
	binaryPath := prompt(reader, out, "Server binary path", execPath)
	if _, err := os.Stat(binaryPath); os.IsNotExist(err) {
		fmt.Fprintf(out, "⚠ Binary not found at %s\n", binaryPath)
		if !confirmWith(reader, out, "Continue anyway? [y/N]: ", false) {
			return fmt.Errorf("setup cancelled")
		}
	}
	dataDir := prompt(reader, out, "Data directory", DefaultDataDir())

	path, err := Configure(Options{ConfigPath: configPath, BinaryPath: binaryPath, DataDir: dataDir})
	if err != nil {
		return fmt.Errorf("failed to configure: %w", err)
	}
	if err := EnsureDataDir(dataDir); err != nil {
		fmt.Fprintf(out, "⚠ Could not create data directory: %v\n", err)
	}

	fmt.Fprintf(out, "✓ labqc registered in %s\n", path)
	return nil
}

// EnsureDataDir creates dataDir and its exports subdirectory.
func EnsureDataDir(dataDir string) error {
	if dataDir == "" {
		dataDir = DefaultDataDir()
	}
	for _, dir := range []string{dataDir, dataDir + string(os.PathSeparator) + "exports"} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}

func prompt(r *bufio.Reader, out io.Writer, label, def string) string {
	fmt.Fprintf(out, "%s [%s]: ", label, def)
	line, _ := r.ReadString('\n')
	if line = strings.TrimSpace(line); line != "" {
		return line
	}
	return def
}

func confirm(in io.Reader, out io.Writer, question string, def bool) bool {
	return confirmWith(bufio.NewReader(in), out, question, def)
}

func confirmWith(r *bufio.Reader, out io.Writer, question string, def bool) bool {
	fmt.Fprint(out, question)
	line, _ := r.ReadString('\n')
	switch strings.TrimSpace(strings.ToLower(line)) {
	case "":
		return def
	case "y", "yes":
		return true
	default:
		return false
	}
}
