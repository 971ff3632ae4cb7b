package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vango-dev/sharedstate/internal/config"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "\033[31mError:\033[0m %s\n", err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var configDir string

	rootCmd := &cobra.Command{
		Use:   "sharedstate",
		Short: "Keyed state shared across components",
		Long: `sharedstate runs a keyed state store shared by independently rendered
components, with change notification, opt-out listening and async loads.

Commands:
  demo     render a component tree against the store and print the result
  serve    run the demo store behind the read-only inspector`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configDir, "config", "c", ".", "Directory containing "+config.ConfigFileName)

	load := func() (*config.Config, error) {
		return config.Load(configDir)
	}

	rootCmd.AddCommand(
		demoCmd(load),
		serveCmd(load),
		versionCmd(),
	)
	return rootCmd
}

// success prints a success message.
func success(format string, args ...any) {
	fmt.Printf("\033[32m✓\033[0m %s\n", fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}
