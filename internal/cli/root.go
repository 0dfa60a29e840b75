// Package cli implements the newscheck command line: serve (default),
// migrate and version.
package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/tbourn/go-newscheck-backend/internal/sysutil"
)

// NewRootCmd builds the command tree. version is reported by `version` and
// attached to traces.
func NewRootCmd(version string) *cobra.Command {
	var envFile string

	root := &cobra.Command{
		Use:           "newscheck",
		Short:         "Fake-news detection backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return loadEnvFile(envFile)
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file to load before reading the environment")

	serve := newServeCmd(version)
	root.AddCommand(serve, newMigrateCmd(), newVersionCmd(version))

	// bare `newscheck` runs the server
	root.RunE = serve.RunE
	return root
}

// Execute runs the CLI and exits non-zero on error.
func Execute(version string) {
	if err := NewRootCmd(version).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

// loadEnvFile loads path into the process environment without overriding
// variables that are already set. A missing default file is not an error;
// NO_DOTENV=true skips loading altogether.
func loadEnvFile(path string) error {
	if path == "" || sysutil.IsTruthy(os.Getenv("NO_DOTENV")) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) && path == ".env" {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}
