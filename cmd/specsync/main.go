package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/yourorg/specsync/internal/store"
)

const defaultConfigContent = `service:
  name: "user-api"
  title: "User API"
  description: "A simple API to retrieve user data."
  version: "1.0.0"
  servers:
    - url: "/"
      description: "Root Server"

reconcile:
  existing: "./openapi.yaml"
  output: "./regenerated-openapi.yaml"
  force: false

# Batch targets for reconcile-all. An empty "new" uses the live generator.
targets: []
concurrency: 4

generator:
  ignore_paths:
    - /metrics
    - /openapi.json
    - /openapi.yaml
  ignore_methods:
    - OPTIONS
    - HEAD

sanitize:
  headers:
    - Authorization
    - Cookie
    - Set-Cookie
    - X-Api-Key
    - X-Auth-Token
  body_fields:
    - password
    - secret
    - token
    - api_key
    - access_token
    - refresh_token
    - credential
  replacement: "***REDACTED***"

server:
  host: "127.0.0.1"
  port: 8080
  api_key: ""

log:
  level: "info"
  format: "text"
`

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:           "specsync",
		Short:         "Keep a published OpenAPI document in sync with the live service",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&opts.cfgPath, "config", "", "config file path")
	root.PersistentFlags().BoolVar(&opts.verbose, "verbose", false, "enable verbose output")
	root.PersistentFlags().BoolVar(&opts.debug, "debug", false, "enable debug output")

	root.AddCommand(newInitCmd())
	root.AddCommand(newReconcileCmd(opts))
	root.AddCommand(newReconcileAllCmd(opts))
	root.AddCommand(newGenerateCmd(opts))
	root.AddCommand(newServeCmd(opts))
	root.AddCommand(newListCmd(opts))
	root.AddCommand(newShowCmd(opts))
	root.AddCommand(newDeleteCmd(opts))

	return root
}

func newInitCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Initialize ~/.specsync directory and default config",
		RunE: func(cmd *cobra.Command, args []string) error {
			home, err := os.UserHomeDir()
			if err != nil {
				return err
			}
			baseDir := filepath.Join(home, ".specsync")
			if err := os.MkdirAll(baseDir, 0o755); err != nil {
				return err
			}

			cfgFile := filepath.Join(baseDir, "config.yaml")
			if _, err := os.Stat(cfgFile); errors.Is(err, os.ErrNotExist) {
				if err := os.WriteFile(cfgFile, []byte(defaultConfigContent), 0o644); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "created", cfgFile)
			} else if err == nil {
				fmt.Fprintln(cmd.OutOrStdout(), "exists", cfgFile)
			} else {
				return err
			}

			dbPath := filepath.Join(baseDir, "specsync.db")
			s, err := store.NewSQLiteStore(dbPath)
			if err != nil {
				return err
			}
			defer s.Close()
			fmt.Fprintln(cmd.OutOrStdout(), "database ready", dbPath)
			return nil
		},
	}
}
