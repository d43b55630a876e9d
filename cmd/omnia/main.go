package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"omnia/internal/app"
	"omnia/internal/catalog"
	"omnia/internal/config"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
)

var (
	storeURI string
	verbose  bool
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(exitCode(err))
	}
}

// exitCode maps an error to the process exit status.
func exitCode(err error) int {
	switch {
	case errors.Is(err, catalog.ErrValidation):
		return 2
	case errors.Is(err, catalog.ErrNotFound):
		return 3
	case errors.Is(err, catalog.ErrConflict):
		return 4
	default:
		return 1
	}
}

// loadConfig reads the config file named by the defaults.
func loadConfig() (*config.Config, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}
	cfg, err := config.ReadFromFile(defaults["config_path"])
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return cfg, nil
}

// newApp reads the config and creates an App. The caller must defer closeApp.
// command names the CLI command being run (e.g. "co add").
func newApp(cmd *cobra.Command, command string) (*app.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return newAppFromConfig(cmd, cfg, command, false)
}

func newAppFromConfig(cmd *cobra.Command, cfg *config.Config, command string, skipMigrationCheck bool) (*app.App, error) {
	a, err := app.New(cmd.Context(), cfg, command, app.Options{
		StoreURI:           storeURI,
		Verbose:            verbose,
		Console:            cmd.ErrOrStderr(),
		SkipMigrationCheck: skipMigrationCheck,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

func closeApp(cmd *cobra.Command, a *app.App) {
	if err := a.Close(context.WithoutCancel(cmd.Context())); err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "warning: %v\n", err)
	}
}

var rootCmd = &cobra.Command{
	Use:          "omnia",
	Short:        "Metadata catalog for files and collections",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration and catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		hostID := uuid.New().String()
		cfg := config.NewConfig(hostID, defaults["base_dir"])
		if err := config.Init(defaults["config_path"], cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		a, err := newAppFromConfig(cmd, cfg, "config init", true)
		if err != nil {
			return err
		}
		defer closeApp(cmd, a)
		if err := a.Migrate(); err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Configuration initialized at %s\n", defaults["config_path"])
		fmt.Fprintf(out, "Host ID:  %s\n", hostID)
		fmt.Fprintf(out, "Base Dir: %s\n", defaults["base_dir"])
		fmt.Fprintf(out, "Catalog:  %s\n", cfg.Store.URI)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}
		cfg, err := config.ReadFromFile(defaults["config_path"])
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}
		entries, err := config.Entries(cfg)
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Configuration from %s:\n\n", defaults["config_path"])
		printEntries(out, entries)
		return nil
	},
}

var configKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Create the snapshot encryption keys",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		pass, err := readPassphrase(cmd, "New passphrase: ", true)
		if err != nil {
			return err
		}
		if err := app.SetupKeys(cfg, pass); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Keys written to %s and %s\n",
			cfg.Encryption.PublicKeyPath, cfg.Encryption.PrivateKeyPath)
		return nil
	},
}

// db command
var dbCmd = &cobra.Command{
	Use:   "db",
	Short: "Manage the catalog store",
}

var dbMigrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending schema migrations",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}
		a, err := newAppFromConfig(cmd, cfg, "db migrate", true)
		if err != nil {
			return err
		}
		defer closeApp(cmd, a)

		if err := a.Migrate(); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Catalog schema is up to date.")
		return nil
	},
}

// history command
var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "View catalog operation history",
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")

		a, err := newApp(cmd, "history")
		if err != nil {
			return err
		}
		defer closeApp(cmd, a)

		ops, err := a.History(cmd.Context(), limit)
		if err != nil {
			return err
		}
		if len(ops) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No operations recorded.")
			return nil
		}
		printHistory(cmd.OutOrStdout(), ops)
		return nil
	},
}

// info command
var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show version and paths",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, "info")
		if err != nil {
			return err
		}
		defer closeApp(cmd, a)

		printInfo(cmd.OutOrStdout(), a.Info())
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&storeURI, "store-uri", "", "Catalog store URI (overrides store.uri)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Debug logging")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configCmd.AddCommand(configKeysCmd)
	configKeysCmd.Flags().String("passphrase-file", "", "Read the passphrase from a file (- for stdin)")

	dbCmd.AddCommand(dbMigrateCmd)

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(dbCmd)
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntP("limit", "n", 50, "Maximum number of operations to show")
	rootCmd.AddCommand(infoCmd)
	rootCmd.Version = app.Version
}
