// File: cmd/root.go
package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/buildmedic/buildmedic-cli/internal/config"
	"github.com/buildmedic/buildmedic-cli/internal/observability"
)

var cfgFile string

// appConfig is populated by the root PersistentPreRunE and shared by the
// subcommands. Full validation is deferred to the commands that need a
// provider sequence; cache and doctor must work with a partial config.
var appConfig *config.Config

// NewRootCommand builds a fresh command tree. Tests construct their own tree
// so flag state never leaks between executions.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "buildmedic",
		Short:   "buildmedic explains CI build failures using AI providers.",
		Long: `buildmedic collects the context of a failed CI step, strips every
secret-shaped span from it, and asks a configured AI provider for a root
cause and suggested fixes. Results are cached by error fingerprint so
identical failures across builds are answered from disk.`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := initializeConfig(); err != nil {
				return err
			}

			var cfg config.Config
			if err := viper.Unmarshal(&cfg); err != nil {
				// Fall back to a console logger so the error is visible.
				observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "buildmedic"})
				return fmt.Errorf("failed to unmarshal config: %w", err)
			}
			if cfg.Cache.Dir == "" {
				cfg.Cache.Dir = defaultCacheDir()
			}

			observability.InitializeLogger(cfg.Logger)
			observability.GetLogger().Debug("Starting buildmedic", zap.String("version", Version))

			appConfig = &cfg
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./buildmedic.yaml)")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	rootCmd.AddCommand(newAnalyzeCmd())
	rootCmd.AddCommand(newCacheCmd())
	rootCmd.AddCommand(newDoctorCmd())

	return rootCmd
}

// Execute runs the command tree under a signal-aware context.
func Execute(ctx context.Context) error {
	err := NewRootCommand().ExecuteContext(ctx)
	if err != nil {
		if logger := observability.GetLogger(); logger != nil {
			logger.Error("Command execution failed", zap.Error(err))
		} else {
			fmt.Fprintln(os.Stderr, err)
		}
	}
	observability.Sync()
	return err
}

// initializeConfig wires defaults, the optional config file, and BUILDMEDIC_*
// environment variables into the global viper instance.
func initializeConfig() error {
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("buildmedic")
		viper.SetConfigType("yaml")
	}

	config.SetDefaults(viper.GetViper())

	viper.SetEnvPrefix("BUILDMEDIC")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
		// No config file is fine; env vars and defaults carry it.
	}
	return nil
}

func defaultCacheDir() string {
	base, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "buildmedic-cache")
	}
	return filepath.Join(base, "buildmedic")
}
