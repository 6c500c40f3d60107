// File: cmd/cache.go
package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/buildmedic/buildmedic-cli/internal/cache"
	"github.com/buildmedic/buildmedic-cli/internal/observability"
)

// newCacheCmd groups the result cache maintenance commands.
func newCacheCmd() *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and maintain the analysis result cache",
	}
	cacheCmd.AddCommand(newCacheStatsCmd())
	cacheCmd.AddCommand(newCacheClearCmd())
	cacheCmd.AddCommand(newCacheSweepCmd())
	return cacheCmd
}

func newCacheStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print cache entry count and hit/miss counters",
		RunE: func(cmd *cobra.Command, args []string) error {
			store := cache.New(appConfig.Cache, observability.GetLogger())
			payload := struct {
				Dir     string `json:"dir"`
				Enabled bool   `json:"enabled"`
				Entries int    `json:"entries"`
			}{store.Dir(), store.Enabled(), store.Stats().Entries}

			data, err := json.MarshalIndent(payload, "", "  ")
			if err != nil {
				return err
			}
			fmt.Println(string(data))
			return nil
		},
	}
}

func newCacheClearCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clear",
		Short: "Remove every cached analysis result",
		RunE: func(cmd *cobra.Command, args []string) error {
			store := cache.New(appConfig.Cache, observability.GetLogger())
			if err := store.Clear(); err != nil {
				return fmt.Errorf("clear cache: %w", err)
			}
			fmt.Printf("Cache cleared: %s\n", store.Dir())
			return nil
		},
	}
}

func newCacheSweepCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Remove expired entries and enforce the size bound",
		RunE: func(cmd *cobra.Command, args []string) error {
			store := cache.New(appConfig.Cache, observability.GetLogger())
			removed := store.Sweep()
			fmt.Printf("Removed %d entries from %s\n", removed, store.Dir())
			return nil
		},
	}
}
