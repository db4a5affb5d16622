package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"

	"github.com/spf13/cobra"

	"takaro-dashboard-api/internal/cache"
)

func cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and invalidate the shared cache",
	}
	cmd.AddCommand(cacheStatsCmd(), cacheInvalidateCmd())
	return cmd
}

func cacheStatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Print statistics of the shared cache",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx := context.Background()
			store := openCache(ctx, cfg, logger, nil)
			defer store.Close()
			if !store.Connected() {
				return fmt.Errorf("redis at %s is unreachable", redactURL(cfg.Cache.RedisURL))
			}

			stats := store.Stats(ctx)
			stats["backend"] = store.Backend()
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(stats)
		},
	}
}

func cacheInvalidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "invalidate <pattern>",
		Short:   "Delete keys matching a glob pattern from the shared cache",
		Example: "  takaro-dashboard-api cache invalidate 'takaro:mapinfo:*'\n  takaro-dashboard-api cache invalidate all",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadConfig(cmd)
			if err != nil {
				return err
			}
			ctx := context.Background()
			store := openCache(ctx, cfg, logger, nil)
			defer store.Close()
			if !store.Connected() {
				return fmt.Errorf("redis at %s is unreachable", redactURL(cfg.Cache.RedisURL))
			}

			pattern := args[0]
			if pattern == "all" {
				pattern = store.Keys().Prefix() + cache.KeySeparator + "*"
			}
			removed := store.DelPattern(ctx, pattern)
			fmt.Fprintf(cmd.OutOrStdout(), "removed %d keys matching %s\n", removed, pattern)
			return nil
		},
	}
}

// redactURL hides the password of a redis URL for logging.
func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return "<invalid url>"
	}
	return u.Redacted()
}
