package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"dupefinder/internal/cache"
	"dupefinder/internal/models"
)

var cleanupStaleDays int

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Inspect and maintain the analysis cache",
	Long: `The analysis cache stores image metadata and hashes keyed by file path,
modification time, and size, so a re-scan only analyzes changed files.

Subcommands:
  stats    Show entry count and size on disk
  cleanup  Drop entries for deleted files, optionally stale entries too
  clear    Remove all entries
  compact  Reclaim unused space in the database file`,
}

var cacheStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show cache statistics",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCache(func(c *cache.Cache) error {
			info, err := c.Stats()
			if err != nil {
				return err
			}
			fmt.Printf("Entries:  %d\n", info.Entries)
			fmt.Printf("Size:     %s\n", models.FormatSize(info.SizeBytes))
			fmt.Printf("Location: %s\n", info.Path)
			return nil
		})
	},
}

var cacheCleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Drop entries for missing files, and optionally stale entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCache(func(c *cache.Cache) error {
			removed, err := c.CleanupMissing()
			if err != nil {
				return err
			}
			fmt.Printf("Removed %d entries for missing files\n", removed)

			if cleanupStaleDays > 0 {
				maxAge := time.Duration(cleanupStaleDays) * 24 * time.Hour
				stale, err := c.CleanupStale(maxAge)
				if err != nil {
					return err
				}
				fmt.Printf("Removed %d entries unread for %d days\n", stale, cleanupStaleDays)
			}
			return nil
		})
	},
}

var cacheClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all cached entries",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCache(func(c *cache.Cache) error {
			if err := c.Clear(); err != nil {
				return err
			}
			fmt.Println("Cache cleared")
			return nil
		})
	},
}

var cacheCompactCmd = &cobra.Command{
	Use:   "compact",
	Short: "Reclaim unused space in the cache file",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withCache(func(c *cache.Cache) error {
			if err := c.Compact(); err != nil {
				return err
			}
			info, err := c.Stats()
			if err != nil {
				return err
			}
			fmt.Printf("Compacted to %s\n", models.FormatSize(info.SizeBytes))
			return nil
		})
	},
}

func withCache(fn func(*cache.Cache) error) error {
	c, err := cache.New(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open cache: %w", err)
	}
	defer c.Close()
	return fn(c)
}

func init() {
	cacheCleanupCmd.Flags().IntVar(&cleanupStaleDays, "stale", 0, "Also drop entries unread for this many days (0 = skip)")
	cacheCmd.AddCommand(cacheStatsCmd, cacheCleanupCmd, cacheClearCmd, cacheCompactCmd)
	rootCmd.AddCommand(cacheCmd)
}
