package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	dbPath    string
	threshold int
	workers   int
)

var rootCmd = &cobra.Command{
	Use:   "dupefinder",
	Short: "Find duplicate and visually similar images",
	Long: `dupefinder finds exact duplicates and visually similar images across
large file collections and recommends which copy to keep.

Exact duplicates are detected by content hash. Similar images are detected
by 256-bit perceptual hashing; large collections are accelerated with a
locality-sensitive-hashing index. Analysis results are cached so repeated
scans only touch changed files.

Example usage:
  dupefinder scan ./photos              # Scan a folder for duplicates
  dupefinder scan ./photos --lsh on     # Force LSH acceleration
  dupefinder cache stats                # Inspect the analysis cache
  dupefinder cache cleanup --stale 30   # Drop old cache entries`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	homeDir, _ := os.UserHomeDir()
	defaultDB := filepath.Join(homeDir, ".dupefinder", "cache.db")

	rootCmd.PersistentFlags().StringVar(&dbPath, "db", defaultDB, "Path to the analysis cache database")
	rootCmd.PersistentFlags().IntVar(&threshold, "threshold", 10, "Hamming distance threshold (0-256, lower = stricter)")
	rootCmd.PersistentFlags().IntVar(&workers, "workers", 8, "Number of parallel analysis workers")
}
