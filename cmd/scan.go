package cmd

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"dupefinder/internal/cache"
	"dupefinder/internal/match"
	"dupefinder/internal/models"
	"dupefinder/internal/scan"
)

var (
	scanRecursive      bool
	scanExactOnly      bool
	scanPerceptualOnly bool
	scanNoCache        bool
	scanLSH            string
	scanStrategy       string
	scanLargeLimit     int
	scanShowLimit      int
)

var scanCmd = &cobra.Command{
	Use:   "scan <folder>",
	Short: "Scan a folder for duplicate images",
	Long: `Scan a folder for images and detect duplicates.

The scan will:
1. Discover supported images (jpg, png, gif, webp, bmp, tiff, ...)
2. Analyze each file (cached, so re-scans only touch changed files)
3. Group byte-identical files by content hash
4. Cluster visually similar files by perceptual hash distance
5. Recommend which image to keep in each group

Example:
  dupefinder scan ./photos
  dupefinder scan ./photos --threshold 5 --strategy largest
  dupefinder scan ./photos --lsh on`,
	Args: cobra.ExactArgs(1),
	RunE: runScan,
}

func init() {
	scanCmd.Flags().BoolVarP(&scanRecursive, "recursive", "r", true, "Scan subdirectories")
	scanCmd.Flags().BoolVar(&scanExactOnly, "exact-only", false, "Only find byte-identical duplicates")
	scanCmd.Flags().BoolVar(&scanPerceptualOnly, "perceptual-only", false, "Only find visually similar images")
	scanCmd.Flags().BoolVar(&scanNoCache, "no-cache", false, "Analyze everything fresh, bypassing the cache")
	scanCmd.Flags().StringVar(&scanLSH, "lsh", "auto", "LSH acceleration: auto, on, or off")
	scanCmd.Flags().StringVar(&scanStrategy, "strategy", "quality", "Keep selection: quality, largest, smallest, newest, oldest")
	scanCmd.Flags().IntVar(&scanLargeLimit, "large-limit", 50000, "Auto-disable perceptual matching above this many files (0 = never)")
	scanCmd.Flags().IntVarP(&scanShowLimit, "limit", "n", 10, "Limit groups displayed (0 = all)")
	rootCmd.AddCommand(scanCmd)
}

func parseLSHMode(s string) (match.LSHMode, error) {
	switch s {
	case "auto":
		return match.LSHAuto, nil
	case "on":
		return match.LSHOn, nil
	case "off":
		return match.LSHOff, nil
	default:
		return match.LSHAuto, fmt.Errorf("invalid --lsh value %q (want auto, on, or off)", s)
	}
}

func runScan(cmd *cobra.Command, args []string) error {
	folder, err := filepath.Abs(args[0])
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	lshMode, err := parseLSHMode(scanLSH)
	if err != nil {
		return err
	}

	var store *cache.Cache
	if !scanNoCache {
		store, err = cache.New(dbPath)
		if err != nil {
			// The cache is an optimization; scan fresh without it.
			fmt.Fprintf(cmd.ErrOrStderr(), "warning: cache unavailable (%v), analyzing fresh\n", err)
			store = nil
		} else {
			defer store.Close()
		}
	}

	fmt.Printf("Scanning: %s\n", folder)
	fmt.Printf("Threshold: %d (Hamming distance)\n", threshold)
	fmt.Printf("Workers: %d\n\n", workers)

	lastLine := ""
	printStatus := func(s scan.State) {
		if lastLine != "" {
			fmt.Print("\r" + strings.Repeat(" ", len(lastLine)) + "\r")
		}
		lastLine = s.Message
		fmt.Print(lastLine)
	}

	orch := scan.NewOrchestrator(scan.Config{
		Directory:            folder,
		Recursive:            scanRecursive,
		Threshold:            threshold,
		Workers:              workers,
		ExactOnly:            scanExactOnly,
		PerceptualOnly:       scanPerceptualOnly,
		UseCache:             store != nil,
		LSHMode:              lshMode,
		Strategy:             scan.Strategy(scanStrategy),
		LargeCollectionLimit: scanLargeLimit,
	}, store, scan.WithObserver(printStatus))

	orch.Run()

	if lastLine != "" {
		fmt.Print("\r" + strings.Repeat(" ", len(lastLine)) + "\r")
	}

	final := orch.State()
	switch final.Status {
	case scan.StatusError:
		return fmt.Errorf("scan failed: %s", final.Message)
	case scan.StatusCancelled:
		fmt.Println(final.Message)
		return nil
	}

	fmt.Println("=== Scan Complete ===")
	fmt.Printf("Images analyzed:  %d", len(final.Records))
	if final.Cache.Hits > 0 {
		fmt.Printf(" (%d from cache, %.0f%% hit rate)", final.Cache.Hits, final.Cache.HitRate())
	}
	fmt.Println()
	if len(final.Failed) > 0 {
		fmt.Printf("Failed files:     %d\n", len(final.Failed))
	}
	fmt.Printf("Duplicate groups: %d\n", len(final.Groups))

	var wasted int64
	for _, g := range final.Groups {
		wasted += g.WastedBytes()
	}
	fmt.Printf("Reclaimable:      %s\n\n", models.FormatSize(wasted))

	shown := final.Groups
	if scanShowLimit > 0 && scanShowLimit < len(shown) {
		shown = shown[:scanShowLimit]
	}
	for _, group := range shown {
		printGroup(group, final.Selections)
	}
	if len(shown) < len(final.Groups) {
		fmt.Printf("... and %d more groups (use -n 0 to show all)\n", len(final.Groups)-len(shown))
	}

	return nil
}

func printGroup(group *models.DuplicateGroup, selections map[string]string) {
	fmt.Printf("Group #%d (%s, %d images)\n", group.ID, group.MatchType, len(group.Images))
	for _, img := range group.Images {
		marker := "✗"
		if selections[img.Path] == scan.Keep {
			marker = "✓"
		}
		fmt.Printf("  %s %-50s  %s  %-5s  %8s  score %.0f\n",
			marker, shortenPath(img.Path, 50), img.Resolution(),
			strings.ToUpper(img.Format), models.FormatSize(img.FileSize), img.QualityScore)
	}
	fmt.Println()
}

func shortenPath(path string, maxLen int) string {
	if len(path) <= maxLen {
		return path
	}
	return "..." + path[len(path)-(maxLen-3):]
}
