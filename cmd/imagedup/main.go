package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"log/slog"

	"github.com/google/uuid"
	"github.com/lmittmann/tint"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/jhogan/imagedup/internal/config"
	"github.com/jhogan/imagedup/internal/dedup"
	"github.com/jhogan/imagedup/internal/imaging"
	"github.com/jhogan/imagedup/internal/review"
	"github.com/jhogan/imagedup/internal/scan"
	"github.com/jhogan/imagedup/internal/storage"
)

var (
	recurse     bool
	threshold   float64
	lookupLimit int

	logger = slog.New(
		tint.NewHandler(os.Stderr, &tint.Options{
			Level:      slog.LevelInfo,
			TimeFormat: "15:04:05",
		}),
	)
)

var rootCmd = &cobra.Command{
	Use:   "imagedup <path>",
	Short: "Find and review near-duplicate images",
	Long: `imagedup scans a directory for images, flags pairs whose pixel data is
nearly identical, and opens an interactive session to review, compare and
delete the duplicates.`,
	Args:         cobra.ExactArgs(1),
	SilenceUsage: true,
	RunE:         runScan,
}

var lookupCmd = &cobra.Command{
	Use:   "lookup <image>",
	Short: "Check an image against recorded scan history",
	Args:  cobra.ExactArgs(1),
	RunE:  runLookup,
}

func init() {
	rootCmd.Flags().BoolVarP(&recurse, "recurse", "r", false, "Scan subdirectories too")
	rootCmd.Flags().Float64VarP(&threshold, "threshold", "t", 0.9, "Fraction of identical bytes (0.1-1.0) required to flag a duplicate")
	lookupCmd.Flags().IntVarP(&lookupLimit, "limit", "n", 10, "Maximum matches to report")
	rootCmd.AddCommand(lookupCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func runScan(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	dir := args[0]
	if msg := rootPathError(dir); msg != "" {
		fmt.Fprintln(os.Stderr, msg)
		os.Exit(2)
	}

	clamped := dedup.ClampThreshold(threshold)
	if clamped != threshold {
		logger.Warn("threshold out of range, clamped", "requested", threshold, "using", clamped)
	}

	fmt.Println(review.ReportHeader)
	if recurse {
		fmt.Println("Recursion enabled")
	}
	fmt.Println("Counting files... this might take a while!")

	paths, err := scan.List(dir, recurse)
	if err != nil {
		return err
	}
	fmt.Printf("Found %d %s\n", len(paths), pluralize(len(paths), "file"))
	if len(paths) <= 1 {
		fmt.Println("Didn't find enough files to compare")
		return nil
	}

	fmt.Println("Starting file comparison")
	ops := imaging.NewOps()
	progress := newSweepProgress(len(paths))
	grouper := dedup.NewGrouper(ops, clamped, progress)

	// The sweep runs as a single background task; the foreground just
	// waits while the progress bar renders.
	var groups []*dedup.Group
	eg, ctx := errgroup.WithContext(ctx)
	eg.Go(func() error {
		var err error
		groups, err = grouper.Run(paths)
		return err
	})
	if err := eg.Wait(); err != nil {
		return err
	}
	progress.Finish()

	recordHistory(ctx, ops, dir, clamped, groups)

	if len(groups) == 0 {
		fmt.Println("No duplicates found")
		return nil
	}

	session := review.NewSession(groups, review.Config{Display: ops})
	return session.Run()
}

func runLookup(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cfg := config.Load()
	if !cfg.DB.Enabled() {
		return fmt.Errorf("scan history database is not configured (set IMAGEDUP_DB_NAME)")
	}
	store, err := storage.NewPostgresStore(ctx, cfg.DB.URL())
	if err != nil {
		return err
	}
	defer store.Close()

	path := args[0]
	history, err := store.PathHistory(ctx, path, lookupLimit)
	if err != nil {
		return err
	}
	if len(history) == 0 {
		fmt.Printf("No recorded scans contain %s\n", path)
	} else {
		fmt.Printf("Recorded in %d %s:\n", len(history), pluralize(len(history), "scan"))
		for _, m := range history {
			fmt.Printf("  %s  (scanned %s under %s)\n", m.Path, m.ScannedAt.Format(time.DateTime), m.Root)
		}
	}

	signature, err := imaging.NewOps().Signature(path)
	if err != nil {
		logger.Warn("could not compute signature, skipping nearest matches", "path", path, "err", err)
		return nil
	}
	similar, err := store.SimilarImages(ctx, signature, lookupLimit)
	if err != nil {
		return err
	}
	if len(similar) > 0 {
		fmt.Println("Nearest recorded signatures:")
		for _, m := range similar {
			fmt.Printf("  %.4f  %s  (scanned %s)\n", m.Distance, m.Path, m.ScannedAt.Format(time.DateTime))
		}
	}
	return nil
}

// recordHistory persists the finished sweep to every configured store.
// History is best effort: failures are logged and never block review.
func recordHistory(ctx context.Context, ops *imaging.Ops, dir string, threshold float64, groups []*dedup.Group) {
	cfg := config.Load()

	var stores []storage.Store
	if cfg.HistoryFile != "" {
		stores = append(stores, storage.NewFileStore(cfg.HistoryFile))
	}
	if cfg.DB.Enabled() {
		pg, err := storage.NewPostgresStore(ctx, cfg.DB.URL())
		if err != nil {
			logger.Warn("scan history database unavailable", "err", err)
		} else {
			stores = append(stores, pg)
		}
	}
	if len(stores) == 0 {
		return
	}

	record := storage.Scan{
		ID:        uuid.New(),
		Root:      dir,
		Threshold: threshold,
		ScannedAt: time.Now(),
	}
	for i, group := range groups {
		groupRecord := storage.GroupRecord{Ordinal: i}
		for _, path := range group.Paths {
			signature, err := ops.Signature(path)
			if err != nil {
				signature = nil
			}
			groupRecord.Images = append(groupRecord.Images, storage.ImageRecord{
				Path:      path,
				Signature: signature,
			})
		}
		record.Groups = append(record.Groups, groupRecord)
	}

	for _, store := range stores {
		if err := store.RecordScan(ctx, record); err != nil {
			logger.Warn("failed to record scan history", "err", err)
		}
		store.Close()
	}
}

// sweepProgress renders the pairwise sweep: the bar tracks the outer cursor
// and the description tracks how far through the current file's comparisons
// the inner cursor is.
type sweepProgress struct {
	bar     *progressbar.ProgressBar
	lastPct int
}

func newSweepProgress(total int) *sweepProgress {
	bar := progressbar.NewOptions(total,
		progressbar.OptionShowCount(),
		progressbar.OptionSetWidth(15),
		progressbar.OptionSetDescription("Comparing files..."),
		progressbar.OptionShowElapsedTimeOnFinish(),
	)
	return &sweepProgress{bar: bar, lastPct: -1}
}

func (p *sweepProgress) Outer(done, total int) {
	p.bar.Set(done)
}

func (p *sweepProgress) Inner(done, total int) {
	if total == 0 {
		return
	}
	pct := 100 * done / total
	if pct != p.lastPct {
		p.lastPct = pct
		p.bar.Describe(fmt.Sprintf("Comparing files... [current %3d%%]", pct))
	}
}

func (p *sweepProgress) Finish() {
	p.bar.Finish()
	fmt.Println()
}

// rootPathError returns the message shown when the scan root cannot be
// used. A root that cannot be stat'ed cannot be scanned, whatever the
// reason, so every stat failure is fatal.
func rootPathError(dir string) string {
	_, err := os.Stat(dir)
	switch {
	case err == nil:
		return ""
	case os.IsNotExist(err):
		return fmt.Sprintf("Directory '%s' does not exist", dir)
	default:
		return fmt.Sprintf("Cannot access '%s': %v", dir, err)
	}
}

func pluralize(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
