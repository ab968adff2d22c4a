package cmd

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/WilliamHails/7th-sem-project/internal/attendance"
	"github.com/WilliamHails/7th-sem-project/internal/config"
	"github.com/WilliamHails/7th-sem-project/internal/constants"
)

var canonicalCmd = &cobra.Command{
	Use:   "canonical [enrollment_no...]",
	Short: "Rebuild canonical face embeddings from raw images",
	Long: `Recompute canonical embeddings from enrollment images in RAW_DIR.

For each student the first raw image named <enrollment_no>_* is sent to the
embedding server and the resulting vector replaces the stored canonical
embedding.

Examples:
  # Rebuild two students
  face-attendance canonical CS001 CS002

  # Rebuild every student that has raw images
  face-attendance canonical --all --concurrency 8

  # JSON output for scripting
  face-attendance canonical --all --json`,
	RunE: runCanonical,
}

func init() {
	rootCmd.AddCommand(canonicalCmd)

	canonicalCmd.Flags().Bool("all", false, "Rebuild every enrollment found in RAW_DIR")
	canonicalCmd.Flags().Int("concurrency", constants.DefaultConcurrency, "Number of parallel embedding requests")
	canonicalCmd.Flags().Bool("json", false, "Output as JSON instead of progress bar")
}

// CanonicalRebuildResult is the summary printed by the canonical command
type CanonicalRebuildResult struct {
	Success       bool              `json:"success"`
	Processed     int               `json:"processed"`
	Rebuilt       int               `json:"rebuilt"`
	Failed        map[string]string `json:"failed,omitempty"`
	DurationMs    int64             `json:"duration_ms"`
	DurationHuman string            `json:"duration_human,omitempty"`
}

func runCanonical(cmd *cobra.Command, args []string) error {
	all := mustGetBool(cmd, "all")
	concurrency := mustGetInt(cmd, "concurrency")
	jsonOutput := mustGetBool(cmd, "json")

	if all == (len(args) > 0) {
		return errors.New("pass enrollment numbers or --all, not both")
	}

	ctx := context.Background()
	cfg := config.Load()
	startTime := time.Now()

	b, err := openBackend(ctx, cfg)
	if err != nil {
		return err
	}
	defer b.Close()

	var bar *progressbar.ProgressBar
	if !jsonOutput {
		total := len(args)
		if all {
			total = -1 // sized once the raw directory has been scanned
			fmt.Printf("Rebuilding canonical embeddings from %s\n\n", cfg.Storage.RawDir)
		} else {
			fmt.Printf("Rebuilding canonical embeddings for %d students\n\n", total)
		}
		bar = progressbar.NewOptions(total,
			progressbar.OptionSetDescription("Embedding faces"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("students"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionFullWidth(),
		)
	}

	onProgress := func(p attendance.RebuildProgress) {
		if bar != nil {
			if all {
				bar.ChangeMax(p.Total)
			}
			bar.Add(1)
		}
	}

	var rebuilt *attendance.RebuildResult
	if all {
		rebuilt, err = b.service.RebuildAll(ctx, concurrency, onProgress)
		if err != nil {
			return fmt.Errorf("failed to scan raw images: %w", err)
		}
		if rebuilt.Processed == 0 {
			if jsonOutput {
				return outputJSON(CanonicalRebuildResult{Success: true, DurationMs: time.Since(startTime).Milliseconds()})
			}
			fmt.Printf("No raw images found in %s\n", cfg.Storage.RawDir)
			return nil
		}
	} else {
		rebuilt = b.service.Rebuild(ctx, args, concurrency, onProgress)
	}

	if bar != nil {
		fmt.Println()
	}

	duration := time.Since(startTime)
	result := CanonicalRebuildResult{
		Success:       len(rebuilt.Failed) == 0,
		Processed:     rebuilt.Processed,
		Rebuilt:       rebuilt.Rebuilt,
		DurationMs:    duration.Milliseconds(),
		DurationHuman: formatDuration(duration),
	}
	if len(rebuilt.Failed) > 0 {
		result.Failed = make(map[string]string, len(rebuilt.Failed))
		for enr, err := range rebuilt.Failed {
			result.Failed[enr] = err.Error()
		}
	}

	if jsonOutput {
		result.DurationHuman = ""
		return outputJSON(result)
	}

	fmt.Println("\nRebuild complete!")
	fmt.Printf("  Processed: %d\n", result.Processed)
	fmt.Printf("  Rebuilt:   %d\n", result.Rebuilt)
	if len(result.Failed) > 0 {
		fmt.Printf("  Failed:    %d\n", len(result.Failed))
		failed := make([]string, 0, len(result.Failed))
		for enr := range result.Failed {
			failed = append(failed, enr)
		}
		sort.Strings(failed)
		for _, enr := range failed {
			fmt.Printf("    %s: %s\n", enr, result.Failed[enr])
		}
	}
	fmt.Printf("  Duration:  %s\n", result.DurationHuman)

	return nil
}
