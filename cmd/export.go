package main

import (
	"context"

	"github.com/desertthunder/novelx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// Export writes a work's chapters to disk with their translations and a manifest.
func (r *Runner) Export(ctx context.Context, cmd *cli.Command) error {
	workID := cmd.IntArg("work-id")
	if err := requireID("work-id", workID); err != nil {
		return err
	}
	chapterIDs, err := parseIDs(cmd.String("chapters"))
	if err != nil {
		return err
	}

	opts := tasks.BulkExportOpts{
		Format:     cmd.String("format"),
		OutputDir:  cmd.String("output"),
		NumWorkers: cmd.Int("workers"),
	}

	r.logger.Info("starting export", "work_id", workID, "format", opts.Format, "chapters", len(chapterIDs))
	r.writePlain("Exporting work %d...\n\n", workID)

	// Create progress channel and goroutine to handle updates
	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			switch update.Phase {
			case tasks.FetchWork, tasks.FetchChapters:
				r.writePlain("📥 %s\n", update.Message)
			case tasks.ExportChapter:
				r.writePlain("   %s\n", update.Message)
			case tasks.WriteManifest:
				r.writePlain("\n📝 %s\n", update.Message)
			}
		}
	}()

	result, err := r.engine.Export(ctx, workID, chapterIDs, opts, progressCh)
	close(progressCh)
	<-done

	if err != nil {
		return apiError(err, "Export failed")
	}

	r.writePlain("\n")
	r.writePlainHeader("Export Complete!")
	r.writePlain("Work: %s\n", result.WorkTitle)
	r.writePlain("Exported: %d/%d chapters\n", result.SuccessfulExports, result.TotalChapters)
	r.writePlain("Directory: %s\n", result.OutputDirectory)
	if result.ManifestPath != "" {
		r.writePlain("Manifest: %s\n", result.ManifestPath)
	}

	if result.FailedExports > 0 {
		r.writePlain("\nFailed to export %d chapters:\n", result.FailedExports)
		for _, res := range result.Results {
			if !res.Success {
				r.writePlain("  - %s: %v\n", res.ChapterLabel, res.Error)
			}
		}
	}
	return nil
}
