package tasks

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/desertthunder/novelx/internal/formatter"
	"github.com/desertthunder/novelx/internal/models"
	"github.com/desertthunder/novelx/internal/shared"
	"golang.org/x/time/rate"
)

// BulkExportResult summarizes a chapter export run.
type BulkExportResult = formatter.BulkExportResult

// ChapterExportResult is the outcome of exporting one chapter.
type ChapterExportResult = formatter.ChapterExportResult

// BulkExportOpts contains configuration for bulk chapter exports.
type BulkExportOpts struct {
	Format     string  // Export format: markdown, csv, txt, json
	OutputDir  string  // Base output directory (default: work_{id}_export_{epoch})
	NumWorkers int     // Concurrent workers (default: 4, max 10)
	RateLimit  float64 // Chapter fetches per second (default: 5)
}

// chapterExportJob is a fetched chapter waiting to be written.
type chapterExportJob struct {
	export *formatter.ChapterExport
}

// listPageSize is the page size used when collecting every chapter id of a work.
const listPageSize = 200

// BulkExport exports chapter translations concurrently with rate limiting and progress tracking.
//
// A single producer fetches chapters and their translation snapshots under the rate limit; a pool of workers
// renders and writes them. Per-chapter failures are recorded and do not stop the run. A manifest summarizing
// the results is written to the output directory.
func BulkExport(
	ctx context.Context,
	prog chan<- ProgressUpdate,
	api ExportClient,
	workID int,
	chapterIDs []int,
	opts BulkExportOpts,
) (*BulkExportResult, error) {
	if api == nil {
		return nil, fmt.Errorf("%w: service not initialized", shared.ErrServiceUnavailable)
	}
	if workID <= 0 {
		return nil, fmt.Errorf("%w: work id must be positive", shared.ErrInvalidArgument)
	}

	if opts.Format == "" {
		opts.Format = formatter.FormatMarkdown
	}
	if opts.OutputDir == "" {
		opts.OutputDir = fmt.Sprintf("work_%d_export_%d", workID, time.Now().Unix())
	}
	if opts.NumWorkers <= 0 {
		opts.NumWorkers = 4
	}
	if opts.NumWorkers > 10 {
		opts.NumWorkers = 10
	}
	if opts.RateLimit <= 0 {
		opts.RateLimit = 5.0
	}

	sendProgress(prog, fetchWorkUpdate(workID))
	work, err := api.GetWork(ctx, workID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch work: %w", err)
	}

	if len(chapterIDs) == 0 {
		chapterIDs, err = allChapterIDs(ctx, api, workID, prog)
		if err != nil {
			return nil, err
		}
	}
	sendProgress(prog, foundWorkUpdate(work, len(chapterIDs)))

	if err := os.MkdirAll(opts.OutputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	total := len(chapterIDs)
	result := &BulkExportResult{
		WorkID:          work.ID,
		WorkTitle:       work.Title,
		TotalChapters:   total,
		OutputDirectory: opts.OutputDir,
		Results:         make([]ChapterExportResult, 0, total),
	}

	limiter := rate.NewLimiter(rate.Limit(opts.RateLimit), 1)

	jobs := make(chan chapterExportJob, total)
	results := make(chan ChapterExportResult, total)

	var wg sync.WaitGroup
	for range opts.NumWorkers {
		wg.Add(1)
		go exportWorker(ctx, &wg, jobs, results, opts)
	}

	go func() {
		defer close(jobs)
		for i, chapterID := range chapterIDs {
			if err := limiter.Wait(ctx); err != nil {
				return
			}

			export, err := fetchChapterExport(ctx, api, work, chapterID)
			if err != nil {
				results <- ChapterExportResult{
					ChapterID:    chapterID,
					ChapterLabel: fmt.Sprintf("Unknown (%d)", chapterID),
					Error:        err,
				}
				continue
			}

			sendProgress(prog, exportingChapterUpdate(i+1, total, export.Chapter.Label()))
			jobs <- chapterExportJob{export: export}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	completed := 0
	for res := range results {
		completed++
		result.Results = append(result.Results, res)

		if res.Success {
			result.SuccessfulExports++
			sendProgress(prog, exportCompletedUpdate(completed, total, res.ChapterLabel, res.Segments))
		} else {
			result.FailedExports++
			sendProgress(prog, exportFailedUpdate(completed, total, res.ChapterLabel, res.Error))
		}
	}

	manifestPath := filepath.Join(opts.OutputDir, "export_manifest.json")
	if err := formatter.WriteBulkExportManifest(*result, opts.Format, manifestPath); err != nil {
		return result, fmt.Errorf("export completed but failed to write manifest: %w", err)
	}
	result.ManifestPath = manifestPath
	sendProgress(prog, manifestUpdate(manifestPath))

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

// allChapterIDs pages through a work's listing. Chapters rolled up into groups are not listed and must be
// passed explicitly.
func allChapterIDs(ctx context.Context, api ExportClient, workID int, prog chan<- ProgressUpdate) ([]int, error) {
	var ids []int
	page := models.PageQuery{Limit: listPageSize}
	for step := 1; ; step++ {
		listing, err := api.ListChapters(ctx, workID, page)
		if err != nil {
			return nil, fmt.Errorf("failed to list chapters: %w", err)
		}
		pages := models.Pages(listing.ItemCount(), listPageSize)
		sendProgress(prog, fetchChaptersUpdate(step, pages))

		ids = append(ids, listing.ChapterIDs()...)
		page.Offset += listPageSize
		if len(listing.Items) == 0 || step >= pages {
			return ids, nil
		}
	}
}

func fetchChapterExport(ctx context.Context, api ExportClient, work *models.Work, chapterID int) (*formatter.ChapterExport, error) {
	chapter, err := api.GetChapter(ctx, work.ID, chapterID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch chapter: %w", err)
	}
	state, err := api.GetTranslation(ctx, work.ID, chapterID)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch translation: %w", err)
	}

	segments := make([]models.Segment, 0, len(state.Segments))
	for _, rec := range state.Segments {
		segments = append(segments, rec.ToSegment())
	}
	return &formatter.ChapterExport{Work: *work, Chapter: chapter.Chapter, Segments: segments}, nil
}

// exportWorker is a worker goroutine that writes chapters from the jobs channel.
func exportWorker(
	ctx context.Context,
	wg *sync.WaitGroup,
	jobs <-chan chapterExportJob,
	results chan<- ChapterExportResult,
	opts BulkExportOpts,
) {
	defer wg.Done()

	for job := range jobs {
		if ctx.Err() != nil {
			results <- ChapterExportResult{
				ChapterID:    job.export.Chapter.ID,
				ChapterLabel: job.export.Chapter.Label(),
				Error:        errors.Join(errors.New("export cancelled"), ctx.Err()),
			}
			continue
		}
		results <- exportSingleChapter(job, opts)
	}
}

// exportSingleChapter writes one chapter in the configured format.
func exportSingleChapter(j chapterExportJob, opts BulkExportOpts) ChapterExportResult {
	result := ChapterExportResult{
		ChapterID:    j.export.Chapter.ID,
		ChapterLabel: j.export.Chapter.Label(),
		Segments:     j.export.Translated(),
	}

	path, err := formatter.WriteChapterExport(j.export, opts.Format, opts.OutputDir)
	if err != nil {
		result.Error = fmt.Errorf("%s export failed: %w", opts.Format, err)
		return result
	}
	result.File = path
	result.Success = true
	return result
}
