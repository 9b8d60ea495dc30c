// package tasks implements the client-side orchestration for the works/translation backend.
//
// Fetchers and stream consumers hold observable state for the views. Engine runs the batch operations
// (imports and chapter exports) and emits progress updates via channels for non-blocking status reporting.
package tasks

import (
	"context"
	"fmt"
	"strings"

	"github.com/desertthunder/novelx/internal/models"
	"github.com/desertthunder/novelx/internal/services"
	"github.com/desertthunder/novelx/internal/shared"
)

// ImportRunResult contains the outcome of a multi-URL import.
type ImportRunResult struct {
	Results      []models.ImportResult
	SuccessCount int
	FailedCount  int
}

// ExportClient reads everything a chapter export needs.
type ExportClient interface {
	GetWork(ctx context.Context, workID int) (*models.Work, error)
	ListChapters(ctx context.Context, workID int, page models.PageQuery) (*models.ChapterListing, error)
	GetChapter(ctx context.Context, workID, chapterID int) (*models.ChapterDetail, error)
	GetTranslation(ctx context.Context, workID, chapterID int) (*models.TranslationState, error)
}

// ImportClient imports works by URL.
type ImportClient interface {
	ImportWork(ctx context.Context, req models.WorkImportRequest) (*models.Work, error)
}

// BatchEngine defines the batch operations run from the CLI.
type BatchEngine interface {
	// Import imports each URL in turn and reports a result per URL.
	Import(ctx context.Context, urls []string, force bool, progress chan<- ProgressUpdate) (*ImportRunResult, error)

	// Export writes the translations of a work's chapters to disk with a manifest.
	Export(ctx context.Context, workID int, chapterIDs []int, opts BulkExportOpts, progress chan<- ProgressUpdate) (*BulkExportResult, error)
}

// EngineClient is the backend surface the batch operations use. [services.APIService] implements it.
type EngineClient interface {
	ImportClient
	ExportClient
}

// Engine implements BatchEngine against the backend API.
type Engine struct {
	api EngineClient
}

var (
	_ BatchEngine  = (*Engine)(nil)
	_ EngineClient = (*services.APIService)(nil)
)

// NewEngine creates a new Engine with the provided client.
func NewEngine(api EngineClient) *Engine {
	return &Engine{api: api}
}

// sendProgress sends a progress update through the channel without blocking.
// Uses select with default to ensure progress reporting never blocks execution.
func sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// Import imports each non-blank URL sequentially.
func (e *Engine) Import(ctx context.Context, urls []string, force bool, progress chan<- ProgressUpdate) (*ImportRunResult, error) {
	if e.api == nil {
		return nil, fmt.Errorf("%w: API service not initialized", shared.ErrServiceUnavailable)
	}
	return importWorks(ctx, e.api, urls, force, progress)
}

func importWorks(ctx context.Context, api ImportClient, urls []string, force bool, progress chan<- ProgressUpdate) (*ImportRunResult, error) {
	var pending []string
	for _, u := range urls {
		if u = strings.TrimSpace(u); u != "" {
			pending = append(pending, u)
		}
	}
	if len(pending) == 0 {
		return nil, services.NewValidationError("Enter a work URL to import.")
	}

	result := &ImportRunResult{Results: make([]models.ImportResult, 0, len(pending))}
	total := len(pending)

	for i, u := range pending {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		sendProgress(progress, importingUpdate(i+1, total, u))

		res := models.ImportResult{URL: u}
		work, err := api.ImportWork(ctx, models.WorkImportRequest{URL: u, Force: force})
		if err != nil {
			res.Message = firstNonEmpty(services.ErrorMessage(err, "Failed to import work"), "Failed to import work")
			result.FailedCount++
		} else {
			res.Work = work
			res.Message = "Imported " + work.Title
			result.SuccessCount++
		}
		result.Results = append(result.Results, res)
		sendProgress(progress, importedUpdate(i+1, total, res))
	}
	return result, nil
}

// Export writes the given chapters of a work. With no chapter ids, every chapter in the listing is exported.
func (e *Engine) Export(ctx context.Context, workID int, chapterIDs []int, opts BulkExportOpts, progress chan<- ProgressUpdate) (*BulkExportResult, error) {
	if e.api == nil {
		return nil, fmt.Errorf("%w: API service not initialized", shared.ErrServiceUnavailable)
	}
	return BulkExport(ctx, progress, e.api, workID, chapterIDs, opts)
}
