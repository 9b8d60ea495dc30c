package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/desertthunder/novelx/internal/models"
)

// ListWorks searches works by title; an empty query lists everything.
func (a *APIService) ListWorks(ctx context.Context, q string, page models.PageQuery) (*models.Page[models.Work], error) {
	var out models.Page[models.Work]
	if err := a.do(ctx, http.MethodGet, "/works/", pageValues(q, page), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetWork fetches a single work.
func (a *APIService) GetWork(ctx context.Context, workID int) (*models.Work, error) {
	var out models.Work
	if err := a.do(ctx, http.MethodGet, fmt.Sprintf("/works/%d", workID), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ImportWork asks the backend to import a work from its source URL.
func (a *APIService) ImportWork(ctx context.Context, req models.WorkImportRequest) (*models.Work, error) {
	req.URL = strings.TrimSpace(req.URL)
	if req.URL == "" {
		return nil, NewValidationError("Enter a work URL to import.")
	}

	var out models.Work
	if err := a.do(ctx, http.MethodPost, "/works/import", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ImportWorks imports each URL in turn and records a result per URL.
//
// Blank lines are skipped. A failure for one URL does not stop the others.
func (a *APIService) ImportWorks(ctx context.Context, urls []string, force bool) []models.ImportResult {
	var results []models.ImportResult
	for _, raw := range urls {
		u := strings.TrimSpace(raw)
		if u == "" {
			continue
		}
		if ctx.Err() != nil {
			results = append(results, models.ImportResult{URL: u, Message: ErrorMessage(ctx.Err(), "Import cancelled")})
			continue
		}

		work, err := a.ImportWork(ctx, models.WorkImportRequest{URL: u, Force: force})
		if err != nil {
			results = append(results, models.ImportResult{URL: u, Message: ErrorMessage(err, "Failed to import work")})
			continue
		}
		results = append(results, models.ImportResult{URL: u, Work: work, Message: "Imported " + work.Title})
	}
	return results
}

// ScrapeChapters queues a scrape of chapters start..end for a work.
func (a *APIService) ScrapeChapters(ctx context.Context, workID int, req models.ChapterScrapeRequest) (*models.ChapterScrapeResponse, error) {
	if req.End < req.Start {
		return nil, NewValidationError("End chapter must be after start chapter.")
	}

	var out models.ChapterScrapeResponse
	path := fmt.Sprintf("/works/%d/scrape-chapters", workID)
	if err := a.do(ctx, http.MethodPost, path, nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListChapters fetches a page of a work's mixed chapter and group listing.
func (a *APIService) ListChapters(ctx context.Context, workID int, page models.PageQuery) (*models.ChapterListing, error) {
	var out models.ChapterListing
	path := fmt.Sprintf("/works/%d/chapters", workID)
	if err := a.do(ctx, http.MethodGet, path, pageValues("", page), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetChapter fetches a chapter with its normalized source text.
func (a *APIService) GetChapter(ctx context.Context, workID, chapterID int) (*models.ChapterDetail, error) {
	var out models.ChapterDetail
	path := fmt.Sprintf("/works/%d/chapters/%d", workID, chapterID)
	if err := a.do(ctx, http.MethodGet, path, nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetTranslation fetches the stored translation snapshot for a chapter.
func (a *APIService) GetTranslation(ctx context.Context, workID, chapterID int) (*models.TranslationState, error) {
	var out models.TranslationState
	if err := a.do(ctx, http.MethodGet, chapterPath(workID, chapterID, "/translation"), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ResetTranslation deletes a chapter's translation and returns the fresh, empty snapshot.
func (a *APIService) ResetTranslation(ctx context.Context, workID, chapterID int) (*models.TranslationState, error) {
	var out models.TranslationState
	if err := a.do(ctx, http.MethodDelete, chapterPath(workID, chapterID, "/translation"), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RegenerateSegments asks the backend to re-split a chapter into segments.
func (a *APIService) RegenerateSegments(ctx context.Context, workID, chapterID int) error {
	return a.do(ctx, http.MethodPost, chapterPath(workID, chapterID, "/regenerate-segments"), nil, nil, nil)
}

// CreatePromptOverride exchanges an unsaved (model, template) draft for a one-shot token.
func (a *APIService) CreatePromptOverride(ctx context.Context, workID, chapterID int, req models.PromptOverrideRequest) (*models.PromptOverride, error) {
	var out models.PromptOverride
	if err := a.do(ctx, http.MethodPost, chapterPath(workID, chapterID, "/prompt-overrides"), nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListModels fetches the LLM models the backend supports.
func (a *APIService) ListModels(ctx context.Context) (*models.ModelsList, error) {
	var out models.ModelsList
	if err := a.do(ctx, http.MethodGet, "/models/", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func chapterPath(workID, chapterID int, suffix string) string {
	return fmt.Sprintf("/works/%d/chapters/%d%s", workID, chapterID, suffix)
}

func limitValues(limit int) url.Values {
	v := url.Values{}
	if limit > 0 {
		v.Set("limit", fmt.Sprint(limit))
	}
	return v
}
