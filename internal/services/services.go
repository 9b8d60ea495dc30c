// package services defines interface Service for interacting with the works/translation backend
package services

import (
	"context"

	"github.com/desertthunder/novelx/internal/models"
)

// Service is the full backend surface used by the CLI and TUI.
type Service interface {
	// BaseURL returns the backend root the service talks to.
	BaseURL() string

	// Works and chapters
	ListWorks(ctx context.Context, q string, page models.PageQuery) (*models.Page[models.Work], error)
	GetWork(ctx context.Context, workID int) (*models.Work, error)
	ImportWork(ctx context.Context, req models.WorkImportRequest) (*models.Work, error)
	ImportWorks(ctx context.Context, urls []string, force bool) []models.ImportResult
	ScrapeChapters(ctx context.Context, workID int, req models.ChapterScrapeRequest) (*models.ChapterScrapeResponse, error)
	ListChapters(ctx context.Context, workID int, page models.PageQuery) (*models.ChapterListing, error)
	GetChapter(ctx context.Context, workID, chapterID int) (*models.ChapterDetail, error)

	// Translations
	GetTranslation(ctx context.Context, workID, chapterID int) (*models.TranslationState, error)
	ResetTranslation(ctx context.Context, workID, chapterID int) (*models.TranslationState, error)
	RegenerateSegments(ctx context.Context, workID, chapterID int) error
	CreatePromptOverride(ctx context.Context, workID, chapterID int, req models.PromptOverrideRequest) (*models.PromptOverride, error)
	ListModels(ctx context.Context) (*models.ModelsList, error)

	// Chapter groups
	ListChapterGroups(ctx context.Context, workID int) ([]models.ChapterGroup, error)
	GetChapterGroup(ctx context.Context, workID, groupID int) (*models.ChapterGroupDetail, error)
	CreateChapterGroup(ctx context.Context, workID int, req models.ChapterGroupCreateRequest) (*models.ChapterGroupDetail, error)
	RenameChapterGroup(ctx context.Context, workID, groupID int, name string) (*models.ChapterGroupDetail, error)
	ReplaceChapterGroupMembers(ctx context.Context, workID, groupID int, chapterIDs []int) (*models.ChapterGroupDetail, error)
	AddChapterGroupMembers(ctx context.Context, workID, groupID int, chapterIDs []int) (*models.ChapterGroupDetail, error)
	DeleteChapterGroup(ctx context.Context, workID, groupID int) error

	// Prompts
	ListPrompts(ctx context.Context, q string, page models.PageQuery) (*models.Page[models.Prompt], error)
	GetPrompt(ctx context.Context, promptID int) (*models.PromptDetail, error)
	CreatePrompt(ctx context.Context, req models.PromptCreateRequest) (*models.Prompt, error)
	UpdatePrompt(ctx context.Context, promptID int, req models.PromptUpdateRequest) (*models.Prompt, error)
	DeletePrompt(ctx context.Context, promptID int) error
	ListPromptVersions(ctx context.Context, promptID, limit int) (*models.Page[models.PromptVersion], error)
	CreatePromptVersion(ctx context.Context, promptID int, req models.PromptVersionCreateRequest) (*models.PromptVersion, error)
	ListWorkPrompts(ctx context.Context, workID int, q string) (*models.Page[models.Prompt], error)
	GetWorkPrompt(ctx context.Context, workID int) (*models.PromptDetail, error)
	AssignWorkPrompt(ctx context.Context, workID, promptID int) (*models.PromptDetail, error)

	// Streams
	TranslateStream(ctx context.Context, workID, chapterID int, overrideToken string) (*Stream, error)
	RetranslateSegmentStream(ctx context.Context, workID, chapterID, segmentID int) (*Stream, error)
	ExplainStream(ctx context.Context, workID, chapterID, segmentID int) (*Stream, error)
	RegenerateExplanationStream(ctx context.Context, workID, chapterID, segmentID int) (*Stream, error)
	ScrapeStatusStream(ctx context.Context, workID int) (*Stream, error)
	LabStream(ctx context.Context, req models.LabRequest) (*ChunkStream, error)
}

var _ Service = (*APIService)(nil)
