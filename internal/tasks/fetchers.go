package tasks

import (
	"context"
	"strings"

	"github.com/desertthunder/novelx/internal/models"
	"github.com/desertthunder/novelx/internal/services"
)

// Fallback messages for fetch errors without server detail.
const (
	MsgFetchWorks          = "Failed to fetch works"
	MsgFetchWork           = "Failed to fetch work"
	MsgFetchChapters       = "Failed to fetch chapters"
	MsgFetchChapter        = "Failed to fetch chapter"
	MsgFetchPrompts        = "Failed to fetch prompts"
	MsgFetchPrompt         = "Failed to fetch prompt"
	MsgFetchPromptVersions = "Failed to fetch prompt versions"
	MsgFetchWorkPrompts    = "Failed to fetch prompts for this work"
	MsgFetchWorkPrompt     = "Failed to load the prompt assigned to this work."
	MsgFetchModels         = "Failed to fetch models"
	MsgFetchChapterGroups  = "Failed to fetch chapter groups"
)

// PromptVersionsLimit is how many versions the history view loads.
const PromptVersionsLimit = 50

// WorksClient reads works and chapters.
type WorksClient interface {
	ListWorks(ctx context.Context, q string, page models.PageQuery) (*models.Page[models.Work], error)
	GetWork(ctx context.Context, workID int) (*models.Work, error)
	ListChapters(ctx context.Context, workID int, page models.PageQuery) (*models.ChapterListing, error)
	GetChapter(ctx context.Context, workID, chapterID int) (*models.ChapterDetail, error)
	ListChapterGroups(ctx context.Context, workID int) ([]models.ChapterGroup, error)
}

// PromptsClient reads prompts and models.
type PromptsClient interface {
	ListPrompts(ctx context.Context, q string, page models.PageQuery) (*models.Page[models.Prompt], error)
	GetPrompt(ctx context.Context, promptID int) (*models.PromptDetail, error)
	ListPromptVersions(ctx context.Context, promptID, limit int) (*models.Page[models.PromptVersion], error)
	ListWorkPrompts(ctx context.Context, workID int, q string) (*models.Page[models.Prompt], error)
	GetWorkPrompt(ctx context.Context, workID int) (*models.PromptDetail, error)
	ListModels(ctx context.Context) (*models.ModelsList, error)
}

// SearchKey is a search term plus a page.
type SearchKey struct {
	Query string
	Page  models.PageQuery
}

// PageKey addresses a page of a resource owned by ID.
type PageKey struct {
	ID   int
	Page models.PageQuery
}

// ChapterKey addresses one chapter of a work.
type ChapterKey struct {
	WorkID    int
	ChapterID int
}

// WorkSearchKey is a search term scoped to a work.
type WorkSearchKey struct {
	WorkID int
	Query  string
}

// WorkPrompt is the prompt assigned to a work, or NotAssigned when there is none.
type WorkPrompt struct {
	Prompt      *models.PromptDetail
	NotAssigned bool
}

func skipZero(id int) bool { return id <= 0 }

// NewWorksResource searches works; the query is trimmed before it is sent.
func NewWorksResource(api WorksClient, opts ...ResourceOption[SearchKey, *models.Page[models.Work]]) *Resource[SearchKey, *models.Page[models.Work]] {
	fetch := func(ctx context.Context, k SearchKey) (*models.Page[models.Work], error) {
		return api.ListWorks(ctx, strings.TrimSpace(k.Query), k.Page)
	}
	return NewResource(fetch, MsgFetchWorks, opts...)
}

// NewWorkResource loads a single work.
func NewWorkResource(api WorksClient, opts ...ResourceOption[int, *models.Work]) *Resource[int, *models.Work] {
	opts = append([]ResourceOption[int, *models.Work]{WithSkip[int, *models.Work](skipZero)}, opts...)
	return NewResource(api.GetWork, MsgFetchWork, opts...)
}

// NewChaptersResource loads a page of a work's chapter listing.
func NewChaptersResource(api WorksClient, opts ...ResourceOption[PageKey, *models.ChapterListing]) *Resource[PageKey, *models.ChapterListing] {
	fetch := func(ctx context.Context, k PageKey) (*models.ChapterListing, error) {
		return api.ListChapters(ctx, k.ID, k.Page)
	}
	opts = append([]ResourceOption[PageKey, *models.ChapterListing]{
		WithSkip[PageKey, *models.ChapterListing](func(k PageKey) bool { return skipZero(k.ID) }),
	}, opts...)
	return NewResource(fetch, MsgFetchChapters, opts...)
}

// NewChapterResource loads a chapter with its source text.
func NewChapterResource(api WorksClient, opts ...ResourceOption[ChapterKey, *models.ChapterDetail]) *Resource[ChapterKey, *models.ChapterDetail] {
	fetch := func(ctx context.Context, k ChapterKey) (*models.ChapterDetail, error) {
		return api.GetChapter(ctx, k.WorkID, k.ChapterID)
	}
	opts = append([]ResourceOption[ChapterKey, *models.ChapterDetail]{
		WithSkip[ChapterKey, *models.ChapterDetail](func(k ChapterKey) bool { return skipZero(k.WorkID) || skipZero(k.ChapterID) }),
	}, opts...)
	return NewResource(fetch, MsgFetchChapter, opts...)
}

// NewChapterGroupsResource loads a work's chapter groups.
func NewChapterGroupsResource(api WorksClient, opts ...ResourceOption[int, []models.ChapterGroup]) *Resource[int, []models.ChapterGroup] {
	opts = append([]ResourceOption[int, []models.ChapterGroup]{WithSkip[int, []models.ChapterGroup](skipZero)}, opts...)
	return NewResource(api.ListChapterGroups, MsgFetchChapterGroups, opts...)
}

// NewPromptsResource searches prompts.
func NewPromptsResource(api PromptsClient, opts ...ResourceOption[SearchKey, *models.Page[models.Prompt]]) *Resource[SearchKey, *models.Page[models.Prompt]] {
	fetch := func(ctx context.Context, k SearchKey) (*models.Page[models.Prompt], error) {
		return api.ListPrompts(ctx, strings.TrimSpace(k.Query), k.Page)
	}
	return NewResource(fetch, MsgFetchPrompts, opts...)
}

// NewPromptResource loads a prompt with its latest version.
func NewPromptResource(api PromptsClient, opts ...ResourceOption[int, *models.PromptDetail]) *Resource[int, *models.PromptDetail] {
	opts = append([]ResourceOption[int, *models.PromptDetail]{WithSkip[int, *models.PromptDetail](skipZero)}, opts...)
	return NewResource(api.GetPrompt, MsgFetchPrompt, opts...)
}

// NewPromptVersionsResource loads the most recent versions of a prompt.
func NewPromptVersionsResource(api PromptsClient, opts ...ResourceOption[int, *models.Page[models.PromptVersion]]) *Resource[int, *models.Page[models.PromptVersion]] {
	fetch := func(ctx context.Context, id int) (*models.Page[models.PromptVersion], error) {
		return api.ListPromptVersions(ctx, id, PromptVersionsLimit)
	}
	opts = append([]ResourceOption[int, *models.Page[models.PromptVersion]]{
		WithSkip[int, *models.Page[models.PromptVersion]](skipZero),
	}, opts...)
	return NewResource(fetch, MsgFetchPromptVersions, opts...)
}

// NewWorkPromptsResource searches prompts usable by a work, debounced while typing.
func NewWorkPromptsResource(api PromptsClient, opts ...ResourceOption[WorkSearchKey, *models.Page[models.Prompt]]) *Resource[WorkSearchKey, *models.Page[models.Prompt]] {
	fetch := func(ctx context.Context, k WorkSearchKey) (*models.Page[models.Prompt], error) {
		return api.ListWorkPrompts(ctx, k.WorkID, strings.TrimSpace(k.Query))
	}
	opts = append([]ResourceOption[WorkSearchKey, *models.Page[models.Prompt]]{
		WithDebounce[WorkSearchKey, *models.Page[models.Prompt]](WorkPromptDebounce),
		WithSkip[WorkSearchKey, *models.Page[models.Prompt]](func(k WorkSearchKey) bool { return skipZero(k.WorkID) }),
	}, opts...)
	return NewResource(fetch, MsgFetchWorkPrompts, opts...)
}

// NewWorkPromptResource loads the prompt assigned to a work. A 404 is a [WorkPrompt] with NotAssigned set.
func NewWorkPromptResource(api PromptsClient, opts ...ResourceOption[int, WorkPrompt]) *Resource[int, WorkPrompt] {
	fetch := func(ctx context.Context, id int) (WorkPrompt, error) {
		p, err := api.GetWorkPrompt(ctx, id)
		if err != nil {
			return WorkPrompt{}, err
		}
		return WorkPrompt{Prompt: p}, nil
	}
	notAssigned := func(err error, st *State[WorkPrompt]) {
		if services.IsNotFound(err) {
			*st = State[WorkPrompt]{Data: WorkPrompt{NotAssigned: true}}
		}
	}
	opts = append([]ResourceOption[int, WorkPrompt]{
		WithSkip[int, WorkPrompt](skipZero),
		WithErrorHandler[int, WorkPrompt](notAssigned),
	}, opts...)
	return NewResource(fetch, MsgFetchWorkPrompt, opts...)
}

// NewModelsResource loads the supported models. The key is ignored; use the refresh token to reload.
func NewModelsResource(api PromptsClient, opts ...ResourceOption[struct{}, *models.ModelsList]) *Resource[struct{}, *models.ModelsList] {
	fetch := func(ctx context.Context, _ struct{}) (*models.ModelsList, error) {
		return api.ListModels(ctx)
	}
	return NewResource(fetch, MsgFetchModels, opts...)
}
