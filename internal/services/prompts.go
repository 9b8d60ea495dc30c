package services

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/desertthunder/novelx/internal/models"
)

// ListPrompts searches prompts by name.
func (a *APIService) ListPrompts(ctx context.Context, q string, page models.PageQuery) (*models.Page[models.Prompt], error) {
	var out models.Page[models.Prompt]
	if err := a.do(ctx, http.MethodGet, "/prompts/", pageValues(q, page), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetPrompt fetches a prompt with its latest version.
func (a *APIService) GetPrompt(ctx context.Context, promptID int) (*models.PromptDetail, error) {
	var out models.PromptDetail
	if err := a.do(ctx, http.MethodGet, fmt.Sprintf("/prompts/%d", promptID), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreatePrompt creates an empty prompt; add a version to make it usable.
func (a *APIService) CreatePrompt(ctx context.Context, req models.PromptCreateRequest) (*models.Prompt, error) {
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		return nil, NewValidationError("Prompt name is required.")
	}

	var out models.Prompt
	if err := a.do(ctx, http.MethodPost, "/prompts/", nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdatePrompt edits prompt metadata.
func (a *APIService) UpdatePrompt(ctx context.Context, promptID int, req models.PromptUpdateRequest) (*models.Prompt, error) {
	if req.Name == nil && req.Description == nil {
		return nil, NewValidationError("Nothing to update.")
	}
	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if name == "" {
			return nil, NewValidationError("Prompt name is required.")
		}
		req.Name = &name
	}

	var out models.Prompt
	if err := a.do(ctx, http.MethodPatch, fmt.Sprintf("/prompts/%d", promptID), nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeletePrompt removes a prompt and its versions.
func (a *APIService) DeletePrompt(ctx context.Context, promptID int) error {
	return a.do(ctx, http.MethodDelete, fmt.Sprintf("/prompts/%d", promptID), nil, nil, nil)
}

// ListPromptVersions returns versions newest first.
func (a *APIService) ListPromptVersions(ctx context.Context, promptID, limit int) (*models.Page[models.PromptVersion], error) {
	var out models.Page[models.PromptVersion]
	path := fmt.Sprintf("/prompts/%d/versions", promptID)
	if err := a.do(ctx, http.MethodGet, path, limitValues(limit), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreatePromptVersion appends an immutable version to a prompt.
func (a *APIService) CreatePromptVersion(ctx context.Context, promptID int, req models.PromptVersionCreateRequest) (*models.PromptVersion, error) {
	if strings.TrimSpace(req.Model) == "" || strings.TrimSpace(req.Template) == "" {
		return nil, NewValidationError("Model and template are required.")
	}

	var out models.PromptVersion
	path := fmt.Sprintf("/prompts/%d/versions", promptID)
	if err := a.do(ctx, http.MethodPost, path, nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListWorkPrompts returns prompts usable by a work, including ones it owns.
func (a *APIService) ListWorkPrompts(ctx context.Context, workID int, q string) (*models.Page[models.Prompt], error) {
	var out models.Page[models.Prompt]
	v := url.Values{}
	if s := strings.TrimSpace(q); s != "" {
		v.Set("q", s)
	}
	path := fmt.Sprintf("/prompts/works/%d/prompts", workID)
	if err := a.do(ctx, http.MethodGet, path, v, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetWorkPrompt returns the prompt assigned to a work.
//
// A work with nothing assigned yields a 404 [*APIError]; see [IsNotFound].
func (a *APIService) GetWorkPrompt(ctx context.Context, workID int) (*models.PromptDetail, error) {
	var out models.PromptDetail
	if err := a.do(ctx, http.MethodGet, fmt.Sprintf("/prompts/works/%d/prompt", workID), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AssignWorkPrompt sets the prompt a work translates with.
func (a *APIService) AssignWorkPrompt(ctx context.Context, workID, promptID int) (*models.PromptDetail, error) {
	var out models.PromptDetail
	req := models.WorkPromptUpdateRequest{PromptID: promptID}
	if err := a.do(ctx, http.MethodPatch, fmt.Sprintf("/prompts/works/%d/prompt", workID), nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
