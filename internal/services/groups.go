package services

import (
	"context"
	"fmt"
	"net/http"

	"github.com/desertthunder/novelx/internal/models"
)

func groupPath(workID, groupID int, suffix string) string {
	if groupID == 0 {
		return fmt.Sprintf("/works/%d/chapter-groups%s", workID, suffix)
	}
	return fmt.Sprintf("/works/%d/chapter-groups/%d%s", workID, groupID, suffix)
}

// ListChapterGroups returns every group of a work.
func (a *APIService) ListChapterGroups(ctx context.Context, workID int) ([]models.ChapterGroup, error) {
	var out []models.ChapterGroup
	if err := a.do(ctx, http.MethodGet, groupPath(workID, 0, ""), nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetChapterGroup returns a group with its members.
func (a *APIService) GetChapterGroup(ctx context.Context, workID, groupID int) (*models.ChapterGroupDetail, error) {
	var out models.ChapterGroupDetail
	if err := a.do(ctx, http.MethodGet, groupPath(workID, groupID, ""), nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateChapterGroup validates req and creates the group.
func (a *APIService) CreateChapterGroup(ctx context.Context, workID int, req models.ChapterGroupCreateRequest) (*models.ChapterGroupDetail, error) {
	if err := req.Validate(); err != nil {
		return nil, NewValidationError(err.Error())
	}

	var out models.ChapterGroupDetail
	if err := a.do(ctx, http.MethodPost, groupPath(workID, 0, ""), nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// RenameChapterGroup changes a group's name.
func (a *APIService) RenameChapterGroup(ctx context.Context, workID, groupID int, name string) (*models.ChapterGroupDetail, error) {
	trimmed, err := models.ValidateGroupName(name)
	if err != nil {
		return nil, NewValidationError(err.Error())
	}

	var out models.ChapterGroupDetail
	req := models.ChapterGroupUpdateRequest{Name: &trimmed}
	if err := a.do(ctx, http.MethodPatch, groupPath(workID, groupID, ""), nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ReplaceChapterGroupMembers sets the group's members to chapterIDs, in order.
func (a *APIService) ReplaceChapterGroupMembers(ctx context.Context, workID, groupID int, chapterIDs []int) (*models.ChapterGroupDetail, error) {
	return a.groupMembers(ctx, http.MethodPut, workID, groupID, chapterIDs)
}

// AddChapterGroupMembers appends chapterIDs to the group.
func (a *APIService) AddChapterGroupMembers(ctx context.Context, workID, groupID int, chapterIDs []int) (*models.ChapterGroupDetail, error) {
	return a.groupMembers(ctx, http.MethodPost, workID, groupID, chapterIDs)
}

func (a *APIService) groupMembers(ctx context.Context, method string, workID, groupID int, chapterIDs []int) (*models.ChapterGroupDetail, error) {
	if len(chapterIDs) == 0 {
		return nil, NewValidationError("Select at least one chapter.")
	}

	var out models.ChapterGroupDetail
	req := models.ChapterGroupMembersRequest{ChapterIDs: chapterIDs}
	if err := a.do(ctx, method, groupPath(workID, groupID, "/members"), nil, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteChapterGroup removes a group; its chapters are kept.
func (a *APIService) DeleteChapterGroup(ctx context.Context, workID, groupID int) error {
	return a.do(ctx, http.MethodDelete, groupPath(workID, groupID, ""), nil, nil, nil)
}
