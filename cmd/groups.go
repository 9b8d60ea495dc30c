package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/desertthunder/novelx/internal/formatter"
	"github.com/desertthunder/novelx/internal/models"
	"github.com/desertthunder/novelx/internal/shared"
	"github.com/desertthunder/novelx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// groupIDs reads and checks the work-id and group-id arguments.
func groupIDs(cmd *cli.Command) (int, int, error) {
	workID, groupID := cmd.IntArg("work-id"), cmd.IntArg("group-id")
	if err := requireID("work-id", workID); err != nil {
		return 0, 0, err
	}
	if err := requireID("group-id", groupID); err != nil {
		return 0, 0, err
	}
	return workID, groupID, nil
}

func (r *Runner) writeGroup(g *models.ChapterGroupDetail) error {
	r.writePlainHeader(g.Name)
	r.writePlain("ID: %d • %d chapters\n\n", g.ID, len(g.Members))
	rows := make([][]string, 0, len(g.Members))
	for _, m := range g.Members {
		rows = append(rows, []string{strconv.Itoa(m.OrderIndex + 1), strconv.Itoa(m.ChapterID), m.Chapter.Number(), formatter.Truncate(m.Chapter.Title, 50)})
	}
	return r.writeTable([]string{"#", "Chapter ID", "No.", "Title"}, rows, formatter.AlignRight, formatter.AlignRight)
}

// GroupsList lists a work's chapter groups.
func (r *Runner) GroupsList(ctx context.Context, cmd *cli.Command) error {
	workID := cmd.IntArg("work-id")
	if err := requireID("work-id", workID); err != nil {
		return err
	}

	groups, err := r.api.ListChapterGroups(ctx, workID)
	if err != nil {
		return apiError(err, tasks.MsgFetchChapterGroups)
	}

	if cmd.Bool("json") {
		return r.writeJSON(groups, cmd.Bool("pretty"))
	}
	if len(groups) == 0 {
		return r.writePlain("No chapter groups.\n")
	}

	rows := make([][]string, 0, len(groups))
	for _, g := range groups {
		rows = append(rows, []string{strconv.Itoa(g.ID), formatter.Truncate(g.Name, 50), strconv.Itoa(g.MemberCount)})
	}
	return r.writeTable([]string{"ID", "Name", "Chapters"}, rows, formatter.AlignRight, formatter.AlignLeft, formatter.AlignRight)
}

// GroupsShow prints a group with its ordered members.
func (r *Runner) GroupsShow(ctx context.Context, cmd *cli.Command) error {
	workID, groupID, err := groupIDs(cmd)
	if err != nil {
		return err
	}

	group, err := r.api.GetChapterGroup(ctx, workID, groupID)
	if err != nil {
		return apiError(err, "Failed to fetch chapter group")
	}
	if cmd.Bool("json") {
		return r.writeJSON(group, cmd.Bool("pretty"))
	}
	return r.writeGroup(group)
}

// GroupsCreate groups the given chapters under a new name.
func (r *Runner) GroupsCreate(ctx context.Context, cmd *cli.Command) error {
	workID := cmd.IntArg("work-id")
	if err := requireID("work-id", workID); err != nil {
		return err
	}
	ids, err := parseIDs(cmd.String("chapters"))
	if err != nil {
		return err
	}

	req := models.ChapterGroupCreateRequest{Name: cmd.String("name"), ChapterIDs: ids}
	if err := req.Validate(); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	group, err := r.api.CreateChapterGroup(ctx, workID, req)
	if err != nil {
		return apiError(err, "Failed to create chapter group")
	}
	r.logger.Info("created chapter group", "work_id", workID, "group_id", group.ID, "members", len(group.Members))
	r.writePlain("✓ Created group %q\n\n", group.Name)
	return r.writeGroup(group)
}

// GroupsRename renames a group.
func (r *Runner) GroupsRename(ctx context.Context, cmd *cli.Command) error {
	workID, groupID, err := groupIDs(cmd)
	if err != nil {
		return err
	}
	name, err := models.ValidateGroupName(cmd.String("name"))
	if err != nil {
		return fmt.Errorf("%w: %v", shared.ErrInvalidInput, err)
	}

	group, err := r.api.RenameChapterGroup(ctx, workID, groupID, name)
	if err != nil {
		return apiError(err, "Failed to rename chapter group")
	}
	return r.writePlain("✓ Group %d renamed to %q\n", group.ID, group.Name)
}

// GroupsAdd appends chapters to a group.
func (r *Runner) GroupsAdd(ctx context.Context, cmd *cli.Command) error {
	return r.updateMembers(ctx, cmd, false)
}

// GroupsReplace replaces a group's members with the given chapters.
func (r *Runner) GroupsReplace(ctx context.Context, cmd *cli.Command) error {
	return r.updateMembers(ctx, cmd, true)
}

func (r *Runner) updateMembers(ctx context.Context, cmd *cli.Command, replace bool) error {
	workID, groupID, err := groupIDs(cmd)
	if err != nil {
		return err
	}
	ids, err := parseIDs(cmd.String("chapters"))
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		return fmt.Errorf("%w: select at least one chapter", shared.ErrInvalidInput)
	}

	var group *models.ChapterGroupDetail
	if replace {
		group, err = r.api.ReplaceChapterGroupMembers(ctx, workID, groupID, ids)
	} else {
		group, err = r.api.AddChapterGroupMembers(ctx, workID, groupID, ids)
	}
	if err != nil {
		return apiError(err, "Failed to update chapter group")
	}
	return r.writeGroup(group)
}

// GroupsDelete deletes a group. Its chapters stay in the work.
func (r *Runner) GroupsDelete(ctx context.Context, cmd *cli.Command) error {
	workID, groupID, err := groupIDs(cmd)
	if err != nil {
		return err
	}
	if err := r.confirm(cmd.Bool("yes"), "Delete group %d? Its chapters stay in the work.", groupID); err != nil {
		return err
	}

	if err := r.api.DeleteChapterGroup(ctx, workID, groupID); err != nil {
		return apiError(err, "Failed to delete chapter group")
	}
	r.logger.Info("deleted chapter group", "work_id", workID, "group_id", groupID)
	return r.writePlain("✓ Group %d deleted\n", groupID)
}
