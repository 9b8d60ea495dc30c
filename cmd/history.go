package main

import (
	"context"
	"fmt"
	"strconv"

	"github.com/desertthunder/novelx/internal/router"
	"github.com/desertthunder/novelx/internal/shared"
	"github.com/urfave/cli/v3"
)

// HistoryList prints the most recently visited views, newest first.
func (r *Runner) HistoryList(ctx context.Context, cmd *cli.Command) error {
	repo, closeDB, err := r.openHistory()
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer closeDB()

	entries, err := repo.List(cmd.Int("limit"))
	if err != nil {
		return fmt.Errorf("failed to list history: %w", err)
	}

	if cmd.Bool("json") {
		return r.writeJSON(entries, cmd.Bool("pretty"))
	}
	if len(entries) == 0 {
		return r.writePlain("No history yet. Browse with 'novelx tui'.\n")
	}

	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		route := router.Resolve(e.Path)
		rows = append(rows, []string{strconv.FormatInt(e.ID, 10), e.Path, route.View.String(), e.VisitedAt.Local().Format("2006-01-02 15:04:05")})
	}
	return r.writeTable([]string{"ID", "Path", "View", "Visited"}, rows)
}

// HistoryClear forgets visited views. With --keep the newest entries stay.
func (r *Runner) HistoryClear(ctx context.Context, cmd *cli.Command) error {
	keep := cmd.Int("keep")
	if keep < 0 {
		return fmt.Errorf("%w: --keep must not be negative", shared.ErrInvalidArgument)
	}

	question := "Clear all navigation history?"
	if keep > 0 {
		question = fmt.Sprintf("Clear navigation history except the newest %d entries?", keep)
	}
	if err := r.confirm(cmd.Bool("yes"), "%s", question); err != nil {
		return err
	}

	repo, closeDB, err := r.openHistory()
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer closeDB()

	if keep > 0 {
		removed, err := repo.Prune(keep)
		if err != nil {
			return fmt.Errorf("failed to prune history: %w", err)
		}
		r.logger.Info("pruned navigation history", "removed", removed, "kept", keep)
		return r.writePlain("✓ Removed %d entries\n", removed)
	}

	if err := repo.Clear(); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	r.logger.Info("cleared navigation history", "path", r.config.History.Path)
	return r.writePlain("✓ History cleared\n")
}
