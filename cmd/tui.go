package main

import (
	"context"
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/novelx/internal/router"
	"github.com/desertthunder/novelx/internal/shared"
	"github.com/desertthunder/novelx/internal/ui"
	"github.com/urfave/cli/v3"
)

// TUI launches the interactive reader.
func (r *Runner) TUI(ctx context.Context, cmd *cli.Command) error {
	if r.api == nil {
		return fmt.Errorf("%w: API service not initialized", shared.ErrServiceUnavailable)
	}

	// Redirect logs to file to avoid interfering with TUI rendering
	fileLogger, err := shared.NewFileLogger(r.config.Log.File)
	if err != nil {
		return fmt.Errorf("failed to create file logger: %w", err)
	}
	fileLogger.SetLevel(r.logger.GetLevel())
	r.SetLogger(fileLogger)

	var store router.HistoryStore
	if r.config.History.Enabled {
		repo, closeDB, err := r.openHistory()
		if err != nil {
			r.logger.Warn("navigation history disabled", "error", err)
		} else {
			defer closeDB()
			store = repo
		}
	}

	model := ui.NewModel(ctx, ui.Options{
		API:           r.api,
		History:       router.NewHistory(store, r.logger),
		Logger:        r.logger,
		PageSize:      r.config.UI.PageSize,
		MarkdownStyle: r.config.UI.MarkdownStyle,
		Resume:        cmd.Bool("resume"),
	})
	p := tea.NewProgram(model, tea.WithAltScreen(), tea.WithContext(ctx))

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("error running TUI: %w", err)
	}

	return nil
}
