package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/desertthunder/novelx/internal/formatter"
	"github.com/desertthunder/novelx/internal/models"
	"github.com/desertthunder/novelx/internal/services"
	"github.com/desertthunder/novelx/internal/shared"
	"github.com/desertthunder/novelx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// WorksList lists works matching an optional title query.
func (r *Runner) WorksList(ctx context.Context, cmd *cli.Command) error {
	query := cmd.String("query")
	page := models.PageQuery{Limit: cmd.Int("limit"), Offset: cmd.Int("offset")}

	r.logger.Debug("listing works", "query", query, "limit", page.Limit, "offset", page.Offset)

	works, err := r.api.ListWorks(ctx, query, page)
	if err != nil {
		return apiError(err, tasks.MsgFetchWorks)
	}

	if cmd.Bool("json") {
		return r.writeJSON(works, cmd.Bool("pretty"))
	}

	if len(works.Items) == 0 {
		return r.writePlain("No works found.\n")
	}

	rows := make([][]string, 0, len(works.Items))
	for _, w := range works.Items {
		rows = append(rows, []string{strconv.Itoa(w.ID), formatter.Truncate(w.Title, 50), w.Author(), w.SourceLabel()})
	}
	if err := r.writeTable([]string{"ID", "Title", "Author", "Source"}, rows, formatter.AlignRight); err != nil {
		return err
	}
	return r.writePlain("Showing %d of %d works\n", len(works.Items), works.Total)
}

// WorksShow prints a work's metadata.
func (r *Runner) WorksShow(ctx context.Context, cmd *cli.Command) error {
	workID := cmd.IntArg("work-id")
	if err := requireID("work-id", workID); err != nil {
		return err
	}

	work, err := r.api.GetWork(ctx, workID)
	if err != nil {
		if services.IsNotFound(err) {
			return fmt.Errorf("%w: %d", shared.ErrWorkNotFound, workID)
		}
		return apiError(err, tasks.MsgFetchWork)
	}

	if cmd.Bool("json") {
		return r.writeJSON(work, cmd.Bool("pretty"))
	}

	r.writePlainHeader(work.Title)
	r.writePlain("ID: %d\n", work.ID)
	if a := work.Author(); a != "" {
		r.writePlain("Author: %s\n", a)
	}
	if s := work.SourceLabel(); s != "" {
		r.writePlain("Source: %s\n", s)
	}
	if u := work.SourceURL(); u != "" {
		r.writePlain("URL: %s\n", u)
	}
	if d := work.Description(); d != "" {
		r.writePlainln("%s", d)
	}
	return nil
}

// WorksOpen opens the work's source page in the default browser.
func (r *Runner) WorksOpen(ctx context.Context, cmd *cli.Command) error {
	workID := cmd.IntArg("work-id")
	if err := requireID("work-id", workID); err != nil {
		return err
	}

	work, err := r.api.GetWork(ctx, workID)
	if err != nil {
		return apiError(err, tasks.MsgFetchWork)
	}

	u := work.SourceURL()
	if u == "" {
		return fmt.Errorf("%w: work %d has no source URL", shared.ErrInvalidArgument, workID)
	}
	r.logger.Info("opening source page", "url", u)
	return shared.OpenURL(u)
}

// WorksImport imports each URL argument in turn, reporting progress as it goes.
func (r *Runner) WorksImport(ctx context.Context, cmd *cli.Command) error {
	urls := cmd.Args().Slice()
	if len(urls) == 0 {
		return fmt.Errorf("%w: at least one work URL", shared.ErrMissingArgument)
	}

	progressCh := make(chan tasks.ProgressUpdate, 50)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for update := range progressCh {
			r.writePlain("%s\n", update.Message)
		}
	}()

	result, err := r.engine.Import(ctx, urls, cmd.Bool("force"), progressCh)
	close(progressCh)
	<-done

	if err != nil {
		return apiError(err, "Import failed")
	}

	r.writePlain("\n")
	r.writePlainHeader("Import Complete!")
	r.writePlain("Imported: %d/%d\n", result.SuccessCount, len(result.Results))
	if result.FailedCount > 0 {
		r.writePlain("\nFailed to import %d works:\n", result.FailedCount)
		for _, res := range result.Results {
			if !res.OK() {
				r.writePlain("  - %s: %s\n", res.URL, res.Message)
			}
		}
	}
	return nil
}

// ChaptersList lists a work's chapters and groups in reading order.
func (r *Runner) ChaptersList(ctx context.Context, cmd *cli.Command) error {
	workID := cmd.IntArg("work-id")
	if err := requireID("work-id", workID); err != nil {
		return err
	}
	page := models.PageQuery{Limit: cmd.Int("limit"), Offset: cmd.Int("offset")}

	listing, err := r.api.ListChapters(ctx, workID, page)
	if err != nil {
		if services.IsNotFound(err) {
			return fmt.Errorf("%w: %d", shared.ErrWorkNotFound, workID)
		}
		return apiError(err, tasks.MsgFetchChapters)
	}

	if cmd.Bool("json") {
		return r.writeJSON(listing, cmd.Bool("pretty"))
	}

	if len(listing.Items) == 0 {
		return r.writePlain("No chapters yet. Scrape some with 'novelx scrape %d --start 1'.\n", workID)
	}

	rows := make([][]string, 0, len(listing.Items))
	for _, item := range listing.Items {
		switch {
		case item.Group != nil:
			g := item.Group
			rows = append(rows, []string{strconv.Itoa(g.ID), "group", "", formatter.Truncate(g.Name, 50), fmt.Sprintf("%d chapters", g.MemberCount)})
		case item.Chapter != nil:
			c := item.Chapter
			status := "not translated"
			if c.IsFullyTranslated {
				status = "translated"
			}
			rows = append(rows, []string{strconv.Itoa(c.ID), "chapter", c.Number(), formatter.Truncate(c.Title, 50), status})
		}
	}
	if err := r.writeTable([]string{"ID", "Type", "No.", "Title", "Status"}, rows, formatter.AlignRight); err != nil {
		return err
	}
	return r.writePlain("%d chapters, %d groups (page %d of %d)\n",
		listing.TotalChapters, listing.TotalGroups, page.Offset/max(page.Limit, 1)+1, models.Pages(listing.TotalItems, page.Limit))
}

// ChaptersShow prints a chapter's saved translation, or its source text with --source.
func (r *Runner) ChaptersShow(ctx context.Context, cmd *cli.Command) error {
	workID, chapterID := cmd.IntArg("work-id"), cmd.IntArg("chapter-id")
	if err := requireID("work-id", workID); err != nil {
		return err
	}
	if err := requireID("chapter-id", chapterID); err != nil {
		return err
	}

	chapter, err := r.api.GetChapter(ctx, workID, chapterID)
	if err != nil {
		if services.IsNotFound(err) {
			return fmt.Errorf("%w: %d", shared.ErrChapterNotFound, chapterID)
		}
		return apiError(err, tasks.MsgFetchChapter)
	}

	state, err := r.api.GetTranslation(ctx, workID, chapterID)
	if err != nil && !services.IsNotFound(err) {
		return apiError(err, tasks.MsgLoadTranslationFailed)
	}

	if cmd.Bool("json") {
		return r.writeJSON(struct {
			Chapter     *models.ChapterDetail    `json:"chapter"`
			Translation *models.TranslationState `json:"translation,omitempty"`
		}{chapter, state}, cmd.Bool("pretty"))
	}

	r.writePlainHeader(chapter.Label())
	if cmd.Bool("source") {
		return r.writePlain("%s\n", chapter.NormalizedText)
	}

	if state == nil || len(state.Segments) == 0 {
		r.writePlain("Not translated yet. Run 'novelx translate %d %d'.\n", workID, chapterID)
		return nil
	}

	var b strings.Builder
	pending := 0
	for _, rec := range state.Segments {
		seg := rec.ToSegment()
		if seg.Status != models.SegmentCompleted {
			pending++
			continue
		}
		b.WriteString(seg.Text)
	}
	r.writePlain("%s\n", b.String())
	if pending > 0 {
		r.writePlainln("%d segments are not translated yet.", pending)
	}
	return nil
}
