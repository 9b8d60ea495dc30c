package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync/atomic"
	"time"

	"github.com/desertthunder/novelx/internal/models"
	"github.com/desertthunder/novelx/internal/services"
	"github.com/desertthunder/novelx/internal/shared"
	"github.com/desertthunder/novelx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// segmentPrinter writes completed segments in reading order as a translation streams in.
type segmentPrinter struct {
	r    *Runner
	next int
}

func (p *segmentPrinter) print(snap tasks.TranslationSnapshot) {
	for p.next < len(snap.Segments) {
		seg := snap.Segments[p.next]
		if seg.Status != models.SegmentCompleted {
			return
		}
		text := seg.Text
		if text == "" && seg.IsWhitespace() {
			text = seg.Src
		}
		p.r.writePlain("%s", text)
		p.next++
	}
}

// Translate streams a chapter translation, printing each segment once it and everything before it completed.
func (r *Runner) Translate(ctx context.Context, cmd *cli.Command) error {
	workID, chapterID := cmd.IntArg("work-id"), cmd.IntArg("chapter-id")
	if err := requireID("work-id", workID); err != nil {
		return err
	}
	if err := requireID("chapter-id", chapterID); err != nil {
		return err
	}

	stream := tasks.NewTranslationStream(r.api, workID, chapterID, r.logger)
	defer stream.Close()

	if cmd.Bool("regenerate") {
		if !stream.Regenerate(ctx) {
			return fmt.Errorf("%w: %s", shared.ErrAPIRequest, stream.Snapshot().Error)
		}
	} else if err := stream.Hydrate(ctx); err != nil && !services.IsNotFound(err) {
		return apiError(err, tasks.MsgLoadTranslationFailed)
	}

	if segmentID := cmd.Int("segment"); segmentID > 0 {
		return r.retranslate(ctx, stream, segmentID)
	}

	r.logger.Info("translating chapter", "work_id", workID, "chapter_id", chapterID)
	if err := stream.Start(ctx, tasks.StartOptions{}); err != nil {
		return apiError(err, tasks.MsgTranslationFailed)
	}

	printer := &segmentPrinter{r: r}
	started := false
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case snap := <-stream.Updates():
			printer.print(snap)
			switch snap.Status {
			case tasks.StatusConnecting, tasks.StatusRunning:
				started = true
			case tasks.StatusCompleted:
				return r.writePlain("\n")
			case tasks.StatusError:
				r.writePlain("\n")
				return fmt.Errorf("%w: %s", shared.ErrStream, snap.Error)
			case tasks.StatusIdle:
				if started {
					return r.writePlain("\n")
				}
			}
		}
	}
}

func (r *Runner) retranslate(ctx context.Context, stream *tasks.TranslationStream, segmentID int) error {
	if err := stream.RetranslateSegment(ctx, segmentID); err != nil {
		return apiError(err, tasks.MsgRetranslationFailed)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case snap := <-stream.Updates():
			if snap.RetranslatingID == segmentID {
				continue
			}
			if snap.Error != "" {
				return fmt.Errorf("%w: %s", shared.ErrStream, snap.Error)
			}
			for _, seg := range snap.Segments {
				if seg.ID == segmentID {
					return r.writePlain("%s\n", seg.Text)
				}
			}
			return fmt.Errorf("%w: segment %d", shared.ErrNotFound, segmentID)
		}
	}
}

// Explain streams an explanation of one segment.
func (r *Runner) Explain(ctx context.Context, cmd *cli.Command) error {
	workID, chapterID, segmentID := cmd.IntArg("work-id"), cmd.IntArg("chapter-id"), cmd.IntArg("segment-id")
	for name, id := range map[string]int{"work-id": workID, "chapter-id": chapterID, "segment-id": segmentID} {
		if err := requireID(name, id); err != nil {
			return err
		}
	}

	explanation := tasks.NewExplanation(r.api, workID, chapterID, r.logger)
	defer explanation.Close()

	if err := explanation.Start(ctx, segmentID, cmd.Bool("regenerate")); err != nil {
		return apiError(err, tasks.MsgExplanationFailed)
	}

	var printed string
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case snap := <-explanation.Updates():
			if strings.HasPrefix(snap.Text, printed) {
				r.writePlain("%s", snap.Text[len(printed):])
				printed = snap.Text
			}
			if snap.Error != "" {
				r.writePlain("\n")
				return fmt.Errorf("%w: %s", shared.ErrStream, snap.Error)
			}
			if !snap.Loading {
				return r.writePlain("\n")
			}
		}
	}
}

// Lab runs text through each --model lane and prints the outputs once every lane finished.
func (r *Runner) Lab(ctx context.Context, cmd *cli.Command) error {
	text := cmd.String("text")
	if path := cmd.String("file"); path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}
		text = string(data)
	}

	lab := tasks.NewLab(r.api, r.logger)
	defer lab.Close()

	template := cmd.String("template")
	if modelIDs := cmd.StringSlice("model"); len(modelIDs) > 0 {
		for len(lab.Lanes()) > 0 {
			lab.RemoveLane(0)
		}
		for _, m := range modelIDs {
			lab.AddLane(strings.TrimSpace(m), template)
		}
	} else if template != "" {
		for i, lane := range lab.Lanes() {
			lab.SetLane(i, lane.Model, template)
		}
	}

	if err := lab.Run(ctx, text); err != nil {
		return fmt.Errorf("%w: %s", shared.ErrInvalidInput, services.ErrorMessage(err, tasks.MsgLabFailed))
	}
	r.writePlain("Running %d lanes...\n", len(lab.Lanes()))

	var lanes []tasks.Lane
	for running := true; running; {
		select {
		case <-ctx.Done():
			lab.Stop()
			return ctx.Err()
		case lanes = <-lab.Updates():
			running = false
			for _, l := range lanes {
				if l.Status == tasks.LaneRunning {
					running = true
				}
			}
		}
	}

	for _, l := range lanes {
		r.writePlain("\n")
		r.writePlainHeader(l.Model)
		switch l.Status {
		case tasks.LaneError:
			r.writePlain("✗ %s (%s)\n", l.Error, l.Duration.Round(time.Millisecond))
		default:
			r.writePlain("%s\n\n✓ %s\n", l.Output, l.Duration.Round(time.Millisecond))
		}
	}
	return nil
}

// Scrape queues a chapter range and, with --watch, follows the job until it settles.
func (r *Runner) Scrape(ctx context.Context, cmd *cli.Command) error {
	workID := cmd.IntArg("work-id")
	if err := requireID("work-id", workID); err != nil {
		return err
	}
	start, end := cmd.String("start"), cmd.String("end")
	if end == "" {
		end = start
	}

	resp, err := tasks.RequestScrape(ctx, r.api, workID, start, end, cmd.Bool("force"))
	if err != nil {
		return apiError(err, tasks.MsgScrapeFailed)
	}

	r.writePlain("✓ %s\n", tasks.MsgScrapeQueued)
	r.writePlain("Range: %g - %g • status %s\n", resp.Start, resp.End, resp.Status)
	if resp.Requested > 0 {
		r.writePlain("Requested %d • created %d • updated %d • skipped %d\n", resp.Requested, resp.Created, resp.Updated, resp.Skipped)
	}
	if len(resp.Errors) > 0 {
		r.writePlain("%d chapters failed to scrape\n", len(resp.Errors))
	}
	if !cmd.Bool("watch") {
		return nil
	}

	var found atomic.Int32
	watcher := tasks.NewScrapeWatcher(r.api, workID, func() { found.Add(1) }, r.logger)
	defer watcher.Close()
	if err := watcher.Watch(ctx); err != nil {
		return apiError(err, "Failed to follow scrape job")
	}

	r.writePlainln("Following scrape job, press ctrl+c to stop")
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case st := <-watcher.Updates():
			r.writePlain("%s %d/%d (%d chapters found)\n", st.Status, st.Progress, st.Total, found.Load())
			switch st.Status {
			case models.ScrapeCompleted:
				return nil
			case models.ScrapeFailed:
				return fmt.Errorf("%w: %s", shared.ErrAPIRequest, firstNonEmpty(st.Error, "scrape failed"))
			}
		}
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
