package tasks

import (
	"context"
	"errors"
	"io"
	"strconv"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/novelx/internal/models"
	"github.com/desertthunder/novelx/internal/services"
)

// Scrape messages.
const (
	MsgInvalidChapterNumbers = "Enter valid chapter numbers (e.g. 1 or 2.1)."
	MsgEndBeforeStart        = "End chapter must be after start chapter."
	MsgScrapeQueued          = "Scrape request queued."
	MsgScrapeFailed          = "Failed to queue scrape"
)

// ScrapeClient queues and watches chapter scrapes.
type ScrapeClient interface {
	ScrapeChapters(ctx context.Context, workID int, req models.ChapterScrapeRequest) (*models.ChapterScrapeResponse, error)
	ScrapeStatusStream(ctx context.Context, workID int) (*services.Stream, error)
}

// ParseScrapeRange validates a start/end chapter range typed by the user. Decimals such as 2.1 are allowed.
func ParseScrapeRange(start, end string, force bool) (models.ChapterScrapeRequest, error) {
	s, errS := strconv.ParseFloat(strings.TrimSpace(start), 64)
	e, errE := strconv.ParseFloat(strings.TrimSpace(end), 64)
	if errS != nil || errE != nil {
		return models.ChapterScrapeRequest{}, services.NewValidationError(MsgInvalidChapterNumbers)
	}
	if e < s {
		return models.ChapterScrapeRequest{}, services.NewValidationError(MsgEndBeforeStart)
	}
	return models.ChapterScrapeRequest{Start: s, End: e, Force: force}, nil
}

// RequestScrape validates the range and queues the scrape. Validation failures make no request.
func RequestScrape(ctx context.Context, api ScrapeClient, workID int, start, end string, force bool) (*models.ChapterScrapeResponse, error) {
	req, err := ParseScrapeRange(start, end, force)
	if err != nil {
		return nil, err
	}
	return api.ScrapeChapters(ctx, workID, req)
}

// ScrapeWatcher follows a work's scrape job over the scrape-status stream.
type ScrapeWatcher struct {
	api            ScrapeClient
	workID         int
	logger         *log.Logger
	onChapterFound func()

	mu      sync.Mutex
	state   models.ScrapeState
	stream  *services.Stream
	cancel  context.CancelFunc
	updates chan models.ScrapeState
	wg      sync.WaitGroup
}

// NewScrapeWatcher creates an idle watcher. onChapterFound, when set, runs for every chapter-found event.
func NewScrapeWatcher(api ScrapeClient, workID int, onChapterFound func(), logger *log.Logger) *ScrapeWatcher {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &ScrapeWatcher{
		api:            api,
		workID:         workID,
		logger:         logger,
		onChapterFound: onChapterFound,
		state:          models.ScrapeState{Status: models.ScrapeIdle},
		updates:        make(chan models.ScrapeState, 1),
	}
}

// Updates delivers the latest job state after each change.
func (w *ScrapeWatcher) Updates() <-chan models.ScrapeState { return w.updates }

// State returns the current job state.
func (w *ScrapeWatcher) State() models.ScrapeState {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Watch opens the status stream and reads it in the background until Stop or ctx is done.
func (w *ScrapeWatcher) Watch(ctx context.Context) error {
	w.Stop()

	ctx, cancel := context.WithCancel(ctx)
	stream, err := w.api.ScrapeStatusStream(ctx, w.workID)
	if err != nil {
		cancel()
		return err
	}

	w.mu.Lock()
	w.stream = stream
	w.cancel = cancel
	w.mu.Unlock()

	w.wg.Add(1)
	go w.consume(ctx, stream)
	return nil
}

func (w *ScrapeWatcher) consume(ctx context.Context, stream *services.Stream) {
	defer w.wg.Done()
	defer stream.Close()

	for {
		ev, err := stream.Next()
		if err != nil {
			if ctx.Err() == nil && !errors.Is(err, io.EOF) {
				w.logger.Warn("scrape status stream failed", "work_id", w.workID, "error", err)
			}
			return
		}
		if ctx.Err() != nil {
			return
		}

		switch ev.Name {
		case services.EventJobStatus:
			var p services.JobStatusPayload
			if err := ev.Decode(&p); err != nil {
				w.logger.Warn("dropping malformed event", "event", ev.Name, "error", err)
				continue
			}
			w.mu.Lock()
			w.state.Status = p.Status
			if p.Progress != nil {
				w.state.Progress = *p.Progress
			}
			if p.Total != nil {
				w.state.Total = *p.Total
			}
			w.state.Error = p.Error
			publishLatest(w.updates, w.state)
			w.mu.Unlock()

		case services.EventChapterFound:
			if w.onChapterFound != nil {
				w.onChapterFound()
			}
		}
	}
}

// Stop closes the stream.
func (w *ScrapeWatcher) Stop() {
	w.mu.Lock()
	stream, cancel := w.stream, w.cancel
	w.stream, w.cancel = nil, nil
	w.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if stream != nil {
		stream.Close()
	}
}

// Close stops the stream and waits for the reader to exit.
func (w *ScrapeWatcher) Close() {
	w.Stop()
	w.wg.Wait()
}
