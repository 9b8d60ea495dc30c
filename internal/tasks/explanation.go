package tasks

import (
	"context"
	"io"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/novelx/internal/services"
)

// Explanation stream messages.
const (
	MsgExplanationFailed   = "Failed to generate explanation"
	MsgExplanationConnLost = "Connection lost while generating explanation"
)

// ExplanationClient opens segment explanation streams.
type ExplanationClient interface {
	ExplainStream(ctx context.Context, workID, chapterID, segmentID int) (*services.Stream, error)
	RegenerateExplanationStream(ctx context.Context, workID, chapterID, segmentID int) (*services.Stream, error)
}

// ExplanationSnapshot is a point-in-time copy of an [Explanation].
type ExplanationSnapshot struct {
	SegmentID int
	Text      string
	Loading   bool
	Error     string
}

// Explanation streams a grammar and vocabulary explanation for one segment at a time.
type Explanation struct {
	api       ExplanationClient
	workID    int
	chapterID int
	logger    *log.Logger

	mu      sync.Mutex
	state   ExplanationSnapshot
	stream  *services.Stream
	gen     uint64
	updates chan ExplanationSnapshot
	wg      sync.WaitGroup
}

// NewExplanation creates an explanation consumer for a chapter.
func NewExplanation(api ExplanationClient, workID, chapterID int, logger *log.Logger) *Explanation {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Explanation{
		api:       api,
		workID:    workID,
		chapterID: chapterID,
		logger:    logger,
		updates:   make(chan ExplanationSnapshot, 1),
	}
}

// Updates delivers the latest snapshot after each change.
func (e *Explanation) Updates() <-chan ExplanationSnapshot { return e.updates }

// Snapshot returns the current state.
func (e *Explanation) Snapshot() ExplanationSnapshot {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

func (e *Explanation) notify() {
	publishLatest(e.updates, e.state)
}

// Start streams the explanation for segmentID, replacing any open stream.
//
// With regenerate set the stored explanation is discarded first.
func (e *Explanation) Start(ctx context.Context, segmentID int, regenerate bool) error {
	e.mu.Lock()
	previous := e.stream
	e.stream = nil
	e.gen++
	gen := e.gen
	e.state = ExplanationSnapshot{SegmentID: segmentID, Loading: true}
	e.notify()
	e.mu.Unlock()
	if previous != nil {
		previous.Close()
	}

	var (
		stream *services.Stream
		err    error
	)
	if regenerate {
		stream, err = e.api.RegenerateExplanationStream(ctx, e.workID, e.chapterID, segmentID)
	} else {
		stream, err = e.api.ExplainStream(ctx, e.workID, e.chapterID, segmentID)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if gen != e.gen {
		if stream != nil {
			go stream.Close()
		}
		return nil
	}
	if err != nil {
		e.state.Loading = false
		e.state.Error = streamErrorMessage(err, MsgExplanationFailed)
		e.notify()
		return err
	}

	e.stream = stream
	e.wg.Add(1)
	go e.consume(gen, stream)
	return nil
}

func (e *Explanation) consume(gen uint64, stream *services.Stream) {
	defer e.wg.Done()
	defer stream.Close()

	for {
		ev, err := stream.Next()

		e.mu.Lock()
		if gen != e.gen {
			e.mu.Unlock()
			return
		}
		if err != nil {
			e.stream = nil
			e.state.Loading = false
			e.state.Error = MsgExplanationConnLost
			e.notify()
			e.mu.Unlock()
			return
		}

		done := false
		switch ev.Name {
		case services.EventExplanationDelta:
			var p services.ExplanationDeltaPayload
			if err := ev.Decode(&p); err != nil {
				e.logger.Warn("dropping malformed event", "event", ev.Name, "error", err)
				break
			}
			e.state.Text += p.Delta
		case services.EventExplanationComplete:
			e.state.Loading = false
			done = true
		case services.EventExplanationError:
			var p services.ErrorPayload
			_ = ev.Decode(&p)
			e.state.Loading = false
			e.state.Error = firstNonEmpty(p.Error, MsgExplanationFailed)
			done = true
		}
		if done {
			e.stream = nil
		}
		e.notify()
		e.mu.Unlock()

		if done {
			return
		}
	}
}

// Stop closes the open stream and keeps the text received so far.
func (e *Explanation) Stop() {
	e.mu.Lock()
	stream := e.stream
	e.stream = nil
	e.gen++
	e.state.Loading = false
	e.notify()
	e.mu.Unlock()
	if stream != nil {
		stream.Close()
	}
}

// Close stops the stream and waits for the reader to exit.
func (e *Explanation) Close() {
	e.Stop()
	e.wg.Wait()
}

// publishLatest sends v without blocking, replacing an undelivered older value.
func publishLatest[T any](ch chan T, v T) {
	select {
	case ch <- v:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	default:
	}
}
