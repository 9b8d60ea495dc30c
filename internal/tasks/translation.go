package tasks

import (
	"context"
	"errors"
	"io"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/novelx/internal/models"
	"github.com/desertthunder/novelx/internal/services"
)

// StreamStatus is the lifecycle of a translation run.
//
//	idle → connecting → running → completed | error
//
// running is re-entered from idle (resume) and from completed (regenerate).
type StreamStatus string

const (
	StatusIdle       StreamStatus = "idle"
	StatusConnecting StreamStatus = "connecting"
	StatusRunning    StreamStatus = "running"
	StatusCompleted  StreamStatus = "completed"
	StatusError      StreamStatus = "error"
)

func normalizeStatus(s string) StreamStatus {
	switch StreamStatus(s) {
	case StatusRunning, StatusCompleted, StatusConnecting, StatusError:
		return StreamStatus(s)
	default:
		return StatusIdle
	}
}

// Translation stream messages.
const (
	MsgMissingIdentifiers        = "Missing work or chapter identifier"
	MsgTranslationFailed         = "Translation run failed"
	MsgStreamDisconnected        = "Translation stream disconnected"
	MsgRetranslationFailed       = "Segment retranslation failed"
	MsgRetranslationDisconnected = "Retranslation stream disconnected"
	MsgResetFailed               = "Failed to reset translation"
	MsgLoadTranslationFailed     = "Failed to load saved translation"
)

// TranslationClient is the part of the backend a [TranslationStream] needs.
type TranslationClient interface {
	GetTranslation(ctx context.Context, workID, chapterID int) (*models.TranslationState, error)
	ResetTranslation(ctx context.Context, workID, chapterID int) (*models.TranslationState, error)
	TranslateStream(ctx context.Context, workID, chapterID int, overrideToken string) (*services.Stream, error)
	RetranslateSegmentStream(ctx context.Context, workID, chapterID, segmentID int) (*services.Stream, error)
}

// TranslationSnapshot is a point-in-time copy of a [TranslationStream].
type TranslationSnapshot struct {
	WorkID          int
	ChapterID       int
	Status          StreamStatus
	Error           string
	Segments        []models.Segment // Ordered by OrderIndex
	Resetting       bool
	RetranslatingID int // Segment being retranslated, 0 when none
}

// Streaming reports whether the chapter stream is connecting or running.
func (s TranslationSnapshot) Streaming() bool {
	return s.Status == StatusConnecting || s.Status == StatusRunning
}

// Text joins the translated text of every segment in order.
func (s TranslationSnapshot) Text() string {
	var n int
	for _, seg := range s.Segments {
		n += len(seg.Text)
	}
	buf := make([]byte, 0, n)
	for _, seg := range s.Segments {
		buf = append(buf, seg.Text...)
	}
	return string(buf)
}

// StartOptions configures a chapter translation run.
type StartOptions struct {
	PromptOverrideToken string // One-shot token from [PromptOverride.PrepareOverrideToken]
}

type streamKind int

const (
	chapterStream streamKind = iota
	segmentStream
)

// activeStream is one open connection. stream is nil while connecting.
type activeStream struct {
	kind      streamKind
	stream    *services.Stream
	segmentID int
}

// TranslationStream consumes the translation event streams of one chapter.
//
// At most one chapter stream and one segment stream are open at a time; they may coexist.
// Every state change publishes a [TranslationSnapshot] on [TranslationStream.Updates].
type TranslationStream struct {
	api       TranslationClient
	workID    int
	chapterID int
	logger    *log.Logger

	mu        sync.Mutex
	status    StreamStatus
	err       string
	resetting bool
	segments  map[int]models.Segment
	gen       uint64 // Bumped by Reset only; stale hydration and regeneration results are dropped
	chapter   *activeStream
	segment   *activeStream

	updates chan TranslationSnapshot
	wg      sync.WaitGroup
}

// NewTranslationStream creates an idle consumer for a chapter.
func NewTranslationStream(api TranslationClient, workID, chapterID int, logger *log.Logger) *TranslationStream {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &TranslationStream{
		api:       api,
		workID:    workID,
		chapterID: chapterID,
		logger:    logger,
		status:    StatusIdle,
		segments:  map[int]models.Segment{},
		updates:   make(chan TranslationSnapshot, 1),
	}
}

// Updates delivers the latest snapshot after each change. Older undelivered snapshots are replaced.
func (t *TranslationStream) Updates() <-chan TranslationSnapshot {
	return t.updates
}

// Snapshot returns the current state.
func (t *TranslationStream) Snapshot() TranslationSnapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshot()
}

func (t *TranslationStream) snapshot() TranslationSnapshot {
	segs := make([]models.Segment, 0, len(t.segments))
	for _, s := range t.segments {
		segs = append(segs, s)
	}
	models.SortSegments(segs)

	snap := TranslationSnapshot{
		WorkID:    t.workID,
		ChapterID: t.chapterID,
		Status:    t.status,
		Error:     t.err,
		Segments:  segs,
		Resetting: t.resetting,
	}
	if t.segment != nil {
		snap.RetranslatingID = t.segment.segmentID
	}
	return snap
}

// notify must be called with t.mu held.
func (t *TranslationStream) notify() {
	publishLatest(t.updates, t.snapshot())
}

func (t *TranslationStream) hasIDs() bool {
	return t.workID > 0 && t.chapterID > 0
}

// Hydrate seeds segments and status from the stored translation. Local state is cleared first
// unless a stream is open; open streams are left running and their segments win over stored ones.
func (t *TranslationStream) Hydrate(ctx context.Context) error {
	if !t.hasIDs() {
		t.Reset()
		return nil
	}

	t.mu.Lock()
	if t.chapter == nil && t.segment == nil {
		t.segments = map[int]models.Segment{}
		t.status = StatusIdle
	}
	t.err = ""
	gen := t.gen
	t.notify()
	t.mu.Unlock()

	state, err := t.api.GetTranslation(ctx, t.workID, t.chapterID)

	t.mu.Lock()
	defer t.mu.Unlock()

	if gen != t.gen {
		return nil
	}
	if err != nil {
		t.err = MsgLoadTranslationFailed
		t.notify()
		return err
	}
	t.applyState(state)
	t.err = ""
	t.notify()
	return nil
}

// applyState seeds segments and status from a stored snapshot. Segments a live stream already
// touched and the status of an open chapter stream are kept. It must be called with t.mu held.
func (t *TranslationStream) applyState(state *models.TranslationState) {
	for _, rec := range state.Segments {
		if _, ok := t.segments[rec.ID]; ok {
			continue
		}
		t.segments[rec.ID] = rec.ToSegment()
	}
	if t.chapter == nil {
		t.status = normalizeStatus(state.Status)
	}
}

// Start opens the chapter stream. It is a no-op while a chapter stream is already open.
//
// ctx bounds the lifetime of the connection.
func (t *TranslationStream) Start(ctx context.Context, opts StartOptions) error {
	t.mu.Lock()
	if !t.hasIDs() {
		t.err = MsgMissingIdentifiers
		t.notify()
		t.mu.Unlock()
		return services.NewValidationError(MsgMissingIdentifiers)
	}
	if t.chapter != nil {
		t.mu.Unlock()
		return nil
	}

	h := &activeStream{kind: chapterStream}
	t.chapter = h
	t.status = StatusConnecting
	t.err = ""
	t.notify()
	t.mu.Unlock()

	t.logger.Debug("opening translation stream", "work_id", t.workID, "chapter_id", t.chapterID, "override", opts.PromptOverrideToken != "")
	stream, err := t.api.TranslateStream(ctx, t.workID, t.chapterID, opts.PromptOverrideToken)
	return t.attach(h, stream, err, MsgStreamDisconnected)
}

// RetranslateSegment opens a stream that retranslates one segment, replacing any open segment stream.
func (t *TranslationStream) RetranslateSegment(ctx context.Context, segmentID int) error {
	t.mu.Lock()
	if !t.hasIDs() {
		t.err = MsgMissingIdentifiers
		t.notify()
		t.mu.Unlock()
		return services.NewValidationError(MsgMissingIdentifiers)
	}

	previous := t.detach(t.segment)
	h := &activeStream{kind: segmentStream, segmentID: segmentID}
	t.segment = h
	t.err = ""
	t.notify()
	t.mu.Unlock()
	closeStreams(previous)

	t.logger.Debug("opening retranslation stream", "work_id", t.workID, "chapter_id", t.chapterID, "segment_id", segmentID)
	stream, err := t.api.RetranslateSegmentStream(ctx, t.workID, t.chapterID, segmentID)
	return t.attach(h, stream, err, MsgRetranslationDisconnected)
}

// attach binds an opened stream to h and starts reading, unless h was detached while connecting.
func (t *TranslationStream) attach(h *activeStream, stream *services.Stream, openErr error, disconnected string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if !t.isCurrent(h) {
		if stream != nil {
			go stream.Close()
		}
		return nil
	}

	if openErr != nil {
		t.clear(h)
		t.err = streamErrorMessage(openErr, disconnected)
		if h.kind == chapterStream {
			t.status = StatusError
		}
		t.notify()
		return openErr
	}

	h.stream = stream
	t.wg.Add(1)
	go t.consume(h)
	return nil
}

func (t *TranslationStream) consume(h *activeStream) {
	defer t.wg.Done()

	for {
		ev, err := h.stream.Next()

		t.mu.Lock()
		if !t.isCurrent(h) {
			t.mu.Unlock()
			return
		}
		if err != nil {
			t.failed(h, err)
			t.notify()
			t.mu.Unlock()
			h.stream.Close()
			return
		}

		if h.kind == chapterStream && t.status == StatusConnecting {
			t.status = StatusRunning
		}
		finished := t.apply(h, ev)
		t.notify()
		t.mu.Unlock()

		if finished {
			h.stream.Close()
			return
		}
	}
}

// failed must be called with t.mu held.
func (t *TranslationStream) failed(h *activeStream, err error) {
	t.clear(h)
	if h.kind == segmentStream {
		t.err = MsgRetranslationDisconnected
		return
	}
	t.err = MsgStreamDisconnected
	t.status = StatusError
	if !errors.Is(err, io.EOF) {
		t.logger.Warn("translation stream failed", "work_id", t.workID, "chapter_id", t.chapterID, "error", err)
	}
}

// apply handles one event and reports whether the stream is finished. It must be called with t.mu held.
func (t *TranslationStream) apply(h *activeStream, ev services.Event) bool {
	switch ev.Name {
	case services.EventTranslationStatus:
		var p services.StatusPayload
		if t.decode(ev, &p) && h.kind == chapterStream {
			t.status = normalizeStatus(p.Status)
		}

	case services.EventSegmentStart:
		var p services.SegmentStartPayload
		if !t.decode(ev, &p) {
			return false
		}
		seg := t.segments[p.SegmentID]
		seg.ID = p.SegmentID
		seg.OrderIndex = p.OrderIndex
		seg.Start = p.Start
		seg.End = p.End
		seg.Src = p.Src
		seg.Text = ""
		seg.Status = models.SegmentRunning
		t.segments[p.SegmentID] = seg

	case services.EventSegmentDelta:
		var p services.SegmentDeltaPayload
		if !t.decode(ev, &p) {
			return false
		}
		seg, ok := t.segments[p.SegmentID]
		if !ok {
			return false
		}
		seg.Text += p.Delta
		seg.Status = models.SegmentRunning
		t.segments[p.SegmentID] = seg

	case services.EventSegmentComplete:
		var p services.SegmentCompletePayload
		if !t.decode(ev, &p) {
			return false
		}
		seg, ok := t.segments[p.SegmentID]
		if !ok {
			return false
		}
		if p.Text != nil {
			seg.Text = *p.Text
		}
		seg.Status = models.SegmentCompleted
		t.segments[p.SegmentID] = seg

		if h.kind == segmentStream && p.SegmentID == h.segmentID {
			t.clear(h)
			return true
		}

	case services.EventTranslationError:
		var p services.ErrorPayload
		_ = ev.Decode(&p)
		t.clear(h)
		if h.kind == segmentStream {
			t.err = firstNonEmpty(p.Error, MsgRetranslationFailed)
			return true
		}
		t.err = firstNonEmpty(p.Error, MsgTranslationFailed)
		t.status = StatusError
		return true

	case services.EventTranslationComplete:
		t.clear(h)
		if h.kind == chapterStream {
			t.status = StatusCompleted
		}
		return true
	}
	return false
}

func (t *TranslationStream) decode(ev services.Event, v any) bool {
	if err := ev.Decode(v); err != nil {
		t.logger.Warn("dropping malformed event", "event", ev.Name, "error", err)
		return false
	}
	return true
}

// Pause closes the chapter stream and keeps the accumulated text.
func (t *TranslationStream) Pause() {
	t.mu.Lock()
	closing := t.detach(t.chapter)
	t.status = StatusIdle
	t.notify()
	t.mu.Unlock()
	closeStreams(closing)
}

// Reset closes every stream and clears segments and the error. It returns the new generation.
func (t *TranslationStream) Reset() uint64 {
	t.mu.Lock()
	closing := append(t.detach(t.chapter), t.detach(t.segment)...)
	t.gen++
	gen := t.gen
	t.segments = map[int]models.Segment{}
	t.err = ""
	t.status = StatusIdle
	t.notify()
	t.mu.Unlock()
	closeStreams(closing)
	return gen
}

// Regenerate deletes the stored translation and applies the fresh snapshot. It reports success.
func (t *TranslationStream) Regenerate(ctx context.Context) bool {
	if !t.hasIDs() {
		t.mu.Lock()
		t.err = MsgMissingIdentifiers
		t.notify()
		t.mu.Unlock()
		return false
	}

	gen := t.Reset()
	t.mu.Lock()
	t.resetting = true
	t.notify()
	t.mu.Unlock()

	state, err := t.api.ResetTranslation(ctx, t.workID, t.chapterID)

	t.mu.Lock()
	defer t.mu.Unlock()

	t.resetting = false
	if err != nil {
		t.err = MsgResetFailed
		t.notify()
		t.logger.Warn("failed to reset translation", "work_id", t.workID, "chapter_id", t.chapterID, "error", err)
		return false
	}
	if gen == t.gen {
		t.applyState(state)
	}
	t.notify()
	return true
}

// Close resets the consumer and waits for its readers to exit.
func (t *TranslationStream) Close() {
	t.Reset()
	t.wg.Wait()
}

// isCurrent must be called with t.mu held.
func (t *TranslationStream) isCurrent(h *activeStream) bool {
	return h != nil && (h == t.chapter || h == t.segment)
}

// clear drops h without closing it. It must be called with t.mu held.
func (t *TranslationStream) clear(h *activeStream) {
	switch h {
	case t.chapter:
		t.chapter = nil
	case t.segment:
		t.segment = nil
	}
}

// detach drops h and returns its stream for closing outside the lock. It must be called with t.mu held.
func (t *TranslationStream) detach(h *activeStream) []*services.Stream {
	if h == nil {
		return nil
	}
	t.clear(h)
	if h.stream == nil {
		return nil
	}
	return []*services.Stream{h.stream}
}

func closeStreams(streams []*services.Stream) {
	for _, s := range streams {
		s.Close()
	}
}

// streamErrorMessage prefers server detail and otherwise uses fallback.
func streamErrorMessage(err error, fallback string) string {
	var apiErr *services.APIError
	if errors.As(err, &apiErr) && apiErr.Detail != "" {
		return apiErr.Detail
	}
	var validation *services.ValidationError
	if errors.As(err, &validation) {
		return validation.Message
	}
	return fallback
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
