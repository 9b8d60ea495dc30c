package tasks

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/desertthunder/novelx/internal/models"
	"github.com/desertthunder/novelx/internal/services"
	tu "github.com/desertthunder/novelx/internal/testing"
)

// waitFor polls cond until it holds or a deadline passes.
func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(2 * time.Millisecond)
	}
}

func strPtr(s string) *string { return &s }
func intPtr(n int) *int       { return &n }

// pipeSet hands out one event pipe per opened stream.
type pipeSet struct {
	mu    sync.Mutex
	pipes []*tu.EventPipe
}

func (p *pipeSet) open() *services.Stream {
	pipe := tu.NewEventPipe()
	p.mu.Lock()
	p.pipes = append(p.pipes, pipe)
	p.mu.Unlock()
	return services.NewStream(pipe.Reader(), nil)
}

func (p *pipeSet) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pipes)
}

// at waits until stream i has been opened and returns its pipe.
func (p *pipeSet) at(t *testing.T, i int) *tu.EventPipe {
	t.Helper()
	waitFor(t, "stream to open", func() bool { return p.count() > i })
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pipes[i]
}

func send(t *testing.T, pipe *tu.EventPipe, name string, data any) {
	t.Helper()
	if err := pipe.Send(name, data); err != nil {
		t.Fatalf("failed to send %s: %v", name, err)
	}
}

// fakeTranslation is an in-memory [TranslationClient].
type fakeTranslation struct {
	chapter  pipeSet
	segments pipeSet

	mu         sync.Mutex
	tokens     []string
	state      *models.TranslationState
	stateErr   error
	resetState *models.TranslationState
	resetErr   error
	openErr    error
	resets     int

	// When set, GetTranslation signals entered and then waits on release.
	entered chan struct{}
	release chan struct{}
}

func (f *fakeTranslation) GetTranslation(ctx context.Context, workID, chapterID int) (*models.TranslationState, error) {
	if f.release != nil {
		close(f.entered)
		<-f.release
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stateErr != nil {
		return nil, f.stateErr
	}
	if f.state == nil {
		return &models.TranslationState{}, nil
	}
	return f.state, nil
}

func (f *fakeTranslation) ResetTranslation(ctx context.Context, workID, chapterID int) (*models.TranslationState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.resets++
	if f.resetErr != nil {
		return nil, f.resetErr
	}
	if f.resetState == nil {
		return &models.TranslationState{}, nil
	}
	return f.resetState, nil
}

func (f *fakeTranslation) TranslateStream(ctx context.Context, workID, chapterID int, token string) (*services.Stream, error) {
	f.mu.Lock()
	f.tokens = append(f.tokens, token)
	err := f.openErr
	f.mu.Unlock()
	if err != nil {
		return nil, err
	}
	return f.chapter.open(), nil
}

func (f *fakeTranslation) RetranslateSegmentStream(ctx context.Context, workID, chapterID, segmentID int) (*services.Stream, error) {
	return f.segments.open(), nil
}

// findSegment returns the segment with id from a snapshot.
func findSegment(snap TranslationSnapshot, id int) (models.Segment, bool) {
	for _, s := range snap.Segments {
		if s.ID == id {
			return s, true
		}
	}
	return models.Segment{}, false
}
