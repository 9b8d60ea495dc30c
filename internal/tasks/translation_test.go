package tasks

import (
	"context"
	"errors"
	"testing"

	"github.com/desertthunder/novelx/internal/models"
	"github.com/desertthunder/novelx/internal/services"
	"github.com/desertthunder/novelx/internal/shared"
)

func segmentText(ts *TranslationStream, id int) func() string {
	return func() string {
		s, _ := findSegment(ts.Snapshot(), id)
		return s.Text
	}
}

func TestTranslationStream(t *testing.T) {
	ctx := context.Background()

	t.Run("Accumulates Deltas Into A Completed Segment", func(t *testing.T) {
		api := &fakeTranslation{}
		ts := NewTranslationStream(api, 1, 2, nil)
		defer ts.Close()

		if err := ts.Start(ctx, StartOptions{}); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		if got := ts.Snapshot().Status; got != StatusConnecting {
			t.Errorf("expected connecting before the first event, got %s", got)
		}

		pipe := api.chapter.at(t, 0)
		send(t, pipe, services.EventSegmentStart, services.SegmentStartPayload{SegmentID: 1, OrderIndex: 0, Start: 0, End: 2, Src: "ab"})
		send(t, pipe, services.EventSegmentDelta, services.SegmentDeltaPayload{SegmentID: 1, Delta: "A"})
		send(t, pipe, services.EventSegmentDelta, services.SegmentDeltaPayload{SegmentID: 1, Delta: "B"})
		send(t, pipe, services.EventSegmentComplete, services.SegmentCompletePayload{SegmentID: 1, Text: strPtr("AB")})

		waitFor(t, "segment 1 to complete", func() bool {
			s, ok := findSegment(ts.Snapshot(), 1)
			return ok && s.Status == models.SegmentCompleted
		})

		snap := ts.Snapshot()
		seg, _ := findSegment(snap, 1)
		if seg.Text != "AB" {
			t.Errorf("expected text AB, got %q", seg.Text)
		}
		if snap.Status != StatusRunning {
			t.Errorf("expected running, got %s", snap.Status)
		}
	})

	t.Run("Drops Deltas For Unknown Segments", func(t *testing.T) {
		api := &fakeTranslation{}
		ts := NewTranslationStream(api, 1, 2, nil)
		defer ts.Close()

		if err := ts.Start(ctx, StartOptions{}); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		pipe := api.chapter.at(t, 0)
		send(t, pipe, services.EventSegmentStart, services.SegmentStartPayload{SegmentID: 1, OrderIndex: 0})
		send(t, pipe, services.EventSegmentDelta, services.SegmentDeltaPayload{SegmentID: 99, Delta: "ghost"})
		send(t, pipe, services.EventSegmentComplete, services.SegmentCompletePayload{SegmentID: 99, Text: strPtr("ghost")})
		send(t, pipe, services.EventSegmentDelta, services.SegmentDeltaPayload{SegmentID: 1, Delta: "real"})

		waitFor(t, "segment 1 delta", func() bool { return segmentText(ts, 1)() == "real" })

		snap := ts.Snapshot()
		if len(snap.Segments) != 1 {
			t.Errorf("expected only segment 1, got %+v", snap.Segments)
		}
		if _, ok := findSegment(snap, 99); ok {
			t.Error("expected unknown segment to be ignored")
		}
	})

	t.Run("Pause Then Start Resumes Without Duplicating Text", func(t *testing.T) {
		api := &fakeTranslation{}
		ts := NewTranslationStream(api, 1, 2, nil)
		defer ts.Close()

		if err := ts.Start(ctx, StartOptions{}); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		first := api.chapter.at(t, 0)
		send(t, first, services.EventSegmentStart, services.SegmentStartPayload{SegmentID: 1, OrderIndex: 0})
		send(t, first, services.EventSegmentDelta, services.SegmentDeltaPayload{SegmentID: 1, Delta: "A"})
		send(t, first, services.EventSegmentComplete, services.SegmentCompletePayload{SegmentID: 1, Text: strPtr("A")})
		send(t, first, services.EventSegmentStart, services.SegmentStartPayload{SegmentID: 2, OrderIndex: 1})
		send(t, first, services.EventSegmentDelta, services.SegmentDeltaPayload{SegmentID: 2, Delta: "B"})
		waitFor(t, "segment 2 partial text", func() bool { return segmentText(ts, 2)() == "B" })

		ts.Pause()
		snap := ts.Snapshot()
		if snap.Status != StatusIdle {
			t.Errorf("expected idle after pause, got %s", snap.Status)
		}
		if got := segmentText(ts, 2)(); got != "B" {
			t.Errorf("expected partial text kept after pause, got %q", got)
		}
		if err := first.Send(services.EventSegmentDelta, services.SegmentDeltaPayload{SegmentID: 2, Delta: "late"}); err == nil {
			t.Error("expected the paused connection to be closed")
		}

		if err := ts.Start(ctx, StartOptions{}); err != nil {
			t.Fatalf("second Start() error = %v", err)
		}
		second := api.chapter.at(t, 1)
		send(t, second, services.EventSegmentStart, services.SegmentStartPayload{SegmentID: 2, OrderIndex: 1})
		send(t, second, services.EventSegmentDelta, services.SegmentDeltaPayload{SegmentID: 2, Delta: "B"})
		send(t, second, services.EventSegmentDelta, services.SegmentDeltaPayload{SegmentID: 2, Delta: "C"})
		send(t, second, services.EventSegmentComplete, services.SegmentCompletePayload{SegmentID: 2, Text: strPtr("BC")})
		send(t, second, services.EventTranslationComplete, nil)

		waitFor(t, "run to complete", func() bool { return ts.Snapshot().Status == StatusCompleted })

		if n := api.chapter.count(); n != 2 {
			t.Errorf("expected 2 connections, got %d", n)
		}
		if got := segmentText(ts, 1)(); got != "A" {
			t.Errorf("expected segment 1 text A, got %q", got)
		}
		if got := segmentText(ts, 2)(); got != "BC" {
			t.Errorf("expected segment 2 text BC, got %q", got)
		}
		if got := ts.Snapshot().Text(); got != "ABC" {
			t.Errorf("expected chapter text ABC, got %q", got)
		}
	})

	t.Run("Start Is A No-Op While Streaming", func(t *testing.T) {
		api := &fakeTranslation{}
		ts := NewTranslationStream(api, 1, 2, nil)
		defer ts.Close()

		if err := ts.Start(ctx, StartOptions{PromptOverrideToken: "tok"}); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		api.chapter.at(t, 0)
		if err := ts.Start(ctx, StartOptions{}); err != nil {
			t.Fatalf("second Start() error = %v", err)
		}
		if n := api.chapter.count(); n != 1 {
			t.Errorf("expected a single connection, got %d", n)
		}

		api.mu.Lock()
		defer api.mu.Unlock()
		if len(api.tokens) != 1 || api.tokens[0] != "tok" {
			t.Errorf("expected override token to be passed once, got %v", api.tokens)
		}
	})

	t.Run("Missing Identifiers", func(t *testing.T) {
		api := &fakeTranslation{}
		ts := NewTranslationStream(api, 0, 2, nil)
		defer ts.Close()

		err := ts.Start(ctx, StartOptions{})
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected invalid input error, got %v", err)
		}
		if got := ts.Snapshot().Error; got != MsgMissingIdentifiers {
			t.Errorf("expected %q, got %q", MsgMissingIdentifiers, got)
		}
		if api.chapter.count() != 0 {
			t.Error("expected no connection")
		}
	})

	t.Run("Translation Error Event", func(t *testing.T) {
		api := &fakeTranslation{}
		ts := NewTranslationStream(api, 1, 2, nil)
		defer ts.Close()

		if err := ts.Start(ctx, StartOptions{}); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		send(t, api.chapter.at(t, 0), services.EventTranslationError, map[string]any{})

		waitFor(t, "error status", func() bool { return ts.Snapshot().Status == StatusError })
		if got := ts.Snapshot().Error; got != MsgTranslationFailed {
			t.Errorf("expected default error message, got %q", got)
		}

		if err := ts.Start(ctx, StartOptions{}); err != nil {
			t.Fatalf("restart error = %v", err)
		}
		if n := api.chapter.count(); n != 2 {
			t.Errorf("expected restart after error to reconnect, got %d connections", n)
		}
	})

	t.Run("Transport Failure", func(t *testing.T) {
		api := &fakeTranslation{}
		ts := NewTranslationStream(api, 1, 2, nil)
		defer ts.Close()

		if err := ts.Start(ctx, StartOptions{}); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		pipe := api.chapter.at(t, 0)
		send(t, pipe, services.EventTranslationStatus, services.StatusPayload{Status: "running"})
		pipe.Fail(errors.New("connection reset by peer"))

		waitFor(t, "error status", func() bool { return ts.Snapshot().Status == StatusError })
		if got := ts.Snapshot().Error; got != MsgStreamDisconnected {
			t.Errorf("expected %q, got %q", MsgStreamDisconnected, got)
		}
	})

	t.Run("Open Failure Uses Server Detail", func(t *testing.T) {
		api := &fakeTranslation{openErr: &services.APIError{StatusCode: 409, Detail: "Translation already running"}}
		ts := NewTranslationStream(api, 1, 2, nil)
		defer ts.Close()

		if err := ts.Start(ctx, StartOptions{}); err == nil {
			t.Fatal("expected open error")
		}
		snap := ts.Snapshot()
		if snap.Status != StatusError || snap.Error != "Translation already running" {
			t.Errorf("unexpected snapshot %+v", snap)
		}
	})

	t.Run("Hydrate Seeds Segments", func(t *testing.T) {
		api := &fakeTranslation{state: &models.TranslationState{Segments: []models.TranslationSegmentRecord{
			{ID: 2, OrderIndex: 1, Src: "二"},
			{ID: 1, OrderIndex: 0, Src: "一", Tgt: "One"},
			{ID: 3, OrderIndex: 2, Src: "\n", Flags: []string{"whitespace"}},
		}}}
		ts := NewTranslationStream(api, 1, 2, nil)
		defer ts.Close()

		if err := ts.Hydrate(ctx); err != nil {
			t.Fatalf("Hydrate() error = %v", err)
		}
		snap := ts.Snapshot()
		if len(snap.Segments) != 3 || snap.Segments[0].ID != 1 {
			t.Fatalf("expected 3 segments ordered by order index, got %+v", snap.Segments)
		}
		want := []models.SegmentStatus{models.SegmentCompleted, models.SegmentPending, models.SegmentCompleted}
		for i, s := range snap.Segments {
			if s.Status != want[i] {
				t.Errorf("segment %d: expected %s, got %s", s.ID, want[i], s.Status)
			}
		}
		if snap.Status != StatusIdle {
			t.Errorf("expected idle for a snapshot without status, got %s", snap.Status)
		}
	})

	t.Run("Hydrate Applies Stored Status", func(t *testing.T) {
		api := &fakeTranslation{state: &models.TranslationState{
			Status:   "completed",
			Segments: []models.TranslationSegmentRecord{{ID: 1, OrderIndex: 0, Src: "一", Tgt: "A"}},
		}}
		ts := NewTranslationStream(api, 1, 2, nil)
		defer ts.Close()

		if err := ts.Hydrate(ctx); err != nil {
			t.Fatalf("Hydrate() error = %v", err)
		}
		if got := ts.Snapshot().Status; got != StatusCompleted {
			t.Errorf("expected %s after hydrating a completed translation, got %s", StatusCompleted, got)
		}
	})

	t.Run("Hydrate Finishing After Start Keeps Stored Segments", func(t *testing.T) {
		api := &fakeTranslation{
			state: &models.TranslationState{
				Status: "running",
				Segments: []models.TranslationSegmentRecord{
					{ID: 1, OrderIndex: 0, Src: "一", Tgt: "One"},
					{ID: 2, OrderIndex: 1, Src: "二"},
				},
			},
			entered: make(chan struct{}),
			release: make(chan struct{}),
		}
		ts := NewTranslationStream(api, 1, 2, nil)
		defer ts.Close()

		done := make(chan error, 1)
		go func() { done <- ts.Hydrate(ctx) }()
		<-api.entered

		if err := ts.Start(ctx, StartOptions{}); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		pipe := api.chapter.at(t, 0)
		send(t, pipe, services.EventSegmentStart, services.SegmentStartPayload{SegmentID: 2, OrderIndex: 1, Src: "二"})
		send(t, pipe, services.EventSegmentDelta, services.SegmentDeltaPayload{SegmentID: 2, Delta: "Tw"})
		waitFor(t, "streamed delta", func() bool { return segmentText(ts, 2)() == "Tw" })

		close(api.release)
		if err := <-done; err != nil {
			t.Fatalf("Hydrate() error = %v", err)
		}

		snap := ts.Snapshot()
		if s, ok := findSegment(snap, 1); !ok || s.Text != "One" || s.Status != models.SegmentCompleted {
			t.Errorf("expected stored segment 1 to survive, got %+v (found %v)", s, ok)
		}
		if s, _ := findSegment(snap, 2); s.Text != "Tw" || s.Status != models.SegmentRunning {
			t.Errorf("expected streamed segment 2 to win over stored, got %+v", s)
		}
		if !snap.Streaming() {
			t.Errorf("expected chapter stream to stay open, got %s", snap.Status)
		}
	})

	t.Run("Hydrate Failure", func(t *testing.T) {
		api := &fakeTranslation{stateErr: shared.ErrConnection}
		ts := NewTranslationStream(api, 1, 2, nil)
		defer ts.Close()

		if err := ts.Hydrate(ctx); err == nil {
			t.Fatal("expected an error")
		}
		if got := ts.Snapshot().Error; got != MsgLoadTranslationFailed {
			t.Errorf("expected %q, got %q", MsgLoadTranslationFailed, got)
		}
	})

	t.Run("Regenerate", func(t *testing.T) {
		api := &fakeTranslation{resetState: &models.TranslationState{Segments: []models.TranslationSegmentRecord{
			{ID: 7, OrderIndex: 0, Src: "新"},
		}}}
		ts := NewTranslationStream(api, 1, 2, nil)
		defer ts.Close()

		if err := ts.Start(ctx, StartOptions{}); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		send(t, api.chapter.at(t, 0), services.EventSegmentStart, services.SegmentStartPayload{SegmentID: 1})

		if !ts.Regenerate(ctx) {
			t.Fatal("expected Regenerate to succeed")
		}
		snap := ts.Snapshot()
		if snap.Status != StatusIdle || snap.Resetting {
			t.Errorf("unexpected snapshot after regenerate %+v", snap)
		}
		if len(snap.Segments) != 1 || snap.Segments[0].ID != 7 || snap.Segments[0].Status != models.SegmentPending {
			t.Errorf("expected fresh snapshot applied, got %+v", snap.Segments)
		}
	})

	t.Run("Regenerate Failure", func(t *testing.T) {
		api := &fakeTranslation{resetErr: &services.APIError{StatusCode: 500}}
		ts := NewTranslationStream(api, 1, 2, nil)
		defer ts.Close()

		if ts.Regenerate(ctx) {
			t.Fatal("expected Regenerate to fail")
		}
		if got := ts.Snapshot().Error; got != MsgResetFailed {
			t.Errorf("expected %q, got %q", MsgResetFailed, got)
		}
	})

	t.Run("Segment Retranslation Coexists With Chapter Stream", func(t *testing.T) {
		api := &fakeTranslation{state: &models.TranslationState{Segments: []models.TranslationSegmentRecord{
			{ID: 5, OrderIndex: 0, Src: "五", Tgt: "Five"},
		}}}
		ts := NewTranslationStream(api, 1, 2, nil)
		defer ts.Close()

		if err := ts.Hydrate(ctx); err != nil {
			t.Fatalf("Hydrate() error = %v", err)
		}
		if err := ts.Start(ctx, StartOptions{}); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		api.chapter.at(t, 0)

		if err := ts.RetranslateSegment(ctx, 5); err != nil {
			t.Fatalf("RetranslateSegment() error = %v", err)
		}
		if got := ts.Snapshot().RetranslatingID; got != 5 {
			t.Errorf("expected segment 5 retranslating, got %d", got)
		}

		seg := api.segments.at(t, 0)
		send(t, seg, services.EventSegmentStart, services.SegmentStartPayload{SegmentID: 5, OrderIndex: 0, Src: "五"})
		send(t, seg, services.EventSegmentDelta, services.SegmentDeltaPayload{SegmentID: 5, Delta: "5"})
		send(t, seg, services.EventSegmentComplete, services.SegmentCompletePayload{SegmentID: 5})

		waitFor(t, "retranslation to finish", func() bool { return ts.Snapshot().RetranslatingID == 0 })

		snap := ts.Snapshot()
		if s, _ := findSegment(snap, 5); s.Text != "5" || s.Status != models.SegmentCompleted {
			t.Errorf("unexpected segment %+v", s)
		}
		if !snap.Streaming() {
			t.Errorf("expected chapter stream to stay open, got %s", snap.Status)
		}
	})

	t.Run("Reset Clears Everything", func(t *testing.T) {
		api := &fakeTranslation{}
		ts := NewTranslationStream(api, 1, 2, nil)
		defer ts.Close()

		if err := ts.Start(ctx, StartOptions{}); err != nil {
			t.Fatalf("Start() error = %v", err)
		}
		pipe := api.chapter.at(t, 0)
		send(t, pipe, services.EventSegmentStart, services.SegmentStartPayload{SegmentID: 1})
		waitFor(t, "segment registered", func() bool { return len(ts.Snapshot().Segments) == 1 })

		ts.Reset()
		snap := ts.Snapshot()
		if snap.Status != StatusIdle || len(snap.Segments) != 0 || snap.Error != "" {
			t.Errorf("unexpected snapshot after reset %+v", snap)
		}
		if err := pipe.Send(services.EventSegmentStart, services.SegmentStartPayload{SegmentID: 2}); err == nil {
			t.Error("expected the connection to be closed")
		}
	})

	t.Run("Updates Never Block", func(t *testing.T) {
		api := &fakeTranslation{}
		ts := NewTranslationStream(api, 1, 2, nil)
		defer ts.Close()

		for range 10 {
			ts.Pause()
		}
		select {
		case snap := <-ts.Updates():
			if snap.Status != StatusIdle {
				t.Errorf("expected latest snapshot, got %+v", snap)
			}
		default:
			t.Error("expected a pending update")
		}
	})
}
