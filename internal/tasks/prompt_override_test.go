package tasks

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/desertthunder/novelx/internal/models"
	"github.com/desertthunder/novelx/internal/services"
	"github.com/desertthunder/novelx/internal/shared"
)

type fakeOverrides struct {
	mu        sync.Mutex
	versions  []models.PromptVersionCreateRequest
	overrides []models.PromptOverrideRequest
	err       error
	onCreate  func() // Runs while a version is being saved
}

func (f *fakeOverrides) CreatePromptVersion(ctx context.Context, promptID int, req models.PromptVersionCreateRequest) (*models.PromptVersion, error) {
	if f.onCreate != nil {
		f.onCreate()
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.versions = append(f.versions, req)
	if f.err != nil {
		return nil, f.err
	}
	return &models.PromptVersion{PromptID: promptID, VersionNumber: len(f.versions) + 1, Model: req.Model, Template: req.Template}, nil
}

func (f *fakeOverrides) CreatePromptOverride(ctx context.Context, workID, chapterID int, req models.PromptOverrideRequest) (*models.PromptOverride, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.overrides = append(f.overrides, req)
	if f.err != nil {
		return nil, f.err
	}
	return &models.PromptOverride{Token: "tok-1"}, nil
}

func (f *fakeOverrides) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.versions) + len(f.overrides)
}

func assignedPrompt() *models.PromptDetail {
	return &models.PromptDetail{
		Prompt:        models.Prompt{ID: 5, Name: "Default"},
		LatestVersion: &models.PromptVersion{ID: 1, PromptID: 5, VersionNumber: 1, Model: "gpt-4", Template: "T"},
	}
}

func TestPromptOverride(t *testing.T) {
	ctx := context.Background()

	t.Run("Draft Tracks Baseline Until Edited", func(t *testing.T) {
		api := &fakeOverrides{}
		p := NewPromptOverride(api, 1, 2, nil)
		p.SetPrompt(assignedPrompt(), false)

		if got := p.Baseline(); got != (PromptDraft{Model: "gpt-4", Template: "T"}) {
			t.Fatalf("unexpected baseline %+v", got)
		}
		if p.IsDirty() {
			t.Error("expected a clean draft")
		}

		p.SetTemplate("T2")
		if !p.IsDirty() {
			t.Error("expected dirty after editing the template")
		}

		p.ResetDraft()
		if p.IsDirty() || p.Draft().Template != "T" {
			t.Errorf("expected reset to restore the baseline, got %+v", p.Draft())
		}
	})

	t.Run("Refetched Baseline Keeps Edits", func(t *testing.T) {
		p := NewPromptOverride(&fakeOverrides{}, 1, 2, nil)
		p.SetPrompt(assignedPrompt(), false)
		p.SetModel("claude")

		next := assignedPrompt()
		next.LatestVersion.Template = "T-new"
		p.SetPrompt(next, false)

		if d := p.Draft(); d.Model != "claude" || d.Template != "T" {
			t.Errorf("expected the edited draft to survive, got %+v", d)
		}
	})

	t.Run("Empty Model Is Rejected Without A Request", func(t *testing.T) {
		api := &fakeOverrides{}
		p := NewPromptOverride(api, 1, 2, nil)
		p.SetPrompt(assignedPrompt(), false)
		p.SetModel("  ")

		err := p.SaveDraft(ctx)
		if !errors.Is(err, shared.ErrInvalidInput) {
			t.Fatalf("expected invalid input, got %v", err)
		}
		if api.calls() != 0 {
			t.Errorf("expected no requests, got %d", api.calls())
		}
		if p.Error() != MsgModelTemplateNeeded || p.SaveDisabledReason() != MsgModelTemplateNeeded {
			t.Errorf("unexpected error state %q / %q", p.Error(), p.SaveDisabledReason())
		}
	})

	t.Run("Not Assigned", func(t *testing.T) {
		api := &fakeOverrides{}
		p := NewPromptOverride(api, 1, 2, nil)
		p.SetPrompt(nil, true)

		if p.CanSave() {
			t.Error("expected save to be unavailable")
		}
		if got := p.SaveDisabledReason(); got != MsgAssignPromptFirst {
			t.Errorf("expected %q, got %q", MsgAssignPromptFirst, got)
		}
		if err := p.SaveDraft(ctx); err == nil || api.calls() != 0 {
			t.Errorf("expected rejection without requests, got %v and %d calls", err, api.calls())
		}
	})

	t.Run("Save Promotes The Draft", func(t *testing.T) {
		api := &fakeOverrides{}
		saved := 0
		p := NewPromptOverride(api, 1, 2, func() { saved++ })
		p.SetPrompt(assignedPrompt(), false)
		p.SetModel(" claude-3-5-sonnet ")

		if err := p.SaveDraft(ctx); err != nil {
			t.Fatalf("SaveDraft() error = %v", err)
		}
		if saved != 1 {
			t.Errorf("expected onSaved once, got %d", saved)
		}
		if p.IsDirty() || p.Baseline().Model != "claude-3-5-sonnet" {
			t.Errorf("expected draft to become the baseline, got %+v", p.Baseline())
		}
		if api.versions[0].Model != "claude-3-5-sonnet" {
			t.Errorf("expected trimmed model, got %q", api.versions[0].Model)
		}
	})

	t.Run("Edits Made While Saving Are Kept", func(t *testing.T) {
		api := &fakeOverrides{}
		p := NewPromptOverride(api, 1, 2, nil)
		p.SetPrompt(assignedPrompt(), false)
		p.SetTemplate("T2")
		api.onCreate = func() { p.SetTemplate("T3") }

		if err := p.SaveDraft(ctx); err != nil {
			t.Fatalf("SaveDraft() error = %v", err)
		}
		if got := p.Baseline().Template; got != "T2" {
			t.Errorf("expected saved template as baseline, got %q", got)
		}
		if got := p.Draft().Template; got != "T3" {
			t.Errorf("expected in-flight edit to survive, got %q", got)
		}
		if !p.IsDirty() {
			t.Error("expected draft to stay dirty against the new baseline")
		}
	})

	t.Run("Save Failure", func(t *testing.T) {
		api := &fakeOverrides{err: &services.APIError{StatusCode: 500}}
		p := NewPromptOverride(api, 1, 2, nil)
		p.SetPrompt(assignedPrompt(), false)
		p.SetTemplate("T2")

		if err := p.SaveDraft(ctx); err == nil {
			t.Fatal("expected error")
		}
		if p.Error() != MsgSavePromptFailed || !p.IsDirty() || p.Saving() {
			t.Errorf("unexpected state err=%q dirty=%v saving=%v", p.Error(), p.IsDirty(), p.Saving())
		}
	})

	t.Run("Override Token", func(t *testing.T) {
		api := &fakeOverrides{}
		p := NewPromptOverride(api, 1, 2, nil)
		p.SetPrompt(assignedPrompt(), false)

		token, err := p.PrepareOverrideToken(ctx)
		if err != nil || token != "" || api.calls() != 0 {
			t.Fatalf("expected no token for a clean draft, got %q %v", token, err)
		}

		p.SetTemplate("Be literal.")
		token, err = p.PrepareOverrideToken(ctx)
		if err != nil {
			t.Fatalf("PrepareOverrideToken() error = %v", err)
		}
		if token != "tok-1" || api.overrides[0].Template != "Be literal." {
			t.Errorf("unexpected token %q for %+v", token, api.overrides)
		}
	})
}
