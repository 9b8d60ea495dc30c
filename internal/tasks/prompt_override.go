package tasks

import (
	"context"
	"strings"
	"sync"

	"github.com/desertthunder/novelx/internal/models"
	"github.com/desertthunder/novelx/internal/services"
)

// Prompt override messages.
const (
	MsgAssignPromptFirst   = "Assign a prompt to this work before saving changes."
	MsgModelTemplateNeeded = "Model and template are required."
	MsgSavePromptFailed    = "Failed to save prompt changes. Please try again."
	MsgPrepareOverride     = "Failed to prepare prompt override."
)

// PromptOverrideClient saves drafts and mints override tokens.
type PromptOverrideClient interface {
	CreatePromptVersion(ctx context.Context, promptID int, req models.PromptVersionCreateRequest) (*models.PromptVersion, error)
	CreatePromptOverride(ctx context.Context, workID, chapterID int, req models.PromptOverrideRequest) (*models.PromptOverride, error)
}

// PromptDraft is an editable model/template pair.
type PromptDraft struct {
	Model    string
	Template string
}

func draftFrom(detail *models.PromptDetail) PromptDraft {
	if detail == nil || detail.LatestVersion == nil {
		return PromptDraft{}
	}
	return PromptDraft{Model: detail.LatestVersion.Model, Template: detail.LatestVersion.Template}
}

// PromptOverride holds an unsaved edit of the prompt assigned to a work.
//
// The baseline follows the work's assigned prompt. The draft follows the baseline only while the user has
// not edited it.
type PromptOverride struct {
	api       PromptOverrideClient
	workID    int
	chapterID int
	onSaved   func()

	mu          sync.Mutex
	prompt      *models.PromptDetail
	notAssigned bool
	baseline    PromptDraft
	draft       PromptDraft
	saving      bool
	err         string
}

// NewPromptOverride creates a controller for a chapter. onSaved, when set, runs after a successful save so
// callers can bump their prompt refresh token.
func NewPromptOverride(api PromptOverrideClient, workID, chapterID int, onSaved func()) *PromptOverride {
	return &PromptOverride{api: api, workID: workID, chapterID: chapterID, onSaved: onSaved}
}

// SetPrompt replaces the baseline with the work's assigned prompt.
func (p *PromptOverride) SetPrompt(detail *models.PromptDetail, notAssigned bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pristine := p.draft == p.baseline
	p.prompt = detail
	p.notAssigned = notAssigned || detail == nil
	p.baseline = draftFrom(detail)
	if pristine {
		p.draft = p.baseline
	}
}

// SetModel edits the draft model.
func (p *PromptOverride) SetModel(model string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.draft.Model = model
}

// SetTemplate edits the draft template.
func (p *PromptOverride) SetTemplate(template string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.draft.Template = template
}

// Draft returns the current draft.
func (p *PromptOverride) Draft() PromptDraft {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.draft
}

// Baseline returns the saved model and template.
func (p *PromptOverride) Baseline() PromptDraft {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.baseline
}

// Error returns the last save error.
func (p *PromptOverride) Error() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Saving reports whether a save is in flight.
func (p *PromptOverride) Saving() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.saving
}

// IsDirty reports whether the draft differs from the baseline.
func (p *PromptOverride) IsDirty() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.draft != p.baseline
}

// CanSave reports whether the draft can be saved as a new version.
func (p *PromptOverride) CanSave() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.canSave()
}

func (p *PromptOverride) canSave() bool {
	return p.assigned() && strings.TrimSpace(p.draft.Model) != "" && strings.TrimSpace(p.draft.Template) != ""
}

func (p *PromptOverride) assigned() bool {
	return !p.notAssigned && p.prompt != nil
}

// SaveDisabledReason explains why saving is unavailable, or returns "".
func (p *PromptOverride) SaveDisabledReason() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.disabledReason()
}

func (p *PromptOverride) disabledReason() string {
	if !p.assigned() {
		return MsgAssignPromptFirst
	}
	if p.draft != p.baseline && !p.canSave() {
		return MsgModelTemplateNeeded
	}
	return ""
}

// ResetDraft restores the baseline and clears the error.
func (p *PromptOverride) ResetDraft() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.draft = p.baseline
	p.err = ""
}

// SaveDraft appends the draft as a new version of the assigned prompt.
//
// When nothing is assigned or the draft is incomplete it fails without a request.
func (p *PromptOverride) SaveDraft(ctx context.Context) error {
	p.mu.Lock()
	if !p.assigned() {
		p.err = MsgAssignPromptFirst
		p.mu.Unlock()
		return services.NewValidationError(MsgAssignPromptFirst)
	}
	if !p.canSave() {
		p.err = MsgModelTemplateNeeded
		p.mu.Unlock()
		return services.NewValidationError(MsgModelTemplateNeeded)
	}
	promptID := p.prompt.ID
	sent := p.draft
	draft := PromptDraft{Model: strings.TrimSpace(sent.Model), Template: sent.Template}
	p.saving = true
	p.err = ""
	p.mu.Unlock()

	version, err := p.api.CreatePromptVersion(ctx, promptID, models.PromptVersionCreateRequest{
		Model:    draft.Model,
		Template: draft.Template,
	})

	p.mu.Lock()
	p.saving = false
	if err != nil {
		p.err = firstNonEmpty(services.ErrorMessage(err, MsgSavePromptFailed), MsgSavePromptFailed)
		p.mu.Unlock()
		return err
	}
	if version != nil {
		draft = PromptDraft{Model: version.Model, Template: version.Template}
		if p.prompt != nil {
			updated := *p.prompt
			updated.LatestVersion = version
			p.prompt = &updated
		}
	}
	p.baseline = draft
	if p.draft == sent {
		p.draft = draft
	}
	onSaved := p.onSaved
	p.mu.Unlock()

	if onSaved != nil {
		onSaved()
	}
	return nil
}

// PrepareOverrideToken returns a one-shot token carrying the draft, or "" when the draft is not dirty.
func (p *PromptOverride) PrepareOverrideToken(ctx context.Context) (string, error) {
	p.mu.Lock()
	dirty := p.draft != p.baseline
	draft := p.draft
	p.mu.Unlock()

	if !dirty {
		return "", nil
	}
	if strings.TrimSpace(draft.Model) == "" || strings.TrimSpace(draft.Template) == "" {
		return "", services.NewValidationError(MsgModelTemplateNeeded)
	}

	override, err := p.api.CreatePromptOverride(ctx, p.workID, p.chapterID, models.PromptOverrideRequest{
		Model:    strings.TrimSpace(draft.Model),
		Template: draft.Template,
	})
	if err != nil {
		p.mu.Lock()
		p.err = firstNonEmpty(services.ErrorMessage(err, MsgPrepareOverride), MsgPrepareOverride)
		p.mu.Unlock()
		return "", err
	}
	return override.Token, nil
}
