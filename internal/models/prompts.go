package models

import "time"

// Prompt is a named, reusable LLM prompt template.
type Prompt struct {
	ID          int       `json:"id"`
	Name        string    `json:"name"`
	Description *string   `json:"description,omitempty"`
	OwnerWorkID *int      `json:"owner_work_id,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// DescriptionText returns the description or "".
func (p Prompt) DescriptionText() string {
	if p.Description == nil {
		return ""
	}
	return *p.Description
}

// PromptDetail is a prompt with its latest version resolved.
type PromptDetail struct {
	Prompt
	LatestVersion *PromptVersion `json:"latest_version,omitempty"`
}

// PromptVersion is an immutable (model, template) pair; edits append a new version.
type PromptVersion struct {
	ID            int            `json:"id"`
	PromptID      int            `json:"prompt_id"`
	VersionNumber int            `json:"version_number"`
	Model         string         `json:"model"`
	Template      string         `json:"template"`
	Parameters    map[string]any `json:"parameters,omitempty"`
	CreatedBy     *string        `json:"created_by,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
}

// PromptCreateRequest creates a prompt.
type PromptCreateRequest struct {
	Name        string  `json:"name"`
	Description *string `json:"description,omitempty"`
}

// PromptUpdateRequest edits prompt metadata; at least one field must be set.
type PromptUpdateRequest struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
}

// PromptVersionCreateRequest appends a version to a prompt.
type PromptVersionCreateRequest struct {
	Model      string         `json:"model"`
	Template   string         `json:"template"`
	Parameters map[string]any `json:"parameters,omitempty"`
	CreatedBy  *string        `json:"created_by,omitempty"`
}

// WorkPromptUpdateRequest assigns a prompt to a work.
type WorkPromptUpdateRequest struct {
	PromptID int `json:"prompt_id"`
}

// PromptOverrideRequest asks for a one-shot token carrying an unsaved draft.
type PromptOverrideRequest struct {
	Model    string `json:"model"`
	Template string `json:"template"`
}

// PromptOverride is a short-lived token that applies a draft to one translation run.
type PromptOverride struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ModelInfo describes a supported LLM model.
type ModelInfo struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	Provider          string  `json:"provider"`
	MaxTokens         int     `json:"max_tokens"`
	SupportsStreaming bool    `json:"supports_streaming"`
	CostPer1MInput    float64 `json:"cost_per_1m_input"`
	CostPer1MOutput   float64 `json:"cost_per_1m_output"`
}

// ModelsList is the models endpoint response.
type ModelsList struct {
	Items []ModelInfo `json:"items"`
	Total int         `json:"total"`
}

// IDs returns the model identifiers in order.
func (l ModelsList) IDs() []string {
	ids := make([]string, len(l.Items))
	for i, m := range l.Items {
		ids[i] = m.ID
	}
	return ids
}

// LabRequest runs an ephemeral translation in the prompt lab.
type LabRequest struct {
	Text     string         `json:"text"`
	Model    string         `json:"model"`
	Template string         `json:"template"`
	Params   map[string]any `json:"params"`
}
