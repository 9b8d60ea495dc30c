package main

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/desertthunder/novelx/internal/formatter"
	"github.com/desertthunder/novelx/internal/models"
	"github.com/desertthunder/novelx/internal/services"
	"github.com/desertthunder/novelx/internal/shared"
	"github.com/desertthunder/novelx/internal/tasks"
	"github.com/urfave/cli/v3"
)

// PromptsList lists prompts, or the prompts usable by one work with --work.
func (r *Runner) PromptsList(ctx context.Context, cmd *cli.Command) error {
	query := cmd.String("query")

	var (
		prompts *models.Page[models.Prompt]
		err     error
	)
	if workID := cmd.Int("work"); workID > 0 {
		prompts, err = r.api.ListWorkPrompts(ctx, workID, query)
	} else {
		prompts, err = r.api.ListPrompts(ctx, query, models.PageQuery{Limit: cmd.Int("limit"), Offset: cmd.Int("offset")})
	}
	if err != nil {
		return apiError(err, tasks.MsgFetchPrompts)
	}

	if cmd.Bool("json") {
		return r.writeJSON(prompts, cmd.Bool("pretty"))
	}
	if len(prompts.Items) == 0 {
		return r.writePlain("No prompts found.\n")
	}

	rows := make([][]string, 0, len(prompts.Items))
	for _, p := range prompts.Items {
		owner := ""
		if p.OwnerWorkID != nil {
			owner = strconv.Itoa(*p.OwnerWorkID)
		}
		rows = append(rows, []string{strconv.Itoa(p.ID), formatter.Truncate(p.Name, 40), formatter.Truncate(p.DescriptionText(), 50), owner})
	}
	return r.writeTable([]string{"ID", "Name", "Description", "Work"}, rows, formatter.AlignRight)
}

// PromptsShow prints a prompt, its latest version and recent history.
func (r *Runner) PromptsShow(ctx context.Context, cmd *cli.Command) error {
	promptID := cmd.IntArg("prompt-id")
	if err := requireID("prompt-id", promptID); err != nil {
		return err
	}

	prompt, err := r.api.GetPrompt(ctx, promptID)
	if err != nil {
		return apiError(err, tasks.MsgFetchPrompt)
	}
	versions, err := r.api.ListPromptVersions(ctx, promptID, cmd.Int("versions"))
	if err != nil {
		return apiError(err, tasks.MsgFetchPromptVersions)
	}

	if cmd.Bool("json") {
		return r.writeJSON(struct {
			Prompt   *models.PromptDetail               `json:"prompt"`
			Versions *models.Page[models.PromptVersion] `json:"versions"`
		}{prompt, versions}, cmd.Bool("pretty"))
	}

	r.writePrompt(prompt)
	if len(versions.Items) > 0 {
		rows := make([][]string, 0, len(versions.Items))
		for _, v := range versions.Items {
			rows = append(rows, []string{"v" + strconv.Itoa(v.VersionNumber), v.Model, v.CreatedAt.Format("2006-01-02 15:04")})
		}
		r.writePlainln("History:")
		return r.writeTable([]string{"Version", "Model", "Created"}, rows)
	}
	return nil
}

func (r *Runner) writePrompt(p *models.PromptDetail) {
	r.writePlainHeader(p.Name)
	r.writePlain("ID: %d\n", p.ID)
	if d := p.DescriptionText(); d != "" {
		r.writePlain("%s\n", d)
	}
	if p.LatestVersion == nil {
		r.writePlainln("No versions yet.")
		return
	}
	v := p.LatestVersion
	r.writePlainln("v%d • %s", v.VersionNumber, v.Model)
	r.writePlain("%s\n", v.Template)
}

// PromptsCreate creates a prompt without versions.
func (r *Runner) PromptsCreate(ctx context.Context, cmd *cli.Command) error {
	name := strings.TrimSpace(cmd.String("name"))
	if name == "" {
		return fmt.Errorf("%w: prompt name is required", shared.ErrInvalidInput)
	}
	req := models.PromptCreateRequest{Name: name}
	if d := strings.TrimSpace(cmd.String("description")); d != "" {
		req.Description = &d
	}

	prompt, err := r.api.CreatePrompt(ctx, req)
	if err != nil {
		return apiError(err, "Failed to create prompt")
	}
	r.logger.Info("created prompt", "prompt_id", prompt.ID)
	r.writePlain("✓ Created prompt %q (ID %d)\n", prompt.Name, prompt.ID)
	return r.writePlain("Add a version with 'novelx prompts version %d --model <model> --template <text>'\n", prompt.ID)
}

// PromptsUpdate changes a prompt's name or description.
func (r *Runner) PromptsUpdate(ctx context.Context, cmd *cli.Command) error {
	promptID := cmd.IntArg("prompt-id")
	if err := requireID("prompt-id", promptID); err != nil {
		return err
	}

	var req models.PromptUpdateRequest
	if cmd.IsSet("name") {
		name := strings.TrimSpace(cmd.String("name"))
		if name == "" {
			return fmt.Errorf("%w: prompt name cannot be empty", shared.ErrInvalidInput)
		}
		req.Name = &name
	}
	if cmd.IsSet("description") {
		d := cmd.String("description")
		req.Description = &d
	}
	if req.Name == nil && req.Description == nil {
		return fmt.Errorf("%w: pass --name or --description", shared.ErrMissingArgument)
	}

	prompt, err := r.api.UpdatePrompt(ctx, promptID, req)
	if err != nil {
		return apiError(err, "Failed to update prompt")
	}
	return r.writePlain("✓ Prompt %d updated: %s\n", prompt.ID, prompt.Name)
}

// PromptsDelete deletes a prompt with all of its versions.
func (r *Runner) PromptsDelete(ctx context.Context, cmd *cli.Command) error {
	promptID := cmd.IntArg("prompt-id")
	if err := requireID("prompt-id", promptID); err != nil {
		return err
	}
	if err := r.confirm(cmd.Bool("yes"), "Delete prompt %d and all of its versions?", promptID); err != nil {
		return err
	}

	if err := r.api.DeletePrompt(ctx, promptID); err != nil {
		return apiError(err, "Failed to delete prompt")
	}
	return r.writePlain("✓ Prompt %d deleted\n", promptID)
}

// PromptsVersion appends a model/template version. The template comes from --template or --template-file.
func (r *Runner) PromptsVersion(ctx context.Context, cmd *cli.Command) error {
	promptID := cmd.IntArg("prompt-id")
	if err := requireID("prompt-id", promptID); err != nil {
		return err
	}

	template := cmd.String("template")
	if path := cmd.String("template-file"); path != "" {
		if template != "" {
			return fmt.Errorf("%w: cannot specify both --template and --template-file", shared.ErrInvalidArgument)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read template: %w", err)
		}
		template = string(data)
	}

	model := strings.TrimSpace(cmd.String("model"))
	if model == "" || strings.TrimSpace(template) == "" {
		return fmt.Errorf("%w: %s", shared.ErrInvalidInput, tasks.MsgModelTemplateNeeded)
	}

	version, err := r.api.CreatePromptVersion(ctx, promptID, models.PromptVersionCreateRequest{Model: model, Template: template})
	if err != nil {
		return apiError(err, "Failed to save prompt version")
	}
	return r.writePlain("✓ Saved v%d (%s) for prompt %d\n", version.VersionNumber, version.Model, promptID)
}

// PromptsAssign makes a prompt the one used to translate a work.
func (r *Runner) PromptsAssign(ctx context.Context, cmd *cli.Command) error {
	workID, promptID := cmd.IntArg("work-id"), cmd.IntArg("prompt-id")
	if err := requireID("work-id", workID); err != nil {
		return err
	}
	if err := requireID("prompt-id", promptID); err != nil {
		return err
	}

	prompt, err := r.api.AssignWorkPrompt(ctx, workID, promptID)
	if err != nil {
		return apiError(err, "Failed to assign prompt")
	}
	return r.writePlain("✓ Work %d now uses prompt %q\n", workID, prompt.Name)
}

// PromptsCurrent prints the prompt assigned to a work.
func (r *Runner) PromptsCurrent(ctx context.Context, cmd *cli.Command) error {
	workID := cmd.IntArg("work-id")
	if err := requireID("work-id", workID); err != nil {
		return err
	}

	prompt, err := r.api.GetWorkPrompt(ctx, workID)
	if services.IsNotFound(err) {
		return fmt.Errorf("%w: work %d", shared.ErrPromptNotAssigned, workID)
	}
	if err != nil {
		return apiError(err, tasks.MsgFetchWorkPrompt)
	}

	if cmd.Bool("json") {
		return r.writeJSON(prompt, cmd.Bool("pretty"))
	}
	r.writePrompt(prompt)
	return nil
}

// ModelsList lists the models the backend can translate with.
func (r *Runner) ModelsList(ctx context.Context, cmd *cli.Command) error {
	list, err := r.api.ListModels(ctx)
	if err != nil {
		return apiError(err, tasks.MsgFetchModels)
	}

	if cmd.Bool("json") {
		return r.writeJSON(list, cmd.Bool("pretty"))
	}

	rows := make([][]string, 0, len(list.Items))
	for _, m := range list.Items {
		streaming := "no"
		if m.SupportsStreaming {
			streaming = "yes"
		}
		rows = append(rows, []string{m.ID, m.Name, m.Provider, strconv.Itoa(m.MaxTokens), streaming})
	}
	return r.writeTable([]string{"ID", "Name", "Provider", "Max tokens", "Streaming"}, rows,
		formatter.AlignLeft, formatter.AlignLeft, formatter.AlignLeft, formatter.AlignRight)
}
