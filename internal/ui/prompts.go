package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/novelx/internal/models"
	"github.com/desertthunder/novelx/internal/tasks"
)

// promptsView lists prompts with the selected prompt's latest version and history beside it.
type promptsView struct {
	listRes    *tasks.Resource[tasks.SearchKey, *models.Page[models.Prompt]]
	detailRes  *tasks.Resource[int, *models.PromptDetail]
	versionRes *tasks.Resource[int, *models.Page[models.PromptVersion]]

	list     list.Model
	query    string
	prompts  tasks.State[*models.Page[models.Prompt]]
	detail   tasks.State[*models.PromptDetail]
	versions tasks.State[*models.Page[models.PromptVersion]]
	selected int
}

func (v *promptsView) close() {
	v.listRes.Close()
	v.detailRes.Close()
	v.versionRes.Close()
}

func (v *promptsView) current() (models.Prompt, bool) {
	item, ok := v.list.SelectedItem().(promptItem)
	return item.prompt, ok
}

func (m *Model) openPrompts() tea.Cmd {
	w, h := m.bodySize()
	l := newList(nil, "Prompts", w/2, h)
	l.SetFilteringEnabled(false)
	m.prompts = &promptsView{
		listRes:    tasks.NewPromptsResource(m.api),
		detailRes:  tasks.NewPromptResource(m.api),
		versionRes: tasks.NewPromptVersionsResource(m.api),
		list:       l,
	}
	return m.loadPrompts()
}

func (m *Model) loadPrompts() tea.Cmd {
	v := m.prompts
	key := tasks.SearchKey{Query: v.query, Page: models.PageQuery{Limit: m.pageSize}}
	return load(m.owner, MsgPromptsFetched, v.listRes, key, 0)
}

func (m *Model) refreshPrompts() tea.Cmd {
	v := m.prompts
	if v == nil {
		return nil
	}
	return tea.Batch(
		reload(m.owner, MsgPromptsFetched, v.listRes),
		reload(m.owner, MsgPromptFetched, v.detailRes),
		reload(m.owner, MsgVersionsFetched, v.versionRes),
	)
}

// selectPrompt loads the detail panel for the prompt under the cursor when it changed.
func (m *Model) selectPrompt() tea.Cmd {
	v := m.prompts
	p, ok := v.current()
	if !ok || p.ID == v.selected {
		return nil
	}
	v.selected = p.ID
	return tea.Batch(
		load(m.owner, MsgPromptFetched, v.detailRes, p.ID, 0),
		load(m.owner, MsgVersionsFetched, v.versionRes, p.ID, 0),
	)
}

func (m *Model) handlePromptsMsg(msg Msg) tea.Cmd {
	v := m.prompts
	if v == nil {
		return nil
	}
	switch msg.kind {
	case MsgPromptsFetched:
		v.prompts = msg.data.(tasks.State[*models.Page[models.Prompt]])
		var items []list.Item
		if v.prompts.Data != nil {
			items = promptItems(v.prompts.Data.Items)
		}
		return tea.Batch(v.list.SetItems(items), m.selectPrompt())
	case MsgPromptFetched:
		v.detail = msg.data.(tasks.State[*models.PromptDetail])
	case MsgVersionsFetched:
		v.versions = msg.data.(tasks.State[*models.Page[models.PromptVersion]])
	}
	return nil
}

func (m *Model) handlePromptsKeys(msg tea.KeyMsg) tea.Cmd {
	v := m.prompts
	if v == nil {
		return nil
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		m.leave()
		return tea.Quit
	case key.Matches(msg, m.keys.back):
		return m.back()
	case key.Matches(msg, m.keys.search):
		return m.ask("Search prompts", "name", v.query, func(q string) tea.Cmd {
			v.query = strings.TrimSpace(q)
			return m.loadPrompts()
		})
	case key.Matches(msg, m.keys.create):
		return m.ask("New prompt", "name", "", m.createPrompt)
	case key.Matches(msg, m.keys.rename):
		p, ok := v.current()
		if !ok {
			return nil
		}
		return m.ask("Rename prompt", "name", p.Name, func(name string) tea.Cmd {
			name = strings.TrimSpace(name)
			if name == "" {
				m.err = "Prompt name is required"
				return nil
			}
			return m.action("Failed to update prompt", "Prompt renamed", true, func(ctx context.Context) error {
				_, err := m.api.UpdatePrompt(ctx, p.ID, models.PromptUpdateRequest{Name: &name})
				return err
			})
		})
	case key.Matches(msg, m.keys.remove):
		p, ok := v.current()
		if !ok {
			return nil
		}
		m.confirmThen(fmt.Sprintf("Delete prompt %q and all of its versions?", p.Name), func() tea.Cmd {
			v.selected = 0
			return m.action("Failed to delete prompt", "Prompt deleted", true, func(ctx context.Context) error {
				return m.api.DeletePrompt(ctx, p.ID)
			})
		})
		return nil
	case key.Matches(msg, m.keys.version):
		return m.newVersion()
	case key.Matches(msg, m.keys.lab):
		return m.openLab()
	}

	var cmd tea.Cmd
	v.list, cmd = v.list.Update(msg)
	return tea.Batch(cmd, m.selectPrompt())
}

func (m *Model) createPrompt(name string) tea.Cmd {
	name = strings.TrimSpace(name)
	if name == "" {
		m.err = "Prompt name is required"
		return nil
	}
	return m.action("Failed to create prompt", fmt.Sprintf("Created prompt %q", name), true, func(ctx context.Context) error {
		_, err := m.api.CreatePrompt(ctx, models.PromptCreateRequest{Name: name})
		return err
	})
}

// newVersion asks for a model, then a template, and appends the pair as a version of the selected prompt.
func (m *Model) newVersion() tea.Cmd {
	v := m.prompts
	p, ok := v.current()
	if !ok {
		return nil
	}

	var model, template string
	if d := v.detail.Data; d != nil && d.ID == p.ID && d.LatestVersion != nil {
		model, template = d.LatestVersion.Model, d.LatestVersion.Template
	}
	return m.askModel("New version: model", model, func(model string) tea.Cmd {
		model = strings.TrimSpace(model)
		return m.ask("New version: template", "template", template, func(template string) tea.Cmd {
			if model == "" || strings.TrimSpace(template) == "" {
				m.err = tasks.MsgModelTemplateNeeded
				return nil
			}
			req := models.PromptVersionCreateRequest{Model: model, Template: template}
			return m.action("Failed to save prompt version", "Version saved", true, func(ctx context.Context) error {
				_, err := m.api.CreatePromptVersion(ctx, p.ID, req)
				return err
			})
		})
	})
}

func (m *Model) renderPrompts() string {
	v := m.prompts
	if v == nil {
		return ""
	}
	w, _ := m.bodySize()

	var left string
	switch {
	case v.prompts.Error != "":
		left = styles.err.Render(v.prompts.Error)
	case v.prompts.Loading && v.prompts.Data == nil:
		left = m.spinner.View() + " Loading prompts..."
	case v.prompts.Data != nil && len(v.prompts.Data.Items) == 0:
		left = styles.muted.Render("No prompts yet. Press N to create one.")
	default:
		left = v.list.View()
	}

	right := styles.panel.Width(w / 2).Render(m.renderPromptDetail(w/2 - 4))
	body := lipgloss.JoinHorizontal(lipgloss.Top, left, right)

	helpView := m.help.ShortHelpView([]key.Binding{
		m.keys.search, m.keys.create, m.keys.rename, m.keys.version, m.keys.remove, m.keys.lab, m.keys.back,
	})
	return fmt.Sprintf("%s\n\n%s", body, helpView)
}

func (m *Model) renderPromptDetail(width int) string {
	v := m.prompts
	switch {
	case v.detail.Error != "":
		return styles.err.Render(v.detail.Error)
	case v.detail.Data == nil:
		return styles.muted.Render("Select a prompt")
	}

	d := v.detail.Data
	var b strings.Builder
	b.WriteString(styles.title.Render(d.Name))
	if desc := d.DescriptionText(); desc != "" {
		b.WriteString("\n" + desc)
	}
	if d.LatestVersion == nil {
		b.WriteString("\n" + styles.muted.Render("No versions yet. Press v to add one."))
	} else {
		lv := d.LatestVersion
		b.WriteString(fmt.Sprintf("\n\nv%d • %s\n", lv.VersionNumber, lv.Model))
		b.WriteString(renderMarkdown("```\n"+lv.Template+"\n```", m.mdStyle, width))
	}

	if page := v.versions.Data; page != nil && len(page.Items) > 0 {
		b.WriteString("\n\n" + styles.title.Render("History"))
		for _, ver := range page.Items {
			b.WriteString(fmt.Sprintf("\nv%d  %s  %s", ver.VersionNumber, ver.Model, ver.CreatedAt.Format("2006-01-02 15:04")))
		}
	} else if v.versions.Error != "" {
		b.WriteString("\n" + styles.err.Render(v.versions.Error))
	}
	return b.String()
}
