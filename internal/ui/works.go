package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/novelx/internal/models"
	"github.com/desertthunder/novelx/internal/router"
	"github.com/desertthunder/novelx/internal/tasks"
)

// worksView is the searchable, paginated list of works.
type worksView struct {
	res   *tasks.Resource[tasks.SearchKey, *models.Page[models.Work]]
	list  list.Model
	query string
	page  int
	state tasks.State[*models.Page[models.Work]]
}

func (v *worksView) close() { v.res.Close() }

func (v *worksView) pages(size int) int {
	if v.state.Data == nil {
		return 1
	}
	return models.Pages(v.state.Data.Total, size)
}

func (m *Model) openWorks() tea.Cmd {
	w, h := m.bodySize()
	l := newList(nil, "Works", w, h)
	l.SetFilteringEnabled(false)
	m.works = &worksView{res: tasks.NewWorksResource(m.api), list: l}
	return m.loadWorks()
}

func (m *Model) loadWorks() tea.Cmd {
	v := m.works
	key := tasks.SearchKey{Query: v.query, Page: models.PageQuery{Limit: m.pageSize, Offset: v.page * m.pageSize}}
	return load(m.owner, MsgWorksFetched, v.res, key, 0)
}

func (m *Model) handleWorksKeys(msg tea.KeyMsg) tea.Cmd {
	v := m.works
	if v == nil {
		return nil
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		m.leave()
		return tea.Quit
	case key.Matches(msg, m.keys.enter):
		if item, ok := v.list.SelectedItem().(workItem); ok {
			return m.navigate(router.WorkPath(item.work.ID))
		}
		return nil
	case key.Matches(msg, m.keys.search):
		return m.ask("Search works", "title", v.query, func(q string) tea.Cmd {
			v.query = strings.TrimSpace(q)
			v.page = 0
			return m.loadWorks()
		})
	case key.Matches(msg, m.keys.importWork):
		return m.ask("Import works", "one or more URLs, space separated; prefix with ! to force", "", func(s string) tea.Cmd {
			urls, force := parseImportInput(s)
			if len(urls) == 0 {
				return nil
			}
			return m.startImport(urls, force)
		})
	case key.Matches(msg, m.keys.prompts):
		return m.navigate("/prompts")
	case key.Matches(msg, m.keys.lab):
		return m.openLab()
	case key.Matches(msg, m.keys.nextPage):
		if v.page+1 < v.pages(m.pageSize) {
			v.page++
			return m.loadWorks()
		}
		return nil
	case key.Matches(msg, m.keys.prevPage):
		if v.page > 0 {
			v.page--
			return m.loadWorks()
		}
		return nil
	}

	var cmd tea.Cmd
	v.list, cmd = v.list.Update(msg)
	return cmd
}

func (m *Model) handleWorksMsg(msg Msg) tea.Cmd {
	v := m.works
	if v == nil || msg.kind != MsgWorksFetched {
		return nil
	}
	v.state = msg.data.(tasks.State[*models.Page[models.Work]])
	if v.state.Data != nil {
		return v.list.SetItems(workItems(v.state.Data.Items))
	}
	return v.list.SetItems(nil)
}

func (m *Model) renderWorks() string {
	v := m.works
	if v == nil {
		return ""
	}

	title := "Works"
	if v.query != "" {
		title = fmt.Sprintf("Works matching %q", v.query)
	}
	if v.state.Data != nil {
		title = fmt.Sprintf("%s (%d) • page %d/%d", title, v.state.Data.Total, v.page+1, v.pages(m.pageSize))
	}
	v.list.Title = title

	var body string
	switch {
	case v.state.Loading && v.state.Data == nil:
		body = fmt.Sprintf("%s Loading works...", m.spinner.View())
	case v.state.Error != "":
		body = styles.err.Render(v.state.Error)
	case v.state.Data != nil && len(v.state.Data.Items) == 0:
		body = styles.muted.Render("No works found. Press i to import one.")
	default:
		body = v.list.View()
	}

	helpView := m.help.ShortHelpView([]key.Binding{
		m.keys.enter, m.keys.search, m.keys.importWork, m.keys.prompts, m.keys.lab, m.keys.quit,
	})
	return fmt.Sprintf("%s\n\n%s", body, helpView)
}

// parseImportInput splits whitespace separated URLs. A leading "!" forces re-import.
func parseImportInput(s string) ([]string, bool) {
	s = strings.TrimSpace(s)
	force := strings.HasPrefix(s, "!")
	s = strings.TrimPrefix(s, "!")
	return strings.Fields(s), force
}
