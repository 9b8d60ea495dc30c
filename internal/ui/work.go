package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/list"
	"github.com/charmbracelet/bubbles/paginator"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/novelx/internal/formatter"
	"github.com/desertthunder/novelx/internal/models"
	"github.com/desertthunder/novelx/internal/router"
	"github.com/desertthunder/novelx/internal/services"
	"github.com/desertthunder/novelx/internal/tasks"
)

// workView shows one work: metadata, scrape job, assigned prompt, and the mixed chapter/group listing.
type workView struct {
	id        int
	workRes   *tasks.Resource[int, *models.Work]
	chapRes   *tasks.Resource[tasks.PageKey, *models.ChapterListing]
	groupRes  *tasks.Resource[int, []models.ChapterGroup]
	promptRes *tasks.Resource[int, tasks.WorkPrompt]

	work       tasks.State[*models.Work]
	listing    tasks.State[*models.ChapterListing]
	groups     []models.ChapterGroup
	workPrompt tasks.State[tasks.WorkPrompt]

	page      int
	paginator paginator.Model
	list      list.Model
	selection *tasks.Selection

	scrape      *tasks.ScrapeWatcher
	scrapeState models.ScrapeState
	found       chan struct{}

	picker *promptPicker
}

func (v *workView) close() {
	v.workRes.Close()
	v.chapRes.Close()
	v.groupRes.Close()
	v.promptRes.Close()
	v.scrape.Close()
	if v.picker != nil {
		v.picker.res.Close()
	}
}

// visibleChapterIDs lists the ungrouped chapter ids on the current page, in display order.
func (v *workView) visibleChapterIDs() []int {
	if v.listing.Data == nil {
		return nil
	}
	return v.listing.Data.ChapterIDs()
}

func (v *workView) selectedEntry() (chapterItem, bool) {
	item, ok := v.list.SelectedItem().(chapterItem)
	return item, ok
}

func (v *workView) syncList() tea.Cmd {
	return v.list.SetItems(chapterItems(v.listing.Data, v.selection.IsSelected))
}

// promptPicker searches the prompts usable by a work and assigns the chosen one.
type promptPicker struct {
	input   textinput.Model
	res     *tasks.Resource[tasks.WorkSearchKey, *models.Page[models.Prompt]]
	results tasks.State[*models.Page[models.Prompt]]
	cursor  int
}

func (m *Model) openWork(workID int) tea.Cmd {
	w, h := m.bodySize()
	l := newList(nil, "Chapters", w, h-2)
	l.SetFilteringEnabled(false)

	p := paginator.New()
	p.Type = paginator.Dots
	p.PerPage = m.pageSize

	found := make(chan struct{}, 1)
	v := &workView{
		id:        workID,
		workRes:   tasks.NewWorkResource(m.api),
		chapRes:   tasks.NewChaptersResource(m.api),
		groupRes:  tasks.NewChapterGroupsResource(m.api),
		promptRes: tasks.NewWorkPromptResource(m.api),
		paginator: p,
		list:      l,
		selection: tasks.NewSelection(),
		found:     found,
		scrape: tasks.NewScrapeWatcher(m.api, workID, func() {
			select {
			case found <- struct{}{}:
			default:
			}
		}, m.logger),
		scrapeState: models.ScrapeState{Status: models.ScrapeIdle},
	}
	m.work = v

	ctx, owner := m.viewCtx, m.owner
	watchScrape := func() tea.Msg {
		if err := v.scrape.Watch(ctx); err != nil {
			m.logger.Debug("scrape status stream unavailable", "work_id", workID, "error", err)
		}
		return nil
	}

	return tea.Batch(
		load(owner, MsgWorkFetched, v.workRes, workID, 0),
		m.loadChapters(),
		load(owner, MsgGroupsFetched, v.groupRes, workID, 0),
		load(owner, MsgWorkPromptFetched, v.promptRes, workID, 0),
		watchScrape,
		m.watchScrapeUpdates(),
		m.watchChapterFound(),
	)
}

func (m *Model) loadChapters() tea.Cmd {
	v := m.work
	key := tasks.PageKey{ID: v.id, Page: models.PageQuery{Limit: m.pageSize, Offset: v.page * m.pageSize}}
	return load(m.owner, MsgChaptersFetched, v.chapRes, key, 0)
}

func (m *Model) refreshWork() tea.Cmd {
	v := m.work
	if v == nil {
		return nil
	}
	return tea.Batch(
		reload(m.owner, MsgWorkFetched, v.workRes),
		reload(m.owner, MsgChaptersFetched, v.chapRes),
		reload(m.owner, MsgGroupsFetched, v.groupRes),
		reload(m.owner, MsgWorkPromptFetched, v.promptRes),
	)
}

func (m *Model) watchScrapeUpdates() tea.Cmd {
	owner := m.owner
	return watch(m.viewCtx, m.work.scrape.Updates(), func(s models.ScrapeState) Msg { return scrapeMsg(owner, s) })
}

func (m *Model) watchChapterFound() tea.Cmd {
	owner := m.owner
	return watch(m.viewCtx, m.work.found, func(struct{}) Msg { return Msg{kind: MsgChapterFound, owner: owner} })
}

func (m *Model) handleWorkMsg(msg Msg) tea.Cmd {
	v := m.work
	if v == nil {
		return nil
	}

	switch msg.kind {
	case MsgWorkFetched:
		v.work = msg.data.(tasks.State[*models.Work])
	case MsgChaptersFetched:
		v.listing = msg.data.(tasks.State[*models.ChapterListing])
		if v.listing.Data != nil {
			v.paginator.SetTotalPages(v.listing.Data.TotalItems)
			v.paginator.Page = v.page
		}
		return v.syncList()
	case MsgGroupsFetched:
		st := msg.data.(tasks.State[[]models.ChapterGroup])
		v.groups = st.Data
	case MsgWorkPromptFetched:
		v.workPrompt = msg.data.(tasks.State[tasks.WorkPrompt])
	case MsgWorkPromptsFetched:
		if v.picker != nil {
			v.picker.results = msg.data.(tasks.State[*models.Page[models.Prompt]])
			v.picker.cursor = 0
		}
	case MsgScrapeUpdate:
		v.scrapeState = msg.data.(models.ScrapeState)
		cmds := []tea.Cmd{m.watchScrapeUpdates()}
		if v.scrapeState.Status == models.ScrapeCompleted {
			cmds = append(cmds, reload(m.owner, MsgChaptersFetched, v.chapRes))
		}
		return tea.Batch(cmds...)
	case MsgChapterFound:
		return tea.Batch(reload(m.owner, MsgChaptersFetched, v.chapRes), m.watchChapterFound())
	}
	return nil
}

func (m *Model) handleWorkKeys(msg tea.KeyMsg) tea.Cmd {
	v := m.work
	if v == nil {
		return nil
	}
	if v.picker != nil {
		return m.handlePickerKeys(msg)
	}

	switch {
	case key.Matches(msg, m.keys.quit):
		m.leave()
		return tea.Quit
	case key.Matches(msg, m.keys.back):
		return m.back()
	case key.Matches(msg, m.keys.enter):
		return m.openEntry()
	case key.Matches(msg, m.keys.toggle), key.Matches(msg, m.keys.extend):
		if item, ok := v.selectedEntry(); ok && item.chapterID() > 0 {
			v.selection.Toggle(item.chapterID(), v.visibleChapterIDs(), key.Matches(msg, m.keys.extend))
			return v.syncList()
		}
		return nil
	case key.Matches(msg, m.keys.selectAll):
		v.selection.SelectAll(v.visibleChapterIDs())
		return v.syncList()
	case key.Matches(msg, m.keys.clear):
		v.selection.Clear()
		return v.syncList()
	case key.Matches(msg, m.keys.nextPage):
		if data := v.listing.Data; data != nil && v.page+1 < models.Pages(data.TotalItems, m.pageSize) {
			v.page++
			return m.loadChapters()
		}
		return nil
	case key.Matches(msg, m.keys.prevPage):
		if v.page > 0 {
			v.page--
			return m.loadChapters()
		}
		return nil
	case key.Matches(msg, m.keys.scrape):
		return m.ask("Scrape chapters", "start end (e.g. 1 10 or 2.1-3); add ! to force", "", m.requestScrape)
	case key.Matches(msg, m.keys.group):
		return m.createGroup()
	case key.Matches(msg, m.keys.deleteGroup):
		return m.deleteGroup()
	case key.Matches(msg, m.keys.rename):
		return m.renameGroup()
	case key.Matches(msg, m.keys.addMembers), key.Matches(msg, m.keys.replaceMembers):
		return m.updateGroupMembers(key.Matches(msg, m.keys.replaceMembers))
	case key.Matches(msg, m.keys.assign):
		return m.openPromptPicker()
	case key.Matches(msg, m.keys.export):
		return m.ask("Export chapters", "format: markdown, csv, txt, json", formatter.FormatMarkdown, func(format string) tea.Cmd {
			return m.startExport(v.id, v.selection.IDs(), strings.TrimSpace(format))
		})
	}

	var cmd tea.Cmd
	v.list, cmd = v.list.Update(msg)
	return cmd
}

// openEntry opens the chapter under the cursor. A group opens its first member.
func (m *Model) openEntry() tea.Cmd {
	v := m.work
	item, ok := v.selectedEntry()
	if !ok {
		return nil
	}
	if id := item.chapterID(); id > 0 {
		return m.navigate(router.ChapterPath(v.id, id))
	}
	if item.entry.Group == nil {
		return nil
	}

	groupID, workID, owner := item.entry.Group.ID, v.id, m.owner
	ctx := m.viewCtx
	return func() tea.Msg {
		detail, err := m.api.GetChapterGroup(ctx, workID, groupID)
		if err != nil {
			return actionDoneMsg(owner, "", services.ErrorMessage(err, "Failed to load chapter group"), false)
		}
		ids := detail.ChapterIDs()
		if len(ids) == 0 {
			return actionDoneMsg(owner, "", "Group has no chapters", false)
		}
		return openChapterMsg{owner: owner, workID: workID, chapterID: ids[0]}
	}
}

// openChapterMsg navigates once a group lookup resolves its first chapter.
type openChapterMsg struct {
	owner     uint64
	workID    int
	chapterID int
}

func (m *Model) requestScrape(input string) tea.Cmd {
	v := m.work
	start, end, force := parseScrapeInput(input)
	return m.action(tasks.MsgScrapeFailed, tasks.MsgScrapeQueued, false, func(ctx context.Context) error {
		if _, err := tasks.RequestScrape(ctx, m.api, v.id, start, end, force); err != nil {
			return err
		}
		return v.scrape.Watch(ctx)
	})
}

func (m *Model) createGroup() tea.Cmd {
	v := m.work
	ids := v.selection.IDs()
	if len(ids) == 0 {
		m.err = "Select chapters to group first"
		return nil
	}
	return m.ask("New chapter group", "group name", "", func(name string) tea.Cmd {
		req := models.ChapterGroupCreateRequest{Name: name, ChapterIDs: ids}
		if err := req.Validate(); err != nil {
			m.err = err.Error()
			return nil
		}
		return m.action("Failed to create chapter group", fmt.Sprintf("Created group %q", req.Name), true, func(ctx context.Context) error {
			_, err := m.api.CreateChapterGroup(ctx, v.id, req)
			if err == nil {
				v.selection.Clear()
			}
			return err
		})
	})
}

func (m *Model) selectedGroup() *models.ChapterGroup {
	item, ok := m.work.selectedEntry()
	if !ok || item.entry.Group == nil {
		m.err = "Move the cursor to a chapter group first"
		return nil
	}
	return item.entry.Group
}

func (m *Model) deleteGroup() tea.Cmd {
	g := m.selectedGroup()
	if g == nil {
		return nil
	}
	workID, groupID := m.work.id, g.ID
	m.confirmThen(fmt.Sprintf("Delete group %q? Its chapters stay in the work.", g.Name), func() tea.Cmd {
		return m.action("Failed to delete chapter group", "Group deleted", true, func(ctx context.Context) error {
			return m.api.DeleteChapterGroup(ctx, workID, groupID)
		})
	})
	return nil
}

func (m *Model) renameGroup() tea.Cmd {
	g := m.selectedGroup()
	if g == nil {
		return nil
	}
	workID, groupID := m.work.id, g.ID
	return m.ask("Rename group", "group name", g.Name, func(name string) tea.Cmd {
		trimmed, err := models.ValidateGroupName(name)
		if err != nil {
			m.err = err.Error()
			return nil
		}
		return m.action("Failed to rename chapter group", "Group renamed", true, func(ctx context.Context) error {
			_, err := m.api.RenameChapterGroup(ctx, workID, groupID, trimmed)
			return err
		})
	})
}

func (m *Model) updateGroupMembers(replace bool) tea.Cmd {
	v := m.work
	g := m.selectedGroup()
	if g == nil {
		return nil
	}
	ids := v.selection.IDs()
	if len(ids) == 0 {
		m.err = "Select chapters first"
		return nil
	}

	workID, groupID := v.id, g.ID
	run := func() tea.Cmd {
		return m.action("Failed to update chapter group", "Group updated", true, func(ctx context.Context) error {
			var err error
			if replace {
				_, err = m.api.ReplaceChapterGroupMembers(ctx, workID, groupID, ids)
			} else {
				_, err = m.api.AddChapterGroupMembers(ctx, workID, groupID, ids)
			}
			if err == nil {
				v.selection.Clear()
			}
			return err
		})
	}
	if replace {
		m.confirmThen(fmt.Sprintf("Replace the chapters of %q with the %d selected?", g.Name, len(ids)), run)
		return nil
	}
	return run()
}

func (m *Model) openPromptPicker() tea.Cmd {
	v := m.work
	ti := textinput.New()
	ti.Placeholder = "search prompts"
	ti.Focus()
	v.picker = &promptPicker{input: ti, res: tasks.NewWorkPromptsResource(m.api)}
	return tea.Batch(textinput.Blink, m.searchWorkPrompts())
}

func (m *Model) searchWorkPrompts() tea.Cmd {
	v := m.work
	return load(m.owner, MsgWorkPromptsFetched, v.picker.res, tasks.WorkSearchKey{WorkID: v.id, Query: v.picker.input.Value()}, 0)
}

func (m *Model) handlePickerKeys(msg tea.KeyMsg) tea.Cmd {
	v := m.work
	p := v.picker
	var items []models.Prompt
	if p.results.Data != nil {
		items = p.results.Data.Items
	}

	switch msg.Type {
	case tea.KeyEsc:
		p.res.Close()
		v.picker = nil
		return nil
	case tea.KeyUp:
		if p.cursor > 0 {
			p.cursor--
		}
		return nil
	case tea.KeyDown:
		if p.cursor < len(items)-1 {
			p.cursor++
		}
		return nil
	case tea.KeyEnter:
		if p.cursor >= len(items) {
			return nil
		}
		chosen := items[p.cursor]
		p.res.Close()
		v.picker = nil
		return m.action("Failed to assign prompt", fmt.Sprintf("Assigned prompt %q", chosen.Name), true, func(ctx context.Context) error {
			_, err := m.api.AssignWorkPrompt(ctx, v.id, chosen.ID)
			return err
		})
	}

	before := p.input.Value()
	var cmd tea.Cmd
	p.input, cmd = p.input.Update(msg)
	if p.input.Value() != before {
		return tea.Batch(cmd, m.searchWorkPrompts())
	}
	return cmd
}

func (m *Model) renderWork() string {
	v := m.work
	if v == nil {
		return ""
	}
	width, _ := m.bodySize()

	var b strings.Builder
	switch {
	case v.work.Error != "":
		b.WriteString(styles.err.Render(v.work.Error))
	case v.work.Data == nil:
		b.WriteString(fmt.Sprintf("%s Loading work...", m.spinner.View()))
	default:
		w := v.work.Data
		b.WriteString(styles.title.Render(w.Title))
		meta := []string{}
		if a := w.Author(); a != "" {
			meta = append(meta, a)
		}
		if s := w.SourceLabel(); s != "" {
			meta = append(meta, s)
		}
		if u := w.SourceURL(); u != "" {
			meta = append(meta, u)
		}
		if len(meta) > 0 {
			b.WriteString("\n" + styles.muted.Render(strings.Join(meta, " • ")))
		}
		if d := w.Description(); d != "" {
			b.WriteString("\n" + renderMarkdown(d, m.mdStyle, width))
		}
	}
	b.WriteString("\n" + m.renderWorkPrompt())
	if s := renderScrape(v.scrapeState); s != "" {
		b.WriteString("\n" + s)
	}
	b.WriteString("\n\n")

	if v.picker != nil {
		b.WriteString(renderPicker(v.picker))
		return b.String()
	}

	switch {
	case v.listing.Error != "":
		b.WriteString(styles.err.Render(v.listing.Error))
	case v.listing.Loading && v.listing.Data == nil:
		b.WriteString(fmt.Sprintf("%s Loading chapters...", m.spinner.View()))
	case v.listing.Data != nil && v.listing.Data.ItemCount() == 0:
		b.WriteString(styles.muted.Render("No chapters yet. Press s to scrape some."))
	default:
		if data := v.listing.Data; data != nil {
			v.list.Title = fmt.Sprintf("Chapters (%d) • Groups (%d) • %d selected", data.TotalChapters, len(v.groups), v.selection.Count())
		}
		b.WriteString(v.list.View())
		b.WriteString("\n" + v.paginator.View())
	}

	helpView := m.help.ShortHelpView([]key.Binding{
		m.keys.enter, m.keys.toggle, m.keys.extend, m.keys.scrape, m.keys.group, m.keys.assign, m.keys.export, m.keys.back,
	})
	return fmt.Sprintf("%s\n\n%s", b.String(), helpView)
}

func (m *Model) renderWorkPrompt() string {
	st := m.work.workPrompt
	switch {
	case st.Error != "":
		return styles.err.Render(st.Error)
	case st.Data.NotAssigned:
		return styles.warn.Render("No prompt assigned. Press p to pick one.")
	case st.Data.Prompt != nil:
		p := st.Data.Prompt
		line := "Prompt: " + p.Name
		if p.LatestVersion != nil {
			line += fmt.Sprintf(" (v%d, %s)", p.LatestVersion.VersionNumber, p.LatestVersion.Model)
		}
		return styles.muted.Render(line)
	default:
		return ""
	}
}

func renderScrape(s models.ScrapeState) string {
	switch s.Status {
	case models.ScrapePending:
		return styles.warn.Render("Scrape queued")
	case models.ScrapeRunning:
		if s.Total > 0 {
			return styles.warn.Render(fmt.Sprintf("Scraping %d/%d", s.Progress, s.Total))
		}
		return styles.warn.Render("Scraping...")
	case models.ScrapeCompleted:
		return styles.ok.Render("Scrape complete")
	case models.ScrapeFailed:
		msg := "Scrape failed"
		if s.Error != "" {
			msg += ": " + s.Error
		}
		return styles.err.Render(msg)
	default:
		return ""
	}
}

func renderPicker(p *promptPicker) string {
	var b strings.Builder
	b.WriteString(styles.title.Render("Assign prompt"))
	b.WriteString("\n" + p.input.View() + "\n\n")
	switch {
	case p.results.Loading || p.results.Data == nil:
		b.WriteString(styles.muted.Render("Searching..."))
	case p.results.Error != "":
		b.WriteString(styles.err.Render(p.results.Error))
	case len(p.results.Data.Items) == 0:
		b.WriteString(styles.muted.Render("No prompts match"))
	default:
		for i, pr := range p.results.Data.Items {
			line := "  " + pr.Name
			if i == p.cursor {
				line = styles.cursor.Render("> " + pr.Name)
			}
			b.WriteString(line + "\n")
		}
	}
	b.WriteString("\n" + styles.help.Render("↑/↓ move • enter assign • esc cancel"))
	return styles.panel.Render(b.String())
}

// parseScrapeInput reads "start end", "start-end" or "start,end". A trailing or leading "!" forces.
func parseScrapeInput(s string) (start, end string, force bool) {
	s = strings.TrimSpace(s)
	if strings.Contains(s, "!") {
		force = true
		s = strings.ReplaceAll(s, "!", "")
	}
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ' ' || r == '-' || r == ',' })
	switch len(fields) {
	case 0:
		return "", "", force
	case 1:
		return fields[0], fields[0], force
	default:
		return fields[0], fields[1], force
	}
}
