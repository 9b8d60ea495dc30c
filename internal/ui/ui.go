package ui

import (
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/desertthunder/novelx/internal/models"
	"github.com/desertthunder/novelx/internal/router"
	"github.com/desertthunder/novelx/internal/services"
	"github.com/desertthunder/novelx/internal/tasks"
)

// DefaultPageSize is the number of works or chapters fetched per page.
const DefaultPageSize = 50

// Options holds the dependencies of the TUI.
type Options struct {
	API           services.Service
	History       *router.History // Defaults to an unpersisted history
	Logger        *log.Logger
	PageSize      int
	MarkdownStyle string
	Resume        bool // Reopen the last persisted location
}

// Model represents the TUI application state.
type Model struct {
	ctx      context.Context
	api      services.Service
	engine   *tasks.Engine
	history  *router.History
	logger   *log.Logger
	pageSize int
	mdStyle  string
	resume   bool

	route      router.Route
	owner      uint64 // Generation of the current view
	viewCtx    context.Context
	cancelView context.CancelFunc

	width  int
	height int
	status string
	err    string

	confirm *confirmDialog
	input   *inputPrompt

	works   *worksView
	work    *workView
	chapter *chapterView
	prompts *promptsView
	lab     *labView // Shown over the current route while set

	modelsRes *tasks.Resource[struct{}, *models.ModelsList]
	modelIDs  []string

	progressChan chan tasks.ProgressUpdate
	batchDone    chan Msg
	progress     *tasks.ProgressUpdate

	spinner spinner.Model
	help    help.Model
	keys    keyMap
}

// NewModel creates a new TUI model with the provided dependencies.
func NewModel(ctx context.Context, opts Options) *Model {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(io.Discard)
	}
	history := opts.History
	if history == nil {
		history = router.NewHistory(nil, logger)
	}
	pageSize := opts.PageSize
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = styles.cursor

	viewCtx, cancel := context.WithCancel(ctx)
	return &Model{
		ctx:        ctx,
		api:        opts.API,
		engine:     tasks.NewEngine(opts.API),
		history:    history,
		logger:     logger,
		pageSize:   pageSize,
		mdStyle:    opts.MarkdownStyle,
		resume:     opts.Resume,
		viewCtx:    viewCtx,
		cancelView: cancel,
		modelsRes:  tasks.NewModelsResource(opts.API),
		spinner:    sp,
		help:       help.New(),
		keys:       newKeyMap(),
		width:      100,
		height:     30,
	}
}

// Init opens the starting route and loads the model list used for autocomplete.
func (m *Model) Init() tea.Cmd {
	route := m.history.Current()
	if m.resume {
		resumed, err := m.history.Resume()
		if err != nil {
			m.logger.Warn("failed to resume navigation history", "error", err)
		}
		route = resumed
	}
	return tea.Batch(m.enter(route), load(0, MsgModelsFetched, m.modelsRes, struct{}{}, 0), m.spinner.Tick)
}

// Update handles incoming messages and updates the model state.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.resize()
		return m, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if msg.String() == "ctrl+c" {
			m.leave()
			return m, tea.Quit
		}
		switch {
		case m.confirm != nil:
			return m, m.handleConfirmKeys(msg)
		case m.input != nil:
			return m, m.handleInputKeys(msg)
		case m.lab != nil:
			return m, m.handleLabKeys(msg)
		}
		switch m.route.View {
		case router.WorkDetail:
			return m, m.handleWorkKeys(msg)
		case router.ChapterDetail:
			return m, m.handleChapterKeys(msg)
		case router.Prompts:
			return m, m.handlePromptsKeys(msg)
		default:
			return m, m.handleWorksKeys(msg)
		}

	case Msg:
		if msg.owner != 0 && msg.owner != m.owner {
			return m, nil
		}
		return m, m.handleMsg(msg)

	case openChapterMsg:
		if msg.owner != m.owner {
			return m, nil
		}
		return m, m.navigate(router.ChapterPath(msg.workID, msg.chapterID))
	}

	return m, m.updateComponents(msg)
}

func (m *Model) handleMsg(msg Msg) tea.Cmd {
	switch msg.kind {
	case MsgModelsFetched:
		st := msg.data.(tasks.State[*models.ModelsList])
		if st.Data != nil {
			m.modelIDs = st.Data.IDs()
		}
		if st.Error != "" {
			m.logger.Warn("failed to load models", "error", st.Error)
		}
		return nil

	case MsgProgressUpdate:
		update := msg.data.(tasks.ProgressUpdate)
		m.progress = &update
		m.status = update.Message
		return m.waitForProgress()

	case MsgImportComplete:
		m.finishBatch()
		done := msg.data.(importComplete)
		if done.err != nil {
			m.err = services.ErrorMessage(done.err, "Import failed")
			return nil
		}
		m.status = fmt.Sprintf("Imported %d of %d", done.result.SuccessCount, len(done.result.Results))
		if done.result.FailedCount > 0 {
			m.err = failedImports(done.result)
		}
		if m.route.View == router.WorksList && m.works != nil {
			return reload(m.owner, MsgWorksFetched, m.works.res)
		}
		return nil

	case MsgExportComplete:
		m.finishBatch()
		done := msg.data.(exportComplete)
		if done.err != nil {
			m.err = services.ErrorMessage(done.err, "Export failed")
			return nil
		}
		r := done.result
		m.status = fmt.Sprintf("Exported %d of %d chapters to %s", r.SuccessfulExports, r.TotalChapters, r.OutputDirectory)
		if r.FailedExports > 0 {
			m.err = fmt.Sprintf("%d chapters failed; see %s", r.FailedExports, r.ManifestPath)
		}
		return nil

	case MsgActionDone:
		done := msg.data.(actionDone)
		m.status, m.err = done.status, done.err
		if done.refresh {
			return m.refreshView()
		}
		return nil

	case MsgLabUpdate:
		return m.handleLabMsg(msg)
	}

	switch m.route.View {
	case router.WorkDetail:
		return m.handleWorkMsg(msg)
	case router.ChapterDetail:
		return m.handleChapterMsg(msg)
	case router.Prompts:
		return m.handlePromptsMsg(msg)
	default:
		return m.handleWorksMsg(msg)
	}
}

// View renders the UI based on the current route.
func (m *Model) View() string {
	var body string
	switch {
	case m.lab != nil:
		body = m.renderLab()
	case m.route.View == router.WorkDetail:
		body = m.renderWork()
	case m.route.View == router.ChapterDetail:
		body = m.renderChapter()
	case m.route.View == router.Prompts:
		body = m.renderPrompts()
	default:
		body = m.renderWorks()
	}

	switch {
	case m.confirm != nil:
		body = lipgloss.JoinVertical(lipgloss.Left, body, m.renderConfirm())
	case m.input != nil:
		body = lipgloss.JoinVertical(lipgloss.Left, body, m.renderInput())
	}
	return lipgloss.JoinVertical(lipgloss.Left, body, m.renderStatus())
}

func (m *Model) renderStatus() string {
	var parts []string
	if m.progressChan != nil {
		parts = append(parts, m.spinner.View())
	}
	if m.status != "" {
		parts = append(parts, styles.ok.Render(m.status))
	}
	if m.err != "" {
		parts = append(parts, styles.err.Render(m.err))
	}
	return strings.Join(parts, " ")
}

// navigate pushes path onto the history and opens its view.
func (m *Model) navigate(path string) tea.Cmd {
	return m.enter(m.history.Navigate(path))
}

// back returns to the previous route. At the root it does nothing.
func (m *Model) back() tea.Cmd {
	route, ok := m.history.Back()
	if !ok {
		return nil
	}
	return m.enter(route)
}

// enter tears down the current view and opens route. Commands issued by the old view are ignored from here on.
func (m *Model) enter(route router.Route) tea.Cmd {
	m.leave()
	m.owner++
	m.viewCtx, m.cancelView = context.WithCancel(m.ctx)
	m.route = route
	m.status, m.err = "", ""
	m.logger.Debug("entering view", "view", route.View, "path", route.Path())

	switch route.View {
	case router.WorkDetail:
		return m.openWork(route.WorkID)
	case router.ChapterDetail:
		return m.openChapter(route.WorkID, route.ChapterID)
	case router.Prompts:
		return m.openPrompts()
	default:
		return m.openWorks()
	}
}

// leave cancels the current view's context and releases its fetchers and streams.
func (m *Model) leave() {
	if m.cancelView != nil {
		m.cancelView()
	}
	if m.works != nil {
		m.works.close()
		m.works = nil
	}
	if m.work != nil {
		m.work.close()
		m.work = nil
	}
	if m.chapter != nil {
		m.chapter.close()
		m.chapter = nil
	}
	if m.prompts != nil {
		m.prompts.close()
		m.prompts = nil
	}
	m.confirm, m.input = nil, nil
}

// refreshView refetches everything the current view shows.
func (m *Model) refreshView() tea.Cmd {
	switch m.route.View {
	case router.WorkDetail:
		return m.refreshWork()
	case router.ChapterDetail:
		return m.refreshChapter()
	case router.Prompts:
		return m.refreshPrompts()
	default:
		if m.works == nil {
			return nil
		}
		return reload(m.owner, MsgWorksFetched, m.works.res)
	}
}

func (m *Model) resize() {
	w, h := m.bodySize()
	if m.works != nil {
		m.works.list.SetSize(w, h)
	}
	if m.work != nil {
		m.work.list.SetSize(w, h-2)
	}
	if m.chapter != nil {
		m.chapter.resize(w, h)
	}
	if m.prompts != nil {
		m.prompts.list.SetSize(w/2, h)
	}
	if m.lab != nil {
		m.lab.resize(w, h)
	}
}

// bodySize is the space left for a view after the status and help lines.
func (m *Model) bodySize() (int, int) {
	return max(m.width-4, 20), max(m.height-6, 5)
}

// updateComponents forwards non-key messages (cursor blink and the like) to the focused widgets.
func (m *Model) updateComponents(msg tea.Msg) tea.Cmd {
	var cmds []tea.Cmd
	if m.input != nil {
		var cmd tea.Cmd
		m.input.input, cmd = m.input.input.Update(msg)
		cmds = append(cmds, cmd)
	}
	if m.chapter != nil && m.chapter.editor != nil {
		cmds = append(cmds, m.chapter.editor.update(msg))
	}
	if m.lab != nil {
		var cmd tea.Cmd
		m.lab.text, cmd = m.lab.text.Update(msg)
		cmds = append(cmds, cmd)
	}
	return tea.Batch(cmds...)
}

// load issues a fetch and reports the settled state as a message of kind.
func load[K comparable, T any](owner uint64, kind MsgKind, r *tasks.Resource[K, T], key K, refresh int) tea.Cmd {
	r.Load(key, refresh)
	return func() tea.Msg {
		r.Wait()
		return resourceMsg(kind, owner, r.State())
	}
}

// reload refetches the last key of r.
func reload[K comparable, T any](owner uint64, kind MsgKind, r *tasks.Resource[K, T]) tea.Cmd {
	r.Refresh()
	return func() tea.Msg {
		r.Wait()
		return resourceMsg(kind, owner, r.State())
	}
}

// watch delivers the next value from ch, or nothing once ctx is done.
func watch[T any](ctx context.Context, ch <-chan T, wrap func(T) Msg) tea.Cmd {
	return func() tea.Msg {
		select {
		case <-ctx.Done():
			return nil
		case v := <-ch:
			return wrap(v)
		}
	}
}

// action runs a one-shot mutation against the current view and reports ok or the flattened error.
func (m *Model) action(fallback, ok string, refresh bool, fn func(ctx context.Context) error) tea.Cmd {
	ctx, owner := m.viewCtx, m.owner
	return func() tea.Msg {
		if err := fn(ctx); err != nil {
			msg := services.ErrorMessage(err, fallback)
			if msg == "" {
				return nil
			}
			return actionDoneMsg(owner, "", msg, false)
		}
		return actionDoneMsg(owner, ok, "", refresh)
	}
}

func (m *Model) startImport(urls []string, force bool) tea.Cmd {
	if m.progressChan != nil {
		m.err = "Another batch operation is running"
		return nil
	}
	progress, done := m.beginBatch()
	go func() {
		result, err := m.engine.Import(m.ctx, urls, force, progress)
		close(progress)
		done <- importCompleteMsg(result, err)
	}()
	return m.waitForProgress()
}

func (m *Model) startExport(workID int, chapterIDs []int, format string) tea.Cmd {
	if m.progressChan != nil {
		m.err = "Another batch operation is running"
		return nil
	}
	progress, done := m.beginBatch()
	go func() {
		result, err := m.engine.Export(m.ctx, workID, chapterIDs, tasks.BulkExportOpts{Format: format}, progress)
		close(progress)
		done <- exportCompleteMsg(result, err)
	}()
	return m.waitForProgress()
}

func (m *Model) beginBatch() (chan tasks.ProgressUpdate, chan Msg) {
	m.progressChan = make(chan tasks.ProgressUpdate, 50)
	m.batchDone = make(chan Msg, 1)
	m.progress = nil
	m.status, m.err = "", ""
	return m.progressChan, m.batchDone
}

func (m *Model) finishBatch() {
	m.progressChan = nil
	m.batchDone = nil
	m.progress = nil
}

func (m *Model) waitForProgress() tea.Cmd {
	progress, done := m.progressChan, m.batchDone
	if progress == nil {
		return nil
	}
	return func() tea.Msg {
		update, ok := <-progress
		if !ok {
			return <-done
		}
		return progressUpdateMsg(update)
	}
}

func failedImports(r *tasks.ImportRunResult) string {
	var failed []string
	for _, res := range r.Results {
		if !res.OK() {
			failed = append(failed, fmt.Sprintf("%s (%s)", res.URL, res.Message))
		}
	}
	return "Failed: " + strings.Join(failed, ", ")
}
