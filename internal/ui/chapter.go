package ui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/novelx/internal/models"
	"github.com/desertthunder/novelx/internal/router"
	"github.com/desertthunder/novelx/internal/tasks"
)

// chapterView is the reader: the streamed translation of one chapter, an explanation panel, and the
// prompt editor for one-off overrides.
type chapterView struct {
	workID    int
	chapterID int

	chapterRes *tasks.Resource[tasks.ChapterKey, *models.ChapterDetail]
	promptRes  *tasks.Resource[int, tasks.WorkPrompt]
	chapter    tasks.State[*models.ChapterDetail]

	stream      *tasks.TranslationStream
	snap        tasks.TranslationSnapshot
	explanation *tasks.Explanation
	explained   tasks.ExplanationSnapshot
	override    *tasks.PromptOverride

	body       viewport.Model
	cursor     int // Index into snap.Segments
	showSource bool
	editor     *promptEditor
}

func (v *chapterView) close() {
	v.chapterRes.Close()
	v.promptRes.Close()
	v.stream.Close()
	v.explanation.Close()
}

func (v *chapterView) resize(w, h int) {
	v.body.Width = w
	v.body.Height = max(h-10, 3)
}

// cursorSegment returns the segment under the cursor.
func (v *chapterView) cursorSegment() (models.Segment, bool) {
	if v.cursor < 0 || v.cursor >= len(v.snap.Segments) {
		return models.Segment{}, false
	}
	return v.snap.Segments[v.cursor], true
}

// moveCursor steps over whitespace-only segments.
func (v *chapterView) moveCursor(delta int) {
	segs := v.snap.Segments
	for i := v.cursor + delta; i >= 0 && i < len(segs); i += delta {
		if !segs[i].IsWhitespace() {
			v.cursor = i
			return
		}
	}
}

// promptEditor edits the draft of the work's prompt.
type promptEditor struct {
	model    textinput.Model
	template textarea.Model
	onModel  bool
}

func newPromptEditor(draft tasks.PromptDraft, width int) *promptEditor {
	mi := textinput.New()
	mi.Placeholder = "model"
	mi.SetValue(draft.Model)
	mi.Focus()

	ta := textarea.New()
	ta.Placeholder = "template"
	ta.SetWidth(width)
	ta.SetHeight(6)
	ta.SetValue(draft.Template)
	ta.Blur()
	return &promptEditor{model: mi, template: ta, onModel: true}
}

func (e *promptEditor) sync(draft tasks.PromptDraft) {
	e.model.SetValue(draft.Model)
	e.template.SetValue(draft.Template)
}

func (e *promptEditor) toggleFocus() tea.Cmd {
	e.onModel = !e.onModel
	if e.onModel {
		e.template.Blur()
		return e.model.Focus()
	}
	e.model.Blur()
	return e.template.Focus()
}

func (e *promptEditor) update(msg tea.Msg) tea.Cmd {
	var cmd tea.Cmd
	if e.onModel {
		e.model, cmd = e.model.Update(msg)
	} else {
		e.template, cmd = e.template.Update(msg)
	}
	return cmd
}

func (m *Model) openChapter(workID, chapterID int) tea.Cmd {
	w, h := m.bodySize()
	v := &chapterView{
		workID:      workID,
		chapterID:   chapterID,
		chapterRes:  tasks.NewChapterResource(m.api),
		promptRes:   tasks.NewWorkPromptResource(m.api),
		stream:      tasks.NewTranslationStream(m.api, workID, chapterID, m.logger),
		explanation: tasks.NewExplanation(m.api, workID, chapterID, m.logger),
		override:    tasks.NewPromptOverride(m.api, workID, chapterID, nil),
		body:        viewport.New(w, max(h-10, 3)),
	}
	v.snap = v.stream.Snapshot()
	m.chapter = v

	ctx := m.viewCtx
	hydrate := func() tea.Msg {
		if err := v.stream.Hydrate(ctx); err != nil {
			m.logger.Warn("failed to load saved translation", "work_id", workID, "chapter_id", chapterID, "error", err)
		}
		return nil
	}

	return tea.Batch(
		load(m.owner, MsgChapterFetched, v.chapterRes, tasks.ChapterKey{WorkID: workID, ChapterID: chapterID}, 0),
		load(m.owner, MsgWorkPromptFetched, v.promptRes, workID, 0),
		hydrate,
		m.watchTranslation(),
		m.watchExplanation(),
	)
}

func (m *Model) refreshChapter() tea.Cmd {
	v := m.chapter
	if v == nil {
		return nil
	}
	return tea.Batch(
		reload(m.owner, MsgChapterFetched, v.chapterRes),
		reload(m.owner, MsgWorkPromptFetched, v.promptRes),
	)
}

func (m *Model) watchTranslation() tea.Cmd {
	owner := m.owner
	return watch(m.viewCtx, m.chapter.stream.Updates(), func(s tasks.TranslationSnapshot) Msg { return translationMsg(owner, s) })
}

func (m *Model) watchExplanation() tea.Cmd {
	owner := m.owner
	return watch(m.viewCtx, m.chapter.explanation.Updates(), func(s tasks.ExplanationSnapshot) Msg { return explanationMsg(owner, s) })
}

func (m *Model) handleChapterMsg(msg Msg) tea.Cmd {
	v := m.chapter
	if v == nil {
		return nil
	}

	switch msg.kind {
	case MsgChapterFetched:
		v.chapter = msg.data.(tasks.State[*models.ChapterDetail])
		m.renderBody()
	case MsgWorkPromptFetched:
		st := msg.data.(tasks.State[tasks.WorkPrompt])
		if st.Error != "" {
			m.err = st.Error
			return nil
		}
		v.override.SetPrompt(st.Data.Prompt, st.Data.NotAssigned)
		if v.editor != nil && !v.override.IsDirty() {
			v.editor.sync(v.override.Draft())
		}
	case MsgTranslationUpdate:
		v.snap = msg.data.(tasks.TranslationSnapshot)
		if v.cursor >= len(v.snap.Segments) {
			v.cursor = max(len(v.snap.Segments)-1, 0)
		}
		m.renderBody()
		return m.watchTranslation()
	case MsgExplanationUpdate:
		v.explained = msg.data.(tasks.ExplanationSnapshot)
		return m.watchExplanation()
	}
	return nil
}

func (m *Model) handleChapterKeys(msg tea.KeyMsg) tea.Cmd {
	v := m.chapter
	if v == nil {
		return nil
	}
	if v.editor != nil {
		return m.handleEditorKeys(msg)
	}

	ctx := m.viewCtx
	switch {
	case key.Matches(msg, m.keys.quit):
		m.leave()
		return tea.Quit
	case key.Matches(msg, m.keys.back):
		return m.back()
	case key.Matches(msg, m.keys.up):
		v.moveCursor(-1)
		m.renderBody()
		return nil
	case key.Matches(msg, m.keys.down):
		v.moveCursor(1)
		m.renderBody()
		return nil
	case key.Matches(msg, m.keys.translate):
		return m.startTranslation()
	case key.Matches(msg, m.keys.pause):
		v.stream.Pause()
		return nil
	case key.Matches(msg, m.keys.reset):
		m.confirmThen("Reset this chapter? The stored translation is deleted.", func() tea.Cmd {
			return func() tea.Msg {
				v.stream.Regenerate(ctx)
				return nil
			}
		})
		return nil
	case key.Matches(msg, m.keys.regenerate):
		m.confirmThen("Regenerate segments and translate the chapter again?", m.regenerateChapter)
		return nil
	case key.Matches(msg, m.keys.retranslate):
		seg, ok := v.cursorSegment()
		if !ok {
			return nil
		}
		return func() tea.Msg {
			if err := v.stream.RetranslateSegment(ctx, seg.ID); err != nil {
				m.logger.Debug("retranslation did not start", "segment_id", seg.ID, "error", err)
			}
			return nil
		}
	case key.Matches(msg, m.keys.explain), key.Matches(msg, m.keys.reexplain):
		seg, ok := v.cursorSegment()
		if !ok {
			return nil
		}
		regenerate := key.Matches(msg, m.keys.reexplain)
		return func() tea.Msg {
			if err := v.explanation.Start(ctx, seg.ID, regenerate); err != nil {
				m.logger.Debug("explanation did not start", "segment_id", seg.ID, "error", err)
			}
			return nil
		}
	case key.Matches(msg, m.keys.nextChapter):
		if d := v.chapter.Data; d != nil && d.NextChapterID != nil {
			return m.navigate(router.ChapterPath(v.workID, *d.NextChapterID))
		}
		return nil
	case key.Matches(msg, m.keys.prevChapter):
		if d := v.chapter.Data; d != nil && d.PrevChapterID != nil {
			return m.navigate(router.ChapterPath(v.workID, *d.PrevChapterID))
		}
		return nil
	case key.Matches(msg, m.keys.source):
		v.showSource = !v.showSource
		m.renderBody()
		return nil
	case key.Matches(msg, m.keys.editPrompt):
		w, _ := m.bodySize()
		v.editor = newPromptEditor(v.override.Draft(), w)
		return textinput.Blink
	}

	var cmd tea.Cmd
	v.body, cmd = v.body.Update(msg)
	return cmd
}

// startTranslation opens the chapter stream, carrying the draft as a one-shot override when it is dirty.
func (m *Model) startTranslation() tea.Cmd {
	v := m.chapter
	ctx, owner := m.viewCtx, m.owner
	return func() tea.Msg {
		token, err := v.override.PrepareOverrideToken(ctx)
		if err != nil {
			return actionDoneMsg(owner, "", firstNonEmpty(v.override.Error(), err.Error()), false)
		}
		if err := v.stream.Start(ctx, tasks.StartOptions{PromptOverrideToken: token}); err != nil {
			m.logger.Debug("translation did not start", "work_id", v.workID, "chapter_id", v.chapterID, "error", err)
		}
		return nil
	}
}

func (m *Model) regenerateChapter() tea.Cmd {
	v := m.chapter
	return m.action("Failed to regenerate segments", "", false, func(ctx context.Context) error {
		if err := m.api.RegenerateSegments(ctx, v.workID, v.chapterID); err != nil {
			return err
		}
		if !v.stream.Regenerate(ctx) {
			return nil
		}
		return v.stream.Start(ctx, tasks.StartOptions{})
	})
}

func (m *Model) handleEditorKeys(msg tea.KeyMsg) tea.Cmd {
	v := m.chapter
	e := v.editor

	switch {
	case msg.Type == tea.KeyEsc:
		v.editor = nil
		return nil
	case key.Matches(msg, m.keys.focus):
		return e.toggleFocus()
	case key.Matches(msg, m.keys.complete) && e.onModel:
		e.model.SetValue(completeModel(e.model.Value(), m.modelIDs))
		e.model.CursorEnd()
		v.override.SetModel(e.model.Value())
		return nil
	case key.Matches(msg, m.keys.resetEdit):
		v.override.ResetDraft()
		e.sync(v.override.Draft())
		return nil
	case key.Matches(msg, m.keys.save):
		if !v.override.CanSave() {
			m.err = v.override.SaveDisabledReason()
			return nil
		}
		return m.action(tasks.MsgSavePromptFailed, "Prompt saved", true, v.override.SaveDraft)
	}

	cmd := e.update(msg)
	v.override.SetModel(e.model.Value())
	v.override.SetTemplate(e.template.Value())
	return cmd
}

// renderBody rebuilds the reader content and keeps the cursor segment in view.
func (m *Model) renderBody() {
	v := m.chapter
	width := max(v.body.Width, 20)
	wrap := lipgloss.NewStyle().Width(width)

	if v.showSource || len(v.snap.Segments) == 0 {
		var src string
		if d := v.chapter.Data; d != nil {
			src = renderMarkdown(d.NormalizedText, m.mdStyle, width)
		}
		v.body.SetContent(src)
		return
	}

	var b strings.Builder
	cursorLine := 0
	for i, seg := range v.snap.Segments {
		if i == v.cursor {
			cursorLine = strings.Count(b.String(), "\n")
		}
		text := seg.Text
		if text == "" && !seg.IsWhitespace() {
			text = seg.Src
		}
		rendered := styles.segment(seg, text)
		if i == v.cursor && !seg.IsWhitespace() {
			rendered = styles.selected.Render(text)
		}
		b.WriteString(rendered)
	}
	v.body.SetContent(wrap.Render(b.String()))

	if cursorLine < v.body.YOffset || cursorLine >= v.body.YOffset+v.body.Height {
		v.body.SetYOffset(max(cursorLine-v.body.Height/2, 0))
	}
}

func (m *Model) renderChapter() string {
	v := m.chapter
	if v == nil {
		return ""
	}
	width, _ := m.bodySize()

	var b strings.Builder
	switch {
	case v.chapter.Error != "":
		b.WriteString(styles.err.Render(v.chapter.Error))
	case v.chapter.Data == nil:
		b.WriteString(fmt.Sprintf("%s Loading chapter...", m.spinner.View()))
	default:
		b.WriteString(styles.title.Render(v.chapter.Data.Label()))
	}
	b.WriteString("\n" + m.renderStreamStatus() + "\n\n")
	b.WriteString(v.body.View())

	if v.editor != nil {
		b.WriteString("\n" + m.renderEditor())
	} else if panel := m.renderExplanation(width); panel != "" {
		b.WriteString("\n" + panel)
	}

	helpView := m.help.ShortHelpView([]key.Binding{
		m.keys.translate, m.keys.pause, m.keys.retranslate, m.keys.explain, m.keys.reset,
		m.keys.prevChapter, m.keys.nextChapter, m.keys.editPrompt, m.keys.back,
	})
	return fmt.Sprintf("%s\n\n%s", b.String(), helpView)
}

func (m *Model) renderStreamStatus() string {
	s := m.chapter.snap
	var parts []string
	switch s.Status {
	case tasks.StatusConnecting:
		parts = append(parts, styles.warn.Render(m.spinner.View()+" Connecting..."))
	case tasks.StatusRunning:
		parts = append(parts, styles.warn.Render(m.spinner.View()+" Translating..."))
	case tasks.StatusCompleted:
		parts = append(parts, styles.ok.Render("Translated"))
	case tasks.StatusIdle:
		if len(s.Segments) == 0 {
			parts = append(parts, styles.muted.Render("Not translated. Press t to start."))
		} else {
			parts = append(parts, styles.muted.Render("Paused"))
		}
	}
	if s.Resetting {
		parts = append(parts, styles.warn.Render("Resetting..."))
	}
	if s.RetranslatingID != 0 {
		parts = append(parts, styles.warn.Render(fmt.Sprintf("Retranslating segment %d", s.RetranslatingID)))
	}
	if m.chapter.override.IsDirty() {
		parts = append(parts, styles.warn.Render("Prompt override active"))
	}
	if s.Error != "" {
		parts = append(parts, styles.err.Render(s.Error))
	}
	return strings.Join(parts, " • ")
}

func (m *Model) renderExplanation(width int) string {
	e := m.chapter.explained
	if e.SegmentID == 0 {
		return ""
	}
	var body string
	switch {
	case e.Error != "":
		body = styles.err.Render(e.Error)
		if e.Text != "" {
			body = renderMarkdown(e.Text, m.mdStyle, width-4) + "\n" + body
		}
	case e.Text == "" && e.Loading:
		body = m.spinner.View() + " Explaining..."
	default:
		body = renderMarkdown(e.Text, m.mdStyle, width-4)
	}
	title := styles.title.Render(fmt.Sprintf("Explanation • segment %d", e.SegmentID))
	return styles.panel.Render(title + "\n" + body)
}

func (m *Model) renderEditor() string {
	v := m.chapter
	e := v.editor

	var b strings.Builder
	title := "Prompt draft"
	if v.override.IsDirty() {
		title += " (modified)"
	}
	b.WriteString(styles.title.Render(title))
	b.WriteString("\n" + e.model.View())
	if s := suggestModels(e.model.Value(), m.modelIDs); e.onModel && len(s) > 0 {
		b.WriteString("\n" + styles.muted.Render(strings.Join(s, "  ")))
	}
	b.WriteString("\n" + e.template.View())
	if reason := v.override.SaveDisabledReason(); reason != "" {
		b.WriteString("\n" + styles.warn.Render(reason))
	}
	if err := v.override.Error(); err != "" {
		b.WriteString("\n" + styles.err.Render(err))
	}
	b.WriteString("\n" + m.help.ShortHelpView([]key.Binding{m.keys.focus, m.keys.complete, m.keys.save, m.keys.resetEdit, m.keys.back}))
	return styles.panel.Render(b.String())
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
