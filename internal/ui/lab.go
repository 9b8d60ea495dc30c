package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/novelx/internal/formatter"
	"github.com/desertthunder/novelx/internal/services"
	"github.com/desertthunder/novelx/internal/tasks"
)

// labView runs one input through several model/template lanes side by side.
type labView struct {
	lab    *tasks.Lab
	text   textarea.Model
	lanes  []tasks.Lane
	cursor int
	ctx    context.Context
	cancel context.CancelFunc
	width  int
}

func (v *labView) resize(w, h int) {
	v.width = w
	v.text.SetWidth(w)
	v.text.SetHeight(max(h/4, 3))
}

func (m *Model) openLab() tea.Cmd {
	if m.lab != nil {
		return nil
	}
	w, h := m.bodySize()
	ta := textarea.New()
	ta.Placeholder = "Paste source text to compare translations"
	ta.ShowLineNumbers = false

	ctx, cancel := context.WithCancel(m.ctx)
	lab := tasks.NewLab(m.api, m.logger)
	v := &labView{lab: lab, text: ta, lanes: lab.Lanes(), ctx: ctx, cancel: cancel}
	v.resize(w, h)
	m.lab = v
	return tea.Batch(v.text.Focus(), m.watchLab())
}

func (m *Model) closeLab() {
	m.lab.cancel()
	m.lab.lab.Close()
	m.lab = nil
}

func (m *Model) watchLab() tea.Cmd {
	return watch(m.lab.ctx, m.lab.lab.Updates(), func(lanes []tasks.Lane) Msg { return labMsg(0, lanes) })
}

func (m *Model) handleLabMsg(msg Msg) tea.Cmd {
	if m.lab == nil {
		return nil
	}
	m.lab.lanes = msg.data.([]tasks.Lane)
	if m.lab.cursor >= len(m.lab.lanes) {
		m.lab.cursor = max(len(m.lab.lanes)-1, 0)
	}
	return m.watchLab()
}

func (m *Model) handleLabKeys(msg tea.KeyMsg) tea.Cmd {
	v := m.lab

	switch {
	case msg.Type == tea.KeyEsc:
		m.closeLab()
		return nil
	case key.Matches(msg, m.keys.run):
		if err := v.lab.Run(v.ctx, v.text.Value()); err != nil {
			m.err = services.ErrorMessage(err, tasks.MsgLabFailed)
			return nil
		}
		m.err = ""
		return nil
	case key.Matches(msg, m.keys.stop):
		v.lab.Stop()
		return nil
	case key.Matches(msg, m.keys.focus):
		if len(v.lanes) > 0 {
			v.cursor = (v.cursor + 1) % len(v.lanes)
		}
		return nil
	case key.Matches(msg, m.keys.addLane):
		return m.askModel("Add lane: model", "", func(model string) tea.Cmd {
			if model = strings.TrimSpace(model); model != "" {
				v.cursor = v.lab.AddLane(model, "")
			}
			return nil
		})
	case key.Matches(msg, m.keys.editLane):
		if v.cursor >= len(v.lanes) {
			return nil
		}
		i, lane := v.cursor, v.lanes[v.cursor]
		return m.askModel("Lane model", lane.Model, func(model string) tea.Cmd {
			return m.ask("Lane template", "template", lane.Template, func(template string) tea.Cmd {
				v.lab.SetLane(i, strings.TrimSpace(model), template)
				return nil
			})
		})
	case key.Matches(msg, m.keys.removeLane):
		v.lab.RemoveLane(v.cursor)
		return nil
	}

	var cmd tea.Cmd
	v.text, cmd = v.text.Update(msg)
	return cmd
}

func (m *Model) renderLab() string {
	v := m.lab
	var b strings.Builder
	b.WriteString(styles.title.Render("Prompt lab"))
	b.WriteString("\n" + v.text.View() + "\n\n")

	if len(v.lanes) > 0 {
		laneWidth := max(v.width/len(v.lanes)-2, 20)
		cols := make([]string, len(v.lanes))
		for i, lane := range v.lanes {
			cols[i] = renderLane(lane, laneWidth, i == v.cursor)
		}
		b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top, cols...))
	} else {
		b.WriteString(styles.muted.Render("No lanes. Press ctrl+a to add one."))
	}

	helpView := m.help.ShortHelpView([]key.Binding{
		m.keys.run, m.keys.stop, m.keys.addLane, m.keys.editLane, m.keys.removeLane, m.keys.focus, m.keys.back,
	})
	return fmt.Sprintf("%s\n\n%s", b.String(), helpView)
}

func renderLane(lane tasks.Lane, width int, focused bool) string {
	header := lane.Model
	if focused {
		header = styles.cursor.Render("> " + header)
	} else {
		header = styles.title.UnsetMarginBottom().Render(header)
	}

	var status string
	switch lane.Status {
	case tasks.LaneRunning:
		status = styles.warn.Render("running")
	case tasks.LaneCompleted:
		status = styles.ok.Render(fmt.Sprintf("done in %s", lane.Duration.Round(time.Millisecond)))
	case tasks.LaneError:
		status = styles.err.Render(lane.Error)
	default:
		status = styles.muted.Render("idle")
	}

	body := lipgloss.NewStyle().Width(width).Render(lane.Output)
	return styles.panel.Width(width).Render(header + "\n" + styles.muted.Render(formatter.Truncate(strings.ReplaceAll(lane.Template, "\n", " "), width)) + "\n" + status + "\n\n" + body)
}
