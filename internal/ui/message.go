package ui

import (
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/novelx/internal/models"
	"github.com/desertthunder/novelx/internal/tasks"
)

// MsgKind enumerates all message types in the application.
type MsgKind int

// Msg represents all possible messages in the TUI (Elm-style message union).
//
// owner is the view generation that issued the command; messages from a view that has since been left are
// dropped.
type Msg struct {
	kind  MsgKind
	owner uint64
	data  any
}

var (
	_ tea.Msg = Msg{}
)

const (
	MsgWorksFetched MsgKind = iota
	MsgWorkFetched
	MsgChaptersFetched
	MsgGroupsFetched
	MsgChapterFetched
	MsgWorkPromptFetched
	MsgWorkPromptsFetched
	MsgModelsFetched
	MsgPromptsFetched
	MsgPromptFetched
	MsgVersionsFetched
	MsgTranslationUpdate
	MsgExplanationUpdate
	MsgScrapeUpdate
	MsgChapterFound
	MsgLabUpdate
	MsgProgressUpdate
	MsgImportComplete
	MsgExportComplete
	MsgActionDone
)

// resourceMsg is the constructor for the fetch result messages.
func resourceMsg[T any](kind MsgKind, owner uint64, st tasks.State[T]) Msg {
	return Msg{kind: kind, owner: owner, data: st}
}

// translationMsg is the constructor for [MsgTranslationUpdate]
func translationMsg(owner uint64, snap tasks.TranslationSnapshot) Msg {
	return Msg{kind: MsgTranslationUpdate, owner: owner, data: snap}
}

// explanationMsg is the constructor for [MsgExplanationUpdate]
func explanationMsg(owner uint64, snap tasks.ExplanationSnapshot) Msg {
	return Msg{kind: MsgExplanationUpdate, owner: owner, data: snap}
}

// scrapeMsg is the constructor for [MsgScrapeUpdate]
func scrapeMsg(owner uint64, state models.ScrapeState) Msg {
	return Msg{kind: MsgScrapeUpdate, owner: owner, data: state}
}

// labMsg is the constructor for [MsgLabUpdate]
func labMsg(owner uint64, lanes []tasks.Lane) Msg {
	return Msg{kind: MsgLabUpdate, owner: owner, data: lanes}
}

// progressUpdateMsg is the constructor for [MsgProgressUpdate]
func progressUpdateMsg(update tasks.ProgressUpdate) Msg {
	return Msg{kind: MsgProgressUpdate, data: update}
}

type importComplete struct {
	result *tasks.ImportRunResult
	err    error
}

// importCompleteMsg is the constructor for [MsgImportComplete]
func importCompleteMsg(result *tasks.ImportRunResult, err error) Msg {
	return Msg{kind: MsgImportComplete, data: importComplete{result, err}}
}

type exportComplete struct {
	result *tasks.BulkExportResult
	err    error
}

// exportCompleteMsg is the constructor for [MsgExportComplete]
func exportCompleteMsg(result *tasks.BulkExportResult, err error) Msg {
	return Msg{kind: MsgExportComplete, data: exportComplete{result, err}}
}

// actionDone reports the outcome of a one-shot mutation. refresh asks the current view to refetch.
type actionDone struct {
	status  string
	err     string
	refresh bool
}

// actionDoneMsg is the constructor for [MsgActionDone]
func actionDoneMsg(owner uint64, status, err string, refresh bool) Msg {
	return Msg{kind: MsgActionDone, owner: owner, data: actionDone{status, err, refresh}}
}
