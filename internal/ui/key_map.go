package ui

import "github.com/charmbracelet/bubbles/key"

// keyMap defines the [key.Binding] mapping for the TUI.
type keyMap struct {
	up     key.Binding
	down   key.Binding
	enter  key.Binding
	back   key.Binding
	yes    key.Binding
	no     key.Binding
	quit   key.Binding
	search key.Binding

	// Works list
	importWork key.Binding
	prompts    key.Binding
	lab        key.Binding

	// Work detail
	toggle         key.Binding
	extend         key.Binding
	selectAll      key.Binding
	clear          key.Binding
	nextPage       key.Binding
	prevPage       key.Binding
	scrape         key.Binding
	group          key.Binding
	deleteGroup    key.Binding
	rename         key.Binding
	addMembers     key.Binding
	replaceMembers key.Binding
	assign         key.Binding
	export         key.Binding

	// Chapter reader
	translate   key.Binding
	pause       key.Binding
	reset       key.Binding
	regenerate  key.Binding
	retranslate key.Binding
	explain     key.Binding
	reexplain   key.Binding
	nextChapter key.Binding
	prevChapter key.Binding
	source      key.Binding
	editPrompt  key.Binding

	// Editors
	save      key.Binding
	resetEdit key.Binding
	focus     key.Binding
	complete  key.Binding

	// Prompts and lab
	create     key.Binding
	remove     key.Binding
	version    key.Binding
	run        key.Binding
	stop       key.Binding
	addLane    key.Binding
	editLane   key.Binding
	removeLane key.Binding
}

func newKeyMap() keyMap {
	return keyMap{
		up:     key.NewBinding(key.WithKeys("up", "k"), key.WithHelp("↑/k", "up")),
		down:   key.NewBinding(key.WithKeys("down", "j"), key.WithHelp("↓/j", "down")),
		enter:  key.NewBinding(key.WithKeys("enter"), key.WithHelp("enter", "open")),
		back:   key.NewBinding(key.WithKeys("esc"), key.WithHelp("esc", "back")),
		yes:    key.NewBinding(key.WithKeys("y"), key.WithHelp("y", "yes")),
		no:     key.NewBinding(key.WithKeys("n", "esc"), key.WithHelp("n", "no")),
		quit:   key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
		search: key.NewBinding(key.WithKeys("/"), key.WithHelp("/", "search")),

		importWork: key.NewBinding(key.WithKeys("i"), key.WithHelp("i", "import")),
		prompts:    key.NewBinding(key.WithKeys("P"), key.WithHelp("P", "prompts")),
		lab:        key.NewBinding(key.WithKeys("L"), key.WithHelp("L", "lab")),

		toggle:         key.NewBinding(key.WithKeys(" ", "x"), key.WithHelp("x", "select")),
		extend:         key.NewBinding(key.WithKeys("X"), key.WithHelp("X", "select range")),
		selectAll:      key.NewBinding(key.WithKeys("a"), key.WithHelp("a", "select page")),
		clear:          key.NewBinding(key.WithKeys("c"), key.WithHelp("c", "clear")),
		nextPage:       key.NewBinding(key.WithKeys("right", "l"), key.WithHelp("→", "next page")),
		prevPage:       key.NewBinding(key.WithKeys("left", "h"), key.WithHelp("←", "prev page")),
		scrape:         key.NewBinding(key.WithKeys("s"), key.WithHelp("s", "scrape")),
		group:          key.NewBinding(key.WithKeys("G"), key.WithHelp("G", "group")),
		deleteGroup:    key.NewBinding(key.WithKeys("D"), key.WithHelp("D", "delete group")),
		rename:         key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "rename group")),
		addMembers:     key.NewBinding(key.WithKeys("+"), key.WithHelp("+", "add selection to group")),
		replaceMembers: key.NewBinding(key.WithKeys("M"), key.WithHelp("M", "replace group chapters")),
		assign:         key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "assign prompt")),
		export:         key.NewBinding(key.WithKeys("E"), key.WithHelp("E", "export")),

		translate:   key.NewBinding(key.WithKeys("t"), key.WithHelp("t", "translate")),
		pause:       key.NewBinding(key.WithKeys("p"), key.WithHelp("p", "pause")),
		reset:       key.NewBinding(key.WithKeys("R"), key.WithHelp("R", "reset")),
		regenerate:  key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "regenerate")),
		retranslate: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "retranslate segment")),
		explain:     key.NewBinding(key.WithKeys("e"), key.WithHelp("e", "explain")),
		reexplain:   key.NewBinding(key.WithKeys("ctrl+e"), key.WithHelp("ctrl+e", "regenerate explanation")),
		nextChapter: key.NewBinding(key.WithKeys("]"), key.WithHelp("]", "next chapter")),
		prevChapter: key.NewBinding(key.WithKeys("["), key.WithHelp("[", "prev chapter")),
		source:      key.NewBinding(key.WithKeys("o"), key.WithHelp("o", "original")),
		editPrompt:  key.NewBinding(key.WithKeys("m"), key.WithHelp("m", "edit prompt")),

		save:      key.NewBinding(key.WithKeys("ctrl+s"), key.WithHelp("ctrl+s", "save")),
		resetEdit: key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "reset")),
		focus:     key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "next field")),
		complete:  key.NewBinding(key.WithKeys("ctrl+n"), key.WithHelp("ctrl+n", "complete model")),

		create:     key.NewBinding(key.WithKeys("N"), key.WithHelp("N", "new")),
		remove:     key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "delete")),
		version:    key.NewBinding(key.WithKeys("v"), key.WithHelp("v", "new version")),
		run:        key.NewBinding(key.WithKeys("ctrl+r"), key.WithHelp("ctrl+r", "run")),
		stop:       key.NewBinding(key.WithKeys("ctrl+x"), key.WithHelp("ctrl+x", "stop")),
		addLane:    key.NewBinding(key.WithKeys("ctrl+a"), key.WithHelp("ctrl+a", "add lane")),
		editLane:   key.NewBinding(key.WithKeys("ctrl+t"), key.WithHelp("ctrl+t", "edit lane")),
		removeLane: key.NewBinding(key.WithKeys("ctrl+d"), key.WithHelp("ctrl+d", "remove lane")),
	}
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.back, k.quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{
		{k.up, k.down, k.enter, k.back},
		{k.search, k.importWork, k.prompts, k.lab},
		{k.translate, k.pause, k.retranslate, k.explain},
		{k.quit},
	}
}
