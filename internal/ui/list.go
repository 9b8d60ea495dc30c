package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/list"
	"github.com/desertthunder/novelx/internal/models"
)

var (
	_ list.Item = workItem{}
	_ list.Item = chapterItem{}
	_ list.Item = promptItem{}
)

// workItem wraps [models.Work] to implement [list.Item].
type workItem struct {
	work models.Work
}

func (i workItem) FilterValue() string { return i.work.Title }
func (i workItem) Title() string       { return i.work.Title }
func (i workItem) Description() string {
	parts := []string{fmt.Sprintf("#%d", i.work.ID)}
	if a := i.work.Author(); a != "" {
		parts = append(parts, a)
	}
	if s := i.work.SourceLabel(); s != "" {
		parts = append(parts, s)
	}
	return strings.Join(parts, " • ")
}

// chapterItem wraps one entry of a [models.ChapterListing] to implement [list.Item].
type chapterItem struct {
	entry    models.ChapterListItem
	selected bool
}

// chapterID returns the id of an ungrouped chapter entry, or 0 for a group.
func (i chapterItem) chapterID() int {
	if i.entry.Chapter != nil {
		return i.entry.Chapter.ID
	}
	return 0
}

func (i chapterItem) FilterValue() string {
	if i.entry.Group != nil {
		return i.entry.Group.Name
	}
	if i.entry.Chapter != nil {
		return i.entry.Chapter.Title
	}
	return ""
}

func (i chapterItem) Title() string {
	switch {
	case i.entry.Group != nil:
		return "▸ " + i.entry.Group.Name
	case i.entry.Chapter != nil:
		mark := "[ ]"
		if i.selected {
			mark = "[x]"
		}
		return mark + " " + i.entry.Chapter.Label()
	default:
		return ""
	}
}

func (i chapterItem) Description() string {
	switch {
	case i.entry.Group != nil:
		return fmt.Sprintf("group • %d chapters", i.entry.Group.MemberCount)
	case i.entry.Chapter != nil && i.entry.Chapter.IsFullyTranslated:
		return "translated"
	default:
		return "not translated"
	}
}

// promptItem wraps [models.Prompt] to implement [list.Item].
type promptItem struct {
	prompt models.Prompt
}

func (i promptItem) FilterValue() string { return i.prompt.Name }
func (i promptItem) Title() string       { return i.prompt.Name }
func (i promptItem) Description() string {
	desc := fmt.Sprintf("#%d", i.prompt.ID)
	if d := i.prompt.DescriptionText(); d != "" {
		desc = fmt.Sprintf("%s • %s", desc, d)
	}
	if i.prompt.OwnerWorkID != nil {
		desc = fmt.Sprintf("%s • work %d", desc, *i.prompt.OwnerWorkID)
	}
	return desc
}

func workItems(works []models.Work) []list.Item {
	items := make([]list.Item, len(works))
	for i, w := range works {
		items[i] = workItem{work: w}
	}
	return items
}

func promptItems(prompts []models.Prompt) []list.Item {
	items := make([]list.Item, len(prompts))
	for i, p := range prompts {
		items[i] = promptItem{prompt: p}
	}
	return items
}

func chapterItems(listing *models.ChapterListing, isSelected func(int) bool) []list.Item {
	if listing == nil {
		return nil
	}
	items := make([]list.Item, len(listing.Items))
	for i, entry := range listing.Items {
		item := chapterItem{entry: entry}
		if entry.Chapter != nil {
			item.selected = isSelected(entry.Chapter.ID)
		}
		items[i] = item
	}
	return items
}

func newList(items []list.Item, title string, width, height int) list.Model {
	l := list.New(items, list.NewDefaultDelegate(), width, height)
	l.Title = title
	l.SetShowHelp(false)
	l.DisableQuitKeybindings()
	return l
}
