package models

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxGroupNameLength is the longest chapter group name the backend accepts.
const MaxGroupNameLength = 512

// ChapterGroup rolls several chapters of a work into one list entry.
type ChapterGroup struct {
	ID          int       `json:"id"`
	WorkID      int       `json:"work_id"`
	Name        string    `json:"name"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
	MemberCount int       `json:"member_count"`
	MinSortKey  float64   `json:"min_sort_key"`
}

// ChapterGroupMember is a chapter's position inside a group.
type ChapterGroupMember struct {
	ID         int     `json:"id"`
	ChapterID  int     `json:"chapter_id"`
	OrderIndex int     `json:"order_index"`
	Chapter    Chapter `json:"chapter"`
}

// ChapterGroupDetail is a group with its ordered members.
type ChapterGroupDetail struct {
	ChapterGroup
	Members []ChapterGroupMember `json:"members"`
}

// ChapterIDs returns member chapter ids in order.
func (g ChapterGroupDetail) ChapterIDs() []int {
	ids := make([]int, len(g.Members))
	for i, m := range g.Members {
		ids[i] = m.ChapterID
	}
	return ids
}

// ChapterGroupCreateRequest creates a group from a set of chapters.
type ChapterGroupCreateRequest struct {
	Name       string `json:"name"`
	ChapterIDs []int  `json:"chapter_ids"`
}

// Validate trims the name and checks the constraints the backend enforces.
func (r *ChapterGroupCreateRequest) Validate() error {
	name, err := ValidateGroupName(r.Name)
	if err != nil {
		return err
	}
	r.Name = name
	if len(r.ChapterIDs) == 0 {
		return fmt.Errorf("select at least one chapter")
	}
	return nil
}

// ValidateGroupName trims name and rejects empty or over-long values.
func ValidateGroupName(name string) (string, error) {
	trimmed := strings.TrimSpace(name)
	if trimmed == "" {
		return "", fmt.Errorf("Group name cannot be empty or whitespace only")
	}
	if utf8.RuneCountInString(trimmed) > MaxGroupNameLength {
		return "", fmt.Errorf("Group name must be %d characters or less", MaxGroupNameLength)
	}
	return trimmed, nil
}

// ChapterGroupUpdateRequest renames a group.
type ChapterGroupUpdateRequest struct {
	Name *string `json:"name,omitempty"`
}

// ChapterGroupMembersRequest replaces or extends group membership.
type ChapterGroupMembersRequest struct {
	ChapterIDs []int `json:"chapter_ids"`
}

// Item types in a mixed chapter listing.
const (
	ItemTypeChapter = "chapter"
	ItemTypeGroup   = "group"
)

// ChapterListItem is one entry in a work's mixed chapter/group listing.
//
// Exactly one of Chapter and Group is set.
type ChapterListItem struct {
	ItemType string
	Chapter  *Chapter
	Group    *ChapterGroup
}

// SortKey returns the ordering key of the entry.
func (i ChapterListItem) SortKey() float64 {
	if i.Group != nil {
		return i.Group.MinSortKey
	}
	if i.Chapter != nil {
		return i.Chapter.SortKey
	}
	return 0
}

// UnmarshalJSON decodes both the discriminated form {"item_type", "data"} and a bare chapter.
func (i *ChapterListItem) UnmarshalJSON(b []byte) error {
	var envelope struct {
		ItemType string          `json:"item_type"`
		Data     json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(b, &envelope); err != nil {
		return err
	}

	switch {
	case envelope.ItemType == ItemTypeGroup && len(envelope.Data) > 0:
		var g ChapterGroup
		if err := json.Unmarshal(envelope.Data, &g); err != nil {
			return fmt.Errorf("failed to decode group item: %w", err)
		}
		*i = ChapterListItem{ItemType: ItemTypeGroup, Group: &g}
	case envelope.ItemType == ItemTypeChapter && len(envelope.Data) > 0:
		var c Chapter
		if err := json.Unmarshal(envelope.Data, &c); err != nil {
			return fmt.Errorf("failed to decode chapter item: %w", err)
		}
		*i = ChapterListItem{ItemType: ItemTypeChapter, Chapter: &c}
	default:
		var c Chapter
		if err := json.Unmarshal(b, &c); err != nil {
			return fmt.Errorf("failed to decode chapter: %w", err)
		}
		*i = ChapterListItem{ItemType: ItemTypeChapter, Chapter: &c}
	}
	return nil
}

// ChapterListing is a page of a work's chapters with groups rolled up.
type ChapterListing struct {
	Items         []ChapterListItem `json:"items"`
	Total         int               `json:"total"`
	TotalChapters int               `json:"total_chapters"`
	TotalGroups   int               `json:"total_groups"`
	TotalItems    int               `json:"total_items"`
	Limit         int               `json:"limit"`
	Offset        int               `json:"offset"`
}

// ItemCount returns the total number of listing entries, falling back to the plain total.
func (l ChapterListing) ItemCount() int {
	if l.TotalItems > 0 {
		return l.TotalItems
	}
	return l.Total
}

// ChapterIDs returns the ids of the ungrouped chapters visible on this page, in order.
func (l ChapterListing) ChapterIDs() []int {
	var ids []int
	for _, item := range l.Items {
		if item.Chapter != nil {
			ids = append(ids, item.Chapter.ID)
		}
	}
	return ids
}
