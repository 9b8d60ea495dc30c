package models

import "sort"

// SegmentStatus is the lifecycle of a single translated segment.
type SegmentStatus string

const (
	SegmentPending   SegmentStatus = "pending"
	SegmentRunning   SegmentStatus = "running"
	SegmentCompleted SegmentStatus = "completed"
)

// Segment is the client-local state of one translated span of a chapter.
type Segment struct {
	ID         int
	OrderIndex int
	Start      int
	End        int
	Src        string
	Text       string
	Status     SegmentStatus
	Flags      []string
}

// IsWhitespace reports whether the backend flagged the segment as whitespace-only.
func (s Segment) IsWhitespace() bool {
	for _, f := range s.Flags {
		if f == "whitespace" {
			return true
		}
	}
	return false
}

// SortSegments orders segments by OrderIndex.
func SortSegments(segments []Segment) {
	sort.SliceStable(segments, func(i, j int) bool {
		return segments[i].OrderIndex < segments[j].OrderIndex
	})
}

// TranslationSegmentRecord is a stored segment as returned in a translation snapshot.
type TranslationSegmentRecord struct {
	ID         int      `json:"id"`
	Start      int      `json:"start"`
	End        int      `json:"end"`
	OrderIndex int      `json:"order_index"`
	Src        string   `json:"src"`
	Tgt        string   `json:"tgt"`
	Flags      []string `json:"flags"`
}

// ToSegment converts a stored record into client state.
//
// A record is completed when it has target text or is whitespace-only, pending otherwise.
func (r TranslationSegmentRecord) ToSegment() Segment {
	s := Segment{
		ID:         r.ID,
		OrderIndex: r.OrderIndex,
		Start:      r.Start,
		End:        r.End,
		Src:        r.Src,
		Text:       r.Tgt,
		Status:     SegmentPending,
		Flags:      r.Flags,
	}
	if r.Tgt != "" || s.IsWhitespace() {
		s.Status = SegmentCompleted
	}
	return s
}

// TranslationState is the backend's authoritative snapshot of a chapter translation.
type TranslationState struct {
	ChapterTranslationID int                        `json:"chapter_translation_id"`
	Status               string                     `json:"status"`
	Segments             []TranslationSegmentRecord `json:"segments"`
}
