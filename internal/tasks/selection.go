package tasks

import (
	"slices"
	"sync"
)

// Selection tracks chapters picked from a listing, with shift-range extension over the visible ids.
type Selection struct {
	mu       sync.Mutex
	selected map[int]struct{}
	anchor   int
}

// NewSelection returns an empty selection.
func NewSelection() *Selection {
	return &Selection{selected: make(map[int]struct{}), anchor: -1}
}

// Toggle flips id. With extend set, every id in visible between the last toggled position and id takes
// the new state of id.
func (s *Selection) Toggle(id int, visible []int, extend bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	idx := slices.Index(visible, id)
	_, on := s.selected[id]
	want := !on

	if extend && s.anchor >= 0 && idx >= 0 && s.anchor < len(visible) {
		lo, hi := s.anchor, idx
		if lo > hi {
			lo, hi = hi, lo
		}
		for _, v := range visible[lo : hi+1] {
			s.set(v, want)
		}
	} else {
		s.set(id, want)
	}
	if idx >= 0 {
		s.anchor = idx
	}
}

func (s *Selection) set(id int, on bool) {
	if on {
		s.selected[id] = struct{}{}
	} else {
		delete(s.selected, id)
	}
}

// SelectAll selects every id in visible.
func (s *Selection) SelectAll(visible []int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range visible {
		s.selected[id] = struct{}{}
	}
}

// Clear empties the selection.
func (s *Selection) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	clear(s.selected)
	s.anchor = -1
}

// IsSelected reports whether id is selected.
func (s *Selection) IsSelected(id int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.selected[id]
	return ok
}

// Count returns the number of selected ids.
func (s *Selection) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.selected)
}

// IDs returns the selected ids in ascending order.
func (s *Selection) IDs() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]int, 0, len(s.selected))
	for id := range s.selected {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}
