package router

import (
	"errors"
	"io"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/desertthunder/novelx/internal/models"
	"github.com/desertthunder/novelx/internal/shared"
)

// HistoryStore persists visited paths. [repositories.HistoryRepository] implements it.
type HistoryStore interface {
	Append(path string) (*models.HistoryEntry, error)
	Latest() (*models.HistoryEntry, error)
}

// History is the in-memory back stack of visited routes.
//
// Navigations are serialized. When a store is set every navigation is also persisted; store failures
// are logged and never block navigation.
type History struct {
	mu     sync.Mutex
	stack  []string
	store  HistoryStore
	logger *log.Logger
}

// NewHistory creates a history positioned at the works list. store may be nil.
func NewHistory(store HistoryStore, logger *log.Logger) *History {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &History{stack: []string{"/"}, store: store, logger: logger}
}

// Navigate pushes path and returns its route. Navigating to the current path does not grow the stack.
func (h *History) Navigate(path string) Route {
	h.mu.Lock()
	defer h.mu.Unlock()

	route := Resolve(path)
	canonical := route.Path()
	if h.stack[len(h.stack)-1] != canonical {
		h.stack = append(h.stack, canonical)
	}

	if h.store != nil {
		if _, err := h.store.Append(canonical); err != nil {
			h.logger.Warn("failed to persist navigation", "path", canonical, "error", err)
		}
	}
	return route
}

// Back pops the current route and returns the one below it. At the root it reports false.
func (h *History) Back() (Route, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if len(h.stack) <= 1 {
		return Resolve(h.stack[0]), false
	}
	h.stack = h.stack[:len(h.stack)-1]
	return Resolve(h.stack[len(h.stack)-1]), true
}

// Current returns the route on top of the stack.
func (h *History) Current() Route {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Resolve(h.stack[len(h.stack)-1])
}

// Depth returns the number of entries on the stack.
func (h *History) Depth() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.stack)
}

// Resume navigates to the last persisted path. Without a store or any history it stays at the works list.
func (h *History) Resume() (Route, error) {
	if h.store == nil {
		return h.Current(), nil
	}

	entry, err := h.store.Latest()
	if errors.Is(err, shared.ErrNotFound) {
		return h.Current(), nil
	}
	if err != nil {
		return h.Current(), err
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	route := Resolve(entry.Path)
	if canonical := route.Path(); h.stack[len(h.stack)-1] != canonical {
		h.stack = append(h.stack, canonical)
	}
	return route, nil
}
