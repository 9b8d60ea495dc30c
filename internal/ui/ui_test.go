package ui

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/desertthunder/novelx/internal/models"
	"github.com/desertthunder/novelx/internal/router"
	"github.com/desertthunder/novelx/internal/services"
	"github.com/desertthunder/novelx/internal/tasks"
)

// cmdTimeout bounds how long a command may block. Watch commands block until the next update, so most
// of them simply time out.
const cmdTimeout = 150 * time.Millisecond

type stubService struct {
	services.Service

	mu            sync.Mutex
	works         []models.Work
	imported      []string
	deletedGroups []int
}

func newStubService() *stubService {
	return &stubService{works: []models.Work{{ID: 1, Title: "Tower of Dawn"}, {ID: 2, Title: "Sea of Reeds"}}}
}

func (s *stubService) ListWorks(_ context.Context, _ string, _ models.PageQuery) (*models.Page[models.Work], error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	items := append([]models.Work(nil), s.works...)
	return &models.Page[models.Work]{Items: items, Total: len(items)}, nil
}

func (s *stubService) GetWork(_ context.Context, workID int) (*models.Work, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, w := range s.works {
		if w.ID == workID {
			return &w, nil
		}
	}
	return nil, &services.APIError{StatusCode: 404, Detail: "Work not found"}
}

func (s *stubService) ImportWork(_ context.Context, req models.WorkImportRequest) (*models.Work, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.imported = append(s.imported, req.URL)
	w := models.Work{ID: 10 + len(s.imported), Title: "Imported " + req.URL}
	s.works = append(s.works, w)
	return &w, nil
}

func (s *stubService) ListChapters(_ context.Context, workID int, _ models.PageQuery) (*models.ChapterListing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	listing := &models.ChapterListing{
		Items: []models.ChapterListItem{
			{ItemType: models.ItemTypeChapter, Chapter: &models.Chapter{ID: 101, WorkID: workID, Idx: 1, SortKey: 1, Title: "Arrival"}},
			{ItemType: models.ItemTypeChapter, Chapter: &models.Chapter{ID: 102, WorkID: workID, Idx: 2, SortKey: 2, Title: "Departure"}},
		},
		TotalChapters: 4,
	}
	if len(s.deletedGroups) == 0 {
		listing.Items = append(listing.Items, models.ChapterListItem{
			ItemType: models.ItemTypeGroup,
			Group:    &models.ChapterGroup{ID: 7, WorkID: workID, Name: "Interludes", MemberCount: 2, MinSortKey: 3},
		})
		listing.TotalGroups = 1
	}
	listing.TotalItems = len(listing.Items)
	listing.Total = listing.TotalItems
	return listing, nil
}

func (s *stubService) ListChapterGroups(_ context.Context, workID int) ([]models.ChapterGroup, error) {
	return []models.ChapterGroup{{ID: 7, WorkID: workID, Name: "Interludes", MemberCount: 2}}, nil
}

func (s *stubService) DeleteChapterGroup(_ context.Context, _ int, groupID int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletedGroups = append(s.deletedGroups, groupID)
	return nil
}

func (s *stubService) GetWorkPrompt(context.Context, int) (*models.PromptDetail, error) {
	return nil, &services.APIError{StatusCode: 404, Detail: "No prompt assigned"}
}

func (s *stubService) ScrapeStatusStream(context.Context, int) (*services.Stream, error) {
	return nil, errors.New("no scrape stream")
}

func (s *stubService) ListModels(context.Context) (*models.ModelsList, error) {
	return &models.ModelsList{Items: []models.ModelInfo{{ID: "gpt-4o-mini"}, {ID: "claude-haiku"}}, Total: 2}, nil
}

func (s *stubService) GetChapter(_ context.Context, workID, chapterID int) (*models.ChapterDetail, error) {
	return &models.ChapterDetail{
		Chapter:        models.Chapter{ID: chapterID, WorkID: workID, Idx: 1, SortKey: 1, Title: "Arrival"},
		NormalizedText: "你好。",
	}, nil
}

func (s *stubService) GetTranslation(context.Context, int, int) (*models.TranslationState, error) {
	return &models.TranslationState{
		ChapterTranslationID: 3,
		Status:               "completed",
		Segments:             []models.TranslationSegmentRecord{{ID: 1, Start: 0, End: 3, OrderIndex: 0, Src: "你好。", Tgt: "Hello."}},
	}, nil
}

func (s *stubService) deleted() []int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int(nil), s.deletedGroups...)
}

// collect runs cmd and returns the messages it produced, expanding batches. Commands still blocked after
// cmdTimeout produce nothing.
func collect(cmd tea.Cmd) []tea.Msg {
	if cmd == nil {
		return nil
	}
	ch := make(chan tea.Msg, 1)
	go func() { ch <- cmd() }()

	select {
	case msg := <-ch:
		batch, ok := msg.(tea.BatchMsg)
		if !ok {
			if msg == nil {
				return nil
			}
			return []tea.Msg{msg}
		}

		results := make([][]tea.Msg, len(batch))
		var wg sync.WaitGroup
		for i, c := range batch {
			wg.Add(1)
			go func() {
				defer wg.Done()
				results[i] = collect(c)
			}()
		}
		wg.Wait()

		var out []tea.Msg
		for _, r := range results {
			out = append(out, r...)
		}
		return out
	case <-time.After(cmdTimeout):
		return nil
	}
}

// run feeds every message cmd produces back into m until nothing is left.
func run(t *testing.T, m *Model, cmd tea.Cmd) {
	t.Helper()
	queue := collect(cmd)
	for steps := 0; len(queue) > 0; steps++ {
		if steps > 200 {
			t.Fatal("message loop did not settle")
		}
		msg := queue[0]
		queue = queue[1:]
		switch msg.(type) {
		case spinner.TickMsg, tea.QuitMsg:
			continue
		}
		_, next := m.Update(msg)
		queue = append(queue, collect(next)...)
	}
}

func press(t *testing.T, m *Model, k string) {
	t.Helper()
	var msg tea.KeyMsg
	switch k {
	case "enter":
		msg = tea.KeyMsg{Type: tea.KeyEnter}
	case "esc":
		msg = tea.KeyMsg{Type: tea.KeyEsc}
	default:
		msg = tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(k)}
	}
	_, cmd := m.Update(msg)
	run(t, m, cmd)
}

func newTestModel(t *testing.T, api services.Service) *Model {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	m := NewModel(ctx, Options{API: api})
	run(t, m, m.Init())
	return m
}

func TestModel(t *testing.T) {
	t.Run("loads works on start", func(t *testing.T) {
		m := newTestModel(t, newStubService())

		if m.route.View != router.WorksList {
			t.Fatalf("expected works list, got %v", m.route.View)
		}
		if m.works == nil || m.works.state.Data == nil || len(m.works.state.Data.Items) != 2 {
			t.Fatalf("expected two works, got %+v", m.works)
		}
		view := m.View()
		for _, title := range []string{"Tower of Dawn", "Sea of Reeds"} {
			if !strings.Contains(view, title) {
				t.Errorf("expected view to contain %q", title)
			}
		}
	})

	t.Run("loads model ids for autocomplete", func(t *testing.T) {
		m := newTestModel(t, newStubService())
		if len(m.modelIDs) != 2 {
			t.Errorf("expected 2 model ids, got %v", m.modelIDs)
		}
	})

	t.Run("enter opens the work and esc goes back", func(t *testing.T) {
		m := newTestModel(t, newStubService())

		press(t, m, "enter")
		if m.route.View != router.WorkDetail || m.route.WorkID != 1 {
			t.Fatalf("expected work detail for 1, got %+v", m.route)
		}
		if m.history.Depth() != 2 {
			t.Errorf("expected history depth 2, got %d", m.history.Depth())
		}
		if m.work.work.Data == nil || m.work.work.Data.Title != "Tower of Dawn" {
			t.Errorf("expected work to load, got %+v", m.work.work)
		}
		if m.work.listing.Data == nil || len(m.work.listing.Data.Items) != 3 {
			t.Fatalf("expected listing with 3 entries, got %+v", m.work.listing)
		}

		press(t, m, "esc")
		if m.route.View != router.WorksList {
			t.Errorf("expected works list after back, got %v", m.route.View)
		}
		if m.work != nil {
			t.Error("expected work view to be released")
		}
	})

	t.Run("ignores results from a previous view", func(t *testing.T) {
		m := newTestModel(t, newStubService())
		press(t, m, "enter")

		stale := Msg{
			kind:  MsgWorkFetched,
			owner: m.owner - 1,
			data:  tasks.State[*models.Work]{Data: &models.Work{ID: 1, Title: "stale"}},
		}
		m.Update(stale)
		if got := m.work.work.Data.Title; got != "Tower of Dawn" {
			t.Errorf("expected stale result to be dropped, title is %q", got)
		}
	})

	t.Run("toggles chapter selection", func(t *testing.T) {
		m := newTestModel(t, newStubService())
		press(t, m, "enter")

		press(t, m, "x")
		if got := m.work.selection.Count(); got != 1 {
			t.Fatalf("expected 1 selected chapter, got %d", got)
		}
		if !m.work.selection.IsSelected(101) {
			t.Error("expected chapter 101 to be selected")
		}

		press(t, m, "a")
		if got := m.work.selection.Count(); got != 2 {
			t.Errorf("expected select all to pick 2 chapters, got %d", got)
		}

		press(t, m, "c")
		if got := m.work.selection.Count(); got != 0 {
			t.Errorf("expected clear to empty the selection, got %d", got)
		}
	})

	t.Run("deleting a group asks first", func(t *testing.T) {
		api := newStubService()
		m := newTestModel(t, api)
		press(t, m, "enter")
		press(t, m, "j")
		press(t, m, "j")

		press(t, m, "D")
		if m.confirm == nil {
			t.Fatal("expected a confirmation dialog")
		}
		press(t, m, "n")
		if m.confirm != nil || len(api.deleted()) != 0 {
			t.Fatalf("expected cancel to delete nothing, deleted %v", api.deleted())
		}

		press(t, m, "D")
		press(t, m, "y")
		if got := api.deleted(); len(got) != 1 || got[0] != 7 {
			t.Fatalf("expected group 7 to be deleted, got %v", got)
		}
		if m.status != "Group deleted" {
			t.Errorf("expected status 'Group deleted', got %q", m.status)
		}
		if n := len(m.work.listing.Data.Items); n != 2 {
			t.Errorf("expected listing to refresh without the group, got %d entries", n)
		}
	})

	t.Run("delete on a chapter row reports an error", func(t *testing.T) {
		m := newTestModel(t, newStubService())
		press(t, m, "enter")

		press(t, m, "D")
		if m.confirm != nil {
			t.Error("expected no confirmation for a chapter row")
		}
		if m.err == "" {
			t.Error("expected an error message")
		}
	})

	t.Run("imports works from the input prompt", func(t *testing.T) {
		api := newStubService()
		m := newTestModel(t, api)

		press(t, m, "i")
		if m.input == nil {
			t.Fatal("expected an input prompt")
		}
		m.input.input.SetValue("https://example.com/novel/9")
		press(t, m, "enter")

		if m.status != "Imported 1 of 1" {
			t.Errorf("expected import status, got %q (err %q)", m.status, m.err)
		}
		if m.progressChan != nil {
			t.Error("expected the batch to be finished")
		}
		if len(api.imported) != 1 || api.imported[0] != "https://example.com/novel/9" {
			t.Errorf("unexpected imports %v", api.imported)
		}
		if n := len(m.works.state.Data.Items); n != 3 {
			t.Errorf("expected works list to reload with 3 works, got %d", n)
		}
	})

	t.Run("opens a chapter with its saved translation", func(t *testing.T) {
		m := newTestModel(t, newStubService())
		run(t, m, m.navigate(router.ChapterPath(1, 101)))

		if m.route.View != router.ChapterDetail {
			t.Fatalf("expected chapter detail, got %v", m.route.View)
		}
		if m.chapter.chapter.Data == nil || m.chapter.chapter.Data.Title != "Arrival" {
			t.Fatalf("expected chapter to load, got %+v", m.chapter.chapter)
		}
		if len(m.chapter.snap.Segments) != 1 || m.chapter.snap.Segments[0].Text != "Hello." {
			t.Errorf("expected hydrated segment, got %+v", m.chapter.snap.Segments)
		}
	})

	t.Run("window size reaches the views", func(t *testing.T) {
		m := newTestModel(t, newStubService())
		m.Update(tea.WindowSizeMsg{Width: 140, Height: 50})
		if m.width != 140 || m.height != 50 {
			t.Errorf("expected 140x50, got %dx%d", m.width, m.height)
		}
	})
}

func TestAutocomplete(t *testing.T) {
	ids := []string{"gpt-4o", "gpt-4o-mini", "claude-haiku"}

	t.Run("suggests fuzzy matches", func(t *testing.T) {
		got := suggestModels("gpt", ids)
		if len(got) != 2 {
			t.Fatalf("expected 2 suggestions, got %v", got)
		}
	})

	t.Run("skips the exact match", func(t *testing.T) {
		for _, s := range suggestModels("gpt-4o", ids) {
			if s == "gpt-4o" {
				t.Errorf("exact match should not be suggested: %v", s)
			}
		}
	})

	t.Run("empty input suggests nothing", func(t *testing.T) {
		if got := suggestModels("  ", ids); got != nil {
			t.Errorf("expected nil, got %v", got)
		}
	})

	t.Run("completes to the best suggestion", func(t *testing.T) {
		if got := completeModel("haiku", ids); got != "claude-haiku" {
			t.Errorf("expected claude-haiku, got %q", got)
		}
		if got := completeModel("zzz", ids); got != "zzz" {
			t.Errorf("expected input back, got %q", got)
		}
	})
}

func TestParseScrapeInput(t *testing.T) {
	tests := []struct {
		in         string
		start, end string
		force      bool
	}{
		{"1 10", "1", "10", false},
		{"2.1-3", "2.1", "3", false},
		{"4,8 !", "4", "8", true},
		{"!5", "5", "5", true},
		{"", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			start, end, force := parseScrapeInput(tt.in)
			if start != tt.start || end != tt.end || force != tt.force {
				t.Errorf("parseScrapeInput(%q) = %q, %q, %v", tt.in, start, end, force)
			}
		})
	}
}

func TestParseImportInput(t *testing.T) {
	urls, force := parseImportInput("!https://a.example/1 https://b.example/2")
	if !force {
		t.Error("expected a leading ! to force")
	}
	if len(urls) != 2 || urls[0] != "https://a.example/1" {
		t.Errorf("unexpected urls %v", urls)
	}

	urls, force = parseImportInput("  https://a.example/1  ")
	if force || len(urls) != 1 {
		t.Errorf("unexpected parse %v %v", urls, force)
	}
}

func TestRenderMarkdown(t *testing.T) {
	t.Run("empty input renders nothing", func(t *testing.T) {
		if got := renderMarkdown("", DefaultMarkdownStyle, 80); got != "" {
			t.Errorf("expected empty string, got %q", got)
		}
	})

	t.Run("renders text", func(t *testing.T) {
		if got := renderMarkdown("**bold** words", DefaultMarkdownStyle, 80); !strings.Contains(got, "words") {
			t.Errorf("expected rendered text to keep its words, got %q", got)
		}
	})
}
