package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/desertthunder/novelx/internal/formatter"
	"github.com/desertthunder/novelx/internal/models"
	"github.com/desertthunder/novelx/internal/shared"
)

// fakeExportAPI serves a work with n chapters. Chapter ids listed in failChapters fail to fetch.
type fakeExportAPI struct {
	work         models.Work
	chapters     int
	failChapters map[int]bool
	workErr      error
	cancel       context.CancelFunc

	mu       sync.Mutex
	listings []models.PageQuery
}

func newFakeExportAPI(chapters int) *fakeExportAPI {
	return &fakeExportAPI{
		work:         models.Work{ID: 7, Title: "Test Novel"},
		chapters:     chapters,
		failChapters: map[int]bool{},
	}
}

func (f *fakeExportAPI) GetWork(ctx context.Context, workID int) (*models.Work, error) {
	if f.workErr != nil {
		return nil, f.workErr
	}
	w := f.work
	return &w, nil
}

func (f *fakeExportAPI) ListChapters(ctx context.Context, workID int, page models.PageQuery) (*models.ChapterListing, error) {
	f.mu.Lock()
	f.listings = append(f.listings, page)
	f.mu.Unlock()

	listing := &models.ChapterListing{Total: f.chapters, Limit: page.Limit, Offset: page.Offset}
	for id := page.Offset + 1; id <= f.chapters && id <= page.Offset+page.Limit; id++ {
		c := f.chapter(id)
		listing.Items = append(listing.Items, models.ChapterListItem{ItemType: models.ItemTypeChapter, Chapter: &c})
	}
	return listing, nil
}

func (f *fakeExportAPI) chapter(id int) models.Chapter {
	return models.Chapter{ID: id, WorkID: f.work.ID, Idx: id, SortKey: float64(id), Title: fmt.Sprintf("Chapter %d", id)}
}

func (f *fakeExportAPI) GetChapter(ctx context.Context, workID, chapterID int) (*models.ChapterDetail, error) {
	if f.failChapters[chapterID] {
		return nil, errors.New("chapter fetch failed")
	}
	if f.cancel != nil && chapterID == 2 {
		f.cancel()
	}
	return &models.ChapterDetail{Chapter: f.chapter(chapterID)}, nil
}

func (f *fakeExportAPI) GetTranslation(ctx context.Context, workID, chapterID int) (*models.TranslationState, error) {
	return &models.TranslationState{
		Status: "completed",
		Segments: []models.TranslationSegmentRecord{
			{ID: chapterID*10 + 1, OrderIndex: 0, Src: "原文", Tgt: fmt.Sprintf("Line one of %d.", chapterID)},
			{ID: chapterID*10 + 2, OrderIndex: 1, Src: "\n\n"},
			{ID: chapterID*10 + 3, OrderIndex: 2, Src: "続き", Tgt: "Line two."},
		},
	}, nil
}

func readManifest(t *testing.T, path string) formatter.ExportManifest {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("failed to read manifest: %v", err)
	}
	var m formatter.ExportManifest
	if err := json.Unmarshal(data, &m); err != nil {
		t.Fatalf("failed to decode manifest: %v", err)
	}
	return m
}

func TestBulkExport_SuccessfulExport(t *testing.T) {
	tests := []struct {
		name       string
		format     string
		chapterIDs []int
		chapters   int
		ext        string
	}{
		{name: "markdown export of listed chapters", format: formatter.FormatMarkdown, chapters: 3, ext: ".md"},
		{name: "csv export of chosen chapters", format: formatter.FormatCSV, chapters: 5, chapterIDs: []int{2, 4}, ext: ".csv"},
		{name: "text export", format: formatter.FormatText, chapters: 2, ext: ".txt"},
		{name: "json export", format: formatter.FormatJSON, chapters: 1, ext: ".json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			api := newFakeExportAPI(tt.chapters)

			result, err := BulkExport(context.Background(), nil, api, 7, tt.chapterIDs, BulkExportOpts{
				Format:    tt.format,
				OutputDir: dir,
				RateLimit: 1000,
			})
			if err != nil {
				t.Fatalf("BulkExport() error = %v", err)
			}

			want := tt.chapters
			if len(tt.chapterIDs) > 0 {
				want = len(tt.chapterIDs)
			}
			if result.SuccessfulExports != want || result.FailedExports != 0 || result.TotalChapters != want {
				t.Errorf("expected %d successful exports, got %+v", want, result)
			}
			for _, res := range result.Results {
				if !strings.HasSuffix(res.File, tt.ext) {
					t.Errorf("expected %s file, got %s", tt.ext, res.File)
				}
				if _, err := os.Stat(res.File); err != nil {
					t.Errorf("expected file %s: %v", res.File, err)
				}
				if res.Segments != 2 {
					t.Errorf("expected 2 translated segments, got %d", res.Segments)
				}
			}

			if result.ManifestPath != filepath.Join(dir, "export_manifest.json") {
				t.Errorf("unexpected manifest path %s", result.ManifestPath)
			}
			m := readManifest(t, result.ManifestPath)
			if m.Format != tt.format || m.WorkTitle != "Test Novel" || len(m.Chapters) != want {
				t.Errorf("unexpected manifest %+v", m)
			}
		})
	}
}

func TestBulkExport_PartialFailure(t *testing.T) {
	dir := t.TempDir()
	api := newFakeExportAPI(4)
	api.failChapters[3] = true

	prog := make(chan ProgressUpdate, 100)
	result, err := BulkExport(context.Background(), prog, api, 7, nil, BulkExportOpts{OutputDir: dir, RateLimit: 1000})
	if err != nil {
		t.Fatalf("BulkExport() error = %v", err)
	}
	close(prog)

	if result.SuccessfulExports != 3 || result.FailedExports != 1 {
		t.Errorf("expected 3 ok and 1 failed, got %+v", result)
	}
	for _, res := range result.Results {
		if res.ChapterID == 3 && (res.Success || res.ChapterLabel != "Unknown (3)") {
			t.Errorf("unexpected failed result %+v", res)
		}
	}

	m := readManifest(t, result.ManifestPath)
	failed := 0
	for _, c := range m.Chapters {
		if c.Status == "failed" {
			failed++
			if c.Error == "" {
				t.Error("expected failure reason in manifest")
			}
		}
	}
	if failed != 1 {
		t.Errorf("expected 1 failed manifest entry, got %d", failed)
	}

	phases := map[Phase]bool{}
	for u := range prog {
		phases[u.Phase] = true
	}
	for _, p := range []Phase{FetchWork, FetchChapters, ExportChapter, WriteManifest} {
		if !phases[p] {
			t.Errorf("expected a %s update", p)
		}
	}
}

func TestBulkExport_Errors(t *testing.T) {
	t.Run("nil client", func(t *testing.T) {
		_, err := BulkExport(context.Background(), nil, nil, 7, nil, BulkExportOpts{})
		if !errors.Is(err, shared.ErrServiceUnavailable) {
			t.Errorf("expected ErrServiceUnavailable, got %v", err)
		}
	})

	t.Run("invalid work id", func(t *testing.T) {
		_, err := BulkExport(context.Background(), nil, newFakeExportAPI(1), 0, nil, BulkExportOpts{})
		if !errors.Is(err, shared.ErrInvalidArgument) {
			t.Errorf("expected ErrInvalidArgument, got %v", err)
		}
	})

	t.Run("work fetch failure", func(t *testing.T) {
		api := newFakeExportAPI(1)
		api.workErr = shared.ErrWorkNotFound
		_, err := BulkExport(context.Background(), nil, api, 7, nil, BulkExportOpts{OutputDir: t.TempDir()})
		if !errors.Is(err, shared.ErrWorkNotFound) {
			t.Errorf("expected ErrWorkNotFound, got %v", err)
		}
	})

	t.Run("cancellation", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()
		api := newFakeExportAPI(20)
		api.cancel = cancel

		result, err := BulkExport(ctx, nil, api, 7, nil, BulkExportOpts{OutputDir: t.TempDir(), RateLimit: 1000})
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context.Canceled, got %v", err)
		}
		if result == nil || len(result.Results) >= 20 {
			t.Errorf("expected a partial result, got %+v", result)
		}
	})
}

func TestBulkExport_Paging(t *testing.T) {
	api := newFakeExportAPI(450)

	ids, err := allChapterIDs(context.Background(), api, 7, nil)
	if err != nil {
		t.Fatalf("allChapterIDs() error = %v", err)
	}
	if len(ids) != 450 || ids[0] != 1 || ids[449] != 450 {
		t.Errorf("expected 450 ordered ids, got %d", len(ids))
	}
	if len(api.listings) != 3 || api.listings[2].Offset != 400 {
		t.Errorf("expected three pages, got %+v", api.listings)
	}
}

func TestBulkExport_DefaultOptions(t *testing.T) {
	wd, err := os.Getwd()
	if err != nil {
		t.Fatal(err)
	}
	dir := t.TempDir()
	if err := os.Chdir(dir); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })

	result, err := BulkExport(context.Background(), nil, newFakeExportAPI(1), 7, nil, BulkExportOpts{RateLimit: 1000})
	if err != nil {
		t.Fatalf("BulkExport() error = %v", err)
	}
	if !strings.HasPrefix(result.OutputDirectory, "work_7_export_") {
		t.Errorf("unexpected default directory %s", result.OutputDirectory)
	}
	if !strings.HasSuffix(result.Results[0].File, ".md") {
		t.Errorf("expected markdown by default, got %s", result.Results[0].File)
	}
}
