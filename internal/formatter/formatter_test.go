package formatter

import (
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/desertthunder/novelx/internal/models"
	th "github.com/desertthunder/novelx/internal/testing"
)

func sampleExport() *ChapterExport {
	author := "Someone"
	return &ChapterExport{
		Work: models.Work{
			ID:         3,
			Title:      "The Test Novel",
			SourceMeta: map[string]any{"author": author, "url": "https://example.com/novel"},
		},
		Chapter: models.Chapter{ID: 11, WorkID: 3, Idx: 2, SortKey: 2.1, Title: "Interlude"},
		Segments: []models.Segment{
			{ID: 2, OrderIndex: 2, Start: 6, End: 12, Src: "さようなら", Text: "Goodbye.", Status: models.SegmentCompleted},
			{ID: 1, OrderIndex: 0, Start: 0, End: 5, Src: "こんにちは", Text: "Hello.", Status: models.SegmentCompleted},
			{ID: 9, OrderIndex: 1, Start: 5, End: 6, Src: "\n", Flags: []string{"whitespace"}, Status: models.SegmentCompleted},
		},
	}
}

func TestExporters(t *testing.T) {
	t.Run("Body", func(t *testing.T) {
		if got := sampleExport().Body(); got != "Hello.\nGoodbye." {
			t.Errorf("expected segments joined in order, got %q", got)
		}
	})

	t.Run("ExportToCSV", func(t *testing.T) {
		data, err := ExportToCSV(sampleExport())
		if err != nil {
			t.Fatalf("ExportToCSV failed: %v", err)
		}

		output := string(data)
		if !strings.Contains(output, "Order,Segment,Start,End,Source,Translation") {
			t.Errorf("CSV missing headers, got: %s", output)
		}
		if !strings.Contains(output, "0,1,0,5,こんにちは,Hello.") {
			t.Errorf("CSV missing first segment, got: %s", output)
		}

		lines := strings.Split(strings.TrimSpace(output), "\n")
		if len(lines) != 3 {
			t.Errorf("expected header plus 2 rows without whitespace segments, got %d lines", len(lines))
		}
		if !strings.HasPrefix(lines[1], "0,") || !strings.HasPrefix(lines[2], "2,") {
			t.Errorf("expected rows ordered by order index, got %v", lines[1:])
		}
	})

	t.Run("ExportToMarkdown", func(t *testing.T) {
		data, err := ExportToMarkdown(sampleExport())
		if err != nil {
			t.Fatalf("ExportToMarkdown failed: %v", err)
		}

		output := string(data)
		for _, want := range []string{
			"# The Test Novel",
			"**Author**: Someone",
			"**Source**: https://example.com/novel",
			"## Chapter 2.1: Interlude",
			"**Segments**: 2 translated of 3",
			"Hello.\n\nGoodbye.",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("Markdown missing %q, got:\n%s", want, output)
			}
		}
	})

	t.Run("ExportToText", func(t *testing.T) {
		data, err := ExportToText(sampleExport())
		if err != nil {
			t.Fatalf("ExportToText failed: %v", err)
		}

		output := string(data)
		if !strings.HasPrefix(output, "Work: The Test Novel\nChapter: #2.1 Interlude\n\n") {
			t.Errorf("unexpected text header: %q", output)
		}
		if !strings.HasSuffix(output, "Goodbye.\n") {
			t.Errorf("unexpected text body: %q", output)
		}
	})

	t.Run("ExportToJSON", func(t *testing.T) {
		data, err := ExportToJSON(sampleExport())
		if err != nil {
			t.Fatalf("ExportToJSON failed: %v", err)
		}
		if !strings.Contains(string(data), `"title": "The Test Novel"`) {
			t.Errorf("JSON missing work title, got: %s", data)
		}
	})
}

func TestChapterFilename(t *testing.T) {
	tt := []struct {
		chapter models.Chapter
		format  string
		want    string
	}{
		{models.Chapter{Idx: 2, SortKey: 2.1}, FormatMarkdown, "chapter_002.1.md"},
		{models.Chapter{Idx: 14, SortKey: 14}, FormatCSV, "chapter_014.csv"},
		{models.Chapter{Idx: 1200, SortKey: 1200}, FormatText, "chapter_1200.txt"},
		{models.Chapter{Idx: 7}, "unknown", "chapter_007.json"},
	}
	for _, tc := range tt {
		if got := ChapterFilename(tc.chapter, tc.format); got != tc.want {
			t.Errorf("ChapterFilename(%v, %q) = %q, want %q", tc.chapter.Number(), tc.format, got, tc.want)
		}
	}
}

func TestFileWriters(t *testing.T) {
	t.Run("WriteChapterExport", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "nested", "out")

		path, err := WriteChapterExport(sampleExport(), FormatMarkdown, dir)
		if err != nil {
			t.Fatalf("WriteChapterExport failed: %v", err)
		}
		if path != filepath.Join(dir, "chapter_002.1.md") {
			t.Errorf("unexpected path %s", path)
		}

		th.AssertFileExists(t, path)
		if content := th.MustReadFile(t, path); !strings.Contains(content, "## Chapter 2.1: Interlude") {
			t.Errorf("written file missing chapter heading")
		}
	})

	t.Run("WriteBulkExportManifest", func(t *testing.T) {
		t.Run("SuccessfulExport", func(t *testing.T) {
			tempDir := t.TempDir()
			originalDir := th.MustGetwd(t)
			th.MustChdir(t, tempDir)
			defer th.MustChdir(t, originalDir)

			result := BulkExportResult{
				WorkID:            3,
				WorkTitle:         "The Test Novel",
				TotalChapters:     2,
				SuccessfulExports: 2,
				Results: []ChapterExportResult{
					{ChapterID: 11, ChapterLabel: "#1 Start", Success: true, File: "chapter_001.md", Segments: 4},
					{ChapterID: 12, ChapterLabel: "#2 Next", Success: true, File: "chapter_002.md", Segments: 6},
				},
			}

			manifestPath := "manifest.json"
			if err := WriteBulkExportManifest(result, FormatMarkdown, manifestPath); err != nil {
				t.Fatalf("WriteBulkExportManifest failed: %v", err)
			}

			th.AssertFileExists(t, manifestPath)
			content := th.MustReadFile(t, manifestPath)
			for _, want := range []string{
				`"format": "markdown"`,
				`"total_chapters": 2`,
				`"successful_exports": 2`,
				`"work_title": "The Test Novel"`,
				`"status": "success"`,
				`"chapter_002.md"`,
			} {
				if !strings.Contains(content, want) {
					t.Errorf("manifest missing %s", want)
				}
			}
		})

		t.Run("WithFailedExports", func(t *testing.T) {
			manifestPath := filepath.Join(t.TempDir(), "manifest.json")
			result := BulkExportResult{
				TotalChapters:     2,
				SuccessfulExports: 1,
				FailedExports:     1,
				Results: []ChapterExportResult{
					{ChapterID: 11, Success: true, File: "chapter_001.csv"},
					{ChapterID: 12, Success: false, Error: errors.New("API error 404: Chapter not found")},
				},
			}

			if err := WriteBulkExportManifest(result, FormatCSV, manifestPath); err != nil {
				t.Fatalf("WriteBulkExportManifest failed: %v", err)
			}

			content := th.MustReadFile(t, manifestPath)
			if !strings.Contains(content, `"failed_exports": 1`) {
				t.Errorf("manifest missing failed_exports count")
			}
			if !strings.Contains(content, `"status": "failed"`) {
				t.Errorf("manifest missing failed status")
			}
			if !strings.Contains(content, `"API error 404: Chapter not found"`) {
				t.Errorf("manifest missing error message")
			}
		})

		t.Run("UnwritablePath", func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "missing", "manifest.json")
			if err := WriteBulkExportManifest(BulkExportResult{}, FormatJSON, path); err == nil {
				t.Error("expected error writing into a missing directory")
			}
		})
	})
}

func TestRenderTable(t *testing.T) {
	t.Run("pads short rows", func(t *testing.T) {
		out := RenderTable([]string{"ID", "Title", "Chapters"}, [][]string{{"1", "First"}, {"2", "Second", "12"}}, []Align{AlignRight, AlignLeft, AlignRight})
		for _, want := range []string{"ID", "First", "Second", "12"} {
			if !strings.Contains(out, want) {
				t.Errorf("table missing %q:\n%s", want, out)
			}
		}
		if !strings.HasPrefix(out, "╭") {
			t.Errorf("expected rounded style, got:\n%s", out)
		}
	})

	t.Run("no headers", func(t *testing.T) {
		if out := RenderTable(nil, [][]string{{"x"}}, nil); out != "" {
			t.Errorf("expected empty output, got %q", out)
		}
	})
}

func TestTruncate(t *testing.T) {
	if got := Truncate("こんにちは世界", 4); got != "こんに…" {
		t.Errorf("Truncate() = %q", got)
	}
	if got := Truncate("short", 10); got != "short" {
		t.Errorf("Truncate() = %q", got)
	}
}
