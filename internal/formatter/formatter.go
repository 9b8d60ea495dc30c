// package formatter exports chapter translations to various formats (CSV, Markdown, plain text, JSON) and renders CLI tables
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/desertthunder/novelx/internal/models"
)

// Supported export formats.
const (
	FormatJSON     = "json"
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
	FormatText     = "txt"
)

// Formats lists every supported export format.
var Formats = []string{FormatMarkdown, FormatCSV, FormatText, FormatJSON}

// ChapterExport is a chapter and its translated segments, ready to be written out.
type ChapterExport struct {
	Work     models.Work      `json:"work"`
	Chapter  models.Chapter   `json:"chapter"`
	Segments []models.Segment `json:"segments"`
}

// Body joins the translated segments in order. Whitespace segments keep their source text.
func (e *ChapterExport) Body() string {
	segments := make([]models.Segment, len(e.Segments))
	copy(segments, e.Segments)
	models.SortSegments(segments)

	var sb strings.Builder
	for _, s := range segments {
		if s.IsWhitespace() {
			sb.WriteString(s.Src)
			continue
		}
		sb.WriteString(s.Text)
	}
	return sb.String()
}

// Translated counts the segments that carry translated text.
func (e *ChapterExport) Translated() int {
	n := 0
	for _, s := range e.Segments {
		if s.Status == models.SegmentCompleted && !s.IsWhitespace() {
			n++
		}
	}
	return n
}

// ExportToCSV converts a ChapterExport to CSV format with columns: Order, Segment, Start, End, Source, Translation
func ExportToCSV(export *ChapterExport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Order", "Segment", "Start", "End", "Source", "Translation"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	segments := make([]models.Segment, len(export.Segments))
	copy(segments, export.Segments)
	models.SortSegments(segments)

	for _, s := range segments {
		if s.IsWhitespace() {
			continue
		}
		record := []string{
			strconv.Itoa(s.OrderIndex),
			strconv.Itoa(s.ID),
			strconv.Itoa(s.Start),
			strconv.Itoa(s.End),
			s.Src,
			s.Text,
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a ChapterExport to Markdown with the work title, chapter heading, and translated body
func ExportToMarkdown(export *ChapterExport) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", export.Work.Title)
	if author := export.Work.Author(); author != "" {
		fmt.Fprintf(&buf, "**Author**: %s\n\n", author)
	}
	if u := export.Work.SourceURL(); u != "" {
		fmt.Fprintf(&buf, "**Source**: %s\n\n", u)
	}

	fmt.Fprintf(&buf, "## Chapter %s: %s\n\n", export.Chapter.Number(), export.Chapter.Title)
	fmt.Fprintf(&buf, "**Segments**: %d translated of %d\n\n", export.Translated(), len(export.Segments))

	for _, para := range paragraphs(export.Body()) {
		buf.WriteString(para)
		buf.WriteString("\n\n")
	}

	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// ExportToText converts a ChapterExport to plain text format
func ExportToText(export *ChapterExport) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Work: %s\n", export.Work.Title)
	fmt.Fprintf(&buf, "Chapter: %s\n\n", export.Chapter.Label())
	buf.WriteString(strings.TrimSpace(export.Body()))
	buf.WriteString("\n")

	return buf.Bytes(), nil
}

// ExportToJSON converts a ChapterExport to indented JSON
func ExportToJSON(export *ChapterExport) ([]byte, error) {
	data, err := json.MarshalIndent(export, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal JSON: %w", err)
	}
	return data, nil
}

func paragraphs(body string) []string {
	var out []string
	for _, p := range strings.Split(strings.ReplaceAll(body, "\r\n", "\n"), "\n") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// Extension returns the file extension used for format.
func Extension(format string) string {
	switch format {
	case FormatCSV:
		return ".csv"
	case FormatMarkdown:
		return ".md"
	case FormatText:
		return ".txt"
	default:
		return ".json"
	}
}

// Render encodes export in format. Unknown formats fall back to JSON.
func Render(export *ChapterExport, format string) ([]byte, error) {
	switch format {
	case FormatCSV:
		return ExportToCSV(export)
	case FormatMarkdown:
		return ExportToMarkdown(export)
	case FormatText:
		return ExportToText(export)
	default:
		return ExportToJSON(export)
	}
}

// ChapterFilename returns the base filename for a chapter export, e.g. "chapter_002.1.md".
func ChapterFilename(c models.Chapter, format string) string {
	whole, frac, hasFrac := strings.Cut(c.Number(), ".")
	if len(whole) < 3 {
		whole = strings.Repeat("0", 3-len(whole)) + whole
	}
	if hasFrac {
		whole += "." + frac
	}
	return "chapter_" + whole + Extension(format)
}

// WriteChapterExport writes export in format under dir and returns the file path.
//
// The directory is created when missing.
func WriteChapterExport(export *ChapterExport, format, dir string) (string, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create directory: %w", err)
	}

	data, err := Render(export, format)
	if err != nil {
		return "", fmt.Errorf("failed to generate %s: %w", format, err)
	}

	path := filepath.Join(dir, ChapterFilename(export.Chapter, format))
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s file: %w", format, err)
	}
	return path, nil
}
