package models

import (
	"fmt"
	"strconv"
	"strings"
)

// Work is a serialized text source, e.g. a web novel.
type Work struct {
	ID         int            `json:"id"`
	Title      string         `json:"title"`
	Source     *string        `json:"source,omitempty"`
	SourceID   *string        `json:"source_id,omitempty"`
	SourceMeta map[string]any `json:"source_meta,omitempty"`
}

// meta returns a string value from SourceMeta, or "".
func (w Work) meta(key string) string {
	if w.SourceMeta == nil {
		return ""
	}
	if v, ok := w.SourceMeta[key].(string); ok {
		return strings.TrimSpace(v)
	}
	return ""
}

// Author returns the attribution recorded in source metadata.
func (w Work) Author() string {
	if a := w.meta("author"); a != "" {
		return a
	}
	return w.meta("attribution")
}

// Description returns the work synopsis from source metadata.
func (w Work) Description() string { return w.meta("description") }

// Thumbnail returns the thumbnail URL from source metadata.
func (w Work) Thumbnail() string { return w.meta("thumbnail") }

// SourceURL returns the canonical URL of the work on its source site, if known.
func (w Work) SourceURL() string {
	if u := w.meta("url"); u != "" {
		return u
	}
	if w.Source != nil && w.SourceID != nil && *w.Source == "syosetu" {
		return "https://ncode.syosetu.com/" + *w.SourceID + "/"
	}
	return ""
}

// SourceLabel renders "source:source_id" when both are present.
func (w Work) SourceLabel() string {
	switch {
	case w.Source != nil && w.SourceID != nil:
		return *w.Source + ":" + *w.SourceID
	case w.Source != nil:
		return *w.Source
	default:
		return ""
	}
}

// Chapter is a single chapter belonging to a [Work].
type Chapter struct {
	ID                int     `json:"id"`
	WorkID            int     `json:"work_id"`
	Idx               int     `json:"idx"`
	SortKey           float64 `json:"sort_key"`
	Title             string  `json:"title"`
	IsFullyTranslated bool    `json:"is_fully_translated"`
}

// Number renders the chapter number from its sort key, keeping fractional parts such as "2.1".
func (c Chapter) Number() string {
	if c.SortKey == 0 {
		return strconv.Itoa(c.Idx)
	}
	return strconv.FormatFloat(c.SortKey, 'f', -1, 64)
}

// Label renders "#<number> <title>".
func (c Chapter) Label() string {
	return fmt.Sprintf("#%s %s", c.Number(), c.Title)
}

// ChapterDetail carries the chapter's normalized source text and neighbours.
type ChapterDetail struct {
	Chapter
	NormalizedText string `json:"normalized_text"`
	NextChapterID  *int   `json:"next_chapter_id,omitempty"`
	PrevChapterID  *int   `json:"prev_chapter_id,omitempty"`
}

// WorkImportRequest asks the backend to import a work from its URL.
type WorkImportRequest struct {
	URL   string `json:"url"`
	Force bool   `json:"force"`
}

// ImportResult records the outcome of importing one URL.
type ImportResult struct {
	URL     string
	Work    *Work
	Message string
}

// OK reports whether the import succeeded.
func (r ImportResult) OK() bool { return r.Work != nil }

// ChapterScrapeRequest asks the backend to scrape a chapter range.
type ChapterScrapeRequest struct {
	Start float64 `json:"start"`
	End   float64 `json:"end"`
	Force bool    `json:"force"`
}

// ChapterScrapeError is a per-chapter scrape failure.
type ChapterScrapeError struct {
	Chapter float64 `json:"chapter"`
	Reason  string  `json:"reason"`
}

// ChapterScrapeResponse is returned when a scrape is queued or completed.
type ChapterScrapeResponse struct {
	WorkID    int                  `json:"work_id"`
	Start     float64              `json:"start"`
	End       float64              `json:"end"`
	Force     bool                 `json:"force"`
	Status    string               `json:"status"`
	JobID     *int                 `json:"job_id,omitempty"`
	Requested int                  `json:"requested"`
	Created   int                  `json:"created"`
	Updated   int                  `json:"updated"`
	Skipped   int                  `json:"skipped"`
	Errors    []ChapterScrapeError `json:"errors"`
}

// ScrapeStatus is the lifecycle of a backend scrape job.
type ScrapeStatus string

const (
	ScrapeIdle      ScrapeStatus = "idle"
	ScrapePending   ScrapeStatus = "pending"
	ScrapeRunning   ScrapeStatus = "running"
	ScrapeCompleted ScrapeStatus = "completed"
	ScrapeFailed    ScrapeStatus = "failed"
)

// ScrapeState is the client view of a work's scrape job.
type ScrapeState struct {
	Status   ScrapeStatus
	Progress int
	Total    int
	Error    string
}

// Active reports whether a scrape is queued or running.
func (s ScrapeState) Active() bool {
	return s.Status == ScrapePending || s.Status == ScrapeRunning
}
