package formatter

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// ChapterExportResult is the outcome of exporting one chapter.
type ChapterExportResult struct {
	ChapterID    int
	ChapterLabel string
	Success      bool
	File         string
	Segments     int
	Error        error
}

// BulkExportResult summarizes a multi-chapter export.
type BulkExportResult struct {
	WorkID            int
	WorkTitle         string
	TotalChapters     int
	SuccessfulExports int
	FailedExports     int
	Results           []ChapterExportResult
	OutputDirectory   string
	ManifestPath      string
}

// ExportManifest is the on-disk summary written next to exported chapters.
type ExportManifest struct {
	Format            string          `json:"format"`
	ExportedAt        time.Time       `json:"exported_at"`
	WorkID            int             `json:"work_id"`
	WorkTitle         string          `json:"work_title"`
	TotalChapters     int             `json:"total_chapters"`
	SuccessfulExports int             `json:"successful_exports"`
	FailedExports     int             `json:"failed_exports"`
	Chapters          []ManifestEntry `json:"chapters"`
}

// ManifestEntry records a single chapter in an [ExportManifest].
type ManifestEntry struct {
	ChapterID int    `json:"chapter_id"`
	Label     string `json:"label"`
	Status    string `json:"status"`
	File      string `json:"file,omitempty"`
	Segments  int    `json:"segments,omitempty"`
	Error     string `json:"error,omitempty"`
}

// NewExportManifest builds the manifest for result.
func NewExportManifest(result BulkExportResult, format string, exportedAt time.Time) ExportManifest {
	m := ExportManifest{
		Format:            format,
		ExportedAt:        exportedAt.UTC(),
		WorkID:            result.WorkID,
		WorkTitle:         result.WorkTitle,
		TotalChapters:     result.TotalChapters,
		SuccessfulExports: result.SuccessfulExports,
		FailedExports:     result.FailedExports,
		Chapters:          make([]ManifestEntry, 0, len(result.Results)),
	}
	for _, r := range result.Results {
		entry := ManifestEntry{ChapterID: r.ChapterID, Label: r.ChapterLabel, File: r.File, Segments: r.Segments, Status: "success"}
		if !r.Success {
			entry.Status = "failed"
			if r.Error != nil {
				entry.Error = r.Error.Error()
			}
		}
		m.Chapters = append(m.Chapters, entry)
	}
	return m
}

// WriteBulkExportManifest writes the manifest for result as indented JSON at path.
func WriteBulkExportManifest(result BulkExportResult, format, path string) error {
	data, err := json.MarshalIndent(NewExportManifest(result, format, time.Now()), "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal manifest: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write manifest: %w", err)
	}
	return nil
}
