package tasks

import (
	"fmt"

	"github.com/desertthunder/novelx/internal/models"
)

// ProgressUpdate represents a progress event during a long-running operation.
//
// Used to send real-time updates to the CLI or UI layer for display.
type ProgressUpdate struct {
	Phase   Phase  // Operation phase
	Step    int    // Current step number within phase
	Total   int    // Total steps in this phase
	Message string // Human-readable message for display
	Data    any    // Optional phase-specific data for advanced UIs
}

// Operation phase enumeration
type Phase int

const (
	ImportWorks Phase = iota
	FetchWork
	FetchChapters
	ExportChapter
	WriteManifest
)

func (p Phase) String() string {
	switch p {
	case ImportWorks:
		return "import_works"
	case FetchWork:
		return "fetch_work"
	case FetchChapters:
		return "fetch_chapters"
	case ExportChapter:
		return "export_chapter"
	case WriteManifest:
		return "write_manifest"
	default:
		return ""
	}
}

func importingUpdate(step, total int, url string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ImportWorks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Importing %s...", step, total, url),
	}
}

func importedUpdate(step, total int, result models.ImportResult) ProgressUpdate {
	mark := "✓"
	if !result.OK() {
		mark = "✗"
	}
	return ProgressUpdate{
		Phase:   ImportWorks,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] %s %s", step, total, mark, result.Message),
		Data:    result,
	}
}

func fetchWorkUpdate(workID int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchWork,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Fetching work %d...", workID),
	}
}

func foundWorkUpdate(work *models.Work, chapters int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchWork,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Found work: %s (%d chapters)", work.Title, chapters),
		Data:    work,
	}
}

func fetchChaptersUpdate(step, total int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   FetchChapters,
		Step:    step,
		Total:   total,
		Message: "Listing chapters...",
	}
}

func exportingChapterUpdate(step, total int, label string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportChapter,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] Exporting: %s...", step, total, label),
	}
}

func exportCompletedUpdate(step, total int, label string, segments int) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportChapter,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✓ %s (%d segments)", step, total, label, segments),
	}
}

func exportFailedUpdate(step, total int, label string, err error) ProgressUpdate {
	return ProgressUpdate{
		Phase:   ExportChapter,
		Step:    step,
		Total:   total,
		Message: fmt.Sprintf("[%d/%d] ✗ %s: %v", step, total, label, err),
	}
}

func manifestUpdate(path string) ProgressUpdate {
	return ProgressUpdate{
		Phase:   WriteManifest,
		Step:    1,
		Total:   1,
		Message: fmt.Sprintf("Manifest written to %s", path),
	}
}
