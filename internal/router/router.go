package router

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// View identifies a screen.
type View int

const (
	WorksList View = iota
	WorkDetail
	ChapterDetail
	Prompts
)

func (v View) String() string {
	switch v {
	case WorksList:
		return "works"
	case WorkDetail:
		return "work"
	case ChapterDetail:
		return "chapter"
	case Prompts:
		return "prompts"
	default:
		return ""
	}
}

// Route is a resolved path.
type Route struct {
	View      View
	WorkID    int
	ChapterID int
}

var (
	chapterPattern = regexp.MustCompile(`^/works/(\d+)/chapters/(\d+)$`)
	workPattern    = regexp.MustCompile(`^/works/(\d+)$`)
	promptsPattern = regexp.MustCompile(`^/prompts$`)
)

// Resolve matches path against the known views. The query string is ignored and anything unrecognized
// resolves to [WorksList].
func Resolve(path string) Route {
	if i := strings.IndexAny(path, "?#"); i >= 0 {
		path = path[:i]
	}

	if m := chapterPattern.FindStringSubmatch(path); m != nil {
		workID, errW := strconv.Atoi(m[1])
		chapterID, errC := strconv.Atoi(m[2])
		if errW == nil && errC == nil {
			return Route{View: ChapterDetail, WorkID: workID, ChapterID: chapterID}
		}
	}
	if m := workPattern.FindStringSubmatch(path); m != nil {
		if workID, err := strconv.Atoi(m[1]); err == nil {
			return Route{View: WorkDetail, WorkID: workID}
		}
	}
	if promptsPattern.MatchString(path) {
		return Route{View: Prompts}
	}
	return Route{View: WorksList}
}

// Path renders the canonical path of r.
func (r Route) Path() string {
	switch r.View {
	case ChapterDetail:
		return fmt.Sprintf("/works/%d/chapters/%d", r.WorkID, r.ChapterID)
	case WorkDetail:
		return fmt.Sprintf("/works/%d", r.WorkID)
	case Prompts:
		return "/prompts"
	default:
		return "/"
	}
}

// WorkPath returns the path of a work's detail view.
func WorkPath(workID int) string {
	return Route{View: WorkDetail, WorkID: workID}.Path()
}

// ChapterPath returns the path of a chapter's reader view.
func ChapterPath(workID, chapterID int) string {
	return Route{View: ChapterDetail, WorkID: workID, ChapterID: chapterID}.Path()
}
