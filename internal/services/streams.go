package services

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/desertthunder/novelx/internal/models"
)

// Translation stream event names.
const (
	EventTranslationStatus   = "translation-status"
	EventSegmentStart        = "segment-start"
	EventSegmentDelta        = "segment-delta"
	EventSegmentComplete     = "segment-complete"
	EventTranslationError    = "translation-error"
	EventTranslationComplete = "translation-complete"
)

// Explanation stream event names.
const (
	EventExplanationDelta    = "explanation-delta"
	EventExplanationComplete = "explanation-complete"
	EventExplanationError    = "explanation-error"
)

// Scrape status stream event names.
const (
	EventJobStatus    = "job-status"
	EventChapterFound = "chapter-found"
)

// PromptOverrideParam is the query parameter carrying a prompt override token.
const PromptOverrideParam = "prompt_override_token"

// StatusPayload is the data of a translation-status event.
type StatusPayload struct {
	Status string `json:"status"`
}

// SegmentStartPayload is the data of a segment-start event.
type SegmentStartPayload struct {
	SegmentID  int    `json:"segment_id"`
	OrderIndex int    `json:"order_index"`
	Start      int    `json:"start"`
	End        int    `json:"end"`
	Src        string `json:"src"`
}

// SegmentDeltaPayload is the data of a segment-delta event.
type SegmentDeltaPayload struct {
	SegmentID int    `json:"segment_id"`
	Delta     string `json:"delta"`
}

// SegmentCompletePayload is the data of a segment-complete event.
type SegmentCompletePayload struct {
	SegmentID int     `json:"segment_id"`
	Text      *string `json:"text"`
}

// ErrorPayload is the data of translation-error and explanation-error events.
type ErrorPayload struct {
	Error string `json:"error"`
}

// ExplanationDeltaPayload is the data of an explanation-delta event.
type ExplanationDeltaPayload struct {
	Delta string `json:"delta"`
}

// JobStatusPayload is the data of a job-status event.
type JobStatusPayload struct {
	Status   models.ScrapeStatus `json:"status"`
	Progress *int                `json:"progress"`
	Total    *int                `json:"total"`
	Error    string              `json:"error"`
}

// TranslateStream opens the chapter translation stream.
//
// A non-empty overrideToken applies a prompt draft to this run only.
func (a *APIService) TranslateStream(ctx context.Context, workID, chapterID int, overrideToken string) (*Stream, error) {
	var query url.Values
	if t := strings.TrimSpace(overrideToken); t != "" {
		query = url.Values{PromptOverrideParam: {t}}
	}
	return a.OpenStream(ctx, chapterPath(workID, chapterID, "/translate/stream"), query)
}

// RetranslateSegmentStream opens a stream that retranslates one segment.
func (a *APIService) RetranslateSegmentStream(ctx context.Context, workID, chapterID, segmentID int) (*Stream, error) {
	path := chapterPath(workID, chapterID, fmt.Sprintf("/segments/%d/retranslate/stream", segmentID))
	return a.OpenStream(ctx, path, nil)
}

// ExplainStream opens the explanation stream for a segment, reusing a stored explanation when present.
func (a *APIService) ExplainStream(ctx context.Context, workID, chapterID, segmentID int) (*Stream, error) {
	path := chapterPath(workID, chapterID, fmt.Sprintf("/segments/%d/explain/stream", segmentID))
	return a.OpenStream(ctx, path, nil)
}

// RegenerateExplanationStream discards the stored explanation and streams a new one.
func (a *APIService) RegenerateExplanationStream(ctx context.Context, workID, chapterID, segmentID int) (*Stream, error) {
	path := chapterPath(workID, chapterID, fmt.Sprintf("/segments/%d/regenerate-explanation", segmentID))
	return a.openStream(ctx, http.MethodPost, path, nil, nil)
}

// ScrapeStatusStream watches a work's scrape job.
func (a *APIService) ScrapeStatusStream(ctx context.Context, workID int) (*Stream, error) {
	return a.OpenStream(ctx, fmt.Sprintf("/works/%d/scrape-status", workID), nil)
}

// LabStream runs an ephemeral translation and streams plain text chunks.
func (a *APIService) LabStream(ctx context.Context, req models.LabRequest) (*ChunkStream, error) {
	if strings.TrimSpace(req.Text) == "" {
		return nil, NewValidationError("Enter some text to translate.")
	}
	if req.Params == nil {
		req.Params = map[string]any{}
	}

	data, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	ctx, cancel := context.WithCancel(ctx)
	httpReq, err := a.newRequest(ctx, http.MethodPost, a.URL("/lab/stream", nil), bytes.NewReader(data))
	if err != nil {
		cancel()
		return nil, err
	}
	httpReq.Header.Set("Accept", "text/plain")

	resp, err := a.send(a.streamClient, httpReq)
	if err != nil {
		cancel()
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		defer cancel()
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return nil, newAPIError(resp.StatusCode, body)
	}

	return NewChunkStream(resp.Body, cancel), nil
}
