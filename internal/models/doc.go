// Package models defines the entities exchanged with the works/translation backend and the client-local state derived from them.
//
// The package contains three categories of types:
//
// 1. API records mirrored from the backend schema
//   - [Work], [Chapter], [ChapterDetail] : Serialized text sources and their chapters
//   - [ChapterGroup], [ChapterGroupDetail] : Named runs of chapters rolled up into one entry
//   - [Prompt], [PromptDetail], [PromptVersion] : Reusable LLM prompt templates with append-only versions
//   - [ModelInfo] : Supported LLM models
//
// 2. Client-local state
//   - [Segment] : One translated span of a chapter, built up from stream events
//   - [ScrapeState] : Progress of a backend scrape job
//
// 3. Persistent entities
//   - [HistoryEntry] : A visited path in the navigation history
//
// The client never owns an authoritative copy of any API record; every record is refetched on demand.
package models
