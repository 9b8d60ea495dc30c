// Package tasks holds the client-side state machines behind the reader and the batch commands.
//
// # Fetchers
//
// [Resource] wraps a fetch function keyed by its inputs. Only the result of the most recent Load is
// committed; older in-flight fetches are cancelled and their results dropped. After Close nothing is
// committed. The constructors in fetchers.go bind it to works, chapters, translations, prompts and models.
//
// # Streams
//
//   - [TranslationStream] : chapter translation over SSE, with pause/resume, per-segment retranslation
//     and reset
//   - [Explanation] : one segment explanation at a time
//   - [ScrapeWatcher] : scrape job status for a work
//   - [Lab] : the same text through several model/template lanes
//
// Each consumer guards its state with a mutex and publishes snapshots on a buffered channel where a
// newer snapshot replaces an undelivered one, so a slow view never blocks a stream.
//
// # Editing
//
// [PromptOverride] manages an unsaved prompt draft against the work's assigned prompt and mints the
// override token for a single translation run. [Selection] tracks chapters picked from a listing.
//
// # Batch Operations
//
// [Engine] implements [BatchEngine]:
//
//  1. [BatchEngine.Import] : import works from their source URLs
//  2. [BatchEngine.Export] : write chapter translations to disk with [BulkExport]
//     - rate-limited fetches feeding a worker pool
//     - per-chapter failures are recorded, not fatal
//     - a JSON manifest summarizes the run
//
// Progress is reported with [ProgressUpdate] values sent with select/default so reporting never blocks.
package tasks
