// Package ui implements an interactive terminal interface using bubbletea's Elm architecture.
//
// Views follow the routes resolved by [router.Resolve]:
//  1. works list : search, page through, and import works
//  2. work detail : chapter and group listing, selection, scrape jobs, prompt assignment, export
//  3. chapter detail : the streamed translation with segment retranslation, explanations, and prompt overrides
//  4. prompts : prompt metadata, the latest version, and version history
//
// The prompt lab opens over any view and compares models side by side.
//
// The (view) [Model] implements bubbletea/Elm's standard Init/Update/View pattern, receiving messages via the Msg union type.
// Fetchers and streams from package tasks run in the background; their settled states and snapshots arrive as messages
// tagged with the generation of the view that asked for them, so leaving a view drops its late results.
// Batch imports and exports report progress through a channel from the tasks Engine.
//
// Keyboard navigation uses vim-style bindings (j/k, enter, esc, y/n, q) with contextual help displayed via charmbracelet/bubbles/help.
package ui
