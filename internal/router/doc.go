// Package router maps reader paths to views and keeps the navigation history.
//
// Paths look like the backend's resource paths (/works/12/chapters/7) so a location can be typed, persisted
// and resumed. [Resolve] turns a path into a [Route]; [History] is the back stack the TUI navigates with,
// optionally persisted through a [HistoryStore].
package router
