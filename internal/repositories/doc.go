// Package repositories implements SQLite persistence for the client.
//
// Key Implementations:
//   - [HistoryRepository] : Visited reader paths, newest first, trimmed to a configured limit
//
// Tables are created by the embedded migrations in package shared; see [shared.RunMigrations].
package repositories
