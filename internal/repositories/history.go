package repositories

import (
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/novelx/internal/models"
	"github.com/desertthunder/novelx/internal/shared"
)

// HistoryRepository persists [models.HistoryEntry] rows for the view router.
type HistoryRepository struct {
	db    *sql.DB
	limit int
	now   func() time.Time
}

// NewHistoryRepository creates a repository that keeps at most limit entries. A limit of zero keeps everything.
func NewHistoryRepository(db *sql.DB, limit int) *HistoryRepository {
	return &HistoryRepository{db: db, limit: limit, now: time.Now}
}

// Append records a visit to path and trims the table to the configured limit.
func (r *HistoryRepository) Append(path string) (*models.HistoryEntry, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("%w: history path is empty", shared.ErrInvalidArgument)
	}

	entry := &models.HistoryEntry{Path: path, VisitedAt: r.now().UTC()}
	err := withTx(r.db, func(tx *sql.Tx) error {
		result, err := tx.Exec(`INSERT INTO history_entries (path, visited_at) VALUES (?, ?)`, entry.Path, entry.VisitedAt)
		if err != nil {
			return fmt.Errorf("failed to insert history entry: %w", err)
		}

		id, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to get history entry id: %w", err)
		}
		entry.ID = id

		if r.limit > 0 {
			if _, err := prune(tx, r.limit); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return entry, nil
}

// Latest returns the most recent entry, or an error wrapping [shared.ErrNotFound] when there is none.
func (r *HistoryRepository) Latest() (*models.HistoryEntry, error) {
	query := `
		SELECT id, path, visited_at
		FROM history_entries
		ORDER BY visited_at DESC, id DESC
		LIMIT 1
	`

	var entry models.HistoryEntry
	err := r.db.QueryRow(query).Scan(&entry.ID, &entry.Path, &entry.VisitedAt)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("%w: no history recorded", shared.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query latest history entry: %w", err)
	}
	return &entry, nil
}

// List returns up to limit entries, newest first. A limit of zero returns every entry.
func (r *HistoryRepository) List(limit int) ([]models.HistoryEntry, error) {
	query := `
		SELECT id, path, visited_at
		FROM history_entries
		ORDER BY visited_at DESC, id DESC
	`

	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer rows.Close()

	var entries []models.HistoryEntry
	for rows.Next() {
		var e models.HistoryEntry
		if err := rows.Scan(&e.ID, &e.Path, &e.VisitedAt); err != nil {
			return nil, fmt.Errorf("failed to scan history entry: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return entries, nil
}

// Prune deletes all but the newest keep entries and returns how many were removed.
func (r *HistoryRepository) Prune(keep int) (int64, error) {
	if keep < 0 {
		return 0, fmt.Errorf("%w: keep must not be negative", shared.ErrInvalidArgument)
	}

	var removed int64
	err := withTx(r.db, func(tx *sql.Tx) error {
		n, err := prune(tx, keep)
		removed = n
		return err
	})
	return removed, err
}

// Clear deletes every entry.
func (r *HistoryRepository) Clear() error {
	if _, err := r.db.Exec(`DELETE FROM history_entries`); err != nil {
		return fmt.Errorf("failed to clear history: %w", err)
	}
	return nil
}

func prune(tx *sql.Tx, keep int) (int64, error) {
	query := `
		DELETE FROM history_entries
		WHERE id NOT IN (
			SELECT id FROM history_entries
			ORDER BY visited_at DESC, id DESC
			LIMIT ?
		)
	`

	result, err := tx.Exec(query, keep)
	if err != nil {
		return 0, fmt.Errorf("failed to prune history: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get affected rows: %w", err)
	}
	return rows, nil
}
