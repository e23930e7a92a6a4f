package database

import (
	"database/sql"
	"errors"
	"fmt"

	"tidy-go/internal/database/migrations"
	"tidy-go/internal/tidy"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

// SQLiteLedger implements the tidy.Ledger interface using SQLite. It is the
// durable store: entries and restorable metadata survive process restarts.
type SQLiteLedger struct {
	db   *sql.DB
	path string
}

// NewSQLiteLedger opens (and migrates) a SQLite ledger.
// path can be a file path or ":memory:" for an in-memory database.
func NewSQLiteLedger(path string) (*SQLiteLedger, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}

	if err := migrations.MigrateUp(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating ledger: %w", err)
	}

	return &SQLiteLedger{db: db, path: path}, nil
}

// OpenConnection opens and configures a SQLite connection with appropriate
// PRAGMAs. Exported for tools and tests that need a properly configured
// connection.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Enable foreign key constraints (SQLite default is OFF for backward compatibility)
	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	return db, nil
}

// Append records an entry, its operations and its restorable items in a
// single transaction.
func (l *SQLiteLedger) Append(entry *tidy.HistoryEntry) error {
	tx, err := l.db.Begin()
	if err != nil {
		return fmt.Errorf("starting transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(
		`INSERT INTO history_entries (id, operation, base_dir, success, undone, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Operation, entry.BaseDir, entry.Success, entry.Undone, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting entry: %w", err)
	}

	for i, op := range entry.Operations {
		_, err = tx.Exec(
			`INSERT INTO mutation_operations (id, entry_id, position, kind, source, destination, dest_existed, succeeded, error)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			op.ID, entry.ID, i, string(op.Kind), op.Source, op.Destination, op.DestinationExisted, op.Succeeded, op.Error,
		)
		if err != nil {
			return fmt.Errorf("inserting operation %d: %w", i, err)
		}
	}

	for _, item := range entry.Restorables {
		_, err = tx.Exec(
			`INSERT INTO restorable_items (id, entry_id, quarantine_path, original_path, content_hash, size, deleted_at, state)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			item.ID, entry.ID, item.QuarantinePath, item.OriginalPath, item.Hash, item.Size, item.DeletedAt, item.State,
		)
		if err != nil {
			return fmt.Errorf("inserting restorable item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	return nil
}

// Entries returns the most recent entries, newest first.
// limit <= 0 means no limit.
func (l *SQLiteLedger) Entries(limit int) ([]*tidy.HistoryEntry, error) {
	query := `SELECT id, operation, base_dir, success, undone, created_at
	          FROM history_entries ORDER BY seq DESC`
	args := []any{}
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := l.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying entries: %w", err)
	}
	defer rows.Close()

	var entries []*tidy.HistoryEntry
	for rows.Next() {
		var e tidy.HistoryEntry
		if err := rows.Scan(&e.ID, &e.Operation, &e.BaseDir, &e.Success, &e.Undone, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning entry: %w", err)
		}
		entries = append(entries, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating entries: %w", err)
	}

	for _, e := range entries {
		if err := l.loadEntryDetails(e); err != nil {
			return nil, err
		}
	}
	return entries, nil
}

// Latest returns the newest entry, or nil if the ledger is empty.
func (l *SQLiteLedger) Latest() (*tidy.HistoryEntry, error) {
	entries, err := l.Entries(1)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, nil
	}
	return entries[0], nil
}

// loadEntryDetails fills in an entry's operations and restorable items.
func (l *SQLiteLedger) loadEntryDetails(e *tidy.HistoryEntry) error {
	rows, err := l.db.Query(
		`SELECT id, kind, source, destination, dest_existed, succeeded, error
		 FROM mutation_operations WHERE entry_id = ? ORDER BY position`,
		e.ID,
	)
	if err != nil {
		return fmt.Errorf("querying operations: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var op tidy.MutationOperation
		var kind string
		if err := rows.Scan(&op.ID, &kind, &op.Source, &op.Destination, &op.DestinationExisted, &op.Succeeded, &op.Error); err != nil {
			return fmt.Errorf("scanning operation: %w", err)
		}
		op.Kind = tidy.OperationKind(kind)
		e.Operations = append(e.Operations, op)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterating operations: %w", err)
	}

	itemRows, err := l.db.Query(
		`SELECT id, quarantine_path, original_path, content_hash, size, deleted_at, state
		 FROM restorable_items WHERE entry_id = ? ORDER BY deleted_at`,
		e.ID,
	)
	if err != nil {
		return fmt.Errorf("querying restorable items: %w", err)
	}
	defer itemRows.Close()

	for itemRows.Next() {
		item := tidy.RestorableItem{EntryID: e.ID}
		if err := itemRows.Scan(&item.ID, &item.QuarantinePath, &item.OriginalPath, &item.Hash, &item.Size, &item.DeletedAt, &item.State); err != nil {
			return fmt.Errorf("scanning restorable item: %w", err)
		}
		e.Restorables = append(e.Restorables, item)
	}
	if err := itemRows.Err(); err != nil {
		return fmt.Errorf("iterating restorable items: %w", err)
	}
	return nil
}

// MarkUndone sets the undone flag on an entry.
func (l *SQLiteLedger) MarkUndone(entryID string) error {
	return l.setUndone(entryID, true)
}

// MarkRedone clears the undone flag on an entry.
func (l *SQLiteLedger) MarkRedone(entryID string) error {
	return l.setUndone(entryID, false)
}

func (l *SQLiteLedger) setUndone(entryID string, undone bool) error {
	res, err := l.db.Exec("UPDATE history_entries SET undone = ? WHERE id = ?", undone, entryID)
	if err != nil {
		return fmt.Errorf("updating entry: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("unknown entry: %s", entryID)
	}
	return nil
}

// ListRestorables returns quarantined items, newest first. When
// includeResolved is true, restored and purged items are included.
func (l *SQLiteLedger) ListRestorables(includeResolved bool) ([]*tidy.RestorableItem, error) {
	query := `SELECT id, entry_id, quarantine_path, original_path, content_hash, size, deleted_at, state
	          FROM restorable_items`
	if !includeResolved {
		query += " WHERE state = 'quarantined'"
	}
	query += " ORDER BY deleted_at DESC"

	rows, err := l.db.Query(query)
	if err != nil {
		return nil, fmt.Errorf("querying restorable items: %w", err)
	}
	defer rows.Close()

	var items []*tidy.RestorableItem
	for rows.Next() {
		var item tidy.RestorableItem
		if err := rows.Scan(&item.ID, &item.EntryID, &item.QuarantinePath, &item.OriginalPath, &item.Hash, &item.Size, &item.DeletedAt, &item.State); err != nil {
			return nil, fmt.Errorf("scanning restorable item: %w", err)
		}
		items = append(items, &item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating restorable items: %w", err)
	}
	return items, nil
}

// FindRestorable returns the item with the given ID, or nil if unknown.
func (l *SQLiteLedger) FindRestorable(itemID string) (*tidy.RestorableItem, error) {
	row := l.db.QueryRow(
		`SELECT id, entry_id, quarantine_path, original_path, content_hash, size, deleted_at, state
		 FROM restorable_items WHERE id = ?`,
		itemID,
	)

	var item tidy.RestorableItem
	err := row.Scan(&item.ID, &item.EntryID, &item.QuarantinePath, &item.OriginalPath, &item.Hash, &item.Size, &item.DeletedAt, &item.State)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil // Not found
		}
		return nil, fmt.Errorf("finding restorable item: %w", err)
	}
	return &item, nil
}

// MarkRestored records that an item was moved back to its original path.
func (l *SQLiteLedger) MarkRestored(itemID string) error {
	return l.setItemState(itemID, tidy.RestorableRestored)
}

// MarkQuarantined records that a previously restored item was re-quarantined.
func (l *SQLiteLedger) MarkQuarantined(itemID string) error {
	return l.setItemState(itemID, tidy.RestorableQuarantined)
}

// MarkPurged records that an item's quarantined copy was permanently deleted.
func (l *SQLiteLedger) MarkPurged(itemID string) error {
	return l.setItemState(itemID, tidy.RestorablePurged)
}

// UpdateQuarantinePath repoints an item at a new quarantine location.
func (l *SQLiteLedger) UpdateQuarantinePath(itemID, quarantinePath string) error {
	res, err := l.db.Exec("UPDATE restorable_items SET quarantine_path = ? WHERE id = ?", quarantinePath, itemID)
	if err != nil {
		return fmt.Errorf("updating restorable item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("unknown restorable item: %s", itemID)
	}
	return nil
}

func (l *SQLiteLedger) setItemState(itemID string, state string) error {
	res, err := l.db.Exec("UPDATE restorable_items SET state = ? WHERE id = ?", state, itemID)
	if err != nil {
		return fmt.Errorf("updating restorable item: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking update: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("unknown restorable item: %s", itemID)
	}
	return nil
}

// Path returns the database file path (or ":memory:").
func (l *SQLiteLedger) Path() string {
	return l.path
}

// CheckMigrations verifies the ledger schema is up-to-date.
func (l *SQLiteLedger) CheckMigrations() error {
	return migrations.CheckDBMigrationStatus(l.db)
}

// Close closes the database connection.
func (l *SQLiteLedger) Close() error {
	if l.db != nil {
		return l.db.Close()
	}
	return nil
}

// Compile-time check that SQLiteLedger implements tidy.Ledger
var _ tidy.Ledger = (*SQLiteLedger)(nil)
