package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using a local SQLite database.
type SQLiteStore struct {
	db *sqlx.DB
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore opens (or creates) a SQLite database at dbPath,
// enables WAL mode, and runs any pending schema migrations.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("opening sqlite db: %w", err)
	}

	// Every connection to :memory: is a separate database.
	if dbPath == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrent read performance.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.runMigrations(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// runMigrations checks the current schema version and applies any
// outstanding migrations in order.
func (s *SQLiteStore) runMigrations() error {
	currentVersion := 0

	// Check if schema_version table exists.
	var tableCount int
	err := s.db.Get(
		&tableCount,
		"SELECT COUNT(*) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	)
	if err != nil {
		return fmt.Errorf("checking schema_version table: %w", err)
	}

	if tableCount > 0 {
		err = s.db.Get(&currentVersion, "SELECT COALESCE(MAX(version), 0) FROM schema_version")
		if err != nil {
			return fmt.Errorf("reading schema version: %w", err)
		}
	}

	for _, m := range migrations {
		if m.version <= currentVersion {
			continue
		}
		if _, err := s.db.Exec(m.sql); err != nil {
			return fmt.Errorf("applying migration v%d: %w", m.version, err)
		}
	}

	return nil
}

const notificationColumns = `
	id, audience, kind, title, message,
	is_read, is_important,
	related_document_id, related_application_id,
	actor_name, metadata_label,
	created_at, read_at`

// CreateNotification inserts a new notification record. A missing ID or
// creation time is filled in.
func (s *SQLiteStore) CreateNotification(ctx context.Context, n Notification) (Notification, error) {
	if n.ID == "" {
		n.ID = uuid.New().String()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now()
	}
	n.CreatedAt = n.CreatedAt.UTC()
	if n.IsRead && n.ReadAt == nil {
		readAt := n.CreatedAt
		n.ReadAt = &readAt
	}

	_, err := s.db.NamedExecContext(ctx, `
		INSERT INTO notifications (`+notificationColumns+`)
		VALUES (
			:id, :audience, :kind, :title, :message,
			:is_read, :is_important,
			:related_document_id, :related_application_id,
			:actor_name, :metadata_label,
			:created_at, :read_at
		)`, n)
	if err != nil {
		return Notification{}, fmt.Errorf("creating notification: %w", err)
	}

	return n, nil
}

// GetNotification retrieves a single notification.
func (s *SQLiteStore) GetNotification(ctx context.Context, audience, id string) (*Notification, error) {
	var n Notification
	err := s.db.GetContext(ctx, &n,
		"SELECT "+notificationColumns+" FROM notifications WHERE id = ? AND audience = ?",
		id, audience,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting notification %s: %w", id, err)
	}
	return &n, nil
}

// ListNotifications retrieves notifications newest first.
func (s *SQLiteStore) ListNotifications(
	ctx context.Context,
	audience string,
	filter ListFilter,
) ([]Notification, error) {
	query := "SELECT " + notificationColumns + " FROM notifications WHERE audience = ?"
	args := []interface{}{audience}

	if filter.UnreadOnly {
		query += " AND is_read = 0"
	}
	query += " ORDER BY created_at DESC, rowid DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	notifications := []Notification{}
	if err := s.db.SelectContext(ctx, &notifications, query, args...); err != nil {
		return nil, fmt.Errorf("listing notifications: %w", err)
	}
	return notifications, nil
}

// CountNotifications returns the total number of notifications of an
// audience.
func (s *SQLiteStore) CountNotifications(ctx context.Context, audience string) (int, error) {
	var count int
	err := s.db.GetContext(ctx, &count,
		"SELECT COUNT(*) FROM notifications WHERE audience = ?", audience,
	)
	if err != nil {
		return 0, fmt.Errorf("counting notifications: %w", err)
	}
	return count, nil
}

// MarkRead marks a single notification as read. Marking an already read
// notification succeeds and keeps its first read time.
func (s *SQLiteStore) MarkRead(ctx context.Context, audience, id string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE notifications
		SET is_read = 1, read_at = COALESCE(read_at, ?)
		WHERE id = ? AND audience = ?`,
		time.Now().UTC(), id, audience,
	)
	if err != nil {
		return fmt.Errorf("marking notification %s as read: %w", id, err)
	}
	return requireAffected(res, id)
}

// MarkAllRead marks every unread notification of an audience as read and
// returns how many changed.
func (s *SQLiteStore) MarkAllRead(ctx context.Context, audience string) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE notifications
		SET is_read = 1, read_at = ?
		WHERE audience = ? AND is_read = 0`,
		time.Now().UTC(), audience,
	)
	if err != nil {
		return 0, fmt.Errorf("marking all notifications as read: %w", err)
	}
	return res.RowsAffected()
}

// DeleteNotification removes a single notification.
func (s *SQLiteStore) DeleteNotification(ctx context.Context, audience, id string) error {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM notifications WHERE id = ? AND audience = ?", id, audience,
	)
	if err != nil {
		return fmt.Errorf("deleting notification %s: %w", id, err)
	}
	return requireAffected(res, id)
}

// DeleteAll removes every notification of an audience and returns how
// many were deleted.
func (s *SQLiteStore) DeleteAll(ctx context.Context, audience string) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		"DELETE FROM notifications WHERE audience = ?", audience,
	)
	if err != nil {
		return 0, fmt.Errorf("deleting all notifications: %w", err)
	}
	return res.RowsAffected()
}

func requireAffected(res sql.Result, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reading affected rows for %s: %w", id, err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
