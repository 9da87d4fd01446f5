package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/heartline-app/relay-server/internal/store"
)

// SQLiteStore implements store.Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// New creates a new SQLite store and applies the schema.
// dbPath is the path to the SQLite database file (":memory:" for tests).
func New(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	// SQLite works best with a single connection.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

func applySchema(db *sql.DB) error {
	schema := `
	CREATE TABLE IF NOT EXISTS users (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		username      TEXT NOT NULL UNIQUE,
		email         TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		avatar_url    TEXT,
		bio           TEXT,
		created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS messages (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		sender_id    INTEGER NOT NULL REFERENCES users(id),
		receiver_id  INTEGER REFERENCES users(id),
		content      TEXT NOT NULL,
		meeting_code TEXT NOT NULL,
		timestamp    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_messages_meeting_code ON messages(meeting_code, timestamp);
	CREATE INDEX IF NOT EXISTS idx_messages_dm ON messages(sender_id, receiver_id, timestamp);
	`
	_, err := db.Exec(schema)
	return err
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ==== IdentityStore implementation ====

// CreateUser inserts a new identity with a hashed credential.
func (s *SQLiteStore) CreateUser(ctx context.Context, username, email, passwordHash string) (*store.User, error) {
	query := `
		INSERT INTO users (username, email, password_hash)
		VALUES (?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, username, email, passwordHash)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		return nil, fmt.Errorf("insert user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("get last insert id: %w", err)
	}

	return s.getUserByID(ctx, id)
}

// GetUserByUsername retrieves a user by username.
func (s *SQLiteStore) GetUserByUsername(ctx context.Context, username string) (*store.User, error) {
	query := `
		SELECT id, username, email, password_hash, COALESCE(avatar_url, ''), COALESCE(bio, ''), created_at
		FROM users
		WHERE username = ?
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, username))
}

func (s *SQLiteStore) getUserByID(ctx context.Context, id int64) (*store.User, error) {
	query := `
		SELECT id, username, email, password_hash, COALESCE(avatar_url, ''), COALESCE(bio, ''), created_at
		FROM users
		WHERE id = ?
	`
	return s.scanUser(s.db.QueryRowContext(ctx, query, id))
}

func (s *SQLiteStore) scanUser(row *sql.Row) (*store.User, error) {
	var user store.User
	err := row.Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.PasswordHash,
		&user.AvatarURL,
		&user.Bio,
		&user.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, fmt.Errorf("query user: %w", err)
	}
	return &user, nil
}

// UpdateAvatarURL sets the avatar URL for a user. Empty stores NULL.
func (s *SQLiteStore) UpdateAvatarURL(ctx context.Context, userID int64, url string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE users SET avatar_url = ? WHERE id = ?`, nullable(url), userID)
	if err != nil {
		return fmt.Errorf("update avatar_url: %w", err)
	}
	return requireAffected(result)
}

// UpdateBio sets the bio for a user. Empty stores NULL.
func (s *SQLiteStore) UpdateBio(ctx context.Context, userID int64, bio string) error {
	result, err := s.db.ExecContext(ctx, `UPDATE users SET bio = ? WHERE id = ?`, nullable(bio), userID)
	if err != nil {
		return fmt.Errorf("update bio: %w", err)
	}
	return requireAffected(result)
}

// ==== HistoryStore implementation ====

// SaveMessage persists a message.
func (s *SQLiteStore) SaveMessage(ctx context.Context, msg *store.Message) error {
	query := `
		INSERT INTO messages (sender_id, receiver_id, content, meeting_code)
		VALUES (?, ?, ?, ?)
	`
	result, err := s.db.ExecContext(ctx, query, msg.SenderID, msg.ReceiverID, msg.Content, msg.MeetingCode)
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("get last insert id: %w", err)
	}
	msg.ID = id
	return nil
}

// RoomHistory returns the most recent limit room messages, oldest first.
// The inner query selects the newest window; the outer flips it back to
// chronological order for replay.
func (s *SQLiteStore) RoomHistory(ctx context.Context, meetingCode string, limit int) ([]store.HistoryEntry, error) {
	query := `
		SELECT u.username, m.content, m.timestamp
		FROM (SELECT * FROM messages
		      WHERE meeting_code = ? AND receiver_id IS NULL
		      ORDER BY timestamp DESC, id DESC LIMIT ?) AS m
		JOIN users u ON m.sender_id = u.id
		ORDER BY m.timestamp ASC, m.id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, meetingCode, limit)
	if err != nil {
		return nil, fmt.Errorf("query room history: %w", err)
	}
	defer rows.Close()

	return scanHistory(rows)
}

// DirectHistory returns the most recent limit direct messages between two
// users in either direction, oldest first.
func (s *SQLiteStore) DirectHistory(ctx context.Context, userID1, userID2 int64, limit int) ([]store.HistoryEntry, error) {
	query := `
		SELECT u.username, m.content, m.timestamp
		FROM (SELECT * FROM messages
		      WHERE ((sender_id = ? AND receiver_id = ?) OR (sender_id = ? AND receiver_id = ?))
		            AND meeting_code = ?
		      ORDER BY timestamp DESC, id DESC LIMIT ?) AS m
		JOIN users u ON m.sender_id = u.id
		ORDER BY m.timestamp ASC, m.id ASC
	`
	rows, err := s.db.QueryContext(ctx, query, userID1, userID2, userID2, userID1, store.DirectCode, limit)
	if err != nil {
		return nil, fmt.Errorf("query direct history: %w", err)
	}
	defer rows.Close()

	return scanHistory(rows)
}

func scanHistory(rows *sql.Rows) ([]store.HistoryEntry, error) {
	var history []store.HistoryEntry
	for rows.Next() {
		var entry store.HistoryEntry
		if err := rows.Scan(&entry.SenderUsername, &entry.Content, &entry.Timestamp); err != nil {
			return nil, fmt.Errorf("scan history row: %w", err)
		}
		history = append(history, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate history rows: %w", err)
	}
	return history, nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
