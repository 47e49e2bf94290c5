package storage

import (
	"database/sql"
	"fmt"
	"os"
	"sync"
	"time"

	_ "modernc.org/sqlite"
)

// AllowedUser represents a user in the whitelist.
type AllowedUser struct {
	TelegramID int64
	AddedAt    time.Time
	AddedBy    int64
}

// AnalysisRecord is one journal row for a finished analysis round trip.
// The recommendation text itself is never stored.
type AnalysisRecord struct {
	InvocationID string
	TelegramID   int64
	Provider     string
	OK           bool
	DurationMS   int64
	CreatedAt    time.Time
}

// AnalysisStats summarizes journal rows.
type AnalysisStats struct {
	Total     int
	Succeeded int
	Failed    int
}

// Store defines the interface for bot persistence.
type Store interface {
	Close() error

	// Default provider methods (per-user /provider preference)
	GetDefaultProvider(telegramID int64) (string, error)
	SetDefaultProvider(telegramID int64, provider string) error

	// Analysis journal methods
	RecordAnalysis(rec AnalysisRecord) error
	GetAnalysisStats(telegramID int64) (*AnalysisStats, error)
	GetRecentAnalyses(telegramID int64, limit int) ([]AnalysisRecord, error)

	// Allowed users methods
	IsUserAllowed(telegramID int64) (bool, error)
	AddAllowedUser(telegramID, addedBy int64) error
	RemoveAllowedUser(telegramID int64) error
	GetAllowedUsers() ([]AllowedUser, error)
}

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db *sql.DB
	mu sync.RWMutex
}

// NewSQLiteStore creates a new SQLite-based store.
// The dbPath is the path to the SQLite database file.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Configure SQLite with WAL mode and busy timeout for better concurrency
	dsn := fmt.Sprintf("%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Set file permissions (only works on creation)
	if err := os.Chmod(dbPath, 0600); err != nil && !os.IsNotExist(err) {
		// Ignore error if file doesn't exist yet
	}

	store := &SQLiteStore{db: db}

	if err := store.init(); err != nil {
		db.Close()
		return nil, err
	}

	return store, nil
}

func (s *SQLiteStore) init() error {
	allowedUsersQuery := `
	CREATE TABLE IF NOT EXISTS allowed_users (
		telegram_id INTEGER PRIMARY KEY,
		added_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		added_by INTEGER
	);
	`
	_, err := s.db.Exec(allowedUsersQuery)
	if err != nil {
		return fmt.Errorf("failed to create allowed_users table: %w", err)
	}

	userSettingsQuery := `
	CREATE TABLE IF NOT EXISTS user_settings (
		telegram_id INTEGER PRIMARY KEY,
		default_provider TEXT
	);
	`
	_, err = s.db.Exec(userSettingsQuery)
	if err != nil {
		return fmt.Errorf("failed to create user_settings table: %w", err)
	}

	journalQuery := `
	CREATE TABLE IF NOT EXISTS analysis_journal (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		invocation_id TEXT NOT NULL,
		telegram_id INTEGER NOT NULL,
		provider TEXT NOT NULL,
		ok INTEGER NOT NULL,
		duration_ms INTEGER NOT NULL,
		created_at DATETIME NOT NULL
	);
	`
	_, err = s.db.Exec(journalQuery)
	if err != nil {
		return fmt.Errorf("failed to create analysis_journal table: %w", err)
	}

	journalIndexQuery := `
	CREATE INDEX IF NOT EXISTS idx_analysis_journal_user
	ON analysis_journal(telegram_id, created_at);
	`
	_, err = s.db.Exec(journalIndexQuery)
	if err != nil {
		return fmt.Errorf("failed to create analysis_journal index: %w", err)
	}

	return nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// GetDefaultProvider retrieves the user's preferred provider.
// Returns empty string if not set.
func (s *SQLiteStore) GetDefaultProvider(telegramID int64) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var provider sql.NullString
	err := s.db.QueryRow(
		"SELECT default_provider FROM user_settings WHERE telegram_id = ?",
		telegramID,
	).Scan(&provider)

	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query default provider: %w", err)
	}

	return provider.String, nil
}

// SetDefaultProvider sets the user's preferred provider.
func (s *SQLiteStore) SetDefaultProvider(telegramID int64, provider string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
	INSERT INTO user_settings (telegram_id, default_provider)
	VALUES (?, ?)
	ON CONFLICT(telegram_id) DO UPDATE SET
		default_provider = excluded.default_provider;
	`
	_, err := s.db.Exec(query, telegramID, provider)
	if err != nil {
		return fmt.Errorf("failed to set default provider: %w", err)
	}
	return nil
}

// RecordAnalysis appends a finished analysis to the journal.
func (s *SQLiteStore) RecordAnalysis(rec AnalysisRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	createdAt := rec.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.db.Exec(`
		INSERT INTO analysis_journal (invocation_id, telegram_id, provider, ok, duration_ms, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, rec.InvocationID, rec.TelegramID, rec.Provider, rec.OK, rec.DurationMS, createdAt)

	if err != nil {
		return fmt.Errorf("failed to record analysis: %w", err)
	}
	return nil
}

// GetAnalysisStats summarizes the journal for one user, or for all users
// when telegramID is 0.
func (s *SQLiteStore) GetAnalysisStats(telegramID int64) (*AnalysisStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT COUNT(*),
		       COALESCE(SUM(CASE WHEN ok THEN 1 ELSE 0 END), 0)
		FROM analysis_journal
	`
	args := []any{}
	if telegramID != 0 {
		query += " WHERE telegram_id = ?"
		args = append(args, telegramID)
	}

	var stats AnalysisStats
	if err := s.db.QueryRow(query, args...).Scan(&stats.Total, &stats.Succeeded); err != nil {
		return nil, fmt.Errorf("failed to query analysis stats: %w", err)
	}
	stats.Failed = stats.Total - stats.Succeeded

	return &stats, nil
}

// GetRecentAnalyses returns the newest journal rows for one user, or for
// all users when telegramID is 0.
func (s *SQLiteStore) GetRecentAnalyses(telegramID int64, limit int) ([]AnalysisRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT invocation_id, telegram_id, provider, ok, duration_ms, created_at
		FROM analysis_journal
	`
	args := []any{}
	if telegramID != 0 {
		query += " WHERE telegram_id = ?"
		args = append(args, telegramID)
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query recent analyses: %w", err)
	}
	defer rows.Close()

	var records []AnalysisRecord
	for rows.Next() {
		var rec AnalysisRecord
		if err := rows.Scan(&rec.InvocationID, &rec.TelegramID, &rec.Provider, &rec.OK, &rec.DurationMS, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan analysis record: %w", err)
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// IsUserAllowed checks if a user is in the whitelist.
func (s *SQLiteStore) IsUserAllowed(telegramID int64) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	err := s.db.QueryRow(
		"SELECT COUNT(*) FROM allowed_users WHERE telegram_id = ?",
		telegramID,
	).Scan(&count)

	if err != nil {
		return false, fmt.Errorf("failed to check allowed user: %w", err)
	}

	return count > 0, nil
}

// AddAllowedUser adds a user to the whitelist.
func (s *SQLiteStore) AddAllowedUser(telegramID, addedBy int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(`
		INSERT INTO allowed_users (telegram_id, added_by)
		VALUES (?, ?)
		ON CONFLICT(telegram_id) DO UPDATE SET
			added_by = excluded.added_by,
			added_at = CURRENT_TIMESTAMP
	`, telegramID, addedBy)

	if err != nil {
		return fmt.Errorf("failed to add allowed user: %w", err)
	}
	return nil
}

// RemoveAllowedUser removes a user from the whitelist.
func (s *SQLiteStore) RemoveAllowedUser(telegramID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec("DELETE FROM allowed_users WHERE telegram_id = ?", telegramID)
	if err != nil {
		return fmt.Errorf("failed to remove allowed user: %w", err)
	}
	return nil
}

// GetAllowedUsers returns all users in the whitelist.
func (s *SQLiteStore) GetAllowedUsers() ([]AllowedUser, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query("SELECT telegram_id, added_at, added_by FROM allowed_users ORDER BY added_at")
	if err != nil {
		return nil, fmt.Errorf("failed to query allowed users: %w", err)
	}
	defer rows.Close()

	var users []AllowedUser
	for rows.Next() {
		var user AllowedUser
		if err := rows.Scan(&user.TelegramID, &user.AddedAt, &user.AddedBy); err != nil {
			return nil, fmt.Errorf("failed to scan allowed user: %w", err)
		}
		users = append(users, user)
	}

	return users, rows.Err()
}
