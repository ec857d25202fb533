package stubserver

import (
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("not found")

// Store wraps a SQLite database holding users, knowledge and conversations.
type Store struct {
	db *sql.DB
}

// Open opens (or creates) a SQLite database in dataDir and runs pending
// migrations. Pass ":memory:" as dataDir for an in-memory database (used by
// tests).
func Open(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == ":memory:" {
		dsn = ":memory:"
	} else {
		if err := os.MkdirAll(dataDir, 0o755); err != nil {
			return nil, fmt.Errorf("creating data directory: %w", err)
		}
		dsn = filepath.Join(dataDir, "vozterm.db")
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	// Limit to single connection to avoid "database is locked" errors.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting journal mode: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
	)`); err != nil {
		return fmt.Errorf("creating schema_version table: %w", err)
	}

	entries, err := migrationsFS.ReadDir("migrations")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name() < entries[j].Name()
	})

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".sql") {
			continue
		}

		version, err := parseMigrationVersion(entry.Name())
		if err != nil {
			return err
		}

		var exists int
		if err := s.db.QueryRow("SELECT COUNT(*) FROM schema_version WHERE version = ?", version).Scan(&exists); err != nil {
			return fmt.Errorf("checking migration %d: %w", version, err)
		}
		if exists > 0 {
			continue
		}

		content, err := migrationsFS.ReadFile("migrations/" + entry.Name())
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", entry.Name(), err)
		}

		tx, err := s.db.Begin()
		if err != nil {
			return fmt.Errorf("starting migration %d: %w", version, err)
		}
		if _, err := tx.Exec(string(content)); err != nil {
			tx.Rollback()
			return fmt.Errorf("applying migration %d: %w", version, err)
		}
		if _, err := tx.Exec("INSERT INTO schema_version (version) VALUES (?)", version); err != nil {
			tx.Rollback()
			return fmt.Errorf("recording migration %d: %w", version, err)
		}
		if err := tx.Commit(); err != nil {
			return fmt.Errorf("committing migration %d: %w", version, err)
		}
	}

	return nil
}

func parseMigrationVersion(name string) (int, error) {
	base := strings.SplitN(name, "_", 2)[0]
	version, err := strconv.Atoi(base)
	if err != nil {
		return 0, fmt.Errorf("migration %s: version prefix is not numeric", name)
	}
	return version, nil
}

// UserRecord is one row of the users table.
type UserRecord struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	IsAdmin      bool
	Preferences  map[string]any
}

// CreateUser inserts a new account. The first registered account becomes an
// admin.
func (s *Store) CreateUser(username, email, passwordHash string) (UserRecord, error) {
	var count int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM users").Scan(&count); err != nil {
		return UserRecord{}, fmt.Errorf("counting users: %w", err)
	}

	user := UserRecord{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		IsAdmin:      count == 0,
		Preferences:  map[string]any{},
	}
	_, err := s.db.Exec(
		"INSERT INTO users (id, username, email, password_hash, is_admin, preferences) VALUES (?, ?, ?, ?, ?, '{}')",
		user.ID, user.Username, user.Email, user.PasswordHash, user.IsAdmin,
	)
	if err != nil {
		return UserRecord{}, fmt.Errorf("inserting user: %w", err)
	}
	return user, nil
}

// UserByUsername looks an account up for login.
func (s *Store) UserByUsername(username string) (UserRecord, error) {
	return s.scanUser("SELECT id, username, email, password_hash, is_admin, preferences FROM users WHERE username = ?", username)
}

// UserByID looks an account up for profile and auth checks.
func (s *Store) UserByID(id string) (UserRecord, error) {
	return s.scanUser("SELECT id, username, email, password_hash, is_admin, preferences FROM users WHERE id = ?", id)
}

func (s *Store) scanUser(query string, arg any) (UserRecord, error) {
	var user UserRecord
	var prefsJSON string
	err := s.db.QueryRow(query, arg).Scan(&user.ID, &user.Username, &user.Email, &user.PasswordHash, &user.IsAdmin, &prefsJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return UserRecord{}, ErrNotFound
	}
	if err != nil {
		return UserRecord{}, fmt.Errorf("querying user: %w", err)
	}
	if err := json.Unmarshal([]byte(prefsJSON), &user.Preferences); err != nil {
		user.Preferences = map[string]any{}
	}
	return user, nil
}

// SavePreferences replaces an account's preference blob.
func (s *Store) SavePreferences(userID string, prefs map[string]any) error {
	data, err := json.Marshal(prefs)
	if err != nil {
		return fmt.Errorf("encoding preferences: %w", err)
	}
	_, err = s.db.Exec("UPDATE users SET preferences = ? WHERE id = ?", string(data), userID)
	if err != nil {
		return fmt.Errorf("updating preferences: %w", err)
	}
	return nil
}

// KnowledgeRecord is one row of the knowledge table. Query is stored
// normalized (lowercase, trimmed).
type KnowledgeRecord struct {
	ID         string
	Query      string
	Response   string
	Source     string
	Confidence *float64
	UpdatedAt  time.Time
}

// FindKnowledge looks a normalized query up in the knowledge base.
func (s *Store) FindKnowledge(query string) (KnowledgeRecord, error) {
	return s.scanKnowledge("SELECT id, query, response, source, confidence, updated_at FROM knowledge WHERE query = ?", NormalizeQuery(query))
}

// KnowledgeByID fetches one knowledge record.
func (s *Store) KnowledgeByID(id string) (KnowledgeRecord, error) {
	return s.scanKnowledge("SELECT id, query, response, source, confidence, updated_at FROM knowledge WHERE id = ?", id)
}

func (s *Store) scanKnowledge(query string, arg any) (KnowledgeRecord, error) {
	var rec KnowledgeRecord
	err := s.db.QueryRow(query, arg).Scan(&rec.ID, &rec.Query, &rec.Response, &rec.Source, &rec.Confidence, &rec.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return KnowledgeRecord{}, ErrNotFound
	}
	if err != nil {
		return KnowledgeRecord{}, fmt.Errorf("querying knowledge: %w", err)
	}
	return rec, nil
}

// SaveKnowledge inserts or replaces the answer for a normalized query.
func (s *Store) SaveKnowledge(query, response, source string, confidence *float64) (KnowledgeRecord, error) {
	normalized := NormalizeQuery(query)

	existing, err := s.FindKnowledge(normalized)
	if err == nil {
		_, err = s.db.Exec(
			"UPDATE knowledge SET response = ?, source = ?, confidence = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?",
			response, source, confidence, existing.ID,
		)
		if err != nil {
			return KnowledgeRecord{}, fmt.Errorf("updating knowledge: %w", err)
		}
		return s.KnowledgeByID(existing.ID)
	}
	if !errors.Is(err, ErrNotFound) {
		return KnowledgeRecord{}, err
	}

	rec := KnowledgeRecord{
		ID:         uuid.NewString(),
		Query:      normalized,
		Response:   response,
		Source:     source,
		Confidence: confidence,
	}
	_, err = s.db.Exec(
		"INSERT INTO knowledge (id, query, response, source, confidence) VALUES (?, ?, ?, ?, ?)",
		rec.ID, rec.Query, rec.Response, rec.Source, rec.Confidence,
	)
	if err != nil {
		return KnowledgeRecord{}, fmt.Errorf("inserting knowledge: %w", err)
	}
	return rec, nil
}

// TouchKnowledge refreshes a record's response and update timestamp.
func (s *Store) TouchKnowledge(id, response string) error {
	res, err := s.db.Exec("UPDATE knowledge SET response = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?", response, id)
	if err != nil {
		return fmt.Errorf("updating knowledge: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteKnowledge removes one record, reporting whether it existed.
func (s *Store) DeleteKnowledge(id string) (bool, error) {
	res, err := s.db.Exec("DELETE FROM knowledge WHERE id = ?", id)
	if err != nil {
		return false, fmt.Errorf("deleting knowledge: %w", err)
	}
	affected, _ := res.RowsAffected()
	return affected > 0, nil
}

// ListKnowledge pages through the knowledge base, newest first.
func (s *Store) ListKnowledge(page, limit int) ([]KnowledgeRecord, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}

	var total int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM knowledge").Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting knowledge: %w", err)
	}

	rows, err := s.db.Query(
		"SELECT id, query, response, source, confidence, updated_at FROM knowledge ORDER BY updated_at DESC LIMIT ? OFFSET ?",
		limit, (page-1)*limit,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("listing knowledge: %w", err)
	}
	defer rows.Close()

	var records []KnowledgeRecord
	for rows.Next() {
		var rec KnowledgeRecord
		if err := rows.Scan(&rec.ID, &rec.Query, &rec.Response, &rec.Source, &rec.Confidence, &rec.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("scanning knowledge: %w", err)
		}
		records = append(records, rec)
	}
	return records, total, rows.Err()
}

// StaleKnowledge returns the least recently updated records.
func (s *Store) StaleKnowledge(limit int) ([]KnowledgeRecord, error) {
	rows, err := s.db.Query(
		"SELECT id, query, response, source, confidence, updated_at FROM knowledge ORDER BY updated_at ASC LIMIT ?", limit,
	)
	if err != nil {
		return nil, fmt.Errorf("listing stale knowledge: %w", err)
	}
	defer rows.Close()

	var records []KnowledgeRecord
	for rows.Next() {
		var rec KnowledgeRecord
		if err := rows.Scan(&rec.ID, &rec.Query, &rec.Response, &rec.Source, &rec.Confidence, &rec.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning knowledge: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ClearKnowledge wipes the knowledge table.
func (s *Store) ClearKnowledge() error {
	_, err := s.db.Exec("DELETE FROM knowledge")
	if err != nil {
		return fmt.Errorf("clearing knowledge: %w", err)
	}
	return nil
}

// ConversationRecord is one stored query/response exchange.
type ConversationRecord struct {
	ID          string
	UserID      string
	Query       string
	Response    string
	Source      string
	Confidence  *float64
	KnowledgeID string
	Feedback    int
	CreatedAt   time.Time
}

// SaveConversation records an answered query for a logged-in user.
func (s *Store) SaveConversation(rec ConversationRecord) (ConversationRecord, error) {
	rec.ID = uuid.NewString()
	rec.CreatedAt = time.Now().UTC()
	_, err := s.db.Exec(
		"INSERT INTO conversations (id, user_id, query, response, source, confidence, knowledge_id, feedback, created_at) VALUES (?, ?, ?, ?, ?, ?, ?, 0, ?)",
		rec.ID, rec.UserID, rec.Query, rec.Response, rec.Source, rec.Confidence, nullable(rec.KnowledgeID), rec.CreatedAt,
	)
	if err != nil {
		return ConversationRecord{}, fmt.Errorf("inserting conversation: %w", err)
	}
	return rec, nil
}

// History pages a user's conversations, newest first.
func (s *Store) History(userID string, limit, offset int) ([]ConversationRecord, int, error) {
	if limit < 1 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}

	var total int
	if err := s.db.QueryRow("SELECT COUNT(*) FROM conversations WHERE user_id = ?", userID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting conversations: %w", err)
	}

	rows, err := s.db.Query(
		"SELECT id, user_id, query, response, source, confidence, COALESCE(knowledge_id, ''), feedback, created_at FROM conversations WHERE user_id = ? ORDER BY created_at DESC LIMIT ? OFFSET ?",
		userID, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("listing conversations: %w", err)
	}
	defer rows.Close()

	var records []ConversationRecord
	for rows.Next() {
		var rec ConversationRecord
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Query, &rec.Response, &rec.Source, &rec.Confidence, &rec.KnowledgeID, &rec.Feedback, &rec.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scanning conversation: %w", err)
		}
		records = append(records, rec)
	}
	return records, total, rows.Err()
}

// SetFeedback stores a +1/-1 vote on a user's own conversation.
func (s *Store) SetFeedback(userID, conversationID string, feedback int) error {
	res, err := s.db.Exec(
		"UPDATE conversations SET feedback = ? WHERE id = ? AND user_id = ?",
		feedback, conversationID, userID,
	)
	if err != nil {
		return fmt.Errorf("updating feedback: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

// NormalizeQuery folds a query for knowledge lookups.
func NormalizeQuery(query string) string {
	return strings.ToLower(strings.TrimSpace(query))
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
