// Package store provides SQL-backed persistence for users and their query
// history. SQLite is the default backend; Postgres and MySQL are selectable
// by configuration and share the same schema and queries.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("not found")
	// ErrNotOwner is returned when a row exists but belongs to another user.
	ErrNotOwner = errors.New("not owned by user")
	// ErrDuplicateEmail is returned when registering an email that is taken.
	ErrDuplicateEmail = errors.New("email already registered")
)

// MaxPageSize caps the page size of history listings.
const MaxPageSize = 50

// User is a registered account.
type User struct {
	ID           string
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// Interaction is one persisted query/response pair. Rows are append-only:
// created once after a completed generation, never updated.
type Interaction struct {
	ID        string          `json:"id"`
	UserID    string          `json:"-"`
	Query     string          `json:"query"`
	Response  string          `json:"response"`
	Metadata  json.RawMessage `json:"metadata"`
	CreatedAt time.Time       `json:"createdAt"`
}

// Store wraps a SQL database for user and history persistence.
type Store struct {
	db     *sql.DB
	driver string
}

// driverName maps the configured backend to its database/sql driver.
func driverName(driver string) (string, error) {
	switch driver {
	case "sqlite":
		return "sqlite", nil
	case "postgres":
		return "pgx", nil
	case "mysql":
		return "mysql", nil
	default:
		return "", fmt.Errorf("unsupported database driver: %q", driver)
	}
}

// NewStore opens the database selected by driver ("sqlite", "postgres" or
// "mysql") at uri and ensures all required tables exist. Use ":memory:" with
// the sqlite driver for an in-memory database.
func NewStore(driver, uri string) (*Store, error) {
	name, err := driverName(driver)
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(name, uri)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if driver == "sqlite" {
		// A single connection keeps in-memory databases coherent and
		// serializes writers.
		db.SetMaxOpenConns(1)
	}

	s := &Store{db: db, driver: driver}
	if err := s.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("create tables: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createTables() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id            VARCHAR(36) PRIMARY KEY,
			username      VARCHAR(50) NOT NULL,
			email         VARCHAR(255) NOT NULL UNIQUE,
			password_hash VARCHAR(100) NOT NULL,
			created_at    TIMESTAMP NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS interactions (
			id         VARCHAR(36) PRIMARY KEY,
			user_id    VARCHAR(36) NOT NULL,
			query      TEXT NOT NULL,
			response   TEXT NOT NULL,
			metadata   TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL
		)`,
	}
	// MySQL has no IF NOT EXISTS for indexes, so the index rides along only
	// for the other backends.
	if s.driver != "mysql" {
		stmts = append(stmts,
			`CREATE INDEX IF NOT EXISTS idx_interactions_user_created
				ON interactions (user_id, created_at)`)
	}
	for _, stmt := range stmts {
		if _, err := s.db.Exec(s.rebind(stmt)); err != nil {
			return fmt.Errorf("exec %q: %w", stmt[:40], err)
		}
	}
	return nil
}

// rebind converts ?-style placeholders to the $N style Postgres expects.
// SQLite and MySQL take ? natively.
func (s *Store) rebind(query string) string {
	if s.driver != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			fmt.Fprintf(&b, "$%d", n)
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// CreateUser inserts a new user with a fresh id. Returns ErrDuplicateEmail
// if the email is already registered. The UNIQUE constraint on email is the
// arbiter, so concurrent registrations of the same address cannot both
// succeed.
func (s *Store) CreateUser(ctx context.Context, username, email, passwordHash string) (*User, error) {
	u := &User{
		ID:           uuid.NewString(),
		Username:     username,
		Email:        email,
		PasswordHash: passwordHash,
		CreatedAt:    time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO users (id, username, email, password_hash, created_at)
		 VALUES (?, ?, ?, ?, ?)`),
		u.ID, u.Username, u.Email, u.PasswordHash, u.CreatedAt,
	)
	if isDuplicate(err) {
		return nil, ErrDuplicateEmail
	}
	if err != nil {
		return nil, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

// isDuplicate reports whether err is a unique-constraint violation. The
// three drivers surface it with different messages and no shared error type.
func isDuplicate(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") ||
		strings.Contains(msg, "duplicate entry") ||
		strings.Contains(msg, "23505")
}

// UserByEmail retrieves a user by email. Returns ErrNotFound if absent.
func (s *Store) UserByEmail(ctx context.Context, email string) (*User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, s.rebind(
		`SELECT id, username, email, password_hash, created_at
		 FROM users WHERE email = ?`), email))
}

// UserByID retrieves a user by id. Returns ErrNotFound if absent.
func (s *Store) UserByID(ctx context.Context, id string) (*User, error) {
	return s.scanUser(s.db.QueryRowContext(ctx, s.rebind(
		`SELECT id, username, email, password_hash, created_at
		 FROM users WHERE id = ?`), id))
}

func (s *Store) scanUser(row *sql.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.Email, &u.PasswordHash, &u.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return &u, nil
}

// InsertInteraction records one completed query/response pair for a user.
func (s *Store) InsertInteraction(ctx context.Context, userID, query, response string, metadata json.RawMessage) (*Interaction, error) {
	if len(metadata) == 0 {
		metadata = json.RawMessage(`{}`)
	}
	in := &Interaction{
		ID:        uuid.NewString(),
		UserID:    userID,
		Query:     query,
		Response:  response,
		Metadata:  metadata,
		CreatedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx, s.rebind(
		`INSERT INTO interactions (id, user_id, query, response, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`),
		in.ID, in.UserID, in.Query, in.Response, string(in.Metadata), in.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert interaction: %w", err)
	}
	return in, nil
}

// ListInteractions returns one page of a user's history, newest first,
// together with the total row count for that user. Page numbering starts at
// 1; limit is clamped to MaxPageSize. A page past the end yields an empty
// slice, not an error.
func (s *Store) ListInteractions(ctx context.Context, userID string, page, limit int) ([]Interaction, int, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}

	var total int
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT COUNT(*) FROM interactions WHERE user_id = ?`), userID,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count interactions: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT id, user_id, query, response, metadata, created_at
		 FROM interactions WHERE user_id = ?
		 ORDER BY created_at DESC, id
		 LIMIT ? OFFSET ?`),
		userID, limit, (page-1)*limit,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("list interactions: %w", err)
	}
	defer rows.Close()

	items, err := scanInteractions(rows)
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

// RecentInteractions returns the user's latest interactions, newest first.
func (s *Store) RecentInteractions(ctx context.Context, userID string, limit int) ([]Interaction, error) {
	rows, err := s.db.QueryContext(ctx, s.rebind(
		`SELECT id, user_id, query, response, metadata, created_at
		 FROM interactions WHERE user_id = ?
		 ORDER BY created_at DESC, id
		 LIMIT ?`),
		userID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("recent interactions: %w", err)
	}
	defer rows.Close()

	return scanInteractions(rows)
}

// InteractionForUser retrieves one interaction, enforcing ownership.
// Returns ErrNotFound if the id is unknown and ErrNotOwner if the row
// belongs to a different user.
func (s *Store) InteractionForUser(ctx context.Context, id, userID string) (*Interaction, error) {
	var in Interaction
	var metadata string
	err := s.db.QueryRowContext(ctx, s.rebind(
		`SELECT id, user_id, query, response, metadata, created_at
		 FROM interactions WHERE id = ?`), id,
	).Scan(&in.ID, &in.UserID, &in.Query, &in.Response, &metadata, &in.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get interaction: %w", err)
	}
	if in.UserID != userID {
		return nil, ErrNotOwner
	}
	in.Metadata = json.RawMessage(metadata)
	return &in, nil
}

// DeleteInteraction removes one interaction after an ownership check.
// Deleting an already-deleted id returns ErrNotFound.
func (s *Store) DeleteInteraction(ctx context.Context, id, userID string) error {
	if _, err := s.InteractionForUser(ctx, id, userID); err != nil {
		return err
	}
	if _, err := s.db.ExecContext(ctx, s.rebind(
		`DELETE FROM interactions WHERE id = ?`), id); err != nil {
		return fmt.Errorf("delete interaction: %w", err)
	}
	return nil
}

// DeleteAllInteractions removes every interaction belonging to the user and
// returns how many rows were removed.
func (s *Store) DeleteAllInteractions(ctx context.Context, userID string) (int64, error) {
	res, err := s.db.ExecContext(ctx, s.rebind(
		`DELETE FROM interactions WHERE user_id = ?`), userID)
	if err != nil {
		return 0, fmt.Errorf("delete all interactions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("rows affected: %w", err)
	}
	return n, nil
}

func scanInteractions(rows *sql.Rows) ([]Interaction, error) {
	var items []Interaction
	for rows.Next() {
		var in Interaction
		var metadata string
		if err := rows.Scan(&in.ID, &in.UserID, &in.Query, &in.Response, &metadata, &in.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan interaction: %w", err)
		}
		in.Metadata = json.RawMessage(metadata)
		items = append(items, in)
	}
	return items, rows.Err()
}
