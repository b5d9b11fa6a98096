package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	log "log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	"valuebot/internal/domain"
)

type dialect int

const (
	dialectSQLite dialect = iota
	dialectPostgres
)

// SQLStore implements Repository on database/sql (SQLite or PostgreSQL).
type SQLStore struct {
	db      *sql.DB
	dialect dialect
	now     func() time.Time
}

// Open picks a driver from databaseURL: postgres:// and postgresql:// URLs go
// to PostgreSQL, anything else is a SQLite path (optionally sqlite:// or file:).
func Open(databaseURL string) (*SQLStore, error) {
	switch {
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return NewPostgres(databaseURL)
	default:
		return NewSQLite(databaseURL)
	}
}

// NewSQLite opens (and creates) a SQLite database at dbPath.
func NewSQLite(dbPath string) (*SQLStore, error) {
	dbPath = strings.TrimPrefix(dbPath, "sqlite://")
	dbPath = strings.TrimPrefix(dbPath, "file:")
	if dbPath == "" {
		return nil, errors.New("empty sqlite path")
	}
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create database directory: %w", err)
	}

	dsn := dbPath + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	return newSQLStore(db, dialectSQLite)
}

// NewPostgres connects to a PostgreSQL database.
func NewPostgres(url string) (*SQLStore, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	return newSQLStore(db, dialectPostgres)
}

func newSQLStore(db *sql.DB, d dialect) (*SQLStore, error) {
	s := &SQLStore{db: db, dialect: d, now: time.Now}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if err := s.initSchema(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLStore) initSchema(ctx context.Context) error {
	id := "id INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.dialect == dialectPostgres {
		id = "id BIGSERIAL PRIMARY KEY"
	}

	stmts := []string{
		`CREATE TABLE IF NOT EXISTS user_values (
			` + id + `,
			user_id BIGINT NOT NULL,
			value VARCHAR(255) NOT NULL,
			source_ref TEXT,
			created_at BIGINT NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_user_values_user ON user_values(user_id, created_at)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_user_values_source_ref ON user_values(source_ref)`,
	}
	for _, q := range stmts {
		if _, err := s.db.ExecContext(ctx, q); err != nil {
			return fmt.Errorf("create schema: %w", err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders for PostgreSQL.
func (s *SQLStore) rebind(query string) string {
	if s.dialect != dialectPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// InsertValue stores a new value.
func (s *SQLStore) InsertValue(ctx context.Context, v domain.NewValue) (*domain.UserValue, bool, error) {
	value, err := domain.NormalizeValue(v.Value)
	if err != nil {
		return nil, false, err
	}

	var ref interface{}
	if v.SourceRef != "" {
		ref = v.SourceRef
	}

	createdAt := s.now().UTC()
	query := s.rebind(`
		INSERT INTO user_values (user_id, value, source_ref, created_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (source_ref) DO NOTHING
		RETURNING id`)

	var id int64
	err = s.db.QueryRowContext(ctx, query, v.UserID, value, ref, createdAt.Unix()).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) && v.SourceRef != "" {
		existing, err := s.valueBySourceRef(ctx, v.SourceRef)
		if err != nil {
			return nil, false, err
		}
		log.Debug("Value already stored", "source_ref", v.SourceRef, "id", existing.ID)
		return existing, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("insert value: %w", err)
	}

	return &domain.UserValue{
		ID:        id,
		UserID:    v.UserID,
		Value:     value,
		SourceRef: v.SourceRef,
		CreatedAt: time.Unix(createdAt.Unix(), 0).UTC(),
	}, true, nil
}

func (s *SQLStore) valueBySourceRef(ctx context.Context, ref string) (*domain.UserValue, error) {
	query := s.rebind(`
		SELECT id, user_id, value, source_ref, created_at
		FROM user_values WHERE source_ref = ?`)

	var (
		rec       domain.UserValue
		sourceRef sql.NullString
		createdAt int64
	)
	err := s.db.QueryRowContext(ctx, query, ref).Scan(&rec.ID, &rec.UserID, &rec.Value, &sourceRef, &createdAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan value row: %w", err)
	}
	rec.SourceRef = sourceRef.String
	rec.CreatedAt = time.Unix(createdAt, 0).UTC()
	return &rec, nil
}

// ListValues returns the newest values of a user first.
func (s *SQLStore) ListValues(ctx context.Context, userID int64, limit int) ([]domain.UserValue, error) {
	if limit <= 0 {
		limit = 20
	}
	query := s.rebind(`
		SELECT id, user_id, value, source_ref, created_at
		FROM user_values WHERE user_id = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?`)

	rows, err := s.db.QueryContext(ctx, query, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query values: %w", err)
	}
	defer func() {
		if closeErr := rows.Close(); closeErr != nil {
			log.Warn("Failed to close value rows", "error", closeErr)
		}
	}()

	var out []domain.UserValue
	for rows.Next() {
		var (
			rec       domain.UserValue
			sourceRef sql.NullString
			createdAt int64
		)
		if err := rows.Scan(&rec.ID, &rec.UserID, &rec.Value, &sourceRef, &createdAt); err != nil {
			return nil, fmt.Errorf("scan value row: %w", err)
		}
		rec.SourceRef = sourceRef.String
		rec.CreatedAt = time.Unix(createdAt, 0).UTC()
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate values: %w", err)
	}
	return out, nil
}

// CountValues returns the number of values stored for a user.
func (s *SQLStore) CountValues(ctx context.Context, userID int64) (int, error) {
	var n int
	query := s.rebind(`SELECT COUNT(*) FROM user_values WHERE user_id = ?`)
	if err := s.db.QueryRowContext(ctx, query, userID).Scan(&n); err != nil {
		return 0, fmt.Errorf("count values: %w", err)
	}
	return n, nil
}

// Ping verifies database connectivity.
func (s *SQLStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database connection.
func (s *SQLStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close database: %w", err)
	}
	return nil
}
