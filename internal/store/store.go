package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"math/rand/v2"

	_ "github.com/mattn/go-sqlite3"

	"github.com/roach88/claimgraph/internal/graph"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added object lookup index on triples
const currentSchemaVersion = 1

// Store is the SQLite graph backend.
//
// Writes go through a single connection; queries run on a separate
// read-only pool so that a client statement can never modify the graph.
type Store struct {
	db      *sql.DB
	ro      *sql.DB
	logger  *slog.Logger
	shuffle func(n int, swap func(i, j int))
}

var _ graph.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for store diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// WithShuffle replaces the permutation applied to unordered query results.
func WithShuffle(fn func(n int, swap func(i, j int))) Option {
	return func(s *Store) { s.shuffle = fn }
}

// Open creates or opens a SQLite graph at the given path.
// Applies required pragmas and migrations automatically.
//
// The database is configured with:
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode (balance durability/performance)
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
//
// This function is idempotent - safe to call multiple times.
func Open(path string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite3", writerDSN(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	// The read-only pool is opened after the schema exists.
	ro, err := sql.Open("sqlite3", readerDSN(path))
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open read-only pool: %w", err)
	}
	if err := ro.Ping(); err != nil {
		ro.Close()
		db.Close()
		return nil, fmt.Errorf("failed to connect read-only pool: %w", err)
	}

	s := &Store{
		db:      db,
		ro:      ro,
		logger:  slog.Default(),
		shuffle: rand.Shuffle,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

func writerDSN(path string) string {
	return fmt.Sprintf("file:%s?_busy_timeout=5000&_foreign_keys=on", path)
}

func readerDSN(path string) string {
	return fmt.Sprintf("file:%s?mode=ro&_busy_timeout=5000", path)
}

// Close closes both connection pools.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	roErr := s.ro.Close()
	if err := s.db.Close(); err != nil {
		return err
	}
	return roErr
}

// BackendType implements graph.Store.
func (s *Store) BackendType() graph.BackendType {
	return graph.BackendSQLite
}

// SupportedLanguage implements graph.Store.
func (s *Store) SupportedLanguage() (graph.Language, bool) {
	return graph.LanguageSQL, true
}

// Healthy reports whether the read pool can execute a statement.
func (s *Store) Healthy(ctx context.Context) bool {
	var one int
	if err := s.ro.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
		s.logger.Warn("graph store health check failed", "error", err)
		return false
	}
	return one == 1
}

// ClaimCount counts provenance edges carrying the credential-subject relation.
func (s *Store) ClaimCount(ctx context.Context) (int64, error) {
	var n int64
	err := s.ro.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM provenance WHERE relation = ?`,
		graph.CredentialSubjectRelation,
	).Scan(&n)
	if err != nil {
		return -1, fmt.Errorf("count claims: %w", err)
	}
	return n, nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 adds the object lookup index for graphs created before v1.
func migrateToV1(db *sql.DB) error {
	_, err := db.Exec(`
		CREATE INDEX IF NOT EXISTS idx_triples_predicate_object
		ON triples(predicate, object)
	`)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *Store) verifyPragma(name, expected string) error {
	var value string
	query := fmt.Sprintf("PRAGMA %s", name)
	if err := s.db.QueryRow(query).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
