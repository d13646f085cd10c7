// Package records is the authoritative store of verified documents that the
// claims graph is derived from.
//
// Records are content addressed and partitioned into shards so that a
// rebuild can be split into chunks processed independently.
package records

import (
	"context"
	"crypto/sha256"
	"database/sql"
	_ "embed"
	"encoding/hex"
	"errors"
	"fmt"
	"hash/fnv"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// DomainRecord prefixes the record hash. The version suffix allows the
// hashing scheme to change without colliding with old hashes.
const DomainRecord = "claimgraph/record/v1"

// ErrNotFound is returned when no record has the requested hash.
var ErrNotFound = errors.New("record not found")

// Status is the lifecycle state of a record.
type Status string

const (
	StatusActive  Status = "active"
	StatusRevoked Status = "revoked"
)

// Record is one verified document.
//
// ID is the credential subject the document's claims are attributed to.
type Record struct {
	Hash      string
	ID        string
	Document  []byte
	Status    Status
	CreatedAt time.Time
}

// NewRecord builds an active record with its content hash.
func NewRecord(id string, document []byte) Record {
	return Record{
		Hash:     Hash(document),
		ID:       id,
		Document: document,
		Status:   StatusActive,
	}
}

// Hash computes the content address of a document.
// Format: SHA256(DomainRecord + 0x00 + document)
func Hash(document []byte) string {
	h := sha256.New()
	h.Write([]byte(DomainRecord))
	h.Write([]byte{0x00})
	h.Write(document)
	return hex.EncodeToString(h.Sum(nil))
}

// Shard maps a hash to its partition key.
func Shard(hash string) int64 {
	h := fnv.New32a()
	h.Write([]byte(hash))
	return int64(h.Sum32())
}

// Store is the SQLite record store.
type Store struct {
	db  *sql.DB
	now func() time.Time
}

// Open creates or opens a record store at path with the same connection
// settings as the graph store.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_busy_timeout=5000&_journal_mode=WAL&_synchronous=NORMAL", path))
	if err != nil {
		return nil, fmt.Errorf("failed to open record store: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to record store: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply record schema: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Put stores a record. Writing the same document twice is a no-op.
func (s *Store) Put(ctx context.Context, rec Record) (Record, error) {
	if len(rec.Document) == 0 {
		return Record{}, errors.New("put record: empty document")
	}
	if rec.ID == "" {
		return Record{}, errors.New("put record: missing id")
	}
	if rec.Hash == "" {
		rec.Hash = Hash(rec.Document)
	}
	if rec.Status == "" {
		rec.Status = StatusActive
	}
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO records (hash, id, document, status, shard, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(hash) DO NOTHING
	`,
		rec.Hash,
		rec.ID,
		rec.Document,
		string(rec.Status),
		Shard(rec.Hash),
		rec.CreatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		return Record{}, fmt.Errorf("put record: %w", err)
	}
	return rec, nil
}

// SetStatus changes the lifecycle state of a record.
func (s *Store) SetStatus(ctx context.Context, hash string, status Status) error {
	res, err := s.db.ExecContext(ctx, `UPDATE records SET status = ? WHERE hash = ?`, string(status), hash)
	if err != nil {
		return fmt.Errorf("set record status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("set record status: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("set record status %s: %w", hash, ErrNotFound)
	}
	return nil
}

// GetByHash loads one record.
func (s *Store) GetByHash(ctx context.Context, hash string) (Record, error) {
	var (
		rec     Record
		status  string
		created string
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT hash, id, document, status, created_at
		FROM records WHERE hash = ?
	`, hash).Scan(&rec.Hash, &rec.ID, &rec.Document, &status, &created)
	if errors.Is(err, sql.ErrNoRows) {
		return Record{}, fmt.Errorf("get record %s: %w", hash, ErrNotFound)
	}
	if err != nil {
		return Record{}, fmt.Errorf("get record %s: %w", hash, err)
	}
	rec.Status = Status(status)
	if rec.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
		return Record{}, fmt.Errorf("get record %s: parse created_at: %w", hash, err)
	}
	return rec, nil
}

// ActiveHashes returns up to limit hashes of active records in the given
// chunk, strictly after the cursor, in ascending hash order. An empty cursor
// starts from the beginning.
func (s *Store) ActiveHashes(ctx context.Context, after string, limit, chunkCount, chunkID int) ([]string, error) {
	if chunkCount < 1 || chunkID < 0 || chunkID >= chunkCount {
		return nil, fmt.Errorf("active hashes: invalid chunk %d of %d", chunkID, chunkCount)
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT hash FROM records
		WHERE status = ? AND hash > ? AND shard % ? = ?
		ORDER BY hash COLLATE BINARY ASC
		LIMIT ?
	`, string(StatusActive), after, chunkCount, chunkID, limit)
	if err != nil {
		return nil, fmt.Errorf("active hashes: %w", err)
	}
	defer rows.Close()

	hashes := make([]string, 0, limit)
	for rows.Next() {
		var h string
		if err := rows.Scan(&h); err != nil {
			return nil, fmt.Errorf("active hashes: %w", err)
		}
		hashes = append(hashes, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("active hashes: %w", err)
	}
	return hashes, nil
}

// ActiveCount counts active records across all chunks.
func (s *Store) ActiveCount(ctx context.Context) (int64, error) {
	var n int64
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM records WHERE status = ?`, string(StatusActive)).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count active records: %w", err)
	}
	return n, nil
}
