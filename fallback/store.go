package fallback

import (
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"math"

	_ "modernc.org/sqlite" // register pure-Go SQLite driver
)

// ErrInvalidHistogram is returned when a stored histogram blob has the wrong size.
var ErrInvalidHistogram = errors.New("fallback: invalid histogram blob")

const schema = `CREATE TABLE IF NOT EXISTS signatures (
	label     TEXT PRIMARY KEY,
	dhash     INTEGER NOT NULL,
	histogram BLOB NOT NULL
)`

// GalleryStore persists labeled signatures in SQLite.
type GalleryStore struct {
	db *sql.DB
}

// OpenGalleryStore opens (or creates) the SQLite database at dsn.
// Use ":memory:" for a private in-memory database.
func OpenGalleryStore(ctx context.Context, dsn string) (*GalleryStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, err
	}
	if dsn == ":memory:" {
		// Each connection would otherwise get its own database.
		db.SetMaxOpenConns(1)
	}

	s, err := NewGalleryStore(ctx, db)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// NewGalleryStore wraps db and ensures the schema exists.
func NewGalleryStore(ctx context.Context, db *sql.DB) (*GalleryStore, error) {
	if db == nil {
		return nil, fmt.Errorf("fallback: db is nil")
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return nil, fmt.Errorf("fallback: create schema: %w", err)
	}
	return &GalleryStore{db: db}, nil
}

// Put upserts entries in one transaction.
func (s *GalleryStore) Put(ctx context.Context, entries ...Entry) error {
	if len(entries) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO signatures(label, dhash, histogram) VALUES(?, ?, ?)
		ON CONFLICT(label) DO UPDATE SET dhash = excluded.dhash, histogram = excluded.histogram`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, e := range entries {
		// SQLite integers are signed 64-bit; the hash round-trips through int64.
		if _, err := stmt.ExecContext(ctx, e.Label, int64(e.Signature.DHash), encodeHistogram(&e.Signature.Histogram)); err != nil {
			return fmt.Errorf("fallback: put %q: %w", e.Label, err)
		}
	}

	return tx.Commit()
}

// LoadAll returns every stored entry ordered by label.
func (s *GalleryStore) LoadAll(ctx context.Context) ([]Entry, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT label, dhash, histogram FROM signatures ORDER BY label`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var (
			e    Entry
			hash int64
			blob []byte
		)
		if err := rows.Scan(&e.Label, &hash, &blob); err != nil {
			return nil, err
		}
		e.Signature.DHash = uint64(hash)
		if err := decodeHistogram(blob, &e.Signature.Histogram); err != nil {
			return nil, fmt.Errorf("%w: %q", err, e.Label)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

// Gallery loads every entry into a new Gallery.
func (s *GalleryStore) Gallery(ctx context.Context, optFns ...func(*Options)) (*Gallery, error) {
	entries, err := s.LoadAll(ctx)
	if err != nil {
		return nil, err
	}
	return NewGallery(entries, optFns...), nil
}

// Close closes the database.
func (s *GalleryStore) Close() error {
	return s.db.Close()
}

func encodeHistogram(h *[Bins]float32) []byte {
	b := make([]byte, Bins*4)
	for i, v := range h {
		binary.LittleEndian.PutUint32(b[i*4:], math.Float32bits(v))
	}
	return b
}

func decodeHistogram(b []byte, h *[Bins]float32) error {
	if len(b) != Bins*4 {
		return ErrInvalidHistogram
	}
	for i := range h {
		h[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return nil
}
