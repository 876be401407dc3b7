package index

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"

	"github.com/youthpolicy/policyrag/internal/model"
	"github.com/youthpolicy/policyrag/internal/vecmath"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS collections (
	name       TEXT PRIMARY KEY,
	physical   TEXT NOT NULL,
	dimension  INTEGER NOT NULL DEFAULT 0,
	created_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS documents (
	physical  TEXT NOT NULL,
	id        TEXT NOT NULL,
	seq       INTEGER NOT NULL,
	text      TEXT NOT NULL,
	metadata  TEXT NOT NULL,
	embedding BLOB NOT NULL,
	PRIMARY KEY (physical, id)
);
CREATE INDEX IF NOT EXISTS documents_physical_seq ON documents (physical, seq);
`

// SQLiteStore is the durable default backend. A logical collection points at
// a physical row set; rebuilds fill a fresh physical set and repoint the
// logical name in one transaction.
type SQLiteStore struct {
	db         *sql.DB
	collection string
	metric     vecmath.Metric
	logger     *zap.Logger
}

// OpenSQLite opens (creating if needed) the database file at path
func OpenSQLite(ctx context.Context, path, collection string, metric vecmath.Metric, logger *zap.Logger) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite index path is required")
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create index dir: %w", err)
		}
	}

	dsn := "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	logger.Debug("sqlite index opened", zap.String("path", path), zap.String("collection", collection))

	return &SQLiteStore{db: db, collection: collection, metric: metric, logger: logger}, nil
}

type sqlQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// lookup returns the physical name and dimension of the collection; ok is
// false when it does not exist
func (s *SQLiteStore) lookup(ctx context.Context, q sqlQuerier) (physical string, dim int, ok bool, err error) {
	err = q.QueryRowContext(ctx,
		`SELECT physical, dimension FROM collections WHERE name = ?`, s.collection).
		Scan(&physical, &dim)
	if errors.Is(err, sql.ErrNoRows) {
		return "", 0, false, nil
	}
	if err != nil {
		return "", 0, false, fmt.Errorf("lookup collection: %w", err)
	}
	return physical, dim, true, nil
}

func (s *SQLiteStore) newPhysical() string {
	return s.collection + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func (s *SQLiteStore) ensure(ctx context.Context, tx *sql.Tx) (string, int, error) {
	physical, dim, ok, err := s.lookup(ctx, tx)
	if err != nil || ok {
		return physical, dim, err
	}
	physical = s.newPhysical()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO collections (name, physical, dimension, created_at) VALUES (?, ?, 0, ?)`,
		s.collection, physical, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return "", 0, fmt.Errorf("create collection: %w", err)
	}
	return physical, 0, nil
}

// Upsert inserts or replaces documents in the live collection
func (s *SQLiteStore) Upsert(ctx context.Context, docs []model.IndexedDocument) error {
	if len(docs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	physical, dim, err := s.ensure(ctx, tx)
	if err != nil {
		return err
	}
	newDim, err := validateDocs(docs, dim)
	if err != nil {
		return err
	}
	if newDim != dim {
		if _, err := tx.ExecContext(ctx, `UPDATE collections SET dimension = ? WHERE name = ?`, newDim, s.collection); err != nil {
			return fmt.Errorf("set dimension: %w", err)
		}
	}
	if err := insertDocs(ctx, tx, physical, docs); err != nil {
		return err
	}
	return tx.Commit()
}

// insertDocs upserts rows into one physical set; replaced rows keep their seq
func insertDocs(ctx context.Context, tx *sql.Tx, physical string, docs []model.IndexedDocument) error {
	var seq int64
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(seq), 0) FROM documents WHERE physical = ?`, physical).Scan(&seq); err != nil {
		return fmt.Errorf("read seq: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO documents (physical, id, seq, text, metadata, embedding)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT (physical, id) DO UPDATE SET
			text = excluded.text,
			metadata = excluded.metadata,
			embedding = excluded.embedding`)
	if err != nil {
		return fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, doc := range docs {
		meta := doc.Metadata
		if meta == nil {
			meta = map[string]string{}
		}
		metaJSON, err := json.Marshal(meta)
		if err != nil {
			return fmt.Errorf("marshal metadata for %s: %w", doc.ID, err)
		}
		seq++
		if _, err := stmt.ExecContext(ctx, physical, doc.ID, seq, doc.Text, string(metaJSON), vecmath.Encode(doc.Embedding)); err != nil {
			return fmt.Errorf("insert %s: %w", doc.ID, err)
		}
	}
	return nil
}

// Search scans the collection in insertion order and ranks in process
func (s *SQLiteStore) Search(ctx context.Context, query []float32, k int) ([]model.Match, error) {
	physical, dim, ok, err := s.lookup(ctx, s.db)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []model.Match{}, nil
	}
	if err := checkQuery(query, k, dim); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, text, metadata, embedding FROM documents WHERE physical = ? ORDER BY seq`, physical)
	if err != nil {
		return nil, fmt.Errorf("query documents: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var cands []candidate
	for rows.Next() {
		doc, err := scanDoc(rows)
		if err != nil {
			return nil, err
		}
		cands = append(cands, candidate{doc: *doc, distance: s.metric.Distance(query, doc.Embedding)})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}

	return rank(cands, k), nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDoc(row rowScanner) (*model.IndexedDocument, error) {
	var (
		doc      model.IndexedDocument
		metaJSON string
		blob     []byte
	)
	if err := row.Scan(&doc.ID, &doc.Text, &metaJSON, &blob); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(metaJSON), &doc.Metadata); err != nil {
		return nil, fmt.Errorf("decode metadata for %s: %w", doc.ID, err)
	}
	embedding, err := vecmath.Decode(blob)
	if err != nil {
		return nil, fmt.Errorf("decode embedding for %s: %w", doc.ID, err)
	}
	doc.Embedding = embedding
	return &doc, nil
}

// Count returns the number of documents in the live collection
func (s *SQLiteStore) Count(ctx context.Context) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM documents d
		JOIN collections c ON c.physical = d.physical
		WHERE c.name = ?`, s.collection).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

// Get returns one document of the live collection
func (s *SQLiteStore) Get(ctx context.Context, id string) (*model.IndexedDocument, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT d.id, d.text, d.metadata, d.embedding FROM documents d
		JOIN collections c ON c.physical = d.physical
		WHERE c.name = ? AND d.id = ?`, s.collection, id)
	doc, err := scanDoc(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", id, err)
	}
	return doc, nil
}

// CreateCollection creates an empty collection if missing
func (s *SQLiteStore) CreateCollection(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, _, err := s.ensure(ctx, tx); err != nil {
		return err
	}
	return tx.Commit()
}

// DeleteCollection drops the collection and its documents
func (s *SQLiteStore) DeleteCollection(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	physical, _, ok, err := s.lookup(ctx, tx)
	if err != nil || !ok {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE physical = ?`, physical); err != nil {
		return fmt.Errorf("delete documents: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM collections WHERE name = ?`, s.collection); err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	return tx.Commit()
}

// BeginRebuild removes leftovers of interrupted rebuilds and stages a new
// physical set
func (s *SQLiteStore) BeginRebuild(ctx context.Context) (Rebuild, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM documents WHERE physical NOT IN (SELECT physical FROM collections)`)
	if err != nil {
		return nil, fmt.Errorf("clean staging leftovers: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		s.logger.Info("removed documents of an interrupted rebuild", zap.Int64("documents", n))
	}

	physical := s.newPhysical()
	s.logger.Info("rebuild started", zap.String("collection", s.collection), zap.String("staging", physical))
	return &sqliteRebuild{store: s, physical: physical}, nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type sqliteRebuild struct {
	store    *SQLiteStore
	physical string
	dim      int
	done     bool
}

func (r *sqliteRebuild) Upsert(ctx context.Context, docs []model.IndexedDocument) error {
	if r.done {
		return errRebuildFinished
	}
	if len(docs) == 0 {
		return nil
	}
	dim, err := validateDocs(docs, r.dim)
	if err != nil {
		return err
	}

	tx, err := r.store.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if err := insertDocs(ctx, tx, r.physical, docs); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	r.dim = dim
	return nil
}

func (r *sqliteRebuild) Commit(ctx context.Context) error {
	if r.done {
		return errRebuildFinished
	}
	s := r.store

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	old, _, existed, err := s.lookup(ctx, tx)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO collections (name, physical, dimension, created_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (name) DO UPDATE SET
			physical = excluded.physical,
			dimension = excluded.dimension,
			created_at = excluded.created_at`,
		s.collection, r.physical, r.dim, time.Now().UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("swap collection: %w", err)
	}

	if existed {
		if _, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE physical = ?`, old); err != nil {
			return fmt.Errorf("drop previous documents: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit swap: %w", err)
	}
	r.done = true
	s.logger.Info("rebuild committed", zap.String("collection", s.collection), zap.String("physical", r.physical))
	return nil
}

func (r *sqliteRebuild) Abort(ctx context.Context) error {
	if r.done {
		return nil
	}
	r.done = true
	if _, err := r.store.db.ExecContext(ctx, `DELETE FROM documents WHERE physical = ?`, r.physical); err != nil {
		return fmt.Errorf("drop staged documents: %w", err)
	}
	r.store.logger.Warn("rebuild aborted", zap.String("collection", r.store.collection))
	return nil
}
