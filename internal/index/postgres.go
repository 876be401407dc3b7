package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/youthpolicy/policyrag/internal/model"
	"github.com/youthpolicy/policyrag/internal/vecmath"
)

const (
	pgCollections = "policyrag_collections"
	pgDocuments   = "policyrag_documents"
)

const pgSchema = `
CREATE EXTENSION IF NOT EXISTS vector;
CREATE TABLE IF NOT EXISTS policyrag_collections (
	name       TEXT PRIMARY KEY,
	physical   TEXT NOT NULL,
	dimension  INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE TABLE IF NOT EXISTS policyrag_documents (
	physical  TEXT NOT NULL,
	id        TEXT NOT NULL,
	seq       BIGSERIAL,
	text      TEXT NOT NULL,
	metadata  JSONB NOT NULL DEFAULT '{}',
	embedding vector NOT NULL,
	PRIMARY KEY (physical, id)
);
CREATE INDEX IF NOT EXISTS policyrag_documents_physical_seq ON policyrag_documents (physical, seq);
`

var psql = squirrel.StatementBuilder.PlaceholderFormat(squirrel.Dollar)

type pgQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PostgresStore keeps the collection in a pgvector table and lets the
// database rank candidates
type PostgresStore struct {
	pool       *pgxpool.Pool
	collection string
	metric     vecmath.Metric
	logger     *zap.Logger
}

// OpenPostgres connects to dsn and makes sure the schema exists
func OpenPostgres(ctx context.Context, dsn, collection string, metric vecmath.Metric, logger *zap.Logger) (*PostgresStore, error) {
	if dsn == "" {
		return nil, fmt.Errorf("postgres index dsn is required")
	}

	poolConfig, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database config: %w", err)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, pgSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create schema: %w", err)
	}

	logger.Info("postgres index connected",
		zap.String("host", poolConfig.ConnConfig.Host),
		zap.String("database", poolConfig.ConnConfig.Database),
		zap.String("collection", collection))

	return &PostgresStore{pool: pool, collection: collection, metric: metric, logger: logger}, nil
}

func (s *PostgresStore) lookup(ctx context.Context, q pgQuerier) (physical string, dim int, ok bool, err error) {
	query, args, err := psql.Select("physical", "dimension").
		From(pgCollections).
		Where(squirrel.Eq{"name": s.collection}).
		ToSql()
	if err != nil {
		return "", 0, false, err
	}

	err = q.QueryRow(ctx, query, args...).Scan(&physical, &dim)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", 0, false, nil
	}
	if err != nil {
		return "", 0, false, fmt.Errorf("lookup collection: %w", err)
	}
	return physical, dim, true, nil
}

func (s *PostgresStore) newPhysical() string {
	return s.collection + "_" + strings.ReplaceAll(uuid.NewString(), "-", "")
}

func (s *PostgresStore) ensure(ctx context.Context, tx pgx.Tx) (string, int, error) {
	physical, dim, ok, err := s.lookup(ctx, tx)
	if err != nil || ok {
		return physical, dim, err
	}

	physical = s.newPhysical()
	query, args, err := psql.Insert(pgCollections).
		Columns("name", "physical", "dimension").
		Values(s.collection, physical, 0).
		ToSql()
	if err != nil {
		return "", 0, err
	}
	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return "", 0, fmt.Errorf("create collection: %w", err)
	}
	return physical, 0, nil
}

// Upsert inserts or replaces documents in the live collection
func (s *PostgresStore) Upsert(ctx context.Context, docs []model.IndexedDocument) error {
	if len(docs) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	physical, dim, err := s.ensure(ctx, tx)
	if err != nil {
		return err
	}
	newDim, err := validateDocs(docs, dim)
	if err != nil {
		return err
	}
	if newDim != dim {
		query, args, err := psql.Update(pgCollections).
			Set("dimension", newDim).
			Where(squirrel.Eq{"name": s.collection}).
			ToSql()
		if err != nil {
			return err
		}
		if _, err := tx.Exec(ctx, query, args...); err != nil {
			return fmt.Errorf("set dimension: %w", err)
		}
	}
	if err := pgInsertDocs(ctx, tx, physical, docs); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// upsertQuery builds one insert statement; replaced rows keep their seq.
// Repeated ids are collapsed first since ON CONFLICT cannot touch a row twice.
func upsertQuery(physical string, docs []model.IndexedDocument) (string, []any, error) {
	ins := psql.Insert(pgDocuments).Columns("physical", "id", "text", "metadata", "embedding")
	for _, doc := range dedupeDocs(docs) {
		meta := doc.Metadata
		if meta == nil {
			meta = map[string]string{}
		}
		metaJSON, err := json.Marshal(meta)
		if err != nil {
			return "", nil, fmt.Errorf("marshal metadata for %s: %w", doc.ID, err)
		}
		ins = ins.Values(physical, doc.ID, doc.Text,
			squirrel.Expr("?::jsonb", string(metaJSON)),
			squirrel.Expr("?::vector", vectorLiteral(doc.Embedding)))
	}
	return ins.Suffix(`ON CONFLICT (physical, id) DO UPDATE SET
		text = EXCLUDED.text,
		metadata = EXCLUDED.metadata,
		embedding = EXCLUDED.embedding`).ToSql()
}

func pgInsertDocs(ctx context.Context, tx pgx.Tx, physical string, docs []model.IndexedDocument) error {
	query, args, err := upsertQuery(physical, docs)
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert documents: %w", err)
	}
	return nil
}

// searchQuery orders by the pgvector distance operator matching metric, ties
// broken by insertion order
func searchQuery(physical string, query []float32, k int, metric vecmath.Metric) (string, []any, error) {
	distance := "embedding <=> ?::vector"
	if metric == vecmath.L2 {
		// <-> is plain euclidean; square it to match the in-process backends
		distance = "(embedding <-> ?::vector) ^ 2"
	}

	return psql.Select("id", "text", "metadata::text").
		Column(squirrel.Expr(distance+" AS distance", vectorLiteral(query))).
		From(pgDocuments).
		Where(squirrel.Eq{"physical": physical}).
		OrderBy("distance ASC", "seq ASC").
		Limit(uint64(k)).
		ToSql()
}

// Search ranks inside the database
func (s *PostgresStore) Search(ctx context.Context, query []float32, k int) ([]model.Match, error) {
	physical, dim, ok, err := s.lookup(ctx, s.pool)
	if err != nil {
		return nil, err
	}
	if !ok {
		return []model.Match{}, nil
	}
	if err := checkQuery(query, k, dim); err != nil {
		return nil, err
	}

	sqlStr, args, err := searchQuery(physical, query, k, s.metric)
	if err != nil {
		return nil, err
	}

	rows, err := s.pool.Query(ctx, sqlStr, args...)
	if err != nil {
		return nil, fmt.Errorf("search documents: %w", err)
	}
	defer rows.Close()

	var cands []candidate
	for rows.Next() {
		var (
			doc      model.IndexedDocument
			metaJSON string
			distance float64
		)
		if err := rows.Scan(&doc.ID, &doc.Text, &metaJSON, &distance); err != nil {
			return nil, err
		}
		if err := json.Unmarshal([]byte(metaJSON), &doc.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata for %s: %w", doc.ID, err)
		}
		cands = append(cands, candidate{doc: doc, distance: distance})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate documents: %w", err)
	}

	// rows are already ordered; rank only assigns ranks and scores
	return rank(cands, k), nil
}

// Count returns the number of documents in the live collection
func (s *PostgresStore) Count(ctx context.Context) (int, error) {
	query, args, err := psql.Select("COUNT(*)").
		From(pgDocuments + " d").
		Join(pgCollections + " c ON c.physical = d.physical").
		Where(squirrel.Eq{"c.name": s.collection}).
		ToSql()
	if err != nil {
		return 0, err
	}

	var n int
	if err := s.pool.QueryRow(ctx, query, args...).Scan(&n); err != nil {
		return 0, fmt.Errorf("count documents: %w", err)
	}
	return n, nil
}

// Get returns one document of the live collection
func (s *PostgresStore) Get(ctx context.Context, id string) (*model.IndexedDocument, error) {
	query, args, err := psql.Select("d.id", "d.text", "d.metadata::text", "d.embedding::text").
		From(pgDocuments + " d").
		Join(pgCollections + " c ON c.physical = d.physical").
		Where(squirrel.Eq{"c.name": s.collection, "d.id": id}).
		ToSql()
	if err != nil {
		return nil, err
	}

	var (
		doc                 model.IndexedDocument
		metaJSON, embedding string
	)
	err = s.pool.QueryRow(ctx, query, args...).Scan(&doc.ID, &doc.Text, &metaJSON, &embedding)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get %s: %w", id, err)
	}
	if err := json.Unmarshal([]byte(metaJSON), &doc.Metadata); err != nil {
		return nil, fmt.Errorf("decode metadata for %s: %w", id, err)
	}
	if doc.Embedding, err = parseVectorLiteral(embedding); err != nil {
		return nil, fmt.Errorf("decode embedding for %s: %w", id, err)
	}
	return &doc, nil
}

// CreateCollection creates an empty collection if missing
func (s *PostgresStore) CreateCollection(ctx context.Context) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, _, err := s.ensure(ctx, tx); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// DeleteCollection drops the collection and its documents
func (s *PostgresStore) DeleteCollection(ctx context.Context) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	physical, _, ok, err := s.lookup(ctx, tx)
	if err != nil || !ok {
		return err
	}
	if err := deletePhysical(ctx, tx, physical); err != nil {
		return err
	}

	query, args, err := psql.Delete(pgCollections).Where(squirrel.Eq{"name": s.collection}).ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("delete collection: %w", err)
	}
	return tx.Commit(ctx)
}

func deletePhysical(ctx context.Context, q pgQuerier, physical string) error {
	query, args, err := psql.Delete(pgDocuments).Where(squirrel.Eq{"physical": physical}).ToSql()
	if err != nil {
		return err
	}
	if _, err := q.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("delete documents: %w", err)
	}
	return nil
}

// BeginRebuild removes leftovers of interrupted rebuilds and stages a new
// physical set
func (s *PostgresStore) BeginRebuild(ctx context.Context) (Rebuild, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM `+pgDocuments+` WHERE physical NOT IN (SELECT physical FROM `+pgCollections+`)`)
	if err != nil {
		return nil, fmt.Errorf("clean staging leftovers: %w", err)
	}
	if n := tag.RowsAffected(); n > 0 {
		s.logger.Info("removed documents of an interrupted rebuild", zap.Int64("documents", n))
	}

	physical := s.newPhysical()
	s.logger.Info("rebuild started", zap.String("collection", s.collection), zap.String("staging", physical))
	return &pgRebuild{store: s, physical: physical}, nil
}

// Close releases the pool
func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

type pgRebuild struct {
	store    *PostgresStore
	physical string
	dim      int
	done     bool
}

func (r *pgRebuild) Upsert(ctx context.Context, docs []model.IndexedDocument) error {
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

	tx, err := r.store.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := pgInsertDocs(ctx, tx, r.physical, docs); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	r.dim = dim
	return nil
}

func (r *pgRebuild) Commit(ctx context.Context) error {
	if r.done {
		return errRebuildFinished
	}
	s := r.store

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	old, _, existed, err := s.lookup(ctx, tx)
	if err != nil {
		return err
	}

	query, args, err := psql.Insert(pgCollections).
		Columns("name", "physical", "dimension").
		Values(s.collection, r.physical, r.dim).
		Suffix(`ON CONFLICT (name) DO UPDATE SET
			physical = EXCLUDED.physical,
			dimension = EXCLUDED.dimension,
			created_at = NOW()`).
		ToSql()
	if err != nil {
		return err
	}
	if _, err := tx.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("swap collection: %w", err)
	}
	if existed {
		if err := deletePhysical(ctx, tx, old); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit swap: %w", err)
	}
	r.done = true
	s.logger.Info("rebuild committed", zap.String("collection", s.collection), zap.String("physical", r.physical))
	return nil
}

func (r *pgRebuild) Abort(ctx context.Context) error {
	if r.done {
		return nil
	}
	r.done = true
	if err := deletePhysical(ctx, r.store.pool, r.physical); err != nil {
		return err
	}
	r.store.logger.Warn("rebuild aborted", zap.String("collection", r.store.collection))
	return nil
}

// vectorLiteral renders v in pgvector text form, e.g. [0.5,1,-2]
func vectorLiteral(v []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(x), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}

func parseVectorLiteral(s string) ([]float32, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "[") || !strings.HasSuffix(s, "]") {
		return nil, fmt.Errorf("malformed vector %q", s)
	}
	s = strings.TrimSpace(s[1 : len(s)-1])
	if s == "" {
		return []float32{}, nil
	}

	parts := strings.Split(s, ",")
	out := make([]float32, len(parts))
	for i, p := range parts {
		f, err := strconv.ParseFloat(strings.TrimSpace(p), 32)
		if err != nil {
			return nil, fmt.Errorf("malformed vector component %q: %w", p, err)
		}
		out[i] = float32(f)
	}
	return out, nil
}
