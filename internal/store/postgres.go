package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const defaultTable = "sensor_records"

// PostgresStore keeps sensor documents in a single JSONB-backed table.
type PostgresStore struct {
	pool  *pgxpool.Pool
	table string
}

// Option configures the store.
type Option func(*PostgresStore)

// WithTable overrides the default table name.
func WithTable(table string) Option {
	return func(s *PostgresStore) {
		if table != "" {
			s.table = table
		}
	}
}

// NewPostgres constructs the store and ensures its table exists.
func NewPostgres(ctx context.Context, pool *pgxpool.Pool, opts ...Option) (*PostgresStore, error) {
	s := &PostgresStore{pool: pool, table: defaultTable}
	for _, opt := range opts {
		opt(s)
	}
	ddl := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		id BIGSERIAL PRIMARY KEY,
		doc JSONB NOT NULL
	)`, s.table)
	if _, err := pool.Exec(ctx, ddl); err != nil {
		return nil, fmt.Errorf("create table %s: %w", s.table, err)
	}
	return s, nil
}

func (s *PostgresStore) Insert(ctx context.Context, doc Record) (Record, error) {
	b, err := json.Marshal(doc)
	if err != nil {
		return nil, fmt.Errorf("encode document: %w", err)
	}
	query := fmt.Sprintf(`INSERT INTO %s (doc) VALUES ($1) RETURNING id`, s.table)
	var id int64
	if err := s.pool.QueryRow(ctx, query, b).Scan(&id); err != nil {
		return nil, fmt.Errorf("insert document: %w", err)
	}
	return withID(doc, id), nil
}

func (s *PostgresStore) Get(ctx context.Context, id int64) (Record, error) {
	query := fmt.Sprintf(`SELECT doc FROM %s WHERE id = $1`, s.table)
	var raw []byte
	err := s.pool.QueryRow(ctx, query, id).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get document %d: %w", id, err)
	}
	return decodeDoc(raw, id)
}

func (s *PostgresStore) Update(ctx context.Context, id int64, patch Record) (Record, error) {
	b, err := json.Marshal(patch)
	if err != nil {
		return nil, fmt.Errorf("encode patch: %w", err)
	}
	// jsonb || is the shallow field merge the update contract asks for.
	query := fmt.Sprintf(`UPDATE %s SET doc = doc || $2 WHERE id = $1 RETURNING doc`, s.table)
	var raw []byte
	err = s.pool.QueryRow(ctx, query, id, b).Scan(&raw)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("update document %d: %w", id, err)
	}
	return decodeDoc(raw, id)
}

func (s *PostgresStore) Delete(ctx context.Context, id int64) error {
	query := fmt.Sprintf(`DELETE FROM %s WHERE id = $1`, s.table)
	tag, err := s.pool.Exec(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete document %d: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStore) ListGrouped(ctx context.Context, page, limit int) ([]Group, error) {
	// Groups carry no per-record timestamp of their own, so recency ordering
	// uses the newest member timestamp. Documents without a numeric timestamp
	// sort last.
	// COALESCE folds documents without the field into the JSON null group,
	// the way the aggregation treated missing keys upstream.
	query := fmt.Sprintf(`
		SELECT COALESCE(doc->'time_sensor', 'null'::jsonb),
		       jsonb_agg(doc || jsonb_build_object('id', id) ORDER BY id)
		FROM %s
		GROUP BY COALESCE(doc->'time_sensor', 'null'::jsonb)
		ORDER BY max(CASE WHEN jsonb_typeof(doc->'timestamp') = 'number'
		                  THEN (doc->>'timestamp')::numeric END) DESC NULLS LAST
		OFFSET $1 LIMIT $2`, s.table)
	offset := (page - 1) * limit
	if offset < 0 {
		offset = 0
	}
	rows, err := s.pool.Query(ctx, query, offset, limit)
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	groups := make([]Group, 0, limit)
	for rows.Next() {
		var keyRaw, membersRaw []byte
		if err := rows.Scan(&keyRaw, &membersRaw); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		var g Group
		if err := json.Unmarshal(keyRaw, &g.TimeSensor); err != nil {
			return nil, fmt.Errorf("decode group key: %w", err)
		}
		if err := json.Unmarshal(membersRaw, &g.Data); err != nil {
			return nil, fmt.Errorf("decode group members: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	return groups, nil
}

func (s *PostgresStore) CountGroups(ctx context.Context) (int64, error) {
	query := fmt.Sprintf(`SELECT COUNT(*) FROM (SELECT 1 FROM %s GROUP BY COALESCE(doc->'time_sensor', 'null'::jsonb)) g`, s.table)
	var count int64
	if err := s.pool.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("count groups: %w", err)
	}
	return count, nil
}

func withID(doc Record, id int64) Record {
	out := make(Record, len(doc)+1)
	for k, v := range doc {
		out[k] = v
	}
	out["id"] = id
	return out
}

func decodeDoc(raw []byte, id int64) (Record, error) {
	var doc Record
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode document %d: %w", id, err)
	}
	// A row holding JSON null decodes to a nil map.
	if doc == nil {
		doc = Record{}
	}
	doc["id"] = id
	return doc, nil
}
