package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"github.com/twpayne/go-geom/encoding/ewkb"

	"github.com/stayguide/guide-cli/internal/model"
)

// Pool is the subset of pgxpool.Pool the store needs. pgxmock satisfies it in
// tests.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresWithPool wraps an existing pool; used by tests.
func NewPostgresWithPool(pool Pool) *PostgresStore {
	return &PostgresStore{pool: pool, closeFn: func() {}}
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS categories (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	owner_id   TEXT NOT NULL,
	slug       TEXT NOT NULL,
	label      TEXT NOT NULL,
	icon       TEXT,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE(owner_id, slug)
);

CREATE TABLE IF NOT EXISTS entries (
	id           TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	owner_id     TEXT NOT NULL,
	name         TEXT NOT NULL,
	address      TEXT NOT NULL,
	lat          DOUBLE PRECISION NOT NULL,
	lng          DOUBLE PRECISION NOT NULL,
	location     GEOMETRY(Point, 4326),
	phone        TEXT,
	website      TEXT,
	hours        JSONB,
	route_url    TEXT,
	rating       DOUBLE PRECISION,
	rating_count INTEGER,
	category_id  TEXT REFERENCES categories(id),
	description  TEXT,
	created_at   TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS media (
	id         TEXT PRIMARY KEY DEFAULT gen_random_uuid()::text,
	entry_id   TEXT NOT NULL REFERENCES entries(id),
	url        TEXT NOT NULL,
	position   INTEGER NOT NULL DEFAULT 0,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	owner_id   TEXT NOT NULL,
	criteria   JSONB NOT NULL,
	status     TEXT NOT NULL DEFAULT 'importing',
	outcome    JSONB,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS run_items (
	run_id     TEXT NOT NULL REFERENCES runs(id),
	idx        INTEGER NOT NULL,
	candidate  JSONB NOT NULL,
	status     TEXT NOT NULL DEFAULT 'pending',
	entry_id   TEXT,
	error      TEXT,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (run_id, idx)
);

CREATE INDEX IF NOT EXISTS idx_entries_owner ON entries(owner_id);
CREATE INDEX IF NOT EXISTS idx_media_entry ON media(entry_id);
CREATE INDEX IF NOT EXISTS idx_runs_owner ON runs(owner_id);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_run_items_status ON run_items(run_id, status);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.closeFn()
	return nil
}

// --- inventory ---

func (s *PostgresStore) ExistingFingerprints(ctx context.Context, ownerID string) ([]model.Fingerprint, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT name, address FROM entries WHERE owner_id = $1`, ownerID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list fingerprints")
	}
	defer rows.Close()

	var fps []model.Fingerprint
	for rows.Next() {
		var fp model.Fingerprint
		if err := rows.Scan(&fp.Name, &fp.Address); err != nil {
			return nil, eris.Wrap(err, "postgres: scan fingerprint")
		}
		fps = append(fps, fp)
	}
	return fps, eris.Wrap(rows.Err(), "postgres: iterate fingerprints")
}

func (s *PostgresStore) CreateEntry(ctx context.Context, entry model.Entry) (string, error) {
	id := uuid.New().String()

	var hoursJSON []byte
	if len(entry.OpeningHours) > 0 {
		b, err := json.Marshal(entry.OpeningHours)
		if err != nil {
			return "", eris.Wrap(err, "postgres: marshal hours")
		}
		hoursJSON = b
	}

	// Location is stored twice: as plain lat/lng for the API and as a
	// PostGIS point for spatial queries.
	locWKB, err := ewkb.Marshal(entry.Coordinates.Point(), ewkb.NDR)
	if err != nil {
		return "", eris.Wrap(err, "postgres: encode location")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO entries (id, owner_id, name, address, lat, lng, location, phone, website, hours, route_url, rating, rating_count, category_id, description)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)`,
		id, entry.OwnerID, entry.Name, entry.Address,
		entry.Coordinates.Lat, entry.Coordinates.Lng, locWKB,
		nullIfEmpty(entry.Phone), nullIfEmpty(entry.Website), hoursJSON,
		nullIfEmpty(entry.RouteURL), entry.Rating, entry.RatingCount,
		nullIfEmpty(entry.CategoryID), nullIfEmpty(entry.Description),
	)
	if err != nil {
		return "", eris.Wrap(err, "postgres: insert entry")
	}
	return id, nil
}

func (s *PostgresStore) CreateMedia(ctx context.Context, entryID, url string, order int) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO media (id, entry_id, url, position) VALUES ($1, $2, $3, $4)`,
		uuid.New().String(), entryID, url, order,
	)
	return eris.Wrapf(err, "postgres: insert media for entry %s", entryID)
}

func (s *PostgresStore) FindCategoryBySlug(ctx context.Context, ownerID, slug string) (string, error) {
	var id string
	err := s.pool.QueryRow(ctx,
		`SELECT id FROM categories WHERE owner_id = $1 AND slug = $2`, ownerID, slug,
	).Scan(&id)
	if err == pgx.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", eris.Wrapf(err, "postgres: find category %s", slug)
	}
	return id, nil
}

func (s *PostgresStore) CreateCategory(ctx context.Context, ownerID, label, icon, slug string) (string, error) {
	id := uuid.New().String()
	_, err := s.pool.Exec(ctx,
		`INSERT INTO categories (id, owner_id, slug, label, icon) VALUES ($1, $2, $3, $4, $5)`,
		id, ownerID, slug, label, icon,
	)
	if err != nil {
		return "", eris.Wrapf(err, "postgres: insert category %s", slug)
	}
	return id, nil
}

// --- runs ---

func (s *PostgresStore) CreateRun(ctx context.Context, run model.Run, items []model.Candidate) error {
	criteriaJSON, err := json.Marshal(run.Criteria)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal criteria")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return eris.Wrap(err, "postgres: begin tx")
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	now := time.Now().UTC()
	_, err = tx.Exec(ctx,
		`INSERT INTO runs (id, owner_id, criteria, status, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		run.ID, run.OwnerID, criteriaJSON, string(model.RunStatusImporting), now, now,
	)
	if err != nil {
		return eris.Wrap(err, "postgres: insert run")
	}

	for i, cand := range items {
		candJSON, err := json.Marshal(cand)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal candidate")
		}
		_, err = tx.Exec(ctx,
			`INSERT INTO run_items (run_id, idx, candidate, status, updated_at) VALUES ($1, $2, $3, $4, $5)`,
			run.ID, i, candJSON, string(model.ItemStatusPending), now,
		)
		if err != nil {
			return eris.Wrapf(err, "postgres: insert run item %d", i)
		}
	}

	return eris.Wrap(tx.Commit(ctx), "postgres: commit run")
}

func (s *PostgresStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET status = $1, updated_at = $2 WHERE id = $3`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: update run status %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, outcome *model.Outcome) error {
	outcomeJSON, err := json.Marshal(outcome)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal outcome")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE runs SET outcome = $1, status = $2, updated_at = $3 WHERE id = $4`,
		outcomeJSON, string(model.RunStatusComplete), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run not found: %s", runID)
	}
	return nil
}

func (s *PostgresStore) MarkItem(ctx context.Context, runID string, index int, status model.ItemStatus, entryID, errReason string) error {
	tag, err := s.pool.Exec(ctx,
		`UPDATE run_items SET status = $1, entry_id = $2, error = $3, updated_at = $4 WHERE run_id = $5 AND idx = $6`,
		string(status), nullIfEmpty(entryID), nullIfEmpty(errReason), time.Now().UTC(), runID, index,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: mark item %d of run %s", index, runID)
	}
	if tag.RowsAffected() == 0 {
		return eris.Errorf("run item not found: %s[%d]", runID, index)
	}
	return nil
}

func (s *PostgresStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, owner_id, criteria, status, outcome, created_at, updated_at FROM runs WHERE id = $1`,
		runID,
	)
	return scanPgRun(row)
}

func (s *PostgresStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, owner_id, criteria, status, outcome, created_at, updated_at FROM runs WHERE 1=1`
	var args []any
	arg := func(v any) string {
		args = append(args, v)
		return placeholders[len(args)-1]
	}

	if filter.OwnerID != "" {
		query += ` AND owner_id = ` + arg(filter.OwnerID)
	}
	if filter.Status != "" {
		query += ` AND status = ` + arg(string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ` + arg(limit)
	if filter.Offset > 0 {
		query += ` OFFSET ` + arg(filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanPgRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: list runs iterate")
}

func (s *PostgresStore) ListItems(ctx context.Context, runID string) ([]model.RunItem, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT run_id, idx, candidate, status, entry_id, error, updated_at FROM run_items WHERE run_id = $1 ORDER BY idx`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: list items for run %s", runID)
	}
	defer rows.Close()

	var items []model.RunItem
	for rows.Next() {
		var it model.RunItem
		var candJSON []byte
		var entryID, errReason *string
		if err := rows.Scan(&it.RunID, &it.Index, &candJSON, &it.Status, &entryID, &errReason, &it.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run item")
		}
		if err := json.Unmarshal(candJSON, &it.Candidate); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal candidate")
		}
		if entryID != nil {
			it.EntryID = *entryID
		}
		if errReason != nil {
			it.Error = *errReason
		}
		items = append(items, it)
	}
	return items, eris.Wrap(rows.Err(), "postgres: iterate run items")
}

// helpers

var placeholders = []string{"$1", "$2", "$3", "$4", "$5", "$6", "$7", "$8"}

func scanPgRun(row pgx.Row) (*model.Run, error) {
	var r model.Run
	var criteriaJSON []byte
	var outcomeJSON []byte

	err := row.Scan(&r.ID, &r.OwnerID, &criteriaJSON, &r.Status, &outcomeJSON, &r.CreatedAt, &r.UpdatedAt)
	if err == pgx.ErrNoRows {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan run")
	}

	if err := json.Unmarshal(criteriaJSON, &r.Criteria); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal criteria")
	}
	if len(outcomeJSON) > 0 {
		r.Outcome = &model.Outcome{}
		if err := json.Unmarshal(outcomeJSON, r.Outcome); err != nil {
			return nil, eris.Wrap(err, "postgres: unmarshal outcome")
		}
	}
	return &r, nil
}
