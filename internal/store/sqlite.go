package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/stayguide/guide-cli/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS entries (
	id           TEXT PRIMARY KEY,
	owner_id     TEXT NOT NULL,
	name         TEXT NOT NULL,
	address      TEXT NOT NULL,
	lat          REAL NOT NULL,
	lng          REAL NOT NULL,
	phone        TEXT,
	website      TEXT,
	hours        TEXT,
	route_url    TEXT,
	rating       REAL,
	rating_count INTEGER,
	category_id  TEXT REFERENCES categories(id),
	description  TEXT,
	created_at   DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS media (
	id         TEXT PRIMARY KEY,
	entry_id   TEXT NOT NULL REFERENCES entries(id),
	url        TEXT NOT NULL,
	position   INTEGER NOT NULL DEFAULT 0,
	created_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS categories (
	id         TEXT PRIMARY KEY,
	owner_id   TEXT NOT NULL,
	slug       TEXT NOT NULL,
	label      TEXT NOT NULL,
	icon       TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	UNIQUE(owner_id, slug)
);

CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	owner_id   TEXT NOT NULL,
	criteria   TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'importing',
	outcome    TEXT,
	created_at DATETIME NOT NULL DEFAULT (datetime('now')),
	updated_at DATETIME NOT NULL DEFAULT (datetime('now'))
);

CREATE TABLE IF NOT EXISTS run_items (
	run_id     TEXT NOT NULL REFERENCES runs(id),
	idx        INTEGER NOT NULL,
	candidate  TEXT NOT NULL,
	status     TEXT NOT NULL DEFAULT 'pending',
	entry_id   TEXT,
	error      TEXT,
	updated_at DATETIME NOT NULL DEFAULT (datetime('now')),
	PRIMARY KEY (run_id, idx)
);

CREATE INDEX IF NOT EXISTS idx_entries_owner ON entries(owner_id);
CREATE INDEX IF NOT EXISTS idx_media_entry ON media(entry_id);
CREATE INDEX IF NOT EXISTS idx_runs_owner ON runs(owner_id);
CREATE INDEX IF NOT EXISTS idx_runs_status ON runs(status);
CREATE INDEX IF NOT EXISTS idx_run_items_status ON run_items(run_id, status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- inventory ---

func (s *SQLiteStore) ExistingFingerprints(ctx context.Context, ownerID string) ([]model.Fingerprint, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, address FROM entries WHERE owner_id = ?`, ownerID,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list fingerprints")
	}
	defer rows.Close()

	var fps []model.Fingerprint
	for rows.Next() {
		var fp model.Fingerprint
		if err := rows.Scan(&fp.Name, &fp.Address); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan fingerprint")
		}
		fps = append(fps, fp)
	}
	return fps, eris.Wrap(rows.Err(), "sqlite: iterate fingerprints")
}

func (s *SQLiteStore) CreateEntry(ctx context.Context, entry model.Entry) (string, error) {
	id := uuid.New().String()

	var hoursJSON sql.NullString
	if len(entry.OpeningHours) > 0 {
		b, err := json.Marshal(entry.OpeningHours)
		if err != nil {
			return "", eris.Wrap(err, "sqlite: marshal hours")
		}
		hoursJSON = sql.NullString{String: string(b), Valid: true}
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO entries (id, owner_id, name, address, lat, lng, phone, website, hours, route_url, rating, rating_count, category_id, description)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, entry.OwnerID, entry.Name, entry.Address,
		entry.Coordinates.Lat, entry.Coordinates.Lng,
		nullIfEmpty(entry.Phone), nullIfEmpty(entry.Website), hoursJSON,
		nullIfEmpty(entry.RouteURL), entry.Rating, entry.RatingCount,
		nullIfEmpty(entry.CategoryID), nullIfEmpty(entry.Description),
	)
	if err != nil {
		return "", eris.Wrap(err, "sqlite: insert entry")
	}
	return id, nil
}

func (s *SQLiteStore) CreateMedia(ctx context.Context, entryID, url string, order int) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO media (id, entry_id, url, position) VALUES (?, ?, ?, ?)`,
		uuid.New().String(), entryID, url, order,
	)
	return eris.Wrapf(err, "sqlite: insert media for entry %s", entryID)
}

func (s *SQLiteStore) FindCategoryBySlug(ctx context.Context, ownerID, slug string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM categories WHERE owner_id = ? AND slug = ?`, ownerID, slug,
	).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", eris.Wrapf(err, "sqlite: find category %s", slug)
	}
	return id, nil
}

func (s *SQLiteStore) CreateCategory(ctx context.Context, ownerID, label, icon, slug string) (string, error) {
	id := uuid.New().String()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO categories (id, owner_id, slug, label, icon) VALUES (?, ?, ?, ?, ?)`,
		id, ownerID, slug, label, icon,
	)
	if err != nil {
		return "", eris.Wrapf(err, "sqlite: insert category %s", slug)
	}
	return id, nil
}

// --- runs ---

func (s *SQLiteStore) CreateRun(ctx context.Context, run model.Run, items []model.Candidate) error {
	criteriaJSON, err := json.Marshal(run.Criteria)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal criteria")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	now := time.Now().UTC()
	_, err = tx.ExecContext(ctx,
		`INSERT INTO runs (id, owner_id, criteria, status, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, run.OwnerID, string(criteriaJSON), string(model.RunStatusImporting), now, now,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert run")
	}

	for i, cand := range items {
		candJSON, err := json.Marshal(cand)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal candidate")
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO run_items (run_id, idx, candidate, status, updated_at) VALUES (?, ?, ?, ?, ?)`,
			run.ID, i, string(candJSON), string(model.ItemStatusPending), now,
		)
		if err != nil {
			return eris.Wrapf(err, "sqlite: insert run item %d", i)
		}
	}

	return eris.Wrap(tx.Commit(), "sqlite: commit run")
}

func (s *SQLiteStore) UpdateRunStatus(ctx context.Context, runID string, status model.RunStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: update run status %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, outcome *model.Outcome) error {
	outcomeJSON, err := json.Marshal(outcome)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal outcome")
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE runs SET outcome = ?, status = ?, updated_at = ? WHERE id = ?`,
		string(outcomeJSON), string(model.RunStatusComplete), time.Now().UTC(), runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

func (s *SQLiteStore) MarkItem(ctx context.Context, runID string, index int, status model.ItemStatus, entryID, errReason string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE run_items SET status = ?, entry_id = ?, error = ?, updated_at = ? WHERE run_id = ? AND idx = ?`,
		string(status), nullIfEmpty(entryID), nullIfEmpty(errReason), time.Now().UTC(), runID, index,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: mark item %d of run %s", index, runID)
	}
	return checkRowsAffected(res, "run item", runID)
}

func (s *SQLiteStore) GetRun(ctx context.Context, runID string) (*model.Run, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, owner_id, criteria, status, outcome, created_at, updated_at FROM runs WHERE id = ?`,
		runID,
	)
	return scanRun(row)
}

func (s *SQLiteStore) ListRuns(ctx context.Context, filter RunFilter) ([]model.Run, error) {
	query := `SELECT id, owner_id, criteria, status, outcome, created_at, updated_at FROM runs WHERE 1=1`
	var args []any

	if filter.OwnerID != "" {
		query += ` AND owner_id = ?`
		args = append(args, filter.OwnerID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY created_at DESC`

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	query += ` LIMIT ?`
	args = append(args, limit)

	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, *r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: list runs iterate")
}

func (s *SQLiteStore) ListItems(ctx context.Context, runID string) ([]model.RunItem, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT run_id, idx, candidate, status, entry_id, error, updated_at FROM run_items WHERE run_id = ? ORDER BY idx`,
		runID,
	)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: list items for run %s", runID)
	}
	defer rows.Close()

	var items []model.RunItem
	for rows.Next() {
		var it model.RunItem
		var candJSON string
		var entryID, errReason sql.NullString
		if err := rows.Scan(&it.RunID, &it.Index, &candJSON, &it.Status, &entryID, &errReason, &it.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run item")
		}
		if err := json.Unmarshal([]byte(candJSON), &it.Candidate); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal candidate")
		}
		it.EntryID = entryID.String
		it.Error = errReason.String
		items = append(items, it)
	}
	return items, eris.Wrap(rows.Err(), "sqlite: iterate run items")
}

// helpers

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "rows affected")
	}
	if n == 0 {
		return eris.Errorf("%s not found: %s", entity, id)
	}
	return nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

type scannable interface {
	Scan(dest ...any) error
}

func scanRun(row scannable) (*model.Run, error) {
	var r model.Run
	var criteriaJSON string
	var outcomeJSON sql.NullString

	err := row.Scan(&r.ID, &r.OwnerID, &criteriaJSON, &r.Status, &outcomeJSON, &r.CreatedAt, &r.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, eris.New("run not found")
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: scan run")
	}

	if err := json.Unmarshal([]byte(criteriaJSON), &r.Criteria); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal criteria")
	}
	if outcomeJSON.Valid {
		r.Outcome = &model.Outcome{}
		if err := json.Unmarshal([]byte(outcomeJSON.String), r.Outcome); err != nil {
			return nil, eris.Wrap(err, "sqlite: unmarshal outcome")
		}
	}
	return &r, nil
}
