package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/licitaradar/radar/internal/model"
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
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS search_sessions (
	id             TEXT PRIMARY KEY,
	user_id        TEXT NOT NULL,
	params         TEXT NOT NULL,
	status         TEXT NOT NULL DEFAULT 'created',
	pipeline_stage TEXT NOT NULL DEFAULT '',
	error_code     TEXT NOT NULL DEFAULT '',
	error_message  TEXT NOT NULL DEFAULT '',
	response_state TEXT NOT NULL DEFAULT '',
	items_total    INTEGER NOT NULL DEFAULT 0,
	items_relevant INTEGER NOT NULL DEFAULT 0,
	summary        TEXT NOT NULL DEFAULT '',
	excel_path     TEXT NOT NULL DEFAULT '',
	started_at     DATETIME NOT NULL,
	completed_at   DATETIME,
	duration_ms    INTEGER NOT NULL DEFAULT 0,
	updated_at     DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS cache_entries (
	key        TEXT PRIMARY KEY,
	payload    TEXT NOT NULL,
	sources    TEXT NOT NULL,
	fetched_at DATETIME NOT NULL
);

CREATE TABLE IF NOT EXISTS feedback (
	user_id    TEXT NOT NULL,
	search_id  TEXT NOT NULL,
	item_id    TEXT NOT NULL,
	verdict    TEXT NOT NULL,
	category   TEXT NOT NULL DEFAULT '',
	created_at DATETIME NOT NULL,
	PRIMARY KEY (user_id, search_id, item_id)
);

CREATE INDEX IF NOT EXISTS idx_sessions_status ON search_sessions(status);
CREATE INDEX IF NOT EXISTS idx_sessions_user ON search_sessions(user_id);
CREATE INDEX IF NOT EXISTS idx_cache_fetched_at ON cache_entries(fetched_at);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) CreateSession(ctx context.Context, sess *model.SearchSession) error {
	paramsJSON, err := json.Marshal(sess.Params)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal params")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO search_sessions (id, user_id, params, status, pipeline_stage, started_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.UserID, string(paramsJSON), string(sess.Status), string(sess.PipelineStage),
		sess.StartedAt.UTC(), time.Now().UTC(),
	)
	return eris.Wrap(err, "sqlite: insert session")
}

func (s *SQLiteStore) PatchSession(ctx context.Context, id string, patch model.SessionPatch) error {
	if patch.Empty() {
		return nil
	}
	query, args, err := patchBuilder(id, patch, sq.Question)
	if err != nil {
		return eris.Wrap(err, "sqlite: build patch")
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return eris.Wrapf(err, "sqlite: patch session %s", id)
	}
	if patch.Status == nil {
		return nil
	}
	// Zero rows on a status write means the session was already terminal or
	// absent; either way the write is a no-op by design, but an absent row is
	// an error the caller should see.
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		if _, getErr := s.GetSession(ctx, id); getErr != nil {
			return getErr
		}
	}
	return nil
}

func (s *SQLiteStore) GetSession(ctx context.Context, id string) (*model.SearchSession, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, user_id, params, status, pipeline_stage, error_code, error_message,
		        response_state, items_total, items_relevant, summary, excel_path,
		        started_at, completed_at, duration_ms
		 FROM search_sessions WHERE id = ?`, id)
	return scanSession(row)
}

func (s *SQLiteStore) ListSessions(ctx context.Context, filter SessionFilter) ([]model.SearchSession, error) {
	query := `SELECT id, user_id, params, status, pipeline_stage, error_code, error_message,
	                 response_state, items_total, items_relevant, summary, excel_path,
	                 started_at, completed_at, duration_ms
	          FROM search_sessions WHERE 1=1`
	var args []any

	if filter.UserID != "" {
		query += ` AND user_id = ?`
		args = append(args, filter.UserID)
	}
	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	query += ` ORDER BY started_at DESC`

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
		return nil, eris.Wrap(err, "sqlite: list sessions")
	}
	defer rows.Close()

	var sessions []model.SearchSession
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *sess)
	}
	return sessions, eris.Wrap(rows.Err(), "sqlite: list sessions iterate")
}

func (s *SQLiteStore) SweepStale(ctx context.Context, message string) (int, error) {
	now := time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE search_sessions
		 SET status = ?, error_code = ?, error_message = ?, completed_at = ?, updated_at = ?
		 WHERE status IN (?, ?)`,
		string(model.StatusTimedOut), string(model.ErrTimeout), message, now, now,
		string(model.StatusCreated), string(model.StatusProcessing),
	)
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: sweep stale sessions")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) GetCacheRow(ctx context.Context, key string, notBefore time.Time) (*CacheRow, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT key, payload, sources, fetched_at FROM cache_entries
		 WHERE key = ? AND fetched_at > ?`,
		key, notBefore.UTC(),
	)

	var cr CacheRow
	var sourcesJSON string
	err := row.Scan(&cr.Key, &cr.Payload, &sourcesJSON, &cr.FetchedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: get cache row")
	}
	if err := json.Unmarshal([]byte(sourcesJSON), &cr.Sources); err != nil {
		return nil, eris.Wrap(err, "sqlite: unmarshal cache sources")
	}
	return &cr, nil
}

func (s *SQLiteStore) PutCacheRow(ctx context.Context, row CacheRow) error {
	sourcesJSON, err := json.Marshal(row.Sources)
	if err != nil {
		return eris.Wrap(err, "sqlite: marshal cache sources")
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO cache_entries (key, payload, sources, fetched_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(key) DO UPDATE SET payload = excluded.payload,
		   sources = excluded.sources, fetched_at = excluded.fetched_at`,
		row.Key, row.Payload, string(sourcesJSON), row.FetchedAt.UTC(),
	)
	return eris.Wrap(err, "sqlite: put cache row")
}

func (s *SQLiteStore) DeleteExpiredCache(ctx context.Context, before time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM cache_entries WHERE fetched_at <= ?`, before.UTC())
	if err != nil {
		return 0, eris.Wrap(err, "sqlite: delete expired cache")
	}
	n, err := res.RowsAffected()
	return int(n), eris.Wrap(err, "sqlite: rows affected")
}

func (s *SQLiteStore) UpsertFeedback(ctx context.Context, fb model.Feedback) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO feedback (user_id, search_id, item_id, verdict, category, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(user_id, search_id, item_id) DO UPDATE SET
		   verdict = excluded.verdict, category = excluded.category, created_at = excluded.created_at`,
		fb.UserID, fb.SearchID, fb.ItemID, fb.Verdict, fb.Category, fb.CreatedAt.UTC(),
	)
	return eris.Wrap(err, "sqlite: upsert feedback")
}

// helpers

type scannable interface {
	Scan(dest ...any) error
}

func scanSession(row scannable) (*model.SearchSession, error) {
	var sess model.SearchSession
	var paramsJSON string
	var completedAt sql.NullTime

	err := row.Scan(&sess.ID, &sess.UserID, &paramsJSON, &sess.Status, &sess.PipelineStage,
		&sess.ErrorCode, &sess.ErrorMessage, &sess.ResponseState,
		&sess.ItemsTotal, &sess.ItemsRelevant, &sess.Summary, &sess.ExcelPath,
		&sess.StartedAt, &completedAt, &sess.DurationMS)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrap(err, "store: scan session")
	}

	if err := json.Unmarshal([]byte(paramsJSON), &sess.Params); err != nil {
		return nil, eris.Wrap(err, "store: unmarshal params")
	}
	if completedAt.Valid {
		t := completedAt.Time
		sess.CompletedAt = &t
	}
	return &sess, nil
}
