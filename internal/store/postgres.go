package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/licitaradar/radar/internal/model"
)

// Pool is the subset of pgxpool.Pool the store uses, extracted so tests can
// substitute pgxmock.
type Pool interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Ping(ctx context.Context) error
	Close()
}

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool Pool
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
	return &PostgresStore{pool: pool}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS search_sessions (
	id             TEXT PRIMARY KEY,
	user_id        TEXT NOT NULL,
	params         JSONB NOT NULL,
	status         TEXT NOT NULL DEFAULT 'created',
	pipeline_stage TEXT NOT NULL DEFAULT '',
	error_code     TEXT NOT NULL DEFAULT '',
	error_message  TEXT NOT NULL DEFAULT '',
	response_state TEXT NOT NULL DEFAULT '',
	items_total    INTEGER NOT NULL DEFAULT 0,
	items_relevant INTEGER NOT NULL DEFAULT 0,
	summary        TEXT NOT NULL DEFAULT '',
	excel_path     TEXT NOT NULL DEFAULT '',
	started_at     TIMESTAMPTZ NOT NULL,
	completed_at   TIMESTAMPTZ,
	duration_ms    BIGINT NOT NULL DEFAULT 0,
	updated_at     TIMESTAMPTZ NOT NULL DEFAULT now()
);

CREATE TABLE IF NOT EXISTS cache_entries (
	key        TEXT PRIMARY KEY,
	payload    JSONB NOT NULL,
	sources    JSONB NOT NULL,
	fetched_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS feedback (
	user_id    TEXT NOT NULL,
	search_id  TEXT NOT NULL,
	item_id    TEXT NOT NULL,
	verdict    TEXT NOT NULL,
	category   TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (user_id, search_id, item_id)
);

CREATE INDEX IF NOT EXISTS idx_sessions_status ON search_sessions(status);
CREATE INDEX IF NOT EXISTS idx_sessions_user ON search_sessions(user_id);
CREATE INDEX IF NOT EXISTS idx_cache_fetched_at ON cache_entries(fetched_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.pool.Exec(ctx, postgresMigration)
	return eris.Wrap(err, "postgres: migrate")
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) CreateSession(ctx context.Context, sess *model.SearchSession) error {
	paramsJSON, err := json.Marshal(sess.Params)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal params")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO search_sessions (id, user_id, params, status, pipeline_stage, started_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		sess.ID, sess.UserID, paramsJSON, string(sess.Status), string(sess.PipelineStage),
		sess.StartedAt.UTC(), time.Now().UTC(),
	)
	return eris.Wrap(err, "postgres: insert session")
}

func (s *PostgresStore) PatchSession(ctx context.Context, id string, patch model.SessionPatch) error {
	if patch.Empty() {
		return nil
	}
	query, args, err := patchBuilder(id, patch, sq.Dollar)
	if err != nil {
		return eris.Wrap(err, "postgres: build patch")
	}
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return eris.Wrapf(err, "postgres: patch session %s", id)
	}
	if patch.Status != nil && tag.RowsAffected() == 0 {
		if _, getErr := s.GetSession(ctx, id); getErr != nil {
			return getErr
		}
	}
	return nil
}

func (s *PostgresStore) GetSession(ctx context.Context, id string) (*model.SearchSession, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT id, user_id, params, status, pipeline_stage, error_code, error_message,
		        response_state, items_total, items_relevant, summary, excel_path,
		        started_at, completed_at, duration_ms
		 FROM search_sessions WHERE id = $1`, id)
	sess, err := scanPgSession(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get session %s", id)
	}
	return sess, nil
}

func (s *PostgresStore) ListSessions(ctx context.Context, filter SessionFilter) ([]model.SearchSession, error) {
	b := sq.Select("id", "user_id", "params", "status", "pipeline_stage", "error_code",
		"error_message", "response_state", "items_total", "items_relevant", "summary",
		"excel_path", "started_at", "completed_at", "duration_ms").
		From("search_sessions").
		PlaceholderFormat(sq.Dollar).
		OrderBy("started_at DESC")

	if filter.UserID != "" {
		b = b.Where(sq.Eq{"user_id": filter.UserID})
	}
	if filter.Status != "" {
		b = b.Where(sq.Eq{"status": string(filter.Status)})
	}
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	b = b.Limit(uint64(limit))
	if filter.Offset > 0 {
		b = b.Offset(uint64(filter.Offset))
	}

	query, args, err := b.ToSql()
	if err != nil {
		return nil, eris.Wrap(err, "postgres: build list query")
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list sessions")
	}
	defer rows.Close()

	var sessions []model.SearchSession
	for rows.Next() {
		sess, err := scanPgSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, *sess)
	}
	return sessions, eris.Wrap(rows.Err(), "postgres: list sessions iterate")
}

func (s *PostgresStore) SweepStale(ctx context.Context, message string) (int, error) {
	now := time.Now().UTC()
	tag, err := s.pool.Exec(ctx,
		`UPDATE search_sessions
		 SET status = $1, error_code = $2, error_message = $3, completed_at = $4, updated_at = $4
		 WHERE status IN ($5, $6)`,
		string(model.StatusTimedOut), string(model.ErrTimeout), message, now,
		string(model.StatusCreated), string(model.StatusProcessing),
	)
	if err != nil {
		return 0, eris.Wrap(err, "postgres: sweep stale sessions")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) GetCacheRow(ctx context.Context, key string, notBefore time.Time) (*CacheRow, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT key, payload, sources, fetched_at FROM cache_entries
		 WHERE key = $1 AND fetched_at > $2`,
		key, notBefore.UTC(),
	)

	var cr CacheRow
	var sourcesJSON []byte
	err := row.Scan(&cr.Key, &cr.Payload, &sourcesJSON, &cr.FetchedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, eris.Wrap(err, "postgres: get cache row")
	}
	if err := json.Unmarshal(sourcesJSON, &cr.Sources); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal cache sources")
	}
	return &cr, nil
}

func (s *PostgresStore) PutCacheRow(ctx context.Context, row CacheRow) error {
	sourcesJSON, err := json.Marshal(row.Sources)
	if err != nil {
		return eris.Wrap(err, "postgres: marshal cache sources")
	}

	_, err = s.pool.Exec(ctx,
		`INSERT INTO cache_entries (key, payload, sources, fetched_at) VALUES ($1, $2, $3, $4)
		 ON CONFLICT (key) DO UPDATE SET payload = EXCLUDED.payload,
		   sources = EXCLUDED.sources, fetched_at = EXCLUDED.fetched_at`,
		row.Key, row.Payload, sourcesJSON, row.FetchedAt.UTC(),
	)
	return eris.Wrap(err, "postgres: put cache row")
}

func (s *PostgresStore) DeleteExpiredCache(ctx context.Context, before time.Time) (int, error) {
	tag, err := s.pool.Exec(ctx,
		`DELETE FROM cache_entries WHERE fetched_at <= $1`, before.UTC())
	if err != nil {
		return 0, eris.Wrap(err, "postgres: delete expired cache")
	}
	return int(tag.RowsAffected()), nil
}

func (s *PostgresStore) UpsertFeedback(ctx context.Context, fb model.Feedback) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO feedback (user_id, search_id, item_id, verdict, category, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 ON CONFLICT (user_id, search_id, item_id) DO UPDATE SET
		   verdict = EXCLUDED.verdict, category = EXCLUDED.category, created_at = EXCLUDED.created_at`,
		fb.UserID, fb.SearchID, fb.ItemID, fb.Verdict, fb.Category, fb.CreatedAt.UTC(),
	)
	return eris.Wrap(err, "postgres: upsert feedback")
}

func scanPgSession(row pgx.Row) (*model.SearchSession, error) {
	var sess model.SearchSession
	var paramsJSON []byte
	var completedAt *time.Time

	err := row.Scan(&sess.ID, &sess.UserID, &paramsJSON, &sess.Status, &sess.PipelineStage,
		&sess.ErrorCode, &sess.ErrorMessage, &sess.ResponseState,
		&sess.ItemsTotal, &sess.ItemsRelevant, &sess.Summary, &sess.ExcelPath,
		&sess.StartedAt, &completedAt, &sess.DurationMS)
	if err != nil {
		return nil, err
	}

	if err := json.Unmarshal(paramsJSON, &sess.Params); err != nil {
		return nil, eris.Wrap(err, "postgres: unmarshal params")
	}
	sess.CompletedAt = completedAt
	return &sess, nil
}
