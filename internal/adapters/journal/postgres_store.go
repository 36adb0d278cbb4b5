package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/trebuchet-org/treb-plan/internal/domain"
	"github.com/trebuchet-org/treb-plan/internal/usecase"
)

const pingTimeout = 5 * time.Second

const schema = `
CREATE TABLE IF NOT EXISTS plan_journal (
	network    TEXT PRIMARY KEY,
	revision   BIGINT NOT NULL,
	steps      JSONB NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE TABLE IF NOT EXISTS plan_journal_revisions (
	network     TEXT NOT NULL,
	revision    BIGINT NOT NULL,
	steps       JSONB NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL DEFAULT now(),
	PRIMARY KEY (network, revision)
);`

// PostgresStore keeps journals in PostgreSQL so several operators can share them.
// Every persisted revision is also appended to plan_journal_revisions.
type PostgresStore struct {
	db *sql.DB
}

// OpenPostgresStore connects to the database and creates the journal tables
func OpenPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open journal database: %w", err)
	}
	db.SetMaxOpenConns(4)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping journal database: %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create journal tables: %w", err)
	}

	return &PostgresStore{db: db}, nil
}

// Close releases the connection pool
func (s *PostgresStore) Close() error {
	return s.db.Close()
}

type advisoryLock struct {
	conn    *sql.Conn
	network string
}

func (l *advisoryLock) Unlock() error {
	if l.conn == nil {
		return nil
	}
	defer func() {
		_ = l.conn.Close()
		l.conn = nil
	}()

	ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
	defer cancel()
	if _, err := l.conn.ExecContext(ctx, `SELECT pg_advisory_unlock(hashtext($1))`, l.network); err != nil {
		return fmt.Errorf("release journal lock: %w", err)
	}
	return nil
}

// Lock takes a session advisory lock on the network. The lock lives as long as
// the dedicated connection it was taken on.
func (s *PostgresStore) Lock(ctx context.Context, network string) (usecase.JournalLock, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire journal connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRowContext(ctx, `SELECT pg_try_advisory_lock(hashtext($1))`, network).Scan(&acquired); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("acquire journal lock: %w", err)
	}
	if !acquired {
		_ = conn.Close()
		return nil, fmt.Errorf("%w: network %s", domain.ErrJournalLocked, network)
	}

	return &advisoryLock{conn: conn, network: network}, nil
}

// Load reads the journal of a network. Returns an empty journal if none was written yet.
func (s *PostgresStore) Load(ctx context.Context, network string) (*domain.Journal, error) {
	var (
		revision int64
		steps    []byte
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT revision, steps FROM plan_journal WHERE network = $1`,
		network,
	).Scan(&revision, &steps)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.NewJournal(network), nil
	}
	if err != nil {
		return nil, fmt.Errorf("load journal: %w", err)
	}

	j := domain.NewJournal(network)
	j.Revision = uint64(revision)
	if err := json.Unmarshal(steps, &j.Steps); err != nil {
		return nil, fmt.Errorf("decode journal of %s: %w", network, err)
	}
	if j.Steps == nil {
		j.Steps = make(map[string]*domain.StepResult)
	}
	j.DropEmpty()
	return j, nil
}

// Persist writes the journal if the stored revision still matches the one it
// was loaded at, and advances the revision.
func (s *PostgresStore) Persist(ctx context.Context, j *domain.Journal) error {
	steps, err := json.Marshal(j.Steps)
	if err != nil {
		return fmt.Errorf("encode journal: %w", err)
	}
	next := int64(j.Revision) + 1

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin journal write: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var res sql.Result
	if j.Revision == 0 {
		res, err = tx.ExecContext(ctx,
			`INSERT INTO plan_journal (network, revision, steps) VALUES ($1, $2, $3)
			 ON CONFLICT (network) DO NOTHING`,
			j.Network, next, steps,
		)
	} else {
		res, err = tx.ExecContext(ctx,
			`UPDATE plan_journal SET revision = $2, steps = $3, updated_at = now()
			 WHERE network = $1 AND revision = $4`,
			j.Network, next, steps, int64(j.Revision),
		)
	}
	if err != nil {
		return fmt.Errorf("write journal: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("write journal: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: revision %d is stale", domain.ErrJournalConflict, j.Revision)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO plan_journal_revisions (network, revision, steps) VALUES ($1, $2, $3)`,
		j.Network, next, steps,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: revision %d already recorded", domain.ErrJournalConflict, next)
		}
		return fmt.Errorf("record journal revision: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit journal: %w", err)
	}

	j.Revision = uint64(next)
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// Ensure PostgresStore implements JournalStore
var _ usecase.JournalStore = (*PostgresStore)(nil)
