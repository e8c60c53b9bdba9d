package actionlog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/foldnet/gameserver/internal/domain"
)

const notifyChannel = "gameserver_action_log_changed"

// Postgres is a durable ActionLog backed by pgx. Append runs inside a
// transaction that locks the single metadata row, appends the new
// entry, advances the count, and commits; on a serialization or deadlock
// failure it retries. Watch uses LISTEN/NOTIFY: every committed append
// issues NOTIFY with the new length, and a dedicated connection per
// watcher LISTENs and translates notifications into length advances,
// turning a sparse stream of commits into a monotonic "current count"
// the caller can poll against.
type Postgres struct {
	pool *pgxpool.Pool
	memo *fetchMemo
}

// NewPostgres connects to dsn, verifies connectivity, and ensures the
// action_log schema exists.
func NewPostgres(ctx context.Context, dsn string) (*Postgres, error) {
	if dsn == "" {
		return nil, fmt.Errorf("actionlog: postgres DSN is required")
	}

	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("actionlog: create postgres pool: %w", err)
	}

	p := &Postgres{pool: pool, memo: newFetchMemo()}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
	}
	if err := p.ensureSchema(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return p, nil
}

func (p *Postgres) ensureSchema(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS action_log_metadata (
			singleton BOOLEAN PRIMARY KEY DEFAULT TRUE,
			count BIGINT NOT NULL DEFAULT 0,
			CONSTRAINT action_log_metadata_singleton CHECK (singleton)
		)`,
		`INSERT INTO action_log_metadata (singleton, count) VALUES (TRUE, 0)
			ON CONFLICT (singleton) DO NOTHING`,
		`CREATE TABLE IF NOT EXISTS action_log_entries (
			idx BIGINT PRIMARY KEY,
			module_id TEXT NOT NULL,
			blob BYTEA NOT NULL,
			appended_at TIMESTAMPTZ NOT NULL
		)`,
	}
	for _, s := range stmts {
		if _, err := p.pool.Exec(ctx, s); err != nil {
			return fmt.Errorf("%w: ensure schema: %v", domain.ErrStorageUnavailable, err)
		}
	}
	return nil
}

// Append appends action under moduleID inside a retrying transaction.
func (p *Postgres) Append(ctx context.Context, moduleID domain.ModuleId, action domain.ActionBlob) (uint64, error) {
	const maxAttempts = 5
	var lastErr error
	for attempt := 0; attempt < maxAttempts; attempt++ {
		index, err := p.appendOnce(ctx, moduleID, action)
		if err == nil {
			return index, nil
		}
		if !isRetryable(err) {
			return 0, fmt.Errorf("%w: %v", domain.ErrStorageUnavailable, err)
		}
		lastErr = err
		time.Sleep(backoff(attempt))
	}
	return 0, fmt.Errorf("%w: append exhausted retries: %v", domain.ErrStorageUnavailable, lastErr)
}

// appendOnce returns raw pgx errors (not yet wrapped as
// domain.ErrStorageUnavailable) so Append can inspect the pgconn error
// code to decide whether to retry.
func (p *Postgres) appendOnce(ctx context.Context, moduleID domain.ModuleId, action domain.ActionBlob) (uint64, error) {
	tx, err := p.pool.Begin(ctx)
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	var count uint64
	if err := tx.QueryRow(ctx, `SELECT count FROM action_log_metadata WHERE singleton FOR UPDATE`).Scan(&count); err != nil {
		return 0, fmt.Errorf("read metadata: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`INSERT INTO action_log_entries (idx, module_id, blob, appended_at) VALUES ($1, $2, $3, now())`,
		count, string(moduleID), []byte(action),
	); err != nil {
		return 0, fmt.Errorf("insert entry: %w", err)
	}

	newCount := count + 1
	if _, err := tx.Exec(ctx, `UPDATE action_log_metadata SET count = $1 WHERE singleton`, newCount); err != nil {
		return 0, fmt.Errorf("update metadata: %w", err)
	}

	if _, err := tx.Exec(ctx, `SELECT pg_notify($1, $2)`, notifyChannel, fmt.Sprintf("%d", newCount)); err != nil {
		return 0, fmt.Errorf("notify: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}

	return count, nil
}

func (p *Postgres) Fetch(ctx context.Context, index uint64) (domain.LogEntry, error) {
	return p.memo.fetch(ctx, index, func(ctx context.Context) (domain.LogEntry, error) {
		var moduleID string
		var blob []byte
		err := p.pool.QueryRow(ctx, `SELECT module_id, blob FROM action_log_entries WHERE idx = $1`, index).Scan(&moduleID, &blob)
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.LogEntry{}, domain.ErrLogCorrupt
		}
		if err != nil {
			return domain.LogEntry{}, fmt.Errorf("%w: fetch entry: %v", domain.ErrStorageUnavailable, err)
		}
		return domain.LogEntry{Index: index, ModuleID: domain.ModuleId(moduleID), Action: domain.ActionBlob(blob)}, nil
	})
}

func (p *Postgres) Len(ctx context.Context) (uint64, error) {
	var count uint64
	if err := p.pool.QueryRow(ctx, `SELECT count FROM action_log_metadata WHERE singleton`).Scan(&count); err != nil {
		return 0, fmt.Errorf("%w: read length: %v", domain.ErrStorageUnavailable, err)
	}
	return count, nil
}

// Watch opens a dedicated connection, issues LISTEN, and translates
// notifications into a strictly-increasing stream of lengths: it emits
// the current length (when above from) and then each notified count
// that is higher than the last one emitted, ignoring the rest, so a
// watcher never observes the length jump backward even if notifications
// arrive out of order. Lengths between two emitted counts are not
// emitted individually; consumers fetch every index below the count.
func (p *Postgres) Watch(ctx context.Context, from uint64) (<-chan uint64, error) {
	conn, err := p.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: acquire watch conn: %v", domain.ErrStorageUnavailable, err)
	}
	if _, err := conn.Exec(ctx, "LISTEN "+notifyChannel); err != nil {
		conn.Release()
		return nil, fmt.Errorf("%w: listen: %v", domain.ErrStorageUnavailable, err)
	}

	out := make(chan uint64, 16)
	ceil := from

	go func() {
		defer conn.Release()
		defer close(out)

		if cur, err := p.Len(ctx); err == nil && cur > ceil {
			ceil = cur
			select {
			case out <- ceil:
			case <-ctx.Done():
				return
			}
		}

		for {
			notification, err := conn.Conn().WaitForNotification(ctx)
			if err != nil {
				return
			}
			var notified uint64
			if _, scanErr := fmt.Sscanf(notification.Payload, "%d", &notified); scanErr != nil {
				continue
			}
			if notified <= ceil {
				continue
			}
			ceil = notified
			select {
			case out <- ceil:
			case <-ctx.Done():
				return
			}
		}
	}()

	return out, nil
}

func (p *Postgres) Close() error {
	p.pool.Close()
	return nil
}

func isRetryable(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "40001", "40P01": // serialization_failure, deadlock_detected
			return true
		}
	}
	return false
}

func backoff(attempt int) time.Duration {
	delays := []time.Duration{5 * time.Millisecond, 15 * time.Millisecond, 30 * time.Millisecond, 60 * time.Millisecond, 120 * time.Millisecond}
	if attempt >= len(delays) {
		return delays[len(delays)-1]
	}
	return delays[attempt]
}
