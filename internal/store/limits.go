package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	sqlite "modernc.org/sqlite"
)

// ErrLockHeld reports that another generation already holds the lock for
// an identity. It is the correct-path contention signal, not a fault.
var ErrLockHeld = errors.New("generation lock held")

// sqlite constraint result codes (SQLITE_CONSTRAINT_PRIMARYKEY and
// SQLITE_CONSTRAINT_UNIQUE).
const (
	sqliteConstraintPrimaryKey = 1555
	sqliteConstraintUnique     = 2067
)

func isDuplicateKey(err error) bool {
	var se *sqlite.Error
	if !errors.As(err, &se) {
		return false
	}
	return se.Code() == sqliteConstraintPrimaryKey || se.Code() == sqliteConstraintUnique
}

// CountInWindow counts admitted requests for (identity, class) at or after
// the window start.
func (s *Store) CountInWindow(ctx context.Context, identity, class string, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM api_rate_limits WHERE identity = ? AND op_class = ? AND created_at >= ?`,
		identity, class, since.UTC()).Scan(&count)
	return count, err
}

// OldestInWindow returns the timestamp of the oldest qualifying record, so
// the limiter can compute an exact reset time instead of an approximation.
func (s *Store) OldestInWindow(ctx context.Context, identity, class string, since time.Time) (time.Time, bool, error) {
	var created string
	err := s.db.QueryRowContext(ctx,
		`SELECT created_at FROM api_rate_limits
		 WHERE identity = ? AND op_class = ? AND created_at >= ?
		 ORDER BY created_at ASC LIMIT 1`,
		identity, class, since.UTC()).Scan(&created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, err
	}
	ts, perr := time.Parse(time.RFC3339Nano, created)
	if perr != nil {
		return time.Time{}, false, perr
	}
	return ts, true, nil
}

// RecordRequest inserts one admitted-request row. Rows are append-only;
// limiter correctness depends only on counting and the oldest timestamp.
func (s *Store) RecordRequest(ctx context.Context, identity, class string, at time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO api_rate_limits(identity, op_class, created_at) VALUES(?, ?, ?)`,
		identity, class, at.UTC())
	return err
}

// PruneRequestsBefore deletes rate-limit rows for (identity, class) older
// than the window. Best-effort garbage collection.
func (s *Store) PruneRequestsBefore(ctx context.Context, identity, class string, cutoff time.Time) error {
	_, err := s.db.ExecContext(ctx,
		`DELETE FROM api_rate_limits WHERE identity = ? AND op_class = ? AND created_at < ?`,
		identity, class, cutoff.UTC())
	return err
}

// PruneAllRequestsBefore deletes every rate-limit row older than the
// cutoff, across identities. Used by periodic housekeeping; the
// per-request prune only touches the caller's own window.
func (s *Store) PruneAllRequestsBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM api_rate_limits WHERE created_at < ?`, cutoff.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// AcquireLock inserts the lock row for an identity. The primary key on
// identity makes the storage layer arbitrate concurrent acquisitions;
// a duplicate-key result maps to ErrLockHeld.
func (s *Store) AcquireLock(ctx context.Context, identity string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO generation_locks(identity, acquired_at) VALUES(?, ?)`,
		identity, s.clock().UTC())
	if err != nil {
		if isDuplicateKey(err) {
			return ErrLockHeld
		}
		return err
	}
	return nil
}

// ReleaseLock deletes the lock row unconditionally.
func (s *Store) ReleaseLock(ctx context.Context, identity string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM generation_locks WHERE identity = ?`, identity)
	return err
}

// ReapLocks clears locks acquired before the threshold. A stuck lock
// permanently blocks its identity, so housekeeping calls this on a timer.
func (s *Store) ReapLocks(ctx context.Context, olderThan time.Time) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM generation_locks WHERE acquired_at < ?`, olderThan.UTC())
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}
