package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
)

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// q returns the handle every statement must go through. With a single
// connection, a statement issued on s.db while the fast-access transaction
// holds the connection would block forever.
func (s *Store) q() querier {
	if s.fast != nil {
		return s.fast
	}
	return s.db
}

// atomically runs fn so that either all of its writes land or none do.
// Outside fast-access mode fn gets its own transaction. Inside it, fn runs in
// a SAVEPOINT on the batch transaction, so a failed operation is rolled back
// without discarding the rest of the batch.
func (s *Store) atomically(ctx context.Context, op string, fn func(q querier) error) error {
	if s.fast != nil {
		return s.inSavepoint(ctx, op, fn)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin tx: %w", op, err)
	}
	defer tx.Rollback() // No-op if committed

	if err := fn(tx); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", op, err)
	}
	return nil
}

func (s *Store) inSavepoint(ctx context.Context, op string, fn func(q querier) error) error {
	tx := s.fast
	if _, err := tx.ExecContext(ctx, "SAVEPOINT op"); err != nil {
		return fmt.Errorf("%s: savepoint: %w", op, err)
	}

	if err := fn(tx); err != nil {
		if _, rbErr := tx.ExecContext(ctx, "ROLLBACK TO op"); rbErr != nil {
			return errors.Join(err, fmt.Errorf("%s: rollback to savepoint: %w", op, rbErr))
		}
		if _, relErr := tx.ExecContext(ctx, "RELEASE op"); relErr != nil {
			return errors.Join(err, fmt.Errorf("%s: release savepoint: %w", op, relErr))
		}
		return err
	}

	if _, err := tx.ExecContext(ctx, "RELEASE op"); err != nil {
		return fmt.Errorf("%s: release savepoint: %w", op, err)
	}
	return nil
}

// FastAccess reports whether fast-access mode is active.
func (s *Store) FastAccess() bool {
	return s.fast != nil
}

// BeginFastAccess switches the store into bulk-ingestion mode. All following
// operations share one transaction with synchronous writes disabled, and are
// applied strictly in call order. Results are durable only after
// EndFastAccess. Calling it while already active is an error.
func (s *Store) BeginFastAccess(ctx context.Context) error {
	if s.fast != nil {
		return errors.New("begin fast access: already active")
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA synchronous = OFF"); err != nil {
		return fmt.Errorf("begin fast access: %w", err)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		_, restoreErr := s.db.Exec("PRAGMA synchronous = NORMAL")
		return errors.Join(fmt.Errorf("begin fast access: begin tx: %w", err), restoreErr)
	}
	s.fast = tx
	return nil
}

// EndFastAccess commits the batch and restores normal durability. It is a
// no-op when fast-access mode is not active.
func (s *Store) EndFastAccess() error {
	if s.fast == nil {
		return nil
	}
	tx := s.fast
	s.fast = nil

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("end fast access: commit: %w", err)
	}
	if _, err := s.db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		return fmt.Errorf("end fast access: %w", err)
	}
	return nil
}

// abortFastAccess discards the batch.
func (s *Store) abortFastAccess() error {
	if s.fast == nil {
		return nil
	}
	tx := s.fast
	s.fast = nil

	err := tx.Rollback()
	if _, pErr := s.db.Exec("PRAGMA synchronous = NORMAL"); pErr != nil {
		err = errors.Join(err, pErr)
	}
	if err != nil {
		return fmt.Errorf("abort fast access: %w", err)
	}
	return nil
}

// WithFastAccess runs fn in fast-access mode. The batch is committed when fn
// succeeds and discarded when it fails. If fast access is already active, fn
// simply joins the existing batch.
func (s *Store) WithFastAccess(ctx context.Context, fn func() error) error {
	if s.fast != nil {
		return fn()
	}
	if err := s.BeginFastAccess(ctx); err != nil {
		return err
	}
	if err := fn(); err != nil {
		return errors.Join(err, s.abortFastAccess())
	}
	return s.EndFastAccess()
}

// Save makes all recorded facts durable in the store's own file: any
// fast-access batch is committed and the WAL is checkpointed into the
// main database file.
func (s *Store) Save(ctx context.Context) error {
	if s.path == "" {
		return errors.New("save: store has no file; use SaveAs")
	}
	if err := s.EndFastAccess(); err != nil {
		return fmt.Errorf("save: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "PRAGMA wal_checkpoint(TRUNCATE)"); err != nil {
		return fmt.Errorf("save: checkpoint: %w", err)
	}
	return nil
}

// SaveAs writes a complete, compacted copy of the store to path. The target
// must not exist. The store keeps working against its original database.
func (s *Store) SaveAs(ctx context.Context, path string) error {
	if path == "" {
		return errors.New("save as: empty path")
	}
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("save as: %s already exists", path)
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("save as: %w", err)
	}
	if err := s.EndFastAccess(); err != nil {
		return fmt.Errorf("save as: %w", err)
	}
	if _, err := s.db.ExecContext(ctx, "VACUUM INTO ?", path); err != nil {
		return fmt.Errorf("save as: %w", err)
	}
	return nil
}
