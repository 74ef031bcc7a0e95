package store

import (
	"context"
	"fmt"
)

// PurgeResult reports how many trashed entities PurgeTrash removed.
type PurgeResult struct {
	Actions int64 `json:"actions"`
	Paths   int64 `json:"paths"`
}

// PurgeTrash permanently deletes every trashed action and path. Names held by
// trashed paths become available again.
//
// Trashing requires a node to have no live children and reviving requires a
// live parent, so a trashed node's descendants are all trashed too. Paths are
// deleted in descending id order, children before their parents.
func (s *Store) PurgeTrash(ctx context.Context) (PurgeResult, error) {
	var result PurgeResult
	err := s.atomically(ctx, "purge trash", func(q querier) error {
		res, err := q.ExecContext(ctx, `DELETE FROM actions WHERE trashed = 1`)
		if err != nil {
			return fmt.Errorf("purge actions: %w", err)
		}
		if result.Actions, err = res.RowsAffected(); err != nil {
			return fmt.Errorf("purge actions: rows affected: %w", err)
		}

		ids, err := q.QueryContext(ctx, `SELECT id FROM paths WHERE trashed = 1 ORDER BY id DESC`)
		if err != nil {
			return fmt.Errorf("purge paths: %w", err)
		}
		trashed, err := scanPathIDs(ids)
		if err != nil {
			return err
		}

		for _, id := range trashed {
			if _, err := q.ExecContext(ctx, `DELETE FROM paths WHERE id = ?`, id); err != nil {
				return fmt.Errorf("purge path %d: %w", id, err)
			}
			if err := s.purgeAttributes(ctx, id); err != nil {
				return fmt.Errorf("purge path %d: purge attributes: %w", id, err)
			}
			result.Paths++
		}
		return nil
	})
	if err != nil {
		return PurgeResult{}, err
	}
	return result, nil
}
