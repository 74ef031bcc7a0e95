package store

import (
	"context"

	"github.com/roach88/buildml/internal/graph"
)

// AttributeStore is the key/value attribute collaborator. Attributes never
// block a trash; the store only drops them when the path goes away.
type AttributeStore interface {
	PurgeAttributes(ctx context.Context, path graph.PathID) error
}

// IncludeGraph is the include-relationship collaborator. A path that takes
// part in an include relationship must not be trashed.
type IncludeGraph interface {
	IncludesBlocking(ctx context.Context, path graph.PathID) (bool, error)
}

func (s *Store) purgeAttributes(ctx context.Context, path graph.PathID) error {
	if s.attrs == nil {
		return nil
	}
	return s.attrs.PurgeAttributes(ctx, path)
}

func (s *Store) includesBlocking(ctx context.Context, path graph.PathID) (bool, error) {
	if s.includes == nil {
		return false, nil
	}
	return s.includes.IncludesBlocking(ctx, path)
}
