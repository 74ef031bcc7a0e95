package graph

import "sort"

// PathSet is an unordered set of paths.
type PathSet map[PathID]struct{}

// NewPathSet creates a set holding ids.
func NewPathSet(ids ...PathID) PathSet {
	s := make(PathSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s PathSet) Add(id PathID)      { s[id] = struct{}{} }
func (s PathSet) Has(id PathID) bool { _, ok := s[id]; return ok }
func (s PathSet) Len() int           { return len(s) }

// Union adds every member of other to s.
func (s PathSet) Union(other PathSet) {
	for id := range other {
		s[id] = struct{}{}
	}
}

// Clone returns an independent copy.
func (s PathSet) Clone() PathSet {
	c := make(PathSet, len(s))
	c.Union(s)
	return c
}

// Sorted returns the members in ascending id order.
func (s PathSet) Sorted() []PathID {
	ids := make([]PathID, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// ActionSet is an unordered set of actions.
type ActionSet map[ActionID]struct{}

// NewActionSet creates a set holding ids.
func NewActionSet(ids ...ActionID) ActionSet {
	s := make(ActionSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s ActionSet) Add(id ActionID)      { s[id] = struct{}{} }
func (s ActionSet) Has(id ActionID) bool { _, ok := s[id]; return ok }
func (s ActionSet) Len() int             { return len(s) }

// Sorted returns the members in ascending id order.
func (s ActionSet) Sorted() []ActionID {
	ids := make([]ActionID, 0, len(s))
	for id := range s {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}
