package harness

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/buildml/internal/graph"
)

// AssertionError is returned when an expectation does not hold.
type AssertionError struct {
	Expected string
	Actual   string
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	return fmt.Sprintf("expected %s, got %s", e.Expected, e.Actual)
}

// evaluate checks one expectation against the store.
func (h *Harness) evaluate(ctx context.Context, a Assertion) error {
	switch a.Type {
	case AssertDerived:
		return h.assertWalk(ctx, a, h.engine.DerivedFiles)
	case AssertInputs:
		return h.assertWalk(ctx, a, h.engine.InputFiles)
	case AssertMissing:
		return h.assertMissing(ctx, a)
	case AssertState:
		return h.assertState(ctx, a)
	case AssertWriteOnly:
		got, err := h.engine.WriteOnlyFiles(ctx)
		if err != nil {
			return err
		}
		return h.assertEquals(ctx, a.Equals, got)
	case AssertNeverAccessed:
		got, err := h.engine.FilesNeverAccessed(ctx)
		if err != nil {
			return err
		}
		return h.assertEquals(ctx, a.Equals, got)
	default:
		return fmt.Errorf("unknown assertion type %q", a.Type)
	}
}

type walkFunc func(ctx context.Context, start []graph.PathID, transitive bool) ([]graph.PathID, error)

func (h *Harness) assertWalk(ctx context.Context, a Assertion, walk walkFunc) error {
	from, err := h.resolveAll(ctx, a.From)
	if err != nil {
		return err
	}
	got, err := walk(ctx, from, a.Transitive)
	if err != nil {
		return err
	}

	if a.Equals != nil {
		if err := h.assertEquals(ctx, a.Equals, got); err != nil {
			return err
		}
	}
	if a.Contains != nil {
		if err := h.assertContains(ctx, a.Contains, got); err != nil {
			return err
		}
	}
	return nil
}

// assertEquals compares sets by id; failures are reported by name.
func (h *Harness) assertEquals(ctx context.Context, want []string, got []graph.PathID) error {
	wantIDs, err := h.resolveAll(ctx, want)
	if err != nil {
		return err
	}
	if graph.NewPathSet(wantIDs...).Len() == len(got) && containsAll(got, wantIDs) {
		return nil
	}
	return &AssertionError{
		Expected: formatNames(want),
		Actual:   formatNames(h.names(ctx, got)),
	}
}

func (h *Harness) assertContains(ctx context.Context, want []string, got []graph.PathID) error {
	wantIDs, err := h.resolveAll(ctx, want)
	if err != nil {
		return err
	}
	if containsAll(got, wantIDs) {
		return nil
	}
	return &AssertionError{
		Expected: "a superset of " + formatNames(want),
		Actual:   formatNames(h.names(ctx, got)),
	}
}

func (h *Harness) assertMissing(ctx context.Context, a Assertion) error {
	for _, spec := range a.Paths {
		id, err := h.store.LookupPath(ctx, spec)
		if errors.Is(err, graph.ErrBadPath) {
			continue
		}
		if err != nil {
			return err
		}
		return &AssertionError{
			Expected: fmt.Sprintf("%s to be missing", spec),
			Actual:   fmt.Sprintf("path id %d", id),
		}
	}
	return nil
}

func (h *Harness) assertState(ctx context.Context, a Assertion) error {
	action := h.actions[a.Action]

	want := opNone
	if a.Op != opNone {
		op, err := graph.ParseOpType(a.Op)
		if err != nil {
			return err
		}
		want = op.String()
	}

	got := opNone
	path, err := h.store.LookupPath(ctx, a.Path)
	switch {
	case errors.Is(err, graph.ErrBadPath):
		// A path that no longer exists has no record.
	case err != nil:
		return err
	default:
		op, err := h.store.AccessState(ctx, action, path)
		switch {
		case errors.Is(err, graph.ErrNotFound):
		case err != nil:
			return err
		default:
			got = op.String()
		}
	}

	if got != want {
		return &AssertionError{
			Expected: fmt.Sprintf("action %d %s %s", a.Action, want, a.Path),
			Actual:   got,
		}
	}
	return nil
}

func (h *Harness) resolveAll(ctx context.Context, specs []string) ([]graph.PathID, error) {
	ids := make([]graph.PathID, 0, len(specs))
	for _, spec := range specs {
		id, err := h.store.LookupPath(ctx, spec)
		if err != nil {
			return nil, fmt.Errorf("resolve %s: %w", spec, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

// names renders ids for messages. Unknown ids are shown as numbers.
func (h *Harness) names(ctx context.Context, ids []graph.PathID) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		name, err := h.store.PathName(ctx, id, false)
		if err != nil {
			name = fmt.Sprintf("#%d", id)
		}
		out = append(out, name)
	}
	return out
}

func containsAll(got, want []graph.PathID) bool {
	set := graph.NewPathSet(got...)
	for _, id := range want {
		if !set.Has(id) {
			return false
		}
	}
	return true
}

func formatNames(names []string) string {
	sorted := append([]string(nil), names...)
	sort.Strings(sorted)
	return "{" + strings.Join(sorted, ", ") + "}"
}
