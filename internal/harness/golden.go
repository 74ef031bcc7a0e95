package harness

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/buildml/internal/graph"
)

// snapshot renders the imported build and its summary reports as text.
// Paths are shown with their enclosing root, accesses in path id order.
func (h *Harness) snapshot(ctx context.Context, scenario *Scenario) (string, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "scenario: %s\n", scenario.Name)

	fmt.Fprintln(&b, "actions:")
	for i, id := range h.actions {
		cmd, err := h.store.Command(ctx, id)
		if err != nil {
			return "", err
		}
		dir, err := h.store.ActionDirectory(ctx, id)
		if err != nil {
			return "", err
		}
		dirName, err := h.store.PathName(ctx, dir, true)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "  [%d] %s\n", i, cmd)
		fmt.Fprintf(&b, "      in %s\n", dirName)

		files, err := h.store.FilesAccessed(ctx, id, graph.OpUnspecified)
		if err != nil {
			return "", err
		}
		for _, f := range files {
			op, err := h.store.AccessState(ctx, id, f)
			if err != nil {
				return "", err
			}
			name, err := h.store.PathName(ctx, f, true)
			if err != nil {
				return "", err
			}
			fmt.Fprintf(&b, "      %-8s %s\n", op, name)
		}
	}

	counts, err := h.engine.MostCommonlyAccessedFiles(ctx, 0)
	if err != nil {
		return "", err
	}
	fmt.Fprintln(&b, "most accessed:")
	if len(counts) == 0 {
		fmt.Fprintln(&b, "  (none)")
	}
	for _, c := range counts {
		name, err := h.store.PathName(ctx, c.Path, true)
		if err != nil {
			return "", err
		}
		fmt.Fprintf(&b, "  %d %s\n", c.Count, name)
	}

	writeOnly, err := h.engine.WriteOnlyFiles(ctx)
	if err != nil {
		return "", err
	}
	if err := h.writeList(ctx, &b, "write only", writeOnly); err != nil {
		return "", err
	}

	never, err := h.engine.FilesNeverAccessed(ctx)
	if err != nil {
		return "", err
	}
	if err := h.writeList(ctx, &b, "never accessed", never); err != nil {
		return "", err
	}

	return b.String(), nil
}

func (h *Harness) writeList(ctx context.Context, b *strings.Builder, title string, ids []graph.PathID) error {
	fmt.Fprintf(b, "%s:\n", title)
	if len(ids) == 0 {
		fmt.Fprintln(b, "  (none)")
		return nil
	}
	for _, id := range ids {
		name, err := h.store.PathName(ctx, id, true)
		if err != nil {
			return err
		}
		fmt.Fprintf(b, "  %s\n", name)
	}
	return nil
}

// RunWithGolden executes a scenario, fails t for every unmet expectation and
// compares the snapshot against testdata/golden/{scenario.Name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func RunWithGolden(t *testing.T, scenario *Scenario) error {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return err
	}
	for _, e := range result.Errors {
		t.Error(e)
	}

	AssertGolden(t, scenario.Name, result)
	return nil
}

// AssertGolden compares an existing result's snapshot against a golden file.
func AssertGolden(t *testing.T, name string, result *Result) {
	t.Helper()

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, []byte(result.Snapshot))
}
