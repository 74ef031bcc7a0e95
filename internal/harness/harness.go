package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/buildml/internal/graph"
	"github.com/roach88/buildml/internal/record"
	"github.com/roach88/buildml/internal/report"
	"github.com/roach88/buildml/internal/store"
)

// Harness holds one scenario's store and the ids its record was given.
type Harness struct {
	store   *store.Store
	engine  *report.Engine
	actions []graph.ActionID
	logger  *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Create fresh in-memory database
// 2. Import the scenario's record
// 3. Evaluate every expectation
// 4. Render the snapshot for golden comparison
func Run(scenario *Scenario) (*Result, error) {
	return RunWithLogger(scenario, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

// RunWithLogger is Run with import progress sent to logger.
func RunWithLogger(scenario *Scenario, logger *slog.Logger) (*Result, error) {
	st, err := store.OpenMemory()
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()

	imported, err := record.Import(ctx, st, &scenario.Record, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to import record: %w", err)
	}

	h := &Harness{
		store:   st,
		engine:  report.New(st),
		actions: imported.Actions,
		logger:  logger,
	}

	result := NewResult()
	for i, a := range scenario.Expect {
		if err := h.evaluate(ctx, a); err != nil {
			result.AddError(fmt.Sprintf("expect[%d] %s: %v", i, a.Type, err))
		}
	}

	snapshot, err := h.snapshot(ctx, scenario)
	if err != nil {
		return nil, fmt.Errorf("failed to render snapshot: %w", err)
	}
	result.Snapshot = snapshot

	h.logger.Info("scenario evaluated",
		"scenario", scenario.Name,
		"pass", result.Pass,
		"errors", len(result.Errors),
	)
	return result, nil
}
