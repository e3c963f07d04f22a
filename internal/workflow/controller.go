package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"screenpilot/internal/logging"
	"screenpilot/internal/notify"
	"screenpilot/internal/planner"
	"screenpilot/internal/workspace"
)

// ErrWorkspaceNotReady aborts a run whose readiness check failed.
var ErrWorkspaceNotReady = errors.New("workspace not ready")

// WorkspaceChecker is the slice of the workspace verifier the
// controller needs.
type WorkspaceChecker interface {
	Check() (*workspace.Report, error)
}

// WorkflowResult aggregates a full run.
type WorkflowResult struct {
	RunID      string            `json:"run_id"`
	Total      int               `json:"total"`
	Successful int               `json:"successful"`
	Failed     int               `json:"failed"`
	Stopped    bool              `json:"stopped"`
	Details    []ObjectiveResult `json:"details"`
}

// Controller drives a whole workflow: plan everything, check the
// workspace once, then execute objectives in order with fail-fast
// across objectives.
type Controller struct {
	planner   *planner.Planner
	workspace WorkspaceChecker
	retry     *RetryExecutor
	sink      notify.Sink
}

// NewController wires a workflow controller. A nil sink gets a log
// sink; workspace may be nil to skip the readiness check (tests).
func NewController(p *planner.Planner, ws WorkspaceChecker, retry *RetryExecutor, sink notify.Sink) *Controller {
	if sink == nil {
		sink = notify.NewLogSink()
	}
	return &Controller{planner: p, workspace: ws, retry: retry, sink: sink}
}

// Run validates, plans and executes the objectives. Preparation covers
// every objective before anything executes: a workflow that cannot be
// fully planned never touches the application.
func (c *Controller) Run(ctx context.Context, objectives []planner.Objective) (*WorkflowResult, error) {
	runID := uuid.NewString()
	logging.Workflow("run %s: %d objectives", runID, len(objectives))

	if err := planner.ValidateObjectives(objectives); err != nil {
		return nil, fmt.Errorf("invalid objectives: %w", err)
	}

	prepared, err := c.planner.PrepareAll(objectives)
	if err != nil {
		c.sink.Notify(notify.Event{
			Subject:  "Workflow aborted",
			Message:  fmt.Sprintf("planning failed, nothing executed: %v", err),
			Location: "planning",
			Time:     time.Now(),
		})
		return nil, fmt.Errorf("planning failed: %w", err)
	}

	if c.workspace != nil {
		report, err := c.workspace.Check()
		if err != nil {
			return nil, fmt.Errorf("workspace check failed: %w", err)
		}
		if !report.Ready {
			c.sink.Notify(notify.Event{
				Subject:  "Workflow aborted",
				Message:  fmt.Sprintf("workspace not ready: %s", report.Detail),
				Location: "workspace check",
				Time:     time.Now(),
			})
			return nil, fmt.Errorf("%w: %s", ErrWorkspaceNotReady, report.Detail)
		}
	}

	result := &WorkflowResult{RunID: runID, Total: len(prepared)}
	for i, prep := range prepared {
		if err := ctx.Err(); err != nil {
			result.Stopped = true
			logging.WorkflowWarn("run %s cancelled before objective %d: %v", runID, i+1, err)
			break
		}

		or := runObjective(ctx, c.retry, prep)
		result.Details = append(result.Details, or)
		if or.Status != StatusSuccess {
			result.Failed++
			result.Stopped = i+1 < len(prepared)
			logging.WorkflowWarn("run %s stopped at objective %d/%d (%s[%d])",
				runID, i+1, len(prepared), or.ObjectiveType, or.ValueSetIndex)
			break
		}
		result.Successful++
	}

	logging.Workflow("run %s finished: %d/%d successful, %d failed, stopped=%v",
		runID, result.Successful, result.Total, result.Failed, result.Stopped)
	return result, nil
}
