package workflow

import (
	"context"
	"fmt"

	"screenpilot/internal/logging"
	"screenpilot/internal/planner"
)

// Objective statuses reported in results.
const (
	StatusSuccess = "SUCCESS"
	StatusFailed  = "FAILED"
)

// ObjectiveResult is the outcome of one prepared objective.
type ObjectiveResult struct {
	ObjectiveType string `json:"objective_type"`
	ValueSetIndex int    `json:"values_index"`
	Status        string `json:"status"`
	Message       string `json:"message"`
	// Completed counts instructions that finished (including tolerated
	// skips); Total is the full instruction count.
	Completed int `json:"completed"`
	Total     int `json:"total"`
	Skipped   int `json:"skipped"`
}

// runObjective executes a prepared objective's instructions strictly in
// order, stopping at the first failure. Later instructions are never
// attempted after a failure.
func runObjective(ctx context.Context, retry *RetryExecutor, prep *planner.PreparedObjective) ObjectiveResult {
	res := ObjectiveResult{
		ObjectiveType: prep.ObjectiveType,
		ValueSetIndex: prep.ValueSetIndex,
		Total:         len(prep.Instructions),
	}

	for i, ins := range prep.Instructions {
		if err := ctx.Err(); err != nil {
			res.Status = StatusFailed
			res.Message = fmt.Sprintf("cancelled before instruction %d: %v", i+1, err)
			return res
		}

		logging.Workflow("objective %s[%d] instruction %d/%d: %s",
			prep.ObjectiveType, prep.ValueSetIndex, i+1, res.Total, ins.Description)

		ir := retry.Run(ctx, ins)
		if ir.Skipped {
			res.Skipped++
		}
		if !ir.Succeeded {
			res.Status = StatusFailed
			res.Message = fmt.Sprintf("instruction %d (%s) failed: %s", i+1, ins.Description, ir.Reason)
			logging.WorkflowWarn("objective %s[%d] stopped: %s",
				prep.ObjectiveType, prep.ValueSetIndex, res.Message)
			return res
		}
		res.Completed++
	}

	res.Status = StatusSuccess
	res.Message = fmt.Sprintf("completed %d instructions", res.Completed)
	return res
}
