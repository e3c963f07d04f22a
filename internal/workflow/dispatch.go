// Package workflow executes prepared objectives: it routes instructions
// to action handlers, verifies their effects with bounded retries, and
// aggregates per-objective results with fail-fast semantics.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"screenpilot/internal/planner"
)

// ErrUnsupportedAction marks an action type absent from the dispatch
// table. Callers treat it as a tolerated skip, not a failure.
var ErrUnsupportedAction = errors.New("unsupported action type")

// ExecutorFunc performs an instruction's action.
type ExecutorFunc func(ctx context.Context, ins planner.PreparedInstruction) error

// VerifierFunc checks whether an instruction's effect is visible.
// It returns pass/fail plus a human-readable detail; err is reserved
// for infrastructure problems (capture, OCR), not a failed check.
type VerifierFunc func(ctx context.Context, ins planner.PreparedInstruction) (bool, string, error)

// Handler is the executor/verifier pair for one action type.
type Handler struct {
	Execute ExecutorFunc
	Verify  VerifierFunc
}

// Dispatcher maps action types to handlers. The table is fixed at
// construction; there is no runtime registration.
type Dispatcher struct {
	handlers map[string]Handler
}

// NewDispatcher builds a dispatcher from a handler table. The table is
// copied, so later mutation of the argument has no effect.
func NewDispatcher(handlers map[string]Handler) *Dispatcher {
	table := make(map[string]Handler, len(handlers))
	for k, v := range handlers {
		if v.Execute == nil {
			panic(fmt.Sprintf("handler for %q has no executor", k))
		}
		table[k] = v
	}
	return &Dispatcher{handlers: table}
}

// Dispatch resolves an action type. Unknown types return
// ErrUnsupportedAction.
func (d *Dispatcher) Dispatch(actionType string) (Handler, error) {
	h, ok := d.handlers[actionType]
	if !ok {
		return Handler{}, fmt.Errorf("%w: %q", ErrUnsupportedAction, actionType)
	}
	return h, nil
}

// Supported lists the registered action types, sorted.
func (d *Dispatcher) Supported() []string {
	types := make([]string, 0, len(d.handlers))
	for k := range d.handlers {
		types = append(types, k)
	}
	sort.Strings(types)
	return types
}
