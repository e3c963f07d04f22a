package workflow

import (
	"context"
	"errors"
	"testing"

	"screenpilot/internal/catalogue"
	"screenpilot/internal/planner"
	"screenpilot/internal/workspace"
)

// stubSource serves catalogue entries from memory.
type stubSource struct {
	entries map[string]*catalogue.Entry
}

func (s *stubSource) Lookup(objectiveType string) (*catalogue.Entry, error) {
	e, ok := s.entries[objectiveType]
	if !ok {
		return nil, catalogue.ErrNotFound
	}
	return e.Clone(), nil
}

type stubWorkspace struct {
	report workspace.Report
	err    error
	calls  int
}

func (s *stubWorkspace) Check() (*workspace.Report, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return &s.report, nil
}

// countingHandler succeeds always and counts executions per action type.
type countingHandler struct {
	executed []string
	failOn   string // description that should fail verification
}

func (c *countingHandler) table() map[string]Handler {
	exec := func(ctx context.Context, ins planner.PreparedInstruction) error {
		c.executed = append(c.executed, ins.Description)
		return nil
	}
	verify := func(ctx context.Context, ins planner.PreparedInstruction) (bool, string, error) {
		if c.failOn != "" && ins.Description == c.failOn {
			return false, "scripted failure", nil
		}
		return true, "ok", nil
	}
	return map[string]Handler{
		"type_text": {Execute: exec, Verify: verify},
		"press_key": {Execute: exec, Verify: verify},
	}
}

func editCopySource() *stubSource {
	steps := func(descs ...string) []catalogue.Instruction {
		out := make([]catalogue.Instruction, len(descs))
		for i, d := range descs {
			out[i] = catalogue.Instruction{
				ActionType:   "type_text",
				Description:  d,
				Parameters:   map[string]string{"copy_text": ""},
				Verification: &catalogue.Verification{Type: VerifyTextInputted, ExpectedText: "copy_text"},
			}
		}
		return out
	}
	return &stubSource{entries: map[string]*catalogue.Entry{
		"edit_copy": {
			ObjectiveType:  "edit_copy",
			RequiredFields: []string{"copy_text"},
			Instructions:   steps("open copy editor", "replace copy text"),
		},
		"five_step": {
			ObjectiveType: "five_step",
			Instructions:  steps("s1", "s2", "s3", "s4", "s5"),
		},
	}}
}

func newTestController(h *countingHandler, src catalogue.Source, ws *stubWorkspace, sink *recordingSink) *Controller {
	retry := NewRetryExecutor(NewDispatcher(h.table()), sink, nil, 3, 0)
	var checker WorkspaceChecker
	if ws != nil {
		checker = ws
	}
	return NewController(planner.New(src), checker, retry, sink)
}

func editCopyObjectives(n int) []planner.Objective {
	objs := make([]planner.Objective, n)
	for i := range objs {
		objs[i] = planner.Objective{
			ObjectiveType: "edit_copy",
			ValueSets: []planner.ValueSet{{
				Required: map[string]string{"copy_text": "Fresh spring copy"},
				Optional: map[string]string{},
			}},
		}
	}
	return objs
}

func TestRunWorkflow_EndToEndSuccess(t *testing.T) {
	h := &countingHandler{}
	sink := &recordingSink{}
	ws := &stubWorkspace{report: workspace.Report{Ready: true}}
	c := newTestController(h, editCopySource(), ws, sink)

	res, err := c.Run(context.Background(), editCopyObjectives(1))
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Total != 1 || res.Successful != 1 || res.Failed != 0 {
		t.Fatalf("result = %+v, want 1/1 successful", res)
	}
	d := res.Details[0]
	if d.Status != StatusSuccess || d.Completed != 2 || d.Total != 2 {
		t.Fatalf("detail = %+v, want SUCCESS 2/2", d)
	}
	if ws.calls != 1 {
		t.Fatalf("workspace checked %d times, want exactly 1 per run", ws.calls)
	}
	if len(sink.events) != 0 {
		t.Fatalf("clean run must not notify, got %d events", len(sink.events))
	}
	if res.RunID == "" {
		t.Fatal("run must carry an ID")
	}
}

func TestRunWorkflow_FailFastWithinObjective(t *testing.T) {
	h := &countingHandler{failOn: "s3"}
	sink := &recordingSink{}
	c := newTestController(h, editCopySource(), nil, sink)

	res, err := c.Run(context.Background(), []planner.Objective{{
		ObjectiveType: "five_step",
		ValueSets:     []planner.ValueSet{{Required: map[string]string{}, Optional: map[string]string{}}},
	}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	d := res.Details[0]
	if d.Status != StatusFailed || d.Completed != 2 {
		t.Fatalf("detail = %+v, want FAILED with 2 completed", d)
	}
	// s3 retried three times; s4 and s5 never attempted
	for _, desc := range h.executed {
		if desc == "s4" || desc == "s5" {
			t.Fatalf("instruction %q ran after the failure", desc)
		}
	}
	if len(sink.events) != 1 {
		t.Fatalf("terminal instruction failure must notify once, got %d", len(sink.events))
	}
}

func TestRunWorkflow_FailFastAcrossObjectives(t *testing.T) {
	h := &countingHandler{failOn: "s3"}
	sink := &recordingSink{}
	c := newTestController(h, editCopySource(), nil, sink)

	// first objective succeeds, second fails mid-way, third must never run
	objs := []planner.Objective{
		editCopyObjectives(1)[0],
		{ObjectiveType: "five_step", ValueSets: []planner.ValueSet{{
			Required: map[string]string{}, Optional: map[string]string{},
		}}},
		editCopyObjectives(1)[0],
	}

	res, err := c.Run(context.Background(), objs)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if res.Total != 3 {
		t.Fatalf("total = %d, want 3", res.Total)
	}
	if res.Successful != 1 || res.Failed != 1 {
		t.Fatalf("result = %+v, want 1 successful and 1 failed", res)
	}
	if len(res.Details) != 2 {
		t.Fatalf("details = %d, want 2 (third objective never ran)", len(res.Details))
	}
	if res.Details[0].Status != StatusSuccess || res.Details[1].Status != StatusFailed {
		t.Fatalf("details = %+v, want SUCCESS then FAILED", res.Details)
	}
	if !res.Stopped {
		t.Fatal("run must report it stopped before the last objective")
	}

	// the edit_copy template ran once for objective 1 and never again
	firstSteps := 0
	for _, desc := range h.executed {
		if desc == "open copy editor" {
			firstSteps++
		}
	}
	if firstSteps != 1 {
		t.Fatalf("edit_copy executed %d times, want 1 (third objective skipped)", firstSteps)
	}
}

func TestRunWorkflow_PlanningFailureAbortsBeforeExecution(t *testing.T) {
	h := &countingHandler{}
	sink := &recordingSink{}
	c := newTestController(h, editCopySource(), nil, sink)

	objs := []planner.Objective{
		editCopyObjectives(1)[0],
		{ObjectiveType: "edit_copy", ValueSets: []planner.ValueSet{{
			Required: map[string]string{}, Optional: map[string]string{},
		}}},
	}

	_, err := c.Run(context.Background(), objs)
	if err == nil {
		t.Fatal("expected planning error")
	}
	var missing *planner.MissingFieldsError
	if !errors.As(err, &missing) {
		t.Fatalf("error %v does not carry MissingFieldsError", err)
	}
	if len(h.executed) != 0 {
		t.Fatalf("%d instructions executed despite planning failure", len(h.executed))
	}
	if len(sink.events) != 1 {
		t.Fatalf("planning abort must notify, got %d events", len(sink.events))
	}
}

func TestRunWorkflow_WorkspaceNotReady(t *testing.T) {
	h := &countingHandler{}
	sink := &recordingSink{}
	ws := &stubWorkspace{report: workspace.Report{Detail: "corners not matched: top_right"}}
	c := newTestController(h, editCopySource(), ws, sink)

	_, err := c.Run(context.Background(), editCopyObjectives(1))
	if !errors.Is(err, ErrWorkspaceNotReady) {
		t.Fatalf("got %v, want ErrWorkspaceNotReady", err)
	}
	if len(h.executed) != 0 {
		t.Fatal("nothing may execute when the workspace is not ready")
	}
	if len(sink.events) != 1 {
		t.Fatalf("workspace abort must notify, got %d events", len(sink.events))
	}
}

func TestRunWorkflow_InvalidObjectives(t *testing.T) {
	c := newTestController(&countingHandler{}, editCopySource(), nil, &recordingSink{})
	if _, err := c.Run(context.Background(), nil); err == nil {
		t.Fatal("expected validation error for empty objectives")
	}
}

func TestRunWorkflow_UnsupportedInstructionTolerated(t *testing.T) {
	src := &stubSource{entries: map[string]*catalogue.Entry{
		"mixed": {
			ObjectiveType: "mixed",
			Instructions: []catalogue.Instruction{
				{ActionType: "type_text", Description: "supported", Parameters: map[string]string{"text": "x"}},
				{ActionType: "quantum_click", Description: "unsupported"},
				{ActionType: "type_text", Description: "after skip", Parameters: map[string]string{"text": "y"}},
			},
		},
	}}
	h := &countingHandler{}
	sink := &recordingSink{}
	c := newTestController(h, src, nil, sink)

	res, err := c.Run(context.Background(), []planner.Objective{{
		ObjectiveType: "mixed",
		ValueSets:     []planner.ValueSet{{Required: map[string]string{}, Optional: map[string]string{}}},
	}})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	d := res.Details[0]
	if d.Status != StatusSuccess || d.Completed != 3 || d.Skipped != 1 {
		t.Fatalf("detail = %+v, want SUCCESS 3/3 with 1 skipped", d)
	}
	if len(sink.events) != 0 {
		t.Fatalf("tolerated skip must not notify, got %d", len(sink.events))
	}
}
