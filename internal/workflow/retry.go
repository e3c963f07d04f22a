package workflow

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"screenpilot/internal/logging"
	"screenpilot/internal/notify"
	"screenpilot/internal/planner"
	"screenpilot/internal/vision"
)

// ErrMaxRetriesExceeded marks an instruction that failed every attempt.
var ErrMaxRetriesExceeded = errors.New("max retries exceeded")

// State is the retry loop's explicit execution state.
type State int

const (
	StateAttempting State = iota
	StateVerifying
	StateSucceeded
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateAttempting:
		return "ATTEMPTING"
	case StateVerifying:
		return "VERIFYING"
	case StateSucceeded:
		return "SUCCEEDED"
	case StateFailed:
		return "FAILED"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// InstructionResult is the outcome of one instruction's retry loop.
type InstructionResult struct {
	ActionType  string
	Description string
	Succeeded   bool
	// Skipped marks an unsupported action type that was tolerated.
	Skipped  bool
	Attempts int
	Reason   string
}

// EvidenceRecorder persists a failure screenshot for one attempt.
type EvidenceRecorder interface {
	Record(actionType string, attempt int)

	// Dir names where evidence lands, for failure notifications.
	// Empty when evidence is discarded.
	Dir() string
}

// ScreenshotRecorder writes failure evidence under dir, one file per
// failed attempt: failure_<action>_attempt<N>_<timestamp>.png.
type ScreenshotRecorder struct {
	capturer vision.Capturer
	dir      string
}

// NewScreenshotRecorder creates a recorder rooted at dir. Pair it with
// a per-run subdirectory to keep runs separate.
func NewScreenshotRecorder(capturer vision.Capturer, dir string) *ScreenshotRecorder {
	return &ScreenshotRecorder{capturer: capturer, dir: dir}
}

// Dir returns the evidence directory referenced in failure
// notifications.
func (r *ScreenshotRecorder) Dir() string { return r.dir }

func (r *ScreenshotRecorder) Record(actionType string, attempt int) {
	screen, err := r.capturer.CaptureScreen()
	if err != nil {
		logging.Get(logging.CategoryRetry).Warn("evidence capture failed: %v", err)
		return
	}
	name := fmt.Sprintf("failure_%s_attempt%d_%s.png",
		actionType, attempt, time.Now().Format("20060102_150405.000"))
	if err := vision.SaveImage(screen, filepath.Join(r.dir, name)); err != nil {
		logging.Get(logging.CategoryRetry).Warn("evidence save failed: %v", err)
	}
}

// nopRecorder drops evidence; used when no evidence dir is configured.
type nopRecorder struct{}

func (nopRecorder) Record(string, int) {}
func (nopRecorder) Dir() string        { return "" }

// RetryExecutor runs single instructions through the retry loop.
type RetryExecutor struct {
	dispatcher  *Dispatcher
	sink        notify.Sink
	evidence    EvidenceRecorder
	maxAttempts int
	retryDelay  time.Duration
}

// NewRetryExecutor wires the retry loop. maxAttempts < 1 falls back to
// 3; a nil sink or recorder gets a no-op.
func NewRetryExecutor(dispatcher *Dispatcher, sink notify.Sink, evidence EvidenceRecorder, maxAttempts int, retryDelay time.Duration) *RetryExecutor {
	if maxAttempts < 1 {
		maxAttempts = 3
	}
	if sink == nil {
		sink = notify.NewLogSink()
	}
	if evidence == nil {
		evidence = nopRecorder{}
	}
	return &RetryExecutor{
		dispatcher:  dispatcher,
		sink:        sink,
		evidence:    evidence,
		maxAttempts: maxAttempts,
		retryDelay:  retryDelay,
	}
}

// Run executes one instruction until verified or out of attempts.
//
// Unsupported action types are skipped with a warning and reported as
// succeeded so an aging catalogue cannot wedge a whole workflow.
// A terminal failure emits exactly one notification, regardless of how
// many attempts were made.
func (r *RetryExecutor) Run(ctx context.Context, ins planner.PreparedInstruction) InstructionResult {
	res := InstructionResult{ActionType: ins.ActionType, Description: ins.Description}

	handler, err := r.dispatcher.Dispatch(ins.ActionType)
	if errors.Is(err, ErrUnsupportedAction) {
		logging.DispatchWarn("skipping unsupported action %q (%s)", ins.ActionType, ins.Description)
		res.Succeeded = true
		res.Skipped = true
		res.Reason = "unsupported action type skipped"
		return res
	}
	if err != nil {
		res.Reason = err.Error()
		return res
	}

	state := StateAttempting
	var lastFailure string

	for attempt := 1; attempt <= r.maxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			res.Attempts = attempt - 1
			res.Reason = fmt.Sprintf("cancelled: %v", err)
			return res
		}
		res.Attempts = attempt

		state = StateAttempting
		logging.Retry("%s attempt %d/%d: %s", state, attempt, r.maxAttempts, ins.Description)
		if err := handler.Execute(ctx, ins); err != nil {
			lastFailure = fmt.Sprintf("execution error: %v", err)
			logging.Get(logging.CategoryRetry).Warn("attempt %d execution failed: %v", attempt, err)
			r.failAttempt(ins.ActionType, attempt)
			continue
		}

		if ins.Verification == nil {
			state = StateSucceeded
			logging.Retry("%s: %s (no verification)", state, ins.Description)
			res.Succeeded = true
			return res
		}

		state = StateVerifying
		logging.Retry("%s attempt %d/%d: %s", state, attempt, r.maxAttempts, ins.Description)
		ok, detail, err := handler.Verify(ctx, ins)
		if err != nil {
			lastFailure = fmt.Sprintf("verification error: %v", err)
			logging.Get(logging.CategoryRetry).Warn("attempt %d verification errored: %v", attempt, err)
			r.failAttempt(ins.ActionType, attempt)
			continue
		}
		if !ok {
			lastFailure = detail
			logging.Get(logging.CategoryRetry).Warn("attempt %d verification failed: %s", attempt, detail)
			r.failAttempt(ins.ActionType, attempt)
			continue
		}

		state = StateSucceeded
		logging.Retry("%s: %s (%s)", state, ins.Description, detail)
		res.Succeeded = true
		return res
	}

	state = StateFailed
	res.Reason = fmt.Sprintf("%v after %d attempts: %s", ErrMaxRetriesExceeded, r.maxAttempts, lastFailure)
	logging.Get(logging.CategoryRetry).Error("%s: %s", state, res.Reason)

	// exactly one notification per terminal failure
	evctx := map[string]string{
		"action_type": ins.ActionType,
		"attempts":    fmt.Sprintf("%d", r.maxAttempts),
	}
	if len(ins.Parameters) > 0 {
		evctx["parameters"] = fmt.Sprintf("%v", ins.Parameters)
	}
	if dir := r.evidence.Dir(); dir != "" {
		evctx["evidence"] = dir
	}
	r.sink.Notify(notify.Event{
		Subject:  "Instruction failed",
		Message:  fmt.Sprintf("%q failed: %s", ins.Description, lastFailure),
		Location: fmt.Sprintf("action %s", ins.ActionType),
		Context:  evctx,
		Time:     time.Now(),
	})
	return res
}

// failAttempt records evidence and waits out the retry delay before
// the next attempt.
func (r *RetryExecutor) failAttempt(actionType string, attempt int) {
	r.evidence.Record(actionType, attempt)
	if r.retryDelay > 0 && attempt < r.maxAttempts {
		time.Sleep(r.retryDelay)
	}
}
