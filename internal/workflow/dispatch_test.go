package workflow

import (
	"context"
	"errors"
	"testing"

	"screenpilot/internal/planner"
)

func okExecutor() ExecutorFunc {
	return func(context.Context, planner.PreparedInstruction) error { return nil }
}

func TestDispatcher(t *testing.T) {
	d := NewDispatcher(map[string]Handler{
		"type_text": {Execute: okExecutor()},
		"press_key": {Execute: okExecutor()},
	})

	t.Run("known type resolves", func(t *testing.T) {
		h, err := d.Dispatch("type_text")
		if err != nil {
			t.Fatalf("Dispatch: %v", err)
		}
		if h.Execute == nil {
			t.Fatal("handler has no executor")
		}
	})

	t.Run("unknown type is ErrUnsupportedAction", func(t *testing.T) {
		_, err := d.Dispatch("levitate")
		if !errors.Is(err, ErrUnsupportedAction) {
			t.Fatalf("got %v, want ErrUnsupportedAction", err)
		}
	})

	t.Run("supported list is sorted", func(t *testing.T) {
		got := d.Supported()
		if len(got) != 2 || got[0] != "press_key" || got[1] != "type_text" {
			t.Fatalf("Supported() = %v", got)
		}
	})

	t.Run("table copied at construction", func(t *testing.T) {
		src := map[string]Handler{"a": {Execute: okExecutor()}}
		d := NewDispatcher(src)
		src["b"] = Handler{Execute: okExecutor()}
		if _, err := d.Dispatch("b"); !errors.Is(err, ErrUnsupportedAction) {
			t.Fatal("dispatcher observed mutation after construction")
		}
	})
}

func TestNewDispatcher_PanicsOnNilExecutor(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for handler without executor")
		}
	}()
	NewDispatcher(map[string]Handler{"broken": {}})
}
