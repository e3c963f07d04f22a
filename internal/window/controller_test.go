package window

import (
	"errors"
	"testing"
)

type fakeController struct {
	running         bool
	foregroundCalls int
	fgErr           error
}

func (f *fakeController) IsProcessRunning() (bool, error) { return f.running, nil }
func (f *fakeController) Launch() error                   { return nil }
func (f *fakeController) Focus() error                    { return nil }
func (f *fakeController) Maximize() error                 { return nil }
func (f *fakeController) IsForeground() (bool, error) {
	f.foregroundCalls++
	return true, f.fgErr
}
func (f *fakeController) IsMaximized() (bool, error) { return true, nil }

func TestSnapshot(t *testing.T) {
	f := &fakeController{running: true}
	r := Snapshot(f)
	if !r.ProcessRunning || !r.Foreground || !r.Maximized || !r.WindowPresent {
		t.Fatalf("report = %+v, want all true", r)
	}
	if f.foregroundCalls != 1 {
		t.Fatalf("IsForeground probed %d times, want exactly 1", f.foregroundCalls)
	}
}

func TestSnapshot_ForegroundProbeError(t *testing.T) {
	f := &fakeController{running: true, fgErr: errors.New("no window")}
	r := Snapshot(f)
	if r.Foreground || r.WindowPresent {
		t.Fatalf("report = %+v, want no window when the probe errors", r)
	}
}

func TestSnapshot_ProcessAbsent(t *testing.T) {
	f := &fakeController{}
	r := Snapshot(f)
	if r.ProcessRunning || r.WindowPresent || r.Foreground || r.Maximized {
		t.Fatalf("report = %+v, want all false for absent process", r)
	}
	if f.foregroundCalls != 0 {
		t.Fatal("window probes must not run without a process")
	}
}
