// Package catalogue loads the read-only instruction catalogue. Each
// objective type has a JSON file describing its field contract and the
// instruction sequence to execute. Entries are cached after first load;
// callers always receive deep copies so templates stay pristine.
package catalogue

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"

	"screenpilot/internal/config"
	"screenpilot/internal/logging"
)

// ErrNotFound means the objective type has no catalogue file.
var ErrNotFound = errors.New("objective type not in catalogue")

// Verification describes how an instruction's effect is checked.
type Verification struct {
	// Type is one of text_inputted, text_appears, text_disappears.
	Type string `json:"type"`
	// ExpectedText is the text to look for. When it names a value key,
	// the planner substitutes the objective's value.
	ExpectedText string `json:"expected_text,omitempty"`
	// Region optionally narrows the OCR to part of the screen.
	Region *config.Region `json:"region,omitempty"`
	// TimeoutSeconds bounds appear/disappear polling. 0 = default.
	TimeoutSeconds int `json:"timeout,omitempty"`
}

// Instruction is one templated step of an objective.
type Instruction struct {
	ActionType   string            `json:"action_type"`
	Description  string            `json:"description"`
	Parameters   map[string]string `json:"parameters,omitempty"`
	Verification *Verification     `json:"verification,omitempty"`
}

// Entry is the catalogue record for one objective type.
type Entry struct {
	ObjectiveType  string        `json:"-"`
	RequiredFields []string      `json:"required_fields"`
	OptionalFields []string      `json:"optional_fields"`
	Instructions   []Instruction `json:"instructions"`
}

// legacyFile is the older wrapper format: instructions keyed by
// objective type under a top-level "Instructions" object, with no
// field contract.
type legacyFile struct {
	Instructions map[string][]Instruction `json:"Instructions"`
}

// Clone returns a deep copy safe for the caller to fill in.
func (e *Entry) Clone() *Entry {
	out := &Entry{
		ObjectiveType:  e.ObjectiveType,
		RequiredFields: append([]string(nil), e.RequiredFields...),
		OptionalFields: append([]string(nil), e.OptionalFields...),
		Instructions:   make([]Instruction, len(e.Instructions)),
	}
	for i, ins := range e.Instructions {
		c := Instruction{
			ActionType:  ins.ActionType,
			Description: ins.Description,
		}
		if ins.Parameters != nil {
			c.Parameters = make(map[string]string, len(ins.Parameters))
			for k, v := range ins.Parameters {
				c.Parameters[k] = v
			}
		}
		if ins.Verification != nil {
			v := *ins.Verification
			if ins.Verification.Region != nil {
				r := *ins.Verification.Region
				v.Region = &r
			}
			c.Verification = &v
		}
		out.Instructions[i] = c
	}
	return out
}

// Source resolves objective types to catalogue entries.
type Source interface {
	// Lookup returns a deep copy of the entry for the objective type.
	// Returns ErrNotFound when the type has no catalogue file.
	Lookup(objectiveType string) (*Entry, error)
}

// DirSource is a Source backed by a directory of JSON files, with an
// optional fsnotify watcher that invalidates cached entries on change.
type DirSource struct {
	dir     string
	mu      sync.RWMutex
	cache   map[string]*Entry
	watcher *fsnotify.Watcher
	done    chan struct{}
}

// NewDirSource opens a catalogue directory. With watch enabled, edits
// to catalogue files take effect on the next Lookup.
func NewDirSource(dir string, watch bool) (*DirSource, error) {
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("catalogue directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("catalogue path %s is not a directory", dir)
	}

	s := &DirSource{
		dir:   dir,
		cache: make(map[string]*Entry),
		done:  make(chan struct{}),
	}
	if watch {
		w, err := fsnotify.NewWatcher()
		if err != nil {
			return nil, fmt.Errorf("failed to create catalogue watcher: %w", err)
		}
		if err := w.Add(dir); err != nil {
			w.Close()
			return nil, fmt.Errorf("failed to watch catalogue directory: %w", err)
		}
		s.watcher = w
		go s.watchLoop()
	}
	return s, nil
}

// Close stops the watcher, if any.
func (s *DirSource) Close() error {
	if s.watcher == nil {
		return nil
	}
	close(s.done)
	return s.watcher.Close()
}

func (s *DirSource) watchLoop() {
	for {
		select {
		case <-s.done:
			return
		case ev, ok := <-s.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			name := strings.TrimSuffix(filepath.Base(ev.Name), ".json")
			name = strings.TrimSuffix(name, "_actions")
			s.mu.Lock()
			delete(s.cache, name)
			s.mu.Unlock()
			logging.Get(logging.CategoryCatalogue).Info("invalidated cached entry %q after %s", name, ev.Op)
		case err, ok := <-s.watcher.Errors:
			if !ok {
				return
			}
			logging.Get(logging.CategoryCatalogue).Warn("catalogue watcher error: %v", err)
		}
	}
}

// Lookup returns a deep copy of the entry for the objective type.
func (s *DirSource) Lookup(objectiveType string) (*Entry, error) {
	s.mu.RLock()
	if e, ok := s.cache[objectiveType]; ok {
		s.mu.RUnlock()
		return e.Clone(), nil
	}
	s.mu.RUnlock()

	e, err := s.load(objectiveType)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	s.cache[objectiveType] = e
	s.mu.Unlock()
	return e.Clone(), nil
}

func (s *DirSource) load(objectiveType string) (*Entry, error) {
	path := filepath.Join(s.dir, objectiveType+".json")
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		// legacy naming
		path = filepath.Join(s.dir, objectiveType+"_actions.json")
		data, err = os.ReadFile(path)
	}
	if os.IsNotExist(err) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, objectiveType)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read catalogue file: %w", err)
	}

	entry, err := parseEntry(objectiveType, data)
	if err != nil {
		return nil, fmt.Errorf("catalogue file %s: %w", path, err)
	}
	logging.Get(logging.CategoryCatalogue).Info("loaded %q: %d instructions, %d required fields",
		objectiveType, len(entry.Instructions), len(entry.RequiredFields))
	return entry, nil
}

func parseEntry(objectiveType string, data []byte) (*Entry, error) {
	// legacy wrapper first: a top-level "Instructions" object keyed by type
	var legacy legacyFile
	if err := json.Unmarshal(data, &legacy); err == nil && len(legacy.Instructions) > 0 {
		list, ok := legacy.Instructions[objectiveType]
		if !ok {
			return nil, fmt.Errorf("legacy file has no %q key", objectiveType)
		}
		if len(list) == 0 {
			return nil, fmt.Errorf("instruction list for %q is empty", objectiveType)
		}
		return &Entry{ObjectiveType: objectiveType, Instructions: list}, nil
	}

	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("malformed catalogue JSON: %w", err)
	}
	if len(entry.Instructions) == 0 {
		return nil, fmt.Errorf("instruction list for %q is empty", objectiveType)
	}
	entry.ObjectiveType = objectiveType
	for i, ins := range entry.Instructions {
		if ins.ActionType == "" {
			return nil, fmt.Errorf("instruction %d has no action_type", i)
		}
	}
	return &entry, nil
}
