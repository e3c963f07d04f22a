// Package planner expands declarative objectives into parameter-filled
// instruction lists using the catalogue. Preparation is pure: same
// catalogue, same values, same output.
package planner

import (
	"errors"
	"fmt"
	"strings"

	"screenpilot/internal/catalogue"
	"screenpilot/internal/logging"
)

// ErrUnknownObjectiveType wraps catalogue misses with planner context.
var ErrUnknownObjectiveType = errors.New("unknown objective type")

// MissingFieldsError reports every required field absent from a value
// set, not just the first one found.
type MissingFieldsError struct {
	ObjectiveType string
	Fields        []string
}

func (e *MissingFieldsError) Error() string {
	return fmt.Sprintf("objective %q missing required fields: %s",
		e.ObjectiveType, strings.Join(e.Fields, ", "))
}

// PreparedInstruction is one executable step with all parameters resolved.
type PreparedInstruction struct {
	ActionType   string
	Description  string
	Parameters   map[string]string
	Verification *catalogue.Verification
}

// PreparedObjective is a fully expanded objective ready for execution.
type PreparedObjective struct {
	ObjectiveType string
	// ValueSetIndex records which of the objective's value sets this
	// expansion came from, for result reporting.
	ValueSetIndex int
	Instructions  []PreparedInstruction
}

// Planner expands objectives against a catalogue source.
type Planner struct {
	source catalogue.Source
}

// New creates a Planner over the given catalogue.
func New(source catalogue.Source) *Planner {
	return &Planner{source: source}
}

// Prepare expands one value set of an objective into instructions.
//
// The merge view is optional values overlaid by required values, so a
// key present in both resolves to the required one. A catalogue
// parameter is overwritten only when its key appears in the merge;
// otherwise the template default stands.
func (p *Planner) Prepare(objectiveType string, vs ValueSet, valueSetIndex int) (*PreparedObjective, error) {
	entry, err := p.source.Lookup(objectiveType)
	if err != nil {
		if errors.Is(err, catalogue.ErrNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrUnknownObjectiveType, objectiveType)
		}
		return nil, fmt.Errorf("catalogue lookup for %q failed: %w", objectiveType, err)
	}

	var missing []string
	for _, field := range entry.RequiredFields {
		if v, ok := vs.Required[field]; !ok || v == "" {
			missing = append(missing, field)
		}
	}
	if len(missing) > 0 {
		return nil, &MissingFieldsError{ObjectiveType: objectiveType, Fields: missing}
	}

	merged := make(map[string]string, len(vs.Required)+len(vs.Optional))
	for k, v := range vs.Optional {
		merged[k] = v
	}
	for k, v := range vs.Required {
		merged[k] = v
	}

	prepared := &PreparedObjective{
		ObjectiveType: objectiveType,
		ValueSetIndex: valueSetIndex,
		Instructions:  make([]PreparedInstruction, 0, len(entry.Instructions)),
	}
	for _, ins := range entry.Instructions {
		pi := PreparedInstruction{
			ActionType:   ins.ActionType,
			Description:  ins.Description,
			Parameters:   make(map[string]string, len(ins.Parameters)),
			Verification: ins.Verification,
		}
		for key, def := range ins.Parameters {
			if v, ok := merged[key]; ok {
				pi.Parameters[key] = v
			} else {
				pi.Parameters[key] = def
			}
		}
		// a verification expecting a value key gets the actual value
		if pi.Verification != nil {
			if v, ok := merged[pi.Verification.ExpectedText]; ok {
				pi.Verification.ExpectedText = v
			}
		}
		prepared.Instructions = append(prepared.Instructions, pi)
	}

	logging.Planner("prepared %q value set %d: %d instructions",
		objectiveType, valueSetIndex, len(prepared.Instructions))
	return prepared, nil
}

// PrepareAll expands every value set of every objective, in order.
// The first preparation failure aborts the whole batch: a workflow
// that cannot be fully planned must not start executing.
func (p *Planner) PrepareAll(objectives []Objective) ([]*PreparedObjective, error) {
	var out []*PreparedObjective
	for _, obj := range objectives {
		for i, vs := range obj.ValueSets {
			prep, err := p.Prepare(obj.ObjectiveType, vs, i)
			if err != nil {
				return nil, fmt.Errorf("preparing %q value set %d: %w", obj.ObjectiveType, i, err)
			}
			out = append(out, prep)
		}
	}
	return out, nil
}
