package planner

import (
	"encoding/json"
	"fmt"
	"os"
)

// Objective is one declarative unit of work: a type plus the value
// sets to run it with.
type Objective struct {
	ObjectiveType string     `json:"objective_type"`
	ValueSets     []ValueSet `json:"value_sets"`
}

// ValueSet carries the caller's data for one expansion. Required keys
// must satisfy the catalogue's field contract; optional keys fill
// optional parameters.
type ValueSet struct {
	Required map[string]string `json:"required"`
	Optional map[string]string `json:"optional"`
}

// UnmarshalJSON accepts both the canonical {"required":..,"optional":..}
// shape and the legacy flat map, which is treated as all-required.
// Normalizing here keeps the rest of the engine single-shape.
func (v *ValueSet) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	_, hasReq := raw["required"]
	_, hasOpt := raw["optional"]
	if hasReq || hasOpt {
		type canonical ValueSet
		var c canonical
		if err := json.Unmarshal(data, &c); err != nil {
			return err
		}
		*v = ValueSet(c)
		if v.Required == nil {
			v.Required = map[string]string{}
		}
		if v.Optional == nil {
			v.Optional = map[string]string{}
		}
		return nil
	}

	// legacy flat form
	v.Required = make(map[string]string, len(raw))
	v.Optional = map[string]string{}
	for key, msg := range raw {
		var s string
		if err := json.Unmarshal(msg, &s); err == nil {
			v.Required[key] = s
			continue
		}
		var any interface{}
		if err := json.Unmarshal(msg, &any); err != nil {
			return fmt.Errorf("value for %q: %w", key, err)
		}
		v.Required[key] = fmt.Sprintf("%v", any)
	}
	return nil
}

// objectivesFile supports both a bare array and a wrapped object.
type objectivesFile struct {
	Objectives []Objective `json:"objectives"`
}

// LoadObjectivesFile reads and validates an objectives JSON file.
func LoadObjectivesFile(path string) ([]Objective, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read objectives file: %w", err)
	}

	var objectives []Objective
	if err := json.Unmarshal(data, &objectives); err != nil {
		var wrapped objectivesFile
		if err2 := json.Unmarshal(data, &wrapped); err2 != nil {
			return nil, fmt.Errorf("malformed objectives file %s: %w", path, err)
		}
		objectives = wrapped.Objectives
	}

	if err := ValidateObjectives(objectives); err != nil {
		return nil, err
	}
	return objectives, nil
}

// ValidateObjectives checks the structural contract of an objectives
// list before any planning happens.
func ValidateObjectives(objectives []Objective) error {
	if len(objectives) == 0 {
		return fmt.Errorf("no objectives given")
	}
	for i, obj := range objectives {
		if obj.ObjectiveType == "" {
			return fmt.Errorf("objective %d has no objective_type", i)
		}
		if len(obj.ValueSets) == 0 {
			return fmt.Errorf("objective %d (%s) has no value sets", i, obj.ObjectiveType)
		}
	}
	return nil
}
