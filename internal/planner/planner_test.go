package planner

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"screenpilot/internal/catalogue"
)

// fakeSource serves catalogue entries from memory.
type fakeSource struct {
	entries map[string]*catalogue.Entry
}

func (f *fakeSource) Lookup(objectiveType string) (*catalogue.Entry, error) {
	e, ok := f.entries[objectiveType]
	if !ok {
		return nil, catalogue.ErrNotFound
	}
	return e.Clone(), nil
}

func testSource() *fakeSource {
	return &fakeSource{entries: map[string]*catalogue.Entry{
		"create_order": {
			ObjectiveType:  "create_order",
			RequiredFields: []string{"advertiser_name", "order_number"},
			OptionalFields: []string{"isci_2"},
			Instructions: []catalogue.Instruction{
				{
					ActionType:  "type_text",
					Description: "Enter advertiser",
					Parameters:  map[string]string{"advertiser_name": "", "field": "advertiser"},
					Verification: &catalogue.Verification{
						Type:         "text_inputted",
						ExpectedText: "advertiser_name",
					},
				},
				{
					ActionType:  "type_text",
					Description: "Enter secondary ISCI",
					Parameters:  map[string]string{"isci_2": "NONE"},
				},
				{
					ActionType:  "press_key",
					Description: "Confirm",
					Parameters:  map[string]string{"key": "enter"},
				},
			},
		},
	}}
}

func values(req, opt map[string]string) ValueSet {
	if req == nil {
		req = map[string]string{}
	}
	if opt == nil {
		opt = map[string]string{}
	}
	return ValueSet{Required: req, Optional: opt}
}

func TestPrepare(t *testing.T) {
	p := New(testSource())
	vs := values(
		map[string]string{"advertiser_name": "Acme Corp", "order_number": "ORD-1001"},
		map[string]string{"isci_2": "ISCI-77"},
	)

	prep, err := p.Prepare("create_order", vs, 0)
	require.NoError(t, err)
	require.Len(t, prep.Instructions, 3)

	first := prep.Instructions[0]
	assert.Equal(t, "Acme Corp", first.Parameters["advertiser_name"])
	assert.Equal(t, "advertiser", first.Parameters["field"], "unmatched parameter keeps its default")
	require.NotNil(t, first.Verification)
	assert.Equal(t, "Acme Corp", first.Verification.ExpectedText,
		"verification expected_text naming a value key gets the value")

	assert.Equal(t, "ISCI-77", prep.Instructions[1].Parameters["isci_2"])
	assert.Equal(t, "enter", prep.Instructions[2].Parameters["key"])
}

func TestPrepare_Deterministic(t *testing.T) {
	p := New(testSource())
	vs := values(
		map[string]string{"advertiser_name": "Acme Corp", "order_number": "ORD-1001"},
		map[string]string{"isci_2": "ISCI-77"},
	)

	a, err := p.Prepare("create_order", vs, 2)
	require.NoError(t, err)
	b, err := p.Prepare("create_order", vs, 2)
	require.NoError(t, err)

	if diff := cmp.Diff(a, b); diff != "" {
		t.Fatalf("identical inputs produced different plans (-first +second):\n%s", diff)
	}
}

func TestPrepare_RequiredWinsOverOptional(t *testing.T) {
	p := New(testSource())
	vs := values(
		map[string]string{"advertiser_name": "Required Co", "order_number": "1"},
		map[string]string{"advertiser_name": "Optional Co"},
	)

	prep, err := p.Prepare("create_order", vs, 0)
	require.NoError(t, err)
	assert.Equal(t, "Required Co", prep.Instructions[0].Parameters["advertiser_name"])
}

func TestPrepare_ReportsAllMissingFields(t *testing.T) {
	p := New(testSource())

	_, err := p.Prepare("create_order", values(nil, nil), 0)
	require.Error(t, err)

	var missing *MissingFieldsError
	require.True(t, errors.As(err, &missing))
	assert.Equal(t, []string{"advertiser_name", "order_number"}, missing.Fields,
		"every missing field must be named, not just the first")
	assert.Contains(t, missing.Error(), "advertiser_name")
	assert.Contains(t, missing.Error(), "order_number")
}

func TestPrepare_UnknownObjectiveType(t *testing.T) {
	p := New(testSource())
	_, err := p.Prepare("teleport_order", values(nil, nil), 0)
	assert.True(t, errors.Is(err, ErrUnknownObjectiveType))
}

func TestPrepareAll_FailFast(t *testing.T) {
	p := New(testSource())
	good := values(map[string]string{"advertiser_name": "A", "order_number": "1"}, nil)

	t.Run("expands every value set in order", func(t *testing.T) {
		out, err := p.PrepareAll([]Objective{
			{ObjectiveType: "create_order", ValueSets: []ValueSet{good, good}},
		})
		require.NoError(t, err)
		require.Len(t, out, 2)
		assert.Equal(t, 0, out[0].ValueSetIndex)
		assert.Equal(t, 1, out[1].ValueSetIndex)
	})

	t.Run("first failure aborts the batch", func(t *testing.T) {
		_, err := p.PrepareAll([]Objective{
			{ObjectiveType: "create_order", ValueSets: []ValueSet{good}},
			{ObjectiveType: "create_order", ValueSets: []ValueSet{values(nil, nil)}},
			{ObjectiveType: "create_order", ValueSets: []ValueSet{good}},
		})
		require.Error(t, err)
		var missing *MissingFieldsError
		assert.True(t, errors.As(err, &missing))
	})
}

func TestValueSetUnmarshal(t *testing.T) {
	t.Run("canonical shape", func(t *testing.T) {
		var vs ValueSet
		require.NoError(t, vs.UnmarshalJSON([]byte(
			`{"required": {"a": "1"}, "optional": {"b": "2"}}`)))
		assert.Equal(t, map[string]string{"a": "1"}, vs.Required)
		assert.Equal(t, map[string]string{"b": "2"}, vs.Optional)
	})

	t.Run("legacy flat map becomes all-required", func(t *testing.T) {
		var vs ValueSet
		require.NoError(t, vs.UnmarshalJSON([]byte(
			`{"advertiser_name": "Acme", "spots": 12}`)))
		assert.Equal(t, "Acme", vs.Required["advertiser_name"])
		assert.Equal(t, "12", vs.Required["spots"])
		assert.Empty(t, vs.Optional)
	})
}

func TestLoadObjectivesFile(t *testing.T) {
	write := func(t *testing.T, body string) string {
		path := filepath.Join(t.TempDir(), "objectives.json")
		require.NoError(t, os.WriteFile(path, []byte(body), 0644))
		return path
	}

	t.Run("bare array", func(t *testing.T) {
		objs, err := LoadObjectivesFile(write(t,
			`[{"objective_type": "create_order", "value_sets": [{"required": {"a": "1"}}]}]`))
		require.NoError(t, err)
		require.Len(t, objs, 1)
		assert.Equal(t, "create_order", objs[0].ObjectiveType)
	})

	t.Run("wrapped object", func(t *testing.T) {
		objs, err := LoadObjectivesFile(write(t,
			`{"objectives": [{"objective_type": "edit_copy", "value_sets": [{"a": "1"}]}]}`))
		require.NoError(t, err)
		require.Len(t, objs, 1)
		assert.Equal(t, "1", objs[0].ValueSets[0].Required["a"])
	})

	t.Run("structural failures", func(t *testing.T) {
		cases := map[string]string{
			"empty list":    `[]`,
			"no type":       `[{"value_sets": [{"a": "1"}]}]`,
			"no value sets": `[{"objective_type": "x", "value_sets": []}]`,
			"not json":      `{{`,
		}
		for name, body := range cases {
			t.Run(name, func(t *testing.T) {
				_, err := LoadObjectivesFile(write(t, body))
				assert.Error(t, err)
			})
		}
	})
}
