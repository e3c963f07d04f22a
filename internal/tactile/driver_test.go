package tactile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseChord(t *testing.T) {
	cases := []struct {
		combo    string
		wantKey  string
		wantMods []string
	}{
		{"ctrl+c", "c", []string{"ctrl"}},
		{"ctrl+shift+s", "s", []string{"ctrl", "shift"}},
		{"enter", "enter", []string{}},
		{" Alt + F4 ", "f4", []string{"alt"}},
	}
	for _, tc := range cases {
		t.Run(tc.combo, func(t *testing.T) {
			key, mods, err := ParseChord(tc.combo)
			require.NoError(t, err)
			assert.Equal(t, tc.wantKey, key)
			assert.Equal(t, tc.wantMods, mods)
		})
	}

	t.Run("empty chord errors", func(t *testing.T) {
		_, _, err := ParseChord("  ")
		assert.Error(t, err)
	})
}

func TestDefaultDriverConfig(t *testing.T) {
	cfg := DefaultDriverConfig()
	assert.NotZero(t, cfg.TypeDelay)
	assert.NotZero(t, cfg.ClickPause)
}
