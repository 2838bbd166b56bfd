package featureflags

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEnabled_BooleanValues(t *testing.T) {
	m := NewManager("a=on,b=off,c=true,d=false,e=1,f=0,g=maybe")

	for _, name := range []string{"a", "c", "e", "A", " c "} {
		assert.True(t, m.Enabled(name, 1), name)
	}
	for _, name := range []string{"b", "d", "f", "g", "missing"} {
		assert.False(t, m.Enabled(name, 1), name)
	}
}

func TestEnabled_PercentageRollout(t *testing.T) {
	m := NewManager("realtime_notifications=100%,beta_editor=0%,trending_feed=25%,broken=abc%")

	assert.True(t, m.Enabled("realtime_notifications", 0))
	assert.False(t, m.Enabled("beta_editor", 7))
	assert.False(t, m.Enabled("broken", 7))
	assert.False(t, m.Enabled("trending_feed", 0), "anonymous callers are outside partial rollouts")

	first := m.Enabled("trending_feed", 42)
	for i := 0; i < 5; i++ {
		assert.Equal(t, first, m.Enabled("trending_feed", 42))
	}

	on := 0
	for id := uint(1); id <= 1000; id++ {
		if m.Enabled("trending_feed", id) {
			on++
		}
	}
	assert.InDelta(t, 250, on, 80)
}

func TestRawNamesAndSnapshot(t *testing.T) {
	m := NewManager(" bad ,x=ON, y = 20% ,z=off,=on,w= ")

	assert.Equal(t, map[string]string{"x": "on", "y": "20%", "z": "off"}, m.Raw())
	assert.Equal(t, []string{"x", "y", "z"}, m.Names())

	snap := m.Snapshot(123)
	require.Len(t, snap, 3)
	assert.True(t, snap["x"])
	assert.False(t, snap["z"])
}

func TestNilManager(t *testing.T) {
	var m *Manager
	assert.False(t, m.Enabled("anything", 1))
	assert.Empty(t, m.Raw())
	assert.Empty(t, m.Snapshot(1))
	assert.Nil(t, m.Names())
}
