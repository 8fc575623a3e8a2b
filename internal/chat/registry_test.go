package chat

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestRegistryIsolatesOperators(t *testing.T) {
	r := NewRegistry("ri.default")
	a := r.Get("web:a")
	b := r.Get("web:b")
	assert.NotSame(t, a, b)
	assert.Same(t, a, r.Get("web:a"))

	a.Transcript.AppendUser("only in a")
	a.SetAgentRID("ri.other")
	assert.Equal(t, 1, b.Transcript.Len())
	assert.Equal(t, "ri.default", b.AgentRID())
	assert.Equal(t, 2, r.Len())

	r.Remove("web:a")
	_, ok := r.Lookup("web:a")
	assert.False(t, ok)
}

func TestRegistrySweep(t *testing.T) {
	now := time.Unix(1000, 0)
	r := NewRegistry("")
	r.now = func() time.Time { return now }

	r.Get("old")
	now = now.Add(time.Hour)
	busy := r.Get("busy")
	busy.touch(now.Add(-2 * time.Hour))
	r.Get("fresh")

	busy.turn.Lock()
	dropped := r.Sweep(30 * time.Minute)
	busy.turn.Unlock()

	assert.Equal(t, 1, dropped)
	_, ok := r.Lookup("old")
	assert.False(t, ok)
	_, ok = r.Lookup("busy")
	assert.True(t, ok, "conversation with a turn in flight must survive")
	_, ok = r.Lookup("fresh")
	assert.True(t, ok)

	assert.Equal(t, 1, r.Sweep(30*time.Minute))
}
