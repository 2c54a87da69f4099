package coordinator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegroupBuffer_ExactFitFlushesInReversePickOrder(t *testing.T) {
	envs := newEnvRegistry()
	env := envs.register(RegisterEnvParams{MaxTokenLength: 256, DesiredName: "e", GroupSize: 4})
	store := newGroupStore()
	buf := newRegroupBuffer()

	cardinalities := []int{1, 2, 1, 3}
	var lastResult ProcessResult
	for i, c := range cardinalities[:3] {
		g := seqGroup(intp(env.RegisteredID), c)
		lastResult = buf.processScored(g, envs, store)
		if i < 2 {
			assert.Equal(t, "buffered", lastResult.Status)
		}
	}

	assert.Equal(t, "buffered", lastResult.Status)
	assert.Equal(t, 0, lastResult.BufferSize)
	require.Equal(t, 3, store.Len())

	// Flushed in reverse pick order: index 2 (card 1) first, then 1 (card
	// 2), then 0 (card 1).
	assert.Equal(t, 1, store.queue[0].Cardinality())
	assert.Equal(t, 2, store.queue[1].Cardinality())
	assert.Equal(t, 1, store.queue[2].Cardinality())
}

func TestRegroupBuffer_NoFitRetainsState(t *testing.T) {
	envs := newEnvRegistry()
	env := envs.register(RegisterEnvParams{MaxTokenLength: 256, DesiredName: "e", GroupSize: 4})
	store := newGroupStore()
	buf := newRegroupBuffer()

	r1 := buf.processScored(seqGroup(intp(env.RegisteredID), 1), envs, store)
	assert.Equal(t, "buffered", r1.Status)
	assert.Equal(t, 1, r1.BufferSize)

	r2 := buf.processScored(seqGroup(intp(env.RegisteredID), 2), envs, store)
	assert.Equal(t, "buffered", r2.Status)
	assert.Equal(t, 3, r2.BufferSize)

	assert.Equal(t, 0, store.Len())
}

func TestProcessScored_UnknownEnvIDBypassesRegroup(t *testing.T) {
	envs := newEnvRegistry()
	store := newGroupStore()
	buf := newRegroupBuffer()

	res := buf.processScored(seqGroup(nil, 3), envs, store)
	assert.Equal(t, "accepted", res.Status)
	assert.Equal(t, 1, store.Len())
}

func TestProcessScored_ExactSizeGoesStraightToStore(t *testing.T) {
	envs := newEnvRegistry()
	env := envs.register(RegisterEnvParams{MaxTokenLength: 256, DesiredName: "e", GroupSize: 4})
	store := newGroupStore()
	buf := newRegroupBuffer()

	res := buf.processScored(seqGroup(intp(env.RegisteredID), 4), envs, store)
	assert.Equal(t, "received", res.Status)
	assert.Equal(t, 1, store.Len())
	assert.Equal(t, 0, buf.bufferedCardinality(env.RegisteredID))
}
