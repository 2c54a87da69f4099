package coordinator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func seqGroup(envID *int, n int) ScoredGroup {
	g := ScoredGroup{EnvID: envID}
	for i := 0; i < n; i++ {
		g.Tokens = append(g.Tokens, []int64{1})
		g.Masks = append(g.Masks, []int64{1})
		g.Scores = append(g.Scores, 1.0)
	}
	return g
}

func intp(n int) *int { return &n }

func TestAssembleGreedy_ExactFit(t *testing.T) {
	queue := []ScoredGroup{seqGroup(nil, 1), seqGroup(nil, 3)}
	envs := newEnvRegistry()

	batches, remaining := assemble(queue, envs, 4)
	require.Len(t, batches, 1)
	assert.Equal(t, 4, cardinalitySum(batches[0]))
	assert.Empty(t, remaining)
}

func TestAssembleGreedy_NoFitLeavesQueueUnchanged(t *testing.T) {
	queue := []ScoredGroup{seqGroup(nil, 3)}
	envs := newEnvRegistry()

	batches, remaining := assemble(queue, envs, 4)
	assert.Empty(t, batches)
	assert.Equal(t, queue, remaining)
}

func TestAssembleGreedy_SkipsOvershootingGroup(t *testing.T) {
	// head group of 3 would overshoot a target of 2; assembler should skip
	// it and use the following group of 2 instead.
	queue := []ScoredGroup{seqGroup(nil, 3), seqGroup(nil, 2)}
	envs := newEnvRegistry()

	batches, remaining := assemble(queue, envs, 2)
	require.Len(t, batches, 1)
	assert.Equal(t, 2, cardinalitySum(batches[0]))
	require.Len(t, remaining, 1)
	assert.Equal(t, 3, remaining[0].Cardinality())
}

func TestAssembleMinAlloc_QuotaRespected(t *testing.T) {
	envs := newEnvRegistry()
	env0 := envs.register(RegisterEnvParams{MaxTokenLength: 256, DesiredName: "env0", GroupSize: 1, MinBatchAllocation: floatp(0.6)})
	env1 := envs.register(RegisterEnvParams{MaxTokenLength: 256, DesiredName: "env1", GroupSize: 1})

	var queue []ScoredGroup
	for i := 0; i < 12; i++ {
		queue = append(queue, seqGroup(intp(env1.RegisteredID), 1))
	}
	for i := 0; i < 8; i++ {
		queue = append(queue, seqGroup(intp(env0.RegisteredID), 1))
	}

	batches, _ := assemble(queue, envs, 10)
	require.NotEmpty(t, batches)
	for _, b := range batches {
		assert.Equal(t, 10, cardinalitySum(b))
		env0Count := 0
		for _, g := range b {
			if g.EnvID != nil && *g.EnvID == env0.RegisteredID {
				env0Count++
			}
		}
		assert.GreaterOrEqual(t, env0Count, 6)
	}
}

func TestAssembleMinAlloc_InsufficientLeavesQueueUnchanged(t *testing.T) {
	envs := newEnvRegistry()
	env0 := envs.register(RegisterEnvParams{MaxTokenLength: 256, DesiredName: "env0", GroupSize: 1, MinBatchAllocation: floatp(0.6)})
	queue := []ScoredGroup{seqGroup(intp(env0.RegisteredID), 1)}

	batches, remaining := assemble(queue, envs, 10)
	assert.Empty(t, batches)
	assert.Equal(t, queue, remaining)
}

func floatp(f float64) *float64 { return &f }
