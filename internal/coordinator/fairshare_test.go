package coordinator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusEnv_WeightNormalisation(t *testing.T) {
	envs := newEnvRegistry()
	env0 := envs.register(RegisterEnvParams{MaxTokenLength: 256, DesiredName: "e0", GroupSize: 1, Weight: floatp(1.0)})
	env1 := envs.register(RegisterEnvParams{MaxTokenLength: 256, DesiredName: "e1", GroupSize: 1, Weight: floatp(3.0)})
	run := newRunController()

	r0 := statusEnv(env0.RegisteredID, run, envs, nil)
	r1 := statusEnv(env1.RegisteredID, run, envs, nil)

	assert.InDelta(t, 0.25, r0.EnvWeight, 1e-9)
	assert.InDelta(t, 0.75, r1.EnvWeight, 1e-9)
}

func TestStatusEnv_NoConnectedEnvsDefaultsToOne(t *testing.T) {
	envs := newEnvRegistry()
	run := newRunController()
	r := statusEnv(0, run, envs, nil)
	assert.Equal(t, 1.0, r.EnvWeight)
}

func TestStatusEnv_UnallocatedFractionClampsAtZero(t *testing.T) {
	envs := newEnvRegistry()
	envs.register(RegisterEnvParams{MaxTokenLength: 256, DesiredName: "a", GroupSize: 1, MinBatchAllocation: floatp(0.5)})
	envs.register(RegisterEnvParams{MaxTokenLength: 256, DesiredName: "b", GroupSize: 1, MinBatchAllocation: floatp(0.4)})
	envs.register(RegisterEnvParams{MaxTokenLength: 256, DesiredName: "c", GroupSize: 1, MinBatchAllocation: floatp(0.3)})
	run := newRunController()

	r := statusEnv(0, run, envs, nil)
	assert.Equal(t, 0.0, r.UnallocatedFraction)
}

func TestStatusEnv_DisconnectedEnvExcludedFromDenominator(t *testing.T) {
	envs := newEnvRegistry()
	env0 := envs.register(RegisterEnvParams{MaxTokenLength: 256, DesiredName: "e0", GroupSize: 1, Weight: floatp(1.0)})
	envs.disconnect(env0.RegisteredID)
	run := newRunController()

	r := statusEnv(env0.RegisteredID, run, envs, nil)
	// No connected envs remain, so T=0 and env_weight defaults to 1.0 even
	// though the queried env itself still exists in the registry.
	assert.Equal(t, 1.0, r.EnvWeight)
}

func TestStatusEnv_GroupSizeAutoInflation(t *testing.T) {
	envs := newEnvRegistry()
	env0 := envs.register(RegisterEnvParams{MaxTokenLength: 256, DesiredName: "e0", GroupSize: 2})
	run := newRunController()

	queue := []ScoredGroup{seqGroup(intp(env0.RegisteredID), 5)}
	_ = statusEnv(env0.RegisteredID, run, envs, queue)

	assert.Equal(t, 5, env0.GroupSize)
}
