package coordinator

import "math"

// StatusEnvResult is the §4.5 response for GET /status-env.
type StatusEnvResult struct {
	CurrentStep        int     `json:"current_step"`
	QueueSize          int     `json:"queue_size"`
	UnallocatedFraction float64 `json:"unallocated_fraction"`
	SelfQueueSize      int     `json:"self_queue_size"`
	MaxGroupSize       int     `json:"max_group_size"`
	EnvWeight          float64 `json:"env_weight"`
}

// statusEnv implements FairShareReporter's status_env operation (spec
// §4.5). It mutates env.GroupSize upward if this env has submitted
// groups larger than its declared size, per the documented "group-size
// auto-inflation" behaviour (spec §9, SPEC_FULL.md open question 2).
func statusEnv(envID int, run *RunController, envs *EnvRegistry, queue []ScoredGroup) StatusEnvResult {
	var total float64
	for _, e := range envs.connected() {
		if e.Weight > 0 {
			total += float64(e.MaxContextLen) * e.Weight
		}
	}

	var unallocSum float64
	for _, e := range envs.connected() {
		if e.MinBatchAllocation != nil {
			unallocSum += *e.MinBatchAllocation
		}
	}
	unallocatedFraction := 1 - math.Min(1, unallocSum)

	maxGroupSize := 1
	selfSequences := 0
	env := envs.get(envID)
	for _, g := range queue {
		c := g.Cardinality()
		if c > maxGroupSize {
			maxGroupSize = c
		}
		if env != nil && g.EnvID != nil && *g.EnvID == envID {
			selfSequences += c
			if c > env.GroupSize {
				env.GroupSize = c
			}
		}
	}

	envWeight := 1.0
	if env != nil && total > 0 {
		envWeight = math.Max(minWeight, (float64(env.MaxContextLen)*env.Weight)/total)
	}

	envGroupSize := 1
	if env != nil {
		envGroupSize = env.GroupSize
		if envGroupSize < 1 {
			envGroupSize = 1
		}
	}

	return StatusEnvResult{
		CurrentStep:        run.currentStep(),
		QueueSize:          len(queue) / envGroupSize,
		UnallocatedFraction: unallocatedFraction,
		SelfQueueSize:      selfSequences / envGroupSize,
		MaxGroupSize:       maxGroupSize,
		EnvWeight:          envWeight,
	}
}
