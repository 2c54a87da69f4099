package coordinator

import (
	"crypto/rand"
	"encoding/hex"
)

// RunController holds the trainer-registered run parameters and the
// step/started state derived from serving batches (spec §3.1, §4.1).
type RunController struct {
	desc    RunDescriptor
	uuids   []string
}

func newRunController() *RunController {
	return &RunController{}
}

// register implements spec §4.1: if the queue is empty, the submitted
// params replace the run state (the caller is responsible for clearing
// EnvRegistry/RegroupBuffer/batch cache when queueEmpty is true); if the
// queue is non-empty, params are ignored and only a fresh uuid is issued.
func (c *RunController) register(p RunDescriptor, queueEmpty bool) string {
	if queueEmpty {
		p.CurrentStep = p.StartingStep
		p.Started = false
		c.desc = p
	}
	u := newUUID()
	c.uuids = append(c.uuids, u)
	return u
}

func newUUID() string {
	var b [16]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

// runInfo returns the {run_group, run_project} projection (spec §4.1).
func (c *RunController) runInfo() (group, project string) {
	return c.desc.RunGroup, c.desc.RunProject
}

// info returns the {batch_size, max_token_len} projection (spec §4.1).
func (c *RunController) info() (batchSize, maxTokenLen int) {
	return c.desc.BatchSize, c.desc.MaxTokenLen
}

// currentStep returns the run's current step.
func (c *RunController) currentStep() int {
	return c.desc.CurrentStep
}

// started reports whether the first /batch call has happened yet.
func (c *RunController) started() bool {
	return c.desc.Started
}

// markStarted flips started to true; it is idempotent and only meaningful
// the first time it transitions false -> true (spec §5 rule 2).
func (c *RunController) markStarted() {
	c.desc.Started = true
}

// advanceStep bumps current_step by n (spec §4.4: advanced by the number
// of batches produced by one assemble() call).
func (c *RunController) advanceStep(n int) {
	c.desc.CurrentStep += n
}

// checkpointDir, startingStep, numSteps, checkpointInterval are
// echoed back to environments on registration (spec §4.2).
func (c *RunController) checkpointDir() string         { return c.desc.CheckpointDir }
func (c *RunController) startingStep() int             { return c.desc.StartingStep }
func (c *RunController) numSteps() int                 { return c.desc.NumSteps }
func (c *RunController) checkpointInterval() int       { return c.desc.SaveCheckpointInterval }

// reset re-initialises the controller to the empty-run default, clearing
// registered trainer uuids too (spec §8 property 9, §4.6 /reset_data).
func (c *RunController) reset() {
	*c = RunController{}
}
