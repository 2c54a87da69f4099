// Package coordinator implements the rollout-coordination server's core:
// the queue/buffer state machine, group-reassembly, batch assembly under
// fair-share constraints, and the fair-share accounting returned to
// environments (spec.md §2). It has no HTTP dependency; internal/httpapi
// is a thin adapter over this package (SPEC_FULL.md, "Singleton process
// state").
package coordinator

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Coordinator is the entire coordinator process's state, protected by a
// single mutex (spec §5: "the simplest correct realisation is a single
// mutex held for the duration of any handler"). Handlers must hold the
// lock for their full duration to keep batch assembly atomic with respect
// to ingestion (spec §5 rule 3).
type Coordinator struct {
	mu sync.Mutex

	run     *RunController
	envs    *EnvRegistry
	store   *GroupStore
	regroup *RegroupBuffer

	// cachedBatches holds the unserved remainder from the last assemble()
	// call; /batch pops the LAST entry (LIFO), per spec §4.4 and
	// SPEC_FULL.md open question 1.
	cachedBatches []Batch

	metrics *Metrics
}

// New creates an empty Coordinator, registering its metrics against reg.
func New(reg prometheus.Registerer) *Coordinator {
	c := &Coordinator{
		run:     newRunController(),
		envs:    newEnvRegistry(),
		store:   newGroupStore(),
		regroup: newRegroupBuffer(),
		metrics: NewMetrics(reg),
	}
	c.updateMetricsLocked()
	return c
}

func (c *Coordinator) updateMetricsLocked() {
	c.metrics.QueueSize.Set(float64(c.store.Len()))
	c.metrics.CurrentStep.Set(float64(c.run.currentStep()))
	c.metrics.EnvsRegistered.Set(float64(c.envs.Len()))
}

// Register implements spec §4.1's register operation.
func (c *Coordinator) Register(desc RunDescriptor) (string, error) {
	if err := desc.Validate(); err != nil {
		return "", err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	queueEmpty := c.store.Len() == 0
	uuid := c.run.register(desc, queueEmpty)
	if queueEmpty {
		c.envs.reset()
		c.regroup.reset()
		c.cachedBatches = nil
	}
	c.updateMetricsLocked()
	return uuid, nil
}

// RegisterEnvResult is the success payload for POST /register-env (spec
// §4.2), echoing the run configuration back to the environment.
type RegisterEnvResult struct {
	EnvID              int
	RunName            string
	CheckpointDir      string
	StartingStep       int
	CheckpointInterval int
	NumSteps           int
}

// RegisterEnv implements spec §4.2's register_env. ok is false (with a
// zero result and nil error) when the trainer hasn't served its first
// batch yet — the caller should respond {status:"wait for trainer to
// start"}.
func (c *Coordinator) RegisterEnv(p RegisterEnvParams) (res RegisterEnvResult, ok bool, err error) {
	if err := p.Validate(); err != nil {
		return RegisterEnvResult{}, false, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.run.started() {
		return RegisterEnvResult{}, false, nil
	}
	d := c.envs.register(p)
	c.updateMetricsLocked()
	return RegisterEnvResult{
		EnvID:              d.RegisteredID,
		RunName:            d.RealName,
		CheckpointDir:      c.run.checkpointDir(),
		StartingStep:       c.run.startingStep(),
		CheckpointInterval: c.run.checkpointInterval(),
		NumSteps:           c.run.numSteps(),
	}, true, nil
}

// DisconnectEnv implements spec §4.2's disconnect_env.
func (c *Coordinator) DisconnectEnv(envID int) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	ok := c.envs.disconnect(envID)
	c.updateMetricsLocked()
	return ok
}

// RunInfo implements spec §4.1's run_info.
func (c *Coordinator) RunInfo() (group, project string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.run.runInfo()
}

// Info implements spec §4.1's info.
func (c *Coordinator) Info() (batchSize, maxTokenLen int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.run.info()
}

// Status implements GET /status (spec §4.6): the raw queue length, not
// normalised by any env's group size.
func (c *Coordinator) Status() (currentStep, queueSize int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.run.currentStep(), c.store.Len()
}

// Health is the GET /health projection (spec §4.6).
type Health struct {
	Status    string `json:"status"`
	Started   bool   `json:"started"`
	QueueSize int    `json:"queue_size"`
	Envs      int    `json:"envs"`
	Step      int    `json:"step"`
}

func (c *Coordinator) Health() Health {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Health{
		Status:    "healthy",
		Started:   c.run.started(),
		QueueSize: c.store.Len(),
		Envs:      c.envs.Len(),
		Step:      c.run.currentStep(),
	}
}

// LatestExample implements GET /latest_example (spec §4.6, §9).
func (c *Coordinator) LatestExample() ScoredGroup {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.store.Latest()
}

// ScoredData implements spec §4.3's process_scored over a single group.
func (c *Coordinator) ScoredData(g ScoredGroup) (ProcessResult, error) {
	if err := g.Validate(); err != nil {
		return ProcessResult{}, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	res := c.regroup.processScored(g, c.envs, c.store)
	c.syncRegroupMetricsLocked()
	c.updateMetricsLocked()
	return res, nil
}

// ScoredDataListResult is the aggregate response for
// POST /scored_data_list (spec §4.3).
type ScoredDataListResult struct {
	GroupsProcessed int
	Buffered        int
	LastBufferSize  int
}

// ScoredDataList implements spec §4.3's process_scored_list: each
// submission is validated and applied independently; a malformed entry
// aborts only itself.
func (c *Coordinator) ScoredDataList(groups []ScoredGroup) ScoredDataListResult {
	c.mu.Lock()
	defer c.mu.Unlock()

	var out ScoredDataListResult
	var last ProcessResult
	for _, g := range groups {
		if err := g.Validate(); err != nil {
			continue
		}
		last = c.regroup.processScored(g, c.envs, c.store)
		out.GroupsProcessed++
		if last.Status == "buffered" {
			out.Buffered++
		}
	}
	out.LastBufferSize = last.BufferSize
	c.syncRegroupMetricsLocked()
	c.updateMetricsLocked()
	return out
}

func (c *Coordinator) syncRegroupMetricsLocked() {
	c.metrics.RegroupBufferSeqs.Reset()
	for _, e := range c.envs.envs {
		c.metrics.RegroupBufferSeqs.WithLabelValues(e.RealName).Set(float64(c.regroup.bufferedCardinality(e.RegisteredID)))
	}
}

// Batch implements the /batch serving semantics of spec §4.4: the first
// call flips started (unblocking /register-env); a non-empty cached
// remainder is popped LIFO; otherwise assemble() runs fresh.
func (c *Coordinator) Batch() *Batch {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.run.markStarted()

	if len(c.cachedBatches) > 0 {
		last := c.cachedBatches[len(c.cachedBatches)-1]
		c.cachedBatches = c.cachedBatches[:len(c.cachedBatches)-1]
		c.metrics.BatchesServedTotal.Inc()
		c.updateMetricsLocked()
		return &last
	}

	batchSize, _ := c.run.info()
	batches, remaining := assemble(c.store.queue, c.envs, batchSize)
	if len(batches) == 0 {
		c.updateMetricsLocked()
		return nil
	}

	c.store.queue = remaining
	c.run.advanceStep(len(batches))

	last := batches[len(batches)-1]
	c.cachedBatches = batches[:len(batches)-1]
	c.metrics.BatchesServedTotal.Inc()
	c.updateMetricsLocked()
	return &last
}

// StatusEnv implements spec §4.5's status_env.
func (c *Coordinator) StatusEnv(envID int) StatusEnvResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	return statusEnv(envID, c.run, c.envs, c.store.queue)
}

// RecordRequest increments the per-route HTTP request counter. It is called
// by internal/httpapi's logging middleware after each request completes; the
// counter is independent of run state, so it does not take the main mutex.
func (c *Coordinator) RecordRequest(route, statusClass string) {
	c.metrics.HTTPRequestsTotal.WithLabelValues(route, statusClass).Inc()
}

// Reset implements GET /reset_data: re-initialise all state to empty-run
// defaults (spec §4.6, §8 property 9).
func (c *Coordinator) Reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.run.reset()
	c.envs.reset()
	c.regroup.reset()
	c.store.reset()
	c.cachedBatches = nil
	c.syncRegroupMetricsLocked()
	c.updateMetricsLocked()
}
