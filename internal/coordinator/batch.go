package coordinator

// Batch is an ordered list of scored groups whose cardinality sum equals
// the run's batch_size (spec §4.4, GLOSSARY).
type Batch []ScoredGroup

func cardinalitySum(groups []ScoredGroup) int {
	total := 0
	for _, g := range groups {
		total += g.Cardinality()
	}
	return total
}

// assemble is BatchAssembler's stateless core: given a snapshot of the
// queue and the env registry, it returns as many complete batches as can
// be formed plus the residual queue (spec §4.4, §9: "implement it without
// side effects"). Strategy B (min-allocation greedy) is used whenever any
// connected env has min_batch_allocation set; otherwise strategy A.
func assemble(queue []ScoredGroup, envs *EnvRegistry, batchSize int) (batches []Batch, remaining []ScoredGroup) {
	remaining = append([]ScoredGroup(nil), queue...)

	useMinAlloc := false
	for _, e := range envs.connected() {
		if e.MinBatchAllocation != nil {
			useMinAlloc = true
			break
		}
	}

	for {
		var batch []ScoredGroup
		var ok bool
		if useMinAlloc {
			batch, remaining, ok = assembleOneMinAlloc(remaining, envs, batchSize)
		} else {
			batch, remaining, ok = assembleOneGreedy(remaining, batchSize)
		}
		if !ok {
			break
		}
		batches = append(batches, Batch(batch))
	}
	return batches, remaining
}

// assembleOneGreedy implements Strategy A: pull from the head of the
// queue, taking whole groups that don't overshoot, until the target is
// reached exactly. If the queue drains first, nothing is taken (spec
// §4.4 Strategy A).
func assembleOneGreedy(queue []ScoredGroup, batchSize int) (batch, remaining []ScoredGroup, ok bool) {
	sum := 0
	var taken []ScoredGroup
	var takenIdx []int
	for i, g := range queue {
		c := g.Cardinality()
		if sum+c > batchSize {
			continue
		}
		taken = append(taken, g)
		takenIdx = append(takenIdx, i)
		sum += c
		if sum == batchSize {
			break
		}
	}
	if sum != batchSize {
		return nil, queue, false
	}
	return taken, removeIndices(queue, takenIdx), true
}

// assembleOneMinAlloc implements Strategy B: for each connected env with
// min_batch_allocation set, in registration order, pull from the tail of
// the queue until its quota is met; then fill the remainder from the head
// without overshoot. Anything taken is returned to the queue verbatim if
// an env's quota can't be met or the target isn't reached exactly (spec
// §4.4 Strategy B).
func assembleOneMinAlloc(queue []ScoredGroup, envs *EnvRegistry, batchSize int) (batch, remaining []ScoredGroup, ok bool) {
	working := append([]ScoredGroup(nil), queue...)
	var reserved []ScoredGroup

	for _, e := range envs.connected() {
		if e.MinBatchAllocation == nil {
			continue
		}
		minSeqs := ceilFrac(batchSize, *e.MinBatchAllocation)
		have := 0
		for have < minSeqs {
			idx := findLastMatchingEnv(working, e.RegisteredID)
			if idx < 0 {
				break
			}
			g := working[idx]
			reserved = append(reserved, g)
			have += g.Cardinality()
			working = append(working[:idx], working[idx+1:]...)
		}
		if have < minSeqs {
			// This env's quota can't be met from the queue: no batch.
			return nil, queue, false
		}
	}

	sum := cardinalitySum(reserved)
	var filler []ScoredGroup
	var fillerIdx []int
	for i, g := range working {
		c := g.Cardinality()
		if sum+c > batchSize {
			continue
		}
		filler = append(filler, g)
		fillerIdx = append(fillerIdx, i)
		sum += c
		if sum == batchSize {
			break
		}
	}

	if sum != batchSize {
		// Return everything taken (reservations + filler) to the queue,
		// unchanged, and stop.
		return nil, queue, false
	}

	finalRemaining := removeIndices(working, fillerIdx)
	batchOut := append(append([]ScoredGroup(nil), reserved...), filler...)
	return batchOut, finalRemaining, true
}

// findLastMatchingEnv scans from the tail for the last group whose env_id
// matches envID, returning its index or -1.
func findLastMatchingEnv(queue []ScoredGroup, envID int) int {
	for i := len(queue) - 1; i >= 0; i-- {
		if queue[i].EnvID != nil && *queue[i].EnvID == envID {
			return i
		}
	}
	return -1
}

// removeIndices drops the given (ascending-sorted, as produced by a
// forward scan) indices from queue, preserving relative order of what's
// left.
func removeIndices(queue []ScoredGroup, idx []int) []ScoredGroup {
	if len(idx) == 0 {
		return append([]ScoredGroup(nil), queue...)
	}
	drop := make(map[int]bool, len(idx))
	for _, i := range idx {
		drop[i] = true
	}
	out := make([]ScoredGroup, 0, len(queue)-len(idx))
	for i, g := range queue {
		if !drop[i] {
			out = append(out, g)
		}
	}
	return out
}

// ceilFrac computes ceil(n * f) for the min_batch_allocation quota calc
// (spec §4.4).
func ceilFrac(n int, f float64) int {
	v := float64(n) * f
	iv := int(v)
	if float64(iv) < v {
		iv++
	}
	return iv
}
