package coordinator

import "strconv"

// EnvRegistry is the growable, never-reordered vector of environment
// descriptors (spec §2, §4.2, §9: "represent env registry as a growable
// vector and never reorder").
type EnvRegistry struct {
	envs      []*EnvironmentDescriptor
	nameCount map[string]int
}

func newEnvRegistry() *EnvRegistry {
	return &EnvRegistry{nameCount: make(map[string]int)}
}

// register allocates the next registered_id and appends a new descriptor.
// realName is always desired_name_<k>, where k counts prior descriptors
// sharing the same desired name (spec §3.1).
func (r *EnvRegistry) register(p RegisterEnvParams) *EnvironmentDescriptor {
	name := p.DesiredName
	if name == "" {
		name = defaultEnvName
	}
	k := r.nameCount[name]
	r.nameCount[name] = k + 1

	realName := name + "_" + strconv.Itoa(k)

	weight := 1.0
	if p.Weight != nil {
		weight = *p.Weight
	}

	d := &EnvironmentDescriptor{
		RegisteredID:       len(r.envs),
		DesiredName:        name,
		RealName:           realName,
		MaxContextLen:      p.MaxTokenLength,
		Weight:             weight,
		GroupSize:          p.GroupSize,
		MinBatchAllocation: p.MinBatchAllocation,
		Connected:          true,
	}
	r.envs = append(r.envs, d)
	return d
}

// get returns the descriptor for id, or nil if out of range. The registry
// never removes entries, so any id ever returned by register stays valid
// for the lifetime of the run (spec §3.2).
func (r *EnvRegistry) get(id int) *EnvironmentDescriptor {
	if id < 0 || id >= len(r.envs) {
		return nil
	}
	return r.envs[id]
}

// disconnect marks an env disconnected; returns false if id is out of
// range (spec §4.2).
func (r *EnvRegistry) disconnect(id int) bool {
	d := r.get(id)
	if d == nil {
		return false
	}
	d.Connected = false
	return true
}

// Len is the number of ever-registered envs (connected or not).
func (r *EnvRegistry) Len() int {
	return len(r.envs)
}

// connected returns the descriptors currently marked connected, in
// registration order.
func (r *EnvRegistry) connected() []*EnvironmentDescriptor {
	out := make([]*EnvironmentDescriptor, 0, len(r.envs))
	for _, d := range r.envs {
		if d.Connected {
			out = append(out, d)
		}
	}
	return out
}

// reset clears the registry back to empty.
func (r *EnvRegistry) reset() {
	r.envs = nil
	r.nameCount = make(map[string]int)
}
