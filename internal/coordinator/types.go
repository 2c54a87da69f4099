package coordinator

import (
	"encoding/json"
	"fmt"

	"github.com/kraklabs/atropos-server/internal/apperrors"
)

const (
	maxOverrideKeyLen    = 64
	maxOverrideStringLen = 1024

	minWeight      = 0.01
	maxBatchSize   = 1024
	maxTokenLen    = 131072
	maxGroupSize   = 1024
	maxEnvWeight   = 100.0
	maxEnvID       = 65535
	minAllocPrec   = 1e-9 // tolerance for clamping min_batch_allocation sums
	defaultEnvName = "env"
)

// OverrideValue is a tagged union over string | number | bool, the shape
// generation_params/group_overrides/per-sequence overrides values take on
// the wire. It round-trips through encoding/json as a plain scalar.
type OverrideValue struct {
	str    *string
	num    *float64
	boolv  *bool
	isNull bool
}

func (v OverrideValue) MarshalJSON() ([]byte, error) {
	switch {
	case v.str != nil:
		return json.Marshal(*v.str)
	case v.num != nil:
		return json.Marshal(*v.num)
	case v.boolv != nil:
		return json.Marshal(*v.boolv)
	default:
		return []byte("null"), nil
	}
}

func (v *OverrideValue) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch t := raw.(type) {
	case nil:
		v.isNull = true
	case string:
		if len(t) > maxOverrideStringLen {
			return fmt.Errorf("override string exceeds %d bytes", maxOverrideStringLen)
		}
		v.str = &t
	case float64:
		v.num = &t
	case bool:
		v.boolv = &t
	default:
		return fmt.Errorf("override value must be string, number, or bool, got %T", raw)
	}
	return nil
}

// validateOverrideMap checks key-length and value-size constraints on a
// map of override values (spec §9).
func validateOverrideMap(field string, m map[string]OverrideValue) error {
	for k, v := range m {
		if len(k) > maxOverrideKeyLen {
			return apperrors.Validation(field, "override key %q exceeds %d bytes", k, maxOverrideKeyLen)
		}
		if v.str != nil && len(*v.str) > maxOverrideStringLen {
			return apperrors.Validation(field, "override value for %q exceeds %d bytes", k, maxOverrideStringLen)
		}
	}
	return nil
}

// ScoredGroup is a single submission from an environment: an ordered list
// of token sequences with per-sequence scores and optional auxiliary
// arrays, all parallel to tokens (spec §3.1).
type ScoredGroup struct {
	Tokens             [][]int64                  `json:"tokens"`
	Masks              [][]int64                  `json:"masks"`
	Scores             []float64                  `json:"scores"`
	Advantages         [][]float64                `json:"advantages,omitempty"`
	RefLogprobs        [][]float64                `json:"ref_logprobs,omitempty"`
	InferenceLogprobs  [][]float64                `json:"inference_logprobs,omitempty"`
	Messages           []json.RawMessage           `json:"messages,omitempty"`
	GenerationParams   map[string]OverrideValue    `json:"generation_params,omitempty"`
	GroupOverrides     map[string]OverrideValue    `json:"group_overrides,omitempty"`
	Overrides          []map[string]OverrideValue  `json:"overrides,omitempty"`
	Images             []json.RawMessage           `json:"images,omitempty"`
	EnvID              *int                        `json:"env_id,omitempty"`
}

// Cardinality is the number of sequences in the group (spec §3.1).
func (g ScoredGroup) Cardinality() int {
	return len(g.Tokens)
}

// Validate checks the parallel-array invariants spec §3.1 and §9 require,
// failing fast at the deserialisation boundary rather than deferring to a
// downstream component.
func (g ScoredGroup) Validate() error {
	n := len(g.Tokens)
	if len(g.Masks) != n {
		return apperrors.Validation("masks", "length %d does not match tokens length %d", len(g.Masks), n)
	}
	for i, mask := range g.Masks {
		if len(mask) != len(g.Tokens[i]) {
			return apperrors.Validation("masks", "entry %d has length %d, tokens entry has length %d", i, len(mask), len(g.Tokens[i]))
		}
	}
	if len(g.Scores) != n {
		return apperrors.Validation("scores", "length %d does not match tokens length %d", len(g.Scores), n)
	}
	for i, toks := range g.Tokens {
		for _, t := range toks {
			if t < 0 {
				return apperrors.Validation("tokens", "entry %d contains negative token %d", i, t)
			}
		}
	}
	if g.Advantages != nil && len(g.Advantages) != n {
		return apperrors.Validation("advantages", "length %d does not match tokens length %d", len(g.Advantages), n)
	}
	if g.RefLogprobs != nil && len(g.RefLogprobs) != n {
		return apperrors.Validation("ref_logprobs", "length %d does not match tokens length %d", len(g.RefLogprobs), n)
	}
	if g.InferenceLogprobs != nil && len(g.InferenceLogprobs) != n {
		return apperrors.Validation("inference_logprobs", "length %d does not match tokens length %d", len(g.InferenceLogprobs), n)
	}
	if g.Messages != nil && len(g.Messages) != n {
		return apperrors.Validation("messages", "length %d does not match tokens length %d", len(g.Messages), n)
	}
	if g.Images != nil && len(g.Images) != n {
		return apperrors.Validation("images", "length %d does not match tokens length %d", len(g.Images), n)
	}
	if g.Overrides != nil && len(g.Overrides) != n {
		return apperrors.Validation("overrides", "length %d does not match tokens length %d", len(g.Overrides), n)
	}
	if err := validateOverrideMap("generation_params", g.GenerationParams); err != nil {
		return err
	}
	if err := validateOverrideMap("group_overrides", g.GroupOverrides); err != nil {
		return err
	}
	for i, o := range g.Overrides {
		if err := validateOverrideMap(fmt.Sprintf("overrides[%d]", i), o); err != nil {
			return err
		}
	}
	if g.EnvID != nil && (*g.EnvID < 0 || *g.EnvID > maxEnvID) {
		return apperrors.Validation("env_id", "must be in [0, %d]", maxEnvID)
	}
	return nil
}

// zeroScoredGroup is the canonical zero value serialised by /latest_example
// when nothing has been submitted yet (spec §9: do not emit a
// differently-shaped object).
func zeroScoredGroup() ScoredGroup {
	return ScoredGroup{
		Tokens: [][]int64{},
		Masks:  [][]int64{},
		Scores: []float64{},
	}
}

// EnvironmentDescriptor is an environment's registration record (spec
// §3.1). registered_id is also its index into EnvRegistry's vector.
type EnvironmentDescriptor struct {
	RegisteredID       int     `json:"registered_id"`
	DesiredName        string  `json:"desired_name"`
	RealName           string  `json:"real_name"`
	MaxContextLen      int     `json:"max_context_len"`
	Weight             float64 `json:"weight"`
	GroupSize          int     `json:"group_size"`
	MinBatchAllocation *float64 `json:"min_batch_allocation,omitempty"`
	Connected          bool    `json:"connected"`
}

// RunDescriptor is the trainer-supplied run configuration captured on
// first registration (spec §3.1).
type RunDescriptor struct {
	RunGroup               string `json:"run_group"`
	RunProject             string `json:"run_project"`
	BatchSize              int    `json:"batch_size"`
	MaxTokenLen            int    `json:"max_token_len"`
	StartingStep           int    `json:"starting_step"`
	NumSteps               int    `json:"num_steps"`
	SaveCheckpointInterval int    `json:"save_checkpoint_interval"`
	CheckpointDir          string `json:"checkpoint_dir"`

	CurrentStep int  `json:"-"`
	Started     bool `json:"-"`
}

// Validate checks the registration bounds spec §6 requires.
func (r RunDescriptor) Validate() error {
	if r.BatchSize < 1 || r.BatchSize > maxBatchSize {
		return apperrors.Validation("batch_size", "must be in [1, %d]", maxBatchSize)
	}
	if r.MaxTokenLen < 1 || r.MaxTokenLen > maxTokenLen {
		return apperrors.Validation("max_token_len", "must be in [1, %d]", maxTokenLen)
	}
	return nil
}

// RegisterEnvParams is the /register-env request payload.
type RegisterEnvParams struct {
	MaxTokenLength     int      `json:"max_token_length"`
	DesiredName        string   `json:"desired_name"`
	Weight             *float64 `json:"weight,omitempty"`
	GroupSize          int      `json:"group_size"`
	MinBatchAllocation *float64 `json:"min_batch_allocation,omitempty"`
}

// Validate checks the registration bounds spec §6 requires.
func (p RegisterEnvParams) Validate() error {
	if p.MaxTokenLength < 1 || p.MaxTokenLength > maxTokenLen {
		return apperrors.Validation("max_token_length", "must be in [1, %d]", maxTokenLen)
	}
	if p.GroupSize < 1 || p.GroupSize > maxGroupSize {
		return apperrors.Validation("group_size", "must be in [1, %d]", maxGroupSize)
	}
	if p.Weight != nil && (*p.Weight <= 0 || *p.Weight > maxEnvWeight) {
		return apperrors.Validation("weight", "must be in (0, %g]", maxEnvWeight)
	}
	if p.MinBatchAllocation != nil && (*p.MinBatchAllocation < 0 || *p.MinBatchAllocation > 1) {
		return apperrors.Validation("min_batch_allocation", "must be in [0, 1]")
	}
	return nil
}
