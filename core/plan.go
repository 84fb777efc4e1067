package core

import "encoding/json"

// Step is a single tool invocation inside a plan. DependsOn lists the IDs of
// earlier steps whose results this step needs; steps with no dependencies may
// be dispatched concurrently.
type Step struct {
	ID        string          `json:"id"`
	Tool      string          `json:"tool"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
	DependsOn []string        `json:"depends_on,omitempty"`
}

// Args unmarshals the step arguments into a generic map. A missing or empty
// payload yields an empty map rather than an error.
func (s Step) Args() (map[string]any, error) {
	if len(s.Arguments) == 0 {
		return map[string]any{}, nil
	}
	var m map[string]any
	if err := json.Unmarshal(s.Arguments, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// Plan is the ordered tool-invocation program produced by the planner for one
// turn. Iteration counts how many times the planner has been consulted for
// the turn (1 = initial plan, >1 = re-plans).
type Plan struct {
	Steps     []Step `json:"steps"`
	Iteration int    `json:"iteration"`
	Rationale string `json:"rationale,omitempty"`
}

// Empty reports whether the plan contains no steps (e.g. out-of-scope turns).
func (p *Plan) Empty() bool { return p == nil || len(p.Steps) == 0 }

// Clone returns a deep copy of the plan.
func (p *Plan) Clone() *Plan {
	if p == nil {
		return nil
	}
	clone := &Plan{Steps: make([]Step, len(p.Steps)), Iteration: p.Iteration, Rationale: p.Rationale}
	copy(clone.Steps, p.Steps)
	for i := range p.Steps {
		if len(p.Steps[i].DependsOn) > 0 {
			clone.Steps[i].DependsOn = append([]string(nil), p.Steps[i].DependsOn...)
		}
	}
	return clone
}

// Batches splits the plan into dependency layers: every step in batch N only
// depends on steps from batches < N. Steps naming unknown dependencies are
// treated as depending on everything before them, which keeps malformed
// model output executable instead of rejected.
func (p *Plan) Batches() [][]Step {
	if p.Empty() {
		return nil
	}
	placed := map[string]int{}
	var batches [][]Step
	for _, step := range p.Steps {
		layer := 0
		for _, dep := range step.DependsOn {
			if l, ok := placed[dep]; ok {
				if l+1 > layer {
					layer = l + 1
				}
			} else {
				layer = len(batches) // unknown dep: wait for everything so far
			}
		}
		if layer >= len(batches) {
			layer = len(batches)
			batches = append(batches, nil)
		}
		batches[layer] = append(batches[layer], step)
		placed[step.ID] = layer
	}
	return batches
}
