// Package planner turns a classified query into an executable tool plan and
// revises that plan between execution rounds. The model-backed planner is the
// production path; the rule planner is a deterministic fallback.
package planner

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopquery/shopquery/core"
	"github.com/shopquery/shopquery/internal/util"
	"github.com/shopquery/shopquery/logging"
	"github.com/shopquery/shopquery/model"
	"github.com/shopquery/shopquery/prompt"
	"github.com/shopquery/shopquery/tool"
)

// Planner produces the initial plan for a turn and, between execution
// rounds, decides whether more steps are needed.
type Planner interface {
	// Plan produces the initial plan. An empty plan means no tool can
	// contribute and synthesis proceeds from conversation context alone.
	Plan(ctx context.Context, query string, intent core.Intent, tools []tool.Definition) (*core.Plan, error)

	// Replan inspects what has been gathered so far and returns additional
	// steps, or an empty plan to stop executing.
	Replan(ctx context.Context, query string, executed []string, bundle core.ContextBundle, tools []tool.Definition) (*core.Plan, error)
}

// planDoc is the JSON shape the planning prompts require.
type planDoc struct {
	Steps []struct {
		ID        string         `json:"id"`
		Tool      string         `json:"tool"`
		Arguments map[string]any `json:"arguments"`
		DependsOn []string       `json:"depends_on"`
	} `json:"steps"`
	Rationale string `json:"rationale"`
}

// Options configures the model-backed planner.
type Options struct {
	// Timeout bounds one planning call, retries included.
	Timeout time.Duration

	// MaxRetries is how many times a failed model call is retried before
	// the transient error surfaces to the caller.
	MaxRetries int

	// InitialBackoff is the delay before the first retry; it doubles per
	// attempt.
	InitialBackoff time.Duration

	Prompts *prompt.Library
	Logger  logging.Logger
}

// ModelPlanner asks a language model for a plan and validates the reply
// against the registered tools.
type ModelPlanner struct {
	model   model.Model
	prompts *prompt.Library
	timeout time.Duration
	retries int
	backoff time.Duration
	logger  logging.Logger
}

// NewModelPlanner creates a planner on top of the given model.
func NewModelPlanner(m model.Model, optFns ...func(o *Options)) *ModelPlanner {
	opts := Options{
		Timeout:        10 * time.Second,
		MaxRetries:     2,
		InitialBackoff: 200 * time.Millisecond,
		Prompts:        prompt.NewLibrary(),
		Logger:         logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &ModelPlanner{
		model:   m,
		prompts: opts.Prompts,
		timeout: opts.Timeout,
		retries: opts.MaxRetries,
		backoff: opts.InitialBackoff,
		logger:  opts.Logger,
	}
}

// Plan implements Planner.
func (p *ModelPlanner) Plan(ctx context.Context, query string, intent core.Intent, tools []tool.Definition) (*core.Plan, error) {
	rendered, err := p.prompts.Render(prompt.KeyPlan, map[string]any{
		"Query":  query,
		"Intent": intent.Label,
		"Tools":  tools,
	})
	if err != nil {
		return nil, fmt.Errorf("render plan prompt: %w", err)
	}
	return p.complete(ctx, rendered, tools, 0)
}

// Replan implements Planner.
func (p *ModelPlanner) Replan(ctx context.Context, query string, executed []string, bundle core.ContextBundle, tools []tool.Definition) (*core.Plan, error) {
	rendered, err := p.prompts.Render(prompt.KeyReplan, map[string]any{
		"Query":    query,
		"Executed": executed,
		"Passages": bundle.Passages,
		"Tools":    tools,
	})
	if err != nil {
		return nil, fmt.Errorf("render replan prompt: %w", err)
	}
	return p.complete(ctx, rendered, tools, len(executed))
}

func (p *ModelPlanner) complete(ctx context.Context, rendered string, tools []tool.Definition, idOffset int) (*core.Plan, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	// Model hiccups are retried with doubling backoff before the transient
	// error is allowed to surface.
	var text string
	var err error
	backoff := p.backoff
	for attempt := 0; ; attempt++ {
		text, err = model.Complete(ctx, p.model, model.Request{
			Messages: []model.Message{{Role: "user", Text: rendered}},
		})
		if err == nil {
			break
		}
		if attempt >= p.retries || ctx.Err() != nil {
			return nil, core.NewError(core.KindTransient, "planning call failed", err)
		}
		p.logger.Warn("planner.retry", "attempt", attempt+1, "error", err.Error())
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return nil, core.NewError(core.KindTransient, "planning call failed", err)
		}
		if backoff *= 2; backoff > 2*time.Second {
			backoff = 2 * time.Second
		}
	}

	var doc planDoc
	if err := json.Unmarshal([]byte(util.ExtractJSON(text)), &doc); err != nil {
		return nil, core.NewError(core.KindValidation, fmt.Sprintf("unparseable plan: %v", err), nil)
	}
	return buildPlan(doc, tools, idOffset, p.logger)
}

// buildPlan converts the parsed document into a core.Plan, rejecting steps
// that reference unregistered tools and filling in missing step ids.
func buildPlan(doc planDoc, tools []tool.Definition, idOffset int, logger logging.Logger) (*core.Plan, error) {
	registered := make(map[string]bool, len(tools))
	for _, d := range tools {
		registered[d.Name] = true
	}

	plan := &core.Plan{Rationale: doc.Rationale}
	seen := make(map[string]bool, len(doc.Steps))
	for i, s := range doc.Steps {
		if !registered[s.Tool] {
			return nil, core.NewError(core.KindValidation, fmt.Sprintf("plan references unknown tool %q", s.Tool), nil)
		}
		id := s.ID
		if id == "" || seen[id] {
			id = fmt.Sprintf("s%d", idOffset+i+1)
		}
		seen[id] = true

		args := json.RawMessage("{}")
		if s.Arguments != nil {
			b, err := json.Marshal(s.Arguments)
			if err != nil {
				return nil, core.NewError(core.KindValidation, "unencodable step arguments", err)
			}
			args = b
		}

		deps := make([]string, 0, len(s.DependsOn))
		for _, d := range s.DependsOn {
			if d != id {
				deps = append(deps, d)
			}
		}
		plan.Steps = append(plan.Steps, core.Step{ID: id, Tool: s.Tool, Arguments: args, DependsOn: deps})
	}
	if logger != nil && len(plan.Steps) == 0 {
		logger.Debug("planner.empty_plan", "rationale", doc.Rationale)
	}
	return plan, nil
}

// RulePlanner maps intents to fixed single-step plans. It never replans.
type RulePlanner struct{}

// NewRulePlanner creates a rule planner.
func NewRulePlanner() *RulePlanner { return &RulePlanner{} }

// Plan implements Planner.
func (p *RulePlanner) Plan(_ context.Context, query string, intent core.Intent, tools []tool.Definition) (*core.Plan, error) {
	registered := make(map[string]bool, len(tools))
	for _, d := range tools {
		registered[d.Name] = true
	}

	step := func(toolName string, args map[string]any) (*core.Plan, error) {
		if !registered[toolName] {
			return &core.Plan{}, nil
		}
		b, err := json.Marshal(args)
		if err != nil {
			return nil, err
		}
		return &core.Plan{Steps: []core.Step{{ID: "s1", Tool: toolName, Arguments: b}}}, nil
	}

	switch intent.Label {
	case core.IntentProductQuery:
		return step("product_search", map[string]any{"query": query, "limit": 5})
	case core.IntentReviewQuery:
		return step("review_lookup", map[string]any{"query": query, "limit": 5})
	case core.IntentCartAction:
		return step("cart_view", map[string]any{})
	}
	return &core.Plan{}, nil
}

// Replan implements Planner. The rule planner executes a single round.
func (p *RulePlanner) Replan(context.Context, string, []string, core.ContextBundle, []tool.Definition) (*core.Plan, error) {
	return &core.Plan{}, nil
}
