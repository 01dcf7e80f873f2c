// Package policy decides which unrecognized frontend messages may be
// forwarded to the agent document.
package policy

import (
	"context"
	"fmt"
	"os"

	"github.com/open-policy-agent/opa/rego"
)

// Engine is the OPA forwarding policy engine.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine creates a new policy engine with the given policy content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.container.forward.allow"),
		rego.Module("forward_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// LoadEngine builds an engine from a policy file, or from DefaultPolicy when
// path is empty.
func LoadEngine(ctx context.Context, path string) (*Engine, error) {
	if path == "" {
		return NewEngine(ctx, DefaultPolicy)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file: %w", err)
	}
	return NewEngine(ctx, string(content))
}

// AllowForward evaluates the policy for a frontend message of type msgType
// received from origin. An undefined result denies.
func (e *Engine) AllowForward(ctx context.Context, msgType, origin string) (bool, error) {
	input := map[string]interface{}{
		"type":   msgType,
		"origin": origin,
	}
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return false, fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return false, nil
	}

	allow, ok := results[0].Expressions[0].Value.(bool)
	if !ok {
		return false, fmt.Errorf("policy returned %T, want bool", results[0].Expressions[0].Value)
	}
	return allow, nil
}

// DefaultPolicy forwards every unrecognized frontend message to the agent.
// Deployments that want an allow-list replace it through FORWARD_POLICY_FILE,
// for example:
//
//	package container.forward
//
//	default allow := false
//
//	allow {
//		input.type == "CART_UPDATED"
//	}
const DefaultPolicy = `
package container.forward

default allow := true
`
