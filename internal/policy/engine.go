// Package policy screens search queries before they reach the backend.
package policy

import (
	"context"
	"fmt"

	"github.com/open-policy-agent/opa/rego"
)

// Decision values produced by the policy.
const (
	DecisionAllow = "allow"
	DecisionBlock = "block"
)

// Engine evaluates the query policy.
type Engine struct {
	query rego.PreparedEvalQuery
}

// NewEngine prepares the policy engine with the given rego module content.
func NewEngine(ctx context.Context, policyContent string) (*Engine, error) {
	r := rego.New(
		rego.Query("data.query_policy.decision"),
		rego.Module("query_policy.rego", policyContent),
	)

	query, err := r.PrepareForEval(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare rego: %w", err)
	}

	return &Engine{query: query}, nil
}

// Input carries the fields the policy sees for one tool invocation.
type Input struct {
	ToolName string `json:"tool_name"`
	Query    string `json:"query"`
}

// Evaluate returns the policy decision for the given input. An empty result
// set falls back to allow; the shipped policy always defines a default.
func (e *Engine) Evaluate(ctx context.Context, input Input) (string, error) {
	results, err := e.query.Eval(ctx, rego.EvalInput(input))
	if err != nil {
		return "", fmt.Errorf("failed to evaluate policy: %w", err)
	}

	if len(results) == 0 || len(results[0].Expressions) == 0 {
		return DecisionAllow, nil
	}

	if s, ok := results[0].Expressions[0].Value.(string); ok {
		return s, nil
	}
	return DecisionAllow, nil
}

// DefaultPolicy blocks queries carrying destructive SPL commands. The command
// list mirrors what the backend operators never want issued from this server.
const DefaultPolicy = `
package query_policy

import rego.v1

default decision := "allow"

dangerous := {"delete", "drop", "truncate", "alter"}

decision := "block" if {
	some cmd in dangerous
	contains(lower(input.query), sprintf("| %s", [cmd]))
}

decision := "block" if {
	some cmd in dangerous
	startswith(lower(input.query), sprintf("%s ", [cmd]))
}
`
