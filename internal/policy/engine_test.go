package policy

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	e, err := NewEngine(context.Background(), DefaultPolicy)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	return e
}

func TestDefaultPolicyCompiles(t *testing.T) {
	// The shipped rules use if/in and must declare rego.v1 to parse.
	if _, err := NewEngine(context.Background(), DefaultPolicy); err != nil {
		t.Fatalf("DefaultPolicy failed to prepare: %v", err)
	}
}

func TestDefaultPolicyAllowsOrdinaryQueries(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	for _, q := range []string{
		"search index=main error",
		"index=app sourcetype=nginx status=500",
		// "deleted" is not the delete command.
		"search index=main user_deleted=true",
	} {
		decision, err := e.Evaluate(ctx, Input{ToolName: "splunk_search", Query: q})
		if err != nil {
			t.Fatalf("Evaluate(%q): %v", q, err)
		}
		assert.Equal(t, DecisionAllow, decision, "query %q", q)
	}
}

func TestDefaultPolicyBlocksDestructiveCommands(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	for _, q := range []string{
		"search index=main error | delete",
		"search index=main | DELETE",
		"delete index=main",
		"index=app | drop",
	} {
		decision, err := e.Evaluate(ctx, Input{ToolName: "splunk_search", Query: q})
		if err != nil {
			t.Fatalf("Evaluate(%q): %v", q, err)
		}
		assert.Equal(t, DecisionBlock, decision, "query %q", q)
	}
}

func TestInvalidPolicyContent(t *testing.T) {
	_, err := NewEngine(context.Background(), "package broken\n!!!")
	assert.Error(t, err)
}
