package prompt

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/PatrickKalkman/kubevox/internal/registry"
)

func noopHandler(_ context.Context, _ map[string]string) (map[string]any, error) {
	return map[string]any{}, nil
}

func sampleCatalog() *registry.Catalog {
	cat := registry.NewCatalog()
	cat.Register(registry.Operation{
		Name:        "test_func",
		Description: "Test function description",
		Parameters: &registry.ParameterSchema{
			Required: []string{"test_param"},
			Properties: map[string]registry.Property{
				"test_param": {Type: "string", Description: "A test parameter"},
			},
		},
		Handler: noopHandler,
	})
	return cat
}

func TestBuildToolSchema(t *testing.T) {
	schema := BuildToolSchema(sampleCatalog())

	if len(schema) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(schema))
	}
	tool := schema[0]
	if tool.Name != "test_func" {
		t.Errorf("expected name test_func, got %q", tool.Name)
	}
	if tool.Description != "Test function description" {
		t.Errorf("unexpected description %q", tool.Description)
	}
	if tool.Parameters.Type != "dict" {
		t.Errorf("expected outer type dict, got %q", tool.Parameters.Type)
	}
	if len(tool.Parameters.Required) != 1 || tool.Parameters.Required[0] != "test_param" {
		t.Errorf("unexpected required list %v", tool.Parameters.Required)
	}
	if _, ok := tool.Parameters.Properties["test_param"]; !ok {
		t.Error("expected test_param in properties")
	}
}

func TestBuildToolSchemaEmptyCatalog(t *testing.T) {
	schema := BuildToolSchema(registry.NewCatalog())
	if len(schema) != 0 {
		t.Fatalf("expected empty schema, got %d entries", len(schema))
	}
}

func TestBuildToolSchemaNoParameters(t *testing.T) {
	cat := registry.NewCatalog()
	cat.Register(registry.Operation{Name: "bare", Description: "no params", Handler: noopHandler})

	schema := BuildToolSchema(cat)
	if len(schema) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(schema))
	}
	params := schema[0].Parameters
	if params.Type != "dict" || len(params.Required) != 0 || len(params.Properties) != 0 {
		t.Errorf("expected empty dict parameter block, got %+v", params)
	}
}

func TestBuildToolSchemaRoundTripOrder(t *testing.T) {
	cat := registry.NewCatalog()
	names := []string{"alpha", "beta", "gamma", "delta"}
	for _, name := range names {
		cat.Register(registry.Operation{Name: name, Handler: noopHandler})
	}

	schema := BuildToolSchema(cat)
	if len(schema) != len(names) {
		t.Fatalf("expected %d entries, got %d", len(names), len(schema))
	}
	for i, name := range names {
		if schema[i].Name != name {
			t.Errorf("position %d: expected %q, got %q", i, name, schema[i].Name)
		}
	}

	// The schema must round-trip through JSON with its order intact.
	data, err := json.Marshal(schema)
	if err != nil {
		t.Fatalf("marshalling schema: %v", err)
	}
	var decoded []ToolSchemaEntry
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("unmarshalling schema: %v", err)
	}
	for i, name := range names {
		if decoded[i].Name != name {
			t.Errorf("after round-trip, position %d: expected %q, got %q", i, name, decoded[i].Name)
		}
	}
}

func TestBuildSystemPrompt(t *testing.T) {
	system, err := BuildSystemPrompt(sampleCatalog())
	if err != nil {
		t.Fatalf("building system prompt: %v", err)
	}

	if !strings.HasPrefix(system, "<|start_header_id|>system<|end_header_id|>") {
		t.Error("system prompt should start with the system header")
	}
	if !strings.HasSuffix(system, "<|eot_id|>") {
		t.Error("system prompt should end with the end-of-turn token")
	}
	if !strings.Contains(system, "You are an expert in composing functions") {
		t.Error("system prompt should contain the instructional boilerplate")
	}
	if !strings.Contains(system, "test_func") {
		t.Error("system prompt should contain the registered operation")
	}
	if !strings.Contains(system, "Test function description") {
		t.Error("system prompt should contain the operation description")
	}
}

func TestBuildUserMessage(t *testing.T) {
	message := BuildUserMessage("List all pods in namespace default")

	if !strings.HasPrefix(message, "<|start_header_id|>user<|end_header_id|>") {
		t.Error("user message should start with the user header")
	}
	if !strings.Contains(message, "List all pods in namespace default") {
		t.Error("user message should contain the query text")
	}
	if !strings.HasSuffix(message, "<|eot_id|>") {
		t.Error("user message should end with the end-of-turn token")
	}
}

func TestBuildAssistantHeader(t *testing.T) {
	if got := BuildAssistantHeader(); got != "<|start_header_id|>assistant<|end_header_id|>" {
		t.Errorf("unexpected assistant header %q", got)
	}
}

func TestBuildFullPrompt(t *testing.T) {
	cat := sampleCatalog()
	full, err := BuildFullPrompt(cat, "how many nodes?")
	if err != nil {
		t.Fatalf("building full prompt: %v", err)
	}

	system, _ := BuildSystemPrompt(cat)
	want := system + "\n" + BuildUserMessage("how many nodes?") + "\n" + BuildAssistantHeader()
	if full != want {
		t.Error("full prompt should be system + user + assistant header joined by newlines")
	}
}
