// Package prompt builds the tool schema and the framed prompt sent to the
// llama.cpp completion server.
//
// The prompt uses the Llama 3 chat framing: each turn is wrapped in
// <|start_header_id|>ROLE<|end_header_id|> ... <|eot_id|> sentinel tokens.
// The system turn embeds the JSON tool schema and instructs the model to
// answer with calls in the exact textual grammar name(key=value, ...),
// comma-joined and bracket-grouped when there are several. That grammar is
// a byte-for-byte contract with the call extractor; changing the wording
// here changes what the model emits.
package prompt

import (
	"encoding/json"
	"fmt"

	"github.com/PatrickKalkman/kubevox/internal/registry"
)

const (
	startHeader = "<|start_header_id|>"
	endHeader   = "<|end_header_id|>"
	endOfTurn   = "<|eot_id|>"
)

const systemInstructions = `You are an expert in composing functions. You are given a question and a set of possible functions. Based on the question, you will need to make one or more function/tool calls to achieve the purpose. If none of the functions can be used, point it out. If the given question lacks the parameters required by the function, also point it out. You should only return the function call in tools call sections.

If you decide to invoke any of the function(s), you MUST put it in the format of [func_name1(params_name1=params_value1, params_name2=params_value2...), func_name2(params)]
You SHOULD NOT include any other text in the response.

Here is a list of functions in JSON format that you can invoke.`

// ToolSchemaEntry is one operation in the wire-format tool schema.
type ToolSchemaEntry struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Parameters  ToolParameters `json:"parameters"`
}

// ToolParameters is the parameter block the model consumes. The outer type
// tag is always "dict"; the prompt format uses that label rather than
// JSON Schema's "object".
type ToolParameters struct {
	Type       string                       `json:"type"`
	Required   []string                     `json:"required"`
	Properties map[string]registry.Property `json:"properties"`
}

// BuildToolSchema derives one schema entry per registered operation, in
// registration order. An operation without a declared parameter schema gets
// an empty parameter block.
func BuildToolSchema(cat *registry.Catalog) []ToolSchemaEntry {
	ops := cat.List()
	entries := make([]ToolSchemaEntry, 0, len(ops))
	for _, op := range ops {
		params := ToolParameters{
			Type:       "dict",
			Required:   []string{},
			Properties: map[string]registry.Property{},
		}
		if op.Parameters != nil {
			if len(op.Parameters.Required) > 0 {
				params.Required = op.Parameters.Required
			}
			if len(op.Parameters.Properties) > 0 {
				params.Properties = op.Parameters.Properties
			}
		}
		entries = append(entries, ToolSchemaEntry{
			Name:        op.Name,
			Description: op.Description,
			Parameters:  params,
		})
	}
	return entries
}

// BuildSystemPrompt wraps the JSON tool schema in the fixed instructional
// boilerplate and system-turn sentinels.
func BuildSystemPrompt(cat *registry.Catalog) (string, error) {
	schema, err := json.Marshal(BuildToolSchema(cat))
	if err != nil {
		return "", fmt.Errorf("marshalling tool schema: %w", err)
	}
	return fmt.Sprintf("%ssystem%s\n\n%s\n\n%s\n%s",
		startHeader, endHeader, systemInstructions, schema, endOfTurn), nil
}

// BuildUserMessage wraps a user utterance in user-turn sentinels.
func BuildUserMessage(text string) string {
	return fmt.Sprintf("%suser%s\n\n%s%s", startHeader, endHeader, text, endOfTurn)
}

// BuildAssistantHeader returns the marker that opens the assistant turn the
// model is asked to complete.
func BuildAssistantHeader() string {
	return startHeader + "assistant" + endHeader
}

// BuildFullPrompt assembles the complete prompt for one query:
// system turn, user turn, then the open assistant header.
func BuildFullPrompt(cat *registry.Catalog, query string) (string, error) {
	system, err := BuildSystemPrompt(cat)
	if err != nil {
		return "", err
	}
	return system + "\n" + BuildUserMessage(query) + "\n" + BuildAssistantHeader(), nil
}
