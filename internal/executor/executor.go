// Package executor resolves extracted calls against the catalog and runs them.
//
// Every invocation produces a Result value: either a success carrying the
// operation's raw result map and its templated text, or a failure carrying
// an error message. Failures are data, not errors: an unknown name, a
// handler error, or a bad template never aborts the sibling calls of the
// same query.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"time"

	"github.com/PatrickKalkman/kubevox/internal/registry"
)

// Result is the uniform outcome of dispatching one call.
type Result struct {
	Success bool `json:"success"`

	// Raw is the operation's return mapping; nil on failure.
	Raw map[string]any `json:"result,omitempty"`

	// Formatted is the human-readable rendering of Raw via the operation's
	// response template; empty on failure.
	Formatted string `json:"formatted_response,omitempty"`

	// Err is the failure message; empty on success.
	Err string `json:"error,omitempty"`
}

// Executor dispatches calls against a read-only catalog.
type Executor struct {
	catalog *registry.Catalog
}

// New creates an executor over the given catalog.
func New(cat *registry.Catalog) *Executor {
	return &Executor{catalog: cat}
}

// Execute resolves name, invokes its handler with the raw string arguments,
// and formats the result. Argument values are passed through untyped;
// operations coerce their own parameters.
func (e *Executor) Execute(ctx context.Context, name string, args map[string]string) (res Result) {
	op, ok := e.catalog.Lookup(name)
	if !ok {
		return Result{Err: fmt.Sprintf("Function %s not found", name)}
	}

	// A panicking handler must degrade into a failure result, not take the
	// whole query down.
	defer func() {
		if r := recover(); r != nil {
			slog.Error("operation panicked", "operation", name, "panic", r)
			res = Result{Err: fmt.Sprintf("Function execution error: %v", r)}
		}
	}()

	slog.Info("executing operation", "operation", name, "args", args)
	start := time.Now()

	raw, err := op.Handler(ctx, args)
	if err != nil {
		slog.Error("operation failed", "operation", name, "error", err)
		return Result{Err: fmt.Sprintf("Error executing %s: %v", name, err)}
	}

	formatted, err := FormatTemplate(op.ResponseTemplate, raw)
	if err != nil {
		slog.Error("response formatting failed", "operation", name, "error", err)
		return Result{Err: fmt.Sprintf("Error executing %s: %v", name, err)}
	}

	slog.Info("operation complete", "operation", name, "duration", time.Since(start))
	return Result{Success: true, Raw: raw, Formatted: formatted}
}

// placeholderPattern matches {key} and {key[index]} template placeholders.
var placeholderPattern = regexp.MustCompile(`\{([A-Za-z_]\w*)(?:\[(\w+)\])?\}`)

// FormatTemplate substitutes named placeholders in template with fields from
// result. {key[index]} placeholders index one level into a nested map. An
// empty template falls back to a plain rendering of the whole result map.
// Missing keys fail closed into an error instead of emitting partial text.
func FormatTemplate(template string, result map[string]any) (string, error) {
	if template == "" {
		return fmt.Sprintf("%v", result), nil
	}

	var missing error
	out := placeholderPattern.ReplaceAllStringFunc(template, func(match string) string {
		groups := placeholderPattern.FindStringSubmatch(match)
		key, index := groups[1], groups[2]

		value, ok := result[key]
		if !ok {
			missing = fmt.Errorf("missing key %q in result", key)
			return match
		}

		if index != "" {
			nested, ok := value.(map[string]any)
			if !ok {
				missing = fmt.Errorf("key %q is not indexable", key)
				return match
			}
			value, ok = nested[index]
			if !ok {
				missing = fmt.Errorf("missing key %q[%q] in result", key, index)
				return match
			}
		}
		return fmt.Sprintf("%v", value)
	})
	if missing != nil {
		return "", missing
	}
	return out, nil
}
