// Package registry holds the catalog of operations the assistant can invoke.
//
// Every capability exposed to the language model (counting nodes, switching
// cluster context, and so on) is registered here as a named Operation
// pairing a descriptor (name, description, parameter schema, response
// template) with its handler. The catalog is built once at startup, before
// any query is processed, and is read-only afterwards.
package registry

import "context"

// Handler executes one operation. Argument values arrive as raw strings
// exactly as the call extractor produced them; handlers that need typed
// values perform their own coercion. The returned map holds the operation's
// result fields, which the executor substitutes into the response template.
type Handler func(ctx context.Context, args map[string]string) (map[string]any, error)

// Property describes a single declared parameter.
type Property struct {
	Type        string `json:"type"`
	Description string `json:"description,omitempty"`
	Default     any    `json:"default,omitempty"`
}

// ParameterSchema declares an operation's parameters. It round-trips into
// the tool-schema JSON sent to the model.
type ParameterSchema struct {
	Required   []string            `json:"required"`
	Properties map[string]Property `json:"properties"`
}

// Operation is one invokable capability: its descriptor plus its handler.
type Operation struct {
	Name             string
	Description      string
	ResponseTemplate string

	// Parameters is nil when the operation declares no parameters; the
	// schema builder emits an empty parameter block in that case.
	Parameters *ParameterSchema

	Handler Handler
}

// Catalog is the process-wide set of registered operations.
//
// It preserves registration order, which is also the order operations appear
// in the generated tool schema. Registering two operations under the same
// name is not rejected; Lookup returns the first match, so the duplicate is
// unreachable. There is no locking; callers must finish all registration
// before sharing the catalog across goroutines.
type Catalog struct {
	ops []Operation
}

// NewCatalog returns an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{}
}

// Register appends an operation to the catalog.
func (c *Catalog) Register(op Operation) {
	c.ops = append(c.ops, op)
}

// List returns all operations in registration order. The returned slice is
// a copy; mutating it does not affect the catalog.
func (c *Catalog) List() []Operation {
	out := make([]Operation, len(c.ops))
	copy(out, c.ops)
	return out
}

// Lookup returns the first operation registered under name.
func (c *Catalog) Lookup(name string) (Operation, bool) {
	for _, op := range c.ops {
		if op.Name == name {
			return op, true
		}
	}
	return Operation{}, false
}

// Len returns the number of registered operations.
func (c *Catalog) Len() int {
	return len(c.ops)
}
