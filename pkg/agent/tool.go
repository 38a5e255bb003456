// Package agent implements the function-calling loop and the tools it may
// invoke. Tools form a closed registry; the model decides which to call and
// with what arguments, the loop executes them sequentially and feeds results
// back until the model produces a text answer or the iteration cap is hit.
package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/invopop/jsonschema"
)

// Tool is a named, schema-described function the agent may invoke
type Tool interface {
	Name() string
	Description() string
	Parameters() json.RawMessage // JSON schema of the arguments object
	Execute(ctx context.Context, args json.RawMessage) (string, error)
}

// Registry holds the available tools, lookup by name
type Registry struct {
	tools map[string]Tool
	order []string
	mu    sync.RWMutex
}

// NewRegistry creates a registry with the given tools
func NewRegistry(tools ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool, len(tools))}
	for _, t := range tools {
		r.Register(t)
	}
	return r
}

// Register adds a tool, replacing any previous tool with the same name
func (r *Registry) Register(t Tool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.tools[t.Name()]; !ok {
		r.order = append(r.order, t.Name())
	}
	r.tools[t.Name()] = t
}

// Get returns a tool by name
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// List returns the tools in registration order
func (r *Registry) List() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	res := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		res = append(res, r.tools[name])
	}
	return res
}

// paramsSchema reflects an args struct into an inline JSON schema object
func paramsSchema(v any) json.RawMessage {
	reflector := jsonschema.Reflector{
		Anonymous:      true,
		DoNotReference: true,
		ExpandedStruct: true,
	}
	schema := reflector.Reflect(v)
	schema.Version = "" // inline schemas carry no $schema header
	data, err := json.Marshal(schema)
	if err != nil {
		// reflection over our own arg structs cannot fail at runtime
		panic(fmt.Sprintf("marshal tool schema: %v", err))
	}
	return data
}

// errorResult packs an error into a JSON payload the model can read
func errorResult(err error) string {
	data, _ := json.Marshal(map[string]string{"error": err.Error()})
	return string(data)
}
