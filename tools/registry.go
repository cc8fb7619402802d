package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"

	"github.com/firebase/genkit/go/ai"
	logcontext "github.com/va6996/mensaman/context"
)

// ToolExecutor is the function signature for executing a tool with loosely typed arguments
type ToolExecutor func(ctx context.Context, args map[string]interface{}) (interface{}, error)

// Registry keeps the genkit tools handed to models together with executors
// that can run them outside a model turn (CLI, tests).
type Registry struct {
	mu        sync.RWMutex
	tools     []ai.Tool
	executors map[string]ToolExecutor
}

// NewRegistry creates a new tool registry
func NewRegistry() *Registry {
	return &Registry{
		tools:     make([]ai.Tool, 0),
		executors: make(map[string]ToolExecutor),
	}
}

// Register adds a tool to the registry with its executor
func (r *Registry) Register(tool ai.Tool, executor ToolExecutor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tools = append(r.tools, tool)
	r.executors[tool.Definition().Name] = executor
}

// GetTools returns all registered tools
func (r *Registry) GetTools() []ai.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]ai.Tool(nil), r.tools...)
}

// ToolRefs returns the registered tools as references for ai.WithTools.
func (r *Registry) ToolRefs() []ai.ToolRef {
	tools := r.GetTools()
	refs := make([]ai.ToolRef, 0, len(tools))
	for _, t := range tools {
		refs = append(refs, t)
	}
	return refs
}

// Names returns the registered tool names in alphabetical order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.executors))
	for name := range r.executors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// ExecuteTool runs a registered tool by name. A request id is attached when ctx has none.
func (r *Registry) ExecuteTool(ctx context.Context, name string, args map[string]interface{}) (interface{}, error) {
	r.mu.RLock()
	executor, ok := r.executors[name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("tool not found: %s", name)
	}
	ctx = logcontext.EnsureRequestID(ctx)
	if args == nil {
		args = map[string]interface{}{}
	}
	return executor(ctx, args)
}

// DecodeArgs converts loosely typed tool arguments into the tool's input struct.
func DecodeArgs(args map[string]interface{}, v interface{}) error {
	b, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("failed to encode arguments: %w", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("failed to parse arguments: %w", err)
	}
	return nil
}
