package tools

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/BaSui01/colloquy/types"
)

// Executor resolves a single tool invocation by name. Implementations decide
// ordering and failure handling policy themselves; the caller executes calls
// strictly in the order the model emitted them.
type Executor interface {
	Execute(ctx context.Context, name string, args map[string]any) (any, error)
}

// Func adapts a plain function to the Executor's execution signature.
type Func func(ctx context.Context, args map[string]any) (any, error)

// Metadata carries per-tool execution settings alongside the schema.
type Metadata struct {
	Schema  types.ToolSchema
	Timeout time.Duration // 执行超时，默认 30s
}

// Registry is a thread-safe tool registry that doubles as an Executor.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]Func
	meta   map[string]Metadata
	order  []string
	logger *zap.Logger
}

// NewRegistry 创建工具注册中心。
func NewRegistry(logger *zap.Logger) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Registry{
		tools:  make(map[string]Func),
		meta:   make(map[string]Metadata),
		logger: logger,
	}
}

// Register adds a tool. The schema name must match the registered name;
// an empty schema name is filled in from it.
func (r *Registry) Register(name string, fn Func, meta Metadata) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if name == "" {
		return fmt.Errorf("tool name must not be empty")
	}
	if fn == nil {
		return fmt.Errorf("tool %s: nil function", name)
	}
	if _, exists := r.tools[name]; exists {
		return fmt.Errorf("tool %s already registered", name)
	}
	if meta.Schema.Name == "" {
		meta.Schema.Name = name
	}
	if meta.Schema.Name != name {
		return fmt.Errorf("tool name mismatch: schema.Name=%s, register name=%s", meta.Schema.Name, name)
	}
	if meta.Timeout == 0 {
		meta.Timeout = 30 * time.Second
	}

	r.tools[name] = fn
	r.meta[name] = meta
	r.order = append(r.order, name)

	r.logger.Info("tool registered", zap.String("name", name), zap.Duration("timeout", meta.Timeout))
	return nil
}

// MustRegister panics on registration failure. Intended for program setup.
func (r *Registry) MustRegister(name string, fn Func, meta Metadata) {
	if err := r.Register(name, fn, meta); err != nil {
		panic(err)
	}
}

// Has reports whether a tool is registered.
func (r *Registry) Has(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.tools[name]
	return ok
}

// Schemas returns tool schemas in registration order.
func (r *Registry) Schemas() []types.ToolSchema {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]types.ToolSchema, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.meta[name].Schema)
	}
	return out
}

// Execute runs a registered tool, honoring its per-tool timeout.
// Unknown tools and tool panics both surface as tool execution errors.
func (r *Registry) Execute(ctx context.Context, name string, args map[string]any) (result any, err error) {
	r.mu.RLock()
	fn, ok := r.tools[name]
	meta := r.meta[name]
	r.mu.RUnlock()

	if !ok {
		return nil, types.NewError(types.ErrToolExecution, fmt.Sprintf("unknown tool: %s", name))
	}

	execCtx := ctx
	if meta.Timeout > 0 {
		var cancel context.CancelFunc
		execCtx, cancel = context.WithTimeout(ctx, meta.Timeout)
		defer cancel()
	}

	defer func() {
		if rec := recover(); rec != nil {
			err = types.NewError(types.ErrToolExecution, fmt.Sprintf("tool %s panicked: %v", name, rec))
		}
	}()

	start := time.Now()
	result, err = fn(execCtx, args)
	elapsed := time.Since(start)

	if err != nil {
		r.logger.Warn("tool execution failed",
			zap.String("name", name),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		)
		return nil, types.NewError(types.ErrToolExecution, fmt.Sprintf("tool %s failed", name)).WithCause(err)
	}

	r.logger.Debug("tool executed", zap.String("name", name), zap.Duration("elapsed", elapsed))
	return result, nil
}
