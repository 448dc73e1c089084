// Package dispatch exposes the call-side entry points of the
// specialization layer. A Runtime owns the specialization cache registry,
// the pipeline adapter and the class builder; callers register callables
// once and invoke them with plain positional values. The first call with
// a new argument-type combination compiles a specialization, every later
// call with the same types reuses it.
package dispatch

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/wippyai/jit-runtime/cache"
	"github.com/wippyai/jit-runtime/errors"
	"github.com/wippyai/jit-runtime/exttype"
	"github.com/wippyai/jit-runtime/pipeline"
	"github.com/wippyai/jit-runtime/signature"
	"github.com/wippyai/jit-runtime/types"
)

// Config holds runtime construction options
type Config struct {
	// Adapter is the compilation pipeline backend. Required. The runtime
	// takes ownership and closes it with Close.
	Adapter pipeline.Adapter

	// Logger defaults to a nop logger.
	Logger *zap.Logger
}

// Runtime is the dispatch context. It owns the cache registry and the
// adapter handle; there is no process-wide singleton.
type Runtime struct {
	adapter  pipeline.Adapter
	registry *cache.Registry
	builder  *exttype.Builder
	exports  *ExportRegistry
	logger   *zap.Logger

	mu        sync.RWMutex
	callables map[string]*Callable
}

// New creates a dispatch runtime
func New(cfg Config) (*Runtime, error) {
	if cfg.Adapter == nil {
		return nil, errors.New(errors.PhaseDispatch, errors.KindRegistration).
			Detail("pipeline adapter is required").
			Build()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	builder := exttype.NewBuilder(cfg.Adapter)
	builder.SetLogger(logger)
	return &Runtime{
		adapter:   cfg.Adapter,
		registry:  cache.NewRegistry(),
		builder:   builder,
		exports:   NewExportRegistry(),
		logger:    logger,
		callables: make(map[string]*Callable),
	}, nil
}

// Close releases every cached specialization and the adapter
func (r *Runtime) Close(ctx context.Context) error {
	err := r.registry.Close(ctx)
	if closer, ok := r.adapter.(interface{ Close(context.Context) error }); ok {
		if cerr := closer.Close(ctx); cerr != nil && err == nil {
			err = cerr
		}
	}
	return err
}

// Exports returns the runtime's export registry
func (r *Runtime) Exports() *ExportRegistry {
	return r.exports
}

// CallableOptions configures registration
type CallableOptions struct {
	// Signature fixes the callable to one concrete signature, compiled
	// eagerly at registration. Mutually exclusive with Template.
	Signature *signature.Signature

	// Template is a generic signature whose type variables unify against
	// call-site argument types.
	Template *signature.Signature

	// Locals overrides the resolved type of named arguments during
	// template resolution.
	Locals map[string]types.Type
}

// Callable is one registered, specializable function
type Callable struct {
	runtime  *Runtime
	decl     *pipeline.Declaration
	cache    *cache.FunctionCache
	fixed    *signature.Signature
	template *signature.Signature
	locals   map[string]types.Type
	arity    int

	// inferred memoizes backend type inference per argument-type
	// combination. Inference may compile a throwaway module, so an
	// unannotated callable must not re-infer on cache hits.
	mu       sync.Mutex
	inferred map[string]*signature.Signature
}

// Name returns the callable's registered name
func (c *Callable) Name() string {
	return c.decl.Name
}

// Specializations returns the cache keys of the compiled specializations
func (c *Callable) Specializations() []string {
	return c.cache.Keys()
}

// Register adds a specializable callable. A fixed-signature callable is
// compiled immediately; a template or unannotated callable compiles per
// call-site signature on demand.
func (r *Runtime) Register(ctx context.Context, decl *pipeline.Declaration, opts CallableOptions) (*Callable, error) {
	if decl == nil || decl.Name == "" {
		return nil, errors.New(errors.PhaseDispatch, errors.KindRegistration).
			Detail("declaration has no name").
			Build()
	}
	if opts.Signature != nil && opts.Template != nil {
		return nil, errors.Registration("callable", decl.Name, errors.SignatureMismatch(
			"fixed signature and template are mutually exclusive"))
	}

	arity := len(decl.ArgNames)
	switch {
	case opts.Signature != nil:
		arity = len(opts.Signature.Args)
	case opts.Template != nil:
		arity = len(opts.Template.Args)
	}

	c := &Callable{
		runtime:  r,
		decl:     decl,
		cache:    r.registry.ForCallable(decl.Name),
		fixed:    opts.Signature,
		template: opts.Template,
		locals:   opts.Locals,
		arity:    arity,
		inferred: make(map[string]*signature.Signature),
	}

	r.mu.Lock()
	if _, exists := r.callables[decl.Name]; exists {
		r.mu.Unlock()
		return nil, errors.New(errors.PhaseDispatch, errors.KindRegistration).
			Callable(decl.Name).
			Detail("already registered").
			Build()
	}
	r.callables[decl.Name] = c
	r.mu.Unlock()

	if c.fixed != nil {
		if _, err := c.specialize(ctx, c.fixed); err != nil {
			r.mu.Lock()
			delete(r.callables, decl.Name)
			r.mu.Unlock()
			return nil, err
		}
	}

	r.logger.Debug("registered callable",
		zap.String("callable", decl.Name),
		zap.Bool("eager", c.fixed != nil))
	return c, nil
}

// Lookup returns a registered callable, or a not-found error
func (r *Runtime) Lookup(name string) (*Callable, error) {
	r.mu.RLock()
	c, ok := r.callables[name]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.NotFound(errors.PhaseDispatch, "callable", name)
	}
	return c, nil
}

// Names returns the registered callable names
func (r *Runtime) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.callables))
	for name := range r.callables {
		names = append(names, name)
	}
	return names
}

// Invoke calls a registered callable by name with positional arguments
func (r *Runtime) Invoke(ctx context.Context, name string, args ...any) (any, error) {
	c, err := r.Lookup(name)
	if err != nil {
		return nil, err
	}
	return c.Invoke(ctx, args...)
}

// Kw marks a keyword argument. The dispatch path rejects keyword
// arguments entirely; the type exists so call sites fail with a clear
// error instead of a resolution failure on the wrapper value.
type Kw struct {
	Value any
	Name  string
}

// Invoke resolves the argument types, finds or compiles the matching
// specialization, and calls it. The arity check runs before any type
// resolution; a wrong argument count fails even when argument types are
// unresolvable.
func (c *Callable) Invoke(ctx context.Context, args ...any) (any, error) {
	if kws := keywordNames(args); len(kws) > 0 {
		return nil, errors.KeywordArgs(c.decl.Name, kws)
	}
	if len(args) != c.arity {
		return nil, errors.Arity(c.decl.Name, c.arity, len(args))
	}

	sig, err := c.resolve(ctx, args)
	if err != nil {
		return nil, err
	}

	artifact, err := c.specialize(ctx, sig)
	if err != nil {
		return nil, err
	}
	return artifact.Wrapper.Invoke(ctx, args...)
}

// resolve maps argument values to the concrete signature to dispatch on
func (c *Callable) resolve(ctx context.Context, args []any) (*signature.Signature, error) {
	if c.fixed != nil {
		return c.fixed, nil
	}

	argTypes := make([]types.Type, len(args))
	for i, arg := range args {
		t, err := types.TypeOf(arg)
		if err != nil {
			return nil, err
		}
		argTypes[i] = t
	}

	if c.template != nil {
		return signature.ResolveTemplate(c.locals, c.template, c.decl.ArgNames, argTypes)
	}

	// No annotation: infer the full signature, return type included.
	key := typeKey(argTypes)
	c.mu.Lock()
	if sig, ok := c.inferred[key]; ok {
		c.mu.Unlock()
		return sig, nil
	}
	c.mu.Unlock()

	sig, _, err := c.runtime.adapter.InferTypes(ctx, c.decl, c.decl.Returns, argTypes, pipeline.Options{})
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.inferred[key] = sig
	c.mu.Unlock()
	return sig, nil
}

func typeKey(argTypes []types.Type) string {
	parts := make([]string, len(argTypes))
	for i, t := range argTypes {
		parts[i] = t.String()
	}
	return strings.Join(parts, ",")
}

// specialize returns the compiled artifact for sig, compiling at most
// once per distinct signature.
func (c *Callable) specialize(ctx context.Context, sig *signature.Signature) (*pipeline.Artifact, error) {
	key := sig.Key()
	if artifact := c.cache.Get(key); artifact != nil {
		return artifact, nil
	}

	return c.cache.CompileOrGet(ctx, key, func(ctx context.Context) (*pipeline.Artifact, error) {
		c.runtime.logger.Debug("compiling specialization",
			zap.String("callable", c.decl.Name),
			zap.String("signature", key))
		// One instantiated module per specialization; the name must be
		// unique within the adapter's runtime.
		return c.runtime.adapter.Compile(ctx, c.decl, sig, pipeline.Options{ModuleName: c.decl.Name + "/" + key})
	})
}

// BuildClass builds a native-backed class descriptor
func (r *Runtime) BuildClass(ctx context.Context, decl *exttype.ClassDecl) (*exttype.ClassDescriptor, error) {
	return r.builder.Build(ctx, decl)
}

func keywordNames(args []any) []string {
	var names []string
	for _, arg := range args {
		if kw, ok := arg.(Kw); ok {
			names = append(names, kw.Name)
		}
	}
	return names
}
