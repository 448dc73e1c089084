package exttype

import (
	"context"

	"go.uber.org/zap"

	jitruntime "github.com/wippyai/jit-runtime"
	"github.com/wippyai/jit-runtime/errors"
	"github.com/wippyai/jit-runtime/pipeline"
	"github.com/wippyai/jit-runtime/signature"
	"github.com/wippyai/jit-runtime/types"
)

// Builder turns class declarations into class descriptors. It holds no
// per-class state; one builder may serve many classes.
type Builder struct {
	adapter pipeline.Adapter
	logger  *zap.Logger
}

// NewBuilder creates a builder over a pipeline adapter
func NewBuilder(adapter pipeline.Adapter) *Builder {
	return &Builder{adapter: adapter, logger: zap.NewNop()}
}

// SetLogger replaces the builder's logger
func (b *Builder) SetLogger(logger *zap.Logger) {
	if logger != nil {
		b.logger = logger
	}
}

// Build runs the class construction stages in order, with no
// backtracking: inherit, collect signatures, infer the constructor,
// finalize the attribute struct, infer remaining methods, finalize the
// vtable, compile, build accessors, assemble. Any stage failure aborts
// the build; no partial descriptor is ever published.
func (b *Builder) Build(ctx context.Context, decl *ClassDecl) (*ClassDescriptor, error) {
	opts := pipeline.Options{ModuleName: decl.Name}

	// Stage 1: inherit the merged base layout, shared by reference.
	parentStruct, parentVTab, parentMethods, err := b.inherit(decl)
	if err != nil {
		return nil, err
	}

	// Stage 2: collect explicit annotations.
	symtab := pipeline.NewSymbolTable()
	for _, a := range decl.Attrs {
		symtab.Set(a.Name, a.Type)
	}
	annotated, err := collectSignatures(decl)
	if err != nil {
		return nil, err
	}

	methodSigs := make(map[string]*signature.Signature)

	// Stage 3: the constructor goes first; its attribute assignments
	// determine the types of attributes no annotation covers.
	if ctor := findMethod(decl, ConstructorName); ctor != nil {
		sig, assigns, err := b.inferConstructor(ctx, ctor, annotated[ConstructorName], opts)
		if err != nil {
			return nil, err
		}
		methodSigs[ConstructorName] = sig
		for _, name := range assigns.Names() {
			inferred, _ := assigns.Get(name)
			if declared, ok := symtab.Get(name); ok {
				if !types.Equal(declared, inferred) {
					return nil, errors.TypeMismatch(decl.Name, []string{name},
						declared.String(), inferred.String())
				}
				continue
			}
			symtab.Set(name, inferred)
		}
	}

	// Stage 4: finalize the attribute struct. Inherited fields first, in
	// parent order, then new attributes in first-seen order.
	attrStruct, err := finalizeStruct(decl.Name, parentStruct, symtab)
	if err != nil {
		return nil, err
	}

	// Stage 5: infer the remaining methods in declaration order.
	// Annotation types may be variables named after attributes; they
	// resolve against the now-finalized struct.
	attrBindings := types.Bindings{}
	for _, f := range attrStruct.Fields {
		attrBindings[f.Name] = f.Type
	}
	for _, m := range decl.Methods {
		name := m.Decl.Name
		if name == ConstructorName {
			continue
		}
		sig, err := b.inferMethod(ctx, &m, annotated[name], attrBindings, opts)
		if err != nil {
			return nil, err
		}
		methodSigs[name] = sig
	}

	// Stage 6: finalize the vtable type. Inherited slots keep their
	// positions; an override must preserve the slot's signature.
	vtab, err := finalizeVTable(decl, parentVTab, methodSigs)
	if err != nil {
		return nil, err
	}

	for _, base := range decl.Bases {
		if err := Verify(decl.Name, base.Name, base.Struct(), attrStruct, base.VTableType(), vtab); err != nil {
			return nil, err
		}
	}

	// Stage 7: compile the class's own methods; inherited, non-overridden
	// slots reuse the parent's compiled entry.
	methods, err := b.compileMethods(ctx, decl, vtab, methodSigs, parentMethods, opts)
	if err != nil {
		return nil, err
	}

	// Stage 8: statically built accessor table, one per attribute field.
	accessors := make(map[string]*Accessor, len(attrStruct.Fields))
	for i, f := range attrStruct.Fields {
		accessors[f.Name] = &Accessor{Name: f.Name, Type: f.Type, Field: i}
	}

	// Stage 9: assemble the immutable descriptor.
	vtable := &VTable{Type: vtab, Entries: make([]jitruntime.NativeFunc, len(vtab.Slots))}
	for i, slot := range vtab.Slots {
		vtable.Entries[i] = methods[slot.Name].Artifact.Entry
	}

	ext := &ExtensionType{
		Class:        decl.Name,
		Symtab:       symtab,
		Struct:       attrStruct,
		VTab:         vtab,
		ParentStruct: parentStruct,
		ParentVTab:   parentVTab,
	}

	b.logger.Debug("built extension type",
		zap.String("class", decl.Name),
		zap.Int("fields", len(attrStruct.Fields)),
		zap.Int("methods", len(vtab.Slots)))

	return &ClassDescriptor{
		Name:      decl.Name,
		Type:      ext,
		vtable:    vtable,
		methods:   methods,
		accessors: accessors,
	}, nil
}

// inherit merges the native bases into one starting layout. Bases must be
// mutually prefix-compatible: for every pair, the narrower layout must be
// a prefix of the wider one, otherwise no derived layout can extend both.
func (b *Builder) inherit(decl *ClassDecl) (*AttributeStruct, *VTableType, map[string]*Method, error) {
	var (
		mergedStruct *AttributeStruct
		mergedVTab   *VTableType
		structOwner  string
		vtabOwner    string
	)
	parentMethods := make(map[string]*Method)

	for _, base := range decl.Bases {
		bs, bv := base.Struct(), base.VTableType()

		if mergedStruct == nil || len(mergedStruct.Fields) <= len(bs.Fields) {
			if !StructIsPrefix(mergedStruct, bs) {
				return nil, nil, nil, errors.LayoutIncompatible(decl.Name, structOwner, base.Name)
			}
			mergedStruct, structOwner = bs, base.Name
		} else if !StructIsPrefix(bs, mergedStruct) {
			return nil, nil, nil, errors.LayoutIncompatible(decl.Name, structOwner, base.Name)
		}

		if mergedVTab == nil || len(mergedVTab.Slots) <= len(bv.Slots) {
			if !VTableIsPrefix(mergedVTab, bv) {
				return nil, nil, nil, errors.LayoutIncompatible(decl.Name, vtabOwner, base.Name)
			}
			mergedVTab, vtabOwner = bv, base.Name
		} else if !VTableIsPrefix(bv, mergedVTab) {
			return nil, nil, nil, errors.LayoutIncompatible(decl.Name, vtabOwner, base.Name)
		}

		for _, slot := range bv.Slots {
			if _, ok := parentMethods[slot.Name]; !ok {
				parentMethods[slot.Name] = base.Method(slot.Name)
			}
		}
	}

	if mergedStruct == nil {
		mergedStruct = &AttributeStruct{}
	}
	if mergedVTab == nil {
		mergedVTab = &VTableType{}
	}
	return mergedStruct, mergedVTab, parentMethods, nil
}

// collectSignatures resolves explicit per-method annotations. A method
// annotated more than once must carry equal signatures every time.
func collectSignatures(decl *ClassDecl) (map[string]*signature.Signature, error) {
	annotated := make(map[string]*signature.Signature)
	seen := make(map[string]bool)

	for _, m := range decl.Methods {
		name := m.Decl.Name
		if seen[name] {
			return nil, errors.DuplicateMethod(decl.Name, name)
		}
		seen[name] = true

		for _, sig := range m.Signatures {
			prev, ok := annotated[name]
			if !ok {
				annotated[name] = sig
				continue
			}
			if !prev.Equal(sig) {
				return nil, errors.DuplicateMethod(decl.Name, name)
			}
		}
	}
	return annotated, nil
}

func findMethod(decl *ClassDecl, name string) *MethodDecl {
	for i := range decl.Methods {
		if decl.Methods[i].Decl.Name == name {
			return &decl.Methods[i]
		}
	}
	return nil
}

// inferConstructor type-infers the initializer. Its argument types come
// from the explicit annotation when present; it must return void.
func (b *Builder) inferConstructor(ctx context.Context, ctor *MethodDecl, annotated *signature.Signature, opts pipeline.Options) (*signature.Signature, *pipeline.SymbolTable, error) {
	var argTypes []types.Type
	if annotated != nil {
		argTypes = annotated.Args
		if _, ok := annotated.Return.(types.VoidType); !ok {
			return nil, nil, errors.New(errors.PhaseClass, errors.KindSignatureMismatch).
				Class(opts.ModuleName).
				Path(ConstructorName).
				Detail("constructor must return void, annotated %s", annotated.Return).
				Build()
		}
	}
	sig, assigns, err := b.adapter.InferTypes(ctx, ctor.Decl, types.Void, argTypes, opts)
	if err != nil {
		return nil, nil, err
	}
	return sig, assigns, nil
}

// inferMethod resolves one non-constructor method signature. Attribute
// reads resolve to struct field types through the bindings.
func (b *Builder) inferMethod(ctx context.Context, m *MethodDecl, annotated *signature.Signature, attrBindings types.Bindings, opts pipeline.Options) (*signature.Signature, error) {
	if annotated == nil {
		sig, _, err := b.adapter.InferTypes(ctx, m.Decl, nil, nil, opts)
		return sig, err
	}

	argTypes := make([]types.Type, len(annotated.Args))
	for i, a := range annotated.Args {
		t := types.Substitute(a, attrBindings)
		if types.HasVar(t) {
			return nil, errors.New(errors.PhaseClass, errors.KindSignatureMismatch).
				Class(opts.ModuleName).
				Path(m.Decl.Name).
				Detail("argument type %s does not name an attribute", a).
				Build()
		}
		argTypes[i] = t
	}

	var retHint types.Type
	if ret := types.Substitute(annotated.Return, attrBindings); !types.HasVar(ret) {
		retHint = ret
	}

	sig, _, err := b.adapter.InferTypes(ctx, m.Decl, retHint, argTypes, opts)
	return sig, err
}

// finalizeStruct appends new attributes after the inherited prefix. An
// attribute that redeclares an inherited field must keep its type.
func finalizeStruct(class string, parent *AttributeStruct, symtab *pipeline.SymbolTable) (*AttributeStruct, error) {
	fields := make([]types.Field, len(parent.Fields), len(parent.Fields)+symtab.Len())
	copy(fields, parent.Fields)

	for _, name := range symtab.Names() {
		t, _ := symtab.Get(name)
		if i := parent.Index(name); i >= 0 {
			if !types.Equal(parent.Fields[i].Type, t) {
				return nil, errors.TypeMismatch(class, []string{name},
					parent.Fields[i].Type.String(), t.String())
			}
			continue
		}
		fields = append(fields, types.Field{Name: name, Type: t})
	}
	return &AttributeStruct{Fields: fields}, nil
}

// finalizeVTable extends the inherited slot layout with newly declared
// methods. Overrides stay at the inherited index and must preserve the
// slot signature, since call sites dispatch by fixed index.
func finalizeVTable(decl *ClassDecl, parent *VTableType, methodSigs map[string]*signature.Signature) (*VTableType, error) {
	slots := make([]Slot, len(parent.Slots), len(parent.Slots)+len(decl.Methods))
	copy(slots, parent.Slots)

	for _, m := range decl.Methods {
		name := m.Decl.Name
		sig := methodSigs[name]
		if i := parent.Index(name); i >= 0 {
			if !slots[i].Signature.Equal(sig) {
				return nil, errors.New(errors.PhaseClass, errors.KindSignatureMismatch).
					Class(decl.Name).
					Path(name).
					Detail("override changes inherited slot signature %s to %s",
						slots[i].Signature.Key(), sig.Key()).
					Build()
			}
			continue
		}
		slots = append(slots, Slot{Name: name, Signature: sig})
	}
	return &VTableType{Slots: slots}, nil
}

// compileMethods compiles every own method and links inherited entries.
// On any failure every artifact produced so far is released and nothing
// is published.
func (b *Builder) compileMethods(ctx context.Context, decl *ClassDecl, vtab *VTableType, methodSigs map[string]*signature.Signature, parentMethods map[string]*Method, opts pipeline.Options) (map[string]*Method, error) {
	methods := make(map[string]*Method, len(vtab.Slots))

	release := func() {
		for _, m := range methods {
			m.Artifact.Release(ctx)
		}
	}

	for _, m := range decl.Methods {
		name := m.Decl.Name
		// One instantiated module per method; unique within the adapter.
		methodOpts := opts
		methodOpts.ModuleName = decl.Name + "." + name
		artifact, err := b.adapter.Compile(ctx, m.Decl, methodSigs[name], methodOpts)
		if err != nil {
			release()
			return nil, err
		}
		methods[name] = &Method{Name: name, Signature: artifact.Signature, Artifact: artifact}
	}

	for _, slot := range vtab.Slots {
		if _, ok := methods[slot.Name]; ok {
			continue
		}
		pm := parentMethods[slot.Name]
		if pm == nil || pm.Artifact == nil {
			release()
			return nil, errors.InheritedMissing(decl.Name, slot.Name)
		}
		pm.Artifact.Retain()
		methods[slot.Name] = &Method{
			Name:      slot.Name,
			Signature: pm.Signature,
			Artifact:  pm.Artifact,
			Inherited: true,
		}
	}
	return methods, nil
}
