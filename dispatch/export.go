package dispatch

import (
	"sync"

	"github.com/wippyai/jit-runtime/errors"
	"github.com/wippyai/jit-runtime/pipeline"
	"github.com/wippyai/jit-runtime/signature"
)

// Export associates a declaration with an exported native symbol. The
// symbol name and type contract come from the parsed signature string;
// consumption of the table belongs to the ahead-of-time packaging path.
type Export struct {
	Signature   *signature.Signature
	Declaration *pipeline.Declaration
}

// ExportRegistry collects symbol exports keyed by the parsed signature
// name.
type ExportRegistry struct {
	mu      sync.Mutex
	exports map[string]*Export
	order   []string
}

// NewExportRegistry creates an empty export registry
func NewExportRegistry() *ExportRegistry {
	return &ExportRegistry{exports: make(map[string]*Export)}
}

// Export registers a declaration under the signature string's name. The
// signature must carry a name; duplicate symbol registration fails.
func (r *ExportRegistry) Export(sigString string, decl *pipeline.Declaration) error {
	sig, err := signature.Parse(sigString)
	if err != nil {
		return err
	}
	if sig.Name == "" {
		return errors.Registration("export", sigString,
			errors.Syntax(sigString, 0, "exported signature must carry a symbol name"))
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.exports[sig.Name]; exists {
		return errors.New(errors.PhaseDispatch, errors.KindRegistration).
			Callable(sig.Name).
			Detail("symbol already exported").
			Build()
	}
	r.exports[sig.Name] = &Export{Signature: sig, Declaration: decl}
	r.order = append(r.order, sig.Name)
	return nil
}

// ExportMany registers one declaration under several exported symbols
func (r *ExportRegistry) ExportMany(sigStrings []string, decl *pipeline.Declaration) error {
	for _, s := range sigStrings {
		if err := r.Export(s, decl); err != nil {
			return err
		}
	}
	return nil
}

// Lookup returns the export for a symbol name, or nil
func (r *ExportRegistry) Lookup(name string) *Export {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.exports[name]
}

// Symbols returns the exported symbol names in registration order
func (r *ExportRegistry) Symbols() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}
