package filter

import (
	"html/template"
	"sync"
	"unicode"

	"github.com/cockroachdb/errors"
	"github.com/flosch/pongo2/v6"
)

// ErrInvalidName is returned for filter names a template cannot call.
var ErrInvalidName = errors.New("filter: invalid filter name")

// ValidName reports whether name can be used as a filter name: a letter or
// underscore followed by letters, digits or underscores.
func ValidName(name string) bool {
	if name == "" {
		return false
	}
	for i, r := range name {
		switch {
		case r == '_' || unicode.IsLetter(r):
		case i > 0 && unicode.IsDigit(r):
		default:
			return false
		}
	}
	return true
}

// FilterFunc converts text to HTML that is safe to embed without escaping.
type FilterFunc func(text string) (template.HTML, error)

// Environment is a template host with a named filter table. Setting a name
// that already exists replaces the earlier filter.
type Environment interface {
	SetFilter(name string, fn FilterFunc) error
}

// FuncMap is an Environment for html/template. Pass Funcs() to
// template.Funcs before parsing; templates parsed earlier keep the
// functions they were parsed with.
type FuncMap struct {
	mu    sync.RWMutex
	funcs template.FuncMap
}

// NewFuncMap returns an empty FuncMap environment.
func NewFuncMap() *FuncMap {
	return &FuncMap{funcs: template.FuncMap{}}
}

// SetFilter implements Environment.
func (e *FuncMap) SetFilter(name string, fn FilterFunc) error {
	if !ValidName(name) {
		return errors.Wrapf(ErrInvalidName, "%q", name)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.funcs[name] = func(text string) (template.HTML, error) {
		return fn(text)
	}
	return nil
}

// Lookup returns the filter registered under name.
func (e *FuncMap) Lookup(name string) (FilterFunc, bool) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	fn, ok := e.funcs[name].(func(string) (template.HTML, error))
	if !ok {
		return nil, false
	}
	return fn, true
}

// Funcs returns a copy of the current function table.
func (e *FuncMap) Funcs() template.FuncMap {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make(template.FuncMap, len(e.funcs))
	for name, fn := range e.funcs {
		out[name] = fn
	}
	return out
}

// Pongo2 is an Environment backed by pongo2's process-wide filter table.
type Pongo2 struct{}

// SetFilter implements Environment. The filter parameter pongo2 passes
// alongside the input is ignored.
func (Pongo2) SetFilter(name string, fn FilterFunc) error {
	if !ValidName(name) {
		return errors.Wrapf(ErrInvalidName, "%q", name)
	}
	pf := func(in *pongo2.Value, _ *pongo2.Value) (*pongo2.Value, *pongo2.Error) {
		out, err := fn(in.String())
		if err != nil {
			return nil, &pongo2.Error{Sender: "filter:" + name, OrigError: err}
		}
		return pongo2.AsSafeValue(string(out)), nil
	}
	if pongo2.FilterExists(name) {
		return errors.Wrapf(pongo2.ReplaceFilter(name, pf), "replace pongo2 filter %q", name)
	}
	return errors.Wrapf(pongo2.RegisterFilter(name, pf), "register pongo2 filter %q", name)
}

var (
	_ Environment = (*FuncMap)(nil)
	_ Environment = Pongo2{}
)
