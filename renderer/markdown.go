package renderer

import (
	"bytes"
	"reflect"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/parser"
)

// Engine converts Markdown to HTML with a goldmark instance built from
// Options plus any extensions registered later.
//
// Convert is safe for concurrent use. Per-document state such as footnotes
// and link reference definitions lives in a parser.Context created for each
// call, so nothing carries over from one conversion to the next.
// Registering an extension rebuilds the goldmark instance under a write
// lock; conversions already running finish on the previous instance.
type Engine struct {
	mu         sync.RWMutex
	pipeline   *Pipeline
	md         goldmark.Markdown
	extensions []Extension
}

// New builds an engine from opts.
func New(opts Options) (*Engine, error) {
	p, err := opts.pipeline()
	if err != nil {
		return nil, err
	}
	return &Engine{
		pipeline: p,
		md:       p.build(),
	}, nil
}

// Register configures ext with cfg, installs it and rebuilds the engine.
// If Configure or Install fails the engine is left as it was. A failed
// Install does not undo a successful Configure on ext.
func (e *Engine) Register(ext Extension, cfg map[string]any) error {
	if isNil(ext) {
		return errors.Wrap(ErrInvalidOption, "nil extension")
	}
	if len(cfg) > 0 {
		c, ok := ext.(Configurable)
		if !ok {
			return errors.Wrapf(ErrNotConfigurable, "%T", ext)
		}
		if err := c.Configure(cfg); err != nil {
			return errors.Wrapf(err, "configure %T", ext)
		}
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	next := e.pipeline.clone()
	if err := ext.Install(next); err != nil {
		return errors.Wrapf(err, "install %T", ext)
	}
	e.pipeline = next
	e.md = next.build()
	e.extensions = append(e.extensions, ext)
	return nil
}

func isNil(ext Extension) bool {
	if ext == nil {
		return true
	}
	v := reflect.ValueOf(ext)
	switch v.Kind() {
	case reflect.Pointer, reflect.Func, reflect.Map, reflect.Interface:
		return v.IsNil()
	}
	return false
}

// Extensions returns the extensions registered through Register, in order.
func (e *Engine) Extensions() []Extension {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return append([]Extension(nil), e.extensions...)
}

// Convert renders markdown into HTML.
func (e *Engine) Convert(markdown []byte) ([]byte, error) {
	e.mu.RLock()
	md := e.md
	e.mu.RUnlock()

	var buf bytes.Buffer
	if err := md.Convert(markdown, &buf, parser.WithContext(parser.NewContext())); err != nil {
		return nil, errors.Wrap(err, "markdown convert")
	}
	return buf.Bytes(), nil
}

// ConvertString is Convert for string input and output.
func (e *Engine) ConvertString(markdown string) (string, error) {
	out, err := e.Convert([]byte(markdown))
	if err != nil {
		return "", err
	}
	return string(out), nil
}
