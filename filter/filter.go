// Package filter registers Markdown conversion as a named template filter.
//
// A Filter owns one renderer.Engine and one sanitizer policy. On
// construction it installs itself in an Environment (html/template or
// pongo2) under a filter name, so templates can write
//
//	{{ .Body | markdown }}      (html/template)
//	{{ body|markdown }}         (pongo2)
//
// Custom syntax is added with RegisterExtension and applies to every
// later conversion.
package filter

import (
	"fmt"
	"html/template"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/sirupsen/logrus"

	"mdfilter/renderer"
	"mdfilter/sanitizer"
)

// DefaultName is the filter name used when Config.Name is empty.
const DefaultName = "markdown"

// ErrNoEnvironment is returned by New when env is nil.
var ErrNoEnvironment = errors.New("filter: nil environment")

// Config configures a Filter.
type Config struct {
	// Name is the filter name, DefaultName when empty.
	Name string `yaml:"name"`
	// SafeName registers a second filter that always sanitizes.
	SafeName string `yaml:"safe_name"`
	// SanitizeByDefault makes the Name filter sanitize its output.
	SanitizeByDefault bool                 `yaml:"sanitize_by_default"`
	Sanitize          *sanitizer.Overrides `yaml:"sanitize"`
	Engine            renderer.Options     `yaml:"engine"`

	Logger logrus.FieldLogger `yaml:"-"`
}

// Filter converts Markdown for templates.
type Filter struct {
	name              string
	safeName          string
	sanitizeByDefault bool

	engine    *renderer.Engine
	sanitizer *sanitizer.Sanitizer
	log       logrus.FieldLogger
}

// New builds the engine and policy described by cfg and registers the
// filter in env. Engine option errors are returned as is.
func New(env Environment, cfg Config) (*Filter, error) {
	if env == nil {
		return nil, ErrNoEnvironment
	}

	engine, err := renderer.New(cfg.Engine)
	if err != nil {
		return nil, err
	}

	name := cfg.Name
	if name == "" {
		name = DefaultName
	}

	log := cfg.Logger
	if log == nil {
		log = discardLogger()
	}

	f := &Filter{
		name:              name,
		safeName:          cfg.SafeName,
		sanitizeByDefault: cfg.SanitizeByDefault,
		engine:            engine,
		sanitizer:         sanitizer.New(sanitizer.DefaultPolicy().Merge(cfg.Sanitize)),
		log:               log.WithField("filter", name),
	}

	if err := env.SetFilter(f.name, f.Markdown); err != nil {
		return nil, err
	}
	if f.safeName != "" {
		if err := env.SetFilter(f.safeName, f.SafeMarkdown); err != nil {
			return nil, err
		}
	}

	f.log.WithFields(logrus.Fields{
		"safe_filter": f.safeName,
		"sanitize":    f.sanitizeByDefault,
	}).Debug("markdown filter registered")
	return f, nil
}

// Name returns the filter name.
func (f *Filter) Name() string {
	return f.name
}

// SafeName returns the name of the always-sanitizing filter, if any.
func (f *Filter) SafeName() string {
	return f.safeName
}

// SanitizeByDefault reports whether the Name filter sanitizes.
func (f *Filter) SanitizeByDefault() bool {
	return f.sanitizeByDefault
}

// Policy returns the merged sanitizer policy.
func (f *Filter) Policy() sanitizer.Policy {
	return f.sanitizer.Policy()
}

// Engine returns the underlying engine.
func (f *Filter) Engine() *renderer.Engine {
	return f.engine
}

// Convert renders text to HTML and, when sanitize is set, cleans it with
// the filter policy.
func (f *Filter) Convert(text string, sanitize bool) (string, error) {
	out, err := f.engine.ConvertString(text)
	if err != nil {
		return "", err
	}
	if !sanitize {
		return out, nil
	}
	return f.sanitizer.Clean(out)
}

// Markdown is the Name filter.
func (f *Filter) Markdown(text string) (template.HTML, error) {
	out, err := f.Convert(text, f.sanitizeByDefault)
	if err != nil {
		return "", err
	}
	return template.HTML(out), nil
}

// SafeMarkdown is the SafeName filter. Its output is always sanitized.
func (f *Filter) SafeMarkdown(text string) (template.HTML, error) {
	out, err := f.Convert(text, true)
	if err != nil {
		return "", err
	}
	return template.HTML(out), nil
}

// RegisterExtension adds ext to the shared engine. configs is handed to
// ext.Configure first and must be empty for extensions that are not
// renderer.Configurable.
func (f *Filter) RegisterExtension(ext renderer.Extension, configs map[string]any) error {
	if err := f.engine.Register(ext, configs); err != nil {
		return err
	}
	f.log.WithField("extension", fmt.Sprintf("%T", ext)).Debug("markdown extension registered")
	return nil
}

// Extend registers ext and returns it, panicking on error. It suits
// package-level registration:
//
//	var Highlight = md.Extend(mark.New(), nil)
func (f *Filter) Extend(ext renderer.Extension, configs map[string]any) renderer.Extension {
	if err := f.RegisterExtension(ext, configs); err != nil {
		panic(err)
	}
	return ext
}

func discardLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}
