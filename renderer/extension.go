package renderer

import (
	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/parser"
	gmrenderer "github.com/yuin/goldmark/renderer"
)

// Pipeline collects the goldmark options an engine is built from.
// Extensions mutate it during Install.
type Pipeline struct {
	extenders       []goldmark.Extender
	parserOptions   []parser.Option
	rendererOptions []gmrenderer.Option
}

// Use appends goldmark extenders.
func (p *Pipeline) Use(exts ...goldmark.Extender) {
	p.extenders = append(p.extenders, exts...)
}

// AddParserOptions appends parser options such as inline or block parsers.
func (p *Pipeline) AddParserOptions(opts ...parser.Option) {
	p.parserOptions = append(p.parserOptions, opts...)
}

// AddRendererOptions appends renderer options such as node renderers.
func (p *Pipeline) AddRendererOptions(opts ...gmrenderer.Option) {
	p.rendererOptions = append(p.rendererOptions, opts...)
}

func (p *Pipeline) clone() *Pipeline {
	return &Pipeline{
		extenders:       append([]goldmark.Extender(nil), p.extenders...),
		parserOptions:   append([]parser.Option(nil), p.parserOptions...),
		rendererOptions: append([]gmrenderer.Option(nil), p.rendererOptions...),
	}
}

func (p *Pipeline) build() goldmark.Markdown {
	return goldmark.New(
		goldmark.WithExtensions(p.extenders...),
		goldmark.WithParserOptions(p.parserOptions...),
		goldmark.WithRendererOptions(p.rendererOptions...),
	)
}

// Extension adds parsing or rendering behaviour to an engine.
type Extension interface {
	Install(p *Pipeline) error
}

// Configurable is implemented by extensions that accept a configuration map
// at registration time. Configure must leave the extension unchanged when it
// returns an error.
type Configurable interface {
	Configure(cfg map[string]any) error
}

// ExtensionFunc adapts a function to the Extension interface.
type ExtensionFunc func(p *Pipeline) error

// Install calls f(p).
func (f ExtensionFunc) Install(p *Pipeline) error {
	return f(p)
}

// Goldmark wraps a goldmark.Extender so it can be registered on an Engine.
func Goldmark(ext goldmark.Extender) Extension {
	return ExtensionFunc(func(p *Pipeline) error {
		p.Use(ext)
		return nil
	})
}
