// Package mark adds ==highlighted== text, rendered as <mark>.
package mark

import (
	"github.com/cockroachdb/errors"
	gast "github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/parser"
	gmrenderer "github.com/yuin/goldmark/renderer"
	"github.com/yuin/goldmark/text"
	"github.com/yuin/goldmark/util"

	"mdfilter/renderer"
)

// KindMark is the NodeKind of Mark nodes.
var KindMark = gast.NewNodeKind("Mark")

// Mark is an inline node for highlighted text.
type Mark struct {
	gast.BaseInline
}

// Dump implements gast.Node.
func (n *Mark) Dump(source []byte, level int) {
	gast.DumpHelper(n, source, level, nil, nil)
}

// Kind implements gast.Node.
func (n *Mark) Kind() gast.NodeKind {
	return KindMark
}

// NewMark returns an empty Mark node.
func NewMark() *Mark {
	return &Mark{}
}

type delimiterProcessor struct{}

func (p *delimiterProcessor) IsDelimiter(b byte) bool {
	return b == '='
}

func (p *delimiterProcessor) CanOpenCloser(opener, closer *parser.Delimiter) bool {
	return opener.Char == closer.Char
}

func (p *delimiterProcessor) OnMatch(consumes int) gast.Node {
	return NewMark()
}

var defaultDelimiterProcessor = &delimiterProcessor{}

type inlineParser struct{}

func (s *inlineParser) Trigger() []byte {
	return []byte{'='}
}

func (s *inlineParser) Parse(parent gast.Node, block text.Reader, pc parser.Context) gast.Node {
	before := block.PrecendingCharacter()
	line, segment := block.PeekLine()
	node := parser.ScanDelimiter(line, before, 2, defaultDelimiterProcessor)
	if node == nil || node.OriginalLength != 2 || before == '=' {
		return nil
	}
	node.Segment = segment.WithStop(segment.Start + node.OriginalLength)
	block.Advance(node.OriginalLength)
	pc.PushDelimiter(node)
	return node
}

func (s *inlineParser) CloseBlock(parent gast.Node, pc parser.Context) {}

type htmlRenderer struct {
	tag   string
	class string
}

func (r *htmlRenderer) RegisterFuncs(reg gmrenderer.NodeRendererFuncRegisterer) {
	reg.Register(KindMark, r.render)
}

func (r *htmlRenderer) render(w util.BufWriter, source []byte, n gast.Node, entering bool) (gast.WalkStatus, error) {
	if !entering {
		_, _ = w.WriteString("</" + r.tag + ">")
		return gast.WalkContinue, nil
	}
	_ = w.WriteByte('<')
	_, _ = w.WriteString(r.tag)
	if r.class != "" {
		_, _ = w.WriteString(` class="`)
		_, _ = w.Write(util.EscapeHTML([]byte(r.class)))
		_ = w.WriteByte('"')
	}
	_ = w.WriteByte('>')
	return gast.WalkContinue, nil
}

// Extension installs the ==text== syntax. The zero value renders <mark>.
type Extension struct {
	// Tag replaces the element name, "mark" when empty.
	Tag string
	// Class is set as the class attribute when non-empty.
	Class string
}

// New returns the extension with default settings.
func New() *Extension {
	return &Extension{}
}

// Configure accepts the "tag" and "class" keys. Nothing is applied unless
// every key is valid.
func (e *Extension) Configure(cfg map[string]any) error {
	tag, class := e.Tag, e.Class
	for key, raw := range cfg {
		s, ok := raw.(string)
		if !ok {
			return errors.Wrapf(renderer.ErrInvalidOption, "mark: %s must be a string, got %T", key, raw)
		}
		switch key {
		case "tag":
			if !validTag(s) {
				return errors.Wrapf(renderer.ErrInvalidOption, "mark: invalid tag %q", s)
			}
			tag = s
		case "class":
			class = s
		default:
			return errors.Wrapf(renderer.ErrInvalidOption, "mark: unknown setting %q", key)
		}
	}
	e.Tag, e.Class = tag, class
	return nil
}

// Install implements renderer.Extension.
func (e *Extension) Install(p *renderer.Pipeline) error {
	tag := e.Tag
	if tag == "" {
		tag = "mark"
	}
	p.AddParserOptions(parser.WithInlineParsers(
		util.Prioritized(&inlineParser{}, 500),
	))
	p.AddRendererOptions(gmrenderer.WithNodeRenderers(
		util.Prioritized(&htmlRenderer{tag: tag, class: e.Class}, 500),
	))
	return nil
}

func validTag(s string) bool {
	if s == "" {
		return false
	}
	for i, c := range s {
		switch {
		case c >= 'a' && c <= 'z':
		case c >= '0' && c <= '9' && i > 0:
		default:
			return false
		}
	}
	return true
}

var (
	_ renderer.Extension    = (*Extension)(nil)
	_ renderer.Configurable = (*Extension)(nil)
)
