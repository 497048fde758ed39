package renderer

import (
	"sort"
	"strings"

	chromahtml "github.com/alecthomas/chroma/v2/formatters/html"
	"github.com/cockroachdb/errors"
	"github.com/yuin/goldmark"
	emoji "github.com/yuin/goldmark-emoji"
	highlighting "github.com/yuin/goldmark-highlighting/v2"
	"github.com/yuin/goldmark/extension"
	"github.com/yuin/goldmark/parser"
	"github.com/yuin/goldmark/renderer/html"
)

var (
	// ErrInvalidOption is returned when engine options fail validation.
	ErrInvalidOption = errors.New("renderer: invalid option")
	// ErrUnknownExtension is returned for extension names with no builder.
	ErrUnknownExtension = errors.New("renderer: unknown extension")
	// ErrNotConfigurable is returned when configuration is passed to an
	// extension that does not implement Configurable.
	ErrNotConfigurable = errors.New("renderer: extension does not accept configuration")
)

// Options configures the goldmark engine.
type Options struct {
	// Extensions lists built-in extensions by name, e.g. "gfm" or "footnote".
	Extensions []string `yaml:"extensions"`
	// ExtensionConfigs holds per-extension settings keyed by extension name.
	ExtensionConfigs map[string]map[string]any `yaml:"extension_configs"`
	// OutputFormat is "html" (default) or "xhtml".
	OutputFormat string `yaml:"output_format"`
	// SafeMode omits raw HTML found in the source.
	SafeMode      bool `yaml:"safe_mode"`
	HardWraps     bool `yaml:"hard_wraps"`
	AutoHeadingID bool `yaml:"auto_heading_id"`
}

type extensionBuilder struct {
	keys  []string
	build func(cfg map[string]any) (goldmark.Extender, error)
}

func static(ext goldmark.Extender) extensionBuilder {
	return extensionBuilder{build: func(map[string]any) (goldmark.Extender, error) { return ext, nil }}
}

var extensionRegistry = map[string]extensionBuilder{
	"gfm":           static(extension.GFM),
	"table":         static(extension.Table),
	"tables":        static(extension.Table),
	"strikethrough": static(extension.Strikethrough),
	"linkify":       static(extension.Linkify),
	"autolink":      static(extension.Linkify),
	"tasklist":      static(extension.TaskList),
	"definition":    static(extension.DefinitionList),
	"typographer":   static(extension.Typographer),
	"cjk":           static(extension.CJK),
	"emoji":         static(emoji.Emoji),
	"footnote": {
		keys: []string{"id_prefix"},
		build: func(cfg map[string]any) (goldmark.Extender, error) {
			prefix, err := stringValue(cfg, "id_prefix", "")
			if err != nil {
				return nil, err
			}
			if prefix == "" {
				return extension.Footnote, nil
			}
			return extension.NewFootnote(extension.WithFootnoteIDPrefix([]byte(prefix))), nil
		},
	},
	"highlight": {
		keys: []string{"style", "line_numbers", "classes"},
		build: func(cfg map[string]any) (goldmark.Extender, error) {
			style, err := stringValue(cfg, "style", "github")
			if err != nil {
				return nil, err
			}
			lineNumbers, err := boolValue(cfg, "line_numbers")
			if err != nil {
				return nil, err
			}
			classes, err := boolValue(cfg, "classes")
			if err != nil {
				return nil, err
			}
			return highlighting.NewHighlighting(
				highlighting.WithStyle(style),
				highlighting.WithFormatOptions(
					chromahtml.WithLineNumbers(lineNumbers),
					chromahtml.WithClasses(classes),
				),
			), nil
		},
	},
}

// ExtensionNames returns the names accepted in Options.Extensions.
func ExtensionNames() []string {
	names := make([]string, 0, len(extensionRegistry))
	for name := range extensionRegistry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (o Options) pipeline() (*Pipeline, error) {
	p := &Pipeline{}

	switch strings.ToLower(strings.TrimSpace(o.OutputFormat)) {
	case "", "html", "html5":
	case "xhtml", "xhtml1":
		p.AddRendererOptions(html.WithXHTML())
	default:
		return nil, errors.Wrapf(ErrInvalidOption, "output format %q", o.OutputFormat)
	}

	if !o.SafeMode {
		p.AddRendererOptions(html.WithUnsafe())
	}
	if o.HardWraps {
		p.AddRendererOptions(html.WithHardWraps())
	}
	if o.AutoHeadingID {
		p.AddParserOptions(parser.WithAutoHeadingID())
	}

	exts, err := collectExtensions(o.Extensions, o.ExtensionConfigs)
	if err != nil {
		return nil, err
	}
	p.Use(exts...)
	return p, nil
}

func collectExtensions(names []string, configs map[string]map[string]any) ([]goldmark.Extender, error) {
	listed := make(map[string]struct{}, len(names))
	var extenders []goldmark.Extender

	for _, name := range names {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			continue
		}
		if _, ok := listed[key]; ok {
			continue
		}
		builder, ok := extensionRegistry[key]
		if !ok {
			return nil, errors.Wrapf(ErrUnknownExtension, "%q", name)
		}

		cfg := lookupConfig(configs, key)
		if err := checkKeys(key, cfg, builder.keys); err != nil {
			return nil, err
		}
		ext, err := builder.build(cfg)
		if err != nil {
			return nil, errors.Wrapf(err, "extension %q", key)
		}

		extenders = append(extenders, ext)
		listed[key] = struct{}{}
	}

	for name := range configs {
		if _, ok := listed[strings.ToLower(strings.TrimSpace(name))]; !ok {
			return nil, errors.Wrapf(ErrInvalidOption, "configuration for unlisted extension %q", name)
		}
	}
	return extenders, nil
}

func lookupConfig(configs map[string]map[string]any, key string) map[string]any {
	for name, cfg := range configs {
		if strings.ToLower(strings.TrimSpace(name)) == key {
			return cfg
		}
	}
	return nil
}

func checkKeys(ext string, cfg map[string]any, known []string) error {
	for key := range cfg {
		found := false
		for _, k := range known {
			if k == key {
				found = true
				break
			}
		}
		if !found {
			return errors.Wrapf(ErrInvalidOption, "extension %q has no setting %q", ext, key)
		}
	}
	return nil
}

func stringValue(cfg map[string]any, key, fallback string) (string, error) {
	raw, ok := cfg[key]
	if !ok {
		return fallback, nil
	}
	s, ok := raw.(string)
	if !ok {
		return "", errors.Wrapf(ErrInvalidOption, "%s must be a string, got %T", key, raw)
	}
	return s, nil
}

func boolValue(cfg map[string]any, key string) (bool, error) {
	raw, ok := cfg[key]
	if !ok {
		return false, nil
	}
	b, ok := raw.(bool)
	if !ok {
		return false, errors.Wrapf(ErrInvalidOption, "%s must be a bool, got %T", key, raw)
	}
	return b, nil
}
