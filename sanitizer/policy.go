// Package sanitizer cleans rendered HTML against an allow-list policy.
//
// A Policy names the allowed tags, the allowed attributes per tag and the
// URL protocols permitted in link-like attributes. Disallowed tags are
// either stripped (Strip) or escaped to text. Filtering itself is done by
// bluemonday; escape mode runs a golang.org/x/net/html tokenizer pass first.
package sanitizer

import (
	"regexp"
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
)

// ErrInvalidPolicy is returned when a policy fails validation.
var ErrInvalidPolicy = errors.New("sanitizer: invalid policy")

// GlobalAttributes is the Attributes key that applies to every allowed tag.
const GlobalAttributes = "*"

// MarkdownTags is the minimal tag set every policy allows.
var MarkdownTags = []string{
	"a", "abbr", "acronym", "b", "blockquote", "br", "code", "em",
	"h1", "h2", "h3", "hr", "i", "img", "li", "ol", "p", "pre",
	"strong", "ul",
}

// Policy is the sanitizer configuration.
type Policy struct {
	Tags       []string            `yaml:"tags"`
	Attributes map[string][]string `yaml:"attributes"`
	Protocols  []string            `yaml:"protocols"`
	Strip      bool                `yaml:"strip"`
}

// DefaultPolicy returns the policy used when no overrides are given.
func DefaultPolicy() Policy {
	return Policy{
		Tags: append([]string(nil), MarkdownTags...),
		Attributes: map[string][]string{
			"a":       {"href", "title"},
			"abbr":    {"title"},
			"acronym": {"title"},
			"img":     {"src"},
		},
		Protocols: []string{"http", "https", "mailto"},
		Strip:     true,
	}
}

// Overrides are layered on top of a Policy by Merge.
type Overrides struct {
	// Tags are added to the policy tags. Tags are never removed.
	Tags []string `yaml:"tags"`
	// Attributes replace the attribute list of each tag they name.
	// Tags not named keep their lists.
	Attributes map[string][]string `yaml:"attributes"`
	// Protocols replace the policy protocols when non-empty.
	Protocols []string `yaml:"protocols"`
	// Strip replaces the policy strip flag when non-nil.
	Strip *bool `yaml:"strip"`
}

// Merge returns a copy of p with o applied. A nil o returns a copy of p.
func (p Policy) Merge(o *Overrides) Policy {
	out := p.clone()
	if o == nil {
		return out
	}

	seen := make(map[string]struct{}, len(out.Tags))
	for _, tag := range out.Tags {
		seen[tag] = struct{}{}
	}
	for _, tag := range o.Tags {
		tag = normalize(tag)
		if _, ok := seen[tag]; ok {
			continue
		}
		seen[tag] = struct{}{}
		out.Tags = append(out.Tags, tag)
	}

	for tag, attrs := range o.Attributes {
		out.Attributes[normalize(tag)] = normalizeAll(attrs)
	}

	if len(o.Protocols) > 0 {
		out.Protocols = normalizeAll(o.Protocols)
	}
	if o.Strip != nil {
		out.Strip = *o.Strip
	}
	return out
}

func (p Policy) clone() Policy {
	out := Policy{
		Tags:       append([]string(nil), p.Tags...),
		Attributes: make(map[string][]string, len(p.Attributes)),
		Protocols:  append([]string(nil), p.Protocols...),
		Strip:      p.Strip,
	}
	for tag, attrs := range p.Attributes {
		out.Attributes[tag] = append([]string(nil), attrs...)
	}
	return out
}

var (
	namePattern   = regexp.MustCompile(`^[a-z][a-z0-9-]*$`)
	schemePattern = regexp.MustCompile(`^[a-z][a-z0-9+.-]*$`)
)

// Validate reports structural problems with the policy.
func (p Policy) Validate() error {
	if len(p.Tags) == 0 {
		return errors.Wrap(ErrInvalidPolicy, "no allowed tags")
	}

	tags := make(map[string]struct{}, len(p.Tags))
	for _, tag := range p.Tags {
		if !namePattern.MatchString(tag) {
			return errors.Wrapf(ErrInvalidPolicy, "tag %q", tag)
		}
		tags[tag] = struct{}{}
	}

	keys := make([]string, 0, len(p.Attributes))
	for tag := range p.Attributes {
		keys = append(keys, tag)
	}
	sort.Strings(keys)
	for _, tag := range keys {
		if _, ok := tags[tag]; !ok && tag != GlobalAttributes {
			return errors.Wrapf(ErrInvalidPolicy, "attributes for disallowed tag %q", tag)
		}
		for _, attr := range p.Attributes[tag] {
			if !namePattern.MatchString(attr) {
				return errors.Wrapf(ErrInvalidPolicy, "attribute %q on %q", attr, tag)
			}
		}
	}

	for _, scheme := range p.Protocols {
		if !schemePattern.MatchString(scheme) {
			return errors.Wrapf(ErrInvalidPolicy, "protocol %q", scheme)
		}
	}
	return nil
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

func normalizeAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		out = append(out, normalize(s))
	}
	return out
}
