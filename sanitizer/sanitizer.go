package sanitizer

import (
	"strings"
	"sync"

	"github.com/microcosm-cc/bluemonday"
	"golang.org/x/net/html"
)

// Sanitizer applies a Policy. The policy is validated and compiled on the
// first call to Clean; a Sanitizer is safe for concurrent use.
type Sanitizer struct {
	policy Policy

	once    sync.Once
	bm      *bluemonday.Policy
	allowed map[string]struct{}
	err     error
}

// New returns a sanitizer for p.
func New(p Policy) *Sanitizer {
	return &Sanitizer{policy: p.clone()}
}

// Policy returns a copy of the policy.
func (s *Sanitizer) Policy() Policy {
	return s.policy.clone()
}

// Clean removes markup the policy does not allow. It returns
// ErrInvalidPolicy if the policy fails validation.
func (s *Sanitizer) Clean(src string) (string, error) {
	s.once.Do(s.compile)
	if s.err != nil {
		return "", s.err
	}
	if !s.policy.Strip {
		src = escapeDisallowed(src, s.allowed)
	}
	return s.bm.Sanitize(src), nil
}

func (s *Sanitizer) compile() {
	if err := s.policy.Validate(); err != nil {
		s.err = err
		return
	}

	bm := bluemonday.NewPolicy()
	bm.AllowElements(s.policy.Tags...)
	for tag, attrs := range s.policy.Attributes {
		if len(attrs) == 0 {
			continue
		}
		if tag == GlobalAttributes {
			bm.AllowAttrs(attrs...).Globally()
			continue
		}
		bm.AllowAttrs(attrs...).OnElements(tag)
	}
	bm.RequireParseableURLs(true)
	bm.AllowRelativeURLs(true)
	bm.AllowURLSchemes(s.policy.Protocols...)

	allowed := make(map[string]struct{}, len(s.policy.Tags))
	for _, tag := range s.policy.Tags {
		allowed[tag] = struct{}{}
	}

	s.bm = bm
	s.allowed = allowed
}

// rawTextElements hold their body as a single text token. rcdataElements
// are the subset whose body may contain character references.
var (
	rawTextElements = map[string]struct{}{
		"iframe": {}, "noembed": {}, "noframes": {}, "noscript": {},
		"plaintext": {}, "script": {}, "style": {}, "textarea": {},
		"title": {}, "xmp": {},
	}
	rcdataElements = map[string]struct{}{"textarea": {}, "title": {}}
)

// escapeDisallowed turns tags outside allowed into text so bluemonday keeps
// them visible instead of dropping them. The body of an escaped raw text
// element is escaped as well.
func escapeDisallowed(src string, allowed map[string]struct{}) string {
	z := html.NewTokenizer(strings.NewReader(src))
	var b strings.Builder
	b.Grow(len(src))

	rawText := ""
	for {
		tt := z.Next()
		switch tt {
		case html.ErrorToken:
			return b.String()
		case html.StartTagToken, html.EndTagToken, html.SelfClosingTagToken:
			raw := string(z.Raw())
			name, _ := z.TagName()
			tag := strings.ToLower(string(name))
			rawText = ""
			if _, ok := allowed[tag]; ok {
				b.WriteString(raw)
				continue
			}
			if _, ok := rawTextElements[tag]; ok && tt == html.StartTagToken {
				rawText = tag
			}
			b.WriteString(html.EscapeString(raw))
		case html.TextToken:
			raw := string(z.Raw())
			switch {
			case rawText == "":
				b.WriteString(raw)
			case isRCDATA(rawText):
				b.WriteString(html.EscapeString(html.UnescapeString(raw)))
			default:
				b.WriteString(html.EscapeString(raw))
			}
		default:
			rawText = ""
			b.Write(z.Raw())
		}
	}
}

func isRCDATA(tag string) bool {
	_, ok := rcdataElements[tag]
	return ok
}
