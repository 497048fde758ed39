package sanitizer

import (
	"strings"
	"sync"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Protocols accepted in href/src by DefaultPolicy. Anything else, javascript:
// and data: included, is removed from the attribute.
var defaultProtocolsFixture = []string{"http", "https", "mailto"}

func TestDefaultPolicy(t *testing.T) {
	p := DefaultPolicy()

	require.NoError(t, p.Validate())
	assert.Equal(t, MarkdownTags, p.Tags)
	assert.Equal(t, []string{"src"}, p.Attributes["img"])
	assert.Equal(t, defaultProtocolsFixture, p.Protocols)
	assert.True(t, p.Strip)
}

func TestDefaultPolicyReturnsCopies(t *testing.T) {
	p := DefaultPolicy()
	p.Tags[0] = "script"
	p.Attributes["img"] = append(p.Attributes["img"], "onerror")

	fresh := DefaultPolicy()
	assert.Equal(t, "a", fresh.Tags[0])
	assert.Equal(t, []string{"src"}, fresh.Attributes["img"])
}

func TestMerge(t *testing.T) {
	strip := false
	merged := DefaultPolicy().Merge(&Overrides{
		Tags:       []string{"H4", "table", "p"},
		Attributes: map[string][]string{"img": {"src", "alt"}, "td": {"colspan"}},
		Protocols:  []string{"https"},
		Strip:      &strip,
	})

	for _, tag := range MarkdownTags {
		assert.Contains(t, merged.Tags, tag)
	}
	assert.Contains(t, merged.Tags, "h4")
	assert.Contains(t, merged.Tags, "table")
	assert.Equal(t, 1, countOf(merged.Tags, "p"))

	assert.Equal(t, []string{"src", "alt"}, merged.Attributes["img"])
	assert.Equal(t, []string{"colspan"}, merged.Attributes["td"])
	assert.Equal(t, []string{"href", "title"}, merged.Attributes["a"], "unnamed tags keep defaults")

	assert.Equal(t, []string{"https"}, merged.Protocols)
	assert.False(t, merged.Strip)
}

func TestMergeNilAndEmpty(t *testing.T) {
	base := DefaultPolicy()
	assert.Equal(t, base, base.Merge(nil))

	merged := base.Merge(&Overrides{})
	assert.Equal(t, base.Protocols, merged.Protocols)
	assert.Equal(t, base.Strip, merged.Strip)
}

func TestValidate(t *testing.T) {
	cases := map[string]Policy{
		"no tags":          {},
		"bad tag":          {Tags: []string{"p", "<b>"}},
		"attrs off-policy": {Tags: []string{"p"}, Attributes: map[string][]string{"a": {"href"}}},
		"bad attr":         {Tags: []string{"a"}, Attributes: map[string][]string{"a": {"on click"}}},
		"bad protocol":     {Tags: []string{"a"}, Protocols: []string{"java script"}},
	}
	for name, p := range cases {
		t.Run(name, func(t *testing.T) {
			err := p.Validate()
			require.Error(t, err)
			assert.True(t, errors.Is(err, ErrInvalidPolicy))
		})
	}

	global := Policy{Tags: []string{"p"}, Attributes: map[string][]string{GlobalAttributes: {"id"}}}
	assert.NoError(t, global.Validate())
}

func TestCleanInvalidPolicy(t *testing.T) {
	s := New(Policy{Tags: []string{"Not A Tag"}})

	_, err := s.Clean("<p>x</p>")
	assert.True(t, errors.Is(err, ErrInvalidPolicy))

	// the error is sticky
	_, err = s.Clean("<p>y</p>")
	assert.True(t, errors.Is(err, ErrInvalidPolicy))
}

func TestCleanStripsDangerousMarkup(t *testing.T) {
	s := New(DefaultPolicy())

	cases := []string{
		`<p>Hello</p><script>alert('xss')</script>`,
		`<p>Hello</p><iframe src="https://evil.test"></iframe>`,
		`<p>Hello <span onclick="x()">there</span></p><style>p{}</style>`,
	}
	for _, input := range cases {
		got, err := s.Clean(input)
		require.NoError(t, err)
		assert.NotContains(t, got, "<script")
		assert.NotContains(t, got, "<iframe")
		assert.NotContains(t, got, "<style")
		assert.NotContains(t, got, "<span")
		assert.Contains(t, got, "Hello")
	}
}

func TestCleanStripKeepsText(t *testing.T) {
	s := New(DefaultPolicy())

	got, err := s.Clean(`<p><span>inner</span> text</p>`)
	require.NoError(t, err)
	assert.Equal(t, "<p>inner text</p>", got)
}

func TestCleanAttributes(t *testing.T) {
	s := New(DefaultPolicy())

	got, err := s.Clean(`<a href="https://example.com" title="t" onclick="evil()" class="c">x</a>`)
	require.NoError(t, err)
	assert.Contains(t, got, `href="https://example.com"`)
	assert.Contains(t, got, `title="t"`)
	assert.NotContains(t, got, "onclick")
	assert.NotContains(t, got, "class")

	got, err = s.Clean(`<p><img src="/logo.png" alt="logo" width="10"></p>`)
	require.NoError(t, err)
	assert.Contains(t, got, `src="/logo.png"`)
	assert.NotContains(t, got, "alt=")
	assert.NotContains(t, got, "width=")
}

func TestCleanURLSchemes(t *testing.T) {
	s := New(DefaultPolicy())

	for _, input := range []string{
		`<p><img src="javascript:alert(1)"></p>`,
		`<p><a href="javascript:alert(1)">x</a></p>`,
		`<p><img src="data:text/html;base64,PHNjcmlwdD4="></p>`,
	} {
		got, err := s.Clean(input)
		require.NoError(t, err)
		assert.NotContains(t, got, "javascript:")
		assert.NotContains(t, got, "data:")
	}

	got, err := s.Clean(`<a href="mailto:me@example.com">mail</a>`)
	require.NoError(t, err)
	assert.Contains(t, got, `href="mailto:me@example.com"`)
}

func TestCleanEscapeMode(t *testing.T) {
	s := New(Policy{Tags: []string{"p"}})

	got, err := s.Clean(`<p>keep</p><div>escaped</div>`)
	require.NoError(t, err)
	assert.Contains(t, got, "<p>keep</p>")
	assert.Contains(t, got, "&lt;div&gt;escaped&lt;/div&gt;")
	assert.NotContains(t, got, "<div>")
}

func TestCleanEscapeModeScript(t *testing.T) {
	s := New(Policy{Tags: []string{"p"}})

	got, err := s.Clean(`<p>a</p><script>alert(1)</script>`)
	require.NoError(t, err)
	assert.NotContains(t, got, "<script")
	assert.Contains(t, got, "&lt;script&gt;")
}

func TestCleanEscapeModeRawTextBody(t *testing.T) {
	s := New(Policy{Tags: []string{"p"}})

	got, err := s.Clean(`<p>a</p><script><div>hidden</div></script><textarea><div>t</div> &amp;</textarea>`)
	require.NoError(t, err)
	assert.Equal(t,
		"<p>a</p>&lt;script&gt;&lt;div&gt;hidden&lt;/div&gt;&lt;/script&gt;"+
			"&lt;textarea&gt;&lt;div&gt;t&lt;/div&gt; &amp;&lt;/textarea&gt;",
		got)
}

func TestCleanConcurrent(t *testing.T) {
	s := New(DefaultPolicy())

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			got, err := s.Clean(`<p>hi</p><script>x</script>`)
			assert.NoError(t, err)
			assert.Equal(t, "<p>hi</p>", got)
		}()
	}
	wg.Wait()
}

func countOf(list []string, v string) int {
	n := 0
	for _, s := range list {
		if strings.EqualFold(s, v) {
			n++
		}
	}
	return n
}
