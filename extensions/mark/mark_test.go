package mark

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mdfilter/renderer"
)

func convert(t *testing.T, ext *Extension, input string) string {
	t.Helper()
	engine, err := renderer.New(renderer.Options{})
	require.NoError(t, err)
	require.NoError(t, engine.Register(ext, nil))
	html, err := engine.ConvertString(input)
	require.NoError(t, err)
	return html
}

func TestMark(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"==hi==", "<p><mark>hi</mark></p>\n"},
		{"a ==b c== d", "<p>a <mark>b c</mark> d</p>\n"},
		{"==**bold**==", "<p><mark><strong>bold</strong></mark></p>\n"},
		{"=single=", "<p>=single=</p>\n"},
		{"===triple===", "<p>===triple===</p>\n"},
		{"==open", "<p>==open</p>\n"},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			assert.Equal(t, tc.want, convert(t, New(), tc.in))
		})
	}
}

func TestMarkTagAndClass(t *testing.T) {
	html := convert(t, &Extension{Tag: "span", Class: `a"b`}, "==x==")
	assert.Equal(t, "<p><span class=\"a&quot;b\">x</span></p>\n", html)
}

func TestConfigure(t *testing.T) {
	ext := New()
	require.NoError(t, ext.Configure(map[string]any{"tag": "ins", "class": "hl"}))
	assert.Equal(t, "ins", ext.Tag)
	assert.Equal(t, "hl", ext.Class)

	for _, cfg := range []map[string]any{
		{"tag": "Bad Tag"},
		{"tag": 1},
		{"colour": "red"},
	} {
		err := New().Configure(cfg)
		assert.True(t, errors.Is(err, renderer.ErrInvalidOption), "cfg %v: %v", cfg, err)
	}
}

func TestConfigureIsAllOrNothing(t *testing.T) {
	ext := &Extension{Tag: "mark", Class: "old"}
	err := ext.Configure(map[string]any{"class": "new", "tag": "Bad Tag"})
	require.Error(t, err)
	assert.Equal(t, "mark", ext.Tag)
	assert.Equal(t, "old", ext.Class)
}

func TestRegisterTypedNil(t *testing.T) {
	engine, err := renderer.New(renderer.Options{})
	require.NoError(t, err)

	var ext *Extension
	require.NotPanics(t, func() {
		err = engine.Register(ext, nil)
	})
	assert.True(t, errors.Is(err, renderer.ErrInvalidOption), "got %v", err)
	assert.Empty(t, engine.Extensions())
}
