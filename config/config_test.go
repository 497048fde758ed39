package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sample = `
server:
  port: 9000
  livereload: false
filter:
  name: md
  safe_name: safe_md
  sanitize_by_default: true
  sanitize:
    tags: [table, tr, td]
    attributes:
      img: [src, alt]
    strip: false
  engine:
    extensions: [gfm, footnote, highlight]
    extension_configs:
      highlight:
        style: monokai
        line_numbers: true
    output_format: xhtml
logging:
  level: debug
  format: json
`

func TestDecode(t *testing.T) {
	cfg, err := Decode(strings.NewReader(sample))
	require.NoError(t, err)

	assert.Equal(t, "localhost", cfg.Server.Host, "defaults kept")
	assert.Equal(t, 9000, cfg.Server.Port)
	require.NotNil(t, cfg.Server.LiveReload)
	assert.False(t, *cfg.Server.LiveReload)

	assert.Equal(t, "md", cfg.Filter.Name)
	assert.Equal(t, "safe_md", cfg.Filter.SafeName)
	assert.True(t, cfg.Filter.SanitizeByDefault)
	require.NotNil(t, cfg.Filter.Sanitize)
	assert.Equal(t, []string{"table", "tr", "td"}, cfg.Filter.Sanitize.Tags)
	assert.Equal(t, []string{"src", "alt"}, cfg.Filter.Sanitize.Attributes["img"])
	require.NotNil(t, cfg.Filter.Sanitize.Strip)
	assert.False(t, *cfg.Filter.Sanitize.Strip)

	assert.Equal(t, []string{"gfm", "footnote", "highlight"}, cfg.Filter.Engine.Extensions)
	assert.Equal(t, "monokai", cfg.Filter.Engine.ExtensionConfigs["highlight"]["style"])
	assert.Equal(t, true, cfg.Filter.Engine.ExtensionConfigs["highlight"]["line_numbers"])
	assert.Equal(t, "xhtml", cfg.Filter.Engine.OutputFormat)

	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
}

func TestDecodeEmpty(t *testing.T) {
	cfg, err := Decode(strings.NewReader("  \n"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestDecodeRejectsUnknownFields(t *testing.T) {
	_, err := Decode(strings.NewReader("filter:\n  nmae: md\n"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrInvalidConfig))
}

func TestValidate(t *testing.T) {
	cases := map[string]string{
		"port":        "server:\n  port: 70000\n",
		"log format":  "logging:\n  format: xml\n",
		"same filter": "filter:\n  name: md\n  safe_name: md\n",
		"dashed name": "filter:\n  name: my-md\n",
		"dashed safe": "filter:\n  safe_name: safe-markdown\n",
		"digit first": "filter:\n  name: 2md\n",
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Decode(strings.NewReader(doc))
			assert.True(t, errors.Is(err, ErrInvalidConfig), "got %v", err)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mdfilter.yaml")
	require.NoError(t, os.WriteFile(path, []byte(sample), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "md", cfg.Filter.Name)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
