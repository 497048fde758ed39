// Package config loads the optional YAML configuration file.
package config

import (
	"bytes"
	"io"
	"os"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"mdfilter/filter"
	"mdfilter/renderer"
)

// ErrInvalidConfig is returned for files that do not decode or validate.
var ErrInvalidConfig = errors.New("config: invalid configuration")

// Server holds the server settings that may be set from the file.
type Server struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Dir        string `yaml:"dir"`
	File       string `yaml:"file"`
	LiveReload *bool  `yaml:"livereload"`
}

// Logging configures the logrus logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Config is the file layout.
//
//	server:
//	  port: 8080
//	filter:
//	  name: markdown
//	  safe_name: safe_markdown
//	  sanitize_by_default: true
//	  sanitize:
//	    tags: [table, thead, tbody, tr, th, td]
//	  engine:
//	    extensions: [gfm, footnote]
type Config struct {
	Server  Server        `yaml:"server"`
	Filter  filter.Config `yaml:"filter"`
	Logging Logging       `yaml:"logging"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	return Config{
		Server: Server{Host: "localhost", Dir: "."},
		Filter: filter.Config{
			Name:   filter.DefaultName,
			Engine: renderer.Options{Extensions: []string{"gfm"}},
		},
		Logging: Logging{Level: "info", Format: "text"},
	}
}

// Load reads path and layers it on top of Default.
func Load(path string) (Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return Config{}, errors.Wrapf(err, "open %s", path)
	}
	defer f.Close()

	cfg, err := Decode(f)
	if err != nil {
		return Config{}, errors.Wrapf(err, "load %s", path)
	}
	return cfg, nil
}

// Decode reads YAML from r and layers it on top of Default. Unknown fields
// are rejected.
func Decode(r io.Reader) (Config, error) {
	cfg := Default()

	data, err := io.ReadAll(r)
	if err != nil {
		return Config{}, err
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return cfg, nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, errors.Mark(errors.Wrap(err, "decode yaml"), ErrInvalidConfig)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks values that would otherwise fail later at start-up.
func (c Config) Validate() error {
	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return errors.Wrapf(ErrInvalidConfig, "port %d out of range", c.Server.Port)
	}
	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return errors.Wrapf(ErrInvalidConfig, "log format %q", c.Logging.Format)
	}
	for _, name := range []string{c.Filter.Name, c.Filter.SafeName} {
		if name != "" && !filter.ValidName(name) {
			return errors.Wrapf(ErrInvalidConfig, "filter name %q is not an identifier", name)
		}
	}
	if c.Filter.Name != "" && c.Filter.Name == c.Filter.SafeName {
		return errors.Wrapf(ErrInvalidConfig, "filter name and safe name are both %q", c.Filter.Name)
	}
	return nil
}
