// Package config handles the TOML configuration of machines and tools.
package config

import (
	"io"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/sirupsen/logrus"

	"github.com/prologkit/warren/errors"
	"github.com/prologkit/warren/trace"
	"github.com/prologkit/warren/wam"
)

// Config represents a configuration file.
type Config struct {
	Machine Machine `toml:"machine"`
	Log     Log     `toml:"log"`
	Trace   Trace   `toml:"trace"`
	Consult Consult `toml:"consult"`

	// Dir is the directory containing the config file, used to resolve
	// relative paths. Set at load time.
	Dir string `toml:"-"`
}

// Machine configures the limits of each query. Zero means unlimited.
type Machine struct {
	IterLimit   int  `toml:"iter_limit"`
	HeapLimit   int  `toml:"heap_limit"`
	ChoiceLimit int  `toml:"choice_limit"`
	OccursCheck bool `toml:"occurs_check"`
}

// Log configures logging.
type Log struct {
	Level string `toml:"level"`
}

// Trace configures the recording of machine steps. An empty file disables it.
type Trace struct {
	File   string `toml:"file"`
	Format string `toml:"format"`
	Buffer int    `toml:"buffer"`
}

// Consult lists files loaded at startup.
type Consult struct {
	Files []string `toml:"files"`
	Facts []string `toml:"facts"`
}

// Default returns the configuration used when there's no file.
func Default() *Config {
	return &Config{
		Log:   Log{Level: "info"},
		Trace: Trace{Format: "jsonl", Buffer: 4096},
		Dir:   ".",
	}
}

// Load parses a config file, over the default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.New("cannot read %s: %v", path, err)
	}
	c := Default()
	md, err := toml.Decode(string(data), c)
	if err != nil {
		return nil, errors.New("parse error in %s: %v", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return nil, errors.New("unknown key %q in %s", undecoded[0].String(), path)
	}
	if c.Dir, err = filepath.Abs(filepath.Dir(path)); err != nil {
		return nil, errors.New("cannot resolve path %s: %v", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, errors.New("%s: %v", path, err)
	}
	return c, nil
}

// Validate checks that values are within their domains.
func (c *Config) Validate() error {
	m := c.Machine
	if m.IterLimit < 0 || m.HeapLimit < 0 || m.ChoiceLimit < 0 {
		return errors.New("machine limits must not be negative")
	}
	if _, err := c.LogLevel(); err != nil {
		return err
	}
	switch c.Trace.Format {
	case "jsonl", "cbor":
	default:
		return errors.New("invalid trace format %q, want \"jsonl\" or \"cbor\"", c.Trace.Format)
	}
	if c.Trace.Buffer < 0 {
		return errors.New("trace buffer must not be negative")
	}
	return nil
}

// LogLevel returns the parsed log level.
func (c *Config) LogLevel() (logrus.Level, error) {
	return logrus.ParseLevel(c.Log.Level)
}

// Apply sets the machine limits.
func (c *Config) Apply(m *wam.Machine) {
	m.IterLimit = c.Machine.IterLimit
	m.HeapLimit = c.Machine.HeapLimit
	m.ChoiceLimit = c.Machine.ChoiceLimit
	m.OccursCheck = c.Machine.OccursCheck
}

// Path resolves a path relative to the config directory.
func (c *Config) Path(path string) string {
	if filepath.IsAbs(path) || c.Dir == "" {
		return path
	}
	return filepath.Join(c.Dir, path)
}

// ConsultFiles returns the resolved paths of program files.
func (c *Config) ConsultFiles() []string {
	return c.paths(c.Consult.Files)
}

// FactFiles returns the resolved paths of YAML fact files.
func (c *Config) FactFiles() []string {
	return c.paths(c.Consult.Facts)
}

func (c *Config) paths(paths []string) []string {
	resolved := make([]string, len(paths))
	for i, path := range paths {
		resolved[i] = c.Path(path)
	}
	return resolved
}

// OpenTrace creates the trace file and returns an observer writing to it.
// If tracing is disabled, the observer is nil. Closing the returned closer
// flushes pending snapshots and closes the file.
func (c *Config) OpenTrace() (wam.Observer, io.Closer, error) {
	if c.Trace.File == "" {
		return nil, nopCloser{}, nil
	}
	f, err := os.Create(c.Path(c.Trace.File))
	if err != nil {
		return nil, nil, errors.New("cannot create trace file: %v", err)
	}
	var w *trace.Writer
	if c.Trace.Format == "cbor" {
		w = trace.NewCBOR(f)
	} else {
		w = trace.NewJSONL(f)
	}
	if c.Trace.Buffer == 0 {
		return w, &traceCloser{w: w, f: f}, nil
	}
	async := trace.Async(w, c.Trace.Buffer)
	return async, &traceCloser{async: async, w: w, f: f}, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

type traceCloser struct {
	async *trace.AsyncObserver
	w     *trace.Writer
	f     *os.File
}

func (c *traceCloser) Close() error {
	if c.async != nil {
		if err := c.async.Close(); err != nil {
			c.f.Close()
			return err
		}
	}
	if err := c.w.Err(); err != nil {
		c.f.Close()
		return err
	}
	return c.f.Close()
}
