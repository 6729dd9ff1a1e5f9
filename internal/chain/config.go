// Package chain turns a declarative description of a Tty chain into live
// transports and wrappers.
package chain

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Recorder kinds.
const (
	RecorderNone           = "none"
	RecorderSimple         = "simple"
	RecorderAsciicast      = "asciicast"
	RecorderAsciicastMulti = "asciicast_multi"
)

// Filter kinds.
const (
	FilterDeANSI = "deansi"
	FilterTee    = "tee"
)

// Config describes a chain from the transport up to the executor.
type Config struct {
	Transport Transport `yaml:"transport"`
	// Filters are stacked on the transport in order, the first one
	// innermost.
	Filters []Filter `yaml:"filters,omitempty"`
	// Recorder is one of the Recorder* kinds. Empty means none.
	Recorder    string `yaml:"recorder,omitempty"`
	RecordInput bool   `yaml:"record_input,omitempty"`
	// Title is copied into the transcript header.
	Title        string        `yaml:"title,omitempty"`
	Exec         Exec          `yaml:"exec,omitempty"`
	PollInterval time.Duration `yaml:"poll_interval,omitempty"`
}

// Transport names exactly one leaf device.
type Transport struct {
	Shell  *ShellConfig  `yaml:"shell,omitempty"`
	Serial *SerialConfig `yaml:"serial,omitempty"`
	SSH    *SSHConfig    `yaml:"ssh,omitempty"`
}

// Kind returns the name of the configured transport, or "" when none or
// several are set.
func (t Transport) Kind() string {
	var kinds []string
	if t.Shell != nil {
		kinds = append(kinds, "shell")
	}
	if t.Serial != nil {
		kinds = append(kinds, "serial")
	}
	if t.SSH != nil {
		kinds = append(kinds, "ssh")
	}
	if len(kinds) != 1 {
		return ""
	}
	return kinds[0]
}

// Validate checks that exactly one transport is configured.
func (t Transport) Validate() error {
	n := 0
	for _, set := range []bool{t.Shell != nil, t.Serial != nil, t.SSH != nil} {
		if set {
			n++
		}
	}
	switch {
	case n == 0:
		return errors.New("one of shell, serial or ssh is required")
	case n > 1:
		return errors.New("shell, serial and ssh are mutually exclusive")
	}
	switch {
	case t.Serial != nil && t.Serial.Port == "":
		return errors.New("serial: port must be non-empty")
	case t.SSH != nil && t.SSH.Host == "":
		return errors.New("ssh: host must be non-empty")
	case t.SSH != nil && t.SSH.User == "":
		return errors.New("ssh: user must be non-empty")
	}
	return nil
}

// ShellConfig configures a local shell on a pseudo-terminal.
type ShellConfig struct {
	Path string   `yaml:"path,omitempty"`
	Args []string `yaml:"args,omitempty"`
	// Env is appended to the child environment.
	Env []string `yaml:"env,omitempty"`
	// InheritEnv starts the child environment from the current process
	// environment minus the variables matching EnvDeny.
	InheritEnv bool     `yaml:"inherit_env,omitempty"`
	EnvDeny    []string `yaml:"env_deny,omitempty"`
	Dir        string   `yaml:"dir,omitempty"`
	Width      uint16   `yaml:"width,omitempty"`
	Height     uint16   `yaml:"height,omitempty"`
}

// SerialConfig configures a serial port.
type SerialConfig struct {
	Port string `yaml:"port"`
	Baud int    `yaml:"baud,omitempty"`
	// WriteRate paces writes in bytes per second.
	WriteRate int `yaml:"write_rate,omitempty"`
}

// SSHConfig configures an SSH shell session.
type SSHConfig struct {
	Host          string        `yaml:"host"`
	Port          int           `yaml:"port,omitempty"`
	User          string        `yaml:"user"`
	Password      string        `yaml:"password,omitempty"`
	KeyFile       string        `yaml:"key_file,omitempty"`
	KeyPassphrase string        `yaml:"key_passphrase,omitempty"`
	KnownHosts    string        `yaml:"known_hosts,omitempty"`
	Insecure      bool          `yaml:"insecure,omitempty"`
	Timeout       time.Duration `yaml:"timeout,omitempty"`
}

// Exec configures the executor at the top of the chain.
type Exec struct {
	// Sudo enables the privileged script operations.
	Sudo bool `yaml:"sudo,omitempty"`
}

// Filter is one filter layer. In YAML it is either the bare name
// "deansi" or a mapping {tee: {path: ...}}.
type Filter struct {
	Kind string
	// Path is the log file of a tee filter.
	Path string
}

// UnmarshalYAML accepts the scalar and the mapping forms.
func (f *Filter) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		f.Kind = value.Value
		if f.Kind == FilterTee {
			return fmt.Errorf("line %d: tee needs a path: {tee: {path: ...}}", value.Line)
		}
	case yaml.MappingNode:
		if len(value.Content) != 2 {
			return fmt.Errorf("line %d: filter mapping must have exactly one key", value.Line)
		}
		key, val := value.Content[0], value.Content[1]
		if key.Value != FilterTee {
			return fmt.Errorf("line %d: field %s not found in type filter", key.Line, key.Value)
		}
		var tee struct {
			Path string `yaml:"path"`
		}
		if err := val.Decode(&tee); err != nil {
			return fmt.Errorf("line %d: tee: %w", key.Line, err)
		}
		f.Kind, f.Path = FilterTee, tee.Path
	default:
		return fmt.Errorf("line %d: filter must be a name or a mapping", value.Line)
	}
	return nil
}

// MarshalYAML writes the form UnmarshalYAML reads.
func (f Filter) MarshalYAML() (interface{}, error) {
	if f.Kind == FilterTee {
		return map[string]map[string]string{FilterTee: {"path": f.Path}}, nil
	}
	return f.Kind, nil
}

// Validate checks the filter kind and its arguments.
func (f Filter) Validate() error {
	switch f.Kind {
	case FilterDeANSI:
		return nil
	case FilterTee:
		if strings.TrimSpace(f.Path) == "" {
			return errors.New("tee: path must be non-empty")
		}
		return nil
	default:
		return fmt.Errorf("unknown filter %q", f.Kind)
	}
}

// Validate checks the whole configuration.
func (c *Config) Validate() error {
	if err := c.Transport.Validate(); err != nil {
		return fmt.Errorf("transport: %w", err)
	}
	for i, f := range c.Filters {
		if err := f.Validate(); err != nil {
			return fmt.Errorf("filter %d: %w", i, err)
		}
	}
	switch c.Recorder {
	case "", RecorderNone, RecorderSimple, RecorderAsciicast, RecorderAsciicastMulti:
	default:
		return fmt.Errorf("unknown recorder %q", c.Recorder)
	}
	if c.PollInterval < 0 {
		return errors.New("poll_interval must not be negative")
	}
	return nil
}
