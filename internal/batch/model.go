// Package batch provides types and functions for loading and validating
// hiltest batch files: an ordered list of command descriptors plus the
// optional description of the chain they run against.
package batch

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hiltest/hiltest/internal/chain"
)

// DefaultTimeout applies to steps that wait but do not name a timeout.
const DefaultTimeout = 30 * time.Second

// Kind identifies what a step does.
type Kind string

// Step kinds.
const (
	KindDirect        Kind = "direct"
	KindRun           Kind = "run"
	KindAssertRun     Kind = "assert_run"
	KindSudoRun       Kind = "sudo_run"
	KindSudoAssertRun Kind = "sudo_assert_run"
	KindWait          Kind = "wait"
	KindWaitRun       Kind = "wait_run"
)

// Kinds lists every step kind in declaration order.
var Kinds = []Kind{
	KindDirect, KindRun, KindAssertRun, KindSudoRun, KindSudoAssertRun, KindWait, KindWaitRun,
}

func (k Kind) valid() bool {
	for _, known := range Kinds {
		if k == known {
			return true
		}
	}
	return false
}

// Sudo reports whether the kind needs privileged execution.
func (k Kind) Sudo() bool {
	return k == KindSudoRun || k == KindSudoAssertRun
}

// Waits reports whether the kind blocks on a pattern and so takes a timeout.
func (k Kind) Waits() bool {
	return k != KindDirect
}

// Batch is a complete batch definition loaded from a YAML file.
type Batch struct {
	Meta   Meta          `yaml:"meta"`
	Target *chain.Config `yaml:"target,omitempty"`
	Steps  []Step        `yaml:"steps"`
}

// Validate checks that the batch is valid.
func (b *Batch) Validate() error {
	if err := b.Meta.Validate(); err != nil {
		return fmt.Errorf("meta: %w", err)
	}
	if b.Target != nil {
		if err := b.Target.Validate(); err != nil {
			return fmt.Errorf("target: %w", err)
		}
	}
	if len(b.Steps) == 0 {
		return errors.New("steps must contain at least one step")
	}
	for i, step := range b.Steps {
		if err := step.Validate(); err != nil {
			return fmt.Errorf("step %d: %w", i, err)
		}
	}
	return nil
}

// Meta contains batch metadata and template variables.
type Meta struct {
	Name        string            `yaml:"name"`
	Description string            `yaml:"description,omitempty"`
	Vars        map[string]string `yaml:"vars,omitempty"`
	// DenyEnvVars lists glob patterns of environment variables that must
	// not override Vars.
	DenyEnvVars []string `yaml:"deny_env_vars,omitempty"`
}

// Validate checks that the meta section is valid.
func (m *Meta) Validate() error {
	if strings.TrimSpace(m.Name) == "" {
		return errors.New("name must be non-empty")
	}
	return nil
}

// Step is one command descriptor.
//
// Cmd is the command line for every kind except wait; Pattern is the text
// waited for by wait and wait_run.
type Step struct {
	Kind    Kind
	Name    string
	Cmd     string
	Pattern string
	Timeout time.Duration
}

// Validate checks that the step is valid.
func (s *Step) Validate() error {
	if !s.Kind.valid() {
		return fmt.Errorf("unknown kind %q", s.Kind)
	}
	switch s.Kind {
	case KindWait:
		if s.Pattern == "" {
			return errors.New("wait pattern must be non-empty")
		}
	case KindWaitRun:
		if strings.TrimSpace(s.Cmd) == "" {
			return errors.New("wait_run cmd must be non-empty")
		}
		if s.Pattern == "" {
			return errors.New("wait_run wait must be non-empty")
		}
	default:
		if strings.TrimSpace(s.Cmd) == "" {
			return fmt.Errorf("%s command must be non-empty", s.Kind)
		}
	}
	if !s.Kind.Waits() && s.Timeout != 0 {
		return errors.New("direct steps take no timeout")
	}
	if s.Kind.Waits() && s.Timeout <= 0 {
		return errors.New("timeout must be positive")
	}
	return nil
}

// Label is a short human description of the step.
func (s Step) Label() string {
	if s.Name != "" {
		return s.Name
	}
	switch s.Kind {
	case KindWait:
		return fmt.Sprintf("wait %q", s.Pattern)
	case KindWaitRun:
		return fmt.Sprintf("%s, wait %q", s.Cmd, s.Pattern)
	default:
		return s.Cmd
	}
}
