package batch

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Load parses a batch from the given reader with strict field validation.
// Unknown fields in the YAML cause an error. Waiting steps without a
// timeout get DefaultTimeout.
func Load(r io.Reader) (*Batch, error) {
	decoder := yaml.NewDecoder(r)
	decoder.KnownFields(true)

	var b Batch
	if err := decoder.Decode(&b); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty batch file")
		}
		return nil, fmt.Errorf("failed to parse batch: %w", err)
	}

	for i := range b.Steps {
		if b.Steps[i].Kind.Waits() && b.Steps[i].Timeout == 0 {
			b.Steps[i].Timeout = DefaultTimeout
		}
	}

	if err := b.Validate(); err != nil {
		return nil, fmt.Errorf("invalid batch: %w", err)
	}
	return &b, nil
}

// LoadFile loads a batch from the given file path.
func LoadFile(path string) (*Batch, error) {
	f, err := os.Open(path) //nolint:gosec // batch path comes from the command line
	if err != nil {
		return nil, fmt.Errorf("failed to open batch file: %w", err)
	}
	defer func() { _ = f.Close() }()

	return Load(f)
}

// waitRun is the mapping form of a wait_run step.
type waitRun struct {
	Cmd     string   `yaml:"cmd"`
	Wait    string   `yaml:"wait"`
	Timeout duration `yaml:"timeout,omitempty"`
}

// UnmarshalYAML decodes a step from a mapping holding exactly one kind key
// plus the optional name and timeout keys:
//
//	- run: "uname -a"
//	  timeout: 10s
//	- wait_run: {cmd: reboot, wait: "login:", timeout: 120s}
func (s *Step) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: step must be a mapping", value.Line)
	}

	var kinds []string
	var nested time.Duration
	for i := 0; i+1 < len(value.Content); i += 2 {
		key, val := value.Content[i], value.Content[i+1]
		switch key.Value {
		case "name":
			if err := val.Decode(&s.Name); err != nil {
				return fmt.Errorf("line %d: name: %w", key.Line, err)
			}
		case "timeout":
			d, err := parseDuration(val)
			if err != nil {
				return err
			}
			s.Timeout = d
		default:
			kind := Kind(key.Value)
			if !kind.valid() {
				return fmt.Errorf("line %d: field %s not found in type step", key.Line, key.Value)
			}
			kinds = append(kinds, key.Value)
			s.Kind = kind
			if kind == KindWaitRun {
				var wr waitRun
				if err := strictDecode(val, &wr); err != nil {
					return fmt.Errorf("line %d: wait_run: %w", key.Line, err)
				}
				s.Cmd, s.Pattern, nested = wr.Cmd, wr.Wait, time.Duration(wr.Timeout)
				continue
			}
			var text string
			if err := val.Decode(&text); err != nil {
				return fmt.Errorf("line %d: %s: %w", key.Line, key.Value, err)
			}
			if kind == KindWait {
				s.Pattern = text
			} else {
				s.Cmd = text
			}
		}
	}

	switch len(kinds) {
	case 0:
		return fmt.Errorf("line %d: step needs one of %s", value.Line, kindList())
	case 1:
	default:
		return fmt.Errorf("line %d: step has several kinds: %s", value.Line, strings.Join(kinds, ", "))
	}

	if nested != 0 {
		if s.Timeout != 0 {
			return fmt.Errorf("line %d: wait_run timeout given twice", value.Line)
		}
		s.Timeout = nested
	}
	return nil
}

// strictDecode re-encodes node and decodes it with KnownFields(true), so
// unknown keys below the top level are rejected as well.
func strictDecode(node *yaml.Node, out any) error {
	data, err := yaml.Marshal(node)
	if err != nil {
		return fmt.Errorf("failed to encode node: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	return dec.Decode(out)
}

// duration accepts Go duration strings ("1m30s") or a plain number of
// seconds.
type duration time.Duration

func (d *duration) UnmarshalYAML(value *yaml.Node) error {
	v, err := parseDuration(value)
	if err != nil {
		return err
	}
	*d = duration(v)
	return nil
}

func parseDuration(node *yaml.Node) (time.Duration, error) {
	if node.Kind != yaml.ScalarNode {
		return 0, fmt.Errorf("line %d: timeout must be a scalar", node.Line)
	}
	if secs, err := strconv.ParseFloat(node.Value, 64); err == nil {
		return time.Duration(secs * float64(time.Second)), nil
	}
	d, err := time.ParseDuration(node.Value)
	if err != nil {
		return 0, fmt.Errorf("line %d: invalid timeout %q", node.Line, node.Value)
	}
	return d, nil
}

func kindList() string {
	names := make([]string, len(Kinds))
	for i, k := range Kinds {
		names[i] = string(k)
	}
	return strings.Join(names, ", ")
}
