package chain

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"
)

// Load parses a YAML chain configuration with strict field checking.
func Load(r io.Reader) (*Config, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)

	var cfg Config
	if err := dec.Decode(&cfg); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("empty chain config")
		}
		return nil, fmt.Errorf("failed to parse chain config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid chain config: %w", err)
	}
	return &cfg, nil
}

// LoadJSONC parses a JSON chain configuration that may carry comments and
// trailing commas.
func LoadJSONC(data []byte) (*Config, error) {
	// Plain JSON is valid YAML, so the YAML decoder and its strict field
	// checks serve both formats.
	return Load(bytes.NewReader(jsonc.ToJSON(data)))
}

// LoadFile loads a chain configuration, choosing the format from the file
// extension: .json and .jsonc are JSON with comments, anything else YAML.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // config path comes from the command line
	if err != nil {
		return nil, fmt.Errorf("failed to read chain config: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		return LoadJSONC(data)
	default:
		return Load(bytes.NewReader(data))
	}
}
