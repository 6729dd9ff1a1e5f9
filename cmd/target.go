package cmd

import (
	"fmt"
	"os"

	"github.com/hiltest/hiltest/internal/chain"
	"github.com/hiltest/hiltest/internal/transport"
)

// ChainEnvVar names a chain config used when --chain is not given.
const ChainEnvVar = "HILTEST_CHAIN"

// resolveChain picks the chain config for a command. The order is the
// --chain flag, HILTEST_CHAIN, the batch's own target and finally a local
// shell with ANSI filtering. A non-empty shell path replaces the transport
// of whatever was chosen with a local shell.
func resolveChain(target *chain.Config, chainPath, shellPath string) (*chain.Config, error) {
	if chainPath == "" {
		chainPath = os.Getenv(ChainEnvVar)
	}

	var cfg *chain.Config
	switch {
	case chainPath != "":
		loaded, err := chain.LoadFile(chainPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load chain config: %w", err)
		}
		cfg = loaded
	case target != nil:
		copied := *target
		cfg = &copied
	default:
		cfg = &chain.Config{
			Transport: chain.Transport{Shell: &chain.ShellConfig{Path: transport.DefaultShell}},
			Filters:   []chain.Filter{{Kind: chain.FilterDeANSI}},
		}
	}

	if shellPath != "" {
		cfg.Transport = chain.Transport{Shell: &chain.ShellConfig{Path: shellPath}}
	}
	if cfg.Recorder == "" {
		cfg.Recorder = chain.RecorderNone
	}
	return cfg, cfg.Validate()
}

// ensureRecorder makes sure a chain that must record has a transcript
// recorder.
func ensureRecorder(cfg *chain.Config) {
	if cfg.Recorder == chain.RecorderNone {
		cfg.Recorder = chain.RecorderAsciicast
	}
}
