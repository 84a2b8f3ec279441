// Copyright 2025 Certen Protocol
//
// Per-chain configuration overrides loaded from a YAML file, with
// environment variable substitution — the same ${VAR_NAME} /
// ${VAR_NAME:-default} convention the teacher's anchor config loader
// used for its CometBFT/contract settings, generalized here to a
// chain_id -> {rpc_url, max_requests, retry_count} map. The env-only
// Config in config.go covers the single active chain; this file covers
// the multi-chain case (C3 holds one EVMProvider per chain; C7's
// Starknet lookups are a further, separately-keyed override).

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hdp-xyz/preprocessor/pkg/chainid"
)

// Duration wraps time.Duration for YAML unmarshaling as a Go duration
// string ("30s", "2m") rather than a bare integer of ambiguous unit.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return err
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return time.Duration(d).String(), nil
}

func (d Duration) Duration() time.Duration {
	return time.Duration(d)
}

// ChainOverride is one chain's RPC endpoint and concurrency tuning,
// overriding config.Config's single-chain env-var defaults.
type ChainOverride struct {
	RPCURL      string   `yaml:"rpc_url"`
	MaxRequests int      `yaml:"max_requests"`
	RetryCount  int      `yaml:"retry_count"`
	Timeout     Duration `yaml:"timeout"`
}

// ChainsFile is the top-level shape of a multi-chain overrides YAML
// document: one ChainOverride per chainid.ChainId name.
type ChainsFile struct {
	Chains map[chainid.ChainId]ChainOverride `yaml:"chains"`
}

// LoadChainsFile reads path, substitutes ${VAR_NAME} environment
// variables, and parses the result as a ChainsFile.
func LoadChainsFile(path string) (*ChainsFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read chains file %s: %w", path, err)
	}

	expanded := substituteEnvVars(string(data))

	var cfg ChainsFile
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse chains file %s: %w", path, err)
	}
	return &cfg, nil
}

// Override applies a ChainsFile entry onto cfg, for whichever fields the
// override sets. A chain absent from the file leaves cfg unchanged.
func (f *ChainsFile) Override(cfg *Config) {
	if f == nil {
		return
	}
	o, ok := f.Chains[cfg.ChainId]
	if !ok {
		return
	}
	if o.RPCURL != "" {
		cfg.RPCURL = o.RPCURL
	}
	if o.MaxRequests > 0 {
		cfg.MaxRequests = o.MaxRequests
	}
	if o.RetryCount > 0 {
		cfg.RetryCount = o.RetryCount
	}
	if o.Timeout > 0 {
		cfg.RPCTimeout = o.Timeout.Duration()
	}
}

// envVarPattern matches ${VAR_NAME} or ${VAR_NAME:-default}.
var envVarPattern = regexp.MustCompile(`\$\{([^}:]+)(:-([^}]*))?\}`)

// substituteEnvVars replaces ${VAR_NAME} with environment variable
// values, falling back to the :-default form or an empty string.
func substituteEnvVars(content string) string {
	return envVarPattern.ReplaceAllStringFunc(content, func(match string) string {
		groups := envVarPattern.FindStringSubmatch(match)
		if len(groups) < 2 {
			return match
		}

		varName := groups[1]
		defaultValue := ""
		if len(groups) >= 4 {
			defaultValue = groups[3]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}
		return defaultValue
	})
}
