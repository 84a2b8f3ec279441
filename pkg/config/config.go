// Copyright 2025 Certen Protocol

package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/hdp-xyz/preprocessor/pkg/chainid"
	"github.com/hdp-xyz/preprocessor/pkg/hdperrors"
)

// Config holds one query's environment-derived configuration (spec.md
// section 6: "Environment variables: CHAIN_ID, RPC_URL, RPC_CHUNK_SIZE,
// DRY_RUN_CAIRO_PATH, SOUND_RUN_CAIRO_PATH, SAVE_FETCH_KEYS_FILE. CLI
// flags override; both missing produces MissingChainConfig").
type Config struct {
	ChainId      chainid.ChainId
	RPCURL       string
	RPCChunkSize int

	DryRunCairoPath   string
	SoundRunCairoPath string
	SaveFetchKeysFile string

	StarknetRPCURL string
	IndexerBaseURL string

	MaxRequests int
	RetryCount  int
	RPCTimeout  time.Duration
}

// Load reads Config from the environment. CLI flag overrides, when
// present, are applied by the caller before Validate runs — this layer
// only knows about environment variables (spec.md section 1 Non-goals:
// "The CLI argument surface ... [is] not specified here").
func Load() (*Config, error) {
	return &Config{
		ChainId:      chainid.ChainId(getEnv("CHAIN_ID", "")),
		RPCURL:       getEnv("RPC_URL", ""),
		RPCChunkSize: getEnvInt("RPC_CHUNK_SIZE", 10),

		DryRunCairoPath:   getEnv("DRY_RUN_CAIRO_PATH", ""),
		SoundRunCairoPath: getEnv("SOUND_RUN_CAIRO_PATH", ""),
		SaveFetchKeysFile: getEnv("SAVE_FETCH_KEYS_FILE", ""),

		StarknetRPCURL: getEnv("STARKNET_RPC_URL", ""),
		IndexerBaseURL: getEnv("INDEXER_BASE_URL", "https://rs-indexer.api.herodotus.cloud"),

		MaxRequests: getEnvInt("MAX_REQUESTS", 40),
		RetryCount:  getEnvInt("RETRY_COUNT", 3),
		RPCTimeout:  getEnvDuration("RPC_TIMEOUT", 30*time.Second),
	}, nil
}

// Validate enforces spec.md section 6: CHAIN_ID and RPC_URL are both
// required; either missing, or a CHAIN_ID outside the four defined
// chains, fails MissingChainConfig.
func (c *Config) Validate() error {
	if c.ChainId == "" || c.RPCURL == "" {
		return hdperrors.New(hdperrors.MissingChainConfig, "CHAIN_ID and RPC_URL must both be set")
	}
	if !c.ChainId.IsValid() {
		return hdperrors.New(hdperrors.MissingChainConfig, fmt.Sprintf("unknown CHAIN_ID %q", c.ChainId))
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
