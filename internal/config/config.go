// Package config loads runtime settings for grounding-detect from the
// environment, optionally seeded from a .env file in the working directory.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Defaults used when the corresponding environment variable is unset.
const (
	DefaultRepoRoot       = "/opt/GroundingDINO"
	DefaultSentinelDir    = "repo"
	DefaultServiceURL     = "http://localhost:8765"
	DefaultServiceTimeout = 120 * time.Second
	DefaultLogLevel       = "info"

	DefaultConfigPath     = "groundingdino/config/GroundingDINO_SwinT_OGC.py"
	DefaultCheckpointPath = "weights/groundingdino_swint_ogc.pth"
	DefaultOutputDir      = "outputs"
	DefaultBoxThreshold   = 0.35
	DefaultTextThreshold  = 0.25
)

// Config holds settings that are not part of a single detection request.
type Config struct {
	// RepoRoot is the GroundingDINO checkout that relative config and
	// checkpoint paths resolve against. Also the last image search location.
	RepoRoot string

	// SentinelDir is the working-directory name that makes the resolver
	// also search the parent directory for the image.
	SentinelDir string

	// Inference service (primary backend)
	ServiceURL     string
	ServiceTimeout time.Duration

	// ONNX runtime (fallback backend)
	ONNXLibPath string
	VocabPath   string

	LogLevel string
}

// Load reads .env (if present) and then the process environment.
// A missing .env file is not an error.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds a Config from the current environment only.
func FromEnv() (*Config, error) {
	timeout, err := getEnvAsDuration("GDINO_SERVICE_TIMEOUT", DefaultServiceTimeout)
	if err != nil {
		return nil, err
	}

	return &Config{
		RepoRoot:       getEnv("GDINO_REPO_ROOT", DefaultRepoRoot),
		SentinelDir:    getEnv("GDINO_SENTINEL_DIR", DefaultSentinelDir),
		ServiceURL:     strings.TrimRight(getEnv("GDINO_SERVICE_URL", DefaultServiceURL), "/"),
		ServiceTimeout: timeout,
		ONNXLibPath:    getEnv("ONNXRUNTIME_LIB", ""),
		VocabPath:      getEnv("GDINO_VOCAB", ""),
		LogLevel:       getEnv("GDINO_LOG_LEVEL", DefaultLogLevel),
	}, nil
}

func getEnv(key, def string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return def
}

func getEnvAsDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be positive", key, v)
	}
	return d, nil
}
