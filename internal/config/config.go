// Package config resolves the harness's environment-driven settings, with
// an optional YAML overlay for worker-side settings that are awkward to
// express as environment variables (task queue name and activity timeouts).
// The overlay carries no retry-policy settings.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/agentharness/codex-temporal/internal/agent"
)

// Client is the resolved configuration for the cmd/client binary.
type Client struct {
	TemporalAddress string
	Model           string
	ApprovalPolicy  agent.ApprovalPolicy
	WebSearchMode   agent.WebSearchMode
}

// ResolveClient reads the CLI's environment contract: TEMPORAL_ADDRESS,
// CODEX_MODEL, CODEX_APPROVAL_POLICY, CODEX_WEB_SEARCH.
func ResolveClient() Client {
	return Client{
		TemporalAddress: envOr("TEMPORAL_ADDRESS", "http://localhost:7233"),
		Model:           envOr("CODEX_MODEL", "gpt-4o"),
		ApprovalPolicy:  parseApprovalPolicy(envOr("CODEX_APPROVAL_POLICY", "on-request")),
		WebSearchMode:   parseWebSearchMode(envOr("CODEX_WEB_SEARCH", "disabled")),
	}
}

func parseApprovalPolicy(s string) agent.ApprovalPolicy {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "never":
		return agent.ApprovalNever
	case "untrusted":
		return agent.ApprovalUnlessTrusted
	case "on-failure":
		return agent.ApprovalOnFailure
	default:
		return agent.ApprovalOnRequest
	}
}

func parseWebSearchMode(s string) agent.WebSearchMode {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "live":
		return agent.WebSearchLive
	case "cached":
		return agent.WebSearchCached
	default:
		return agent.WebSearchDisabled
	}
}

// Worker is the resolved configuration for the cmd/worker binary: model
// provider credentials plus the optional durable-backend connection
// strings, layered with a worker.yaml overlay.
type Worker struct {
	TemporalAddress string
	TaskQueue       string

	OpenAIAPIKey      string
	OpenAIBaseURL     string
	OpenAIBearerToken string
	AnthropicAPIKey   string

	AWSRegion          string
	AWSAccessKeyID     string
	AWSSecretAccessKey string
	AWSSessionToken    string
	BedrockModel       string

	RedisAddress string
	MongoURI     string

	ModelTimeout time.Duration
	ToolTimeout  time.Duration
}

// WorkerOverlay is the optional YAML file's shape.
type WorkerOverlay struct {
	TaskQueue           string `yaml:"task_queue"`
	ModelTimeoutSeconds int    `yaml:"model_timeout_seconds"`
	ToolTimeoutSeconds  int    `yaml:"tool_timeout_seconds"`
}

// ResolveWorker reads the worker's environment contract and, if yamlPath is
// non-empty and exists, layers WorkerOverlay on top of the defaults.
func ResolveWorker(yamlPath string) (Worker, error) {
	w := Worker{
		TemporalAddress:   envOr("TEMPORAL_ADDRESS", "http://localhost:7233"),
		TaskQueue:         "codex-temporal",
		OpenAIAPIKey:      os.Getenv("OPENAI_API_KEY"),
		OpenAIBaseURL:     os.Getenv("OPENAI_BASE_URL"),
		OpenAIBearerToken: os.Getenv("OPENAI_BEARER_TOKEN"),
		AnthropicAPIKey:   os.Getenv("ANTHROPIC_API_KEY"),
		AWSRegion:          os.Getenv("AWS_REGION"),
		AWSAccessKeyID:     os.Getenv("AWS_ACCESS_KEY_ID"),
		AWSSecretAccessKey: os.Getenv("AWS_SECRET_ACCESS_KEY"),
		AWSSessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
		BedrockModel:       envOr("BEDROCK_MODEL", "amazon.nova-pro-v1:0"),
		RedisAddress:      os.Getenv("REDIS_ADDRESS"),
		MongoURI:          os.Getenv("MONGO_URI"),
		ModelTimeout:      300 * time.Second,
		ToolTimeout:       600 * time.Second,
	}

	if yamlPath == "" {
		return w, nil
	}
	data, err := os.ReadFile(yamlPath)
	if os.IsNotExist(err) {
		return w, nil
	}
	if err != nil {
		return Worker{}, fmt.Errorf("config: read %s: %w", yamlPath, err)
	}

	var overlay WorkerOverlay
	if err := yaml.Unmarshal(data, &overlay); err != nil {
		return Worker{}, fmt.Errorf("config: parse %s: %w", yamlPath, err)
	}
	if overlay.TaskQueue != "" {
		w.TaskQueue = overlay.TaskQueue
	}
	if overlay.ModelTimeoutSeconds > 0 {
		w.ModelTimeout = time.Duration(overlay.ModelTimeoutSeconds) * time.Second
	}
	if overlay.ToolTimeoutSeconds > 0 {
		w.ToolTimeout = time.Duration(overlay.ToolTimeoutSeconds) * time.Second
	}
	return w, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
