package main

import (
	"context"
	"flag"
	"time"

	"go.temporal.io/sdk/client"
	"goa.design/clue/log"

	"github.com/agentharness/codex-temporal/internal/activities"
	"github.com/agentharness/codex-temporal/internal/agent"
	"github.com/agentharness/codex-temporal/internal/config"
	"github.com/agentharness/codex-temporal/internal/engine"
	"github.com/agentharness/codex-temporal/internal/engine/temporal"
	"github.com/agentharness/codex-temporal/internal/model"
	"github.com/agentharness/codex-temporal/internal/storage"
	"github.com/agentharness/codex-temporal/internal/telemetry"
	"github.com/agentharness/codex-temporal/internal/tools"
	"github.com/redis/go-redis/v9"
)

func main() {
	var (
		configF = flag.String("config", "", "optional worker.yaml overlay path")
		dbgF    = flag.Bool("debug", false, "log request/response bodies")
	)
	flag.Parse()

	format := log.FormatJSON
	if log.IsTerminal() {
		format = log.FormatTerminal
	}
	ctx := log.Context(context.Background(), log.WithFormat(format))
	if *dbgF {
		ctx = log.Context(ctx, log.WithDebug())
	}

	cfg, err := config.ResolveWorker(*configF)
	if err != nil {
		log.Fatalf(ctx, err, "resolve worker config")
	}

	modelClient, err := buildModelRouter(cfg)
	if err != nil {
		log.Fatalf(ctx, err, "build model client")
	}

	registry, err := tools.NewRegistry()
	if err != nil {
		log.Fatalf(ctx, err, "build tool registry")
	}

	c, err := client.Dial(client.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		log.Fatalf(ctx, err, "connect to temporal")
	}
	defer c.Close()

	eng := temporal.New(c, cfg.TaskQueue)
	eng.RegisterWorkflow(engine.WorkflowDefinition{
		Name:      agent.WorkflowName,
		TaskQueue: cfg.TaskQueue,
		Handler:   agent.Run,
	})

	acts := &activities.Activities{
		Model:      modelClient,
		Dispatcher: registry,
		Store:      buildEventStore(cfg),
		Metrics:    telemetry.NewOTELMetrics("codex-temporal/worker"),
		Tracer:     telemetry.NewOTELTracer("codex-temporal/worker"),
	}
	eng.RegisterActivity(engine.ActivityDefinition{
		Name:    activities.NameModelCall,
		Handler: acts.ModelCall,
		Options: engine.ActivityOptions{Timeout: cfg.ModelTimeout},
	})
	eng.RegisterActivity(engine.ActivityDefinition{
		Name:    activities.NameToolExec,
		Handler: acts.ToolExec,
		Options: engine.ActivityOptions{Timeout: cfg.ToolTimeout, Heartbeat: 30 * time.Second},
	})

	log.Print(ctx, log.KV{K: "task-queue", V: cfg.TaskQueue}, log.KV{K: "msg", V: "worker starting"})
	if err := eng.Run(ctx); err != nil {
		log.Fatalf(ctx, err, "worker exited")
	}
}

func buildModelRouter(cfg config.Worker) (model.Client, error) {
	var router model.Router
	if cfg.OpenAIAPIKey != "" || cfg.OpenAIBearerToken != "" {
		c, err := model.NewOpenAIClient(model.OpenAIOptions{
			APIKey:      cfg.OpenAIAPIKey,
			BaseURL:     cfg.OpenAIBaseURL,
			BearerToken: cfg.OpenAIBearerToken,
		})
		if err != nil {
			return nil, err
		}
		router.OpenAI = c
	}
	if cfg.AnthropicAPIKey != "" {
		c, err := model.NewAnthropicClient(model.AnthropicOptions{APIKey: cfg.AnthropicAPIKey})
		if err != nil {
			return nil, err
		}
		router.Anthropic = c
	}
	if cfg.AWSRegion != "" {
		c, err := model.NewBedrockClient(model.BedrockOptions{
			Region:          cfg.AWSRegion,
			AccessKeyID:     cfg.AWSAccessKeyID,
			SecretAccessKey: cfg.AWSSecretAccessKey,
			SessionToken:    cfg.AWSSessionToken,
			DefaultModel:    cfg.BedrockModel,
		})
		if err != nil {
			return nil, err
		}
		router.Bedrock = c
	}
	return router, nil
}

// buildEventStore wires the optional durable rollout-item backend: Redis
// when REDIS_ADDRESS is set, else an in-process fallback that is lost on
// worker restart.
func buildEventStore(cfg config.Worker) storage.Store {
	if cfg.RedisAddress == "" {
		return storage.NewInMemory()
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddress})
	return storage.NewRedis(rdb, 7*24*time.Hour)
}
