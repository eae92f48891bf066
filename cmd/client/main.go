package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/redis/go-redis/v9"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	mongooptions "go.mongodb.org/mongo-driver/v2/mongo/options"
	"go.temporal.io/sdk/client"
	"goa.design/clue/log"

	"github.com/agentharness/codex-temporal/internal/agent"
	"github.com/agentharness/codex-temporal/internal/config"
	"github.com/agentharness/codex-temporal/internal/engine/temporal"
	"github.com/agentharness/codex-temporal/internal/events"
	"github.com/agentharness/codex-temporal/internal/runstore"
	"github.com/agentharness/codex-temporal/internal/session"
	"github.com/agentharness/codex-temporal/internal/storage"
	"github.com/agentharness/codex-temporal/internal/telemetry"
)

func main() {
	var (
		workflowIDF = flag.String("workflow-id", "", "workflow ID to start the run under (default: a fresh one per invocation)")
		dbgF        = flag.Bool("debug", false, "log request/response bodies")
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

	prompt := flag.Arg(0)
	if prompt == "" {
		log.Error(ctx, nil, log.KV{K: "msg", V: "usage: client <prompt>"})
		os.Exit(1)
	}

	cfg := config.ResolveClient()
	workflowID := *workflowIDF
	if workflowID == "" {
		workflowID = fmt.Sprintf("codex-temporal-%d", os.Getpid())
	}

	c, err := client.Dial(client.Options{HostPort: cfg.TemporalAddress})
	if err != nil {
		log.Error(ctx, err, log.KV{K: "msg", V: "connect to temporal"})
		os.Exit(1)
	}
	defer c.Close()

	eng := temporal.New(c, agent.TaskQueue)
	adapter := session.New(eng, workflowID, agent.WorkflowInput{
		Model:          cfg.Model,
		ApprovalPolicy: cfg.ApprovalPolicy,
		WebSearchMode:  cfg.WebSearchMode,
	}, telemetry.EngineLogger{Ctx: ctx, Log: telemetry.NewClueLogger()})
	adapter.Store = buildEventStore(ctx)
	adapter.RunStore = buildRunStore(ctx)

	turnID, err := adapter.Submit(ctx, session.Op{Kind: session.OpUserTurn, UserTurnMessage: prompt})
	if err != nil {
		log.Error(ctx, err, log.KV{K: "msg", V: "submit user turn"})
		os.Exit(1)
	}
	log.Print(ctx, log.KV{K: "workflow-id", V: workflowID}, log.KV{K: "turn-id", V: turnID})

	for {
		ev, err := adapter.NextEvent(ctx)
		if err != nil {
			log.Error(ctx, err, log.KV{K: "msg", V: "next event"})
			os.Exit(1)
		}
		printEvent(ev)
		if ev.Msg.Type == events.KindTurnComplete || ev.Msg.Type == events.KindShutdownComplete {
			break
		}
	}
}

func printEvent(ev events.Event) {
	switch ev.Msg.Type {
	case events.KindAgentMessage:
		fmt.Println(ev.Msg.Text)
	case events.KindAgentMessageDelta:
		fmt.Print(ev.Msg.Delta)
	case events.KindExecApprovalRequest:
		fmt.Printf("approval requested for %v (call %s)\n", ev.Msg.Command, ev.Msg.CallID)
	case events.KindWarning:
		fmt.Fprintln(os.Stderr, "warning:", ev.Msg.Warning)
	case events.KindTurnComplete:
		if ev.Msg.LastAgentMessage != "" {
			fmt.Println(ev.Msg.LastAgentMessage)
		}
	}
}

// buildEventStore wires the optional durable rollout-item mirror: Redis when
// REDIS_ADDRESS is set, else an in-process buffer scoped to this process.
func buildEventStore(ctx context.Context) storage.Store {
	addr := os.Getenv("REDIS_ADDRESS")
	if addr == "" {
		return storage.NewInMemory()
	}
	rdb := redis.NewClient(&redis.Options{Addr: addr})
	return storage.NewRedis(rdb, 7*24*time.Hour)
}

// buildRunStore wires the optional durable run-tracking backend: Mongo when
// MONGO_URI is set, else an in-process fallback. Connection failures degrade
// to the in-process store rather than blocking the CLI from submitting the
// user's turn.
func buildRunStore(ctx context.Context) runstore.Store {
	uri := os.Getenv("MONGO_URI")
	if uri == "" {
		return runstore.NewInMemory()
	}
	mc, err := mongodriver.Connect(mongooptions.Client().ApplyURI(uri))
	if err != nil {
		log.Error(ctx, err, log.KV{K: "msg", V: "mongo connect failed; falling back to in-memory run store"})
		return runstore.NewInMemory()
	}
	store, err := runstore.NewMongo(ctx, runstore.MongoOptions{Client: mc, Database: "codex_temporal"})
	if err != nil {
		log.Error(ctx, err, log.KV{K: "msg", V: "mongo run store init failed; falling back to in-memory run store"})
		return runstore.NewInMemory()
	}
	return store
}
