package runstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	mongodriver "go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"
)

const (
	defaultCollection = "codex_temporal_runs"
	defaultTimeout    = 5 * time.Second
)

// Mongo is a MongoDB-backed Store recording {run_id, agent_id, status,
// started_at, ended_at} documents for operational dashboards. It is
// observability metadata, not the persistent cross-workflow conversational
// memory this repository explicitly excludes — it never feeds back into a
// model prompt.
type Mongo struct {
	coll    *mongodriver.Collection
	timeout time.Duration
}

// MongoOptions configures the Mongo-backed store.
type MongoOptions struct {
	Client     *mongodriver.Client
	Database   string
	Collection string
	Timeout    time.Duration
}

// NewMongo builds a Mongo-backed store and ensures its unique index on
// run_id exists.
func NewMongo(ctx context.Context, opts MongoOptions) (*Mongo, error) {
	if opts.Client == nil {
		return nil, errors.New("runstore: mongo client is required")
	}
	if opts.Database == "" {
		return nil, errors.New("runstore: database name is required")
	}
	collName := opts.Collection
	if collName == "" {
		collName = defaultCollection
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	coll := opts.Client.Database(opts.Database).Collection(collName)

	idxCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	_, err := coll.Indexes().CreateOne(idxCtx, mongodriver.IndexModel{
		Keys:    bson.D{{Key: "run_id", Value: 1}},
		Options: options.Index().SetUnique(true),
	})
	if err != nil {
		return nil, fmt.Errorf("runstore: create run_id index: %w", err)
	}

	return &Mongo{coll: coll, timeout: timeout}, nil
}

func (m *Mongo) Create(ctx context.Context, rec Record) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	_, err := m.coll.InsertOne(ctx, rec)
	if err != nil {
		return fmt.Errorf("runstore: insert run %s: %w", rec.RunID, err)
	}
	return nil
}

func (m *Mongo) UpdateStatus(ctx context.Context, runID string, status Status, endedAt *time.Time) error {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	_, err := m.coll.UpdateOne(ctx,
		bson.D{{Key: "run_id", Value: runID}},
		bson.D{{Key: "$set", Value: bson.D{
			{Key: "status", Value: status},
			{Key: "ended_at", Value: endedAt},
		}}},
	)
	if err != nil {
		return fmt.Errorf("runstore: update run %s: %w", runID, err)
	}
	return nil
}

func (m *Mongo) Get(ctx context.Context, runID string) (Record, error) {
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()
	var rec Record
	err := m.coll.FindOne(ctx, bson.D{{Key: "run_id", Value: runID}}).Decode(&rec)
	if err != nil {
		return Record{}, fmt.Errorf("runstore: get run %s: %w", runID, err)
	}
	return rec, nil
}
