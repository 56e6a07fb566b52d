// internal/output/mongodb.go
package output

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/valpere/FeedHarvester/internal/harvest"
)

// MongoDBOptions configures a MongoDB writer
type MongoDBOptions struct {
	ConnectionString string
	Database         string
	// Collection defaults to the record kind
	Collection string
	Timeout    time.Duration
}

// MongoDBWriter inserts each record as one document
type MongoDBWriter struct {
	client     *mongo.Client
	database   *mongo.Database
	collection string
	timeout    time.Duration
	now        func() time.Time
}

// NewMongoDBWriter connects to MongoDB
func NewMongoDBWriter(ctx context.Context, opts MongoDBOptions) (*MongoDBWriter, error) {
	if opts.ConnectionString == "" {
		return nil, fmt.Errorf("MongoDB connection string is required")
	}
	if opts.Database == "" {
		return nil, fmt.Errorf("MongoDB database is required")
	}
	if opts.Timeout == 0 {
		opts.Timeout = 10 * time.Second
	}

	connectCtx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	client, err := mongo.Connect(connectCtx, options.Client().ApplyURI(opts.ConnectionString))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(connectCtx, nil); err != nil {
		client.Disconnect(context.Background())
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	return &MongoDBWriter{
		client:     client,
		database:   client.Database(opts.Database),
		collection: opts.Collection,
		timeout:    opts.Timeout,
		now:        time.Now,
	}, nil
}

// Write inserts records with InsertMany
func (w *MongoDBWriter) Write(ctx context.Context, records []harvest.Record) error {
	if w.client == nil {
		return fmt.Errorf("writer is closed")
	}
	table := NewTable(records)
	if len(table.Rows) == 0 {
		return nil
	}

	name := w.collection
	if name == "" {
		name = defaultTableName(table.Kind)
	}

	docs := toDocuments(table, w.now())
	if _, err := w.database.Collection(name).InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("failed to insert into %s: %w", name, err)
	}
	return nil
}

// toDocuments builds ordered documents carrying the record kind and
// harvest time alongside the record columns
func toDocuments(table Table, harvestedAt time.Time) []interface{} {
	docs := make([]interface{}, 0, len(table.Rows))
	for _, row := range table.Rows {
		doc := make(bson.D, 0, len(table.Columns)+2)
		doc = append(doc, bson.E{Key: "kind", Value: string(table.Kind)})
		for i, col := range table.Columns {
			doc = append(doc, bson.E{Key: col, Value: row[i]})
		}
		doc = append(doc, bson.E{Key: "harvested_at", Value: harvestedAt.UTC()})
		docs = append(docs, doc)
	}
	return docs
}

// Close disconnects from MongoDB
func (w *MongoDBWriter) Close() error {
	if w.client == nil {
		return nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), w.timeout)
	defer cancel()
	err := w.client.Disconnect(ctx)
	w.client = nil
	return err
}
