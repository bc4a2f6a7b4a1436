package mongodb

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/retailops/stockaudit/internal/domain/models"
)

// Repository defines the local journal storage: submission outcomes and
// daily monitoring snapshots. The authoritative audit trail lives in the
// remote audit store; this journal only supplements it.
type Repository interface {
	RecordSubmission(ctx context.Context, entry models.JournalEntry) error
	SaveMonitoringSnapshot(ctx context.Context, snapshot models.MonitoringSnapshot) error
}

// MongoDBRepository implements the Repository interface for MongoDB.
type MongoDBRepository struct {
	client        *mongo.Client
	dbName        string
	journalColl   string
	snapshotsColl string
}

// NewMongoDBRepository creates a new MongoDB repository.
func NewMongoDBRepository(ctx context.Context, uri string, dbName string) (*MongoDBRepository, error) {
	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}

	// Ping the database to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping mongodb: %w", err)
	}

	return &MongoDBRepository{
		client:        client,
		dbName:        dbName,
		journalColl:   "submission_journal",
		snapshotsColl: "monitoring_snapshots",
	}, nil
}

// RecordSubmission appends one submission outcome to the journal.
func (r *MongoDBRepository) RecordSubmission(ctx context.Context, entry models.JournalEntry) error {
	collection := r.client.Database(r.dbName).Collection(r.journalColl)
	if _, err := collection.InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("failed to insert journal entry: %w", err)
	}
	return nil
}

// SaveMonitoringSnapshot stores the daily per-branch monitoring summary.
func (r *MongoDBRepository) SaveMonitoringSnapshot(ctx context.Context, snapshot models.MonitoringSnapshot) error {
	collection := r.client.Database(r.dbName).Collection(r.snapshotsColl)
	if _, err := collection.InsertOne(ctx, snapshot); err != nil {
		return fmt.Errorf("failed to insert monitoring snapshot: %w", err)
	}
	return nil
}

// Close closes the MongoDB connection.
func (r *MongoDBRepository) Close(ctx context.Context) error {
	return r.client.Disconnect(ctx)
}
