package database

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDB wraps the MongoDB client and database
type MongoDB struct {
	Client   *mongo.Client
	Database *mongo.Database
}

// Connect establishes a connection to MongoDB
func Connect(ctx context.Context, uri, dbName string) (*MongoDB, error) {
	clientOptions := options.Client().
		ApplyURI(uri).
		SetAppName("loyalty-ledger").
		SetServerSelectionTimeout(5 * time.Second)

	// Set connection timeout
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}

	// Ping to verify connection
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}

	db := client.Database(dbName)

	mongoDB := &MongoDB{
		Client:   client,
		Database: db,
	}

	// Create indexes
	if err := mongoDB.CreateIndexes(ctx); err != nil {
		return nil, fmt.Errorf("failed to create indexes: %w", err)
	}

	return mongoDB, nil
}

// CreateIndexes creates all necessary indexes for the application
func (m *MongoDB) CreateIndexes(ctx context.Context) error {
	// One ledger document per business
	ledgersCollection := m.Database.Collection("ledgers")
	businessIndex := mongo.IndexModel{
		Keys:    bson.D{{Key: "business_id", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("business_id_unique"),
	}
	if _, err := ledgersCollection.Indexes().CreateOne(ctx, businessIndex); err != nil {
		return fmt.Errorf("failed to create business_id index: %w", err)
	}

	// SMS logs are listed per business, newest first
	smsLogsCollection := m.Database.Collection("sms_logs")
	smsLogIndex := mongo.IndexModel{
		Keys: bson.D{
			{Key: "business_id", Value: 1},
			{Key: "created_at", Value: -1},
		},
		Options: options.Index().SetName("business_created_at_index"),
	}
	if _, err := smsLogsCollection.Indexes().CreateOne(ctx, smsLogIndex); err != nil {
		return fmt.Errorf("failed to create sms log index: %w", err)
	}

	// Lookups of the messages sent to a customer
	mobileIndex := mongo.IndexModel{
		Keys: bson.D{
			{Key: "business_id", Value: 1},
			{Key: "mobile", Value: 1},
		},
		Options: options.Index().SetName("business_mobile_index"),
	}
	if _, err := smsLogsCollection.Indexes().CreateOne(ctx, mobileIndex); err != nil {
		return fmt.Errorf("failed to create sms log mobile index: %w", err)
	}

	return nil
}

// Disconnect closes the MongoDB connection
func (m *MongoDB) Disconnect(ctx context.Context) error {
	return m.Client.Disconnect(ctx)
}

