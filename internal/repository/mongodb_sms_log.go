package repository

import (
	"context"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"loyalty-ledger/internal/model"
)

// mongodbSmsLogRepository implements SmsLogRepository using MongoDB
type mongodbSmsLogRepository struct {
	collection *mongo.Collection
}

// NewSmsLogRepository creates a new MongoDB-based SMS log repository
func NewSmsLogRepository(db *mongo.Database) SmsLogRepository {
	return &mongodbSmsLogRepository{
		collection: db.Collection("sms_logs"),
	}
}

// CreateSmsLog inserts a notification attempt
func (r *mongodbSmsLogRepository) CreateSmsLog(ctx context.Context, log *model.SmsLog) error {
	if log.ID.IsZero() {
		log.ID = primitive.NewObjectID()
	}
	_, err := r.collection.InsertOne(ctx, log)
	return err
}

// ListSmsLogs retrieves the latest attempts for a business
func (r *mongodbSmsLogRepository) ListSmsLogs(ctx context.Context, businessID string, limit int) ([]*model.SmsLog, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}

	cursor, err := r.collection.Find(ctx, bson.M{"business_id": businessID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	logs := []*model.SmsLog{}
	if err := cursor.All(ctx, &logs); err != nil {
		return nil, err
	}

	return logs, nil
}
