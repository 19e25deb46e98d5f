package repository

import (
	"context"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"

	"loyalty-ledger/internal/model"
	apperrors "loyalty-ledger/pkg/errors"
)

// mongodbLedgerRepository implements LedgerRepository using one document per business
type mongodbLedgerRepository struct {
	collection *mongo.Collection
}

// NewLedgerRepository creates a new MongoDB-based ledger repository
func NewLedgerRepository(db *mongo.Database) LedgerRepository {
	return &mongodbLedgerRepository{
		collection: db.Collection("ledgers"),
	}
}

// CreateLedger inserts a new business ledger
func (r *mongodbLedgerRepository) CreateLedger(ctx context.Context, ledger *model.Ledger) error {
	if ledger.Customers == nil {
		ledger.Customers = []model.Customer{}
	}
	_, err := r.collection.InsertOne(ctx, ledger)
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return apperrors.ErrBusinessAlreadyExists
		}
		return err
	}

	return nil
}

// GetLedger retrieves a ledger by business id
func (r *mongodbLedgerRepository) GetLedger(ctx context.Context, businessID string) (*model.Ledger, error) {
	var ledger model.Ledger
	err := r.collection.FindOne(ctx, bson.M{"business_id": businessID}).Decode(&ledger)
	if err != nil {
		if err == mongo.ErrNoDocuments {
			return nil, apperrors.ErrBusinessNotFound
		}
		return nil, err
	}

	return &ledger, nil
}

// SaveCustomers writes the collection only if nobody else has written since
// the caller read expectedVersion
func (r *mongodbLedgerRepository) SaveCustomers(ctx context.Context, businessID string, customers []model.Customer, expectedVersion int64) error {
	res, err := r.collection.UpdateOne(
		ctx,
		bson.M{
			"business_id": businessID,
			"version":     expectedVersion, // Optimistic concurrency guard
		},
		bson.M{
			"$set": bson.M{"customers": customers, "updated_at": time.Now()},
			"$inc": bson.M{"version": 1},
		},
	)
	if err != nil {
		return err
	}

	if res.MatchedCount == 0 {
		// Distinguish a stale version from a missing business
		n, err := r.collection.CountDocuments(ctx, bson.M{"business_id": businessID})
		if err != nil {
			return err
		}
		if n == 0 {
			return apperrors.ErrBusinessNotFound
		}
		return apperrors.ErrVersionConflict
	}

	return nil
}

// UpdateSettings replaces the settings sub-document
func (r *mongodbLedgerRepository) UpdateSettings(ctx context.Context, businessID string, settings model.Settings) error {
	res, err := r.collection.UpdateOne(
		ctx,
		bson.M{"business_id": businessID},
		bson.M{
			"$set": bson.M{"settings": settings, "updated_at": time.Now()},
			"$inc": bson.M{"version": 1},
		},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return apperrors.ErrBusinessNotFound
	}

	return nil
}
