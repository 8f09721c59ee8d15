package repository

import (
	"context"
	"fmt"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoSequenceRepository implements domain.SequenceRepository on a counters collection.
// Each counter document is keyed "<name>:<year>" so numbering restarts every year.
type MongoSequenceRepository struct {
	collection *mongo.Collection
}

func NewMongoSequenceRepository(db *mongo.Database) *MongoSequenceRepository {
	return &MongoSequenceRepository{
		collection: db.Collection("counters"),
	}
}

// Next atomically increments and returns the counter
func (r *MongoSequenceRepository) Next(ctx context.Context, name string, year int) (int64, error) {
	key := fmt.Sprintf("%s:%d", name, year)

	opts := options.FindOneAndUpdate().
		SetUpsert(true).
		SetReturnDocument(options.After)

	var counter struct {
		Seq int64 `bson:"seq"`
	}
	err := r.collection.FindOneAndUpdate(ctx, bson.M{"_id": key}, bson.M{"$inc": bson.M{"seq": int64(1)}}, opts).Decode(&counter)
	if err != nil {
		return 0, fmt.Errorf("failed to advance sequence %s: %w", key, err)
	}
	return counter.Seq, nil
}
