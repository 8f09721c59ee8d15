package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/mansoorceksport/freightdesk/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoClientRepository implements domain.ClientRepository
type MongoClientRepository struct {
	collection *mongo.Collection
}

func NewMongoClientRepository(db *mongo.Database) *MongoClientRepository {
	return &MongoClientRepository{collection: db.Collection("clients")}
}

// EnsureIndexes creates the clients indexes. A failure means uniqueness is not enforced.
func (r *MongoClientRepository) EnsureIndexes(ctx context.Context) error {
	// firebase_uid is sparse (allows empty values, only indexes non-empty)
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "firebase_uid", Value: 1}},
			Options: options.Index().SetUnique(true).SetSparse(true),
		},
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create clients indexes: %w", err)
	}
	return nil
}

func (r *MongoClientRepository) Create(ctx context.Context, client *domain.Client) error {
	now := time.Now().UTC()
	client.ID = primitive.NewObjectID().Hex()
	client.CreatedAt = now
	client.UpdatedAt = now
	if client.Role == "" {
		client.Role = domain.RoleClient
	}

	if _, err := r.collection.InsertOne(ctx, client); err != nil {
		return fmt.Errorf("failed to create client: %w", err)
	}
	return nil
}

func (r *MongoClientRepository) GetByID(ctx context.Context, id string) (*domain.Client, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoClientRepository) GetByEmail(ctx context.Context, email string) (*domain.Client, error) {
	return r.findOne(ctx, bson.M{"email": email})
}

func (r *MongoClientRepository) GetByFirebaseUID(ctx context.Context, uid string) (*domain.Client, error) {
	return r.findOne(ctx, bson.M{"firebase_uid": uid})
}

// GetByIDs loads several clients at once, keyed by id. Missing ids are skipped.
func (r *MongoClientRepository) GetByIDs(ctx context.Context, ids []string) (map[string]*domain.Client, error) {
	result := make(map[string]*domain.Client, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	cursor, err := r.collection.Find(ctx, bson.M{"_id": bson.M{"$in": ids}})
	if err != nil {
		return nil, fmt.Errorf("failed to list clients: %w", err)
	}
	defer cursor.Close(ctx)

	for cursor.Next(ctx) {
		var client domain.Client
		if err := cursor.Decode(&client); err != nil {
			return nil, fmt.Errorf("failed to decode client: %w", err)
		}
		result[client.ID] = &client
	}
	if err := cursor.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate clients: %w", err)
	}
	return result, nil
}

// Update replaces the stored client
func (r *MongoClientRepository) Update(ctx context.Context, client *domain.Client) error {
	client.UpdatedAt = time.Now().UTC()
	result, err := r.collection.ReplaceOne(ctx, bson.M{"_id": client.ID}, client)
	if err != nil {
		return fmt.Errorf("failed to update client: %w", err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *MongoClientRepository) findOne(ctx context.Context, filter bson.M) (*domain.Client, error) {
	var client domain.Client
	if err := r.collection.FindOne(ctx, filter).Decode(&client); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get client: %w", err)
	}
	return &client, nil
}
