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

// MongoPaymentRepository implements domain.PaymentRepository
type MongoPaymentRepository struct {
	collection *mongo.Collection
}

func NewMongoPaymentRepository(db *mongo.Database) *MongoPaymentRepository {
	return &MongoPaymentRepository{collection: moneyCollection(db, "payments")}
}

// EnsureIndexes creates the payments indexes. A failure means uniqueness is not enforced.
func (r *MongoPaymentRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "invoice_number", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "gateway_transaction_id", Value: 1}}},
		{Keys: bson.D{{Key: "client_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "due_date", Value: 1}}},
		{Keys: bson.D{{Key: "status", Value: 1}, {Key: "paid_at", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create payments indexes: %w", err)
	}
	return nil
}

func (r *MongoPaymentRepository) Create(ctx context.Context, payment *domain.Payment) error {
	now := time.Now().UTC()
	payment.ID = primitive.NewObjectID().Hex()
	payment.CreatedAt = now
	payment.UpdatedAt = now

	if _, err := r.collection.InsertOne(ctx, payment); err != nil {
		return fmt.Errorf("failed to create payment: %w", err)
	}
	return nil
}

func (r *MongoPaymentRepository) GetByID(ctx context.Context, id string) (*domain.Payment, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoPaymentRepository) GetByGatewayTransactionID(ctx context.Context, transactionID string) (*domain.Payment, error) {
	if transactionID == "" {
		return nil, domain.ErrNotFound
	}
	return r.findOne(ctx, bson.M{"gateway_transaction_id": transactionID})
}

func (r *MongoPaymentRepository) findOne(ctx context.Context, filter bson.M) (*domain.Payment, error) {
	var payment domain.Payment
	if err := r.collection.FindOne(ctx, filter).Decode(&payment); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}
	return &payment, nil
}

// Update replaces the payment document only while its stored status still equals
// expectedStatus, so two writers racing on the same transition cannot both win.
func (r *MongoPaymentRepository) Update(ctx context.Context, payment *domain.Payment, expectedStatus domain.PaymentStatus) error {
	payment.UpdatedAt = time.Now().UTC()

	result, err := r.collection.ReplaceOne(ctx, bson.M{"_id": payment.ID, "status": expectedStatus}, payment)
	if err != nil {
		return fmt.Errorf("failed to update payment: %w", err)
	}
	if result.MatchedCount > 0 {
		return nil
	}

	count, err := r.collection.CountDocuments(ctx, bson.M{"_id": payment.ID})
	if err != nil {
		return fmt.Errorf("failed to check payment: %w", err)
	}
	if count == 0 {
		return domain.ErrNotFound
	}
	return domain.ErrStatusConflict
}

func (r *MongoPaymentRepository) MarkReceiptSent(ctx context.Context, id string) error {
	update := bson.M{
		"$set": bson.M{
			"receipt_sent": true,
			"updated_at":   time.Now().UTC(),
		},
	}

	result, err := r.collection.UpdateOne(ctx, bson.M{"_id": id}, update)
	if err != nil {
		return fmt.Errorf("failed to mark receipt sent: %w", err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// List returns one page of payments, newest first, and the total match count
func (r *MongoPaymentRepository) List(ctx context.Context, filter domain.PaymentFilter, offset, limit int) ([]*domain.Payment, int64, error) {
	query := buildPaymentQuery(filter)

	total, err := r.collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to count payments: %w", err)
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}}).
		SetSkip(int64(offset)).
		SetLimit(int64(limit))

	payments, err := r.find(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}
	return payments, total, nil
}

// Find returns every payment matching filter ordered by invoice number
func (r *MongoPaymentRepository) Find(ctx context.Context, filter domain.PaymentFilter) ([]*domain.Payment, error) {
	opts := options.Find().SetSort(bson.D{{Key: "invoice_number", Value: 1}})
	return r.find(ctx, buildPaymentQuery(filter), opts)
}

func (r *MongoPaymentRepository) find(ctx context.Context, query bson.M, opts *options.FindOptions) ([]*domain.Payment, error) {
	cursor, err := r.collection.Find(ctx, query, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list payments: %w", err)
	}
	defer cursor.Close(ctx)

	payments := []*domain.Payment{}
	if err := cursor.All(ctx, &payments); err != nil {
		return nil, fmt.Errorf("failed to decode payments: %w", err)
	}
	return payments, nil
}

func buildPaymentQuery(filter domain.PaymentFilter) bson.M {
	query := bson.M{}
	if filter.ClientID != "" {
		query["client_id"] = filter.ClientID
	}
	if len(filter.Statuses) == 1 {
		query["status"] = filter.Statuses[0]
	} else if len(filter.Statuses) > 1 {
		query["status"] = bson.M{"$in": filter.Statuses}
	}
	if r := timeRange(filter.PaidFrom, filter.PaidTo); r != nil {
		query["paid_at"] = r
	}
	if r := timeRange(filter.UpdatedFrom, filter.UpdatedTo); r != nil {
		query["updated_at"] = r
	}
	if r := timeRange(filter.CreatedFrom, filter.CreatedTo); r != nil {
		query["created_at"] = r
	}
	if filter.DueBefore != nil {
		query["due_date"] = bson.M{"$lt": *filter.DueBefore}
	}
	return query
}

// timeRange builds a [from, to) condition, or nil when both bounds are unset
func timeRange(from, to *time.Time) bson.M {
	if from == nil && to == nil {
		return nil
	}
	cond := bson.M{}
	if from != nil {
		cond["$gte"] = *from
	}
	if to != nil {
		cond["$lt"] = *to
	}
	return cond
}
