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

// MongoInvoiceRepository implements domain.InvoiceRepository
type MongoInvoiceRepository struct {
	collection *mongo.Collection
}

// NewMongoInvoiceRepository creates a new invoice repository
func NewMongoInvoiceRepository(db *mongo.Database) *MongoInvoiceRepository {
	return &MongoInvoiceRepository{collection: moneyCollection(db, "invoices")}
}

// EnsureIndexes creates the invoices indexes. A failure means uniqueness is not enforced.
func (r *MongoInvoiceRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "invoice_number", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "payment_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{Keys: bson.D{{Key: "client_id", Value: 1}}},
	})
	if err != nil {
		return fmt.Errorf("failed to create invoices indexes: %w", err)
	}
	return nil
}

// Create recalculates totals and inserts the invoice
func (r *MongoInvoiceRepository) Create(ctx context.Context, invoice *domain.Invoice) error {
	now := time.Now().UTC()
	invoice.ID = primitive.NewObjectID().Hex()
	invoice.CreatedAt = now
	invoice.UpdatedAt = now
	invoice.Recalculate()

	if _, err := r.collection.InsertOne(ctx, invoice); err != nil {
		return fmt.Errorf("failed to create invoice: %w", err)
	}
	return nil
}

func (r *MongoInvoiceRepository) GetByID(ctx context.Context, id string) (*domain.Invoice, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

func (r *MongoInvoiceRepository) GetByPaymentID(ctx context.Context, paymentID string) (*domain.Invoice, error) {
	return r.findOne(ctx, bson.M{"payment_id": paymentID})
}

func (r *MongoInvoiceRepository) findOne(ctx context.Context, filter bson.M) (*domain.Invoice, error) {
	var invoice domain.Invoice
	if err := r.collection.FindOne(ctx, filter).Decode(&invoice); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get invoice: %w", err)
	}
	return &invoice, nil
}

// Update recalculates totals and replaces the invoice
func (r *MongoInvoiceRepository) Update(ctx context.Context, invoice *domain.Invoice) error {
	invoice.UpdatedAt = time.Now().UTC()
	invoice.Recalculate()

	result, err := r.collection.ReplaceOne(ctx, bson.M{"_id": invoice.ID}, invoice)
	if err != nil {
		return fmt.Errorf("failed to update invoice: %w", err)
	}
	if result.MatchedCount == 0 {
		return domain.ErrNotFound
	}
	return nil
}
