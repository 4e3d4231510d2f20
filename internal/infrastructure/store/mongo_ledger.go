package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/example/ec-checkout/internal/domain/order"
	"github.com/shopspring/decimal"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoLedger stores orders as documents in a MongoDB collection.
type MongoLedger struct {
	collection *mongo.Collection
}

type mongoItem struct {
	ProductRef string               `bson:"product"`
	Name       string               `bson:"name"`
	UnitPrice  primitive.Decimal128 `bson:"price"`
	Quantity   int                  `bson:"quantity"`
}

type mongoOrder struct {
	ID              string                 `bson:"_id"`
	OwnerID         string                 `bson:"user,omitempty"`
	Email           string                 `bson:"email"`
	Items           []mongoItem            `bson:"items"`
	TotalAmount     primitive.Decimal128   `bson:"total_amount"`
	PaymentStatus   string                 `bson:"payment_status"`
	PaymentIntentID string                 `bson:"payment_intent_id"`
	SessionID       string                 `bson:"session_id"`
	ShippingAddress *order.ShippingAddress `bson:"shipping_address,omitempty"`
	CreatedAt       time.Time              `bson:"created_at"`
	UpdatedAt       time.Time              `bson:"updated_at"`
}

func NewMongoLedger(db *mongo.Database) *MongoLedger {
	return &MongoLedger{collection: db.Collection("orders")}
}

// ConnectMongo opens a client and returns the named database.
func ConnectMongo(ctx context.Context, uri, database string) (*mongo.Database, error) {
	clientOpts := options.Client().
		ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(5 * time.Second)

	client, err := mongo.Connect(ctx, clientOpts)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("failed to ping MongoDB: %w", err)
	}
	return client.Database(database), nil
}

// CreateIndexes enforces one order per session and speeds up the pending sweep.
func (l *MongoLedger) CreateIndexes(ctx context.Context) error {
	indexes := []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "session_id", Value: 1}},
			Options: options.Index().SetUnique(true),
		},
		{
			Keys: bson.D{{Key: "payment_status", Value: 1}, {Key: "created_at", Value: 1}},
		},
	}
	if _, err := l.collection.Indexes().CreateMany(ctx, indexes); err != nil {
		return fmt.Errorf("failed to create indexes: %w", err)
	}
	return nil
}

func (l *MongoLedger) Create(ctx context.Context, o *order.Order) (*order.Order, error) {
	doc, err := toMongoOrder(o)
	if err != nil {
		return nil, err
	}
	if _, err := l.collection.InsertOne(ctx, doc); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return nil, order.ErrDuplicateSession
		}
		return nil, fmt.Errorf("failed to insert order: %w", err)
	}
	return o.Clone(), nil
}

func (l *MongoLedger) FindBySessionID(ctx context.Context, sessionID string) (*order.Order, error) {
	var doc mongoOrder
	err := l.collection.FindOne(ctx, bson.M{"session_id": sessionID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, order.ErrOrderNotFound
		}
		return nil, fmt.Errorf("failed to get order: %w", err)
	}
	return fromMongoOrder(&doc)
}

// Transition uses FindOneAndUpdate with the pending status in the filter.
func (l *MongoLedger) Transition(ctx context.Context, sessionID string, t order.Transition) (*order.Order, bool, error) {
	if err := t.Validate(); err != nil {
		return nil, false, err
	}

	set := bson.M{
		"payment_status": string(t.To),
		"updated_at":     t.At,
	}
	if t.PaymentIntentID != "" {
		set["payment_intent_id"] = t.PaymentIntentID
	}
	filter := bson.M{
		"session_id":     sessionID,
		"payment_status": string(order.StatusPending),
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var doc mongoOrder
	err := l.collection.FindOneAndUpdate(ctx, filter, bson.M{"$set": set}, opts).Decode(&doc)
	if err == nil {
		o, err := fromMongoOrder(&doc)
		return o, err == nil, err
	}
	if !errors.Is(err, mongo.ErrNoDocuments) {
		return nil, false, fmt.Errorf("failed to update order: %w", err)
	}

	current, err := l.FindBySessionID(ctx, sessionID)
	if err != nil {
		return nil, false, err
	}
	return current, false, nil
}

func (l *MongoLedger) ListPending(ctx context.Context, createdBefore time.Time) ([]*order.Order, error) {
	filter := bson.M{
		"payment_status": string(order.StatusPending),
		"created_at":     bson.M{"$lt": createdBefore},
	}
	cursor, err := l.collection.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("failed to list pending orders: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []mongoOrder
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode pending orders: %w", err)
	}
	orders := make([]*order.Order, 0, len(docs))
	for i := range docs {
		o, err := fromMongoOrder(&docs[i])
		if err != nil {
			return nil, err
		}
		orders = append(orders, o)
	}
	return orders, nil
}

func toDecimal128(d decimal.Decimal) (primitive.Decimal128, error) {
	v, err := primitive.ParseDecimal128(d.String())
	if err != nil {
		return primitive.Decimal128{}, fmt.Errorf("failed to encode amount %s: %w", d, err)
	}
	return v, nil
}

func fromDecimal128(v primitive.Decimal128) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(v.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to decode amount %s: %w", v, err)
	}
	return d, nil
}

func toMongoOrder(o *order.Order) (*mongoOrder, error) {
	total, err := toDecimal128(o.TotalAmount)
	if err != nil {
		return nil, err
	}
	items := make([]mongoItem, len(o.Items))
	for i, item := range o.Items {
		price, err := toDecimal128(item.UnitPrice)
		if err != nil {
			return nil, err
		}
		items[i] = mongoItem{
			ProductRef: item.ProductRef,
			Name:       item.Name,
			UnitPrice:  price,
			Quantity:   item.Quantity,
		}
	}
	return &mongoOrder{
		ID:              o.ID,
		OwnerID:         o.OwnerID,
		Email:           o.Email,
		Items:           items,
		TotalAmount:     total,
		PaymentStatus:   string(o.PaymentStatus),
		PaymentIntentID: o.PaymentIntentID,
		SessionID:       o.SessionID,
		ShippingAddress: o.ShippingAddress,
		CreatedAt:       o.CreatedAt,
		UpdatedAt:       o.UpdatedAt,
	}, nil
}

func fromMongoOrder(doc *mongoOrder) (*order.Order, error) {
	total, err := fromDecimal128(doc.TotalAmount)
	if err != nil {
		return nil, err
	}
	items := make([]order.Item, len(doc.Items))
	for i, item := range doc.Items {
		price, err := fromDecimal128(item.UnitPrice)
		if err != nil {
			return nil, err
		}
		items[i] = order.Item{
			ProductRef: item.ProductRef,
			Name:       item.Name,
			UnitPrice:  price,
			Quantity:   item.Quantity,
		}
	}
	return &order.Order{
		ID:              doc.ID,
		OwnerID:         doc.OwnerID,
		Email:           doc.Email,
		Items:           items,
		TotalAmount:     total,
		PaymentStatus:   order.Status(doc.PaymentStatus),
		PaymentIntentID: doc.PaymentIntentID,
		SessionID:       doc.SessionID,
		ShippingAddress: doc.ShippingAddress,
		CreatedAt:       doc.CreatedAt,
		UpdatedAt:       doc.UpdatedAt,
	}, nil
}
