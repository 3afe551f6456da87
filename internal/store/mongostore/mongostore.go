// Package mongostore implements the storefront repositories on MongoDB.
package mongostore

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/quickcart/apiserver/internal/store"
	"github.com/quickcart/apiserver/types"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const (
	usersCollection    = "users"
	productsCollection = "products"
	ordersCollection   = "orders"
)

// EnsureIndexes creates the indexes the repositories rely on, including the
// unique email index.
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	_, err := db.Collection(usersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "email", Value: 1}},
		Options: options.Index().SetUnique(true).SetName("users_email_unique"),
	})
	if err != nil {
		return err
	}
	_, err = db.Collection(productsCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "category", Value: 1}},
	})
	if err != nil {
		return err
	}
	_, err = db.Collection(ordersCollection).Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "created_at", Value: -1}},
	})
	return err
}

type userDoc struct {
	ID           string    `bson:"_id"`
	Name         string    `bson:"name"`
	Email        string    `bson:"email"`
	Role         string    `bson:"role"`
	PasswordHash string    `bson:"password_hash"`
	CreatedAt    time.Time `bson:"created_at"`
}

type productDoc struct {
	ID          string `bson:"_id"`
	Name        string `bson:"name"`
	Price       string `bson:"price"`
	Description string `bson:"description"`
	Image       string `bson:"image"`
	Category    string `bson:"category"`
}

type orderItemDoc struct {
	ProductID string `bson:"product_id"`
	Name      string `bson:"name"`
	Price     string `bson:"price"`
	Quantity  int    `bson:"quantity"`
}

type orderDoc struct {
	ID          string         `bson:"_id"`
	UserID      string         `bson:"user_id"`
	Items       []orderItemDoc `bson:"items"`
	TotalAmount string         `bson:"total_amount"`
	CreatedAt   time.Time      `bson:"created_at"`
}

// UserRepository handles persistence for users.
type UserRepository struct {
	coll *mongo.Collection
}

func NewUserRepository(db *mongo.Database) *UserRepository {
	return &UserRepository{coll: db.Collection(usersCollection)}
}

func (r *UserRepository) GetByID(ctx context.Context, id string) (types.User, error) {
	return r.findOne(ctx, bson.M{"_id": id})
}

// GetByEmail matches the stored lowercased email.
func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	return r.findOne(ctx, bson.M{"email": normalizeEmail(email)})
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	user.Email = normalizeEmail(user.Email)
	user.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)

	_, err := r.coll.InsertOne(ctx, userDoc{
		ID:           user.ID,
		Name:         user.Name,
		Email:        user.Email,
		Role:         user.Role,
		PasswordHash: user.PasswordHash,
		CreatedAt:    user.CreatedAt,
	})
	if err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return types.User{}, store.ErrDuplicate
		}
		return types.User{}, err
	}
	return user, nil
}

func (r *UserRepository) findOne(ctx context.Context, filter bson.M) (types.User, error) {
	var doc userDoc
	if err := r.coll.FindOne(ctx, filter).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return types.User{}, store.ErrNotFound
		}
		return types.User{}, err
	}
	return types.User{
		ID:           doc.ID,
		Name:         doc.Name,
		Email:        doc.Email,
		Role:         doc.Role,
		PasswordHash: doc.PasswordHash,
		CreatedAt:    doc.CreatedAt,
	}, nil
}

// ProductRepository handles persistence for catalog products.
type ProductRepository struct {
	coll *mongo.Collection
}

func NewProductRepository(db *mongo.Database) *ProductRepository {
	return &ProductRepository{coll: db.Collection(productsCollection)}
}

func (r *ProductRepository) List(ctx context.Context, category string) ([]types.Product, error) {
	filter := bson.M{}
	if category != "" {
		filter["category"] = category
	}
	cursor, err := r.coll.Find(ctx, filter, options.Find().SetSort(bson.D{{Key: "name", Value: 1}, {Key: "_id", Value: 1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	products := make([]types.Product, 0)
	for cursor.Next(ctx) {
		var doc productDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		product, err := doc.toProduct()
		if err != nil {
			return nil, err
		}
		products = append(products, product)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (r *ProductRepository) Get(ctx context.Context, id string) (types.Product, error) {
	var doc productDoc
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return types.Product{}, store.ErrNotFound
		}
		return types.Product{}, err
	}
	return doc.toProduct()
}

func (r *ProductRepository) Create(ctx context.Context, product types.Product) (types.Product, error) {
	if product.ID == "" {
		product.ID = uuid.NewString()
	}
	if _, err := r.coll.InsertOne(ctx, newProductDoc(product)); err != nil {
		return types.Product{}, err
	}
	return product, nil
}

func (r *ProductRepository) Delete(ctx context.Context, id string) (types.Product, error) {
	var doc productDoc
	if err := r.coll.FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&doc); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return types.Product{}, store.ErrNotFound
		}
		return types.Product{}, err
	}
	return doc.toProduct()
}

// OrderRepository handles persistence for orders.
type OrderRepository struct {
	coll *mongo.Collection
}

func NewOrderRepository(db *mongo.Database) *OrderRepository {
	return &OrderRepository{coll: db.Collection(ordersCollection)}
}

func (r *OrderRepository) Create(ctx context.Context, order types.Order) (types.Order, error) {
	if order.ID == "" {
		order.ID = uuid.NewString()
	}
	order.CreatedAt = time.Now().UTC().Truncate(time.Millisecond)
	if _, err := r.coll.InsertOne(ctx, newOrderDoc(order)); err != nil {
		return types.Order{}, err
	}
	return order, nil
}

func (r *OrderRepository) ListByUser(ctx context.Context, userID string) ([]types.Order, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: 1}})
	cursor, err := r.coll.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	orders := make([]types.Order, 0)
	for cursor.Next(ctx) {
		var doc orderDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		order, err := doc.toOrder()
		if err != nil {
			return nil, err
		}
		orders = append(orders, order)
	}
	if err := cursor.Err(); err != nil {
		return nil, err
	}
	return orders, nil
}
