package store

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/quickcart/apiserver/types"
)

// ProductRepository handles persistence for catalog products.
type ProductRepository struct {
	db *sql.DB
}

func NewProductRepository(db *sql.DB) *ProductRepository {
	return &ProductRepository{db: db}
}

// List returns all products, optionally restricted to one category.
func (r *ProductRepository) List(ctx context.Context, category string) ([]types.Product, error) {
	query := `
		SELECT id, name, price, description, image, category
		FROM products`
	var args []any
	if category != "" {
		query += `
		WHERE category = $1`
		args = append(args, category)
	}
	query += `
		ORDER BY name, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	products := make([]types.Product, 0)
	for rows.Next() {
		var product types.Product
		if err := rows.Scan(
			&product.ID,
			&product.Name,
			&product.Price,
			&product.Description,
			&product.Image,
			&product.Category,
		); err != nil {
			return nil, err
		}
		products = append(products, product)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}
	return products, nil
}

func (r *ProductRepository) Get(ctx context.Context, id string) (types.Product, error) {
	const query = `
		SELECT id, name, price, description, image, category
		FROM products
		WHERE id = $1`
	var product types.Product
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&product.ID,
		&product.Name,
		&product.Price,
		&product.Description,
		&product.Image,
		&product.Category,
	)
	if err != nil {
		return types.Product{}, notFound(err)
	}
	return product, nil
}

func (r *ProductRepository) Create(ctx context.Context, product types.Product) (types.Product, error) {
	if product.ID == "" {
		product.ID = uuid.NewString()
	}

	const query = `
		INSERT INTO products (id, name, price, description, image, category)
		VALUES ($1, $2, $3, $4, $5, $6)`
	if _, err := r.db.ExecContext(
		ctx,
		query,
		product.ID,
		product.Name,
		product.Price,
		product.Description,
		product.Image,
		product.Category,
	); err != nil {
		return types.Product{}, err
	}
	return product, nil
}

// Delete removes a product and returns the deleted record.
func (r *ProductRepository) Delete(ctx context.Context, id string) (types.Product, error) {
	const query = `
		DELETE FROM products
		WHERE id = $1
		RETURNING id, name, price, description, image, category`
	var product types.Product
	err := r.db.QueryRowContext(ctx, query, id).Scan(
		&product.ID,
		&product.Name,
		&product.Price,
		&product.Description,
		&product.Image,
		&product.Category,
	)
	if err != nil {
		return types.Product{}, notFound(err)
	}
	return product, nil
}
