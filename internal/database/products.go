package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const productColumns = `id, category_id, product_line_id, name, slug, description, price, stock, image_url, featured, active, calories, protein, carbohydrates, fat, created_at, updated_at`

func scanProduct(row interface{ Scan(dest ...any) error }) (Product, error) {
	var p Product
	err := row.Scan(
		&p.ID,
		&p.CategoryID,
		&p.ProductLineID,
		&p.Name,
		&p.Slug,
		&p.Description,
		&p.Price,
		&p.Stock,
		&p.ImageUrl,
		&p.Featured,
		&p.Active,
		&p.Calories,
		&p.Protein,
		&p.Carbohydrates,
		&p.Fat,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	return p, err
}

// listProducts filters are optional: empty category slug, featured=false and
// empty search mean "no filter". Search matches name or description,
// case-insensitive, the way the storefront catalog search does.
const listProducts = `
SELECT ` + productColumns + `
FROM products
WHERE active = true
  AND ($1 = '' OR category_id = (SELECT id FROM categories WHERE slug = $1))
  AND (NOT $2::bool OR featured = true)
  AND ($3 = '' OR name ILIKE '%' || $3 || '%' OR description ILIKE '%' || $3 || '%')
ORDER BY created_at DESC
LIMIT $4`

type ListProductsParams struct {
	CategorySlug string
	Featured     bool
	Search       string
	Limit        int32
}

func (q *Queries) ListProducts(ctx context.Context, arg ListProductsParams) ([]Product, error) {
	rows, err := q.db.Query(ctx, listProducts, arg.CategorySlug, arg.Featured, arg.Search, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var products []Product
	for rows.Next() {
		p, err := scanProduct(rows)
		if err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

const getProductBySlug = `
SELECT ` + productColumns + ` FROM products WHERE slug = $1 AND active = true`

func (q *Queries) GetProductBySlug(ctx context.Context, slug string) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, getProductBySlug, slug))
}

const getProductByID = `
SELECT ` + productColumns + ` FROM products WHERE id = $1`

func (q *Queries) GetProductByID(ctx context.Context, id uuid.UUID) (Product, error) {
	return scanProduct(q.db.QueryRow(ctx, getProductByID, id))
}

const getProductForOrder = `
SELECT id, name, price, stock FROM products WHERE id = $1 AND active = true`

type GetProductForOrderRow struct {
	ID    uuid.UUID
	Name  string
	Price pgtype.Numeric
	Stock int32
}

func (q *Queries) GetProductForOrder(ctx context.Context, id uuid.UUID) (GetProductForOrderRow, error) {
	var r GetProductForOrderRow
	err := q.db.QueryRow(ctx, getProductForOrder, id).Scan(&r.ID, &r.Name, &r.Price, &r.Stock)
	return r, err
}

const createProduct = `
INSERT INTO products (category_id, product_line_id, name, slug, description, price, stock, image_url, featured, calories, protein, carbohydrates, fat)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
RETURNING ` + productColumns

type CreateProductParams struct {
	CategoryID    uuid.UUID
	ProductLineID pgtype.UUID
	Name          string
	Slug          string
	Description   pgtype.Text
	Price         pgtype.Numeric
	Stock         int32
	ImageUrl      pgtype.Text
	Featured      bool
	Calories      pgtype.Numeric
	Protein       pgtype.Numeric
	Carbohydrates pgtype.Numeric
	Fat           pgtype.Numeric
}

func (q *Queries) CreateProduct(ctx context.Context, arg CreateProductParams) (Product, error) {
	row := q.db.QueryRow(ctx, createProduct,
		arg.CategoryID,
		arg.ProductLineID,
		arg.Name,
		arg.Slug,
		arg.Description,
		arg.Price,
		arg.Stock,
		arg.ImageUrl,
		arg.Featured,
		arg.Calories,
		arg.Protein,
		arg.Carbohydrates,
		arg.Fat,
	)
	return scanProduct(row)
}

const updateProduct = `
UPDATE products
SET category_id = $2, product_line_id = $3, name = $4, slug = $5, description = $6,
    price = $7, stock = $8, image_url = $9, featured = $10, calories = $11,
    protein = $12, carbohydrates = $13, fat = $14, updated_at = now()
WHERE id = $1
RETURNING ` + productColumns

type UpdateProductParams struct {
	ID            uuid.UUID
	CategoryID    uuid.UUID
	ProductLineID pgtype.UUID
	Name          string
	Slug          string
	Description   pgtype.Text
	Price         pgtype.Numeric
	Stock         int32
	ImageUrl      pgtype.Text
	Featured      bool
	Calories      pgtype.Numeric
	Protein       pgtype.Numeric
	Carbohydrates pgtype.Numeric
	Fat           pgtype.Numeric
}

func (q *Queries) UpdateProduct(ctx context.Context, arg UpdateProductParams) (Product, error) {
	row := q.db.QueryRow(ctx, updateProduct,
		arg.ID,
		arg.CategoryID,
		arg.ProductLineID,
		arg.Name,
		arg.Slug,
		arg.Description,
		arg.Price,
		arg.Stock,
		arg.ImageUrl,
		arg.Featured,
		arg.Calories,
		arg.Protein,
		arg.Carbohydrates,
		arg.Fat,
	)
	return scanProduct(row)
}

const softDeleteProduct = `
UPDATE products SET active = false, updated_at = now()
WHERE id = $1 AND active = true
RETURNING id`

func (q *Queries) SoftDeleteProduct(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var deleted uuid.UUID
	err := q.db.QueryRow(ctx, softDeleteProduct, id).Scan(&deleted)
	return deleted, err
}
