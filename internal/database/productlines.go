package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const productLineColumns = `id, name, slug, description, created_at, updated_at`

func scanProductLine(row interface{ Scan(dest ...any) error }) (ProductLine, error) {
	var pl ProductLine
	err := row.Scan(&pl.ID, &pl.Name, &pl.Slug, &pl.Description, &pl.CreatedAt, &pl.UpdatedAt)
	return pl, err
}

const listProductLines = `
SELECT ` + productLineColumns + ` FROM product_lines ORDER BY name ASC`

func (q *Queries) ListProductLines(ctx context.Context) ([]ProductLine, error) {
	rows, err := q.db.Query(ctx, listProductLines)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var lines []ProductLine
	for rows.Next() {
		pl, err := scanProductLine(rows)
		if err != nil {
			return nil, err
		}
		lines = append(lines, pl)
	}
	return lines, rows.Err()
}

const getProductLineByID = `
SELECT ` + productLineColumns + ` FROM product_lines WHERE id = $1`

func (q *Queries) GetProductLineByID(ctx context.Context, id uuid.UUID) (ProductLine, error) {
	return scanProductLine(q.db.QueryRow(ctx, getProductLineByID, id))
}

const createProductLine = `
INSERT INTO product_lines (name, slug, description)
VALUES ($1, $2, $3)
RETURNING ` + productLineColumns

type CreateProductLineParams struct {
	Name        string
	Slug        string
	Description pgtype.Text
}

func (q *Queries) CreateProductLine(ctx context.Context, arg CreateProductLineParams) (ProductLine, error) {
	return scanProductLine(q.db.QueryRow(ctx, createProductLine, arg.Name, arg.Slug, arg.Description))
}

const updateProductLine = `
UPDATE product_lines
SET name = $2, slug = $3, description = $4, updated_at = now()
WHERE id = $1
RETURNING ` + productLineColumns

type UpdateProductLineParams struct {
	ID          uuid.UUID
	Name        string
	Slug        string
	Description pgtype.Text
}

func (q *Queries) UpdateProductLine(ctx context.Context, arg UpdateProductLineParams) (ProductLine, error) {
	return scanProductLine(q.db.QueryRow(ctx, updateProductLine, arg.ID, arg.Name, arg.Slug, arg.Description))
}

const deleteProductLine = `
DELETE FROM product_lines WHERE id = $1 RETURNING id`

func (q *Queries) DeleteProductLine(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var deleted uuid.UUID
	err := q.db.QueryRow(ctx, deleteProductLine, id).Scan(&deleted)
	return deleted, err
}
