package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const categoryColumns = `id, name, slug, description, created_at, updated_at`

func scanCategory(row interface{ Scan(dest ...any) error }) (Category, error) {
	var c Category
	err := row.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.CreatedAt, &c.UpdatedAt)
	return c, err
}

const listCategories = `
SELECT ` + categoryColumns + ` FROM categories ORDER BY name ASC`

func (q *Queries) ListCategories(ctx context.Context) ([]Category, error) {
	rows, err := q.db.Query(ctx, listCategories)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var categories []Category
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, err
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

const getCategoryBySlug = `
SELECT ` + categoryColumns + ` FROM categories WHERE slug = $1`

func (q *Queries) GetCategoryBySlug(ctx context.Context, slug string) (Category, error) {
	return scanCategory(q.db.QueryRow(ctx, getCategoryBySlug, slug))
}

const getCategoryByID = `
SELECT ` + categoryColumns + ` FROM categories WHERE id = $1`

func (q *Queries) GetCategoryByID(ctx context.Context, id uuid.UUID) (Category, error) {
	return scanCategory(q.db.QueryRow(ctx, getCategoryByID, id))
}

const createCategory = `
INSERT INTO categories (name, slug, description)
VALUES ($1, $2, $3)
RETURNING ` + categoryColumns

type CreateCategoryParams struct {
	Name        string
	Slug        string
	Description pgtype.Text
}

func (q *Queries) CreateCategory(ctx context.Context, arg CreateCategoryParams) (Category, error) {
	return scanCategory(q.db.QueryRow(ctx, createCategory, arg.Name, arg.Slug, arg.Description))
}

const updateCategory = `
UPDATE categories
SET name = $2, slug = $3, description = $4, updated_at = now()
WHERE id = $1
RETURNING ` + categoryColumns

type UpdateCategoryParams struct {
	ID          uuid.UUID
	Name        string
	Slug        string
	Description pgtype.Text
}

func (q *Queries) UpdateCategory(ctx context.Context, arg UpdateCategoryParams) (Category, error) {
	return scanCategory(q.db.QueryRow(ctx, updateCategory, arg.ID, arg.Name, arg.Slug, arg.Description))
}

const deleteCategory = `
DELETE FROM categories WHERE id = $1 RETURNING id`

func (q *Queries) DeleteCategory(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var deleted uuid.UUID
	err := q.db.QueryRow(ctx, deleteCategory, id).Scan(&deleted)
	return deleted, err
}
