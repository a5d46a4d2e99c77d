package database

import (
	"context"

	"github.com/google/uuid"
)

const tagColumns = `id, name, slug, created_at`

func scanTag(row interface{ Scan(dest ...any) error }) (Tag, error) {
	var t Tag
	err := row.Scan(&t.ID, &t.Name, &t.Slug, &t.CreatedAt)
	return t, err
}

const listTags = `
SELECT ` + tagColumns + ` FROM tags ORDER BY name ASC`

func (q *Queries) ListTags(ctx context.Context) ([]Tag, error) {
	rows, err := q.db.Query(ctx, listTags)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tags []Tag
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

const createTag = `
INSERT INTO tags (name, slug)
VALUES ($1, $2)
RETURNING ` + tagColumns

type CreateTagParams struct {
	Name string
	Slug string
}

func (q *Queries) CreateTag(ctx context.Context, arg CreateTagParams) (Tag, error) {
	return scanTag(q.db.QueryRow(ctx, createTag, arg.Name, arg.Slug))
}

const deleteTag = `
DELETE FROM tags WHERE id = $1 RETURNING id`

func (q *Queries) DeleteTag(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var deleted uuid.UUID
	err := q.db.QueryRow(ctx, deleteTag, id).Scan(&deleted)
	return deleted, err
}

const listTagsByProduct = `
SELECT t.id, t.name, t.slug, t.created_at
FROM tags t
JOIN product_tags pt ON pt.tag_id = t.id
WHERE pt.product_id = $1
ORDER BY t.name ASC`

func (q *Queries) ListTagsByProduct(ctx context.Context, productID uuid.UUID) ([]Tag, error) {
	rows, err := q.db.Query(ctx, listTagsByProduct, productID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var tags []Tag
	for rows.Next() {
		t, err := scanTag(rows)
		if err != nil {
			return nil, err
		}
		tags = append(tags, t)
	}
	return tags, rows.Err()
}

const addProductTag = `
INSERT INTO product_tags (product_id, tag_id)
VALUES ($1, $2)
ON CONFLICT DO NOTHING`

type AddProductTagParams struct {
	ProductID uuid.UUID
	TagID     uuid.UUID
}

func (q *Queries) AddProductTag(ctx context.Context, arg AddProductTagParams) error {
	_, err := q.db.Exec(ctx, addProductTag, arg.ProductID, arg.TagID)
	return err
}

const clearProductTags = `
DELETE FROM product_tags WHERE product_id = $1`

func (q *Queries) ClearProductTags(ctx context.Context, productID uuid.UUID) error {
	_, err := q.db.Exec(ctx, clearProductTags, productID)
	return err
}
