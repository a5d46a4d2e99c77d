package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const menuColumns = `id, user_id, name, description, is_template, is_public, start_date, end_date, created_at, updated_at`

func scanMenu(row interface{ Scan(dest ...any) error }) (Menu, error) {
	var m Menu
	err := row.Scan(
		&m.ID,
		&m.UserID,
		&m.Name,
		&m.Description,
		&m.IsTemplate,
		&m.IsPublic,
		&m.StartDate,
		&m.EndDate,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	return m, err
}

const createMenu = `
INSERT INTO menus (user_id, name, description, is_template, is_public, start_date, end_date)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + menuColumns

type CreateMenuParams struct {
	UserID      uuid.UUID
	Name        string
	Description pgtype.Text
	IsTemplate  bool
	IsPublic    bool
	StartDate   pgtype.Date
	EndDate     pgtype.Date
}

func (q *Queries) CreateMenu(ctx context.Context, arg CreateMenuParams) (Menu, error) {
	row := q.db.QueryRow(ctx, createMenu,
		arg.UserID,
		arg.Name,
		arg.Description,
		arg.IsTemplate,
		arg.IsPublic,
		arg.StartDate,
		arg.EndDate,
	)
	return scanMenu(row)
}

const createMenuItem = `
INSERT INTO menu_items (menu_id, product_id, day, meal_type, position, quantity, notes)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING id, menu_id, product_id, day, meal_type, position, quantity, notes`

type CreateMenuItemParams struct {
	MenuID    uuid.UUID
	ProductID uuid.UUID
	Day       int32
	MealType  string
	Position  int32
	Quantity  int32
	Notes     pgtype.Text
}

func (q *Queries) CreateMenuItem(ctx context.Context, arg CreateMenuItemParams) (MenuItem, error) {
	var i MenuItem
	err := q.db.QueryRow(ctx, createMenuItem,
		arg.MenuID,
		arg.ProductID,
		arg.Day,
		arg.MealType,
		arg.Position,
		arg.Quantity,
		arg.Notes,
	).Scan(&i.ID, &i.MenuID, &i.ProductID, &i.Day, &i.MealType, &i.Position, &i.Quantity, &i.Notes)
	return i, err
}

const getMenu = `
SELECT ` + menuColumns + ` FROM menus WHERE id = $1`

func (q *Queries) GetMenu(ctx context.Context, id uuid.UUID) (Menu, error) {
	return scanMenu(q.db.QueryRow(ctx, getMenu, id))
}

const listMenus = `
SELECT ` + menuColumns + `
FROM menus
WHERE ($1::uuid IS NULL OR user_id = $1)
  AND (NOT $2::bool OR is_public = true)
  AND (NOT $3::bool OR is_template = true)
ORDER BY created_at DESC`

type ListMenusParams struct {
	UserID     pgtype.UUID
	PublicOnly bool
	Templates  bool
}

func (q *Queries) ListMenus(ctx context.Context, arg ListMenusParams) ([]Menu, error) {
	rows, err := q.db.Query(ctx, listMenus, arg.UserID, arg.PublicOnly, arg.Templates)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var menus []Menu
	for rows.Next() {
		m, err := scanMenu(rows)
		if err != nil {
			return nil, err
		}
		menus = append(menus, m)
	}
	return menus, rows.Err()
}

const listMenuItemsByMenu = `
SELECT id, menu_id, product_id, day, meal_type, position, quantity, notes
FROM menu_items
WHERE menu_id = $1
ORDER BY day ASC, meal_type ASC, position ASC`

func (q *Queries) ListMenuItemsByMenu(ctx context.Context, menuID uuid.UUID) ([]MenuItem, error) {
	rows, err := q.db.Query(ctx, listMenuItemsByMenu, menuID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []MenuItem
	for rows.Next() {
		var i MenuItem
		if err := rows.Scan(&i.ID, &i.MenuID, &i.ProductID, &i.Day, &i.MealType, &i.Position, &i.Quantity, &i.Notes); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	return items, rows.Err()
}

const updateMenu = `
UPDATE menus
SET name = $2, description = $3, is_template = $4, is_public = $5, start_date = $6, end_date = $7, updated_at = now()
WHERE id = $1
RETURNING ` + menuColumns

type UpdateMenuParams struct {
	ID          uuid.UUID
	Name        string
	Description pgtype.Text
	IsTemplate  bool
	IsPublic    bool
	StartDate   pgtype.Date
	EndDate     pgtype.Date
}

func (q *Queries) UpdateMenu(ctx context.Context, arg UpdateMenuParams) (Menu, error) {
	row := q.db.QueryRow(ctx, updateMenu,
		arg.ID,
		arg.Name,
		arg.Description,
		arg.IsTemplate,
		arg.IsPublic,
		arg.StartDate,
		arg.EndDate,
	)
	return scanMenu(row)
}

const deleteMenuItemsByMenu = `
DELETE FROM menu_items WHERE menu_id = $1`

func (q *Queries) DeleteMenuItemsByMenu(ctx context.Context, menuID uuid.UUID) error {
	_, err := q.db.Exec(ctx, deleteMenuItemsByMenu, menuID)
	return err
}

const deleteMenu = `
DELETE FROM menus WHERE id = $1 RETURNING id`

func (q *Queries) DeleteMenu(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var deleted uuid.UUID
	err := q.db.QueryRow(ctx, deleteMenu, id).Scan(&deleted)
	return deleted, err
}
