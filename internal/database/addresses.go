package database

import (
	"context"

	"github.com/google/uuid"
)

const addressColumns = `id, user_id, first_name, last_name, street, city, state, postal_code, country, phone, is_default, created_at, updated_at`

func scanAddress(row interface{ Scan(dest ...any) error }) (Address, error) {
	var a Address
	err := row.Scan(
		&a.ID,
		&a.UserID,
		&a.FirstName,
		&a.LastName,
		&a.Street,
		&a.City,
		&a.State,
		&a.PostalCode,
		&a.Country,
		&a.Phone,
		&a.IsDefault,
		&a.CreatedAt,
		&a.UpdatedAt,
	)
	return a, err
}

const listAddressesByUser = `
SELECT ` + addressColumns + `
FROM addresses
WHERE user_id = $1
ORDER BY is_default DESC, created_at DESC`

func (q *Queries) ListAddressesByUser(ctx context.Context, userID uuid.UUID) ([]Address, error) {
	rows, err := q.db.Query(ctx, listAddressesByUser, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var addresses []Address
	for rows.Next() {
		a, err := scanAddress(rows)
		if err != nil {
			return nil, err
		}
		addresses = append(addresses, a)
	}
	return addresses, rows.Err()
}

const getAddress = `
SELECT ` + addressColumns + ` FROM addresses WHERE id = $1 AND user_id = $2`

type GetAddressParams struct {
	ID     uuid.UUID
	UserID uuid.UUID
}

func (q *Queries) GetAddress(ctx context.Context, arg GetAddressParams) (Address, error) {
	return scanAddress(q.db.QueryRow(ctx, getAddress, arg.ID, arg.UserID))
}

const countAddressesByUser = `
SELECT count(*) FROM addresses WHERE user_id = $1`

func (q *Queries) CountAddressesByUser(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, countAddressesByUser, userID).Scan(&count)
	return count, err
}

const unsetDefaultAddresses = `
UPDATE addresses SET is_default = false, updated_at = now()
WHERE user_id = $1 AND is_default = true`

func (q *Queries) UnsetDefaultAddresses(ctx context.Context, userID uuid.UUID) error {
	_, err := q.db.Exec(ctx, unsetDefaultAddresses, userID)
	return err
}

const createAddress = `
INSERT INTO addresses (user_id, first_name, last_name, street, city, state, postal_code, country, phone, is_default)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING ` + addressColumns

type CreateAddressParams struct {
	UserID     uuid.UUID
	FirstName  string
	LastName   string
	Street     string
	City       string
	State      string
	PostalCode string
	Country    string
	Phone      string
	IsDefault  bool
}

func (q *Queries) CreateAddress(ctx context.Context, arg CreateAddressParams) (Address, error) {
	row := q.db.QueryRow(ctx, createAddress,
		arg.UserID,
		arg.FirstName,
		arg.LastName,
		arg.Street,
		arg.City,
		arg.State,
		arg.PostalCode,
		arg.Country,
		arg.Phone,
		arg.IsDefault,
	)
	return scanAddress(row)
}

const updateAddress = `
UPDATE addresses
SET first_name = $3, last_name = $4, street = $5, city = $6, state = $7,
    postal_code = $8, country = $9, phone = $10, is_default = $11, updated_at = now()
WHERE id = $1 AND user_id = $2
RETURNING ` + addressColumns

type UpdateAddressParams struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	FirstName  string
	LastName   string
	Street     string
	City       string
	State      string
	PostalCode string
	Country    string
	Phone      string
	IsDefault  bool
}

func (q *Queries) UpdateAddress(ctx context.Context, arg UpdateAddressParams) (Address, error) {
	row := q.db.QueryRow(ctx, updateAddress,
		arg.ID,
		arg.UserID,
		arg.FirstName,
		arg.LastName,
		arg.Street,
		arg.City,
		arg.State,
		arg.PostalCode,
		arg.Country,
		arg.Phone,
		arg.IsDefault,
	)
	return scanAddress(row)
}

const deleteAddress = `
DELETE FROM addresses WHERE id = $1 AND user_id = $2 RETURNING is_default`

type DeleteAddressParams struct {
	ID     uuid.UUID
	UserID uuid.UUID
}

// DeleteAddress removes the row and reports whether it was the default,
// so the caller can promote another address in the same transaction.
func (q *Queries) DeleteAddress(ctx context.Context, arg DeleteAddressParams) (bool, error) {
	var wasDefault bool
	err := q.db.QueryRow(ctx, deleteAddress, arg.ID, arg.UserID).Scan(&wasDefault)
	return wasDefault, err
}

const getOldestAddress = `
SELECT ` + addressColumns + `
FROM addresses
WHERE user_id = $1
ORDER BY created_at ASC
LIMIT 1`

func (q *Queries) GetOldestAddress(ctx context.Context, userID uuid.UUID) (Address, error) {
	return scanAddress(q.db.QueryRow(ctx, getOldestAddress, userID))
}

const setDefaultAddress = `
UPDATE addresses SET is_default = true, updated_at = now()
WHERE id = $1
RETURNING ` + addressColumns

func (q *Queries) SetDefaultAddress(ctx context.Context, id uuid.UUID) (Address, error) {
	return scanAddress(q.db.QueryRow(ctx, setDefaultAddress, id))
}
