package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type User struct {
	ID              uuid.UUID
	Email           string
	Name            string
	HashedPassword  string
	Role            string
	EmailVerifiedAt pgtype.Timestamptz
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

type Address struct {
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
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Category struct {
	ID          uuid.UUID
	Name        string
	Slug        string
	Description pgtype.Text
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type ProductLine struct {
	ID          uuid.UUID
	Name        string
	Slug        string
	Description pgtype.Text
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type Tag struct {
	ID        uuid.UUID
	Name      string
	Slug      string
	CreatedAt time.Time
}

type Product struct {
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
	Active        bool
	Calories      pgtype.Numeric
	Protein       pgtype.Numeric
	Carbohydrates pgtype.Numeric
	Fat           pgtype.Numeric
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

type Order struct {
	ID             uuid.UUID
	OrderNumber    string
	OrderYear      int32
	OrderSeq       int32
	UserID         uuid.UUID
	AddressID      uuid.UUID
	Status         string
	PaymentStatus  string
	PaymentMethod  string
	Subtotal       pgtype.Numeric
	ShippingCost   pgtype.Numeric
	Tax            pgtype.Numeric
	Total          pgtype.Numeric
	Notes          pgtype.Text
	IdempotencyKey pgtype.Text

	// Address snapshot taken at creation; later edits to the address row
	// must not change where a historical order shipped.
	ShippingFirstName  string
	ShippingLastName   string
	ShippingStreet     string
	ShippingCity       string
	ShippingState      string
	ShippingPostalCode string
	ShippingCountry    string
	ShippingPhone      string

	CreatedAt time.Time
	UpdatedAt time.Time
}

type OrderItem struct {
	ID        uuid.UUID
	OrderID   uuid.UUID
	ProductID uuid.UUID
	Quantity  int32
	Price     pgtype.Numeric
	Subtotal  pgtype.Numeric
	CreatedAt time.Time
}

type Menu struct {
	ID          uuid.UUID
	UserID      uuid.UUID
	Name        string
	Description pgtype.Text
	IsTemplate  bool
	IsPublic    bool
	StartDate   pgtype.Date
	EndDate     pgtype.Date
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type MenuItem struct {
	ID        uuid.UUID
	MenuID    uuid.UUID
	ProductID uuid.UUID
	Day       int32
	MealType  string
	Position  int32
	Quantity  int32
	Notes     pgtype.Text
}
