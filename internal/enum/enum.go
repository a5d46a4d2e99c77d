package enum

// ── Order lifecycle (CHECK constrained in DB) ──

const (
	OrderStatusPending    = "PENDING"
	OrderStatusProcessing = "PROCESSING"
	OrderStatusShipped    = "SHIPPED"
	OrderStatusDelivered  = "DELIVERED"
	OrderStatusCancelled  = "CANCELLED"
	OrderStatusRefunded   = "REFUNDED"
)

const (
	PaymentStatusPending = "pending"
	PaymentStatusPaid    = "paid"
	PaymentStatusFailed  = "failed"
)

// ── Accounts ──

const (
	UserRoleCustomer = "CUSTOMER"
	UserRoleAdmin    = "ADMIN"
)

// ── Configurable labels (no DB constraint) ──

// Payment method is free text on the order ("stripe", "paypal", ...).
// PaymentMethodDefault is applied when the client omits it.
const PaymentMethodDefault = "stripe"

const (
	MealTypeBreakfast = "BREAKFAST"
	MealTypeLunch     = "LUNCH"
	MealTypeDinner    = "DINNER"
	MealTypeSnack     = "SNACK"
)

func IsValidUserRole(role string) bool {
	switch role {
	case UserRoleCustomer, UserRoleAdmin:
		return true
	}
	return false
}

func IsValidMealType(mealType string) bool {
	switch mealType {
	case MealTypeBreakfast, MealTypeLunch, MealTypeDinner, MealTypeSnack:
		return true
	}
	return false
}
