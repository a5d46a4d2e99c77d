// Package cart holds a shopper's staged items before checkout. It is not
// authoritative; the order service revalidates everything server-side.
package cart

import (
	"log"
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ProductSnapshot caches the catalog fields the cart needs so totals can
// be derived without a round trip. Prices here are display values only.
type ProductSnapshot struct {
	ID       uuid.UUID       `json:"id"`
	Name     string          `json:"name"`
	Slug     string          `json:"slug"`
	Price    decimal.Decimal `json:"price"`
	ImageURL string          `json:"image_url"`
	Stock    int32           `json:"stock"`
	Macros   Nutrition       `json:"macros"`
}

// Nutrition aggregates per-serving macros. Products without nutrition
// data leave the zero value, which contributes nothing to totals.
type Nutrition struct {
	Calories decimal.Decimal `json:"calories"`
	Protein  decimal.Decimal `json:"protein"`
	Carbs    decimal.Decimal `json:"carbs"`
	Fat      decimal.Decimal `json:"fat"`
}

func (n Nutrition) add(other Nutrition, qty int64) Nutrition {
	q := decimal.NewFromInt(qty)
	return Nutrition{
		Calories: n.Calories.Add(other.Calories.Mul(q)),
		Protein:  n.Protein.Add(other.Protein.Mul(q)),
		Carbs:    n.Carbs.Add(other.Carbs.Mul(q)),
		Fat:      n.Fat.Add(other.Fat.Mul(q)),
	}
}

// Item is one cart entry.
type Item struct {
	Product  ProductSnapshot `json:"product"`
	Quantity int32           `json:"quantity"`
}

// Persister saves and restores cart contents across restarts. Load
// returning an empty map is a valid fresh start.
type Persister interface {
	Save(items map[uuid.UUID]Item) error
	Load() (map[uuid.UUID]Item, error)
}

// Store is an explicit, mutex-guarded cart constructed once and passed to
// its consumers. Persistence is best effort: a failed save is logged and
// the store keeps operating in memory.
type Store struct {
	mu        sync.Mutex
	items     map[uuid.UUID]Item
	persister Persister
}

// NewStore builds a store, restoring any previously persisted contents.
// persister may be nil for a memory-only cart.
func NewStore(persister Persister) *Store {
	s := &Store{items: make(map[uuid.UUID]Item), persister: persister}
	if persister != nil {
		items, err := persister.Load()
		if err != nil {
			log.Printf("WARN: restore cart: %v", err)
		} else if items != nil {
			s.items = items
		}
	}
	return s
}

// AddItem merges qty into an existing entry or inserts a new one.
// Quantities are clamped to the cached stock so the cart never stages
// more than the catalog reported available.
func (s *Store) AddItem(product ProductSnapshot, qty int32) {
	if qty <= 0 {
		qty = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[product.ID]
	if ok {
		item.Quantity += qty
		item.Product = product
	} else {
		item = Item{Product: product, Quantity: qty}
	}
	if product.Stock > 0 && item.Quantity > product.Stock {
		item.Quantity = product.Stock
	}
	s.items[product.ID] = item
	s.persist()
}

// SetQuantity overwrites an entry's quantity. A quantity of zero or less
// removes the entry.
func (s *Store) SetQuantity(productID uuid.UUID, qty int32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if qty <= 0 {
		delete(s.items, productID)
		s.persist()
		return
	}
	item, ok := s.items[productID]
	if !ok {
		return
	}
	item.Quantity = qty
	s.items[productID] = item
	s.persist()
}

// RemoveItem deletes an entry. Removing an absent product is a no-op.
func (s *Store) RemoveItem(productID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.items[productID]; !ok {
		return
	}
	delete(s.items, productID)
	s.persist()
}

// Clear empties the store.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.items = make(map[uuid.UUID]Item)
	s.persist()
}

// Items returns a snapshot of the cart ordered by product name.
func (s *Store) Items() []Item {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Item, 0, len(s.items))
	for _, item := range s.items {
		out = append(out, item)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Product.Name < out[j].Product.Name
	})
	return out
}

// Len reports the number of distinct products in the cart.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.items)
}

// TotalPrice sums price times quantity over the cached snapshots.
func (s *Store) TotalPrice() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()

	total := decimal.Zero
	for _, item := range s.items {
		total = total.Add(item.Product.Price.Mul(decimal.NewFromInt32(item.Quantity)))
	}
	return total
}

// TotalNutrition sums each macro times quantity over the cached snapshots.
func (s *Store) TotalNutrition() Nutrition {
	s.mu.Lock()
	defer s.mu.Unlock()

	var total Nutrition
	for _, item := range s.items {
		total = total.add(item.Product.Macros, int64(item.Quantity))
	}
	return total
}

// persist saves under the lock. Failures degrade to memory-only.
func (s *Store) persist() {
	if s.persister == nil {
		return
	}
	if err := s.persister.Save(s.items); err != nil {
		log.Printf("WARN: persist cart: %v", err)
	}
}
