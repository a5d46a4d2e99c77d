// Package favorites holds a shopper's saved products. Like the cart it is
// client state only; nothing on the order path reads it.
package favorites

import (
	"log"
	"sync"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Product caches the catalog fields a favorites list renders. The optional
// compare-at price carries strike-through pricing for products on offer.
type Product struct {
	ID             uuid.UUID        `json:"id"`
	Slug           string           `json:"slug"`
	Name           string           `json:"name"`
	ImageURL       string           `json:"image_url"`
	Price          decimal.Decimal  `json:"price"`
	CompareAtPrice *decimal.Decimal `json:"compare_at_price,omitempty"`
}

// Persister saves and restores the favorites list across restarts. Load
// returning an empty slice is a valid fresh start.
type Persister interface {
	Save(products []Product) error
	Load() ([]Product, error)
}

// Store is an explicit, mutex-guarded favorites list constructed once and
// passed to its consumers. Insertion order is preserved so the list renders
// oldest favorite first. Persistence is best effort: a failed save is
// logged and the store keeps operating in memory.
type Store struct {
	mu        sync.Mutex
	products  []Product
	persister Persister
}

// NewStore builds a store, restoring any previously persisted contents.
// persister may be nil for a memory-only list.
func NewStore(persister Persister) *Store {
	s := &Store{persister: persister}
	if persister != nil {
		products, err := persister.Load()
		if err != nil {
			log.Printf("WARN: restore favorites: %v", err)
		} else {
			s.products = products
		}
	}
	return s
}

// IsFavorite reports whether the product is on the list.
func (s *Store) IsFavorite(productID uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.indexOf(productID) >= 0
}

// Add appends a product to the list. Adding a product already on the
// list is a no-op.
func (s *Store) Add(product Product) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.indexOf(product.ID) >= 0 {
		return
	}
	s.products = append(s.products, product)
	s.persist()
}

// Remove deletes a product from the list. Removing an absent product is
// a no-op.
func (s *Store) Remove(productID uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	i := s.indexOf(productID)
	if i < 0 {
		return
	}
	s.products = append(s.products[:i], s.products[i+1:]...)
	s.persist()
}

// Toggle adds the product if absent and removes it if present. It
// reports whether the product is a favorite afterwards.
func (s *Store) Toggle(product Product) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if i := s.indexOf(product.ID); i >= 0 {
		s.products = append(s.products[:i], s.products[i+1:]...)
		s.persist()
		return false
	}
	s.products = append(s.products, product)
	s.persist()
	return true
}

// Clear empties the list.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.products = nil
	s.persist()
}

// Products returns the list in insertion order.
func (s *Store) Products() []Product {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Product, len(s.products))
	copy(out, s.products)
	return out
}

// Len returns the number of favorites.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.products)
}

func (s *Store) indexOf(productID uuid.UUID) int {
	for i, p := range s.products {
		if p.ID == productID {
			return i
		}
	}
	return -1
}

func (s *Store) persist() {
	if s.persister == nil {
		return
	}
	if err := s.persister.Save(s.products); err != nil {
		log.Printf("WARN: persist favorites: %v", err)
	}
}
