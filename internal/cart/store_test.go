package cart

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func testProduct(t *testing.T, name, price string, stock int32) ProductSnapshot {
	t.Helper()
	p, err := decimal.NewFromString(price)
	if err != nil {
		t.Fatalf("parse price %q: %v", price, err)
	}
	return ProductSnapshot{ID: uuid.New(), Name: name, Slug: name, Price: p, Stock: stock}
}

func TestAddItem_MergesQuantities(t *testing.T) {
	s := NewStore(nil)
	p := testProduct(t, "quinoa-bowl", "8.50", 100)

	s.AddItem(p, 1)
	s.AddItem(p, 2)

	items := s.Items()
	if len(items) != 1 {
		t.Fatalf("entries: got %d, want 1", len(items))
	}
	if items[0].Quantity != 3 {
		t.Errorf("quantity: got %d, want 3", items[0].Quantity)
	}
}

func TestAddItem_TwoAddsOfOne(t *testing.T) {
	s := NewStore(nil)
	p := testProduct(t, "lentil-soup", "4.20", 100)

	s.AddItem(p, 1)
	s.AddItem(p, 1)

	items := s.Items()
	if len(items) != 1 || items[0].Quantity != 2 {
		t.Fatalf("want single entry with quantity 2, got %+v", items)
	}
}

func TestAddItem_ClampsToStock(t *testing.T) {
	s := NewStore(nil)
	p := testProduct(t, "chia-pudding", "3.90", 5)

	s.AddItem(p, 4)
	s.AddItem(p, 4)

	if got := s.Items()[0].Quantity; got != 5 {
		t.Errorf("quantity: got %d, want 5", got)
	}
}

func TestAddItem_ZeroQuantityDefaultsToOne(t *testing.T) {
	s := NewStore(nil)
	p := testProduct(t, "oat-bar", "1.50", 100)

	s.AddItem(p, 0)

	if got := s.Items()[0].Quantity; got != 1 {
		t.Errorf("quantity: got %d, want 1", got)
	}
}

func TestSetQuantity(t *testing.T) {
	s := NewStore(nil)
	p := testProduct(t, "kale-chips", "2.75", 100)
	s.AddItem(p, 1)

	s.SetQuantity(p.ID, 7)
	if got := s.Items()[0].Quantity; got != 7 {
		t.Errorf("quantity: got %d, want 7", got)
	}

	s.SetQuantity(p.ID, 0)
	if s.Len() != 0 {
		t.Errorf("zero quantity must remove the entry, %d left", s.Len())
	}
}

func TestSetQuantity_AbsentProduct(t *testing.T) {
	s := NewStore(nil)
	s.SetQuantity(uuid.New(), 3)
	if s.Len() != 0 {
		t.Errorf("setting quantity on an absent product must not insert, %d entries", s.Len())
	}
}

func TestRemoveItem_Idempotent(t *testing.T) {
	s := NewStore(nil)
	p := testProduct(t, "miso-paste", "6.10", 100)
	s.AddItem(p, 2)

	s.RemoveItem(p.ID)
	s.RemoveItem(p.ID)
	s.RemoveItem(uuid.New())

	if s.Len() != 0 {
		t.Errorf("entries left: %d, want 0", s.Len())
	}
}

func TestClear(t *testing.T) {
	s := NewStore(nil)
	s.AddItem(testProduct(t, "a", "1.00", 10), 1)
	s.AddItem(testProduct(t, "b", "2.00", 10), 1)

	s.Clear()

	if s.Len() != 0 {
		t.Errorf("entries left: %d, want 0", s.Len())
	}
	if !s.TotalPrice().IsZero() {
		t.Errorf("total price after clear: %s, want 0", s.TotalPrice())
	}
}

func TestTotalPrice(t *testing.T) {
	s := NewStore(nil)
	s.AddItem(testProduct(t, "tofu-block", "3.25", 100), 3)
	s.AddItem(testProduct(t, "almond-milk", "2.10", 100), 2)

	want := decimal.RequireFromString("13.95")
	if got := s.TotalPrice(); !got.Equal(want) {
		t.Errorf("total price: got %s, want %s", got, want)
	}
}

func TestTotalNutrition_MissingMacrosCountAsZero(t *testing.T) {
	s := NewStore(nil)

	withMacros := testProduct(t, "protein-bowl", "9.00", 100)
	withMacros.Macros = Nutrition{
		Calories: decimal.NewFromInt(540),
		Protein:  decimal.RequireFromString("32.5"),
		Carbs:    decimal.NewFromInt(41),
		Fat:      decimal.NewFromInt(18),
	}
	noMacros := testProduct(t, "sparkling-water", "1.20", 100)

	s.AddItem(withMacros, 2)
	s.AddItem(noMacros, 5)

	got := s.TotalNutrition()
	if !got.Calories.Equal(decimal.NewFromInt(1080)) {
		t.Errorf("calories: got %s, want 1080", got.Calories)
	}
	if !got.Protein.Equal(decimal.RequireFromString("65")) {
		t.Errorf("protein: got %s, want 65", got.Protein)
	}
	if !got.Carbs.Equal(decimal.NewFromInt(82)) {
		t.Errorf("carbs: got %s, want 82", got.Carbs)
	}
	if !got.Fat.Equal(decimal.NewFromInt(36)) {
		t.Errorf("fat: got %s, want 36", got.Fat)
	}
}

// --- Persistence ---

type failingPersister struct {
	saves int
}

func (p *failingPersister) Save(items map[uuid.UUID]Item) error {
	p.saves++
	return errors.New("storage quota exceeded")
}

func (p *failingPersister) Load() (map[uuid.UUID]Item, error) { return nil, nil }

func TestPersistFailureIsNonFatal(t *testing.T) {
	persister := &failingPersister{}
	s := NewStore(persister)
	p := testProduct(t, "granola", "5.40", 100)

	s.AddItem(p, 2)
	s.SetQuantity(p.ID, 4)

	if persister.saves != 2 {
		t.Errorf("saves attempted: got %d, want 2", persister.saves)
	}
	// The mutations themselves must have gone through in memory.
	if got := s.Items()[0].Quantity; got != 4 {
		t.Errorf("quantity: got %d, want 4", got)
	}
}

func TestFilePersister_Roundtrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cart.json")

	s := NewStore(NewFilePersister(path))
	p := testProduct(t, "hummus", "3.80", 100)
	p.Macros.Calories = decimal.NewFromInt(210)
	s.AddItem(p, 3)

	restored := NewStore(NewFilePersister(path))
	items := restored.Items()
	if len(items) != 1 {
		t.Fatalf("restored entries: got %d, want 1", len(items))
	}
	if items[0].Quantity != 3 {
		t.Errorf("restored quantity: got %d, want 3", items[0].Quantity)
	}
	if !items[0].Product.Price.Equal(p.Price) {
		t.Errorf("restored price: got %s, want %s", items[0].Product.Price, p.Price)
	}
	if !restored.TotalNutrition().Calories.Equal(decimal.NewFromInt(630)) {
		t.Errorf("restored calories: got %s, want 630", restored.TotalNutrition().Calories)
	}
}

func TestFilePersister_MissingFileIsFreshStart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "absent.json")

	s := NewStore(NewFilePersister(path))
	if s.Len() != 0 {
		t.Errorf("entries: got %d, want 0", s.Len())
	}
}
