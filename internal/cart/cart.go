// Package cart holds the shopper's cart in memory. It is never persisted: a restart
// of the agent starts with an empty cart.
package cart

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"sync"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/shopspring/decimal"
)

type AddResult int

const (
	// Added inserted a new line with quantity 1.
	Added AddResult = iota
	// Incremented bumped the quantity of an existing physical line.
	Incremented
	// LimitReached means the digital product is already in the cart; nothing changed.
	LimitReached
)

func (r AddResult) String() string {
	switch r {
	case Added:
		return "added"
	case Incremented:
		return "incremented"
	case LimitReached:
		return "limit_reached"
	default:
		return "unknown"
	}
}

// Cart is an ordered list of line items keyed by product id. Safe for concurrent use.
type Cart struct {
	mu    sync.RWMutex
	items []domain.CartLineItem
}

func New() *Cart {
	return &Cart{}
}

func (c *Cart) indexOf(productID string) int {
	for i := range c.items {
		if c.items[i].Product.ID == productID {
			return i
		}
	}
	return -1
}

// Add puts one unit of p into the cart. A digital product can be present at most
// once: a second Add returns LimitReached and leaves the cart untouched.
func (c *Cart) Add(p domain.Product) (AddResult, error) {
	if p.ID == "" || p.Price.IsNegative() {
		return 0, ErrInvalidProduct
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	i := c.indexOf(p.ID)
	if i < 0 {
		c.items = append(c.items, domain.CartLineItem{Product: p, Quantity: 1})
		return Added, nil
	}
	if c.items[i].Product.Type.IsDigital() {
		return LimitReached, nil
	}
	c.items[i].Quantity++
	return Incremented, nil
}

// Remove deletes the line for productID. Removing an absent product is a no-op.
func (c *Cart) Remove(productID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.removeLocked(productID)
}

func (c *Cart) removeLocked(productID string) {
	if i := c.indexOf(productID); i >= 0 {
		c.items = append(c.items[:i], c.items[i+1:]...)
	}
}

// UpdateQuantity sets the quantity of an existing line and returns the quantity
// actually stored. quantity <= 0 removes the line. Digital lines are clamped to 1.
func (c *Cart) UpdateQuantity(productID string, quantity int) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if quantity <= 0 {
		c.removeLocked(productID)
		return 0, nil
	}

	i := c.indexOf(productID)
	if i < 0 {
		return 0, ErrItemNotFound
	}
	if c.items[i].Product.Type.IsDigital() {
		quantity = 1
	}
	c.items[i].Quantity = quantity
	return quantity, nil
}

func (c *Cart) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = nil
}

// Items returns a copy of the lines in insertion order.
func (c *Cart) Items() []domain.CartLineItem {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]domain.CartLineItem, len(c.items))
	copy(out, c.items)
	return out
}

func (c *Cart) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *Cart) IsEmpty() bool {
	return c.Len() == 0
}

// TotalItems is the sum of all quantities.
func (c *Cart) TotalItems() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	n := 0
	for _, it := range c.items {
		n += it.Quantity
	}
	return n
}

// TotalPrice is the sum of price × quantity. No currency conversion happens; a cart
// is expected to hold a single currency.
func (c *Cart) TotalPrice() decimal.Decimal {
	c.mu.RLock()
	defer c.mu.RUnlock()
	total := decimal.Zero
	for _, it := range c.items {
		total = total.Add(it.Subtotal())
	}
	return total
}

// Currencies lists the distinct currencies in the cart, in line order.
func (c *Cart) Currencies() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var out []string
	seen := make(map[string]bool)
	for _, it := range c.items {
		cur := strings.ToUpper(it.Product.Currency)
		if !seen[cur] {
			seen[cur] = true
			out = append(out, cur)
		}
	}
	return out
}

// Hash fingerprints the (product, quantity) lines. Any change to the cart changes
// the hash, which is what invalidates a previously created payment order.
func (c *Cart) Hash() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return hashLines(c.items)
}

func hashLines(items []domain.CartLineItem) string {
	h := sha256.New()
	for _, it := range items {
		fmt.Fprintf(h, "%s:%d;", it.Product.ID, it.Quantity)
	}
	return hex.EncodeToString(h.Sum(nil)[:16])
}

// Snapshot is a consistent copy of the cart taken under one lock.
type Snapshot struct {
	Items      []domain.CartLineItem
	TotalItems int
	Total      decimal.Decimal
	Hash       string
}

func (c *Cart) Snapshot() Snapshot {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.snapshotLocked()
}

// Take empties the cart and returns what it held.
func (c *Cart) Take() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.snapshotLocked()
	c.items = nil
	return s
}

// Subtract removes paid quantities from the cart and returns the cart as it was
// before. Lines that reach zero are removed; lines not in paid are kept.
func (c *Cart) Subtract(paid []domain.CartLineItem) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	before := c.snapshotLocked()

	for _, p := range paid {
		i := c.indexOf(p.Product.ID)
		if i < 0 {
			continue
		}
		if c.items[i].Quantity <= p.Quantity {
			c.removeLocked(p.Product.ID)
			continue
		}
		c.items[i].Quantity -= p.Quantity
	}
	return before
}

func (c *Cart) snapshotLocked() Snapshot {
	s := Snapshot{
		Items: make([]domain.CartLineItem, len(c.items)),
		Total: decimal.Zero,
		Hash:  hashLines(c.items),
	}
	copy(s.Items, c.items)
	for _, it := range c.items {
		s.TotalItems += it.Quantity
		s.Total = s.Total.Add(it.Subtotal())
	}
	return s
}
