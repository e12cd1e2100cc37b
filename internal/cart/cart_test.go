package cart

import (
	"sync"
	"testing"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func product(id string, price string, typ domain.ProductType) domain.Product {
	return domain.Product{
		ID:       id,
		Name:     "model " + id,
		Price:    decimal.RequireFromString(price),
		Currency: "EUR",
		Type:     typ,
	}
}

func TestAdd_DigitalOnlyOnce(t *testing.T) {
	c := New()
	d := product("stl-1", "9.90", domain.ProductTypeDigital)

	res, err := c.Add(d)
	require.NoError(t, err)
	assert.Equal(t, Added, res)

	for i := 0; i < 5; i++ {
		res, err = c.Add(d)
		require.NoError(t, err)
		assert.Equal(t, LimitReached, res)
	}

	items := c.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 1, items[0].Quantity)
	assert.Equal(t, "stl-1", items[0].Product.ID)
}

func TestAdd_PhysicalAccumulates(t *testing.T) {
	c := New()
	p := product("print-1", "25", domain.ProductTypePhysical)

	const n = 7
	for i := 0; i < n; i++ {
		res, err := c.Add(p)
		require.NoError(t, err)
		if i == 0 {
			assert.Equal(t, Added, res)
		} else {
			assert.Equal(t, Incremented, res)
		}
	}

	items := c.Items()
	require.Len(t, items, 1)
	assert.Equal(t, n, items[0].Quantity)
}

func TestAdd_InvalidProduct(t *testing.T) {
	c := New()
	_, err := c.Add(domain.Product{})
	assert.ErrorIs(t, err, ErrInvalidProduct)

	_, err = c.Add(product("x", "-1", domain.ProductTypePhysical))
	assert.ErrorIs(t, err, ErrInvalidProduct)
	assert.True(t, c.IsEmpty())
}

func TestTotals(t *testing.T) {
	c := New()
	a := product("A", "10", domain.ProductTypePhysical)
	b := product("B", "5", domain.ProductTypePhysical)

	_, _ = c.Add(a)
	_, _ = c.Add(a)
	_, _ = c.Add(b)

	assert.Equal(t, 3, c.TotalItems())
	assert.True(t, decimal.NewFromInt(25).Equal(c.TotalPrice()), c.TotalPrice().String())
}

func TestTotals_Empty(t *testing.T) {
	c := New()
	assert.Equal(t, 0, c.TotalItems())
	assert.True(t, c.TotalPrice().IsZero())
}

func TestItems_KeepInsertionOrder(t *testing.T) {
	c := New()
	for _, id := range []string{"c", "a", "b"} {
		_, _ = c.Add(product(id, "1", domain.ProductTypePhysical))
	}
	_, _ = c.Add(product("a", "1", domain.ProductTypePhysical))

	var ids []string
	for _, it := range c.Items() {
		ids = append(ids, it.Product.ID)
	}
	assert.Equal(t, []string{"c", "a", "b"}, ids)
}

func TestRemove_Idempotent(t *testing.T) {
	c := New()
	_, _ = c.Add(product("a", "1", domain.ProductTypePhysical))

	c.Remove("a")
	c.Remove("a")
	c.Remove("never-there")
	assert.True(t, c.IsEmpty())
}

func TestUpdateQuantity(t *testing.T) {
	c := New()
	_, _ = c.Add(product("p", "2", domain.ProductTypePhysical))
	_, _ = c.Add(product("d", "3", domain.ProductTypeDigital))

	q, err := c.UpdateQuantity("p", 4)
	require.NoError(t, err)
	assert.Equal(t, 4, q)

	q, err = c.UpdateQuantity("d", 4)
	require.NoError(t, err)
	assert.Equal(t, 1, q, "digital lines are clamped to one")

	assert.Equal(t, 5, c.TotalItems())

	q, err = c.UpdateQuantity("p", 0)
	require.NoError(t, err)
	assert.Equal(t, 0, q)
	assert.Equal(t, 1, c.Len())

	_, err = c.UpdateQuantity("missing", 2)
	assert.ErrorIs(t, err, ErrItemNotFound)

	_, err = c.UpdateQuantity("missing", -1)
	assert.NoError(t, err)
}

func TestClear(t *testing.T) {
	c := New()
	_, _ = c.Add(product("a", "1", domain.ProductTypePhysical))
	c.Clear()
	assert.True(t, c.IsEmpty())
	assert.Empty(t, c.Items())
}

func TestHash_ChangesWithCart(t *testing.T) {
	c := New()
	empty := c.Hash()

	_, _ = c.Add(product("a", "1", domain.ProductTypePhysical))
	one := c.Hash()
	assert.NotEqual(t, empty, one)

	_, _ = c.Add(product("a", "1", domain.ProductTypePhysical))
	two := c.Hash()
	assert.NotEqual(t, one, two)

	_, _ = c.UpdateQuantity("a", 1)
	assert.Equal(t, one, c.Hash())
}

func TestCurrencies(t *testing.T) {
	c := New()
	eur := product("a", "1", domain.ProductTypePhysical)
	usd := product("b", "1", domain.ProductTypePhysical)
	usd.Currency = "usd"
	_, _ = c.Add(eur)
	_, _ = c.Add(usd)
	_, _ = c.Add(eur)

	assert.Equal(t, []string{"EUR", "USD"}, c.Currencies())
}

func TestSnapshot(t *testing.T) {
	c := New()
	_, _ = c.Add(product("a", "10", domain.ProductTypePhysical))
	_, _ = c.Add(product("a", "10", domain.ProductTypePhysical))

	s := c.Snapshot()
	assert.Equal(t, 2, s.TotalItems)
	assert.True(t, decimal.NewFromInt(20).Equal(s.Total))
	assert.Equal(t, c.Hash(), s.Hash)

	c.Clear()
	assert.Len(t, s.Items, 1, "snapshot is independent from the cart")
}

func TestConcurrentAdds(t *testing.T) {
	c := New()
	p := product("p", "1", domain.ProductTypePhysical)
	d := product("d", "1", domain.ProductTypeDigital)

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, _ = c.Add(p)
		}()
		go func() {
			defer wg.Done()
			_, _ = c.Add(d)
		}()
	}
	wg.Wait()

	assert.Equal(t, 2, c.Len())
	assert.Equal(t, 51, c.TotalItems())
}

func TestTake_EmptiesAndReturnsContents(t *testing.T) {
	c := New()
	_, _ = c.Add(product("p1", "2.00", domain.ProductTypePhysical))
	_, _ = c.Add(product("p1", "2.00", domain.ProductTypePhysical))
	before := c.Hash()

	s := c.Take()

	assert.True(t, c.IsEmpty())
	require.Len(t, s.Items, 1)
	assert.Equal(t, 2, s.TotalItems)
	assert.True(t, decimal.RequireFromString("4.00").Equal(s.Total))
	assert.Equal(t, before, s.Hash)
}

func TestSubtract_KeepsUnpaidLines(t *testing.T) {
	c := New()
	_, _ = c.Add(product("stl-1", "9.90", domain.ProductTypeDigital))
	paid := c.Snapshot()

	_, _ = c.Add(product("p1", "2.00", domain.ProductTypePhysical))
	_, _ = c.Add(product("p1", "2.00", domain.ProductTypePhysical))

	before := c.Subtract(paid.Items)

	assert.NotEqual(t, paid.Hash, before.Hash)
	assert.Equal(t, 3, before.TotalItems)
	items := c.Items()
	require.Len(t, items, 1)
	assert.Equal(t, "p1", items[0].Product.ID)
	assert.Equal(t, 2, items[0].Quantity)
}

func TestSubtract_ReducesQuantities(t *testing.T) {
	c := New()
	p := product("p1", "2.00", domain.ProductTypePhysical)
	_, _ = c.Add(p)
	_, _ = c.Add(p)
	paid := c.Snapshot()
	_, _ = c.Add(p)

	c.Subtract(paid.Items)
	items := c.Items()
	require.Len(t, items, 1)
	assert.Equal(t, 1, items[0].Quantity)

	// paying more than is left removes the line
	c.Subtract(paid.Items)
	assert.True(t, c.IsEmpty())
}

func TestSubtract_SameCartEmptiesIt(t *testing.T) {
	c := New()
	_, _ = c.Add(product("stl-1", "9.90", domain.ProductTypeDigital))
	_, _ = c.Add(product("p1", "2.00", domain.ProductTypePhysical))
	paid := c.Snapshot()

	before := c.Subtract(paid.Items)
	assert.Equal(t, paid.Hash, before.Hash)
	assert.True(t, c.IsEmpty())
}
