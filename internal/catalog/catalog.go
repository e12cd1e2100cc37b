// Package catalog serves the static product list the storefront sells from.
package catalog

import (
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/fjod/go_cart/storefront/internal/domain"
)

var (
	ErrProductNotFound = errors.New("product not found")
	ErrInvalidCatalog  = errors.New("invalid catalog")
)

//go:embed products.json
var defaultProducts []byte

// Catalog is read-only after construction and safe for concurrent use.
type Catalog struct {
	products []domain.Product
	byID     map[string]int
}

// Default returns the catalog compiled into the binary.
func Default() (*Catalog, error) {
	return Parse(defaultProducts)
}

// Load reads a catalog file. An empty path falls back to Default.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}
	return Parse(data)
}

func Parse(data []byte) (*Catalog, error) {
	var products []domain.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCatalog, err)
	}

	c := &Catalog{
		products: make([]domain.Product, 0, len(products)),
		byID:     make(map[string]int, len(products)),
	}
	for _, p := range products {
		p.ID = strings.TrimSpace(p.ID)
		p.Currency = strings.ToUpper(strings.TrimSpace(p.Currency))
		p.Type = domain.ProductType(strings.ToUpper(string(p.Type)))

		switch {
		case p.ID == "":
			return nil, fmt.Errorf("%w: product without id", ErrInvalidCatalog)
		case p.Type != domain.ProductTypeDigital && p.Type != domain.ProductTypePhysical:
			return nil, fmt.Errorf("%w: product %s has unknown type %q", ErrInvalidCatalog, p.ID, p.Type)
		case p.Price.IsNegative():
			return nil, fmt.Errorf("%w: product %s has negative price", ErrInvalidCatalog, p.ID)
		case p.Currency == "":
			return nil, fmt.Errorf("%w: product %s has no currency", ErrInvalidCatalog, p.ID)
		}
		if _, dup := c.byID[p.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate product id %s", ErrInvalidCatalog, p.ID)
		}

		c.byID[p.ID] = len(c.products)
		c.products = append(c.products, p)
	}
	return c, nil
}

func (c *Catalog) Get(id string) (domain.Product, error) {
	i, ok := c.byID[strings.TrimSpace(id)]
	if !ok {
		return domain.Product{}, ErrProductNotFound
	}
	return cloneProduct(c.products[i]), nil
}

// List returns every product in file order.
func (c *Catalog) List() []domain.Product {
	out := make([]domain.Product, len(c.products))
	for i, p := range c.products {
		out[i] = cloneProduct(p)
	}
	return out
}

func cloneProduct(p domain.Product) domain.Product {
	p.Gallery = append([]string(nil), p.Gallery...)
	return p
}
