// Package orders maps the backend's order history payloads onto domain.Order.
//
// Source schema, first present key wins:
//
//	id         orderNumber | id | orderId
//	date       createdAt | date | orderDate | updatedAt   (RFC3339 or epoch millis)
//	status     status | orderStatus                        (verbatim, default UNKNOWN)
//	total      totalAmount | total | amount                (computed from items when absent)
//	currency   currency                                    (default EUR)
//	items      items | orderItems | lines
//	productId  productId | product.id | id
//	name       productName | product.name | name
//	quantity   quantity | qty                              (default 1)
//	price      unitPrice | price | product.price
//
// The list itself may be a bare array or wrapped in orders, content or data.
package orders

import (
	"errors"
	"sort"
	"strings"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

var ErrMalformedPayload = errors.New("malformed order payload")

const (
	DefaultCurrency = "EUR"
	UnknownStatus   = "UNKNOWN"
)

var (
	listPaths     = []string{"orders", "content", "data"}
	idPaths       = []string{"orderNumber", "id", "orderId"}
	datePaths     = []string{"createdAt", "date", "orderDate", "updatedAt"}
	statusPaths   = []string{"status", "orderStatus"}
	totalPaths    = []string{"totalAmount", "total", "amount"}
	itemsPaths    = []string{"items", "orderItems", "lines"}
	productIDPath = []string{"productId", "product.id"}
	namePaths     = []string{"productName", "product.name", "name"}
	qtyPaths      = []string{"quantity", "qty"}
	pricePaths    = []string{"unitPrice", "price", "product.price"}
)

// Normalize parses an order history body. Orders come back newest first.
func Normalize(body []byte) ([]domain.Order, error) {
	if !gjson.ValidBytes(body) {
		return nil, ErrMalformedPayload
	}

	root := gjson.ParseBytes(body)
	list := root
	if !root.IsArray() {
		list = first(root, listPaths...)
		if !list.IsArray() {
			return nil, ErrMalformedPayload
		}
	}

	var out []domain.Order
	list.ForEach(func(_, v gjson.Result) bool {
		if v.IsObject() {
			out = append(out, NormalizeOne(v))
		}
		return true
	})

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.After(out[j].Date)
	})
	return out, nil
}

// NormalizeOne maps a single order object.
func NormalizeOne(v gjson.Result) domain.Order {
	o := domain.Order{
		ID:       first(v, idPaths...).String(),
		Date:     parseTime(first(v, datePaths...)),
		Status:   first(v, statusPaths...).String(),
		Currency: strings.ToUpper(v.Get("currency").String()),
	}
	if o.Status == "" {
		o.Status = UnknownStatus
	}
	if o.Currency == "" {
		o.Currency = DefaultCurrency
	}

	first(v, itemsPaths...).ForEach(func(_, item gjson.Result) bool {
		o.Items = append(o.Items, normalizeItem(item))
		return true
	})

	if total, ok := parseDecimal(first(v, totalPaths...)); ok {
		o.TotalAmount = total
	} else {
		for _, it := range o.Items {
			o.TotalAmount = o.TotalAmount.Add(it.Price.Mul(decimal.NewFromInt(int64(it.Quantity))))
		}
	}
	return o
}

func normalizeItem(v gjson.Result) domain.OrderItem {
	it := domain.OrderItem{
		ProductID:   first(v, productIDPath...).String(),
		ProductName: first(v, namePaths...).String(),
		Quantity:    1,
	}
	if q := first(v, qtyPaths...); q.Exists() {
		if n := int(q.Int()); n > 0 {
			it.Quantity = n
		}
	}
	if p, ok := parseDecimal(first(v, pricePaths...)); ok {
		it.Price = p
	}
	return it
}

func first(v gjson.Result, paths ...string) gjson.Result {
	for _, p := range paths {
		if r := v.Get(p); r.Exists() && r.Type != gjson.Null {
			return r
		}
	}
	return gjson.Result{}
}

// parseDecimal accepts JSON numbers and numeric strings.
func parseDecimal(v gjson.Result) (decimal.Decimal, bool) {
	switch v.Type {
	case gjson.Number:
		d, err := decimal.NewFromString(v.Raw)
		if err != nil {
			return decimal.NewFromFloat(v.Float()), true
		}
		return d, true
	case gjson.String:
		d, err := decimal.NewFromString(strings.TrimSpace(v.Str))
		return d, err == nil
	}
	return decimal.Decimal{}, false
}

func parseTime(v gjson.Result) time.Time {
	switch v.Type {
	case gjson.Number:
		return time.UnixMilli(v.Int()).UTC()
	case gjson.String:
		for _, layout := range []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"} {
			if t, err := time.Parse(layout, v.Str); err == nil {
				return t.UTC()
			}
		}
	}
	return time.Time{}
}
