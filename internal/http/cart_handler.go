package http

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/catalog"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/metrics"
	"github.com/fjod/go_cart/storefront/internal/publisher"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

type CartHandler struct {
	cart      *cart.Cart
	catalog   Catalog
	publisher publisher.Publisher
	metrics   *metrics.Metrics
	logger    logrus.FieldLogger
}

func NewCartHandler(c *cart.Cart, cat Catalog, pub publisher.Publisher, m *metrics.Metrics, logger logrus.FieldLogger) *CartHandler {
	if pub == nil {
		pub = publisher.NopPublisher{}
	}
	return &CartHandler{
		cart:      c,
		catalog:   cat,
		publisher: pub,
		metrics:   m,
		logger:    logger,
	}
}

type AddItemRequestDTO struct {
	ProductID string `json:"product_id"`
}

type UpdateQuantityRequestDTO struct {
	Quantity *int `json:"quantity"`
}

type CartItemDTO struct {
	ProductID   string             `json:"product_id"`
	Name        string             `json:"name"`
	ProductType domain.ProductType `json:"product_type"`
	UnitPrice   decimal.Decimal    `json:"unit_price"`
	Currency    string             `json:"currency"`
	Quantity    int                `json:"quantity"`
	Subtotal    decimal.Decimal    `json:"subtotal"`
}

type CartResponseDTO struct {
	Items      []CartItemDTO   `json:"items"`
	TotalItems int             `json:"total_items"`
	Total      decimal.Decimal `json:"total"`
	Currencies []string        `json:"currencies"`
	Hash       string          `json:"hash"`
}

type AddItemResponseDTO struct {
	Result string          `json:"result"`
	Cart   CartResponseDTO `json:"cart"`
}

func (h *CartHandler) snapshot() CartResponseDTO {
	snap := h.cart.Snapshot()
	out := CartResponseDTO{
		Items:      make([]CartItemDTO, 0, len(snap.Items)),
		TotalItems: snap.TotalItems,
		Total:      snap.Total,
		Currencies: []string{},
		Hash:       snap.Hash,
	}
	seen := make(map[string]bool)
	for _, it := range snap.Items {
		cur := strings.ToUpper(it.Product.Currency)
		out.Items = append(out.Items, CartItemDTO{
			ProductID:   it.Product.ID,
			Name:        it.Product.Name,
			ProductType: it.Product.Type,
			UnitPrice:   it.Product.Price,
			Currency:    cur,
			Quantity:    it.Quantity,
			Subtotal:    it.Subtotal(),
		})
		if !seen[cur] {
			seen[cur] = true
			out.Currencies = append(out.Currencies, cur)
		}
	}
	return out
}

// GET /api/v1/cart
func (h *CartHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.snapshot())
}

// POST /api/v1/cart/items
func (h *CartHandler) AddItem(w http.ResponseWriter, r *http.Request) {
	var req AddItemRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if strings.TrimSpace(req.ProductID) == "" {
		respondError(w, http.StatusBadRequest, "invalid_product_id", "product_id is required")
		return
	}

	p, err := h.catalog.Get(req.ProductID)
	if err != nil {
		if errors.Is(err, catalog.ErrProductNotFound) {
			respondError(w, http.StatusNotFound, "product_not_found", "product not found")
			return
		}
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
		return
	}

	res, err := h.cart.Add(p)
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid_product", err.Error())
		return
	}
	if h.metrics != nil {
		h.metrics.CartAdd(res.String())
	}
	h.publish(r, res, p)

	switch res {
	case cart.LimitReached:
		respondErrorDetails(w, http.StatusConflict, "digital_limit_reached",
			"digital products can be bought only once per order", p.ID)
	case cart.Incremented:
		respondJSON(w, http.StatusOK, AddItemResponseDTO{Result: res.String(), Cart: h.snapshot()})
	default:
		respondJSON(w, http.StatusCreated, AddItemResponseDTO{Result: res.String(), Cart: h.snapshot()})
	}
}

func (h *CartHandler) publish(r *http.Request, res cart.AddResult, p domain.Product) {
	ev := publisher.Event{
		Type: publisher.EventCartItemAdded,
		Key:  p.ID,
		Data: map[string]any{
			"product_id":   p.ID,
			"product_type": string(p.Type),
			"result":       res.String(),
			"request_id":   middleware.GetReqID(r.Context()),
		},
	}
	if res == cart.LimitReached {
		ev.Type = publisher.EventCartLimitReached
	}
	// The request context ends with the response; the event must outlive it.
	if err := h.publisher.Publish(context.WithoutCancel(r.Context()), ev); err != nil {
		h.logger.WithError(err).Debug("analytics event dropped")
	}
}

// PUT /api/v1/cart/items/{product_id}
func (h *CartHandler) UpdateQuantity(w http.ResponseWriter, r *http.Request) {
	productID := chi.URLParam(r, "product_id")

	var req UpdateQuantityRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if req.Quantity == nil {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity is required")
		return
	}
	if *req.Quantity > 99 {
		respondError(w, http.StatusBadRequest, "invalid_quantity", "quantity must not exceed 99")
		return
	}

	if _, err := h.cart.UpdateQuantity(productID, *req.Quantity); err != nil {
		if errors.Is(err, cart.ErrItemNotFound) {
			respondError(w, http.StatusNotFound, "item_not_found", "product is not in the cart")
			return
		}
		respondError(w, http.StatusBadRequest, "invalid_request", err.Error())
		return
	}
	respondJSON(w, http.StatusOK, h.snapshot())
}

// DELETE /api/v1/cart/items/{product_id}
func (h *CartHandler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	h.cart.Remove(chi.URLParam(r, "product_id"))
	respondJSON(w, http.StatusOK, h.snapshot())
}

// DELETE /api/v1/cart
func (h *CartHandler) ClearCart(w http.ResponseWriter, r *http.Request) {
	h.cart.Clear()
	respondJSON(w, http.StatusOK, h.snapshot())
}
