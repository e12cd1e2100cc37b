// Package checkout turns the cart into a payment provider order and finalizes it
// once the provider reports the capture as completed.
package checkout

import (
	"context"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/apiclient"
	"github.com/fjod/go_cart/storefront/internal/cart"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/publisher"
	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/fjod/go_cart/storefront/internal/store"
	"github.com/sirupsen/logrus"
)

// recentOrders bounds how many created provider orders are remembered for capture.
const recentOrders = 8

type Payments interface {
	CreatePaymentOrder(ctx context.Context, req apiclient.CreateOrderRequest) (*apiclient.CreateOrderResponse, error)
	CapturePaymentOrder(ctx context.Context, providerOrderID string) (*apiclient.CaptureResponse, error)
}

type Session interface {
	User() (domain.User, bool)
	AddOrder(ctx context.Context, d session.OrderDraft) (domain.Order, error)
}

// Recorder receives checkout outcomes, typically *metrics.Metrics.
type Recorder interface {
	Checkout(stage, outcome string)
}

// PendingOrder is a provider order created for one cart state.
type PendingOrder struct {
	ProviderOrderID string        `json:"providerOrderId"`
	CartHash        string        `json:"cartHash"`
	Email           string        `json:"email"`
	Currency        string        `json:"currency"`
	Snapshot        cart.Snapshot `json:"-"`
	CreatedAt       time.Time     `json:"createdAt"`
}

// Result describes a completed capture.
type Result struct {
	ProviderOrderID string               `json:"providerOrderId"`
	Status          domain.CaptureStatus `json:"status"`
	Email           string               `json:"email"`
	Order           *domain.Order        `json:"order,omitempty"`
	// Superseded is set when the captured order was created for an older cart state.
	Superseded bool `json:"superseded"`
}

type Deps struct {
	Cart      *cart.Cart
	Session   Session
	Payments  Payments
	Store     store.Store
	Publisher publisher.Publisher
	Recorder  Recorder
	Logger    logrus.FieldLogger
}

type Flow struct {
	cart      *cart.Cart
	session   Session
	payments  Payments
	store     store.Store
	publisher publisher.Publisher
	recorder  Recorder
	logger    logrus.FieldLogger
	now       func() time.Time

	mu      sync.Mutex
	seq     uint64
	latest  uint64
	pending *PendingOrder
	created map[string]*PendingOrder
	order   []string
}

func New(d Deps) *Flow {
	f := &Flow{
		cart:      d.Cart,
		session:   d.Session,
		payments:  d.Payments,
		store:     d.Store,
		publisher: d.Publisher,
		recorder:  d.Recorder,
		logger:    d.Logger.WithField("component", "checkout"),
		now:       time.Now,
		created:   make(map[string]*PendingOrder),
	}
	if f.publisher == nil {
		f.publisher = publisher.NopPublisher{}
	}
	return f
}

// Pending returns the most recently created provider order.
func (f *Flow) Pending() (*PendingOrder, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.pending == nil {
		return nil, false
	}
	p := *f.pending
	return &p, true
}

func (f *Flow) record(stage, outcome string) {
	if f.recorder != nil {
		f.recorder.Checkout(stage, outcome)
	}
}

// remember stores p and makes it the pending order unless a later CreateOrder
// call already finished.
func (f *Flow) remember(seq uint64, p *PendingOrder) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.created[p.ProviderOrderID] = p
	f.order = append(f.order, p.ProviderOrderID)
	if len(f.order) > recentOrders {
		delete(f.created, f.order[0])
		f.order = f.order[1:]
	}
	if seq >= f.latest {
		f.latest = seq
		f.pending = p
	}
}

func (f *Flow) lookup(providerOrderID string) (*PendingOrder, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.created[providerOrderID]
	return p, ok
}

func (f *Flow) forget(providerOrderID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.created, providerOrderID)
	for i, id := range f.order {
		if id == providerOrderID {
			f.order = append(f.order[:i], f.order[i+1:]...)
			break
		}
	}
	if f.pending != nil && f.pending.ProviderOrderID == providerOrderID {
		f.pending = nil
	}
}
