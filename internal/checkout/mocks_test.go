package checkout

import (
	"context"
	"fmt"
	"sync"

	"github.com/fjod/go_cart/storefront/internal/apiclient"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/publisher"
	"github.com/fjod/go_cart/storefront/internal/session"
)

type mockPayments struct {
	mu sync.Mutex

	createReqs []apiclient.CreateOrderRequest
	createErr  error
	nextID     int

	captureResp *apiclient.CaptureResponse
	captureErr  error
	captured    []string
}

func (m *mockPayments) CreatePaymentOrder(_ context.Context, req apiclient.CreateOrderRequest) (*apiclient.CreateOrderResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.createReqs = append(m.createReqs, req)
	if m.createErr != nil {
		return nil, m.createErr
	}
	m.nextID++
	return &apiclient.CreateOrderResponse{ProviderOrderID: fmt.Sprintf("PAY-%d", m.nextID)}, nil
}

func (m *mockPayments) CapturePaymentOrder(_ context.Context, id string) (*apiclient.CaptureResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.captured = append(m.captured, id)
	if m.captureErr != nil {
		return nil, m.captureErr
	}
	resp := *m.captureResp
	resp.ProviderOrderID = id
	return &resp, nil
}

type mockSession struct {
	mu     sync.Mutex
	user   *domain.User
	orders []session.OrderDraft
}

func (m *mockSession) User() (domain.User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return domain.User{}, false
	}
	return *m.user, true
}

func (m *mockSession) AddOrder(_ context.Context, d session.OrderDraft) (domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return domain.Order{}, session.ErrNotAuthenticated
	}
	m.orders = append(m.orders, d)
	return domain.Order{ID: fmt.Sprintf("local-%d", len(m.orders)), Items: d.Items, TotalAmount: d.TotalAmount, Status: d.Status}, nil
}

type mockPublisher struct {
	mu     sync.Mutex
	events []publisher.Event
}

func (m *mockPublisher) Publish(_ context.Context, ev publisher.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, ev)
	return nil
}

func (m *mockPublisher) Close() error { return nil }

type mockRecorder struct {
	mu       sync.Mutex
	outcomes []string
}

func (m *mockRecorder) Checkout(stage, outcome string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.outcomes = append(m.outcomes, stage+":"+outcome)
}
