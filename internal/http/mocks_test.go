package http

import (
	"context"
	"sync"

	"github.com/fjod/go_cart/storefront/internal/checkout"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/tokenwatch"
)

type SessionMock struct {
	mu sync.Mutex

	user      *domain.User
	loginErr  error
	orders    []domain.Order
	ordersErr error
	refreshed int
	ensured   int
	resendErr error
	logouts   int
}

func (m *SessionMock) Login(_ context.Context, email, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.loginErr != nil {
		return m.loginErr
	}
	m.user = &domain.User{ID: "user-1", Email: email}
	return nil
}

func (m *SessionMock) Logout(context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logouts++
	m.user = nil
}

func (m *SessionMock) ResendConfirmation(context.Context, string) error {
	return m.resendErr
}

func (m *SessionMock) User() (domain.User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.user == nil {
		return domain.User{}, false
	}
	return *m.user, true
}

func (m *SessionMock) RefreshOrders(context.Context) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.refreshed++
	return m.orders, m.ordersErr
}

func (m *SessionMock) EnsureOrdersLoaded(context.Context) ([]domain.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ensured++
	return m.orders, m.ordersErr
}

func (m *SessionMock) FetchProfile(context.Context) (domain.User, error) {
	u, _ := m.User()
	return u, nil
}

func (m *SessionMock) UpdateProfile(_ context.Context, p domain.Profile) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.user.ApplyPatch(p.Patch())
	return *m.user, nil
}

type TokenStatusMock struct {
	status tokenwatch.Status
}

func (m TokenStatusMock) Status() tokenwatch.Status {
	return m.status
}

type CheckoutMock struct {
	pending    *checkout.PendingOrder
	createErr  error
	result     *checkout.Result
	captureErr error
	emails     []string
}

func (m *CheckoutMock) CreateOrder(_ context.Context, email string) (*checkout.PendingOrder, error) {
	m.emails = append(m.emails, email)
	if m.createErr != nil {
		return nil, m.createErr
	}
	return m.pending, nil
}

func (m *CheckoutMock) Capture(context.Context, string) (*checkout.Result, error) {
	return m.result, m.captureErr
}

func (m *CheckoutMock) Pending() (*checkout.PendingOrder, bool) {
	return m.pending, m.pending != nil
}
