package session

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/fjod/go_cart/storefront/internal/apiclient"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/events"
	"github.com/fjod/go_cart/storefront/internal/logging"
	"github.com/fjod/go_cart/storefront/internal/store"
	"github.com/golang-jwt/jwt/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockAPI is a hand-written API double guarded by a mutex.
type mockAPI struct {
	mu sync.Mutex

	loginResp *apiclient.LoginResponse
	loginErr  error
	logoutErr error

	ordersBody  []byte
	ordersErr   error
	ordersGate  chan struct{}
	ordersCalls int

	profile    *domain.ProfilePatch
	profileErr error

	token       string
	logoutCalls int
	resent      []string
}

func (m *mockAPI) Login(_ context.Context, _, _ string) (*apiclient.LoginResponse, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.loginResp, m.loginErr
}

func (m *mockAPI) Logout(_ context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logoutCalls++
	return m.logoutErr
}

func (m *mockAPI) ResendConfirmation(_ context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resent = append(m.resent, email)
	return nil
}

func (m *mockAPI) MyOrders(_ context.Context) ([]byte, error) {
	m.mu.Lock()
	m.ordersCalls++
	gate := m.ordersGate
	m.mu.Unlock()
	if gate != nil {
		<-gate
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.ordersBody, m.ordersErr
}

func (m *mockAPI) GetProfile(_ context.Context) (*domain.ProfilePatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.profile, m.profileErr
}

func (m *mockAPI) UpdateProfile(_ context.Context, p domain.Profile) (*domain.ProfilePatch, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.profileErr != nil {
		return nil, m.profileErr
	}
	patch := p.Patch()
	return &patch, nil
}

func str(s string) *string { return &s }

func (m *mockAPI) SetToken(token string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = token
}

func (m *mockAPI) ClearToken() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
}

func (m *mockAPI) Token() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.token
}

func signToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "user-1",
		ExpiresAt: jwt.NewNumericDate(exp),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return tok
}

func setupSession(t *testing.T) (*Session, *mockAPI, *store.MemoryStore, *events.Bus[domain.LogoutSignal]) {
	t.Helper()
	api := &mockAPI{
		loginResp: &apiclient.LoginResponse{
			Token: signToken(t, time.Now().Add(time.Hour)),
			ID:    "user-1",
			Email: "jane@example.com",
		},
	}
	st := store.NewMemoryStore(store.DefaultPrefix)
	bus := events.NewBus[domain.LogoutSignal](logging.Discard())
	s := New(api, st, bus, logging.Discard())
	t.Cleanup(s.Close)
	return s, api, st, bus
}

func login(t *testing.T, s *Session) {
	t.Helper()
	require.NoError(t, s.Login(context.Background(), "jane@example.com", "secret-pass"))
}

func TestLogin_Success(t *testing.T) {
	s, api, st, _ := setupSession(t)
	ctx := context.Background()

	login(t, s)

	u, ok := s.User()
	require.True(t, ok)
	assert.Equal(t, "user-1", u.ID)
	assert.Equal(t, "jane@example.com", u.Email)
	assert.Equal(t, api.loginResp.Token, s.Token())
	assert.Equal(t, api.loginResp.Token, api.Token())
	assert.False(t, s.OrdersLoaded())

	var persisted domain.User
	require.NoError(t, st.Get(ctx, store.KeyUser, &persisted))
	assert.Equal(t, "user-1", persisted.ID)
	var token string
	require.NoError(t, st.Get(ctx, store.KeyToken, &token))
	assert.Equal(t, api.loginResp.Token, token)
}

func TestLogin_Validation(t *testing.T) {
	s, _, _, _ := setupSession(t)
	ctx := context.Background()

	assert.ErrorIs(t, s.Login(ctx, "not-an-email", "secret-pass"), ErrInvalidEmail)
	assert.ErrorIs(t, s.Login(ctx, "jane@example.com", "short"), ErrPasswordTooShort)
	assert.False(t, s.IsAuthenticated())
}

func TestLogin_TaggedErrors(t *testing.T) {
	no := false
	tests := []struct {
		name     string
		resp     *apiclient.LoginResponse
		err      error
		wantKind LoginErrorKind
		sentinel error
	}{
		{
			name:     "wrong password",
			err:      &apiclient.APIError{Status: http.StatusUnauthorized, Message: "bad credentials"},
			wantKind: InvalidCredentials,
			sentinel: ErrInvalidCredentials,
		},
		{
			name:     "unknown account",
			err:      &apiclient.APIError{Status: http.StatusNotFound},
			wantKind: InvalidCredentials,
			sentinel: ErrInvalidCredentials,
		},
		{
			name:     "unconfirmed by code",
			err:      &apiclient.APIError{Status: http.StatusForbidden, Code: "EMAIL_NOT_CONFIRMED"},
			wantKind: EmailNotConfirmed,
			sentinel: ErrEmailNotConfirmed,
		},
		{
			name:     "unconfirmed by flag",
			resp:     &apiclient.LoginResponse{Token: "tok", ID: "u", EmailConfirmed: &no},
			wantKind: EmailNotConfirmed,
			sentinel: ErrEmailNotConfirmed,
		},
		{
			name:     "server down",
			err:      &apiclient.APIError{Status: http.StatusServiceUnavailable},
			wantKind: Unavailable,
			sentinel: ErrLoginUnavailable,
		},
		{
			name:     "transport failure",
			err:      errors.New("connection refused"),
			wantKind: Unavailable,
			sentinel: ErrLoginUnavailable,
		},
		{
			name:     "empty token",
			resp:     &apiclient.LoginResponse{ID: "u"},
			wantKind: Unavailable,
			sentinel: ErrLoginUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, api, st, _ := setupSession(t)
			api.loginResp = tt.resp
			api.loginErr = tt.err

			err := s.Login(context.Background(), "jane@example.com", "secret-pass")

			var le *LoginError
			require.ErrorAs(t, err, &le)
			assert.Equal(t, tt.wantKind, le.Kind)
			assert.ErrorIs(t, err, tt.sentinel)
			assert.False(t, s.IsAuthenticated())
			assert.Empty(t, api.Token())

			var token string
			assert.ErrorIs(t, st.Get(context.Background(), store.KeyToken, &token), store.ErrNotFound)
		})
	}
}

func TestLogout_ClearsEverything(t *testing.T) {
	s, api, st, bus := setupSession(t)
	ctx := context.Background()
	login(t, s)

	var got []domain.LogoutSignal
	var mu sync.Mutex
	unsub := bus.Subscribe(func(sig domain.LogoutSignal) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, sig)
	})
	defer unsub()

	s.Logout(ctx)

	assert.False(t, s.IsAuthenticated())
	assert.Empty(t, s.Token())
	assert.Empty(t, api.Token())
	assert.Equal(t, 1, api.logoutCalls)

	var u domain.User
	assert.ErrorIs(t, st.Get(ctx, store.KeyUser, &u), store.ErrNotFound)
	var token string
	assert.ErrorIs(t, st.Get(ctx, store.KeyToken, &token), store.ErrNotFound)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, domain.LogoutReasonUser, got[0].Reason)
}

func TestLogout_BackendFailureStillClears(t *testing.T) {
	s, api, _, _ := setupSession(t)
	login(t, s)
	api.logoutErr = errors.New("boom")

	s.Logout(context.Background())

	assert.False(t, s.IsAuthenticated())
	assert.Empty(t, api.Token())
}

func TestLogoutSignal_ClearsSession(t *testing.T) {
	for _, reason := range []domain.LogoutReason{domain.LogoutReasonTokenExpired, domain.LogoutReasonAPIError} {
		t.Run(string(reason), func(t *testing.T) {
			s, api, st, bus := setupSession(t)
			login(t, s)

			bus.Publish(domain.LogoutSignal{Reason: reason, At: time.Now()})

			assert.False(t, s.IsAuthenticated())
			assert.Empty(t, api.Token())
			var u domain.User
			assert.ErrorIs(t, st.Get(context.Background(), store.KeyUser, &u), store.ErrNotFound)
		})
	}
}

func TestLogoutSignal_UserReasonIgnored(t *testing.T) {
	s, _, _, bus := setupSession(t)
	login(t, s)

	bus.Publish(domain.LogoutSignal{Reason: domain.LogoutReasonUser})

	assert.True(t, s.IsAuthenticated())
}

func TestRestore(t *testing.T) {
	ctx := context.Background()

	t.Run("usable token", func(t *testing.T) {
		s, api, st, _ := setupSession(t)
		tok := signToken(t, time.Now().Add(time.Hour))
		require.NoError(t, st.Set(ctx, store.KeyUser, domain.User{ID: "user-1", Email: "jane@example.com"}))
		require.NoError(t, st.Set(ctx, store.KeyToken, tok))

		require.NoError(t, s.Restore(ctx))

		assert.True(t, s.IsAuthenticated())
		assert.Equal(t, tok, api.Token())
	})

	t.Run("expired token", func(t *testing.T) {
		s, api, st, _ := setupSession(t)
		require.NoError(t, st.Set(ctx, store.KeyUser, domain.User{ID: "user-1", Email: "jane@example.com"}))
		require.NoError(t, st.Set(ctx, store.KeyToken, signToken(t, time.Now().Add(-time.Minute))))

		require.NoError(t, s.Restore(ctx))

		assert.False(t, s.IsAuthenticated())
		assert.Empty(t, api.Token())
		var u domain.User
		assert.ErrorIs(t, st.Get(ctx, store.KeyUser, &u), store.ErrNotFound)
	})

	t.Run("user without token", func(t *testing.T) {
		s, _, st, _ := setupSession(t)
		require.NoError(t, st.Set(ctx, store.KeyUser, domain.User{ID: "user-1"}))

		require.NoError(t, s.Restore(ctx))

		assert.False(t, s.IsAuthenticated())
		var u domain.User
		assert.ErrorIs(t, st.Get(ctx, store.KeyUser, &u), store.ErrNotFound)
	})

	t.Run("nothing stored", func(t *testing.T) {
		s, _, _, _ := setupSession(t)
		require.NoError(t, s.Restore(ctx))
		assert.False(t, s.IsAuthenticated())
	})
}

const ordersPayload = `[
	{"id": "o-1", "date": "2026-01-10T10:00:00Z", "status": "COMPLETED",
	 "items": [{"productId": "p-1", "productName": "Ebook", "quantity": 1, "price": 9.99}]},
	{"orderId": "o-2", "createdAt": "2026-03-01T08:00:00Z", "totalAmount": "25.00", "currency": "usd"}
]`

func TestRefreshOrders(t *testing.T) {
	s, api, st, _ := setupSession(t)
	ctx := context.Background()
	login(t, s)
	api.ordersBody = []byte(ordersPayload)

	list, err := s.RefreshOrders(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "o-2", list[0].ID)
	assert.Equal(t, "o-1", list[1].ID)
	assert.True(t, s.OrdersLoaded())

	var persisted domain.User
	require.NoError(t, st.Get(ctx, store.KeyUser, &persisted))
	assert.Len(t, persisted.Orders, 2)
}

func TestRefreshOrders_NotAuthenticated(t *testing.T) {
	s, _, _, _ := setupSession(t)

	_, err := s.RefreshOrders(context.Background())
	assert.ErrorIs(t, err, ErrNotAuthenticated)
}

func TestRefreshOrders_StaleResultDropped(t *testing.T) {
	s, api, st, _ := setupSession(t)
	ctx := context.Background()
	login(t, s)
	api.ordersBody = []byte(ordersPayload)
	api.ordersGate = make(chan struct{})

	errCh := make(chan error, 1)
	go func() {
		_, err := s.RefreshOrders(ctx)
		errCh <- err
	}()

	require.Eventually(t, func() bool {
		api.mu.Lock()
		defer api.mu.Unlock()
		return api.ordersCalls == 1
	}, time.Second, 5*time.Millisecond)

	s.Logout(ctx)
	close(api.ordersGate)

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, ErrSessionChanged)
	case <-time.After(2 * time.Second):
		t.Fatal("refresh did not return")
	}

	assert.False(t, s.IsAuthenticated())
	assert.False(t, s.OrdersLoaded())
	var u domain.User
	assert.ErrorIs(t, st.Get(ctx, store.KeyUser, &u), store.ErrNotFound)
}

func TestRefreshOrders_StaleResultDoesNotLeakIntoNewLogin(t *testing.T) {
	s, api, _, _ := setupSession(t)
	ctx := context.Background()
	login(t, s)
	api.ordersBody = []byte(ordersPayload)
	api.ordersGate = make(chan struct{})

	errCh := make(chan error, 1)
	go func() {
		_, err := s.RefreshOrders(ctx)
		errCh <- err
	}()
	require.Eventually(t, func() bool {
		api.mu.Lock()
		defer api.mu.Unlock()
		return api.ordersCalls == 1
	}, time.Second, 5*time.Millisecond)

	s.Logout(ctx)
	login(t, s)
	close(api.ordersGate)

	assert.ErrorIs(t, <-errCh, ErrSessionChanged)
	u, ok := s.User()
	require.True(t, ok)
	assert.Empty(t, u.Orders)
	assert.False(t, s.OrdersLoaded())
}

func TestEnsureOrdersLoaded_FetchesOnce(t *testing.T) {
	s, api, _, _ := setupSession(t)
	ctx := context.Background()
	login(t, s)
	api.ordersBody = []byte(ordersPayload)

	_, err := s.EnsureOrdersLoaded(ctx)
	require.NoError(t, err)
	list, err := s.EnsureOrdersLoaded(ctx)
	require.NoError(t, err)

	assert.Len(t, list, 2)
	assert.Equal(t, 1, api.ordersCalls)
}

func TestAddOrder(t *testing.T) {
	s, _, st, _ := setupSession(t)
	ctx := context.Background()

	_, err := s.AddOrder(ctx, OrderDraft{})
	assert.ErrorIs(t, err, ErrNotAuthenticated)

	login(t, s)
	o, err := s.AddOrder(ctx, OrderDraft{
		Items:       []domain.OrderItem{{ProductID: "p-1", ProductName: "Ebook", Quantity: 1, Price: decimal.RequireFromString("9.99")}},
		TotalAmount: decimal.RequireFromString("9.99"),
		Currency:    "EUR",
		Status:      "COMPLETED",
	})
	require.NoError(t, err)
	assert.NotEmpty(t, o.ID)
	assert.False(t, o.Date.IsZero())

	u, _ := s.User()
	require.Len(t, u.Orders, 1)
	assert.Equal(t, o.ID, u.Orders[0].ID)

	var persisted domain.User
	require.NoError(t, st.Get(ctx, store.KeyUser, &persisted))
	require.Len(t, persisted.Orders, 1)
	assert.True(t, persisted.Orders[0].TotalAmount.Equal(decimal.RequireFromString("9.99")))
}

func TestUpdateProfile_KeepsIdentityAndOrders(t *testing.T) {
	s, _, _, _ := setupSession(t)
	ctx := context.Background()
	login(t, s)
	_, err := s.AddOrder(ctx, OrderDraft{Currency: "EUR", Status: "COMPLETED"})
	require.NoError(t, err)

	u, err := s.UpdateProfile(ctx, domain.Profile{
		FirstName: "Jane",
		LastName:  "Doe",
		Address:   domain.Address{City: "Berlin", Country: "DE"},
	})
	require.NoError(t, err)

	assert.Equal(t, "user-1", u.ID)
	assert.Equal(t, "jane@example.com", u.Email)
	assert.Equal(t, "Jane", u.FirstName)
	assert.Equal(t, "Berlin", u.Address.City)
	assert.Len(t, u.Orders, 1)
}

func TestFetchProfile(t *testing.T) {
	s, api, _, _ := setupSession(t)
	login(t, s)
	api.profile = &domain.ProfilePatch{Phone: str("+49 30 1234")}

	u, err := s.FetchProfile(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "user-1", u.ID)
	assert.Equal(t, "+49 30 1234", u.Phone)
}

func TestFetchProfile_PartialResponseKeepsStoredFields(t *testing.T) {
	s, api, st, _ := setupSession(t)
	ctx := context.Background()
	login(t, s)

	_, err := s.UpdateProfile(ctx, domain.Profile{
		FirstName: "Jana",
		Phone:     "+420123",
		Address:   domain.Address{City: "Brno"},
	})
	require.NoError(t, err)

	api.profile = &domain.ProfilePatch{FirstName: str("Jana"), LastName: str("Novak")}
	u, err := s.FetchProfile(ctx)
	require.NoError(t, err)

	assert.Equal(t, "Novak", u.LastName)
	assert.Equal(t, "+420123", u.Phone)
	assert.Equal(t, "Brno", u.Address.City)

	var persisted domain.User
	require.NoError(t, st.Get(ctx, store.KeyUser, &persisted))
	assert.Equal(t, "+420123", persisted.Phone)
	assert.Equal(t, "Brno", persisted.Address.City)
}

func TestResendConfirmation(t *testing.T) {
	s, api, _, _ := setupSession(t)
	ctx := context.Background()

	assert.ErrorIs(t, s.ResendConfirmation(ctx, "nope"), ErrInvalidEmail)
	require.NoError(t, s.ResendConfirmation(ctx, " jane@example.com "))
	assert.Equal(t, []string{"jane@example.com"}, api.resent)
}
