// Package session owns the signed-in identity: user, bearer token and the cached
// order history. State lives in memory and is mirrored to a store.Store so that a
// restart of the agent keeps the shopper signed in.
//
// Every login and logout bumps a generation counter. Results of requests that were
// started under an older generation are dropped instead of being applied to a
// session that has since ended.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/apiclient"
	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/events"
	"github.com/fjod/go_cart/storefront/internal/orders"
	"github.com/fjod/go_cart/storefront/internal/store"
	"github.com/fjod/go_cart/storefront/internal/tokenwatch"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"
)

// API is the part of the backend client the session needs.
type API interface {
	Login(ctx context.Context, email, password string) (*apiclient.LoginResponse, error)
	Logout(ctx context.Context) error
	ResendConfirmation(ctx context.Context, email string) error
	MyOrders(ctx context.Context) ([]byte, error)
	GetProfile(ctx context.Context) (*domain.ProfilePatch, error)
	UpdateProfile(ctx context.Context, p domain.Profile) (*domain.ProfilePatch, error)
	SetToken(token string)
	ClearToken()
}

const emailNotConfirmedCode = "EMAIL_NOT_CONFIRMED"

// OrderDraft is an order recorded locally right after a successful capture.
type OrderDraft struct {
	Items       []domain.OrderItem
	TotalAmount decimal.Decimal
	Currency    string
	Status      string
}

type Session struct {
	api     API
	store   store.Store
	signals *events.Bus[domain.LogoutSignal]
	logger  logrus.FieldLogger
	now     func() time.Time

	mu           sync.RWMutex
	user         *domain.User
	token        string
	generation   uint64
	ordersLoaded bool

	refresh     singleflight.Group
	unsubscribe func()
}

func New(api API, st store.Store, signals *events.Bus[domain.LogoutSignal], logger logrus.FieldLogger) *Session {
	s := &Session{
		api:     api,
		store:   st,
		signals: signals,
		logger:  logger.WithField("component", "session"),
		now:     time.Now,
	}
	if signals != nil {
		s.unsubscribe = signals.Subscribe(s.onLogoutSignal)
	}
	return s
}

// Close detaches the session from the logout signal bus.
func (s *Session) Close() {
	if s.unsubscribe != nil {
		s.unsubscribe()
	}
}

func (s *Session) onLogoutSignal(sig domain.LogoutSignal) {
	if sig.Reason == domain.LogoutReasonUser {
		return
	}
	if s.clear(context.Background()) {
		s.logger.WithField("reason", sig.Reason).Info("session ended")
	}
}

// Restore loads the persisted user and token. Both are dropped when only one of
// them is present or the token can no longer be used.
func (s *Session) Restore(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var u domain.User
	var token string
	userErr := s.store.Get(ctx, store.KeyUser, &u)
	tokenErr := s.store.Get(ctx, store.KeyToken, &token)

	if errors.Is(userErr, store.ErrNotFound) && errors.Is(tokenErr, store.ErrNotFound) {
		return nil
	}
	if userErr == nil && tokenErr == nil && u.ID != "" && tokenwatch.IsUsable(token, s.now()) {
		s.generation++
		s.user = &u
		s.token = token
		s.ordersLoaded = false
		s.api.SetToken(token)
		s.logger.WithField("user_id", u.ID).Info("session restored")
		return nil
	}

	s.logger.Info("discarding stale persisted session")
	if err := s.store.Delete(ctx, store.KeyUser, store.KeyToken); err != nil {
		return fmt.Errorf("drop stale session: %w", err)
	}
	return nil
}

// Login validates the input locally, then signs in. Failures come back as
// *LoginError; validation failures as ErrInvalidEmail / ErrPasswordTooShort.
func (s *Session) Login(ctx context.Context, email, password string) error {
	email = strings.TrimSpace(email)
	if err := ValidateCredentials(email, password); err != nil {
		return err
	}

	resp, err := s.api.Login(ctx, email, password)
	if err != nil {
		return classifyLoginError(err)
	}
	if resp.EmailConfirmed != nil && !*resp.EmailConfirmed {
		return &LoginError{Kind: EmailNotConfirmed}
	}
	if resp.Token == "" {
		return &LoginError{Kind: Unavailable, Err: apiclient.ErrBadResponse}
	}

	u := domain.User{ID: resp.ID, Email: resp.Email}
	if u.Email == "" {
		u.Email = email
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.generation++
	s.user = &u
	s.token = resp.Token
	s.ordersLoaded = false
	s.api.SetToken(resp.Token)
	s.persistLocked(ctx)

	s.logger.WithField("user_id", u.ID).Info("signed in")
	return nil
}

func classifyLoginError(err error) error {
	var apiErr *apiclient.APIError
	if errors.As(err, &apiErr) {
		switch {
		case strings.EqualFold(apiErr.Code, emailNotConfirmedCode):
			return &LoginError{Kind: EmailNotConfirmed, Err: err}
		case apiErr.Status == http.StatusUnauthorized,
			apiErr.Status == http.StatusBadRequest,
			apiErr.Status == http.StatusNotFound:
			return &LoginError{Kind: InvalidCredentials, Err: err}
		}
	}
	return &LoginError{Kind: Unavailable, Err: err}
}

func (s *Session) ResendConfirmation(ctx context.Context, email string) error {
	email = strings.TrimSpace(email)
	if err := ValidateEmail(email); err != nil {
		return err
	}
	return s.api.ResendConfirmation(ctx, email)
}

// Logout tells the backend (best effort) and then always clears local state.
func (s *Session) Logout(ctx context.Context) {
	if s.IsAuthenticated() {
		if err := s.api.Logout(ctx); err != nil {
			s.logger.WithError(err).Warn("backend logout failed, clearing local session anyway")
		}
	}
	s.clear(ctx)
	s.logger.Info("signed out")
	if s.signals != nil {
		s.signals.Publish(domain.LogoutSignal{Reason: domain.LogoutReasonUser, At: s.now()})
	}
}

// clear drops user and token from memory, the API client and the store. It reports
// whether there was anything to clear.
func (s *Session) clear(ctx context.Context) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	had := s.user != nil || s.token != ""
	s.generation++
	s.user = nil
	s.token = ""
	s.ordersLoaded = false
	s.api.ClearToken()

	if err := s.store.Delete(ctx, store.KeyUser, store.KeyToken); err != nil {
		s.logger.WithError(err).Error("failed to delete persisted session")
	}
	return had
}

// persistLocked writes user and token. Callers hold s.mu so a concurrent clear
// cannot interleave with the write.
func (s *Session) persistLocked(ctx context.Context) {
	if s.user == nil {
		return
	}
	if err := s.store.Set(ctx, store.KeyUser, s.user); err != nil {
		s.logger.WithError(err).Error("failed to persist user")
	}
	if err := s.store.Set(ctx, store.KeyToken, s.token); err != nil {
		s.logger.WithError(err).Error("failed to persist token")
	}
}

// RefreshOrders replaces the cached order history with the backend's. Concurrent
// calls for the same session share one request. When the session changed while the
// request was in flight the result is dropped and ErrSessionChanged returned.
func (s *Session) RefreshOrders(ctx context.Context) ([]domain.Order, error) {
	s.mu.RLock()
	gen := s.generation
	authed := s.user != nil
	s.mu.RUnlock()
	if !authed {
		return nil, ErrNotAuthenticated
	}

	v, err, _ := s.refresh.Do(strconv.FormatUint(gen, 10), func() (interface{}, error) {
		body, err := s.api.MyOrders(ctx)
		if err != nil {
			return nil, fmt.Errorf("fetch orders: %w", err)
		}
		list, err := orders.Normalize(body)
		if err != nil {
			return nil, fmt.Errorf("parse orders: %w", err)
		}

		s.mu.Lock()
		defer s.mu.Unlock()
		if s.generation != gen || s.user == nil {
			return nil, ErrSessionChanged
		}
		s.user.Orders = list
		s.ordersLoaded = true
		s.persistLocked(ctx)
		return cloneOrders(list), nil
	})
	if err != nil {
		if !errors.Is(err, ErrSessionChanged) {
			s.logger.WithError(err).Warn("order refresh failed")
		}
		return nil, err
	}
	return cloneOrders(v.([]domain.Order)), nil
}

// EnsureOrdersLoaded fetches the order history the first time it is asked for and
// serves the cached copy afterwards.
func (s *Session) EnsureOrdersLoaded(ctx context.Context) ([]domain.Order, error) {
	s.mu.RLock()
	if s.user == nil {
		s.mu.RUnlock()
		return nil, ErrNotAuthenticated
	}
	if s.ordersLoaded {
		list := cloneOrders(s.user.Orders)
		s.mu.RUnlock()
		return list, nil
	}
	s.mu.RUnlock()
	return s.RefreshOrders(ctx)
}

// AddOrder records an order locally, with a generated id and the current time.
func (s *Session) AddOrder(ctx context.Context, d OrderDraft) (domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return domain.Order{}, ErrNotAuthenticated
	}

	o := domain.Order{
		ID:          uuid.NewString(),
		Date:        s.now().UTC(),
		Items:       append([]domain.OrderItem(nil), d.Items...),
		TotalAmount: d.TotalAmount,
		Currency:    d.Currency,
		Status:      d.Status,
	}
	s.user.Orders = append(s.user.Orders, o)
	s.persistLocked(ctx)
	return o, nil
}

// FetchProfile merges the backend profile into the user. ID, email and orders are
// kept as they are, as is any field the response leaves out.
func (s *Session) FetchProfile(ctx context.Context) (domain.User, error) {
	return s.mergeProfile(ctx, func(ctx context.Context) (*domain.ProfilePatch, error) {
		return s.api.GetProfile(ctx)
	})
}

func (s *Session) UpdateProfile(ctx context.Context, p domain.Profile) (domain.User, error) {
	return s.mergeProfile(ctx, func(ctx context.Context) (*domain.ProfilePatch, error) {
		return s.api.UpdateProfile(ctx, p)
	})
}

func (s *Session) mergeProfile(ctx context.Context, fetch func(context.Context) (*domain.ProfilePatch, error)) (domain.User, error) {
	s.mu.RLock()
	gen := s.generation
	authed := s.user != nil
	s.mu.RUnlock()
	if !authed {
		return domain.User{}, ErrNotAuthenticated
	}

	remote, err := fetch(ctx)
	if err != nil {
		return domain.User{}, fmt.Errorf("profile request: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.generation != gen || s.user == nil {
		return domain.User{}, ErrSessionChanged
	}
	s.user.ApplyPatch(*remote)
	s.persistLocked(ctx)
	return cloneUser(*s.user), nil
}

// User returns a copy of the signed-in user.
func (s *Session) User() (domain.User, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return domain.User{}, false
	}
	return cloneUser(*s.user), true
}

func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

func (s *Session) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user != nil
}

func (s *Session) OrdersLoaded() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.ordersLoaded
}

func cloneUser(u domain.User) domain.User {
	u.Orders = cloneOrders(u.Orders)
	return u
}

func cloneOrders(in []domain.Order) []domain.Order {
	if in == nil {
		return nil
	}
	out := make([]domain.Order, len(in))
	for i, o := range in {
		o.Items = append([]domain.OrderItem(nil), o.Items...)
		out[i] = o
	}
	return out
}
