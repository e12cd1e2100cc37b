package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/session"
	"github.com/fjod/go_cart/storefront/internal/tokenwatch"
	"github.com/sirupsen/logrus"
)

type SessionService interface {
	Login(ctx context.Context, email, password string) error
	Logout(ctx context.Context)
	ResendConfirmation(ctx context.Context, email string) error
	User() (domain.User, bool)
	RefreshOrders(ctx context.Context) ([]domain.Order, error)
	EnsureOrdersLoaded(ctx context.Context) ([]domain.Order, error)
	FetchProfile(ctx context.Context) (domain.User, error)
	UpdateProfile(ctx context.Context, p domain.Profile) (domain.User, error)
}

type TokenStatus interface {
	Status() tokenwatch.Status
}

type SessionHandler struct {
	session SessionService
	tokens  TokenStatus
	notice  *SessionNotice
	timeout time.Duration
	logger  logrus.FieldLogger
}

func NewSessionHandler(s SessionService, tokens TokenStatus, notice *SessionNotice, timeout time.Duration, logger logrus.FieldLogger) *SessionHandler {
	return &SessionHandler{
		session: s,
		tokens:  tokens,
		notice:  notice,
		timeout: timeout,
		logger:  logger,
	}
}

type LoginRequestDTO struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type EmailRequestDTO struct {
	Email string `json:"email"`
}

type TokenStatusDTO struct {
	State            string     `json:"state"`
	ExpiresAt        *time.Time `json:"expires_at,omitempty"`
	RemainingSeconds int64      `json:"remaining_seconds"`
}

type NoticeDTO struct {
	Reason domain.LogoutReason `json:"reason"`
	At     time.Time           `json:"at"`
}

type SessionResponseDTO struct {
	Authenticated bool           `json:"authenticated"`
	User          *domain.User   `json:"user,omitempty"`
	Token         TokenStatusDTO `json:"token"`
	Notice        *NoticeDTO     `json:"notice,omitempty"`
}

type OrdersResponseDTO struct {
	Orders []domain.Order `json:"orders"`
}

// GET /api/v1/session
func (h *SessionHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, h.describe())
}

func (h *SessionHandler) describe() SessionResponseDTO {
	var out SessionResponseDTO
	if u, ok := h.session.User(); ok {
		out.Authenticated = true
		out.User = &u
	}

	out.Token.State = tokenwatch.NoToken.String()
	if h.tokens != nil {
		st := h.tokens.Status()
		out.Token.State = st.State.String()
		out.Token.RemainingSeconds = int64(st.Remaining / time.Second)
		if !st.ExpiresAt.IsZero() {
			exp := st.ExpiresAt
			out.Token.ExpiresAt = &exp
		}
	}

	if h.notice != nil && !out.Authenticated {
		if sig, ok := h.notice.Last(); ok {
			out.Notice = &NoticeDTO{Reason: sig.Reason, At: sig.At}
		}
	}
	return out
}

// POST /api/v1/session/login
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req LoginRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if err := h.session.Login(ctx, req.Email, req.Password); err != nil {
		h.loginError(w, err)
		return
	}
	if h.notice != nil {
		h.notice.Reset()
	}
	respondJSON(w, http.StatusOK, h.describe())
}

func (h *SessionHandler) loginError(w http.ResponseWriter, err error) {
	var le *session.LoginError
	switch {
	case errors.Is(err, session.ErrInvalidEmail):
		respondError(w, http.StatusBadRequest, "invalid_email", "email address is not valid")
	case errors.Is(err, session.ErrPasswordTooShort):
		respondError(w, http.StatusBadRequest, "password_too_short",
			"password must be at least "+strconv.Itoa(session.MinPasswordLength)+" characters")
	case errors.As(err, &le):
		switch le.Kind {
		case session.EmailNotConfirmed:
			respondError(w, http.StatusUnprocessableEntity, le.Kind.String(), "email address is not confirmed yet")
		case session.InvalidCredentials:
			respondError(w, http.StatusUnauthorized, le.Kind.String(), "invalid email or password")
		default:
			h.logger.WithError(err).Warn("login unavailable")
			respondError(w, http.StatusServiceUnavailable, "login_unavailable", "login is currently unavailable")
		}
	default:
		h.logger.WithError(err).Error("login failed")
		respondError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

// POST /api/v1/session/logout
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	h.session.Logout(ctx)
	if h.notice != nil {
		h.notice.Reset()
	}
	respondJSON(w, http.StatusOK, h.describe())
}

// POST /api/v1/session/resend-confirmation
func (h *SessionHandler) ResendConfirmation(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req EmailRequestDTO
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}
	if err := h.session.ResendConfirmation(ctx, req.Email); err != nil {
		if errors.Is(err, session.ErrInvalidEmail) {
			respondError(w, http.StatusBadRequest, "invalid_email", "email address is not valid")
			return
		}
		handleUpstreamError(w, err)
		return
	}
	respondJSON(w, http.StatusAccepted, map[string]string{"status": "sent"})
}

// GET /api/v1/session/orders[?refresh=true]
func (h *SessionHandler) Orders(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	load := h.session.EnsureOrdersLoaded
	if refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh")); refresh {
		load = h.session.RefreshOrders
	}

	list, err := load(ctx)
	if err != nil {
		h.sessionError(w, err)
		return
	}
	if list == nil {
		list = []domain.Order{}
	}
	respondJSON(w, http.StatusOK, OrdersResponseDTO{Orders: list})
}

// GET /api/v1/session/profile
func (h *SessionHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	u, err := h.session.FetchProfile(ctx)
	if err != nil {
		h.sessionError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, u)
}

// PUT /api/v1/session/profile
func (h *SessionHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req domain.Profile
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	u, err := h.session.UpdateProfile(ctx, req)
	if err != nil {
		h.sessionError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, u)
}

func (h *SessionHandler) sessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNotAuthenticated):
		respondError(w, http.StatusUnauthorized, "unauthenticated", "sign in first")
	case errors.Is(err, session.ErrSessionChanged):
		respondError(w, http.StatusConflict, "session_changed", "the session changed while the request was running")
	default:
		h.logger.WithError(err).Warn("session request failed")
		handleUpstreamError(w, err)
	}
}
