package tokenwatch

import (
	"context"
	"sync"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/events"
	"github.com/sirupsen/logrus"
)

const DefaultInterval = time.Second

type Config struct {
	Interval      time.Duration
	WarningWindow time.Duration
	Now           func() time.Time
}

// Watcher polls the current token and publishes one token_expired logout signal per
// expiry. After firing it stays silent until a valid token is seen again.
type Watcher struct {
	source   func() string
	signals  *events.Bus[domain.LogoutSignal]
	logger   logrus.FieldLogger
	interval time.Duration
	warning  time.Duration
	now      func() time.Time

	mu      sync.Mutex
	latched bool
	last    Status
}

func NewWatcher(source func() string, signals *events.Bus[domain.LogoutSignal], logger logrus.FieldLogger, cfg Config) *Watcher {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.WarningWindow <= 0 {
		cfg.WarningWindow = DefaultWarningWindow
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Watcher{
		source:   source,
		signals:  signals,
		logger:   logger.WithField("component", "tokenwatch"),
		interval: cfg.Interval,
		warning:  cfg.WarningWindow,
		now:      cfg.Now,
	}
}

// Check classifies the current token and fires the logout signal on the first
// expired observation.
func (w *Watcher) Check() Status {
	st := Classify(w.source(), w.now(), w.warning)

	w.mu.Lock()
	prev := w.last
	w.last = st
	fire := false
	switch {
	case st.State == Expired && !w.latched:
		w.latched = true
		fire = true
	case st.State.Valid():
		w.latched = false
	}
	w.mu.Unlock()

	if st.State == Warning && prev.State != Warning {
		w.logger.WithField("remaining", st.Remaining.Round(time.Second).String()).Info("session token expires soon")
	}
	if fire {
		w.logger.Info("session token expired")
		if w.signals != nil {
			w.signals.Publish(domain.LogoutSignal{Reason: domain.LogoutReasonTokenExpired, At: w.now()})
		}
	}
	return st
}

// Status returns the last observed status.
func (w *Watcher) Status() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}

// Run checks once immediately and then every interval until ctx is done.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.Check()
	for {
		select {
		case <-ticker.C:
			w.Check()
		case <-ctx.Done():
			return
		}
	}
}
