// Package screens holds what the individual screens share: the services
// they call and the helpers that turn those calls into tea commands.
package screens

import (
	"context"
	"time"

	tea "charm.land/bubbletea/v2"

	"github.com/ecoloop/ecoloop/internal/account"
	"github.com/ecoloop/ecoloop/internal/api"
	"github.com/ecoloop/ecoloop/internal/clock"
	"github.com/ecoloop/ecoloop/internal/logger"
	"github.com/ecoloop/ecoloop/internal/proof"
	"github.com/ecoloop/ecoloop/internal/session"
	"github.com/ecoloop/ecoloop/internal/store"
)

// Account is the signed-in learner as the screens see it. It is
// implemented by *account.Provider.
type Account interface {
	LoggedIn() bool
	User() (api.User, bool)
	Login(ctx context.Context, username, password string) (api.User, error)
	Register(ctx context.Context, username, email, password string) (api.User, error)
	Logout(ctx context.Context) error
	LoadDashboard(ctx context.Context) (account.Dashboard, error)
	CachedDashboard(ctx context.Context) (account.Dashboard, bool)
	ReportProgress(ctx context.Context, req api.ProgressRequest) (api.ProgressResult, error)
}

// Backend is the part of the API the screens call directly. It is
// implemented by *api.Client.
type Backend interface {
	proof.Verifier
	Challenges(ctx context.Context) ([]api.Challenge, error)
	Leaderboard(ctx context.Context) ([]api.LeaderboardEntry, error)
	CommunityFeed(ctx context.Context) ([]api.CommunityPost, error)
}

// Deps bundles everything a screen may need.
type Deps struct {
	Account Account
	Backend Backend
	Events  store.EventRepo
	Session session.Config

	// Autoplay lets playback resume without a key press. Otherwise the
	// timeline refuses to play until the learner presses space. A level
	// always opens paused.
	Autoplay bool

	// RequestTimeout bounds each backend call made from a screen.
	RequestTimeout time.Duration

	Clock clock.Clock
	Log   *logger.Logger
}

// WithDefaults fills unset optional fields.
func (d Deps) WithDefaults() Deps {
	if d.Clock == nil {
		d.Clock = clock.Real{}
	}
	if d.Log == nil {
		d.Log = logger.Nop()
	}
	if d.RequestTimeout <= 0 {
		d.RequestTimeout = 2 * time.Minute
	}
	return d
}

// Call runs fn off the update loop with a bounded context derived from
// parent and wraps its result with wrap.
func Call[T any](parent context.Context, timeout time.Duration, fn func(context.Context) (T, error), wrap func(T, error) tea.Msg) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(parent, timeout)
		defer cancel()
		v, err := fn(ctx)
		return wrap(v, err)
	}
}

// ErrorText is the message to show for err, or "".
func ErrorText(err error) string {
	if err == nil {
		return ""
	}
	return api.UserMessage(err)
}
