// Package account owns the login state and the authoritative user record.
// It is the only writer of the bearer token and of the cached user; every
// mutation re-fetches /users/me instead of patching the record locally.
package account

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/sync/errgroup"

	"github.com/ecoloop/ecoloop/internal/api"
	"github.com/ecoloop/ecoloop/internal/clock"
	"github.com/ecoloop/ecoloop/internal/logger"
	"github.com/ecoloop/ecoloop/internal/store"
)

// ErrNotLoggedIn is returned by operations that need a token when none is set.
var ErrNotLoggedIn = errors.New("not logged in")

// snapshotsKept bounds the dashboard snapshot history.
const snapshotsKept = 5

// Backend is the subset of the API client the provider needs.
type Backend interface {
	Login(ctx context.Context, creds api.Credentials) (api.Token, error)
	Register(ctx context.Context, reg api.Registration) (api.Token, error)
	Me(ctx context.Context) (api.User, error)
	Levels(ctx context.Context) ([]api.Level, error)
	UpdateProgress(ctx context.Context, p api.ProgressRequest) (api.ProgressResult, error)
}

// Dashboard is what the home screen shows.
type Dashboard struct {
	User   api.User
	Levels []api.Level // sorted by Order
}

// FirstLevelID returns the ID of the lowest-ordered level, or 0.
func (d Dashboard) FirstLevelID() int {
	if len(d.Levels) == 0 {
		return 0
	}
	return d.Levels[0].ID
}

// StatusOf returns the user's status for level.
func (d Dashboard) StatusOf(levelID int) api.LevelStatus {
	return d.User.StatusOf(levelID, d.FirstLevelID())
}

// Level looks up a level by ID.
func (d Dashboard) Level(id int) (api.Level, bool) {
	for _, l := range d.Levels {
		if l.ID == id {
			return l, true
		}
	}
	return api.Level{}, false
}

// Provider holds the session. It implements api.Session and is safe for
// concurrent use; the mutex is never held across a network call.
type Provider struct {
	mu      sync.RWMutex
	token   string
	user    *api.User
	backend Backend

	creds store.CredentialRepo
	snaps store.SnapshotRepo
	clock clock.Clock
	log   *logger.Logger

	onLogout func()
}

// Option configures a Provider.
type Option func(*Provider)

// WithSnapshots caches fetched dashboards for instant startup rendering.
func WithSnapshots(repo store.SnapshotRepo) Option {
	return func(p *Provider) { p.snaps = repo }
}

// WithClock sets the clock used for token expiry checks.
func WithClock(c clock.Clock) Option {
	return func(p *Provider) { p.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(p *Provider) { p.log = l }
}

// NewProvider creates a logged-out provider. Call Use before any call that
// reaches the backend.
func NewProvider(creds store.CredentialRepo, opts ...Option) *Provider {
	p := &Provider{
		creds: creds,
		clock: clock.Real{},
		log:   logger.Nop(),
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Use sets the backend. The API client needs the provider as its session,
// so the two are wired after construction.
func (p *Provider) Use(b Backend) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.backend = b
}

// OnLogout registers fn to run whenever the session ends, including when
// the backend rejects the token.
func (p *Provider) OnLogout(fn func()) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.onLogout = fn
}

// Token implements api.Session.
func (p *Provider) Token() string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.token
}

// Unauthorized implements api.Session: a 401 ends the session everywhere.
func (p *Provider) Unauthorized() {
	p.log.Warn("backend rejected token, logging out")
	if err := p.clear(context.Background()); err != nil {
		p.log.Error("clear credentials failed", "error", err)
	}
}

// LoggedIn reports whether a token is held.
func (p *Provider) LoggedIn() bool {
	return p.Token() != ""
}

// User returns a copy of the cached user record.
func (p *Provider) User() (api.User, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.user == nil {
		return api.User{}, false
	}
	return p.user.Clone(), true
}

// Init restores the persisted session. An expired token is discarded without
// a network call. Init returns nil with the provider logged out when there
// is nothing to restore.
func (p *Provider) Init(ctx context.Context) error {
	c, err := p.creds.Load(ctx)
	if errors.Is(err, store.ErrNoCredentials) {
		return nil
	}
	if err != nil {
		return err
	}
	if p.expired(c.Token) {
		p.log.Info("stored token expired", "username", c.Username)
		return p.creds.Clear(ctx)
	}

	p.mu.Lock()
	p.token = c.Token
	p.mu.Unlock()

	_, err = p.Refresh(ctx)
	return err
}

// Login authenticates and loads the user record.
func (p *Provider) Login(ctx context.Context, username, password string) (api.User, error) {
	b, err := p.getBackend()
	if err != nil {
		return api.User{}, err
	}
	tok, err := b.Login(ctx, api.Credentials{Username: username, Password: password})
	if err != nil {
		return api.User{}, err
	}
	return p.start(ctx, tok, username)
}

// Register creates an account and logs in with it.
func (p *Provider) Register(ctx context.Context, username, email, password string) (api.User, error) {
	b, err := p.getBackend()
	if err != nil {
		return api.User{}, err
	}
	tok, err := b.Register(ctx, api.Registration{Username: username, Email: email, Password: password})
	if err != nil {
		return api.User{}, err
	}
	return p.start(ctx, tok, username)
}

func (p *Provider) start(ctx context.Context, tok api.Token, username string) (api.User, error) {
	if tok.AccessToken == "" {
		return api.User{}, &api.ErrAPI{Op: "login", Detail: "backend returned no token"}
	}
	if err := p.creds.Save(ctx, store.Credentials{Token: tok.AccessToken, Username: username, UpdatedAt: p.clock.Now()}); err != nil {
		return api.User{}, fmt.Errorf("persist token: %w", err)
	}
	p.mu.Lock()
	p.token = tok.AccessToken
	p.mu.Unlock()
	p.log.Info("logged in", "username", username)

	return p.Refresh(ctx)
}

// Logout drops the session locally and in storage.
func (p *Provider) Logout(ctx context.Context) error {
	return p.clear(ctx)
}

func (p *Provider) clear(ctx context.Context) error {
	p.mu.Lock()
	p.token = ""
	p.user = nil
	fn := p.onLogout
	p.mu.Unlock()

	err := p.creds.Clear(ctx)
	if fn != nil {
		fn()
	}
	return err
}

// Refresh re-fetches /users/me.
func (p *Provider) Refresh(ctx context.Context) (api.User, error) {
	b, err := p.authedBackend()
	if err != nil {
		return api.User{}, err
	}
	u, err := b.Me(ctx)
	if err != nil {
		return api.User{}, err
	}
	p.setUser(u)
	return u.Clone(), nil
}

// LoadDashboard fetches the user and the level catalog concurrently.
func (p *Provider) LoadDashboard(ctx context.Context) (Dashboard, error) {
	b, err := p.authedBackend()
	if err != nil {
		return Dashboard{}, err
	}

	var d Dashboard
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		u, err := b.Me(gctx)
		if err != nil {
			return err
		}
		d.User = u
		return nil
	})
	g.Go(func() error {
		levels, err := b.Levels(gctx)
		if err != nil {
			return err
		}
		d.Levels = levels
		return nil
	})
	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}

	sortLevels(d.Levels)
	p.setUser(d.User)
	p.saveSnapshot(ctx, d)
	d.User = d.User.Clone()
	return d, nil
}

// CachedDashboard returns the last dashboard saved by LoadDashboard.
func (p *Provider) CachedDashboard(ctx context.Context) (Dashboard, bool) {
	if p.snaps == nil {
		return Dashboard{}, false
	}
	snap, err := p.snaps.Latest(ctx)
	if err != nil || snap == nil {
		if err != nil {
			p.log.Warn("load dashboard snapshot failed", "error", err)
		}
		return Dashboard{}, false
	}
	var d Dashboard
	if err := json.Unmarshal(snap.Data.User, &d.User); err != nil {
		return Dashboard{}, false
	}
	if err := json.Unmarshal(snap.Data.Levels, &d.Levels); err != nil {
		return Dashboard{}, false
	}
	sortLevels(d.Levels)
	return d, true
}

// ReportProgress posts earned rewards and then re-fetches the user. When the
// report fails the cached user is left untouched.
func (p *Provider) ReportProgress(ctx context.Context, req api.ProgressRequest) (api.ProgressResult, error) {
	b, err := p.authedBackend()
	if err != nil {
		return api.ProgressResult{}, err
	}
	res, err := b.UpdateProgress(ctx, req)
	if err != nil {
		p.log.Warn("progress report failed", "level_id", req.LevelID, "completion", req.IsLevelCompletion, "error", err)
		return api.ProgressResult{}, err
	}
	p.log.Info("progress reported", "level_id", req.LevelID, "coins", req.CoinsEarned, "xp", req.XPEarned,
		"completion", req.IsLevelCompletion, "new_balance", res.NewBalance)

	// The report already landed; a failed re-fetch only leaves the cache stale.
	if _, err := p.Refresh(ctx); err != nil {
		p.log.Warn("refresh after progress failed", "error", err)
	}
	return res, nil
}

func (p *Provider) setUser(u api.User) {
	c := u.Clone()
	p.mu.Lock()
	p.user = &c
	p.mu.Unlock()
}

func (p *Provider) getBackend() (Backend, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.backend == nil {
		return nil, errors.New("account: no backend configured")
	}
	return p.backend, nil
}

func (p *Provider) authedBackend() (Backend, error) {
	b, err := p.getBackend()
	if err != nil {
		return nil, err
	}
	if !p.LoggedIn() {
		return nil, ErrNotLoggedIn
	}
	return b, nil
}

func (p *Provider) saveSnapshot(ctx context.Context, d Dashboard) {
	if p.snaps == nil {
		return
	}
	user, err := json.Marshal(d.User)
	if err != nil {
		return
	}
	levels, err := json.Marshal(d.Levels)
	if err != nil {
		return
	}
	snap := &store.Snapshot{
		Timestamp: p.clock.Now(),
		Data:      store.SnapshotData{Version: 1, User: user, Levels: levels},
	}
	if err := p.snaps.Save(ctx, snap); err != nil {
		p.log.Warn("save dashboard snapshot failed", "error", err)
		return
	}
	if err := p.snaps.Prune(ctx, snapshotsKept); err != nil {
		p.log.Warn("prune dashboard snapshots failed", "error", err)
	}
}

// expired reports whether tok is a JWT whose exp claim has passed. Opaque
// tokens are left for the backend to judge.
func (p *Provider) expired(tok string) bool {
	parsed, _, err := jwt.NewParser().ParseUnverified(tok, jwt.MapClaims{})
	if err != nil {
		return false
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return !p.clock.Now().Before(exp.Time.Add(-5 * time.Second))
}

func sortLevels(levels []api.Level) {
	sort.SliceStable(levels, func(i, j int) bool { return levels[i].Order < levels[j].Order })
}
