package account

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ecoloop/ecoloop/internal/api"
	"github.com/ecoloop/ecoloop/internal/clock"
	"github.com/ecoloop/ecoloop/internal/store"
)

// fakeBackend mimics the backend: progress reports credit coins to the user
// record returned by Me.
type fakeBackend struct {
	mu          sync.Mutex
	user        api.User
	levels      []api.Level
	token       string
	progressErr error
	meErr       error
	meCalls     int
	reports     []api.ProgressRequest
	session     api.Session
}

func (f *fakeBackend) Login(_ context.Context, c api.Credentials) (api.Token, error) {
	if c.Password != "secret1" {
		return api.Token{}, &api.ErrAPI{Op: "login", Status: 401, Detail: "Incorrect username or password"}
	}
	return api.Token{AccessToken: f.token, TokenType: "bearer"}, nil
}

func (f *fakeBackend) Register(_ context.Context, r api.Registration) (api.Token, error) {
	f.mu.Lock()
	f.user.Username = r.Username
	f.user.Email = r.Email
	f.mu.Unlock()
	return api.Token{AccessToken: f.token, TokenType: "bearer"}, nil
}

func (f *fakeBackend) Me(context.Context) (api.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.meCalls++
	if f.meErr != nil {
		if errors.Is(f.meErr, errUnauthorized) && f.session != nil {
			f.session.Unauthorized()
		}
		return api.User{}, f.meErr
	}
	return f.user.Clone(), nil
}

func (f *fakeBackend) Levels(context.Context) ([]api.Level, error) {
	return append([]api.Level(nil), f.levels...), nil
}

func (f *fakeBackend) UpdateProgress(_ context.Context, p api.ProgressRequest) (api.ProgressResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.progressErr != nil {
		return api.ProgressResult{}, f.progressErr
	}
	f.reports = append(f.reports, p)
	f.user.Coins += p.CoinsEarned
	return api.ProgressResult{Message: "Progress updated", NewBalance: f.user.Coins}, nil
}

var errUnauthorized = &api.ErrAuth{Op: "me"}

func openStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(filepath.Join(t.TempDir(), "ecoloop.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func signedToken(t *testing.T, exp time.Time) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "mira",
		"exp": exp.Unix(),
	}).SignedString([]byte("test-key"))
	require.NoError(t, err)
	return tok
}

func newProvider(t *testing.T, s *store.Store, b *fakeBackend, opts ...Option) *Provider {
	t.Helper()
	opts = append([]Option{WithSnapshots(s.SnapshotRepo())}, opts...)
	p := NewProvider(s.CredentialRepo(), opts...)
	p.Use(b)
	b.session = p
	return p
}

func TestLoginPersistsToken(t *testing.T) {
	s := openStore(t)
	b := &fakeBackend{token: "opaque-token", user: api.User{ID: 1, Username: "mira", Coins: 40}}
	p := newProvider(t, s, b)

	u, err := p.Login(context.Background(), "mira", "secret1")
	require.NoError(t, err)
	assert.Equal(t, 40, u.Coins)
	assert.True(t, p.LoggedIn())

	c, err := s.CredentialRepo().Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "opaque-token", c.Token)
	assert.Equal(t, "mira", c.Username)

	// A fresh provider restores the session from storage.
	p2 := newProvider(t, s, b)
	require.NoError(t, p2.Init(context.Background()))
	got, ok := p2.User()
	require.True(t, ok)
	assert.Equal(t, "mira", got.Username)
}

func TestLoginWrongPassword(t *testing.T) {
	s := openStore(t)
	p := newProvider(t, s, &fakeBackend{token: "x"})

	_, err := p.Login(context.Background(), "mira", "nope")
	require.Error(t, err)
	assert.False(t, p.LoggedIn())
	_, err = s.CredentialRepo().Load(context.Background())
	assert.ErrorIs(t, err, store.ErrNoCredentials)
}

func TestRegisterLogsIn(t *testing.T) {
	s := openStore(t)
	b := &fakeBackend{token: "new-token"}
	p := newProvider(t, s, b)

	u, err := p.Register(context.Background(), "leaf", "leaf@example.com", "secret1")
	require.NoError(t, err)
	assert.Equal(t, "leaf", u.Username)
	assert.Equal(t, "new-token", p.Token())
}

func TestInitDiscardsExpiredJWT(t *testing.T) {
	s := openStore(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.CredentialRepo().Save(context.Background(), store.Credentials{
		Token: signedToken(t, now.Add(-time.Hour)), Username: "mira",
	}))
	b := &fakeBackend{}
	p := newProvider(t, s, b, WithClock(clock.NewFake(now)))

	require.NoError(t, p.Init(context.Background()))
	assert.False(t, p.LoggedIn())
	assert.Equal(t, 0, b.meCalls, "expired token must not reach the backend")
	_, err := s.CredentialRepo().Load(context.Background())
	assert.ErrorIs(t, err, store.ErrNoCredentials)
}

func TestInitKeepsValidJWT(t *testing.T) {
	s := openStore(t)
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, s.CredentialRepo().Save(context.Background(), store.Credentials{
		Token: signedToken(t, now.Add(time.Hour)), Username: "mira",
	}))
	b := &fakeBackend{user: api.User{Username: "mira"}}
	p := newProvider(t, s, b, WithClock(clock.NewFake(now)))

	require.NoError(t, p.Init(context.Background()))
	assert.True(t, p.LoggedIn())
	assert.Equal(t, 1, b.meCalls)
}

func TestInitNothingStored(t *testing.T) {
	s := openStore(t)
	p := newProvider(t, s, &fakeBackend{})
	require.NoError(t, p.Init(context.Background()))
	assert.False(t, p.LoggedIn())
}

func TestUnauthorizedClearsSession(t *testing.T) {
	s := openStore(t)
	b := &fakeBackend{token: "tok", user: api.User{Username: "mira"}}
	p := newProvider(t, s, b)
	_, err := p.Login(context.Background(), "mira", "secret1")
	require.NoError(t, err)

	loggedOut := false
	p.OnLogout(func() { loggedOut = true })

	b.meErr = errUnauthorized
	_, err = p.Refresh(context.Background())
	require.Error(t, err)
	assert.True(t, api.IsAuth(err))
	assert.False(t, p.LoggedIn())
	assert.True(t, loggedOut)
	_, ok := p.User()
	assert.False(t, ok)
	_, err = s.CredentialRepo().Load(context.Background())
	assert.ErrorIs(t, err, store.ErrNoCredentials)
}

func TestReportProgressFailureLeavesBalance(t *testing.T) {
	s := openStore(t)
	b := &fakeBackend{token: "tok", user: api.User{Username: "mira", Coins: 120}}
	p := newProvider(t, s, b)
	_, err := p.Login(context.Background(), "mira", "secret1")
	require.NoError(t, err)

	b.progressErr = &api.ErrNetwork{Op: "update_progress", Err: errors.New("connection reset")}
	_, err = p.ReportProgress(context.Background(), api.ProgressRequest{LevelID: 1, CoinsEarned: 50, XPEarned: 50, IsLevelCompletion: true})
	require.Error(t, err)

	u, _ := p.User()
	assert.Equal(t, 120, u.Coins)
}

func TestReportProgressRefetchesUser(t *testing.T) {
	s := openStore(t)
	b := &fakeBackend{token: "tok", user: api.User{Username: "mira", Coins: 120}}
	p := newProvider(t, s, b)
	_, err := p.Login(context.Background(), "mira", "secret1")
	require.NoError(t, err)
	before := b.meCalls

	res, err := p.ReportProgress(context.Background(), api.ProgressRequest{LevelID: 1, CoinsEarned: 50, XPEarned: 50, IsLevelCompletion: true})
	require.NoError(t, err)
	assert.Equal(t, 170, res.NewBalance)
	assert.Equal(t, before+1, b.meCalls)

	u, _ := p.User()
	assert.Equal(t, 170, u.Coins)
}

func TestReportProgressRequiresLogin(t *testing.T) {
	s := openStore(t)
	p := newProvider(t, s, &fakeBackend{})
	_, err := p.ReportProgress(context.Background(), api.ProgressRequest{LevelID: 1})
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}

func TestLoadDashboard(t *testing.T) {
	s := openStore(t)
	b := &fakeBackend{
		token: "tok",
		user: api.User{Username: "mira", Coins: 10, Progress: []api.ProgressEntry{
			{LevelID: 7, Status: "COMPLETED"},
			{LevelID: 9, Status: "unlocked"},
		}},
		levels: []api.Level{
			{ID: 9, Title: "Compost", Order: 2},
			{ID: 7, Title: "Recycling", Order: 1},
			{ID: 11, Title: "Energy", Order: 3},
		},
	}
	p := newProvider(t, s, b)
	_, err := p.Login(context.Background(), "mira", "secret1")
	require.NoError(t, err)

	d, err := p.LoadDashboard(context.Background())
	require.NoError(t, err)
	require.Len(t, d.Levels, 3)
	assert.Equal(t, 7, d.FirstLevelID())
	assert.Equal(t, api.StatusCompleted, d.StatusOf(7))
	assert.Equal(t, api.StatusUnlocked, d.StatusOf(9))
	assert.Equal(t, api.StatusLocked, d.StatusOf(11))

	lvl, ok := d.Level(9)
	require.True(t, ok)
	assert.Equal(t, "Compost", lvl.Title)

	cached, ok := p.CachedDashboard(context.Background())
	require.True(t, ok)
	assert.Equal(t, "mira", cached.User.Username)
	assert.Equal(t, 7, cached.FirstLevelID())
}

func TestFirstLevelUnlockedWithoutProgress(t *testing.T) {
	d := Dashboard{Levels: []api.Level{{ID: 3, Order: 1}, {ID: 4, Order: 2}}}
	assert.Equal(t, api.StatusUnlocked, d.StatusOf(3))
	assert.Equal(t, api.StatusLocked, d.StatusOf(4))
	assert.Equal(t, 0, Dashboard{}.FirstLevelID())
}

func TestLogout(t *testing.T) {
	s := openStore(t)
	b := &fakeBackend{token: "tok", user: api.User{Username: "mira"}}
	p := newProvider(t, s, b)
	_, err := p.Login(context.Background(), "mira", "secret1")
	require.NoError(t, err)

	require.NoError(t, p.Logout(context.Background()))
	assert.False(t, p.LoggedIn())
	_, err = p.LoadDashboard(context.Background())
	assert.ErrorIs(t, err, ErrNotLoggedIn)
}
