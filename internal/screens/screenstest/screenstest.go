// Package screenstest provides in-memory fakes for screen tests.
package screenstest

import (
	"context"
	"errors"
	"io"
	"sync"

	tea "charm.land/bubbletea/v2"

	"github.com/ecoloop/ecoloop/internal/account"
	"github.com/ecoloop/ecoloop/internal/api"
	"github.com/ecoloop/ecoloop/internal/store"
)

// ErrOffline is returned by fakes configured to fail.
var ErrOffline = &api.ErrNetwork{Op: "test", Err: errors.New("offline")}

// MockAccount implements screens.Account.
type MockAccount struct {
	mu sync.Mutex

	Current   *api.User
	Dashboard account.Dashboard
	Cached    bool

	LoginErr     error
	DashboardErr error
	ProgressErr  error

	Logins    int
	Registers int
	Logouts   int
	Reports   []api.ProgressRequest
}

func (m *MockAccount) LoggedIn() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Current != nil
}

func (m *MockAccount) User() (api.User, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Current == nil {
		return api.User{}, false
	}
	return *m.Current, true
}

func (m *MockAccount) Login(_ context.Context, username, _ string) (api.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Logins++
	if m.LoginErr != nil {
		return api.User{}, m.LoginErr
	}
	m.Current = &api.User{ID: 1, Username: username, Coins: 100}
	return *m.Current, nil
}

func (m *MockAccount) Register(_ context.Context, username, email, _ string) (api.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Registers++
	if m.LoginErr != nil {
		return api.User{}, m.LoginErr
	}
	m.Current = &api.User{ID: 2, Username: username, Email: email}
	return *m.Current, nil
}

func (m *MockAccount) Logout(context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Logouts++
	m.Current = nil
	return nil
}

func (m *MockAccount) LoadDashboard(context.Context) (account.Dashboard, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.DashboardErr != nil {
		return account.Dashboard{}, m.DashboardErr
	}
	return m.Dashboard, nil
}

func (m *MockAccount) CachedDashboard(context.Context) (account.Dashboard, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Dashboard, m.Cached
}

func (m *MockAccount) ReportProgress(_ context.Context, req api.ProgressRequest) (api.ProgressResult, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Reports = append(m.Reports, req)
	if m.ProgressErr != nil {
		return api.ProgressResult{}, m.ProgressErr
	}
	bal := req.CoinsEarned
	if m.Current != nil {
		m.Current.Coins += req.CoinsEarned
		bal = m.Current.Coins
	}
	return api.ProgressResult{Message: "ok", NewBalance: bal}, nil
}

// MockBackend implements screens.Backend.
type MockBackend struct {
	mu sync.Mutex

	Verification api.Verification
	VerifyErr    error
	Completion   api.ChallengeCompletion
	List         []api.Challenge
	Entries      []api.LeaderboardEntry
	Feed         []api.CommunityPost
	Err          error

	Uploads []api.Upload
}

func (m *MockBackend) VerifyTask(_ context.Context, _ int, _ string, up api.Upload) (api.Verification, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, _ = io.Copy(io.Discard, up.Body)
	m.Uploads = append(m.Uploads, api.Upload{Filename: up.Filename, ContentType: up.ContentType})
	if m.VerifyErr != nil {
		return api.Verification{}, m.VerifyErr
	}
	return m.Verification, nil
}

func (m *MockBackend) CompleteChallenge(_ context.Context, _ int, up api.Upload) (api.ChallengeCompletion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, _ = io.Copy(io.Discard, up.Body)
	m.Uploads = append(m.Uploads, api.Upload{Filename: up.Filename, ContentType: up.ContentType})
	if m.Err != nil {
		return api.ChallengeCompletion{}, m.Err
	}
	return m.Completion, nil
}

func (m *MockBackend) Challenges(context.Context) ([]api.Challenge, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	return m.List, nil
}

func (m *MockBackend) Leaderboard(context.Context) ([]api.LeaderboardEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Entries, nil
}

func (m *MockBackend) CommunityFeed(context.Context) ([]api.CommunityPost, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return nil, m.Err
	}
	return m.Feed, nil
}

// MockEventRepo implements store.EventRepo in memory.
type MockEventRepo struct {
	mu       sync.Mutex
	Events   []store.LevelEventData
	Activity []store.LevelActivity
	Records  []store.LevelEventRecord
}

func (m *MockEventRepo) AppendLevelEvent(_ context.Context, data store.LevelEventData) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, data)
	return nil
}

func (m *MockEventRepo) QueryLevelEvents(_ context.Context, opts store.QueryOpts) ([]store.LevelEventRecord, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []store.LevelEventRecord
	for _, r := range m.Records {
		if opts.LevelID != 0 && r.LevelID != opts.LevelID {
			continue
		}
		out = append(out, r)
		if opts.Limit > 0 && len(out) == opts.Limit {
			break
		}
	}
	return out, nil
}

func (m *MockEventRepo) LevelActivity(_ context.Context, limit int) ([]store.LevelActivity, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if limit > 0 && len(m.Activity) > limit {
		return m.Activity[:limit], nil
	}
	return m.Activity, nil
}

// Kinds returns the recorded event kinds in order.
func (m *MockEventRepo) Kinds() []store.EventKind {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]store.EventKind, len(m.Events))
	for i, e := range m.Events {
		out[i] = e.Kind
	}
	return out
}

// KeyPress builds a printable key press.
func KeyPress(r rune) tea.KeyPressMsg {
	return tea.KeyPressMsg{Code: r, Text: string(r)}
}

// SpecialKey builds a non-printable key press such as tea.KeyEnter.
func SpecialKey(code rune) tea.KeyPressMsg {
	return tea.KeyPressMsg{Code: code}
}

// Type sends every rune of text as a key press.
func Type(update func(tea.Msg), text string) {
	for _, r := range text {
		update(KeyPress(r))
	}
}

// BatchCmds runs cmd and returns the commands of the batch it produced,
// or cmd itself when it is not a batch. Only call it on commands known
// not to block, such as a tea.Batch of requests.
func BatchCmds(cmd tea.Cmd) []tea.Cmd {
	if cmd == nil {
		return nil
	}
	msg := cmd()
	if batch, ok := msg.(tea.BatchMsg); ok {
		return batch
	}
	return []tea.Cmd{func() tea.Msg { return msg }}
}
