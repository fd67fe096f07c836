package services

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/BradenHooton/stockroom/internal/config"
	"github.com/BradenHooton/stockroom/internal/models"
	pkglogger "github.com/BradenHooton/stockroom/pkg/logger"
)

var errStorageDown = models.NewStorageError("test", errors.New("connection refused"))

// testClock is a manually advanced clock
type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// memoryLedger is an in-memory attempt ledger
type memoryLedger struct {
	mu      sync.Mutex
	rows    []models.LoginAttempt
	err     error
	queries int
}

func (l *memoryLedger) Append(ctx context.Context, attempt *models.LoginAttempt) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.err != nil {
		return l.err
	}
	attempt.ID = int64(len(l.rows) + 1)
	l.rows = append(l.rows, *attempt)
	return nil
}

func (l *memoryLedger) CountFailedSince(ctx context.Context, identifier string, kind models.IdentifierKind, since time.Time) (int, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.queries++
	if l.err != nil {
		return 0, l.err
	}

	count := 0
	for _, row := range l.rows {
		if row.Success || row.AttemptTime.Before(since) {
			continue
		}
		switch kind {
		case models.IdentifierAccount:
			if row.IdentifierKind == models.IdentifierAccount && row.Identifier == identifier {
				count++
			}
		case models.IdentifierOrigin:
			if row.IPAddress == identifier {
				count++
			}
		}
	}
	return count, nil
}

func (l *memoryLedger) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.rows)
}

// countQueries reports and resets the number of count queries served
func (l *memoryLedger) countQueries() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := l.queries
	l.queries = 0
	return n
}

func (l *memoryLedger) last() models.LoginAttempt {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rows[len(l.rows)-1]
}

// memoryLockouts emulates the conditional upsert of the Postgres store
type memoryLockouts struct {
	mu    sync.Mutex
	rows  map[string]models.AccountLockout
	err   error
	arms  int
	delay time.Duration
}

func newMemoryLockouts() *memoryLockouts {
	return &memoryLockouts{rows: make(map[string]models.AccountLockout)}
}

func (m *memoryLockouts) Get(ctx context.Context, account string) (*models.AccountLockout, error) {
	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, models.NewStorageError("get", ctx.Err())
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, m.err
	}
	row, ok := m.rows[account]
	if !ok {
		return nil, nil
	}
	return &row, nil
}

func (m *memoryLockouts) Arm(ctx context.Context, lockout *models.AccountLockout) (*models.AccountLockout, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return nil, false, m.err
	}
	if existing, ok := m.rows[lockout.AccountIdentifier]; ok && existing.LockedUntil.After(lockout.LockedAt) {
		return &existing, false, nil
	}
	m.rows[lockout.AccountIdentifier] = *lockout
	m.arms++
	stored := *lockout
	return &stored, true, nil
}

func (m *memoryLockouts) Put(ctx context.Context, lockout *models.AccountLockout) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.rows[lockout.AccountIdentifier] = *lockout
	return nil
}

func (m *memoryLockouts) Delete(ctx context.Context, account string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return false, m.err
	}
	_, ok := m.rows[account]
	delete(m.rows, account)
	return ok, nil
}

func (m *memoryLockouts) row(account string) (models.AccountLockout, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	row, ok := m.rows[account]
	return row, ok
}

// testSecurityConfig tightens the storage timeout so failure tests stay fast
func testSecurityConfig() config.SecurityConfig {
	cfg := config.DefaultSecurityConfig()
	cfg.StorageTimeout = 50 * time.Millisecond
	return cfg
}

func testAuditLogger() *pkglogger.AuditLogger {
	return pkglogger.NewAuditLogger(slog.Default(), "test")
}

// defense bundles the rate limiter and lockout service over shared fakes
type defense struct {
	clock    *testClock
	ledger   *memoryLedger
	lockouts *memoryLockouts
	limiter  *RateLimitService
	locker   *LockoutService
}

func newDefense(cfg config.SecurityConfig) *defense {
	d := &defense{
		clock:    newTestClock(),
		ledger:   &memoryLedger{},
		lockouts: newMemoryLockouts(),
	}
	d.limiter = NewRateLimitService(d.ledger, cfg, slog.Default())
	d.limiter.now = d.clock.Now
	d.locker = NewLockoutService(d.ledger, d.lockouts, cfg, slog.Default(), testAuditLogger())
	d.locker.now = d.clock.Now
	return d
}

// fail records a failed attempt and runs the post-check, as the login flow does
func (d *defense) fail(account, origin string) bool {
	ctx := context.Background()
	d.limiter.RecordAttempt(ctx, account, origin, "test-agent", false)
	return d.locker.OnFailedAttempt(ctx, account)
}

// MockUserRepository implements UserRepository for testing
type MockUserRepository struct {
	GetByIDFunc        func(ctx context.Context, id string) (*models.User, error)
	GetByUsernameFunc  func(ctx context.Context, username string) (*models.User, error)
	ListFunc           func(ctx context.Context, limit, offset int) ([]*models.User, error)
	CreateFunc         func(ctx context.Context, user *models.User) (*models.User, error)
	UpdatePasswordFunc func(ctx context.Context, id, passwordHash string) error
	DeleteFunc         func(ctx context.Context, id string) error
}

func (m *MockUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	if m.GetByUsernameFunc != nil {
		return m.GetByUsernameFunc(ctx, username)
	}
	return nil, models.ErrNotFound
}

func (m *MockUserRepository) List(ctx context.Context, limit, offset int) ([]*models.User, error) {
	if m.ListFunc != nil {
		return m.ListFunc(ctx, limit, offset)
	}
	return []*models.User{}, nil
}

func (m *MockUserRepository) Create(ctx context.Context, user *models.User) (*models.User, error) {
	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, user)
	}
	return nil, models.ErrInternalServer
}

func (m *MockUserRepository) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	if m.UpdatePasswordFunc != nil {
		return m.UpdatePasswordFunc(ctx, id, passwordHash)
	}
	return nil
}

func (m *MockUserRepository) Delete(ctx context.Context, id string) error {
	if m.DeleteFunc != nil {
		return m.DeleteFunc(ctx, id)
	}
	return nil
}

// MockTokenRevocationRepository implements TokenRevocationRepository for testing
type MockTokenRevocationRepository struct {
	RevokeTokenFunc func(ctx context.Context, jti, userID string, expiresAt time.Time, reason string) error
}

func (m *MockTokenRevocationRepository) RevokeToken(ctx context.Context, jti, userID string, expiresAt time.Time, reason string) error {
	if m.RevokeTokenFunc != nil {
		return m.RevokeTokenFunc(ctx, jti, userID, expiresAt, reason)
	}
	return nil
}
