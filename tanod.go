package tanod

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/lborres/tanod/core"
	"github.com/lborres/tanod/pkg/cache"
	"github.com/lborres/tanod/pkg/crypto"
	"github.com/lborres/tanod/pkg/metrics"
	"github.com/lborres/tanod/services"
)

// interfaces
type (
	RecordStore = core.RecordStore
	Cache       = core.Cache

	PasswordHandler = crypto.PasswordHandler
)

// structs
type (
	SessionConfig = core.SessionConfig
	CacheConfig   = core.CacheConfig
)

type (
	Account       = core.Account
	Profile       = core.Profile
	Role          = core.Role
	Session       = core.Session
	SessionData   = core.SessionData
	RegisterInput = core.RegisterInput
	LoginResult   = core.LoginResult
	CacheStats    = core.CacheStats
)

const (
	RoleContributor = core.RoleContributor
	RoleAdmin       = core.RoleAdmin
)

// Constructors & helpers (convenience re-exports)
var (
	NewInMemoryCache     = cache.NewInMemoryCache
	NewRedisCache        = cache.NewRedisCache
	NewArgon2            = crypto.NewArgon2
	NewBCrypt            = crypto.NewBCrypt
	DefaultSessionConfig = core.DefaultSessionConfig
)

var (
	ErrInvalidEmail   = core.ErrInvalidEmail
	ErrEmailTaken     = core.ErrEmailTaken
	ErrWeakSecret     = core.ErrWeakSecret
	ErrSecretTooLong  = core.ErrSecretTooLong
	ErrInvalidProfile = core.ErrInvalidProfile
	ErrInvalidRole    = core.ErrInvalidRole
)

var (
	ErrInvalidCredentials = core.ErrInvalidCredentials
	ErrAccountDeactivated = core.ErrAccountDeactivated
	ErrWrongSecret        = core.ErrWrongSecret
	ErrRecordNotFound     = core.ErrRecordNotFound
	ErrDuplicateKey       = core.ErrDuplicateKey
)

var (
	ErrUnauthenticated = core.ErrUnauthenticated
	ErrSessionNotFound = core.ErrSessionNotFound
	ErrSessionExpired  = core.ErrSessionExpired
	ErrSessionRevoked  = core.ErrSessionRevoked
	ErrInvalidTTL      = core.ErrInvalidTTL
)

var (
	ErrStorageUnavailable = core.ErrStorageUnavailable
	ErrCacheNotFound      = core.ErrCacheNotFound
	ErrStoreRequired      = core.ErrStoreRequired
)

type Config struct {
	Store RecordStore

	// Optional config
	PasswordHasher PasswordHandler
	Cache          Cache
	DisableCache   bool
	SessionConfig  *SessionConfig
	Logger         *zerolog.Logger
	Metrics        *metrics.Metrics
	SweepInterval  time.Duration

	// Clock overrides the wall clock. Tests only.
	Clock core.Clock
}

// Tanod is the account and session core wired over one record store.
type Tanod struct {
	store    RecordStore
	cache    Cache
	accounts *services.AccountManager
	sessions *services.SessionManager
	auth     *services.AuthService
	sweeper  *services.Sweeper
	now      core.Clock
	log      zerolog.Logger

	mu        sync.Mutex
	stopSweep context.CancelFunc
	sweepDone chan struct{}
}

func New(config Config) (*Tanod, error) {
	if config.Store == nil {
		return nil, ErrStoreRequired
	}

	// Set Defaults

	cacheAdapter := config.Cache
	if config.DisableCache {
		cacheAdapter = nil
	} else if cacheAdapter == nil {
		cacheAdapter = NewInMemoryCache(CacheConfig{
			TTL:     cache.DefaultTTL,
			MaxSize: cache.DefaultMaxSize,
		})
	}

	sessionConfig := config.SessionConfig
	if sessionConfig == nil {
		sessionConfig = &SessionConfig{
			MaxAge: core.DefaultSessionMaxAge,
		}
	}

	passwordHasher := config.PasswordHasher
	if passwordHasher == nil {
		passwordHasher = crypto.NewArgon2()
	}

	opts := services.Options{
		Clock:   config.Clock,
		Logger:  config.Logger,
		Metrics: config.Metrics,
	}

	accounts := services.NewAccountManager(config.Store.Accounts(), passwordHasher, opts)
	sessions := services.NewSessionManager(*sessionConfig, config.Store, cacheAdapter, opts)

	now := config.Clock
	if now == nil {
		now = core.SystemClock
	}

	log := zerolog.Nop()
	if config.Logger != nil {
		log = *config.Logger
	}

	return &Tanod{
		store:    config.Store,
		cache:    cacheAdapter,
		accounts: accounts,
		sessions: sessions,
		auth:     services.NewAuthService(accounts, sessions, opts),
		sweeper:  services.NewSweeper(sessions, config.SweepInterval, opts),
		now:      now,
		log:      log,
	}, nil
}

func (t *Tanod) Register(ctx context.Context, input RegisterInput) (string, error) {
	return t.accounts.Register(ctx, input)
}

func (t *Tanod) Login(ctx context.Context, email, secret string) (*LoginResult, error) {
	return t.auth.Login(ctx, email, secret)
}

func (t *Tanod) Authenticate(ctx context.Context, email, secret string) (*Account, error) {
	return t.auth.Authenticate(ctx, email, secret)
}

func (t *Tanod) ValidateSession(ctx context.Context, token string) (*SessionData, error) {
	return t.auth.ValidateSession(ctx, token)
}

func (t *Tanod) Logout(ctx context.Context, token string) error {
	return t.auth.Logout(ctx, token)
}

func (t *Tanod) UpdateProfile(ctx context.Context, accountID string, fields map[string]string) (*Account, error) {
	return t.accounts.UpdateProfile(ctx, accountID, fields)
}

func (t *Tanod) ChangePassword(ctx context.Context, accountID, current, next string) error {
	return t.accounts.ChangePassword(ctx, accountID, current, next)
}

func (t *Tanod) Deactivate(ctx context.Context, accountID, confirmingSecret string) error {
	return t.accounts.Deactivate(ctx, accountID, confirmingSecret)
}

func (t *Tanod) SetRole(ctx context.Context, accountID string, role Role) error {
	return t.accounts.SetRole(ctx, accountID, role)
}

// Lookup resolves an account id or email address.
func (t *Tanod) Lookup(ctx context.Context, identifierOrID string) (*Account, error) {
	return t.accounts.Lookup(ctx, identifierOrID)
}

func (t *Tanod) ListAccounts(ctx context.Context) ([]Account, error) {
	return t.accounts.List(ctx)
}

func (t *Tanod) ListSessions(ctx context.Context, accountID string) ([]Session, error) {
	return t.sessions.ListForAccount(ctx, accountID)
}

// RevokeAllSessions signs the account out everywhere.
func (t *Tanod) RevokeAllSessions(ctx context.Context, accountID string) (int, error) {
	return t.sessions.RevokeAllForAccount(ctx, accountID)
}

// Sweep removes expired and revoked session rows once.
func (t *Tanod) Sweep(ctx context.Context) (int, error) {
	return t.sessions.Sweep(ctx, t.now())
}

// StartSweeper runs the periodic sweep in the background until ctx is
// cancelled or Close is called. Calling it again while running is a no-op.
func (t *Tanod) StartSweeper(ctx context.Context) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopSweep != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	t.stopSweep = cancel
	t.sweepDone = done

	go func() {
		defer close(done)
		t.sweeper.Run(ctx)
	}()
	t.log.Debug().Msg("session sweeper started")
}

// Close stops the sweeper and closes the record store.
func (t *Tanod) Close() error {
	t.mu.Lock()
	cancel, done := t.stopSweep, t.sweepDone
	t.stopSweep, t.sweepDone = nil, nil
	t.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}

	return t.store.Close()
}

// CacheStats reports the session cache counters when the cache keeps them.
func (t *Tanod) CacheStats() (CacheStats, bool) {
	withStats, ok := t.cache.(core.CacheWithStats)
	if !ok {
		return CacheStats{}, false
	}
	return withStats.Stats(), true
}
