// Package auth memoizes authentication artifacts across every test in the
// process.
//
// Integrators supply a single Authenticator that performs the real login flow
// against a target service. Client wraps it with a process-wide cache and a
// single-flight guard, so concurrent tests asking for the same credential
// identity trigger at most one login.
package auth

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/specialistvlad/questgrid/internal/cachemanager"
	"github.com/specialistvlad/questgrid/internal/ctxlog"
	"github.com/specialistvlad/questgrid/internal/storage"
)

// ClientKey is where the runtime stores its *Client inside a quest's runtime
// compartment.
const ClientKey storage.Key = "auth.client"

// Credentials is a username/password pair.
type Credentials interface {
	Username() string
	Password() string
}

// Key is the cached result of an authentication flow.
type Key struct {
	Username string
	Password string
	Artifact string
}

// Authenticator performs the integration-specific login flow and returns a
// header-like credential artifact.
type Authenticator interface {
	Authenticate(ctx context.Context, service any, username, password string) (string, error)
}

// AuthenticatorFunc adapts a function to Authenticator.
type AuthenticatorFunc func(ctx context.Context, service any, username, password string) (string, error)

// Authenticate implements Authenticator.
func (f AuthenticatorFunc) Authenticate(ctx context.Context, service any, username, password string) (string, error) {
	return f(ctx, service, username, password)
}

// ErrAuthentication is matched by *AuthenticationError.
var ErrAuthentication = errors.New("authentication failed")

// AuthenticationError wraps a failure of the underlying login flow.
type AuthenticationError struct {
	Username string
	Err      error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authenticate %q: %v", e.Username, e.Err)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

func (e *AuthenticationError) Is(target error) bool { return target == ErrAuthentication }

// CacheKey identifies one credential identity in the cache.
type CacheKey string

// KeyFunc derives the cache key for a login.
type KeyFunc func(service any, username, password string) CacheKey

// Scope selects how credential identities are keyed.
type Scope int

const (
	// ScopeCredentials keys by username and password only, so every service
	// shares one artifact per credential pair.
	ScopeCredentials Scope = iota
	// ScopeService also keys by the target service.
	ScopeService
)

// ServiceNamer lets a target service control its identity under ScopeService.
type ServiceNamer interface {
	ServiceName() string
}

// KeyFunc returns the key derivation for the scope.
func (s Scope) KeyFunc() KeyFunc {
	if s == ScopeService {
		return serviceKey
	}
	return credentialKey
}

func (s Scope) String() string {
	switch s {
	case ScopeCredentials:
		return "credentials"
	case ScopeService:
		return "service"
	default:
		return fmt.Sprintf("Scope(%d)", int(s))
	}
}

// ParseScope parses "credentials" or "service".
func ParseScope(s string) (Scope, error) {
	switch s {
	case "", "credentials":
		return ScopeCredentials, nil
	case "service":
		return ScopeService, nil
	default:
		return 0, fmt.Errorf("unknown auth cache scope %q", s)
	}
}

func credentialKey(_ any, username, password string) CacheKey {
	return CacheKey(username + ":" + digest(password))
}

func serviceKey(service any, username, password string) CacheKey {
	name := fmt.Sprintf("%T", service)
	if n, ok := service.(ServiceNamer); ok {
		name = n.ServiceName()
	}
	return CacheKey(fmt.Sprintf("%d:%s|%d:%s:%s", len(name), name, len(username), username, digest(password)))
}

func digest(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:8])
}

var (
	sharedMu    sync.Mutex
	sharedCache *cachemanager.InMemoryCacheManager[CacheKey, Key]
)

// SharedCache returns the process-wide artifact cache used by clients that
// were not given their own.
func SharedCache() cachemanager.CacheManager[CacheKey, Key] {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	if sharedCache == nil {
		sharedCache = cachemanager.NewInMemoryCacheManager[CacheKey, Key](
			"auth", cachemanager.NoExpiration, cachemanager.DefaultCleanupInterval)
	}
	return sharedCache
}

// ResetSharedCache drops the process-wide cache. Intended for tests.
func ResetSharedCache() {
	sharedMu.Lock()
	defer sharedMu.Unlock()
	sharedCache = nil
}

// Client is the caching core around an Authenticator.
type Client struct {
	authn   Authenticator
	cache   cachemanager.CacheManager[CacheKey, Key]
	keyFunc KeyFunc
	ttl     time.Duration
	group   singleflight.Group
}

// Option configures a Client.
type Option func(*Client)

// WithScope selects a built-in key scope.
func WithScope(s Scope) Option {
	return func(c *Client) { c.keyFunc = s.KeyFunc() }
}

// WithKeyFunc installs a custom key derivation.
func WithKeyFunc(fn KeyFunc) Option {
	return func(c *Client) { c.keyFunc = fn }
}

// WithCache replaces the shared cache.
func WithCache(cache cachemanager.CacheManager[CacheKey, Key]) Option {
	return func(c *Client) { c.cache = cache }
}

// WithTTL bounds how long an artifact stays cached. Zero keeps it for the
// life of the process.
func WithTTL(ttl time.Duration) Option {
	return func(c *Client) { c.ttl = ttl }
}

// NewClient wraps authn with caching.
func NewClient(authn Authenticator, opts ...Option) *Client {
	c := &Client{
		authn:   authn,
		keyFunc: credentialKey,
		ttl:     cachemanager.NoExpiration,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.cache == nil {
		c.cache = SharedCache()
	}
	if c.ttl == 0 {
		c.ttl = cachemanager.NoExpiration
	}
	return c
}

// Authenticate returns the artifact for the credentials. With useCache the
// cached artifact is returned when present, and concurrent misses for the
// same identity share one login. Without useCache the login always runs and
// its result replaces the cached one.
func (c *Client) Authenticate(ctx context.Context, service any, username, password string, useCache bool) (Key, error) {
	key := c.keyFunc(service, username, password)
	logger := ctxlog.FromContext(ctx).With("username", username)

	if !useCache {
		logger.Debug("Authenticating without cache.")
		return c.login(ctx, key, service, username, password)
	}

	if cached, ok := c.cache.Get(ctx, key); ok {
		return cached, nil
	}

	v, err, shared := c.group.Do(string(key), func() (any, error) {
		if cached, ok := c.cache.Get(ctx, key); ok {
			return cached, nil
		}
		logger.Debug("Authentication cache miss, logging in.")
		return c.login(ctx, key, service, username, password)
	})
	if err != nil {
		return Key{}, err
	}
	if shared {
		logger.Debug("Joined in-flight authentication.")
	}
	return v.(Key), nil
}

// AuthenticateCredentials is Authenticate for a Credentials value.
func (c *Client) AuthenticateCredentials(ctx context.Context, service any, creds Credentials, useCache bool) (Key, error) {
	return c.Authenticate(ctx, service, creds.Username(), creds.Password(), useCache)
}

// Forget removes the cached artifact for the credentials.
func (c *Client) Forget(ctx context.Context, service any, username, password string) {
	c.cache.Delete(ctx, c.keyFunc(service, username, password))
}

func (c *Client) login(ctx context.Context, key CacheKey, service any, username, password string) (Key, error) {
	artifact, err := c.authn.Authenticate(ctx, service, username, password)
	if err != nil {
		return Key{}, &AuthenticationError{Username: username, Err: err}
	}
	k := Key{Username: username, Password: password, Artifact: artifact}
	c.cache.Set(ctx, key, k, c.ttl)
	return k, nil
}
