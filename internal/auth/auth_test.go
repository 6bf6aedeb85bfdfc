package auth

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/questgrid/internal/cachemanager"
)

type countingAuthenticator struct {
	calls atomic.Int32
	delay time.Duration
	err   error
}

func (a *countingAuthenticator) Authenticate(ctx context.Context, service any, username, password string) (string, error) {
	n := a.calls.Add(1)
	if a.delay > 0 {
		time.Sleep(a.delay)
	}
	if a.err != nil {
		return "", a.err
	}
	return "Bearer " + username + "-" + string(rune('0'+n)), nil
}

type namedService string

func (s namedService) ServiceName() string { return string(s) }

func newTestClient(authn Authenticator, opts ...Option) *Client {
	cache := cachemanager.NewInMemoryCacheManager[CacheKey, Key]("test", cachemanager.NoExpiration, cachemanager.DefaultCleanupInterval)
	return NewClient(authn, append([]Option{WithCache(cache)}, opts...)...)
}

func TestAuthenticate_CachesArtifact(t *testing.T) {
	authn := &countingAuthenticator{}
	c := newTestClient(authn)
	ctx := context.Background()

	first, err := c.Authenticate(ctx, nil, "u", "p", true)
	require.NoError(t, err)
	second, err := c.Authenticate(ctx, nil, "u", "p", true)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, Key{Username: "u", Password: "p", Artifact: "Bearer u-1"}, first)
	assert.Equal(t, int32(1), authn.calls.Load())
}

func TestAuthenticate_ConcurrentSingleFlight(t *testing.T) {
	authn := &countingAuthenticator{delay: 50 * time.Millisecond}
	c := newTestClient(authn)

	const n = 64
	results := make([]Key, n)
	start := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			k, err := c.Authenticate(context.Background(), nil, "u", "p", true)
			assert.NoError(t, err)
			results[i] = k
		}(i)
	}
	close(start)
	wg.Wait()

	assert.Equal(t, int32(1), authn.calls.Load())
	for _, k := range results {
		assert.Equal(t, results[0], k)
	}
}

func TestAuthenticate_WithoutCacheAlwaysRecomputes(t *testing.T) {
	authn := &countingAuthenticator{}
	c := newTestClient(authn)
	ctx := context.Background()

	_, err := c.Authenticate(ctx, nil, "u", "p", true)
	require.NoError(t, err)

	a, err := c.Authenticate(ctx, nil, "u", "p", false)
	require.NoError(t, err)
	b, err := c.Authenticate(ctx, nil, "u", "p", false)
	require.NoError(t, err)

	assert.Equal(t, int32(3), authn.calls.Load())
	assert.NotEqual(t, a.Artifact, b.Artifact)

	cached, err := c.Authenticate(ctx, nil, "u", "p", true)
	require.NoError(t, err)
	assert.Equal(t, b, cached, "uncached logins refresh the cache")
	assert.Equal(t, int32(3), authn.calls.Load())
}

func TestAuthenticate_FailureIsWrappedAndNotCached(t *testing.T) {
	boom := errors.New("bad credentials")
	authn := &countingAuthenticator{err: boom, delay: 20 * time.Millisecond}
	c := newTestClient(authn)

	const n = 8
	errs := make([]error, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = c.Authenticate(context.Background(), nil, "u", "p", true)
		}(i)
	}
	wg.Wait()

	for _, err := range errs {
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrAuthentication)
		assert.ErrorIs(t, err, boom)
		var authErr *AuthenticationError
		require.ErrorAs(t, err, &authErr)
		assert.Equal(t, "u", authErr.Username)
	}

	authn.err = nil
	k, err := c.Authenticate(context.Background(), nil, "u", "p", true)
	require.NoError(t, err)
	assert.NotEmpty(t, k.Artifact, "failures must not be cached")
}

func TestAuthenticate_ScopeCredentialsSharesAcrossServices(t *testing.T) {
	authn := &countingAuthenticator{}
	c := newTestClient(authn)
	ctx := context.Background()

	_, err := c.Authenticate(ctx, namedService("users"), "u", "p", true)
	require.NoError(t, err)
	_, err = c.Authenticate(ctx, namedService("orders"), "u", "p", true)
	require.NoError(t, err)
	_, err = c.Authenticate(ctx, namedService("orders"), "u", "other", true)
	require.NoError(t, err)

	assert.Equal(t, int32(2), authn.calls.Load())
}

func TestAuthenticate_ScopeServiceSeparatesServices(t *testing.T) {
	authn := &countingAuthenticator{}
	c := newTestClient(authn, WithScope(ScopeService))
	ctx := context.Background()

	_, err := c.Authenticate(ctx, namedService("users"), "u", "p", true)
	require.NoError(t, err)
	_, err = c.Authenticate(ctx, namedService("orders"), "u", "p", true)
	require.NoError(t, err)
	_, err = c.Authenticate(ctx, namedService("orders"), "u", "p", true)
	require.NoError(t, err)

	assert.Equal(t, int32(2), authn.calls.Load())
}

func TestAuthenticate_ScopeServiceKeysDoNotCollide(t *testing.T) {
	key := ScopeService.KeyFunc()

	assert.NotEqual(t,
		key(namedService("a|b"), "c", "p"),
		key(namedService("a"), "b|c", "p"))

	authn := &countingAuthenticator{}
	c := newTestClient(authn, WithScope(ScopeService))
	ctx := context.Background()
	_, err := c.Authenticate(ctx, namedService("a|b"), "c", "p", true)
	require.NoError(t, err)
	_, err = c.Authenticate(ctx, namedService("a"), "b|c", "p", true)
	require.NoError(t, err)
	assert.Equal(t, int32(2), authn.calls.Load())
}

func TestAuthenticate_CustomKeyFunc(t *testing.T) {
	authn := &countingAuthenticator{}
	c := newTestClient(authn, WithKeyFunc(func(any, string, string) CacheKey { return "everyone" }))
	ctx := context.Background()

	_, err := c.Authenticate(ctx, nil, "a", "1", true)
	require.NoError(t, err)
	k, err := c.Authenticate(ctx, nil, "b", "2", true)
	require.NoError(t, err)

	assert.Equal(t, "a", k.Username)
	assert.Equal(t, int32(1), authn.calls.Load())
}

type creds struct{ user, pass string }

func (c creds) Username() string { return c.user }
func (c creds) Password() string { return c.pass }

func TestAuthenticateCredentialsAndForget(t *testing.T) {
	authn := &countingAuthenticator{}
	c := newTestClient(authn)
	ctx := context.Background()

	_, err := c.AuthenticateCredentials(ctx, nil, creds{"u", "p"}, true)
	require.NoError(t, err)
	c.Forget(ctx, nil, "u", "p")
	_, err = c.AuthenticateCredentials(ctx, nil, creds{"u", "p"}, true)
	require.NoError(t, err)

	assert.Equal(t, int32(2), authn.calls.Load())
}

func TestSharedCache_IsProcessWide(t *testing.T) {
	ResetSharedCache()
	t.Cleanup(ResetSharedCache)

	authn := AuthenticatorFunc(func(context.Context, any, string, string) (string, error) {
		return "token", nil
	})
	a := NewClient(authn)
	b := NewClient(&countingAuthenticator{})

	_, err := a.Authenticate(context.Background(), nil, "u", "p", true)
	require.NoError(t, err)
	k, err := b.Authenticate(context.Background(), nil, "u", "p", true)
	require.NoError(t, err)
	assert.Equal(t, "token", k.Artifact)
}

func TestParseScope(t *testing.T) {
	s, err := ParseScope("service")
	require.NoError(t, err)
	assert.Equal(t, ScopeService, s)
	assert.Equal(t, "service", s.String())

	s, err = ParseScope("")
	require.NoError(t, err)
	assert.Equal(t, ScopeCredentials, s)

	_, err = ParseScope("tenant")
	assert.Error(t, err)
}
