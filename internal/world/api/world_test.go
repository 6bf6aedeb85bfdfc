package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/specialistvlad/questgrid/internal/auth"
	"github.com/specialistvlad/questgrid/internal/cachemanager"
	"github.com/specialistvlad/questgrid/internal/quest"
)

type creds struct{ user, pass string }

func (c creds) Username() string { return c.user }
func (c creds) Password() string { return c.pass }

func newClient(logins *atomic.Int32) *auth.Client {
	cache := cachemanager.NewInMemoryCacheManager[auth.CacheKey, auth.Key]("test", cachemanager.NoExpiration, cachemanager.DefaultCleanupInterval)
	return auth.NewClient(auth.AuthenticatorFunc(func(_ context.Context, _ any, username, _ string) (string, error) {
		logins.Add(1)
		return "Bearer " + username, nil
	}), auth.WithCache(cache))
}

func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Path", r.URL.Path)
		w.Header().Set("X-Query", r.URL.RawQuery)
		w.Header().Set("X-Auth", r.Header.Get("Authorization"))
		w.Header().Set("X-Trace", r.Header.Get("X-Trace"))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"method":"` + r.Method + `"}`))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestRequest_HTTPTransport(t *testing.T) {
	srv := echoServer(t)
	q := quest.New(context.Background())
	w := quest.MustUse[*World](q)

	ep := StaticEndpoint{
		Label:   "get-user",
		Verb:    http.MethodPost,
		Address: srv.URL + "/users/{id}",
		Header:  map[string][]string{"X-Trace": {"abc"}},
	}
	resp, err := w.Request(context.Background(), ep, WithPathParam("id", "42"), WithQuery("verbose", "1"))
	require.NoError(t, err)

	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Equal(t, "/users/42", resp.Header.Get("X-Path"))
	assert.Equal(t, "verbose=1", resp.Header.Get("X-Query"))
	assert.Equal(t, "abc", resp.Header.Get("X-Trace"))

	var body struct{ Method string }
	require.NoError(t, resp.JSON(&body))
	assert.Equal(t, http.MethodPost, body.Method)

	stored, err := w.Response(ep)
	require.NoError(t, err)
	assert.Same(t, resp, stored)

	client, err := quest.Artifact[*World, *http.Client](q)
	require.NoError(t, err)
	assert.NotNil(t, client)

	require.NoError(t, q.Complete(context.Background()))
}

func TestAuthenticate_AttachesHeaderAndUsesCache(t *testing.T) {
	srv := echoServer(t)
	var logins atomic.Int32
	client := newClient(&logins)
	ep := StaticEndpoint{Verb: http.MethodGet, Address: srv.URL + "/me"}

	for i := 0; i < 2; i++ {
		q := quest.New(context.Background())
		w := quest.MustUse[*World](q)

		key, err := w.Authenticate(context.Background(), client, creds{"alice", "pw"}, true)
		require.NoError(t, err)
		assert.Equal(t, "Bearer alice", key.Artifact)

		resp, err := w.Request(context.Background(), ep)
		require.NoError(t, err)
		assert.Equal(t, "Bearer alice", resp.Header.Get("X-Auth"))

		got, err := quest.Artifact[*World, auth.Key](q)
		require.NoError(t, err)
		assert.Equal(t, "alice", got.Username)
	}
	assert.EqualValues(t, 1, logins.Load(), "second quest must reuse the cached artifact")
}

func TestAuthenticate_RuntimeClient(t *testing.T) {
	var logins atomic.Int32
	q := quest.New(context.Background())
	w := quest.MustUse[*World](q)

	_, err := w.Authenticate(context.Background(), nil, creds{"bob", "pw"}, true)
	require.ErrorIs(t, err, ErrNoAuthClient)

	q.Storage().Sub(quest.RuntimeKey).Put(auth.ClientKey, newClient(&logins))
	key, err := w.Authenticate(context.Background(), nil, creds{"bob", "pw"}, true)
	require.NoError(t, err)
	assert.Equal(t, "Bearer bob", key.Artifact)
}

func TestRequest_CustomTransportAndOptions(t *testing.T) {
	q := quest.New(context.Background())
	w := quest.MustUse[*World](q)

	var seen *Request
	w.UseTransport(TransportFunc(func(_ context.Context, req *Request) (*Response, error) {
		seen = req
		return &Response{StatusCode: http.StatusOK}, nil
	}))
	w.UseAuthHeader("X-Token")
	w.credentialForTest("secret")

	ep := StaticEndpoint{Address: "http://svc.local/items"}
	_, err := w.Request(context.Background(), ep, WithJSON(map[string]int{"n": 1}), WithHeader("X-Extra", "1"))
	require.NoError(t, err)

	require.NotNil(t, seen)
	assert.Equal(t, http.MethodGet, seen.Method)
	assert.Equal(t, "secret", seen.Header.Get("X-Token"))
	assert.Equal(t, "application/json", seen.Header.Get("Content-Type"))
	assert.JSONEq(t, `{"n":1}`, string(seen.Body))

	_, err = w.Response(StaticEndpoint{Address: "http://svc.local/other"})
	assert.Error(t, err)
	_, err = w.Response(ep)
	assert.NoError(t, err)
}

func TestRequest_TransportError(t *testing.T) {
	q := quest.New(context.Background())
	w := quest.MustUse[*World](q)
	boom := errors.New("boom")
	w.UseTransport(TransportFunc(func(context.Context, *Request) (*Response, error) { return nil, boom }))

	_, err := w.Request(context.Background(), StaticEndpoint{Label: "x", Address: "http://x"})
	assert.ErrorIs(t, err, boom)
}

func TestRequest_DefaultTransportOnCompletedQuest(t *testing.T) {
	q := quest.New(context.Background())
	w := quest.MustUse[*World](q)
	require.NoError(t, q.Complete(context.Background()))

	_, err := w.Request(context.Background(), StaticEndpoint{Label: "x", Address: "http://x"})

	assert.ErrorIs(t, err, quest.ErrQuestCompleted)
	assert.Empty(t, w.Artifacts(), "transport without a close hook must not be kept")
}

func (w *World) credentialForTest(artifact string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.credential = &auth.Key{Artifact: artifact}
}
