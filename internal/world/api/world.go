// Package api provides the API World: requests against declared endpoints,
// authenticated through the process-wide authentication cache.
package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/specialistvlad/questgrid/internal/auth"
	"github.com/specialistvlad/questgrid/internal/ctxlog"
	"github.com/specialistvlad/questgrid/internal/quest"
	"github.com/specialistvlad/questgrid/internal/storage"
)

// ResponsesKey is the storage compartment holding the last response per
// endpoint.
const ResponsesKey storage.Key = "api.responses"

// ErrNoAuthClient is returned by Authenticate when neither an explicit client
// nor a runtime client is available.
var ErrNoAuthClient = errors.New("no authentication client")

// World performs API calls for one quest.
type World struct {
	quest.Base

	mu         sync.Mutex
	transport  Transport
	service    string
	authHeader string
	credential *auth.Key
}

// Artifacts exposes the transport and the current credential.
func (w *World) Artifacts() []any {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := []any{}
	if w.transport != nil {
		out = append(out, w.transport)
		if ht, ok := w.transport.(*HTTPTransport); ok {
			out = append(out, ht.Client)
		}
	}
	if w.credential != nil {
		out = append(out, *w.credential)
	}
	return out
}

// UseTransport replaces the transport used for requests.
func (w *World) UseTransport(t Transport) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.transport = t
}

// UseService names the target service for service-scoped authentication.
func (w *World) UseService(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.service = name
}

// ServiceName implements auth.ServiceNamer.
func (w *World) ServiceName() string {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.service == "" {
		return "api"
	}
	return w.service
}

// UseAuthHeader changes the header carrying the credential artifact.
// Defaults to Authorization.
func (w *World) UseAuthHeader(name string) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.authHeader = name
}

func (w *World) transportLocked() (Transport, error) {
	if w.transport == nil {
		ht := NewHTTPTransport(DefaultTimeout)
		if q := w.Quest(); q != nil {
			err := q.OnComplete("api:close-transport", func(context.Context, *quest.Quest) error {
				return ht.Close()
			})
			if err != nil {
				_ = ht.Close()
				return nil, fmt.Errorf("api world: %w", err)
			}
		}
		w.transport = ht
	}
	return w.transport, nil
}

// Authenticate logs in with creds and attaches the resulting artifact to
// every later request. A nil client falls back to the runtime's client.
func (w *World) Authenticate(ctx context.Context, client *auth.Client, creds auth.Credentials, useCache bool) (auth.Key, error) {
	if client == nil {
		client = w.runtimeClient()
	}
	if client == nil {
		return auth.Key{}, ErrNoAuthClient
	}
	key, err := client.AuthenticateCredentials(ctx, w, creds, useCache)
	if err != nil {
		return auth.Key{}, err
	}
	w.mu.Lock()
	w.credential = &key
	w.mu.Unlock()
	return key, nil
}

// Logout drops the attached credential. The cached artifact is kept.
func (w *World) Logout() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.credential = nil
}

func (w *World) runtimeClient() *auth.Client {
	s := w.Storage()
	if s == nil {
		return nil
	}
	c, err := storage.Get[*auth.Client](s.Sub(quest.RuntimeKey), auth.ClientKey)
	if err != nil {
		return nil
	}
	return c
}

// Request sends a call to ep and records the response under the endpoint's
// key.
func (w *World) Request(ctx context.Context, ep Endpoint, opts ...RequestOption) (*Response, error) {
	req := ep.DefaultConfiguration().clone()
	if req.Method == "" {
		req.Method = ep.Method()
	}
	if req.Method == "" {
		req.Method = http.MethodGet
	}
	if req.URL == "" {
		req.URL = ep.URL()
	}
	for k, vs := range ep.Headers() {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}

	w.mu.Lock()
	if w.credential != nil {
		name := w.authHeader
		if name == "" {
			name = "Authorization"
		}
		req.Header.Set(name, w.credential.Artifact)
	}
	transport, err := w.transportLocked()
	w.mu.Unlock()
	if err != nil {
		return nil, err
	}

	for _, opt := range opts {
		if err := opt(&req); err != nil {
			return nil, err
		}
	}
	if err := req.resolve(); err != nil {
		return nil, err
	}

	key := EndpointKey(ep)
	ctxlog.FromContext(ctx).Debug("Sending API request.", "endpoint", key, "method", req.Method)
	resp, err := transport.Do(ctx, &req)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", key, err)
	}
	if s := w.Storage(); s != nil {
		s.Sub(ResponsesKey).Put(key, resp)
	}
	return resp, nil
}

// Response returns the last response recorded for ep.
func (w *World) Response(ep Endpoint) (*Response, error) {
	s := w.Storage()
	if s == nil {
		return nil, fmt.Errorf("api world is not attached to a quest")
	}
	return storage.Get[*Response](s.Sub(ResponsesKey), EndpointKey(ep))
}

// EndpointKey is the storage key for ep: its name when it has one, otherwise
// its method and URL.
func EndpointKey(ep Endpoint) storage.Key {
	if n, ok := ep.(interface{ Name() string }); ok && n.Name() != "" {
		return storage.Key(n.Name())
	}
	return storage.Key(ep.Method() + " " + ep.URL())
}
