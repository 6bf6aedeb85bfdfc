package api

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

// Endpoint describes one API call target.
type Endpoint interface {
	Method() string
	URL() string
	Headers() map[string][]string
	// DefaultConfiguration is the starting point for every request to the
	// endpoint. Empty Method and URL fall back to the endpoint's own.
	DefaultConfiguration() Request
}

// Request is the transport-level description of one call.
type Request struct {
	Method     string
	URL        string
	Header     http.Header
	Query      url.Values
	PathParams map[string]string
	Body       []byte
}

func (r Request) clone() Request {
	out := r
	out.Header = r.Header.Clone()
	if out.Header == nil {
		out.Header = make(http.Header)
	}
	out.Query = make(url.Values, len(r.Query))
	for k, v := range r.Query {
		out.Query[k] = append([]string(nil), v...)
	}
	out.PathParams = make(map[string]string, len(r.PathParams))
	for k, v := range r.PathParams {
		out.PathParams[k] = v
	}
	out.Body = append([]byte(nil), r.Body...)
	return out
}

// resolve substitutes {name} path parameters and appends the query.
func (r *Request) resolve() error {
	raw := r.URL
	for k, v := range r.PathParams {
		raw = strings.ReplaceAll(raw, "{"+k+"}", url.PathEscape(v))
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("parse url %q: %w", raw, err)
	}
	if len(r.Query) > 0 {
		q := u.Query()
		for k, vs := range r.Query {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	r.URL = u.String()
	return nil
}

// RequestOption customizes a single request.
type RequestOption func(*Request) error

// WithHeader sets a header, replacing endpoint defaults.
func WithHeader(key, value string) RequestOption {
	return func(r *Request) error {
		r.Header.Set(key, value)
		return nil
	}
}

// WithQuery adds a query parameter.
func WithQuery(key, value string) RequestOption {
	return func(r *Request) error {
		r.Query.Add(key, value)
		return nil
	}
}

// WithPathParam fills a {key} placeholder in the URL.
func WithPathParam(key, value string) RequestOption {
	return func(r *Request) error {
		r.PathParams[key] = value
		return nil
	}
}

// WithBody sets a raw body.
func WithBody(body []byte) RequestOption {
	return func(r *Request) error {
		r.Body = body
		return nil
	}
}

// WithJSON encodes v as the body and sets the content type.
func WithJSON(v any) RequestOption {
	return func(r *Request) error {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		r.Body = b
		r.Header.Set("Content-Type", "application/json")
		return nil
	}
}

// StaticEndpoint is an Endpoint record.
type StaticEndpoint struct {
	Label   string
	Verb    string
	Address string
	Header  map[string][]string
}

func (e StaticEndpoint) Name() string                 { return e.Label }
func (e StaticEndpoint) Method() string               { return e.Verb }
func (e StaticEndpoint) URL() string                  { return e.Address }
func (e StaticEndpoint) Headers() map[string][]string { return e.Header }
func (e StaticEndpoint) DefaultConfiguration() Request {
	return Request{}
}
