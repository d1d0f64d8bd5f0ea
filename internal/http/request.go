package http

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// Request describes an HTTP request.
//
// A Request is not modified by Build or Client.Do, so one value can be
// shared by every worker replaying the same script.
type Request struct {
	Method      string
	URL         string
	QueryParams url.Values
	Headers     map[string]string
	Body        []byte
}

// NewRequest creates a new HTTP request
func NewRequest(method, rawURL string) *Request {
	return &Request{
		Method:      strings.ToUpper(method),
		URL:         rawURL,
		QueryParams: make(url.Values),
		Headers:     make(map[string]string),
	}
}

// WithHeader adds a header to the request
func (r *Request) WithHeader(key, value string) *Request {
	r.Headers[key] = value
	return r
}

// WithQueryParam adds a query parameter to the request
func (r *Request) WithQueryParam(key, value string) *Request {
	r.QueryParams.Add(key, value)
	return r
}

// WithBody sets the body of the request
func (r *Request) WithBody(body []byte) *Request {
	r.Body = body
	return r
}

// ResolveURL returns the absolute request URL.
//
// Absolute request URLs are used as-is. Relative ones are joined onto
// baseURL, keeping any path prefix the base URL carries.
func (r *Request) ResolveURL(baseURL string) (*url.URL, error) {
	reqURL, err := url.Parse(r.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid request URL %q: %w", r.URL, err)
	}

	if !reqURL.IsAbs() {
		if baseURL == "" {
			return nil, fmt.Errorf("relative URL %q requires a base URL", r.URL)
		}
		base, err := url.Parse(baseURL)
		if err != nil {
			return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
		}
		joined := *base
		joined.Path = strings.TrimRight(base.Path, "/") + "/" + strings.TrimLeft(reqURL.Path, "/")
		joined.RawQuery = reqURL.RawQuery
		reqURL = &joined
	}

	if len(r.QueryParams) > 0 {
		query := reqURL.Query()
		for key, values := range r.QueryParams {
			for _, value := range values {
				query.Add(key, value)
			}
		}
		reqURL.RawQuery = query.Encode()
	}

	return reqURL, nil
}

// Build constructs an http.Request bound to ctx
func (r *Request) Build(ctx context.Context, baseURL string) (*http.Request, error) {
	reqURL, err := r.ResolveURL(baseURL)
	if err != nil {
		return nil, err
	}

	var body io.Reader
	if len(r.Body) > 0 {
		body = bytes.NewReader(r.Body)
	}

	method := r.Method
	if method == "" {
		method = http.MethodGet
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), body)
	if err != nil {
		return nil, err
	}

	for key, value := range r.Headers {
		req.Header.Set(key, value)
	}

	return req, nil
}
