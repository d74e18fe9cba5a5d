package camera

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"

	"theta-panel/pkg/models"
)

const DefaultRequestTimeout = 10 * time.Second

// Response is a fully read camera answer.
type Response struct {
	Status int
	Header http.Header
	Body   []byte
}

func (r *Response) JSON(v any) error {
	if err := json.Unmarshal(r.Body, v); err != nil {
		return fmt.Errorf("decode camera response: %w", err)
	}
	return nil
}

// StreamResponse is a camera answer whose body is still on the wire. The
// caller owns Body and must close it.
type StreamResponse struct {
	Status        int
	Header        http.Header
	ContentLength int64
	Body          io.ReadCloser
}

// Caller is the request surface the poller, the OSC client and the relay
// depend on.
type Caller interface {
	Call(ctx context.Context, method, path string, body any) (*Response, error)
	Stream(ctx context.Context, method, path string, body any, timeout time.Duration) (*StreamResponse, error)
}

// Transport issues camera requests using whatever profile the store holds at
// the moment of the call, switching to digest authentication when the
// profile asks for it.
type Transport struct {
	store   *Store
	timeout time.Duration
	base    http.RoundTripper
	logger  resty.Logger
}

type TransportOption func(*Transport)

func WithRequestTimeout(d time.Duration) TransportOption {
	return func(t *Transport) { t.timeout = d }
}

func WithRoundTripper(rt http.RoundTripper) TransportOption {
	return func(t *Transport) { t.base = rt }
}

func WithLogger(l resty.Logger) TransportOption {
	return func(t *Transport) { t.logger = l }
}

func NewTransport(store *Store, opts ...TransportOption) *Transport {
	t := &Transport{
		store:   store,
		timeout: DefaultRequestTimeout,
		base:    http.DefaultTransport.(*http.Transport).Clone(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

var _ Caller = (*Transport)(nil)

// newClient builds a client for one request. resty's digest support swaps the
// http.Client transport around each request, so clients are never shared;
// the underlying connection pool is.
func (t *Transport) newClient(cfg models.CameraConfig, timeout time.Duration) *resty.Client {
	c := resty.NewWithClient(&http.Client{Transport: t.base})
	c.SetBaseURL(cfg.BaseURL())
	c.SetHeader("Content-Type", "application/json")
	c.SetTimeout(timeout)
	if t.logger != nil {
		c.SetLogger(t.logger)
	}
	if cfg.UsesDigest() {
		c.SetDigestAuth(cfg.Username, cfg.Password)
	}
	return c
}

func (t *Transport) request(ctx context.Context, timeout time.Duration, body any) *resty.Request {
	req := t.newClient(t.store.Get(), timeout).R().SetContext(ctx)
	if body != nil {
		req.SetBody(body)
	}
	return req
}

func (t *Transport) Call(ctx context.Context, method, path string, body any) (*Response, error) {
	resp, err := t.request(ctx, t.timeout, body).Execute(method, path)
	if err != nil {
		return nil, &TransportError{Method: method, Path: path, Err: err}
	}
	if !resp.IsSuccess() {
		return nil, &TransportError{Method: method, Path: path, Status: resp.StatusCode()}
	}
	return &Response{
		Status: resp.StatusCode(),
		Header: resp.Header(),
		Body:   resp.Body(),
	}, nil
}

// Stream leaves the body unread. A zero timeout means no deadline beyond ctx.
func (t *Transport) Stream(ctx context.Context, method, path string, body any, timeout time.Duration) (*StreamResponse, error) {
	resp, err := t.request(ctx, timeout, body).
		SetDoNotParseResponse(true).
		Execute(method, path)
	if err != nil {
		return nil, &TransportError{Method: method, Path: path, Err: err}
	}
	raw := resp.RawBody()
	if !resp.IsSuccess() {
		if raw != nil {
			raw.Close()
		}
		return nil, &TransportError{Method: method, Path: path, Status: resp.StatusCode()}
	}
	return &StreamResponse{
		Status:        resp.StatusCode(),
		Header:        resp.Header(),
		ContentLength: resp.RawResponse.ContentLength,
		Body:          raw,
	}, nil
}
