package http

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	neturl "net/url"
	"sort"
	"sync"
	"time"

	"github.com/sarathm09/vibranium/packages/auth/oauth2"
)

const (
	// DefaultTimeout is the default HTTP request timeout
	DefaultTimeout = 30 * time.Second
	// DefaultMaxRedirects is the maximum number of redirects to follow
	DefaultMaxRedirects = 10
	// DefaultMaxIdleConns is the maximum number of idle connections in the pool
	DefaultMaxIdleConns = 100
	// DefaultMaxIdleConnsPerHost is the maximum number of idle connections per host
	DefaultMaxIdleConnsPerHost = 10
	// DefaultIdleConnTimeout is how long idle connections stay in the pool
	DefaultIdleConnTimeout = 90 * time.Second
)

// ErrUnknownSystem is returned for a request naming a system that was never added.
var ErrUnknownSystem = errors.New("unknown system")

type Client struct {
	httpClient     *http.Client
	timeout        time.Duration
	followRedirect bool
	maxRedirects   int
	validateSSL    bool
	proxyURL       string
	defaultHeaders map[string]string
	defaultSystem  string
	tokens         *oauth2.TokenCache

	mu      sync.RWMutex
	systems map[string]*registeredSystem
}

type registeredSystem struct {
	System
	auth *authorizer
}

type ClientOption func(*Client)

func NewClient(opts ...ClientOption) *Client {
	c := &Client{
		timeout:        DefaultTimeout,
		followRedirect: true,
		maxRedirects:   DefaultMaxRedirects,
		validateSSL:    true,
		defaultHeaders: make(map[string]string),
		tokens:         oauth2.NewTokenCache(),
		systems:        make(map[string]*registeredSystem),
	}

	for _, opt := range opts {
		opt(c)
	}

	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        DefaultMaxIdleConns,
		MaxIdleConnsPerHost: DefaultMaxIdleConnsPerHost,
		IdleConnTimeout:     DefaultIdleConnTimeout,
	}

	if !c.validateSSL {
		transport.TLSClientConfig = &tls.Config{
			InsecureSkipVerify: true,
		}
	}

	if c.proxyURL != "" {
		proxyURL, err := neturl.Parse(c.proxyURL)
		if err == nil {
			transport.Proxy = http.ProxyURL(proxyURL)
		}
	}

	redirectPolicy := func(req *http.Request, via []*http.Request) error {
		if !c.followRedirect {
			return http.ErrUseLastResponse
		}
		if len(via) >= c.maxRedirects {
			return http.ErrUseLastResponse
		}
		return nil
	}

	c.httpClient = &http.Client{
		Transport:     transport,
		Timeout:       c.timeout,
		CheckRedirect: redirectPolicy,
	}

	return c
}

func WithTimeout(d time.Duration) ClientOption {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithFollowRedirects(follow bool) ClientOption {
	return func(c *Client) {
		c.followRedirect = follow
	}
}

func WithMaxRedirects(max int) ClientOption {
	return func(c *Client) {
		c.maxRedirects = max
	}
}

// WithDefaultHeaders sets headers sent with every request.
func WithDefaultHeaders(headers map[string]string) ClientOption {
	return func(c *Client) {
		for k, v := range headers {
			c.defaultHeaders[k] = v
		}
	}
}

// WithValidateSSL enables or disables SSL certificate validation
func WithValidateSSL(validate bool) ClientOption {
	return func(c *Client) {
		c.validateSSL = validate
	}
}

// WithProxy sets the proxy URL for all requests
func WithProxy(proxyURL string) ClientOption {
	return func(c *Client) {
		c.proxyURL = proxyURL
	}
}

// WithDefaultSystem names the system used by requests that do not pick one.
func WithDefaultSystem(name string) ClientOption {
	return func(c *Client) {
		c.defaultSystem = name
	}
}

// AddSystem registers a target system.
func (c *Client) AddSystem(s System) error {
	if s.Name == "" {
		return fmt.Errorf("system must have a name")
	}
	auth, err := newAuthorizer(s.Auth, c.tokens)
	if err != nil {
		return fmt.Errorf("system %s: %w", s.Name, err)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.systems[s.Name] = &registeredSystem{System: s, auth: auth}
	return nil
}

// HasSystem reports whether name can be used for requests. The empty name
// refers to the default system.
func (c *Client) HasSystem(name string) bool {
	_, err := c.system(name)
	return err == nil
}

// Systems returns the registered system names in sorted order.
func (c *Client) Systems() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	names := make([]string, 0, len(c.systems))
	for name := range c.systems {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (c *Client) system(name string) (*registeredSystem, error) {
	if name == "" {
		name = c.defaultSystem
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if name == "" {
		return nil, nil
	}
	s, ok := c.systems[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSystem, name)
	}
	return s, nil
}

// Send performs req against its system.
func (c *Client) Send(ctx context.Context, req *Request) (*Response, error) {
	sys, err := c.system(req.System)
	if err != nil {
		return nil, err
	}

	target := req.URL
	if sys != nil {
		target = JoinURL(sys.BaseURL, req.URL)
	}
	if err := ValidateURL(target); err != nil {
		return nil, err
	}

	if req.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, req.Timeout)
		defer cancel()
	}

	var body io.Reader
	if len(req.Body) > 0 {
		body = bytes.NewReader(req.Body)
	}

	var tr tracer
	ctx = httptrace.WithClientTrace(ctx, tr.trace())

	httpReq, err := http.NewRequestWithContext(ctx, req.Method, target, body)
	if err != nil {
		return nil, err
	}

	for k, v := range c.defaultHeaders {
		httpReq.Header.Set(k, v)
	}
	if sys != nil {
		for k, v := range sys.Headers {
			httpReq.Header.Set(k, v)
		}
	}
	if req.Language != "" {
		httpReq.Header.Set("Accept-Language", req.Language)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if sys != nil && httpReq.Header.Get("Authorization") == "" {
		authHeader, err := sys.auth.header(ctx)
		if err != nil {
			return nil, err
		}
		if authHeader != "" {
			httpReq.Header.Set("Authorization", authHeader)
		}
	}

	tr.begin()
	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer httpResp.Body.Close()

	respBody, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, err
	}

	headers := make(map[string]string)
	for k := range httpResp.Header {
		headers[k] = httpResp.Header.Get(k)
	}

	return &Response{
		StatusCode: httpResp.StatusCode,
		Status:     httpResp.Status,
		Headers:    headers,
		Body:       respBody,
		Timing:     tr.finish(),
	}, nil
}

// tracer collects phase durations from httptrace callbacks, which may fire
// on transport goroutines.
type tracer struct {
	mu                               sync.Mutex
	start, dns, conn, tls, firstByte time.Time
	timing                           Timing
}

func (t *tracer) begin() {
	t.mu.Lock()
	t.start = time.Now()
	t.mu.Unlock()
}

func (t *tracer) mark(at *time.Time) {
	t.mu.Lock()
	*at = time.Now()
	t.mu.Unlock()
}

func (t *tracer) since(from *time.Time, into *time.Duration) {
	t.mu.Lock()
	if !from.IsZero() {
		*into = time.Since(*from)
	}
	t.mu.Unlock()
}

func (t *tracer) trace() *httptrace.ClientTrace {
	return &httptrace.ClientTrace{
		DNSStart:          func(httptrace.DNSStartInfo) { t.mark(&t.dns) },
		DNSDone:           func(httptrace.DNSDoneInfo) { t.since(&t.dns, &t.timing.DNS) },
		ConnectStart:      func(string, string) { t.mark(&t.conn) },
		ConnectDone:       func(string, string, error) { t.since(&t.conn, &t.timing.Connect) },
		TLSHandshakeStart: func() { t.mark(&t.tls) },
		TLSHandshakeDone:  func(tls.ConnectionState, error) { t.since(&t.tls, &t.timing.TLS) },
		GotFirstResponseByte: func() {
			t.mark(&t.firstByte)
			t.since(&t.start, &t.timing.FirstByte)
		},
	}
}

func (t *tracer) finish() Timing {
	t.since(&t.firstByte, &t.timing.Download)
	t.since(&t.start, &t.timing.Total)
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timing
}
