package http

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"
)

type Request struct {
	System   string
	Method   string
	URL      string
	Headers  map[string]string
	Body     []byte
	Language string
	Timeout  time.Duration
}

func NewRequest(method, requestURL string) *Request {
	return &Request{
		Method:  method,
		URL:     requestURL,
		Headers: make(map[string]string),
	}
}

func (r *Request) SetHeader(key, value string) *Request {
	r.Headers[key] = value
	return r
}

func (r *Request) SetSystem(name string) *Request {
	r.System = name
	return r
}

func (r *Request) SetLanguage(lang string) *Request {
	r.Language = lang
	return r
}

func (r *Request) SetTimeout(d time.Duration) *Request {
	r.Timeout = d
	return r
}

// SetPayload encodes v as the request body. Strings are sent as-is and
// everything else as JSON with a matching Content-Type unless one is set.
func (r *Request) SetPayload(v any) error {
	switch p := v.(type) {
	case nil:
		r.Body = nil
		return nil
	case string:
		r.Body = []byte(p)
		return nil
	case []byte:
		r.Body = p
		return nil
	}
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}
	r.Body = data
	if !r.hasHeader("Content-Type") {
		r.Headers["Content-Type"] = "application/json"
	}
	return nil
}

func (r *Request) hasHeader(key string) bool {
	for k := range r.Headers {
		if strings.EqualFold(k, key) {
			return true
		}
	}
	return false
}

// JoinURL resolves path against base. Absolute URLs are returned unchanged.
func JoinURL(base, path string) string {
	if base == "" || strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if path == "" {
		return base
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

// ValidateURL checks that a URL is well-formed and uses an allowed scheme
func ValidateURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("invalid URL: %v", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported URL scheme: %s (only http and https are allowed)", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL must have a host")
	}
	return nil
}
