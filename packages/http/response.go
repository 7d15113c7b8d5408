package http

import (
	"encoding/json"
	"strings"
	"time"
)

// Timing is the phase breakdown of one request.
type Timing struct {
	DNS       time.Duration `json:"dns"`
	Connect   time.Duration `json:"connect"`
	TLS       time.Duration `json:"tls"`
	FirstByte time.Duration `json:"firstByte"`
	Download  time.Duration `json:"download"`
	Total     time.Duration `json:"total"`
}

// Milliseconds returns the phases keyed by name, in milliseconds.
func (t Timing) Milliseconds() map[string]float64 {
	return map[string]float64{
		"dns":       ms(t.DNS),
		"connect":   ms(t.Connect),
		"tls":       ms(t.TLS),
		"firstByte": ms(t.FirstByte),
		"download":  ms(t.Download),
		"total":     ms(t.Total),
	}
}

// Value returns one phase in milliseconds. Names are case-insensitive.
func (t Timing) Value(name string) (float64, bool) {
	for k, v := range t.Milliseconds() {
		if strings.EqualFold(k, name) {
			return v, true
		}
	}
	return 0, false
}

func ms(d time.Duration) float64 {
	return float64(d.Microseconds()) / 1000
}

type Response struct {
	StatusCode int               `json:"status"`
	Status     string            `json:"-"`
	Headers    map[string]string `json:"headers"`
	Body       []byte            `json:"-"`
	Timing     Timing            `json:"timing"`
}

func (r *Response) BodyString() string {
	return string(r.Body)
}

// Data returns the decoded JSON body, or the body as a string when it is
// not JSON.
func (r *Response) Data() any {
	if len(r.Body) == 0 {
		return nil
	}
	var result any
	if err := json.Unmarshal(r.Body, &result); err != nil {
		return string(r.Body)
	}
	return result
}

// Header looks a header up case-insensitively.
func (r *Response) Header(key string) string {
	for k, v := range r.Headers {
		if strings.EqualFold(k, key) {
			return v
		}
	}
	return ""
}

func (r *Response) ContentType() string {
	return r.Header("Content-Type")
}

func (r *Response) IsJSON() bool {
	return strings.Contains(r.ContentType(), "application/json")
}

func (r *Response) IsSuccess() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

func (r *Response) DurationMs() int64 {
	return r.Timing.Total.Milliseconds()
}
