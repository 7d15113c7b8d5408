package builtin

import (
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"math/rand"
	"net/url"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/sarathm09/vibranium/packages/logging"
)

type Func func(args []string) any

// Registry holds the callable functions. It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	funcs      map[string]Func
	generators map[string]func() any
}

func NewRegistry() *Registry {
	r := &Registry{
		funcs:      make(map[string]Func),
		generators: make(map[string]func() any),
	}
	r.registerDefaults()
	return r
}

// Default is the shared registry used by the template engine.
var Default = NewRegistry()

func (r *Registry) registerDefaults() {
	r.generators["timestamp"] = func() any { return time.Now().Unix() }
	r.generators["timestampMs"] = func() any { return time.Now().UnixMilli() }
	r.generators["now"] = func() any { return time.Now().UTC().Format(time.RFC3339) }
	r.generators["isoDate"] = func() any { return time.Now().UTC().Format("2006-01-02") }
	r.generators["time"] = func() any { return time.Now().UTC().Format("15:04:05") }
	r.generators["uuid"] = func() any { return uuid.New().String() }

	r.funcs["date"] = funcDate
	r.funcs["random"] = funcRandom
	r.funcs["randomString"] = funcRandomString
	r.funcs["base64"] = funcBase64
	r.funcs["urlEncode"] = funcURLEncode
	r.funcs["sha256"] = funcSHA256
}

// Register adds a function callable with arguments.
func (r *Registry) Register(name string, fn Func) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.funcs[name] = fn
}

// RegisterGenerator adds a zero-argument function exposed as a variable.
func (r *Registry) RegisterGenerator(name string, fn func() any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.generators[name] = fn
}

// Generators returns a copy of the zero-argument functions keyed by name.
func (r *Registry) Generators() map[string]func() any {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]func() any, len(r.generators))
	for k, v := range r.generators {
		out[k] = v
	}
	return out
}

var funcCallPattern = regexp.MustCompile(`^(\w+)\((.*)\)$`)

// Call evaluates a call expression such as "random(1, 10)". The second
// return value is false when expr is not a call of a known function.
func (r *Registry) Call(expr string) (any, bool) {
	matches := funcCallPattern.FindStringSubmatch(strings.TrimSpace(expr))
	if matches == nil {
		return nil, false
	}

	r.mu.RLock()
	fn, ok := r.funcs[matches[1]]
	gen, isGen := r.generators[matches[1]]
	r.mu.RUnlock()

	if !ok {
		if isGen && strings.TrimSpace(matches[2]) == "" {
			return gen(), true
		}
		return nil, false
	}

	var args []string
	if matches[2] != "" {
		args = parseArgs(matches[2])
	}
	return fn(args), true
}

func parseArgs(s string) []string {
	var args []string
	var current strings.Builder
	inQuote := false
	quoteChar := byte(0)

	for i := 0; i < len(s); i++ {
		ch := s[i]
		switch {
		case !inQuote && (ch == '"' || ch == '\''):
			inQuote = true
			quoteChar = ch
		case inQuote && ch == quoteChar:
			inQuote = false
			quoteChar = 0
		case !inQuote && ch == ',':
			args = append(args, strings.TrimSpace(current.String()))
			current.Reset()
		default:
			current.WriteByte(ch)
		}
	}

	if current.Len() > 0 {
		args = append(args, strings.TrimSpace(current.String()))
	}

	return args
}

func funcDate(args []string) any {
	layout := "2006-01-02"
	if len(args) >= 1 && args[0] != "" {
		layout = args[0]
	}
	return time.Now().UTC().Format(layout)
}

func funcRandom(args []string) any {
	min, max := 0, 100
	if len(args) >= 2 {
		if v, err := strconv.Atoi(args[0]); err == nil {
			min = v
		} else {
			logging.Warn("Builtin", "random() min argument %q is not a valid integer", args[0])
		}
		if v, err := strconv.Atoi(args[1]); err == nil {
			max = v
		} else {
			logging.Warn("Builtin", "random() max argument %q is not a valid integer", args[1])
		}
	}
	if max < min {
		min, max = max, min
	}
	return rand.Intn(max-min+1) + min
}

func funcRandomString(args []string) any {
	length := 16
	if len(args) >= 1 {
		if v, err := strconv.Atoi(args[0]); err == nil && v >= 0 {
			length = v
		} else {
			logging.Warn("Builtin", "randomString() length argument %q is not a valid integer", args[0])
		}
	}
	return randomString(length, "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789")
}

func funcBase64(args []string) any {
	if len(args) < 1 {
		return ""
	}
	return base64.StdEncoding.EncodeToString([]byte(args[0]))
}

func funcURLEncode(args []string) any {
	if len(args) < 1 {
		return ""
	}
	return url.QueryEscape(args[0])
}

func funcSHA256(args []string) any {
	if len(args) < 1 {
		return ""
	}
	hash := sha256.Sum256([]byte(args[0]))
	return hex.EncodeToString(hash[:])
}

func randomString(length int, charset string) string {
	result := make([]byte, length)
	for i := 0; i < length; i++ {
		result[i] = charset[rand.Intn(len(charset))]
	}
	return string(result)
}
