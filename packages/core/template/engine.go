package template

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"regexp"
	"regexp/syntax"
	"strconv"
	"strings"

	"github.com/brianvoe/gofakeit/v6"
	"github.com/sarathm09/vibranium/packages/builtin"
	"github.com/sarathm09/vibranium/packages/capture"
	"github.com/sarathm09/vibranium/packages/logging"
)

// ErrParse is returned when a templated object no longer parses as JSON.
var ErrParse = errors.New("template parse error")

// MaxPatternLength bounds the strings treated as generation patterns.
const MaxPatternLength = 99

var placeholderPattern = regexp.MustCompile(`\{([A-Za-z_][\w\-]*\([^{}()]*\)|[A-Za-z_$][\w$\-]*(?:[./][\w$\-]+)*)\}`)

var loremPattern = regexp.MustCompile(`^lorem_(\d+)$`)

// Engine resolves {placeholders} against a Scope.
type Engine struct {
	datasets map[string][]any
	funcs    *builtin.Registry
}

// Option configures an Engine.
type Option func(*Engine)

// WithDatasets registers the named lists used by {dataset.<name>}.
func WithDatasets(datasets map[string][]any) Option {
	return func(e *Engine) {
		for k, v := range datasets {
			e.datasets[k] = v
		}
	}
}

// WithRegistry replaces the builtin function registry.
func WithRegistry(r *builtin.Registry) Option {
	return func(e *Engine) {
		e.funcs = r
	}
}

func New(opts ...Option) *Engine {
	e := &Engine{
		datasets: make(map[string][]any),
		funcs:    builtin.Default,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Globals returns the builtin generators as a scope, the base layer of every job.
func (e *Engine) Globals() Scope {
	s := make(Scope)
	for name, fn := range e.funcs.Generators() {
		s[name] = Generator(fn)
	}
	return s
}

// Resolve substitutes placeholders in a string or a JSON-like object.
// Objects are serialized, substituted and parsed back; a result that is no
// longer valid JSON yields ErrParse.
func (e *Engine) Resolve(tmpl any, scope Scope) (any, error) {
	switch v := tmpl.(type) {
	case nil:
		return nil, nil
	case string:
		return e.ResolveString(v, scope), nil
	case map[string]any, []any:
		return e.ResolveObject(v, scope)
	default:
		return v, nil
	}
}

// ResolveString substitutes placeholders and, when the result is short
// enough, expands it as a generation pattern: "user_[a-z]{5}" becomes
// one random matching string. Substituted values are always taken
// literally, and "?", "$", "(", ")" and "." in the template are literal too
// so URLs survive.
func (e *Engine) ResolveString(s string, scope Scope) string {
	var out, pattern strings.Builder
	last := 0
	for _, m := range placeholderPattern.FindAllStringSubmatchIndex(s, -1) {
		literal := s[last:m[0]]
		out.WriteString(literal)
		pattern.WriteString(escapeURL(literal))

		value, ok := e.lookup(s[m[2]:m[3]], scope)
		if !ok {
			text := s[m[0]:m[1]]
			out.WriteString(text)
			pattern.WriteString(regexp.QuoteMeta(text))
		} else {
			text := format(value)
			out.WriteString(text)
			pattern.WriteString(regexp.QuoteMeta(text))
		}
		last = m[1]
	}
	out.WriteString(s[last:])
	pattern.WriteString(escapeURL(s[last:]))

	result := out.String()
	if len(result) >= MaxPatternLength {
		return result
	}
	return expandPattern(result, pattern.String())
}

// Substitute replaces placeholders without pattern expansion. It is used for
// expressions evaluated by the script sandbox.
func (e *Engine) Substitute(s string, scope Scope) string {
	return placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
		value, ok := e.lookup(match[1:len(match)-1], scope)
		if !ok {
			return match
		}
		return format(value)
	})
}

// ResolveObject substitutes placeholders inside a JSON-like value. A string
// that consists of a single placeholder bound to an object or array is
// replaced by that value rather than its string form.
func (e *Engine) ResolveObject(v any, scope Scope) (any, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	text := strings.TrimSuffix(buf.String(), "\n")

	var out strings.Builder
	last := 0
	for _, m := range placeholderPattern.FindAllStringSubmatchIndex(text, -1) {
		start, end := m[0], m[1]
		value, ok := e.lookup(text[m[2]:m[3]], scope)
		if !ok {
			continue
		}

		lone := start > 0 && end < len(text) && text[start-1] == '"' && text[end] == '"'
		if lone && isStructured(value) {
			raw, err := marshal(value)
			if err != nil {
				return nil, fmt.Errorf("%w: %v", ErrParse, err)
			}
			out.WriteString(text[last : start-1])
			out.WriteString(raw)
			last = end + 1
			continue
		}
		if lone && capture.IsNotFound(value) {
			out.WriteString(text[last : start-1])
			out.WriteString("null")
			last = end + 1
			continue
		}

		out.WriteString(text[last:start])
		out.WriteString(escapeJSONString(format(value)))
		last = end
	}
	out.WriteString(text[last:])

	dec := json.NewDecoder(strings.NewReader(out.String()))
	dec.UseNumber()
	var result any
	if err := dec.Decode(&result); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrParse, err)
	}
	return result, nil
}

func (e *Engine) lookup(expr string, scope Scope) (any, bool) {
	if strings.HasSuffix(expr, ")") {
		return e.funcs.Call(expr)
	}

	if v, ok := scope.Lookup(expr); ok {
		return v, true
	}

	if name, ok := strings.CutPrefix(expr, "dataset."); ok {
		if list, ok := e.datasets[name]; ok && len(list) > 0 {
			return list[rand.Intn(len(list))], true
		}
		if v, ok := scope.Lookup("dataset"); ok {
			if list, ok := capture.Extract(v, name).([]any); ok && len(list) > 0 {
				return list[rand.Intn(len(list))], true
			}
		}
	}

	if m := loremPattern.FindStringSubmatch(expr); m != nil {
		n, err := strconv.Atoi(m[1])
		if err == nil {
			return Lorem(n), true
		}
	}

	if head, rest, ok := cutPath(expr); ok {
		if v, found := scope.Lookup(head); found {
			return capture.Extract(v, rest), true
		}
	}

	if gen, ok := e.funcs.Generators()[expr]; ok {
		return gen(), true
	}

	logging.Debug("Template", "unresolved placeholder {%s}", expr)
	return nil, false
}

func cutPath(expr string) (string, string, bool) {
	i := strings.IndexAny(expr, "./")
	if i <= 0 {
		return "", "", false
	}
	return expr[:i], expr[i+1:], true
}

func isStructured(v any) bool {
	switch v.(type) {
	case map[string]any, []any:
		return true
	}
	return false
}

func format(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case json.Number:
		return val.String()
	case map[string]any, []any:
		raw, err := marshal(val)
		if err != nil {
			return fmt.Sprintf("%v", val)
		}
		return raw
	default:
		return fmt.Sprintf("%v", val)
	}
}

func marshal(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func escapeJSONString(s string) string {
	raw, err := marshal(s)
	if err != nil {
		return s
	}
	return raw[1 : len(raw)-1]
}

var urlEscaper = strings.NewReplacer(`?`, `\?`, `$`, `\$`, `(`, `\(`, `)`, `\)`, `.`, `\.`)

func escapeURL(s string) string {
	return urlEscaper.Replace(s)
}

// expandPattern returns one random string matching pattern, or result when
// the pattern is a plain literal or does not parse.
func expandPattern(result, pattern string) string {
	re, err := syntax.Parse(pattern, syntax.Perl)
	if err != nil {
		return result
	}
	if isLiteral(re.Simplify()) {
		return result
	}
	return gofakeit.Regex(pattern)
}

func isLiteral(re *syntax.Regexp) bool {
	switch re.Op {
	case syntax.OpLiteral, syntax.OpEmptyMatch:
		return true
	case syntax.OpConcat:
		for _, sub := range re.Sub {
			if !isLiteral(sub) {
				return false
			}
		}
		return true
	}
	return false
}
