package template

import (
	"encoding/json"
	"errors"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_ResolveString(t *testing.T) {
	e := New()
	scope := NewScope(map[string]any{
		"host":  "localhost:3000",
		"id":    float64(42),
		"name":  "alice",
		"user":  map[string]any{"items": []any{map[string]any{"id": "abc"}}},
		"price": 12.5,
	})

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "plain string", input: "hello world", expected: "hello world"},
		{name: "url with query", input: "http://{host}/api/users?id={id}&name={name}", expected: "http://localhost:3000/api/users?id=42&name=alice"},
		{name: "dotted path", input: "item={user.items.0.id}", expected: "item=abc"},
		{name: "slash path", input: "item={user/items/0/id}", expected: "item=abc"},
		{name: "missing path", input: "{user.items.0.missing}", expected: "undefined"},
		{name: "float", input: "{price}", expected: "12.5"},
		{name: "unknown stays", input: "/users/{unknown}", expected: "/users/{unknown}"},
		{name: "json braces untouched", input: `{"a": 1}`, expected: `{"a": 1}`},
		{name: "parentheses kept", input: "(draft) v1.0$", expected: "(draft) v1.0$"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, e.ResolveString(tt.input, scope))
		})
	}
}

func TestEngine_Idempotent(t *testing.T) {
	e := New()
	inputs := []string{
		"hello",
		"http://example.com/api/v1/users?page=2&limit=10",
		"Price: $5 (approx.)",
		"",
		"{not_a_variable}",
	}
	for _, in := range inputs {
		once := e.ResolveString(in, Scope{})
		assert.Equal(t, in, once)
		assert.Equal(t, in, e.ResolveString(once, Scope{}))
	}
}

func TestEngine_Pattern(t *testing.T) {
	e := New()
	out := e.ResolveString("user_[a-z]{5}", Scope{})
	assert.Regexp(t, regexp.MustCompile(`^user_[a-z]{5}$`), out)

	long := strings.Repeat("x", 100) + "[a-z]{3}"
	assert.Equal(t, long, e.ResolveString(long, Scope{}))

	// substituted values are never expanded
	scope := NewScope(map[string]any{"p": "[0-9]+"})
	assert.Equal(t, "id=[0-9]+", e.ResolveString("id={p}", scope))
}

func TestEngine_Dataset(t *testing.T) {
	names := []any{"ann", "bob", "cid", "dan"}
	e := New(WithDatasets(map[string][]any{"names": names}))

	for i := 0; i < 20; i++ {
		out := e.ResolveString("{dataset.names} and {dataset.names}", Scope{})
		parts := strings.Split(out, " and ")
		require.Len(t, parts, 2)
		assert.Contains(t, names, parts[0])
		assert.Contains(t, names, parts[1])
	}
}

func TestEngine_Lorem(t *testing.T) {
	e := New()
	out := e.ResolveString("{lorem_120}", Scope{})
	assert.Len(t, out, 120)
	assert.True(t, strings.HasSuffix(out, "."))
	assert.NotContains(t, out, "{")

	assert.Equal(t, "", Lorem(0))
	assert.Equal(t, ".", Lorem(1))
}

func TestEngine_Generators(t *testing.T) {
	e := New()
	scope := e.Globals()

	out := e.ResolveString("{uuid}", scope)
	assert.Regexp(t, `^[0-9a-f-]{36}$`, out)
	assert.NotEqual(t, out, e.ResolveString("{uuid}", scope))

	n := e.ResolveString("{random(3, 3)}", Scope{})
	assert.Equal(t, "3", n)
}

func TestEngine_ResolveObject(t *testing.T) {
	e := New()
	scope := NewScope(map[string]any{
		"name":  `say "hi"`,
		"tags":  []any{"a", "b"},
		"owner": map[string]any{"id": float64(7)},
	})

	tmpl := map[string]any{
		"title": "{name}",
		"tags":  "{tags}",
		"owner": "{owner}",
		"ref":   "owner-{owner.id}",
		"miss":  "{owner.none}",
		"keep":  float64(1),
	}

	got, err := e.ResolveObject(tmpl, scope)
	require.NoError(t, err)

	obj := got.(map[string]any)
	assert.Equal(t, `say "hi"`, obj["title"])
	assert.Equal(t, []any{"a", "b"}, obj["tags"])
	assert.Equal(t, map[string]any{"id": json.Number("7")}, obj["owner"])
	assert.Equal(t, "owner-7", obj["ref"])
	assert.Nil(t, obj["miss"])
	assert.Equal(t, json.Number("1"), obj["keep"])
}

func TestEngine_ResolveObject_ParseError(t *testing.T) {
	e := New()
	scope := NewScope(map[string]any{"bad": map[string]any{"k": "v"}})

	// embedding an object into the middle of a key leaves invalid JSON
	_, err := e.ResolveObject(map[string]any{"{bad}": "x"}, scope)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrParse))
}

func TestEngine_Substitute(t *testing.T) {
	e := New()
	scope := NewScope(map[string]any{"response": map[string]any{"count": float64(3)}})
	assert.Equal(t, "3 > 2", e.Substitute("{response.count} > 2", scope))
	assert.Equal(t, "[a-z]+", e.Substitute("[a-z]+", scope))
}
