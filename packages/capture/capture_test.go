package capture

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const itemsBody = `{"items":[{"id":"abc","tags":["a","b"]},{"id":"def","tags":[]}],"meta":{"count":2,"page":1},"length":"shadowed"}`

func TestSplit(t *testing.T) {
	assert.Equal(t, []string{"items", "0", "id"}, Split("response.items.0.id"))
	assert.Equal(t, []string{"items", "0", "id"}, Split("items/0/id"))
	assert.Empty(t, Split("response"))
	assert.Empty(t, Split(""))
}

func TestExtractBytes(t *testing.T) {
	tests := []struct {
		name     string
		path     string
		expected any
	}{
		{name: "index and key", path: "response.items.0.id", expected: "abc"},
		{name: "slash separated", path: "items/1/id", expected: "def"},
		{name: "ALL maps next segment", path: "items.ALL.id", expected: []any{"abc", "def"}},
		{name: "all is case insensitive", path: "items.all.id", expected: []any{"abc", "def"}},
		{name: "index is clamped", path: "items.9.id", expected: "def"},
		{name: "array length", path: "items.length", expected: float64(2)},
		{name: "length after ALL", path: "items.ALL.id.length", expected: float64(2)},
		{name: "object keys", path: "meta.keys", expected: []any{"count", "page"}},
		{name: "object values", path: "meta.values", expected: []any{float64(2), float64(1)}},
		{name: "shadowed keyword uses key", path: "length", expected: "shadowed"},
		{name: "whole body", path: "response", expected: map[string]any{
			"items": []any{
				map[string]any{"id": "abc", "tags": []any{"a", "b"}},
				map[string]any{"id": "def", "tags": []any{}},
			},
			"meta":   map[string]any{"count": float64(2), "page": float64(1)},
			"length": "shadowed",
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, ExtractBytes([]byte(itemsBody), tt.path))
		})
	}
}

func TestExtractBytes_NotFound(t *testing.T) {
	assert.True(t, IsNotFound(ExtractBytes([]byte(itemsBody), "items.0.missing")))
	assert.True(t, IsNotFound(ExtractBytes([]byte(itemsBody), "meta.count.deeper")))
	assert.True(t, IsNotFound(ExtractBytes([]byte(`{"items":[]}`), "items.0")))
	assert.Equal(t, "undefined", NotFound.(interface{ String() string }).String())
}

func TestExtractBytes_NonJSON(t *testing.T) {
	assert.Equal(t, "plain text", ExtractBytes([]byte("plain text"), ""))
	assert.True(t, IsNotFound(ExtractBytes([]byte("plain text"), "field")))
}

func TestExtract_Random(t *testing.T) {
	value := map[string]any{"ids": []any{"a", "b", "c"}}

	for i := 0; i < 20; i++ {
		got := Extract(value, "ids.ANY")
		assert.Contains(t, []any{"a", "b", "c"}, got)

		got = Extract(value, "ids.random")
		assert.Contains(t, []any{"a", "b", "c"}, got)
	}

	picked, ok := Extract(value, "ids.ANY_2").([]any)
	require.True(t, ok)
	assert.Len(t, picked, 2)
	assert.NotEqual(t, picked[0], picked[1])

	all, ok := Extract(value, "ids.ANY_10").([]any)
	require.True(t, ok)
	assert.ElementsMatch(t, []any{"a", "b", "c"}, all)
}

func TestExtract_Deterministic(t *testing.T) {
	value := map[string]any{"user": map[string]any{"name": "John", "roles": []any{"admin", "dev"}}}

	first := Extract(value, "user.roles.1")
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, Extract(value, "user.roles.1"))
	}
	assert.Equal(t, "dev", first)
	assert.Equal(t, float64(4), Extract(value, "user.name.length"))
	assert.Equal(t, value, Extract(value, ""))
}
