package capture

import (
	"encoding/json"
	"math/rand"
	"strconv"
	"strings"

	"github.com/sarathm09/vibranium/packages/logging"
	"github.com/tidwall/gjson"
)

type notFound struct{}

func (notFound) String() string { return "undefined" }

// NotFound is returned when a path does not resolve against a value.
var NotFound any = notFound{}

// IsNotFound reports whether v is the NotFound marker.
func IsNotFound(v any) bool {
	_, ok := v.(notFound)
	return ok
}

// Split breaks a path into segments, dropping empty segments and a leading
// "response" segment.
func Split(path string) []string {
	fields := strings.FieldsFunc(path, func(r rune) bool {
		return r == '.' || r == '/'
	})
	if len(fields) > 0 && fields[0] == "response" {
		fields = fields[1:]
	}
	return fields
}

// Extract resolves path against an already decoded JSON value.
func Extract(value any, path string) any {
	segments := Split(path)
	if len(segments) == 0 {
		return value
	}
	if IsNotFound(value) {
		return NotFound
	}

	raw, err := json.Marshal(value)
	if err != nil {
		logging.Warn("Capture", "path %q: value is not JSON encodable: %v", path, err)
		return NotFound
	}
	return resolve(gjson.ParseBytes(raw), path, segments)
}

// ExtractBytes resolves path against a raw response body. A body that is not
// JSON can only be captured as a whole, with an empty path.
func ExtractBytes(body []byte, path string) any {
	segments := Split(path)
	if !gjson.ValidBytes(body) {
		if len(segments) == 0 {
			return string(body)
		}
		logging.Warn("Capture", "path %q: response body is not JSON", path)
		return NotFound
	}

	root := gjson.ParseBytes(body)
	if len(segments) == 0 {
		return root.Value()
	}
	return resolve(root, path, segments)
}

func resolve(cur gjson.Result, path string, segments []string) any {
	for i := 0; i < len(segments); i++ {
		seg := segments[i]

		if strings.EqualFold(seg, "ALL") && !hasMember(cur, seg) {
			items := elements(cur)
			if i+1 >= len(segments) {
				cur = fromResults(items)
				continue
			}
			i++
			next := segments[i]
			mapped := make([]gjson.Result, 0, len(items))
			for _, item := range items {
				if v, ok := apply(item, next); ok {
					mapped = append(mapped, v)
				}
			}
			cur = fromResults(mapped)
			continue
		}

		next, ok := apply(cur, seg)
		if !ok {
			logging.Warn("Capture", "path %q: segment %q not found", path, seg)
			return NotFound
		}
		cur = next
	}
	return cur.Value()
}

// apply evaluates a single non-ALL segment.
func apply(cur gjson.Result, seg string) (gjson.Result, bool) {
	if v, ok := member(cur, seg); ok {
		return v, true
	}

	keyword := strings.ToUpper(seg)
	switch {
	case keyword == "ANY" || keyword == "RANDOM":
		items := elements(cur)
		if len(items) == 0 {
			return gjson.Result{}, false
		}
		return items[rand.Intn(len(items))], true

	case strings.HasPrefix(keyword, "ANY_"):
		n, err := strconv.Atoi(keyword[len("ANY_"):])
		if err != nil || n < 0 {
			return gjson.Result{}, false
		}
		return fromResults(pick(elements(cur), n)), true

	case keyword == "LENGTH":
		switch {
		case cur.IsArray():
			return number(len(cur.Array())), true
		case cur.IsObject():
			return number(len(cur.Map())), true
		case cur.Type == gjson.String:
			return number(len([]rune(cur.String()))), true
		}
		return gjson.Result{}, false

	case keyword == "KEYS":
		if !cur.IsObject() {
			return gjson.Result{}, false
		}
		var keys []gjson.Result
		cur.ForEach(func(key, _ gjson.Result) bool {
			raw, _ := json.Marshal(key.String())
			keys = append(keys, gjson.ParseBytes(raw))
			return true
		})
		return fromResults(keys), true

	case keyword == "VALUES":
		if !cur.IsObject() {
			return gjson.Result{}, false
		}
		return fromResults(elements(cur)), true
	}

	if cur.IsArray() {
		idx, err := strconv.ParseUint(seg, 10, 32)
		if err != nil {
			return gjson.Result{}, false
		}
		items := cur.Array()
		if len(items) == 0 {
			return gjson.Result{}, false
		}
		if int(idx) >= len(items) {
			idx = uint64(len(items) - 1)
		}
		return items[idx], true
	}

	return gjson.Result{}, false
}

// member looks up a literal object key without going through gjson path
// syntax, so keys containing wildcard characters resolve literally.
func member(cur gjson.Result, key string) (gjson.Result, bool) {
	if !cur.IsObject() {
		return gjson.Result{}, false
	}
	var found gjson.Result
	var ok bool
	cur.ForEach(func(k, v gjson.Result) bool {
		if k.String() == key {
			found, ok = v, true
			return false
		}
		return true
	})
	return found, ok
}

func hasMember(cur gjson.Result, key string) bool {
	_, ok := member(cur, key)
	return ok
}

// elements returns array items or object values in document order.
func elements(cur gjson.Result) []gjson.Result {
	if cur.IsArray() {
		return cur.Array()
	}
	var out []gjson.Result
	if cur.IsObject() {
		cur.ForEach(func(_, v gjson.Result) bool {
			out = append(out, v)
			return true
		})
	}
	return out
}

func pick(items []gjson.Result, n int) []gjson.Result {
	if n >= len(items) {
		n = len(items)
	}
	out := make([]gjson.Result, 0, n)
	for _, i := range rand.Perm(len(items))[:n] {
		out = append(out, items[i])
	}
	return out
}

func fromResults(items []gjson.Result) gjson.Result {
	raws := make([]string, len(items))
	for i, item := range items {
		raws[i] = item.Raw
		if raws[i] == "" {
			raws[i] = "null"
		}
	}
	return gjson.Parse("[" + strings.Join(raws, ",") + "]")
}

func number(n int) gjson.Result {
	return gjson.Parse(strconv.Itoa(n))
}
