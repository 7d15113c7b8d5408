package scenario

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DefaultPath is the extraction path used when a dependency declares none.
const DefaultPath = "response"

// Dependency points at an endpoint whose response feeds variables into the
// dependent endpoint.
type Dependency struct {
	Collection string         `json:"collection,omitempty"`
	Scenario   string         `json:"scenario,omitempty"`
	API        string         `json:"api"`
	Variable   Mapping        `json:"variable,omitempty"`
	Path       string         `json:"path,omitempty"`
	Variables  map[string]any `json:"variables,omitempty"`
	Repeat     int            `json:"repeat,omitempty"`
}

// UnmarshalJSON accepts "app" as an alias of "collection".
func (d *Dependency) UnmarshalJSON(data []byte) error {
	type plain Dependency
	var aux struct {
		plain
		App string `json:"app"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	*d = Dependency(aux.plain)
	if d.Collection == "" {
		d.Collection = aux.App
	}
	return nil
}

// Target resolves the referenced endpoint, defaulting collection and
// scenario to those of the dependent endpoint.
func (d Dependency) Target(from Ref) Ref {
	ref := Ref{Collection: d.Collection, Scenario: d.Scenario, Endpoint: d.API}
	if ref.Collection == "" {
		ref.Collection = from.Collection
	}
	if ref.Scenario == "" {
		ref.Scenario = from.Scenario
	}
	return ref
}

// Extractions returns variable name to extraction path. A single named
// variable uses Path; with no variable the whole response is bound under the
// api name.
func (d Dependency) Extractions() map[string]string {
	path := d.Path
	if path == "" {
		path = DefaultPath
	}
	switch {
	case d.Variable.Name != "":
		return map[string]string{d.Variable.Name: path}
	case len(d.Variable.Paths) > 0:
		out := make(map[string]string, len(d.Variable.Paths))
		for k, v := range d.Variable.Paths {
			out[k] = v
		}
		return out
	default:
		return map[string]string{d.API: path}
	}
}

// Repetitions returns how many times the dependency runs.
func (d Dependency) Repetitions() int {
	if d.Repeat < 1 {
		return 1
	}
	return d.Repeat
}

// Mapping is either a single variable name or a map of names to paths.
type Mapping struct {
	Name  string
	Paths map[string]string
}

func (m Mapping) MarshalJSON() ([]byte, error) {
	if m.Name != "" {
		return json.Marshal(m.Name)
	}
	if len(m.Paths) == 0 {
		return []byte("null"), nil
	}
	return json.Marshal(m.Paths)
}

func (m *Mapping) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	switch {
	case trimmed == "null":
		*m = Mapping{}
		return nil
	case strings.HasPrefix(trimmed, `"`):
		var name string
		if err := json.Unmarshal(data, &name); err != nil {
			return err
		}
		*m = Mapping{Name: name}
		return nil
	case strings.HasPrefix(trimmed, "{"):
		var paths map[string]string
		if err := json.Unmarshal(data, &paths); err != nil {
			return fmt.Errorf("variable mapping: %w", err)
		}
		*m = Mapping{Paths: paths}
		return nil
	}
	return fmt.Errorf("variable mapping must be a name or an object, got %s", trimmed)
}

// SiblingVariable reports whether path is the "{name}" shorthand that copies
// an existing variable instead of reading the response.
func SiblingVariable(path string) (string, bool) {
	if len(path) > 2 && path[0] == '{' && path[len(path)-1] == '}' {
		return path[1 : len(path)-1], true
	}
	return "", false
}
