package scenario

import (
	"encoding/json"
	"fmt"
	"strings"
)

// DefaultCollection is used when a document does not name its collection.
const DefaultCollection = "default"

// Hook names a lifecycle script slot.
type Hook string

const (
	BeforeScenario Hook = "before-scenario"
	AfterGlobals   Hook = "after-globals"
	BeforeEach     Hook = "before-each"
	AfterEach      Hook = "after-each"
	AfterScenario  Hook = "after-scenario"
	BeforeEndpoint Hook = "before-endpoint"
	AfterEndpoint  Hook = "after-endpoint"
)

// IsBefore reports whether a failure of the hook aborts the segment it guards.
func (h Hook) IsBefore() bool {
	return strings.HasPrefix(string(h), "before-")
}

// Scripts maps hooks to script source.
type Scripts map[Hook]string

type Scenario struct {
	Name        string         `json:"name"`
	Collection  string         `json:"app,omitempty"`
	FileID      string         `json:"fileId,omitempty"`
	Description string         `json:"description,omitempty"`
	Generate    map[string]any `json:"generate,omitempty"`
	Variables   map[string]any `json:"variables,omitempty"`
	Scripts     Scripts        `json:"scripts,omitempty"`
	Ignore      bool           `json:"ignore,omitempty"`
	Endpoints   []*Endpoint    `json:"endpoints"`
}

// Decode parses a scenario document. collection and fileID fill in the
// identity when the document leaves it out.
func Decode(data []byte, collection, fileID string) (*Scenario, error) {
	var s Scenario
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decoding scenario %s/%s: %w", collection, fileID, err)
	}
	if s.Collection == "" {
		s.Collection = collection
	}
	if s.Collection == "" {
		s.Collection = DefaultCollection
	}
	if s.FileID == "" {
		s.FileID = fileID
	}
	if s.Name == "" {
		s.Name = fileID
	}
	if s.Name == "" {
		return nil, fmt.Errorf("scenario in collection %s has no name", s.Collection)
	}
	for i, ep := range s.Endpoints {
		if ep == nil {
			return nil, fmt.Errorf("scenario %s: endpoint %d is empty", s.Name, i)
		}
		if ep.Name == "" {
			return nil, fmt.Errorf("scenario %s: endpoint %d has no name", s.Name, i)
		}
	}
	return &s, nil
}

// Endpoint returns the endpoint with the given name, or nil.
func (s *Scenario) Endpoint(name string) *Endpoint {
	for _, ep := range s.Endpoints {
		if ep.Name == name {
			return ep
		}
	}
	return nil
}

// Ref returns the identity of one of the scenario's endpoints.
func (s *Scenario) Ref(endpoint string) Ref {
	return Ref{Collection: s.Collection, Scenario: s.Name, Endpoint: endpoint}
}

// Clone copies the scenario and its endpoints so that filtering or running
// never touches the compiled original.
func (s *Scenario) Clone() *Scenario {
	out := *s
	out.Endpoints = make([]*Endpoint, len(s.Endpoints))
	for i, ep := range s.Endpoints {
		out.Endpoints[i] = ep.Clone()
	}
	return &out
}

// Ref identifies an endpoint across collections.
type Ref struct {
	Collection string `json:"collection"`
	Scenario   string `json:"scenario"`
	Endpoint   string `json:"endpoint"`
}

func (r Ref) String() string {
	return r.Collection + "." + r.Scenario + "." + r.Endpoint
}

// Key is the cache key of the endpoint.
func (r Ref) Key() string {
	return r.Collection + "/" + r.Scenario + "/" + r.Endpoint
}
