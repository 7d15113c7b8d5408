package compiler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/sarathm09/vibranium/packages/core/scenario"
	"github.com/sarathm09/vibranium/packages/logging"
)

var (
	// ErrCompilation marks a scenario document that could not be compiled.
	ErrCompilation = errors.New("compilation error")
	// ErrNotFound is returned by Lookup when no compiled endpoint matches.
	ErrNotFound = errors.New("endpoint not found")
)

// RawDocument is one unparsed scenario document.
type RawDocument struct {
	Collection string
	FileID     string
	Data       []byte
}

// Source enumerates scenario documents. Collections rejected by match are
// not read.
type Source interface {
	ReadAll(ctx context.Context, match func(collection string) bool) ([]RawDocument, error)
}

// PayloadLoader resolves "!name" payload references.
type PayloadLoader interface {
	LoadPayload(name string) (any, error)
}

type Compiler struct {
	source   Source
	payloads PayloadLoader
	cache    *Cache
}

type Option func(*Compiler)

func WithPayloadLoader(l PayloadLoader) Option {
	return func(c *Compiler) {
		c.payloads = l
	}
}

func WithCache(cache *Cache) Option {
	return func(c *Compiler) {
		c.cache = cache
	}
}

func New(source Source, opts ...Option) *Compiler {
	c := &Compiler{source: source}
	for _, opt := range opts {
		opt(c)
	}
	if c.cache == nil {
		c.cache = NewCache()
	}
	return c
}

func (c *Compiler) Cache() *Cache {
	return c.cache
}

// Compile reads, parses and filters the source. Documents that fail to parse
// are logged and skipped.
func (c *Compiler) Compile(ctx context.Context, f Filter) ([]*scenario.Scenario, error) {
	all, err := c.compileAll(ctx, f.collection())
	if err != nil {
		return nil, err
	}
	return Apply(all, f), nil
}

// CompileFrozen reads a list written by Freeze and applies f exactly as
// Compile would.
func (c *Compiler) CompileFrozen(r io.Reader, f Filter) ([]*scenario.Scenario, error) {
	var frozen []*scenario.Scenario
	if err := json.NewDecoder(r).Decode(&frozen); err != nil {
		return nil, fmt.Errorf("%w: reading frozen scenarios: %v", ErrCompilation, err)
	}
	for _, s := range frozen {
		c.cache.Add(s)
	}
	sortScenarios(frozen)
	return Apply(frozen, f), nil
}

// Freeze writes scenarios so that CompileFrozen can restore them.
func Freeze(w io.Writer, scenarios []*scenario.Scenario) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(scenarios)
}

// Lookup finds an endpoint in the cache, compiling its scenario from the
// source on a miss.
func (c *Compiler) Lookup(ctx context.Context, ref scenario.Ref) (*scenario.Scenario, *scenario.Endpoint, error) {
	if s, ep, ok := c.cache.Endpoint(ref); ok {
		return s, ep, nil
	}

	err := c.cache.load(scenarioKey(ref.Collection, ref.Scenario), func() error {
		if _, ok := c.cache.Scenario(ref.Collection, ref.Scenario); ok {
			return nil
		}
		logging.Debug("Compiler", "cache miss for %s, compiling collection %s", ref, ref.Collection)
		_, err := c.compileAll(ctx, func(name string) bool { return name == ref.Collection })
		return err
	})
	if err != nil {
		return nil, nil, err
	}

	if s, ep, ok := c.cache.Endpoint(ref); ok {
		return s, ep, nil
	}
	return nil, nil, fmt.Errorf("%w: %s", ErrNotFound, ref)
}

func (c *Compiler) compileAll(ctx context.Context, match func(string) bool) ([]*scenario.Scenario, error) {
	if c.source == nil {
		return nil, nil
	}
	docs, err := c.source.ReadAll(ctx, match)
	if err != nil {
		return nil, fmt.Errorf("reading scenarios: %w", err)
	}

	out := make([]*scenario.Scenario, 0, len(docs))
	for _, doc := range docs {
		s, err := scenario.Decode(doc.Data, doc.Collection, doc.FileID)
		if err != nil {
			logging.Error("Compiler", fmt.Errorf("%w: %v", ErrCompilation, err), "skipping %s/%s", doc.Collection, doc.FileID)
			continue
		}
		c.resolvePayloads(s)
		c.cache.Add(s)
		out = append(out, s)
	}
	sortScenarios(out)
	return out, nil
}

func (c *Compiler) resolvePayloads(s *scenario.Scenario) {
	for _, ep := range s.Endpoints {
		name, ok := ep.PayloadRef()
		if !ok {
			continue
		}
		if c.payloads == nil {
			logging.Warn("Compiler", "%s: no payload source for %q, using {}", s.Ref(ep.Name), name)
			ep.Payload = map[string]any{}
			continue
		}
		payload, err := c.payloads.LoadPayload(name)
		if err != nil {
			logging.Warn("Compiler", "%s: payload %q could not be loaded, using {}: %v", s.Ref(ep.Name), name, err)
			ep.Payload = map[string]any{}
			continue
		}
		ep.Payload = payload
	}
}

// Apply filters scenarios and their endpoints. The input is not modified.
func Apply(scenarios []*scenario.Scenario, f Filter) []*scenario.Scenario {
	matchCollection, matchScenario, matchAPI := f.collection(), f.scenario(), f.api()
	filterAPIs := len(f.APIs) > 0

	out := make([]*scenario.Scenario, 0, len(scenarios))
	for _, s := range scenarios {
		if !matchCollection(s.Collection) || !matchScenario(s.Name) {
			continue
		}
		clone := s.Clone()
		kept := clone.Endpoints[:0]
		for _, ep := range clone.Endpoints {
			if matchAPI(ep.Name) {
				kept = append(kept, ep)
			}
		}
		clone.Endpoints = kept
		if filterAPIs && len(kept) == 0 {
			continue
		}
		out = append(out, clone)
	}
	return out
}

func sortScenarios(s []*scenario.Scenario) {
	sort.SliceStable(s, func(i, j int) bool {
		if s[i].Collection != s[j].Collection {
			return s[i].Collection < s[j].Collection
		}
		return s[i].Name < s[j].Name
	})
}

// Entry is one endpoint of a flat listing.
type Entry struct {
	Ref      scenario.Ref
	Endpoint *scenario.Endpoint
}

// Endpoints flattens scenarios into collection.scenario.endpoint entries.
func Endpoints(scenarios []*scenario.Scenario) []Entry {
	var out []Entry
	for _, s := range scenarios {
		for _, ep := range s.Endpoints {
			out = append(out, Entry{Ref: s.Ref(ep.Name), Endpoint: ep})
		}
	}
	return out
}

// Node is one level of the collection, scenario, endpoint tree.
type Node struct {
	Name     string  `json:"name"`
	Children []*Node `json:"children,omitempty"`
}

// Tree groups scenarios into collections, keeping the compiled order.
func Tree(scenarios []*scenario.Scenario) []*Node {
	var roots []*Node
	index := map[string]*Node{}
	for _, s := range scenarios {
		col, ok := index[s.Collection]
		if !ok {
			col = &Node{Name: s.Collection}
			index[s.Collection] = col
			roots = append(roots, col)
		}
		sn := &Node{Name: s.Name}
		for _, ep := range s.Endpoints {
			sn.Children = append(sn.Children, &Node{Name: ep.Name})
		}
		col.Children = append(col.Children, sn)
	}
	return roots
}
