package compiler

import (
	"regexp"
	"strings"
)

type Mode int

const (
	ModeExact Mode = iota
	ModeSearch
)

func (m Mode) String() string {
	if m == ModeSearch {
		return "search"
	}
	return "exact"
}

// All matches every name when used as a filter value.
const All = "all"

// Filter selects collections, scenarios and endpoints by name. An empty
// list, or one containing "all", matches everything.
type Filter struct {
	Collections []string
	Scenarios   []string
	APIs        []string
	Mode        Mode
}

// SplitList splits a comma separated flag value.
func SplitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

type matcher func(name string) bool

func (f Filter) collection() matcher { return newMatcher(f.Collections, f.Mode) }
func (f Filter) scenario() matcher   { return newMatcher(f.Scenarios, f.Mode) }
func (f Filter) api() matcher        { return newMatcher(f.APIs, f.Mode) }

func newMatcher(values []string, mode Mode) matcher {
	if len(values) == 0 {
		return func(string) bool { return true }
	}
	for _, v := range values {
		if strings.EqualFold(v, All) {
			return func(string) bool { return true }
		}
	}

	if mode == ModeExact {
		set := make(map[string]struct{}, len(values))
		for _, v := range values {
			set[v] = struct{}{}
		}
		return func(name string) bool {
			_, ok := set[name]
			return ok
		}
	}

	patterns := make([]*regexp.Regexp, 0, len(values))
	for _, v := range values {
		re, err := regexp.Compile(v)
		if err != nil {
			re = regexp.MustCompile(regexp.QuoteMeta(v))
		}
		patterns = append(patterns, re)
	}
	return func(name string) bool {
		for _, re := range patterns {
			if re.MatchString(name) {
				return true
			}
		}
		return false
	}
}
