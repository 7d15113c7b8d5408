// Package source reads scenario, payload and schema documents from disk.
// Documents may be JSON or YAML; YAML is converted to JSON on read.
package source

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/sarathm09/vibranium/packages/core/compiler"
	"github.com/sarathm09/vibranium/packages/core/scenario"
	"github.com/sarathm09/vibranium/packages/logging"
	"gopkg.in/yaml.v3"
)

var extensions = []string{".json", ".yaml", ".yml"}

func isDocument(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Files reads scenarios laid out as <dir>/<collection>/<scenario>.json.
// Documents directly under dir belong to the default collection.
type Files struct {
	Dir string
}

func NewFiles(dir string) *Files {
	return &Files{Dir: dir}
}

func (f *Files) ReadAll(ctx context.Context, match func(string) bool) ([]compiler.RawDocument, error) {
	var docs []compiler.RawDocument
	err := filepath.WalkDir(f.Dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		rel, err := filepath.Rel(f.Dir, path)
		if err != nil {
			return err
		}
		parts := strings.Split(filepath.ToSlash(rel), "/")

		if d.IsDir() {
			if rel == "." {
				return nil
			}
			if strings.HasPrefix(d.Name(), ".") {
				return filepath.SkipDir
			}
			if len(parts) == 1 && match != nil && !match(parts[0]) {
				return filepath.SkipDir
			}
			return nil
		}
		if !isDocument(path) {
			return nil
		}

		collection := scenario.DefaultCollection
		if len(parts) > 1 {
			collection = parts[0]
		} else if match != nil && !match(collection) {
			return nil
		}

		data, err := readDocument(path)
		if err != nil {
			logging.Error("Source", fmt.Errorf("%w: %v", compiler.ErrCompilation, err), "skipping %s", path)
			return nil
		}
		fileID := strings.TrimSuffix(strings.Join(parts[min(1, len(parts)-1):], "/"), filepath.Ext(path))
		docs = append(docs, compiler.RawDocument{Collection: collection, FileID: fileID, Data: data})
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Slice(docs, func(i, j int) bool {
		if docs[i].Collection != docs[j].Collection {
			return docs[i].Collection < docs[j].Collection
		}
		return docs[i].FileID < docs[j].FileID
	})
	return docs, nil
}

// Payloads loads "!name" payloads from a directory.
type Payloads struct {
	Dir string
}

func (p *Payloads) LoadPayload(name string) (any, error) {
	data, err := find(p.Dir, name)
	if err != nil {
		return nil, err
	}
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("payload %s: %w", name, err)
	}
	return v, nil
}

// Schemas loads JSON schemas by name from a directory.
type Schemas struct {
	Dir string
}

func (s *Schemas) LoadSchema(name string) ([]byte, error) {
	return find(s.Dir, name)
}

// find resolves name, with or without extension, inside dir.
func find(dir, name string) ([]byte, error) {
	candidates := []string{name}
	if filepath.Ext(name) == "" {
		for _, ext := range extensions {
			candidates = append(candidates, name+ext)
		}
	}
	for _, c := range candidates {
		path := filepath.Join(dir, c)
		if err := validatePathWithinBase(path, dir); err != nil {
			return nil, err
		}
		if _, err := os.Stat(path); err == nil {
			return readDocument(path)
		}
	}
	return nil, fmt.Errorf("%s not found in %s", name, dir)
}

func readDocument(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	ext := strings.ToLower(filepath.Ext(path))
	if ext != ".yaml" && ext != ".yml" {
		return data, nil
	}
	var v any
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	out, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return out, nil
}

// validatePathWithinBase checks that the resolved path stays within the base directory
func validatePathWithinBase(path, baseDir string) error {
	if baseDir == "" {
		return nil
	}
	cleanBase, err := filepath.Abs(baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base directory: %v", err)
	}
	cleanPath, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %v", err)
	}
	if !strings.HasPrefix(cleanPath, cleanBase+string(filepath.Separator)) && cleanPath != cleanBase {
		return fmt.Errorf("path traversal detected: %s is outside allowed directory %s", path, baseDir)
	}
	return nil
}
