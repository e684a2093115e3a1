// Package taxonomy loads the closed tag vocabulary from a nested structured
// document. Only string leaves are meaningful; the shape of the document is
// not otherwise interpreted, so tags may appear as mapping keys, mapping
// values, or sequence elements at any depth.
package taxonomy

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Load reads the taxonomy file and returns the deduplicated, lexicographically
// sorted set of tag strings. YAML is a superset of JSON, so both formats parse.
//
// An unreadable file, an unparseable document, or an empty result is fatal to
// the run: tagging cannot proceed against a zero-tag vocabulary.
func Load(path string) ([]string, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read taxonomy: %w", err)
	}
	return Extract(b)
}

// Extract parses raw document bytes and flattens them into a sorted tag set.
func Extract(raw []byte) ([]string, error) {
	var doc any
	if err := yaml.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("parse taxonomy: %w", err)
	}

	seen := make(map[string]struct{})
	collect(doc, seen)
	if len(seen) == 0 {
		return nil, fmt.Errorf("taxonomy contains no tags")
	}

	tags := make([]string, 0, len(seen))
	for tag := range seen {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags, nil
}

func collect(node any, seen map[string]struct{}) {
	switch v := node.(type) {
	case string:
		seen[v] = struct{}{}
	case map[string]any:
		for key, value := range v {
			// A string-valued entry is an alias pair: both sides are tags.
			// Keys with nested values are structural and not captured.
			if _, ok := value.(string); ok {
				seen[key] = struct{}{}
			}
			collect(value, seen)
		}
	case map[any]any:
		for key, value := range v {
			if _, ok := value.(string); ok {
				if ks, ok := key.(string); ok {
					seen[ks] = struct{}{}
				}
			}
			collect(value, seen)
		}
	case []any:
		for _, item := range v {
			collect(item, seen)
		}
	}
}
