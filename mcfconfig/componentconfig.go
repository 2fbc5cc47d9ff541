package mcfconfig

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// MergeJSON merges any number of JSON object files found by name across
// searchPath, leaves overriding roots, and returns the merged document
// (spec.md §4.3: "Reading config merges any number of JSON files from a
// search-path list (leaves override roots)"). Only JSON objects are
// supported; a non-object top-level value in any file is an error.
//
// This is intentionally a small hand-rolled merge, not a third-party
// config-templating engine: JSON parsing is an explicit Non-goal of the
// MCF core (spec.md §1 lists "JSON configuration parsing" among the
// out-of-scope external collaborators), so the core only needs "good
// enough" merge semantics, not a general configuration framework.
func MergeJSON(name string, searchPath []string) (map[string]any, error) {
	merged := map[string]any{}
	found := false
	for _, dir := range searchPath {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("mcfconfig: read %s: %w", path, err)
		}
		var doc map[string]any
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("mcfconfig: parse %s: %w", path, err)
		}
		if doc == nil {
			return nil, fmt.Errorf("mcfconfig: parse %s: top-level value is not an object", path)
		}
		mergeInto(merged, doc)
		found = true
	}
	if !found {
		return merged, nil
	}
	return merged, nil
}

// mergeInto merges src into dst in place, with src's leaf values
// overriding dst's (later search-path entries are "leaves" relative to
// earlier "roots").
func mergeInto(dst, src map[string]any) {
	for k, v := range src {
		if sv, ok := v.(map[string]any); ok {
			if dv, ok := dst[k].(map[string]any); ok {
				mergeInto(dv, sv)
				continue
			}
		}
		dst[k] = v
	}
}
