package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrInvalidOverride is returned for overrides that are not key=value.
var ErrInvalidOverride = errors.New("invalid override")

const defaultsKey = "defaults"

// Composed is a configuration assembled from a config directory, its
// selected group options and command-line overrides.
type Composed struct {
	Config *AppConfig
	// YAML is the composed document before decoding, as recorded in reports.
	YAML string
	// Choices maps each config group to the option selected for it.
	Choices   map[string]string
	Overrides []string
}

// Compose loads <dir>/<name>.yaml, merges the group options it selects in
// its defaults list and applies overrides.
//
// An override whose key names a group (a sub-directory of dir) selects that
// group's option; any other override sets the value at its dotted key path.
// Values are parsed as YAML, so "true", "3" and "[a, b]" keep their types.
// Keys written in the root file win over values coming from group files.
func Compose(dir, name string, overrides []string) (*Composed, error) {
	root, err := readYAMLMap(filepath.Join(dir, name+".yaml"))
	if err != nil {
		return nil, err
	}

	groups, choices, err := parseDefaults(root[defaultsKey])
	if err != nil {
		return nil, err
	}
	delete(root, defaultsKey)

	type setting struct {
		path  []string
		value any
	}
	var settings []setting
	for _, o := range overrides {
		key, raw, ok := strings.Cut(o, "=")
		key = strings.TrimPrefix(strings.TrimSpace(key), "+")
		if !ok || key == "" {
			return nil, fmt.Errorf("%w: %q", ErrInvalidOverride, o)
		}
		if _, isGroup := choices[key]; isGroup || isDir(filepath.Join(dir, key)) {
			if _, seen := choices[key]; !seen {
				groups = append(groups, key)
			}
			choices[key] = raw
			continue
		}
		settings = append(settings, setting{path: strings.Split(key, "."), value: parseValue(raw)})
	}

	merged := map[string]any{}
	for _, g := range groups {
		path := filepath.Join(dir, g, choices[g]+".yaml")
		if !fileExists(path) {
			return nil, fmt.Errorf("config group %s: option %q not found in %s", g, choices[g], filepath.Join(dir, g))
		}
		opt, err := readYAMLMap(path)
		if err != nil {
			return nil, err
		}
		merged = mergeMaps(merged, map[string]any{g: opt})
	}
	merged = mergeMaps(merged, root)
	for _, s := range settings {
		setPath(merged, s.path, s.value)
	}

	data, err := yaml.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("encode composed config: %w", err)
	}
	cfg, err := decode(data)
	if err != nil {
		return nil, fmt.Errorf("decode composed config: %w", err)
	}
	return &Composed{Config: cfg, YAML: string(data), Choices: choices, Overrides: overrides}, nil
}

// ExpandSweep expands comma-separated override values into every
// combination of overrides. The last override varies fastest.
func ExpandSweep(overrides []string) [][]string {
	runs := [][]string{nil}
	for _, o := range overrides {
		values := []string{o}
		if key, raw, ok := strings.Cut(o, "="); ok && isSweep(raw) {
			values = values[:0]
			for _, v := range strings.Split(raw, ",") {
				values = append(values, key+"="+strings.TrimSpace(v))
			}
		}
		next := make([][]string, 0, len(runs)*len(values))
		for _, r := range runs {
			for _, v := range values {
				next = append(next, append(append([]string(nil), r...), v))
			}
		}
		runs = next
	}
	return runs
}

func isSweep(v string) bool {
	v = strings.TrimSpace(v)
	if !strings.Contains(v, ",") {
		return false
	}
	switch v[0] {
	case '[', '{', '"', '\'':
		return false
	}
	return true
}

func parseDefaults(v any) ([]string, map[string]string, error) {
	choices := map[string]string{}
	if v == nil {
		return nil, choices, nil
	}
	list, ok := v.([]any)
	if !ok {
		return nil, nil, fmt.Errorf("defaults must be a list, got %T", v)
	}
	var groups []string
	for _, item := range list {
		switch e := item.(type) {
		case string:
			// _self_ and similar markers; root keys always override groups.
			continue
		case map[string]any:
			for g, opt := range e {
				if _, seen := choices[g]; !seen {
					groups = append(groups, g)
				}
				choices[g] = fmt.Sprint(opt)
			}
		default:
			return nil, nil, fmt.Errorf("defaults entry must be a map, got %T", item)
		}
	}
	return groups, choices, nil
}

func readYAMLMap(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return map[string]any{}, nil
		}
		return nil, err
	}
	out := map[string]any{}
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	if out == nil {
		out = map[string]any{}
	}
	return out, nil
}

func parseValue(raw string) any {
	var v any
	if err := yaml.Unmarshal([]byte(raw), &v); err != nil || v == nil {
		return raw
	}
	return v
}

// mergeMaps merges src into dst recursively; src wins on conflicts.
func mergeMaps(dst, src map[string]any) map[string]any {
	if dst == nil {
		dst = map[string]any{}
	}
	for k, v := range src {
		sv, srcIsMap := v.(map[string]any)
		dv, dstIsMap := dst[k].(map[string]any)
		if srcIsMap && dstIsMap {
			dst[k] = mergeMaps(dv, sv)
			continue
		}
		dst[k] = v
	}
	return dst
}

func setPath(m map[string]any, path []string, v any) {
	for i, p := range path {
		if i == len(path)-1 {
			m[p] = v
			return
		}
		next, ok := m[p].(map[string]any)
		if !ok {
			next = map[string]any{}
			m[p] = next
		}
		m = next
	}
}

func isDir(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && fi.IsDir()
}

func fileExists(path string) bool {
	fi, err := os.Stat(path)
	return err == nil && !fi.IsDir()
}
