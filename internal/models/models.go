package models

import (
	"sort"
	"strings"

	"github.com/samber/lo"
)

// Value is a single experiment result. Key is a slash separated path.
type Value struct {
	Key   string
	Value any
	Unit  string
}

// ResultSet is the data produced by one experiment run.
type ResultSet struct {
	Experiment string
	Version    int
	Metadata   map[string]string
	Values     []Value
}

// Set adds or replaces the value stored under key. A replaced value keeps
// its position.
func (r *ResultSet) Set(v Value) {
	for i := range r.Values {
		if r.Values[i].Key == v.Key {
			r.Values[i] = v
			return
		}
	}
	r.Values = append(r.Values, v)
}

func (r *ResultSet) Get(key string) (Value, bool) {
	return lo.Find(r.Values, func(v Value) bool { return v.Key == key })
}

func (r *ResultSet) Keys() []string {
	return lo.Map(r.Values, func(v Value, _ int) string { return v.Key })
}

// Tree rebuilds the nested structure of the values from their key paths.
// A value whose key is a prefix of another key is kept under "value".
func (r *ResultSet) Tree() map[string]any {
	root := make(map[string]any)
	for _, v := range r.Values {
		parts := strings.Split(v.Key, "/")
		node := root
		for _, p := range parts[:len(parts)-1] {
			switch child := node[p].(type) {
			case map[string]any:
				node = child
			case nil:
				m := make(map[string]any)
				node[p] = m
				node = m
			default:
				m := map[string]any{"value": child}
				node[p] = m
				node = m
			}
		}
		last := parts[len(parts)-1]
		if existing, ok := node[last].(map[string]any); ok {
			existing["value"] = v.Value
			continue
		}
		node[last] = v.Value
	}
	return root
}

// Flatten turns nested maps into slash separated keys below prefix.
// Objects of the form {value: x, unit: "u"} are kept as a single value.
func Flatten(prefix string, v any) []Value {
	var out []Value
	flatten(prefix, v, &out)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func flatten(prefix string, v any, out *[]Value) {
	m, ok := v.(map[string]any)
	if !ok {
		*out = append(*out, Value{Key: prefix, Value: v})
		return
	}
	if val, unit, ok := withUnit(m); ok {
		*out = append(*out, Value{Key: prefix, Value: val, Unit: unit})
		return
	}
	for k, child := range m {
		key := k
		if prefix != "" {
			key = prefix + "/" + k
		}
		flatten(key, child, out)
	}
}

func withUnit(m map[string]any) (any, string, bool) {
	if len(m) != 2 {
		return nil, "", false
	}
	val, ok := m["value"]
	if !ok {
		return nil, "", false
	}
	unit, ok := m["unit"].(string)
	return val, unit, ok
}
