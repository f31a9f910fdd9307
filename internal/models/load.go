package models

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/bytedance/sonic"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

var ErrUnknownFormat = errors.New("unknown result file format")

// document is the on-disk layout of a result file:
//
//	{"experiment": "Fib", "version": 2, "metadata": {"n": "30"},
//	 "values": {"runtime": 1.5, "latency": {"value": 4.2, "unit": "\\ms"}}}
type document struct {
	Experiment string            `json:"experiment" yaml:"experiment"`
	Version    int               `json:"version" yaml:"version"`
	Metadata   map[string]string `json:"metadata" yaml:"metadata"`
	Values     map[string]any    `json:"values" yaml:"values"`
}

var jsonAPI = sonic.Config{UseNumber: true}.Froze()

// LoadResultSet reads a JSON or YAML result file, chosen by extension.
func LoadResultSet(path string) (*ResultSet, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read result file: %w", err)
	}
	return ParseResultSet(filepath.Ext(path), content)
}

func ParseResultSet(ext string, content []byte) (*ResultSet, error) {
	var doc document
	switch strings.ToLower(ext) {
	case ".json":
		if err := jsonAPI.Unmarshal(content, &doc); err != nil {
			return nil, fmt.Errorf("decode json: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(content, &doc); err != nil {
			return nil, fmt.Errorf("decode yaml: %w", err)
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, ext)
	}

	rs := &ResultSet{
		Experiment: doc.Experiment,
		Version:    doc.Version,
		Metadata:   doc.Metadata,
		Values:     Flatten("", normalize(doc.Values)),
	}
	if rs.Version == 0 {
		rs.Version = 1
	}
	if rs.Metadata == nil {
		rs.Metadata = make(map[string]string)
	}
	return rs, nil
}

// normalize turns decoder specific number types into int64 or decimal values.
func normalize(v any) any {
	switch val := v.(type) {
	case json.Number:
		if i, err := val.Int64(); err == nil {
			return i
		}
		if d, err := decimal.NewFromString(val.String()); err == nil {
			return d
		}
		return val.String()
	case int:
		return int64(val)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, child := range val {
			out[k] = normalize(child)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, child := range val {
			out[i] = normalize(child)
		}
		return out
	}
	return v
}
