package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/ZetoOfficial/texport/internal/models"
)

// MemoryStorage keeps result sets in memory and answers the same named
// queries as Neo4jStorage.
type MemoryStorage struct {
	mu   sync.RWMutex
	sets map[string]models.ResultSet
	// save order of each set, newest is highest
	saved map[string]uint64
	seq   uint64
}

func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		sets:  make(map[string]models.ResultSet),
		saved: make(map[string]uint64),
	}
}

func (s *MemoryStorage) Ping(context.Context) error { return nil }

func (s *MemoryStorage) Close(context.Context) error { return nil }

func (s *MemoryStorage) SaveResultSet(_ context.Context, name string, rs *models.ResultSet) error {
	values := make([]models.Value, 0, len(rs.Values))
	for _, v := range rs.Values {
		value, err := propertyValue(v.Value)
		if err != nil {
			return fmt.Errorf("value %s: %w", v.Key, err)
		}
		values = append(values, models.Value{Key: v.Key, Value: value, Unit: v.Unit})
	}
	metadata := make(map[string]string, len(rs.Metadata))
	for k, v := range rs.Metadata {
		metadata[k] = v
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets[name] = models.ResultSet{
		Experiment: rs.Experiment,
		Version:    rs.Version,
		Metadata:   metadata,
		Values:     values,
	}
	s.seq++
	s.saved[name] = s.seq
	return nil
}

func (s *MemoryStorage) LoadResultSet(_ context.Context, name string) (*models.ResultSet, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rs, ok := s.sets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrResultSetNotFound, name)
	}
	rs.Values = append([]models.Value(nil), rs.Values...)
	return &rs, nil
}

func (s *MemoryStorage) RunQuery(_ context.Context, queryName string, params map[string]any) ([]map[string]any, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	key, _ := params["key"].(string)
	names := make([]string, 0, len(s.sets))
	for name := range s.sets {
		names = append(names, name)
	}
	sort.Strings(names)

	var rows []map[string]any
	switch queryName {
	case "result_sets":
		for _, name := range names {
			rs := s.sets[name]
			rows = append(rows, map[string]any{
				"name":        name,
				"experiment":  rs.Experiment,
				"value_count": int64(len(rs.Values)),
			})
		}
	case "values_by_key":
		for _, name := range names {
			rs := s.sets[name]
			if v, ok := rs.Get(key); ok {
				rows = append(rows, map[string]any{"name": name, "value": v.Value, "unit": v.Unit})
			}
		}
	case "latest_values":
		latest := make(map[string]string)
		for _, name := range names {
			for _, v := range s.sets[name].Values {
				if cur, ok := latest[v.Key]; !ok || s.saved[name] > s.saved[cur] {
					latest[v.Key] = name
				}
			}
		}
		keys := make([]string, 0, len(latest))
		for k := range latest {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			rs := s.sets[latest[k]]
			v, _ := rs.Get(k)
			rows = append(rows, map[string]any{"key": k, "name": latest[k], "value": v.Value, "unit": v.Unit})
		}
	case "value_stats":
		var count int64
		var minV, maxV, sum float64
		for _, name := range names {
			rs := s.sets[name]
			v, ok := rs.Get(key)
			if !ok {
				continue
			}
			var f float64
			switch n := v.Value.(type) {
			case int64:
				f = float64(n)
			case float64:
				f = n
			default:
				continue
			}
			if count == 0 || f < minV {
				minV = f
			}
			if count == 0 || f > maxV {
				maxV = f
			}
			sum += f
			count++
		}
		row := map[string]any{"min": nil, "max": nil, "mean": nil, "count": count}
		if count > 0 {
			row["min"], row["max"], row["mean"] = minV, maxV, sum/float64(count)
		}
		rows = append(rows, row)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownQuery, queryName)
	}
	return rows, nil
}
