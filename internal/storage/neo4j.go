package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/ZetoOfficial/texport/internal/models"
	"github.com/ZetoOfficial/texport/internal/tex"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

var (
	ErrResultSetNotFound = errors.New("result set not found")
	ErrUnknownQuery      = errors.New("unknown query")
)

type Neo4jStorage struct {
	Driver neo4j.DriverWithContext
}

func NewNeo4jStorage(uri, username, password string) (*Neo4jStorage, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("connect to driver: %w", err)
	}
	return &Neo4jStorage{Driver: driver}, nil
}

func (s *Neo4jStorage) Close(ctx context.Context) error {
	return s.Driver.Close(ctx)
}

func closeSession(ctx context.Context, session neo4j.SessionWithContext) {
	if err := session.Close(ctx); err != nil {
		logrus.Warnf("close session: %v", err)
	}
}

// SaveResultSet stores the result set under name, replacing the values of
// an earlier save with the same name.
func (s *Neo4jStorage) SaveResultSet(ctx context.Context, name string, rs *models.ResultSet) error {
	session := s.Driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer closeSession(ctx, session)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		_, err := tx.Run(ctx, `
			MERGE (r:ResultSet {name: $name})
			SET r.experiment = $experiment, r.version = $version, r.metadata = $metadata,
			    r.saved_at = $saved_at
			WITH r
			OPTIONAL MATCH (r)-[:HAS_VALUE]->(old:Value)
			DETACH DELETE old
			`,
			map[string]any{
				"name":       name,
				"experiment": rs.Experiment,
				"version":    rs.Version,
				"metadata":   encodeMetadata(rs.Metadata),
				"saved_at":   time.Now().UnixNano(),
			},
		)
		if err != nil {
			return nil, fmt.Errorf("save result set %s: %w", name, err)
		}

		for i, v := range rs.Values {
			value, err := propertyValue(v.Value)
			if err != nil {
				return nil, fmt.Errorf("value %s: %w", v.Key, err)
			}
			_, err = tx.Run(ctx, `
				MATCH (r:ResultSet {name: $name})
				CREATE (r)-[:HAS_VALUE]->(:Value {key: $key, value: $value, unit: $unit, position: $position})
				`,
				map[string]any{
					"name":     name,
					"key":      v.Key,
					"value":    value,
					"unit":     v.Unit,
					"position": i,
				},
			)
			if err != nil {
				logrus.Errorf("save value %s of %s: %v", v.Key, name, err)
				return nil, fmt.Errorf("save value %s: %w", v.Key, err)
			}
		}
		return nil, nil
	})
	return err
}

func (s *Neo4jStorage) LoadResultSet(ctx context.Context, name string) (*models.ResultSet, error) {
	session := s.Driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer closeSession(ctx, session)

	result, err := session.Run(ctx, `
		MATCH (r:ResultSet {name: $name})
		OPTIONAL MATCH (r)-[:HAS_VALUE]->(v:Value)
		RETURN r.experiment AS experiment, r.version AS version, r.metadata AS metadata,
		       v.key AS key, v.value AS value, v.unit AS unit
		ORDER BY v.position
		`, map[string]any{"name": name})
	if err != nil {
		return nil, fmt.Errorf("load result set %s: %w", name, err)
	}

	var rs *models.ResultSet
	for result.Next(ctx) {
		record := result.Record()
		if rs == nil {
			experiment, _, _ := neo4j.GetRecordValue[string](record, "experiment")
			version, _, _ := neo4j.GetRecordValue[int64](record, "version")
			metadata, _, _ := neo4j.GetRecordValue[[]any](record, "metadata")
			rs = &models.ResultSet{
				Experiment: experiment,
				Version:    int(version),
				Metadata:   decodeMetadata(metadata),
			}
		}
		key, isNil, err := neo4j.GetRecordValue[string](record, "key")
		if err != nil || isNil {
			continue
		}
		value, _ := record.Get("value")
		unit, _, _ := neo4j.GetRecordValue[string](record, "unit")
		rs.Values = append(rs.Values, models.Value{Key: key, Value: value, Unit: unit})
	}
	if err = result.Err(); err != nil {
		return nil, err
	}
	if rs == nil {
		return nil, fmt.Errorf("%w: %s", ErrResultSetNotFound, name)
	}
	return rs, nil
}

// RunQuery runs one of the predefined queries and returns its rows.
func (s *Neo4jStorage) RunQuery(ctx context.Context, queryName string, params map[string]any) ([]map[string]any, error) {
	query, exists := neo4jQueries[queryName]
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrUnknownQuery, queryName)
	}

	session := s.Driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer closeSession(ctx, session)

	result, err := session.Run(ctx, query, params)
	if err != nil {
		return nil, err
	}

	var results []map[string]any
	for result.Next(ctx) {
		record := result.Record()
		recordMap := make(map[string]any)
		for _, key := range record.Keys {
			value, _ := record.Get(key)
			recordMap[key] = value
		}
		results = append(results, recordMap)
	}

	if err = result.Err(); err != nil {
		return nil, err
	}

	return results, nil
}

func (s *Neo4jStorage) Ping(ctx context.Context) error {
	session := s.Driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer closeSession(ctx, session)

	result, err := session.Run(ctx, "RETURN 1", nil)
	if err != nil {
		return fmt.Errorf("ping query failed: %w", err)
	}

	if result.Next(ctx) {
		return nil
	}
	if err = result.Err(); err != nil {
		return fmt.Errorf("ping query error: %w", err)
	}
	return fmt.Errorf("ping query did not return any results")
}

// propertyValue converts a value into something neo4j can store as a
// property. Decimals become floats so that the numeric queries see them.
// Values without a native property type are stored as their TeX
// representation.
func propertyValue(v any) (any, error) {
	switch val := v.(type) {
	case nil, string, bool, int64, float64:
		return val, nil
	case int:
		return int64(val), nil
	case int32:
		return int64(val), nil
	case float32:
		return float64(val), nil
	case decimal.Decimal:
		return val.InexactFloat64(), nil
	case []any:
		list := make([]any, len(val))
		for i, item := range val {
			converted, err := propertyValue(item)
			if err != nil {
				return nil, err
			}
			list[i] = converted
		}
		return list, nil
	}
	return tex.FormatValue(v, tex.DefaultPrecision)
}

// Metadata is kept as a list of "key=value" strings since neo4j properties
// cannot hold maps.
func encodeMetadata(m map[string]string) []string {
	out := make([]string, 0, len(m))
	for k, v := range m {
		out = append(out, k+"="+v)
	}
	sort.Strings(out)
	return out
}

func decodeMetadata(list []any) map[string]string {
	m := make(map[string]string, len(list))
	for _, item := range list {
		s, ok := item.(string)
		if !ok {
			continue
		}
		k, v, _ := strings.Cut(s, "=")
		m[k] = v
	}
	return m
}
