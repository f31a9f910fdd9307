package storage

import (
	"sort"

	"github.com/samber/lo"
)

// Queries whose rows can be exported next to a result set. Every query
// receives $key, the value key to compare across result sets.
var neo4jQueries = map[string]string{
	// all stored result sets
	"result_sets": `
			MATCH (r:ResultSet)
			OPTIONAL MATCH (r)-[:HAS_VALUE]->(v:Value)
			RETURN r.name AS name, r.experiment AS experiment, COUNT(v) AS value_count
			ORDER BY name
		`,
	// one value across all result sets
	"values_by_key": `
			MATCH (r:ResultSet)-[:HAS_VALUE]->(v:Value {key: $key})
			RETURN r.name AS name, v.value AS value, v.unit AS unit
			ORDER BY name
		`,
	// the value of every key from the most recently saved result set holding it
	"latest_values": `
			MATCH (r:ResultSet)-[:HAS_VALUE]->(v:Value)
			WITH v, r ORDER BY r.saved_at DESC
			WITH v.key AS key, head(collect({name: r.name, value: v.value, unit: v.unit})) AS latest
			RETURN key, latest.name AS name, latest.value AS value, latest.unit AS unit
			ORDER BY key
		`,
	// numeric summary of one value across all result sets
	"value_stats": `
			MATCH (:ResultSet)-[:HAS_VALUE]->(v:Value {key: $key})
			WHERE v.value IS :: INTEGER OR v.value IS :: FLOAT
			RETURN MIN(v.value) AS min, MAX(v.value) AS max, AVG(v.value) AS mean, COUNT(v) AS count
		`,
}

// QueryNames lists the predefined queries.
func QueryNames() []string {
	names := lo.Keys(neo4jQueries)
	sort.Strings(names)
	return names
}
