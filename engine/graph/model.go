// Package graph provides Neo4j knowledge graph operations for the safety
// index time series: SafetyIndex upserts, NEXT_DAY links, schema
// introspection and read-only Cypher execution for the query chain.
package graph

import (
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
	"github.com/transitguard/transitguard-kg/engine/domain"
)

// Counts holds the size of the loaded graph.
type Counts struct {
	Nodes int64 `json:"safety_index_nodes"`
	Edges int64 `json:"next_day_edges"`
}

func safetyIndexToMap(s domain.SafetyIndex) map[string]any {
	return map[string]any{
		"date":  s.Date,
		"score": s.Score,
	}
}

func safetyIndexFromRecord(rec *neo4j.Record) (domain.SafetyIndex, error) {
	node, _, err := neo4j.GetRecordValue[dbtype.Node](rec, "n")
	if err != nil {
		return domain.SafetyIndex{}, err
	}
	return domain.SafetyIndex{
		Date:  strProp(node.Props, "date"),
		Score: floatProp(node.Props, "score"),
	}, nil
}

func strProp(props map[string]any, key string) string {
	if v, ok := props[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}

func floatProp(props map[string]any, key string) float64 {
	switch v := props[key].(type) {
	case float64:
		return v
	case int64:
		return float64(v)
	}
	return 0
}
