package graph

import (
	"context"
	"fmt"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j/dbtype"
)

// QueryOpts controls ad-hoc statement execution.
type QueryOpts struct {
	// ReadOnly runs the statement in a read session so the cluster rejects
	// writes.
	ReadOnly bool
	// Limit caps the number of rows collected. Zero means no cap.
	Limit int
}

// Query runs an arbitrary Cypher statement and returns its rows as plain
// maps. Nodes and relationships are flattened to their properties.
func (g *GraphStore) Query(ctx context.Context, cypher string, params map[string]any, opts QueryOpts) ([]map[string]any, error) {
	mode := neo4j.AccessModeWrite
	if opts.ReadOnly {
		mode = neo4j.AccessModeRead
	}
	sess := g.opener.OpenSession(ctx, mode)
	defer sess.Close(ctx)

	result, err := sess.Run(ctx, cypher, params)
	if err != nil {
		return nil, classify("graph: query", err)
	}

	rows := make([]map[string]any, 0)
	for result.Next(ctx) {
		if opts.Limit > 0 && len(rows) >= opts.Limit {
			break
		}
		row := make(map[string]any)
		for k, v := range result.Record().AsMap() {
			row[k] = plainValue(v)
		}
		rows = append(rows, row)
	}
	if err := result.Err(); err != nil {
		return nil, classify("graph: query", err)
	}
	return rows, nil
}

// plainValue converts driver values into JSON-friendly ones.
func plainValue(v any) any {
	switch t := v.(type) {
	case dbtype.Node:
		return plainMap(t.Props)
	case dbtype.Relationship:
		return plainMap(t.Props)
	case dbtype.Path:
		out := make([]any, 0, len(t.Nodes))
		for _, n := range t.Nodes {
			out = append(out, plainMap(n.Props))
		}
		return out
	case []any:
		out := make([]any, len(t))
		for i, item := range t {
			out[i] = plainValue(item)
		}
		return out
	case map[string]any:
		return plainMap(t)
	case nil, string, bool, int64, float64:
		return t
	case fmt.Stringer:
		return t.String()
	}
	return v
}

func plainMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = plainValue(v)
	}
	return out
}
