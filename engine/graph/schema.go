package graph

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Property is one property key and its Cypher type.
type Property struct {
	Name string `json:"property"`
	Type string `json:"type"`
}

// Triple is one (start)-[type]->(end) label pattern present in the graph.
type Triple struct {
	Start string `json:"start"`
	Type  string `json:"type"`
	End   string `json:"end"`
}

// Schema describes the labels, relationship types and properties stored in
// the graph.
type Schema struct {
	NodeProps     map[string][]Property `json:"node_props"`
	RelProps      map[string][]Property `json:"rel_props"`
	Relationships []Triple              `json:"relationships"`
}

// String renders the schema in the text form used by the LLM prompt and
// the /schema endpoint.
func (s Schema) String() string {
	var b strings.Builder
	b.WriteString("Node properties:\n")
	writeProps(&b, s.NodeProps)
	b.WriteString("Relationship properties:\n")
	writeProps(&b, s.RelProps)
	b.WriteString("The relationships:\n")
	for _, t := range s.Relationships {
		fmt.Fprintf(&b, "(:%s)-[:%s]->(:%s)\n", t.Start, t.Type, t.End)
	}
	return strings.TrimRight(b.String(), "\n")
}

func writeProps(b *strings.Builder, props map[string][]Property) {
	for _, label := range sortedKeys(props) {
		parts := make([]string, len(props[label]))
		for i, p := range props[label] {
			parts[i] = p.Name + ": " + p.Type
		}
		fmt.Fprintf(b, "%s {%s}\n", label, strings.Join(parts, ", "))
	}
}

const (
	nodePropsCypher = `CALL db.schema.nodeTypeProperties()
		YIELD nodeLabels, propertyName, propertyTypes
		RETURN nodeLabels, propertyName, propertyTypes`
	relPropsCypher = `CALL db.schema.relTypeProperties()
		YIELD relType, propertyName, propertyTypes
		RETURN relType, propertyName, propertyTypes`
	triplesCypher = `MATCH (a)-[r]->(b)
		UNWIND labels(a) AS start
		UNWIND labels(b) AS end
		RETURN DISTINCT start, type(r) AS type, end
		ORDER BY start, type, end`
)

// Schema introspects the store. It is fetched fresh on every call.
func (g *GraphStore) Schema(ctx context.Context) (Schema, error) {
	sess := g.opener.OpenSession(ctx, neo4j.AccessModeRead)
	defer sess.Close(ctx)

	s := Schema{
		NodeProps: make(map[string][]Property),
		RelProps:  make(map[string][]Property),
	}

	result, err := sess.Run(ctx, nodePropsCypher, nil)
	if err != nil {
		return Schema{}, classify("graph: node properties", err)
	}
	for result.Next(ctx) {
		rec := result.Record()
		labels, _ := rec.Get("nodeLabels")
		for _, l := range toStrings(labels) {
			addProperty(s.NodeProps, l, rec)
		}
	}
	if err := result.Err(); err != nil {
		return Schema{}, classify("graph: node properties", err)
	}

	result, err = sess.Run(ctx, relPropsCypher, nil)
	if err != nil {
		return Schema{}, classify("graph: relationship properties", err)
	}
	for result.Next(ctx) {
		rec := result.Record()
		relType, _ := rec.Get("relType")
		name, _ := relType.(string)
		addProperty(s.RelProps, trimTypeName(name), rec)
	}
	if err := result.Err(); err != nil {
		return Schema{}, classify("graph: relationship properties", err)
	}

	result, err = sess.Run(ctx, triplesCypher, nil)
	if err != nil {
		return Schema{}, classify("graph: relationships", err)
	}
	for result.Next(ctx) {
		m := result.Record().AsMap()
		start, _ := m["start"].(string)
		typ, _ := m["type"].(string)
		end, _ := m["end"].(string)
		s.Relationships = append(s.Relationships, Triple{Start: start, Type: typ, End: end})
	}
	if err := result.Err(); err != nil {
		return Schema{}, classify("graph: relationships", err)
	}

	for _, props := range []map[string][]Property{s.NodeProps, s.RelProps} {
		for k := range props {
			sort.Slice(props[k], func(i, j int) bool { return props[k][i].Name < props[k][j].Name })
		}
	}
	return s, nil
}

// addProperty records the property carried by rec under key. Labels and
// relationship types without properties yield a row with a null name and
// are skipped.
func addProperty(into map[string][]Property, key string, rec *neo4j.Record) {
	if key == "" {
		return
	}
	name, _ := rec.Get("propertyName")
	prop, ok := name.(string)
	if !ok || prop == "" {
		return
	}
	types, _ := rec.Get("propertyTypes")
	into[key] = append(into[key], Property{Name: prop, Type: cypherType(toStrings(types))})
}

// cypherType maps the Java type names reported by db.schema procedures to
// Cypher type names.
func cypherType(types []string) string {
	if len(types) == 0 {
		return "ANY"
	}
	switch types[0] {
	case "String":
		return "STRING"
	case "Double", "Float":
		return "FLOAT"
	case "Long", "Integer":
		return "INTEGER"
	case "Boolean":
		return "BOOLEAN"
	case "StringArray":
		return "LIST"
	}
	return strings.ToUpper(types[0])
}

// trimTypeName turns ":`NEXT_DAY`" into "NEXT_DAY".
func trimTypeName(s string) string {
	return strings.Trim(strings.TrimPrefix(s, ":"), "`")
}

func toStrings(v any) []string {
	list, ok := v.([]any)
	if !ok {
		return nil
	}
	out := make([]string, 0, len(list))
	for _, item := range list {
		if s, ok := item.(string); ok {
			out = append(out, s)
		}
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
