package graph

import (
	"context"
	"errors"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/transitguard/transitguard-kg/engine/domain"
)

func nodePropRecord(labels []any, name any, types []any) *neo4j.Record {
	return &neo4j.Record{
		Keys:   []string{"nodeLabels", "propertyName", "propertyTypes"},
		Values: []any{labels, name, types},
	}
}

func relPropRecord(relType string, name any, types []any) *neo4j.Record {
	return &neo4j.Record{
		Keys:   []string{"relType", "propertyName", "propertyTypes"},
		Values: []any{relType, name, types},
	}
}

func tripleRecord(start, typ, end string) *neo4j.Record {
	return &neo4j.Record{
		Keys:   []string{"start", "type", "end"},
		Values: []any{start, typ, end},
	}
}

func TestSchema(t *testing.T) {
	sess := &mockSession{results: map[string]*mockResult{
		"nodeTypeProperties": newMockResult(
			nodePropRecord([]any{"SafetyIndex"}, "score", []any{"Double"}),
			nodePropRecord([]any{"SafetyIndex"}, "date", []any{"String"}),
		),
		"relTypeProperties": newMockResult(
			relPropRecord(":`NEXT_DAY`", nil, nil),
		),
		"UNWIND labels(a)": newMockResult(
			tripleRecord("SafetyIndex", "NEXT_DAY", "SafetyIndex"),
		),
	}}
	gs := NewWithOpener(&mockOpener{session: sess})

	s, err := gs.Schema(context.Background())
	if err != nil {
		t.Fatalf("unexpected: %v", err)
	}

	props := s.NodeProps["SafetyIndex"]
	if len(props) != 2 || props[0].Name != "date" || props[0].Type != "STRING" || props[1].Type != "FLOAT" {
		t.Fatalf("unexpected node props %+v", props)
	}
	if len(s.RelProps) != 0 {
		t.Fatalf("expected no relationship properties, got %+v", s.RelProps)
	}

	want := "Node properties:\n" +
		"SafetyIndex {date: STRING, score: FLOAT}\n" +
		"Relationship properties:\n" +
		"The relationships:\n" +
		"(:SafetyIndex)-[:NEXT_DAY]->(:SafetyIndex)"
	if got := s.String(); got != want {
		t.Fatalf("schema text mismatch:\n%s\nwant:\n%s", got, want)
	}
}

func TestSchema_RunError(t *testing.T) {
	gs := NewWithOpener(&mockOpener{session: &mockSession{runErr: errors.New("down")}})

	_, err := gs.Schema(context.Background())
	if domain.KindOf(err) != domain.KindConnection {
		t.Fatalf("expected connection kind, got %v", err)
	}
}

func TestCypherType(t *testing.T) {
	cases := map[string]string{
		"String":  "STRING",
		"Double":  "FLOAT",
		"Long":    "INTEGER",
		"Boolean": "BOOLEAN",
		"Date":    "DATE",
	}
	for in, want := range cases {
		if got := cypherType([]string{in}); got != want {
			t.Errorf("cypherType(%s) = %s, want %s", in, got, want)
		}
	}
	if got := cypherType(nil); got != "ANY" {
		t.Errorf("expected ANY, got %s", got)
	}
}

func TestTrimTypeName(t *testing.T) {
	if got := trimTypeName(":`NEXT_DAY`"); got != "NEXT_DAY" {
		t.Fatalf("got %q", got)
	}
}
