//go:build integration

package loader

import (
	"context"
	"os"
	"testing"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/transitguard/transitguard-kg/engine/graph"
)

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func testStore(t *testing.T) *graph.GraphStore {
	t.Helper()
	driver, err := neo4j.NewDriverWithContext(
		envOr("NEO4J_URI", "bolt://localhost:7687"),
		neo4j.BasicAuth(envOr("NEO4J_USERNAME", "neo4j"), envOr("NEO4J_PASSWORD", "password"), ""),
	)
	if err != nil {
		t.Fatalf("neo4j connect: %v", err)
	}
	ctx := context.Background()
	if err := driver.VerifyConnectivity(ctx); err != nil {
		t.Fatalf("neo4j verify: %v", err)
	}
	cleanup := func() {
		sess := driver.NewSession(ctx, neo4j.SessionConfig{})
		sess.Run(ctx, "MATCH (n:SafetyIndex) DETACH DELETE n", nil)
		sess.Close(ctx)
	}
	cleanup()
	t.Cleanup(func() {
		cleanup()
		driver.Close(ctx)
	})
	return graph.New(driver)
}

func TestNeo4j_LoadIsIdempotent(t *testing.T) {
	store := testStore(t)
	ctx := context.Background()
	if err := store.EnsureConstraints(ctx); err != nil {
		t.Fatalf("constraints: %v", err)
	}

	path := writeCSV(t, "Date,safety_index\n2023-01-01,5.0\n2023-01-02,6.5\n2023-01-03,7.25\n")
	l := New(store, nil, nil)
	for i := 0; i < 2; i++ {
		if _, err := l.Load(ctx, path); err != nil {
			t.Fatalf("load %d: %v", i, err)
		}
	}

	counts, err := store.Counts(ctx)
	if err != nil {
		t.Fatalf("counts: %v", err)
	}
	if counts.Nodes != 3 || counts.Edges != 2 {
		t.Fatalf("expected 3 nodes / 2 edges, got %+v", counts)
	}

	got, err := store.SafetyIndex(ctx, "2023-01-02")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.Score != 6.5 {
		t.Fatalf("expected 6.5, got %v", got.Score)
	}

	rows, err := store.Query(ctx,
		`MATCH (a:SafetyIndex {date: "2023-01-01"})-[:NEXT_DAY]->(b) RETURN b.date AS next`,
		nil, graph.QueryOpts{ReadOnly: true})
	if err != nil {
		t.Fatalf("query: %v", err)
	}
	if len(rows) != 1 || rows[0]["next"] != "2023-01-02" {
		t.Fatalf("unexpected rows %v", rows)
	}
}
