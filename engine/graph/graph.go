package graph

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/transitguard/transitguard-kg/engine/domain"
	"github.com/transitguard/transitguard-kg/pkg/repo"
)

// GraphStore provides graph operations on top of the generic Neo4j repository.
type GraphStore struct {
	opener repo.SessionOpener
	index  *repo.Neo4jRepo[domain.SafetyIndex, string]
}

// New creates a GraphStore on a live driver.
func New(driver neo4j.DriverWithContext) *GraphStore {
	return NewWithOpener(repo.DriverOpener{Driver: driver})
}

// NewWithOpener creates a GraphStore that obtains sessions from opener.
func NewWithOpener(opener repo.SessionOpener) *GraphStore {
	return &GraphStore{
		opener: opener,
		index: repo.NewNeo4jRepo[domain.SafetyIndex, string](
			opener,
			domain.LabelSafetyIndex,
			safetyIndexToMap,
			safetyIndexFromRecord,
			repo.WithIDKey[domain.SafetyIndex, string]("date"),
		),
	}
}

// EnsureConstraints creates the uniqueness constraint on SafetyIndex.date.
func (g *GraphStore) EnsureConstraints(ctx context.Context) error {
	sess := g.opener.OpenSession(ctx, neo4j.AccessModeWrite)
	defer sess.Close(ctx)

	cypher := `CREATE CONSTRAINT safety_index_date IF NOT EXISTS
		FOR (s:SafetyIndex) REQUIRE s.date IS UNIQUE`
	result, err := sess.Run(ctx, cypher, nil)
	if err == nil {
		err = drain(ctx, result)
	}
	return classify("graph: ensure constraints", err)
}

// UpsertSafetyIndex merges the node for s.Date and sets its score.
func (g *GraphStore) UpsertSafetyIndex(ctx context.Context, s domain.SafetyIndex) error {
	_, err := g.index.Upsert(ctx, s)
	return classify("graph: upsert safety index", err)
}

// LinkNextDay merges a NEXT_DAY edge between two existing SafetyIndex nodes.
func (g *GraphStore) LinkNextDay(ctx context.Context, e domain.NextDay) error {
	sess := g.opener.OpenSession(ctx, neo4j.AccessModeWrite)
	defer sess.Close(ctx)

	cypher := fmt.Sprintf(`MATCH (prev:%[1]s {date: $prev_date})
		MATCH (curr:%[1]s {date: $curr_date})
		MERGE (prev)-[:%[2]s]->(curr)`, domain.LabelSafetyIndex, domain.RelNextDay)
	result, err := sess.Run(ctx, cypher, map[string]any{
		"prev_date": e.From,
		"curr_date": e.To,
	})
	if err == nil {
		err = drain(ctx, result)
	}
	return classify("graph: link next day", err)
}

// SafetyIndex returns the node for date. A missing node yields an error
// matching repo.ErrNotFound.
func (g *GraphStore) SafetyIndex(ctx context.Context, date string) (domain.SafetyIndex, error) {
	s, err := g.index.Get(ctx, date)
	if errors.Is(err, repo.ErrNotFound) {
		return s, err
	}
	return s, classify("graph: get safety index", err)
}

// ListSafetyIndex returns nodes ordered by date.
func (g *GraphStore) ListSafetyIndex(ctx context.Context, offset, limit int) ([]domain.SafetyIndex, error) {
	items, err := g.index.List(ctx, repo.ListOpts{Offset: offset, Limit: limit})
	return items, classify("graph: list safety index", err)
}

// Counts returns the number of SafetyIndex nodes and NEXT_DAY edges.
func (g *GraphStore) Counts(ctx context.Context) (Counts, error) {
	nodes, err := g.index.Count(ctx)
	if err != nil {
		return Counts{}, classify("graph: count nodes", err)
	}

	sess := g.opener.OpenSession(ctx, neo4j.AccessModeRead)
	defer sess.Close(ctx)

	cypher := fmt.Sprintf(`MATCH (:%[1]s)-[r:%[2]s]->(:%[1]s) RETURN count(r) AS count`, domain.LabelSafetyIndex, domain.RelNextDay)
	result, err := sess.Run(ctx, cypher, nil)
	if err != nil {
		return Counts{}, classify("graph: count edges", err)
	}
	var edges int64
	if result.Next(ctx) {
		edges, _, err = neo4j.GetRecordValue[int64](result.Record(), "count")
	} else {
		err = result.Err()
	}
	if err != nil {
		return Counts{}, classify("graph: count edges", err)
	}
	return Counts{Nodes: nodes, Edges: edges}, nil
}

// drain consumes a result so deferred statement errors surface.
func drain(ctx context.Context, result repo.Result) error {
	for result.Next(ctx) {
	}
	return result.Err()
}

// classify maps driver errors onto the domain error kinds. Statements that
// Neo4j rejects as a client error are upstream failures: in this service
// those are generated by the query chain.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	var neoErr *neo4j.Neo4jError
	if errors.As(err, &neoErr) && strings.HasPrefix(neoErr.Code, "Neo.ClientError.Statement.") {
		return domain.E(domain.KindUpstream, op, err)
	}
	return domain.E(domain.KindConnection, op, err)
}
