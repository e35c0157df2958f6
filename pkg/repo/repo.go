// Package repo defines the generic Repository interface and a Neo4j-backed
// implementation for keyed nodes.
package repo

import "context"

// Repository is a generic keyed store. It has no delete path: records are
// created or updated through Upsert only.
type Repository[T any, ID comparable] interface {
	Get(ctx context.Context, id ID) (T, error)
	List(ctx context.Context, opts ListOpts) ([]T, error)
	Upsert(ctx context.Context, entity T) (T, error)
	Count(ctx context.Context) (int64, error)
}

// ListOpts controls pagination for List operations.
type ListOpts struct {
	Offset int
	Limit  int
}
