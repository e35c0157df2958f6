package repo

import (
	"context"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Result is the minimal interface needed from a neo4j result.
type Result interface {
	Next(ctx context.Context) bool
	Record() *neo4j.Record
	Err() error
}

// Session is the minimal interface needed from a neo4j session.
type Session interface {
	Run(ctx context.Context, cypher string, params map[string]any) (Result, error)
	Close(ctx context.Context) error
}

// SessionOpener hands out sessions. Tests substitute an in-memory opener.
type SessionOpener interface {
	OpenSession(ctx context.Context, mode neo4j.AccessMode) Session
}

// DriverOpener opens sessions on a live driver.
type DriverOpener struct {
	Driver   neo4j.DriverWithContext
	Database string
}

// OpenSession implements SessionOpener.
func (o DriverOpener) OpenSession(ctx context.Context, mode neo4j.AccessMode) Session {
	return &driverSession{sess: o.Driver.NewSession(ctx, neo4j.SessionConfig{
		AccessMode:   mode,
		DatabaseName: o.Database,
	})}
}

// driverSession adapts neo4j.SessionWithContext to Session.
type driverSession struct {
	sess neo4j.SessionWithContext
}

func (s *driverSession) Run(ctx context.Context, cypher string, params map[string]any) (Result, error) {
	return s.sess.Run(ctx, cypher, params)
}

func (s *driverSession) Close(ctx context.Context) error {
	return s.sess.Close(ctx)
}
