// Package service holds the long-lived dependencies of the API and the
// lifecycle of the knowledge graph behind it.
package service

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/transitguard/transitguard-kg/engine/cypherqa"
	"github.com/transitguard/transitguard-kg/engine/domain"
	"github.com/transitguard/transitguard-kg/engine/graph"
	"github.com/transitguard/transitguard-kg/engine/loader"
	"github.com/transitguard/transitguard-kg/pkg/metrics"
)

// Event names, published as "<prefix>.<event>".
const (
	EventLoaded   = "safetyindex.loaded"
	EventAnswered = "query.answered"
)

// Store is the graph the service reads and the loader writes.
type Store interface {
	loader.Store
	EnsureConstraints(ctx context.Context) error
	Schema(ctx context.Context) (graph.Schema, error)
	Counts(ctx context.Context) (graph.Counts, error)
	SafetyIndex(ctx context.Context, date string) (domain.SafetyIndex, error)
	ListSafetyIndex(ctx context.Context, offset, limit int) ([]domain.SafetyIndex, error)
}

// Asker answers a question.
type Asker interface {
	Invoke(ctx context.Context, question string) (*cypherqa.Answer, error)
}

// Events receives lifecycle and query events. Implementations must not
// block or fail the caller.
type Events interface {
	Emit(ctx context.Context, event string, v any)
}

// LoadedEvent is published after a successful Init.
type LoadedEvent struct {
	Path      string `json:"path"`
	Rows      int    `json:"rows"`
	Nodes     int    `json:"nodes"`
	Edges     int    `json:"edges"`
	ElapsedMS int64  `json:"elapsed_ms"`
}

// AnsweredEvent is published after each answered question.
type AnsweredEvent struct {
	Question   string `json:"question"`
	Answer     string `json:"answer"`
	DurationMS int64  `json:"duration_ms"`
}

// Option configures a Service.
type Option func(*Service)

// WithEvents publishes events to e.
func WithEvents(e Events) Option { return func(s *Service) { s.events = e } }

// WithMetrics records chain and loader metrics into m.
func WithMetrics(m *metrics.Collector) Option { return func(s *Service) { s.metrics = m } }

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option { return func(s *Service) { s.logger = l } }

// Service is the knowledge graph API. Methods other than Init and State
// return domain.ErrNotReady until Init has succeeded.
type Service struct {
	store   Store
	chain   Asker
	csvPath string
	events  Events
	metrics *metrics.Collector
	logger  *slog.Logger

	state  atomic.Int32
	report atomic.Pointer[loader.Report]
}

// New creates a Service that loads csvPath on Init.
func New(store Store, chain Asker, csvPath string, opts ...Option) *Service {
	s := &Service{store: store, chain: chain, csvPath: csvPath}
	for _, o := range opts {
		o(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// State reports the lifecycle state.
func (s *Service) State() domain.State { return domain.State(s.state.Load()) }

// Report returns the last successful load, or nil.
func (s *Service) Report() *loader.Report { return s.report.Load() }

// Init ensures the schema constraints and loads the CSV. On failure the
// service stays not started and the error is returned; rows written before
// the failure are kept. Calling Init on a ready service is a no-op.
func (s *Service) Init(ctx context.Context) error {
	if !s.state.CompareAndSwap(int32(domain.StateNotStarted), int32(domain.StateLoading)) {
		if s.State() == domain.StateReady {
			return nil
		}
		return domain.Errorf(domain.KindUnavailable, "service: init", "load already in progress")
	}

	if err := s.store.EnsureConstraints(ctx); err != nil {
		s.state.Store(int32(domain.StateNotStarted))
		s.logger.Error("error loading data", "err", err)
		return err
	}

	rep, err := loader.New(s.store, s.metrics, s.logger).Load(ctx, s.csvPath)
	if err != nil {
		s.state.Store(int32(domain.StateNotStarted))
		return err
	}

	s.report.Store(&rep)
	s.state.Store(int32(domain.StateReady))
	s.emit(ctx, EventLoaded, LoadedEvent{
		Path:      rep.Path,
		Rows:      rep.Rows,
		Nodes:     rep.Nodes,
		Edges:     rep.Edges,
		ElapsedMS: rep.Elapsed.Milliseconds(),
	})
	return nil
}

// Ask runs the question through the chain. The question is passed on
// unmodified.
func (s *Service) Ask(ctx context.Context, question string) (*cypherqa.Answer, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	start := time.Now()
	ans, err := s.chain.Invoke(ctx, question)
	elapsed := time.Since(start)
	s.metrics.ObserveChain(err, elapsed)
	if err != nil {
		s.logger.Error("query failed", "kind", domain.KindOf(err).String(), "err", err)
		return nil, err
	}
	s.emit(ctx, EventAnswered, AnsweredEvent{
		Question:   question,
		Answer:     ans.Result,
		DurationMS: elapsed.Milliseconds(),
	})
	return ans, nil
}

// Schema returns the current graph schema.
func (s *Service) Schema(ctx context.Context) (graph.Schema, error) {
	if err := s.ready(); err != nil {
		return graph.Schema{}, err
	}
	return s.store.Schema(ctx)
}

// Counts returns node and edge totals.
func (s *Service) Counts(ctx context.Context) (graph.Counts, error) {
	if err := s.ready(); err != nil {
		return graph.Counts{}, err
	}
	return s.store.Counts(ctx)
}

// SafetyIndex returns the node for date.
func (s *Service) SafetyIndex(ctx context.Context, date string) (domain.SafetyIndex, error) {
	if err := s.ready(); err != nil {
		return domain.SafetyIndex{}, err
	}
	return s.store.SafetyIndex(ctx, date)
}

// ListSafetyIndex pages through nodes ordered by date.
func (s *Service) ListSafetyIndex(ctx context.Context, offset, limit int) ([]domain.SafetyIndex, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}
	return s.store.ListSafetyIndex(ctx, offset, limit)
}

func (s *Service) ready() error {
	if s.State() != domain.StateReady {
		return domain.ErrNotReady
	}
	return nil
}

func (s *Service) emit(ctx context.Context, event string, v any) {
	if s.events == nil {
		return
	}
	s.events.Emit(ctx, event, v)
}
