// Package cypherqa answers natural-language questions over the graph. A
// question is turned into Cypher by an LLM, the statement is run against
// the store, and the rows are handed back to the LLM to phrase the answer.
package cypherqa

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/prompts"
	"github.com/transitguard/transitguard-kg/engine/domain"
	"github.com/transitguard/transitguard-kg/engine/graph"
	"github.com/transitguard/transitguard-kg/pkg/fn"
)

// Graph is the part of the store the chain reads.
type Graph interface {
	Schema(ctx context.Context) (graph.Schema, error)
	Query(ctx context.Context, cypher string, params map[string]any, opts graph.QueryOpts) ([]map[string]any, error)
}

// Options configures the chain.
type Options struct {
	// TopK caps the rows passed to the answer prompt.
	TopK int
	// ReadOnly runs generated statements in a read session.
	ReadOnly bool
	// ReturnIntermediateSteps adds the generated statement and its rows
	// to the Answer.
	ReturnIntermediateSteps bool
	CypherPrompt            prompts.PromptTemplate
	QAPrompt                prompts.PromptTemplate
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		TopK:         10,
		ReadOnly:     true,
		CypherPrompt: DefaultCypherPrompt(),
		QAPrompt:     DefaultQAPrompt(),
	}
}

// Answer is the chain output.
type Answer struct {
	Query             string           `json:"query"`
	Result            string           `json:"result"`
	IntermediateSteps []map[string]any `json:"intermediate_steps,omitempty"`
}

// Chain is the question answering chain. It is safe for concurrent use.
type Chain struct {
	cypherLLM llms.Model
	qaLLM     llms.Model
	graph     Graph
	opts      Options
	logger    *slog.Logger
	run       fn.Stage[*state, *state]
}

type state struct {
	question string
	schema   string
	cypher   string
	context  []map[string]any
	answer   string
}

// New creates a Chain that uses llm for both statement generation and
// answer phrasing.
func New(llm llms.Model, g Graph, opts Options, logger *slog.Logger) *Chain {
	return NewWithModels(llm, llm, g, opts, logger)
}

// NewWithModels creates a Chain with separate models for the two LLM calls.
func NewWithModels(cypherLLM, qaLLM llms.Model, g Graph, opts Options, logger *slog.Logger) *Chain {
	if logger == nil {
		logger = slog.Default()
	}
	if opts.TopK <= 0 {
		opts.TopK = 10
	}
	if opts.CypherPrompt.Template == "" {
		opts.CypherPrompt = DefaultCypherPrompt()
	}
	if opts.QAPrompt.Template == "" {
		opts.QAPrompt = DefaultQAPrompt()
	}
	c := &Chain{
		cypherLLM: cypherLLM,
		qaLLM:     qaLLM,
		graph:     g,
		opts:      opts,
		logger:    logger,
	}
	c.run = fn.Pipeline(
		fn.TracedStage("cypherqa.schema", fn.Lift(c.loadSchema)),
		fn.TracedStage("cypherqa.generate", fn.Lift(c.generate)),
		fn.TracedStage("cypherqa.execute", fn.Lift(c.execute)),
		fn.TracedStage("cypherqa.answer", fn.Lift(c.phrase)),
	)
	return c
}

// Invoke runs the chain for one question. The question is used verbatim.
func (c *Chain) Invoke(ctx context.Context, question string) (*Answer, error) {
	st, err := c.run(ctx, &state{question: question}).Unwrap()
	if err != nil {
		return nil, err
	}
	ans := &Answer{Query: question, Result: st.answer}
	if c.opts.ReturnIntermediateSteps {
		ans.IntermediateSteps = []map[string]any{
			{"query": st.cypher},
			{"context": st.context},
		}
	}
	return ans, nil
}

func (c *Chain) loadSchema(ctx context.Context, st *state) (*state, error) {
	s, err := c.graph.Schema(ctx)
	if err != nil {
		return nil, fmt.Errorf("cypherqa: schema: %w", err)
	}
	st.schema = s.String()
	return st, nil
}

func (c *Chain) generate(ctx context.Context, st *state) (*state, error) {
	prompt, err := c.opts.CypherPrompt.Format(map[string]any{
		"schema":   st.schema,
		"question": st.question,
	})
	if err != nil {
		return nil, domain.E(domain.KindConfig, "cypherqa: cypher prompt", err)
	}
	out, err := llms.GenerateFromSinglePrompt(ctx, c.cypherLLM, prompt, llms.WithTemperature(0))
	if err != nil {
		return nil, domain.E(domain.KindUpstream, "cypherqa: generate cypher", err)
	}
	st.cypher = ExtractCypher(out)
	c.logger.Info("generated cypher", "cypher", st.cypher)
	return st, nil
}

func (c *Chain) execute(ctx context.Context, st *state) (*state, error) {
	if st.cypher == "" {
		st.context = []map[string]any{}
		return st, nil
	}
	rows, err := c.graph.Query(ctx, st.cypher, nil, graph.QueryOpts{
		ReadOnly: c.opts.ReadOnly,
		Limit:    c.opts.TopK,
	})
	if err != nil {
		return nil, fmt.Errorf("cypherqa: execute: %w", err)
	}
	st.context = rows
	c.logger.Info("cypher context", "rows", len(rows))
	return st, nil
}

func (c *Chain) phrase(ctx context.Context, st *state) (*state, error) {
	data, err := json.Marshal(st.context)
	if err != nil {
		return nil, domain.E(domain.KindUpstream, "cypherqa: encode context", err)
	}
	prompt, err := c.opts.QAPrompt.Format(map[string]any{
		"context":  string(data),
		"question": st.question,
	})
	if err != nil {
		return nil, domain.E(domain.KindConfig, "cypherqa: qa prompt", err)
	}
	out, err := llms.GenerateFromSinglePrompt(ctx, c.qaLLM, prompt)
	if err != nil {
		return nil, domain.E(domain.KindUpstream, "cypherqa: answer", err)
	}
	st.answer = out
	return st, nil
}
