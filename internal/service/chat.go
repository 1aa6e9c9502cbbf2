package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"ragbench/internal/crosstab"
	"ragbench/internal/domain"
	"ragbench/internal/llm"
	"ragbench/internal/metrics"
	"ragbench/internal/report"
)

// DefaultTopK is the number of chunks retrieved per question.
const DefaultTopK = 4

const missingPage = "NA"

const condensePrompt = `Given the following conversation and a follow up question, rephrase the follow up question to be a standalone question, in its original language.

Chat History:
%s
Follow Up Input: %s
Standalone question:`

const qaPrompt = `Use the following pieces of context to answer the question at the end. If you don't know the answer, just say that you don't know, don't try to make up an answer.

%s

Question: %s
Helpful Answer:`

// Waiter throttles LLM calls.
type Waiter interface {
	Wait(ctx context.Context) error
}

// Turn is one answered question.
type Turn struct {
	Question string
	// Standalone is the question after condensing it with the history.
	Standalone string
	Answer     string
	Sources    []domain.SearchResult
}

// SourcePages groups the pages used for the answer by source document.
func (t Turn) SourcePages() []report.Source {
	rows := make([]map[string]string, len(t.Sources))
	for i, r := range t.Sources {
		rows[i] = r.Chunk.Metadata
	}
	groups := crosstab.Crosstab(rows, domain.MetaSource, domain.MetaPage, missingPage)
	out := make([]report.Source, len(groups))
	for i, g := range groups {
		out[i] = report.Source{Document: g.Key, Pages: g.Values}
	}
	return out
}

// Chat is a conversational retrieval loop with buffer memory.
type Chat struct {
	embedder domain.Embedder
	store    domain.VectorStore
	llm      llm.Provider
	limiter  Waiter
	topK     int
	logger   *zap.Logger
	metrics  *metrics.Run
	report   *report.Writer
	history  []Turn
}

// ChatOptions configures NewChat. Limiter, Report and Metrics are optional.
type ChatOptions struct {
	Embedder domain.Embedder
	Store    domain.VectorStore
	LLM      llm.Provider
	Limiter  Waiter
	TopK     int
	Logger   *zap.Logger
	Metrics  *metrics.Run
	Report   *report.Writer
}

func NewChat(o ChatOptions) *Chat {
	if o.TopK <= 0 {
		o.TopK = DefaultTopK
	}
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	return &Chat{
		embedder: o.Embedder,
		store:    o.Store,
		llm:      o.LLM,
		limiter:  o.Limiter,
		topK:     o.TopK,
		logger:   o.Logger,
		metrics:  o.Metrics,
		report:   o.Report,
	}
}

// History returns the answered turns so far.
func (c *Chat) History() []Turn {
	return append([]Turn(nil), c.history...)
}

// Reset forgets the conversation.
func (c *Chat) Reset() { c.history = nil }

// Ask answers question in the context of the conversation so far.
func (c *Chat) Ask(ctx context.Context, question string) (Turn, error) {
	standalone := question
	if len(c.history) > 0 {
		prompt := fmt.Sprintf(condensePrompt, c.renderHistory(), question)
		resp, err := c.complete(ctx, llm.ChatRequest{
			Step:     llm.StepCondense,
			Messages: []llm.Message{{Role: llm.RoleUser, Content: prompt}},
			Question: question,
		})
		if err != nil {
			return Turn{}, fmt.Errorf("condense question: %w", err)
		}
		if s := strings.TrimSpace(resp.Content); s != "" {
			standalone = s
		}
	}

	vec, err := c.embedder.Embed(ctx, standalone)
	if err != nil {
		return Turn{}, fmt.Errorf("embed question: %w", err)
	}
	results, err := c.store.Search(ctx, vec, c.topK)
	if err != nil {
		return Turn{}, fmt.Errorf("retrieve: %w", err)
	}
	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Chunk.Text
	}

	prompt := fmt.Sprintf(qaPrompt, strings.Join(texts, "\n\n"), standalone)
	resp, err := c.complete(ctx, llm.ChatRequest{
		Step:     llm.StepAnswer,
		Messages: []llm.Message{{Role: llm.RoleUser, Content: prompt}},
		Question: standalone,
		Context:  texts,
	})
	if err != nil {
		return Turn{}, fmt.Errorf("answer question: %w", err)
	}

	turn := Turn{Question: question, Standalone: standalone, Answer: strings.TrimSpace(resp.Content), Sources: results}
	c.history = append(c.history, turn)
	return turn, nil
}

// Run asks each question in order, logging every turn and appending it to
// the report.
func (c *Chat) Run(ctx context.Context, questions []string) error {
	c.logger.Warn(costWarning)
	for _, q := range questions {
		if _, err := c.Converse(ctx, q); err != nil {
			return err
		}
	}
	c.logger.Info("=======================")
	return nil
}

// Converse is Ask followed by logging the turn and appending it to the
// report.
func (c *Chat) Converse(ctx context.Context, question string) (Turn, error) {
	turn, err := c.Ask(ctx, question)
	if err != nil {
		return Turn{}, err
	}
	sources := turn.SourcePages()
	c.metrics.ObserveTurn(len(sources))
	c.logTurn(turn, sources)
	if c.report != nil {
		if err := c.report.AppendTurn(turn.Question, turn.Answer, sources); err != nil {
			return turn, fmt.Errorf("write report: %w", err)
		}
	}
	return turn, nil
}

func (c *Chat) logTurn(t Turn, sources []report.Source) {
	c.logger.Info("=======================")
	c.logger.Info("Q: " + t.Question)
	c.logger.Info("A: " + t.Answer)
	for _, s := range sources {
		c.logger.Sugar().Infof("Source document: %s, Pages used: [%s]", s.Document, strings.Join(s.Pages, ", "))
	}
}

func (c *Chat) complete(ctx context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}
	start := time.Now()
	resp, err := c.llm.ChatCompletion(ctx, req)
	c.metrics.ObserveLLM(req.Step, time.Since(start), err)
	return resp, err
}

func (c *Chat) renderHistory() string {
	var b strings.Builder
	for _, t := range c.history {
		fmt.Fprintf(&b, "\nHuman: %s\nAssistant: %s", t.Question, t.Answer)
	}
	return b.String()
}
