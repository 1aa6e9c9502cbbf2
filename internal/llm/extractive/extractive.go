// Package extractive answers from the retrieved context alone by picking
// the sentences that best match the question. It needs no model server.
package extractive

import (
	"context"
	"strings"

	"ragbench/internal/llm"
	"ragbench/internal/summarizer"
)

const dontKnow = "I don't know."

// Options is the shape of llm_args for this backend.
type Options struct {
	MaxSentences int `yaml:"max_sentences"`
}

// Provider is an llm.Provider built on the frequency summarizer.
type Provider struct {
	summarizer   *summarizer.FrequencySummarizer
	maxSentences int
}

func New(opts Options) *Provider {
	if opts.MaxSentences <= 0 {
		opts.MaxSentences = 3
	}
	return &Provider{summarizer: summarizer.NewFrequencySummarizer(), maxSentences: opts.MaxSentences}
}

func (p *Provider) Name() string { return "extractive" }

// ChatCompletion returns the question unchanged for the condense step.
// Otherwise it answers with the context sentences closest to the question,
// or "I don't know." when nothing was retrieved.
func (p *Provider) ChatCompletion(_ context.Context, req llm.ChatRequest) (*llm.ChatResponse, error) {
	if req.Step == llm.StepCondense {
		return &llm.ChatResponse{Content: req.Question, StopReason: "stop"}, nil
	}
	if len(req.Context) == 0 {
		return &llm.ChatResponse{Content: dontKnow, StopReason: "stop", Tokens: 3}, nil
	}
	text := strings.Join(req.Context, "\n")
	answer, err := p.summarizer.SummarizeFor(req.Question, text, p.maxSentences)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(answer) == "" {
		answer = dontKnow
	}
	return &llm.ChatResponse{Content: answer, StopReason: "stop", Tokens: len(strings.Fields(answer))}, nil
}
