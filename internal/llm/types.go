// Package llm defines the backend-agnostic chat model abstraction.
// Adapters live in sub-packages (openai, ollama, extractive).
package llm

import "context"

// RoleUser is the Message.Role of prompts sent to a backend.
const RoleUser = "user"

// Steps of a conversational retrieval turn, set in ChatRequest.Step.
const (
	StepCondense = "condense"
	StepAnswer   = "answer"
)

// Message represents a single turn in a conversation.
type Message struct {
	Role    string
	Content string
}

// ChatRequest is the input for a non-streaming chat completion.
//
// Step, Question and Context describe what the prompt in Messages was built
// from. Generative backends ignore them; grounded backends that cannot follow
// a prompt use them directly.
type ChatRequest struct {
	Messages []Message
	Step     string
	Question string
	Context  []string
}

// ChatResponse is the output from a non-streaming chat completion.
type ChatResponse struct {
	Content    string
	StopReason string
	Tokens     int
}

// Provider is implemented by every chat backend.
type Provider interface {
	// Name identifies the backend and model, e.g. "openai/gpt-4o-mini".
	Name() string
	ChatCompletion(ctx context.Context, req ChatRequest) (*ChatResponse, error)
}
