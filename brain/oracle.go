// Package brain selects the next chaos experiment.
//
// The selection path is oracle-first with a deterministic fallback: an
// LLM proposes the next action as structured JSON, and any failure to
// produce a valid, permitted action degrades to a rule-based choice. The
// engine guarantees that whatever happens upstream, the returned decision
// always names a member of the permitted action set.
package brain

import (
	"context"
	"fmt"
	"sync"

	openai "github.com/sashabaranov/go-openai"

	"github.com/chaossec-io/chaossec/types"
)

// Oracle default generation parameters. Low temperature keeps the JSON
// response shape stable across calls.
const (
	oracleTemperature = 0.2
	oracleMaxTokens   = 512
	defaultModel      = "gpt-4o-mini"
)

// Oracle produces a raw completion for a decision prompt.
type Oracle interface {
	// Complete returns the model's raw text response. The caller owns
	// parsing and validation; Complete never inspects the content.
	Complete(ctx context.Context, prompt string) (string, error)
}

// OpenAIConfig configures the chat-completion oracle.
type OpenAIConfig struct {
	// APIKey authenticates against the completion endpoint.
	APIKey string
	// BaseURL overrides the API endpoint, e.g. for a local model server.
	BaseURL string
	// Model selects the completion model (default gpt-4o-mini).
	Model string
}

// OpenAIOracle is an Oracle backed by an OpenAI-compatible chat API.
type OpenAIOracle struct {
	client *openai.Client
	model  string
}

// NewOpenAIOracle creates a chat-completion oracle.
func NewOpenAIOracle(cfg OpenAIConfig) (*OpenAIOracle, error) {
	if cfg.APIKey == "" && cfg.BaseURL == "" {
		return nil, fmt.Errorf("brain: oracle requires an API key or a base URL")
	}
	cc := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		cc.BaseURL = cfg.BaseURL
	}
	model := cfg.Model
	if model == "" {
		model = defaultModel
	}
	return &OpenAIOracle{client: openai.NewClientWithConfig(cc), model: model}, nil
}

// Complete implements Oracle via one chat completion round trip.
func (o *OpenAIOracle) Complete(ctx context.Context, prompt string) (string, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       o.model,
		Temperature: oracleTemperature,
		MaxTokens:   oracleMaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", types.NewFault(types.ErrAdapterUnavailable, "oracle_complete", err)
	}
	if len(resp.Choices) == 0 {
		return "", types.NewFault(types.ErrMalformedOracleResponse, "oracle_complete",
			fmt.Errorf("completion returned no choices"))
	}
	return resp.Choices[0].Message.Content, nil
}

// Verify OpenAIOracle implements Oracle.
var _ Oracle = (*OpenAIOracle)(nil)

// ScriptedOracle implements Oracle with canned responses for testing.
// Responses are returned in order; when exhausted, the last one repeats.
type ScriptedOracle struct {
	mu        sync.Mutex
	Responses []string
	// Err, when set, is returned from every Complete call.
	Err error
	// Prompts records every prompt received.
	Prompts []string

	next int
}

// NewScriptedOracle creates a scripted oracle.
func NewScriptedOracle(responses ...string) *ScriptedOracle {
	return &ScriptedOracle{Responses: responses}
}

// Complete implements Oracle by replaying the script.
func (o *ScriptedOracle) Complete(_ context.Context, prompt string) (string, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Prompts = append(o.Prompts, prompt)
	if o.Err != nil {
		return "", o.Err
	}
	if len(o.Responses) == 0 {
		return "", fmt.Errorf("scripted oracle has no responses")
	}
	i := o.next
	if i >= len(o.Responses) {
		i = len(o.Responses) - 1
	}
	o.next++
	return o.Responses[i], nil
}

// Verify ScriptedOracle implements Oracle.
var _ Oracle = (*ScriptedOracle)(nil)
