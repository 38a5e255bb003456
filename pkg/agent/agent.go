package agent

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-pkgz/lgr"
	"github.com/sashabaranov/go-openai"

	"github.com/umputun/newswatch/pkg/config"
)

// Agent runs the bounded function-calling loop against an OpenAI-compatible
// model with the tools from the registry
type Agent struct {
	client       *openai.Client
	registry     *Registry
	model        string
	temperature  float32
	maxTokens    int
	maxToolCalls int
	instructions string
}

// New creates an agent from LLM config and a tool registry
func New(cfg config.LLMConfig, registry *Registry) *Agent {
	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.Endpoint != "" {
		clientConfig.BaseURL = cfg.Endpoint
	}

	maxToolCalls := cfg.Agent.MaxToolCalls
	if maxToolCalls <= 0 {
		maxToolCalls = 8
	}

	return &Agent{
		client:       openai.NewClientWithConfig(clientConfig),
		registry:     registry,
		model:        cfg.Model,
		temperature:  float32(cfg.Temperature),
		maxTokens:    cfg.MaxTokens,
		maxToolCalls: maxToolCalls,
		instructions: cfg.Agent.Instructions,
	}
}

// Run executes the loop for a user prompt and returns the model's final
// text answer. The loop executes tools for at most maxToolCalls iterations;
// after the cap the model is asked once more with tools disabled.
func (a *Agent) Run(ctx context.Context, prompt string) (string, error) {
	messages := []openai.ChatCompletionMessage{}
	if a.instructions != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: a.instructions,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: prompt,
	})

	tools := a.toolDefinitions()

	for iteration := 0; iteration < a.maxToolCalls; iteration++ {
		resp, err := a.complete(ctx, messages, tools, "")
		if err != nil {
			return "", err
		}

		msg := resp.Choices[0].Message
		if len(msg.ToolCalls) == 0 {
			return msg.Content, nil
		}

		messages = append(messages, msg)
		messages = append(messages, a.executeCalls(ctx, msg.ToolCalls)...)
	}

	// cap reached, ask for a final answer with tools off
	lgr.Printf("[WARN] agent hit the tool call cap of %d, forcing final answer", a.maxToolCalls)
	resp, err := a.complete(ctx, messages, tools, "none")
	if err != nil {
		return "", err
	}
	msg := resp.Choices[0].Message
	if msg.Content == "" {
		return "", fmt.Errorf("no final answer after %d tool calls", a.maxToolCalls)
	}
	return msg.Content, nil
}

// complete sends one chat completion request
func (a *Agent) complete(ctx context.Context, messages []openai.ChatCompletionMessage,
	tools []openai.Tool, toolChoice any) (openai.ChatCompletionResponse, error) {

	req := openai.ChatCompletionRequest{
		Model:       a.model,
		Temperature: a.temperature,
		MaxTokens:   a.maxTokens,
		Messages:    messages,
		Tools:       tools,
	}
	if toolChoice != nil && toolChoice != "" {
		req.ToolChoice = toolChoice
	}

	resp, err := a.client.CreateChatCompletion(ctx, req)
	if err != nil {
		return openai.ChatCompletionResponse{}, fmt.Errorf("agent request failed: %w", err)
	}
	if len(resp.Choices) == 0 {
		return openai.ChatCompletionResponse{}, fmt.Errorf("no response from llm")
	}
	return resp, nil
}

// executeCalls runs the requested tools sequentially and wraps each result
// as a tool message. An unknown tool produces a JSON error payload so the
// model can recover.
func (a *Agent) executeCalls(ctx context.Context, calls []openai.ToolCall) []openai.ChatCompletionMessage {
	results := make([]openai.ChatCompletionMessage, 0, len(calls))
	for _, call := range calls {
		var result string

		tool, ok := a.registry.Get(call.Function.Name)
		if !ok {
			lgr.Printf("[WARN] agent requested unknown tool %q", call.Function.Name)
			result = errorResult(fmt.Errorf("unknown tool: %s", call.Function.Name))
		} else {
			lgr.Printf("[DEBUG] agent calling tool %s with %s", call.Function.Name, call.Function.Arguments)
			out, err := tool.Execute(ctx, json.RawMessage(call.Function.Arguments))
			if err != nil {
				lgr.Printf("[WARN] tool %s failed: %v", call.Function.Name, err)
				result = errorResult(err)
			} else {
				result = out
			}
		}

		results = append(results, openai.ChatCompletionMessage{
			Role:       openai.ChatMessageRoleTool,
			Content:    result,
			ToolCallID: call.ID,
		})
	}
	return results
}

// toolDefinitions converts the registry into API tool definitions
func (a *Agent) toolDefinitions() []openai.Tool {
	list := a.registry.List()
	tools := make([]openai.Tool, 0, len(list))
	for _, t := range list {
		tools = append(tools, openai.Tool{
			Type: openai.ToolTypeFunction,
			Function: &openai.FunctionDefinition{
				Name:        t.Name(),
				Description: t.Description(),
				Parameters:  t.Parameters(),
			},
		})
	}
	return tools
}
