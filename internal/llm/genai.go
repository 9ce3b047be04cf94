package llm

import (
	"context"
	"fmt"

	"github.com/insightloop/engine/internal/tool"
	"google.golang.org/genai"
)

// GeminiProvider wraps the real google.golang.org/genai SDK (a teacher
// go.mod dependency, see pkg/llms for the analogous split-service shape
// this unifies behind the single Provider interface).
type GeminiProvider struct {
	client *genai.Client
}

// NewGeminiProvider constructs a provider against the Gemini Developer
// API using an API key, matching the SDK's client-construction pattern.
func NewGeminiProvider(ctx context.Context, apiKey string) (*GeminiProvider, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("llm: constructing genai client: %w", err)
	}
	return &GeminiProvider{client: client}, nil
}

func toGenaiContents(msgs []Message) []*genai.Content {
	out := make([]*genai.Content, 0, len(msgs))
	for _, m := range msgs {
		if m.Role == RoleSystem {
			continue
		}
		role := genai.RoleUser
		if m.Role == RoleAssistant {
			role = genai.RoleModel
		}
		out = append(out, &genai.Content{
			Role:  role,
			Parts: []*genai.Part{{Text: m.Content}},
		})
	}
	return out
}

func systemInstruction(msgs []Message) *genai.Content {
	var text string
	for _, m := range msgs {
		if m.Role == RoleSystem {
			text += m.Content + "\n"
		}
	}
	if text == "" {
		return nil
	}
	return &genai.Content{Parts: []*genai.Part{{Text: text}}}
}

func toGenaiTools(defs []ToolDefinition) []*genai.Tool {
	if len(defs) == 0 {
		return nil
	}
	decls := make([]*genai.FunctionDeclaration, 0, len(defs))
	for _, d := range defs {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        d.Name,
			Description: d.Description,
			Parameters:  toGenaiSchema(d.Parameters),
		})
	}
	return []*genai.Tool{{FunctionDeclarations: decls}}
}

func genaiType(t string) genai.Type {
	switch t {
	case "string":
		return genai.TypeString
	case "number":
		return genai.TypeNumber
	case "integer":
		return genai.TypeInteger
	case "boolean":
		return genai.TypeBoolean
	case "array":
		return genai.TypeArray
	case "object":
		return genai.TypeObject
	default:
		return genai.TypeUnspecified
	}
}

// toGenaiSchema translates the engine's provider-agnostic ParameterSchema
// (shared with the tool registry, see internal/tool) into the SDK's
// genai.Schema, recursing through object/array nesting.
func toGenaiSchema(p *tool.ParameterSchema) *genai.Schema {
	if p == nil {
		return &genai.Schema{Type: genai.TypeObject}
	}
	s := &genai.Schema{
		Type:        genaiType(p.Type),
		Description: p.Description,
		Required:    p.Required,
	}
	if len(p.Enum) > 0 {
		for _, e := range p.Enum {
			if str, ok := e.(string); ok {
				s.Enum = append(s.Enum, str)
			}
		}
	}
	if p.Items != nil {
		s.Items = toGenaiSchema(p.Items)
	}
	if len(p.Properties) > 0 {
		s.Properties = make(map[string]*genai.Schema, len(p.Properties))
		for name, prop := range p.Properties {
			s.Properties[name] = toGenaiSchema(prop)
		}
	}
	return s
}

// Chat issues a non-streaming GenerateContent call and re-emits it as one
// StreamDelta per text part and one StreamToolCall per function call,
// followed by StreamFinal, since the simple text path
// is what the engine's specialists exercise; true token-level streaming
// is left to the Anthropic adapter which the router defaults to.
func (p *GeminiProvider) Chat(ctx context.Context, req ChatRequest) (<-chan StreamEvent, error) {
	out := make(chan StreamEvent, 4)

	cfg := &genai.GenerateContentConfig{
		Temperature:       genai.Ptr(float32(req.Temperature)),
		MaxOutputTokens:   int32(req.MaxTokens),
		SystemInstruction: systemInstruction(req.Messages),
		Tools:             toGenaiTools(req.Tools),
	}

	resp, err := p.client.Models.GenerateContent(ctx, req.Model, toGenaiContents(req.Messages), cfg)
	if err != nil {
		close(out)
		return nil, fmt.Errorf("llm: genai GenerateContent: %w", err)
	}

	go func() {
		defer close(out)

		if len(resp.Candidates) == 0 {
			out <- StreamEvent{Kind: StreamFinal, Final: &FinalResponse{}}
			return
		}

		cand := resp.Candidates[0]
		var text string
		for _, part := range cand.Content.Parts {
			if part.FunctionCall != nil {
				out <- StreamEvent{Kind: StreamToolCall, ToolCallEvt: ToolCall{
					ID:        part.FunctionCall.ID,
					Name:      part.FunctionCall.Name,
					Arguments: part.FunctionCall.Args,
				}}
				continue
			}
			if part.Text != "" {
				text += part.Text
				out <- StreamEvent{Kind: StreamDelta, Delta: part.Text}
			}
		}

		tokens := 0
		if resp.UsageMetadata != nil {
			tokens = int(resp.UsageMetadata.TotalTokenCount)
		}

		out <- StreamEvent{Kind: StreamFinal, Final: &FinalResponse{
			Text:         text,
			FinishReason: string(cand.FinishReason),
			TokensUsed:   tokens,
		}}
	}()

	return out, nil
}

// HealthCheck lists models as a lightweight reachability probe.
func (p *GeminiProvider) HealthCheck(ctx context.Context) bool {
	_, err := p.client.Models.List(ctx, nil)
	return err == nil
}

// SupportsStructuredOutput reports true: genai.GenerateContentConfig
// accepts a ResponseSchema directly.
func (p *GeminiProvider) SupportsStructuredOutput() bool { return true }

var _ Provider = (*GeminiProvider)(nil)
