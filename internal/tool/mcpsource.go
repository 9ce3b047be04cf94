package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/mcp"
)

// MCPServerConfig describes one subprocess MCP server to connect to
// over stdio, grounded on the teacher's v2 pkg/tool/mcptoolset.Config's
// stdio-transport fields (the HTTP/SSE transport variant is left
// unwired here since the dataset/review-corpus domain this engine
// serves has no need for it; stdio covers local analysis tool servers).
type MCPServerConfig struct {
	Name    string            `yaml:"name"`
	Command string            `yaml:"command"`
	Args    []string          `yaml:"args"`
	Env     map[string]string `yaml:"env"`
}

// ConnectMCPServer starts the subprocess, performs the MCP handshake,
// and returns one Descriptor per tool the server exposes, each of which
// round-trips the call over the same client connection.
func ConnectMCPServer(ctx context.Context, cfg MCPServerConfig, logger *slog.Logger) ([]Descriptor, func() error, error) {
	env := make([]string, 0, len(cfg.Env))
	for k, v := range cfg.Env {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}

	mcpClient, err := client.NewStdioMCPClient(cfg.Command, env, cfg.Args...)
	if err != nil {
		return nil, nil, fmt.Errorf("mcpsource: creating client for %q: %w", cfg.Name, err)
	}

	if err := mcpClient.Start(ctx); err != nil {
		return nil, nil, fmt.Errorf("mcpsource: starting %q: %w", cfg.Name, err)
	}

	initReq := mcp.InitializeRequest{}
	initReq.Params.ClientInfo = mcp.Implementation{Name: "insightloop-engine", Version: "0.1.0"}
	initReq.Params.ProtocolVersion = "2024-11-05"
	if _, err := mcpClient.Initialize(ctx, initReq); err != nil {
		mcpClient.Close()
		return nil, nil, fmt.Errorf("mcpsource: initializing %q: %w", cfg.Name, err)
	}

	listResp, err := mcpClient.ListTools(ctx, mcp.ListToolsRequest{})
	if err != nil {
		mcpClient.Close()
		return nil, nil, fmt.Errorf("mcpsource: listing tools for %q: %w", cfg.Name, err)
	}

	descriptors := make([]Descriptor, 0, len(listResp.Tools))
	for _, t := range listResp.Tools {
		descriptors = append(descriptors, mcpToolDescriptor(mcpClient, t, cfg.Name))
	}

	if logger != nil {
		logger.Info("connected to MCP server", "name", cfg.Name, "command", cfg.Command, "tools", len(descriptors))
	}

	return descriptors, mcpClient.Close, nil
}

func mcpToolDescriptor(mcpClient *client.Client, t mcp.Tool, serverName string) Descriptor {
	return Descriptor{
		Name:             t.Name,
		HumanDescription: t.Description,
		ParameterSchema:  convertMCPSchema(t.InputSchema),
		CapabilitySet:    []string{"mcp", "mcp:" + serverName},
		Handler: func(ctx context.Context, args map[string]any, tc *Context) (Result, error) {
			req := mcp.CallToolRequest{}
			req.Params.Name = t.Name
			req.Params.Arguments = args

			resp, err := mcpClient.CallTool(ctx, req)
			if err != nil {
				return Result{Success: false, Summary: fmt.Sprintf("mcp call failed: %s", err)}, nil
			}
			data, summary := parseMCPToolResult(resp)
			return Result{Success: !resp.IsError, Summary: summary, Data: data}, nil
		},
	}
}

func parseMCPToolResult(resp *mcp.CallToolResult) (any, string) {
	var texts []string
	for _, c := range resp.Content {
		if tc, ok := c.(mcp.TextContent); ok {
			texts = append(texts, tc.Text)
		}
	}
	if len(texts) == 0 {
		return nil, "mcp tool returned no text content"
	}
	combined := texts[0]
	var parsed any
	if json.Unmarshal([]byte(combined), &parsed) == nil {
		return parsed, truncate(combined, 200)
	}
	return combined, truncate(combined, 200)
}

func convertMCPSchema(raw mcp.ToolInputSchema) *ParameterSchema {
	props := make(map[string]*ParameterSchema, len(raw.Properties))
	for name, p := range raw.Properties {
		propMap, ok := p.(map[string]any)
		if !ok {
			continue
		}
		pt, _ := propMap["type"].(string)
		desc, _ := propMap["description"].(string)
		props[name] = &ParameterSchema{Type: pt, Description: desc}
	}
	return &ParameterSchema{Type: "object", Properties: props, Required: raw.Required}
}
